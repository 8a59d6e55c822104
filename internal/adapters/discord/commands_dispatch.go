package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
)

const commandTimeout = 5 * time.Minute

func (r *Router) handleSlashCommand(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := ic.ApplicationCommandData()
	cmd, ok := r.commands[data.Name]
	if !ok {
		return
	}

	userID := interactionUserID(ic)
	log := r.log.With("cmd", data.Name, "user", userID, "guild", ic.GuildID)
	log.Info("command")

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic in command", "panic", rec)
			ReplyEphemeral(s, ic, "❌ Ocurrió un error inesperado procesando el comando. Contacta con un administrador.")
		}
	}()

	_ = DeferEphemeral(s, ic)

	if cmd.AdminOnly && !r.requireAdminOrRoles(s, ic) {
		return
	}
	if cmd.Cooldown && !r.cooldown.Allow(userID) {
		ReplyEphemeral(s, ic, "⏱️ Espera un poco antes de volver a usar este comando.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	defer step(log, "cmd."+data.Name)()

	c := &Ctx{Log: log, Session: s, Event: ic, GuildID: ic.GuildID, UserID: userID}
	if err := cmd.Handler(ctx, c); err != nil {
		log.Error("command failed", "err", err)
		ReplyEphemeral(s, ic, "⚠️ "+err.Error())
	}
}
