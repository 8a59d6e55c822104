package discord

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/timerboard-bot/internal/app/service"
)

func (r *Router) Commands() []Command {
	return []Command{
		{
			Def: &discordgo.ApplicationCommand{
				Name:        "ping",
				Description: "Verifica que el bot responde",
			},
			Handler: func(_ context.Context, c *Ctx) error {
				ReplyEphemeral(c.Session, c.Event, "🏓 Pong!")
				return nil
			},
		},
		{
			Def: &discordgo.ApplicationCommand{
				Name:        "sync",
				Description: "Sincroniza roles, canales y miembros de este servidor (admins)",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "force",
					Description: "Sincronizar aunque el último sync sea reciente",
				}},
			},
			AdminOnly: true,
			Cooldown:  true,
			Handler:   r.cmdSync,
		},
	}
}

func (r *Router) cmdSync(ctx context.Context, c *Ctx) error {
	force, _ := optBool(c.Event, "force")
	ReplyEphemeral(c.Session, c.Event, syncReply(r.runSync(ctx, c.GuildID, force)))
	return nil
}

func (r *Router) runSync(ctx context.Context, guildID string, force bool) (bool, error) {
	if force {
		return true, r.sync.SyncGuild(ctx, guildID)
	}
	return r.sync.SyncIfStale(ctx, guildID)
}

func syncReply(synced bool, err error) string {
	switch {
	case errors.Is(err, service.ErrSyncInProgress):
		return "⏳ Ya hay un sync en curso para este servidor."
	case err != nil:
		return "⚠️ El sync terminó con errores: " + err.Error()
	case !synced:
		return "ℹ️ El servidor se sincronizó hace poco. Usa `/sync force:true` para forzarlo."
	}
	return "✅ Servidor sincronizado."
}
