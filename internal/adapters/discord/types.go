package discord

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

type Ctx struct {
	Log     *slog.Logger
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	GuildID string
	UserID  string
}

type CommandHandler func(ctx context.Context, c *Ctx) error

type Command struct {
	Def *discordgo.ApplicationCommand
	// AdminOnly: owner, permiso Administrator o ADMIN_ROLE_IDS
	AdminOnly bool
	// Cooldown: pasa por el limitador por usuario
	Cooldown bool
	Handler  CommandHandler
}
