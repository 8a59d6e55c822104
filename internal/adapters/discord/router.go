package discord

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/juju/clock"

	"github.com/jose-valero/timerboard-bot/internal/domain"
)

// Lo implementa service.GuildSyncService
type GuildEvents interface {
	HandleGuildAvailable(ctx context.Context, g domain.Guild) error
	UpsertGuild(ctx context.Context, g domain.Guild) error
	SyncGuild(ctx context.Context, guildID string) error
	SyncIfStale(ctx context.Context, guildID string) (bool, error)
	UpsertRole(ctx context.Context, r domain.Role) error
	DeleteRole(ctx context.Context, roleID string) error
	UpsertChannel(ctx context.Context, ch domain.Channel) error
	DeleteChannel(ctx context.Context, channelID string) error
	UpsertMember(ctx context.Context, m domain.Member) error
	RemoveMember(ctx context.Context, guildID, userID string) error
}

const (
	eventTimeout     = 15 * time.Second
	guildSyncTimeout = 5 * time.Minute
	syncCooldown     = 2 * time.Minute
)

type Router struct {
	s            *discordgo.Session
	sync         GuildEvents
	adminRoleIDs []string
	log          *slog.Logger

	commands map[string]Command
	cooldown *userLimiter
}

func NewRouter(s *discordgo.Session, sync GuildEvents, adminRoleIDs []string, clk clock.Clock, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		s:            s,
		sync:         sync,
		adminRoleIDs: adminRoleIDs,
		log:          logger.With("svc", "discord"),
		cooldown:     newUserLimiter(syncCooldown, clk),
	}
	r.commands = map[string]Command{}
	for _, c := range r.Commands() {
		r.commands[c.Def.Name] = c
	}
	return r
}

// Register publica los slash commands como comandos globales.
func (r *Router) Register() error {
	appID := r.s.State.User.ID
	defs := make([]*discordgo.ApplicationCommand, 0, len(r.commands))
	for _, c := range r.Commands() {
		defs = append(defs, c.Def)
	}
	_, err := r.s.ApplicationCommandBulkOverwrite(appID, "", defs)
	return err
}

func (r *Router) Handlers() {
	r.s.AddHandler(r.handleSlashCommand)

	r.s.AddHandler(r.onGuildCreate)
	r.s.AddHandler(r.onGuildUpdate)

	r.s.AddHandler(r.onRoleCreate)
	r.s.AddHandler(r.onRoleUpdate)
	r.s.AddHandler(r.onRoleDelete)

	r.s.AddHandler(r.onChannelCreate)
	r.s.AddHandler(r.onChannelUpdate)
	r.s.AddHandler(r.onChannelDelete)

	r.s.AddHandler(r.onMemberAdd)
	r.s.AddHandler(r.onMemberUpdate)
	r.s.AddHandler(r.onMemberRemove)
}

func (r *Router) run(op string, timeout time.Duration, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		r.log.Error("event handler failed", "op", op, "err", err)
	}
}

// ---------- guilds ----------

func (r *Router) onGuildCreate(_ *discordgo.Session, ev *discordgo.GuildCreate) {
	if ev.Guild == nil || ev.Unavailable {
		return
	}
	r.run("guild_create", guildSyncTimeout, func(ctx context.Context) error {
		return r.sync.HandleGuildAvailable(ctx, toGuild(ev.Guild))
	})
}

func (r *Router) onGuildUpdate(_ *discordgo.Session, ev *discordgo.GuildUpdate) {
	if ev.Guild == nil {
		return
	}
	r.run("guild_update", eventTimeout, func(ctx context.Context) error {
		return r.sync.UpsertGuild(ctx, toGuild(ev.Guild))
	})
}

// ---------- roles ----------

func (r *Router) onRoleCreate(_ *discordgo.Session, ev *discordgo.GuildRoleCreate) {
	if ev.GuildRole == nil || ev.Role == nil {
		return
	}
	r.run("role_create", eventTimeout, func(ctx context.Context) error {
		return r.sync.UpsertRole(ctx, toRole(ev.GuildID, ev.Role))
	})
}

func (r *Router) onRoleUpdate(_ *discordgo.Session, ev *discordgo.GuildRoleUpdate) {
	if ev.GuildRole == nil || ev.Role == nil {
		return
	}
	r.run("role_update", eventTimeout, func(ctx context.Context) error {
		return r.sync.UpsertRole(ctx, toRole(ev.GuildID, ev.Role))
	})
}

func (r *Router) onRoleDelete(_ *discordgo.Session, ev *discordgo.GuildRoleDelete) {
	r.run("role_delete", eventTimeout, func(ctx context.Context) error {
		return r.sync.DeleteRole(ctx, ev.RoleID)
	})
}

// ---------- canales ----------

func (r *Router) onChannelCreate(_ *discordgo.Session, ev *discordgo.ChannelCreate) {
	if ev.Channel == nil || ev.GuildID == "" {
		return
	}
	r.run("channel_create", eventTimeout, func(ctx context.Context) error {
		return r.sync.UpsertChannel(ctx, toChannel(ev.Channel))
	})
}

func (r *Router) onChannelUpdate(_ *discordgo.Session, ev *discordgo.ChannelUpdate) {
	if ev.Channel == nil || ev.GuildID == "" {
		return
	}
	r.run("channel_update", eventTimeout, func(ctx context.Context) error {
		return r.sync.UpsertChannel(ctx, toChannel(ev.Channel))
	})
}

func (r *Router) onChannelDelete(_ *discordgo.Session, ev *discordgo.ChannelDelete) {
	if ev.Channel == nil || ev.GuildID == "" {
		return
	}
	r.run("channel_delete", eventTimeout, func(ctx context.Context) error {
		return r.sync.DeleteChannel(ctx, ev.ID)
	})
}

// ---------- miembros ----------

func (r *Router) onMemberAdd(_ *discordgo.Session, ev *discordgo.GuildMemberAdd) {
	if ev.Member == nil || ev.User == nil {
		return
	}
	r.run("member_add", eventTimeout, func(ctx context.Context) error {
		return r.sync.UpsertMember(ctx, toMember(ev.GuildID, ev.Member))
	})
}

func (r *Router) onMemberUpdate(_ *discordgo.Session, ev *discordgo.GuildMemberUpdate) {
	if ev.Member == nil || ev.User == nil {
		return
	}
	r.run("member_update", eventTimeout, func(ctx context.Context) error {
		return r.sync.UpsertMember(ctx, toMember(ev.GuildID, ev.Member))
	})
}

func (r *Router) onMemberRemove(_ *discordgo.Session, ev *discordgo.GuildMemberRemove) {
	if ev.Member == nil || ev.User == nil {
		return
	}
	r.run("member_remove", eventTimeout, func(ctx context.Context) error {
		return r.sync.RemoveMember(ctx, ev.GuildID, ev.User.ID)
	})
}
