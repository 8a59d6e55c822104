package service

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/timerboard-bot/internal/domain"
)

// Lo implementa internal/adapters/discord.Gateway
type DiscordGateway interface {
	GetGuild(ctx context.Context, guildID string) (domain.Guild, error)
	GetRoles(ctx context.Context, guildID string) ([]domain.Role, error)
	GetChannels(ctx context.Context, guildID string) ([]domain.Channel, error)
	// GetMembers devuelve la página de hasta limit miembros con user id > after.
	GetMembers(ctx context.Context, guildID string, limit int, after string) (domain.MemberPage, error)
}

// Lo implementa internal/adapters/discord.Gateway
type MessageGateway interface {
	MemberDisplayName(ctx context.Context, guildID, userID string) (string, error)
	SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) (string, error)
	EditMessage(ctx context.Context, edit *discordgo.MessageEdit) error
}

// Lo implementa internal/infra/storage.GuildRepo
type GuildRepo interface {
	Upsert(ctx context.Context, g domain.Guild) error
	Get(ctx context.Context, guildID string) (domain.Guild, error)
	Count(ctx context.Context) (int, error)
	ListStale(ctx context.Context, before time.Time, limit int) ([]string, error)
	TouchLastSync(ctx context.Context, guildID string, at time.Time) error
}

// Lo implementa internal/infra/storage.RoleRepo
type RoleRepo interface {
	ListByGuild(ctx context.Context, guildID string) ([]domain.Role, error)
	Upsert(ctx context.Context, r domain.Role) error
	UpsertMany(ctx context.Context, guildID string, roles []domain.Role) error
	DeleteMany(ctx context.Context, roleIDs []string) error
}

// Lo implementa internal/infra/storage.ChannelRepo
type ChannelRepo interface {
	ListByGuild(ctx context.Context, guildID string) ([]domain.Channel, error)
	Upsert(ctx context.Context, ch domain.Channel) error
	UpsertMany(ctx context.Context, guildID string, chans []domain.Channel) error
	DeleteMany(ctx context.Context, channelIDs []string) error
}

// Lo implementa internal/infra/storage.MemberRepo
type MemberRepo interface {
	ReplaceGuild(ctx context.Context, guildID string, members []domain.Member) error
	Upsert(ctx context.Context, m domain.Member) error
	Delete(ctx context.Context, guildID, userID string) error
}

// Lo implementa UserRoleService
type RoleMembershipSyncer interface {
	SyncGuildMembers(ctx context.Context, guildID string, members []domain.Member) error
	SyncMember(ctx context.Context, m domain.Member) error
}

// Lo implementa internal/infra/storage.UserRepo
type AppUserRepo interface {
	RegisteredAmong(ctx context.Context, ids []string) (map[string]bool, error)
	ReplaceGuildRoles(ctx context.Context, guildID, userID string, roleIDs []string) error
	TouchGuildSync(ctx context.Context, userIDs []string, at time.Time) error
}

// Lo implementa internal/infra/storage.CategoryRepo
type CategoryLookup interface {
	GetDetails(ctx context.Context, categoryID int64) (domain.CategoryDetails, error)
}

// Lo implementa internal/infra/storage.PingFormatRepo
type PingFormatFieldRepo interface {
	ListFields(ctx context.Context, pingFormatID int64) ([]domain.PingFormatField, error)
}

// Lo implementa internal/infra/storage.FleetMessageRepo
type FleetMessageStore interface {
	Create(ctx context.Context, m domain.FleetMessage) (domain.FleetMessage, error)
	GetByFleet(ctx context.Context, fleetID int64) (domain.MessageChain, error)
}

// Lo implementa internal/infra/storage.FleetRepo
type FleetRepo interface {
	Get(ctx context.Context, id int64) (domain.Fleet, error)
	FieldValues(ctx context.Context, fleetID int64) (map[int64]string, error)
	ListDueReminders(ctx context.Context, now time.Time) ([]domain.Fleet, error)
	ListDueFormups(ctx context.Context, now, notBefore time.Time) ([]domain.Fleet, error)
	ClaimReminder(ctx context.Context, fleetID int64) (bool, error)
	ClaimFormup(ctx context.Context, fleetID int64) (bool, error)
	MarkCancelled(ctx context.Context, fleetID int64) (bool, error)
}
