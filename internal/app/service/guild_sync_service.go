package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/jose-valero/timerboard-bot/internal/domain"
	"github.com/jose-valero/timerboard-bot/internal/infra/metrics"
	"github.com/jose-valero/timerboard-bot/internal/infra/storage"
)

// ErrSyncInProgress: ya hay un sync completo corriendo para ese guild.
var ErrSyncInProgress = errors.New("guild sync already in progress")

const (
	DefaultSyncWindow = 30 * time.Minute
)

type GuildSyncOptions struct {
	Clock    clock.Clock
	Window   time.Duration // antigüedad a partir de la cual un guild necesita sync completo
	PageSize int
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// GuildSyncService mantiene el espejo local de roles, canales y miembros.
type GuildSyncService struct {
	gw       DiscordGateway
	guilds   GuildRepo
	roles    RoleRepo
	channels ChannelRepo
	members  MemberRepo
	roleSync RoleMembershipSyncer

	clock    clock.Clock
	window   time.Duration
	pageSize int
	log      *slog.Logger
	m        *metrics.Metrics

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewGuildSyncService(gw DiscordGateway, guilds GuildRepo, roles RoleRepo, channels ChannelRepo, members MemberRepo, roleSync RoleMembershipSyncer, opts GuildSyncOptions) *GuildSyncService {
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	if opts.Window <= 0 {
		opts.Window = DefaultSyncWindow
	}
	if opts.PageSize <= 0 || opts.PageSize > MaxMemberPage {
		opts.PageSize = MaxMemberPage
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Discard()
	}
	return &GuildSyncService{
		gw: gw, guilds: guilds, roles: roles, channels: channels, members: members, roleSync: roleSync,
		clock: opts.Clock, window: opts.Window, pageSize: opts.PageSize,
		log: opts.Logger.With("svc", "guild_sync"), m: opts.Metrics,
		inflight: map[string]struct{}{},
	}
}

// ReconcileRoles deja los roles locales del guild iguales a current.
func (s *GuildSyncService) ReconcileRoles(ctx context.Context, guildID string, current []domain.Role) error {
	local, err := s.roles.ListByGuild(ctx, guildID)
	if err != nil {
		return fmt.Errorf("list roles: %w", err)
	}
	current = slices.Clone(current)
	for i := range current {
		current[i].GuildID = guildID
	}
	toDelete, toUpsert := Diff(local, current, roleKey)
	if err := s.roles.DeleteMany(ctx, toDelete); err != nil {
		return fmt.Errorf("delete roles: %w", err)
	}
	if err := s.roles.UpsertMany(ctx, guildID, toUpsert); err != nil {
		s.log.Warn("batch role upsert failed, retrying one by one", "guild", guildID, "err", err)
		var errs []error
		for _, r := range toUpsert {
			if err := s.roles.Upsert(ctx, r); err != nil {
				errs = append(errs, fmt.Errorf("upsert role %s: %w", r.RoleID, err))
			}
		}
		return errors.Join(errs...)
	}
	return nil
}

// ReconcileChannels igual que roles; sólo canales de texto.
func (s *GuildSyncService) ReconcileChannels(ctx context.Context, guildID string, current []domain.Channel) error {
	local, err := s.channels.ListByGuild(ctx, guildID)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}
	current = textChannels(current) // copia
	for i := range current {
		current[i].GuildID = guildID
	}
	toDelete, toUpsert := Diff(local, current, channelKey)
	if err := s.channels.DeleteMany(ctx, toDelete); err != nil {
		return fmt.Errorf("delete channels: %w", err)
	}
	if err := s.channels.UpsertMany(ctx, guildID, toUpsert); err != nil {
		s.log.Warn("batch channel upsert failed, retrying one by one", "guild", guildID, "err", err)
		var errs []error
		for _, ch := range toUpsert {
			if err := s.channels.Upsert(ctx, ch); err != nil {
				errs = append(errs, fmt.Errorf("upsert channel %s: %w", ch.ChannelID, err))
			}
		}
		return errors.Join(errs...)
	}
	return nil
}

// ReconcileMembers pagina todos los miembros y reemplaza los del guild.
// Si falla alguna página no se toca nada.
func (s *GuildSyncService) ReconcileMembers(ctx context.Context, guildID string) error {
	var all []domain.Member
	for page, err := range MemberPages(ctx, s.gw, guildID, s.pageSize) {
		if err != nil {
			return fmt.Errorf("fetch members: %w", err)
		}
		all = append(all, page...)
	}
	all = dedupeMembers(all)
	for i := range all {
		all[i].GuildID = guildID
	}

	if err := s.members.ReplaceGuild(ctx, guildID, all); err != nil {
		return fmt.Errorf("replace members: %w", err)
	}
	if s.roleSync != nil {
		if err := s.roleSync.SyncGuildMembers(ctx, guildID, all); err != nil {
			s.log.Warn("role membership sync failed", "guild", guildID, "err", err)
		}
	}
	s.log.Debug("members reconciled", "guild", guildID, "count", len(all))
	return nil
}

// SyncGuild hace el sync completo: metadata, roles, canales, miembros y, si
// todo salió bien, marca last_sync_at. Un recurso que falla no frena a los demás.
func (s *GuildSyncService) SyncGuild(ctx context.Context, guildID string) error {
	if !s.acquire(guildID) {
		s.m.GuildSyncs.WithLabelValues("skipped").Inc()
		return ErrSyncInProgress
	}
	defer s.release(guildID)

	start := s.clock.Now()
	err := s.syncGuild(ctx, guildID)
	s.m.GuildSyncDuration.Observe(s.clock.Now().Sub(start).Seconds())
	if err != nil {
		s.m.GuildSyncs.WithLabelValues("failed").Inc()
		return err
	}
	s.m.GuildSyncs.WithLabelValues("ok").Inc()
	return nil
}

func (s *GuildSyncService) syncGuild(ctx context.Context, guildID string) error {
	g, err := s.gw.GetGuild(ctx, guildID)
	if err != nil {
		s.m.ResourceErrors.WithLabelValues("guild").Inc()
		return fmt.Errorf("fetch guild %s: %w", guildID, err)
	}
	g.GuildID = guildID
	if err := s.guilds.Upsert(ctx, g); err != nil {
		s.m.ResourceErrors.WithLabelValues("guild").Inc()
		return fmt.Errorf("upsert guild %s: %w", guildID, err)
	}

	var errs []error
	fail := func(resource string, err error) {
		s.m.ResourceErrors.WithLabelValues(resource).Inc()
		s.log.Error("reconcile failed", "guild", guildID, "resource", resource, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", resource, err))
	}

	if roles, err := s.gw.GetRoles(ctx, guildID); err != nil {
		fail("roles", fmt.Errorf("fetch roles: %w", err))
	} else if err := s.ReconcileRoles(ctx, guildID, roles); err != nil {
		fail("roles", err)
	}

	if chans, err := s.gw.GetChannels(ctx, guildID); err != nil {
		fail("channels", fmt.Errorf("fetch channels: %w", err))
	} else if err := s.ReconcileChannels(ctx, guildID, chans); err != nil {
		fail("channels", err)
	}

	if err := s.ReconcileMembers(ctx, guildID); err != nil {
		fail("members", err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("guild %s: %w", guildID, errors.Join(errs...))
	}
	if err := s.guilds.TouchLastSync(ctx, guildID, s.clock.Now()); err != nil {
		return fmt.Errorf("touch last sync %s: %w", guildID, err)
	}
	s.log.Info("guild synced", "guild", guildID, "name", g.Name)
	return nil
}

func (s *GuildSyncService) acquire(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[guildID]; busy {
		return false
	}
	s.inflight[guildID] = struct{}{}
	return true
}

func (s *GuildSyncService) release(guildID string) {
	s.mu.Lock()
	delete(s.inflight, guildID)
	s.mu.Unlock()
}

// NeedsFullSync: nunca sincronizado o más viejo que la ventana.
func (s *GuildSyncService) NeedsFullSync(g domain.Guild) bool {
	return g.LastSyncAt == nil || s.clock.Now().Sub(*g.LastSyncAt) >= s.window
}

// ---------- eventos en tiempo real ----------

// HandleGuildAvailable: siempre actualiza metadata; sync completo sólo si toca.
func (s *GuildSyncService) HandleGuildAvailable(ctx context.Context, g domain.Guild) error {
	if err := s.UpsertGuild(ctx, g); err != nil {
		return err
	}
	_, err := s.SyncIfStale(ctx, g.GuildID)
	if errors.Is(err, ErrSyncInProgress) {
		return nil
	}
	return err
}

// SyncIfStale corre el sync completo sólo si el guild lo necesita. synced indica si corrió.
func (s *GuildSyncService) SyncIfStale(ctx context.Context, guildID string) (synced bool, err error) {
	stored, err := s.guilds.Get(ctx, guildID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("get guild %s: %w", guildID, err)
	}
	if err == nil && !s.NeedsFullSync(stored) {
		s.log.Debug("guild recently synced, skipping full sync", "guild", guildID)
		return false, nil
	}
	return true, s.SyncGuild(ctx, guildID)
}

func (s *GuildSyncService) UpsertGuild(ctx context.Context, g domain.Guild) error {
	if err := s.guilds.Upsert(ctx, g); err != nil {
		return fmt.Errorf("upsert guild %s: %w", g.GuildID, err)
	}
	return nil
}

func (s *GuildSyncService) UpsertRole(ctx context.Context, r domain.Role) error {
	return s.roles.Upsert(ctx, r)
}

func (s *GuildSyncService) DeleteRole(ctx context.Context, roleID string) error {
	return s.roles.DeleteMany(ctx, []string{roleID})
}

// UpsertChannel: si el canal dejó de ser de texto se borra del espejo.
func (s *GuildSyncService) UpsertChannel(ctx context.Context, ch domain.Channel) error {
	if !ch.IsText() {
		return s.channels.DeleteMany(ctx, []string{ch.ChannelID})
	}
	return s.channels.Upsert(ctx, ch)
}

func (s *GuildSyncService) DeleteChannel(ctx context.Context, channelID string) error {
	return s.channels.DeleteMany(ctx, []string{channelID})
}

func (s *GuildSyncService) UpsertMember(ctx context.Context, m domain.Member) error {
	if err := s.members.Upsert(ctx, m); err != nil {
		return fmt.Errorf("upsert member %s/%s: %w", m.GuildID, m.UserID, err)
	}
	if s.roleSync != nil {
		if err := s.roleSync.SyncMember(ctx, m); err != nil {
			s.log.Warn("member role sync failed", "guild", m.GuildID, "user", m.UserID, "err", err)
		}
	}
	return nil
}

// RemoveMember borra al miembro y le quita los roles del guild si es usuario de la app.
func (s *GuildSyncService) RemoveMember(ctx context.Context, guildID, userID string) error {
	if err := s.members.Delete(ctx, guildID, userID); err != nil {
		return fmt.Errorf("delete member %s/%s: %w", guildID, userID, err)
	}
	if s.roleSync != nil {
		if err := s.roleSync.SyncMember(ctx, domain.Member{GuildID: guildID, UserID: userID}); err != nil {
			s.log.Warn("member role cleanup failed", "guild", guildID, "user", userID, "err", err)
		}
	}
	return nil
}
