package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/juju/clock"

	"github.com/jose-valero/timerboard-bot/internal/domain"
)

// UserRoleService mantiene los roles de los usuarios de la app (permisos por categoría).
type UserRoleService struct {
	users AppUserRepo
	clock clock.Clock
	log   *slog.Logger
}

func NewUserRoleService(users AppUserRepo, clk clock.Clock, logger *slog.Logger) *UserRoleService {
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserRoleService{users: users, clock: clk, log: logger.With("svc", "user_roles")}
}

// SyncGuildMembers actualiza los roles de los miembros que tienen cuenta.
// Un usuario que falla se loguea y se sigue con el resto.
func (s *UserRoleService) SyncGuildMembers(ctx context.Context, guildID string, members []domain.Member) error {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	registered, err := s.users.RegisteredAmong(ctx, ids)
	if err != nil {
		return fmt.Errorf("registered users: %w", err)
	}

	var synced []string
	for _, m := range members {
		if !registered[m.UserID] {
			continue
		}
		if err := s.users.ReplaceGuildRoles(ctx, guildID, m.UserID, m.RoleIDs); err != nil {
			s.log.Error("replace user roles", "guild", guildID, "user", m.UserID, "err", err)
			continue
		}
		synced = append(synced, m.UserID)
	}
	if err := s.users.TouchGuildSync(ctx, synced, s.clock.Now()); err != nil {
		s.log.Warn("touch user guild sync", "guild", guildID, "err", err)
	}
	s.log.Debug("user roles synced", "guild", guildID, "users", len(synced))
	return nil
}

// SyncMember: versión de un solo miembro (eventos de join/update/leave).
func (s *UserRoleService) SyncMember(ctx context.Context, m domain.Member) error {
	registered, err := s.users.RegisteredAmong(ctx, []string{m.UserID})
	if err != nil {
		return fmt.Errorf("registered users: %w", err)
	}
	if !registered[m.UserID] {
		return nil
	}
	if err := s.users.ReplaceGuildRoles(ctx, m.GuildID, m.UserID, m.RoleIDs); err != nil {
		return fmt.Errorf("replace user roles: %w", err)
	}
	return s.users.TouchGuildSync(ctx, []string{m.UserID}, s.clock.Now())
}
