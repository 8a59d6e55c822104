package storage

import (
	"context"
	"database/sql"

	pq "github.com/lib/pq"

	"github.com/jose-valero/timerboard-bot/internal/domain"
)

type RoleRepo struct{ db *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{db: db} }

func (r *RoleRepo) ListByGuild(ctx context.Context, guildID string) ([]domain.Role, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT role_id, guild_id, name, color, position
  FROM discord_guild_roles
 WHERE guild_id = $1
 ORDER BY position DESC, role_id
`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Role{}
	for rows.Next() {
		var (
			ro    domain.Role
			color string
		)
		if err := rows.Scan(&ro.RoleID, &ro.GuildID, &ro.Name, &color, &ro.Position); err != nil {
			return nil, err
		}
		ro.Color = parseColorHex(color)
		out = append(out, ro)
	}
	return out, rows.Err()
}

func (r *RoleRepo) Upsert(ctx context.Context, ro domain.Role) error {
	return r.UpsertMany(ctx, ro.GuildID, []domain.Role{ro})
}

// UpsertMany inserta o actualiza en una sola sentencia. Nunca cambia el guild_id de un rol existente.
func (r *RoleRepo) UpsertMany(ctx context.Context, guildID string, roles []domain.Role) error {
	if len(roles) == 0 {
		return nil
	}
	ids := make([]string, len(roles))
	names := make([]string, len(roles))
	colors := make([]string, len(roles))
	positions := make([]int64, len(roles))
	for i, ro := range roles {
		ids[i] = ro.RoleID
		names[i] = ro.Name
		colors[i] = colorHex(ro.Color)
		positions[i] = int64(ro.Position)
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO discord_guild_roles (role_id, guild_id, name, color, position)
SELECT x.role_id, $1, x.name, x.color, x.position
  FROM unnest($2::text[], $3::text[], $4::text[], $5::int[]) AS x(role_id, name, color, position)
ON CONFLICT (role_id) DO UPDATE SET
  name     = EXCLUDED.name,
  color    = EXCLUDED.color,
  position = EXCLUDED.position
`, guildID, pq.Array(ids), pq.Array(names), pq.Array(colors), pq.Array(positions))
	return mapPgErr(err)
}

// DeleteMany borra por id; las referencias (categorías, user roles) caen por cascade.
func (r *RoleRepo) DeleteMany(ctx context.Context, roleIDs []string) error {
	if len(roleIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
DELETE FROM discord_guild_roles WHERE role_id = ANY($1::text[])
`, pq.Array(roleIDs))
	return err
}
