package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	pq "github.com/lib/pq"
)

type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// Upsert por discord_id; admin sólo se puede subir desde acá, nunca bajar.
func (r *UserRepo) Upsert(ctx context.Context, u AppUser) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (discord_id, name, admin)
VALUES ($1, $2, $3)
ON CONFLICT (discord_id) DO UPDATE SET
  name  = EXCLUDED.name,
  admin = users.admin OR EXCLUDED.admin
`, u.DiscordID, u.Name, u.Admin)
	return err
}

func (r *UserRepo) GetByDiscordID(ctx context.Context, discordID string) (AppUser, error) {
	var (
		u    AppUser
		last sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
SELECT discord_id, name, admin, last_guild_sync_at, created_at
  FROM users
 WHERE discord_id = $1
`, discordID).Scan(&u.DiscordID, &u.Name, &u.Admin, &last, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return AppUser{}, ErrNotFound
	}
	if err != nil {
		return AppUser{}, err
	}
	if last.Valid {
		u.LastGuildSyncAt = &last.Time
	}
	return u, nil
}

// ReplaceGuildRoles deja al usuario con exactamente roleIDs dentro de guildID.
// Roles que todavía no están espejados se ignoran.
func (r *UserRepo) ReplaceGuildRoles(ctx context.Context, guildID, userID string, roleIDs []string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM user_discord_guild_roles ur
 USING discord_guild_roles gr
 WHERE ur.role_id = gr.role_id
   AND ur.user_id = $1
   AND gr.guild_id = $2
`, userID, guildID); err != nil {
			return err
		}
		if len(roleIDs) == 0 {
			return nil
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO user_discord_guild_roles (user_id, role_id)
SELECT $1, gr.role_id
  FROM discord_guild_roles gr
 WHERE gr.guild_id = $2
   AND gr.role_id = ANY($3::text[])
ON CONFLICT DO NOTHING
`, userID, guildID, pq.Array(roleIDs))
		return mapPgErr(err)
	})
}

func (r *UserRepo) GuildRoleIDs(ctx context.Context, guildID, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT ur.role_id
  FROM user_discord_guild_roles ur
  JOIN discord_guild_roles gr ON gr.role_id = ur.role_id
 WHERE ur.user_id = $1 AND gr.guild_id = $2
 ORDER BY ur.role_id
`, userID, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *UserRepo) TouchGuildSync(ctx context.Context, userIDs []string, at time.Time) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE users SET last_guild_sync_at = $2 WHERE discord_id = ANY($1::text[])
`, pq.Array(userIDs), at)
	return err
}
