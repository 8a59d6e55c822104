package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jose-valero/timerboard-bot/internal/domain"
)

type GuildRepo struct{ db *sql.DB }

func NewGuildRepo(db *sql.DB) *GuildRepo { return &GuildRepo{db: db} }

// Upsert: nombre e icono pueden cambiar aunque no toque sync completo; last_sync_at no se toca.
func (r *GuildRepo) Upsert(ctx context.Context, g domain.Guild) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO discord_guilds (guild_id, name, icon_hash)
VALUES ($1, $2, $3)
ON CONFLICT (guild_id) DO UPDATE SET
  name       = EXCLUDED.name,
  icon_hash  = EXCLUDED.icon_hash,
  updated_at = now()
`, g.GuildID, g.Name, nullableString(g.IconHash))
	return err
}

func (r *GuildRepo) Get(ctx context.Context, guildID string) (domain.Guild, error) {
	var (
		g    domain.Guild
		icon sql.NullString
		last sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
SELECT guild_id, name, icon_hash, last_sync_at
  FROM discord_guilds
 WHERE guild_id = $1
`, guildID).Scan(&g.GuildID, &g.Name, &icon, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Guild{}, ErrNotFound
	}
	if err != nil {
		return domain.Guild{}, err
	}
	if icon.Valid {
		g.IconHash = &icon.String
	}
	if last.Valid {
		g.LastSyncAt = &last.Time
	}
	return g, nil
}

func (r *GuildRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM discord_guilds`).Scan(&n)
	return n, err
}

// ListStale devuelve los guilds sin sync completo desde before, los más viejos primero.
func (r *GuildRepo) ListStale(ctx context.Context, before time.Time, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT guild_id
  FROM discord_guilds
 WHERE last_sync_at IS NULL OR last_sync_at < $1
 ORDER BY last_sync_at ASC NULLS FIRST, guild_id
 LIMIT $2
`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *GuildRepo) TouchLastSync(ctx context.Context, guildID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE discord_guilds SET last_sync_at = $2 WHERE guild_id = $1
`, guildID, at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
