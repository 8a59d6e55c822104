package storage

import (
	"context"
	"database/sql"

	pq "github.com/lib/pq"

	"github.com/jose-valero/timerboard-bot/internal/domain"
)

type MemberRepo struct{ db *sql.DB }

func NewMemberRepo(db *sql.DB) *MemberRepo { return &MemberRepo{db: db} }

// ReplaceGuild deja exactamente members como miembros del guild (todo en una tx).
func (r *MemberRepo) ReplaceGuild(ctx context.Context, guildID string, members []domain.Member) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM discord_guild_members WHERE guild_id = $1`, guildID); err != nil {
			return err
		}
		if len(members) == 0 {
			return nil
		}
		ids, names, nicks := memberColumns(members)
		_, err := tx.ExecContext(ctx, `
INSERT INTO discord_guild_members (guild_id, user_id, username, nickname)
SELECT $1, x.user_id, x.username, x.nickname
  FROM unnest($2::text[], $3::text[], $4::text[]) AS x(user_id, username, nickname)
ON CONFLICT (guild_id, user_id) DO UPDATE SET
  username   = EXCLUDED.username,
  nickname   = EXCLUDED.nickname,
  updated_at = now()
`, guildID, pq.Array(ids), pq.Array(names), pq.Array(nicks))
		return mapPgErr(err)
	})
}

func (r *MemberRepo) Upsert(ctx context.Context, m domain.Member) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO discord_guild_members (guild_id, user_id, username, nickname)
VALUES ($1, $2, $3, $4)
ON CONFLICT (guild_id, user_id) DO UPDATE SET
  username   = EXCLUDED.username,
  nickname   = EXCLUDED.nickname,
  updated_at = now()
`, m.GuildID, m.UserID, m.Username, nullableString(m.Nickname))
	return mapPgErr(err)
}

func (r *MemberRepo) Delete(ctx context.Context, guildID, userID string) error {
	_, err := r.db.ExecContext(ctx, `
DELETE FROM discord_guild_members WHERE guild_id = $1 AND user_id = $2
`, guildID, userID)
	return err
}

func (r *MemberRepo) ListByGuild(ctx context.Context, guildID string) ([]domain.Member, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT guild_id, user_id, username, nickname
  FROM discord_guild_members
 WHERE guild_id = $1
 ORDER BY user_id
`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Member{}
	for rows.Next() {
		var (
			m    domain.Member
			nick sql.NullString
		)
		if err := rows.Scan(&m.GuildID, &m.UserID, &m.Username, &nick); err != nil {
			return nil, err
		}
		if nick.Valid {
			m.Nickname = &nick.String
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func memberColumns(members []domain.Member) (ids, names []string, nicks []sql.NullString) {
	ids = make([]string, len(members))
	names = make([]string, len(members))
	nicks = make([]sql.NullString, len(members))
	for i, m := range members {
		ids[i] = m.UserID
		names[i] = m.Username
		if m.Nickname != nil {
			nicks[i] = sql.NullString{String: *m.Nickname, Valid: true}
		}
	}
	return ids, names, nicks
}
