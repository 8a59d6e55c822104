package storage

import (
	"context"
	"database/sql"

	pq "github.com/lib/pq"

	"github.com/jose-valero/timerboard-bot/internal/domain"
)

// ChannelRepo sólo guarda canales de texto; el filtrado lo hace el servicio.
type ChannelRepo struct{ db *sql.DB }

func NewChannelRepo(db *sql.DB) *ChannelRepo { return &ChannelRepo{db: db} }

func (r *ChannelRepo) ListByGuild(ctx context.Context, guildID string) ([]domain.Channel, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT channel_id, guild_id, name, position
  FROM discord_guild_channels
 WHERE guild_id = $1
 ORDER BY position, channel_id
`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Channel{}
	for rows.Next() {
		ch := domain.Channel{Kind: domain.ChannelKindText}
		if err := rows.Scan(&ch.ChannelID, &ch.GuildID, &ch.Name, &ch.Position); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (r *ChannelRepo) Upsert(ctx context.Context, ch domain.Channel) error {
	return r.UpsertMany(ctx, ch.GuildID, []domain.Channel{ch})
}

func (r *ChannelRepo) UpsertMany(ctx context.Context, guildID string, chans []domain.Channel) error {
	if len(chans) == 0 {
		return nil
	}
	ids := make([]string, len(chans))
	names := make([]string, len(chans))
	positions := make([]int64, len(chans))
	for i, ch := range chans {
		ids[i] = ch.ChannelID
		names[i] = ch.Name
		positions[i] = int64(ch.Position)
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO discord_guild_channels (channel_id, guild_id, name, position)
SELECT x.channel_id, $1, x.name, x.position
  FROM unnest($2::text[], $3::text[], $4::int[]) AS x(channel_id, name, position)
ON CONFLICT (channel_id) DO UPDATE SET
  name     = EXCLUDED.name,
  position = EXCLUDED.position
`, guildID, pq.Array(ids), pq.Array(names), pq.Array(positions))
	return mapPgErr(err)
}

func (r *ChannelRepo) DeleteMany(ctx context.Context, channelIDs []string) error {
	if len(channelIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
DELETE FROM discord_guild_channels WHERE channel_id = ANY($1::text[])
`, pq.Array(channelIDs))
	return err
}
