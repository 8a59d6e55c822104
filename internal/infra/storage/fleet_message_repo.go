package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jose-valero/timerboard-bot/internal/domain"
)

type FleetMessageRepo struct{ db *sql.DB }

func NewFleetMessageRepo(db *sql.DB) *FleetMessageRepo { return &FleetMessageRepo{db: db} }

// Create guarda el vínculo; fleet inexistente => ErrReference.
func (r *FleetMessageRepo) Create(ctx context.Context, m domain.FleetMessage) (domain.FleetMessage, error) {
	if !m.Type.Valid() {
		return domain.FleetMessage{}, fmt.Errorf("invalid message type %q", m.Type)
	}
	err := r.db.QueryRowContext(ctx, `
INSERT INTO fleet_messages (fleet_id, channel_id, message_id, message_type)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at
`, m.FleetID, m.ChannelID, m.MessageID, string(m.Type)).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return domain.FleetMessage{}, mapPgErr(err)
	}
	return m, nil
}

// GetByFleet en orden de creación; vacío si no hay mensajes.
func (r *FleetMessageRepo) GetByFleet(ctx context.Context, fleetID int64) (domain.MessageChain, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, fleet_id, channel_id, message_id, message_type, created_at
  FROM fleet_messages
 WHERE fleet_id = $1
 ORDER BY created_at, id
`, fleetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := domain.MessageChain{}
	for rows.Next() {
		var (
			m  domain.FleetMessage
			mt string
		)
		if err := rows.Scan(&m.ID, &m.FleetID, &m.ChannelID, &m.MessageID, &mt, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = domain.MessageType(mt)
		out = append(out, m)
	}
	return out, rows.Err()
}
