package storage

import (
	"context"
	"database/sql"

	"github.com/jose-valero/timerboard-bot/internal/domain"
)

type PingFormatRepo struct{ db *sql.DB }

func NewPingFormatRepo(db *sql.DB) *PingFormatRepo { return &PingFormatRepo{db: db} }

// ListFields en orden de prioridad (menor primero).
func (r *PingFormatRepo) ListFields(ctx context.Context, pingFormatID int64) ([]domain.PingFormatField, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, ping_format_id, name, priority, default_value
  FROM ping_format_fields
 WHERE ping_format_id = $1
 ORDER BY priority, id
`, pingFormatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PingFormatField
	for rows.Next() {
		var (
			f   domain.PingFormatField
			def sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.PingFormatID, &f.Name, &f.Priority, &def); err != nil {
			return nil, err
		}
		if def.Valid {
			f.DefaultValue = &def.String
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
