package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jose-valero/timerboard-bot/internal/domain"
)

type FleetRepo struct{ db *sql.DB }

func NewFleetRepo(db *sql.DB) *FleetRepo { return &FleetRepo{db: db} }

const fleetColumns = `f.id, f.category_id, f.name, f.commander_id, f.fleet_time, f.description, f.hidden, f.disable_reminder`

type rowScanner interface{ Scan(dest ...any) error }

func scanFleet(s rowScanner) (domain.Fleet, error) {
	var (
		f    domain.Fleet
		desc sql.NullString
	)
	if err := s.Scan(&f.ID, &f.CategoryID, &f.Name, &f.CommanderID, &f.FleetTime, &desc, &f.Hidden, &f.DisableReminder); err != nil {
		return domain.Fleet{}, err
	}
	if desc.Valid {
		f.Description = &desc.String
	}
	f.FleetTime = f.FleetTime.UTC()
	return f, nil
}

// Create guarda el fleet y sus valores de campos; devuelve el id.
func (r *FleetRepo) Create(ctx context.Context, f domain.Fleet, values map[int64]string) (int64, error) {
	var id int64
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
INSERT INTO fleets (category_id, name, commander_id, fleet_time, description, hidden, disable_reminder)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id
`, f.CategoryID, f.Name, f.CommanderID, f.FleetTime, nullableString(f.Description), f.Hidden, f.DisableReminder).Scan(&id); err != nil {
			return mapPgErr(err)
		}
		for fieldID, v := range values {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO fleet_field_values (fleet_id, field_id, value) VALUES ($1, $2, $3)
`, id, fieldID, v); err != nil {
				return mapPgErr(err)
			}
		}
		return nil
	})
	return id, err
}

func (r *FleetRepo) Get(ctx context.Context, id int64) (domain.Fleet, error) {
	f, err := scanFleet(r.db.QueryRowContext(ctx, `SELECT `+fleetColumns+` FROM fleets f WHERE f.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Fleet{}, ErrNotFound
	}
	return f, err
}

// FieldValues: field_id -> valor cargado por el FC.
func (r *FleetRepo) FieldValues(ctx context.Context, fleetID int64) (map[int64]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT field_id, value FROM fleet_field_values WHERE fleet_id = $1
`, fleetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64]string{}
	for rows.Next() {
		var (
			id int64
			v  string
		)
		if err := rows.Scan(&id, &v); err != nil {
			return nil, err
		}
		out[id] = v
	}
	return out, rows.Err()
}

// ListDueReminders: fleets futuros cuya ventana de recordatorio ya empezó.
func (r *FleetRepo) ListDueReminders(ctx context.Context, now time.Time) ([]domain.Fleet, error) {
	return r.list(ctx, `
SELECT `+fleetColumns+`
  FROM fleets f
  JOIN fleet_categories c ON c.id = f.category_id
 WHERE f.cancelled_at IS NULL
   AND f.reminder_sent_at IS NULL
   AND NOT f.disable_reminder
   AND c.ping_reminder_seconds > 0
   AND f.fleet_time > $1
   AND f.fleet_time - make_interval(secs => c.ping_reminder_seconds) <= $1
 ORDER BY f.fleet_time, f.id
`, now)
}

// ListDueFormups: fleets cuya hora llegó, sin form-up enviado y no más viejos que notBefore.
func (r *FleetRepo) ListDueFormups(ctx context.Context, now, notBefore time.Time) ([]domain.Fleet, error) {
	return r.list(ctx, `
SELECT `+fleetColumns+`
  FROM fleets f
 WHERE f.cancelled_at IS NULL
   AND f.formup_sent_at IS NULL
   AND f.fleet_time <= $1
   AND f.fleet_time >= $2
 ORDER BY f.fleet_time, f.id
`, now, notBefore)
}

func (r *FleetRepo) list(ctx context.Context, q string, args ...any) ([]domain.Fleet, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Fleet
	for rows.Next() {
		f, err := scanFleet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ClaimReminder marca el recordatorio como enviado. false si otro proceso ya lo tomó.
func (r *FleetRepo) ClaimReminder(ctx context.Context, fleetID int64) (bool, error) {
	return r.claim(ctx, `UPDATE fleets SET reminder_sent_at = now() WHERE id = $1 AND reminder_sent_at IS NULL AND cancelled_at IS NULL`, fleetID)
}

func (r *FleetRepo) ClaimFormup(ctx context.Context, fleetID int64) (bool, error) {
	return r.claim(ctx, `UPDATE fleets SET formup_sent_at = now() WHERE id = $1 AND formup_sent_at IS NULL AND cancelled_at IS NULL`, fleetID)
}

func (r *FleetRepo) MarkCancelled(ctx context.Context, fleetID int64) (bool, error) {
	return r.claim(ctx, `UPDATE fleets SET cancelled_at = now() WHERE id = $1 AND cancelled_at IS NULL`, fleetID)
}

func (r *FleetRepo) claim(ctx context.Context, q string, fleetID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, q, fleetID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
