package storage

import (
	"context"

	pq "github.com/lib/pq"
)

// RegisteredAmong: de ids, devuelve los que tienen cuenta en la app.
func (r *UserRepo) RegisteredAmong(ctx context.Context, ids []string) (map[string]bool, error) {
	out := map[string]bool{}
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT discord_id
  FROM users
 WHERE discord_id = ANY($1::text[])
`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}
