// Lambda programada: borra el historial de mensajes de fleets viejos.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultRetention = 30 * 24 * time.Hour

func retention() time.Duration {
	v := os.Getenv("FLEET_MESSAGE_RETENTION")
	if v == "" {
		return defaultRetention
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid FLEET_MESSAGE_RETENTION, using default", "value", v)
		return defaultRetention
	}
	return d
}

func handler(ctx context.Context) (string, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return "no DATABASE_URL", nil
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Sprintf("parse: %v", err), nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Sprintf("pool: %v", err), nil
	}
	defer pool.Close()

	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	keep := retention()
	tag, err := pool.Exec(cctx, `
DELETE FROM fleet_messages fm
 USING fleets f
 WHERE fm.fleet_id = f.id
   AND f.fleet_time < now() - make_interval(secs => $1)`, keep.Seconds())
	if err != nil {
		slog.Error("prune fleet_messages", "err", err)
		return "", err
	}
	slog.Info("pruned fleet messages", "rows", tag.RowsAffected(), "retention", keep)
	return fmt.Sprintf("ok: %d", tag.RowsAffected()), nil
}

func main() { lambda.Start(handler) }
