package pgevents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/juju/clock"

	"github.com/jose-valero/timerboard-bot/internal/domain"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

type Handler func(ctx context.Context, ev domain.FleetEvent) error

// Listener escucha un canal de LISTEN/NOTIFY y entrega cada evento de fleet al handler.
// Si se cae la conexión vuelve a escuchar con backoff.
type Listener struct {
	pool    *pgxpool.Pool
	channel string
	handle  Handler
	clock   clock.Clock
	log     *slog.Logger
}

func New(pool *pgxpool.Pool, channel string, handle Handler, clk clock.Clock, logger *slog.Logger) *Listener {
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{pool: pool, channel: channel, handle: handle, clock: clk, log: logger.With("svc", "pgevents", "channel", channel)}
}

// Run bloquea hasta que se cancele ctx.
func (l *Listener) Run(ctx context.Context) {
	backoff := minBackoff
	for {
		err := l.listen(ctx, func() { backoff = minBackoff })
		if ctx.Err() != nil {
			return
		}
		l.log.Error("listen failed, retrying", "err", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return
		case <-l.clock.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (l *Listener) listen(ctx context.Context, connected func()) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	// que la conexión vuelva al pool limpia
	defer func() {
		unlistenCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(unlistenCtx, "UNLISTEN *")
	}()
	connected()
	l.log.Info("listening for fleet events")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait: %w", err)
		}
		ev, err := Decode(n.Payload)
		if err != nil {
			l.log.Warn("bad fleet event payload", "payload", n.Payload, "err", err)
			continue
		}
		if err := l.handle(ctx, ev); err != nil {
			l.log.Error("fleet event failed", "fleet", ev.FleetID, "kind", ev.Kind, "err", err)
		}
	}
}

// Decode valida el payload de pg_notify.
func Decode(payload string) (domain.FleetEvent, error) {
	var ev domain.FleetEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ev, err
	}
	if ev.FleetID <= 0 {
		return ev, fmt.Errorf("missing fleet_id")
	}
	switch ev.Kind {
	case domain.FleetCreated, domain.FleetUpdated, domain.FleetCancelled:
	default:
		return ev, fmt.Errorf("unknown kind %q", ev.Kind)
	}
	return ev, nil
}

// Notify publica un evento; lo usa la app web (y los tests).
func Notify(ctx context.Context, pool *pgxpool.Pool, channel string, ev domain.FleetEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, "SELECT pg_notify($1, $2)", channel, string(b))
	return err
}
