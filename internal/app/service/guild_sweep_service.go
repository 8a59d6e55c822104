package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"
	"golang.org/x/sync/errgroup"

	"github.com/jose-valero/timerboard-bot/internal/infra/metrics"
)

const DefaultSweepInterval = 5 * time.Minute

// Lo implementa GuildSyncService
type GuildSyncer interface {
	SyncGuild(ctx context.Context, guildID string) error
}

// SweepLimit reparte los guilds a lo largo de la ventana: cada barrida toma
// ceil(count * interval / window), con mínimo 1 si hay guilds.
func SweepLimit(count int, interval, window time.Duration) int {
	if count <= 0 || interval <= 0 || window <= 0 {
		return 0
	}
	n := int((int64(count)*int64(interval) + int64(window) - 1) / int64(window))
	if n < 1 {
		n = 1
	}
	if n > count {
		n = count
	}
	return n
}

type SweepReport struct {
	Selected int
	Synced   int
	Failed   int
	Skipped  int
}

type GuildSweepOptions struct {
	Clock    clock.Clock
	Interval time.Duration
	Window   time.Duration
	Workers  int
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// GuildSweepService elige los guilds vencidos y los sincroniza con un pool acotado.
// No guarda estado entre barridas: todo sale de last_sync_at.
type GuildSweepService struct {
	guilds   GuildRepo
	syncer   GuildSyncer
	clock    clock.Clock
	interval time.Duration
	window   time.Duration
	workers  int
	log      *slog.Logger
	m        *metrics.Metrics
}

func NewGuildSweepService(guilds GuildRepo, syncer GuildSyncer, opts GuildSweepOptions) *GuildSweepService {
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultSweepInterval
	}
	if opts.Window <= 0 {
		opts.Window = DefaultSyncWindow
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Discard()
	}
	return &GuildSweepService{
		guilds: guilds, syncer: syncer, clock: opts.Clock,
		interval: opts.Interval, window: opts.Window, workers: opts.Workers,
		log: opts.Logger.With("svc", "guild_sweep"), m: opts.Metrics,
	}
}

// RunSweep hace una barrida. Sólo devuelve error si no se pudo armar la selección.
func (s *GuildSweepService) RunSweep(ctx context.Context) (SweepReport, error) {
	var rep SweepReport
	now := s.clock.Now()

	count, err := s.guilds.Count(ctx)
	if err != nil {
		return rep, fmt.Errorf("count guilds: %w", err)
	}
	limit := SweepLimit(count, s.interval, s.window)
	if limit == 0 {
		return rep, nil
	}
	ids, err := s.guilds.ListStale(ctx, now.Add(-s.window), limit)
	if err != nil {
		return rep, fmt.Errorf("list stale guilds: %w", err)
	}
	rep.Selected = len(ids)
	s.m.SweepSelected.Set(float64(len(ids)))
	if len(ids) == 0 {
		return rep, nil
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.workers)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := s.syncer.SyncGuild(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				rep.Synced++
			case errors.Is(err, ErrSyncInProgress):
				rep.Skipped++
			default:
				rep.Failed++
				s.log.Error("guild sync failed", "guild", id, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info("sweep done", "guilds", count, "selected", rep.Selected, "synced", rep.Synced, "failed", rep.Failed, "skipped", rep.Skipped)
	return rep, ctx.Err()
}

// Run barre ahora y después cada interval hasta que se cancele ctx.
func (s *GuildSweepService) Run(ctx context.Context) {
	s.log.Info("guild sweeper started", "interval", s.interval, "window", s.window, "workers", s.workers)
	for {
		if _, err := s.RunSweep(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("sweep", "err", err)
		}
		select {
		case <-ctx.Done():
			s.log.Info("guild sweeper stopped")
			return
		case <-s.clock.After(s.interval):
		}
	}
}
