package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/clock"

	"github.com/jose-valero/timerboard-bot/internal/domain"
)

// Lo implementa FleetNotifier
type FleetTransitions interface {
	PostCreation(ctx context.Context, f domain.Fleet, values map[int64]string) error
	PostReminder(ctx context.Context, f domain.Fleet, values map[int64]string) error
	PostFormup(ctx context.Context, f domain.Fleet, values map[int64]string) error
	UpdateMessages(ctx context.Context, f domain.Fleet, values map[int64]string) error
	Cancel(ctx context.Context, f domain.Fleet, cancelledBy string) error
}

const (
	DefaultTimerInterval = time.Minute
	DefaultFormupMaxLag  = 15 * time.Minute
)

// FleetTimerService dispara recordatorios y form-ups vencidos.
// Cada etapa se reclama en la base antes de publicar: como mucho una vez.
type FleetTimerService struct {
	fleets   FleetRepo
	notifier FleetTransitions
	clock    clock.Clock
	interval time.Duration
	maxLag   time.Duration
	log      *slog.Logger
}

func NewFleetTimerService(fleets FleetRepo, notifier FleetTransitions, clk clock.Clock, interval, maxLag time.Duration, logger *slog.Logger) *FleetTimerService {
	if clk == nil {
		clk = clock.WallClock
	}
	if interval <= 0 {
		interval = DefaultTimerInterval
	}
	if maxLag <= 0 {
		maxLag = DefaultFormupMaxLag
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FleetTimerService{
		fleets: fleets, notifier: notifier, clock: clk,
		interval: interval, maxLag: maxLag, log: logger.With("svc", "fleet_timers"),
	}
}

// Tick procesa lo vencido a ahora. Devuelve cuántas etapas publicó.
func (s *FleetTimerService) Tick(ctx context.Context) (int, error) {
	now := s.clock.Now()
	posted := 0

	reminders, err := s.fleets.ListDueReminders(ctx, now)
	if err != nil {
		return posted, fmt.Errorf("due reminders: %w", err)
	}
	for _, f := range reminders {
		if s.fire(ctx, f, domain.MessageReminder, s.fleets.ClaimReminder, s.notifier.PostReminder) {
			posted++
		}
	}

	formups, err := s.fleets.ListDueFormups(ctx, now, now.Add(-s.maxLag))
	if err != nil {
		return posted, fmt.Errorf("due formups: %w", err)
	}
	for _, f := range formups {
		if s.fire(ctx, f, domain.MessageFormup, s.fleets.ClaimFormup, s.notifier.PostFormup) {
			posted++
		}
	}
	return posted, nil
}

func (s *FleetTimerService) fire(
	ctx context.Context,
	f domain.Fleet,
	typ domain.MessageType,
	claim func(context.Context, int64) (bool, error),
	post func(context.Context, domain.Fleet, map[int64]string) error,
) bool {
	if ctx.Err() != nil {
		return false
	}
	ok, err := claim(ctx, f.ID)
	if err != nil {
		s.log.Error("claim fleet transition", "fleet", f.ID, "type", typ, "err", err)
		return false
	}
	if !ok {
		return false
	}
	values, err := s.fleets.FieldValues(ctx, f.ID)
	if err != nil {
		s.log.Error("fleet field values", "fleet", f.ID, "err", err)
		return false
	}
	if err := post(ctx, f, values); err != nil {
		s.log.Error("fleet transition failed", "fleet", f.ID, "type", typ, "err", err)
		return false
	}
	return true
}

func (s *FleetTimerService) Run(ctx context.Context) {
	s.log.Info("fleet timers started", "interval", s.interval, "formup_max_lag", s.maxLag)
	for {
		if n, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("fleet timers tick", "err", err)
		} else if n > 0 {
			s.log.Info("fleet timers tick", "posted", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(s.interval):
		}
	}
}
