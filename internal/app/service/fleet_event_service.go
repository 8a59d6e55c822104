package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jose-valero/timerboard-bot/internal/domain"
	"github.com/jose-valero/timerboard-bot/internal/infra/metrics"
	"github.com/jose-valero/timerboard-bot/internal/infra/storage"
)

// FleetEventService traduce los eventos de la app web (pg_notify) a transiciones.
type FleetEventService struct {
	fleets   FleetRepo
	notifier FleetTransitions
	log      *slog.Logger
	m        *metrics.Metrics
}

func NewFleetEventService(fleets FleetRepo, notifier FleetTransitions, logger *slog.Logger, m *metrics.Metrics) *FleetEventService {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &FleetEventService{fleets: fleets, notifier: notifier, log: logger.With("svc", "fleet_events"), m: m}
}

func (s *FleetEventService) Handle(ctx context.Context, ev domain.FleetEvent) error {
	err := s.handle(ctx, ev)
	result := "ok"
	if err != nil {
		result = "failed"
	}
	s.m.FleetEvents.WithLabelValues(string(ev.Kind), result).Inc()
	return err
}

func (s *FleetEventService) handle(ctx context.Context, ev domain.FleetEvent) error {
	f, err := s.fleets.Get(ctx, ev.FleetID)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.Warn("event for unknown fleet", "fleet", ev.FleetID, "kind", ev.Kind)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get fleet %d: %w", ev.FleetID, err)
	}

	if ev.Kind == domain.FleetCancelled {
		// marcar antes de editar: los timers ya no lo toman
		first, err := s.fleets.MarkCancelled(ctx, f.ID)
		if err != nil {
			return fmt.Errorf("mark fleet %d cancelled: %w", f.ID, err)
		}
		if !first {
			s.log.Debug("fleet already cancelled, re-editing messages", "fleet", f.ID)
		}
		return s.notifier.Cancel(ctx, f, ev.ActorID)
	}

	values, err := s.fleets.FieldValues(ctx, f.ID)
	if err != nil {
		return fmt.Errorf("fleet field values %d: %w", f.ID, err)
	}
	switch ev.Kind {
	case domain.FleetCreated:
		return s.notifier.PostCreation(ctx, f, values)
	case domain.FleetUpdated:
		return s.notifier.UpdateMessages(ctx, f, values)
	default:
		return fmt.Errorf("unknown fleet event kind %q", ev.Kind)
	}
}
