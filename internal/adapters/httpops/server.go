package httpops

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jose-valero/timerboard-bot/internal/domain"
	"github.com/jose-valero/timerboard-bot/internal/infra/pgevents"
)

const SecretHeader = "X-Timerboard-Secret"

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	secret  string
	db      Pinger
	mux     *http.ServeMux
	log     *slog.Logger
	onFleet func(ctx context.Context, ev domain.FleetEvent) error
}

// New arma el server de operación. Con secret vacío o onFleet nil, POST /fleet-events no se registra.
func New(db Pinger, gatherer prometheus.Gatherer, secret string, onFleet func(ctx context.Context, ev domain.FleetEvent) error, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{secret: secret, db: db, mux: http.NewServeMux(), log: logger.With("svc", "http"), onFleet: onFleet}
	s.routes(gatherer)
	return s
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	if s.secret != "" && s.onFleet != nil {
		s.mux.HandleFunc("POST /fleet-events", s.handleFleetEvent)
	}
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		s.log.Warn("health: db ping failed", "err", err)
		http.Error(w, "db unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, "ok")
}

func (s *Server) handleFleetEvent(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(SecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) != 1 {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<16))
	_ = r.Body.Close()
	if err != nil {
		http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
		return
	}

	ev, err := pgevents.Decode(string(body))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.onFleet(r.Context(), ev); err != nil {
		s.log.Error("fleet event failed", "fleet", ev.FleetID, "kind", ev.Kind, "err", err)
		http.Error(w, "event failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Run sirve hasta que ctx se cancela.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	s.log.Info("http listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
