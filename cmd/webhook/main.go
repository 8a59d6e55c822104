// Lambda detrás de API Gateway: la app web publica acá los cambios de fleets
// y se reenvían al bot por pg_notify.
package main

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jose-valero/timerboard-bot/internal/domain"
	"github.com/jose-valero/timerboard-bot/internal/infra/pgevents"
)

type app struct {
	secret string
	notify func(ctx context.Context, ev domain.FleetEvent) error
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func readSecret(req events.APIGatewayV2HTTPRequest) string {
	// API Gateway v2 normaliza los headers a minúsculas
	for _, k := range []string{"x-timerboard-secret", "X-Timerboard-Secret"} {
		if v := req.Headers[k]; v != "" {
			return v
		}
	}
	return ""
}

func reply(code int, body string) events.APIGatewayV2HTTPResponse {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: code,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func (a *app) handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	slog.Info("webhook hit", "path", req.RawPath, "method", req.RequestContext.HTTP.Method, "ip", req.RequestContext.HTTP.SourceIP)

	got := readSecret(req)
	if a.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(a.secret)) != 1 {
		slog.Warn("unauthorized")
		return reply(401, `{"error":"unauthorized"}`), nil
	}

	body := req.Body
	if req.IsBase64Encoded {
		dec, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return reply(400, `{"error":"invalid base64"}`), nil
		}
		body = string(dec)
	}

	ev, err := pgevents.Decode(body)
	if err != nil {
		slog.Warn("invalid event", "err", err)
		return reply(400, fmt.Sprintf(`{"error":%q}`, err.Error())), nil
	}

	nctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := a.notify(nctx, ev); err != nil {
		// 5xx: API Gateway / el cliente reintentan
		slog.Error("notify", "fleet", ev.FleetID, "kind", ev.Kind, "err", err)
		return reply(502, `{"error":"notify failed"}`), nil
	}
	slog.Info("event forwarded", "fleet", ev.FleetID, "kind", ev.Kind)
	return reply(200, `{"ok":true}`), nil
}

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		slog.Error("DATABASE_URL empty")
		os.Exit(1)
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		slog.Error("pgx ParseConfig", "err", err)
		os.Exit(1)
	}
	cfg.MaxConns = 4
	cfg.MaxConnLifetime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	cancel()
	if err != nil {
		slog.Error("pgxpool New", "err", err)
		os.Exit(1)
	}

	channel := getenv("FLEET_EVENTS_CHANNEL", "fleet_events")
	a := &app{
		secret: strings.TrimSpace(os.Getenv("FLEET_EVENTS_SECRET")),
		notify: func(ctx context.Context, ev domain.FleetEvent) error {
			return pgevents.Notify(ctx, pool, channel, ev)
		},
	}
	lambda.Start(a.handler)
}
