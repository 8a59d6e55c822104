package discord

import (
	"time"

	"golang.org/x/time/rate"
)

type Option func(*Gateway)

// WithTimeout acota cada llamada REST.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.timeout = d }
}

// WithRate limita las llamadas por segundo del bot (todas las rutas).
func WithRate(rps float64, burst int) Option {
	return func(g *Gateway) { g.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}
