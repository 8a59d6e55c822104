package config

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL  string
	DiscordToken string
	AppURL       string // base de los links en los embeds, opcional
	HTTPAddr     string // opcional, default :8080
	LogLevel     slog.Level
	AdminRoleIDs []string

	// sync de guilds
	GuildSyncWindow   time.Duration
	GuildSyncInterval time.Duration
	GuildSyncWorkers  int
	MemberPageSize    int

	// Discord REST
	DiscordTimeout time.Duration
	DiscordRPS     float64

	// fleets
	FleetTimerInterval    time.Duration
	FormupMaxLag          time.Duration
	FleetEventsChannel    string
	FleetEventsSecret     string // opcional; sin secreto no se expone POST /fleet-events
	FleetMessageRetention time.Duration
}

// Load lee el entorno y corta el proceso si falta algo.
func Load() Config {
	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// FromEnv arma la config a partir de getenv; junta todos los errores.
func FromEnv(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}

	cfg := Config{
		DatabaseURL:  p.str("DATABASE_URL", "", true),
		DiscordToken: p.str("DISCORD_BOT_TOKEN", "", true),
		AppURL:       strings.TrimRight(p.str("APP_URL", "", false), "/"),
		HTTPAddr:     p.str("HTTP_ADDR", ":8080", false),
		LogLevel:     p.level("LOG_LEVEL", slog.LevelInfo),
		AdminRoleIDs: p.list("ADMIN_ROLE_IDS"),

		GuildSyncWindow:   p.dur("GUILD_SYNC_WINDOW", 30*time.Minute),
		GuildSyncInterval: p.dur("GUILD_SYNC_CHECK_INTERVAL", 5*time.Minute),
		GuildSyncWorkers:  p.integer("GUILD_SYNC_WORKERS", 4),
		MemberPageSize:    p.integer("MEMBER_PAGE_SIZE", 1000),

		DiscordTimeout: p.dur("DISCORD_TIMEOUT", 10*time.Second),
		DiscordRPS:     p.rate("DISCORD_RPS", 40),

		FleetTimerInterval:    p.dur("FLEET_TIMER_INTERVAL", time.Minute),
		FormupMaxLag:          p.dur("FORMUP_MAX_LAG", 15*time.Minute),
		FleetEventsChannel:    p.str("FLEET_EVENTS_CHANNEL", "fleet_events", false),
		FleetEventsSecret:     p.str("FLEET_EVENTS_SECRET", "", false),
		FleetMessageRetention: p.dur("FLEET_MESSAGE_RETENTION", 720*time.Hour),
	}

	if cfg.MemberPageSize < 1 || cfg.MemberPageSize > 1000 {
		p.errs = append(p.errs, fmt.Errorf("MEMBER_PAGE_SIZE must be between 1 and 1000, got %d", cfg.MemberPageSize))
	}
	if cfg.GuildSyncWorkers < 1 {
		p.errs = append(p.errs, fmt.Errorf("GUILD_SYNC_WORKERS must be positive, got %d", cfg.GuildSyncWorkers))
	}
	if cfg.GuildSyncInterval > cfg.GuildSyncWindow {
		p.errs = append(p.errs, fmt.Errorf("GUILD_SYNC_CHECK_INTERVAL (%s) is longer than GUILD_SYNC_WINDOW (%s)", cfg.GuildSyncInterval, cfg.GuildSyncWindow))
	}
	return cfg, errors.Join(p.errs...)
}

// BotToken agrega el prefijo "Bot " si falta.
func (c Config) BotToken() string {
	t := strings.TrimSpace(c.DiscordToken)
	if strings.HasPrefix(strings.ToLower(t), "bot ") {
		return t
	}
	return "Bot " + t
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) str(k, def string, required bool) string {
	v := strings.TrimSpace(p.getenv(k))
	if v == "" {
		if required {
			p.errs = append(p.errs, fmt.Errorf("faltante env %s", k))
		}
		return def
	}
	return v
}

func (p *parser) dur(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(p.getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", k, v))
		return def
	}
	return d
}

func (p *parser) integer(k string, def int) int {
	v := strings.TrimSpace(p.getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", k, v))
		return def
	}
	return n
}

func (p *parser) rate(k string, def float64) float64 {
	v := strings.TrimSpace(p.getenv(k))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid rate %q", k, v))
		return def
	}
	return f
}

func (p *parser) level(k string, def slog.Level) slog.Level {
	v := strings.TrimSpace(p.getenv(k))
	if v == "" {
		return def
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid level %q", k, v))
		return def
	}
	return l
}

// list: ids separados por coma, espacios ignorados.
func (p *parser) list(k string) []string {
	var out []string
	for _, s := range strings.Split(p.getenv(k), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
