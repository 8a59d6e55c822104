package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	discordrouter "github.com/jose-valero/timerboard-bot/internal/adapters/discord"
	"github.com/jose-valero/timerboard-bot/internal/adapters/httpops"
	"github.com/jose-valero/timerboard-bot/internal/app/service"
	"github.com/jose-valero/timerboard-bot/internal/infra/config"
	"github.com/jose-valero/timerboard-bot/internal/infra/metrics"
	"github.com/jose-valero/timerboard-bot/internal/infra/pgevents"
	"github.com/jose-valero/timerboard-bot/internal/infra/storage"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := storage.Migrate(ctx, db); err != nil {
		log.Fatal("migrate:", err)
	}
	logger.Info("db ready")

	// pool aparte para LISTEN (conexión dedicada)
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("pgxpool:", err)
	}
	defer pool.Close()

	// Repos
	guildsRepo := storage.NewGuildRepo(db)
	rolesRepo := storage.NewRoleRepo(db)
	channelsRepo := storage.NewChannelRepo(db)
	membersRepo := storage.NewMemberRepo(db)
	usersRepo := storage.NewUserRepo(db)
	categoriesRepo := storage.NewCategoryRepo(db)
	formatsRepo := storage.NewPingFormatRepo(db)
	fleetsRepo := storage.NewFleetRepo(db)
	messagesRepo := storage.NewFleetMessageRepo(db)

	// Métricas
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Discord session
	s, err := discordgo.New(cfg.BotToken())
	if err != nil {
		log.Fatal(err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	gw := discordrouter.NewGateway(s,
		discordrouter.WithTimeout(cfg.DiscordTimeout),
		discordrouter.WithRate(cfg.DiscordRPS, 10),
	)

	// Services
	clk := clock.WallClock
	userRoles := service.NewUserRoleService(usersRepo, clk, logger)
	guildSync := service.NewGuildSyncService(gw, guildsRepo, rolesRepo, channelsRepo, membersRepo, userRoles, service.GuildSyncOptions{
		Clock:    clk,
		Window:   cfg.GuildSyncWindow,
		PageSize: cfg.MemberPageSize,
		Logger:   logger,
		Metrics:  m,
	})
	sweeper := service.NewGuildSweepService(guildsRepo, guildSync, service.GuildSweepOptions{
		Clock:    clk,
		Interval: cfg.GuildSyncInterval,
		Window:   cfg.GuildSyncWindow,
		Workers:  cfg.GuildSyncWorkers,
		Logger:   logger,
		Metrics:  m,
	})
	notifier := service.NewFleetNotifier(gw, categoriesRepo, formatsRepo, messagesRepo, service.FleetNotifierOptions{
		AppURL:  cfg.AppURL,
		Clock:   clk,
		Logger:  logger,
		Metrics: m,
	})
	timers := service.NewFleetTimerService(fleetsRepo, notifier, clk, cfg.FleetTimerInterval, cfg.FormupMaxLag, logger)
	fleetEvents := service.NewFleetEventService(fleetsRepo, notifier, logger, m)

	// Router: los handlers van antes de Open para no perder los GUILD_CREATE iniciales
	r := discordrouter.NewRouter(s, guildSync, cfg.AdminRoleIDs, clk, logger)
	r.Handlers()
	if err := s.Open(); err != nil {
		log.Fatal(err)
	}
	defer s.Close()
	logger.Info("discord connected", "user", s.State.User.Username, "id", s.State.User.ID)

	if err := r.Register(); err != nil {
		log.Fatalf("registrando comandos: %v", err)
	}
	logger.Info("commands registered")

	go sweeper.Run(ctx)
	go timers.Run(ctx)
	go pgevents.New(pool, cfg.FleetEventsChannel, fleetEvents.Handle, clk, logger).Run(ctx)

	web := httpops.New(db, reg, cfg.FleetEventsSecret, fleetEvents.Handle, logger)
	go func() {
		if err := web.Run(ctx, cfg.HTTPAddr); err != nil {
			logger.Error("http server", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
}
