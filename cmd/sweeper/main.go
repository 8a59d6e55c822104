// Lambda programada: una barrida de sync de guilds por REST, sin gateway.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/bwmarrin/discordgo"
	"github.com/juju/clock"

	discordrouter "github.com/jose-valero/timerboard-bot/internal/adapters/discord"
	"github.com/jose-valero/timerboard-bot/internal/app/service"
	"github.com/jose-valero/timerboard-bot/internal/infra/config"
	"github.com/jose-valero/timerboard-bot/internal/infra/storage"
)

var (
	cfg config.Config
	db  *sql.DB
	s   *discordgo.Session
)

func init() {
	var err error
	cfg, err = config.FromEnv(os.Getenv)
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	db, err = storage.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("db", "err", err)
		os.Exit(1)
	}
	s, err = discordgo.New(cfg.BotToken())
	if err != nil {
		slog.Error("discord session", "err", err)
		os.Exit(1)
	}
}

func handler(ctx context.Context) (string, error) {
	gw := discordrouter.NewGateway(s,
		discordrouter.WithTimeout(cfg.DiscordTimeout),
		discordrouter.WithRate(cfg.DiscordRPS, 10),
	)
	guilds := storage.NewGuildRepo(db)
	userRoles := service.NewUserRoleService(storage.NewUserRepo(db), clock.WallClock, nil)
	syncer := service.NewGuildSyncService(gw, guilds,
		storage.NewRoleRepo(db), storage.NewChannelRepo(db), storage.NewMemberRepo(db), userRoles,
		service.GuildSyncOptions{Window: cfg.GuildSyncWindow, PageSize: cfg.MemberPageSize},
	)
	sweeper := service.NewGuildSweepService(guilds, syncer, service.GuildSweepOptions{
		Interval: cfg.GuildSyncInterval,
		Window:   cfg.GuildSyncWindow,
		Workers:  cfg.GuildSyncWorkers,
	})

	rep, err := sweeper.RunSweep(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("selected=%d synced=%d failed=%d skipped=%d", rep.Selected, rep.Synced, rep.Failed, rep.Skipped), nil
}

func main() { lambda.Start(handler) }
