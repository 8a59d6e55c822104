package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/jose-valero/timerboard-bot/internal/domain"
)

// Gateway es la vista REST de Discord que usan los servicios.
// Cada llamada espera al limiter y lleva su propio timeout.
type Gateway struct {
	s       *discordgo.Session
	limiter *rate.Limiter
	timeout time.Duration
}

func NewGateway(s *discordgo.Session, opts ...Option) *Gateway {
	g := &Gateway{
		s:       s,
		limiter: rate.NewLimiter(40, 10),
		timeout: 10 * time.Second,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Gateway) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	if err := g.limiter.Wait(ctx); err != nil {
		cancel()
		return nil, nil, err
	}
	return ctx, cancel, nil
}

func (g *Gateway) GetGuild(ctx context.Context, guildID string) (domain.Guild, error) {
	ctx, cancel, err := g.begin(ctx)
	if err != nil {
		return domain.Guild{}, err
	}
	defer cancel()
	dg, err := g.s.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return domain.Guild{}, wrapErr("get guild", err)
	}
	return toGuild(dg), nil
}

func (g *Gateway) GetRoles(ctx context.Context, guildID string) ([]domain.Role, error) {
	ctx, cancel, err := g.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	roles, err := g.s.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapErr("get roles", err)
	}
	out := make([]domain.Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, toRole(guildID, r))
	}
	return out, nil
}

func (g *Gateway) GetChannels(ctx context.Context, guildID string) ([]domain.Channel, error) {
	ctx, cancel, err := g.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	chans, err := g.s.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapErr("get channels", err)
	}
	out := make([]domain.Channel, 0, len(chans))
	for _, ch := range chans {
		out = append(out, toChannel(ch))
	}
	return out, nil
}

func (g *Gateway) GetMembers(ctx context.Context, guildID string, limit int, after string) (domain.MemberPage, error) {
	ctx, cancel, err := g.begin(ctx)
	if err != nil {
		return domain.MemberPage{}, err
	}
	defer cancel()
	members, err := g.s.GuildMembers(guildID, after, limit, discordgo.WithContext(ctx))
	if err != nil {
		return domain.MemberPage{}, wrapErr("list members", err)
	}
	return toMemberPage(guildID, members, limit), nil
}

// MemberDisplayName: nick del guild, nombre global o username.
func (g *Gateway) MemberDisplayName(ctx context.Context, guildID, userID string) (string, error) {
	ctx, cancel, err := g.begin(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()
	m, err := g.s.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", wrapErr("get member", err)
	}
	return displayName(m), nil
}

func (g *Gateway) SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) (string, error) {
	ctx, cancel, err := g.begin(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()
	m, err := g.s.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
	if err != nil {
		return "", wrapErr("send message", err)
	}
	return m.ID, nil
}

func (g *Gateway) EditMessage(ctx context.Context, edit *discordgo.MessageEdit) error {
	ctx, cancel, err := g.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	_, err = g.s.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return wrapErr("edit message", err)
}
