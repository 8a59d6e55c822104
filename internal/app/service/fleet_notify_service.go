package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/juju/clock"

	"github.com/jose-valero/timerboard-bot/internal/domain"
	"github.com/jose-valero/timerboard-bot/internal/infra/metrics"
	"github.com/jose-valero/timerboard-bot/internal/infra/storage"
)

type FleetNotifierOptions struct {
	AppURL  string
	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// FleetNotifier publica y edita los mensajes de cada etapa de un fleet.
// Los fallos por canal se loguean y no cortan el resto.
type FleetNotifier struct {
	gw         MessageGateway
	categories CategoryLookup
	fields     PingFormatFieldRepo
	messages   FleetMessageStore

	appURL string
	clock  clock.Clock
	log    *slog.Logger
	m      *metrics.Metrics
}

func NewFleetNotifier(gw MessageGateway, categories CategoryLookup, fields PingFormatFieldRepo, messages FleetMessageStore, opts FleetNotifierOptions) *FleetNotifier {
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Discard()
	}
	return &FleetNotifier{
		gw: gw, categories: categories, fields: fields, messages: messages,
		appURL: opts.AppURL, clock: opts.Clock,
		log: opts.Logger.With("svc", "fleet_notify"), m: opts.Metrics,
	}
}

// notifyData es lo que se lee fresco en cada transición.
type notifyData struct {
	details   domain.CategoryDetails
	guildID   string
	fields    []domain.PingFormatField
	commander string
}

func parseSnowflake(kind, id string) error {
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return fmt.Errorf("%w: %s %q", ErrInvalidSnowflake, kind, id)
	}
	return nil
}

func (n *FleetNotifier) category(ctx context.Context, f domain.Fleet) (domain.CategoryDetails, error) {
	d, err := n.categories.GetDetails(ctx, f.CategoryID)
	if errors.Is(err, storage.ErrNotFound) {
		return d, fmt.Errorf("%w: category %d (fleet %d)", ErrCategoryNotFound, f.CategoryID, f.ID)
	}
	if err != nil {
		return d, fmt.Errorf("get category %d: %w", f.CategoryID, err)
	}
	if err := parseSnowflake("guild", d.Category.GuildID); err != nil {
		return d, err
	}
	return d, nil
}

func (n *FleetNotifier) load(ctx context.Context, f domain.Fleet) (notifyData, error) {
	d, err := n.category(ctx, f)
	if err != nil {
		return notifyData{}, err
	}
	if d.PingFormat == nil {
		return notifyData{}, fmt.Errorf("%w: category %d", ErrPingFormatNotFound, d.Category.ID)
	}
	for _, r := range d.PingRoles {
		if err := parseSnowflake("role", r.RoleID); err != nil {
			return notifyData{}, err
		}
	}
	for _, ch := range d.Channels {
		if err := parseSnowflake("channel", ch.ChannelID); err != nil {
			return notifyData{}, err
		}
	}
	fields, err := n.fields.ListFields(ctx, d.PingFormat.ID)
	if err != nil {
		return notifyData{}, fmt.Errorf("ping format fields %d: %w", d.PingFormat.ID, err)
	}
	guildID := d.Category.GuildID
	return notifyData{
		details:   d,
		guildID:   guildID,
		fields:    fields,
		commander: n.displayName(ctx, guildID, f.CommanderID),
	}, nil
}

// displayName: nick actual en el guild; si Discord falla, una mención.
func (n *FleetNotifier) displayName(ctx context.Context, guildID, userID string) string {
	name, err := n.gw.MemberDisplayName(ctx, guildID, userID)
	if err != nil || name == "" {
		n.log.Warn("display name lookup failed", "guild", guildID, "user", userID, "err", err)
		return "<@" + userID + ">"
	}
	return name
}

func (n *FleetNotifier) embed(f domain.Fleet, nd notifyData, values map[int64]string, color int) *discordgo.MessageEmbed {
	return fleetEmbed(embedInput{
		fleet:     f,
		commander: nd.commander,
		fields:    nd.fields,
		values:    values,
		appURL:    n.appURL,
		now:       n.clock.Now(),
	}, color)
}

func validateChain(chain domain.MessageChain) error {
	for _, m := range chain {
		if err := parseSnowflake("channel", m.ChannelID); err != nil {
			return err
		}
		if err := parseSnowflake("message", m.MessageID); err != nil {
			return err
		}
	}
	return nil
}

// send publica en un canal y guarda el vínculo sólo si Discord lo aceptó.
// Devuelve error únicamente si falla el guardado.
func (n *FleetNotifier) send(ctx context.Context, f domain.Fleet, typ domain.MessageType, channelID string, msg *discordgo.MessageSend) error {
	id, err := n.gw.SendMessage(ctx, channelID, msg)
	if err != nil {
		n.m.FleetMessages.WithLabelValues(string(typ), "failed").Inc()
		n.log.Error("send fleet message", "fleet", f.ID, "type", typ, "channel", channelID, "err", err)
		return nil
	}
	n.m.FleetMessages.WithLabelValues(string(typ), "sent").Inc()
	if _, err := n.messages.Create(ctx, domain.FleetMessage{
		FleetID:   f.ID,
		ChannelID: channelID,
		MessageID: id,
		Type:      typ,
	}); err != nil {
		return fmt.Errorf("record %s message %s in channel %s: %w", typ, id, channelID, err)
	}
	n.log.Info("fleet message posted", "fleet", f.ID, "type", typ, "channel", channelID, "message", id)
	return nil
}

func (n *FleetNotifier) edit(ctx context.Context, f domain.Fleet, label string, e *discordgo.MessageEdit) {
	if err := n.gw.EditMessage(ctx, e); err != nil {
		n.m.FleetMessages.WithLabelValues(label, "failed").Inc()
		n.log.Error("edit fleet message", "fleet", f.ID, "op", label, "channel", e.Channel, "message", e.ID, "err", err)
		return
	}
	n.m.FleetMessages.WithLabelValues(label, "sent").Inc()
}

func reply(channelID, messageID string) *discordgo.MessageReference {
	return &discordgo.MessageReference{ChannelID: channelID, MessageID: messageID}
}

// PostCreation anuncia el fleet en todos los canales de la categoría. Los fleets ocultos no se anuncian.
func (n *FleetNotifier) PostCreation(ctx context.Context, f domain.Fleet, values map[int64]string) error {
	if f.Hidden {
		n.log.Debug("fleet hidden, skipping creation post", "fleet", f.ID)
		return nil
	}
	nd, err := n.load(ctx, f)
	if err != nil {
		return err
	}
	content := pingContent(creationTitle(nd.details.Category.Name), nd.guildID, nd.details.PingRoles)
	embed := n.embed(f, nd, values, colorCreation)

	var errs []error
	for _, ch := range nd.details.Channels {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		msg := &discordgo.MessageSend{Content: content, Embeds: []*discordgo.MessageEmbed{embed}}
		if err := n.send(ctx, f, domain.MessageCreation, ch.ChannelID, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PostReminder responde al anuncio de cada canal. Si el canal no tiene anuncio
// (fleet oculto) el recordatorio sale suelto y con el título de anuncio.
func (n *FleetNotifier) PostReminder(ctx context.Context, f domain.Fleet, values map[int64]string) error {
	if f.DisableReminder {
		n.log.Debug("reminders disabled for fleet", "fleet", f.ID)
		return nil
	}
	chain, err := n.messages.GetByFleet(ctx, f.ID)
	if err != nil {
		return fmt.Errorf("fleet messages %d: %w", f.ID, err)
	}
	if err := validateChain(chain); err != nil {
		return err
	}
	nd, err := n.load(ctx, f)
	if err != nil {
		return err
	}
	cat := nd.details.Category.Name
	embed := n.embed(f, nd, values, colorReminder)

	var errs []error
	for _, ch := range nd.details.Channels {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		msg := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
		if prev, ok := chain.Latest(ch.ChannelID, domain.MessageCreation); ok {
			msg.Content = pingContent(reminderTitle(cat), nd.guildID, nd.details.PingRoles)
			msg.Reference = reply(ch.ChannelID, prev.MessageID)
		} else {
			msg.Content = pingContent(creationTitle(cat), nd.guildID, nd.details.PingRoles)
		}
		if err := n.send(ctx, f, domain.MessageReminder, ch.ChannelID, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PostFormup responde al último mensaje de cada canal. Sin mensajes previos no hay form-up.
func (n *FleetNotifier) PostFormup(ctx context.Context, f domain.Fleet, values map[int64]string) error {
	chain, err := n.messages.GetByFleet(ctx, f.ID)
	if err != nil {
		return fmt.Errorf("fleet messages %d: %w", f.ID, err)
	}
	if len(chain) == 0 {
		n.log.Warn("no prior messages, skipping formup", "fleet", f.ID)
		return nil
	}
	if err := validateChain(chain); err != nil {
		return err
	}
	nd, err := n.load(ctx, f)
	if err != nil {
		return err
	}
	content := pingContent(formupTitle(nd.details.Category.Name), nd.guildID, nd.details.PingRoles)
	embed := n.embed(f, nd, values, colorFormup)

	var errs []error
	for _, ch := range nd.details.Channels {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		prev, ok := chain.Latest(ch.ChannelID)
		if !ok {
			n.log.Warn("no prior message in channel, skipping formup", "fleet", f.ID, "channel", ch.ChannelID)
			continue
		}
		msg := &discordgo.MessageSend{
			Content:   content,
			Embeds:    []*discordgo.MessageEmbed{embed},
			Reference: reply(ch.ChannelID, prev.MessageID),
		}
		if err := n.send(ctx, f, domain.MessageFormup, ch.ChannelID, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// UpdateMessages re-renderiza el embed en cada mensaje ya publicado. El contenido no se toca.
func (n *FleetNotifier) UpdateMessages(ctx context.Context, f domain.Fleet, values map[int64]string) error {
	chain, err := n.messages.GetByFleet(ctx, f.ID)
	if err != nil {
		return fmt.Errorf("fleet messages %d: %w", f.ID, err)
	}
	if len(chain) == 0 {
		n.log.Debug("no messages to update", "fleet", f.ID)
		return nil
	}
	if err := validateChain(chain); err != nil {
		return err
	}
	nd, err := n.load(ctx, f)
	if err != nil {
		return err
	}
	embeds := []*discordgo.MessageEmbed{n.embed(f, nd, values, colorCreation)}

	for _, m := range chain {
		if err := ctx.Err(); err != nil {
			return err
		}
		n.edit(ctx, f, "update", &discordgo.MessageEdit{Channel: m.ChannelID, ID: m.MessageID, Embeds: &embeds})
	}
	return nil
}

// Cancel reemplaza cada mensaje por el aviso de cancelación. cancelledBy vacío => el FC.
func (n *FleetNotifier) Cancel(ctx context.Context, f domain.Fleet, cancelledBy string) error {
	chain, err := n.messages.GetByFleet(ctx, f.ID)
	if err != nil {
		return fmt.Errorf("fleet messages %d: %w", f.ID, err)
	}
	if len(chain) == 0 {
		n.log.Debug("no messages to cancel", "fleet", f.ID)
		return nil
	}
	if err := validateChain(chain); err != nil {
		return err
	}
	d, err := n.category(ctx, f)
	if err != nil {
		return err
	}
	if cancelledBy == "" {
		cancelledBy = f.CommanderID
	}
	by := n.displayName(ctx, d.Category.GuildID, cancelledBy)
	embeds := []*discordgo.MessageEmbed{cancelEmbed(d.Category.Name, f, by, n.clock.Now())}
	empty := ""

	for _, m := range chain {
		if err := ctx.Err(); err != nil {
			return err
		}
		n.edit(ctx, f, "cancel", &discordgo.MessageEdit{Channel: m.ChannelID, ID: m.MessageID, Content: &empty, Embeds: &embeds})
	}
	return nil
}
