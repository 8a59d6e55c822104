package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	qt "github.com/frankban/quicktest"
	"github.com/juju/clock/testclock"

	"github.com/jose-valero/timerboard-bot/internal/domain"
)

const (
	testGuild    = "111111111111111111"
	testCategory = int64(7)
	testFormat   = int64(3)
)

type notifyFixture struct {
	n        *FleetNotifier
	gw       *fakeMessenger
	cats     memCategories
	fields   memFields
	messages *memMessages
	fleet    domain.Fleet
}

func newNotifyFixture(channels ...string) *notifyFixture {
	now := time.Date(2025, 12, 1, 18, 0, 0, 0, time.UTC)
	desc := "Bring ammo"
	defHull := "Any"

	var chans []domain.Channel
	for _, id := range channels {
		chans = append(chans, domain.Channel{ChannelID: id, GuildID: testGuild, Kind: domain.ChannelKindText})
	}
	fid := testFormat
	cats := memCategories{
		testCategory: {
			Category:   domain.Category{ID: testCategory, GuildID: testGuild, Name: "Stratop", PingFormatID: &fid},
			PingFormat: &domain.PingFormat{ID: testFormat, GuildID: testGuild, Name: "default"},
			PingRoles:  []domain.Role{{RoleID: "222222222222222222", GuildID: testGuild}},
			Channels:   chans,
		},
	}
	fields := memFields{
		testFormat: {
			{ID: 2, PingFormatID: testFormat, Name: "Doctrine", Priority: 2},
			{ID: 1, PingFormatID: testFormat, Name: "Staging", Priority: 1},
			{ID: 3, PingFormatID: testFormat, Name: "Hull", Priority: 3, DefaultValue: &defHull},
		},
	}
	gw := newFakeMessenger()
	gw.names["333333333333333333"] = "Commander Shepard"
	gw.names["444444444444444444"] = "Director"

	f := domain.Fleet{
		ID:          42,
		CategoryID:  testCategory,
		Name:        "Sunday Stratop",
		CommanderID: "333333333333333333",
		FleetTime:   time.Date(2025, 12, 7, 19, 30, 0, 0, time.UTC),
		Description: &desc,
	}
	msgs := newMemMessages(f.ID)
	n := NewFleetNotifier(gw, cats, fields, msgs, FleetNotifierOptions{AppURL: "https://timers.example.org/", Clock: testclock.NewClock(now)})
	return &notifyFixture{n: n, gw: gw, cats: cats, fields: fields, messages: msgs, fleet: f}
}

var testValues = map[int64]string{1: "Jita 4-4", 2: "Shield Cerbs"}

func TestPostCreationFanOutSurvivesChannelFailure(t *testing.T) {
	c := qt.New(t)
	fx := newNotifyFixture("100000000000000001", "100000000000000002", "100000000000000003")
	fx.gw.failSend["100000000000000002"] = true

	err := fx.n.PostCreation(context.Background(), fx.fleet, testValues)
	c.Assert(err, qt.IsNil)

	rows := fx.messages.byType(domain.MessageCreation)
	c.Assert(rows, qt.HasLen, 2)
	c.Assert(rows[0].ChannelID, qt.Equals, "100000000000000001")
	c.Assert(rows[1].ChannelID, qt.Equals, "100000000000000003")
	c.Assert(rows[0].MessageID, qt.Equals, fx.gw.sent[0].id)
}

func TestPostCreationContentAndEmbed(t *testing.T) {
	c := qt.New(t)
	fx := newNotifyFixture("100000000000000001")

	c.Assert(fx.n.PostCreation(context.Background(), fx.fleet, testValues), qt.IsNil)
	c.Assert(fx.gw.sent, qt.HasLen, 1)

	msg := fx.gw.sent[0].msg
	c.Assert(msg.Content, qt.Equals, "**.:New Upcoming Stratop:.**\n\n<@&222222222222222222>")
	c.Assert(msg.Reference, qt.IsNil)
	c.Assert(msg.Embeds, qt.HasLen, 1)

	e := msg.Embeds[0]
	c.Assert(e.Title, qt.Equals, "Sunday Stratop")
	c.Assert(e.URL, qt.Equals, "https://timers.example.org/fleets/42")
	c.Assert(e.Color, qt.Equals, 0x3498db)
	c.Assert(e.Description, qt.Equals, "Bring ammo")

	var names []string
	for _, f := range e.Fields {
		names = append(names, f.Name)
	}
	c.Assert(names, qt.DeepEquals, []string{"FC", "Time", "Staging", "Doctrine", "Hull"})
	c.Assert(e.Fields[0].Value, qt.Equals, "Commander Shepard")
	c.Assert(e.Fields[1].Value, qt.Equals, "<t:1765135800:F> (<t:1765135800:R>)")
	c.Assert(e.Fields[4].Value, qt.Equals, "Any")
}

func TestPostCreationEveryoneMention(t *testing.T) {
	c := qt.New(t)
	fx := newNotifyFixture("100000000000000001")
	d := fx.cats[testCategory]
	d.PingRoles = []domain.Role{{RoleID: testGuild, GuildID: testGuild}, {RoleID: "555555555555555555", GuildID: testGuild}}
	fx.cats[testCategory] = d

	c.Assert(fx.n.PostCreation(context.Background(), fx.fleet, nil), qt.IsNil)
	content := fx.gw.sent[0].msg.Content
	c.Assert(strings.HasSuffix(content, "@everyone <@&555555555555555555>"), qt.IsTrue)
	c.Assert(strings.Contains(content, "<@&"+testGuild+">"), qt.IsFalse)
}

func TestHiddenFleetThenStandaloneReminder(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	fx := newNotifyFixture("100000000000000001")
	fx.fleet.Hidden = true

	c.Assert(fx.n.PostCreation(ctx, fx.fleet, testValues), qt.IsNil)
	c.Assert(fx.gw.sent, qt.HasLen, 0)
	chain, _ := fx.messages.GetByFleet(ctx, fx.fleet.ID)
	c.Assert(chain, qt.HasLen, 0)

	c.Assert(fx.n.PostReminder(ctx, fx.fleet, testValues), qt.IsNil)
	c.Assert(fx.gw.sent, qt.HasLen, 1)
	msg := fx.gw.sent[0].msg
	c.Assert(msg.Reference, qt.IsNil)
	c.Assert(strings.HasPrefix(msg.Content, "**.:New Upcoming Stratop:.**"), qt.IsTrue)
	c.Assert(msg.Embeds[0].Color, qt.Equals, 0xf39c12)
	c.Assert(fx.messages.byType(domain.MessageReminder), qt.HasLen, 1)
}

func TestPostReminderRepliesToCreation(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	fx := newNotifyFixture("100000000000000001")

	c.Assert(fx.n.PostCreation(ctx, fx.fleet, testValues), qt.IsNil)
	c.Assert(fx.n.PostReminder(ctx, fx.fleet, testValues), qt.IsNil)

	c.Assert(fx.gw.sent, qt.HasLen, 2)
	rem := fx.gw.sent[1].msg
	c.Assert(strings.HasPrefix(rem.Content, "**.:Reminder - Upcoming Stratop:.**"), qt.IsTrue)
	c.Assert(rem.Reference, qt.DeepEquals, &discordgo.MessageReference{
		ChannelID: "100000000000000001",
		MessageID: fx.gw.sent[0].id,
	})
}

func TestPostReminderDisabled(t *testing.T) {
	c := qt.New(t)
	fx := newNotifyFixture("100000000000000001")
	fx.fleet.DisableReminder = true

	c.Assert(fx.n.PostReminder(context.Background(), fx.fleet, testValues), qt.IsNil)
	c.Assert(fx.gw.sent, qt.HasLen, 0)
}

func TestPostFormupRepliesToLatestPerChannel(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	const x, y = "100000000000000001", "100000000000000002"
	fx := newNotifyFixture(x, y)

	c.Assert(fx.n.PostCreation(ctx, fx.fleet, testValues), qt.IsNil)
	// el recordatorio sólo llega a X
	fx.gw.failSend[y] = true
	c.Assert(fx.n.PostReminder(ctx, fx.fleet, testValues), qt.IsNil)
	fx.gw.failSend[y] = false

	creationX, _ := fx.messages.byType(domain.MessageCreation).Latest(x)
	creationY, _ := fx.messages.byType(domain.MessageCreation).Latest(y)
	reminderX, _ := fx.messages.byType(domain.MessageReminder).Latest(x)
	c.Assert(reminderX.MessageID, qt.Not(qt.Equals), creationX.MessageID)

	c.Assert(fx.n.PostFormup(ctx, fx.fleet, testValues), qt.IsNil)

	formups := fx.gw.sent[len(fx.gw.sent)-2:]
	c.Assert(formups[0].channelID, qt.Equals, x)
	c.Assert(formups[0].msg.Reference.MessageID, qt.Equals, reminderX.MessageID)
	c.Assert(formups[1].channelID, qt.Equals, y)
	c.Assert(formups[1].msg.Reference.MessageID, qt.Equals, creationY.MessageID)
	c.Assert(formups[0].msg.Embeds[0].Color, qt.Equals, 0xe74c3c)
	c.Assert(strings.HasPrefix(formups[0].msg.Content, "**.:Stratop Forming Now:.**"), qt.IsTrue)
	c.Assert(fx.messages.byType(domain.MessageFormup), qt.HasLen, 2)
}

func TestPostFormupSkipsChannelsWithoutHistory(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	const x, y = "100000000000000001", "100000000000000002"
	fx := newNotifyFixture(x)
	c.Assert(fx.n.PostCreation(ctx, fx.fleet, testValues), qt.IsNil)

	d := fx.cats[testCategory]
	d.Channels = append(d.Channels, domain.Channel{ChannelID: y, GuildID: testGuild})
	fx.cats[testCategory] = d

	c.Assert(fx.n.PostFormup(ctx, fx.fleet, testValues), qt.IsNil)
	c.Assert(fx.messages.byType(domain.MessageFormup), qt.HasLen, 1)
	c.Assert(fx.gw.sent[len(fx.gw.sent)-1].channelID, qt.Equals, x)
}

func TestPostFormupWithoutAnyMessageIsNoop(t *testing.T) {
	c := qt.New(t)
	fx := newNotifyFixture("100000000000000001")
	c.Assert(fx.n.PostFormup(context.Background(), fx.fleet, testValues), qt.IsNil)
	c.Assert(fx.gw.sent, qt.HasLen, 0)
}

func TestUpdateMessagesEditsInPlace(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	fx := newNotifyFixture("100000000000000001", "100000000000000002")
	c.Assert(fx.n.PostCreation(ctx, fx.fleet, testValues), qt.IsNil)
	fx.gw.failEdit[fx.gw.sent[0].id] = true

	fx.fleet.Name = "Sunday Stratop (moved)"
	c.Assert(fx.n.UpdateMessages(ctx, fx.fleet, testValues), qt.IsNil)

	c.Assert(fx.gw.edits, qt.HasLen, 1)
	e := fx.gw.edits[0]
	c.Assert(e.ID, qt.Equals, fx.gw.sent[1].id)
	c.Assert(e.Content, qt.IsNil)
	c.Assert((*e.Embeds)[0].Title, qt.Equals, "Sunday Stratop (moved)")
	c.Assert((*e.Embeds)[0].Color, qt.Equals, 0x3498db)

	chain, _ := fx.messages.GetByFleet(ctx, fx.fleet.ID)
	c.Assert(chain, qt.HasLen, 2)
}

func TestCancelEditsEveryMessage(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	fx := newNotifyFixture("100000000000000001")
	c.Assert(fx.n.PostCreation(ctx, fx.fleet, testValues), qt.IsNil)
	c.Assert(fx.n.PostReminder(ctx, fx.fleet, testValues), qt.IsNil)

	c.Assert(fx.n.Cancel(ctx, fx.fleet, "444444444444444444"), qt.IsNil)
	c.Assert(fx.gw.edits, qt.HasLen, 2)

	e := fx.gw.edits[0]
	c.Assert(*e.Content, qt.Equals, "")
	emb := (*e.Embeds)[0]
	c.Assert(emb.Title, qt.Equals, ".:Stratop  Cancelled:.")
	c.Assert(emb.Color, qt.Equals, 0x95a5a6)
	c.Assert(emb.Description, qt.Equals,
		"Stratop posted by <@333333333333333333>, **Sunday Stratop**, scheduled for **2025-12-07 19:30 UTC** (<t:1765135800:F>) was cancelled.")
	c.Assert(emb.Footer.Text, qt.Equals, "Cancelled by: Director")

	chain, _ := fx.messages.GetByFleet(ctx, fx.fleet.ID)
	c.Assert(chain, qt.HasLen, 2)
}

func TestCommanderNameFallsBackToMention(t *testing.T) {
	c := qt.New(t)
	fx := newNotifyFixture("100000000000000001")
	fx.gw.nameErr = errDiscord

	c.Assert(fx.n.PostCreation(context.Background(), fx.fleet, testValues), qt.IsNil)
	c.Assert(fx.gw.sent[0].msg.Embeds[0].Fields[0].Value, qt.Equals, "<@333333333333333333>")
}

func TestDataIntegrityErrorsAreHard(t *testing.T) {
	ctx := context.Background()

	t.Run("missing category", func(t *testing.T) {
		fx := newNotifyFixture("100000000000000001")
		delete(fx.cats, testCategory)
		qt.Assert(t, fx.n.PostCreation(ctx, fx.fleet, testValues), qt.ErrorIs, ErrCategoryNotFound)
	})
	t.Run("missing ping format", func(t *testing.T) {
		fx := newNotifyFixture("100000000000000001")
		d := fx.cats[testCategory]
		d.PingFormat = nil
		fx.cats[testCategory] = d
		qt.Assert(t, fx.n.PostCreation(ctx, fx.fleet, testValues), qt.ErrorIs, ErrPingFormatNotFound)
	})
	t.Run("bad channel id", func(t *testing.T) {
		fx := newNotifyFixture("100000000000000001", "not-a-snowflake")
		qt.Assert(t, fx.n.PostCreation(ctx, fx.fleet, testValues), qt.ErrorIs, ErrInvalidSnowflake)
		qt.Assert(t, fx.gw.sent, qt.HasLen, 0)
	})
	t.Run("bad guild id", func(t *testing.T) {
		fx := newNotifyFixture("100000000000000001")
		d := fx.cats[testCategory]
		d.Category.GuildID = "guild"
		fx.cats[testCategory] = d
		qt.Assert(t, fx.n.PostReminder(ctx, fx.fleet, testValues), qt.ErrorIs, ErrInvalidSnowflake)
	})
}

func TestRecordFailureIsReturnedAfterSend(t *testing.T) {
	c := qt.New(t)
	fx := newNotifyFixture("100000000000000001", "100000000000000002")
	fx.messages.failFor["100000000000000001"] = true

	err := fx.n.PostCreation(context.Background(), fx.fleet, testValues)
	c.Assert(err, qt.ErrorMatches, `record creation message .* connection reset`)
	c.Assert(fx.gw.sent, qt.HasLen, 2)
	c.Assert(fx.messages.byType(domain.MessageCreation), qt.HasLen, 1)
}
