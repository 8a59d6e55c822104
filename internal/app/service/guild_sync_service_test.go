package service

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/juju/clock/testclock"

	"github.com/jose-valero/timerboard-bot/internal/domain"
)

func seedGuild(gw *fakeGateway, id string) {
	gw.guilds[id] = domain.Guild{GuildID: id, Name: "Guild " + id}
	gw.roles[id] = []domain.Role{{RoleID: id + "-r1", Name: "FC"}}
	gw.channels[id] = []domain.Channel{{ChannelID: id + "-c1", Kind: domain.ChannelKindText, Name: "pings"}}
	gw.members[id] = []domain.Member{{UserID: "01", Username: "a"}}
}

func TestSyncGuildStampsOnSuccess(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	now := time.Date(2025, 12, 1, 18, 0, 0, 0, time.UTC)
	gw := newFakeGateway()
	guilds, roles, chans, members := newMemGuilds(), newMemRoles(), newMemChannels(), newMemMembers()
	svc := NewGuildSyncService(gw, guilds, roles, chans, members, nil, GuildSyncOptions{Clock: testclock.NewClock(now)})
	seedGuild(gw, "g1")

	c.Assert(svc.SyncGuild(ctx, "g1"), qt.IsNil)

	g, err := guilds.Get(ctx, "g1")
	c.Assert(err, qt.IsNil)
	c.Assert(g.Name, qt.Equals, "Guild g1")
	c.Assert(g.LastSyncAt, qt.IsNotNil)
	c.Assert(g.LastSyncAt.Equal(now), qt.IsTrue)
	c.Assert(roles.rows, qt.HasLen, 1)
	c.Assert(chans.rows, qt.HasLen, 1)
	c.Assert(members.ids("g1"), qt.DeepEquals, []string{"01"})
}

func TestSyncGuildResourceFailureSkipsStampButContinues(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	svc, gw, guilds, roles, chans, members, _ := newSyncFixture()
	seedGuild(gw, "g1")
	gw.failRoles = true

	err := svc.SyncGuild(ctx, "g1")
	c.Assert(err, qt.ErrorIs, errDiscord)

	g, _ := guilds.Get(ctx, "g1")
	c.Assert(g.LastSyncAt, qt.IsNil)
	c.Assert(roles.rows, qt.HasLen, 0)
	c.Assert(chans.rows, qt.HasLen, 1)
	c.Assert(members.ids("g1"), qt.DeepEquals, []string{"01"})
}

func TestSyncGuildMetadataFailureSkipsGuild(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	svc, gw, guilds, _, chans, _, _ := newSyncFixture()
	seedGuild(gw, "g1")
	gw.failGuild = true

	c.Assert(svc.SyncGuild(ctx, "g1"), qt.ErrorIs, errDiscord)
	_, err := guilds.Get(ctx, "g1")
	c.Assert(err, qt.IsNotNil)
	c.Assert(chans.rows, qt.HasLen, 0)
}

func TestSyncGuildRejectsConcurrentRunForSameGuild(t *testing.T) {
	c := qt.New(t)
	svc, _, _, _, _, _, _ := newSyncFixture()

	c.Assert(svc.acquire("g1"), qt.IsTrue)
	c.Assert(svc.SyncGuild(context.Background(), "g1"), qt.ErrorIs, ErrSyncInProgress)
	svc.release("g1")
	c.Assert(svc.acquire("g1"), qt.IsTrue)
}

func TestHandleGuildAvailableSkipsRecentlySynced(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	now := time.Date(2025, 12, 1, 18, 0, 0, 0, time.UTC)
	clk := testclock.NewClock(now)
	gw := newFakeGateway()
	guilds, roles, chans, members := newMemGuilds(), newMemRoles(), newMemChannels(), newMemMembers()
	svc := NewGuildSyncService(gw, guilds, roles, chans, members, nil, GuildSyncOptions{Clock: clk})
	seedGuild(gw, "g1")

	recent := now.Add(-10 * time.Minute)
	guilds.rows["g1"] = domain.Guild{GuildID: "g1", Name: "old name", LastSyncAt: &recent}

	c.Assert(svc.HandleGuildAvailable(ctx, domain.Guild{GuildID: "g1", Name: "new name"}), qt.IsNil)
	g, _ := guilds.Get(ctx, "g1")
	c.Assert(g.Name, qt.Equals, "new name")
	c.Assert(g.LastSyncAt.Equal(recent), qt.IsTrue)
	c.Assert(roles.rows, qt.HasLen, 0)

	clk.Advance(25 * time.Minute)
	c.Assert(svc.HandleGuildAvailable(ctx, domain.Guild{GuildID: "g1", Name: "new name"}), qt.IsNil)
	g, _ = guilds.Get(ctx, "g1")
	c.Assert(g.LastSyncAt.Equal(clk.Now()), qt.IsTrue)
	c.Assert(roles.rows, qt.HasLen, 1)
}

func TestRealtimePrimitives(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	svc, _, _, roles, chans, members, rs := newSyncFixture()

	c.Assert(svc.UpsertRole(ctx, domain.Role{RoleID: "r1", GuildID: "g1", Name: "FC"}), qt.IsNil)
	c.Assert(roles.rows, qt.HasLen, 1)
	c.Assert(svc.DeleteRole(ctx, "r1"), qt.IsNil)
	c.Assert(roles.rows, qt.HasLen, 0)

	c.Assert(svc.UpsertChannel(ctx, domain.Channel{ChannelID: "c1", GuildID: "g1", Kind: domain.ChannelKindText}), qt.IsNil)
	c.Assert(chans.rows, qt.HasLen, 1)
	// pasó a ser canal de voz: sale del espejo
	c.Assert(svc.UpsertChannel(ctx, domain.Channel{ChannelID: "c1", GuildID: "g1", Kind: domain.ChannelKindVoice}), qt.IsNil)
	c.Assert(chans.rows, qt.HasLen, 0)

	m := domain.Member{GuildID: "g1", UserID: "u1", Username: "tank", RoleIDs: []string{"r1"}}
	c.Assert(svc.UpsertMember(ctx, m), qt.IsNil)
	c.Assert(members.ids("g1"), qt.DeepEquals, []string{"u1"})
	c.Assert(svc.RemoveMember(ctx, "g1", "u1"), qt.IsNil)
	c.Assert(members.ids("g1"), qt.HasLen, 0)

	c.Assert(rs.members, qt.HasLen, 2)
	c.Assert(rs.members[0].RoleIDs, qt.DeepEquals, []string{"r1"})
	c.Assert(rs.members[1].RoleIDs, qt.HasLen, 0)
}
