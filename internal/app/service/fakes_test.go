package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/timerboard-bot/internal/domain"
	"github.com/jose-valero/timerboard-bot/internal/infra/storage"
)

var errDiscord = errors.New("discord: 503 service unavailable")

// ---------- gateway ----------

type fakeGateway struct {
	mu       sync.Mutex
	guilds   map[string]domain.Guild
	roles    map[string][]domain.Role
	channels map[string][]domain.Channel
	members  map[string][]domain.Member

	failGuild    bool
	failRoles    bool
	failChannels bool
	failPage     int // 1-based; 0 = nunca
	unreadable   map[string]bool

	memberCalls int
	afters      []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		guilds:   map[string]domain.Guild{},
		roles:    map[string][]domain.Role{},
		channels: map[string][]domain.Channel{},
		members:  map[string][]domain.Member{},
	}
}

func (g *fakeGateway) GetGuild(_ context.Context, id string) (domain.Guild, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failGuild {
		return domain.Guild{}, errDiscord
	}
	gg, ok := g.guilds[id]
	if !ok {
		return domain.Guild{}, fmt.Errorf("unknown guild %s", id)
	}
	return gg, nil
}

func (g *fakeGateway) GetRoles(_ context.Context, id string) ([]domain.Role, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failRoles {
		return nil, errDiscord
	}
	return slices.Clone(g.roles[id]), nil
}

func (g *fakeGateway) GetChannels(_ context.Context, id string) ([]domain.Channel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failChannels {
		return nil, errDiscord
	}
	return slices.Clone(g.channels[id]), nil
}

// GetMembers pagina como Discord; los ids en unreadable cuentan para la
// página y el cursor pero no se devuelven (entradas sin usuario).
func (g *fakeGateway) GetMembers(_ context.Context, id string, limit int, after string) (domain.MemberPage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.memberCalls++
	g.afters = append(g.afters, after)
	if g.failPage == g.memberCalls {
		return domain.MemberPage{}, errDiscord
	}
	all := slices.Clone(g.members[id])
	sort.Slice(all, func(i, j int) bool { return all[i].UserID < all[j].UserID })
	var raw []domain.Member
	for _, m := range all {
		if m.UserID > after {
			raw = append(raw, m)
		}
		if len(raw) == limit {
			break
		}
	}
	var page domain.MemberPage
	for _, m := range raw {
		if !g.unreadable[m.UserID] {
			page.Members = append(page.Members, m)
		}
	}
	if len(raw) == limit {
		page.Next = raw[len(raw)-1].UserID
	}
	return page, nil
}

// ---------- repos en memoria ----------

type memGuilds struct {
	mu      sync.Mutex
	rows    map[string]domain.Guild
	touched map[string]int
}

func newMemGuilds() *memGuilds {
	return &memGuilds{rows: map[string]domain.Guild{}, touched: map[string]int{}}
}

func (r *memGuilds) Upsert(_ context.Context, g domain.Guild) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.rows[g.GuildID]
	g.LastSyncAt = old.LastSyncAt
	r.rows[g.GuildID] = g
	return nil
}

func (r *memGuilds) Get(_ context.Context, id string) (domain.Guild, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.rows[id]
	if !ok {
		return domain.Guild{}, storage.ErrNotFound
	}
	return g, nil
}

func (r *memGuilds) Count(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows), nil
}

func (r *memGuilds) ListStale(_ context.Context, before time.Time, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var gs []domain.Guild
	for _, g := range r.rows {
		if g.LastSyncAt == nil || g.LastSyncAt.Before(before) {
			gs = append(gs, g)
		}
	}
	sort.Slice(gs, func(i, j int) bool {
		a, b := gs[i].LastSyncAt, gs[j].LastSyncAt
		switch {
		case a == nil && b == nil:
			return gs[i].GuildID < gs[j].GuildID
		case a == nil:
			return true
		case b == nil:
			return false
		case a.Equal(*b):
			return gs[i].GuildID < gs[j].GuildID
		}
		return a.Before(*b)
	})
	var out []string
	for _, g := range gs {
		if len(out) == limit {
			break
		}
		out = append(out, g.GuildID)
	}
	return out, nil
}

func (r *memGuilds) TouchLastSync(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.rows[id]
	if !ok {
		return storage.ErrNotFound
	}
	g.LastSyncAt = &at
	r.rows[id] = g
	r.touched[id]++
	return nil
}

type memRoles struct {
	mu        sync.Mutex
	rows      map[string]domain.Role
	failBatch bool
	single    int
}

func newMemRoles() *memRoles { return &memRoles{rows: map[string]domain.Role{}} }

func (r *memRoles) ListByGuild(_ context.Context, guildID string) ([]domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Role
	for _, ro := range r.rows {
		if ro.GuildID == guildID {
			out = append(out, ro)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoleID < out[j].RoleID })
	return out, nil
}

func (r *memRoles) upsert(ro domain.Role) {
	if old, ok := r.rows[ro.RoleID]; ok {
		ro.GuildID = old.GuildID
	}
	r.rows[ro.RoleID] = ro
}

func (r *memRoles) Upsert(_ context.Context, ro domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.single++
	r.upsert(ro)
	return nil
}

func (r *memRoles) UpsertMany(_ context.Context, guildID string, roles []domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failBatch && len(roles) > 0 {
		return errors.New("batch not supported")
	}
	for _, ro := range roles {
		ro.GuildID = guildID
		r.upsert(ro)
	}
	return nil
}

func (r *memRoles) DeleteMany(_ context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.rows, id)
	}
	return nil
}

type memChannels struct {
	mu   sync.Mutex
	rows map[string]domain.Channel
}

func newMemChannels() *memChannels { return &memChannels{rows: map[string]domain.Channel{}} }

func (r *memChannels) ListByGuild(_ context.Context, guildID string) ([]domain.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Channel
	for _, ch := range r.rows {
		if ch.GuildID == guildID {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out, nil
}

func (r *memChannels) Upsert(_ context.Context, ch domain.Channel) error {
	return r.UpsertMany(context.Background(), ch.GuildID, []domain.Channel{ch})
}

func (r *memChannels) UpsertMany(_ context.Context, guildID string, chans []domain.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range chans {
		if old, ok := r.rows[ch.ChannelID]; ok {
			ch.GuildID = old.GuildID
		} else {
			ch.GuildID = guildID
		}
		r.rows[ch.ChannelID] = ch
	}
	return nil
}

func (r *memChannels) DeleteMany(_ context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.rows, id)
	}
	return nil
}

type memMembers struct {
	mu       sync.Mutex
	rows     map[string]map[string]domain.Member
	replaces int
}

func newMemMembers() *memMembers { return &memMembers{rows: map[string]map[string]domain.Member{}} }

func (r *memMembers) ReplaceGuild(_ context.Context, guildID string, members []domain.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaces++
	r.rows[guildID] = map[string]domain.Member{}
	for _, m := range members {
		r.rows[guildID][m.UserID] = m
	}
	return nil
}

func (r *memMembers) Upsert(_ context.Context, m domain.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rows[m.GuildID] == nil {
		r.rows[m.GuildID] = map[string]domain.Member{}
	}
	r.rows[m.GuildID][m.UserID] = m
	return nil
}

func (r *memMembers) Delete(_ context.Context, guildID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows[guildID], userID)
	return nil
}

func (r *memMembers) ids(guildID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for id := range r.rows[guildID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type recordingRoleSync struct {
	mu      sync.Mutex
	guilds  []string
	members []domain.Member
	err     error
}

func (r *recordingRoleSync) SyncGuildMembers(_ context.Context, guildID string, _ []domain.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guilds = append(r.guilds, guildID)
	return r.err
}

func (r *recordingRoleSync) SyncMember(_ context.Context, m domain.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = append(r.members, m)
	return r.err
}

// ---------- notificaciones ----------

type sentMessage struct {
	channelID string
	msg       *discordgo.MessageSend
	id        string
}

type fakeMessenger struct {
	mu         sync.Mutex
	next       int
	sent       []sentMessage
	edits      []*discordgo.MessageEdit
	failSend   map[string]bool // channel id
	failEdit   map[string]bool // message id
	names      map[string]string
	nameErr    error
	nameLookup []string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{next: 9000, failSend: map[string]bool{}, failEdit: map[string]bool{}, names: map[string]string{}}
}

func (f *fakeMessenger) MemberDisplayName(_ context.Context, _, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nameLookup = append(f.nameLookup, userID)
	if f.nameErr != nil {
		return "", f.nameErr
	}
	return f.names[userID], nil
}

func (f *fakeMessenger) SendMessage(_ context.Context, channelID string, msg *discordgo.MessageSend) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend[channelID] {
		return "", errDiscord
	}
	f.next++
	id := fmt.Sprint(f.next)
	f.sent = append(f.sent, sentMessage{channelID: channelID, msg: msg, id: id})
	return id, nil
}

func (f *fakeMessenger) EditMessage(_ context.Context, e *discordgo.MessageEdit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEdit[e.ID] {
		return errDiscord
	}
	f.edits = append(f.edits, e)
	return nil
}

type memCategories map[int64]domain.CategoryDetails

func (m memCategories) GetDetails(_ context.Context, id int64) (domain.CategoryDetails, error) {
	d, ok := m[id]
	if !ok {
		return domain.CategoryDetails{}, storage.ErrNotFound
	}
	return d, nil
}

type memFields map[int64][]domain.PingFormatField

func (m memFields) ListFields(_ context.Context, id int64) ([]domain.PingFormatField, error) {
	return m[id], nil
}

// memMessages imita fleet_messages: created_at creciente y FK a fleets.
type memMessages struct {
	mu      sync.Mutex
	fleets  map[int64]bool
	rows    domain.MessageChain
	base    time.Time
	failFor map[string]bool // channel id
}

func newMemMessages(fleetIDs ...int64) *memMessages {
	m := &memMessages{fleets: map[int64]bool{}, base: time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC), failFor: map[string]bool{}}
	for _, id := range fleetIDs {
		m.fleets[id] = true
	}
	return m
}

func (m *memMessages) Create(_ context.Context, fm domain.FleetMessage) (domain.FleetMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.fleets[fm.FleetID] {
		return domain.FleetMessage{}, storage.ErrReference
	}
	if m.failFor[fm.ChannelID] {
		return domain.FleetMessage{}, errors.New("db: connection reset")
	}
	fm.ID = int64(len(m.rows) + 1)
	fm.CreatedAt = m.base.Add(time.Duration(fm.ID) * time.Second)
	m.rows = append(m.rows, fm)
	return fm, nil
}

func (m *memMessages) GetByFleet(_ context.Context, fleetID int64) (domain.MessageChain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := domain.MessageChain{}
	for _, fm := range m.rows {
		if fm.FleetID == fleetID {
			out = append(out, fm)
		}
	}
	return out, nil
}

func (m *memMessages) byType(t domain.MessageType) domain.MessageChain {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out domain.MessageChain
	for _, fm := range m.rows {
		if fm.Type == t {
			out = append(out, fm)
		}
	}
	return out
}
