package domain

import "time"

// Guild es el espejo local de un servidor de Discord.
type Guild struct {
	GuildID    string
	Name       string
	IconHash   *string
	LastSyncAt *time.Time
}

type Role struct {
	RoleID   string
	GuildID  string
	Name     string
	Color    int // RGB
	Position int
}

// ChannelKind usa la misma numeración que Discord.
type ChannelKind int

const (
	ChannelKindText     ChannelKind = 0
	ChannelKindVoice    ChannelKind = 2
	ChannelKindCategory ChannelKind = 4
	ChannelKindNews     ChannelKind = 5
	ChannelKindForum    ChannelKind = 15
)

type Channel struct {
	ChannelID string
	GuildID   string
	Kind      ChannelKind
	Name      string
	Position  int
}

// IsText: sólo trackeamos canales de texto.
func (c Channel) IsText() bool { return c.Kind == ChannelKindText }

// Member es la presencia de un usuario en un guild. No requiere cuenta en la app.
type Member struct {
	GuildID  string
	UserID   string
	Username string
	Nickname *string
	RoleIDs  []string
}

// MemberPage es una página del listado de miembros. Next sale de la página cruda
// de Discord (no de Members, que puede venir filtrada); vacío si no hay más.
type MemberPage struct {
	Members []Member
	Next    string
}

// DisplayName prefiere el nick del guild.
func (m Member) DisplayName() string {
	if m.Nickname != nil && *m.Nickname != "" {
		return *m.Nickname
	}
	return m.Username
}
