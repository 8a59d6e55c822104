package domain

import "time"

type MessageType string

const (
	MessageCreation MessageType = "creation"
	MessageReminder MessageType = "reminder"
	MessageFormup   MessageType = "formup"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageCreation, MessageReminder, MessageFormup:
		return true
	}
	return false
}

type Fleet struct {
	ID              int64
	CategoryID      int64
	Name            string
	CommanderID     string
	FleetTime       time.Time
	Description     *string
	Hidden          bool
	DisableReminder bool
}

// FleetMessage vincula un mensaje publicado en Discord con un fleet y una etapa.
type FleetMessage struct {
	ID        int64
	FleetID   int64
	ChannelID string
	MessageID string
	Type      MessageType
	CreatedAt time.Time
}

// MessageChain son los mensajes de un fleet en el orden en que se guardaron.
type MessageChain []FleetMessage

// Latest devuelve el mensaje más reciente del canal (al que se responde).
// Con types, sólo considera esos tipos.
func (c MessageChain) Latest(channelID string, types ...MessageType) (FleetMessage, bool) {
	var (
		out   FleetMessage
		found bool
	)
	for _, m := range c {
		if m.ChannelID != channelID || !oneOf(m.Type, types) {
			continue
		}
		if !found || newer(m, out) {
			out, found = m, true
		}
	}
	return out, found
}

func oneOf(t MessageType, types []MessageType) bool {
	if len(types) == 0 {
		return true
	}
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func newer(a, b FleetMessage) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

type PingFormat struct {
	ID      int64
	GuildID string
	Name    string
}

type PingFormatField struct {
	ID           int64
	PingFormatID int64
	Name         string
	Priority     int
	DefaultValue *string
}

type Category struct {
	ID           int64
	GuildID      string
	Name         string
	PingFormatID *int64
	PingReminder *time.Duration
}

type CategoryAccessRole struct {
	Role      Role
	CanView   bool
	CanCreate bool
	CanManage bool
}

// CategoryDetails es la categoría con todo lo necesario para notificar.
type CategoryDetails struct {
	Category    Category
	PingFormat  *PingFormat
	AccessRoles []CategoryAccessRole
	PingRoles   []Role
	Channels    []Channel
}

type FleetEventKind string

const (
	FleetCreated   FleetEventKind = "created"
	FleetUpdated   FleetEventKind = "updated"
	FleetCancelled FleetEventKind = "cancelled"
)

// FleetEvent llega por pg_notify desde la capa HTTP.
type FleetEvent struct {
	FleetID int64          `json:"fleet_id"`
	Kind    FleetEventKind `json:"kind"`
	ActorID string         `json:"actor_id,omitempty"`
}
