package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/timerboard-bot/internal/domain"
)

func toGuild(g *discordgo.Guild) domain.Guild {
	out := domain.Guild{GuildID: g.ID, Name: g.Name}
	if g.Icon != "" {
		icon := g.Icon
		out.IconHash = &icon
	}
	return out
}

func toRole(guildID string, r *discordgo.Role) domain.Role {
	return domain.Role{RoleID: r.ID, GuildID: guildID, Name: r.Name, Color: r.Color, Position: r.Position}
}

func toChannel(ch *discordgo.Channel) domain.Channel {
	return domain.Channel{
		ChannelID: ch.ID,
		GuildID:   ch.GuildID,
		Kind:      domain.ChannelKind(ch.Type),
		Name:      ch.Name,
		Position:  ch.Position,
	}
}

func toMember(guildID string, m *discordgo.Member) domain.Member {
	out := domain.Member{GuildID: guildID, UserID: m.User.ID, Username: m.User.Username, RoleIDs: m.Roles}
	if m.Nick != "" {
		nick := m.Nick
		out.Nickname = &nick
	}
	return out
}

// toMemberPage descarta las entradas sin usuario pero toma el cursor de la
// página cruda, así una página llena no se confunde con la última.
func toMemberPage(guildID string, raw []*discordgo.Member, limit int) domain.MemberPage {
	page := domain.MemberPage{Members: make([]domain.Member, 0, len(raw))}
	for _, m := range raw {
		if m.User == nil {
			continue
		}
		page.Members = append(page.Members, toMember(guildID, m))
		if len(raw) >= limit {
			page.Next = m.User.ID
		}
	}
	return page
}

func displayName(m *discordgo.Member) string {
	switch {
	case m.Nick != "":
		return m.Nick
	case m.User == nil:
		return ""
	case m.User.GlobalName != "":
		return m.User.GlobalName
	}
	return m.User.Username
}
