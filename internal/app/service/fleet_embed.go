package service

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/timerboard-bot/internal/domain"
)

const (
	colorCreation = 0x3498db
	colorReminder = 0xf39c12
	colorFormup   = 0xe74c3c
	colorCancel   = 0x95a5a6
)

func creationTitle(category string) string { return fmt.Sprintf("**.:New Upcoming %s:.**", category) }
func reminderTitle(category string) string {
	return fmt.Sprintf("**.:Reminder - Upcoming %s:.**", category)
}
func formupTitle(category string) string { return fmt.Sprintf("**.:%s Forming Now:.**", category) }

// pingContent: título y menciones. El rol @everyone tiene el mismo id que el guild.
func pingContent(title, guildID string, roles []domain.Role) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	mentions := make([]string, 0, len(roles))
	for _, r := range roles {
		if r.RoleID == guildID {
			mentions = append(mentions, "@everyone")
			continue
		}
		mentions = append(mentions, "<@&"+r.RoleID+">")
	}
	b.WriteString(strings.Join(mentions, " "))
	return strings.TrimRight(b.String(), "\n ")
}

type embedInput struct {
	fleet     domain.Fleet
	commander string
	fields    []domain.PingFormatField
	values    map[int64]string
	appURL    string
	now       time.Time
}

func fleetEmbed(in embedInput, color int) *discordgo.MessageEmbed {
	f := in.fleet
	e := &discordgo.MessageEmbed{
		Title:     f.Name,
		Color:     color,
		Timestamp: in.now.UTC().Format(time.RFC3339),
	}
	if in.appURL != "" {
		e.URL = strings.TrimRight(in.appURL, "/") + "/fleets/" + strconv.FormatInt(f.ID, 10)
	}
	if f.Description != nil {
		e.Description = *f.Description
	}

	unix := f.FleetTime.Unix()
	e.Fields = []*discordgo.MessageEmbedField{
		{Name: "FC", Value: in.commander, Inline: true},
		{Name: "Time", Value: fmt.Sprintf("<t:%d:F> (<t:%d:R>)", unix, unix), Inline: true},
	}

	fields := slices.Clone(in.fields)
	slices.SortStableFunc(fields, func(a, b domain.PingFormatField) int { return cmp.Compare(a.Priority, b.Priority) })
	for _, fd := range fields {
		v := in.values[fd.ID]
		if strings.TrimSpace(v) == "" && fd.DefaultValue != nil {
			v = *fd.DefaultValue
		}
		if strings.TrimSpace(v) == "" {
			continue
		}
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: fd.Name, Value: v})
	}
	return e
}

func cancelEmbed(category string, f domain.Fleet, cancelledBy string, now time.Time) *discordgo.MessageEmbed {
	t := f.FleetTime.UTC()
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf(".:%s  Cancelled:.", category),
		Color: colorCancel,
		Description: fmt.Sprintf("%s posted by <@%s>, **%s**, scheduled for **%s UTC** (<t:%d:F>) was cancelled.",
			category, f.CommanderID, f.Name, t.Format("2006-01-02 15:04"), t.Unix()),
		Footer:    &discordgo.MessageEmbedFooter{Text: "Cancelled by: " + cancelledBy},
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}
