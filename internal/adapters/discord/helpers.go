package discord

import (
	"github.com/bwmarrin/discordgo"
)

func optBool(ic *discordgo.InteractionCreate, name string) (bool, bool) {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return false, false
	}
	for _, o := range ic.ApplicationCommandData().Options {
		if o.Name == name && o.Type == discordgo.ApplicationCommandOptionBoolean {
			return o.BoolValue(), true
		}
		if o.Type == discordgo.ApplicationCommandOptionSubCommand {
			for _, so := range o.Options {
				if so.Name == name && so.Type == discordgo.ApplicationCommandOptionBoolean {
					return so.BoolValue(), true
				}
			}
		}
	}
	return false, false
}

func interactionUserID(ic *discordgo.InteractionCreate) string {
	switch {
	case ic.Member != nil && ic.Member.User != nil:
		return ic.Member.User.ID
	case ic.User != nil:
		return ic.User.ID
	}
	return ""
}
