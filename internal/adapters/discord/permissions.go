package discord

import "github.com/bwmarrin/discordgo"

// hasAdminAccess: owner, algún rol con Administrator o algún rol de adminRoleIDs.
func hasAdminAccess(ownerID, userID string, memberRoles []string, guildRoles []*discordgo.Role, adminRoleIDs []string) bool {
	if ownerID != "" && ownerID == userID {
		return true
	}

	has := make(map[string]struct{}, len(memberRoles))
	for _, rid := range memberRoles {
		has[rid] = struct{}{}
	}

	var perms int64
	for _, ro := range guildRoles {
		if _, ok := has[ro.ID]; ok {
			perms |= ro.Permissions
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}

	for _, want := range adminRoleIDs {
		if _, ok := has[want]; ok {
			return true
		}
	}
	return false
}

func (r *Router) requireAdminOrRoles(s *discordgo.Session, ic *discordgo.InteractionCreate) bool {
	if ic.Member == nil || ic.Member.User == nil {
		ReplyEphemeral(s, ic, "🔒 Este comando sólo funciona dentro de un servidor.")
		return false
	}

	var ownerID string
	if g, _ := s.State.Guild(ic.GuildID); g != nil {
		ownerID = g.OwnerID
	}
	roles, _ := s.GuildRoles(ic.GuildID)

	if hasAdminAccess(ownerID, ic.Member.User.ID, ic.Member.Roles, roles, r.adminRoleIDs) {
		return true
	}
	ReplyEphemeral(s, ic, "🔒 No tienes permisos para esta acción.")
	return false
}
