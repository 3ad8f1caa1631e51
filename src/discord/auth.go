package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// HasRole checks whether a user has a role in a guild. Empty roleID always returns true.
func HasRole(s *discordgo.Session, guildID, userID, roleID string) bool {
	if roleID == "" {
		return true
	}
	member, err := s.GuildMember(guildID, userID)
	if err != nil {
		return false
	}
	for _, role := range member.Roles {
		if role == roleID {
			return true
		}
	}
	return false
}

// HasRoleNamed checks whether a user has a role with the given name, ignoring case.
func HasRoleNamed(s *discordgo.Session, guildID, userID, roleName string) bool {
	if roleName == "" {
		return false
	}
	member, err := s.GuildMember(guildID, userID)
	if err != nil {
		return false
	}
	roles, err := s.GuildRoles(guildID)
	if err != nil {
		return false
	}
	return memberHasRoleNamed(member.Roles, roles, roleName)
}

func memberHasRoleNamed(memberRoles []string, roles []*discordgo.Role, roleName string) bool {
	wanted := make(map[string]bool)
	for _, role := range roles {
		if role != nil && strings.EqualFold(role.Name, roleName) {
			wanted[role.ID] = true
		}
	}
	for _, id := range memberRoles {
		if wanted[id] {
			return true
		}
	}
	return false
}
