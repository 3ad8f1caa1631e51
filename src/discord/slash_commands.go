package discord

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const (
	CommandCurator = "curator"
	CommandBridge  = "bridge"
)

// /curator subcommands.
const (
	SubSetup         = "setup"
	SubPending       = "pending"
	SubApproved      = "approved"
	SubBridgeChannel = "bridge-channel"
	SubAdmin         = "admin"
	SubBootstrap     = "bootstrap"
)

func channelOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionChannel,
		Name:         name,
		Description:  description,
		Required:     required,
		ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
	}
}

var commandDefinitions = map[string]*discordgo.ApplicationCommand{
	CommandCurator: {
		Name:        CommandCurator,
		Description: "Configure message curation",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubSetup,
				Description: "Set the pending and approved channels for this server",
				Options: []*discordgo.ApplicationCommandOption{
					channelOption("pending", "Where flagged messages are reviewed", true),
					channelOption("approved", "Where approved quotes are published", true),
					channelOption("bridge", "Where approved quotes are mirrored", false),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubPending,
				Description: "Set the pending messages channel",
				Options:     []*discordgo.ApplicationCommandOption{channelOption("channel", "Defaults to this channel", false)},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubApproved,
				Description: "Set the approved messages channel",
				Options:     []*discordgo.ApplicationCommandOption{channelOption("channel", "Defaults to this channel", false)},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubBridgeChannel,
				Description: "Set or clear the channel approved quotes are mirrored to",
				Options:     []*discordgo.ApplicationCommandOption{channelOption("channel", "Omit to stop mirroring", false)},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubAdmin,
				Description: "Make a user an admin or demote them",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "User to promote or demote",
					Required:    true,
				}},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubBootstrap,
				Description: "Make the bot owner an admin",
			},
		},
	},
	CommandBridge: {
		Name:        CommandBridge,
		Description: "Connect a channel to a bridge group",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "group",
				Description: "Group name; omit to disconnect the channel",
			},
			channelOption("channel", "Defaults to this channel", false),
		},
	},
}

var defaultCommandOrder = []string{
	CommandCurator,
	CommandBridge,
}

// RegisterSlashCommands registers the requested slash commands for a guild.
// When no command names are provided, all known commands are registered.
func RegisterSlashCommands(s *discordgo.Session, guildID string, names ...string) error {
	if guildID == "" {
		return fmt.Errorf("discord: guildID is required to register slash commands")
	}

	if len(names) == 0 {
		names = defaultCommandOrder
	}

	var failures []string
	for _, name := range names {
		definition, ok := commandDefinitions[name]
		if !ok {
			log.Printf("discord: unknown slash command %q", name)
			continue
		}

		_, err := s.ApplicationCommandCreate(s.State.User.ID, guildID, definition)
		if err != nil {
			if isDuplicateCommandError(err) {
				log.Printf("discord: slash command %q already registered", name)
				continue
			}
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			log.Printf("discord: failed to register command %q: %v", name, err)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("discord: slash command registration errors: %s", strings.Join(failures, "; "))
	}

	return nil
}

func isDuplicateCommandError(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil {
			msg := strings.ToLower(restErr.Message.Message)
			if strings.Contains(msg, "already exists") {
				return true
			}
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "50035") && strings.Contains(msg, "already exists")
}
