package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/stake-plus/govcurator/src/curation"
)

// invocation is a parsed slash command.
type invocation struct {
	Command   string
	Sub       string
	Options   map[string]string
	GuildID   int64
	ChannelID int64
	UserID    int64
}

func (inv invocation) id(name string) int64 { return ParseID(inv.Options[name]) }

// channelOr returns the channel option, defaulting to the invoking channel.
func (inv invocation) channelOr(name string) int64 {
	if id := inv.id(name); id != 0 {
		return id
	}
	return inv.ChannelID
}

func parseInvocation(i *discordgo.Interaction) invocation {
	data := i.ApplicationCommandData()
	inv := invocation{
		Command:   data.Name,
		Options:   make(map[string]string),
		GuildID:   ParseID(i.GuildID),
		ChannelID: ParseID(i.ChannelID),
		UserID:    ParseID(interactionActor(i)),
	}
	opts := data.Options
	if len(opts) == 1 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		inv.Sub = opts[0].Name
		opts = opts[0].Options
	}
	for _, opt := range opts {
		if v, ok := opt.Value.(string); ok {
			inv.Options[opt.Name] = v
		}
	}
	return inv
}

func mention(channelID int64) string { return fmt.Sprintf("<#%d>", channelID) }

// RunCommand executes an application command interaction and returns the
// reply text.
func RunCommand(ctx context.Context, svc *curation.Service, i *discordgo.Interaction) (string, error) {
	return runCommand(ctx, svc, parseInvocation(i))
}

func runCommand(ctx context.Context, svc *curation.Service, inv invocation) (string, error) {
	switch inv.Command {
	case CommandCurator:
		return runCurator(ctx, svc, inv)
	case CommandBridge:
		return runBridge(ctx, svc, inv)
	}
	return "", fmt.Errorf("discord: unknown command %q", inv.Command)
}

func runCurator(ctx context.Context, svc *curation.Service, inv invocation) (string, error) {
	if inv.GuildID == 0 && inv.Sub != SubBootstrap && inv.Sub != SubAdmin {
		return "This command only works in a server.", nil
	}
	switch inv.Sub {
	case SubSetup:
		pending, approved, bridge := inv.id("pending"), inv.id("approved"), inv.id("bridge")
		if err := svc.ConfigureGuild(ctx, inv.UserID, inv.GuildID, pending, approved, bridge); err != nil {
			return "", err
		}
		reply := fmt.Sprintf("Pending messages will go to %s and approved messages to %s.", mention(pending), mention(approved))
		if bridge != 0 {
			reply += fmt.Sprintf(" Approved messages are mirrored to %s.", mention(bridge))
		}
		return reply, nil
	case SubPending:
		ch := inv.channelOr("channel")
		if err := svc.SetPendingChannel(ctx, inv.UserID, inv.GuildID, ch); err != nil {
			return "", err
		}
		return fmt.Sprintf("Pending messages will now go to %s.", mention(ch)), nil
	case SubApproved:
		ch := inv.channelOr("channel")
		if err := svc.SetApprovedChannel(ctx, inv.UserID, inv.GuildID, ch); err != nil {
			return "", err
		}
		return fmt.Sprintf("Approved messages will now go to %s.", mention(ch)), nil
	case SubBridgeChannel:
		ch := inv.id("channel")
		if err := svc.SetBridgeChannel(ctx, inv.UserID, inv.GuildID, ch); err != nil {
			return "", err
		}
		if ch == 0 {
			return "Approved messages will no longer be mirrored.", nil
		}
		return fmt.Sprintf("Approved messages will be mirrored to %s.", mention(ch)), nil
	case SubAdmin:
		target := inv.id("user")
		admin, err := svc.ToggleAdmin(ctx, inv.UserID, target)
		if err != nil {
			return "", err
		}
		if admin {
			return fmt.Sprintf("<@%d> is now an admin.", target), nil
		}
		return fmt.Sprintf("<@%d> is no longer an admin.", target), nil
	case SubBootstrap:
		if err := svc.BootstrapAdmin(ctx, inv.UserID); err != nil {
			return "", err
		}
		return "You are now an admin.", nil
	}
	return "", fmt.Errorf("discord: unknown subcommand %q", inv.Sub)
}

func runBridge(ctx context.Context, svc *curation.Service, inv invocation) (string, error) {
	ch := inv.channelOr("channel")
	group := inv.Options["group"]
	peers, err := svc.SetChannelGroup(ctx, inv.UserID, ch, group)
	if errors.Is(err, curation.ErrNotBridged) {
		return fmt.Sprintf("%s is not a bridge.", mention(ch)), nil
	}
	if err != nil {
		return "", err
	}
	if group == "" {
		return fmt.Sprintf("%s is no longer connected to any other channel.", mention(ch)), nil
	}
	return fmt.Sprintf("%s is now connected to %d other channels in the group **%s**.", mention(ch), peers, group), nil
}

// CommandError turns a failure into something safe to show the user.
func CommandError(err error) string {
	switch {
	case errors.Is(err, curation.ErrForbidden):
		return "You are not allowed to do that."
	case errors.Is(err, curation.ErrGuildNotConfigured):
		return "Run `/curator setup` first."
	default:
		return "Something went wrong, please try again."
	}
}
