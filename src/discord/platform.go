package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/stake-plus/govcurator/src/platform"
)

// Platform implements platform.Platform over a discordgo session.
type Platform struct {
	session  *discordgo.Session
	roleID   string
	roleName string
}

var _ platform.Platform = (*Platform)(nil)

// NewPlatform checks curator membership by roleID when set, else by roleName.
func NewPlatform(session *discordgo.Session, roleID, roleName string) *Platform {
	return &Platform{session: session, roleID: roleID, roleName: roleName}
}

func (p *Platform) channel(ctx context.Context, id string) (*discordgo.Channel, error) {
	if ch, err := p.session.State.Channel(id); err == nil {
		return ch, nil
	}
	return p.session.Channel(id, discordgo.WithContext(ctx))
}

func (p *Platform) guildName(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}
	if g, err := p.session.State.Guild(id); err == nil {
		return g.Name
	}
	g, err := p.session.Guild(id, discordgo.WithContext(ctx))
	if err != nil {
		return ""
	}
	return g.Name
}

func (p *Platform) FetchChannel(ctx context.Context, channelID int64) (platform.Channel, error) {
	ch, err := p.channel(ctx, FormatID(channelID))
	if err != nil {
		return platform.Channel{}, fmt.Errorf("discord: channel %d: %w", channelID, err)
	}
	return platform.Channel{
		ID:      channelID,
		GuildID: ParseID(ch.GuildID),
		Name:    ch.Name,
		Direct:  ch.Type == discordgo.ChannelTypeDM || ch.Type == discordgo.ChannelTypeGroupDM,
	}, nil
}

func (p *Platform) FetchMessage(ctx context.Context, channelID, messageID int64) (platform.PostedMessage, error) {
	ch, err := p.channel(ctx, FormatID(channelID))
	if err != nil {
		return platform.PostedMessage{}, fmt.Errorf("discord: channel %d: %w", channelID, err)
	}
	m, err := p.session.ChannelMessage(ch.ID, FormatID(messageID), discordgo.WithContext(ctx))
	if err != nil {
		return platform.PostedMessage{}, fmt.Errorf("discord: message %d/%d: %w", channelID, messageID, err)
	}
	return toPostedMessage(m, ch.GuildID, p.guildName(ctx, ch.GuildID), ch.Name), nil
}

func (p *Platform) Send(ctx context.Context, channelID int64, msg platform.Outgoing) (int64, error) {
	send := &discordgo.MessageSend{Content: msg.Content}
	if embed := toEmbed(msg.Card); embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{embed}
	}
	if len(msg.Controls) > 0 {
		send.Components = toComponents(msg.Controls)
	}
	sent, err := SendComplexMessageNoEmbed(p.session, FormatID(channelID), send)
	if err != nil {
		return 0, fmt.Errorf("discord: send to %d: %w", channelID, err)
	}
	return ParseID(sent.ID), nil
}

func (p *Platform) Edit(ctx context.Context, channelID, messageID int64, msg platform.Outgoing) error {
	edit := discordgo.NewMessageEdit(FormatID(channelID), FormatID(messageID))
	if msg.Content != "" {
		edit.SetContent(msg.Content)
	}
	if embed := toEmbed(msg.Card); embed != nil {
		edit.SetEmbed(embed)
	}
	components := toComponents(msg.Controls)
	edit.Components = &components

	if _, err := EditMessageComplexNoEmbed(p.session, edit); err != nil {
		return fmt.Errorf("discord: edit %d/%d: %w", channelID, messageID, err)
	}
	return nil
}

func (p *Platform) Delete(ctx context.Context, channelID, messageID int64) error {
	if err := p.session.ChannelMessageDelete(FormatID(channelID), FormatID(messageID), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: delete %d/%d: %w", channelID, messageID, err)
	}
	return nil
}

func (p *Platform) DirectChannel(ctx context.Context, userID int64) (int64, error) {
	ch, err := p.session.UserChannelCreate(FormatID(userID), discordgo.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("discord: open direct channel with %d: %w", userID, err)
	}
	return ParseID(ch.ID), nil
}

func (p *Platform) HasCuratorRole(ctx context.Context, guildID, userID int64) (bool, error) {
	if guildID == 0 {
		return false, nil
	}
	if p.roleID != "" {
		return HasRole(p.session, FormatID(guildID), FormatID(userID), p.roleID), nil
	}
	return HasRoleNamed(p.session, FormatID(guildID), FormatID(userID), p.roleName), nil
}

const reactorsPageSize = 100

func (p *Platform) Reactors(ctx context.Context, channelID, messageID int64, emoji string) ([]int64, error) {
	var out []int64
	after := ""
	for {
		users, err := p.session.MessageReactions(FormatID(channelID), FormatID(messageID), emoji, reactorsPageSize, "", after, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("discord: reactions on %d/%d: %w", channelID, messageID, err)
		}
		for _, u := range users {
			out = append(out, ParseID(u.ID))
		}
		if len(users) < reactorsPageSize {
			return out, nil
		}
		after = users[len(users)-1].ID
	}
}
