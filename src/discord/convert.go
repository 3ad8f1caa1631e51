package discord

import (
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stake-plus/govcurator/src/platform"
)

const maxButtonsPerRow = 5

// ParseID converts a snowflake to an int64; malformed ids become 0.
func ParseID(id string) int64 {
	v, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func FormatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func toEmbed(c *platform.Card) *discordgo.MessageEmbed {
	if c == nil {
		return nil
	}
	embed := &discordgo.MessageEmbed{
		Title:       c.Title,
		Description: c.Description,
		Color:       c.Color,
	}
	if c.AuthorName != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{Name: c.AuthorName, URL: c.AuthorURL, IconURL: c.AuthorIconURL}
	}
	if c.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: c.Footer}
	}
	if !c.Timestamp.IsZero() {
		embed.Timestamp = c.Timestamp.UTC().Format(time.RFC3339)
	}
	for _, f := range c.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value})
	}
	return embed
}

func buttonStyle(s platform.ControlStyle) discordgo.ButtonStyle {
	switch s {
	case platform.StyleSuccess:
		return discordgo.SuccessButton
	case platform.StyleDanger:
		return discordgo.DangerButton
	case platform.StyleLink:
		return discordgo.LinkButton
	default:
		return discordgo.PrimaryButton
	}
}

// toComponents lays controls out as rows of buttons.
func toComponents(controls []platform.Control) []discordgo.MessageComponent {
	rows := []discordgo.MessageComponent{}
	var row discordgo.ActionsRow
	for _, c := range controls {
		btn := discordgo.Button{
			Label:    c.Label,
			Style:    buttonStyle(c.Style),
			Disabled: c.Disabled,
		}
		if c.Style == platform.StyleLink {
			btn.URL = c.URL
		} else {
			btn.CustomID = c.ID
		}
		row.Components = append(row.Components, btn)
		if len(row.Components) == maxButtonsPerRow {
			rows = append(rows, row)
			row = discordgo.ActionsRow{}
		}
	}
	if len(row.Components) > 0 {
		rows = append(rows, row)
	}
	return rows
}

func emojiName(e discordgo.Emoji) string {
	return e.MessageFormat()
}

func toPostedMessage(m *discordgo.Message, guildID string, guildName, channelName string) platform.PostedMessage {
	if m.GuildID != "" {
		guildID = m.GuildID
	}
	out := platform.PostedMessage{
		ChannelID:   ParseID(m.ChannelID),
		MessageID:   ParseID(m.ID),
		GuildID:     ParseID(guildID),
		Content:     m.Content,
		CreatedAt:   m.Timestamp,
		URL:         MessageURL(guildID, m.ChannelID, m.ID),
		ChannelName: channelName,
		GuildName:   guildName,
		Reactions:   make(map[string]int, len(m.Reactions)),
	}
	if m.EditedTimestamp != nil {
		out.EditedAt = *m.EditedTimestamp
	}
	if m.Author != nil {
		out.AuthorID = ParseID(m.Author.ID)
		out.AuthorName = m.Author.Username
		if m.Author.GlobalName != "" {
			out.AuthorName = m.Author.GlobalName
		}
		out.AuthorAvatarURL = m.Author.AvatarURL("")
	}
	for _, r := range m.Reactions {
		if r == nil || r.Emoji == nil {
			continue
		}
		out.Reactions[emojiName(*r.Emoji)] += r.Count
	}
	return out
}

func ReactionEvent(r *discordgo.MessageReaction) platform.ReactionAdded {
	return platform.ReactionAdded{
		GuildID:   ParseID(r.GuildID),
		ChannelID: ParseID(r.ChannelID),
		MessageID: ParseID(r.MessageID),
		UserID:    ParseID(r.UserID),
		Emoji:     emojiName(r.Emoji),
	}
}

func interactionActor(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func ComponentEvent(i *discordgo.Interaction) platform.ComponentActivated {
	ev := platform.ComponentActivated{
		GuildID:         ParseID(i.GuildID),
		OriginChannelID: ParseID(i.ChannelID),
		ControlID:       i.MessageComponentData().CustomID,
		ActorID:         ParseID(interactionActor(i)),
	}
	if i.Message != nil {
		ev.OriginMessageID = ParseID(i.Message.ID)
	}
	return ev
}

func MessageEvent(m *discordgo.Message, botID string) platform.MessagePosted {
	ev := platform.MessagePosted{
		GuildID:   ParseID(m.GuildID),
		ChannelID: ParseID(m.ChannelID),
		MessageID: ParseID(m.ID),
		Content:   m.Content,
	}
	if m.Author != nil {
		ev.AuthorID = ParseID(m.Author.ID)
		ev.FromBot = m.Author.Bot || m.Author.ID == botID
	}
	if ref := m.MessageReference; ref != nil && ref.MessageID != "" {
		ch := ref.ChannelID
		if ch == "" {
			ch = m.ChannelID
		}
		ev.ReplyTo = &platform.MessageLink{ChannelID: ParseID(ch), MessageID: ParseID(ref.MessageID)}
	}
	return ev
}
