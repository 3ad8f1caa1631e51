package discord

import (
	"errors"

	"github.com/bwmarrin/discordgo"
)

// SendComplexMessageNoEmbed sends a message with link previews suppressed in its text.
func SendComplexMessageNoEmbed(s *discordgo.Session, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	if msg == nil {
		return nil, errors.New("discord: message payload cannot be nil")
	}

	sanitizeMessageSend(msg)
	return s.ChannelMessageSendComplex(channelID, msg)
}

// EditMessageComplexNoEmbed edits an existing message and supports components.
func EditMessageComplexNoEmbed(s *discordgo.Session, edit *discordgo.MessageEdit) (*discordgo.Message, error) {
	if edit == nil {
		return nil, errors.New("discord: message edit payload cannot be nil")
	}

	if edit.Content != nil {
		cleaned := WrapURLsNoEmbed(*edit.Content)
		edit.Content = &cleaned
	}

	if edit.Embeds != nil {
		sanitizeEmbeds(*edit.Embeds)
	}
	return s.ChannelMessageEditComplex(edit)
}

// InteractionRespondNoEmbed wraps InteractionRespond ensuring the data content is sanitized.
func InteractionRespondNoEmbed(s *discordgo.Session, interaction *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	sanitizeInteractionResponse(resp)
	return s.InteractionRespond(interaction, resp)
}

func sanitizeInteractionResponse(resp *discordgo.InteractionResponse) {
	if resp == nil || resp.Data == nil {
		return
	}
	if resp.Data.Content != "" {
		resp.Data.Content = WrapURLsNoEmbed(resp.Data.Content)
	}
	sanitizeEmbeds(resp.Data.Embeds)
}

func sanitizeMessageSend(msg *discordgo.MessageSend) {
	if msg == nil {
		return
	}

	if msg.Content != "" {
		msg.Content = WrapURLsNoEmbed(msg.Content)
	}

	sanitizeEmbeds(msg.Embeds)
}

// sanitizeEmbeds leaves the quoted description alone; it is the message
// being curated and must stay verbatim.
func sanitizeEmbeds(embeds []*discordgo.MessageEmbed) {
	for _, embed := range embeds {
		if embed == nil {
			continue
		}

		if embed.Footer != nil && embed.Footer.Text != "" {
			embed.Footer.Text = WrapURLsNoEmbed(embed.Footer.Text)
		}

		for _, field := range embed.Fields {
			if field == nil {
				continue
			}
			if field.Value != "" {
				field.Value = WrapURLsNoEmbed(field.Value)
			}
		}
	}
}
