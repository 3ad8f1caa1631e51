package curation

import (
	"strings"

	"github.com/stake-plus/govcurator/src/platform"
)

// Control ids carried by the workflow's buttons.
const (
	ControlRequest         = "request"
	ControlRequestComments = "request:comments"
	ControlAccept          = "accept"
	ControlAnonymous       = "anonymous"
	ControlDecline         = "decline"
)

const (
	anonymousName       = "anonymous"
	defaultAnonymousURL = "https://i.imgur.com/qbkZFWO.png"
	cardColor           = 0x5865F2
	consentFieldName    = "Consent Message"
)

const consentText = `We're asking for permission to quote you in our research.
• Yes, you may quote my post and attribute it to my Discord handle.
• You may quote my post anonymously; do not use my Discord handle or any other identifying information.
• No, you may not quote my post in your research.
Thanks for helping us understand the future of governance!`

const introText = "Hi! I help a group of researchers collect thoughtful conversations about governance. " +
	"A curator picked one of your messages and we'd love to include it."

// MessageCard quotes a platform message.
func MessageCard(m platform.PostedMessage) *platform.Card {
	footer := "#" + m.ChannelName
	if m.GuildName != "" {
		footer = m.GuildName + " • " + footer
	}
	return &platform.Card{
		AuthorName:    m.AuthorName,
		AuthorURL:     m.URL,
		AuthorIconURL: m.AuthorAvatarURL,
		Description:   m.Content,
		Footer:        footer,
		Timestamp:     m.Timestamp(),
		Color:         cardColor,
	}
}

// anonymize strips everything that identifies the author.
func anonymize(c *platform.Card, iconURL string) *platform.Card {
	out := c.Clone()
	out.AuthorName = anonymousName
	out.AuthorURL = ""
	out.AuthorIconURL = iconURL
	return out
}

func bridgeCard(m platform.PostedMessage, group string) *platform.Card {
	c := MessageCard(m)
	c.Footer = group + " | " + c.Footer
	return c
}

func consentCard(m platform.PostedMessage) *platform.Card {
	c := MessageCard(m)
	c.Fields = append(c.Fields, platform.CardField{Name: consentFieldName, Value: consentText})
	return c
}

func reviewControls() []platform.Control {
	return []platform.Control{
		{ID: ControlRequest, Label: "Request permission", Style: platform.StylePrimary},
		{ID: ControlRequestComments, Label: "Request permission (comments)", Style: platform.StylePrimary},
	}
}

func consentControls(inviteURL string) []platform.Control {
	controls := []platform.Control{
		{ID: ControlAccept, Label: "Yes", Style: platform.StyleSuccess},
		{ID: ControlAnonymous, Label: "Yes, anonymously", Style: platform.StylePrimary},
		{ID: ControlDecline, Label: "No", Style: platform.StyleDanger},
	}
	if strings.TrimSpace(inviteURL) != "" {
		controls = append(controls, platform.Control{Label: "Join our server", Style: platform.StyleLink, URL: inviteURL})
	}
	return controls
}

func outcomeNotice(s Status) string {
	switch s {
	case StatusApproved:
		return "Thank you! Your message will be quoted with your handle."
	case StatusAnonymous:
		return "Thank you! Your message will be quoted anonymously."
	default:
		return "Understood, your message will not be quoted."
	}
}
