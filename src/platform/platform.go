// Package platform describes what the curation workflow needs from a chat
// platform, independent of any wire protocol.
package platform

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownTarget is returned when a channel, message or user does not exist
// or cannot be seen by the bot.
var ErrUnknownTarget = errors.New("platform: unknown target")

// Platform is the set of side effects the workflow performs.
type Platform interface {
	FetchChannel(ctx context.Context, channelID int64) (Channel, error)
	FetchMessage(ctx context.Context, channelID, messageID int64) (PostedMessage, error)
	// Send posts to a channel and returns the new message id.
	Send(ctx context.Context, channelID int64, msg Outgoing) (int64, error)
	// Edit replaces a message. Empty Content and nil Card leave those parts
	// unchanged; Controls always replace the existing ones.
	Edit(ctx context.Context, channelID, messageID int64, msg Outgoing) error
	Delete(ctx context.Context, channelID, messageID int64) error
	// DirectChannel opens (or returns) the private channel with a user.
	DirectChannel(ctx context.Context, userID int64) (int64, error)
	HasCuratorRole(ctx context.Context, guildID, userID int64) (bool, error)
	// Reactors lists the users who reacted to a message with emoji.
	Reactors(ctx context.Context, channelID, messageID int64, emoji string) ([]int64, error)
}

type Channel struct {
	ID      int64
	GuildID int64
	Name    string
	Direct  bool
}

// PostedMessage is a snapshot of a platform message.
type PostedMessage struct {
	ChannelID       int64
	MessageID       int64
	GuildID         int64
	AuthorID        int64
	AuthorName      string
	AuthorAvatarURL string
	Content         string
	CreatedAt       time.Time
	EditedAt        time.Time
	URL             string
	ChannelName     string
	GuildName       string
	// Reactions counts reactions per emoji.
	Reactions map[string]int
}

// Timestamp is the edit time when the message was edited, else creation.
func (m PostedMessage) Timestamp() time.Time {
	if !m.EditedAt.IsZero() {
		return m.EditedAt
	}
	return m.CreatedAt
}

type CardField struct {
	Name  string
	Value string
}

// Card is a rich quoted rendering of a message.
type Card struct {
	AuthorName    string
	AuthorURL     string
	AuthorIconURL string
	Title         string
	Description   string
	Footer        string
	Timestamp     time.Time
	Fields        []CardField
	Color         int
}

// Clone returns a copy that shares no slices with c.
func (c *Card) Clone() *Card {
	if c == nil {
		return nil
	}
	out := *c
	out.Fields = append([]CardField(nil), c.Fields...)
	return &out
}

type ControlStyle uint8

const (
	StylePrimary ControlStyle = iota
	StyleSuccess
	StyleDanger
	StyleLink
)

// Control is an interactive button. Link controls carry a URL instead of an
// ID and never produce ComponentActivated events.
type Control struct {
	ID       string
	Label    string
	Style    ControlStyle
	URL      string
	Disabled bool
}

type Outgoing struct {
	Content  string
	Card     *Card
	Controls []Control
}

// DisableAll returns controls with every entry disabled.
func DisableAll(controls []Control) []Control {
	out := make([]Control, len(controls))
	for i, c := range controls {
		c.Disabled = true
		out[i] = c
	}
	return out
}

type ReactionAdded struct {
	GuildID   int64
	ChannelID int64
	MessageID int64
	UserID    int64
	Emoji     string
}

type ComponentActivated struct {
	GuildID         int64
	OriginChannelID int64
	OriginMessageID int64
	ControlID       string
	ActorID         int64
}

type MessageLink struct {
	ChannelID int64
	MessageID int64
}

type MessagePosted struct {
	GuildID   int64
	ChannelID int64
	MessageID int64
	AuthorID  int64
	FromBot   bool
	Content   string
	ReplyTo   *MessageLink
}
