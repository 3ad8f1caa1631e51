// Package archive keeps the research record of messages whose authors agreed
// to be quoted.
package archive

import (
	"context"
	"errors"
	"log"
	"time"
)

// Ident names a guild, channel or author.
type Ident struct {
	ID   int64  `json:"id,string"`
	Name string `json:"name"`
}

type Link struct {
	ChannelID int64 `json:"channel_id,string"`
	MessageID int64 `json:"message_id,string"`
}

// Entry is one archived message. Author is nil for anonymous quotes.
type Entry struct {
	ChannelID int64     `json:"-"`
	MessageID int64     `json:"-"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Guild     Ident     `json:"guild"`
	Channel   Ident     `json:"channel"`
	Author    *Ident    `json:"author,omitempty"`
	Reactions int       `json:"emojicount"`
	Comments  []Link    `json:"comments"`
	Outcome   string    `json:"outcome"`
}

// Sink stores archive entries.
type Sink interface {
	Record(ctx context.Context, e Entry) error
}

// Multi fans an entry out to every sink, returning all failures joined.
type Multi []Sink

func (m Multi) Record(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BestEffort logs failures of the wrapped sink instead of returning them.
type BestEffort struct {
	Sink Sink
}

func (b BestEffort) Record(ctx context.Context, e Entry) error {
	if err := b.Sink.Record(ctx, e); err != nil {
		log.Printf("archive: %d/%d not relayed: %v", e.ChannelID, e.MessageID, err)
	}
	return nil
}

// Discard drops every entry.
type Discard struct{}

func (Discard) Record(context.Context, Entry) error { return nil }
