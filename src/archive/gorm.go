package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CuratedEntry is the stored form of an Entry.
type CuratedEntry struct {
	ID          uint64    `gorm:"primaryKey"`
	PublicID    string    `gorm:"size:36;uniqueIndex;not null"`
	ChannelID   int64     `gorm:"uniqueIndex:idx_curated_message;not null"`
	MessageID   int64     `gorm:"uniqueIndex:idx_curated_message;not null"`
	GuildID     int64     `gorm:"index"`
	GuildName   string    `gorm:"size:100"`
	ChannelName string    `gorm:"size:100"`
	AuthorID    *int64    `gorm:"index"`
	AuthorName  string    `gorm:"size:100"`
	Content     string    `gorm:"type:text"`
	Comments    string    `gorm:"type:text"`
	Reactions   int       `gorm:"default:0"`
	Outcome     string    `gorm:"size:16;not null"`
	PostedAt    time.Time `gorm:"not null"`
	CreatedAt   time.Time
}

func (CuratedEntry) TableName() string { return "curated_entries" }

// Store archives entries in the curated_entries table.
type Store struct {
	db        *gorm.DB
	sanitizer *bluemonday.Policy
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, sanitizer: bluemonday.StrictPolicy()}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&CuratedEntry{})
}

// Record inserts e, replacing the previous entry for the same message.
func (s *Store) Record(ctx context.Context, e Entry) error {
	comments, err := json.Marshal(e.Comments)
	if err != nil {
		return fmt.Errorf("archive: encode comments: %w", err)
	}
	row := CuratedEntry{
		PublicID:    uuid.NewString(),
		ChannelID:   e.ChannelID,
		MessageID:   e.MessageID,
		GuildID:     e.Guild.ID,
		GuildName:   e.Guild.Name,
		ChannelName: e.Channel.Name,
		Content:     s.sanitize(e.Content),
		Comments:    string(comments),
		Reactions:   e.Reactions,
		Outcome:     e.Outcome,
		PostedAt:    e.Timestamp.UTC(),
	}
	if e.Author != nil {
		id := e.Author.ID
		row.AuthorID = &id
		row.AuthorName = e.Author.Name
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "channel_id"}, {Name: "message_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"guild_id", "guild_name", "channel_name", "author_id", "author_name",
			"content", "comments", "reactions", "outcome", "posted_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("archive: record %d/%d: %w", e.ChannelID, e.MessageID, err)
	}
	log.Printf("archive: recorded %d/%d as %s", e.ChannelID, e.MessageID, e.Outcome)
	return nil
}

// sanitize strips HTML markup but keeps the message text as typed; the
// policy's entity escaping would mangle markdown, mentions and quotes.
func (s *Store) sanitize(content string) string {
	return html.UnescapeString(s.sanitizer.Sanitize(content))
}

// List returns up to limit entries newest first, starting after offset.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	var rows []CuratedEntry
	err := s.db.WithContext(ctx).
		Order("posted_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.entry())
	}
	return out, nil
}

// ErrNoEntry is returned by Get when a message was never archived.
var ErrNoEntry = errors.New("archive: no entry")

func (s *Store) Get(ctx context.Context, channelID, messageID int64) (Entry, error) {
	var row CuratedEntry
	err := s.db.WithContext(ctx).
		Where("channel_id = ? AND message_id = ?", channelID, messageID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, ErrNoEntry
	}
	if err != nil {
		return Entry{}, fmt.Errorf("archive: get %d/%d: %w", channelID, messageID, err)
	}
	return row.entry(), nil
}

func (row CuratedEntry) entry() Entry {
	e := Entry{
		ChannelID: row.ChannelID,
		MessageID: row.MessageID,
		Content:   row.Content,
		Timestamp: row.PostedAt,
		Guild:     Ident{ID: row.GuildID, Name: row.GuildName},
		Channel:   Ident{ID: row.ChannelID, Name: row.ChannelName},
		Reactions: row.Reactions,
		Outcome:   row.Outcome,
	}
	if row.AuthorID != nil {
		e.Author = &Ident{ID: *row.AuthorID, Name: row.AuthorName}
	}
	if row.Comments != "" {
		if err := json.Unmarshal([]byte(row.Comments), &e.Comments); err != nil {
			log.Printf("archive: decode comments of %d/%d: %v", row.ChannelID, row.MessageID, err)
		}
	}
	if e.Comments == nil {
		e.Comments = []Link{}
	}
	return e
}
