package curation

import (
	"errors"
	"time"

	"github.com/stake-plus/govcurator/src/engine"
	"github.com/stake-plus/govcurator/src/platform"
	"github.com/stake-plus/govcurator/src/store"
)

// Metadata keys recorded on a Message.
const (
	MetaGuildID     = "guild_id"
	MetaAuthorID    = "author_id"
	MetaCuratedBy   = "curated_by"
	MetaCuratedAt   = "curated_at"
	MetaRequestedBy = "requested_by"
	MetaRequestedAt = "requested_at"
	MetaFulfilledBy = "fulfilled_by"
	MetaFulfilledAt = "fulfilled_at"
)

type User struct {
	ID      int64
	IsAdmin bool
	HaveMet bool
}

// Channel is a bridged channel and its group.
type Channel struct {
	ID    int64
	Group string
}

// Guild holds the routing configuration for one server.
type Guild struct {
	ID                int64
	PendingChannelID  int64
	ApprovedChannelID int64
	BridgeChannelID   int64
}

// Message tracks one platform message through the workflow.
type Message struct {
	ID        int64
	ChannelID int64
	MessageID int64
	Status    Status
	Comments  []platform.MessageLink
	Metadata  map[string]any
}

func (m *Message) MetaInt(key string) int64 {
	i, _ := store.AsInt(m.Metadata[key])
	return i
}

func (m *Message) MetaTime(key string) time.Time {
	t, _ := m.Metadata[key].(time.Time)
	return t
}

func (m *Message) setMeta(key string, value any) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
}

// Alternate links a message the bot posted back to the original.
type Alternate struct {
	ID                 int64
	AlternateChannelID int64
	AlternateMessageID int64
	Type               AlternateType
	OriginalChannelID  int64
	OriginalMessageID  int64
}

// Repository maps workflow types onto engine records.
type Repository struct {
	eng *engine.Engine
}

func NewRepository(eng *engine.Engine) *Repository {
	return &Repository{eng: eng}
}

func (r *Repository) Engine() *engine.Engine { return r.eng }

func (r *Repository) get(kind string, id int64) (*engine.Record, bool, error) {
	rec, err := r.eng.Get(kind, id)
	if errors.Is(err, engine.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (r *Repository) find(kind string, match engine.Predicate) (*engine.Record, bool, error) {
	rec, err := r.eng.Find(kind, match)
	if errors.Is(err, engine.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// User returns the stored user or a fresh one with default flags.
func (r *Repository) User(id int64) (User, bool, error) {
	rec, ok, err := r.get(KindUser, id)
	if err != nil || !ok {
		return User{ID: id}, false, err
	}
	return User{ID: id, IsAdmin: rec.Bool("is_admin"), HaveMet: rec.Bool("have_met")}, true, nil
}

func (r *Repository) SaveUser(u User) error {
	return r.eng.Save(&engine.Record{Kind: KindUser, ID: u.ID, Fields: engine.Fields{
		"is_admin": u.IsAdmin,
		"have_met": u.HaveMet,
	}})
}

func (r *Repository) Guild(id int64) (Guild, bool, error) {
	rec, ok, err := r.get(KindGuild, id)
	if err != nil || !ok {
		return Guild{ID: id}, false, err
	}
	return Guild{
		ID:                id,
		PendingChannelID:  rec.Int("pending_channel_id"),
		ApprovedChannelID: rec.Int("approved_channel_id"),
		BridgeChannelID:   rec.Int("bridge_channel_id"),
	}, true, nil
}

func (r *Repository) SaveGuild(g Guild) error {
	return r.eng.Save(&engine.Record{Kind: KindGuild, ID: g.ID, Fields: engine.Fields{
		"pending_channel_id":  g.PendingChannelID,
		"approved_channel_id": g.ApprovedChannelID,
		"bridge_channel_id":   g.BridgeChannelID,
	}})
}

func (r *Repository) Channel(id int64) (Channel, bool, error) {
	rec, ok, err := r.get(KindChannel, id)
	if err != nil || !ok {
		return Channel{ID: id}, false, err
	}
	return Channel{ID: id, Group: rec.Text("group")}, true, nil
}

func (r *Repository) SaveChannel(c Channel) error {
	return r.eng.Save(&engine.Record{Kind: KindChannel, ID: c.ID, Fields: engine.Fields{"group": c.Group}})
}

// DeleteChannel removes a channel's group. It reports false when the channel
// had none.
func (r *Repository) DeleteChannel(id int64) (bool, error) {
	err := r.eng.Delete(&engine.Record{Kind: KindChannel, ID: id})
	if errors.Is(err, engine.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *Repository) ChannelsInGroup(group string) ([]Channel, error) {
	recs, err := r.eng.Search(KindChannel, engine.Where("group", group))
	if err != nil {
		return nil, err
	}
	out := make([]Channel, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Channel{ID: rec.ID, Group: rec.Text("group")})
	}
	return out, nil
}

// Message looks up the workflow record for a platform message.
func (r *Repository) Message(channelID, messageID int64) (*Message, bool, error) {
	rec, ok, err := r.find(KindMessage, engine.And(
		engine.Where("channel_id", channelID),
		engine.Where("message_id", messageID),
	))
	if err != nil || !ok {
		return nil, false, err
	}
	return messageFromRecord(rec), true, nil
}

// Messages returns every tracked message in id order.
func (r *Repository) Messages() ([]*Message, error) {
	var out []*Message
	for rec, err := range r.eng.All(KindMessage) {
		if err != nil {
			return nil, err
		}
		out = append(out, messageFromRecord(rec))
	}
	return out, nil
}

func (r *Repository) SaveMessage(m *Message) error {
	comments := make([]any, 0, len(m.Comments))
	for _, c := range m.Comments {
		comments = append(comments, map[string]any{"channel_id": c.ChannelID, "message_id": c.MessageID})
	}
	metadata := make(map[string]any, len(m.Metadata))
	for k, v := range m.Metadata {
		metadata[k] = v
	}
	rec := &engine.Record{Kind: KindMessage, ID: m.ID, Fields: engine.Fields{
		"channel_id": m.ChannelID,
		"message_id": m.MessageID,
		"status":     int64(m.Status),
		"comments":   comments,
		"metadata":   metadata,
	}}
	if err := r.eng.Save(rec); err != nil {
		return err
	}
	m.ID = rec.ID
	return nil
}

func messageFromRecord(rec *engine.Record) *Message {
	m := &Message{
		ID:        rec.ID,
		ChannelID: rec.Int("channel_id"),
		MessageID: rec.Int("message_id"),
		Status:    Status(rec.Int("status")),
		Metadata:  rec.Map("metadata"),
	}
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	for _, item := range rec.List("comments") {
		link, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ch, _ := store.AsInt(link["channel_id"])
		msg, _ := store.AsInt(link["message_id"])
		m.Comments = append(m.Comments, platform.MessageLink{ChannelID: ch, MessageID: msg})
	}
	return m
}

// Alternate finds the alternate of type t posted as (channelID, messageID).
func (r *Repository) Alternate(channelID, messageID int64, t AlternateType) (*Alternate, bool, error) {
	rec, ok, err := r.find(KindAlternate, engine.And(
		engine.Where("alternate_channel_id", channelID),
		engine.Where("alternate_message_id", messageID),
		engine.Where("type", int64(t)),
	))
	if err != nil || !ok {
		return nil, false, err
	}
	return alternateFromRecord(rec), true, nil
}

// AlternatesOf returns every alternate pointing at an original message.
func (r *Repository) AlternatesOf(channelID, messageID int64) ([]*Alternate, error) {
	recs, err := r.eng.Search(KindAlternate, engine.And(
		engine.Where("original_channel_id", channelID),
		engine.Where("original_message_id", messageID),
	))
	if err != nil {
		return nil, err
	}
	out := make([]*Alternate, 0, len(recs))
	for _, rec := range recs {
		out = append(out, alternateFromRecord(rec))
	}
	return out, nil
}

func (r *Repository) SaveAlternate(a *Alternate) error {
	rec := &engine.Record{Kind: KindAlternate, ID: a.ID, Fields: engine.Fields{
		"alternate_channel_id": a.AlternateChannelID,
		"alternate_message_id": a.AlternateMessageID,
		"type":                 int64(a.Type),
		"original_channel_id":  a.OriginalChannelID,
		"original_message_id":  a.OriginalMessageID,
	}}
	if err := r.eng.Save(rec); err != nil {
		return err
	}
	a.ID = rec.ID
	return nil
}

func (r *Repository) DeleteAlternate(a *Alternate) error {
	return r.eng.Delete(&engine.Record{Kind: KindAlternate, ID: a.ID})
}

// Original returns the message an alternate points at.
func (r *Repository) Original(a *Alternate) (*Message, bool, error) {
	return r.Message(a.OriginalChannelID, a.OriginalMessageID)
}

func alternateFromRecord(rec *engine.Record) *Alternate {
	return &Alternate{
		ID:                 rec.ID,
		AlternateChannelID: rec.Int("alternate_channel_id"),
		AlternateMessageID: rec.Int("alternate_message_id"),
		Type:               AlternateType(rec.Int("type")),
		OriginalChannelID:  rec.Int("original_channel_id"),
		OriginalMessageID:  rec.Int("original_message_id"),
	}
}
