// Package platformtest provides an in-memory platform for tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/stake-plus/govcurator/src/platform"
)

// Sent is a message the recorder accepted through Send.
type Sent struct {
	ChannelID int64
	MessageID int64
	Msg       platform.Outgoing
	Deleted   bool
}

type msgKey struct{ channel, message int64 }

// Recorder implements platform.Platform, keeping every side effect in memory.
type Recorder struct {
	mu       sync.Mutex
	nextID   int64
	channels map[int64]platform.Channel
	posted   map[msgKey]platform.PostedMessage
	sent     map[msgKey]*Sent
	order    []msgKey
	direct   map[int64]int64
	curators map[msgKey]bool
	reactors map[msgKey]map[string][]int64
	edits    int

	failTo     map[int64]error
	failDirect error
	failEdit   error

	// FailSend, when set, is returned by every Send.
	FailSend error
}

func NewRecorder() *Recorder {
	return &Recorder{
		nextID:   9000,
		channels: make(map[int64]platform.Channel),
		posted:   make(map[msgKey]platform.PostedMessage),
		sent:     make(map[msgKey]*Sent),
		direct:   make(map[int64]int64),
		curators: make(map[msgKey]bool),
		reactors: make(map[msgKey]map[string][]int64),
		failTo:   make(map[int64]error),
	}
}

// FailChannel makes Send to channelID return err; a nil err clears it.
func (r *Recorder) FailChannel(channelID int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failTo, channelID)
		return
	}
	r.failTo[channelID] = err
}

// FailDirect makes DirectChannel return err; a nil err clears it.
func (r *Recorder) FailDirect(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failDirect = err
}

// FailEdit makes Edit return err; a nil err clears it.
func (r *Recorder) FailEdit(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failEdit = err
}

// AddReaction records userID reacting to a message with emoji and bumps the
// message's reaction count.
func (r *Recorder) AddReaction(channelID, messageID int64, emoji string, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := msgKey{channelID, messageID}
	if r.reactors[key] == nil {
		r.reactors[key] = make(map[string][]int64)
	}
	r.reactors[key][emoji] = append(r.reactors[key][emoji], userID)
	if m, ok := r.posted[key]; ok {
		counts := make(map[string]int, len(m.Reactions)+1)
		for k, v := range m.Reactions {
			counts[k] = v
		}
		counts[emoji]++
		m.Reactions = counts
		r.posted[key] = m
	}
}

// AddChannel registers a channel so FetchChannel can see it.
func (r *Recorder) AddChannel(ch platform.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.ID] = ch
}

// AddMessage registers an existing platform message.
func (r *Recorder) AddMessage(m platform.PostedMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posted[msgKey{m.ChannelID, m.MessageID}] = m
	if _, ok := r.channels[m.ChannelID]; !ok {
		r.channels[m.ChannelID] = platform.Channel{ID: m.ChannelID, GuildID: m.GuildID, Name: m.ChannelName}
	}
}

// GrantCurator gives userID the curator role in guildID.
func (r *Recorder) GrantCurator(guildID, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.curators[msgKey{guildID, userID}] = true
}

func (r *Recorder) FetchChannel(_ context.Context, channelID int64) (platform.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[channelID]
	if !ok {
		return platform.Channel{}, fmt.Errorf("channel %d: %w", channelID, platform.ErrUnknownTarget)
	}
	return ch, nil
}

func (r *Recorder) FetchMessage(_ context.Context, channelID, messageID int64) (platform.PostedMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.posted[msgKey{channelID, messageID}]
	if !ok {
		return platform.PostedMessage{}, fmt.Errorf("message %d/%d: %w", channelID, messageID, platform.ErrUnknownTarget)
	}
	return m, nil
}

func (r *Recorder) Send(_ context.Context, channelID int64, msg platform.Outgoing) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSend != nil {
		return 0, r.FailSend
	}
	if err := r.failTo[channelID]; err != nil {
		return 0, err
	}
	r.nextID++
	key := msgKey{channelID, r.nextID}
	r.sent[key] = &Sent{ChannelID: channelID, MessageID: r.nextID, Msg: copyOutgoing(msg)}
	r.order = append(r.order, key)
	return r.nextID, nil
}

func (r *Recorder) Edit(_ context.Context, channelID, messageID int64, msg platform.Outgoing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failEdit != nil {
		return r.failEdit
	}
	s, ok := r.sent[msgKey{channelID, messageID}]
	if !ok || s.Deleted {
		return fmt.Errorf("message %d/%d: %w", channelID, messageID, platform.ErrUnknownTarget)
	}
	if msg.Content != "" {
		s.Msg.Content = msg.Content
	}
	if msg.Card != nil {
		s.Msg.Card = msg.Card.Clone()
	}
	s.Msg.Controls = append([]platform.Control(nil), msg.Controls...)
	r.edits++
	return nil
}

func (r *Recorder) Delete(_ context.Context, channelID, messageID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sent[msgKey{channelID, messageID}]
	if !ok || s.Deleted {
		return fmt.Errorf("message %d/%d: %w", channelID, messageID, platform.ErrUnknownTarget)
	}
	s.Deleted = true
	return nil
}

func (r *Recorder) DirectChannel(_ context.Context, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failDirect != nil {
		return 0, r.failDirect
	}
	if ch, ok := r.direct[userID]; ok {
		return ch, nil
	}
	r.nextID++
	r.direct[userID] = r.nextID
	r.channels[r.nextID] = platform.Channel{ID: r.nextID, Direct: true}
	return r.nextID, nil
}

func (r *Recorder) HasCuratorRole(_ context.Context, guildID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.curators[msgKey{guildID, userID}], nil
}

func (r *Recorder) Reactors(_ context.Context, channelID, messageID int64, emoji string) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posted[msgKey{channelID, messageID}]; !ok {
		return nil, fmt.Errorf("message %d/%d: %w", channelID, messageID, platform.ErrUnknownTarget)
	}
	return append([]int64(nil), r.reactors[msgKey{channelID, messageID}][emoji]...), nil
}

// SentTo returns the live (not deleted) messages sent to channelID in order.
func (r *Recorder) SentTo(channelID int64) []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sent
	for _, key := range r.order {
		s := r.sent[key]
		if s.ChannelID == channelID && !s.Deleted {
			out = append(out, *s)
		}
	}
	return out
}

// Message returns a sent message by id, deleted or not.
func (r *Recorder) Message(channelID, messageID int64) (Sent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sent[msgKey{channelID, messageID}]
	if !ok {
		return Sent{}, false
	}
	return *s, true
}

// SentCount is the number of successful Send calls.
func (r *Recorder) SentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Edits is the number of successful Edit calls.
func (r *Recorder) Edits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.edits
}

// DirectChannelOf returns the private channel opened for userID, if any.
func (r *Recorder) DirectChannelOf(userID int64) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.direct[userID]
	return ch, ok
}

func copyOutgoing(msg platform.Outgoing) platform.Outgoing {
	return platform.Outgoing{
		Content:  msg.Content,
		Card:     msg.Card.Clone(),
		Controls: append([]platform.Control(nil), msg.Controls...),
	}
}

var _ platform.Platform = (*Recorder)(nil)
