// Package curation drives messages through flagging, permission requests and
// publication.
package curation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/stake-plus/govcurator/src/archive"
	"github.com/stake-plus/govcurator/src/lock"
	"github.com/stake-plus/govcurator/src/platform"
)

var (
	// ErrForbidden is returned when the actor lacks the rights for an operation.
	ErrForbidden = errors.New("curation: forbidden")
	// ErrGuildNotConfigured is returned when updating routing for a guild that
	// was never set up.
	ErrGuildNotConfigured = errors.New("curation: guild not configured")
	// ErrNotBridged is returned when clearing the group of an ungrouped channel.
	ErrNotBridged = errors.New("curation: channel is not a bridge")
)

const DefaultEmoji = "🔭"

type Config struct {
	// Emoji is the reaction that flags a message.
	Emoji string
	// InviteURL adds a link button to consent requests when set.
	InviteURL string
	// AnonymousIconURL is the avatar shown on anonymised cards.
	AnonymousIconURL string
	// OwnerID may bootstrap the first admin.
	OwnerID int64
}

// Service reacts to platform events. Every transition runs under the lock of
// the original message.
type Service struct {
	repo     *Repository
	platform platform.Platform
	locks    lock.Locker
	archive  archive.Sink
	cfg      Config
	now      func() time.Time
}

func NewService(repo *Repository, p platform.Platform, locks lock.Locker, sink archive.Sink, cfg Config) *Service {
	if cfg.Emoji == "" {
		cfg.Emoji = DefaultEmoji
	}
	if cfg.AnonymousIconURL == "" {
		cfg.AnonymousIconURL = defaultAnonymousURL
	}
	if locks == nil {
		locks = lock.NewKeyedMutex()
	}
	if sink == nil {
		sink = archive.Discard{}
	}
	return &Service{
		repo:     repo,
		platform: p,
		locks:    locks,
		archive:  sink,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Repository() *Repository { return s.repo }

func (s *Service) Config() Config { return s.cfg }

func (s *Service) lockMessage(ctx context.Context, channelID, messageID int64) (func(), error) {
	release, err := s.locks.Acquire(ctx, lock.MessageKey(channelID, messageID))
	if err != nil {
		return nil, fmt.Errorf("curation: lock %d/%d: %w", channelID, messageID, err)
	}
	return release, nil
}

// retract deletes a message posted by a transition that then failed.
func (s *Service) retract(ctx context.Context, channelID, messageID int64) {
	if err := s.platform.Delete(ctx, channelID, messageID); err != nil {
		log.Printf("curation: retract %d/%d: %v", channelID, messageID, err)
	}
}

// dropAlternate removes an alternate saved by a transition that then failed.
func (s *Service) dropAlternate(channelID, messageID int64, t AlternateType) {
	alt, ok, err := s.repo.Alternate(channelID, messageID, t)
	if err == nil && ok {
		err = s.repo.DeleteAlternate(alt)
	}
	if err != nil {
		log.Printf("curation: drop %s alternate %d/%d: %v", t, channelID, messageID, err)
	}
}

// IsAdmin reports whether userID has the admin flag.
func (s *Service) IsAdmin(userID int64) (bool, error) {
	u, _, err := s.repo.User(userID)
	if err != nil {
		return false, err
	}
	return u.IsAdmin, nil
}

// privileged reports whether userID may curate in guildID.
func (s *Service) privileged(ctx context.Context, guildID, userID int64) (bool, error) {
	admin, err := s.IsAdmin(userID)
	if err != nil || admin {
		return admin, err
	}
	return s.platform.HasCuratorRole(ctx, guildID, userID)
}

// HandleComponent dispatches a button press.
func (s *Service) HandleComponent(ctx context.Context, ev platform.ComponentActivated) error {
	switch ev.ControlID {
	case ControlRequest:
		return s.Request(ctx, ev, false)
	case ControlRequestComments:
		return s.Request(ctx, ev, true)
	case ControlAccept:
		return s.Fulfill(ctx, ev, StatusApproved)
	case ControlAnonymous:
		return s.Fulfill(ctx, ev, StatusAnonymous)
	case ControlDecline:
		return s.Fulfill(ctx, ev, StatusDenied)
	}
	return nil
}

// HandleMessage records comments and relays bridged channels.
func (s *Service) HandleMessage(ctx context.Context, ev platform.MessagePosted) error {
	if ev.FromBot {
		return nil
	}
	if err := s.Comment(ctx, ev); err != nil {
		return err
	}
	return s.Bridge(ctx, ev)
}
