package curation

import (
	"context"
	"fmt"
	"log"

	"github.com/stake-plus/govcurator/src/platform"
)

// HandleReaction flags a message when a curator reacts with the configured
// emoji.
func (s *Service) HandleReaction(ctx context.Context, ev platform.ReactionAdded) error {
	if ev.GuildID == 0 || ev.Emoji != s.cfg.Emoji {
		return nil
	}
	ok, err := s.privileged(ctx, ev.GuildID, ev.UserID)
	if err != nil {
		return fmt.Errorf("curation: flag: check reactor %d: %w", ev.UserID, err)
	}
	if !ok {
		return nil
	}
	return s.Flag(ctx, ev)
}

// Flag moves a message from VINTAGE (or untracked) to CURATED and posts it
// for review.
func (s *Service) Flag(ctx context.Context, ev platform.ReactionAdded) error {
	guild, configured, err := s.repo.Guild(ev.GuildID)
	if err != nil {
		return fmt.Errorf("curation: flag: load guild %d: %w", ev.GuildID, err)
	}
	if !configured {
		log.Printf("curation: flag: guild %d has no pending channel, ignoring %d/%d", ev.GuildID, ev.ChannelID, ev.MessageID)
		return nil
	}

	release, err := s.lockMessage(ctx, ev.ChannelID, ev.MessageID)
	if err != nil {
		return err
	}
	defer release()

	msg, exists, err := s.repo.Message(ev.ChannelID, ev.MessageID)
	if err != nil {
		return fmt.Errorf("curation: flag: load message: %w", err)
	}
	if exists && msg.Status != StatusVintage {
		stalled, err := s.stalled(msg)
		if err != nil {
			return fmt.Errorf("curation: flag: load alternates: %w", err)
		}
		if !stalled {
			log.Printf("curation: flag: %d/%d already %s", ev.ChannelID, ev.MessageID, msg.Status)
			return nil
		}
		log.Printf("curation: flag: %d/%d is %s without a review card, posting again", ev.ChannelID, ev.MessageID, msg.Status)
	}

	posted, err := s.platform.FetchMessage(ctx, ev.ChannelID, ev.MessageID)
	if err != nil {
		return fmt.Errorf("curation: flag: fetch %d/%d: %w", ev.ChannelID, ev.MessageID, err)
	}

	reviewID, err := s.platform.Send(ctx, guild.PendingChannelID, platform.Outgoing{
		Card:     MessageCard(posted),
		Controls: reviewControls(),
	})
	if err != nil {
		return fmt.Errorf("curation: flag: post review card: %w", err)
	}

	if err := s.repo.SaveAlternate(&Alternate{
		AlternateChannelID: guild.PendingChannelID,
		AlternateMessageID: reviewID,
		Type:               AlternatePending,
		OriginalChannelID:  ev.ChannelID,
		OriginalMessageID:  ev.MessageID,
	}); err != nil {
		s.retract(ctx, guild.PendingChannelID, reviewID)
		return fmt.Errorf("curation: flag: save pending alternate: %w", err)
	}

	if !exists {
		msg = &Message{ChannelID: ev.ChannelID, MessageID: ev.MessageID}
	}
	msg.Status = StatusCurated
	msg.setMeta(MetaGuildID, ev.GuildID)
	msg.setMeta(MetaAuthorID, posted.AuthorID)
	msg.setMeta(MetaCuratedBy, ev.UserID)
	msg.setMeta(MetaCuratedAt, s.now())
	if err := s.repo.SaveMessage(msg); err != nil {
		s.dropAlternate(guild.PendingChannelID, reviewID, AlternatePending)
		s.retract(ctx, guild.PendingChannelID, reviewID)
		return fmt.Errorf("curation: flag: save message: %w", err)
	}

	log.Printf("curation: flag: %d/%d curated by %d", ev.ChannelID, ev.MessageID, ev.UserID)
	return nil
}

// stalled reports whether a CURATED message lost its review card, which
// happens when a flag was interrupted after the status was written.
func (s *Service) stalled(msg *Message) (bool, error) {
	if msg.Status != StatusCurated {
		return false, nil
	}
	alts, err := s.repo.AlternatesOf(msg.ChannelID, msg.MessageID)
	if err != nil {
		return false, err
	}
	for _, a := range alts {
		if a.Type == AlternatePending || a.Type == AlternateRequest {
			return false, nil
		}
	}
	return true, nil
}
