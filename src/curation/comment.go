package curation

import (
	"context"
	"fmt"
	"log"

	"github.com/stake-plus/govcurator/src/platform"
)

// Comment appends a reply to a commentable alternate onto the original
// message's comment list.
func (s *Service) Comment(ctx context.Context, ev platform.MessagePosted) error {
	if ev.ReplyTo == nil {
		return nil
	}
	alt, ok, err := s.repo.Alternate(ev.ReplyTo.ChannelID, ev.ReplyTo.MessageID, AlternateCommentable)
	if err != nil {
		return fmt.Errorf("curation: comment: load alternate: %w", err)
	}
	if !ok {
		return nil
	}

	release, err := s.lockMessage(ctx, alt.OriginalChannelID, alt.OriginalMessageID)
	if err != nil {
		return err
	}
	defer release()

	msg, ok, err := s.repo.Original(alt)
	if err != nil {
		return fmt.Errorf("curation: comment: load message: %w", err)
	}
	if !ok {
		log.Printf("curation: comment: dangling alternate %d, original %d/%d is gone", alt.ID, alt.OriginalChannelID, alt.OriginalMessageID)
		return nil
	}

	link := platform.MessageLink{ChannelID: ev.ChannelID, MessageID: ev.MessageID}
	for _, c := range msg.Comments {
		if c == link {
			return nil
		}
	}
	msg.Comments = append(msg.Comments, link)
	if err := s.repo.SaveMessage(msg); err != nil {
		return fmt.Errorf("curation: comment: save message: %w", err)
	}
	log.Printf("curation: comment: %d/%d now has %d comments", msg.ChannelID, msg.MessageID, len(msg.Comments))
	return nil
}

// Bridge forwards a message posted in a grouped channel to the other
// channels of its group.
func (s *Service) Bridge(ctx context.Context, ev platform.MessagePosted) error {
	if ev.FromBot {
		return nil
	}
	ch, ok, err := s.repo.Channel(ev.ChannelID)
	if err != nil {
		return fmt.Errorf("curation: bridge: load channel %d: %w", ev.ChannelID, err)
	}
	if !ok {
		return nil
	}
	peers, err := s.repo.ChannelsInGroup(ch.Group)
	if err != nil {
		return fmt.Errorf("curation: bridge: load group %s: %w", ch.Group, err)
	}
	if len(peers) < 2 {
		return nil
	}

	posted, err := s.platform.FetchMessage(ctx, ev.ChannelID, ev.MessageID)
	if err != nil {
		return fmt.Errorf("curation: bridge: fetch %d/%d: %w", ev.ChannelID, ev.MessageID, err)
	}
	card := bridgeCard(posted, ch.Group)
	for _, peer := range peers {
		if peer.ID == ev.ChannelID {
			continue
		}
		if _, err := s.platform.Send(ctx, peer.ID, platform.Outgoing{Card: card}); err != nil {
			log.Printf("curation: bridge: relay to %d: %v", peer.ID, err)
		}
	}
	return nil
}
