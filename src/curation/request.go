package curation

import (
	"context"
	"fmt"
	"log"

	"github.com/stake-plus/govcurator/src/platform"
)

// Request asks the author of a curated message for permission to quote it.
// withComments additionally lets replies to the consent message become
// comments on the original.
func (s *Service) Request(ctx context.Context, ev platform.ComponentActivated, withComments bool) error {
	pending, ok, err := s.repo.Alternate(ev.OriginChannelID, ev.OriginMessageID, AlternatePending)
	if err != nil {
		return fmt.Errorf("curation: request: load alternate: %w", err)
	}
	if !ok {
		log.Printf("curation: request: %d/%d is not a pending card", ev.OriginChannelID, ev.OriginMessageID)
		return nil
	}

	allowed, err := s.privileged(ctx, ev.GuildID, ev.ActorID)
	if err != nil {
		return fmt.Errorf("curation: request: check actor %d: %w", ev.ActorID, err)
	}
	if !allowed {
		log.Printf("curation: request: %d may not request permission", ev.ActorID)
		return nil
	}

	release, err := s.lockMessage(ctx, pending.OriginalChannelID, pending.OriginalMessageID)
	if err != nil {
		return err
	}
	defer release()

	msg, ok, err := s.repo.Original(pending)
	if err != nil {
		return fmt.Errorf("curation: request: load message: %w", err)
	}
	if !ok {
		log.Printf("curation: request: dangling alternate %d, original %d/%d is gone", pending.ID, pending.OriginalChannelID, pending.OriginalMessageID)
		return nil
	}
	if msg.Status != StatusCurated {
		log.Printf("curation: request: %d/%d is %s, not %s", msg.ChannelID, msg.MessageID, msg.Status, StatusCurated)
		return nil
	}

	posted, err := s.platform.FetchMessage(ctx, msg.ChannelID, msg.MessageID)
	if err != nil {
		return fmt.Errorf("curation: request: fetch %d/%d: %w", msg.ChannelID, msg.MessageID, err)
	}

	author, _, err := s.repo.User(posted.AuthorID)
	if err != nil {
		return fmt.Errorf("curation: request: load author: %w", err)
	}
	dm, err := s.platform.DirectChannel(ctx, posted.AuthorID)
	if err != nil {
		return fmt.Errorf("curation: request: open direct channel with %d: %w", posted.AuthorID, err)
	}

	out := platform.Outgoing{Card: consentCard(posted), Controls: consentControls(s.cfg.InviteURL)}
	if !author.HaveMet {
		out.Content = introText
	}
	consentID, err := s.platform.Send(ctx, dm, out)
	if err != nil {
		return fmt.Errorf("curation: request: send consent request: %w", err)
	}

	if err := s.repo.SaveAlternate(&Alternate{
		AlternateChannelID: dm,
		AlternateMessageID: consentID,
		Type:               AlternateRequest,
		OriginalChannelID:  msg.ChannelID,
		OriginalMessageID:  msg.MessageID,
	}); err != nil {
		s.retract(ctx, dm, consentID)
		return fmt.Errorf("curation: request: save request alternate: %w", err)
	}

	msg.Status = StatusRequested
	msg.setMeta(MetaAuthorID, posted.AuthorID)
	msg.setMeta(MetaRequestedBy, ev.ActorID)
	msg.setMeta(MetaRequestedAt, s.now())
	if err := s.repo.SaveMessage(msg); err != nil {
		s.dropAlternate(dm, consentID, AlternateRequest)
		s.retract(ctx, dm, consentID)
		return fmt.Errorf("curation: request: save message: %w", err)
	}

	if !author.HaveMet {
		author.HaveMet = true
		if err := s.repo.SaveUser(author); err != nil {
			log.Printf("curation: request: save author %d: %v", author.ID, err)
		}
	}

	if err := s.repo.DeleteAlternate(pending); err != nil {
		return fmt.Errorf("curation: request: delete pending alternate: %w", err)
	}
	if withComments {
		if err := s.repo.SaveAlternate(&Alternate{
			AlternateChannelID: dm,
			AlternateMessageID: consentID,
			Type:               AlternateCommentable,
			OriginalChannelID:  msg.ChannelID,
			OriginalMessageID:  msg.MessageID,
		}); err != nil {
			return fmt.Errorf("curation: request: save commentable alternate: %w", err)
		}
	}

	// The request stands even if the card keeps live buttons; the status
	// guard turns further presses into no-ops.
	if err := s.platform.Edit(ctx, pending.AlternateChannelID, pending.AlternateMessageID, platform.Outgoing{
		Controls: platform.DisableAll(reviewControls()),
	}); err != nil {
		log.Printf("curation: request: disable review card %d/%d: %v", pending.AlternateChannelID, pending.AlternateMessageID, err)
	}

	log.Printf("curation: request: asked %d about %d/%d", posted.AuthorID, msg.ChannelID, msg.MessageID)
	return nil
}
