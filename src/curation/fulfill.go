package curation

import (
	"context"
	"fmt"
	"log"

	"github.com/stake-plus/govcurator/src/archive"
	"github.com/stake-plus/govcurator/src/platform"
)

// Fulfill records the author's answer to a consent request. Yes outcomes are
// published to the guild's approved channel and archived.
func (s *Service) Fulfill(ctx context.Context, ev platform.ComponentActivated, outcome Status) error {
	if outcome < StatusApproved {
		return fmt.Errorf("curation: fulfill: %s is not an outcome", outcome)
	}
	req, ok, err := s.repo.Alternate(ev.OriginChannelID, ev.OriginMessageID, AlternateRequest)
	if err != nil {
		return fmt.Errorf("curation: fulfill: load alternate: %w", err)
	}
	if !ok {
		log.Printf("curation: fulfill: %d/%d is not an open consent request", ev.OriginChannelID, ev.OriginMessageID)
		return nil
	}

	release, err := s.lockMessage(ctx, req.OriginalChannelID, req.OriginalMessageID)
	if err != nil {
		return err
	}
	defer release()

	msg, ok, err := s.repo.Original(req)
	if err != nil {
		return fmt.Errorf("curation: fulfill: load message: %w", err)
	}
	if !ok {
		log.Printf("curation: fulfill: dangling alternate %d, original %d/%d is gone", req.ID, req.OriginalChannelID, req.OriginalMessageID)
		return nil
	}
	if msg.Status >= StatusApproved {
		log.Printf("curation: fulfill: %d/%d already %s", msg.ChannelID, msg.MessageID, msg.Status)
		return nil
	}
	if msg.Status != StatusRequested {
		log.Printf("curation: fulfill: %d/%d is %s, permission was never requested", msg.ChannelID, msg.MessageID, msg.Status)
		return nil
	}
	if author := msg.MetaInt(MetaAuthorID); author != ev.ActorID {
		log.Printf("curation: fulfill: %d answered for %d/%d authored by %d", ev.ActorID, msg.ChannelID, msg.MessageID, author)
		return nil
	}

	var pub *publication
	if outcome.Published() {
		if pub, err = s.publish(ctx, msg, outcome); err != nil {
			return err
		}
	}

	msg.Status = outcome
	msg.setMeta(MetaFulfilledBy, ev.ActorID)
	msg.setMeta(MetaFulfilledAt, s.now())
	if err := s.repo.SaveMessage(msg); err != nil {
		if pub != nil {
			s.retract(ctx, pub.guild.ApprovedChannelID, pub.messageID)
		}
		return fmt.Errorf("curation: fulfill: save message: %w", err)
	}
	if pub != nil {
		if err := s.distribute(ctx, msg, pub); err != nil {
			return err
		}
	}
	if err := s.repo.DeleteAlternate(req); err != nil {
		return fmt.Errorf("curation: fulfill: delete request alternate: %w", err)
	}

	if err := s.platform.Edit(ctx, req.AlternateChannelID, req.AlternateMessageID, platform.Outgoing{
		Controls: platform.DisableAll(consentControls(s.cfg.InviteURL)),
	}); err != nil {
		log.Printf("curation: fulfill: disable consent controls on %d/%d: %v", req.AlternateChannelID, req.AlternateMessageID, err)
	}
	if _, err := s.platform.Send(ctx, req.AlternateChannelID, platform.Outgoing{Content: outcomeNotice(outcome)}); err != nil {
		log.Printf("curation: fulfill: notify author in %d: %v", req.AlternateChannelID, err)
	}

	log.Printf("curation: fulfill: %d/%d is %s", msg.ChannelID, msg.MessageID, outcome)
	return nil
}

// publication is a quote posted to a guild's approved channel.
type publication struct {
	guild     Guild
	messageID int64
	card      *platform.Card
}

// publish posts the quote and archives it. On error nothing stays posted, so
// the author can answer again.
func (s *Service) publish(ctx context.Context, msg *Message, outcome Status) (*publication, error) {
	guildID := msg.MetaInt(MetaGuildID)
	guild, ok, err := s.repo.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("curation: publish: load guild %d: %w", guildID, err)
	}
	if !ok {
		return nil, fmt.Errorf("curation: publish: %d/%d: %w", msg.ChannelID, msg.MessageID, ErrGuildNotConfigured)
	}

	posted, err := s.platform.FetchMessage(ctx, msg.ChannelID, msg.MessageID)
	if err != nil {
		return nil, fmt.Errorf("curation: publish: fetch %d/%d: %w", msg.ChannelID, msg.MessageID, err)
	}
	card := MessageCard(posted)
	if outcome == StatusAnonymous {
		card = anonymize(card, s.cfg.AnonymousIconURL)
	}

	publishedID, err := s.platform.Send(ctx, guild.ApprovedChannelID, platform.Outgoing{Card: card})
	if err != nil {
		return nil, fmt.Errorf("curation: publish: send to approved channel: %w", err)
	}

	if err := s.archive.Record(ctx, s.entry(ctx, msg, posted, outcome)); err != nil {
		s.retract(ctx, guild.ApprovedChannelID, publishedID)
		return nil, fmt.Errorf("curation: publish: archive %d/%d: %w", msg.ChannelID, msg.MessageID, err)
	}
	return &publication{guild: guild, messageID: publishedID, card: card}, nil
}

// distribute tracks a published quote for comments and mirrors it to the
// guild's bridge channel.
func (s *Service) distribute(ctx context.Context, msg *Message, pub *publication) error {
	for _, t := range []AlternateType{AlternateApproved, AlternateCommentable} {
		if err := s.repo.SaveAlternate(&Alternate{
			AlternateChannelID: pub.guild.ApprovedChannelID,
			AlternateMessageID: pub.messageID,
			Type:               t,
			OriginalChannelID:  msg.ChannelID,
			OriginalMessageID:  msg.MessageID,
		}); err != nil {
			return fmt.Errorf("curation: publish: save %s alternate: %w", t, err)
		}
	}
	if pub.guild.BridgeChannelID != 0 {
		if _, err := s.platform.Send(ctx, pub.guild.BridgeChannelID, platform.Outgoing{Card: pub.card}); err != nil {
			log.Printf("curation: publish: mirror to bridge channel %d: %v", pub.guild.BridgeChannelID, err)
		}
	}
	return nil
}

func (s *Service) entry(ctx context.Context, msg *Message, posted platform.PostedMessage, outcome Status) archive.Entry {
	e := archive.Entry{
		ChannelID: msg.ChannelID,
		MessageID: msg.MessageID,
		Content:   posted.Content,
		Timestamp: posted.Timestamp(),
		Guild:     archive.Ident{ID: posted.GuildID, Name: posted.GuildName},
		Channel:   archive.Ident{ID: posted.ChannelID, Name: posted.ChannelName},
		Reactions: s.curatorReactions(ctx, posted),
		Comments:  make([]archive.Link, 0, len(msg.Comments)),
		Outcome:   outcome.String(),
	}
	if outcome != StatusAnonymous {
		e.Author = &archive.Ident{ID: posted.AuthorID, Name: posted.AuthorName}
	}
	for _, c := range msg.Comments {
		e.Comments = append(e.Comments, archive.Link{ChannelID: c.ChannelID, MessageID: c.MessageID})
	}
	return e
}

// curatorReactions counts the curation emoji placed by privileged users.
// When the reactors cannot be listed the raw count is used.
func (s *Service) curatorReactions(ctx context.Context, posted platform.PostedMessage) int {
	users, err := s.platform.Reactors(ctx, posted.ChannelID, posted.MessageID, s.cfg.Emoji)
	if err != nil {
		log.Printf("curation: list reactors of %d/%d: %v", posted.ChannelID, posted.MessageID, err)
		return posted.Reactions[s.cfg.Emoji]
	}
	n := 0
	for _, id := range users {
		ok, err := s.privileged(ctx, posted.GuildID, id)
		if err != nil {
			log.Printf("curation: check reactor %d: %v", id, err)
			continue
		}
		if ok {
			n++
		}
	}
	return n
}
