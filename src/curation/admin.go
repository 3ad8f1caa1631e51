package curation

import (
	"context"
	"fmt"
	"log"
)

// BootstrapAdmin makes the bot owner an admin.
func (s *Service) BootstrapAdmin(ctx context.Context, actorID int64) error {
	if s.cfg.OwnerID == 0 || actorID != s.cfg.OwnerID {
		return fmt.Errorf("%w: only the owner can bootstrap", ErrForbidden)
	}
	return s.grantAdmin(actorID)
}

// GrantAdmin sets the admin flag without checks. It backs the CLI, which runs
// with database access.
func (s *Service) GrantAdmin(userID int64) error {
	return s.grantAdmin(userID)
}

func (s *Service) grantAdmin(userID int64) error {
	u, _, err := s.repo.User(userID)
	if err != nil {
		return fmt.Errorf("curation: load user %d: %w", userID, err)
	}
	u.IsAdmin = true
	if err := s.repo.SaveUser(u); err != nil {
		return fmt.Errorf("curation: save user %d: %w", userID, err)
	}
	log.Printf("curation: admin: %d is now an admin", userID)
	return nil
}

// ToggleAdmin flips targetID's admin flag and returns the new value.
func (s *Service) ToggleAdmin(ctx context.Context, actorID, targetID int64) (bool, error) {
	if err := s.requireAdmin(actorID); err != nil {
		return false, err
	}
	u, _, err := s.repo.User(targetID)
	if err != nil {
		return false, fmt.Errorf("curation: load user %d: %w", targetID, err)
	}
	u.IsAdmin = !u.IsAdmin
	if err := s.repo.SaveUser(u); err != nil {
		return false, fmt.Errorf("curation: save user %d: %w", targetID, err)
	}
	log.Printf("curation: admin: %d set admin=%t for %d", actorID, u.IsAdmin, targetID)
	return u.IsAdmin, nil
}

func (s *Service) requireAdmin(actorID int64) error {
	ok, err := s.IsAdmin(actorID)
	if err != nil {
		return fmt.Errorf("curation: load user %d: %w", actorID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %d is not an admin", ErrForbidden, actorID)
	}
	return nil
}

// ConfigureGuild sets all routing channels for a guild at once. A zero
// bridgeID leaves mirroring off.
func (s *Service) ConfigureGuild(ctx context.Context, actorID, guildID, pendingID, approvedID, bridgeID int64) error {
	if err := s.requireAdmin(actorID); err != nil {
		return err
	}
	if pendingID == 0 || approvedID == 0 {
		return fmt.Errorf("curation: guild %d needs both a pending and an approved channel", guildID)
	}
	g := Guild{ID: guildID, PendingChannelID: pendingID, ApprovedChannelID: approvedID, BridgeChannelID: bridgeID}
	if err := s.repo.SaveGuild(g); err != nil {
		return fmt.Errorf("curation: save guild %d: %w", guildID, err)
	}
	log.Printf("curation: guild %d routed pending=%d approved=%d bridge=%d", guildID, pendingID, approvedID, bridgeID)
	return nil
}

func (s *Service) updateGuild(actorID, guildID int64, apply func(*Guild)) error {
	if err := s.requireAdmin(actorID); err != nil {
		return err
	}
	g, ok, err := s.repo.Guild(guildID)
	if err != nil {
		return fmt.Errorf("curation: load guild %d: %w", guildID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrGuildNotConfigured, guildID)
	}
	apply(&g)
	if err := s.repo.SaveGuild(g); err != nil {
		return fmt.Errorf("curation: save guild %d: %w", guildID, err)
	}
	return nil
}

func (s *Service) SetPendingChannel(ctx context.Context, actorID, guildID, channelID int64) error {
	return s.updateGuild(actorID, guildID, func(g *Guild) { g.PendingChannelID = channelID })
}

func (s *Service) SetApprovedChannel(ctx context.Context, actorID, guildID, channelID int64) error {
	return s.updateGuild(actorID, guildID, func(g *Guild) { g.ApprovedChannelID = channelID })
}

// SetBridgeChannel sets the channel approved quotes are mirrored to; zero
// clears it.
func (s *Service) SetBridgeChannel(ctx context.Context, actorID, guildID, channelID int64) error {
	return s.updateGuild(actorID, guildID, func(g *Guild) { g.BridgeChannelID = channelID })
}

// SetChannelGroup puts a channel in a bridge group and returns how many other
// channels share it. An empty group removes the channel from its group.
func (s *Service) SetChannelGroup(ctx context.Context, actorID, channelID int64, group string) (int, error) {
	if err := s.requireAdmin(actorID); err != nil {
		return 0, err
	}
	if group == "" {
		removed, err := s.repo.DeleteChannel(channelID)
		if err != nil {
			return 0, fmt.Errorf("curation: clear group of %d: %w", channelID, err)
		}
		if !removed {
			return 0, fmt.Errorf("%w: %d", ErrNotBridged, channelID)
		}
		return 0, nil
	}

	if err := s.repo.SaveChannel(Channel{ID: channelID, Group: group}); err != nil {
		return 0, fmt.Errorf("curation: set group of %d: %w", channelID, err)
	}
	peers, err := s.repo.ChannelsInGroup(group)
	if err != nil {
		return 0, fmt.Errorf("curation: load group %s: %w", group, err)
	}
	return len(peers) - 1, nil
}
