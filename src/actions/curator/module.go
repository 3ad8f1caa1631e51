// Package curator runs the curation service against a live Discord gateway.
package curator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stake-plus/govcurator/src/actions/core"
	"github.com/stake-plus/govcurator/src/archive"
	sharedconfig "github.com/stake-plus/govcurator/src/config"
	"github.com/stake-plus/govcurator/src/curation"
	shareddiscord "github.com/stake-plus/govcurator/src/discord"
	"github.com/stake-plus/govcurator/src/lock"
)

var _ core.Module = (*Module)(nil)

const eventTimeout = 30 * time.Second

// Dependencies are the pieces shared with the rest of the process.
type Dependencies struct {
	Repository *curation.Repository
	Locks      lock.Locker
	Archive    archive.Sink
}

type Module struct {
	config     *sharedconfig.CuratorConfig
	session    *discordgo.Session
	service    *curation.Service
	runtimeCtx context.Context
	cancel     context.CancelFunc
}

func NewModule(cfg *sharedconfig.CuratorConfig, deps Dependencies) (*Module, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("curator: discord token is not configured")
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent |
		discordgo.IntentsDirectMessages

	p := shareddiscord.NewPlatform(session, cfg.CuratorRoleID, cfg.CuratorRoleName)
	service := curation.NewService(deps.Repository, p, deps.Locks, deps.Archive, curation.Config{
		Emoji:            cfg.Emoji,
		InviteURL:        cfg.InviteURL,
		AnonymousIconURL: cfg.AnonymousIconURL,
		OwnerID:          cfg.OwnerID,
	})

	module := &Module{
		config:  cfg,
		session: session,
		service: service,
	}
	module.initHandlers()
	return module, nil
}

// Name implements core.Module.
func (b *Module) Name() string { return "curator" }

// Service exposes the curation service for other modules.
func (b *Module) Service() *curation.Service { return b.service }

func (b *Module) initHandlers() {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onReactionAdd)
	b.session.AddHandler(b.onInteractionCreate)
	b.session.AddHandler(b.onMessageCreate)
}

func (b *Module) eventContext() (context.Context, context.CancelFunc) {
	parent := b.runtimeCtx
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, eventTimeout)
}

func (b *Module) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("curator: logged in as %s", s.State.User.Username)

	for _, guildID := range b.config.GuildIDs {
		if err := shareddiscord.RegisterSlashCommands(s, guildID); err != nil {
			log.Printf("curator: register commands in %s: %v", guildID, err)
		}
	}
}

func (b *Module) onReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.MessageReaction == nil || r.UserID == s.State.User.ID {
		return
	}
	ctx, cancel := b.eventContext()
	defer cancel()

	if err := b.service.HandleReaction(ctx, shareddiscord.ReactionEvent(r.MessageReaction)); err != nil {
		log.Printf("curator: reaction on %s/%s: %v", r.ChannelID, r.MessageID, err)
	}
}

func (b *Module) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil {
		return
	}
	ctx, cancel := b.eventContext()
	defer cancel()

	if err := b.service.HandleMessage(ctx, shareddiscord.MessageEvent(m.Message, s.State.User.ID)); err != nil {
		log.Printf("curator: message %s/%s: %v", m.ChannelID, m.ID, err)
	}
}

func (b *Module) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i.Interaction)
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(s, i.Interaction)
	}
}

func (b *Module) handleComponent(s *discordgo.Session, i *discordgo.Interaction) {
	// Acknowledge first; the service edits the message itself.
	if err := s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		log.Printf("curator: acknowledge interaction: %v", err)
	}

	ctx, cancel := b.eventContext()
	defer cancel()

	if err := b.service.HandleComponent(ctx, shareddiscord.ComponentEvent(i)); err != nil {
		log.Printf("curator: component %q: %v", i.MessageComponentData().CustomID, err)
	}
}

func (b *Module) handleCommand(s *discordgo.Session, i *discordgo.Interaction) {
	ctx, cancel := b.eventContext()
	defer cancel()

	reply, err := shareddiscord.RunCommand(ctx, b.service, i)
	if err != nil {
		log.Printf("curator: command %q: %v", i.ApplicationCommandData().Name, err)
		reply = shareddiscord.CommandError(err)
	}

	if err := shareddiscord.InteractionRespondNoEmbed(s, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: reply,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}); err != nil {
		log.Printf("curator: respond to command: %v", err)
	}
}

func (b *Module) Start(ctx context.Context) error {
	runtimeCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.runtimeCtx = runtimeCtx

	if err := b.session.Open(); err != nil {
		cancel()
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	return nil
}

func (b *Module) Stop(ctx context.Context) {
	if b.cancel != nil {
		b.cancel()
	}

	b.runtimeCtx = nil

	if b.session != nil {
		if err := b.session.Close(); err != nil {
			log.Printf("curator: close session: %v", err)
		}
	}
}
