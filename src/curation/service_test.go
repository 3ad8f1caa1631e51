package curation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stake-plus/govcurator/src/archive"
	"github.com/stake-plus/govcurator/src/engine"
	"github.com/stake-plus/govcurator/src/lock"
	"github.com/stake-plus/govcurator/src/platform"
	"github.com/stake-plus/govcurator/src/platform/platformtest"
	"github.com/stake-plus/govcurator/src/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	guildID    = int64(1)
	pendingCh  = int64(100)
	approvedCh = int64(200)
	bridgeCh   = int64(300)
	originCh   = int64(10)
	originMsg  = int64(20)
	authorID   = int64(77)
	curatorID  = int64(5)
	adminID    = int64(6)
	ownerID    = int64(8)
)

var fixedNow = time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)

var errUnavailable = errors.New("service unavailable")

type memorySink struct {
	mu      sync.Mutex
	entries []archive.Entry
	fail    error
}

func (m *memorySink) Record(_ context.Context, e archive.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memorySink) failWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func (m *memorySink) all() []archive.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]archive.Entry(nil), m.entries...)
}

type harness struct {
	svc  *Service
	repo *Repository
	rec  *platformtest.Recorder
	sink *memorySink
}

func newHarness(t *testing.T, tables store.Tables) *harness {
	t.Helper()
	reg := engine.NewRegistry()
	require.NoError(t, Register(reg))
	eng, err := engine.New(reg, tables)
	require.NoError(t, err)

	repo := NewRepository(eng)
	rec := platformtest.NewRecorder()
	sink := &memorySink{}
	svc := NewService(repo, rec, lock.NewKeyedMutex(), sink, Config{
		InviteURL: "https://discord.gg/example",
		OwnerID:   ownerID,
	})
	svc.now = func() time.Time { return fixedNow }

	rec.GrantCurator(guildID, curatorID)
	rec.AddMessage(platform.PostedMessage{
		ChannelID:       originCh,
		MessageID:       originMsg,
		GuildID:         guildID,
		AuthorID:        authorID,
		AuthorName:      "ada",
		AuthorAvatarURL: "https://cdn.example/ada.png",
		Content:         "Quadratic voting needs sybil resistance.",
		CreatedAt:       fixedNow.Add(-time.Hour),
		URL:             "https://discord.com/channels/1/10/20",
		ChannelName:     "general",
		GuildName:       "Agora",
	})
	// Only the curator and the admin count towards the archived total.
	for _, user := range []int64{curatorID, adminID, 999} {
		rec.AddReaction(originCh, originMsg, DefaultEmoji, user)
	}
	require.NoError(t, repo.SaveUser(User{ID: adminID, IsAdmin: true}))
	require.NoError(t, repo.SaveGuild(Guild{
		ID:                guildID,
		PendingChannelID:  pendingCh,
		ApprovedChannelID: approvedCh,
		BridgeChannelID:   bridgeCh,
	}))
	return &harness{svc: svc, repo: repo, rec: rec, sink: sink}
}

func newMemoryHarness(t *testing.T) *harness {
	return newHarness(t, store.NewMemory())
}

func (h *harness) flag(t *testing.T) {
	t.Helper()
	require.NoError(t, h.svc.HandleReaction(context.Background(), platform.ReactionAdded{
		GuildID: guildID, ChannelID: originCh, MessageID: originMsg, UserID: curatorID, Emoji: DefaultEmoji,
	}))
}

func (h *harness) reviewCard(t *testing.T) platformtest.Sent {
	t.Helper()
	cards := h.rec.SentTo(pendingCh)
	require.Len(t, cards, 1)
	return cards[0]
}

func (h *harness) request(t *testing.T, control string) {
	t.Helper()
	require.NoError(t, h.tryRequest(t, control))
}

func (h *harness) consent(t *testing.T) platformtest.Sent {
	t.Helper()
	dm, ok := h.rec.DirectChannelOf(authorID)
	require.True(t, ok)
	sent := h.rec.SentTo(dm)
	require.NotEmpty(t, sent)
	return sent[0]
}

func (h *harness) answer(t *testing.T, control string, actor int64) {
	t.Helper()
	require.NoError(t, h.tryAnswer(t, control, actor))
}

func (h *harness) tryAnswer(t *testing.T, control string, actor int64) error {
	t.Helper()
	c := h.consent(t)
	return h.svc.HandleComponent(context.Background(), platform.ComponentActivated{
		OriginChannelID: c.ChannelID, OriginMessageID: c.MessageID, ControlID: control, ActorID: actor,
	})
}

func (h *harness) tryRequest(t *testing.T, control string) error {
	t.Helper()
	card := h.reviewCard(t)
	return h.svc.HandleComponent(context.Background(), platform.ComponentActivated{
		GuildID: guildID, OriginChannelID: pendingCh, OriginMessageID: card.MessageID, ControlID: control, ActorID: curatorID,
	})
}

func (h *harness) status(t *testing.T) Status {
	t.Helper()
	msg, ok, err := h.repo.Message(originCh, originMsg)
	require.NoError(t, err)
	require.True(t, ok)
	return msg.Status
}

func TestFlagPostsReviewCard(t *testing.T) {
	h := newMemoryHarness(t)
	h.flag(t)

	msg, ok, err := h.repo.Message(originCh, originMsg)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusCurated, msg.Status)
	assert.Equal(t, guildID, msg.MetaInt(MetaGuildID))
	assert.Equal(t, authorID, msg.MetaInt(MetaAuthorID))
	assert.Equal(t, curatorID, msg.MetaInt(MetaCuratedBy))
	assert.True(t, fixedNow.Equal(msg.MetaTime(MetaCuratedAt)))
	assert.Empty(t, msg.Comments)

	card := h.reviewCard(t)
	require.NotNil(t, card.Msg.Card)
	assert.Equal(t, "ada", card.Msg.Card.AuthorName)
	assert.Equal(t, "Quadratic voting needs sybil resistance.", card.Msg.Card.Description)
	require.Len(t, card.Msg.Controls, 2)
	assert.Equal(t, ControlRequest, card.Msg.Controls[0].ID)
	assert.Equal(t, ControlRequestComments, card.Msg.Controls[1].ID)

	alt, ok, err := h.repo.Alternate(pendingCh, card.MessageID, AlternatePending)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, originCh, alt.OriginalChannelID)
	assert.Equal(t, originMsg, alt.OriginalMessageID)
}

func TestFlagIgnoresUnprivilegedAndOtherEmoji(t *testing.T) {
	h := newMemoryHarness(t)
	ctx := context.Background()

	require.NoError(t, h.svc.HandleReaction(ctx, platform.ReactionAdded{
		GuildID: guildID, ChannelID: originCh, MessageID: originMsg, UserID: 999, Emoji: DefaultEmoji,
	}))
	require.NoError(t, h.svc.HandleReaction(ctx, platform.ReactionAdded{
		GuildID: guildID, ChannelID: originCh, MessageID: originMsg, UserID: curatorID, Emoji: "👍",
	}))
	require.NoError(t, h.svc.HandleReaction(ctx, platform.ReactionAdded{
		ChannelID: originCh, MessageID: originMsg, UserID: curatorID, Emoji: DefaultEmoji,
	}))

	assert.Equal(t, 0, h.rec.SentCount())
	_, ok, err := h.repo.Message(originCh, originMsg)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFlagByAdminWithoutRole(t *testing.T) {
	h := newMemoryHarness(t)
	require.NoError(t, h.svc.HandleReaction(context.Background(), platform.ReactionAdded{
		GuildID: guildID, ChannelID: originCh, MessageID: originMsg, UserID: adminID, Emoji: DefaultEmoji,
	}))
	assert.Equal(t, StatusCurated, h.status(t))
}

func TestFlagTwiceIsRejected(t *testing.T) {
	h := newMemoryHarness(t)
	h.flag(t)
	h.flag(t)
	assert.Equal(t, 1, h.rec.SentCount())
}

func TestFlagUnconfiguredGuild(t *testing.T) {
	h := newMemoryHarness(t)
	require.NoError(t, h.svc.HandleReaction(context.Background(), platform.ReactionAdded{
		GuildID: 42, ChannelID: originCh, MessageID: originMsg, UserID: adminID, Emoji: DefaultEmoji,
	}))
	assert.Equal(t, 0, h.rec.SentCount())
}

func TestFlagVintageMessage(t *testing.T) {
	h := newMemoryHarness(t)
	vintage := &Message{ChannelID: originCh, MessageID: originMsg, Status: StatusVintage}
	require.NoError(t, h.repo.SaveMessage(vintage))

	h.flag(t)

	msg, ok, err := h.repo.Message(originCh, originMsg)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, vintage.ID, msg.ID)
	assert.Equal(t, StatusCurated, msg.Status)
}

func TestConcurrentFlagsPostOnce(t *testing.T) {
	h := newMemoryHarness(t)
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.svc.HandleReaction(context.Background(), platform.ReactionAdded{
				GuildID: guildID, ChannelID: originCh, MessageID: originMsg, UserID: curatorID, Emoji: DefaultEmoji,
			}))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, h.rec.SentCount())
}

func TestRequestSendsConsent(t *testing.T) {
	h := newMemoryHarness(t)
	h.flag(t)
	h.request(t, ControlRequest)

	assert.Equal(t, StatusRequested, h.status(t))

	card := h.reviewCard(t)
	for _, c := range card.Msg.Controls {
		assert.True(t, c.Disabled, c.ID)
	}
	_, ok, err := h.repo.Alternate(pendingCh, card.MessageID, AlternatePending)
	require.NoError(t, err)
	assert.False(t, ok)

	consent := h.consent(t)
	assert.Equal(t, introText, consent.Msg.Content)
	require.NotNil(t, consent.Msg.Card)
	require.Len(t, consent.Msg.Card.Fields, 1)
	assert.Equal(t, consentFieldName, consent.Msg.Card.Fields[0].Name)
	ids := make([]string, 0, len(consent.Msg.Controls))
	for _, c := range consent.Msg.Controls {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{ControlAccept, ControlAnonymous, ControlDecline, ""}, ids)
	assert.Equal(t, "https://discord.gg/example", consent.Msg.Controls[3].URL)

	_, ok, err = h.repo.Alternate(consent.ChannelID, consent.MessageID, AlternateRequest)
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = h.repo.Alternate(consent.ChannelID, consent.MessageID, AlternateCommentable)
	require.NoError(t, err)
	assert.False(t, ok)

	author, _, err := h.repo.User(authorID)
	require.NoError(t, err)
	assert.True(t, author.HaveMet)
}

func TestRequestTwiceIsRejected(t *testing.T) {
	h := newMemoryHarness(t)
	h.flag(t)
	h.request(t, ControlRequest)
	sent := h.rec.SentCount()

	h.request(t, ControlRequest)
	assert.Equal(t, sent, h.rec.SentCount())
	assert.Equal(t, StatusRequested, h.status(t))
}

func TestRequestRequiresCuratedStatus(t *testing.T) {
	h := newMemoryHarness(t)
	h.flag(t)

	msg, _, err := h.repo.Message(originCh, originMsg)
	require.NoError(t, err)
	msg.Status = StatusVintage
	require.NoError(t, h.repo.SaveMessage(msg))

	h.request(t, ControlRequest)
	assert.Equal(t, 1, h.rec.SentCount())
	assert.Equal(t, StatusVintage, h.status(t))
}

func TestRequestByUnprivilegedActor(t *testing.T) {
	h := newMemoryHarness(t)
	h.flag(t)
	card := h.reviewCard(t)

	require.NoError(t, h.svc.HandleComponent(context.Background(), platform.ComponentActivated{
		GuildID: guildID, OriginChannelID: pendingCh, OriginMessageID: card.MessageID, ControlID: ControlRequest, ActorID: 999,
	}))
	assert.Equal(t, StatusCurated, h.status(t))
}

func TestIntroductionOnlyOnFirstRequest(t *testing.T) {
	h := newMemoryHarness(t)
	require.NoError(t, h.repo.SaveUser(User{ID: authorID, HaveMet: true}))

	h.flag(t)
	h.request(t, ControlRequest)
	assert.Empty(t, h.consent(t).Msg.Content)
}

func TestRequestWithCommentsMakesConsentCommentable(t *testing.T) {
	h := newMemoryHarness(t)
	h.flag(t)
	h.request(t, ControlRequestComments)

	consent := h.consent(t)
	_, ok, err := h.repo.Alternate(consent.ChannelID, consent.MessageID, AlternateCommentable)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, h.svc.HandleMessage(context.Background(), platform.MessagePosted{
		ChannelID: consent.ChannelID, MessageID: 555, AuthorID: authorID,
		ReplyTo: &platform.MessageLink{ChannelID: consent.ChannelID, MessageID: consent.MessageID},
	}))

	msg, _, err := h.repo.Message(originCh, originMsg)
	require.NoError(t, err)
	assert.Equal(t, []platform.MessageLink{{ChannelID: consent.ChannelID, MessageID: 555}}, msg.Comments)
}

func TestFulfillAccept(t *testing.T) {
	h := newMemoryHarness(t)
	h.flag(t)
	h.request(t, ControlRequest)
	consent := h.consent(t)
	h.answer(t, ControlAccept, authorID)

	msg, _, err := h.repo.Message(originCh, originMsg)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, msg.Status)
	assert.Equal(t, authorID, msg.MetaInt(MetaFulfilledBy))

	updated, ok := h.rec.Message(consent.ChannelID, consent.MessageID)
	require.True(t, ok)
	for _, c := range updated.Msg.Controls {
		assert.True(t, c.Disabled)
	}
	dmMessages := h.rec.SentTo(consent.ChannelID)
	require.Len(t, dmMessages, 2)
	assert.Equal(t, outcomeNotice(StatusApproved), dmMessages[1].Msg.Content)

	_, ok, err = h.repo.Alternate(consent.ChannelID, consent.MessageID, AlternateRequest)
	require.NoError(t, err)
	assert.False(t, ok)

	published := h.rec.SentTo(approvedCh)
	require.Len(t, published, 1)
	assert.Equal(t, "ada", published[0].Msg.Card.AuthorName)
	assert.Equal(t, "https://discord.com/channels/1/10/20", published[0].Msg.Card.AuthorURL)
	assert.Len(t, h.rec.SentTo(bridgeCh), 1)

	for _, typ := range []AlternateType{AlternateApproved, AlternateCommentable} {
		_, ok, err := h.repo.Alternate(approvedCh, published[0].MessageID, typ)
		require.NoError(t, err)
		assert.True(t, ok, typ.String())
	}

	entries := h.sink.all()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "APPROVED", e.Outcome)
	require.NotNil(t, e.Author)
	assert.Equal(t, archive.Ident{ID: authorID, Name: "ada"}, *e.Author)
	assert.Equal(t, archive.Ident{ID: guildID, Name: "Agora"}, e.Guild)
	assert.Equal(t, archive.Ident{ID: originCh, Name: "general"}, e.Channel)
	assert.Equal(t, 2, e.Reactions)
	assert.True(t, fixedNow.Add(-time.Hour).Equal(e.Timestamp))
}

func TestFulfillAnonymous(t *testing.T) {
	h := newMemoryHarness(t)
	h.flag(t)
	h.request(t, ControlRequest)
	h.answer(t, ControlAnonymous, authorID)

	assert.Equal(t, StatusAnonymous, h.status(t))

	published := h.rec.SentTo(approvedCh)
	require.Len(t, published, 1)
	card := published[0].Msg.Card
	assert.Equal(t, anonymousName, card.AuthorName)
	assert.Empty(t, card.AuthorURL)
	assert.Equal(t, defaultAnonymousURL, card.AuthorIconURL)

	entries := h.sink.all()
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].Author)
	assert.Equal(t, "ANONYMOUS", entries[0].Outcome)
}

func TestFulfillDecline(t *testing.T) {
	h := newMemoryHarness(t)
	h.flag(t)
	h.request(t, ControlRequest)
	h.answer(t, ControlDecline, authorID)

	assert.Equal(t, StatusDenied, h.status(t))
	assert.Empty(t, h.rec.SentTo(approvedCh))
	assert.Empty(t, h.rec.SentTo(bridgeCh))
	assert.Empty(t, h.sink.all())
}

func TestFulfillTwiceIsRejected(t *testing.T) {
	h := newMemoryHarness(t)
	h.flag(t)
	h.request(t, ControlRequest)
	h.answer(t, ControlAccept, authorID)
	sent := h.rec.SentCount()

	h.answer(t, ControlDecline, authorID)
	assert.Equal(t, sent, h.rec.SentCount())
	assert.Equal(t, StatusApproved, h.status(t))
}

func TestFulfillGuardRejectsTerminalStatus(t *testing.T) {
	h := newMemoryHarness(t)
	h.flag(t)
	h.request(t, ControlRequest)

	msg, _, err := h.repo.Message(originCh, originMsg)
	require.NoError(t, err)
	msg.Status = StatusDenied
	require.NoError(t, h.repo.SaveMessage(msg))

	h.answer(t, ControlAccept, authorID)
	assert.Equal(t, StatusDenied, h.status(t))
	assert.Empty(t, h.rec.SentTo(approvedCh))
}

func TestFulfillByOtherUserIsRejected(t *testing.T) {
	h := newMemoryHarness(t)
	h.flag(t)
	h.request(t, ControlRequest)
	h.answer(t, ControlAccept, curatorID)

	assert.Equal(t, StatusRequested, h.status(t))
	assert.Empty(t, h.rec.SentTo(approvedCh))
}

func TestConcurrentAnswersPublishOnce(t *testing.T) {
	h := newMemoryHarness(t)
	h.flag(t)
	h.request(t, ControlRequest)
	consent := h.consent(t)

	var wg sync.WaitGroup
	for _, control := range []string{ControlAccept, ControlAnonymous, ControlAccept, ControlDecline} {
		wg.Add(1)
		go func(control string) {
			defer wg.Done()
			assert.NoError(t, h.svc.HandleComponent(context.Background(), platform.ComponentActivated{
				OriginChannelID: consent.ChannelID, OriginMessageID: consent.MessageID, ControlID: control, ActorID: authorID,
			}))
		}(control)
	}
	wg.Wait()

	assert.LessOrEqual(t, len(h.rec.SentTo(approvedCh)), 1)
	assert.LessOrEqual(t, len(h.sink.all()), 1)
	assert.True(t, h.status(t).Terminal())
}

func TestCommentOnPublishedMessage(t *testing.T) {
	h := newMemoryHarness(t)
	h.flag(t)
	h.request(t, ControlRequest)
	h.answer(t, ControlAccept, authorID)
	published := h.rec.SentTo(approvedCh)[0]
	ctx := context.Background()

	reply := platform.MessagePosted{
		GuildID: guildID, ChannelID: approvedCh, MessageID: 700, AuthorID: 31,
		ReplyTo: &platform.MessageLink{ChannelID: approvedCh, MessageID: published.MessageID},
	}
	require.NoError(t, h.svc.HandleMessage(ctx, reply))
	// Redelivery of the same reply is not counted twice.
	require.NoError(t, h.svc.HandleMessage(ctx, reply))
	require.NoError(t, h.svc.HandleMessage(ctx, platform.MessagePosted{
		GuildID: guildID, ChannelID: approvedCh, MessageID: 701, AuthorID: 32,
		ReplyTo: &platform.MessageLink{ChannelID: approvedCh, MessageID: published.MessageID},
	}))
	// A reply to something else is ignored.
	require.NoError(t, h.svc.HandleMessage(ctx, platform.MessagePosted{
		GuildID: guildID, ChannelID: approvedCh, MessageID: 702, AuthorID: 33,
		ReplyTo: &platform.MessageLink{ChannelID: approvedCh, MessageID: 1},
	}))

	msg, _, err := h.repo.Message(originCh, originMsg)
	require.NoError(t, err)
	assert.Equal(t, []platform.MessageLink{
		{ChannelID: approvedCh, MessageID: 700},
		{ChannelID: approvedCh, MessageID: 701},
	}, msg.Comments)
}

func TestBridgeRelaysToGroup(t *testing.T) {
	h := newMemoryHarness(t)
	ctx := context.Background()
	for _, ch := range []int64{originCh, 11, 12} {
		_, err := h.svc.SetChannelGroup(ctx, adminID, ch, "research")
		require.NoError(t, err)
	}
	_, err := h.svc.SetChannelGroup(ctx, adminID, 13, "other")
	require.NoError(t, err)

	require.NoError(t, h.svc.HandleMessage(ctx, platform.MessagePosted{
		GuildID: guildID, ChannelID: originCh, MessageID: originMsg, AuthorID: authorID,
	}))

	assert.Empty(t, h.rec.SentTo(originCh))
	assert.Empty(t, h.rec.SentTo(13))
	for _, ch := range []int64{11, 12} {
		sent := h.rec.SentTo(ch)
		require.Len(t, sent, 1)
		assert.Equal(t, "research | Agora • #general", sent[0].Msg.Card.Footer)
	}

	require.NoError(t, h.svc.HandleMessage(ctx, platform.MessagePosted{
		GuildID: guildID, ChannelID: originCh, MessageID: originMsg, AuthorID: authorID, FromBot: true,
	}))
	assert.Len(t, h.rec.SentTo(11), 1)
}

func TestWorkflowOnGormStore(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	tables := store.NewGorm(db)
	require.NoError(t, tables.Migrate())

	h := newHarness(t, tables)
	h.flag(t)
	h.request(t, ControlRequestComments)
	h.answer(t, ControlAnonymous, authorID)

	published := h.rec.SentTo(approvedCh)
	require.Len(t, published, 1)
	require.NoError(t, h.svc.HandleMessage(context.Background(), platform.MessagePosted{
		ChannelID: approvedCh, MessageID: 900, AuthorID: 31,
		ReplyTo: &platform.MessageLink{ChannelID: approvedCh, MessageID: published[0].MessageID},
	}))

	msg, ok, err := h.repo.Message(originCh, originMsg)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusAnonymous, msg.Status)
	assert.Equal(t, authorID, msg.MetaInt(MetaAuthorID))
	assert.True(t, fixedNow.Equal(msg.MetaTime(MetaFulfilledAt)))
	assert.Equal(t, []platform.MessageLink{{ChannelID: approvedCh, MessageID: 900}}, msg.Comments)
}

func TestArchivedReactionsCountOnlyCurators(t *testing.T) {
	h := newMemoryHarness(t)
	posted, err := h.rec.FetchMessage(context.Background(), originCh, originMsg)
	require.NoError(t, err)
	require.Equal(t, 3, posted.Reactions[DefaultEmoji])

	h.flag(t)
	h.request(t, ControlRequest)
	h.answer(t, ControlAccept, authorID)

	entries := h.sink.all()
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Reactions)
}

func TestFlagFailedReviewCardCanBeRetried(t *testing.T) {
	h := newMemoryHarness(t)
	h.rec.FailChannel(pendingCh, errUnavailable)

	err := h.svc.HandleReaction(context.Background(), platform.ReactionAdded{
		GuildID: guildID, ChannelID: originCh, MessageID: originMsg, UserID: curatorID, Emoji: DefaultEmoji,
	})
	require.ErrorIs(t, err, errUnavailable)
	_, ok, err := h.repo.Message(originCh, originMsg)
	require.NoError(t, err)
	assert.False(t, ok)

	h.rec.FailChannel(pendingCh, nil)
	h.flag(t)
	assert.Equal(t, StatusCurated, h.status(t))
	h.reviewCard(t)
}

func TestFlagRepostsLostReviewCard(t *testing.T) {
	h := newMemoryHarness(t)
	require.NoError(t, h.repo.SaveMessage(&Message{ChannelID: originCh, MessageID: originMsg, Status: StatusCurated}))

	h.flag(t)

	card := h.reviewCard(t)
	_, ok, err := h.repo.Alternate(pendingCh, card.MessageID, AlternatePending)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, StatusCurated, h.status(t))

	// With the card in place further flags are no-ops again.
	h.flag(t)
	assert.Equal(t, 1, h.rec.SentCount())
}

func TestRequestFailedDirectChannelCanBeRetried(t *testing.T) {
	h := newMemoryHarness(t)
	h.flag(t)
	h.rec.FailDirect(errUnavailable)

	require.ErrorIs(t, h.tryRequest(t, ControlRequest), errUnavailable)
	assert.Equal(t, StatusCurated, h.status(t))
	card := h.reviewCard(t)
	for _, c := range card.Msg.Controls {
		assert.False(t, c.Disabled, c.ID)
	}
	_, ok, err := h.repo.Alternate(pendingCh, card.MessageID, AlternatePending)
	require.NoError(t, err)
	assert.True(t, ok)
	author, _, err := h.repo.User(authorID)
	require.NoError(t, err)
	assert.False(t, author.HaveMet)

	h.rec.FailDirect(nil)
	h.request(t, ControlRequest)
	assert.Equal(t, StatusRequested, h.status(t))
	assert.Equal(t, introText, h.consent(t).Msg.Content)
}

func TestRequestFailedConsentCanBeRetried(t *testing.T) {
	h := newMemoryHarness(t)
	h.flag(t)
	dm, err := h.rec.DirectChannel(context.Background(), authorID)
	require.NoError(t, err)
	h.rec.FailChannel(dm, errUnavailable)

	require.ErrorIs(t, h.tryRequest(t, ControlRequest), errUnavailable)
	assert.Equal(t, StatusCurated, h.status(t))

	h.rec.FailChannel(dm, nil)
	h.request(t, ControlRequest)
	assert.Equal(t, StatusRequested, h.status(t))
	assert.Len(t, h.rec.SentTo(dm), 1)
}

func TestRequestStandsWhenReviewCardCannotBeEdited(t *testing.T) {
	h := newMemoryHarness(t)
	h.flag(t)
	h.rec.FailEdit(errUnavailable)

	h.request(t, ControlRequest)
	assert.Equal(t, StatusRequested, h.status(t))

	// The stale buttons do nothing.
	sent := h.rec.SentCount()
	h.request(t, ControlRequest)
	assert.Equal(t, sent, h.rec.SentCount())
}

func TestFulfillFailedPublishCanBeRetried(t *testing.T) {
	h := newMemoryHarness(t)
	h.flag(t)
	h.request(t, ControlRequest)
	consent := h.consent(t)
	h.rec.FailChannel(approvedCh, errUnavailable)

	require.ErrorIs(t, h.tryAnswer(t, ControlAccept, authorID), errUnavailable)
	assert.Equal(t, StatusRequested, h.status(t))
	assert.Empty(t, h.sink.all())
	_, ok, err := h.repo.Alternate(consent.ChannelID, consent.MessageID, AlternateRequest)
	require.NoError(t, err)
	assert.True(t, ok)
	current, _ := h.rec.Message(consent.ChannelID, consent.MessageID)
	for _, c := range current.Msg.Controls {
		assert.False(t, c.Disabled, c.ID)
	}

	h.rec.FailChannel(approvedCh, nil)
	h.answer(t, ControlAccept, authorID)
	assert.Equal(t, StatusApproved, h.status(t))
	assert.Len(t, h.rec.SentTo(approvedCh), 1)
	assert.Len(t, h.sink.all(), 1)
}

func TestFulfillFailedArchiveRetractsQuote(t *testing.T) {
	h := newMemoryHarness(t)
	h.flag(t)
	h.request(t, ControlRequest)
	h.sink.failWith(errUnavailable)

	require.ErrorIs(t, h.tryAnswer(t, ControlAnonymous, authorID), errUnavailable)
	assert.Equal(t, StatusRequested, h.status(t))
	assert.Empty(t, h.rec.SentTo(approvedCh))
	assert.Empty(t, h.rec.SentTo(bridgeCh))

	h.sink.failWith(nil)
	h.answer(t, ControlAnonymous, authorID)
	assert.Equal(t, StatusAnonymous, h.status(t))
	assert.Len(t, h.rec.SentTo(approvedCh), 1)
	entries := h.sink.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "ANONYMOUS", entries[0].Outcome)
}

func TestFulfillCompletesWhenAuthorCannotBeNotified(t *testing.T) {
	h := newMemoryHarness(t)
	h.flag(t)
	h.request(t, ControlRequest)
	consent := h.consent(t)
	h.rec.FailChannel(consent.ChannelID, errUnavailable)
	h.rec.FailChannel(bridgeCh, errUnavailable)

	h.answer(t, ControlAccept, authorID)

	assert.Equal(t, StatusApproved, h.status(t))
	assert.Len(t, h.rec.SentTo(approvedCh), 1)
	assert.Len(t, h.rec.SentTo(consent.ChannelID), 1)
	_, ok, err := h.repo.Alternate(consent.ChannelID, consent.MessageID, AlternateRequest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFulfillDeclineWhenSendsFail(t *testing.T) {
	h := newMemoryHarness(t)
	h.flag(t)
	h.request(t, ControlRequest)
	h.rec.FailSend = errUnavailable

	h.answer(t, ControlDecline, authorID)
	assert.Equal(t, StatusDenied, h.status(t))
}
