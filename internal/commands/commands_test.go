package commands

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"laxenta/internal/dispatch"
	"laxenta/internal/registry"
	"laxenta/internal/respond/respondtest"
	"laxenta/pkg/clock"
	"laxenta/pkg/cmd"
	"laxenta/pkg/ratelimit"
	"laxenta/pkg/ttlstore"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	respondtest.Session
	mu      sync.Mutex
	bans    []string
	kicks   []string
	failBan error
}

func (f *fakeSession) GuildBanCreateWithReason(guildID, userID, _ string, _ int, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBan != nil {
		return f.failBan
	}
	f.bans = append(f.bans, guildID+"/"+userID)
	return nil
}

func (f *fakeSession) GuildMemberDeleteWithReason(guildID, userID, _ string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicks = append(f.kicks, guildID+"/"+userID)
	return nil
}

type harness struct {
	clock *clock.Manual
	reg   *registry.Registry
	cmds  *cmd.Registry
	sess  *fakeSession
}

func newHarness(t *testing.T, tweak func(*Deps)) *harness {
	t.Helper()
	c := clock.NewManual(time.Unix(1_700_000_000, 0))
	lim, err := ratelimit.New(map[string]ratelimit.Policy{
		"rolls":     {Max: 2, Window: time.Hour},
		"marriages": {Max: 1, Window: 3 * time.Hour},
		"command":   {Max: 5, Window: 3 * time.Second},
	}, ratelimit.WithClock(c))
	require.NoError(t, err)

	h := &harness{clock: c, reg: registry.New(lim, registry.WithClock(c)), sess: &fakeSession{}}
	d := Deps{
		Registry: h.reg,
		Store:    ttlstore.New(ttlstore.Options{Clock: c, CleanupInterval: -1}),
		Limiter:  lim,
		Logger:   zerolog.Nop(),
		Pick:     func(int) int { return 0 },
	}
	if tweak != nil {
		tweak(&d)
	}
	h.cmds, err = Build(d)
	require.NoError(t, err)
	return h
}

func slash(name, user, guild string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	i := &discordgo.Interaction{
		ID:      "cmd-" + name,
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: guild,
		Data:    discordgo.ApplicationCommandInteractionData{Name: name, Options: opts},
	}
	if guild != "" {
		i.Member = &discordgo.Member{User: &discordgo.User{ID: user}}
	} else {
		i.User = &discordgo.User{ID: user}
	}
	return &discordgo.InteractionCreate{Interaction: i}
}

func userOpt(id string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: "user", Type: discordgo.ApplicationCommandOptionUser, Value: id}
}

func (h *harness) run(t *testing.T, i *discordgo.InteractionCreate) {
	t.Helper()
	require.NoError(t, Run(context.Background(), h.cmds, h.sess, i))
}

func (h *harness) press(key, subject string) registry.Outcome {
	click := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:   discordgo.InteractionMessageComponent,
		Data:   discordgo.MessageComponentInteractionData{CustomID: key},
		Member: &discordgo.Member{User: &discordgo.User{ID: subject}},
	}}
	return h.reg.Dispatch(context.Background(), key, subject, &dispatch.Interaction{Session: h.sess, Event: click})
}

func (h *harness) keys() []string {
	return respondtest.CustomIDs(h.sess.Last())
}

func keyWithSuffix(t *testing.T, keys []string, suffix string) string {
	t.Helper()
	for _, k := range keys {
		if strings.HasSuffix(k, suffix) {
			return k
		}
	}
	t.Fatalf("no key ending in %q among %v", suffix, keys)
	return ""
}

func TestBuild_RegistersEveryCommand(t *testing.T) {
	h := newHarness(t, nil)

	var names []string
	for _, c := range h.cmds.All() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"ban", "help", "kick", "marry", "roll"}, names)

	defs := Definitions(h.cmds)
	require.Len(t, defs, 5)
	for _, d := range defs {
		assert.Equal(t, discordgo.ChatApplicationCommand, d.Type, d.Name)
	}
	require.NotNil(t, defs[0].DefaultMemberPermissions)
	assert.Equal(t, int64(discordgo.PermissionBanMembers), *defs[0].DefaultMemberPermissions)

	_, err := Build(Deps{})
	assert.Error(t, err)
}

func TestRun_UnknownCommand(t *testing.T) {
	h := newHarness(t, nil)
	err := Run(context.Background(), h.cmds, h.sess, slash("nope", "U1", "G1"))
	assert.ErrorContains(t, err, "unknown command")
}

func TestBan_ConfirmFlow(t *testing.T) {
	h := newHarness(t, nil)
	h.run(t, slash("ban", "U1", "G1", userOpt("U2")))

	keys := h.keys()
	require.Len(t, keys, 2)
	confirm, cancel := keys[0], keys[1]

	assert.Equal(t, registry.Unauthorized, h.press(confirm, "U2").Kind)
	assert.Equal(t, registry.Handled, h.press(confirm, "U1").Kind)
	assert.Equal(t, []string{"G1/U2"}, h.sess.bans)

	last := h.sess.Last()
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, last.Type)
	assert.Empty(t, last.Data.Components)
	assert.Contains(t, last.Data.Embeds[0].Description, "was banned")

	assert.Equal(t, registry.Ignored, h.press(cancel, "U1").Kind)
}

func TestBan_ExpiresAfterConfirmTTL(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.ConfirmTTL = 10 * time.Second })
	h.run(t, slash("ban", "U1", "G1", userOpt("U2")))
	confirm := h.keys()[0]

	h.clock.Advance(10 * time.Second)
	assert.Equal(t, registry.Ignored, h.press(confirm, "U1").Kind)
	assert.Empty(t, h.sess.bans)
}

func TestKick_Cancel(t *testing.T) {
	h := newHarness(t, nil)
	h.run(t, slash("kick", "U1", "G1", userOpt("U2")))
	keys := h.keys()
	require.Len(t, keys, 2)

	assert.Equal(t, registry.Handled, h.press(keys[1], "U1").Kind)
	assert.Empty(t, h.sess.kicks)
	assert.Equal(t, "Cancelled, <@U2> stays.", h.sess.Last().Data.Content)
	assert.Equal(t, registry.Ignored, h.press(keys[0], "U1").Kind)
}

func TestBan_RejectsSelfAndDMs(t *testing.T) {
	h := newHarness(t, nil)

	h.run(t, slash("ban", "U1", "G1", userOpt("U1")))
	assert.Equal(t, "You can't ban yourself.", h.sess.Last().Data.Content)

	h.run(t, slash("ban", "U1", "", userOpt("U2")))
	assert.Equal(t, "You must be in a guild to use this command.", h.sess.Last().Data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, h.sess.Last().Data.Flags)
	assert.Zero(t, h.reg.Len())
}

func TestBan_FailureIsReportedAndConsumed(t *testing.T) {
	h := newHarness(t, nil)
	h.sess.failBan = errors.New("missing permissions")
	h.run(t, slash("ban", "U1", "G1", userOpt("U2")))
	confirm := h.keys()[0]

	out := h.press(confirm, "U1")
	assert.Equal(t, registry.HandlerFailed, out.Kind)
	assert.ErrorIs(t, out.Err, h.sess.failBan)
	assert.Equal(t, registry.Ignored, h.press(confirm, "U1").Kind)
}

func TestConfirmAction_RejectsForeignPayload(t *testing.T) {
	h := newHarness(t, nil)
	h.run(t, slash("ban", "U1", "G1", userOpt("U2")))

	out := h.reg.Dispatch(context.Background(), h.keys()[0], "U1", "not an interaction")
	assert.Equal(t, registry.HandlerFailed, out.Kind)
	assert.ErrorIs(t, out.Err, errUnexpectedEvent)
}

func TestRoll_ClaimChargesMarriages(t *testing.T) {
	h := newHarness(t, nil)

	h.run(t, slash("roll", "U1", "G1"))
	first := h.sess.Last()
	assert.Equal(t, "🎲 Rem", first.Data.Embeds[0].Title)
	keys := h.keys()
	require.Len(t, keys, 1)

	assert.Equal(t, registry.Handled, h.press(keys[0], "U3").Kind)
	assert.Contains(t, h.sess.Last().Data.Embeds[0].Description, "<@U3> and **Rem**")

	h.run(t, slash("roll", "U1", "G1"))
	second := h.keys()[0]
	out := h.press(second, "U3")
	assert.Equal(t, registry.RateLimited, out.Kind)
	assert.Equal(t, h.clock.Now().Add(3*time.Hour), out.ResetAt)
	assert.Equal(t, registry.Handled, h.press(second, "U4").Kind)
}

func TestRoll_Cooldown(t *testing.T) {
	h := newHarness(t, nil)
	h.run(t, slash("roll", "U1", "G1"))
	h.run(t, slash("roll", "U1", "G1"))
	h.run(t, slash("roll", "U1", "G1"))

	last := h.sess.Last()
	assert.Equal(t, discordgo.MessageFlagsEphemeral, last.Data.Flags)
	assert.Contains(t, last.Data.Content, "/roll")
	assert.Contains(t, last.Data.Content, "Slow down")
	assert.Equal(t, 2, h.reg.Len())
}

func TestCommandCooldown(t *testing.T) {
	h := newHarness(t, nil)
	for n := 0; n < 5; n++ {
		h.run(t, slash("help", "U1", "G1"))
	}
	h.run(t, slash("help", "U1", "G1"))
	assert.Contains(t, h.sess.Last().Data.Content, "/help")

	h.clock.Advance(3*time.Second + time.Millisecond)
	h.run(t, slash("help", "U1", "G1"))
	assert.Equal(t, "📖 Commands", h.sess.Last().Data.Embeds[0].Title)
}

func TestMarry(t *testing.T) {
	h := newHarness(t, nil)

	h.run(t, slash("marry", "U1", "G1", userOpt("U1")))
	assert.Equal(t, "You can't marry yourself.", h.sess.Last().Data.Content)

	h.run(t, slash("marry", "U1", "G1", userOpt("U2")))
	keys := h.keys()
	require.Len(t, keys, 2)
	accept := keyWithSuffix(t, keys, ":accept")
	decline := keyWithSuffix(t, keys, ":decline")

	assert.Equal(t, registry.Unauthorized, h.press(accept, "U3").Kind)
	assert.Equal(t, registry.Handled, h.press(decline, "U2").Kind)
	assert.Equal(t, "💔 <@U2> turned down <@U1>.", h.sess.Last().Data.Embeds[0].Description)
	assert.Equal(t, registry.Ignored, h.press(accept, "U2").Kind)

	h.run(t, slash("marry", "U1", "G1", userOpt("U2")))
	accept = keyWithSuffix(t, h.keys(), ":accept")
	assert.Equal(t, registry.Handled, h.press(accept, "U2").Kind)
	assert.Equal(t, "💞 <@U1> and <@U2> are now married!", h.sess.Last().Data.Embeds[0].Description)
}

func TestHelp_Paginates(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.HelpPerPage = 2 })
	h.run(t, slash("help", "U1", "G1"))

	first := h.sess.Last().Data.Embeds[0]
	assert.Equal(t, "Page 1 of 3", first.Footer.Text)
	assert.Contains(t, first.Description, "`/help`")
	assert.Contains(t, first.Description, "`/marry`")

	next := keyWithSuffix(t, h.keys(), ":next")
	assert.Equal(t, registry.Unauthorized, h.press(next, "U2").Kind)
	assert.Equal(t, registry.Handled, h.press(next, "U1").Kind)

	page := h.sess.Last()
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, page.Type)
	assert.Equal(t, "Page 2 of 3", page.Data.Embeds[0].Footer.Text)
	assert.Contains(t, page.Data.Embeds[0].Description, "`/roll`")
	assert.Contains(t, page.Data.Embeds[0].Description, "`/ban`")
}

func TestHelp_SinglePageHasNoControls(t *testing.T) {
	h := newHarness(t, nil)
	h.run(t, slash("help", "U1", ""))

	assert.Empty(t, h.keys())
	assert.Equal(t, "Page 1 of 1", h.sess.Last().Data.Embeds[0].Footer.Text)
	assert.Zero(t, h.reg.Len())
}
