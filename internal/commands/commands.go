// Package commands holds the slash commands and the glue that lets them run
// through the cmd core.
package commands

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"laxenta/internal/dispatch"
	"laxenta/internal/flows"
	"laxenta/internal/registry"
	"laxenta/internal/respond"
	"laxenta/pkg/cmd"
	"laxenta/pkg/ratelimit"
	"laxenta/pkg/ttlstore"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

const (
	categoryInfo       = "🕯️ Information"
	categoryGameplay   = "🎲 Gameplay"
	categoryModeration = "🛡️ Moderation"
)

var errUnexpectedEvent = errors.New("commands: unexpected component payload")

// Session is what commands need from the gateway session.
type Session interface {
	respond.Session
	GuildBanCreateWithReason(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error
	GuildMemberDeleteWithReason(guildID, userID, reason string, options ...discordgo.RequestOption) error
}

// Context is the Invocation.Data of a slash command.
type Context struct {
	Session Session
	Event   *discordgo.InteractionCreate
}

// Slash is implemented by commands that publish an application command.
type Slash interface {
	cmd.Command
	Category() string
	Definition() *discordgo.ApplicationCommand
}

// NewInvocation builds the cmd invocation for a slash command interaction.
func NewInvocation(s Session, i *discordgo.InteractionCreate) *cmd.Invocation {
	return &cmd.Invocation{
		Subject: invoker(i),
		Scope:   i.GuildID,
		Data:    &Context{Session: s, Event: i},
	}
}

func invoker(i *discordgo.InteractionCreate) string {
	switch {
	case i.Member != nil && i.Member.User != nil:
		return i.Member.User.ID
	case i.User != nil:
		return i.User.ID
	}
	return ""
}

func contextOf(inv *cmd.Invocation) (*Context, error) {
	c, ok := inv.Data.(*Context)
	if !ok || c == nil || c.Event == nil {
		return nil, fmt.Errorf("commands: wrong invocation data %T", inv.Data)
	}
	return c, nil
}

func pressed(event any) (*dispatch.Interaction, error) {
	ix, ok := event.(*dispatch.Interaction)
	if !ok || ix == nil || ix.Session == nil || ix.Event == nil {
		return nil, fmt.Errorf("%w: %T", errUnexpectedEvent, event)
	}
	return ix, nil
}

func option(i *discordgo.InteractionCreate, name string) *discordgo.ApplicationCommandInteractionDataOption {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == name {
			return opt
		}
	}
	return nil
}

func stringOption(i *discordgo.InteractionCreate, name string) string {
	if opt := option(i, name); opt != nil {
		return opt.StringValue()
	}
	return ""
}

func userOption(i *discordgo.InteractionCreate, name string) string {
	if opt := option(i, name); opt != nil {
		return opt.UserValue(nil).ID
	}
	return ""
}

// Deps are the shared services commands are built on.
type Deps struct {
	Registry    *registry.Registry
	Store       *ttlstore.Store
	Limiter     *ratelimit.Limiter
	ConfirmTTL  time.Duration
	ProposalTTL time.Duration
	MenuTTL     time.Duration
	Logger      zerolog.Logger

	// HelpPerPage defaults to 6.
	HelpPerPage int
	// Pool is the roll pool; nil uses the built-in one.
	Pool []string
	// Pick returns an index in [0, n). Defaults to math/rand.
	Pick func(n int) int
}

// Build creates every command, wraps it with its middleware and returns the
// populated command registry.
func Build(d Deps) (*cmd.Registry, error) {
	if d.Registry == nil || d.Store == nil || d.Limiter == nil {
		return nil, errors.New("commands: registry, store and limiter are required")
	}
	if d.Pick == nil {
		d.Pick = rand.Intn
	}
	if len(d.Pool) == 0 {
		d.Pool = defaultPool
	}
	if d.HelpPerPage <= 0 {
		d.HelpPerPage = 6
	}
	logger := d.Logger.With().Str("component", "commands").Logger()

	var commandGate cmd.Middleware
	if d.Limiter.HasClass("command") {
		gate, err := flows.NewGate(d.Limiter, "command")
		if err != nil {
			return nil, err
		}
		commandGate = Cooldown(gate)
	}
	var rollGate cmd.Middleware
	if d.Limiter.HasClass("rolls") {
		gate, err := flows.NewGate(d.Limiter, "rolls")
		if err != nil {
			return nil, err
		}
		rollGate = Cooldown(gate)
	}

	var buttonClass, claimClass string
	if d.Limiter.HasClass("buttons") {
		buttonClass = "buttons"
	}
	if d.Limiter.HasClass("marriages") {
		claimClass = "marriages"
	}

	proposals := flows.NewProposals(d.Registry, d.Store, d.ProposalTTL)
	reg := cmd.NewRegistry()

	all := []struct {
		c     cmd.Command
		guild bool
		gate  cmd.Middleware
	}{
		{c: &Help{commands: reg, pager: flows.NewPager(d.Registry, d.Store, d.MenuTTL, buttonClass), perPage: d.HelpPerPage}},
		{c: &Roll{proposals: proposals, pool: d.Pool, pick: d.Pick, claimClass: claimClass}, guild: true, gate: rollGate},
		{c: &Marry{proposals: proposals, acceptClass: claimClass}, guild: true},
		{c: &Moderate{kind: ban, registry: d.Registry, ttl: d.ConfirmTTL}, guild: true},
		{c: &Moderate{kind: kick, registry: d.Registry, ttl: d.ConfirmTTL}, guild: true},
	}
	for _, entry := range all {
		mws := []cmd.Middleware{Logging(logger)}
		if entry.guild {
			mws = append(mws, GuildOnly)
		}
		if commandGate != nil {
			mws = append(mws, commandGate)
		}
		if entry.gate != nil {
			mws = append(mws, entry.gate)
		}
		if err := reg.Register(cmd.Apply(entry.c, mws...)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Definitions lists the application commands to publish.
func Definitions(reg *cmd.Registry) []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, c := range reg.All() {
		s, ok := cmd.Root(c).(Slash)
		if !ok {
			continue
		}
		if def := s.Definition(); def != nil {
			if def.Type == 0 {
				def.Type = discordgo.ChatApplicationCommand
			}
			defs = append(defs, def)
		}
	}
	return defs
}

// Run executes the named command for interaction i.
func Run(ctx context.Context, reg *cmd.Registry, s Session, i *discordgo.InteractionCreate) error {
	name := i.ApplicationCommandData().Name
	c, ok := reg.Get(name)
	if !ok {
		return fmt.Errorf("commands: unknown command %q", name)
	}
	return c.Run(ctx, NewInvocation(s, i))
}
