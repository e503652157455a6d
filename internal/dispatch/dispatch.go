// Package dispatch is the boundary between the Discord gateway and the action
// registry. It turns component and modal interactions into (key, subject)
// pairs, drops transport-level duplicates, and translates every dispatch
// outcome into what the presser sees.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"laxenta/internal/registry"
	"laxenta/internal/respond"
	"laxenta/pkg/ratelimit"
	"laxenta/pkg/ttlstore"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// Event is the part of an interaction the registry cares about.
type Event struct {
	ID        string
	Key       string
	Subject   string
	GuildID   string
	ChannelID string
}

// Interaction is the payload handed to registered actions.
type Interaction struct {
	Session respond.Session
	Event   *discordgo.InteractionCreate
}

// Extract pulls the control key and the presser out of a component or modal
// interaction. Other interaction types report false.
func Extract(i *discordgo.InteractionCreate) (Event, bool) {
	if i == nil || i.Interaction == nil {
		return Event{}, false
	}

	var key string
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		key = i.MessageComponentData().CustomID
	case discordgo.InteractionModalSubmit:
		key = i.ModalSubmitData().CustomID
	default:
		return Event{}, false
	}

	var subject string
	switch {
	case i.Member != nil && i.Member.User != nil:
		subject = i.Member.User.ID
	case i.User != nil:
		subject = i.User.ID
	}
	if key == "" || subject == "" {
		return Event{}, false
	}

	return Event{
		ID:        i.ID,
		Key:       key,
		Subject:   subject,
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
	}, true
}

// Drop explains why an interaction never reached the registry.
type Drop string

const (
	NotDropped Drop = ""
	Duplicate  Drop = "duplicate"
	Burst      Drop = "burst"
)

// Result is what HandleEvent decided.
type Result struct {
	Dropped Drop
	Outcome registry.Outcome
}

// Responder answers an interaction with a short notice only the presser sees.
type Responder interface {
	Notify(s respond.Session, i *discordgo.InteractionCreate, content string) error
}

type ephemeralResponder struct{}

func (ephemeralResponder) Notify(s respond.Session, i *discordgo.InteractionCreate, content string) error {
	return respond.Ephemeral(s, i, content)
}

// DropObserver counts dropped interactions.
type DropObserver interface {
	ObserveDrop(reason string)
}

// Options configure a Dispatcher.
type Options struct {
	// Seen remembers interaction IDs for DedupTTL. Required.
	Seen     *ttlstore.Store
	DedupTTL time.Duration
	// Burst, when set, sheds presses from subjects clicking faster than it allows.
	Burst     *ratelimit.BurstGuard
	Responder Responder
	Logger    zerolog.Logger
	Drops     DropObserver
}

type Dispatcher struct {
	registry  *registry.Registry
	seen      *ttlstore.Store
	dedupTTL  time.Duration
	burst     *ratelimit.BurstGuard
	responder Responder
	logger    zerolog.Logger
	drops     DropObserver
}

// New builds a Dispatcher in front of reg.
func New(reg *registry.Registry, opts Options) (*Dispatcher, error) {
	if reg == nil {
		return nil, fmt.Errorf("dispatch: registry is required")
	}
	if opts.Seen == nil {
		return nil, fmt.Errorf("dispatch: seen store is required")
	}
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = 15 * time.Minute
	}
	if opts.Responder == nil {
		opts.Responder = ephemeralResponder{}
	}
	return &Dispatcher{
		registry:  reg,
		seen:      opts.Seen.Namespace("interaction"),
		dedupTTL:  opts.DedupTTL,
		burst:     opts.Burst,
		responder: opts.Responder,
		logger:    opts.Logger.With().Str("component", "dispatch").Logger(),
		drops:     opts.Drops,
	}, nil
}

// Handle is the discordgo handler for InteractionCreate events. Application
// commands are not its business and are skipped.
func (d *Dispatcher) Handle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ev, ok := Extract(i)
	if !ok {
		return
	}

	var sess respond.Session
	if s != nil {
		sess = s
	}

	res := d.HandleEvent(context.Background(), ev, &Interaction{Session: sess, Event: i})
	if res.Dropped == Duplicate {
		return
	}

	content, ok := Notice(res)
	if !ok {
		return
	}
	if err := d.responder.Notify(sess, i, content); err != nil {
		d.logger.Warn().Err(err).Str("key", ev.Key).Str("subject", ev.Subject).Msg("failed to send notice")
	}
}

// HandleEvent runs de-duplication, burst shedding and dispatch for one event.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev Event, payload any) Result {
	if ev.ID != "" {
		fresh, err := d.seen.SetIfAbsent(ev.ID, struct{}{}, d.dedupTTL)
		if err != nil {
			d.logger.Error().Err(err).Str("interaction", ev.ID).Msg("dedup store rejected interaction")
		}
		if err == nil && !fresh {
			d.drop(ev, Duplicate)
			return Result{Dropped: Duplicate}
		}
	}

	if d.burst != nil && !d.burst.Allow(ev.Subject) {
		d.drop(ev, Burst)
		return Result{Dropped: Burst}
	}

	return Result{Outcome: d.registry.Dispatch(ctx, ev.Key, ev.Subject, payload)}
}

func (d *Dispatcher) drop(ev Event, reason Drop) {
	d.logger.Debug().
		Str("interaction", ev.ID).
		Str("key", ev.Key).
		Str("subject", ev.Subject).
		Str("reason", string(reason)).
		Msg("interaction dropped")
	if d.drops != nil {
		d.drops.ObserveDrop(string(reason))
	}
}

// Notice returns the text shown to the presser for res, if any. Handled
// results are acknowledged by the action itself.
func Notice(res Result) (string, bool) {
	switch res.Dropped {
	case Duplicate:
		return "", false
	case Burst:
		return "You're clicking too fast, slow down a little.", true
	}

	switch res.Outcome.Kind {
	case registry.Ignored:
		return "This control has expired.", true
	case registry.Unauthorized:
		return "You can't use this control.", true
	case registry.RateLimited:
		return fmt.Sprintf("Slow down! You can try again <t:%d:R>.", res.Outcome.ResetAt.Unix()), true
	case registry.HandlerFailed:
		return "Something went wrong, try again.", true
	default:
		return "", false
	}
}
