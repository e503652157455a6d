package flows

import (
	"context"
	"fmt"
	"time"

	"laxenta/internal/registry"
	"laxenta/pkg/ttlstore"

	"github.com/bwmarrin/discordgo"
)

// ProposalFunc receives the payload the proposal was opened with.
type ProposalFunc func(ctx context.Context, subject string, event any, payload any) error

type ProposalOptions struct {
	// To is the only subject who may answer. Empty lets anyone answer, which
	// is how roll claims work.
	To string
	// AcceptClass charges the acceptor one use of a cooldown class.
	AcceptClass  string
	AcceptLabel  string
	DeclineLabel string
}

// Proposals opens timed offers. The payload is held in the store for the
// proposal TTL and taken exactly once by whichever answer wins.
type Proposals struct {
	registry *registry.Registry
	store    *ttlstore.Store
	ttl      time.Duration
}

func NewProposals(reg *registry.Registry, store *ttlstore.Store, ttl time.Duration) *Proposals {
	return &Proposals{
		registry: reg,
		store:    store.Namespace("proposal"),
		ttl:      orDefault(ttl, DefaultProposalTTL),
	}
}

type Proposal struct {
	ID         string
	AcceptKey  string
	DeclineKey string
	opts       ProposalOptions
}

// Open registers the answers. onDecline may be nil for accept-only offers.
func (p *Proposals) Open(payload any, opts ProposalOptions, onAccept, onDecline ProposalFunc) (*Proposal, error) {
	if onAccept == nil {
		return nil, ErrNilCallback
	}
	if opts.AcceptLabel == "" {
		opts.AcceptLabel = "Accept"
	}
	if opts.DeclineLabel == "" {
		opts.DeclineLabel = "Decline"
	}

	id := NewKey("proposal")
	prop := &Proposal{ID: id, AcceptKey: id + ":accept", opts: opts}
	if err := p.store.Put(id, payload, p.ttl); err != nil {
		return nil, err
	}

	var allowed []string
	if opts.To != "" {
		allowed = []string{opts.To}
	}
	ro := registry.Options{Lifetime: registry.SingleUse, TTL: p.ttl, Group: id, Exclusive: true}

	accept := ro
	accept.CooldownClass = opts.AcceptClass
	if err := p.registry.Register(prop.AcceptKey, allowed, p.answer(id, onAccept), accept); err != nil {
		p.store.Remove(id)
		return nil, err
	}
	if onDecline != nil {
		prop.DeclineKey = id + ":decline"
		if err := p.registry.Register(prop.DeclineKey, allowed, p.answer(id, onDecline), ro); err != nil {
			p.Withdraw(id)
			return nil, err
		}
	}
	return prop, nil
}

// Pending reports whether the proposal is still waiting for an answer.
func (p *Proposals) Pending(id string) bool {
	_, ok := p.store.Get(id)
	return ok
}

// Remaining returns how long the proposal stays open.
func (p *Proposals) Remaining(id string) (time.Duration, bool) {
	return p.store.TTL(id)
}

// Withdraw cancels a proposal before anyone answers it.
func (p *Proposals) Withdraw(id string) bool {
	_, ok := p.store.Take(id)
	p.registry.RemoveGroup(id)
	return ok
}

func (p *Proposals) answer(id string, fn ProposalFunc) registry.ActionFunc {
	return func(ctx context.Context, subject string, event any) error {
		payload, ok := p.store.Take(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrProposalGone, id)
		}
		return fn(ctx, subject, event, payload)
	}
}

// Components renders the answers as one action row.
func (pr *Proposal) Components() []discordgo.MessageComponent {
	buttons := []discordgo.MessageComponent{
		discordgo.Button{Label: pr.opts.AcceptLabel, Style: discordgo.SuccessButton, CustomID: pr.AcceptKey},
	}
	if pr.DeclineKey != "" {
		buttons = append(buttons, discordgo.Button{Label: pr.opts.DeclineLabel, Style: discordgo.SecondaryButton, CustomID: pr.DeclineKey})
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}
