package flows

import (
	"time"

	"laxenta/internal/registry"

	"github.com/bwmarrin/discordgo"
)

type ConfirmOptions struct {
	// Owner is the only subject allowed to press either button. Empty lets anyone.
	Owner        string
	TTL          time.Duration
	ConfirmLabel string
	CancelLabel  string
	ConfirmStyle discordgo.ButtonStyle
}

// Confirmation is a registered confirm/cancel pair. Pressing either button
// consumes both.
type Confirmation struct {
	ID         string
	ConfirmKey string
	CancelKey  string
	opts       ConfirmOptions
}

// Confirm registers onConfirm and onCancel as one single-use group.
func Confirm(reg *registry.Registry, opts ConfirmOptions, onConfirm, onCancel registry.Action) (*Confirmation, error) {
	if onConfirm == nil || onCancel == nil {
		return nil, ErrNilCallback
	}
	opts.TTL = orDefault(opts.TTL, DefaultConfirmTTL)
	if opts.ConfirmLabel == "" {
		opts.ConfirmLabel = "Confirm"
	}
	if opts.CancelLabel == "" {
		opts.CancelLabel = "Cancel"
	}
	if opts.ConfirmStyle == 0 {
		opts.ConfirmStyle = discordgo.DangerButton
	}

	id := NewKey("confirm")
	c := &Confirmation{
		ID:         id,
		ConfirmKey: id + ":yes",
		CancelKey:  id + ":no",
		opts:       opts,
	}

	var allowed []string
	if opts.Owner != "" {
		allowed = []string{opts.Owner}
	}
	ro := registry.Options{Lifetime: registry.SingleUse, TTL: opts.TTL, Group: id, Exclusive: true}
	if err := reg.Register(c.ConfirmKey, allowed, onConfirm, ro); err != nil {
		return nil, err
	}
	if err := reg.Register(c.CancelKey, allowed, onCancel, ro); err != nil {
		reg.RemoveGroup(id)
		return nil, err
	}
	return c, nil
}

// Components renders the pair as one action row.
func (c *Confirmation) Components() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: c.opts.ConfirmLabel, Style: c.opts.ConfirmStyle, CustomID: c.ConfirmKey},
			discordgo.Button{Label: c.opts.CancelLabel, Style: discordgo.SecondaryButton, CustomID: c.CancelKey},
		}},
	}
}
