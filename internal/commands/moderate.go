package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"laxenta/internal/flows"
	"laxenta/internal/registry"
	"laxenta/internal/respond"
	"laxenta/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

type moderation int

const (
	ban moderation = iota
	kick
)

// Moderate bans or kicks a member after the moderator confirms.
type Moderate struct {
	kind     moderation
	registry *registry.Registry
	ttl      time.Duration
}

func (c *Moderate) Name() string {
	if c.kind == kick {
		return "kick"
	}
	return "ban"
}

func (c *Moderate) Description() string {
	if c.kind == kick {
		return "Kick a member from the server"
	}
	return "Ban a member from the server"
}

func (c *Moderate) Category() string { return categoryModeration }

func (c *Moderate) Definition() *discordgo.ApplicationCommand {
	perm := int64(discordgo.PermissionBanMembers)
	if c.kind == kick {
		perm = int64(discordgo.PermissionKickMembers)
	}
	return &discordgo.ApplicationCommand{
		Name:                     c.Name(),
		Description:              c.Description(),
		DefaultMemberPermissions: &perm,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "user",
				Description: "Member to " + c.Name(),
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "reason",
				Description: "Shown in the audit log",
			},
		},
	}
}

func (c *Moderate) Run(_ context.Context, inv *cmd.Invocation) error {
	cc, err := contextOf(inv)
	if err != nil {
		return err
	}

	target := userOption(cc.Event, "user")
	if target == "" {
		return respond.Ephemeral(cc.Session, cc.Event, "Pick a member.")
	}
	if target == inv.Subject {
		return respond.Ephemeral(cc.Session, cc.Event, fmt.Sprintf("You can't %s yourself.", c.Name()))
	}
	reason := stringOption(cc.Event, "reason")
	if reason == "" {
		reason = "No reason given"
	}

	guildID := inv.Scope
	confirm := registry.ActionFunc(func(_ context.Context, subject string, event any) error {
		ix, err := pressed(event)
		if err != nil {
			return err
		}
		audit := fmt.Sprintf("%s (by %s)", reason, subject)
		if c.kind == kick {
			err = cc.Session.GuildMemberDeleteWithReason(guildID, target, audit)
		} else {
			err = cc.Session.GuildBanCreateWithReason(guildID, target, audit, 0)
		}
		if err != nil {
			return fmt.Errorf("%s %s in %s: %w", c.Name(), target, guildID, err)
		}
		return respond.Update(ix.Session, ix.Event, "", &discordgo.MessageEmbed{
			Description: fmt.Sprintf("🔨 <@%s> was %s. Reason: %s", target, c.past(), reason),
			Color:       respond.EmbedColor,
		}, nil)
	})
	cancel := registry.ActionFunc(func(_ context.Context, _ string, event any) error {
		ix, err := pressed(event)
		if err != nil {
			return err
		}
		return respond.Update(ix.Session, ix.Event, fmt.Sprintf("Cancelled, <@%s> stays.", target), nil, nil)
	})

	pair, err := flows.Confirm(c.registry, flows.ConfirmOptions{
		Owner:        inv.Subject,
		TTL:          c.ttl,
		ConfirmLabel: capitalize(c.Name()),
	}, confirm, cancel)
	if err != nil {
		return err
	}

	embed := &discordgo.MessageEmbed{
		Title:       capitalize(c.Name()) + "?",
		Description: fmt.Sprintf("Really %s <@%s>?\nReason: %s", c.Name(), target, reason),
		Color:       respond.EmbedColor,
	}
	return respond.Message(cc.Session, cc.Event, embed, pair.Components())
}

func (c *Moderate) past() string {
	if c.kind == kick {
		return "kicked"
	}
	return "banned"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
