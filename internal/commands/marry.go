package commands

import (
	"context"
	"fmt"

	"laxenta/internal/flows"
	"laxenta/internal/respond"
	"laxenta/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

type marriage struct {
	from, to string
}

// Marry proposes to another member, who has the proposal TTL to answer.
type Marry struct {
	proposals   *flows.Proposals
	acceptClass string
}

func (c *Marry) Name() string        { return "marry" }
func (c *Marry) Description() string { return "Propose to another member" }
func (c *Marry) Category() string    { return categoryGameplay }

func (c *Marry) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "user",
				Description: "Who you are proposing to",
				Required:    true,
			},
		},
	}
}

func (c *Marry) Run(_ context.Context, inv *cmd.Invocation) error {
	cc, err := contextOf(inv)
	if err != nil {
		return err
	}

	target := userOption(cc.Event, "user")
	switch target {
	case "":
		return respond.Ephemeral(cc.Session, cc.Event, "Pick someone to propose to.")
	case inv.Subject:
		return respond.Ephemeral(cc.Session, cc.Event, "You can't marry yourself.")
	}

	prop, err := c.proposals.Open(marriage{from: inv.Subject, to: target}, flows.ProposalOptions{
		To:           target,
		AcceptClass:  c.acceptClass,
		AcceptLabel:  "💍 Accept",
		DeclineLabel: "Decline",
	}, c.accept, c.decline)
	if err != nil {
		return err
	}

	embed := &discordgo.MessageEmbed{
		Title:       "💌 Proposal",
		Description: fmt.Sprintf("<@%s>, <@%s> wants to marry you!", target, inv.Subject),
		Color:       respond.EmbedColor,
	}
	return respond.Message(cc.Session, cc.Event, embed, prop.Components())
}

func (c *Marry) accept(_ context.Context, _ string, event any, payload any) error {
	return c.answer(event, payload, "💞 <@%s> and <@%s> are now married!")
}

func (c *Marry) decline(_ context.Context, _ string, event any, payload any) error {
	return c.answer(event, payload, "💔 <@%[2]s> turned down <@%[1]s>.")
}

func (c *Marry) answer(event any, payload any, format string) error {
	ix, err := pressed(event)
	if err != nil {
		return err
	}
	m, ok := payload.(marriage)
	if !ok {
		return fmt.Errorf("commands: unexpected proposal payload %T", payload)
	}
	embed := &discordgo.MessageEmbed{
		Description: fmt.Sprintf(format, m.from, m.to),
		Color:       respond.EmbedColor,
	}
	return respond.Update(ix.Session, ix.Event, "", embed, nil)
}
