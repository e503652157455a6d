package commands

import (
	"context"
	"fmt"

	"laxenta/internal/flows"
	"laxenta/internal/respond"
	"laxenta/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

var defaultPool = []string{
	"Rem", "Megumin", "Asuna", "Zero Two", "Mikasa", "Holo",
	"Violet Evergarden", "Makima", "Nezuko", "Yor Forger",
}

// Roll shows a random character anyone in the channel can claim before the
// proposal expires. Claims are charged to the claimer's marriage budget.
type Roll struct {
	proposals  *flows.Proposals
	pool       []string
	pick       func(n int) int
	claimClass string
}

func (c *Roll) Name() string        { return "roll" }
func (c *Roll) Description() string { return "Roll a random character and race to claim it" }
func (c *Roll) Category() string    { return categoryGameplay }

func (c *Roll) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *Roll) Run(_ context.Context, inv *cmd.Invocation) error {
	cc, err := contextOf(inv)
	if err != nil {
		return err
	}

	name := c.pool[c.pick(len(c.pool))]
	prop, err := c.proposals.Open(name, flows.ProposalOptions{
		AcceptClass: c.claimClass,
		AcceptLabel: "💍 Claim",
	}, c.claim, nil)
	if err != nil {
		return err
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🎲 " + name,
		Description: fmt.Sprintf("Rolled by <@%s>. First to press the button claims them.", inv.Subject),
		Color:       respond.EmbedColor,
	}
	return respond.Message(cc.Session, cc.Event, embed, prop.Components())
}

func (c *Roll) claim(_ context.Context, subject string, event any, payload any) error {
	ix, err := pressed(event)
	if err != nil {
		return err
	}
	name, _ := payload.(string)
	embed := &discordgo.MessageEmbed{
		Title:       "💞 " + name,
		Description: fmt.Sprintf("<@%s> and **%s** are now married!", subject, name),
		Color:       respond.EmbedColor,
	}
	return respond.Update(ix.Session, ix.Event, "", embed, nil)
}
