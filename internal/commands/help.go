package commands

import (
	"context"
	"fmt"
	"strings"

	"laxenta/internal/config"
	"laxenta/internal/flows"
	"laxenta/internal/respond"
	"laxenta/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

type Help struct {
	commands *cmd.Registry
	pager    *flows.Pager
	perPage  int
}

func (c *Help) Name() string        { return "help" }
func (c *Help) Description() string { return "Get a list of available commands" }
func (c *Help) Category() string    { return categoryInfo }

func (c *Help) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *Help) Run(_ context.Context, inv *cmd.Invocation) error {
	cc, err := contextOf(inv)
	if err != nil {
		return err
	}

	pages := c.pages()
	view, err := c.pager.Open(inv.Subject, len(pages), func(_ context.Context, event any, v flows.PageView) error {
		ix, err := pressed(event)
		if err != nil {
			return err
		}
		return respond.Update(ix.Session, ix.Event, "", pages[v.Page], v.Components)
	})
	if err != nil {
		return err
	}

	var components []discordgo.MessageComponent
	if len(pages) > 1 {
		components = view.Components
	} else {
		c.pager.Close(view.Menu)
	}
	return respond.Message(cc.Session, cc.Event, pages[0], components)
}

// pages renders the command list grouped by category, perPage commands a page.
func (c *Help) pages() []*discordgo.MessageEmbed {
	byCategory := make(map[string][]Slash)
	var categories []string
	for _, command := range c.commands.All() {
		s, ok := cmd.Root(command).(Slash)
		if !ok {
			continue
		}
		if _, seen := byCategory[s.Category()]; !seen {
			categories = append(categories, s.Category())
		}
		byCategory[s.Category()] = append(byCategory[s.Category()], s)
	}
	config.SortCategories(categories)

	var (
		pages   []*discordgo.MessageEmbed
		sb      strings.Builder
		onPage  int
		current string
	)
	flush := func() {
		if onPage == 0 {
			return
		}
		pages = append(pages, &discordgo.MessageEmbed{
			Title:       "📖 Commands",
			Description: strings.TrimSpace(sb.String()),
			Color:       respond.EmbedColor,
		})
		sb.Reset()
		onPage = 0
		current = ""
	}

	for _, cat := range categories {
		for _, s := range byCategory[cat] {
			if onPage == c.perPage {
				flush()
			}
			if current != cat {
				fmt.Fprintf(&sb, "\n**%s**\n", cat)
				current = cat
			}
			fmt.Fprintf(&sb, "`/%s` - %s\n", s.Name(), s.Description())
			onPage++
		}
	}
	flush()

	if len(pages) == 0 {
		pages = append(pages, &discordgo.MessageEmbed{Title: "📖 Commands", Description: "Nothing here yet.", Color: respond.EmbedColor})
	}
	for i, p := range pages {
		p.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d of %d", i+1, len(pages))}
	}
	return pages
}
