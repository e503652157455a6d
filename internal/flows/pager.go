package flows

import (
	"context"
	"fmt"
	"sync"
	"time"

	"laxenta/internal/registry"
	"laxenta/pkg/ttlstore"

	"github.com/bwmarrin/discordgo"
)

// PageView is what a render callback draws: the current page and the
// controls to attach under it.
type PageView struct {
	Menu       string
	Page       int
	Total      int
	Components []discordgo.MessageComponent
}

// RenderFunc redraws the menu after a press. event is the dispatcher payload.
type RenderFunc func(ctx context.Context, event any, view PageView) error

type pageState struct {
	owner  string
	page   int
	total  int
	render RenderFunc
}

// Pager keeps paginated menus. Page state lives in the store for the menu
// TTL; every press extends it and re-registers the arrows under the same keys.
type Pager struct {
	mu       sync.Mutex
	registry *registry.Registry
	store    *ttlstore.Store
	ttl      time.Duration
	cooldown string
}

// NewPager creates a Pager. cooldown may be empty.
func NewPager(reg *registry.Registry, store *ttlstore.Store, ttl time.Duration, cooldown string) *Pager {
	return &Pager{
		registry: reg,
		store:    store.Namespace("pager"),
		ttl:      orDefault(ttl, DefaultMenuTTL),
		cooldown: cooldown,
	}
}

// Open starts a menu owned by owner and returns the view of its first page.
func (p *Pager) Open(owner string, total int, render RenderFunc) (PageView, error) {
	if total < 1 {
		return PageView{}, ErrNoPages
	}
	if render == nil {
		return PageView{}, ErrNilCallback
	}

	id := NewKey("pager")
	st := pageState{owner: owner, total: total, render: render}
	if err := p.store.Put(id, st, p.ttl); err != nil {
		return PageView{}, err
	}
	if err := p.arm(id, owner); err != nil {
		p.Close(id)
		return PageView{}, err
	}
	return p.view(id, st), nil
}

// Close forgets the menu; its arrows start reporting expired.
func (p *Pager) Close(menu string) {
	p.store.Remove(menu)
	p.registry.RemoveGroup(menu)
}

func (p *Pager) arm(id, owner string) error {
	var allowed []string
	if owner != "" {
		allowed = []string{owner}
	}
	opts := registry.Options{
		Lifetime:      registry.Persistent,
		TTL:           p.ttl,
		CooldownClass: p.cooldown,
		Group:         id,
	}
	if err := p.registry.Register(id+":prev", allowed, p.step(id, -1), opts); err != nil {
		return err
	}
	return p.registry.Register(id+":next", allowed, p.step(id, +1), opts)
}

func (p *Pager) step(id string, delta int) registry.ActionFunc {
	return func(ctx context.Context, _ string, event any) error {
		p.mu.Lock()
		st, ok := ttlstore.GetAs[pageState](p.store, id)
		if !ok {
			p.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrMenuExpired, id)
		}
		st.page = min(max(st.page+delta, 0), st.total-1)
		err := p.store.Put(id, st, p.ttl)
		if err == nil {
			err = p.arm(id, st.owner)
		}
		p.mu.Unlock()
		if err != nil {
			return err
		}
		return st.render(ctx, event, p.view(id, st))
	}
}

func (p *Pager) view(id string, st pageState) PageView {
	row := discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{Label: "◀", Style: discordgo.SecondaryButton, CustomID: id + ":prev", Disabled: st.page == 0},
		discordgo.Button{Label: fmt.Sprintf("%d/%d", st.page+1, st.total), Style: discordgo.SecondaryButton, CustomID: id + ":pos", Disabled: true},
		discordgo.Button{Label: "▶", Style: discordgo.SecondaryButton, CustomID: id + ":next", Disabled: st.page == st.total-1},
	}}
	return PageView{
		Menu:       id,
		Page:       st.page,
		Total:      st.total,
		Components: []discordgo.MessageComponent{row},
	}
}
