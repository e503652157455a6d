// Package bot owns the gateway session: it opens it with retry, publishes
// the slash commands and routes every interaction to the command registry or
// the component dispatcher.
package bot

import (
	"context"
	"errors"
	"fmt"

	"laxenta/internal/commands"
	"laxenta/internal/dispatch"
	"laxenta/internal/respond"
	"laxenta/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Options wire a Bot.
type Options struct {
	Token string
	// GuildID scopes slash commands to one guild; empty publishes them globally.
	GuildID      string
	SyncCommands bool
	Commands     *cmd.Registry
	Dispatcher   *dispatch.Dispatcher
	Logger       zerolog.Logger
	// OpenBackOff paces gateway open retries. Defaults to exponential, capped at two minutes.
	OpenBackOff backoff.BackOff
}

// Bot owns the gateway session and routes interactions.
type Bot struct {
	opts    Options
	dg      *discordgo.Session
	logger  zerolog.Logger
	baseCtx context.Context
}

func New(opts Options) (*Bot, error) {
	if opts.Token == "" {
		return nil, errors.New("bot: token is required")
	}
	if opts.Commands == nil || opts.Dispatcher == nil {
		return nil, errors.New("bot: commands and dispatcher are required")
	}

	dg, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds

	b := &Bot{
		opts:    opts,
		dg:      dg,
		logger:  opts.Logger.With().Str("component", "bot").Logger(),
		baseCtx: context.Background(),
	}
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onInteractionCreate)
	return b, nil
}

// Run opens the gateway and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.baseCtx = ctx

	bo := b.opts.OpenBackOff
	if bo == nil {
		exp := backoff.NewExponentialBackOff()
		exp.MaxElapsedTime = defaultOpenBudget
		bo = exp
	}
	if err := open(ctx, b.dg.Open, bo, b.logger); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer func() {
		if err := b.dg.Close(); err != nil {
			b.logger.Warn().Err(err).Msg("closing session")
		}
	}()

	<-ctx.Done()
	b.logger.Info().Msg("shutdown signal received, closing gateway")
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info().
		Str("user", r.User.Username).
		Int("guilds", len(r.Guilds)).
		Msg("discord bot is running")

	if !b.opts.SyncCommands {
		b.logger.Info().Msg("slash command sync skipped")
		return
	}
	defs := commands.Definitions(b.opts.Commands)
	lim := rate.NewLimiter(commandWrites, 1)
	res, err := syncCommands(b.baseCtx, s, lim, r.User.ID, b.opts.GuildID, defs)
	if err != nil {
		b.logger.Error().Err(err).Str("guild", b.opts.GuildID).Msg("slash command sync failed")
		return
	}
	b.logger.Info().
		Str("guild", b.opts.GuildID).
		Int("created", res.Created).
		Int("deleted", res.Deleted).
		Int("unchanged", res.Unchanged).
		Msg("slash commands synced")
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.runCommand(s, i)
	case discordgo.InteractionMessageComponent, discordgo.InteractionModalSubmit:
		b.opts.Dispatcher.Handle(s, i)
	default:
		b.logger.Debug().Int("type", int(i.Type)).Msg("unhandled interaction type")
	}
}

func (b *Bot) runCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := commands.Run(b.baseCtx, b.opts.Commands, s, i)
	if err == nil {
		return
	}
	b.logger.Error().Err(err).Str("command", i.ApplicationCommandData().Name).Msg("command failed")
	if rerr := respond.Ephemeral(s, i, "Something went wrong, try again."); rerr != nil {
		b.logger.Debug().Err(rerr).Msg("failed to report command error")
	}
}
