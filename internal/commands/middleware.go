package commands

import (
	"context"
	"fmt"
	"time"

	"laxenta/internal/flows"
	"laxenta/internal/respond"
	"laxenta/pkg/cmd"

	"github.com/rs/zerolog"
)

// GuildOnly refuses to run outside a guild.
func GuildOnly(c cmd.Command) cmd.Command {
	return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
		if inv.Scope != "" {
			return c.Run(ctx, inv)
		}
		cc, err := contextOf(inv)
		if err != nil {
			return err
		}
		return respond.Ephemeral(cc.Session, cc.Event, "You must be in a guild to use this command.")
	})
}

// Cooldown charges the invoker one use of the gate's class before running.
func Cooldown(g *flows.Gate) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			dec, err := g.Admit(inv.Subject)
			if err != nil {
				return err
			}
			if dec.Admitted {
				return c.Run(ctx, inv)
			}
			cc, err := contextOf(inv)
			if err != nil {
				return err
			}
			msg := fmt.Sprintf("⏳ Slow down! You can use `/%s` again <t:%d:R>.", c.Name(), dec.ResetAt.Unix())
			return respond.Ephemeral(cc.Session, cc.Event, msg)
		})
	}
}

// Logging records every command run.
func Logging(logger zerolog.Logger) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			start := time.Now()
			err := c.Run(ctx, inv)
			ev := logger.Info()
			if err != nil {
				ev = logger.Error().Err(err)
			}
			ev.Str("command", c.Name()).
				Str("subject", inv.Subject).
				Str("guild", inv.Scope).
				Dur("took", time.Since(start)).
				Msg("command finished")
			return err
		})
	}
}
