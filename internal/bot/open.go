package bot

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const defaultOpenBudget = 2 * time.Minute

// open calls opener until it succeeds, bo gives up, or ctx ends.
func open(ctx context.Context, opener func() error, bo backoff.BackOff, logger zerolog.Logger) error {
	op := func() error {
		err := opener()
		if errors.Is(err, discordgo.ErrWSAlreadyOpen) {
			return nil
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Dur("retry_in", wait).Msg("gateway open failed")
	}
	return backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify)
}
