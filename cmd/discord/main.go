package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"laxenta/internal/app"
	"laxenta/internal/config"
	"laxenta/internal/logging"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "laxenta",
		Short:        "Discord bot with expiring buttons, cooldowns and timed proposals",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.AddCommand(newConfigCmd(&envFile))
	return root
}

func run(parent context.Context, envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	logger.Info().Msg("starting laxenta")

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to assemble bot")
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("discord bot error")
		return err
	}
	logger.Info().Msg("discord bot exited cleanly")
	return nil
}

func newConfigCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective cooldown classes and lifetimes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			policies, err := cfg.Policies()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			classes := make([]string, 0, len(policies))
			for class := range policies {
				classes = append(classes, class)
			}
			sort.Strings(classes)
			for _, class := range classes {
				fmt.Fprintf(out, "cooldown %-10s %s\n", class, policies[class])
			}
			fmt.Fprintf(out, "confirm ttl  %s\n", cfg.ConfirmTTL)
			fmt.Fprintf(out, "proposal ttl %s\n", cfg.ProposalTTL)
			fmt.Fprintf(out, "menu ttl     %s\n", cfg.MenuTTL)
			fmt.Fprintf(out, "dedup ttl    %s\n", cfg.DedupTTL)
			fmt.Fprintf(out, "sweep        %s\n", cfg.SweepSchedule)
			return nil
		},
	}
}
