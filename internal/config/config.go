// Package config loads process configuration from the environment, with an
// optional .env file for local runs.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"laxenta/pkg/ratelimit"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required,notEmpty"`
	GuildID      string `env:"DISCORD_GUILD_ID"`
	InitCommands bool   `env:"INIT_SLASH_COMMANDS" envDefault:"true"`

	Log LogConfig

	// Lifetimes of the interactive flows.
	ConfirmTTL  time.Duration `env:"CONFIRM_TTL" envDefault:"30s"`
	ProposalTTL time.Duration `env:"PROPOSAL_TTL" envDefault:"60s"`
	MenuTTL     time.Duration `env:"MENU_TTL" envDefault:"300s"`
	DedupTTL    time.Duration `env:"DEDUP_TTL" envDefault:"15m"`

	// Cooldowns maps a class name to "max/window", e.g. rolls:8/55m.
	Cooldowns map[string]string `env:"COOLDOWNS" envKeyValSeparator:":" envDefault:"rolls:8/55m,marriages:5/3h,command:1/3s,buttons:1/1s"`

	SweepSchedule      string        `env:"SWEEP_SCHEDULE" envDefault:"@every 1m"`
	TTLCleanupInterval time.Duration `env:"TTL_CLEANUP_INTERVAL" envDefault:"1m"`

	BurstRPS  float64 `env:"BURST_RPS" envDefault:"2"`
	BurstSize int     `env:"BURST_SIZE" envDefault:"4"`

	MetricsAddr string `env:"METRICS_ADDR"`
}

type LogConfig struct {
	Level      string `env:"LOG_LEVEL" envDefault:"info"`
	Format     string `env:"LOG_FORMAT" envDefault:"console"`
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"50"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"14"`
}

// Load reads the given .env files (default ".env") into the process
// environment, then parses it. A missing .env file is not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return validate(&cfg)
}

// LoadFrom parses cfg from an explicit environment instead of the process one.
func LoadFrom(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return validate(&cfg)
}

func validate(cfg *Config) (*Config, error) {
	for name, d := range map[string]time.Duration{
		"CONFIRM_TTL":  cfg.ConfirmTTL,
		"PROPOSAL_TTL": cfg.ProposalTTL,
		"MENU_TTL":     cfg.MenuTTL,
		"DEDUP_TTL":    cfg.DedupTTL,
	} {
		if d <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if _, err := cfg.Policies(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Policies parses Cooldowns into limiter policies.
func (c *Config) Policies() (map[string]ratelimit.Policy, error) {
	out := make(map[string]ratelimit.Policy, len(c.Cooldowns))
	for class, raw := range c.Cooldowns {
		class = strings.TrimSpace(class)
		p, err := ParsePolicy(raw)
		if err != nil {
			return nil, fmt.Errorf("COOLDOWNS %q: %w", class, err)
		}
		out[class] = p
	}
	return out, nil
}

// ParsePolicy parses "max/window", e.g. "8/55m".
func ParsePolicy(raw string) (ratelimit.Policy, error) {
	countPart, windowPart, ok := strings.Cut(strings.TrimSpace(raw), "/")
	if !ok {
		return ratelimit.Policy{}, fmt.Errorf("want max/window, got %q", raw)
	}
	maxCount, err := strconv.Atoi(strings.TrimSpace(countPart))
	if err != nil {
		return ratelimit.Policy{}, fmt.Errorf("max: %w", err)
	}
	window, err := time.ParseDuration(strings.TrimSpace(windowPart))
	if err != nil {
		return ratelimit.Policy{}, fmt.Errorf("window: %w", err)
	}
	p := ratelimit.Policy{Max: maxCount, Window: window}
	return p, p.Validate()
}

