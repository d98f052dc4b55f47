package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"

	"github.com/okian/betedge/internal/domain/odds"
)

const (
	envPrefix  = "BETEDGE_"
	envConfig  = "BETEDGE_CONFIG"
	minMonth   = 1
	maxMonth   = 12
	formatDec  = "decimal"
	formatUS   = "american"
	envKeySkip = "config"
)

var metricNamespace = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if BETEDGE_CONFIG is set
//  3. env (prefix BETEDGE_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// BETEDGE_QUEUE_SIZE -> queue_size. Underscores are kept to match the koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(envPrefix))
		if s == envKeySkip {
			return ""
		}
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	sports := c.SportList()
	if len(sports) == 0 {
		return fmt.Errorf("%w: at least one sport is required", ErrInvalidConfig)
	}
	for _, s := range sports {
		if _, err := odds.ParseSport(s); err != nil {
			return fmt.Errorf("%w: sports: %w", ErrInvalidConfig, err)
		}
	}
	if _, err := cron.ParseStandard(c.RefreshSchedule); err != nil {
		return fmt.Errorf("%w: refresh_schedule %q: %w", ErrInvalidConfig, c.RefreshSchedule, err)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	if c.MaxPicks <= 0 {
		return fmt.Errorf("%w: max_picks must be positive", ErrInvalidConfig)
	}
	switch c.OddsFormat {
	case formatDec, formatUS:
	default:
		return fmt.Errorf("%w: odds_format must be %s or %s", ErrInvalidConfig, formatDec, formatUS)
	}
	if !metricNamespace.MatchString(c.MetricsNamespace) {
		return fmt.Errorf("%w: metrics_namespace %q is not a valid metric prefix", ErrInvalidConfig, c.MetricsNamespace)
	}
	for sport, months := range c.Offseason {
		for _, m := range months {
			if m < minMonth || m > maxMonth {
				return fmt.Errorf("%w: offseason %s: month %d out of range", ErrInvalidConfig, sport, m)
			}
		}
	}
	return nil
}
