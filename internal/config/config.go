// Package config loads schemadrift settings from defaults, a YAML file,
// SCHEMADRIFT_* environment variables and command-line flags.
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Defaults.
const (
	DefaultSchema         = "public"
	DefaultDefinition     = "prisma/schema.prisma"
	DefaultQueryTimeout   = 10 * time.Second
	DefaultInternalPrefix = "_"
	DefaultReport         = "db-integrity-report.json"
	DefaultOutput         = "text"

	envPrefix = "SCHEMADRIFT_"
)

var configFiles = []string{"schemadrift.yaml", "schemadrift.yml"}

// flagKeys maps flag names that differ from their config key.
var flagKeys = map[string]string{
	"db-url": "database_url",
	"config": "",
}

// Config holds every setting of a run.
type Config struct {
	DatabaseURL  string        `koanf:"database_url"`
	Schema       string        `koanf:"schema"`
	Definition   string        `koanf:"definition"`
	QueryTimeout time.Duration `koanf:"query_timeout"`
	// InternalTablePrefix marks tables owned by migration tooling.
	InternalTablePrefix string   `koanf:"internal_table_prefix"`
	ExcludeTables       []string `koanf:"exclude_tables"`
	SystemColumns       []string `koanf:"system_columns"`
	// TableOverrides maps model names to tables for schemas created outside
	// the derivation convention.
	TableOverrides map[string]string `koanf:"table_overrides"`
	PluralTables   bool              `koanf:"plural_tables"`
	Report         string            `koanf:"report"`
	Output         string            `koanf:"output"`
	Verbose        bool              `koanf:"verbose"`

	// File is the config file that was loaded, if any.
	File string `koanf:"-"`
}

// Load builds the configuration.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// Only flags that were explicitly set override other layers.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]any{
		"schema":                DefaultSchema,
		"definition":            DefaultDefinition,
		"query_timeout":         DefaultQueryTimeout.String(),
		"internal_table_prefix": DefaultInternalPrefix,
		"report":                DefaultReport,
		"output":                DefaultOutput,
		"verbose":               false,
		"plural_tables":         false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. Environment: SCHEMADRIFT_QUERY_TIMEOUT -> query_timeout. Empty
	// variables do not mask the file.
	if err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		if value == "" {
			return "", nil
		}
		return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			if mapped, ok := flagKeys[f.Name]; ok {
				key = mapped
			}
			if key == "" {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used

	// Prisma projects keep the connection string in DATABASE_URL.
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("query_timeout must be positive, got %s", c.QueryTimeout)
	}
	if !slices.Contains([]string{"text", "json", "yaml", "markdown"}, c.Output) {
		return fmt.Errorf("invalid output %q (must be 'text', 'json', 'yaml' or 'markdown')", c.Output)
	}
	// URLs and keyword/value strings ("host=... user=...") are both accepted.
	if c.DatabaseURL != "" {
		if _, err := pgxpool.ParseConfig(c.DatabaseURL); err != nil {
			return fmt.Errorf("invalid database URL: %w", err)
		}
	}
	return nil
}

// findConfigFile returns the explicit path, or the first default config file
// present in the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range configFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}
