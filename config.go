package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// FillConfig holds the full TOML-driven fill configuration.
type FillConfig struct {
	Database             DatabaseConfig `toml:"database"`
	Rows                 int            `toml:"rows"`
	Workers              int            `toml:"workers"`
	JumbleFKs            bool           `toml:"jumble_fks"`
	FKPctReplace         int            `toml:"fk_pct_replace"`
	StrictInsert         bool           `toml:"strict_insert"`
	ProcessIntFKs        bool           `toml:"process_int_fks"`
	CompositePKIncrement bool           `toml:"composite_pk_increment"`
	ComplexJSON          bool           `toml:"complex_json"`
	Truncate             bool           `toml:"truncate"`
	MaxPacket            bool           `toml:"max_packet"`
	Debug                bool           `toml:"debug"`
	ExtendedDebug        bool           `toml:"extended_debug"`
	Seed                 int64          `toml:"seed"` // 0 = time-based
	Float                FloatConfig    `toml:"float"`
	Hooks                HooksConfig    `toml:"hooks"`

	// configDir is the directory containing the TOML file, used to resolve relative paths.
	configDir string
}

// DatabaseConfig identifies the target engine and connection string.
type DatabaseConfig struct {
	Type string `toml:"type"` // "mysql", "postgres" or "sqlite"
	DSN  string `toml:"dsn"`
}

// FloatConfig controls how float/double bounds are derived from precision and scale.
type FloatConfig struct {
	DefaultBound     float64 `toml:"default_bound"`     // used when precision is unknown
	AmplifyThreshold float64 `toml:"amplify_threshold"` // bounds above this are amplified
	AmplifyFactor    float64 `toml:"amplify_factor"`
}

type HooksConfig struct {
	BeforeFill []string `toml:"before_fill"`
	AfterFill  []string `toml:"after_fill"`
}

// loadConfig reads a TOML config file and returns a FillConfig with defaults applied.
func loadConfig(path string) (*FillConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	configDir := filepath.Dir(absPath)

	// A .env next to the config may carry credentials referenced from the DSN.
	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaultFillConfig()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	cfg.configDir = configDir
	cfg.Database.DSN = os.ExpandEnv(cfg.Database.DSN)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate checks option ranges and applies derived defaults. It is re-run
// after command-line overrides.
func (c *FillConfig) validate() error {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers()
	}
	if c.Rows < 0 {
		return fmt.Errorf("rows must be >= 0")
	}
	if c.FKPctReplace < 0 || c.FKPctReplace > 100 {
		return fmt.Errorf("fk_pct_replace must be between 0 and 100")
	}
	if c.Float.AmplifyFactor <= 0 {
		return fmt.Errorf("float.amplify_factor must be > 0")
	}
	if c.Float.DefaultBound <= 0 {
		return fmt.Errorf("float.default_bound must be > 0")
	}
	if c.ExtendedDebug {
		c.Debug = true
	}

	c.Database.Type = strings.ToLower(strings.TrimSpace(c.Database.Type))
	if c.Database.Type == "" {
		return fmt.Errorf("database.type is required (must be mysql, postgres or sqlite)")
	}
	d, err := newDialect(c.Database.Type)
	if err != nil {
		return err
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.MaxPacket && c.Database.Type != "mysql" {
		return fmt.Errorf("max_packet is a MySQL-only option")
	}

	// Cap workers based on engine limits
	if max := d.MaxWorkers(); max > 0 && c.Workers > max {
		c.Workers = max
	}
	return nil
}

// resolvePath resolves a path relative to the config file directory.
func (c *FillConfig) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.configDir, p)
}

// resolveOptions returns the column resolution switches carried by the config.
func (c *FillConfig) resolveOptions() ResolveOptions {
	return ResolveOptions{
		ProcessIntFKs:        c.ProcessIntFKs,
		CompositePKIncrement: c.CompositePKIncrement,
		ComplexJSON:          c.ComplexJSON,
		Float:                c.Float,
	}
}

func defaultFillConfig() FillConfig {
	return FillConfig{
		Rows:          10,
		JumbleFKs:     true,
		FKPctReplace:  25,
		ProcessIntFKs: true,
		Float:         defaultFloatConfig(),
	}
}

func defaultFloatConfig() FloatConfig {
	return FloatConfig{
		DefaultBound:     10,
		AmplifyThreshold: 6,
		AmplifyFactor:    999,
	}
}

func defaultWorkers() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	if n > 8 {
		return 8
	}
	return n
}
