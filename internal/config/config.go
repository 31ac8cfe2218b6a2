// Package config resolves wordbank's layered JSONC configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tailscale/hujson"
)

// Error variables for configuration.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrDataDirEmpty       = errors.New("data_dir cannot be empty")
	ErrBridgeUnknown      = errors.New("bridge must be \"journal\" or \"redis\"")
	ErrRedisAddrRequired  = errors.New("redis_addr is required when bridge is \"redis\"")
	ErrNegativeValue      = errors.New("value cannot be negative")
	ErrLogLevelUnknown    = errors.New("log_level must be one of debug, info, warn, error")
)

// Bridge transports.
const (
	BridgeJournal = "journal"
	BridgeRedis   = "redis"
)

// ProjectFileName is the optional config file looked up in the working
// directory.
const ProjectFileName = ".wordbank.json"

// Duration is a time.Duration written as a Go duration string ("250ms").
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}

	*d = Duration(parsed)

	return nil
}

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	DataDir         string   `json:"data_dir,omitempty"`
	Context         string   `json:"context,omitempty"`
	Bridge          string   `json:"bridge,omitempty"`
	RedisAddr       string   `json:"redis_addr,omitempty"`
	RedisPrefix     string   `json:"redis_prefix,omitempty"`
	LockTimeout     Duration `json:"lock_timeout,omitempty"`
	PollInterval    Duration `json:"poll_interval,omitempty"`
	MaxJournalBytes int64    `json:"max_journal_bytes,omitempty"`
	LogLevel        string   `json:"log_level,omitempty"`
	LogMode         string   `json:"log_mode,omitempty"`

	// Resolved paths (computed, not serialized)
	EffectiveCwd string `json:"-"`
	DataDirAbs   string `json:"-"`

	// Sources tracks which config files were loaded (for diagnostics)
	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string
	Project string
	Env     []string // environment variables that overrode a value
}

// Default returns the default configuration. DataDir is filled in from the
// environment by [Load].
func Default() Config {
	return Config{
		Bridge:          BridgeJournal,
		RedisPrefix:     "wordbank",
		LockTimeout:     Duration(5 * time.Second),
		PollInterval:    Duration(250 * time.Millisecond),
		MaxJournalBytes: 1 << 20,
		LogLevel:        "warn",
		LogMode:         "dev",
	}
}

// globalPath returns $XDG_CONFIG_HOME/wordbank/config.json, falling back to
// ~/.config/wordbank/config.json. Empty if neither can be determined.
func globalPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "wordbank", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "wordbank", "config.json")
	}

	return ""
}

// defaultDataDir returns $XDG_DATA_HOME/wordbank, falling back to
// ~/.local/share/wordbank.
func defaultDataDir(env map[string]string) string {
	if xdg := env["XDG_DATA_HOME"]; xdg != "" {
		return filepath.Join(xdg, "wordbank")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".local", "share", "wordbank")
	}

	return ".wordbank"
}

// LoadInput holds the inputs for [Load].
type LoadInput struct {
	WorkDirOverride string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config flag value
	DataDirOverride string            // --data-dir flag value
	ContextOverride string            // --context flag value
	Env             map[string]string // environment variables
}

// Load resolves configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/wordbank/config.json)
// 3. Project config (.wordbank.json in the working directory) or the
// explicit --config file
// 4. WORDBANK_* environment variables
// 5. CLI overrides.
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default()
	cfg.DataDir = defaultDataDir(input.Env)

	if path := globalPath(input.Env); path != "" {
		fileCfg, loaded, err := loadFile(path, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg.Sources.Global = path
			cfg = merge(cfg, fileCfg)
		}
	}

	projectPath, mustExist := filepath.Join(workDir, ProjectFileName), false

	if input.ConfigPath != "" {
		projectPath, mustExist = input.ConfigPath, true
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}
	}

	fileCfg, loaded, err := loadFile(projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg.Sources.Project = projectPath
		cfg = merge(cfg, fileCfg)
	}

	cfg, err = applyEnv(cfg, input.Env)
	if err != nil {
		return Config{}, err
	}

	if input.DataDirOverride != "" {
		cfg.DataDir = input.DataDirOverride
	}

	if input.ContextOverride != "" {
		cfg.Context = input.ContextOverride
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	cfg.EffectiveCwd = workDir

	if filepath.IsAbs(cfg.DataDir) {
		cfg.DataDirAbs = cfg.DataDir
	} else {
		cfg.DataDirAbs = filepath.Join(workDir, cfg.DataDir)
	}

	return cfg, nil
}

func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if mustExist {
				return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
			}

			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigFileRead, path, err)
	}

	cfg, explicitEmpty, err := parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	if explicitEmpty["data_dir"] {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, ErrDataDirEmpty)
	}

	return cfg, true, nil
}

func parse(data []byte) (Config, map[string]bool, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, nil, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, nil, fmt.Errorf("invalid JSON: %w", err)
	}

	var raw map[string]any

	_ = json.Unmarshal(standardized, &raw)

	explicitEmpty := make(map[string]bool)

	for key, val := range raw {
		if str, ok := val.(string); ok && str == "" {
			explicitEmpty[key] = true
		}
	}

	return cfg, explicitEmpty, nil
}

func merge(base, overlay Config) Config {
	if overlay.DataDir != "" {
		base.DataDir = overlay.DataDir
	}

	if overlay.Context != "" {
		base.Context = overlay.Context
	}

	if overlay.Bridge != "" {
		base.Bridge = overlay.Bridge
	}

	if overlay.RedisAddr != "" {
		base.RedisAddr = overlay.RedisAddr
	}

	if overlay.RedisPrefix != "" {
		base.RedisPrefix = overlay.RedisPrefix
	}

	if overlay.LockTimeout != 0 {
		base.LockTimeout = overlay.LockTimeout
	}

	if overlay.PollInterval != 0 {
		base.PollInterval = overlay.PollInterval
	}

	if overlay.MaxJournalBytes != 0 {
		base.MaxJournalBytes = overlay.MaxJournalBytes
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	if overlay.LogMode != "" {
		base.LogMode = overlay.LogMode
	}

	return base
}

// applyEnv overlays WORDBANK_* variables.
func applyEnv(cfg Config, env map[string]string) (Config, error) {
	var overlay Config

	set := func(key string, dst *string) {
		if v := strings.TrimSpace(env[key]); v != "" {
			*dst = v
			cfg.Sources.Env = append(cfg.Sources.Env, key)
		}
	}

	set("WORDBANK_DATA_DIR", &overlay.DataDir)
	set("WORDBANK_CONTEXT", &overlay.Context)
	set("WORDBANK_BRIDGE", &overlay.Bridge)
	set("WORDBANK_REDIS_ADDR", &overlay.RedisAddr)
	set("WORDBANK_LOG_LEVEL", &overlay.LogLevel)

	if v := strings.TrimSpace(env["WORDBANK_LOCK_TIMEOUT"]); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("WORDBANK_LOCK_TIMEOUT: %w", err)
		}

		overlay.LockTimeout = Duration(d)
		cfg.Sources.Env = append(cfg.Sources.Env, "WORDBANK_LOCK_TIMEOUT")
	}

	if v := strings.TrimSpace(env["WORDBANK_MAX_JOURNAL_BYTES"]); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("WORDBANK_MAX_JOURNAL_BYTES: %w", err)
		}

		overlay.MaxJournalBytes = n
		cfg.Sources.Env = append(cfg.Sources.Env, "WORDBANK_MAX_JOURNAL_BYTES")
	}

	return merge(cfg, overlay), nil
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.DataDir) == "" {
		return ErrDataDirEmpty
	}

	switch cfg.Bridge {
	case BridgeJournal:
	case BridgeRedis:
		if cfg.RedisAddr == "" {
			return ErrRedisAddrRequired
		}
	default:
		return fmt.Errorf("%w: %q", ErrBridgeUnknown, cfg.Bridge)
	}

	if cfg.LockTimeout < 0 {
		return fmt.Errorf("lock_timeout: %w", ErrNegativeValue)
	}

	if cfg.PollInterval < 0 {
		return fmt.Errorf("poll_interval: %w", ErrNegativeValue)
	}

	if cfg.MaxJournalBytes < 0 {
		return fmt.Errorf("max_journal_bytes: %w", ErrNegativeValue)
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(cfg.LogLevel)) {
		return fmt.Errorf("%w: %q", ErrLogLevelUnknown, cfg.LogLevel)
	}

	return nil
}
