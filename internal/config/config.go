package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/collabedit/internal/collab/codec"
	"github.com/dshills/collabedit/internal/config/loader"
	"github.com/dshills/collabedit/internal/logging"
)

// EnvPrefix prefixes every environment variable the config reads.
const EnvPrefix = "COLLABEDIT_"

// Config holds every collabedit setting.
type Config struct {
	Session SessionConfig `toml:"session" yaml:"session"`
	Editor  EditorConfig  `toml:"editor" yaml:"editor"`
	User    UserConfig    `toml:"user" yaml:"user"`
	Hub     HubConfig     `toml:"hub" yaml:"hub"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
}

// SessionConfig configures the client side of a session.
type SessionConfig struct {
	// URL is the hub websocket URL, e.g. ws://host:8080/docs/notes.
	// Empty means discover a hub on the local network.
	URL string `toml:"url" yaml:"url"`
	// Document is the document joined on a discovered hub.
	Document         string   `toml:"document" yaml:"document"`
	MaxRetries       int      `toml:"max_retries" yaml:"max_retries"`
	HandshakeTimeout Duration `toml:"handshake_timeout" yaml:"handshake_timeout"`
	DiscoverTimeout  Duration `toml:"discover_timeout" yaml:"discover_timeout"`
}

// EditorConfig configures local editing.
type EditorConfig struct {
	// CollapseLeadingNewline sends an inserted "\n..." as a bare newline.
	CollapseLeadingNewline bool `toml:"collapse_leading_newline" yaml:"collapse_leading_newline"`
	// ShowAttribution paints author colors behind text.
	ShowAttribution bool `toml:"show_attribution" yaml:"show_attribution"`
	TabWidth        int  `toml:"tab_width" yaml:"tab_width"`
}

// UserConfig names the local user.
type UserConfig struct {
	Name string `toml:"name" yaml:"name"`
}

// HubConfig configures the hub server.
type HubConfig struct {
	Listen       string   `toml:"listen" yaml:"listen"`
	Encoding     string   `toml:"encoding" yaml:"encoding"`
	HistoryLimit int      `toml:"history_limit" yaml:"history_limit"`
	JoinTimeout  Duration `toml:"join_timeout" yaml:"join_timeout"`
	// Redis is a redis:// URL; set it to relay between hub instances.
	Redis     string `toml:"redis" yaml:"redis"`
	Advertise bool   `toml:"advertise" yaml:"advertise"`
	Instance  string `toml:"instance" yaml:"instance"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level string `toml:"level" yaml:"level"`
	// File receives log output instead of stderr when set.
	File string `toml:"file" yaml:"file"`
}

// Duration is a time.Duration written as a string such as "10s".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns the built-in settings.
func Default() Config {
	name := os.Getenv("USER")
	if name == "" {
		name = "anonymous"
	}
	return Config{
		Session: SessionConfig{
			Document:         "scratch",
			MaxRetries:       5,
			HandshakeTimeout: Duration(10 * time.Second),
			DiscoverTimeout:  Duration(3 * time.Second),
		},
		Editor: EditorConfig{
			CollapseLeadingNewline: true,
			ShowAttribution:        true,
			TabWidth:               4,
		},
		User: UserConfig{Name: name},
		Hub: HubConfig{
			Listen:       ":8080",
			Encoding:     codec.DefaultEncoding,
			HistoryLimit: 500,
			JoinTimeout:  Duration(10 * time.Second),
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "collabedit", "config.toml")
}

// Load reads path over the defaults, applies the environment and validates
// the result. A missing file is not an error; an empty path skips the file.
func Load(path string) (Config, error) {
	return load(loader.DefaultFS(), path, loader.NewEnvLoader(EnvPrefix))
}

func load(fsys loader.FileSystem, path string, env loader.Loader) (Config, error) {
	cfg := Default()
	merged := map[string]any{}

	if path != "" {
		fl, err := loader.ForPath(fsys, path)
		if err != nil {
			return cfg, err
		}
		fileMap, err := fl.Load()
		if err != nil {
			return cfg, err
		}
		merged = loader.DeepMerge(merged, fileMap)
	}
	if env != nil {
		envMap, err := env.Load()
		if err != nil {
			return cfg, fmt.Errorf("loading environment: %w", err)
		}
		merged = loader.DeepMerge(merged, envMap)
	}

	if err := decode(merged, &cfg); err != nil {
		return cfg, fmt.Errorf("decoding %s: %w", displayPath(path), err)
	}
	return cfg, cfg.Validate()
}

// decode re-encodes the merged map as TOML so file and environment values
// go through the same typed decoder.
func decode(m map[string]any, cfg *Config) error {
	if len(m) == 0 {
		return nil
	}
	data, err := toml.Marshal(m)
	if err != nil {
		return err
	}
	return toml.Unmarshal(data, cfg)
}

func displayPath(path string) string {
	if path == "" {
		return "environment"
	}
	return path
}

// Validate checks every setting and returns the failures joined.
func (c Config) Validate() error {
	var errs []error
	add := func(path, msg string, v any) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: v})
	}

	if c.Session.MaxRetries < 0 {
		add("session.max_retries", "must not be negative", c.Session.MaxRetries)
	}
	if c.Session.HandshakeTimeout <= 0 {
		add("session.handshake_timeout", "must be positive", c.Session.HandshakeTimeout.Std())
	}
	if c.Session.DiscoverTimeout <= 0 {
		add("session.discover_timeout", "must be positive", c.Session.DiscoverTimeout.Std())
	}
	if c.Editor.TabWidth < 1 || c.Editor.TabWidth > 16 {
		add("editor.tab_width", "must be between 1 and 16", c.Editor.TabWidth)
	}
	if strings.TrimSpace(c.User.Name) == "" {
		add("user.name", "must not be empty", c.User.Name)
	}
	if _, err := codec.Lookup(c.Hub.Encoding); err != nil {
		add("hub.encoding", err.Error(), c.Hub.Encoding)
	}
	if c.Hub.HistoryLimit < 1 {
		add("hub.history_limit", "must be positive", c.Hub.HistoryLimit)
	}
	if c.Hub.JoinTimeout <= 0 {
		add("hub.join_timeout", "must be positive", c.Hub.JoinTimeout.Std())
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("logging.level", "must be debug, info, warn or error", c.Logging.Level)
	}

	return errors.Join(errs...)
}

// LogLevel returns the configured logging level.
func (c Config) LogLevel() logging.Level {
	return logging.ParseLevel(c.Logging.Level)
}
