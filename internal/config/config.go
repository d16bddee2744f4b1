package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/vango-dev/vdombridge/internal/counter"
	"github.com/vango-dev/vdombridge/pkg/server"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "VDOMBRIDGE_"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Config holds the process configuration.
type Config struct {
	Address          string        `env:"ADDR"             envDefault:"127.0.0.1:8080"`
	Path             string        `env:"PATH"             envDefault:"/"`
	Protocol         string        `env:"PROTOCOL"         envDefault:"vdom-websocket-rsjs"`
	AllowAnyOrigin   bool          `env:"ALLOW_ANY_ORIGIN"`
	MaxMessageSize   int64         `env:"MAX_MESSAGE_SIZE" envDefault:"65536"`
	WriteTimeout     time.Duration `env:"WRITE_TIMEOUT"    envDefault:"10s"`
	CloseGracePeriod time.Duration `env:"CLOSE_GRACE"      envDefault:"2s"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	DeferDelay time.Duration           `env:"DEFER_DELAY" envDefault:"200ms"`
	Underflow  counter.UnderflowPolicy `env:"UNDERFLOW"   envDefault:"saturate"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return parse(env.Options{Prefix: EnvPrefix})
}

// LoadFrom reads the configuration from environ, keyed by full variable
// name. A nil map falls back to the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Prefix: EnvPrefix, Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("%w: empty address", ErrInvalid)
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("%w: path %q must start with /", ErrInvalid, c.Path)
	}
	if !validToken(c.Protocol) {
		return fmt.Errorf("%w: sub-protocol %q is not a valid token", ErrInvalid, c.Protocol)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("%w: max message size must be positive", ErrInvalid)
	}
	if c.DeferDelay <= 0 {
		return fmt.Errorf("%w: defer delay must be positive", ErrInvalid)
	}
	if _, err := counter.ParseUnderflowPolicy(string(c.Underflow)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log format %q (want text or json)", ErrInvalid, c.LogFormat)
	}
	return nil
}

// validToken reports whether s is an RFC 7230 token, the grammar of a
// Sec-WebSocket-Protocol entry.
func validToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r <= ' ' || r >= 0x7f || strings.ContainsRune(`()<>@,;:\"/[]?={}`, r) {
			return false
		}
	}
	return true
}

// ServerConfig converts c to a server configuration.
func (c *Config) ServerConfig() *server.Config {
	sc := server.DefaultConfig().
		WithAddress(c.Address).
		WithPath(c.Path).
		WithProtocol(c.Protocol)
	if c.AllowAnyOrigin {
		sc.WithAnyOrigin()
	}
	sc.MaxMessageSize = c.MaxMessageSize
	sc.WriteTimeout = c.WriteTimeout
	sc.CloseGracePeriod = c.CloseGracePeriod
	sc.ShutdownTimeout = c.ShutdownTimeout
	return sc
}

// CounterOptions returns the reference application options.
func (c *Config) CounterOptions() counter.Options {
	return counter.Options{
		Delay:     c.DeferDelay,
		Underflow: c.Underflow,
	}
}

// NewLogger builds a slog logger writing to w in the configured format and level.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalid, s)
	}
	return level, nil
}
