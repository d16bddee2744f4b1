package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/vdombridge/pkg/protocol"
)

// Config holds configuration for the listener and its bridges.
type Config struct {
	// Address is the address to listen on.
	// Default: "127.0.0.1:8080".
	Address string

	// Path is the HTTP path accepting WebSocket upgrades.
	// Default: "/".
	Path string

	// Protocol is the only sub-protocol accepted. Clients must offer it
	// verbatim during the upgrade.
	// Default: protocol.DefaultSubprotocol.
	Protocol string

	// WebSocket buffer sizes

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// CheckOrigin is called to validate the request origin.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// Limits and timeouts

	// MaxMessageSize is the maximum size of an inbound message.
	// Default: 64KB.
	MaxMessageSize int64

	// WriteTimeout bounds every write to the transport.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// CloseGracePeriod is how long the inbound loop waits for the peer
	// after the close frame was sent.
	// Default: 2 seconds.
	CloseGracePeriod time.Duration

	// ReadHeaderTimeout is the HTTP server's header read timeout.
	// Default: 5 seconds.
	ReadHeaderTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for bridges to finish.
	// Default: 10 seconds.
	ShutdownTimeout time.Duration

	// Registry receives the server metrics and backs the /metrics endpoint.
	// Default: a fresh prometheus.Registry.
	Registry *prometheus.Registry
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:           "127.0.0.1:8080",
		Path:              "/",
		Protocol:          protocol.DefaultSubprotocol,
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		CheckOrigin:       SameOriginCheck,
		MaxMessageSize:    64 * 1024,
		WriteTimeout:      10 * time.Second,
		CloseGracePeriod:  2 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}
}

// withDefaults returns a copy of c with unset fields filled in.
func (c *Config) withDefaults() *Config {
	defaults := DefaultConfig()
	if c == nil {
		c = defaults
	}
	out := c.Clone()
	if out.Address == "" {
		out.Address = defaults.Address
	}
	if out.Path == "" {
		out.Path = defaults.Path
	}
	if out.Protocol == "" {
		out.Protocol = defaults.Protocol
	}
	if out.ReadBufferSize == 0 {
		out.ReadBufferSize = defaults.ReadBufferSize
	}
	if out.WriteBufferSize == 0 {
		out.WriteBufferSize = defaults.WriteBufferSize
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = defaults.CheckOrigin
	}
	if out.MaxMessageSize == 0 {
		out.MaxMessageSize = defaults.MaxMessageSize
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = defaults.WriteTimeout
	}
	if out.CloseGracePeriod == 0 {
		out.CloseGracePeriod = defaults.CloseGracePeriod
	}
	if out.ReadHeaderTimeout == 0 {
		out.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if out.Registry == nil {
		out.Registry = prometheus.NewRegistry()
	}
	return out
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// WithAddress sets the listen address and returns the config for chaining.
func (c *Config) WithAddress(addr string) *Config {
	c.Address = addr
	return c
}

// WithProtocol sets the accepted sub-protocol and returns the config for chaining.
func (c *Config) WithProtocol(proto string) *Config {
	c.Protocol = proto
	return c
}

// WithPath sets the upgrade path and returns the config for chaining.
func (c *Config) WithPath(path string) *Config {
	c.Path = path
	return c
}

// WithAnyOrigin disables the origin check. Intended for local development
// and tests.
func (c *Config) WithAnyOrigin() *Config {
	c.CheckOrigin = func(*http.Request) bool { return true }
	return c
}

// SameOriginCheck validates that the WebSocket request origin matches the host.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// No Origin header (e.g., same-origin request or non-browser client)
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := r.Host
	if host == "" {
		return false
	}
	return originURL.Host == host
}
