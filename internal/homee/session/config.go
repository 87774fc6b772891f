package session

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultLocalPort is the hub's WebSocket and token port on the LAN.
	DefaultLocalPort = 7681

	// DefaultIOTimeout bounds HTTP requests, handshakes and writes.
	DefaultIOTimeout = 5 * time.Second

	// DefaultPollInterval is the per-wait slice of the receive loop.
	DefaultPollInterval = 250 * time.Millisecond

	// DefaultResponseWindow is how long the client drains replies after a request.
	DefaultResponseWindow = 1 * time.Second

	// DefaultTokenRefreshThreshold is how long before expiry a token is renewed.
	DefaultTokenRefreshThreshold = 30 * time.Second

	// DefaultClientName identifies this client to the hub.
	DefaultClientName = "gray-logic-homee"

	// protocolVersion is the WebSocket subprotocol the hub speaks.
	protocolVersion = "v2"

	// remoteDomain marks addresses served by the hub vendor's cloud proxy.
	remoteDomain = ".hom.ee"
)

// Config holds the settings of one hub session.
type Config struct {
	// Address is the hub host name or IP, or a remote proxy name ending in
	// ".hom.ee".
	Address  string
	Username string
	Password string

	// Port overrides DefaultLocalPort for local addresses. Remote addresses
	// never carry a port.
	Port int

	// DeviceName and HardwareID identify this client in the token request.
	DeviceName string
	HardwareID string

	IOTimeout      time.Duration
	PollInterval   time.Duration
	ResponseWindow time.Duration
}

// withDefaults returns a copy with zero values replaced by defaults.
func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultLocalPort
	}
	if c.DeviceName == "" {
		c.DeviceName = DefaultClientName
	}
	if c.HardwareID == "" {
		c.HardwareID = DefaultClientName
	}
	if c.IOTimeout <= 0 {
		c.IOTimeout = DefaultIOTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ResponseWindow <= 0 {
		c.ResponseWindow = DefaultResponseWindow
	}
	return c
}

// Validate checks the settings a session cannot start without.
func (c Config) Validate() error {
	var errs []string
	if c.Address == "" {
		errs = append(errs, "address is required")
	}
	if c.Username == "" {
		errs = append(errs, "username is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("port %d out of range", c.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("session config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// IsLocal reports whether the address is a LAN hub rather than the remote proxy.
func (c Config) IsLocal() bool {
	return !strings.Contains(c.Address, remoteDomain)
}

// Location returns host[:port] for hub URLs.
func (c Config) Location() string {
	if !c.IsLocal() {
		return c.Address
	}
	port := c.Port
	if port == 0 {
		port = DefaultLocalPort
	}
	return fmt.Sprintf("%s:%d", c.Address, port)
}

func (c Config) httpScheme() string {
	if c.IsLocal() {
		return "http"
	}
	return "https"
}

func (c Config) wsScheme() string {
	if c.IsLocal() {
		return "ws"
	}
	return "wss"
}
