package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-homee/internal/homee"
)

// Request lines understood by the hub.
const (
	RequestAll           = "GET:all"
	RequestGroups        = "GET:groups"
	RequestHomeegrams    = "GET:homeegrams"
	RequestNodes         = "GET:nodes"
	RequestPlans         = "GET:plans"
	RequestRelationships = "GET:relationships"
	RequestSettings      = "GET:settings"
	RequestUsers         = "GET:users"
)

const (
	// defaultReconnectInterval is the initial delay between reconnection attempts.
	defaultReconnectInterval = 5 * time.Second

	// maxReconnectInterval is the maximum delay between reconnection attempts.
	maxReconnectInterval = 2 * time.Minute
)

// Stats holds client counters.
type Stats struct {
	Connected       bool
	State           string
	TokenState      string
	Devices         int
	FramesHandled   uint64 // inbound text frames dispatched
	RequestsSent    uint64
	ReconnectsTotal uint64
	ErrorsTotal     uint64
	LastActivity    time.Time
}

// Client is the entry point for callers. It connects on demand and pairs
// every request with a short receive window so the hub's replies are
// applied before the call returns.
//
// The hub protocol has no request identifiers: events that arrive during
// the window are dispatched whoever caused them, so concurrent callers may
// observe each other's replies. Calls are serialised to keep one receive
// loop at a time.
type Client struct {
	session *Session
	logger  homee.Logger

	// mu serialises request/response exchanges and the listener.
	mu sync.Mutex

	reconnectInterval time.Duration
	everConnected     atomic.Bool

	requestsSent    atomic.Uint64
	reconnectsTotal atomic.Uint64
	errorsTotal     atomic.Uint64
	lastActivity    atomic.Int64
}

// NewClient creates a client for one hub. It does not connect.
//
// Parameters:
//   - cfg: Hub address, credentials and timing
//
// Returns:
//   - *Client: Disconnected client; the first request connects it
func NewClient(cfg Config) *Client {
	return &Client{
		session:           New(cfg),
		logger:            noopLogger{},
		reconnectInterval: defaultReconnectInterval,
	}
}

// SetLogger sets the logger for the client and its session.
func (c *Client) SetLogger(logger homee.Logger) {
	c.logger = logger
	c.session.SetLogger(logger)
}

// SetReconnectInterval sets the initial backoff used by Listen.
func (c *Client) SetReconnectInterval(d time.Duration) {
	c.reconnectInterval = d
}

// Session returns the underlying session.
func (c *Client) Session() *Session { return c.session }

// IsConnected reports whether the session is connected.
func (c *Client) IsConnected() bool { return c.session.IsConnected() }

// Connect connects the session and loads the full hub snapshot.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if err := c.session.Connect(ctx); err != nil {
		return err
	}
	if c.everConnected.Swap(true) {
		c.reconnectsTotal.Add(1)
		c.logger.Info("homee connection re-established", "total_reconnects", c.reconnectsTotal.Load())
	}
	return c.exchangeLocked(ctx, RequestAll)
}

// ensureConnectedLocked must be called with mu held.
func (c *Client) ensureConnectedLocked(ctx context.Context) error {
	if c.session.IsConnected() {
		return nil
	}
	return c.connectLocked(ctx)
}

// Disconnect closes the session.
func (c *Client) Disconnect() error {
	return c.session.Disconnect()
}

// Send connects if needed and writes one request without waiting for replies.
func (c *Client) Send(ctx context.Context, request string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureConnectedLocked(ctx); err != nil {
		return err
	}
	if err := c.session.Send(ctx, request); err != nil {
		c.errorsTotal.Add(1)
		return err
	}
	c.requestsSent.Add(1)
	return nil
}

// SendAndAwait connects if needed, writes request, then dispatches whatever
// the hub sends within the response window.
//
// Parameters:
//   - ctx: Context for the send and the receive window
//   - request: Raw request line, e.g. "GET:all"
//
// Returns:
//   - error: Connection, send or dispatch failure
func (c *Client) SendAndAwait(ctx context.Context, request string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureConnectedLocked(ctx); err != nil {
		return err
	}
	return c.exchangeLocked(ctx, request)
}

func (c *Client) exchangeLocked(ctx context.Context, request string) error {
	if err := c.session.Send(ctx, request); err != nil {
		c.errorsTotal.Add(1)
		return err
	}
	c.requestsSent.Add(1)
	if err := c.session.ReceiveLoop(ctx, c.session.cfg.ResponseWindow); err != nil {
		c.errorsTotal.Add(1)
		return err
	}
	c.touch()
	return nil
}

func (c *Client) touch() {
	c.lastActivity.Store(time.Now().Unix())
}

// RefreshAll reloads every resource the hub exposes.
func (c *Client) RefreshAll(ctx context.Context) error { return c.SendAndAwait(ctx, RequestAll) }

// RefreshGroups reloads groups.
func (c *Client) RefreshGroups(ctx context.Context) error { return c.SendAndAwait(ctx, RequestGroups) }

// RefreshHomeegrams reloads homeegrams.
func (c *Client) RefreshHomeegrams(ctx context.Context) error {
	return c.SendAndAwait(ctx, RequestHomeegrams)
}

// RefreshNodes reloads all node descriptions.
func (c *Client) RefreshNodes(ctx context.Context) error { return c.SendAndAwait(ctx, RequestNodes) }

// RefreshPlans reloads plans.
func (c *Client) RefreshPlans(ctx context.Context) error { return c.SendAndAwait(ctx, RequestPlans) }

// RefreshRelationships reloads relationships.
func (c *Client) RefreshRelationships(ctx context.Context) error {
	return c.SendAndAwait(ctx, RequestRelationships)
}

// RefreshSettings reloads settings.
func (c *Client) RefreshSettings(ctx context.Context) error {
	return c.SendAndAwait(ctx, RequestSettings)
}

// RefreshUsers reloads users.
func (c *Client) RefreshUsers(ctx context.Context) error { return c.SendAndAwait(ctx, RequestUsers) }

// registry connects if needed and returns the live registry.
func (c *Client) registry(ctx context.Context) (*homee.Registry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureConnectedLocked(ctx); err != nil {
		return nil, err
	}
	return c.session.Registry()
}

// Node returns the device with the given identifier, or nil.
func (c *Client) Node(ctx context.Context, id int) (*homee.Device, error) {
	r, err := c.registry(ctx)
	if err != nil {
		return nil, err
	}
	return r.Get(id)
}

// NodeByName returns the first device with the given name, or nil.
func (c *Client) NodeByName(ctx context.Context, name string) (*homee.Device, error) {
	r, err := c.registry(ctx)
	if err != nil {
		return nil, err
	}
	id, ok, err := r.IDForName(name)
	if err != nil || !ok {
		return nil, err
	}
	return r.Get(id)
}

// IsNodeKnown reports whether a device with the given identifier is registered.
func (c *Client) IsNodeKnown(ctx context.Context, id int) (bool, error) {
	r, err := c.registry(ctx)
	if err != nil {
		return false, err
	}
	return r.Contains(id)
}

// Nodes returns every registered device in arrival order.
func (c *Client) Nodes(ctx context.Context) ([]*homee.Device, error) {
	r, err := c.registry(ctx)
	if err != nil {
		return nil, err
	}
	return r.List()
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	st := Stats{
		Connected:       c.session.IsConnected(),
		State:           c.session.State().String(),
		TokenState:      c.session.TokenState().String(),
		FramesHandled:   c.session.FramesHandled(),
		RequestsSent:    c.requestsSent.Load(),
		ReconnectsTotal: c.reconnectsTotal.Load(),
		ErrorsTotal:     c.errorsTotal.Load(),
	}
	if ts := c.lastActivity.Load(); ts > 0 {
		st.LastActivity = time.Unix(ts, 0)
	}
	if r, err := c.session.Registry(); err == nil {
		st.Devices, _ = r.Len()
	}
	return st
}

// Listen keeps the session connected and dispatches unsolicited events
// until ctx is cancelled. A dropped connection is re-established with
// exponential backoff; messages that fail to decode or dispatch are logged
// and skipped.
func (c *Client) Listen(ctx context.Context) error {
	backoff := c.reconnectInterval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.listenOnce(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err == nil:
			backoff = c.reconnectInterval
			continue
		case errors.Is(err, homee.ErrUnsupportedMessage), errors.Is(err, homee.ErrMalformedMessage),
			errors.Is(err, homee.ErrInvalidDevice):
			c.errorsTotal.Add(1)
			c.logger.Warn("skipping homee message", "error", err)
			continue
		}

		c.errorsTotal.Add(1)
		c.logger.Error("homee connection lost", "error", err, "backoff", backoff.String())
		_ = c.session.Disconnect()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff)
	}
}

// listenOnce connects if needed and runs one receive pass bounded by the
// response window, so request callers get the lock between passes.
// It returns an error wrapping ErrNotConnected when the connection needs
// to be re-established.
func (c *Client) listenOnce(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.IsConnected() {
		if err := c.connectLocked(ctx); err != nil {
			return fmt.Errorf("connecting: %w", err)
		}
	}

	err := c.session.ReceiveLoop(ctx, c.session.cfg.ResponseWindow)
	if err != nil {
		return err
	}
	c.touch()
	if !c.session.IsConnected() {
		return fmt.Errorf("%w: connection closed by hub", homee.ErrNotConnected)
	}
	return nil
}

func nextBackoff(d time.Duration) time.Duration {
	next := time.Duration(float64(d) * 1.5)
	if next > maxReconnectInterval {
		next = maxReconnectInterval
	}
	return next
}
