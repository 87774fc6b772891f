package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-homee/internal/homee"
)

// State is the lifecycle state of a Session.
type State int32

const (
	StateDisconnected State = iota
	StateAuthenticating
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Session owns the connection to one hub: the HTTP transport used for
// token exchange, the access token, the WebSocket message connection and
// the device registry the inbound stream populates.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Writes are serialised; one goroutine should drive ReceiveLoop.
//   - Connect and Disconnect are serialised against each other.
type Session struct {
	cfg              Config
	dialer           Dialer
	logger           homee.Logger
	now              func() time.Time
	refreshThreshold time.Duration

	// lifecycleMu serialises Connect and Disconnect.
	lifecycleMu sync.Mutex

	mu         sync.RWMutex
	state      State
	httpClient *http.Client
	conn       Conn
	pump       *readPump
	handle     *Handle
	registry   *homee.Registry
	dispatcher *Dispatcher

	writeMu sync.Mutex

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time

	onPropertyChange homee.PropertyObserver
	onDeviceChange   homee.DeviceObserver

	framesHandled atomic.Uint64
}

// New creates a disconnected session.
func New(cfg Config) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		cfg:              cfg,
		dialer:           NewWebsocketDialer(cfg.IOTimeout),
		logger:           noopLogger{},
		now:              time.Now,
		refreshThreshold: DefaultTokenRefreshThreshold,
	}
}

// SetLogger sets the logger for the session and its registry.
func (s *Session) SetLogger(logger homee.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetDialer replaces the WebSocket dialer. Must be called before Connect.
func (s *Session) SetDialer(d Dialer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialer = d
}

// OnPropertyChange registers an observer attached to every registry this
// session creates. Must be called before Connect.
func (s *Session) OnPropertyChange(fn homee.PropertyObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPropertyChange = fn
}

// OnDeviceChange registers an observer attached to every registry this
// session creates. Must be called before Connect.
func (s *Session) OnDeviceChange(fn homee.DeviceObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDeviceChange = fn
}

// Address returns the configured hub address.
func (s *Session) Address() string { return s.cfg.Address }

// Username returns the configured user name.
func (s *Session) Username() string { return s.cfg.Username }

// FramesHandled returns how many inbound text frames were dispatched
// successfully over the session's lifetime.
func (s *Session) FramesHandled() uint64 { return s.framesHandled.Load() }

// Config returns the effective configuration.
func (s *Session) Config() Config { return s.cfg }

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == StateConnected && (s.pump == nil || !s.pump.alive()) {
		return StateDisconnected
	}
	return s.state
}

// IsConnected reports whether the message connection is open.
func (s *Session) IsConnected() bool {
	return s.State() == StateConnected
}

func (s *Session) transport() *http.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.httpClient
}

// Connect opens the HTTP transport, acquires an access token and opens the
// message connection. Connect on a connected session is a no-op.
//
// Parameters:
//   - ctx: Context for the token request and the handshake
//
// Returns:
//   - error: ErrAuthFailed for rejected credentials, ErrNotConnected if the connection cannot be opened
func (s *Session) Connect(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.IsConnected() {
		return nil
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	// A dead connection left over from a dropped stream is cleaned first.
	if err := s.teardown(); err != nil {
		s.logger.Warn("cleaning up previous connection", "error", err)
	}

	s.mu.Lock()
	s.state = StateAuthenticating
	s.httpClient = &http.Client{Timeout: s.cfg.IOTimeout}
	dialer := s.dialer
	s.mu.Unlock()

	token, err := s.AccessToken(ctx)
	if err != nil {
		s.abortConnect()
		return err
	}

	header := http.Header{}
	header.Set("Accept-Charset", "utf-8")
	endpoint := fmt.Sprintf("%s://%s/connection?access_token=%s",
		s.cfg.wsScheme(), s.cfg.Location(), url.QueryEscape(token))

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.IOTimeout)
	defer cancel()
	conn, err := dialer.Dial(dialCtx, endpoint, header)
	if err != nil {
		s.abortConnect()
		return fmt.Errorf("%w: opening message connection: %w", homee.ErrNotConnected, err)
	}

	handle := &Handle{}
	handle.session.Store(s)

	s.mu.Lock()
	s.conn = conn
	s.pump = startReadPump(conn)
	s.handle = handle
	s.state = StateConnected
	s.mu.Unlock()

	s.logger.Info("connected to homee", "address", s.cfg.Address, "local", s.cfg.IsLocal())
	return nil
}

func (s *Session) abortConnect() {
	s.mu.Lock()
	client := s.httpClient
	s.httpClient = nil
	s.state = StateDisconnected
	s.mu.Unlock()
	if client != nil {
		client.CloseIdleConnections()
	}
	s.resetToken()
}

// Disconnect drops the registry, closes the message connection, closes the
// HTTP transport and resets the token, in that order. Every step runs even
// if an earlier one fails.
func (s *Session) Disconnect() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	err := s.teardown()
	s.logger.Info("disconnected from homee", "address", s.cfg.Address)
	return err
}

// teardown must be called with lifecycleMu held.
func (s *Session) teardown() error {
	s.mu.Lock()
	s.registry = nil
	s.dispatcher = nil
	if s.handle != nil {
		s.handle.invalidate()
		s.handle = nil
	}
	conn, pump, client := s.conn, s.pump, s.httpClient
	s.conn, s.pump, s.httpClient = nil, nil, nil
	s.state = StateDisconnected
	s.mu.Unlock()

	var errs []error
	if pump != nil {
		pump.stop()
	}
	if conn != nil {
		s.writeMu.Lock()
		_ = conn.SetWriteDeadline(s.now().Add(s.cfg.IOTimeout))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		if err := conn.Close(); err != nil && !isClosedError(err) {
			errs = append(errs, fmt.Errorf("closing message connection: %w", err))
		}
	}
	if client != nil {
		client.CloseIdleConnections()
	}
	s.resetToken()

	return errors.Join(errs...)
}

// live returns the connection handles, or ErrNotConnected when the message
// connection is absent or closed. Every operation outside Address, Username,
// State, IsConnected, Connect and Disconnect goes through here.
func (s *Session) live() (Conn, *readPump, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateConnected || s.conn == nil || s.pump == nil || !s.pump.alive() {
		return nil, nil, homee.ErrNotConnected
	}
	return s.conn, s.pump, nil
}

// Registry returns the device registry of the current connection, creating
// it on first use. It is dropped on Disconnect.
func (s *Session) Registry() (*homee.Registry, error) {
	if _, _, err := s.live(); err != nil {
		return nil, err
	}
	d, err := s.activeDispatcher()
	if err != nil {
		return nil, err
	}
	return d.registry, nil
}

func (s *Session) activeDispatcher() (*Dispatcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return nil, homee.ErrNotConnected
	}
	if s.dispatcher == nil {
		registry := homee.NewRegistry()
		registry.SetLogger(s.logger)
		registry.OnPropertyChange(s.onPropertyChange)
		registry.OnDeviceChange(s.onDeviceChange)
		s.registry = registry
		s.dispatcher = NewDispatcher(registry, s.handle)
		s.dispatcher.SetLogger(s.logger)
	}
	return s.dispatcher, nil
}

// Handle returns the sender devices use to reach this session. It stops
// working when the session disconnects.
func (s *Session) Handle() (*Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.handle == nil {
		return nil, homee.ErrNotConnected
	}
	return s.handle, nil
}

// Send writes one request line. An expiring token is renewed first.
func (s *Session) Send(ctx context.Context, request string) error {
	conn, _, err := s.live()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.TokenState() != TokenValid {
		if _, err := s.AccessToken(ctx); err != nil {
			return err
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := conn.SetWriteDeadline(s.now().Add(s.cfg.IOTimeout)); err != nil {
		return s.writeError(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(request)); err != nil {
		return s.writeError(err)
	}
	s.logger.Debug("request sent", "request", request)
	return nil
}

func (s *Session) writeError(err error) error {
	if isClosedError(err) {
		return fmt.Errorf("%w: %w", homee.ErrNotConnected, err)
	}
	return fmt.Errorf("%w: %w", homee.ErrStreamError, err)
}

// Handle is the non-owning route from devices back to a session. Once the
// session disconnects every call fails with ErrNotConnected.
type Handle struct {
	session atomic.Pointer[Session]
}

// SendRequest implements homee.RequestSender.
func (h *Handle) SendRequest(ctx context.Context, request string) error {
	s := h.session.Load()
	if s == nil {
		return fmt.Errorf("%w: session closed", homee.ErrNotConnected)
	}
	return s.Send(ctx, request)
}

// Valid reports whether the handle still routes to a session.
func (h *Handle) Valid() bool {
	return h.session.Load() != nil
}

func (h *Handle) invalidate() {
	h.session.Store(nil)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
