package session

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the message connection the session drives. *websocket.Conn
// satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer opens message connections.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// maxFrameSize bounds a single inbound frame. A full node listing from a
// large installation stays well below it.
const maxFrameSize = 8 << 20

// websocketDialer dials with gorilla/websocket using the hub's subprotocol.
type websocketDialer struct {
	dialer    *websocket.Dialer
	readLimit int64
}

// NewWebsocketDialer returns the default Dialer.
//
// Parameters:
//   - handshakeTimeout: Upper bound for the WebSocket opening handshake
//
// Returns:
//   - Dialer: Dials with the hub's subprotocol and a bounded frame size
func NewWebsocketDialer(handshakeTimeout time.Duration) Dialer {
	return newWebsocketDialer(handshakeTimeout, maxFrameSize)
}

func newWebsocketDialer(handshakeTimeout time.Duration, readLimit int64) *websocketDialer {
	return &websocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
			Subprotocols:     []string{protocolVersion},
		},
		readLimit: readLimit,
	}
}

func (d *websocketDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	if d.readLimit > 0 {
		conn.SetReadLimit(d.readLimit)
	}
	return conn, nil
}

// frameQueueSize bounds frames read ahead of the receive loop.
const frameQueueSize = 64

type frame struct {
	kind int
	data []byte
	err  error
}

// readPump owns the read side of a Conn. gorilla/websocket connections
// cannot be read again after a read deadline fires, so timeouts are applied
// to the channel instead of the socket.
type readPump struct {
	frames chan frame
	done   chan struct{} // closed on stop
	exited chan struct{} // closed when the read goroutine returns

	stopOnce sync.Once
}

func startReadPump(conn Conn) *readPump {
	p := &readPump{
		frames: make(chan frame, frameQueueSize),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go p.run(conn)
	return p
}

func (p *readPump) run(conn Conn) {
	defer close(p.exited)
	defer close(p.frames)
	for {
		kind, data, err := conn.ReadMessage()
		select {
		case p.frames <- frame{kind: kind, data: data, err: err}:
		case <-p.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (p *readPump) stop() {
	p.stopOnce.Do(func() { close(p.done) })
}

// stopped reports whether stop was called.
func (p *readPump) stopped() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// alive reports whether the read side can still deliver new frames.
func (p *readPump) alive() bool {
	select {
	case <-p.exited:
		return false
	case <-p.done:
		return false
	default:
		return true
	}
}

// isClosedError reports whether err signals an orderly end of the connection
// rather than a transport failure.
func isClosedError(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return true
	}
	return errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent)
}
