package session

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const (
	testUser     = "admin@example.com"
	testPassword = "s3cret"
	testToken    = "0f1e2d3c4b5a69788796a5b4c3d2e1f0"
)

// fakeHub serves the token endpoint and the message connection.
type fakeHub struct {
	t      *testing.T
	server *httptest.Server

	writeMu sync.Mutex // gorilla allows one concurrent writer

	mu         sync.Mutex
	tokenForms []url.Values
	requests   []string
	replies    map[string][]string
	conns      []*websocket.Conn
	rejectAuth bool
	maxAge     string
}

func newFakeHub(t *testing.T) *fakeHub {
	t.Helper()
	h := &fakeHub{t: t, replies: make(map[string][]string), maxAge: "3600"}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /access_token", h.handleToken)
	mux.HandleFunc("GET /connection", h.handleConnection)
	h.server = httptest.NewServer(mux)
	t.Cleanup(h.close)
	return h
}

func (h *fakeHub) config() Config {
	u, err := url.Parse(h.server.URL)
	require.NoError(h.t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(h.t, err)
	return Config{
		Address:        u.Hostname(),
		Port:           port,
		Username:       testUser,
		Password:       testPassword,
		PollInterval:   50 * time.Millisecond,
		ResponseWindow: 300 * time.Millisecond,
	}
}

func (h *fakeHub) reply(request string, frames ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.replies[request] = frames
}

func (h *fakeHub) handleToken(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	h.tokenForms = append(h.tokenForms, r.PostForm)
	reject, maxAge := h.rejectAuth, h.maxAge
	h.mu.Unlock()

	if reject || !ok || user != testUser || pass != hashPassword(testPassword) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	cookie := "access_token=" + testToken
	if maxAge != "" {
		cookie += "; Max-Age=" + maxAge
	}
	w.Header().Add("Set-Cookie", cookie)
	w.WriteHeader(http.StatusOK)
}

func (h *fakeHub) handleConnection(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("access_token") != testToken || r.Header.Get("Accept-Charset") != "utf-8" {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	upgrader := websocket.Upgrader{Subprotocols: []string{protocolVersion}}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	h.mu.Lock()
	h.conns = append(h.conns, conn)
	h.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		request := string(data)

		h.mu.Lock()
		h.requests = append(h.requests, request)
		frames := h.replies[request]
		h.mu.Unlock()

		for _, f := range frames {
			h.writeMu.Lock()
			err := conn.WriteMessage(websocket.TextMessage, []byte(f))
			h.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// push writes a frame to the latest connection.
func (h *fakeHub) push(frame string) {
	h.t.Helper()
	conn := h.latest()
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	require.NoError(h.t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// hangUp sends a close frame on the latest connection.
func (h *fakeHub) hangUp() {
	h.t.Helper()
	conn := h.latest()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "restart")
	require.NoError(h.t, conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))
}

func (h *fakeHub) latest() *websocket.Conn {
	h.t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	require.NotEmpty(h.t, h.conns)
	return h.conns[len(h.conns)-1]
}

func (h *fakeHub) received() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.requests...)
}

func (h *fakeHub) forms() []url.Values {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]url.Values(nil), h.tokenForms...)
}

func (h *fakeHub) close() {
	h.mu.Lock()
	for _, c := range h.conns {
		c.Close()
	}
	h.mu.Unlock()
	h.server.Close()
}

const (
	plugJSON = `{"id": 12, "name": "Kitchen%20Plug", "attributes": [
		{"id": 120, "node_id": 12, "type": 1, "instance": 0, "current_value": 0, "step_value": 1, "editable": 1}
	]}`
	sensorJSON = `{"id": 30, "name": "Hall", "attributes": [
		{"id": 301, "node_id": 30, "type": 8, "current_value": 60, "editable": 0}
	]}`
	allJSON = `{"all": {"nodes": [` + plugJSON + `, ` + sensorJSON + `],
		"settings": {"homee_name": "Home"}, "groups": [], "plans": [], "users": [],
		"relationships": [], "homeegrams": []}}`
)
