package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-homee/internal/homee"
)

func TestConfigLocation(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		local    bool
		location string
		http     string
		ws       string
	}{
		{"lan address", Config{Address: "192.168.1.20"}, true, "192.168.1.20:7681", "http", "ws"},
		{"port override", Config{Address: "homee.lan", Port: 8080}, true, "homee.lan:8080", "http", "ws"},
		{"remote proxy", Config{Address: "0123456789ab.hom.ee", Port: 8080}, false, "0123456789ab.hom.ee", "https", "wss"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.local, tt.cfg.IsLocal())
			assert.Equal(t, tt.location, tt.cfg.Location())
			assert.Equal(t, tt.http, tt.cfg.httpScheme())
			assert.Equal(t, tt.ws, tt.cfg.wsScheme())
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Address: "hub"}.withDefaults()

	assert.Equal(t, DefaultLocalPort, cfg.Port)
	assert.Equal(t, DefaultIOTimeout, cfg.IOTimeout)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, DefaultResponseWindow, cfg.ResponseWindow)
	assert.Equal(t, DefaultClientName, cfg.DeviceName)
	assert.Equal(t, DefaultClientName, cfg.HardwareID)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{Address: "hub", Username: "u"}.Validate())

	err := Config{Port: 70000}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address is required")
	assert.Contains(t, err.Error(), "username is required")
	assert.Contains(t, err.Error(), "port 70000 out of range")
}

func TestClientConnectLoadsSnapshot(t *testing.T) {
	hub := newFakeHub(t)
	hub.reply(RequestAll, allJSON)

	c := NewClient(hub.config())
	t.Cleanup(func() { _ = c.Disconnect() })
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx))

	plug, err := c.Node(ctx, 12)
	require.NoError(t, err)
	require.NotNil(t, plug)
	assert.Equal(t, "Kitchen Plug", plug.Name())

	hall, err := c.NodeByName(ctx, "Hall")
	require.NoError(t, err)
	require.NotNil(t, hall)
	assert.Equal(t, 30, hall.ID())

	missing, err := c.NodeByName(ctx, "Attic")
	require.NoError(t, err)
	assert.Nil(t, missing)

	known, err := c.IsNodeKnown(ctx, 30)
	require.NoError(t, err)
	assert.True(t, known)

	nodes, err := c.Nodes(ctx)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	st := c.Stats()
	assert.True(t, st.Connected)
	assert.Equal(t, 2, st.Devices)
	assert.Equal(t, uint64(1), st.RequestsSent)
	assert.Equal(t, "valid", st.TokenState)
}

func TestClientAutoConnects(t *testing.T) {
	hub := newFakeHub(t)
	hub.reply(RequestAll, allJSON)
	hub.reply(RequestSettings, `{"settings": {"language": "en"}}`)

	c := NewClient(hub.config())
	t.Cleanup(func() { _ = c.Disconnect() })

	require.NoError(t, c.RefreshSettings(context.Background()))
	assert.True(t, c.IsConnected())
	assert.Equal(t, []string{RequestAll, RequestSettings}, hub.received())
}

func TestClientRefreshRequests(t *testing.T) {
	hub := newFakeHub(t)
	c := NewClient(hub.config())
	t.Cleanup(func() { _ = c.Disconnect() })
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx))
	for _, refresh := range []func(context.Context) error{
		c.RefreshAll,
		c.RefreshGroups,
		c.RefreshHomeegrams,
		c.RefreshNodes,
		c.RefreshPlans,
		c.RefreshRelationships,
		c.RefreshSettings,
		c.RefreshUsers,
	} {
		require.NoError(t, refresh(ctx))
	}

	assert.Equal(t, []string{
		RequestAll,
		RequestAll,
		RequestGroups,
		RequestHomeegrams,
		RequestNodes,
		RequestPlans,
		RequestRelationships,
		RequestSettings,
		RequestUsers,
	}, hub.received())
}

func TestClientConnectAuthFailed(t *testing.T) {
	hub := newFakeHub(t)
	hub.rejectAuth = true

	c := NewClient(hub.config())
	_, err := c.Node(context.Background(), 1)
	assert.True(t, homee.IsAuthFailed(err))
}

func TestClientListenReconnects(t *testing.T) {
	hub := newFakeHub(t)
	hub.reply(RequestAll, `{"nodes": [`+plugJSON+`]}`)

	c := NewClient(hub.config())
	c.SetReconnectInterval(20 * time.Millisecond)
	t.Cleanup(func() { _ = c.Disconnect() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Connect(ctx))

	done := make(chan error, 1)
	go func() { done <- c.Listen(ctx) }()

	hub.hangUp()
	require.Eventually(t, func() bool {
		return c.Stats().ReconnectsTotal == 1 && c.IsConnected()
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("Listen did not return after cancel")
	}
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 7500*time.Millisecond, nextBackoff(5*time.Second))
	assert.Equal(t, maxReconnectInterval, nextBackoff(100*time.Second))
}
