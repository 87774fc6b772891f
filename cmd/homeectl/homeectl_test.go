package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-homee/internal/homee"
	"github.com/nerrad567/gray-logic-homee/internal/homee/session"
)

const (
	plugNode = `{
		"id": 12, "name": "Kitchen%20Plug",
		"attributes": [
			{"id": 120, "node_id": 12, "type": 1, "instance": 0, "current_value": 1, "target_value": 1,
			 "minimum": 0, "maximum": 1, "step_value": 1, "editable": 1},
			{"id": 121, "node_id": 12, "type": 3, "instance": 0, "current_value": 4.5, "unit": "W", "editable": 0}
		]
	}`

	brainNode = `{
		"id": -1, "name": "homee",
		"attributes": [
			{"id": 1, "node_id": -1, "type": 205, "current_value": 2, "editable": 1}
		]
	}`
)

type recordingSender struct {
	mu       sync.Mutex
	requests []string
}

func (s *recordingSender) SendRequest(_ context.Context, request string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, request)
	return nil
}

func (s *recordingSender) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

type fakeClient struct {
	nodes     []*homee.Device
	refreshes int
	stats     session.Stats
}

func (f *fakeClient) Node(_ context.Context, id int) (*homee.Device, error) {
	for _, d := range f.nodes {
		if d.ID() == id {
			return d, nil
		}
	}
	return nil, nil
}

func (f *fakeClient) NodeByName(_ context.Context, name string) (*homee.Device, error) {
	for _, d := range f.nodes {
		if d.Name() == name {
			return d, nil
		}
	}
	return nil, nil
}

func (f *fakeClient) Nodes(_ context.Context) ([]*homee.Device, error) { return f.nodes, nil }

func (f *fakeClient) RefreshAll(_ context.Context) error {
	f.refreshes++
	return nil
}

func (f *fakeClient) Stats() session.Stats { return f.stats }

func newDevice(t *testing.T, node string, sender homee.RequestSender) *homee.Device {
	t.Helper()
	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(node), &data))
	d, err := homee.NewDevice(data, sender)
	require.NoError(t, err)
	return d
}

func newShell(t *testing.T) (*shell, *fakeClient, *recordingSender, *bytes.Buffer) {
	t.Helper()
	sender := &recordingSender{}
	client := &fakeClient{
		nodes: []*homee.Device{newDevice(t, plugNode, sender), newDevice(t, brainNode, sender)},
		stats: session.Stats{Connected: true, State: "connected", Devices: 2},
	}
	out := &bytes.Buffer{}
	return &shell{client: client, out: out}, client, sender, out
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"nodes", []string{"nodes"}},
		{"set 12 OnOff 1", []string{"set", "12", "OnOff", "1"}},
		{`node "Kitchen Plug"`, []string{"node", "Kitchen Plug"}},
		{"set\t12  OnOff   0 ", []string{"set", "12", "OnOff", "0"}},
		{`set "" x`, []string{"set", "", "x"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitArgs(tt.line), "splitArgs(%q)", tt.line)
	}
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, 1.0, parseValue("on"))
	assert.Equal(t, 1.0, parseValue("TRUE"))
	assert.Equal(t, 0.0, parseValue("off"))
	assert.Equal(t, 42.5, parseValue("42.5"))
	assert.Equal(t, -3.0, parseValue("-3"))
	assert.Equal(t, "Evening", parseValue("Evening"))
}

func TestModeIndex(t *testing.T) {
	idx, err := modeIndex("away")
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	idx, err = modeIndex("Vacation")
	require.NoError(t, err)
	assert.Equal(t, 3, idx)

	_, err = modeIndex("Party")
	assert.ErrorIs(t, err, errUnknownMode)
}

func TestFindNode(t *testing.T) {
	_, client, _, _ := newShell(t)
	ctx := context.Background()

	d, err := findNode(ctx, client, "12")
	require.NoError(t, err)
	assert.Equal(t, 12, d.ID())

	d, err = findNode(ctx, client, "Kitchen Plug")
	require.NoError(t, err)
	assert.Equal(t, 12, d.ID())

	_, err = findNode(ctx, client, "99")
	assert.ErrorContains(t, err, "not found")
}

func TestShell_Nodes(t *testing.T) {
	sh, _, _, out := newShell(t)

	assert.False(t, sh.exec(context.Background(), "nodes"))
	assert.Contains(t, out.String(), "Kitchen Plug")
	assert.Contains(t, out.String(), "homee")
}

func TestShell_Node(t *testing.T) {
	sh, _, _, out := newShell(t)

	sh.exec(context.Background(), `node "Kitchen Plug"`)
	text := out.String()
	assert.Contains(t, text, "Node 12: Kitchen Plug")
	assert.Contains(t, text, "OnOff")
	assert.Contains(t, text, "CurrentEnergyUse")
	assert.Contains(t, text, "4.5")

	out.Reset()
	sh.exec(context.Background(), "node")
	assert.Contains(t, out.String(), "usage: node")
}

func TestShell_Set(t *testing.T) {
	sh, _, sender, out := newShell(t)

	sh.exec(context.Background(), "set 12 OnOff off")
	assert.Equal(t, []string{"PUT:/nodes/12/attributes/120?target_value=0"}, sender.sent())
	assert.Contains(t, out.String(), "requested OnOff[0] = off")

	out.Reset()
	sh.exec(context.Background(), "set 12 CurrentEnergyUse 3")
	assert.Contains(t, out.String(), "error:")
	assert.Len(t, sender.sent(), 1, "read-only attribute must not be written")

	out.Reset()
	sh.exec(context.Background(), "set 12 OnOff")
	assert.Contains(t, out.String(), "usage: set")
}

func TestShell_Mode(t *testing.T) {
	sh, _, sender, out := newShell(t)

	sh.exec(context.Background(), "mode")
	assert.Equal(t, "Away\n", out.String())

	sh.exec(context.Background(), "mode sleeping")
	assert.Equal(t, []string{"PUT:/nodes/-1/attributes/1?target_value=1"}, sender.sent())

	out.Reset()
	sh.exec(context.Background(), "mode Party")
	assert.Contains(t, out.String(), "unknown mode")
}

func TestShell_RefreshStatsAndExit(t *testing.T) {
	sh, client, _, out := newShell(t)

	sh.exec(context.Background(), "refresh")
	assert.Equal(t, 1, client.refreshes)
	assert.Contains(t, out.String(), "2 nodes")

	out.Reset()
	sh.exec(context.Background(), "stats")
	assert.Contains(t, out.String(), "connected:  true (connected)")

	out.Reset()
	assert.False(t, sh.exec(context.Background(), "bogus"))
	assert.Contains(t, out.String(), `unknown command "bogus"`)

	assert.True(t, sh.exec(context.Background(), "exit"))
	assert.False(t, sh.exec(context.Background(), "   "))
}

func TestFilterNodes(t *testing.T) {
	_, client, _, _ := newShell(t)

	switches := filterNodes(client.nodes, "SwitchBinary")
	require.Len(t, switches, 1)
	assert.Equal(t, 12, switches[0].ID())
	assert.Len(t, filterNodes(client.nodes, ""), 2)
}

func TestWatcher(t *testing.T) {
	sender := &recordingSender{}
	plug := newDevice(t, plugNode, sender)
	brain := newDevice(t, brainNode, sender)
	p, err := plug.GetProperty("OnOff", 0)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	w := &watcher{out: out, node: 12}

	w.propertyChanged(plug, p)
	assert.Empty(t, out.String(), "snapshot events are suppressed")

	w.ready()
	w.propertyChanged(plug, p)
	w.deviceChanged(brain)
	text := out.String()
	assert.Contains(t, text, "Kitchen Plug")
	assert.Contains(t, text, "OnOff[0] = 1")
	assert.NotContains(t, text, "node -1", "other nodes are filtered")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "-", formatValue(nil))
	assert.Equal(t, "1", formatValue(1.0))
	assert.Equal(t, "0.25", formatValue(0.25))
	assert.Equal(t, "abc", formatValue("abc"))
	assert.Equal(t, "-", formatRange(0, 0, 0))
	assert.Equal(t, "0..100/1", formatRange(0, 1, 100))
	assert.Equal(t, "rw", rwFlag(true))
	assert.Equal(t, "r", rwFlag(false))
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "homeectl dev\n", out.String())
}

func TestCommand_RequiresAddress(t *testing.T) {
	t.Setenv("GRAYLOGIC_HOMEE_ADDRESS", "")
	t.Setenv("GRAYLOGIC_HOMEE_USERNAME", "")

	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"nodes"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address is required")
}

func TestSessionConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
site:
  id: test
homee:
  address: "10.0.0.5"
  username: "file-user"
  password: "file-pass"
  port: 7000
  io_timeout: 2
`), 0600))

	t.Setenv("GRAYLOGIC_HOMEE_ADDRESS", "")
	t.Setenv("GRAYLOGIC_HOMEE_USERNAME", "")
	t.Setenv("GRAYLOGIC_HOMEE_PASSWORD", "env-pass")

	opts := &options{configPath: path, username: "flag-user"}
	sc, err := opts.sessionConfig()
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", sc.Address)
	assert.Equal(t, "flag-user", sc.Username)
	assert.Equal(t, "env-pass", sc.Password)
	assert.Equal(t, 7000, sc.Port)
	assert.Equal(t, "2s", sc.IOTimeout.String())

	opts.port = 7681
	sc, err = opts.sessionConfig()
	require.NoError(t, err)
	assert.Equal(t, 7681, sc.Port)
}

func TestSessionConfig_FlagsOnly(t *testing.T) {
	t.Setenv("GRAYLOGIC_HOMEE_ADDRESS", "")
	t.Setenv("GRAYLOGIC_HOMEE_USERNAME", "")
	t.Setenv("GRAYLOGIC_HOMEE_PASSWORD", "")

	opts := &options{address: "hub.local", username: "u"}
	sc, err := opts.sessionConfig()
	require.NoError(t, err)
	assert.Equal(t, "homeectl", sc.DeviceName)
	assert.True(t, strings.HasPrefix(sc.Address, "hub"))
}
