package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-homee/internal/homee"
)

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(homee.NewRegistry(), nil)
}

func dispatchJSON(t *testing.T, d *Dispatcher, s string) error {
	t.Helper()
	var envelope any
	require.NoError(t, json.Unmarshal([]byte(s), &envelope))
	return d.Dispatch(envelope)
}

func registryLen(t *testing.T, r *homee.Registry) int {
	t.Helper()
	n, err := r.Len()
	require.NoError(t, err)
	return n
}

func TestDispatchNodes(t *testing.T) {
	d := newTestDispatcher()
	require.NoError(t, dispatchJSON(t, d, `{"nodes": [`+plugJSON+`, `+sensorJSON+`]}`))

	r := d.Registry()
	assert.Equal(t, 2, registryLen(t, r))

	for _, tc := range []struct {
		id   int
		name string
	}{{12, "Kitchen Plug"}, {30, "Hall"}} {
		dev, err := r.Get(tc.id)
		require.NoError(t, err)
		require.NotNil(t, dev)
		assert.Equal(t, tc.name, dev.Name())

		id, ok, err := r.IDForName(tc.name)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, tc.id, id)
	}
}

func TestDispatchNodeReplacesWholesale(t *testing.T) {
	d := newTestDispatcher()
	require.NoError(t, dispatchJSON(t, d, `{"node": `+plugJSON+`}`))
	require.NoError(t, dispatchJSON(t, d, `{"node": {"id": 12, "name": "Renamed", "attributes": []}}`))

	dev, err := d.Registry().Get(12)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", dev.Name())
	assert.Empty(t, dev.Properties(), "replacement does not merge attributes")
}

func TestDispatchBulk(t *testing.T) {
	d := newTestDispatcher()
	err := dispatchJSON(t, d, `{"all": {"nodes": [`+plugJSON+`], "settings": {"homee_name": "Home"}}}`)
	require.NoError(t, err)
	assert.Equal(t, 1, registryLen(t, d.Registry()))
}

func TestDispatchBulkFull(t *testing.T) {
	d := newTestDispatcher()
	require.NoError(t, dispatchJSON(t, d, allJSON))
	assert.Equal(t, 2, registryLen(t, d.Registry()))
}

func TestDispatchBulkAppliesNodesBeforeAttributes(t *testing.T) {
	d := newTestDispatcher()
	err := dispatchJSON(t, d, `{"all": {
		"attribute": {"id": 120, "node_id": 12, "current_value": 1},
		"nodes": [`+plugJSON+`]
	}}`)
	require.NoError(t, err)

	dev, err := d.Registry().Get(12)
	require.NoError(t, err)
	v, err := dev.GetPropertyValue("OnOff", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestDispatchAttribute(t *testing.T) {
	d := newTestDispatcher()
	require.NoError(t, dispatchJSON(t, d, `{"node": `+plugJSON+`}`))

	require.NoError(t, dispatchJSON(t, d, `{"attribute": {"id": 120, "node_id": 12, "current_value": 1}}`))
	dev, err := d.Registry().Get(12)
	require.NoError(t, err)
	v, err := dev.GetPropertyValue("OnOff", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	// Unknown nodes are ignored.
	require.NoError(t, dispatchJSON(t, d, `{"attribute": {"id": 1, "node_id": 99, "current_value": 1}}`))
}

func TestDispatchInertResources(t *testing.T) {
	inert := []string{
		`{"attribute_history": {}}`,
		`{"groups": []}`,
		`{"homeegram_history": {}}`,
		`{"homeegrams": []}`,
		`{"node_history": {}}`,
		`{"plans": []}`,
		`{"relationships": []}`,
		`{"settings": {"language": "en"}}`,
		`{"users": []}`,
	}

	d := newTestDispatcher()
	for _, envelope := range inert {
		assert.NoError(t, dispatchJSON(t, d, envelope), envelope)
	}
	assert.Zero(t, registryLen(t, d.Registry()))
}

func TestDispatchUnsupported(t *testing.T) {
	tests := []struct {
		name     string
		envelope string
	}{
		{"empty object", `{}`},
		{"two keys", `{"groups": [], "plans": []}`},
		{"unknown key", `{"warning": {"code": 1}}`},
		{"array", `[1, 2]`},
		{"scalar", `42`},
		{"node not an object", `{"node": [1]}`},
		{"nodes not a list", `{"nodes": {}}`},
		{"all not an object", `{"all": []}`},
		{"settings wrong shape", `{"settings": []}`},
		{"groups wrong shape", `{"groups": {}}`},
		{"attribute without node", `{"attribute": {"id": 1}}`},
		{"attribute not an object", `{"attribute": 5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := dispatchJSON(t, newTestDispatcher(), tt.envelope)
			assert.ErrorIs(t, err, homee.ErrUnsupportedMessage)

			var unsupported *homee.UnsupportedMessageError
			require.ErrorAs(t, err, &unsupported)
			assert.NotNil(t, unsupported.Envelope)
		})
	}
}

func TestDispatchBulkReportsUnsupportedSubResource(t *testing.T) {
	d := newTestDispatcher()
	err := dispatchJSON(t, d, `{"all": {"nodes": [`+plugJSON+`], "mystery": 1}}`)
	assert.ErrorIs(t, err, homee.ErrUnsupportedMessage)
	assert.Equal(t, 1, registryLen(t, d.Registry()), "known sub-resources still apply")
}

func TestDispatchInvalidNode(t *testing.T) {
	err := dispatchJSON(t, newTestDispatcher(), `{"node": {"name": "no id"}}`)
	assert.ErrorIs(t, err, homee.ErrInvalidDevice)
}

func TestDispatchJSONMalformed(t *testing.T) {
	err := newTestDispatcher().DispatchJSON([]byte(`{"nodes": [`))
	assert.ErrorIs(t, err, homee.ErrMalformedMessage)
}
