package homee

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-homee/internal/homee/attribute"
)

func TestNewPropertyDecodesTextFields(t *testing.T) {
	p := NewProperty(decode(t, `{"id": 5, "node_id": 2, "type": 5,
		"unit": "%C2%B0C", "name": "Living%20room", "data": "a%2Bb"}`))

	assert.Equal(t, "°C", p.Unit())
	assert.Equal(t, "Living room", p.Label())
	assert.Equal(t, "a+b", p.Data())
	assert.Equal(t, attribute.Code(5), p.Type())
	assert.Equal(t, "Temperature", p.Name())
	assert.Equal(t, 0, p.Instance(), "instance defaults to 0")
}

func TestNewPropertyKeepsInvalidEscapes(t *testing.T) {
	p := NewProperty(decode(t, `{"id": 1, "type": 1, "unit": "100%"}`))
	assert.Equal(t, "100%", p.Unit())
}

func TestPropertyScale(t *testing.T) {
	t.Run("short names", func(t *testing.T) {
		p := NewProperty(decode(t, `{"id": 1, "type": 2, "min": 0, "max": 100, "step_value": 1}`))
		lo, step, hi := p.Scale()
		assert.Equal(t, 0.0, lo)
		assert.Equal(t, 1.0, step)
		assert.Equal(t, 100.0, hi)
	})

	t.Run("long names", func(t *testing.T) {
		p := NewProperty(decode(t, `{"id": 1, "type": 2, "minimum": 5, "maximum": 30, "step_value": 0.5}`))
		lo, step, hi := p.Scale()
		assert.Equal(t, 5.0, lo)
		assert.Equal(t, 0.5, step)
		assert.Equal(t, 30.0, hi)
	})
}

func TestSetValueLocallyIsIdempotent(t *testing.T) {
	p := NewProperty(decode(t, `{"id": 1, "node_id": 3, "type": 1, "current_value": 0}`))

	update := decode(t, `{"id": 1, "node_id": 3, "type": 1, "current_value": 1, "target_value": 1}`)
	assert.True(t, p.setValueLocally(update))
	assert.Equal(t, 1.0, p.Value())

	assert.False(t, p.setValueLocally(update), "second application reports no change")
	assert.Equal(t, 1.0, p.Value())
}

func TestSetValueLocallyScalarPayload(t *testing.T) {
	p := NewProperty(decode(t, `{"id": 1, "type": 5, "current_value": 20.5}`))

	assert.False(t, p.setValueLocally(20.5))
	assert.True(t, p.setValueLocally(21.0))
	assert.Equal(t, 21.0, p.Value())
}

func TestSetValueLocallyStoresTextVerbatim(t *testing.T) {
	p := NewProperty(decode(t, `{"id": 10, "node_id": 1, "type": 44, "data": "a%2Bb"}`))
	require.Equal(t, "a+b", p.Data())

	assert.True(t, p.setValueLocally(decode(t, `{"data": "100%25"}`)))
	assert.Equal(t, "100%25", p.Data(), "updates are not percent-decoded")

	assert.True(t, p.setValueLocally(decode(t, `{"unit": "%C2%B0C", "name": "Hall%20sensor"}`)))
	assert.Equal(t, "%C2%B0C", p.Unit())
	assert.Equal(t, "Hall%20sensor", p.Label())
}

func TestDeviceApplyUpdateKeepsRawText(t *testing.T) {
	d := newTestDevice(t, `{"id": 1, "attributes": [{"id": 10, "node_id": 1, "type": 44, "data": "x"}]}`, nil)

	p, changed := d.applyUpdate(10, decode(t, `{"data": "100%25%20done"}`))
	require.NotNil(t, p)
	assert.True(t, changed)
	assert.Equal(t, "100%25%20done", p.Data())
}

func TestSetValueLocallyIgnoresIdentity(t *testing.T) {
	p := NewProperty(decode(t, `{"id": 1, "node_id": 3, "type": 1, "instance": 0, "current_value": 0}`))

	changed := p.setValueLocally(decode(t, `{"id": 9, "node_id": 4, "type": 2, "instance": 3}`))
	assert.False(t, changed)
	assert.Equal(t, 1, p.ID())
	assert.Equal(t, 3, p.NodeID())
	assert.Equal(t, attribute.OnOff, p.Type())
	assert.Equal(t, 0, p.Instance())
	assert.Equal(t, 1.0, p.Field(fieldID))
}

func TestPropertyRequestChangeNotEditable(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDevice(t, plugNode, sender)

	p, err := d.GetProperty("CurrentEnergyUse", 0)
	require.NoError(t, err)
	require.NotNil(t, p)

	err = p.RequestChange(context.Background(), 10)
	assert.ErrorIs(t, err, ErrNotEditable)
	assert.Empty(t, sender.sent(), "no network write for a read-only property")
}

func TestPropertyRequestChangeSameValue(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDevice(t, plugNode, sender)

	p, err := d.GetProperty("OnOff", 0)
	require.NoError(t, err)

	err = p.RequestChange(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNotEditable)
	assert.Empty(t, sender.sent())
}

func TestPropertyRequestChange(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDevice(t, plugNode, sender)

	p, err := d.GetProperty("OnOff", 0)
	require.NoError(t, err)

	require.NoError(t, p.RequestChange(context.Background(), 1))
	assert.Equal(t, []string{"PUT:/nodes/12/attributes/120?target_value=1"}, sender.sent())
	assert.Equal(t, 0.0, p.Value(), "local value waits for the hub's confirmation")
}

func TestPropertyRequestChangeDetached(t *testing.T) {
	p := NewProperty(decode(t, `{"id": 1, "type": 1, "current_value": 0, "editable": 1}`))

	err := p.RequestChange(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestPropertyRequestChangeWithoutSession(t *testing.T) {
	d := newTestDevice(t, plugNode, nil)
	p, err := d.GetProperty("OnOff", 0)
	require.NoError(t, err)

	err = p.RequestChange(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestPropertyMarshalJSON(t *testing.T) {
	p := NewProperty(decode(t, `{"id": 1, "type": 1, "current_value": 1, "unit": "%25"}`))

	b, err := p.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 1, "type": 1, "current_value": 1, "unit": "%", "instance": 0}`, string(b))
}
