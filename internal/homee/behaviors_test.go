package homee

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatteryLevel(t *testing.T) {
	d := newTestDevice(t, multiSensorNode, nil)
	battery, ok := d.Battery()
	require.True(t, ok)

	level, err := battery.Level(AllInstances)
	require.NoError(t, err)
	assert.Equal(t, 70.0, level)

	level, err = battery.Level(1)
	require.NoError(t, err)
	assert.Equal(t, 80.0, level)

	_, err = battery.Level(4)
	assert.ErrorIs(t, err, ErrInvalidInstance)
}

func TestBatteryLevelMissingReadings(t *testing.T) {
	d := newTestDevice(t, `{"id": 1, "attributes": [
		{"id": 1, "type": 8, "instance": 0, "current_value": 90},
		{"id": 2, "type": 8, "instance": 1}
	]}`, nil)
	battery, ok := d.Battery()
	require.True(t, ok)

	level, err := battery.Level(AllInstances)
	require.NoError(t, err)
	assert.Equal(t, 45.0, level, "missing readings count as 0")
}

func TestBatteryNotAttached(t *testing.T) {
	d := newTestDevice(t, plugNode, nil)
	_, ok := d.Battery()
	assert.False(t, ok)
	assert.False(t, d.Implements("Battery"))
}

func TestSensorMultilevelReading(t *testing.T) {
	d := newTestDevice(t, multiSensorNode, nil)
	sensor, ok := d.SensorMultilevel()
	require.True(t, ok)

	t.Run("mean over instances", func(t *testing.T) {
		v, err := sensor.Reading("IndoorTemperature", AllInstances)
		require.NoError(t, err)
		assert.Equal(t, 15.0, v)
	})

	t.Run("single instance uses the requested type", func(t *testing.T) {
		v, err := sensor.Reading("IndoorTemperature", 1)
		require.NoError(t, err)
		assert.Equal(t, 20.0, v)
	})

	t.Run("generic name falls back", func(t *testing.T) {
		assert.True(t, sensor.Supported("Temperature"))
		assert.Equal(t, 2, sensor.Count("Temperature"))

		v, err := sensor.Reading("Temperature", AllInstances)
		require.NoError(t, err)
		assert.Equal(t, 15.0, v)

		unit, err := sensor.Unit("Temperature", 0)
		require.NoError(t, err)
		assert.Equal(t, "°C", unit)
	})

	t.Run("absent sensor reads zero", func(t *testing.T) {
		assert.False(t, sensor.Supported("WindSpeed"))
		assert.Equal(t, 0, sensor.Count("WindSpeed"))

		v, err := sensor.Reading("WindSpeed", AllInstances)
		require.NoError(t, err)
		assert.Equal(t, 0.0, v)

		editable, err := sensor.Editable("WindSpeed", 0)
		require.NoError(t, err)
		assert.False(t, editable)
	})
}

func TestSensorMultilevelPrefersGenericName(t *testing.T) {
	d := newTestDevice(t, `{"id": 1, "attributes": [
		{"id": 1, "type": 92, "current_value": 40},
		{"id": 2, "type": 5, "current_value": 21}
	]}`, nil)
	sensor, ok := d.SensorMultilevel()
	require.True(t, ok)

	v, err := sensor.Reading("Temperature", AllInstances)
	require.NoError(t, err)
	assert.Equal(t, 21.0, v)
}

func TestSensorMultilevelNotNumeric(t *testing.T) {
	d := newTestDevice(t, `{"id": 1, "attributes": [
		{"id": 1, "type": 5, "instance": 0, "current_value": 10},
		{"id": 2, "type": 5, "instance": 1, "current_value": "n/a"}
	]}`, nil)
	sensor, ok := d.SensorMultilevel()
	require.True(t, ok)

	_, err := sensor.Reading("Temperature", AllInstances)
	assert.ErrorIs(t, err, ErrNotNumeric)

	_, err = sensor.Reading("Temperature", 1)
	assert.ErrorIs(t, err, ErrNotNumeric)

	v, err := sensor.Reading("Temperature", 0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)
}

func TestSensorBinaryActive(t *testing.T) {
	d := newTestDevice(t, multiSensorNode, nil)
	sensor, ok := d.SensorBinary()
	require.True(t, ok)

	active, err := sensor.Active("OpenClose", AllInstances)
	require.NoError(t, err)
	assert.True(t, active, "any non-zero instance")

	active, err = sensor.Active("OpenClose", 0)
	require.NoError(t, err)
	assert.False(t, active)

	active, err = sensor.Active("BinaryInput", AllInstances)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestSwitchBinary(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDevice(t, plugNode, sender)
	sw, ok := d.SwitchBinary()
	require.True(t, ok)
	ctx := context.Background()

	on, err := sw.On("OnOff", AllInstances)
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, sw.Set(ctx, "OnOff", true, 0))
	assert.Equal(t, []string{"PUT:/nodes/12/attributes/120?target_value=1"}, sender.sent())

	r := NewRegistry()
	require.NoError(t, r.AddOrReplace(d))
	changed, err := r.RouteAttributeUpdate(12, 120, decode(t, `{"id": 120, "current_value": 1}`))
	require.NoError(t, err)
	assert.True(t, changed)

	on, err = sw.On("OnOff", 0)
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, sw.Set(ctx, "OnOff", false, 0))
	assert.Equal(t, "PUT:/nodes/12/attributes/120?target_value=0", sender.sent()[1])

	assert.ErrorIs(t, sw.Set(ctx, "DimmingLevel", true, 0), ErrNotEditable)
}

func TestSwitchBinaryWithoutStep(t *testing.T) {
	ctx := context.Background()

	t.Run("falls back to maximum", func(t *testing.T) {
		sender := &recordingSender{}
		d := newTestDevice(t, `{"id": 2, "attributes": [
			{"id": 20, "node_id": 2, "type": 1, "current_value": 0, "maximum": 1, "editable": 1}]}`, sender)
		sw, ok := d.SwitchBinary()
		require.True(t, ok)

		require.NoError(t, sw.Set(ctx, "OnOff", true, 0))
		assert.Equal(t, []string{"PUT:/nodes/2/attributes/20?target_value=1"}, sender.sent())
	})

	t.Run("falls back to one", func(t *testing.T) {
		sender := &recordingSender{}
		d := newTestDevice(t, `{"id": 2, "attributes": [
			{"id": 20, "node_id": 2, "type": 1, "current_value": 0, "editable": 1}]}`, sender)
		sw, ok := d.SwitchBinary()
		require.True(t, ok)

		require.NoError(t, sw.Set(ctx, "OnOff", true, 0))
		assert.Equal(t, []string{"PUT:/nodes/2/attributes/20?target_value=1"}, sender.sent())

		view, err := d.View("OnOff", 0)
		require.NoError(t, err)
		require.NotNil(t, view)
		require.NoError(t, view.SetSwitch(ctx, true))
		assert.Equal(t, "PUT:/nodes/2/attributes/20?target_value=1", sender.sent()[1])
	})
}

func TestHomeeBrain(t *testing.T) {
	d := newTestDevice(t, brainNode, nil)
	brain, ok := d.HomeeBrain()
	require.True(t, ok)

	mode, ok := brain.Mode()
	require.True(t, ok)
	assert.Equal(t, "Away", mode)
	assert.Equal(t, 1699960000.0, brain.SunriseTime())
	assert.Equal(t, 1700000000.0, brain.SunsetTime())
}

func TestHomeeBrainUnknownMode(t *testing.T) {
	d := newTestDevice(t, `{"id": -1, "attributes": [{"id": 1, "type": 205, "current_value": 9}]}`, nil)
	brain, ok := d.HomeeBrain()
	require.True(t, ok)

	_, ok = brain.Mode()
	assert.False(t, ok)
}

func TestPropertyView(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDevice(t, plugNode, sender)

	view, err := d.View("OnOff", 0)
	require.NoError(t, err)
	require.NotNil(t, view)

	assert.True(t, view.Implements("SwitchBinary"))
	assert.False(t, view.Implements("SensorMultilevel"), "multilevel is not a per-property group")

	on, err := view.SwitchOn()
	require.NoError(t, err)
	assert.False(t, on)

	_, err = view.BatteryLevel()
	assert.ErrorIs(t, err, ErrNotSupported)

	require.NoError(t, view.SetSwitch(context.Background(), true))
	assert.Equal(t, []string{"PUT:/nodes/12/attributes/120?target_value=1"}, sender.sent())

	view, err = d.View("WindSpeed", 0)
	assert.NoError(t, err)
	assert.Nil(t, view)
}
