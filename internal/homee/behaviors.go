package homee

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-homee/internal/homee/attribute"
)

// AllInstances selects every instance of a property type in the aggregate
// accessors below.
const AllInstances = -1

// Battery returns the battery behaviour when the device reports a battery level.
func (d *Device) Battery() (Battery, bool) {
	return Battery{device: d}, d.Has(CapBattery)
}

// SensorBinary returns the binary sensor behaviour.
func (d *Device) SensorBinary() (SensorBinary, bool) {
	return SensorBinary{sensor{device: d}}, d.Has(CapSensorBinary)
}

// SensorMultilevel returns the multilevel sensor behaviour.
func (d *Device) SensorMultilevel() (SensorMultilevel, bool) {
	return SensorMultilevel{sensor{device: d}}, d.Has(CapSensorMultilevel)
}

// SwitchBinary returns the binary switch behaviour.
func (d *Device) SwitchBinary() (SwitchBinary, bool) {
	return SwitchBinary{device: d}, d.Has(CapSwitchBinary)
}

// HomeeBrain returns the behaviour of the hub's own mode node.
func (d *Device) HomeeBrain() (HomeeBrain, bool) {
	return HomeeBrain{device: d}, d.Has(CapHomeeBrain)
}

// Battery reads battery charge levels.
type Battery struct {
	device *Device
}

// Level returns the charge level of one instance, or the mean over all
// instances when instance is AllInstances. Missing readings count as 0.
func (b Battery) Level(instance int) (float64, error) {
	name := attribute.BatteryLevel.String()
	if instance >= 0 {
		v, err := b.device.value(name, instance, 0)
		if err != nil {
			return 0, err
		}
		f, _ := toFloat(v)
		return f, nil
	}

	count := b.device.PropertyCount(name)
	var sum float64
	for i := 0; i < count; i++ {
		v, err := b.device.value(name, i, 0)
		if err != nil {
			return 0, err
		}
		f, _ := toFloat(v)
		sum += f
	}
	if count > 1 {
		sum /= float64(count)
	}
	return sum, nil
}

// sensor holds the lookups shared by both sensor behaviours. Generic names
// such as "Temperature" fall back to the specific names listed in
// alternativeSensors when the device lacks the generic type.
type sensor struct {
	device *Device
}

func (s sensor) resolve(name string) (string, bool) {
	if s.device.PropertyCount(name) > 0 {
		return name, true
	}
	for _, alt := range alternativeSensors[name] {
		if s.device.PropertyCount(alt) > 0 {
			return alt, true
		}
	}
	return "", false
}

// Supported reports whether the sensor or one of its alternatives is present.
func (s sensor) Supported(name string) bool {
	_, ok := s.resolve(name)
	return ok
}

// Count returns the number of instances of the resolved sensor type.
func (s sensor) Count(name string) int {
	resolved, ok := s.resolve(name)
	if !ok {
		return 0
	}
	return s.device.PropertyCount(resolved)
}

// Unit returns the measurement unit of the resolved sensor instance.
func (s sensor) Unit(name string, instance int) (string, error) {
	p, err := s.property(name, instance)
	if err != nil || p == nil {
		return "", err
	}
	return p.Unit(), nil
}

// Editable reports whether the resolved sensor instance accepts writes.
func (s sensor) Editable(name string, instance int) (bool, error) {
	p, err := s.property(name, instance)
	if err != nil || p == nil {
		return false, err
	}
	return p.Editable(), nil
}

func (s sensor) property(name string, instance int) (*Property, error) {
	resolved, ok := s.resolve(name)
	if !ok {
		return nil, nil
	}
	return s.device.GetProperty(resolved, instance)
}

// SensorBinary reads binary sensors such as contacts and inputs.
type SensorBinary struct {
	sensor
}

// Active reports whether the given instance is non-zero, or whether any
// instance is when instance is AllInstances.
func (s SensorBinary) Active(name string, instance int) (bool, error) {
	resolved, ok := s.resolve(name)
	if !ok {
		return false, nil
	}
	return anyNonZero(s.device, resolved, instance)
}

// SensorMultilevel reads continuous measurements.
type SensorMultilevel struct {
	sensor
}

// Reading returns the given instance's value, or the arithmetic mean over
// all instances when instance is AllInstances. The aggregate fails with
// ErrNotNumeric if any instance holds a non-numeric value. An absent sensor
// reads as 0.
func (s SensorMultilevel) Reading(name string, instance int) (float64, error) {
	resolved, ok := s.resolve(name)
	if !ok {
		return 0, nil
	}

	if instance >= 0 {
		v, err := s.device.value(resolved, instance, 0)
		if err != nil {
			return 0, err
		}
		f, ok := toFloat(v)
		if !ok || !isNumeric(v) {
			return 0, fmt.Errorf("%w: %s instance %d is %T", ErrNotNumeric, resolved, instance, v)
		}
		return f, nil
	}

	count := s.device.PropertyCount(resolved)
	var sum float64
	for i := 0; i < count; i++ {
		v, err := s.device.value(resolved, i, 0)
		if err != nil {
			return 0, err
		}
		if !isNumeric(v) {
			return 0, fmt.Errorf("%w: %s instance %d is %T", ErrNotNumeric, resolved, i, v)
		}
		f, _ := toFloat(v)
		sum += f
	}
	if count > 1 {
		sum /= float64(count)
	}
	return sum, nil
}

// SwitchBinary reads and drives on/off switches.
type SwitchBinary struct {
	device *Device
}

// On reports whether the given instance is on, or whether any instance is
// when instance is AllInstances.
func (s SwitchBinary) On(name string, instance int) (bool, error) {
	return anyNonZero(s.device, name, instance)
}

// Set requests the switch be turned on or off. On sends the property's step
// value (or its maximum, or 1, when the hub omits the step), off sends 0.
func (s SwitchBinary) Set(ctx context.Context, name string, on bool, instance int) error {
	p, err := s.device.GetProperty(name, instance)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: %s instance %d on node %d", ErrNotEditable, name, instance, s.device.id)
	}
	var target any = float64(0)
	if on {
		target = p.onValue()
	}
	return s.device.RequestChange(ctx, name, target, instance)
}

func anyNonZero(d *Device, name string, instance int) (bool, error) {
	if instance >= 0 {
		v, err := d.value(name, instance, 0)
		if err != nil {
			return false, err
		}
		return isNonZero(v), nil
	}
	for i, n := 0, d.PropertyCount(name); i < n; i++ {
		v, err := d.value(name, i, 0)
		if err != nil {
			return false, err
		}
		if isNonZero(v) {
			return true, nil
		}
	}
	return false, nil
}

// HomeeModes are the hub operating modes indexed by the HomeeMode value.
var HomeeModes = [...]string{"Home", "Sleeping", "Away", "Vacation"}

// HomeeBrain reads the hub's own mode and sun times.
type HomeeBrain struct {
	device *Device
}

// Mode returns the name of the current hub mode. It reports false when the
// value is missing or not a known mode index.
func (h HomeeBrain) Mode() (string, bool) {
	v, err := h.device.value(attribute.HomeeMode.String(), 0, nil)
	if err != nil {
		return "", false
	}
	idx, ok := toInt(v)
	if !ok || idx < 0 || idx >= len(HomeeModes) {
		return "", false
	}
	return HomeeModes[idx], true
}

// SunriseTime returns the reported sunrise time value, or nil.
func (h HomeeBrain) SunriseTime() any {
	return h.device.identityValue(attribute.SunriseTime)
}

// SunsetTime returns the reported sunset time value, or nil.
func (h HomeeBrain) SunsetTime() any {
	return h.device.identityValue(attribute.SunsetTime)
}
