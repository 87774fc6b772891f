package homee

import "context"

// PropertyView binds one property to the subset of its device's
// capabilities that make sense for a single value: battery, binary sensor,
// binary switch.
type PropertyView struct {
	*Property
	capabilities Capabilities
}

func newPropertyView(p *Property) *PropertyView {
	var caps Capabilities
	if p.device != nil {
		caps = p.device.capabilities & Capabilities(propertyViewCapabilities)
	}
	return &PropertyView{Property: p, capabilities: caps}
}

// Capabilities returns the groups attached to the view.
func (v *PropertyView) Capabilities() Capabilities { return v.capabilities }

// Implements reports whether the named group is attached to the view.
func (v *PropertyView) Implements(name string) bool {
	c, ok := ParseCapability(name)
	return ok && v.capabilities.Has(c)
}

// BatteryLevel returns the property value as a charge level.
func (v *PropertyView) BatteryLevel() (float64, error) {
	if !v.capabilities.Has(CapBattery) {
		return 0, ErrNotSupported
	}
	f, _ := toFloat(v.Value())
	return f, nil
}

// Active reports whether the property value is non-zero.
func (v *PropertyView) Active() (bool, error) {
	if !v.capabilities.Has(CapSensorBinary) {
		return false, ErrNotSupported
	}
	return isNonZero(v.Value()), nil
}

// SwitchOn reports whether the property value is non-zero.
func (v *PropertyView) SwitchOn() (bool, error) {
	if !v.capabilities.Has(CapSwitchBinary) {
		return false, ErrNotSupported
	}
	return isNonZero(v.Value()), nil
}

// SetSwitch requests the property be switched on (its step value, falling
// back to its maximum or 1) or off (0).
func (v *PropertyView) SetSwitch(ctx context.Context, on bool) error {
	if !v.capabilities.Has(CapSwitchBinary) {
		return ErrNotSupported
	}
	var target any = float64(0)
	if on {
		target = v.onValue()
	}
	return v.RequestChange(ctx, target)
}
