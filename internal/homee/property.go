package homee

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"

	"github.com/nerrad567/gray-logic-homee/internal/homee/attribute"
)

// Wire field names of a hub attribute.
const (
	fieldID           = "id"
	fieldNodeID       = "node_id"
	fieldInstance     = "instance"
	fieldType         = "type"
	fieldCurrentValue = "current_value"
	fieldTargetValue  = "target_value"
	fieldMin          = "min"
	fieldMax          = "max"
	fieldMinimum      = "minimum"
	fieldMaximum      = "maximum"
	fieldStepValue    = "step_value"
	fieldUnit         = "unit"
	fieldEditable     = "editable"
	fieldData         = "data"
	fieldName         = "name"
)

// textFields are percent-encoded by the hub.
var textFields = [...]string{fieldData, fieldName, fieldUnit}

// identityFields never change after construction; updates carrying them are
// ignored so a property cannot migrate between type groups.
var identityFields = map[string]bool{
	fieldID:       true,
	fieldNodeID:   true,
	fieldInstance: true,
	fieldType:     true,
}

// Property is one measurable or controllable value slot on a device.
//
// Identity (id, node, type, instance) is fixed at construction. The remaining
// fields are updated in place by the dispatcher.
//
// Thread Safety: all methods are safe for concurrent use.
type Property struct {
	id       int
	nodeID   int
	instance int
	code     attribute.Code

	mu     sync.RWMutex
	fields map[string]any

	device *Device
}

// NewProperty builds a property from a decoded attribute object. Text fields
// are percent-decoded here and nowhere else.
func NewProperty(raw map[string]any) *Property {
	fields := make(map[string]any, len(raw)+1)
	maps.Copy(fields, raw)

	for _, key := range textFields {
		if s, ok := fields[key].(string); ok {
			fields[key] = unescape(s)
		}
	}
	if _, ok := fields[fieldInstance]; !ok {
		fields[fieldInstance] = float64(0)
	}

	p := &Property{fields: fields}
	p.id, _ = toInt(fields[fieldID])
	p.nodeID, _ = toInt(fields[fieldNodeID])
	p.instance, _ = toInt(fields[fieldInstance])
	code, _ := toInt(fields[fieldType])
	p.code = attribute.Code(code)
	return p
}

// ID returns the hub-assigned attribute identifier.
func (p *Property) ID() int { return p.id }

// NodeID returns the identifier of the owning device.
func (p *Property) NodeID() int { return p.nodeID }

// Instance returns the instance index among properties of the same type.
func (p *Property) Instance() int { return p.instance }

// Type returns the attribute type code.
func (p *Property) Type() attribute.Code { return p.code }

// Name returns the catalog name of the property type.
func (p *Property) Name() string { return p.code.String() }

// Device returns the owning device, or nil for a detached property.
func (p *Property) Device() *Device { return p.device }

// Value returns the current value as decoded from JSON.
func (p *Property) Value() any {
	return p.field(fieldCurrentValue)
}

// TargetValue returns the value the hub is driving towards.
func (p *Property) TargetValue() any {
	return p.field(fieldTargetValue)
}

// Min returns the lower bound, or 0 when the hub did not report one.
// Firmware reports either "min" or "minimum".
func (p *Property) Min() float64 {
	return p.firstFloat(fieldMin, fieldMinimum)
}

// Max returns the upper bound, or 0 when the hub did not report one.
func (p *Property) Max() float64 {
	return p.firstFloat(fieldMax, fieldMaximum)
}

// Step returns the step value, or 0 when the hub did not report one.
func (p *Property) Step() float64 {
	f, _ := toFloat(p.field(fieldStepValue))
	return f
}

// Scale returns the (min, step, max) triple.
func (p *Property) Scale() (lo, step, hi float64) {
	return p.Min(), p.Step(), p.Max()
}

// Unit returns the decoded measurement unit.
func (p *Property) Unit() string {
	s, _ := p.field(fieldUnit).(string)
	return s
}

// Data returns the decoded free-form data field.
func (p *Property) Data() string {
	s, _ := p.field(fieldData).(string)
	return s
}

// Label returns the decoded user-visible label, which the hub calls "name".
func (p *Property) Label() string {
	s, _ := p.field(fieldName).(string)
	return s
}

// Editable reports whether the hub accepts writes for this property.
func (p *Property) Editable() bool {
	v := p.field(fieldEditable)
	if b, ok := v.(bool); ok {
		return b
	}
	return isNonZero(v)
}

// Field returns a raw field by its wire name.
func (p *Property) Field(key string) any {
	return p.field(key)
}

// Fields returns a snapshot of all raw fields.
func (p *Property) Fields() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return maps.Clone(p.fields)
}

// MarshalJSON encodes the current field snapshot.
func (p *Property) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Fields())
}

func (p *Property) firstFloat(keys ...string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, k := range keys {
		if f, ok := toFloat(p.fields[k]); ok {
			return f
		}
	}
	return 0
}

func (p *Property) field(key string) any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fields[key]
}

// setValueLocally applies an update received from the hub and reports
// whether anything changed. A mapping payload is merged key by key; any
// other payload replaces current_value. Text is stored as received. Applying the same payload twice
// reports no change the second time.
func (p *Property) setValueLocally(payload any) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	update, ok := payload.(map[string]any)
	if !ok {
		if valuesEqual(p.fields[fieldCurrentValue], payload) {
			return false
		}
		p.fields[fieldCurrentValue] = payload
		return true
	}

	changed := false
	for key, value := range update {
		if identityFields[key] {
			continue
		}
		if valuesEqual(p.fields[key], value) {
			continue
		}
		p.fields[key] = value
		changed = true
	}
	return changed
}

// onValue is the value that switches the property on: its step, else its
// maximum, else 1.
func (p *Property) onValue() float64 {
	if step := p.Step(); step != 0 {
		return step
	}
	if hi := p.Max(); hi != 0 {
		return hi
	}
	return 1
}

// RequestChange asks the hub to set a new value. It fails with
// ErrNotEditable, without any network traffic, when the property is
// read-only or already holds value. The local value is not touched; the
// hub confirms through a later attribute event.
func (p *Property) RequestChange(ctx context.Context, value any) error {
	if !p.Editable() {
		return fmt.Errorf("%w: %s instance %d", ErrNotEditable, p.Name(), p.instance)
	}
	if valuesEqual(p.Value(), value) {
		return fmt.Errorf("%w: %s already %v", ErrNotEditable, p.Name(), value)
	}
	if p.device == nil {
		return fmt.Errorf("%w: property %d is detached", ErrNotConnected, p.id)
	}
	return p.device.submitChange(ctx, p, value)
}
