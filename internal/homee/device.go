package homee

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/nerrad567/gray-logic-homee/internal/homee/attribute"
)

// Wire field names of a hub node.
const (
	nodeFieldID         = "id"
	nodeFieldName       = "name"
	nodeFieldAttributes = "attributes"
)

// RequestSender submits one outbound request line to the hub.
//
// Devices hold a RequestSender rather than the session itself, so a device
// that outlives its session fails with ErrNotConnected instead of writing
// to a dead connection.
type RequestSender interface {
	SendRequest(ctx context.Context, request string) error
}

// Device is one node registered with the hub.
//
// A Device is built wholesale from a node description and is never partially
// rebuilt; a newer description replaces the whole value in the registry.
// Property values inside it are updated in place.
//
// Thread Safety: the property layout is immutable after construction, and
// each Property guards its own fields, so all methods are safe for
// concurrent use.
type Device struct {
	id     int
	name   string
	fields map[string]any

	byType map[attribute.Code][]*Property
	types  []attribute.Code
	byID   map[int]*Property

	capabilities Capabilities
	sender       RequestSender
}

// NewDevice builds a device from a decoded node object. The capability set
// is resolved once here from the initial attribute list.
//
// Parameters:
//   - data: Decoded node object, including its "attributes" array
//   - sender: Outbound path for change requests, may be nil
//
// Returns:
//   - *Device: The device with its properties indexed
//   - error: ErrInvalidDevice if the node is nil or has no integer id
func NewDevice(data map[string]any, sender RequestSender) (*Device, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: nil node data", ErrInvalidDevice)
	}
	id, ok := toInt(data[nodeFieldID])
	if !ok {
		return nil, fmt.Errorf("%w: node id %v is not an integer", ErrInvalidDevice, data[nodeFieldID])
	}

	d := &Device{
		id:     id,
		fields: make(map[string]any, len(data)),
		byType: make(map[attribute.Code][]*Property),
		byID:   make(map[int]*Property),
		sender: sender,
	}
	for k, v := range data {
		if k == nodeFieldAttributes {
			continue
		}
		d.fields[k] = v
	}
	if s, ok := data[nodeFieldName].(string); ok {
		d.name = unescape(s)
		d.fields[nodeFieldName] = d.name
	}

	descriptors, _ := data[nodeFieldAttributes].([]any)
	for _, raw := range descriptors {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		d.insert(NewProperty(m))
	}
	d.capabilities = ResolveDescriptors(descriptors)

	return d, nil
}

// insert places p after every property of the same type whose instance is
// lower or equal, which keeps each group sorted and stable.
func (d *Device) insert(p *Property) {
	p.device = d

	group, seen := d.byType[p.code]
	if !seen {
		d.types = append(d.types, p.code)
	}
	pos := len(group)
	for i, existing := range group {
		if p.instance < existing.instance {
			pos = i
			break
		}
	}
	d.byType[p.code] = slices.Insert(group, pos, p)
	d.byID[p.id] = p
}

// ID returns the hub-assigned node identifier.
func (d *Device) ID() int { return d.id }

// Name returns the percent-decoded display name.
func (d *Device) Name() string { return d.name }

// Field returns a raw node field such as "profile" or "state".
func (d *Device) Field(key string) any { return d.fields[key] }

// Capabilities returns the capability set resolved at construction.
func (d *Device) Capabilities() Capabilities { return d.capabilities }

// Has reports whether the device carries capability c.
func (d *Device) Has(c Capability) bool { return d.capabilities.Has(c) }

// Implements reports whether the named capability group has behaviour
// attached to this device.
func (d *Device) Implements(name string) bool {
	c, ok := ParseCapability(name)
	if !ok || c&behaviourCapabilities == 0 {
		return false
	}
	return d.Has(c)
}

// Implemented returns the names of the capability groups with behaviour
// attached to this device.
func (d *Device) Implemented() []string {
	return (d.capabilities & Capabilities(behaviourCapabilities)).Names()
}

// Types returns the property types present, in order of first appearance.
func (d *Device) Types() []attribute.Code {
	return slices.Clone(d.types)
}

// Properties returns every property, grouped by type in order of first
// appearance and sorted by instance within each group.
func (d *Device) Properties() []*Property {
	out := make([]*Property, 0, len(d.byID))
	for _, code := range d.types {
		out = append(out, d.byType[code]...)
	}
	return out
}

// PropertyByID returns the property with the given hub identifier.
func (d *Device) PropertyByID(id int) (*Property, bool) {
	p, ok := d.byID[id]
	return p, ok
}

// PropertyCount returns the number of instances of the named type.
// Unknown names count as zero.
func (d *Device) PropertyCount(name string) int {
	code, err := attribute.CodeForName(name)
	if err != nil {
		return 0
	}
	return len(d.byType[code])
}

// GetProperty returns the given instance of the named property type.
//
// It returns (nil, nil) when the device has no property of that type, and
// ErrInvalidInstance when the type is present but instance is out of range.
func (d *Device) GetProperty(name string, instance int) (*Property, error) {
	code, err := attribute.CodeForName(name)
	if err != nil {
		return nil, nil
	}
	return d.PropertyByCode(code, instance)
}

// PropertyByCode is GetProperty keyed by type code.
func (d *Device) PropertyByCode(code attribute.Code, instance int) (*Property, error) {
	group, ok := d.byType[code]
	if !ok {
		return nil, nil
	}
	if instance < 0 || instance >= len(group) {
		return nil, fmt.Errorf("%w: %s has %d instance(s), requested %d",
			ErrInvalidInstance, code, len(group), instance)
	}
	return group[instance], nil
}

// GetPropertyValue returns the value of the given property instance, or def
// when the device has no property of that type.
func (d *Device) GetPropertyValue(name string, instance int, def any) (any, error) {
	p, err := d.GetProperty(name, instance)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return def, nil
	}
	return p.Value(), nil
}

// value is GetPropertyValue for the capability behaviours, where a missing
// value reads as def.
func (d *Device) value(name string, instance int, def any) (any, error) {
	v, err := d.GetPropertyValue(name, instance, def)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return def, nil
	}
	return v, nil
}

// FirmwareRevision returns the reported firmware revision, or nil.
func (d *Device) FirmwareRevision() any { return d.identityValue(attribute.FirmwareRevision) }

// HardwareRevision returns the reported hardware revision, or nil.
func (d *Device) HardwareRevision() any { return d.identityValue(attribute.HardwareRevision) }

// SoftwareRevision returns the reported software revision, or nil.
func (d *Device) SoftwareRevision() any { return d.identityValue(attribute.SoftwareRevision) }

// SerialNumber returns the reported serial number, or nil.
func (d *Device) SerialNumber() any { return d.identityValue(attribute.SerialNumber) }

func (d *Device) identityValue(code attribute.Code) any {
	p, err := d.PropertyByCode(code, 0)
	if err != nil || p == nil {
		return nil
	}
	return p.Value()
}

// RequestChange asks the hub to set the given property instance to value.
// The write is addressed by the property's own identifier. It fails with
// ErrNotEditable when the property is absent or read-only.
func (d *Device) RequestChange(ctx context.Context, name string, value any, instance int) error {
	p, err := d.GetProperty(name, instance)
	if err != nil {
		return err
	}
	if p == nil || !p.Editable() {
		return fmt.Errorf("%w: %s instance %d on node %d", ErrNotEditable, name, instance, d.id)
	}
	return d.submitChange(ctx, p, value)
}

// submitChange writes the change request for p without further checks.
func (d *Device) submitChange(ctx context.Context, p *Property, value any) error {
	if d.sender == nil {
		return fmt.Errorf("%w: node %d has no session", ErrNotConnected, d.id)
	}
	return d.sender.SendRequest(ctx, ChangeRequest(d.id, p.id, value))
}

// ChangeRequest formats the request line that sets an attribute's target value.
func ChangeRequest(nodeID, propertyID int, value any) string {
	return fmt.Sprintf("PUT:/nodes/%d/attributes/%d?target_value=%s", nodeID, propertyID, formatValue(value))
}

// applyUpdate applies an incoming payload to the property with the given
// identifier. It returns nil when no property matches.
func (d *Device) applyUpdate(propertyID int, payload any) (*Property, bool) {
	p, ok := d.byID[propertyID]
	if !ok {
		return nil, false
	}
	return p, p.setValueLocally(payload)
}

// View returns a capability view over one property instance.
func (d *Device) View(name string, instance int) (*PropertyView, error) {
	p, err := d.GetProperty(name, instance)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	return newPropertyView(p), nil
}

type deviceJSON struct {
	ID           int            `json:"id"`
	Name         string         `json:"name"`
	Capabilities []string       `json:"capabilities"`
	Fields       map[string]any `json:"fields,omitempty"`
	Attributes   []*Property    `json:"attributes"`
}

// MarshalJSON encodes a snapshot of the device and its property fields.
func (d *Device) MarshalJSON() ([]byte, error) {
	fields := maps.Clone(d.fields)
	delete(fields, nodeFieldID)
	delete(fields, nodeFieldName)
	return json.Marshal(deviceJSON{
		ID:           d.id,
		Name:         d.name,
		Capabilities: d.capabilities.Names(),
		Fields:       fields,
		Attributes:   d.Properties(),
	})
}
