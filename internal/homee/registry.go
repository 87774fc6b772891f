package homee

import (
	"fmt"
	"time"
)

// DefaultLockTimeout bounds how long a registry operation waits for the lock.
const DefaultLockTimeout = 10 * time.Second

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// PropertyObserver is called after a property value changed.
type PropertyObserver func(d *Device, p *Property)

// DeviceObserver is called after a device was added or replaced.
type DeviceObserver func(d *Device)

// Registry stores the devices of one session keyed by node identifier.
//
// Every operation acquires the registry lock with a bounded wait and fails
// with ErrLockTimeout rather than block forever. Observers run after the
// lock is released.
//
// All public methods are thread-safe.
type Registry struct {
	lock    chan struct{}
	timeout time.Duration

	devices map[int]*Device
	order   []int // insertion order, for name lookups

	logger           Logger
	onPropertyChange PropertyObserver
	onDeviceChange   DeviceObserver
}

// NewRegistry creates an empty registry with DefaultLockTimeout.
func NewRegistry() *Registry {
	return &Registry{
		lock:    make(chan struct{}, 1),
		timeout: DefaultLockTimeout,
		devices: make(map[int]*Device),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetLockTimeout changes the lock acquisition budget.
func (r *Registry) SetLockTimeout(d time.Duration) {
	r.timeout = d
}

// OnPropertyChange registers the observer called when an update changes a
// property. Must be set before the registry is shared.
func (r *Registry) OnPropertyChange(fn PropertyObserver) {
	r.onPropertyChange = fn
}

// OnDeviceChange registers the observer called when a device is stored.
// Must be set before the registry is shared.
func (r *Registry) OnDeviceChange(fn DeviceObserver) {
	r.onDeviceChange = fn
}

func (r *Registry) acquire() error {
	timer := time.NewTimer(r.timeout)
	defer timer.Stop()
	select {
	case r.lock <- struct{}{}:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w after %s", ErrLockTimeout, r.timeout)
	}
}

func (r *Registry) release() {
	<-r.lock
}

func validDevice(d *Device) error {
	if d == nil || d.byType == nil {
		return fmt.Errorf("%w: device not constructed with NewDevice", ErrInvalidDevice)
	}
	return nil
}

// Add stores d unless a device with the same identifier exists. It reports
// whether d was stored.
func (r *Registry) Add(d *Device) (bool, error) {
	if err := validDevice(d); err != nil {
		return false, err
	}
	if err := r.acquire(); err != nil {
		return false, err
	}
	_, exists := r.devices[d.id]
	if !exists {
		r.store(d)
	}
	r.release()

	if !exists {
		r.deviceChanged(d)
	}
	return !exists, nil
}

// AddOrReplace stores d, replacing any device with the same identifier.
func (r *Registry) AddOrReplace(d *Device) error {
	if err := validDevice(d); err != nil {
		return err
	}
	if err := r.acquire(); err != nil {
		return err
	}
	r.store(d)
	r.release()

	r.deviceChanged(d)
	return nil
}

// Replace stores d only if a device with the same identifier exists. It
// reports whether d was stored.
func (r *Registry) Replace(d *Device) (bool, error) {
	if err := validDevice(d); err != nil {
		return false, err
	}
	if err := r.acquire(); err != nil {
		return false, err
	}
	_, exists := r.devices[d.id]
	if exists {
		r.store(d)
	}
	r.release()

	if exists {
		r.deviceChanged(d)
	}
	return exists, nil
}

// store must be called with the lock held.
func (r *Registry) store(d *Device) {
	if _, exists := r.devices[d.id]; !exists {
		r.order = append(r.order, d.id)
	}
	r.devices[d.id] = d
}

func (r *Registry) deviceChanged(d *Device) {
	r.logger.Debug("device stored", "node_id", d.id, "name", d.name, "capabilities", d.capabilities.String())
	if r.onDeviceChange != nil {
		r.onDeviceChange(d)
	}
}

// Get returns the device with the given identifier, or nil.
func (r *Registry) Get(id int) (*Device, error) {
	if err := r.acquire(); err != nil {
		return nil, err
	}
	defer r.release()
	return r.devices[id], nil
}

// Contains reports whether a device with the given identifier is stored.
func (r *Registry) Contains(id int) (bool, error) {
	if err := r.acquire(); err != nil {
		return false, err
	}
	defer r.release()
	_, ok := r.devices[id]
	return ok, nil
}

// IDForName returns the identifier of the first stored device, in insertion
// order, whose name equals name. Names are not guaranteed unique.
func (r *Registry) IDForName(name string) (int, bool, error) {
	if err := r.acquire(); err != nil {
		return 0, false, err
	}
	defer r.release()
	for _, id := range r.order {
		if r.devices[id].name == name {
			return id, true, nil
		}
	}
	return 0, false, nil
}

// List returns every stored device in insertion order.
func (r *Registry) List() ([]*Device, error) {
	if err := r.acquire(); err != nil {
		return nil, err
	}
	defer r.release()
	out := make([]*Device, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.devices[id])
	}
	return out, nil
}

// Len returns the number of stored devices.
func (r *Registry) Len() (int, error) {
	if err := r.acquire(); err != nil {
		return 0, err
	}
	defer r.release()
	return len(r.devices), nil
}

// RouteAttributeUpdate applies payload to the property propertyID of device
// deviceID. Updates for unknown devices or properties are dropped. It
// reports whether a property value changed.
//
// Parameters:
//   - deviceID: Node the attribute belongs to
//   - propertyID: Attribute identifier
//   - payload: Attribute object or bare value from the hub
//
// Returns:
//   - bool: Whether the stored property changed
//   - error: ErrLockTimeout if the registry stays locked; unknown nodes are not an error
func (r *Registry) RouteAttributeUpdate(deviceID, propertyID int, payload any) (bool, error) {
	if err := r.acquire(); err != nil {
		return false, err
	}
	d, ok := r.devices[deviceID]
	var (
		p       *Property
		changed bool
	)
	if ok {
		p, changed = d.applyUpdate(propertyID, payload)
	}
	r.release()

	if !ok {
		r.logger.Debug("attribute update for unknown node", "node_id", deviceID, "attribute_id", propertyID)
		return false, nil
	}
	if p == nil {
		r.logger.Debug("attribute update for unknown attribute", "node_id", deviceID, "attribute_id", propertyID)
		return false, nil
	}
	if changed && r.onPropertyChange != nil {
		r.onPropertyChange(d, p)
	}
	return changed, nil
}
