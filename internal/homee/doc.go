// Package homee provides the device model of a homee hub session.
//
// The hub reports nodes, each carrying a list of attributes. This package
// calls them Devices and Properties. A Device is built wholesale from a node
// description and stored in a Registry; later attribute events update
// Property values in place.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                          homee model                             │
//	│                                                                  │
//	│  ┌──────────────┐    ┌──────────────┐    ┌──────────────────┐   │
//	│  │   Registry   │───▶│    Device    │───▶│     Property     │   │
//	│  │ (registry.go)│    │ (device.go)  │    │  (property.go)   │   │
//	│  │              │    │              │    │                  │   │
//	│  │ • bounded    │    │ • grouped by │    │ • raw fields     │   │
//	│  │   lock       │    │   type       │    │ • edit guard     │   │
//	│  │ • observers  │    │ • behaviours │    │ • own RWMutex    │   │
//	│  └──────────────┘    └──────────────┘    └──────────────────┘   │
//	│                             │                                    │
//	│                             ▼                                    │
//	│                  RequestSender (session handle)                  │
//	└──────────────────────────────────────────────────────────────────┘
//
// # Capabilities
//
// Each device carries a fixed set of capability groups resolved from the
// attribute types it reported at construction (capability.go). Behaviour is
// reached through gated accessors:
//
//	if battery, ok := dev.Battery(); ok {
//	    level, err := battery.Level(homee.AllInstances)
//	    ...
//	}
//
//	if sw, ok := dev.SwitchBinary(); ok {
//	    err := sw.Set(ctx, "OnOff", true, 0)
//	    ...
//	}
//
// Writes are fire-and-forget: RequestChange sends a PUT request line and
// returns. The hub confirms with a later attribute event that updates the
// Property through the Registry.
//
// # Thread Safety
//
// Registry operations serialise on a lock acquired with a bounded wait
// (ErrLockTimeout). Property fields are guarded per property, so devices
// returned by the Registry may be read while the session applies updates.
package homee
