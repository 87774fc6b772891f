// Package homee bridges a homee hub onto the Gray Logic MQTT bus.
//
// The bridge sits between the hub session (internal/homee/session) and the
// MQTT client (internal/infrastructure/mqtt):
//
//	homee hub ──ws──▶ session.Client ──observers──▶ Bridge ──▶ graylogic/state/homee/{node}
//	                                                       ──▶ graylogic/discovery/homee/{node}
//	                                                       ──▶ graylogic/health/homee
//	Core ──▶ graylogic/command/homee/{node} ──▶ Bridge ──▶ Device.RequestChange ──▶ hub
//	                                                  ──▶ graylogic/ack/homee/{node}
//
// # Commands
//
//   - on / off: drive the node's OnOff attribute through its SwitchBinary behaviour
//   - dim: {"level": 0-100} sets DimmingLevel
//   - set: {"attribute": "TargetTemperature", "value": 21.5, "instance": 0}
//   - mode: {"mode": "Away"} on the hub node (-1)
//   - refresh: reload every node from the hub
//
// Writes are fire-and-forget. An "accepted" ack means the request reached
// the hub; the hub confirms the change with an attribute event, which the
// bridge republishes as state.
//
// # Threading
//
// HandlePropertyChange and HandleDeviceChange run on the hub receive loop
// while the session client is busy, so they only read the device they are
// given and never call back into the client.
package homee
