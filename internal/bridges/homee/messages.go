package homee

import (
	"strconv"
	"time"

	hub "github.com/nerrad567/gray-logic-homee/internal/homee"
)

// MQTT message types exchanged between Gray Logic Core and the homee bridge.
// They follow the same bridge interface as every other Gray Logic bridge,
// with homee node identifiers as the protocol address.

// Protocol is the protocol segment used in bridge topics and messages.
const Protocol = "homee"

// CommandMessage is sent from Core to the bridge to drive a node.
// Topic: graylogic/command/homee/{node_id}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgments.
	ID string `json:"id"`

	// Timestamp is when the command was issued.
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the Gray Logic device identifier. Defaults to the node
	// identifier from the topic.
	DeviceID string `json:"device_id"`

	// Command is the command name: "on", "off", "dim", "set", "mode" or "refresh".
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"level": 50} for dim
	//   {"attribute": "TargetTemperature", "value": 21.5, "instance": 0} for set
	//   {"mode": "Away"} for mode
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated.
	Source string `json:"source"`

	// UserID is the user who triggered the command (if applicable).
	UserID string `json:"user_id,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the request was written to the hub.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// AckMessage is sent from the bridge to Core to acknowledge a command.
// Topic: graylogic/ack/homee/{node_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`
	Address   string    `json:"address"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// StateMessage is sent from the bridge to Core when a node's attributes change.
// Topic: graylogic/state/homee/{node_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`

	// State maps snake_case attribute names to current values, e.g.
	//   {"on_off": 1, "current_energy_use": 4.5, "on": true}
	// Instances after the first carry a numeric suffix ("battery_level_1").
	State map[string]any `json:"state"`

	Protocol string `json:"protocol"`
	Address  string `json:"address"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports the bridge's operational status.
// Topic: graylogic/health/homee
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge         string            `json:"bridge"`
	Timestamp      time.Time         `json:"timestamp"`
	Status         HealthStatus      `json:"status"`
	Version        string            `json:"version"`
	UptimeSeconds  int64             `json:"uptime_seconds"`
	Connection     *ConnectionStatus `json:"connection,omitempty"`
	Statistics     *BridgeStatistics `json:"statistics,omitempty"`
	DevicesManaged int               `json:"devices_managed"`
	Reason         string            `json:"reason,omitempty"`
}

// ConnectionStatus describes the hub session.
type ConnectionStatus struct {
	// Status is "connected" or "disconnected".
	Status string `json:"status"`

	// Address is the hub address.
	Address string `json:"address"`

	// Session is the session lifecycle state, e.g. "connected".
	Session string `json:"session,omitempty"`

	// Token is the access token state, e.g. "valid" or "expiring".
	Token string `json:"token,omitempty"`

	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// BridgeStatistics contains operational counters.
type BridgeStatistics struct {
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	Reconnects       uint64 `json:"reconnects"`
	Errors           uint64 `json:"errors"`
}

// DiscoveryMessage announces a node and its attributes to Core.
// Topic: graylogic/discovery/homee/{node_id}
// QoS: 1, Retained: Yes
type DiscoveryMessage struct {
	Timestamp time.Time        `json:"timestamp"`
	Bridge    string           `json:"bridge"`
	Device    DiscoveredDevice `json:"device"`
}

// DiscoveredDevice describes one homee node.
type DiscoveredDevice struct {
	Protocol      string                `json:"protocol"`
	Address       string                `json:"address"`
	SuggestedName string                `json:"suggested_name,omitempty"`
	Capabilities  []string              `json:"capabilities"`
	Attributes    []DiscoveredAttribute `json:"attributes"`
	Firmware      any                   `json:"firmware,omitempty"`
	Serial        any                   `json:"serial,omitempty"`
}

// DiscoveredAttribute describes one attribute instance of a node.
type DiscoveredAttribute struct {
	ID       int     `json:"id"`
	Type     string  `json:"type"`
	Key      string  `json:"key"`
	Instance int     `json:"instance"`
	Unit     string  `json:"unit,omitempty"`
	Editable bool    `json:"editable"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Step     float64 `json:"step"`
}

// NewAckMessage creates a successful acknowledgment for a command.
func NewAckMessage(cmd CommandMessage, status AckStatus, address string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    status,
		Protocol:  Protocol,
		Address:   address,
	}
}

// NewAckError creates a failed acknowledgment.
func NewAckError(cmd CommandMessage, address, code, message string) AckMessage {
	ack := NewAckMessage(cmd, AckFailed, address)
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// NewStateMessage creates a state update for a node.
func NewStateMessage(deviceID, address string, state map[string]any) StateMessage {
	return StateMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		State:     state,
		Protocol:  Protocol,
		Address:   address,
	}
}

// NewHealthMessage creates a health report.
func NewHealthMessage(version string, status HealthStatus, devices int, started time.Time) HealthMessage {
	return HealthMessage{
		Bridge:         Protocol,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        version,
		UptimeSeconds:  int64(time.Since(started).Seconds()),
		DevicesManaged: devices,
	}
}

// NewDiscoveryMessage describes d for Core.
func NewDiscoveryMessage(d *hub.Device) DiscoveryMessage {
	props := d.Properties()
	attrs := make([]DiscoveredAttribute, 0, len(props))
	for _, p := range props {
		lo, step, hi := p.Scale()
		attrs = append(attrs, DiscoveredAttribute{
			ID:       p.ID(),
			Type:     p.Name(),
			Key:      stateKey(p.Name(), p.Instance()),
			Instance: p.Instance(),
			Unit:     p.Unit(),
			Editable: p.Editable(),
			Min:      lo,
			Max:      hi,
			Step:     step,
		})
	}

	return DiscoveryMessage{
		Timestamp: time.Now().UTC(),
		Bridge:    Protocol,
		Device: DiscoveredDevice{
			Protocol:      Protocol,
			Address:       nodeAddress(d.ID()),
			SuggestedName: d.Name(),
			Capabilities:  d.Capabilities().Names(),
			Attributes:    attrs,
			Firmware:      d.FirmwareRevision(),
			Serial:        d.SerialNumber(),
		},
	}
}

func nodeAddress(id int) string {
	return strconv.Itoa(id)
}
