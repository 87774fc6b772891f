package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the Gray Logic bus.
//
// Bridge topics use the flat scheme: graylogic/{category}/{protocol}/{address}
// where address is the protocol's own device identifier (a homee node ID).
const (
	// TopicPrefixBridge is the base for all bridge topics.
	TopicPrefixBridge = "graylogic"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topic categories published or consumed by bridges.
const (
	CategoryState     = "state"
	CategoryCommand   = "command"
	CategoryAck       = "ack"
	CategoryHealth    = "health"
	CategoryDiscovery = "discovery"
)

// Topics provides builders for Gray Logic MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.BridgeState("homee", "12")
//	// Returns: "graylogic/state/homee/12"
type Topics struct{}

// BridgeState returns the topic for device state updates from a bridge.
//
// Example: graylogic/state/homee/12
func (Topics) BridgeState(protocol, address string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefixBridge, CategoryState, protocol, address)
}

// BridgeCommand returns the topic for commands to a bridge.
//
// Example: graylogic/command/homee/12
func (Topics) BridgeCommand(protocol, address string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefixBridge, CategoryCommand, protocol, address)
}

// BridgeAck returns the topic for command acknowledgements from a bridge.
//
// Example: graylogic/ack/homee/12
func (Topics) BridgeAck(protocol, address string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefixBridge, CategoryAck, protocol, address)
}

// BridgeHealth returns the topic for bridge health status.
//
// Example: graylogic/health/homee
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixBridge, CategoryHealth, protocol)
}

// BridgeDiscovery returns the topic for device discovery from a bridge.
//
// Example: graylogic/discovery/homee/12
func (Topics) BridgeDiscovery(protocol, address string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefixBridge, CategoryDiscovery, protocol, address)
}

// SystemStatus returns the status topic for one bus client.
//
// Example: graylogic/system/status/graylogic-homee
func (Topics) SystemStatus(clientID string) string {
	return fmt.Sprintf("%s/status/%s", TopicPrefixSystem, clientID)
}

// BridgeCommands returns a pattern matching every command to one bridge.
//
// Pattern: graylogic/command/homee/+
func (Topics) BridgeCommands(protocol string) string {
	return fmt.Sprintf("%s/%s/%s/+", TopicPrefixBridge, CategoryCommand, protocol)
}

// BridgeStates returns a pattern matching every state update from one bridge.
//
// Pattern: graylogic/state/homee/+
func (Topics) BridgeStates(protocol string) string {
	return fmt.Sprintf("%s/%s/%s/+", TopicPrefixBridge, CategoryState, protocol)
}

// BridgeTopic is a parsed graylogic/{category}/{protocol}/{address} topic.
type BridgeTopic struct {
	Category string
	Protocol string
	Address  string
}

// ParseBridgeTopic splits a bridge topic into its parts.
// It returns false for anything outside the flat bridge scheme.
func ParseBridgeTopic(topic string) (BridgeTopic, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefixBridge {
		return BridgeTopic{}, false
	}
	for _, p := range parts[1:] {
		if p == "" || p == "+" || p == "#" {
			return BridgeTopic{}, false
		}
	}
	return BridgeTopic{Category: parts[1], Protocol: parts[2], Address: parts[3]}, true
}
