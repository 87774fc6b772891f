// Package mqtt provides the MQTT bus connection for the homee bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// The bridge sits between the homee hub and the Gray Logic bus:
//
//	homee hub ↔ homee bridge ↔ MQTT Broker ↔ Gray Logic Core
//
// Node state, discovery and health flow out on graylogic/{category}/homee/...
// and commands arrive on graylogic/command/homee/{node_id}.
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) when the broker is not on localhost
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.BridgeState("homee", "12")
//	client.PublishRetained(topic, []byte(`{"on":true}`))
package mqtt
