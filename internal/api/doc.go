// Package api serves the bridge's local HTTP API and WebSocket feed.
//
// Endpoints, all under /api/v1:
//
//	GET  /health                        liveness plus hub connection state
//	GET  /metrics                       runtime, WebSocket and bridge counters
//	GET  /ws                            WebSocket event feed
//	GET  /nodes                         node list, optional ?capability= filter
//	POST /nodes/refresh                 re-read every node from the hub
//	GET  /nodes/{id}                    one node with all attributes
//	GET  /nodes/{id}/attributes/{name}  one attribute instance (?instance=)
//	PUT  /nodes/{id}/attributes/{name}  request a target value change
//
// # WebSocket
//
// Clients send {"type":"subscribe","payload":{"channels":["node.state_changed"]}}
// and then receive every state message the bridge publishes on the bus.
//
// # Graceful Degradation
//
// The server runs without MQTT. Node reads and writes go straight to the hub
// session; only the WebSocket relay is idle.
package api
