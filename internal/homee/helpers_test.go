package homee

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingSender captures outbound request lines.
type recordingSender struct {
	mu       sync.Mutex
	requests []string
	err      error
}

func (s *recordingSender) SendRequest(_ context.Context, request string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.requests = append(s.requests, request)
	return nil
}

func (s *recordingSender) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// decode parses JSON the way the session does, so numbers arrive as float64.
func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &out))
	return out
}

func newTestDevice(t *testing.T, s string, sender RequestSender) *Device {
	t.Helper()
	d, err := NewDevice(decode(t, s), sender)
	require.NoError(t, err)
	return d
}

// Fixture nodes. Attribute types: 1 OnOff, 2 DimmingLevel, 5 Temperature,
// 7 RelativeHumidity, 8 BatteryLevel, 14 OpenClose, 92 DeviceTemperature,
// 98 IndoorTemperature, 205 HomeeMode.
const (
	plugNode = `{
		"id": 12, "name": "Kitchen%20Plug", "profile": 10,
		"attributes": [
			{"id": 120, "node_id": 12, "type": 1, "instance": 0, "current_value": 0, "target_value": 0,
			 "minimum": 0, "maximum": 1, "step_value": 1, "unit": "n%2Fa", "editable": 1},
			{"id": 121, "node_id": 12, "type": 3, "instance": 0, "current_value": 4.5, "unit": "W", "editable": 0},
			{"id": 122, "node_id": 12, "type": 44, "current_value": 0, "data": "1.2.3", "editable": 0}
		]
	}`

	multiSensorNode = `{
		"id": 30, "name": "Hall%20Sensor",
		"attributes": [
			{"id": 302, "node_id": 30, "type": 8, "instance": 1, "current_value": 80, "unit": "%25", "editable": 0},
			{"id": 301, "node_id": 30, "type": 8, "instance": 0, "current_value": 60, "unit": "%25", "editable": 0},
			{"id": 303, "node_id": 30, "type": 98, "instance": 0, "current_value": 10, "unit": "%C2%B0C", "editable": 0},
			{"id": 304, "node_id": 30, "type": 98, "instance": 1, "current_value": 20, "unit": "%C2%B0C", "editable": 0},
			{"id": 305, "node_id": 30, "type": 14, "instance": 0, "current_value": 0, "editable": 0},
			{"id": 306, "node_id": 30, "type": 14, "instance": 1, "current_value": 1, "editable": 0}
		]
	}`

	brainNode = `{
		"id": -1, "name": "homee",
		"attributes": [
			{"id": 1, "node_id": -1, "type": 205, "current_value": 2, "editable": 1},
			{"id": 2, "node_id": -1, "type": 241, "current_value": 1700000000, "editable": 0},
			{"id": 3, "node_id": -1, "type": 242, "current_value": 1699960000, "editable": 0}
		]
	}`
)
