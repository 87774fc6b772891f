package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementAttributes = "homee_attributes"
	measurementDevice     = "device_metrics"
	measurementEnergy     = "energy"
)

// AttributeSample is one numeric attribute reading from a homee node.
type AttributeSample struct {
	NodeID      int
	NodeName    string
	AttributeID int
	Type        string // attribute type name, e.g. "Temperature"
	Instance    int
	Unit        string
	Value       float64

	// Time is when the hub last changed the value. Zero means now.
	Time time.Time
}

// WriteAttribute records an attribute reading.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - s: The attribute reading; a zero Time is stamped with the current time
func (c *Client) WriteAttribute(s AttributeSample) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(attributePoint(s))
}

func attributePoint(s AttributeSample) *write.Point {
	tags := map[string]string{
		"node_id":      strconv.Itoa(s.NodeID),
		"attribute_id": strconv.Itoa(s.AttributeID),
		"type":         s.Type,
		"instance":     strconv.Itoa(s.Instance),
	}
	if s.NodeName != "" {
		tags["node_name"] = s.NodeName
	}
	if s.Unit != "" {
		tags["unit"] = s.Unit
	}

	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	return write.NewPoint(
		measurementAttributes,
		tags,
		map[string]interface{}{"value": s.Value},
		ts,
	)
}

// WriteDeviceMetric writes a single node-level measurement.
//
// Example:
//
//	client.WriteDeviceMetric("30", "battery_percent", 70)
//
// Parameters:
//   - deviceID: Node address as published on the bus
//   - measurement: Metric name, e.g. "battery_percent"
//   - value: The measured value
func (c *Client) WriteDeviceMetric(deviceID string, measurement string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		measurementDevice,
		map[string]string{
			"device_id":   deviceID,
			"measurement": measurement,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteEnergyMetric writes an energy consumption measurement.
// energyKWh is omitted when it is not positive.
func (c *Client) WriteEnergyMetric(deviceID string, powerWatts float64, energyKWh float64) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(energyPoint(deviceID, powerWatts, energyKWh))
}

func energyPoint(deviceID string, powerWatts float64, energyKWh float64) *write.Point {
	fields := map[string]interface{}{
		"power_watts": powerWatts,
	}
	if energyKWh > 0 {
		fields["energy_kwh"] = energyKWh
	}

	return write.NewPoint(
		measurementEnergy,
		map[string]string{
			"device_id": deviceID,
		},
		fields,
		time.Now(),
	)
}
