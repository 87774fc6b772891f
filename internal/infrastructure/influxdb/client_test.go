package influxdb

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-homee/internal/infrastructure/config"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "graylogic-dev-token",
		Org:           "graylogic",
		Bucket:        "homee",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// skipIfNoInfluxDB skips unless RUN_INTEGRATION is set and a server answers.
func skipIfNoInfluxDB(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		t.Skip("set RUN_INTEGRATION to run against a local InfluxDB")
	}
	client, err := Connect(context.Background(), testConfig())
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	client.Close()
}

// fakeWriteAPI captures points instead of sending them.
type fakeWriteAPI struct {
	api.WriteAPI

	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (f *fakeWriteAPI) WritePoint(p *write.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, p)
}

func (f *fakeWriteAPI) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
}

func newFakeClient() (*Client, *fakeWriteAPI) {
	w := &fakeWriteAPI{}
	return newClient(nil, w, testConfig()), w
}

func tagMap(p *write.Point) map[string]string {
	out := make(map[string]string)
	for _, tag := range p.TagList() {
		out[tag.Key] = tag.Value
	}
	return out
}

func fieldMap(p *write.Point) map[string]interface{} {
	out := make(map[string]interface{})
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

// =============================================================================
// Unit Tests
// =============================================================================

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := Connect(context.Background(), cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestWriteAttribute(t *testing.T) {
	client, w := newFakeClient()
	changed := time.Unix(1700000000, 0)

	client.WriteAttribute(AttributeSample{
		NodeID:      30,
		NodeName:    "Hall",
		AttributeID: 303,
		Type:        "IndoorTemperature",
		Instance:    1,
		Unit:        "°C",
		Value:       20.5,
		Time:        changed,
	})

	if len(w.points) != 1 {
		t.Fatalf("points = %d, want 1", len(w.points))
	}
	p := w.points[0]
	if p.Name() != measurementAttributes {
		t.Errorf("measurement = %q, want %q", p.Name(), measurementAttributes)
	}
	if !p.Time().Equal(changed) {
		t.Errorf("time = %v, want %v", p.Time(), changed)
	}

	tags := tagMap(p)
	want := map[string]string{
		"node_id":      "30",
		"node_name":    "Hall",
		"attribute_id": "303",
		"type":         "IndoorTemperature",
		"instance":     "1",
		"unit":         "°C",
	}
	for k, v := range want {
		if tags[k] != v {
			t.Errorf("tag %s = %q, want %q", k, tags[k], v)
		}
	}
	if got := fieldMap(p)["value"]; got != 20.5 {
		t.Errorf("value = %v, want 20.5", got)
	}
}

func TestWriteAttribute_OmitsEmptyTags(t *testing.T) {
	client, w := newFakeClient()
	client.WriteAttribute(AttributeSample{NodeID: 12, AttributeID: 121, Type: "CurrentEnergyUse", Value: 3})

	tags := tagMap(w.points[0])
	if _, ok := tags["unit"]; ok {
		t.Error("empty unit should not be tagged")
	}
	if _, ok := tags["node_name"]; ok {
		t.Error("empty node name should not be tagged")
	}
	if w.points[0].Time().IsZero() {
		t.Error("zero sample time should default to now")
	}
}

func TestWriteEnergyMetric(t *testing.T) {
	client, w := newFakeClient()

	client.WriteEnergyMetric("12", 150.5, 12.34)
	client.WriteEnergyMetric("12", 100.0, 0)

	if len(w.points) != 2 {
		t.Fatalf("points = %d, want 2", len(w.points))
	}
	full := fieldMap(w.points[0])
	if full["power_watts"] != 150.5 || full["energy_kwh"] != 12.34 {
		t.Errorf("fields = %v", full)
	}
	if _, ok := fieldMap(w.points[1])["energy_kwh"]; ok {
		t.Error("zero energy should be omitted")
	}
}

func TestWriteDeviceMetric(t *testing.T) {
	client, w := newFakeClient()
	client.WriteDeviceMetric("30", "battery_percent", 70)

	p := w.points[0]
	if p.Name() != measurementDevice {
		t.Errorf("measurement = %q", p.Name())
	}
	if tags := tagMap(p); tags["device_id"] != "30" || tags["measurement"] != "battery_percent" {
		t.Errorf("tags = %v", tags)
	}
}

func TestClose_StopsWrites(t *testing.T) {
	client, w := newFakeClient()

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1", w.flushes)
	}

	client.WriteAttribute(AttributeSample{NodeID: 1, Value: 1})
	client.WriteDeviceMetric("1", "m", 1)
	client.WriteEnergyMetric("1", 1, 1)
	client.Flush()
	if len(w.points) != 0 || w.flushes != 1 {
		t.Error("writes after Close() must be dropped")
	}

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestClose_Nil(t *testing.T) {
	var client *Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

func TestSetOnError(t *testing.T) {
	client, _ := newFakeClient()

	errCh := make(chan error, 1)
	client.SetOnError(func(err error) { errCh <- err })

	source := make(chan error, 1)
	source <- errors.New("write rejected")
	close(source)
	client.handleWriteErrors(source)

	select {
	case err := <-errCh:
		if err.Error() != "write rejected" {
			t.Errorf("callback error = %v", err)
		}
	default:
		t.Error("error callback not invoked")
	}
}

// =============================================================================
// Integration Tests
// =============================================================================

func TestIntegration_ConnectAndWrite(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := Connect(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	var writeErr error
	var mu sync.Mutex
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	client.WriteAttribute(AttributeSample{NodeID: 30, AttributeID: 301, Type: "BatteryLevel", Value: 60})
	client.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if writeErr != nil {
		t.Errorf("async write error = %v", writeErr)
	}
}

func TestIntegration_ConnectInvalidURL(t *testing.T) {
	skipIfNoInfluxDB(t)

	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	if _, err := Connect(context.Background(), cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}
