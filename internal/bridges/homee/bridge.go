package homee

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"time"

	hub "github.com/nerrad567/gray-logic-homee/internal/homee"
	"github.com/nerrad567/gray-logic-homee/internal/homee/attribute"
	"github.com/nerrad567/gray-logic-homee/internal/homee/session"
	"github.com/nerrad567/gray-logic-homee/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-homee/internal/infrastructure/mqtt"
)

const (
	// commandTimeout bounds one command, including the node lookup.
	commandTimeout = 5 * time.Second

	// resyncTimeout bounds a full state and discovery republish.
	resyncTimeout = 30 * time.Second

	// batteryMeasurement is the device metric written for battery levels.
	batteryMeasurement = "battery_percent"

	qosAtLeastOnce byte = 1
)

// Bridge translates between a homee hub session and the Gray Logic MQTT bus:
//   - attribute changes reported by the hub become retained state messages
//   - node descriptions become retained discovery messages
//   - commands from Core become attribute change requests on the hub
//
// Numeric attribute values are optionally recorded in InfluxDB.
//
// Thread Safety: All methods are safe for concurrent use. The change
// handlers run on the hub receive loop and must not call back into the
// hub client.
type Bridge struct {
	mqtt      MQTTClient
	hub       HubClient
	events    EventSource
	metrics   MetricsWriter
	health    *HealthReporter
	discovery bool

	// State cache for change detection, keyed by node then state key.
	stateCache   map[int]map[string]any
	stateCacheMu sync.Mutex

	commandsHandled uint64
	commandsFailed  uint64
	statsMu         sync.Mutex

	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the subset of the bus client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	IsConnected() bool
}

// HubClient is the hub session as seen by the bridge. *session.Client
// satisfies it.
type HubClient interface {
	HubStatus
	Node(ctx context.Context, id int) (*hub.Device, error)
	Nodes(ctx context.Context) ([]*hub.Device, error)
	RefreshNodes(ctx context.Context) error
}

// EventSource delivers registry changes. *session.Session satisfies it.
type EventSource interface {
	OnPropertyChange(fn hub.PropertyObserver)
	OnDeviceChange(fn hub.DeviceObserver)
}

// MetricsWriter records numeric attribute values. *influxdb.Client satisfies it.
type MetricsWriter interface {
	WriteAttribute(s influxdb.AttributeSample)
	WriteDeviceMetric(deviceID string, measurement string, value float64)
	WriteEnergyMetric(deviceID string, powerWatts float64, energyKWh float64)
}

// Logger is the structured logger used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	MQTTClient MQTTClient
	Hub        HubClient

	// Events must be registered before the hub session connects.
	Events EventSource

	// Metrics is optional. If nil, no time-series data is written.
	Metrics MetricsWriter

	// Logger is optional.
	Logger Logger

	// Version is reported in health messages.
	Version string

	// HubAddress is reported in health messages.
	HubAddress string

	HealthInterval time.Duration

	// Discovery enables retained discovery messages per node.
	Discovery bool
}

// NewBridge creates a new bridge instance. Call Start to begin operation.
//
// Parameters:
//   - opts: Hub, MQTT client and optional metrics writer and logger
//
// Returns:
//   - *Bridge: Bridge ready to Start
//   - error: If a required dependency is missing
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Hub == nil {
		return nil, fmt.Errorf("hub client is required")
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		mqtt:       opts.MQTTClient,
		hub:        opts.Hub,
		events:     opts.Events,
		metrics:    opts.Metrics,
		discovery:  opts.Discovery,
		stateCache: make(map[int]map[string]any),
		done:       make(chan struct{}),
		ctx:        ctx,
		ctxCancel:  ctxCancel,
		logger:     opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		Version:   opts.Version,
		Address:   opts.HubAddress,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Hub:       opts.Hub,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start registers the change handlers, subscribes to commands and starts
// health reporting.
//
// Parameters:
//   - ctx: Lifetime of the health reporter
//
// Returns:
//   - error: If the command subscription fails
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	if b.events != nil {
		b.events.OnPropertyChange(b.HandlePropertyChange)
		b.events.OnDeviceChange(b.HandleDeviceChange)
	}

	commandTopic := mqtt.Topics{}.BridgeCommands(Protocol)
	if err := b.mqtt.Subscribe(commandTopic, qosAtLeastOnce, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	b.health.Start(ctx)

	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish health status", err)
	}

	b.logInfo("bridge started", "discovery", b.discovery, "metrics", b.metrics != nil)
	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.health.Stop()
		b.wg.Wait()
		b.logInfo("bridge stopped")
	})
}

func (b *Bridge) stopped() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// HandleDeviceChange publishes discovery and a full state snapshot for a
// node the hub has (re)described.
func (b *Bridge) HandleDeviceChange(d *hub.Device) {
	if d == nil || b.stopped() {
		return
	}

	if b.discovery {
		b.publishDiscovery(d)
	}

	state := buildState(d)
	b.replaceCachedState(d.ID(), state)
	b.publishState(d, state)

	if b.metrics != nil {
		for _, p := range d.Properties() {
			b.recordMetrics(d, p)
		}
	}
}

// HandlePropertyChange publishes the node's state after one attribute
// changed. Changes outside the value, such as a new timestamp, are not
// republished.
func (b *Bridge) HandlePropertyChange(d *hub.Device, p *hub.Property) {
	if d == nil || p == nil || b.stopped() {
		return
	}

	if b.stateUnchanged(d.ID(), stateKey(p.Name(), p.Instance()), p.Value()) {
		return
	}

	state := buildState(d)
	b.replaceCachedState(d.ID(), state)
	b.publishState(d, state)

	if b.metrics != nil {
		b.recordMetrics(d, p)
	}
}

// Resync republishes discovery and state for every known node, for use
// after the broker connection is re-established.
func (b *Bridge) Resync(ctx context.Context) error {
	if !b.hub.IsConnected() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, resyncTimeout)
	defer cancel()

	nodes, err := b.hub.Nodes(ctx)
	if err != nil {
		return fmt.Errorf("listing nodes: %w", err)
	}
	for _, d := range nodes {
		b.HandleDeviceChange(d)
	}
	b.logInfo("resynced nodes", "count", len(nodes))
	return nil
}

func (b *Bridge) publishState(d *hub.Device, state map[string]any) {
	address := nodeAddress(d.ID())
	payload, err := json.Marshal(NewStateMessage(address, address, state))
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}
	if err := b.mqtt.Publish(mqtt.Topics{}.BridgeState(Protocol, address), payload, qosAtLeastOnce, true); err != nil {
		b.logError("failed to publish state", err)
	}
}

func (b *Bridge) publishDiscovery(d *hub.Device) {
	address := nodeAddress(d.ID())
	payload, err := json.Marshal(NewDiscoveryMessage(d))
	if err != nil {
		b.logError("failed to marshal discovery", err)
		return
	}
	if err := b.mqtt.Publish(mqtt.Topics{}.BridgeDiscovery(Protocol, address), payload, qosAtLeastOnce, true); err != nil {
		b.logError("failed to publish discovery", err)
	}
}

// recordMetrics writes a numeric attribute, plus energy and battery series
// for the attribute types that have them.
func (b *Bridge) recordMetrics(d *hub.Device, p *hub.Property) {
	value, ok := numeric(p.Value())
	if !ok {
		return
	}

	address := nodeAddress(d.ID())
	b.metrics.WriteAttribute(influxdb.AttributeSample{
		NodeID:      d.ID(),
		NodeName:    d.Name(),
		AttributeID: p.ID(),
		Type:        p.Name(),
		Instance:    p.Instance(),
		Unit:        p.Unit(),
		Value:       value,
		Time:        lastChanged(p),
	})

	switch p.Type() {
	case attribute.CurrentEnergyUse:
		var kwh float64
		if acc, err := d.PropertyByCode(attribute.AccumulatedEnergyUse, p.Instance()); err == nil && acc != nil {
			kwh, _ = numeric(acc.Value())
		}
		b.metrics.WriteEnergyMetric(address, value, kwh)
	case attribute.BatteryLevel:
		b.metrics.WriteDeviceMetric(address, batteryMeasurement, value)
	}
}

// lastChanged returns the hub's change time for p, or zero when absent.
func lastChanged(p *hub.Property) time.Time {
	ts, ok := numeric(p.Field("last_changed"))
	if !ok || ts <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(ts), 0)
}

// handleMQTTMessage routes messages arriving on the command subscription.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	if b.stopped() {
		return
	}

	t, ok := mqtt.ParseBridgeTopic(topic)
	if !ok || t.Category != mqtt.CategoryCommand || t.Protocol != Protocol {
		b.logError("invalid topic format", fmt.Errorf("topic: %s", topic))
		return
	}

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logError("failed to parse command", err)
		return
	}
	if cmd.DeviceID == "" {
		cmd.DeviceID = t.Address
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"node", t.Address,
		"command", cmd.Command)

	b.wg.Add(1)
	defer b.wg.Done()

	if err := b.executeCommand(cmd, t.Address); err != nil {
		b.countCommand(false)
		b.publishAckError(cmd, t.Address, err)
		return
	}
	b.countCommand(true)
	b.publishAck(cmd, t.Address, AckAccepted)
}

// executeCommand translates a command into hub requests. The hub confirms
// a change with a later attribute event, which is published as state.
func (b *Bridge) executeCommand(cmd CommandMessage, address string) error {
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	if cmd.Command == "refresh" {
		return b.hub.RefreshNodes(ctx)
	}

	nodeID, err := strconv.Atoi(address)
	if err != nil {
		return fmt.Errorf("%w: node address %q", ErrInvalidParameter, address)
	}
	d, err := b.hub.Node(ctx, nodeID)
	if err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("%w: %d", ErrUnknownNode, nodeID)
	}

	instance, err := intParam(cmd.Parameters, "instance", 0)
	if err != nil {
		return err
	}

	switch cmd.Command {
	case "on", "off":
		sw, ok := d.SwitchBinary()
		if !ok {
			return fmt.Errorf("%w: node %d has no switch", hub.ErrNotSupported, nodeID)
		}
		return sw.Set(ctx, attribute.OnOff.String(), cmd.Command == "on", instance)
	case "dim":
		level, err := floatParam(cmd.Parameters, "level")
		if err != nil {
			return err
		}
		if level < 0 || level > 100 {
			return fmt.Errorf("%w: level must be 0-100, got %.2f", ErrInvalidParameter, level)
		}
		return d.RequestChange(ctx, attribute.DimmingLevel.String(), level, instance)
	case "set":
		name, ok := cmd.Parameters["attribute"].(string)
		if !ok || name == "" {
			return fmt.Errorf("%w: missing 'attribute'", ErrInvalidParameter)
		}
		value, ok := cmd.Parameters["value"]
		if !ok {
			return fmt.Errorf("%w: missing 'value'", ErrInvalidParameter)
		}
		return d.RequestChange(ctx, name, value, instance)
	case "mode":
		if _, ok := d.HomeeBrain(); !ok {
			return fmt.Errorf("%w: node %d is not the hub", hub.ErrNotSupported, nodeID)
		}
		idx, err := modeIndex(cmd.Parameters["mode"])
		if err != nil {
			return err
		}
		return d.RequestChange(ctx, attribute.HomeeMode.String(), float64(idx), 0)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Command)
	}
}

func modeIndex(v any) (int, error) {
	name, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("%w: 'mode' must be a string", ErrInvalidParameter)
	}
	for i, m := range hub.HomeeModes {
		if m == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidParameter, name)
}

func intParam(params map[string]any, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	f, ok := numeric(v)
	if !ok || f != float64(int(f)) {
		return 0, fmt.Errorf("%w: '%s' must be an integer", ErrInvalidParameter, key)
	}
	return int(f), nil
}

func floatParam(params map[string]any, key string) (float64, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing '%s'", ErrInvalidParameter, key)
	}
	f, ok := numeric(v)
	if !ok {
		return 0, fmt.Errorf("%w: '%s' must be a number", ErrInvalidParameter, key)
	}
	return f, nil
}

func (b *Bridge) publishAck(cmd CommandMessage, address string, status AckStatus) {
	b.sendAck(NewAckMessage(cmd, status, address), address)
}

func (b *Bridge) publishAckError(cmd CommandMessage, address string, err error) {
	code := ackCode(err)
	b.sendAck(NewAckError(cmd, address, code, err.Error()), address)
	b.logWarn("command failed", "command_id", cmd.ID, "node", address, "code", code, "error", err)
}

func (b *Bridge) sendAck(ack AckMessage, address string) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}
	if err := b.mqtt.Publish(mqtt.Topics{}.BridgeAck(Protocol, address), payload, qosAtLeastOnce, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// stateUnchanged reports whether key already holds value for the node,
// recording value when it does not.
func (b *Bridge) stateUnchanged(nodeID int, key string, value any) bool {
	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()

	node := b.stateCache[nodeID]
	if node == nil {
		node = make(map[string]any)
		b.stateCache[nodeID] = node
	}
	if cached, ok := node[key]; ok && reflect.DeepEqual(cached, value) {
		return true
	}
	node[key] = value
	return false
}

func (b *Bridge) replaceCachedState(nodeID int, state map[string]any) {
	cached := make(map[string]any, len(state))
	for k, v := range state {
		cached[k] = v
	}

	b.stateCacheMu.Lock()
	b.stateCache[nodeID] = cached
	b.stateCacheMu.Unlock()
}

// ClearStateCache forgets every cached node state.
func (b *Bridge) ClearStateCache() {
	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()
	b.stateCache = make(map[int]map[string]any)
}

func (b *Bridge) countCommand(ok bool) {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	b.commandsHandled++
	if !ok {
		b.commandsFailed++
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}

// BridgeMetrics is the bridge summary served by the API.
type BridgeMetrics struct {
	Connected       bool          `json:"connected"`
	MQTTConnected   bool          `json:"mqtt_connected"`
	Status          string        `json:"status"`
	DevicesManaged  int           `json:"devices_managed"`
	CommandsHandled uint64        `json:"commands_handled"`
	CommandsFailed  uint64        `json:"commands_failed"`
	Hub             session.Stats `json:"hub"`
}

// GetMetrics returns current bridge metrics.
func (b *Bridge) GetMetrics() BridgeMetrics {
	stats := b.hub.Stats()
	status, _ := b.health.determineStatus()

	b.statsMu.Lock()
	handled, failed := b.commandsHandled, b.commandsFailed
	b.statsMu.Unlock()

	return BridgeMetrics{
		Connected:       stats.Connected,
		MQTTConnected:   b.mqtt.IsConnected(),
		Status:          string(status),
		DevicesManaged:  stats.Devices,
		CommandsHandled: handled,
		CommandsFailed:  failed,
		Hub:             stats,
	}
}
