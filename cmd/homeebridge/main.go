// Gray Logic homee bridge
//
// This is the entry point of the bridge between a homee hub and the Gray
// Logic MQTT bus. It keeps one authenticated session with the hub, publishes
// node state and discovery messages, executes commands received over MQTT,
// and optionally records numeric attribute values in InfluxDB and serves a
// local HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-homee/internal/api"
	bridge "github.com/nerrad567/gray-logic-homee/internal/bridges/homee"
	"github.com/nerrad567/gray-logic-homee/internal/homee/session"
	"github.com/nerrad567/gray-logic-homee/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-homee/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-homee/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-homee/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting homee bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	hubClient := session.NewClient(hubConfig(cfg.Homee))
	hubClient.SetLogger(log)
	hubClient.SetReconnectInterval(cfg.Homee.ReconnectDelayDuration())

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	homeeBridge, err := startBridge(ctx, cfg, hubClient, mqttClient, influxClient, log)
	if err != nil {
		return fmt.Errorf("starting homee bridge: %w", err)
	}
	defer func() {
		log.Info("stopping homee bridge")
		homeeBridge.Stop()
	}()

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected, republishing node state")
		go func() {
			if resyncErr := homeeBridge.Resync(ctx); resyncErr != nil {
				log.Warn("resync after MQTT reconnect failed", "error", resyncErr)
			}
		}()
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// The initial snapshot flows through the bridge's observers.
	if err := hubClient.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to homee: %w", err)
	}
	defer func() {
		log.Info("disconnecting from homee")
		if closeErr := hubClient.Disconnect(); closeErr != nil {
			log.Error("error closing homee session", "error", closeErr)
		}
	}()
	log.Info("homee connected", "address", cfg.Homee.Address, "nodes", hubClient.Stats().Devices)

	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log,
			Nodes:   hubClient,
			Bridge:  homeeBridge,
			MQTT:    mqttClient,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if apiErr = server.Start(ctx); apiErr != nil {
			return fmt.Errorf("starting API server: %w", apiErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	if err := healthCheck(ctx, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, listening for hub events")

	if err := hubClient.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("listening to homee: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")
	log.Info("homee bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// hubConfig converts the YAML hub settings into a session configuration.
func hubConfig(h config.HomeeConfig) session.Config {
	return session.Config{
		Address:        h.Address,
		Username:       h.Username,
		Password:       h.Password,
		Port:           h.Port,
		DeviceName:     h.DeviceName,
		HardwareID:     h.HardwareID,
		IOTimeout:      h.IOTimeoutDuration(),
		PollInterval:   h.PollIntervalDuration(),
		ResponseWindow: h.ResponseWindowDuration(),
	}
}

// startBridge builds the bridge and subscribes it to the bus. It must run
// before the hub session connects so the initial snapshot is published.
func startBridge(
	ctx context.Context,
	cfg *config.Config,
	hubClient *session.Client,
	mqttClient *mqtt.Client,
	influxClient *influxdb.Client,
	log *logging.Logger,
) (*bridge.Bridge, error) {
	opts := bridge.BridgeOptions{
		MQTTClient:     &mqttBridgeAdapter{client: mqttClient},
		Hub:            hubClient,
		Events:         hubClient.Session(),
		Logger:         log,
		Version:        version,
		HubAddress:     cfg.Homee.Address,
		HealthInterval: cfg.GetHealthInterval(),
		Discovery:      cfg.Bridge.Discovery,
	}
	// A nil *influxdb.Client must not become a non-nil interface.
	if influxClient != nil && cfg.Bridge.Metrics {
		opts.Metrics = influxClient
	}

	b, err := bridge.NewBridge(opts)
	if err != nil {
		return nil, err
	}
	if err := b.Start(ctx); err != nil {
		return nil, err
	}
	log.Info("homee bridge started",
		"discovery", cfg.Bridge.Discovery,
		"metrics", opts.Metrics != nil,
	)
	return b, nil
}

// mqttBridgeAdapter adapts *mqtt.Client to bridge.MQTTClient, whose
// handlers do not return errors.
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when InfluxDB is disabled.
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
