package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/garage-core/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "broker.local",
			Port:     8883,
			TLS:      true,
			ClientID: "garage-core-test",
		},
		Auth: config.MQTTAuthConfig{Username: "core", Password: "secret"},
		QoS:  1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	opts := buildClientOptions(cfg, "garage-core-test")

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://broker.local:8883" {
		t.Errorf("Servers = %v, want ssl://broker.local:8883", opts.Servers)
	}
	if opts.ClientID != "garage-core-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "core" || opts.Password != "secret" {
		t.Errorf("credentials not applied")
	}
	if !opts.CleanSession || !opts.AutoReconnect || !opts.ConnectRetry {
		t.Error("expected clean session with auto reconnect")
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig should be set when TLS is enabled")
	}
	if !opts.WillEnabled || opts.WillTopic != TopicSystemStatus || !opts.WillRetained {
		t.Errorf("LWT not configured: enabled=%v topic=%q retained=%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
}

func TestBuildClientOptions_PlainTCP(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = false
	cfg.Broker.Port = 1883
	cfg.Auth = config.MQTTAuthConfig{}

	opts := buildClientOptions(cfg, "id")
	if opts.Servers[0].String() != "tcp://broker.local:1883" {
		t.Errorf("Servers[0] = %v", opts.Servers[0])
	}
	if opts.Username != "" {
		t.Error("username should be empty without auth")
	}
}

func TestResolveClientID(t *testing.T) {
	cfg := testConfig()
	if got := resolveClientID(cfg); got != "garage-core-test" {
		t.Errorf("resolveClientID() = %q", got)
	}

	cfg.Broker.ClientID = ""
	a, b := resolveClientID(cfg), resolveClientID(cfg)
	if !strings.HasPrefix(a, clientIDPrefix) || len(a) != len(clientIDPrefix)+8 {
		t.Errorf("generated id = %q", a)
	}
	if a == b {
		t.Error("generated ids should differ")
	}
}

func TestStatusPayload(t *testing.T) {
	var body map[string]string
	if err := json.Unmarshal([]byte(statusPayload("offline", "c1", "graceful_shutdown")), &body); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if body["status"] != "offline" || body["client_id"] != "c1" || body["reason"] != "graceful_shutdown" {
		t.Errorf("payload = %v", body)
	}

	if err := json.Unmarshal([]byte(statusPayload("online", "c1", "")), &body); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if body["status"] != "online" {
		t.Errorf("payload = %v", body)
	}
}

func TestTopicValidation(t *testing.T) {
	publish := []struct {
		topic string
		ok    bool
	}{
		{"door/command", true},
		{"", false},
		{"door/+", false},
		{"door/#", false},
	}
	for _, tt := range publish {
		if err := validatePublishTopic(tt.topic); (err == nil) != tt.ok {
			t.Errorf("validatePublishTopic(%q) = %v", tt.topic, err)
		}
	}

	filters := []struct {
		filter string
		ok     bool
	}{
		{"door/status", true},
		{"door/+/state", true},
		{"door/#", true},
		{"#", true},
		{"", false},
		{"door/#/x", false},
		{"door/st+", false},
		{"door/st#", false},
	}
	for _, tt := range filters {
		if err := validateFilter(tt.filter); (err == nil) != tt.ok {
			t.Errorf("validateFilter(%q) = %v", tt.filter, err)
		}
	}
}

func TestDisconnectedClient(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	if c.IsConnected() {
		t.Error("zero client should not be connected")
	}
	if err := c.Publish("door/command", []byte("OPEN"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
	if err := c.Publish("", []byte("OPEN"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish(empty) error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("door/command", []byte("OPEN"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish(qos 3) error = %v, want ErrInvalidQoS", err)
	}
	big := make([]byte, maxPayloadSize+1)
	if err := c.Publish("door/command", big, 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish(big) error = %v, want ErrPublishFailed", err)
	}
	if err := c.Subscribe("door/status", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	handler := func(string, []byte) error { return nil }
	if err := c.Subscribe("door/status", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
	if c.HasSubscription("door/status") {
		t.Error("failed subscribe should not be tracked")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestCloseNil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

// brokerConfig returns a config for a live broker named by
// GARAGE_TEST_MQTT_BROKER (host:port), skipping the test otherwise.
func brokerConfig(t *testing.T) config.MQTTConfig {
	t.Helper()
	addr := os.Getenv("GARAGE_TEST_MQTT_BROKER")
	if addr == "" {
		t.Skip("GARAGE_TEST_MQTT_BROKER not set")
	}
	host, portStr, ok := strings.Cut(addr, ":")
	port, err := strconv.Atoi(portStr)
	if !ok || err != nil {
		t.Fatalf("GARAGE_TEST_MQTT_BROKER = %q, want host:port", addr)
	}
	return config.MQTTConfig{
		Broker:    config.MQTTBrokerConfig{Host: host, Port: port},
		QoS:       1,
		Reconnect: config.MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 5},
	}
}

func TestIntegration_PublishSubscribeRoundtrip(t *testing.T) {
	client, err := Connect(brokerConfig(t))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // test cleanup

	topic := "garage-test/" + client.ClientID() + "/command"
	var (
		mu  sync.Mutex
		got []string
	)
	done := make(chan struct{}, 1)
	err = client.Subscribe(topic, 1, func(_ string, payload []byte) error {
		mu.Lock()
		got = append(got, string(payload))
		mu.Unlock()
		done <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(topic) {
		t.Error("subscription not tracked")
	}

	if err := client.Publish(topic, []byte("CLOSE"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "CLOSE" {
		t.Errorf("received %v, want [CLOSE]", got)
	}
}
