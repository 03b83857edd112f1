package broker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"sensor_gateway/internal/faults"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var errPublishTimeout = errors.New("publish not acknowledged in time")

// MQTT is a Client backed by the paho MQTT library. Reconnects are left
// to the process supervisor, so a lost connection surfaces from Loop.
type MQTT struct {
	client         mqtt.Client
	publishTimeout time.Duration

	mu   sync.Mutex
	lost error
}

// NewMQTT prepares a client for cfg without connecting.
func NewMQTT(cfg Config) *MQTT {
	cfg = cfg.withDefaults()
	m := &MQTT{publishTimeout: cfg.PublishTimeout}

	opts := mqtt.NewClientOptions().
		AddBroker("tcp://" + net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port))).
		SetClientID(cfg.ClientID).
		SetKeepAlive(60 * time.Second).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectionLostHandler(m.onConnectionLost)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	m.client = mqtt.NewClient(opts)
	return m
}

func newMQTTWithClient(c mqtt.Client, publishTimeout time.Duration) *MQTT {
	return &MQTT{client: c, publishTimeout: publishTimeout}
}

func (m *MQTT) onConnectionLost(_ mqtt.Client, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lost = err
}

// Connect opens the session, giving up when ctx ends.
func (m *MQTT) Connect(ctx context.Context) error {
	token := m.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return faults.Connection("mqtt connect", ctx.Err())
	}
	if err := token.Error(); err != nil {
		return faults.Connection("mqtt connect", err)
	}
	return nil
}

// Loop reports a lost session. Keepalive pings run on paho's own goroutines.
func (m *MQTT) Loop(time.Duration) error {
	m.mu.Lock()
	lost := m.lost
	m.mu.Unlock()
	if lost != nil {
		return faults.Connection("mqtt connection lost", lost)
	}
	if !m.client.IsConnectionOpen() {
		return faults.Connection("mqtt session", errors.New("not connected"))
	}
	return nil
}

// Publish sends payload with QoS 0 and waits for it to be written.
func (m *MQTT) Publish(topic, payload string) error {
	token := m.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(m.publishTimeout) {
		return faults.Connection(fmt.Sprintf("mqtt publish %s", topic), errPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return faults.Connection(fmt.Sprintf("mqtt publish %s", topic), err)
	}
	return nil
}

func (m *MQTT) Disconnect() {
	m.client.Disconnect(250)
}
