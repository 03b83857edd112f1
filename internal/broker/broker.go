// Package broker publishes decoded readings to a message broker.
package broker

import (
	"context"
	"fmt"
	"time"
)

// Supported broker kinds.
const (
	KindMQTT = "mqtt"
	KindNATS = "nats"
)

// Client is the broker session used by the gateway loop.
type Client interface {
	Connect(ctx context.Context) error
	// Loop services the session for at most timeout and reports a broken connection.
	Loop(timeout time.Duration) error
	Publish(topic, payload string) error
	Disconnect()
}

// Config holds the broker endpoint and credentials.
type Config struct {
	Kind           string
	Address        string
	Port           int
	ClientID       string
	Username       string
	Password       string
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 2 * time.Second
	defaultClientID       = "radio-gateway"
)

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = defaultPublishTimeout
	}
	if c.ClientID == "" {
		c.ClientID = defaultClientID
	}
	return c
}

// New builds the client selected by cfg.Kind.
func New(cfg Config) (Client, error) {
	switch cfg.Kind {
	case "", KindMQTT:
		return NewMQTT(cfg), nil
	case KindNATS:
		return NewNATS(cfg), nil
	default:
		return nil, fmt.Errorf("unknown broker kind %q", cfg.Kind)
	}
}
