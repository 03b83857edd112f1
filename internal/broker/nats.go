package broker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"sensor_gateway/internal/faults"

	"github.com/nats-io/nats.go"
)

// NATS is a Client publishing to NATS subjects. Topic separators '/'
// become subject tokens, so "sensors/room1" is published as "sensors.room1".
type NATS struct {
	url  string
	opts []nats.Option
	conn *nats.Conn
}

// NewNATS prepares a client for cfg without connecting.
func NewNATS(cfg Config) *NATS {
	cfg = cfg.withDefaults()
	opts := []nats.Option{
		nats.Name(cfg.ClientID),
		nats.Timeout(cfg.ConnectTimeout),
		nats.NoReconnect(),
	}
	if cfg.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}
	return &NATS{
		url:  "nats://" + net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port)),
		opts: opts,
	}
}

func (n *NATS) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return faults.Connection("nats connect", err)
	}
	conn, err := nats.Connect(n.url, n.opts...)
	if err != nil {
		return faults.Connection("nats connect", err)
	}
	n.conn = conn
	return nil
}

// Loop flushes buffered publishes, waiting at most timeout for the server.
func (n *NATS) Loop(timeout time.Duration) error {
	if n.conn == nil || !n.conn.IsConnected() {
		return faults.Connection("nats session", errors.New("not connected"))
	}
	if pending, err := n.conn.Buffered(); err == nil && pending == 0 {
		return nil
	}
	if err := n.conn.FlushTimeout(timeout); err != nil {
		return faults.Connection("nats flush", err)
	}
	return nil
}

func (n *NATS) Publish(topic, payload string) error {
	if n.conn == nil {
		return faults.Connection("nats publish", errors.New("not connected"))
	}
	subject := topicToSubject(topic)
	if err := n.conn.Publish(subject, []byte(payload)); err != nil {
		return faults.Connection(fmt.Sprintf("nats publish %s", subject), err)
	}
	return nil
}

func (n *NATS) Disconnect() {
	if n.conn != nil {
		n.conn.Close()
	}
}

func topicToSubject(topic string) string {
	return strings.ReplaceAll(strings.Trim(topic, "/"), "/", ".")
}
