package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sensor_gateway/internal/broker"
	"sensor_gateway/internal/hexdump"
	"sensor_gateway/internal/indicator"
	"sensor_gateway/internal/logger"
	"sensor_gateway/internal/metrics"
	"sensor_gateway/internal/models"
	"sensor_gateway/internal/network"
	"sensor_gateway/internal/packet"
	"sensor_gateway/internal/radio"
	"sensor_gateway/internal/repository"

	"github.com/google/uuid"
)

// reasonSerializeFailed marks readings whose values have no JSON form.
const reasonSerializeFailed = "serialize-failed"

const (
	defaultPollTimeout       = 100 * time.Millisecond
	defaultBrokerLoopTimeout = time.Second
)

// GatewayConfig is the static part of the gateway setup.
type GatewayConfig struct {
	BootID            string
	WifiSSID          string
	WifiPassword      string
	Broker            string // display name, e.g. mqtt://host:1883
	LogTopic          string
	EncryptionKey     []byte
	AllowedTopics     packet.AllowedTopics
	PollTimeout       time.Duration
	BrokerLoopTimeout time.Duration
	MemoryLimitMB     int
}

// GatewayDeps are the collaborators the gateway drives.
type GatewayDeps struct {
	Radio     radio.Transport
	Broker    broker.Client
	Network   network.Associator
	Indicator *indicator.Activity
	Events    repository.EventRepo
	Readings  repository.ReadingRepo
	Metrics   *metrics.Metrics
	Log       *logger.Logger
}

// Gateway moves frames from the radio to the broker, one at a time.
type Gateway struct {
	cfg   GatewayConfig
	deps  GatewayDeps
	log   *logger.Logger
	guard *memGuard
	now   func() time.Time

	// verbose enables per-frame hex dumps. Fixed at construction.
	verbose bool

	board statusBoard
}

func NewGateway(cfg GatewayConfig, deps GatewayDeps) *Gateway {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if cfg.BrokerLoopTimeout <= 0 {
		cfg.BrokerLoopTimeout = defaultBrokerLoopTimeout
	}
	if deps.Network == nil {
		deps.Network = network.Preconfigured{}
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Indicator == nil {
		deps.Indicator = indicator.New(indicator.Discard{}, false, indicator.DefaultPulse, time.Now, deps.Log)
	}
	g := &Gateway{
		cfg:     cfg,
		deps:    deps,
		log:     deps.Log,
		guard:   newMemGuard(cfg.MemoryLimitMB),
		now:     time.Now,
		verbose: deps.Log.DebugEnabled(),
	}
	g.board.st = models.GatewayStatus{BootID: cfg.BootID, Broker: cfg.Broker}
	return g
}

// Serve runs the startup sequence followed by the receive loop. It only
// returns with the failure that stopped the gateway.
func (g *Gateway) Serve(ctx context.Context) error {
	if err := g.Start(ctx); err != nil {
		return err
	}
	return g.Run(ctx)
}

// Start joins the network, prepares the radio and connects to the broker.
func (g *Gateway) Start(ctx context.Context) error {
	g.log.Infow("connecting to wireless network", "ssid", g.cfg.WifiSSID)
	if err := g.deps.Network.Associate(ctx, g.cfg.WifiSSID, g.cfg.WifiPassword); err != nil {
		return err
	}

	if len(g.cfg.EncryptionKey) > 0 {
		g.log.Debugw("Setting encryption key")
		if err := g.deps.Radio.SetEncryptionKey(g.cfg.EncryptionKey); err != nil {
			return fmt.Errorf("set radio encryption key: %w", err)
		}
	}

	info, err := g.deps.Radio.Info()
	if err != nil {
		return fmt.Errorf("read radio diagnostics: %w", err)
	}
	g.log.Infow("radio ready",
		"temperature_c", info.TemperatureC,
		"frequency_mhz", info.FrequencyMHz,
		"bitrate_kbps", info.BitrateBps/1000,
		"frequency_deviation_hz", info.FrequencyDeviationHz,
	)

	g.log.Infow("connecting to broker", "broker", g.cfg.Broker)
	if err := g.deps.Broker.Connect(ctx); err != nil {
		return err
	}
	if g.cfg.LogTopic != "" {
		g.log = g.log.WithBrokerSink(g.deps.Broker, g.cfg.LogTopic)
		g.log.Infow("mirroring log to broker", "topic", g.cfg.LogTopic)
	}

	started := g.now().UTC()
	g.board.update(func(st *models.GatewayStatus) {
		st.Radio = info
		st.StartedAt = started
	})
	g.appendEvent(ctx, models.EventStart, "Gateway started", map[string]any{
		"boot_id": g.cfg.BootID,
		"broker":  g.cfg.Broker,
	})
	g.log.Infow("gateway started", "allowed_topics", len(g.cfg.AllowedTopics))
	return nil
}

// Run polls the broker session and the radio until one of them fails.
func (g *Gateway) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := g.deps.Broker.Loop(g.cfg.BrokerLoopTimeout); err != nil {
			return err
		}
		raw, err := g.deps.Radio.Receive(g.cfg.PollTimeout)
		if err != nil {
			return fmt.Errorf("radio receive: %w", err)
		}
		if raw == nil {
			if err := g.idle(); err != nil {
				return err
			}
			continue
		}
		if err := g.process(ctx, raw); err != nil {
			return err
		}
	}
}

func (g *Gateway) idle() error {
	if err := g.deps.Indicator.OnIdleTick(); err != nil {
		return err
	}
	g.board.update(func(st *models.GatewayStatus) { st.IndicatorOn = g.deps.Indicator.Lit() })
	return g.guard.check()
}

// process handles one frame. Rejected frames are dropped and do not end
// the loop; only publish and hardware failures are returned.
func (g *Gateway) process(ctx context.Context, raw []byte) error {
	start := g.now()
	rssi := g.deps.Radio.LastRSSI()

	if err := g.deps.Indicator.OnPacketReceived(); err != nil {
		return err
	}
	at := start.UTC()
	g.board.update(func(st *models.GatewayStatus) {
		st.PacketsReceived++
		st.LastRSSI = rssi
		st.LastPacketAt = &at
		st.IndicatorOn = g.deps.Indicator.Lit()
	})
	if g.deps.Metrics != nil {
		g.deps.Metrics.PacketsReceived.Inc()
		g.deps.Metrics.LastRSSI.Set(float64(rssi))
	}
	if g.verbose {
		g.log.Debugf("received %d bytes, rssi %d dBm\n%s", len(raw), rssi, hexdump.Dump(raw))
	}

	reading, err := packet.Decode(raw, g.cfg.AllowedTopics)
	if err != nil {
		var derr *packet.DecodingError
		if errors.As(err, &derr) {
			g.drop(ctx, string(derr.Reason), derr.Detail)
			return nil
		}
		return err
	}

	payload, err := reading.Payload()
	if err != nil {
		g.drop(ctx, reasonSerializeFailed, err.Error())
		return nil
	}

	if err := g.deps.Broker.Publish(reading.Topic, payload); err != nil {
		if g.deps.Metrics != nil {
			g.deps.Metrics.PublishErrors.Inc()
		}
		return err
	}
	g.log.Infow("published", "topic", reading.Topic, "payload", payload)

	g.board.update(func(st *models.GatewayStatus) { st.PacketsPublished++ })
	if g.deps.Metrics != nil {
		g.deps.Metrics.ReadingsPublished.WithLabelValues(reading.Topic).Inc()
		g.deps.Metrics.ProcessDuration.Observe(g.now().Sub(start).Seconds())
	}
	if g.deps.Readings != nil {
		err := g.deps.Readings.Upsert(ctx, models.LatestReading{
			Topic:      reading.Topic,
			Payload:    []byte(payload),
			RSSI:       rssi,
			ReceivedAt: at,
		})
		if err != nil {
			g.log.Warnw("failed to store latest reading", "topic", reading.Topic, "err", err)
		}
	}
	return nil
}

func (g *Gateway) drop(ctx context.Context, reason, detail string) {
	g.log.Warnw("packet dropped", "reason", reason, "detail", detail)
	g.board.update(func(st *models.GatewayStatus) { st.PacketsDropped++ })
	if g.deps.Metrics != nil {
		g.deps.Metrics.PacketsDropped.WithLabelValues(reason).Inc()
	}
	g.appendEvent(ctx, models.EventDrop, "Packet dropped: "+reason, map[string]any{
		"reason": reason,
		"detail": detail,
	})
}

// appendEvent stores an event. The event log is diagnostic only, so a
// storage failure is logged rather than returned.
func (g *Gateway) appendEvent(ctx context.Context, typ, desc string, meta map[string]any) {
	if g.deps.Events == nil {
		return
	}
	err := g.deps.Events.Append(ctx, models.GatewayEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  g.now().UTC(),
		Type:        typ,
		Description: desc,
		Metadata:    meta,
	})
	if err != nil {
		g.log.Warnw("failed to append event", "type", typ, "err", err)
	}
}

// Status returns a snapshot safe to read from other goroutines.
func (g *Gateway) Status() models.GatewayStatus {
	return g.board.snapshot()
}

// Disconnect closes the broker session. Used as a pre-restart hook.
func (g *Gateway) Disconnect(context.Context) error {
	g.deps.Broker.Disconnect()
	return nil
}

type statusBoard struct {
	mu sync.RWMutex
	st models.GatewayStatus
}

func (b *statusBoard) update(fn func(st *models.GatewayStatus)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.st)
}

func (b *statusBoard) snapshot() models.GatewayStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st := b.st
	if st.LastPacketAt != nil {
		at := *st.LastPacketAt
		st.LastPacketAt = &at
	}
	return st
}
