// Package rfm69 drives a HopeRF RFM69 packet radio over SPI, receiving
// RadioHead formatted packets.
package rfm69

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"sensor_gateway/internal/models"
	"sensor_gateway/internal/radio"

	gpiod "github.com/warthog618/go-gpiocdev"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Bus is the SPI connection to the module.
type Bus interface {
	Tx(w, r []byte) error
}

// ResetLine is the GPIO wired to the module's RESET pin.
type ResetLine interface {
	SetValue(value int) error
}

// Config describes the wiring and RF settings.
type Config struct {
	SPIPort      string // "" selects the first available port
	GPIOChip     string
	ResetOffset  int
	FrequencyMHz float64
	NodeAddress  byte
}

// Radio is a radio.Transport backed by an RFM69 module.
type Radio struct {
	mu    sync.Mutex
	bus   Bus
	reset ResetLine
	node  byte
	rssi  int

	poll    time.Duration
	closers []func() error
}

var _ radio.Transport = (*Radio)(nil)

// Open initialises the host drivers, opens the SPI port and reset line and
// brings the module into a known state.
func Open(cfg Config) (*Radio, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", cfg.SPIPort, err)
	}
	conn, err := port.Connect(2*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("connect spi: %w", err)
	}
	chip, err := gpiod.NewChip(cfg.GPIOChip)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("open chip %s: %w", cfg.GPIOChip, err)
	}
	line, err := chip.RequestLine(cfg.ResetOffset, gpiod.AsOutput(0))
	if err != nil {
		_ = chip.Close()
		_ = port.Close()
		return nil, fmt.Errorf("request reset pin %d: %w", cfg.ResetOffset, err)
	}

	r, err := New(conn, line, cfg.FrequencyMHz, cfg.NodeAddress)
	if err != nil {
		_ = line.Close()
		_ = chip.Close()
		_ = port.Close()
		return nil, err
	}
	r.closers = []func() error{line.Close, chip.Close, port.Close}
	return r, nil
}

// New configures a module reachable through bus. reset may be nil when the
// pin is not wired.
func New(bus Bus, reset ResetLine, frequencyMHz float64, node byte) (*Radio, error) {
	r := &Radio{bus: bus, reset: reset, node: node, poll: time.Millisecond}
	if err := r.hardReset(); err != nil {
		return nil, err
	}
	v, err := r.read(regVersion)
	if err != nil {
		return nil, err
	}
	if v != chipVersion {
		return nil, fmt.Errorf("unexpected RFM69 version 0x%02x, check wiring", v)
	}
	if err := r.configure(frequencyMHz); err != nil {
		return nil, fmt.Errorf("configure rfm69: %w", err)
	}
	return r, nil
}

func (r *Radio) hardReset() error {
	if r.reset == nil {
		return nil
	}
	if err := r.reset.SetValue(1); err != nil {
		return fmt.Errorf("assert reset: %w", err)
	}
	time.Sleep(100 * time.Microsecond)
	if err := r.reset.SetValue(0); err != nil {
		return fmt.Errorf("release reset: %w", err)
	}
	time.Sleep(5 * time.Millisecond)
	return nil
}

func (r *Radio) configure(frequencyMHz float64) error {
	if err := r.setMode(modeSleep); err != nil {
		return err
	}
	frf := uint32(frequencyMHz * 1e6 / fstep)
	br := uint16(fxosc / defaultBitrate)
	fdev := uint16(defaultFrequencyDeviation / fstep)

	steps := []struct{ reg, val byte }{
		{regFifoThresh, 0x8f},
		{regTestDagc, 0x30},
		{regTestPa1, 0x55},
		{regTestPa2, 0x70},
		{regSyncConfig, syncConfigDefault},
		{regSyncValue1, syncWord[0]},
		{regSyncValue1 + 1, syncWord[1]},
		{regPreambleMsb, 0},
		{regPreambleLsb, defaultPreamble},
		{regFrfMsb, byte(frf >> 16)},
		{regFrfMid, byte(frf >> 8)},
		{regFrfLsb, byte(frf)},
		{regDataModul, dataModulDefault},
		{regBitrateMsb, byte(br >> 8)},
		{regBitrateLsb, byte(br)},
		{regFdevMsb, byte(fdev >> 8)},
		{regFdevLsb, byte(fdev)},
		{regRxBw, rxBwDefault},
		{regAfcBw, rxBwDefault},
		{regPacketConfig1, packetConfig1Default},
		{regPayloadLength, maxPayload},
		{regPacketConfig2, 0},
	}
	for _, s := range steps {
		if err := r.write(s.reg, s.val); err != nil {
			return err
		}
	}
	return r.setMode(modeStandby)
}

// Receive listens for up to timeout and returns the payload of the next
// packet addressed to this node, without the RadioHead header.
func (r *Radio) Receive(timeout time.Duration) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.write(regDioMapping1, dioMappingRx); err != nil {
		return nil, err
	}
	if err := r.setMode(modeRx); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	for {
		flags, err := r.read(regIrqFlags2)
		if err != nil {
			return nil, err
		}
		if flags&irq2PayloadReady != 0 {
			break
		}
		if !time.Now().Before(deadline) {
			return nil, r.setMode(modeStandby)
		}
		time.Sleep(r.poll)
	}

	raw, err := r.read(regRssiValue)
	if err != nil {
		return nil, err
	}
	r.rssi = -int(raw) / 2
	if err := r.setMode(modeStandby); err != nil {
		return nil, err
	}
	return r.readFifo()
}

func (r *Radio) readFifo() ([]byte, error) {
	n, err := r.read(regFifo)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	buf, err := r.readBurst(regFifo, int(n))
	if err != nil {
		return nil, err
	}
	if len(buf) < headerSize {
		return nil, nil
	}
	to := buf[0]
	if r.node != broadcastAddress && to != broadcastAddress && to != r.node {
		return nil, nil
	}
	return buf[headerSize:], nil
}

func (r *Radio) LastRSSI() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rssi
}

// Info measures the die temperature and reads back the RF settings.
func (r *Radio) Info() (models.RadioInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	temp, err := r.temperature()
	if err != nil {
		return models.RadioInfo{}, err
	}
	frf, err := r.readBurst(regFrfMsb, 3)
	if err != nil {
		return models.RadioInfo{}, err
	}
	br, err := r.readBurst(regBitrateMsb, 2)
	if err != nil {
		return models.RadioInfo{}, err
	}
	fdev, err := r.readBurst(regFdevMsb, 2)
	if err != nil {
		return models.RadioInfo{}, err
	}
	frfVal := uint32(frf[0])<<16 | uint32(frf[1])<<8 | uint32(frf[2])
	brVal := uint16(br[0])<<8 | uint16(br[1])
	fdevVal := uint16(fdev[0])<<8 | uint16(fdev[1])

	info := models.RadioInfo{
		TemperatureC:         temp,
		FrequencyMHz:         float64(frfVal) * fstep / 1e6,
		FrequencyDeviationHz: float64(fdevVal) * fstep,
	}
	if brVal != 0 {
		info.BitrateBps = fxosc / float64(brVal)
	}
	return info, nil
}

func (r *Radio) temperature() (float64, error) {
	if err := r.write(regTemp1, temp1Start); err != nil {
		return 0, err
	}
	for i := 0; ; i++ {
		v, err := r.read(regTemp1)
		if err != nil {
			return 0, err
		}
		if v&temp1Running == 0 {
			break
		}
		if i >= 100 {
			return 0, errors.New("temperature measurement did not finish")
		}
		time.Sleep(100 * time.Microsecond)
	}
	raw, err := r.read(regTemp2)
	if err != nil {
		return 0, err
	}
	return 166 - float64(raw), nil
}

// SetEncryptionKey loads key into the AES engine and enables it.
func (r *Radio) SetEncryptionKey(key []byte) error {
	if len(key) != radio.KeySize {
		return fmt.Errorf("encryption key must be %d bytes, got %d", radio.KeySize, len(key))
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.setMode(modeStandby); err != nil {
		return err
	}
	if err := r.writeBurst(regAesKey1, key); err != nil {
		return err
	}
	cfg, err := r.read(regPacketConfig2)
	if err != nil {
		return err
	}
	return r.write(regPacketConfig2, cfg|packetConfig2Aes)
}

// Close puts the module to sleep and releases the bus and reset line.
func (r *Radio) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	errs := []error{r.setMode(modeSleep)}
	for _, c := range r.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func (r *Radio) setMode(mode byte) error {
	cur, err := r.read(regOpMode)
	if err != nil {
		return err
	}
	return r.write(regOpMode, cur&^0x1c|mode<<2)
}

func (r *Radio) read(reg byte) (byte, error) {
	b, err := r.readBurst(reg, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Radio) readBurst(reg byte, n int) ([]byte, error) {
	w := make([]byte, n+1)
	w[0] = reg & 0x7f
	rd := make([]byte, n+1)
	if err := r.bus.Tx(w, rd); err != nil {
		return nil, fmt.Errorf("spi read 0x%02x: %w", reg, err)
	}
	return rd[1:], nil
}

func (r *Radio) write(reg, val byte) error {
	return r.writeBurst(reg, []byte{val})
}

func (r *Radio) writeBurst(reg byte, vals []byte) error {
	w := make([]byte, len(vals)+1)
	w[0] = reg | 0x80
	copy(w[1:], vals)
	if err := r.bus.Tx(w, nil); err != nil {
		return fmt.Errorf("spi write 0x%02x: %w", reg, err)
	}
	return nil
}
