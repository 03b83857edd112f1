package service

import (
	"context"
	"math/rand/v2"
	"time"

	"sensor_gateway/internal/logger"
	"sensor_gateway/internal/packet"
)

// ----------- Simulation constants -----------
const (
	HumidityMinPct   = 20.0
	HumidityMaxPct   = 90.0
	HumidityStepPct  = 1.5
	TemperatureMinC  = -10.0
	TemperatureMaxC  = 40.0
	TemperatureStepC = 0.4
	CO2MinPPM        = 400
	CO2MaxPPM        = 2000
	CO2StepPPM       = 40
	BatteryFullV     = 4.2
	BatteryEmptyV    = 3.3
	BatteryDrainV    = 0.0005 // per frame
	LuxMax           = 1000.0
	LuxStep          = 25.0
	RSSIMinDBm       = -95
	RSSIMaxDBm       = -40
)

// FrameSink accepts frames as if they arrived over the air. radio.Stub implements it.
type FrameSink interface {
	Inject(frame []byte, rssi int)
}

// SimulatorService plays a sensor node: every tick it random-walks its
// measurements and injects the encoded frame into the sink.
type SimulatorService struct {
	sink  FrameSink
	topic string
	rnd   *rand.Rand
	log   *logger.Logger

	state packet.Measurements
}

// NewSimulatorService returns a simulator starting from typical indoor values.
func NewSimulatorService(sink FrameSink, topic string, seed uint64, log *logger.Logger) *SimulatorService {
	if log == nil {
		log = logger.Nop()
	}
	return &SimulatorService{
		sink:  sink,
		topic: topic,
		rnd:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		log:   log,
		state: packet.Measurements{
			Humidity:     45,
			Temperature:  21,
			CO2:          600,
			BatteryLevel: BatteryFullV,
			Lux:          300,
		},
	}
}

// Run ticks at the given interval until ctx is canceled.
func (s *SimulatorService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			frame, rssi, err := s.step()
			if err != nil {
				s.log.Errorw("simulator: encode frame", "topic", s.topic, "err", err)
				continue
			}
			s.sink.Inject(frame, rssi)
		}
	}
}

// step advances the simulated sensor by one reading.
func (s *SimulatorService) step() ([]byte, int, error) {
	m := &s.state
	m.Humidity = float32(s.walk(float64(m.Humidity), HumidityStepPct, HumidityMinPct, HumidityMaxPct))
	m.Temperature = float32(s.walk(float64(m.Temperature), TemperatureStepC, TemperatureMinC, TemperatureMaxC))
	m.CO2 = uint32(s.walk(float64(m.CO2), CO2StepPPM, CO2MinPPM, CO2MaxPPM))
	m.Lux = float32(s.walk(float64(m.Lux), LuxStep, 0, LuxMax))
	m.BatteryLevel = float32(drain(float64(m.BatteryLevel)))

	frame, err := packet.Encode(s.topic, *m)
	if err != nil {
		return nil, 0, err
	}
	rssi := RSSIMinDBm + s.rnd.IntN(RSSIMaxDBm-RSSIMinDBm+1)
	return frame, rssi, nil
}

// walk moves v by up to ±step and clamps the result to [lo, hi].
func (s *SimulatorService) walk(v, step, lo, hi float64) float64 {
	return clamp(v+(s.rnd.Float64()*2-1)*step, lo, hi)
}

// drain lowers the battery voltage and swaps in a fresh cell when empty.
func drain(v float64) float64 {
	v -= BatteryDrainV
	if v < BatteryEmptyV {
		return BatteryFullV
	}
	return v
}

// helpers
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
