package rfm69

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBus emulates the register file and FIFO of the module.
type fakeBus struct {
	regs [0x80]byte
	fifo []byte
	err  error
}

func newFakeBus() *fakeBus {
	b := &fakeBus{}
	b.regs[regVersion] = chipVersion
	b.regs[regTemp2] = 141
	return b
}

func (b *fakeBus) Tx(w, r []byte) error {
	if b.err != nil {
		return b.err
	}
	addr := w[0] & 0x7f
	if w[0]&0x80 != 0 {
		for i, v := range w[1:] {
			if addr == regFifo {
				continue
			}
			b.regs[int(addr)+i] = v
		}
		return nil
	}
	for i := 1; i < len(r); i++ {
		switch {
		case addr == regFifo:
			if len(b.fifo) > 0 {
				r[i] = b.fifo[0]
				b.fifo = b.fifo[1:]
			}
		case addr == regIrqFlags2:
			if len(b.fifo) > 0 {
				r[i] = irq2PayloadReady
			}
		default:
			r[i] = b.regs[int(addr)+i-1]
		}
	}
	return nil
}

// queue places a RadioHead packet addressed to `to` in the FIFO.
func (b *fakeBus) queue(to byte, payload []byte) {
	b.fifo = append(b.fifo, byte(len(payload)+headerSize), to, 1, 0, 0)
	b.fifo = append(b.fifo, payload...)
}

type fakeReset struct{ values []int }

func (f *fakeReset) SetValue(v int) error {
	f.values = append(f.values, v)
	return nil
}

func newRadio(t *testing.T, node byte) (*Radio, *fakeBus) {
	t.Helper()
	bus := newFakeBus()
	r, err := New(bus, nil, 433, node)
	require.NoError(t, err)
	return r, bus
}

func TestNew_ConfiguresModule(t *testing.T) {
	bus := newFakeBus()
	reset := &fakeReset{}
	_, err := New(bus, reset, 433, broadcastAddress)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 0}, reset.values)
	assert.Equal(t, byte(modeStandby<<2), bus.regs[regOpMode]&0x1c)
	assert.Equal(t, byte(packetConfig1Default), bus.regs[regPacketConfig1])
	assert.Equal(t, syncWord, bus.regs[regSyncValue1:regSyncValue1+2])
	// 433 MHz / 61.03515625 Hz = 0x6C4000
	assert.Equal(t, []byte{0x6c, 0x40, 0x00}, bus.regs[regFrfMsb:regFrfLsb+1])
}

func TestNew_RejectsWrongVersion(t *testing.T) {
	bus := newFakeBus()
	bus.regs[regVersion] = 0x00
	_, err := New(bus, nil, 433, broadcastAddress)
	assert.ErrorContains(t, err, "unexpected RFM69 version")
}

func TestInfo(t *testing.T) {
	r, _ := newRadio(t, broadcastAddress)

	info, err := r.Info()
	require.NoError(t, err)
	assert.Equal(t, 25.0, info.TemperatureC)
	assert.InDelta(t, 433.0, info.FrequencyMHz, 0.001)
	assert.Equal(t, 250000.0, info.BitrateBps)
	assert.Equal(t, 250000.0, info.FrequencyDeviationHz)
}

func TestReceive_StripsHeaderAndRecordsRSSI(t *testing.T) {
	r, bus := newRadio(t, broadcastAddress)
	bus.regs[regRssiValue] = 90
	bus.queue(broadcastAddress, []byte("hello"))

	got, err := r.Receive(10 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
	assert.Equal(t, -45, r.LastRSSI())
	assert.Equal(t, byte(modeStandby<<2), bus.regs[regOpMode]&0x1c)
}

func TestReceive_TimeoutReturnsNil(t *testing.T) {
	r, _ := newRadio(t, broadcastAddress)

	got, err := r.Receive(2 * time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReceive_FiltersOtherNodes(t *testing.T) {
	r, bus := newRadio(t, 7)
	bus.queue(9, []byte("not mine"))

	got, err := r.Receive(5 * time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)

	bus.queue(7, []byte("mine"))
	got, err = r.Receive(5 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []byte("mine"), got)
}

func TestSetEncryptionKey(t *testing.T) {
	r, bus := newRadio(t, broadcastAddress)
	key := []byte("0123456789abcdef")

	require.NoError(t, r.SetEncryptionKey(key))
	assert.Equal(t, key, bus.regs[regAesKey1:regAesKey1+16])
	assert.Equal(t, byte(packetConfig2Aes), bus.regs[regPacketConfig2]&packetConfig2Aes)

	assert.Error(t, r.SetEncryptionKey(key[:8]))
}

func TestReceive_BusErrorPropagates(t *testing.T) {
	r, bus := newRadio(t, broadcastAddress)
	bus.err = errors.New("spi gone")

	_, err := r.Receive(time.Millisecond)
	assert.ErrorContains(t, err, "spi gone")
}
