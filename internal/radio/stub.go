package radio

import (
	"fmt"
	"sync"
	"time"

	"sensor_gateway/internal/models"
)

// Stub is an in-memory Transport for hosts without radio hardware.
// Frames are queued with Inject and handed out in order by Receive.
type Stub struct {
	mu    sync.Mutex
	rxBuf ringBuffer
	rssi  int
	key   []byte
	info  models.RadioInfo
}

// NewStub returns a Stub reporting info as its diagnostics.
func NewStub(info models.RadioInfo) *Stub {
	return &Stub{info: info}
}

// Inject queues a frame as if it had been received with the given signal strength.
// When the queue is full the oldest frame is discarded.
func (s *Stub) Inject(frame []byte, rssi int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	s.rxBuf.push(rxFrame{data: cp, rssi: rssi})
}

func (s *Stub) Receive(timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		f, ok := s.rxBuf.pop()
		if ok {
			s.rssi = f.rssi
		}
		s.mu.Unlock()
		if ok {
			return f.data, nil
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}
		time.Sleep(time.Millisecond)
	}
}

func (s *Stub) LastRSSI() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rssi
}

func (s *Stub) Info() (models.RadioInfo, error) {
	return s.info, nil
}

func (s *Stub) SetEncryptionKey(key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = append([]byte(nil), key...)
	return nil
}

// Encrypted reports whether a key was applied.
func (s *Stub) Encrypted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key != nil
}

func (s *Stub) Close() error { return nil }

const ringCapacity = 64

type rxFrame struct {
	data []byte
	rssi int
}

type ringBuffer struct {
	data       [ringCapacity]rxFrame
	head, tail int // head = next pop, tail = next push
	count      int
}

func (rb *ringBuffer) push(f rxFrame) {
	if rb.count == ringCapacity {
		rb.data[rb.tail] = rxFrame{}
		rb.head = (rb.head + 1) % ringCapacity
		rb.count--
	}
	rb.data[rb.tail] = f
	rb.tail = (rb.tail + 1) % ringCapacity
	rb.count++
}

func (rb *ringBuffer) pop() (rxFrame, bool) {
	if rb.count == 0 {
		return rxFrame{}, false
	}
	f := rb.data[rb.head]
	rb.data[rb.head] = rxFrame{}
	rb.head = (rb.head + 1) % ringCapacity
	rb.count--
	return f, true
}
