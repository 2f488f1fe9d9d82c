package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/srg/fzlink/internal/device"
	"github.com/srg/fzlink/internal/ringchan"
	"github.com/stretchr/testify/mock"
)

// MockTransport is a device.Transport driven by testify/mock expectations.
//
// Scan replays the configured advertisements and then blocks until ctx is
// done, the way a real radio scan does. Writes are recorded per peripheral
// so tests can inspect exactly what went over the air.
type MockTransport struct {
	mock.Mock

	events *ringchan.RingChannel[device.Event]

	mu     sync.Mutex
	ads    []device.Advertisement
	writes map[string][][]byte
}

// NewMockTransport creates a MockTransport without expectations
func NewMockTransport() *MockTransport {
	return &MockTransport{
		events: ringchan.New[device.Event](64),
		writes: make(map[string][][]byte),
	}
}

// AddAdvertisements queues advertisements for subsequent scans
func (m *MockTransport) AddAdvertisements(ads ...device.Advertisement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ads = append(m.ads, ads...)
}

func (m *MockTransport) Scan(ctx context.Context, handler func(device.Advertisement)) error {
	args := m.Called(ctx)

	m.mu.Lock()
	ads := append([]device.Advertisement(nil), m.ads...)
	m.mu.Unlock()

	for _, adv := range ads {
		if ctx.Err() != nil {
			return nil
		}
		handler(adv)
	}

	if err := args.Error(0); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func (m *MockTransport) Connect(ctx context.Context, h device.Handle) error {
	return m.Called(ctx, h).Error(0)
}

func (m *MockTransport) Disconnect(h device.Handle) error {
	return m.Called(h).Error(0)
}

func (m *MockTransport) DiscoverServices(ctx context.Context, h device.Handle, uuids []string) ([]string, error) {
	args := m.Called(ctx, h, uuids)
	found, _ := args.Get(0).([]string)
	return found, args.Error(1)
}

func (m *MockTransport) DiscoverCharacteristics(ctx context.Context, h device.Handle, service string, uuids []string) ([]string, error) {
	args := m.Called(ctx, h, service, uuids)
	found, _ := args.Get(0).([]string)
	return found, args.Error(1)
}

func (m *MockTransport) SetNotify(ctx context.Context, h device.Handle, service, char string, enabled bool) (bool, error) {
	args := m.Called(ctx, h, service, char, enabled)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransport) Write(ctx context.Context, h device.Handle, service, char string, data []byte, mode device.WriteMode) error {
	m.mu.Lock()
	m.writes[h.ID()] = append(m.writes[h.ID()], append([]byte(nil), data...))
	m.mu.Unlock()

	return m.Called(ctx, h, service, char, data, mode).Error(0)
}

func (m *MockTransport) Read(ctx context.Context, h device.Handle, service, char string) ([]byte, error) {
	args := m.Called(ctx, h, service, char)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockTransport) Events() <-chan device.Event {
	return m.events.C()
}

// Emit publishes ev on the event stream
func (m *MockTransport) Emit(ev device.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	m.events.Send(ev)
}

// Notify publishes a notification from peripheral id
func (m *MockTransport) Notify(id, char string, value []byte) {
	m.Emit(device.Event{Kind: device.EventNotification, Peripheral: id, Characteristic: char, Value: value})
}

// NotifyError publishes a notification carrying an error
func (m *MockTransport) NotifyError(id, char string, value []byte, err error) {
	m.Emit(device.Event{Kind: device.EventNotification, Peripheral: id, Characteristic: char, Value: value, Err: err})
}

// Drop reports an unsolicited link drop of peripheral id
func (m *MockTransport) Drop(id string) {
	m.Emit(device.Event{Kind: device.EventDisconnected, Peripheral: id, Err: device.ErrNotConnected})
}

// Writes returns a copy of every payload written to peripheral id, in order
func (m *MockTransport) Writes(id string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes[id]))
	copy(out, m.writes[id])
	return out
}

// WriteCount returns how many writes peripheral id has received
func (m *MockTransport) WriteCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes[id])
}

// CloseEvents closes the event stream
func (m *MockTransport) CloseEvents() {
	m.events.Close()
}

var _ device.Transport = (*MockTransport)(nil)
