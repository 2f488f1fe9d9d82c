package testutils

import (
	"context"
	"time"

	"github.com/srg/fzlink/internal/device"
	"github.com/stretchr/testify/mock"
)

// Default GATT profile of an fzone peripheral
const (
	FzoneService     = "ae30"
	FzoneWriteChar   = "ae01"
	FzoneNotifyChar  = "ae02"
	FzoneOtherChar   = "ae10"
	FzoneDefaultName = "fzone-01"
)

// PeripheralConfig describes how a mocked peripheral answers each transport call
type PeripheralConfig struct {
	ID              string
	Services        []string
	Characteristics []string

	ConnectErr     error
	ConnectDelay   time.Duration
	ConnectBlocks  bool // Connect waits for ctx to end and reports a timeout
	DiscoverErr    error
	Notifying      bool
	NotifyErr      error
	WriteErr       error
	DisconnectErr  error
	ReadValue      []byte
	ReadErr        error
}

// TransportBuilder builds a MockTransport with per-peripheral expectations
type TransportBuilder struct {
	ads         []device.Advertisement
	scanErr     error
	peripherals []*PeripheralConfig
}

func NewTransportBuilder() *TransportBuilder {
	return &TransportBuilder{}
}

// WithAdvertisements adds advertisements replayed by Scan
func (b *TransportBuilder) WithAdvertisements(ads ...device.Advertisement) *TransportBuilder {
	b.ads = append(b.ads, ads...)
	return b
}

// WithScanError makes Scan fail after replaying the advertisements
func (b *TransportBuilder) WithScanError(err error) *TransportBuilder {
	b.scanErr = err
	return b
}

// WithPeripheral adds a peripheral exposing the full fzone profile
func (b *TransportBuilder) WithPeripheral(id string) *PeripheralBuilder {
	cfg := &PeripheralConfig{
		ID:              id,
		Services:        []string{FzoneService},
		Characteristics: []string{FzoneWriteChar, FzoneNotifyChar, FzoneOtherChar},
		Notifying:       true,
	}
	b.peripherals = append(b.peripherals, cfg)
	return &PeripheralBuilder{parent: b, cfg: cfg}
}

// PeripheralBuilder tweaks one peripheral of a TransportBuilder
type PeripheralBuilder struct {
	parent *TransportBuilder
	cfg    *PeripheralConfig
}

func (p *PeripheralBuilder) WithServices(uuids ...string) *PeripheralBuilder {
	p.cfg.Services = uuids
	return p
}

func (p *PeripheralBuilder) WithCharacteristics(uuids ...string) *PeripheralBuilder {
	p.cfg.Characteristics = uuids
	return p
}

func (p *PeripheralBuilder) WithConnectError(err error) *PeripheralBuilder {
	p.cfg.ConnectErr = err
	return p
}

func (p *PeripheralBuilder) WithConnectDelay(d time.Duration) *PeripheralBuilder {
	p.cfg.ConnectDelay = d
	return p
}

// WithConnectTimeout makes Connect hang until the caller's deadline
func (p *PeripheralBuilder) WithConnectTimeout() *PeripheralBuilder {
	p.cfg.ConnectBlocks = true
	return p
}

func (p *PeripheralBuilder) WithDiscoverError(err error) *PeripheralBuilder {
	p.cfg.DiscoverErr = err
	return p
}

func (p *PeripheralBuilder) WithNotifying(notifying bool) *PeripheralBuilder {
	p.cfg.Notifying = notifying
	return p
}

func (p *PeripheralBuilder) WithNotifyError(err error) *PeripheralBuilder {
	p.cfg.NotifyErr = err
	return p
}

func (p *PeripheralBuilder) WithWriteError(err error) *PeripheralBuilder {
	p.cfg.WriteErr = err
	return p
}

func (p *PeripheralBuilder) WithDisconnectError(err error) *PeripheralBuilder {
	p.cfg.DisconnectErr = err
	return p
}

func (p *PeripheralBuilder) WithReadValue(value []byte, err error) *PeripheralBuilder {
	p.cfg.ReadValue = value
	p.cfg.ReadErr = err
	return p
}

// Done returns to the parent builder
func (p *PeripheralBuilder) Done() *TransportBuilder {
	return p.parent
}

// Build returns the parent's MockTransport
func (p *PeripheralBuilder) Build() *MockTransport {
	return p.parent.Build()
}

// HandleFor matches the handle of peripheral id in mock expectations
func HandleFor(id string) interface{} {
	return mock.MatchedBy(func(h device.Handle) bool { return h != nil && h.ID() == id })
}

// Build creates the MockTransport with expectations for every configured peripheral
func (b *TransportBuilder) Build() *MockTransport {
	m := NewMockTransport()
	m.AddAdvertisements(b.ads...)

	m.On("Scan", mock.Anything).Return(b.scanErr)

	for _, p := range b.peripherals {
		cfg := p
		h := HandleFor(cfg.ID)

		connect := m.On("Connect", mock.Anything, h)
		switch {
		case cfg.ConnectBlocks:
			connect.Run(func(args mock.Arguments) {
				<-args.Get(0).(context.Context).Done()
			}).Return(device.ErrTimeout)
		case cfg.ConnectDelay > 0:
			connect.Run(func(args mock.Arguments) {
				select {
				case <-args.Get(0).(context.Context).Done():
				case <-time.After(cfg.ConnectDelay):
				}
			}).Return(cfg.ConnectErr)
		default:
			connect.Return(cfg.ConnectErr)
		}

		m.On("DiscoverServices", mock.Anything, h, mock.Anything).Return(cfg.Services, cfg.DiscoverErr)
		m.On("DiscoverCharacteristics", mock.Anything, h, mock.Anything, mock.Anything).Return(cfg.Characteristics, cfg.DiscoverErr)
		m.On("SetNotify", mock.Anything, h, mock.Anything, mock.Anything, true).Return(cfg.Notifying, cfg.NotifyErr)
		m.On("SetNotify", mock.Anything, h, mock.Anything, mock.Anything, false).Return(false, nil)
		m.On("Write", mock.Anything, h, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(cfg.WriteErr)
		m.On("Read", mock.Anything, h, mock.Anything, mock.Anything).Return(cfg.ReadValue, cfg.ReadErr)
		m.On("Disconnect", h).Return(cfg.DisconnectErr)
	}

	// Peripherals nobody configured cannot be reached
	m.On("Connect", mock.Anything, mock.Anything).Return(device.ErrNotConnected)
	m.On("Disconnect", mock.Anything).Return(nil)

	return m
}
