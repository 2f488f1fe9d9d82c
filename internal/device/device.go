package device

import (
	"context"
	"time"
)

// Advertisement is a single advertising report observed during a scan.
type Advertisement interface {
	LocalName() string
	ManufacturerData() []byte
	Services() []string
	TxPowerLevel() int
	Connectable() bool

	RSSI() int
	Addr() string
}

// Handle is an opaque reference to an in-range or connected peripheral.
// The transport owns the underlying resources; holders only keep the reference.
type Handle interface {
	ID() string
	Name() string
}

// WriteMode selects the ATT write procedure
type WriteMode int

const (
	WriteWithResponse WriteMode = iota
	WriteWithoutResponse
)

func (m WriteMode) String() string {
	if m == WriteWithoutResponse {
		return "without-response"
	}
	return "with-response"
}

// EventKind discriminates entries on the transport event stream
type EventKind int

const (
	EventNotification EventKind = iota
	EventDisconnected
)

// Event is an entry of the transport's global event stream.
//
// Notification events carry the characteristic and value (and optionally an
// error reported alongside the value). Disconnected events report a link drop
// that was not requested through Transport.Disconnect.
type Event struct {
	Kind           EventKind
	Peripheral     string
	Characteristic string
	Value          []byte
	Err            error
	Timestamp      time.Time
}

// Transport is the radio capability the link core is built on.
//
// Every operation may block on the radio; implementations must honour ctx
// cancellation where the underlying stack allows it.
type Transport interface {
	// Scan reports advertisements to handler until ctx is done.
	Scan(ctx context.Context, handler func(Advertisement)) error

	// Connect establishes the link to h. The caller bounds it with ctx.
	Connect(ctx context.Context, h Handle) error

	// Disconnect tears the link down. Calling it for an unknown handle is not an error.
	Disconnect(h Handle) error

	// DiscoverServices returns the normalized UUIDs of the services found among uuids.
	DiscoverServices(ctx context.Context, h Handle, uuids []string) ([]string, error)

	// DiscoverCharacteristics returns the normalized UUIDs of the characteristics of service found among uuids.
	DiscoverCharacteristics(ctx context.Context, h Handle, service string, uuids []string) ([]string, error)

	// SetNotify enables or disables notifications and reports whether the characteristic is notifying.
	SetNotify(ctx context.Context, h Handle, service, char string, enabled bool) (bool, error)

	Write(ctx context.Context, h Handle, service, char string, data []byte, mode WriteMode) error
	Read(ctx context.Context, h Handle, service, char string) ([]byte, error)

	// Events is the global stream of notifications and link drops.
	Events() <-chan Event
}

// Peripheral is the default Handle built from an advertisement
type Peripheral struct {
	id   string
	name string
	rssi int
}

// NewPeripheral creates a Handle for the advertiser of adv
func NewPeripheral(adv Advertisement) *Peripheral {
	return &Peripheral{
		id:   adv.Addr(),
		name: adv.LocalName(),
		rssi: adv.RSSI(),
	}
}

// NewPeripheralWithID creates a Handle for a known identifier, e.g. from the command line
func NewPeripheralWithID(id, name string) *Peripheral {
	return &Peripheral{id: id, name: name}
}

func (p *Peripheral) ID() string   { return p.id }
func (p *Peripheral) Name() string { return p.name }
func (p *Peripheral) RSSI() int    { return p.rssi }
