package goble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/fzlink/internal/device"
	"github.com/srg/fzlink/internal/groutine"
	"github.com/srg/fzlink/internal/ringchan"
)

// DefaultEventBuffer is the default capacity of the transport event stream
const DefaultEventBuffer = 128

// link is a live connection to one peripheral
type link struct {
	id     string
	client Client

	mu       sync.Mutex
	services map[string]*ble.Service        // normalized service UUID
	chars    map[string]*ble.Characteristic // "service/char", normalized

	closing  atomic.Bool
	done     chan struct{}
	doneOnce sync.Once
}

func newLink(id string, client Client) *link {
	return &link{
		id:       id,
		client:   client,
		services: make(map[string]*ble.Service),
		chars:    make(map[string]*ble.Characteristic),
		done:     make(chan struct{}),
	}
}

func charKey(service, char string) string {
	return device.NormalizeUUID(service) + "/" + device.NormalizeUUID(char)
}

func (l *link) release() {
	l.doneOnce.Do(func() { close(l.done) })
}

func (l *link) characteristic(service, char string) (*ble.Characteristic, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.services[device.NormalizeUUID(service)]; !ok {
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{service}}
	}
	c, ok := l.chars[charKey(service, char)]
	if !ok {
		return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{service, char}}
	}
	return c, nil
}

// Transport implements device.Transport on top of go-ble.
//
// Links are keyed by peripheral identifier. Notifications and unsolicited
// link drops are published on a single overwrite-oldest event stream.
type Transport struct {
	radio    Radio
	logger   *logrus.Logger
	allowDup bool

	links  *hashmap.Map[string, *link]
	events *ringchan.RingChannel[device.Event]
}

// TransportOption configures a Transport
type TransportOption func(*Transport)

// WithEventBuffer sets the capacity of the event stream
func WithEventBuffer(n int) TransportOption {
	return func(t *Transport) {
		if n > 0 {
			t.events = ringchan.New[device.Event](n)
		}
	}
}

// WithDuplicates makes Scan report every advertising packet instead of one per peripheral
func WithDuplicates(allow bool) TransportOption {
	return func(t *Transport) { t.allowDup = allow }
}

// NewTransport creates a Transport driving radio
func NewTransport(radio Radio, logger *logrus.Logger, opts ...TransportOption) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	t := &Transport{
		radio:  radio,
		logger: logger,
		links:  hashmap.New[string, *link](),
		events: ringchan.New[device.Event](DefaultEventBuffer),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open creates a Transport on the platform adapter
func Open(logger *logrus.Logger, opts ...TransportOption) (*Transport, error) {
	radio, err := NewRadio()
	if err != nil {
		return nil, fmt.Errorf("failed to open BLE adapter: %w", err)
	}
	return NewTransport(radio, logger, opts...), nil
}

// Events returns the notification and link-drop stream
func (t *Transport) Events() <-chan device.Event {
	return t.events.C()
}

// Scan reports advertisements until ctx is done. Reaching the end of ctx is
// the normal way a scan ends and is not reported as an error.
func (t *Transport) Scan(ctx context.Context, handler func(device.Advertisement)) error {
	t.logger.WithField("allow_dup", t.allowDup).Debug("Starting BLE scan...")

	err := t.radio.Scan(ctx, t.allowDup, handler)
	if err != nil && ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		err = nil
	}
	if err != nil {
		t.logger.WithField("error", err).Error("BLE scan failed")
		return NormalizeError(err)
	}

	t.logger.Debug("BLE scan finished")
	return nil
}

// Connect dials h. The caller bounds the attempt with ctx.
func (t *Transport) Connect(ctx context.Context, h device.Handle) error {
	id := h.ID()
	if _, ok := t.links.Get(id); ok {
		t.logger.WithField("id", id).Warn("Connection attempt while already connected")
		return device.ErrAlreadyConnected
	}

	t.logger.WithFields(logrus.Fields{
		"id":   id,
		"name": h.Name(),
	}).Info("Connecting to BLE device...")

	client, err := t.radio.Dial(ctx, id)
	if err != nil {
		t.logger.WithFields(logrus.Fields{
			"id":    id,
			"error": err,
		}).Error("Failed to dial BLE device")
		return fmt.Errorf("failed to connect to device %q: %w", id, NormalizeError(err))
	}

	l := newLink(id, client)
	if _, loaded := t.links.GetOrInsert(id, l); loaded {
		// Lost a race with a concurrent Connect for the same peripheral.
		_ = client.CancelConnection()
		return device.ErrAlreadyConnected
	}

	t.monitor(l)

	t.logger.WithField("id", id).Info("BLE device connected successfully")
	return nil
}

// monitor watches the client's Disconnected() channel where the platform
// provides one and reports drops that were not requested through Disconnect.
func (t *Transport) monitor(l *link) {
	dc, ok := l.client.(interface{ Disconnected() <-chan struct{} })
	if !ok {
		t.logger.Debug("Client does not support Disconnected() channel")
		return
	}

	groutine.Go(context.Background(), "ble-link-monitor-"+l.id, func(ctx context.Context) {
		select {
		case <-dc.Disconnected():
			if l.closing.Load() {
				return
			}
			t.links.Del(l.id)
			l.release()

			t.logger.WithField("id", l.id).Warn("Peripheral disconnected")
			t.events.Send(device.Event{
				Kind:       device.EventDisconnected,
				Peripheral: l.id,
				Err:        device.ErrNotConnected,
				Timestamp:  time.Now(),
			})
		case <-l.done:
		}
	})
}

// Disconnect tears the link down. Unknown or already closed links are ignored.
func (t *Transport) Disconnect(h device.Handle) error {
	l, ok := t.links.Get(h.ID())
	if !ok {
		t.logger.WithField("id", h.ID()).Debug("Disconnect called but already disconnected")
		return nil
	}

	l.closing.Store(true)
	t.links.Del(l.id)
	l.release()

	t.logger.WithField("id", l.id).Info("Disconnecting BLE device...")
	if err := NormalizeError(l.client.CancelConnection()); err != nil {
		t.logger.WithFields(logrus.Fields{
			"id":    l.id,
			"error": err,
		}).Warn("BLE device disconnected with errors")
		return err
	}

	t.logger.WithField("id", l.id).Info("BLE device disconnected successfully")
	return nil
}

// Close disconnects every link and closes the event stream
func (t *Transport) Close() error {
	var errs []error
	t.links.Range(func(id string, _ *link) bool {
		if err := t.Disconnect(device.NewPeripheralWithID(id, "")); err != nil {
			errs = append(errs, err)
		}
		return true
	})
	t.events.Close()
	return errors.Join(errs...)
}

func (t *Transport) lookup(h device.Handle) (*link, error) {
	l, ok := t.links.Get(h.ID())
	if !ok {
		return nil, fmt.Errorf("%w: %s", device.ErrNotConnected, h.ID())
	}
	return l, nil
}

func (t *Transport) DiscoverServices(ctx context.Context, h device.Handle, uuids []string) ([]string, error) {
	l, err := t.lookup(h)
	if err != nil {
		return nil, err
	}

	filter, err := parseFilter(uuids)
	if err != nil {
		return nil, err
	}

	svcs, err := withContext(ctx, func() ([]*ble.Service, error) {
		return l.client.DiscoverServices(filter)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover services: %w", err)
	}

	found := make([]string, 0, len(svcs))
	l.mu.Lock()
	for _, s := range svcs {
		id := device.NormalizeUUID(s.UUID.String())
		l.services[id] = s
		found = append(found, id)
	}
	l.mu.Unlock()

	t.logger.WithFields(logrus.Fields{
		"id":       l.id,
		"services": found,
	}).Debug("Services discovered")
	return found, nil
}

func (t *Transport) DiscoverCharacteristics(ctx context.Context, h device.Handle, service string, uuids []string) ([]string, error) {
	l, err := t.lookup(h)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	svc, ok := l.services[device.NormalizeUUID(service)]
	l.mu.Unlock()
	if !ok {
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{service}}
	}

	filter, err := parseFilter(uuids)
	if err != nil {
		return nil, err
	}

	chars, err := withContext(ctx, func() ([]*ble.Characteristic, error) {
		return l.client.DiscoverCharacteristics(filter, svc)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover characteristics of service %s: %w", service, err)
	}

	found := make([]string, 0, len(chars))
	l.mu.Lock()
	for _, c := range chars {
		id := device.NormalizeUUID(c.UUID.String())
		l.chars[charKey(service, id)] = c
		found = append(found, id)
	}
	l.mu.Unlock()

	t.logger.WithFields(logrus.Fields{
		"id":              l.id,
		"service":         device.NormalizeUUID(service),
		"characteristics": found,
	}).Debug("Characteristics discovered")
	return found, nil
}

// SetNotify subscribes to or unsubscribes from char. Values are published
// on the event stream as EventNotification.
func (t *Transport) SetNotify(ctx context.Context, h device.Handle, service, char string, enabled bool) (bool, error) {
	l, err := t.lookup(h)
	if err != nil {
		return false, err
	}
	c, err := l.characteristic(service, char)
	if err != nil {
		return false, err
	}

	if c.Property&(ble.CharNotify|ble.CharIndicate) == 0 {
		return false, fmt.Errorf("characteristic %s cannot notify: %w", char, device.ErrUnsupported)
	}
	ind := c.Property&ble.CharNotify == 0

	if !enabled {
		_, err := withContext(ctx, func() (struct{}, error) {
			return struct{}{}, l.client.Unsubscribe(c, ind)
		})
		if err != nil {
			return true, fmt.Errorf("failed to unsubscribe from %s: %w", char, err)
		}
		return false, nil
	}

	charID := device.NormalizeUUID(char)
	_, err = withContext(ctx, func() (struct{}, error) {
		if c.CCCD == nil {
			if _, err := l.client.DiscoverDescriptors(nil, c); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, l.client.Subscribe(c, ind, func(data []byte) {
			value := make([]byte, len(data))
			copy(value, data)
			if t.events.Send(device.Event{
				Kind:           device.EventNotification,
				Peripheral:     l.id,
				Characteristic: charID,
				Value:          value,
				Timestamp:      time.Now(),
			}) {
				t.logger.WithField("id", l.id).Warn("Event stream full, dropped oldest event")
			}
		})
	})
	if err != nil {
		t.logger.WithFields(logrus.Fields{
			"id":    l.id,
			"char":  charID,
			"error": err,
		}).Error("Failed to subscribe to characteristic notifications")
		return false, fmt.Errorf("failed to subscribe to %s: %w", char, err)
	}

	t.logger.WithFields(logrus.Fields{
		"id":       l.id,
		"char":     charID,
		"indicate": ind,
	}).Info("Successfully subscribed to characteristic notifications")
	return true, nil
}

func (t *Transport) Write(ctx context.Context, h device.Handle, service, char string, data []byte, mode device.WriteMode) error {
	l, err := t.lookup(h)
	if err != nil {
		return err
	}
	c, err := l.characteristic(service, char)
	if err != nil {
		return err
	}

	_, err = withContext(ctx, func() (struct{}, error) {
		return struct{}{}, l.client.WriteCharacteristic(c, data, mode == device.WriteWithoutResponse)
	})
	if err != nil {
		return fmt.Errorf("failed to write characteristic %s: %w", char, err)
	}

	t.logger.WithFields(logrus.Fields{
		"id":    l.id,
		"char":  device.NormalizeUUID(char),
		"bytes": len(data),
		"mode":  mode,
	}).Debug("Characteristic written")
	return nil
}

func (t *Transport) Read(ctx context.Context, h device.Handle, service, char string) ([]byte, error) {
	l, err := t.lookup(h)
	if err != nil {
		return nil, err
	}
	c, err := l.characteristic(service, char)
	if err != nil {
		return nil, err
	}

	data, err := withContext(ctx, func() ([]byte, error) {
		return l.client.ReadCharacteristic(c)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read characteristic %s: %w", char, err)
	}
	return data, nil
}

func parseFilter(uuids []string) ([]ble.UUID, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	filter := make([]ble.UUID, 0, len(uuids))
	for _, u := range uuids {
		parsed, err := device.ParseUUID(u)
		if err != nil {
			return nil, err
		}
		filter = append(filter, parsed)
	}
	return filter, nil
}

// withContext runs a blocking go-ble call and gives up when ctx is done.
// go-ble calls cannot be interrupted, so an abandoned call finishes in the background.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	resultCh := make(chan result, 1)

	go func() {
		v, err := fn()
		resultCh <- result{v: v, err: err}
	}()

	select {
	case r := <-resultCh:
		return r.v, NormalizeError(r.err)
	case <-ctx.Done():
		var zero T
		return zero, NormalizeError(ctx.Err())
	}
}

var _ device.Transport = (*Transport)(nil)
