package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/fzlink/internal/device"
	"github.com/srg/fzlink/internal/ringchan"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ProgressCallback is called when the scan phase changes
type ProgressCallback func(phase string)

// DeviceEventType marks if the device was newly discovered or updated
type DeviceEventType int

const (
	EventNew DeviceEventType = iota
	EventUpdated
)

type DeviceEvent struct {
	Type          DeviceEventType
	Peripheral    *device.Peripheral
	Advertisement device.Advertisement
}

// ScanOptions configures scanning behavior
type ScanOptions struct {
	Duration time.Duration
	Filter   Filter
}

// DefaultScanOptions returns the 15s scan for fzone advertisers
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration: 15 * time.Second,
		Filter:   NewPrefixFilter("fzone"),
	}
}

// Result is the outcome of one bounded scan: the matching peripherals in
// discovery order and the error that ended the scan early, if any.
type Result struct {
	devices *orderedmap.OrderedMap[string, *device.Peripheral]
	Err     error
}

func newResult() *Result {
	return &Result{devices: orderedmap.New[string, *device.Peripheral]()}
}

// IDs returns the discovered identifiers in discovery order
func (r *Result) IDs() []string {
	ids := make([]string, 0, r.devices.Len())
	for pair := r.devices.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// Devices returns the discovered peripherals in discovery order
func (r *Result) Devices() []*device.Peripheral {
	devs := make([]*device.Peripheral, 0, r.devices.Len())
	for pair := r.devices.Oldest(); pair != nil; pair = pair.Next() {
		devs = append(devs, pair.Value)
	}
	return devs
}

func (r *Result) Get(id string) (*device.Peripheral, bool) {
	return r.devices.Get(id)
}

func (r *Result) Len() int {
	return r.devices.Len()
}

// Scanner runs bounded discovery scans over a transport. Scans may overlap;
// each keeps its own result. Every scan feeds the shared Events stream.
type Scanner struct {
	transport device.Transport
	logger    *logrus.Logger
	events    *ringchan.RingChannel[DeviceEvent]
}

// scanRun is the state of one Scan call
type scanRun struct {
	mu      sync.Mutex
	devices *hashmap.Map[string, *device.Peripheral]
	result  *Result
	filter  Filter
	onNew   func(*device.Peripheral)
	ended   bool
}

// NewScanner creates a new scanner on transport
func NewScanner(transport device.Transport, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}

	return &Scanner{
		transport: transport,
		events:    ringchan.New[DeviceEvent](100),
		logger:    logger,
	}
}

// Scan listens for advertisements for opts.Duration and reports every new
// matching peripheral to onNew, once per identifier. A transport failure
// ends the scan early; the peripherals found until then are kept in the
// result and the failure is returned as a ScanError.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions, onNew func(*device.Peripheral), progressCallback ProgressCallback) (*Result, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	if progressCallback == nil {
		progressCallback = func(string) {} // No-op callback
	}

	run := &scanRun{
		devices: hashmap.New[string, *device.Peripheral](),
		result:  newResult(),
		filter:  opts.Filter,
		onNew:   onNew,
	}
	if run.filter == nil {
		run.filter = matchAll
	}
	result := run.result

	scanCtx := ctx
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	fields := logrus.Fields{"duration": opts.Duration}
	if pf, ok := opts.Filter.(*PrefixFilter); ok {
		fields["prefix"] = pf.Prefix()
	}
	s.logger.WithFields(fields).Info("Starting BLE scan...")
	progressCallback("Scanning")

	err := s.transport.Scan(scanCtx, func(adv device.Advertisement) {
		s.handleAdvertisement(run, adv)
	})
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) && scanCtx.Err() != nil {
		err = nil
	}

	// Late advertisements from the radio stack are ignored
	run.mu.Lock()
	run.ended = true
	run.mu.Unlock()

	progressCallback("Processing results")

	if err != nil {
		result.Err = device.NewStageError(device.ScanError, "Scan", "", err)
		s.logger.WithFields(logrus.Fields{
			"error":        err,
			"device_count": result.Len(),
		}).Error("BLE scan failed")
		return result, result.Err
	}

	s.logger.WithField("device_count", result.Len()).Info("BLE scan completed")
	return result, nil
}

// handleAdvertisement records a new matching advertiser of run or flags an
// update. onNew runs outside the lock so it may block, e.g. to connect.
func (s *Scanner) handleAdvertisement(run *scanRun, adv device.Advertisement) {
	deviceID := adv.Addr()
	if deviceID == "" {
		return
	}

	run.mu.Lock()
	if run.ended {
		run.mu.Unlock()
		return
	}

	dev, existing := run.devices.Get(deviceID)
	if !existing {
		if !run.filter.Match(adv) {
			run.mu.Unlock()
			return
		}
		dev, existing = run.devices.GetOrInsert(deviceID, device.NewPeripheral(adv))
	}

	event := DeviceEvent{
		Peripheral:    dev,
		Advertisement: adv,
		Type:          EventUpdated,
	}

	var onNew func(*device.Peripheral)
	if !existing {
		event.Type = EventNew
		run.result.devices.Set(deviceID, dev)
		onNew = run.onNew
	}
	run.mu.Unlock()

	if !existing {
		s.logger.WithFields(logrus.Fields{
			"device":  dev.Name(),
			"address": dev.ID(),
			"rssi":    dev.RSSI(),
		}).Info("Discovered new device")
		if onNew != nil {
			onNew(dev)
		}
	}

	s.events.Send(event)
}

// Events returns the discoveries and repeated advertisements of every scan.
// The stream keeps the latest 100 events when nobody reads it.
func (s *Scanner) Events() <-chan DeviceEvent {
	return s.events.C()
}

// String describes a result for logs
func (r *Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%d device(s), error: %v", r.Len(), r.Err)
	}
	return fmt.Sprintf("%d device(s)", r.Len())
}
