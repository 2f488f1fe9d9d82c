package session

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/srg/fzlink/internal/device"
	"github.com/srg/fzlink/pkg/config"
	"github.com/srg/fzlink/scanner"
)

// Option configures a Manager
type Option func(*Manager)

// WithStateHook observes every state transition of every session
func WithStateHook(fn func(id string, from, to State, err error)) Option {
	return func(m *Manager) { m.hooks.onState = fn }
}

// WithErrorHook observes every reported StageError
func WithErrorHook(fn func(id string, err error)) Option {
	return func(m *Manager) { m.hooks.onError = fn }
}

// WithNotificationHandler receives the values notified on the subscribed characteristic
func WithNotificationHandler(fn func(id string, value []byte)) Option {
	return func(m *Manager) { m.hooks.onNotification = fn }
}

// WithScanProgress observes the phases of StartScan
func WithScanProgress(fn scanner.ProgressCallback) Option {
	return func(m *Manager) { m.progress = fn }
}

// Manager owns the sessions of one transport: it scans for peripherals,
// registers them, drives their connections and routes transport events.
type Manager struct {
	transport device.Transport
	cfg       *config.Config
	profile   Profile
	logger    *logrus.Logger
	hooks     hooks
	progress  scanner.ProgressCallback

	registry *Registry
	router   *Router
	scanner  *scanner.Scanner

	closed atomic.Bool
}

// NewManager creates a Manager and starts routing transport events.
// A nil cfg means config.DefaultConfig().
func NewManager(transport device.Transport, cfg *config.Config, logger *logrus.Logger, opts ...Option) *Manager {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}

	m := &Manager{
		transport: transport,
		cfg:       cfg,
		profile:   ProfileFromConfig(cfg),
		logger:    logger,
		registry:  NewRegistry(),
		scanner:   scanner.NewScanner(transport, logger),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.hooks.onTerminal = m.release

	m.router = NewRouter(m.registry, logger)
	m.router.Start(context.Background(), transport.Events())
	return m
}

// StartScan runs one bounded scan for peripherals matching the configured
// name prefix. Each newly seen identifier is registered as a Discovered
// session and passed to onDiscovered once. The result lists the matching
// identifiers in discovery order; a scan failure keeps the partial result
// and is returned as a ScanError.
func (m *Manager) StartScan(ctx context.Context, onDiscovered func(*Session)) (*scanner.Result, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}

	opts := &scanner.ScanOptions{
		Duration: m.cfg.ScanTimeout,
		Filter:   scanner.NewPrefixFilter(m.cfg.NamePrefix),
	}

	return m.scanner.Scan(ctx, opts, func(p *device.Peripheral) {
		s, added := m.Register(p)
		if !added {
			return
		}
		if onDiscovered != nil {
			onDiscovered(s)
		}
	}, m.progress)
}

// ScanEvents streams the discoveries and repeated advertisements of every
// StartScan, newest kept when nobody reads
func (m *Manager) ScanEvents() <-chan scanner.DeviceEvent {
	return m.scanner.Events()
}

// Register tracks h as a Discovered session, e.g. for a peripheral known
// by address. It returns the existing session if h is already tracked.
func (m *Manager) Register(h device.Handle) (*Session, bool) {
	if s, ok := m.registry.Get(h.ID()); ok {
		return s, false
	}
	return m.registry.Register(newSession(h, m.transport, m.profile, m.logger, m.hooks))
}

// Connect starts the connection pipeline of a Discovered session and blocks
// until the link-level outcome is known.
func (m *Manager) Connect(ctx context.Context, id string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	s, ok := m.registry.Get(id)
	if !ok {
		return &device.NotFoundError{Resource: "device", UUIDs: []string{id}}
	}
	return s.Connect(ctx)
}

// Disconnect closes the session of id. Unknown or already closing ids are not an error.
func (m *Manager) Disconnect(id string) error {
	s, ok := m.registry.Get(id)
	if !ok {
		return nil
	}
	return s.Disconnect()
}

func (m *Manager) Session(id string) (*Session, bool) {
	return m.registry.Get(id)
}

// Sessions returns the tracked sessions in discovery order
func (m *Manager) Sessions() []*Session {
	return m.registry.Sessions()
}

// Close disconnects every session and stops event routing
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	m.registry.Range(func(s *Session) bool {
		if err := s.Disconnect(); err != nil {
			errs = append(errs, err)
		}
		return true
	})
	m.router.Stop()

	m.logger.WithFields(logrus.Fields{
		"delivered": m.router.Delivered(),
		"dropped":   m.router.Dropped(),
	}).Debug("Manager closed")
	return errors.Join(errs...)
}

// release drops a terminal session so a later scan can rediscover the peripheral
func (m *Manager) release(s *Session) {
	if m.registry.release(s) {
		m.logger.WithFields(logrus.Fields{
			"device": s.ID(),
			"state":  s.State(),
		}).Debug("Session released")
	}
}
