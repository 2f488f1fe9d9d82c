package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"
	"github.com/srg/fzlink/codec"
	"github.com/srg/fzlink/internal/device"
	"github.com/srg/fzlink/internal/groutine"
	"github.com/srg/fzlink/pkg/config"
)

// Profile is the GATT layout and timing a Session drives
type Profile struct {
	Service          string
	WriteChar        string
	NotifyChar       string
	KeepAliveCommand string
	MaxWriteSize     int

	ConnectTimeout  time.Duration
	SettleDelay     time.Duration
	KeepAlivePeriod time.Duration

	ReadBufferSize      int
	NotificationHistory int
}

// ProfileFromConfig extracts the session profile from cfg, normalizing UUIDs
func ProfileFromConfig(cfg *config.Config) Profile {
	return Profile{
		Service:             device.NormalizeUUID(cfg.ServiceUUID),
		WriteChar:           device.NormalizeUUID(cfg.WriteUUID),
		NotifyChar:          device.NormalizeUUID(cfg.NotifyUUID),
		KeepAliveCommand:    cfg.KeepAliveCommand,
		MaxWriteSize:        cfg.MaxWriteSize,
		ConnectTimeout:      cfg.ConnectTimeout,
		SettleDelay:         cfg.SettleDelay,
		KeepAlivePeriod:     cfg.KeepAlivePeriod,
		ReadBufferSize:      cfg.ReadBufferSize,
		NotificationHistory: cfg.NotificationHistory,
	}
}

// Notification is one inbound value received on the subscribed characteristic
type Notification struct {
	Value     []byte
	Err       error
	Timestamp time.Time
}

type hooks struct {
	onState        func(id string, from, to State, err error)
	onError        func(id string, err error)
	onNotification func(id string, value []byte)
	onTerminal     func(s *Session)
}

// Session is the connection lifecycle of one peripheral.
//
// A session starts in Discovered. Connect drives it through link
// establishment, service and characteristic discovery and subscription to
// Ready, where the keep-alive runs and commands may be sent. Any failure
// ends in Failed; Disconnect ends in Closed. Terminal sessions never leave
// their state.
//
// Hooks run synchronously on the goroutine performing the transition and
// must not call back into the session's Connect or Disconnect.
type Session struct {
	peripheral device.Handle
	transport  device.Transport
	profile    Profile
	logger     *logrus.Logger
	hooks      hooks

	mu         sync.Mutex
	state      State
	err        error
	linkUp     bool
	subscribed string
	cancel     context.CancelFunc
	keepAlive  *keepAlive

	// once halting, only haltTo (and Closed after Disconnecting) can be entered
	halting bool
	haltTo  State

	// state hooks run one at a time in transition order
	hookMu   sync.Mutex
	hookCond *sync.Cond
	hookSeq  uint64
	hookNext uint64

	// sendMu keeps the frames of one command contiguous on the wire
	sendMu sync.Mutex

	ready     chan struct{}
	done      chan struct{}
	readyOnce sync.Once
	doneOnce  sync.Once

	inboundMu sync.Mutex
	inbound   *ringbuffer.RingBuffer
	history   mpmc.RichOverlappedRingBuffer[Notification]
}

func newSession(p device.Handle, transport device.Transport, profile Profile, logger *logrus.Logger, h hooks) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	readSize := profile.ReadBufferSize
	if readSize <= 0 {
		readSize = 4096
	}
	historySize := profile.NotificationHistory
	if historySize <= 0 {
		historySize = 64
	}

	s := &Session{
		peripheral: p,
		transport:  transport,
		profile:    profile,
		logger:     logger,
		hooks:      h,
		state:      StateDiscovered,
		ready:      make(chan struct{}),
		done:       make(chan struct{}),
		inbound:    ringbuffer.New(readSize),
		history:    mpmc.NewOverlappedRingBuffer[Notification](uint32(historySize)),
	}
	s.hookCond = sync.NewCond(&s.hookMu)
	return s
}

func (s *Session) ID() string {
	return s.peripheral.ID()
}

func (s *Session) Name() string {
	return s.peripheral.Name()
}

// Peripheral returns the handle the session drives
func (s *Session) Peripheral() device.Handle {
	return s.peripheral
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure that moved the session to Failed, nil otherwise
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Ready is closed when the session reaches Ready
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// Done is closed when the session reaches Closed or Failed
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// WaitReady blocks until the session is Ready, terminal, or ctx ends.
func (s *Session) WaitReady(ctx context.Context) error {
	if err, ok := s.readyOutcome(); ok {
		return err
	}

	select {
	case <-s.ready:
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	err, _ := s.readyOutcome()
	return err
}

func (s *Session) readyOutcome() (error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == StateReady:
		return nil, true
	case s.state == StateFailed:
		return s.err, true
	case s.state.IsTerminal(), s.state == StateDisconnecting:
		return fmt.Errorf("%w: session is %s", ErrInvalidState, s.state), true
	}
	return nil, false
}

// KeepAliveTicks returns how many keep-alive ticks have fired so far
func (s *Session) KeepAliveTicks() int64 {
	s.mu.Lock()
	ka := s.keepAlive
	s.mu.Unlock()

	if ka == nil {
		return 0
	}
	return ka.Ticks()
}

// advance moves the session to `to` if the state machine allows it.
// onEnter runs under the state lock once the move is decided.
func (s *Session) advance(to State, cause error, onEnter func(from State)) bool {
	s.mu.Lock()
	from := s.state
	if !canTransition(from, to) || (s.halting && to != s.haltTo && to != StateClosed) {
		s.mu.Unlock()
		s.logger.WithFields(logrus.Fields{
			"device": s.ID(),
			"from":   from,
			"to":     to,
		}).Debug("Transition rejected")
		return false
	}

	s.state = to
	if to == StateFailed {
		s.err = cause
	}
	if onEnter != nil {
		onEnter(from)
	}
	if to == StateReady {
		s.readyOnce.Do(func() { close(s.ready) })
	}

	seq := s.hookSeq
	s.hookSeq++
	s.mu.Unlock()

	s.inTurn(seq, func() {
		s.logger.WithFields(logrus.Fields{
			"device": s.ID(),
			"from":   from,
			"to":     to,
		}).Debug("Session state changed")

		if s.hooks.onState != nil {
			s.hooks.onState(s.ID(), from, to, cause)
		}
	})
	return true
}

// inTurn runs fn once every transition numbered below seq has run its hooks
func (s *Session) inTurn(seq uint64, fn func()) {
	s.hookMu.Lock()
	for s.hookNext != seq {
		s.hookCond.Wait()
	}
	s.hookMu.Unlock()

	defer func() {
		s.hookMu.Lock()
		s.hookNext++
		s.hookCond.Broadcast()
		s.hookMu.Unlock()
	}()
	fn()
}

func (s *Session) report(err error) {
	s.logger.WithFields(logrus.Fields{
		"device": s.ID(),
		"kind":   device.KindOf(err),
	}).WithError(err).Warn("Session error")

	if s.hooks.onError != nil {
		s.hooks.onError(s.ID(), err)
	}
}

// Connect starts the connection pipeline. It blocks until the link-level
// outcome is known and returns nil or a ConnectError; service discovery,
// subscription and the keep-alive then continue in the background. Watch
// Ready, Done or the state hook for the rest.
func (s *Session) Connect(ctx context.Context) error {
	var pipeCtx context.Context
	if !s.advance(StateConnecting, nil, func(State) {
		pipeCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	}) {
		return fmt.Errorf("%w: cannot connect %s in state %s", ErrInvalidState, s.ID(), s.State())
	}

	linkCtx, cancelLink := context.WithTimeout(pipeCtx, s.profile.ConnectTimeout)
	defer cancelLink()
	stop := context.AfterFunc(ctx, cancelLink)
	defer stop()

	s.logger.WithFields(logrus.Fields{
		"device":  s.ID(),
		"timeout": s.profile.ConnectTimeout,
	}).Info("Connecting...")

	if err := s.transport.Connect(linkCtx, s.peripheral); err != nil {
		if errors.Is(linkCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, device.ErrTimeout) {
			err = fmt.Errorf("no link after %v: %w", s.profile.ConnectTimeout, device.ErrTimeout)
		}
		return s.fail(device.ConnectError, StateConnecting, err)
	}

	if !s.advance(StateServiceDiscovery, nil, func(State) { s.linkUp = true }) {
		// Disconnected while the link was coming up
		if err := s.transport.Disconnect(s.peripheral); err != nil {
			s.logger.WithField("device", s.ID()).WithError(err).Warn("Failed to release late link")
		}
		return fmt.Errorf("%w: %s disconnected while connecting", ErrInvalidState, s.ID())
	}

	s.logger.WithField("device", s.ID()).Info("Link established")
	groutine.Go(pipeCtx, "session-pipeline-"+s.ID(), s.runPipeline)
	return nil
}

func (s *Session) runPipeline(ctx context.Context) {
	if !sleepCtx(ctx, s.profile.SettleDelay) {
		return
	}

	services, err := s.transport.DiscoverServices(ctx, s.peripheral, []string{s.profile.Service})
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.fail(device.DiscoveryError, StateServiceDiscovery, err)
		return
	}
	if !containsUUID(services, s.profile.Service) {
		s.fail(device.DiscoveryError, StateServiceDiscovery,
			&device.NotFoundError{Resource: "service", UUIDs: []string{s.profile.Service}})
		return
	}

	if !s.advance(StateCharacteristicDiscovery, nil, nil) {
		return
	}

	wanted := []string{s.profile.WriteChar, s.profile.NotifyChar}
	chars, err := s.transport.DiscoverCharacteristics(ctx, s.peripheral, s.profile.Service, wanted)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.fail(device.DiscoveryError, StateCharacteristicDiscovery, err)
		return
	}
	for _, c := range wanted {
		if !containsUUID(chars, c) {
			s.fail(device.DiscoveryError, StateCharacteristicDiscovery,
				&device.NotFoundError{Resource: "characteristic", UUIDs: []string{s.profile.Service, c}})
			return
		}
	}

	if !s.advance(StateSubscribing, nil, func(State) { s.subscribed = s.profile.NotifyChar }) {
		return
	}

	notifying, err := s.transport.SetNotify(ctx, s.peripheral, s.profile.Service, s.profile.NotifyChar, true)
	if ctx.Err() != nil {
		return
	}
	if err == nil && !notifying {
		err = fmt.Errorf("characteristic %s is not notifying", s.profile.NotifyChar)
	}
	if err != nil {
		s.fail(device.SubscribeError, StateSubscribing, err)
		return
	}

	ka := newKeepAlive(s.ID(), s.profile, s.writeFrames, s.report, s.logger)
	if !s.advance(StateReady, nil, func(State) { s.keepAlive = ka }) {
		return
	}

	// A Disconnect racing with Ready has already stopped ka
	if err := ka.Start(ctx); err != nil {
		s.logger.WithField("device", s.ID()).WithError(err).Debug("Keep-alive not started")
	}
	s.logger.WithField("device", s.ID()).Info("Session ready")
}

// fail moves the session to Failed, releases the link and reports the
// failure. It returns the StageError even when the session had already
// ended for another reason.
func (s *Session) fail(kind device.ErrorKind, stage State, cause error) error {
	serr := device.NewStageError(kind, stage.String(), s.ID(), cause)

	if !s.advance(StateFailed, serr, nil) {
		return serr
	}
	s.report(serr)
	s.teardown(true)
	s.finish()
	return serr
}

// linkLost handles a link drop reported by the transport
func (s *Session) linkLost(cause error) {
	if cause == nil {
		cause = device.ErrNotConnected
	} else if !errors.Is(cause, device.ErrNotConnected) {
		cause = fmt.Errorf("%w: %w", device.ErrNotConnected, cause)
	}

	stage, ok := s.halt(StateFailed)
	if !ok {
		return
	}

	serr := device.NewStageError(device.ConnectError, stage.String(), s.ID(), cause)
	if !s.advance(StateFailed, serr, func(State) { s.linkUp = false }) {
		return
	}
	s.report(serr)
	s.teardown(false)
	s.finish()
}

// halt freezes the session so that only to can be entered next and stops
// the keep-alive. It reports the state the session was in, or false when the
// session is already ending.
func (s *Session) halt(to State) (State, bool) {
	s.mu.Lock()
	from := s.state
	if from.IsTerminal() || from == StateDisconnecting || s.halting {
		s.mu.Unlock()
		return from, false
	}
	s.halting = true
	s.haltTo = to
	ka := s.keepAlive
	s.mu.Unlock()

	if ka != nil {
		ka.Stop()
	}
	return from, true
}

func (s *Session) stopKeepAlive() {
	s.mu.Lock()
	ka := s.keepAlive
	s.mu.Unlock()

	if ka != nil {
		ka.Stop()
	}
}

// teardown stops the keep-alive, cancels the pipeline and optionally
// releases a link that is still up.
func (s *Session) teardown(releaseLink bool) {
	s.stopKeepAlive()

	s.mu.Lock()
	cancel := s.cancel
	linkUp := s.linkUp
	s.linkUp = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if releaseLink && linkUp {
		if err := s.transport.Disconnect(s.peripheral); err != nil {
			s.logger.WithField("device", s.ID()).WithError(err).Warn("Best-effort disconnect failed")
		}
	}
}

func (s *Session) finish() {
	s.doneOnce.Do(func() {
		if s.hooks.onTerminal != nil {
			s.hooks.onTerminal(s)
		}
		close(s.done)
	})
}

// Disconnect closes the session from any non-terminal state. The keep-alive
// is stopped before the session leaves its current state, and the session
// ends in Closed whatever the transport reports. Calling it on a closing
// session waits for the session to end; on a terminal one it returns nil.
func (s *Session) Disconnect() error {
	if from, ok := s.halt(StateDisconnecting); !ok {
		if !from.IsTerminal() {
			<-s.done
		}
		return nil
	}

	var from State
	if !s.advance(StateDisconnecting, nil, func(prev State) { from = prev }) {
		return nil
	}

	s.mu.Lock()
	cancel := s.cancel
	s.linkUp = false
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	var err error
	if from != StateDiscovered {
		if derr := s.transport.Disconnect(s.peripheral); derr != nil {
			err = device.NewStageError(device.ConnectError, StateDisconnecting.String(), s.ID(), derr)
			s.report(err)
		}
	}

	s.advance(StateClosed, nil, nil)
	s.finish()

	s.logger.WithField("device", s.ID()).Info("Session closed")
	return err
}

// Send encodes command, segments it and writes the frames in order, without
// response, to the write characteristic. Only valid in Ready. A failed write
// is reported as a WriteError and not retried.
func (s *Session) Send(ctx context.Context, command string) error {
	if st := s.State(); st != StateReady {
		return fmt.Errorf("%w: %s is %s", ErrNotReady, s.ID(), st)
	}

	frames, err := codec.Frames(command, s.profile.MaxWriteSize)
	if err != nil {
		return err
	}

	if err := s.writeFrames(ctx, frames); err != nil {
		serr := device.NewStageError(device.WriteError, "Send", s.ID(), err)
		s.report(serr)
		return serr
	}

	s.logger.WithFields(logrus.Fields{
		"device": s.ID(),
		"bytes":  len(command),
		"frames": len(frames),
	}).Debug("Command sent")
	return nil
}

func (s *Session) writeFrames(ctx context.Context, frames [][]byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	for i, frame := range frames {
		err := s.transport.Write(ctx, s.peripheral, s.profile.Service, s.profile.WriteChar, frame, device.WriteWithoutResponse)
		if err != nil {
			return fmt.Errorf("frame %d/%d: %w", i+1, len(frames), err)
		}
	}
	return nil
}

// ReadValue reads the current value of the notify characteristic
func (s *Session) ReadValue(ctx context.Context) ([]byte, error) {
	if st := s.State(); st != StateReady {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotReady, s.ID(), st)
	}
	return s.transport.Read(ctx, s.peripheral, s.profile.Service, s.profile.NotifyChar)
}

// subscribedTo reports whether char is the characteristic notifications are routed from
func (s *Session) subscribedTo(char string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed != "" && device.EqualUUID(s.subscribed, char)
}

// deliver stores an inbound notification and hands it to the user handler.
// An error reported with the value is a NotificationError; the link stays up.
func (s *Session) deliver(ev device.Event) {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	if ev.Err != nil {
		serr := device.NewStageError(device.NotificationError, "Notification", s.ID(), ev.Err)
		s.record(Notification{Value: ev.Value, Err: serr, Timestamp: ts})
		s.report(serr)
		return
	}

	s.buffer(ev.Value)
	s.record(Notification{Value: ev.Value, Timestamp: ts})

	if s.hooks.onNotification != nil {
		s.hooks.onNotification(s.ID(), ev.Value)
	}
}

// buffer appends value to the inbound byte ring, discarding the oldest bytes on overflow
func (s *Session) buffer(value []byte) {
	s.inboundMu.Lock()
	defer s.inboundMu.Unlock()

	if c := s.inbound.Capacity(); len(value) > c {
		value = value[len(value)-c:]
	}
	if free := s.inbound.Free(); free < len(value) {
		discard := make([]byte, len(value)-free)
		_, _ = s.inbound.Read(discard)
	}
	if _, err := s.inbound.Write(value); err != nil && !errors.Is(err, ringbuffer.ErrIsFull) {
		s.logger.WithField("device", s.ID()).WithError(err).Warn("Inbound buffer write failed")
	}
}

func (s *Session) record(n Notification) {
	overwrites, err := s.history.EnqueueM(n)
	if err != nil {
		s.logger.WithField("device", s.ID()).WithError(err).Warn("Notification history enqueue failed")
		return
	}
	if overwrites > 0 {
		s.logger.WithFields(logrus.Fields{
			"device":      s.ID(),
			"overwritten": overwrites,
		}).Debug("Notification history full, oldest dropped")
	}
}

// Read drains buffered notification bytes. It never blocks: with nothing
// buffered it returns ErrNoData, or io.EOF once the session has ended.
func (s *Session) Read(p []byte) (int, error) {
	s.inboundMu.Lock()
	defer s.inboundMu.Unlock()

	n, err := s.inbound.Read(p)
	if errors.Is(err, ringbuffer.ErrIsEmpty) {
		if s.State().IsTerminal() {
			return 0, io.EOF
		}
		return 0, ErrNoData
	}
	return n, err
}

// Notifications drains the notification history, oldest first
func (s *Session) Notifications() []Notification {
	var out []Notification
	for !s.history.IsEmpty() {
		n, err := s.history.Dequeue()
		if err != nil {
			break
		}
		out = append(out, n)
	}
	return out
}

func (s *Session) String() string {
	return fmt.Sprintf("%s (%s) [%s]", s.Name(), s.ID(), s.State())
}

func containsUUID(list []string, uuid string) bool {
	for _, u := range list {
		if device.EqualUUID(u, uuid) {
			return true
		}
	}
	return false
}

// sleepCtx waits for d and reports false if ctx ended first
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
