package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/fzlink/codec"
	"github.com/srg/fzlink/internal/device"
	"github.com/srg/fzlink/internal/groutine"
)

var errKeepAliveStopped = errors.New("keep-alive stopped")

// keepAlive periodically writes the keep-alive command while a session is Ready.
type keepAlive struct {
	id       string
	command  string
	maxWrite int
	settle   time.Duration
	period   time.Duration
	write    func(ctx context.Context, frames [][]byte) error
	onError  func(err error)
	logger   *logrus.Logger

	mu      sync.Mutex
	task    *groutine.Task
	stopped bool

	ticks atomic.Int64
}

func newKeepAlive(id string, p Profile, write func(context.Context, [][]byte) error, onError func(error), logger *logrus.Logger) *keepAlive {
	return &keepAlive{
		id:       id,
		command:  p.KeepAliveCommand,
		maxWrite: p.MaxWriteSize,
		settle:   p.SettleDelay,
		period:   p.KeepAlivePeriod,
		write:    write,
		onError:  onError,
		logger:   logger,
	}
}

// Start launches the tick goroutine. The first tick fires after the settle
// delay plus one period.
func (k *keepAlive) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.stopped {
		return errKeepAliveStopped
	}
	if k.task != nil {
		return ErrKeepAliveRunning
	}

	k.task = groutine.Start(ctx, "keepalive-"+k.id, k.run)
	k.logger.WithFields(logrus.Fields{
		"device": k.id,
		"period": k.period,
	}).Debug("Keep-alive started")
	return nil
}

// Stop cancels the ticker and waits for it to exit; no tick fires once Stop returns.
func (k *keepAlive) Stop() {
	k.mu.Lock()
	k.stopped = true
	task := k.task
	k.mu.Unlock()

	if task != nil {
		task.Stop()
	}
}

func (k *keepAlive) Ticks() int64 {
	return k.ticks.Load()
}

func (k *keepAlive) run(ctx context.Context) {
	first := time.NewTimer(k.settle + k.period)
	defer first.Stop()

	select {
	case <-ctx.Done():
		return
	case <-first.C:
	}

	ticker := time.NewTicker(k.period)
	defer ticker.Stop()

	for {
		k.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (k *keepAlive) tick(ctx context.Context) {
	k.ticks.Add(1)

	frames, err := codec.Frames(k.command, k.maxWrite)
	if err == nil {
		wctx, cancel := context.WithTimeout(ctx, k.period)
		err = k.write(wctx, frames)
		cancel()
	}
	if err == nil || ctx.Err() != nil {
		return
	}

	serr := device.NewStageError(device.WriteError, "KeepAlive", k.id, err)
	if k.onError != nil {
		k.onError(serr)
	}
}
