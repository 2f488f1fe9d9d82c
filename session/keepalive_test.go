package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/fzlink/codec"
	"github.com/srg/fzlink/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frameSink struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func (f *frameSink) write(_ context.Context, frames [][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frames...)
	return f.err
}

func (f *frameSink) first() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		return nil
	}
	return f.frames[0]
}

func (f *frameSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func testProfile(settle, period time.Duration) Profile {
	return Profile{
		KeepAliveCommand: codec.KeepAliveCommand,
		MaxWriteSize:     codec.MaxWriteSize,
		SettleDelay:      settle,
		KeepAlivePeriod:  period,
	}
}

func TestKeepAlive_FirstTickAfterSettleAndPeriod(t *testing.T) {
	sink := &frameSink{}
	ka := newKeepAlive("AA:01", testProfile(80*time.Millisecond, 20*time.Millisecond), sink.write, nil, logrus.New())

	require.NoError(t, ka.Start(context.Background()))
	defer ka.Stop()

	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, sink.count(), "no tick MUST fire before settle delay + period")

	require.Eventually(t, func() bool { return sink.count() >= 3 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, []byte(codec.KeepAliveCommand), sink.first())
}

func TestKeepAlive_StopIsSynchronous(t *testing.T) {
	sink := &frameSink{}
	ka := newKeepAlive("AA:01", testProfile(0, 5*time.Millisecond), sink.write, nil, logrus.New())

	require.NoError(t, ka.Start(context.Background()))
	require.Eventually(t, func() bool { return ka.Ticks() >= 2 }, 2*time.Second, time.Millisecond)

	ka.Stop()
	ticks := ka.Ticks()
	writes := sink.count()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, ticks, ka.Ticks(), "no tick MUST fire after Stop returns")
	assert.Equal(t, writes, sink.count())

	ka.Stop() // idempotent
}

func TestKeepAlive_StartRules(t *testing.T) {
	sink := &frameSink{}
	ka := newKeepAlive("AA:01", testProfile(0, time.Hour), sink.write, nil, logrus.New())

	require.NoError(t, ka.Start(context.Background()))
	assert.ErrorIs(t, ka.Start(context.Background()), ErrKeepAliveRunning)
	ka.Stop()

	stopped := newKeepAlive("AA:02", testProfile(0, time.Hour), sink.write, nil, logrus.New())
	stopped.Stop()
	assert.Error(t, stopped.Start(context.Background()), "a stopped keep-alive MUST NOT start")
}

func TestKeepAlive_WriteErrorsReported(t *testing.T) {
	sink := &frameSink{err: errors.New("gatt busy")}

	var mu sync.Mutex
	var reported []error
	onError := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, err)
	}

	ka := newKeepAlive("AA:01", testProfile(0, 5*time.Millisecond), sink.write, onError, logrus.New())
	require.NoError(t, ka.Start(context.Background()))
	defer ka.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reported) >= 3
	}, 2*time.Second, time.Millisecond, "ticker MUST keep its period after failures")

	mu.Lock()
	defer mu.Unlock()
	var se *device.StageError
	require.ErrorAs(t, reported[0], &se)
	assert.Equal(t, device.WriteError, se.Kind)
	assert.Equal(t, "KeepAlive", se.Stage)
	assert.Equal(t, "AA:01", se.ID)
}
