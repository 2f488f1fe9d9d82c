package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/srg/fzlink/internal/device"
	"github.com/srg/fzlink/internal/groutine"
)

// Router dispatches the transport's global event stream to sessions.
//
// Notifications reach a session only when they come from its subscribed
// characteristic. Link drops are forwarded to the owning session. Panics
// raised by notification handlers are recovered and logged.
type Router struct {
	registry *Registry
	logger   *logrus.Logger

	mu   sync.Mutex
	task *groutine.Task

	delivered atomic.Int64
	dropped   atomic.Int64
}

func NewRouter(registry *Registry, logger *logrus.Logger) *Router {
	if logger == nil {
		logger = logrus.New()
	}
	return &Router{registry: registry, logger: logger}
}

// Start consumes events until ctx ends, the stream closes or Stop is called
func (r *Router) Start(ctx context.Context, events <-chan device.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.task != nil {
		return
	}
	r.task = groutine.Start(ctx, "event-router", func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					r.logger.Debug("Event stream closed, router exiting")
					return
				}
				r.Route(ev)
			}
		}
	})
}

// Stop ends the routing goroutine and waits for it
func (r *Router) Stop() {
	r.mu.Lock()
	task := r.task
	r.mu.Unlock()

	if task != nil {
		task.Stop()
	}
}

// Route dispatches a single event
func (r *Router) Route(ev device.Event) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.WithFields(logrus.Fields{
				"device": ev.Peripheral,
				"panic":  p,
			}).Error("Notification handler panicked")
		}
	}()

	s, ok := r.registry.Get(ev.Peripheral)
	if !ok {
		r.dropped.Add(1)
		r.logger.WithField("device", ev.Peripheral).Debug("Event for unknown session dropped")
		return
	}

	switch ev.Kind {
	case device.EventDisconnected:
		s.linkLost(ev.Err)

	case device.EventNotification:
		if !s.subscribedTo(ev.Characteristic) {
			r.dropped.Add(1)
			r.logger.WithFields(logrus.Fields{
				"device":         ev.Peripheral,
				"characteristic": ev.Characteristic,
			}).Debug("Notification from unsubscribed characteristic dropped")
			return
		}
		r.delivered.Add(1)
		s.deliver(ev)
	}
}

// Delivered returns how many notifications reached a session
func (r *Router) Delivered() int64 {
	return r.delivered.Load()
}

// Dropped returns how many events matched no subscription
func (r *Router) Dropped() int64 {
	return r.dropped.Load()
}
