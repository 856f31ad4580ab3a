package events

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"

	"github.com/muurk/probewatch/internal/logging"
	"go.uber.org/zap"
)

// Class identifies a stream of events. Ordering is preserved within a class
// and, because a loop has a single dispatch goroutine, across classes posted
// to the same loop. Consumers must not rely on the latter.
type Class string

const (
	// LinkConnected is posted when the station associates with the AP.
	LinkConnected Class = "wifi.sta_connected"
	// LinkDisconnected is posted whenever the station loses its association.
	LinkDisconnected Class = "wifi.sta_disconnected"
	// AddressAcquired is posted when the interface obtains an IPv4 address.
	AddressAcquired Class = "ip.sta_got_ip"
	// DriverDeinitialized is posted once the driver finished tearing down.
	DriverDeinitialized Class = "wifi.driver_deinit"
)

// DefaultQueueSize is the number of events buffered before Post blocks.
const DefaultQueueSize = 32

var (
	// ErrLoopClosed is returned by Post and Register after Close.
	ErrLoopClosed = errors.New("event loop is closed")
	// ErrNotRegistered is returned by Unregister for an unknown handle.
	ErrNotRegistered = errors.New("handler not registered")
)

// Disconnect is the payload of LinkDisconnected.
type Disconnect struct {
	Interface string
	Reason    uint16 // IEEE 802.11 reason code
}

// Address is the payload of AddressAcquired.
type Address struct {
	Interface string
	Addr      netip.Addr
}

// Event is a single notification delivered by the loop.
type Event struct {
	Class Class
	Data  any
}

// Handler receives events on the dispatch goroutine. Handlers must not block
// for long; anything slow belongs on its own goroutine.
type Handler func(Event)

// Handle identifies a registration for Unregister.
type Handle struct {
	class Class
	id    uint64
}

// Class returns the event class the handle was registered for.
func (h Handle) Class() Class { return h.class }

type registration struct {
	id      uint64
	handler Handler
}

// Loop is an asynchronous event-dispatch loop with one delivery goroutine.
type Loop struct {
	mu       sync.Mutex
	handlers map[Class][]registration
	nextID   uint64
	closed   bool

	queue chan queued
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

type queued struct {
	ev      Event
	barrier chan struct{}
}

// NewLoop creates a loop and starts its dispatch goroutine.
func NewLoop(queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	l := &Loop{
		handlers: make(map[Class][]registration),
		queue:    make(chan queued, queueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go l.dispatch()
	return l
}

// Register adds a handler for class and returns a handle for Unregister.
func (l *Loop) Register(class Class, h Handler) (Handle, error) {
	if h == nil {
		return Handle{}, fmt.Errorf("nil handler for %s", class)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return Handle{}, ErrLoopClosed
	}
	l.nextID++
	l.handlers[class] = append(l.handlers[class], registration{id: l.nextID, handler: h})
	return Handle{class: class, id: l.nextID}, nil
}

// Unregister removes a handler. Events already being delivered may still
// reach it.
func (l *Loop) Unregister(h Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	regs := l.handlers[h.class]
	for i, r := range regs {
		if r.id == h.id {
			l.handlers[h.class] = append(regs[:i:i], regs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s/%d", ErrNotRegistered, h.class, h.id)
}

// Post enqueues an event for delivery. It blocks while the queue is full.
func (l *Loop) Post(ev Event) error {
	return l.enqueue(queued{ev: ev})
}

// Flush blocks until every event posted before the call has been delivered.
func (l *Loop) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	if err := l.enqueue(queued{barrier: barrier}); err != nil {
		return err
	}
	select {
	case <-barrier:
		return nil
	case <-l.done:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) enqueue(q queued) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrLoopClosed
	}

	select {
	case l.queue <- q:
		return nil
	case <-l.stop:
		return ErrLoopClosed
	}
}

// Close stops the dispatch goroutine. Queued events are dropped.
func (l *Loop) Close() {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		close(l.stop)
	})
	<-l.done
}

func (l *Loop) dispatch() {
	defer close(l.done)
	for {
		select {
		case <-l.stop:
			return
		case q := <-l.queue:
			if q.barrier != nil {
				close(q.barrier)
				continue
			}
			l.deliver(q.ev)
		}
	}
}

func (l *Loop) deliver(ev Event) {
	l.mu.Lock()
	regs := append([]registration(nil), l.handlers[ev.Class]...)
	l.mu.Unlock()

	logging.Debug("Dispatching event",
		zap.String("class", string(ev.Class)),
		zap.Int("handlers", len(regs)),
	)
	for _, r := range regs {
		r.handler(ev)
	}
}
