package events

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Handler processes one event. Handlers run off the publisher's
// goroutine; a panicking or slow handler never reaches the emitting call.
type Handler func(Event)

// Bus is an in-process fire-and-forget publisher. Delivery runs on a
// bounded worker pool; when the queue is full events are dropped with a
// warning rather than blocking the caller.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler

	queue    chan Event
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *logrus.Entry
}

// NewBus creates a bus with the given number of dispatch workers and
// queue capacity.
func NewBus(workers, queueSize int) *Bus {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	b := &Bus{
		handlers: make(map[EventType][]Handler),
		queue:    make(chan Event, queueSize),
		stopCh:   make(chan struct{}),
		logger:   logrus.WithField("component", "event-bus"),
	}

	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}

	return b
}

// Subscribe registers a handler for an event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish enqueues an event for delivery and returns immediately.
func (b *Bus) Publish(eventType EventType, payload interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	select {
	case b.queue <- event:
	case <-b.stopCh:
	default:
		b.logger.WithField("event", eventType).Warn("event queue full, dropping event")
	}
}

// SubscriberCount returns the number of handlers for an event type.
func (b *Bus) SubscriberCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

// Close stops the dispatch workers. Queued events may be dropped.
func (b *Bus) Close() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	b.wg.Wait()
}

func (b *Bus) worker() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.queue:
			b.dispatch(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bus) dispatch(event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.Type]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.safeCall(handler, event)
	}
}

func (b *Bus) safeCall(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithFields(logrus.Fields{
				"event": event.Type,
				"panic": r,
			}).Error("event handler panicked")
		}
	}()
	handler(event)
}
