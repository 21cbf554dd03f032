package server

import (
	"log"
	"sync"
	"time"
)

// EventType names the notifications pushed to the control surface.
type EventType string

const (
	EventStatusUpdate EventType = "status-update"
	EventLogLine      EventType = "log-line"
	EventPlayerUpdate EventType = "player-update"
)

// Event is one notification from the supervisor. Only the field matching
// Type is meaningful.
type Event struct {
	Type    EventType       `json:"type"`
	Status  LifecycleStatus `json:"status"`
	Line    string          `json:"line,omitempty"`
	Players int             `json:"players"`
	Time    time.Time       `json:"timestamp"`
}

// Payload returns the value clients receive for this event: the status name,
// the log line or the player count.
func (e Event) Payload() interface{} {
	switch e.Type {
	case EventStatusUpdate:
		return e.Status.String()
	case EventLogLine:
		return e.Line
	case EventPlayerUpdate:
		return e.Players
	default:
		return nil
	}
}

// EventSink receives supervisor events. HandleEvent is called from a single
// goroutine, in emission order, and should not block for long.
type EventSink interface {
	HandleEvent(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

func (f EventSinkFunc) HandleEvent(e Event) { f(e) }

const eventBufferSize = 1024

// eventBus fans events out to sinks from one dispatcher goroutine so every
// sink observes events in the order they were emitted.
type eventBus struct {
	mu    sync.RWMutex
	sinks []EventSink

	events chan Event
	done   chan struct{}
	closed sync.Once
	wg     sync.WaitGroup
}

func newEventBus() *eventBus {
	b := &eventBus{
		events: make(chan Event, eventBufferSize),
		done:   make(chan struct{}),
	}
	b.wg.Add(1)
	go b.run()
	return b
}

func (b *eventBus) subscribe(sink EventSink) {
	b.mu.Lock()
	b.sinks = append(b.sinks, sink)
	b.mu.Unlock()
}

func (b *eventBus) emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	select {
	case b.events <- e:
	case <-b.done:
	}
}

func (b *eventBus) run() {
	defer b.wg.Done()
	for {
		select {
		case e := <-b.events:
			b.deliver(e)
		case <-b.done:
			// Flush what is already queued.
			for {
				select {
				case e := <-b.events:
					b.deliver(e)
				default:
					return
				}
			}
		}
	}
}

func (b *eventBus) deliver(e Event) {
	b.mu.RLock()
	sinks := make([]EventSink, len(b.sinks))
	copy(sinks, b.sinks)
	b.mu.RUnlock()

	for _, sink := range sinks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[Events] Sink panicked on %s: %v", e.Type, r)
				}
			}()
			sink.HandleEvent(e)
		}()
	}
}

func (b *eventBus) close() {
	b.closed.Do(func() {
		close(b.done)
	})
	b.wg.Wait()
}
