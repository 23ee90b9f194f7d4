package events

import "sync"

// Handler receives emitted events.
type Handler func(Event)

// HandlerID identifies a registration so it can be removed with Off.
type HandlerID uint64

type registration struct {
	id HandlerID
	fn Handler
}

// Emitter is a synchronous in-process event bus keyed by event type.
// Handlers run on the emitting goroutine in registration order.
type Emitter struct {
	mu       sync.RWMutex
	next     HandlerID
	handlers map[string][]registration
}

func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[string][]registration)}
}

// On registers fn for eventType.
func (e *Emitter) On(eventType string, fn Handler) HandlerID {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.next++
	e.handlers[eventType] = append(e.handlers[eventType], registration{id: e.next, fn: fn})
	return e.next
}

// Off removes a registration. Unknown ids are ignored.
func (e *Emitter) Off(eventType string, id HandlerID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	regs := e.handlers[eventType]
	for i, r := range regs {
		if r.id == id {
			e.handlers[eventType] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

// Emit delivers ev to the handlers registered at the time of the call.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	regs := append([]registration(nil), e.handlers[ev.EventType()]...)
	e.mu.RUnlock()

	for _, r := range regs {
		r.fn(ev)
	}
}
