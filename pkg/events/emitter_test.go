package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitterDeliversInOrder(t *testing.T) {
	em := NewEmitter()
	var got []string

	em.On(TypeMessageSent, func(ev Event) { got = append(got, "first:"+ev.Payload()["content"].(string)) })
	em.On(TypeMessageSent, func(ev Event) { got = append(got, "second") })
	em.On(TypeError, func(Event) { got = append(got, "unexpected") })

	em.Emit(New(TypeMessageSent, map[string]interface{}{"content": "hi"}))

	assert.Equal(t, []string{"first:hi", "second"}, got)
}

func TestEmitterOff(t *testing.T) {
	em := NewEmitter()
	calls := 0
	id := em.On(TypeError, func(Event) { calls++ })
	keep := em.On(TypeError, func(Event) { calls += 10 })

	em.Off(TypeError, id)
	em.Off(TypeError, HandlerID(999))
	em.Off("unknown", keep)
	em.Emit(New(TypeError, nil))

	assert.Equal(t, 10, calls)
}

func TestEmitterHandlerMayRegister(t *testing.T) {
	em := NewEmitter()
	nested := 0
	em.On(TypeAgentJoined, func(Event) {
		em.On(TypeAgentJoined, func(Event) { nested++ })
	})

	em.Emit(New(TypeAgentJoined, nil))
	assert.Equal(t, 0, nested)

	em.Emit(New(TypeAgentJoined, nil))
	assert.Equal(t, 1, nested)
}

func TestNewStampsEvent(t *testing.T) {
	ev := New(TypeAgentTyping, nil)
	assert.Equal(t, TypeAgentTyping, ev.EventType())
	assert.NotNil(t, ev.Payload())
	assert.False(t, ev.Timestamp().IsZero())
}
