package types

import (
	"reflect"
	"sync"
)

// EventEmitter is the capability set every component in this module
// composes instead of inheriting from a base "emitter" class: register a
// listener, remove one, fire an event. The Manager, the Socket, and the
// transports all embed one.
type EventEmitter interface {
	On(EventName, Listener)
	Once(EventName, Listener)
	Emit(EventName, ...any)
	RemoveListener(EventName, Listener) bool
	RemoveAllListeners(EventName)
	ListenerCount(EventName) int
}

type listenerEntry struct {
	fn  Listener
	ptr uintptr
}

type emitter struct {
	listeners Map[EventName, *Slice[*listenerEntry]]
}

// NewEventEmitter returns an empty EventEmitter.
func NewEventEmitter() EventEmitter {
	return &emitter{}
}

func (e *emitter) add(evt EventName, entry *listenerEntry) {
	slice, _ := e.listeners.LoadOrStore(evt, NewSlice[*listenerEntry]())
	slice.Push(entry)
}

func (e *emitter) On(evt EventName, fn Listener) {
	if fn == nil {
		return
	}
	e.add(evt, &listenerEntry{fn: fn, ptr: reflect.ValueOf(fn).Pointer()})
}

func (e *emitter) Once(evt EventName, fn Listener) {
	if fn == nil {
		return
	}
	var once sync.Once
	ptr := reflect.ValueOf(fn).Pointer()
	var wrapped Listener
	wrapped = func(args ...any) {
		once.Do(func() {
			defer e.RemoveListener(evt, wrapped)
			fn(args...)
		})
	}
	e.add(evt, &listenerEntry{fn: wrapped, ptr: ptr})
}

func (e *emitter) Emit(evt EventName, data ...any) {
	slice, ok := e.listeners.Load(evt)
	if !ok {
		return
	}
	for _, entry := range slice.All() {
		entry.fn(data...)
	}
}

func (e *emitter) RemoveListener(evt EventName, fn Listener) bool {
	if fn == nil {
		return false
	}
	slice, ok := e.listeners.Load(evt)
	if !ok {
		return false
	}
	targetPtr := reflect.ValueOf(fn).Pointer()
	removed := slice.RangeAndSplice(func(entry *listenerEntry, i int) (bool, int, int, []*listenerEntry) {
		return entry.ptr == targetPtr, i, 1, nil
	})
	return len(removed) > 0
}

func (e *emitter) RemoveAllListeners(evt EventName) {
	e.listeners.Delete(evt)
}

func (e *emitter) ListenerCount(evt EventName) int {
	slice, ok := e.listeners.Load(evt)
	if !ok {
		return 0
	}
	return slice.Len()
}
