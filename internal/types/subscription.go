package types

import "sync"

// Subscription is a scoped listener registration: release() detaches it,
// idempotently. Bulk-releasing a list of Subscriptions is the only
// sanctioned way components in this module drop listeners across
// lifecycle transitions (reconnects, namespace detach) — it avoids the
// fragility of removing a listener "by reference" when the registered
// function is itself a closure.
type Subscription struct {
	once    sync.Once
	release func()
}

// Subscribe registers fn on evt and returns a handle to undo it.
func Subscribe(emitter EventEmitter, evt EventName, fn Listener) *Subscription {
	emitter.On(evt, fn)
	return &Subscription{release: func() { emitter.RemoveListener(evt, fn) }}
}

// Release detaches the listener. Safe to call more than once or concurrently;
// only the first call has an effect.
func (s *Subscription) Release() {
	s.once.Do(s.release)
}

// ReleaseAll releases every subscription in subs, in order.
func ReleaseAll(subs []*Subscription) {
	for _, s := range subs {
		s.Release()
	}
}

// NewReleaseOnly wraps a bare cleanup func as a Subscription, for callers
// that want the same idempotent-bulk-release handling Subscribe gives
// listener registrations but aren't detaching an EventEmitter listener
// (e.g. canceling a timer).
func NewReleaseOnly(fn func()) *Subscription {
	return &Subscription{release: fn}
}
