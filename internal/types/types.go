// Package types holds the small generic collections and the event emitter
// the rest of the module is built on, in place of class inheritance: every
// component that needs to emit events composes one of these rather than
// extending a base type.
package types

type (
	// Void is the unit value used by Set's backing map.
	Void = struct{}

	// Callable is a zero-argument side-effecting function, used for
	// subscription release and timer cancellation.
	Callable = func()

	// EventName is a Socket.IO/engine event name ("open", "packet", "my-event", ...).
	EventName string

	// Listener receives the arguments an Emit call was given.
	Listener func(...any)
)

var NULL Void
