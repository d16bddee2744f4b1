// Package actor implements the per-connection reactive update loop.
//
// An Actor owns one application state value. Actions arrive through Send
// and are applied strictly one at a time, in arrival order, by a pure
// Reducer. The reducer reports whether the transition changed the state;
// only changed transitions are rendered and published, so a connection
// never sees a snapshot for a no-op action.
//
// A reducer may schedule deferred actions through Effects.After. A deferred
// action is delivered once, after its delay, onto the same queue as
// externally received actions. Pending timers are cancelled when the actor
// stops.
//
// Both the action queue and the snapshot queue hold a single element.
// Processing therefore stays serialized without locks: a slow transport
// stalls publishing, and a busy actor stalls the reader feeding it.
//
//	a := actor.New(initial, reduce, renderer)
//	go a.Run(ctx)
//	_ = a.Send(ctx, protocol.NewAction("Increment"))
//	tree := <-a.Snapshots()
package actor
