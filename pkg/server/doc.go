// Package server bridges WebSocket connections to per-connection sessions.
//
// # Architecture
//
//   - Server: accepts upgrades on one path, requires the configured
//     sub-protocol, and starts a Bridge for every accepted connection
//   - Bridge: pumps one connection in both directions
//   - Session: the per-connection state loop, normally an *actor.Actor
//   - SessionFactory: creates a fresh Session per connection
//
// # Connection Lifecycle
//
// Each bridge runs three goroutines:
//   - read loop: decodes text frames into actions and sends them to the session
//   - session: applies actions and publishes snapshots
//   - write loop: encodes snapshots into text frames, then sends a close frame
//
// Undecodable text frames and binary frames are logged and dropped; the
// connection stays open. A close frame from the peer ends the read loop,
// which closes the session input; the session then ends its snapshot stream
// and the write loop closes the connection. A transport failure in either
// loop cancels the others. Pending deferred actions are cancelled with the
// session.
//
// # Example Usage
//
//	codec := protocol.NewCodec("Increment", "Decrement")
//	factory := server.ActorFactory(newState, reduce, newRenderer)
//	srv := server.New(server.DefaultConfig(), codec, factory)
//	err := srv.Run(ctx)
//
// # Thread Safety
//
// Connections share nothing but the server metrics. Within a connection
// the action and snapshot queues each hold one element, so the read loop
// stalls while the session is busy and the session stalls while a write is
// in flight.
package server
