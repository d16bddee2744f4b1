// Package protocol implements the JSON wire protocol spoken over a
// negotiated WebSocket sub-protocol.
//
// Two message kinds flow over the connection, both as UTF-8 text frames.
//
// Client to server, one action per frame:
//
//	{"tag": "Increment", "associated": {"key": "value"}}
//
// The tag must be one of the tags declared to the Codec. The associated
// mapping is required but may be empty.
//
// Server to client, one full snapshot per frame:
//
//	{"tree": {"tag": "div", "props": {...}, "children": [...]}}
//
// The envelope leaves room for further message kinds without breaking
// clients that only understand "tree". Text children are encoded as JSON
// strings. Props may carry an Action, which the client emits back when the
// bound event fires.
package protocol

// DefaultSubprotocol is the sub-protocol identifier offered by compatible
// clients during the WebSocket upgrade.
const DefaultSubprotocol = "vdom-websocket-rsjs"
