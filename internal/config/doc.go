// Package config loads vdombridge settings from the environment.
//
// Every variable carries the VDOMBRIDGE_ prefix:
//
//	VDOMBRIDGE_ADDR              listen address (127.0.0.1:8080)
//	VDOMBRIDGE_PATH              upgrade path (/)
//	VDOMBRIDGE_PROTOCOL          accepted sub-protocol (vdom-websocket-rsjs)
//	VDOMBRIDGE_ALLOW_ANY_ORIGIN  skip the same-origin check (false)
//	VDOMBRIDGE_MAX_MESSAGE_SIZE  inbound frame limit in bytes (65536)
//	VDOMBRIDGE_WRITE_TIMEOUT     per-frame write deadline (10s)
//	VDOMBRIDGE_CLOSE_GRACE       wait for the peer after the close frame (2s)
//	VDOMBRIDGE_SHUTDOWN_TIMEOUT  bound on graceful shutdown (10s)
//	VDOMBRIDGE_LOG_LEVEL         debug, info, warn or error (info)
//	VDOMBRIDGE_LOG_FORMAT        text or json (text)
//	VDOMBRIDGE_DEFER_DELAY       counter reaction delay (200ms)
//	VDOMBRIDGE_UNDERFLOW         counter underflow policy: saturate, reject or fail (saturate)
//
// Command-line flags override these values.
package config
