package server

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/vdombridge/pkg/actor"
	"github.com/vango-dev/vdombridge/pkg/protocol"
)

// Transport is the message-framed connection a Bridge pumps.
// *websocket.Conn satisfies it.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Bridge pumps one connection: inbound text frames become actions for the
// session, and session snapshots become outbound text frames.
type Bridge struct {
	id      string
	conn    Transport
	codec   *protocol.Codec
	session Session
	config  *Config
	metrics *Metrics
	logger  *slog.Logger

	closeSent atomic.Bool
}

// NewBridge creates a Bridge. A nil metrics disables instrumentation.
func NewBridge(id string, conn Transport, codec *protocol.Codec, session Session, config *Config, metrics *Metrics, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default().With("component", "bridge", "conn_id", id)
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Bridge{
		id:      id,
		conn:    conn,
		codec:   codec,
		session: session,
		config:  config.withDefaults(),
		metrics: metrics,
		logger:  logger,
	}
}

// Run pumps messages until both directions have ended and the session has
// stopped, then closes the transport.
//
// The inbound loop ending closes the session input; the session then
// closes its snapshot stream, after which the outbound loop sends a close
// frame. The outbound loop ending bounds the inbound loop by
// CloseGracePeriod. Any failure cancels the remaining flows.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.conn.Close()

	g, gctx := errgroup.WithContext(ctx)

	// ReadMessage does not observe contexts; a past deadline unblocks it.
	stop := context.AfterFunc(gctx, func() {
		_ = b.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	g.Go(func() error {
		defer b.session.CloseInput()
		return b.readLoop(gctx)
	})
	g.Go(func() error {
		err := b.session.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return b.writeLoop()
	})

	return g.Wait()
}

// readLoop forwards decoded actions to the session until the peer closes,
// the transport fails or the session stops accepting input.
func (b *Bridge) readLoop(ctx context.Context) error {
	for {
		mt, data, err := b.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			switch {
			case errors.As(err, &ce):
				b.logger.Debug("peer closed connection", "code", ce.Code, "text", ce.Text)
				return nil
			case b.closeSent.Load() || ctx.Err() != nil:
				return nil
			}
			b.metrics.transportError("read")
			b.logger.Warn("read error", "error", err)
			return &BridgeError{ConnID: b.id, Op: "read", Err: err}
		}

		// Control frames never reach here; they go to the handlers
		// installed by the server.
		switch mt {
		case websocket.TextMessage:
			action, err := b.codec.DecodeAction(data)
			if err != nil {
				b.metrics.decodeError()
				b.logger.Warn("dropping undecodable message", "error", err, "bytes", len(data))
				continue
			}
			b.metrics.actionReceived()
			if err := b.session.Send(ctx, action); err != nil {
				if errors.Is(err, actor.ErrInputClosed) || errors.Is(err, actor.ErrStopped) || ctx.Err() != nil {
					return nil
				}
				return err
			}

		case websocket.BinaryMessage:
			b.metrics.messageDropped("binary")
			b.logger.Warn("unexpected binary message", "bytes", len(data))
		}
	}
}

// writeLoop writes every snapshot as a text frame and finishes with a
// close frame once the stream ends.
func (b *Bridge) writeLoop() error {
	for tree := range b.session.Snapshots() {
		data, err := protocol.EncodeSnapshot(tree)
		if err != nil {
			b.logger.Error("dropping unencodable snapshot", "error", err)
			continue
		}

		_ = b.conn.SetWriteDeadline(time.Now().Add(b.config.WriteTimeout))
		if err := b.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			b.metrics.transportError("write")
			b.logger.Warn("write error", "error", err)
			return &BridgeError{ConnID: b.id, Op: "write", Err: err}
		}
		b.metrics.snapshotSent(len(data))
	}

	b.closeSent.Store(true)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := b.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(b.config.WriteTimeout)); err != nil {
		b.logger.Debug("close frame not sent", "error", err)
	}
	_ = b.conn.SetReadDeadline(time.Now().Add(b.config.CloseGracePeriod))
	return nil
}
