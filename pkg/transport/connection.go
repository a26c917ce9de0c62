package transport

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// MessageHandler is the callback executed for every framed message read from
// the connection.
type MessageHandler func(ctx context.Context, connID uuid.UUID, frame []byte)

// OnCloseHandler is fired exactly once when the connection terminates.
type OnCloseHandler func(connID uuid.UUID, err error)

type ConnectionConfig struct {
	ReadTimeout time.Duration
}

// Connection wraps a single WebSocket connection as a framed duplex stream.
// Outbound frames go through a buffered send channel drained by one writePump,
// so writes to a connection are serialized and never reordered.
type Connection struct {
	id     uuid.UUID
	conn   *websocket.Conn
	config ConnectionConfig
	send   chan []byte

	onMessage MessageHandler
	onClose   OnCloseHandler

	done      chan struct{}
	wg        *sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	logger *slog.Logger
}

func NewConnection(parentCtx context.Context, wg *sync.WaitGroup, conn *websocket.Conn, config ConnectionConfig, onMessage MessageHandler, onClose OnCloseHandler, logger *slog.Logger) *Connection {
	id := uuid.New()
	connCtx, cancel := context.WithCancel(parentCtx)

	// The matching Done runs in Close, which fires even when the connection
	// is torn down before Run.
	wg.Add(1)

	return &Connection{
		id:        id,
		conn:      conn,
		config:    config,
		send:      make(chan []byte, 256),
		onMessage: onMessage,
		onClose:   onClose,
		done:      make(chan struct{}),
		wg:        wg,
		ctx:       connCtx,
		cancel:    cancel,
		logger:    logger.With(slog.String("connID", id.String())),
	}
}

func (c *Connection) Run() {
	go c.readPump()
	go c.writePump()

	c.logger.Info("connection established")
}

// readPump pumps framed messages from the WebSocket to the message handler.
// It ends only when the underlying stream ends or errors.
func (c *Connection) readPump() {
	var readErr error
	defer func() {
		c.Close(readErr)
	}()

	for {
		readCtx := c.ctx
		var cancelRead context.CancelFunc
		if c.config.ReadTimeout > 0 {
			readCtx, cancelRead = context.WithTimeout(c.ctx, c.config.ReadTimeout)
		}
		typ, r, err := c.conn.Reader(readCtx)
		if err != nil {
			readErr = err
			if cancelRead != nil {
				cancelRead()
			}
			return
		}
		if typ != websocket.MessageText && typ != websocket.MessageBinary {
			if cancelRead != nil {
				cancelRead()
			}
			continue
		}
		frame, err := io.ReadAll(r)
		if cancelRead != nil {
			cancelRead()
		}
		if err != nil {
			c.logger.Error("Failed to read frame body", slog.Any("error", err))
			readErr = err
			return
		}
		c.onMessage(c.ctx, c.id, frame)
	}
}

// writePump drains the send channel onto the WebSocket. It is the only writer
// for this connection.
func (c *Connection) writePump() {
	var writeErr error
	defer func() {
		c.Close(writeErr)
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if err := c.conn.Write(c.ctx, websocket.MessageText, frame); err != nil {
				writeErr = err
				return
			}
		case <-c.ctx.Done():
			c.conn.Close(websocket.StatusNormalClosure, "server shutting down")
			return
		}
	}
}

// Send queues a frame for this connection. It is safe for concurrent use and
// never blocks the caller: a full buffer drops the frame (the slow consumer's
// own read loop is responsible for tearing the connection down).
func (c *Connection) Send(frame []byte) {
	defer func() {
		// Close may shut the send channel between the ctx check and the send.
		if r := recover(); r != nil {
			c.logger.Warn("Dropped frame for closing connection", slog.Any("recovered", r))
		}
	}()

	select {
	case c.send <- frame:
	case <-c.ctx.Done():
		c.logger.Warn("Attempted to send on a closed connection")
	default:
		c.logger.Warn("Send buffer full, dropping frame")
	}
}

// Close shuts the connection down and fires the close handler once.
func (c *Connection) Close(err error) {
	c.closeOnce.Do(func() {
		status := websocket.CloseStatus(err)
		c.logger.Info("Connection closing", slog.Any("reason", err), slog.String("status", status.String()))

		c.cancel()
		close(c.send)
		c.conn.Close(websocket.StatusNormalClosure, "")
		if c.onClose != nil {
			c.onClose(c.id, err)
		}
		c.wg.Done()
		close(c.done)
	})
}

// Done returns a channel closed when the connection is fully terminated.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// ID returns the unique identifier of the connection.
func (c *Connection) ID() uuid.UUID {
	return c.id
}

func (c *Connection) SetOnMessageHandler(handler MessageHandler) {
	c.onMessage = handler
}

func (c *Connection) SetOnCloseHandler(handler OnCloseHandler) {
	c.onClose = handler
}
