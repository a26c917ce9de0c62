package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/pixperk/rws/pkg/protocol"
)

// Client owns one connection to the relay. Reads flow through the reconciler
// into the Lines channel; writes are serialized by a mutex so frames from the
// input loop never interleave.
type Client struct {
	conn       *websocket.Conn
	reconciler *Reconciler
	lines      chan Line
	logger     *slog.Logger

	writeMu sync.Mutex
}

// Connect dials the relay, performs the Join handshake, and returns a client
// ready to Run.
func Connect(ctx context.Context, url, username string, logger *slog.Logger) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	c := &Client{
		conn:       conn,
		reconciler: NewReconciler(username),
		lines:      make(chan Line, 64),
		logger:     logger.With(slog.String("component", "client")),
	}
	if err := c.write(ctx, protocol.Join{Username: username}); err != nil {
		conn.Close(websocket.StatusInternalError, "join failed")
		return nil, err
	}
	return c, nil
}

// Lines is the stream of display lines produced by incoming events.
func (c *Client) Lines() <-chan Line {
	return c.lines
}

// Reconciler exposes the local log, mainly for the prompt and for tests.
func (c *Client) Reconciler() *Reconciler {
	return c.reconciler
}

// Run reads frames until the connection ends and folds them into the
// reconciler. It closes the Lines channel on exit.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.lines)

	for {
		_, frame, err := c.conn.Read(ctx)
		if err != nil {
			return err
		}
		event, err := protocol.Decode(frame)
		if err != nil {
			c.logger.Warn("Dropping undecodable frame", slog.Any("error", err))
			continue
		}
		for _, line := range c.reconciler.Apply(event) {
			select {
			case c.lines <- line:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Handle executes one parsed command against the connection. QuitCommand is
// the caller's business; it reports true for it so the caller can stop.
func (c *Client) Handle(ctx context.Context, cmd Command) (quit bool, err error) {
	switch cmd := cmd.(type) {
	case nil:
		return false, nil
	case ChatCommand:
		ev := c.reconciler.SubmitChat(cmd.Content)
		return false, c.write(ctx, ev)
	case CreateRoomCommand:
		return false, c.write(ctx, protocol.CreateRoom{
			Creator:  c.reconciler.Self(),
			RoomName: cmd.Name,
		})
	case JoinRoomCommand:
		return false, c.write(ctx, protocol.JoinRoom{
			User: c.reconciler.Self(),
			Room: protocol.RoomInfo{ID: cmd.RoomID},
		})
	case LeaveRoomCommand:
		room, _ := c.reconciler.CurrentRoom()
		return false, c.write(ctx, protocol.LeaveRoom{
			User: c.reconciler.Self(),
			Room: room,
		})
	case QuitCommand:
		return true, nil
	case InvalidCommand:
		return false, errors.New(cmd.Usage)
	default:
		return false, fmt.Errorf("unhandled command %T", cmd)
	}
}

// Close tears the connection down.
func (c *Client) Close() {
	c.conn.Close(websocket.StatusNormalClosure, "bye")
}

func (c *Client) write(ctx context.Context, event protocol.Event) error {
	frame, err := protocol.Encode(event)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, frame)
}
