// Package dispatch routes decoded wire events from client connections to the
// relay's registry and room manager, and fans the results back out.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pixperk/rws/pkg/protocol"
	"github.com/pixperk/rws/pkg/state"
)

// Dispatcher is the per-event state machine. It holds no state of its own
// beyond references to the shared manager and the delivery fan-out.
type Dispatcher struct {
	logger   *slog.Logger
	manager  state.Manager
	delivery *Delivery
}

func NewDispatcher(logger *slog.Logger, manager state.Manager, delivery *Delivery) *Dispatcher {
	return &Dispatcher{
		logger:   logger.With(slog.String("component", "dispatcher")),
		manager:  manager,
		delivery: delivery,
	}
}

// HandleMessage decodes one framed message from a connection and routes it.
// Malformed or unknown frames are dropped; the connection stays open.
func (d *Dispatcher) HandleMessage(ctx context.Context, connID uuid.UUID, frame []byte) {
	event, err := protocol.Decode(frame)
	if err != nil {
		d.logger.Warn("Dropping undecodable frame",
			slog.String("connID", connID.String()),
			slog.Any("error", err),
		)
		return
	}

	switch ev := event.(type) {
	case protocol.Join:
		d.handleJoin(connID, ev)
	case protocol.Chat:
		d.handleChat(connID, ev)
	case protocol.CreateRoom:
		d.handleCreateRoom(connID, ev)
	case protocol.JoinRoom:
		d.handleJoinRoom(connID, ev)
	case protocol.LeaveRoom:
		d.handleLeaveRoom(connID)
	case protocol.Ping:
		d.logger.Debug("Ping", slog.String("connID", connID.String()))
	default:
		// server-to-client events arriving from a client
		d.logger.Warn("Dropping event not accepted from clients",
			slog.String("connID", connID.String()),
			slog.String("event", fmt.Sprintf("%T", event)),
		)
	}
}

func (d *Dispatcher) handleJoin(connID uuid.UUID, ev protocol.Join) {
	if err := d.manager.SetName(connID, ev.Username); err != nil {
		d.logger.Warn("Join for unknown connection", slog.String("connID", connID.String()), slog.Any("error", err))
		return
	}
	d.delivery.Unicast(connID, protocol.AssignedID{UserID: connID})
	d.delivery.BroadcastAll(protocol.Join{Username: ev.Username})
	d.logger.Info("User joined", slog.String("connID", connID.String()), slog.String("username", ev.Username))
}

// handleChat fans the message out to its scope, then acks the sender. The
// fan-out is always issued before the ack, and the sender never receives its
// own Chat copy; AckDelivered is its only confirmation.
func (d *Dispatcher) handleChat(connID uuid.UUID, ev protocol.Chat) {
	sender := d.userInfo(connID)

	if room, occupied := d.manager.RoomOf(connID); occupied {
		chat := protocol.Chat{
			ID:      ev.ID,
			Sender:  sender,
			Content: ev.Content,
			Scope:   protocol.RoomScope(protocol.RoomInfo{ID: room.ID, Name: room.Name}),
		}
		members, _ := d.manager.MembersOf(room.ID)
		d.delivery.Multicast(withoutID(members, connID), chat)
	} else {
		chat := protocol.Chat{
			ID:      ev.ID,
			Sender:  sender,
			Content: ev.Content,
			Scope:   protocol.GlobalScope(),
		}
		d.delivery.BroadcastExcept(chat, connID)
	}

	d.delivery.Unicast(connID, protocol.AckDelivered{ID: ev.ID})
}

func (d *Dispatcher) handleCreateRoom(connID uuid.UUID, ev protocol.CreateRoom) {
	room, err := d.manager.CreateRoom(connID, ev.RoomName)
	if err != nil {
		d.replyError(connID, err)
		return
	}

	d.delivery.Unicast(connID, protocol.CreateRoom{
		Creator:  d.userInfo(connID),
		RoomID:   room.ID,
		RoomName: room.Name,
	})
	d.logger.Info("Room created",
		slog.String("roomID", room.ID.String()),
		slog.String("name", room.Name),
		slog.String("ownerID", connID.String()),
	)
}

func (d *Dispatcher) handleJoinRoom(connID uuid.UUID, ev protocol.JoinRoom) {
	if ev.Room.ID == uuid.Nil {
		d.delivery.Unicast(connID, protocol.ErrorEvent{
			Kind:    protocol.KindInvalidRoomID,
			Message: "join requires a room id",
		})
		return
	}

	res, err := d.manager.JoinRoom(connID, ev.Room.ID)
	if err != nil {
		d.replyError(connID, err)
		return
	}

	user := d.userInfo(connID)
	if res.Left != nil {
		// implicit move: the vacated room learns about it first
		d.delivery.Multicast(res.Left.Members, protocol.LeaveRoom{
			User: user,
			Room: protocol.RoomInfo{ID: res.Left.Room.ID, Name: res.Left.Room.Name},
		})
	}
	d.delivery.Multicast(res.Members, protocol.JoinRoom{
		User: user,
		Room: protocol.RoomInfo{ID: res.Room.ID, Name: res.Room.Name},
	})
	d.logger.Info("User joined room",
		slog.String("connID", connID.String()),
		slog.String("roomID", res.Room.ID.String()),
	)
}

func (d *Dispatcher) handleLeaveRoom(connID uuid.UUID) {
	res, err := d.manager.LeaveRoom(connID)
	if err != nil {
		// not an event-worthy failure; leaving nothing is just logged
		d.logger.Debug("Leave without membership", slog.String("connID", connID.String()), slog.Any("error", err))
		return
	}

	d.delivery.Multicast(res.Members, protocol.LeaveRoom{
		User: d.userInfo(connID),
		Room: protocol.RoomInfo{ID: res.Room.ID, Name: res.Room.Name},
	})
	d.logger.Info("User left room",
		slog.String("connID", connID.String()),
		slog.String("roomID", res.Room.ID.String()),
	)
}

// HandleDisconnect runs the room-side cleanup for a terminated connection.
// Remaining members get the same LeaveRoom notice an explicit leave produces.
func (d *Dispatcher) HandleDisconnect(connID uuid.UUID) {
	res, err := d.manager.LeaveRoom(connID)
	if err != nil {
		return
	}
	d.delivery.Multicast(withoutID(res.Members, connID), protocol.LeaveRoom{
		User: d.userInfo(connID),
		Room: protocol.RoomInfo{ID: res.Room.ID, Name: res.Room.Name},
	})
}

func (d *Dispatcher) replyError(connID uuid.UUID, err error) {
	kind, ok := errorKind(err)
	if !ok {
		d.logger.Error("Unmapped domain error", slog.String("connID", connID.String()), slog.Any("error", err))
		return
	}
	d.delivery.Unicast(connID, protocol.ErrorEvent{Kind: kind, Message: err.Error()})
}

func errorKind(err error) (protocol.ErrorKind, bool) {
	switch {
	case errors.Is(err, state.ErrRoomNotFound):
		return protocol.KindRoomNotFound, true
	case errors.Is(err, state.ErrAlreadyInRoom):
		return protocol.KindAlreadyInRoom, true
	case errors.Is(err, state.ErrInvalidRoomID):
		return protocol.KindInvalidRoomID, true
	default:
		return "", false
	}
}

// userInfo resolves a connection's display identity. Unnamed or already
// deregistered clients render as "Unknown".
func (d *Dispatcher) userInfo(connID uuid.UUID) protocol.UserInfo {
	name := "Unknown"
	if client, ok := d.manager.Lookup(connID); ok && client.Name != "" {
		name = client.Name
	}
	return protocol.UserInfo{ID: connID, Username: name}
}

func withoutID(ids []uuid.UUID, exclude uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}
