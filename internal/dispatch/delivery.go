package dispatch

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/pixperk/rws/pkg/protocol"
	"github.com/pixperk/rws/pkg/state"
)

// Delivery fans encoded events out onto per-connection outbound sinks. Targets
// are resolved from registry snapshots taken under the read lock; the writes
// themselves happen outside it. A failed write to one recipient never aborts
// delivery to the others.
type Delivery struct {
	logger  *slog.Logger
	manager state.Manager
}

func NewDelivery(logger *slog.Logger, manager state.Manager) *Delivery {
	return &Delivery{
		logger:  logger.With(slog.String("component", "delivery")),
		manager: manager,
	}
}

// Unicast sends the event to a single client.
func (d *Delivery) Unicast(target uuid.UUID, event protocol.Event) {
	frame, ok := d.encode(event)
	if !ok {
		return
	}
	client, found := d.manager.Lookup(target)
	if !found {
		// target disconnected between resolution and delivery; normal churn
		d.logger.Debug("Unicast target not registered", slog.String("target", target.String()))
		return
	}
	client.Sink.Send(frame)
}

// Multicast sends the event to an explicit list of clients. Identities no
// longer registered are skipped.
func (d *Delivery) Multicast(targets []uuid.UUID, event protocol.Event) {
	frame, ok := d.encode(event)
	if !ok {
		return
	}
	for _, target := range targets {
		if client, found := d.manager.Lookup(target); found {
			client.Sink.Send(frame)
		}
	}
}

// BroadcastAll sends the event to every registered client.
func (d *Delivery) BroadcastAll(event protocol.Event) {
	d.BroadcastExcept(event, uuid.Nil)
}

// BroadcastExcept sends the event to every registered client but one.
func (d *Delivery) BroadcastExcept(event protocol.Event, exclude uuid.UUID) {
	frame, ok := d.encode(event)
	if !ok {
		return
	}
	for _, client := range d.manager.Snapshot() {
		if client.ID == exclude {
			continue
		}
		client.Sink.Send(frame)
	}
}

// BroadcastToRoom sends the event to the room's current members.
func (d *Delivery) BroadcastToRoom(roomID uuid.UUID, event protocol.Event) {
	members, found := d.manager.MembersOf(roomID)
	if !found {
		d.logger.Debug("Broadcast to unknown room", slog.String("roomID", roomID.String()))
		return
	}
	d.Multicast(members, event)
}

func (d *Delivery) encode(event protocol.Event) ([]byte, bool) {
	frame, err := protocol.Encode(event)
	if err != nil {
		d.logger.Error("Failed to encode event", slog.Any("error", err))
		return nil, false
	}
	return frame, true
}
