package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrUnknownEvent marks a frame whose tag is outside the closed event set.
// Callers drop the frame and keep the connection open.
var ErrUnknownEvent = errors.New("unknown event tag")

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode frames an event as `{"event": tag, "data": payload}`.
func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", e.tag(), err)
	}
	return json.Marshal(envelope{Event: e.tag(), Data: data})
}

// Decode parses a framed event. The tag is sniffed first so the payload can be
// unmarshalled into the matching concrete type.
func Decode(frame []byte) (Event, error) {
	if !gjson.ValidBytes(frame) {
		return nil, errors.New("frame is not valid JSON")
	}
	tag := gjson.GetBytes(frame, "event")
	if !tag.Exists() {
		return nil, errors.New("frame has no event tag")
	}
	data := []byte(gjson.GetBytes(frame, "data").Raw)
	if len(data) == 0 {
		data = []byte("{}")
	}

	var (
		event Event
		err   error
	)
	switch tag.String() {
	case "Join":
		event, err = decodePayload[Join](data)
	case "AssignedId":
		event, err = decodePayload[AssignedID](data)
	case "Chat":
		event, err = decodePayload[Chat](data)
	case "AckDelivered":
		event, err = decodePayload[AckDelivered](data)
	case "CreateRoom":
		event, err = decodePayload[CreateRoom](data)
	case "JoinRoom":
		event, err = decodePayload[JoinRoom](data)
	case "LeaveRoom":
		event, err = decodePayload[LeaveRoom](data)
	case "Error":
		event, err = decodePayload[ErrorEvent](data)
	case "Ping":
		event = Ping{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, tag.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", tag.String(), err)
	}
	return event, nil
}

func decodePayload[T Event](data []byte) (Event, error) {
	var payload T
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
