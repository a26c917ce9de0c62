package client

import (
	"strings"

	"github.com/google/uuid"
)

// Command is the closed set of parsed user inputs.
type Command interface {
	command()
}

type ChatCommand struct {
	Content string
}

type CreateRoomCommand struct {
	Name string
}

type JoinRoomCommand struct {
	RoomID uuid.UUID
}

type LeaveRoomCommand struct{}

type QuitCommand struct{}

// InvalidCommand carries the usage line to show for a malformed input.
type InvalidCommand struct {
	Usage string
}

func (ChatCommand) command()       {}
func (CreateRoomCommand) command() {}
func (JoinRoomCommand) command()   {}
func (LeaveRoomCommand) command()  {}
func (QuitCommand) command()       {}
func (InvalidCommand) command()    {}

// ParseInput turns one input line into a command. Anything that is not a
// slash command is a chat message. Empty lines parse to nil.
func ParseInput(line string) Command {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return ChatCommand{Content: line}
	}

	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch verb {
	case "/create":
		if rest == "" {
			return InvalidCommand{Usage: "usage: /create <room-name>"}
		}
		return CreateRoomCommand{Name: rest}
	case "/join":
		roomID, err := uuid.Parse(rest)
		if err != nil {
			return InvalidCommand{Usage: "usage: /join <room-id>"}
		}
		return JoinRoomCommand{RoomID: roomID}
	case "/leave":
		return LeaveRoomCommand{}
	case "/quit":
		return QuitCommand{}
	default:
		return InvalidCommand{Usage: "unknown command " + verb}
	}
}
