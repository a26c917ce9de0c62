package client_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pixperk/rws/internal/client"
	"github.com/stretchr/testify/assert"
)

func TestParseInput(t *testing.T) {
	roomID := uuid.New()

	cases := map[string]struct {
		input string
		want  client.Command
	}{
		"plain text is chat":     {"hello there", client.ChatCommand{Content: "hello there"}},
		"surrounding whitespace": {"  hi  ", client.ChatCommand{Content: "hi"}},
		"empty line":             {"", nil},
		"whitespace only":        {"   ", nil},
		"create room":            {"/create lobby", client.CreateRoomCommand{Name: "lobby"}},
		"create with spaces":     {"/create war room", client.CreateRoomCommand{Name: "war room"}},
		"create missing name":    {"/create", client.InvalidCommand{Usage: "usage: /create <room-name>"}},
		"join room":              {"/join " + roomID.String(), client.JoinRoomCommand{RoomID: roomID}},
		"join bad id":            {"/join not-a-uuid", client.InvalidCommand{Usage: "usage: /join <room-id>"}},
		"join missing id":        {"/join", client.InvalidCommand{Usage: "usage: /join <room-id>"}},
		"leave":                  {"/leave", client.LeaveRoomCommand{}},
		"quit":                   {"/quit", client.QuitCommand{}},
		"unknown verb":           {"/frobnicate", client.InvalidCommand{Usage: "unknown command /frobnicate"}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, client.ParseInput(tc.input))
		})
	}
}
