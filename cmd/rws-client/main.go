package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/gookit/color"
	"github.com/pixperk/rws/internal/client"
	"github.com/pixperk/rws/pkg/logging"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "relay server websocket URL")
	name := flag.String("name", "", "display name (required)")
	flag.Parse()

	if *name == "" {
		fmt.Fprintln(os.Stderr, "a display name is required: -name <name>")
		os.Exit(1)
	}

	logger := logging.New(logging.LevelWarn)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c, err := client.Connect(ctx, *addr, *name, logger)
	if err != nil {
		color.Red.Printf("could not connect: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	// printer: render incoming lines until the connection dies
	go func() {
		for line := range c.Lines() {
			switch line.Kind {
			case client.LineChat:
				color.Cyan.Println(line.Text)
			case client.LineError:
				color.Red.Println(line.Text)
			default:
				color.Yellow.Println(line.Text)
			}
		}
		stop()
	}()
	go func() {
		if err := c.Run(ctx); err != nil && ctx.Err() == nil {
			color.Red.Printf("connection lost: %v\n", err)
		}
	}()

	color.Gray.Println("commands: /create <name>, /join <room-id>, /leave, /quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		quit, err := c.Handle(ctx, client.ParseInput(scanner.Text()))
		if err != nil {
			color.Red.Println(err)
			continue
		}
		if quit {
			break
		}
	}
}
