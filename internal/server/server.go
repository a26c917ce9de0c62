// Package server wires the HTTP front, the websocket upgrade, and the
// per-connection lifecycle around the relay's shared state.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/pixperk/rws/internal/dispatch"
	"github.com/pixperk/rws/internal/server/middleware"
	"github.com/pixperk/rws/pkg/config"
	"github.com/pixperk/rws/pkg/state"
	"github.com/pixperk/rws/pkg/state/statemanager"
	"github.com/pixperk/rws/pkg/transport"
)

type App struct {
	logger       *slog.Logger
	stateManager state.Manager
	dispatcher   *dispatch.Dispatcher
	wg           sync.WaitGroup
	http         *http.Server
	config       *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config) *App {
	stateManager := statemanager.NewInMemoryManager(logger)
	delivery := dispatch.NewDelivery(logger, stateManager)
	dispatcher := dispatch.NewDispatcher(logger, stateManager, delivery)

	app := &App{
		logger:       logger,
		stateManager: stateManager,
		dispatcher:   dispatcher,
		config:       cfg,
		ctx:          rootCtx,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	upgradeHandler := http.HandlerFunc(app.upgradeHandler)
	// Cycling closes the oldest connection from the same address to make room.
	connCycler := func(ipAddr string) {
		oldest, found := stateManager.FindOldestConnectionFromIP(ipAddr)
		if found {
			logger.Info("Cycling connection: closing oldest", slog.String("ip", ipAddr), slog.String("connID", oldest.ID.String()))
			oldest.Sink.Close(errors.New("connection cycled by new connection"))
		}
	}
	mux.Handle("/ws",
		middleware.Chain(upgradeHandler,
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(app.logger),
			middleware.NewConnectionLimiter(
				logger,
				stateManager.ConnectionCountForIP,
				connCycler,
				app.config.Server.ConnectionLimit,
			),
		),
	)

	app.http = &http.Server{Addr: app.config.Server.Address, Handler: mux, BaseContext: func(l net.Listener) context.Context {
		return app.ctx
	}}

	return app
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

// upgradeHandler runs one connection through its whole lifecycle: accept,
// register, pump messages into the dispatcher, and on termination leave the
// occupied room and deregister. After deregistration no event is dispatched
// for the identity again; delivery snapshots simply no longer contain it.
func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	connLogger := a.logger.With(slog.String("remoteAddr", reqMeta.IP))

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		nil,
		nil,
		a.logger,
	)
	if _, err := a.stateManager.Register(conn.ID(), reqMeta.IP, conn); err != nil {
		connLogger.Error("Failed to register connection state", slog.Any("error", err))
		conn.Close(err)
		return
	}
	conn.SetOnMessageHandler(a.dispatcher.HandleMessage)
	conn.SetOnCloseHandler(func(id uuid.UUID, err error) {
		connLogger.Info("Deregistering connection due to closure", slog.String("connID", id.String()))
		a.dispatcher.HandleDisconnect(id)
		a.stateManager.Unregister(id)
	})

	connLogger.Info("Client connection fully established", slog.String("connID", conn.ID().String()))
	conn.Run()
	<-conn.Done()
}

// Shutdown runs the graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	for _, client := range a.stateManager.Snapshot() {
		client.Sink.Close(errors.New("graceful shutdown"))
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
