// Command agentrelayd serves the relay over websocket and streaming HTTP.
// Configuration comes from an optional YAML file plus AGENTRELAY_*
// environment overrides; an invalid timeout hierarchy aborts startup before
// any traffic is served.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hupe1980/agentrelay"
	"github.com/hupe1980/agentrelay/checkpoint"
	"github.com/hupe1980/agentrelay/config"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/engine/anthropic"
	"github.com/hupe1980/agentrelay/engine/openai"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/transport/httpstream"
	"github.com/hupe1980/agentrelay/transport/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "agentrelayd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("AGENTRELAY_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(cfg.Log.Level),
		Format:    cfg.Log.Format,
		Output:    os.Stdout,
		Component: "agentrelayd",
	})

	store, err := checkpoint.NewSQLiteStore(cfg.Checkpoint.Path)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint store: %w", err)
	}

	engine, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	relay := agentrelay.New(engine,
		agentrelay.WithStore(store),
		agentrelay.WithLogger(logger),
		agentrelay.WithTimeouts(cfg.Timeouts),
		agentrelay.WithGraceWindow(cfg.Checkpoint.GraceWindow()),
	)
	defer relay.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := checkpoint.NewSweeper(store, cfg.Checkpoint.SweepInterval(), logger.WithComponent("sweeper"))
	go sweeper.Run(ctx)

	wsServer := ws.NewServer(relay.Coordinator(), func(o *ws.Options) {
		o.HeartbeatInterval = cfg.Timeouts.HeartbeatInterval()
		o.Logger = logger.WithComponent("ws")
	})
	streamHandler := httpstream.NewHandler(relay.Coordinator(), func(o *httpstream.Options) {
		o.ConnectionTimeout = cfg.Timeouts.Connection()
		o.Logger = logger.WithComponent("httpstream")
	})

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	router.Get("/ws", wsServer.HandleWebSocket)
	router.Post("/v1/runs/stream", streamHandler.HandleStream)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
		// No WriteTimeout: streaming responses are bounded by the stream
		// scope inside the coordinator, not by the socket.
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening addr=%s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildEngine picks the model backend from the environment. API keys are
// read by the SDKs themselves.
func buildEngine(cfg *config.Config) (core.Engine, error) {
	backend := os.Getenv("AGENTRELAY_ENGINE")
	if backend == "" {
		backend = "anthropic"
	}

	switch backend {
	case "anthropic":
		return anthropic.New(func(o *anthropic.Options) {
			o.HITLEnabled = cfg.HITL.Enabled
		}), nil
	case "openai":
		return openai.New(func(o *openai.Options) {
			o.HITLEnabled = cfg.HITL.Enabled
		}), nil
	default:
		return nil, fmt.Errorf("unknown engine backend %q (want anthropic or openai)", backend)
	}
}
