// Command gameserver starts the Corridors game server.
//
// It supports two modes:
//  1. "serve" (default) runs the HTTP server exposing the REST API, the
//     websocket fan-out, and an /mcp HTTP endpoint
//  2. "mcp" runs an MCP stdio server backed by an internal HTTP API
//
// Flags control host/port, debug logging, a test mode that tightens the
// session reaper, and optional ngrok tunneling for external access during
// development.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/corridors/gameserver/api"
	"github.com/corridors/gameserver/game/ai"
	"github.com/corridors/gameserver/game/config"
	"github.com/corridors/gameserver/game/service"
	"github.com/corridors/gameserver/game/session"
	"github.com/corridors/gameserver/logging"
	"github.com/corridors/gameserver/transport/mcp"
	"github.com/corridors/gameserver/transport/websocket"
)

const (
	appName = "Corridors Game Server"
	version = "1.0.0"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env file: %v\n", err)
	}

	cmd := &cli.Command{
		Name:    "gameserver",
		Usage:   appName,
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "HTTP listen host"},
			&cli.IntFlag{Name: "port", Usage: "HTTP listen port"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
			&cli.BoolFlag{Name: "test-mode", Usage: "tighten session reaping for tests"},
			&cli.BoolFlag{Name: "ngrok", Usage: "expose the server through an ngrok tunnel"},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server (default)",
				Action: runServe,
			},
			{
				Name:   "mcp",
				Usage:  "run an MCP stdio server backed by an internal HTTP API",
				Action: runStdioMCP,
			},
		},
		Action: runServe,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig merges the environment configuration with command-line flags.
func loadConfig(cmd *cli.Command) config.Config {
	cfg := config.Load(cmd.Bool("test-mode"))
	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = int(cmd.Int("port"))
	}
	if cmd.Bool("debug") {
		cfg.LogLevel = "debug"
	}
	if cmd.Bool("ngrok") {
		cfg.NgrokEnabled = true
	}
	return cfg
}

// buildServer wires the full stack and returns the HTTP handler plus the
// components that need explicit teardown.
func buildServer(cfg config.Config) (http.Handler, *session.Reaper, *ai.Scheduler) {
	registry := session.NewRegistry(logging.WithComponent("registry"))
	hub := websocket.NewHub(websocket.Options{
		HeartbeatInterval: cfg.WSHeartbeat,
		MissLimit:         cfg.WSMissLimit,
	}, logging.WithComponent("websocket"))
	scheduler := ai.NewScheduler(ai.Config{
		Workers:        cfg.AIWorkers,
		QueueSize:      cfg.AIQueueSize,
		EnqueueTimeout: cfg.AIEnqueueTimeout,
	}, logging.WithComponent("ai"))

	svc := service.NewService(registry, hub, scheduler, service.Options{
		Engine:      cfg.Engine,
		MoveTimeout: cfg.MoveTimeout,
		AITimeout:   cfg.AITimeout,
		Epsilon:     cfg.Epsilon,
	}, logging.WithComponent("service"))
	scheduler.Start(svc)

	reaper := session.NewReaper(registry, session.ReaperConfig{
		Interval: cfg.ReapInterval,
		MaxIdle:  cfg.SessionTTL,
	}, func(snap service.Snapshot) {
		hub.BroadcastToGame(snap.GameID, service.EventGameEnded, snap)
	}, logging.WithComponent("reaper"))
	reaper.Start()

	apiServer := api.NewServer(svc, hub, logging.WithComponent("api"))

	mcpClient := mcp.NewClient("http://" + hostForBaseURL(cfg.Host, cfg.Port))

	router := http.NewServeMux()
	router.Handle("/", apiServer)
	router.HandleFunc("/mcp", mcpHTTPHandler(mcpClient))

	return router, reaper, scheduler
}

func hostForBaseURL(host string, port int) string {
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// mcpHTTPHandler exposes the MCP server over a plain HTTP POST endpoint.
func mcpHTTPHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := client.GetMCPServer().HandleMessage(r.Context(), body)
		w.Header().Set("Content-Type", "application/json")
		data, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(data)
	}
}

// runServe starts the HTTP server and blocks until a shutdown signal.
func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)
	logging.Configure(logging.Config{Level: cfg.LogLevel, Output: os.Stderr, Service: "corridors"})
	log := logging.Base()

	handler, reaper, scheduler := buildServer(cfg)
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", addr).
			Str("version", version).
			Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if cfg.NgrokEnabled {
		go serveNgrok(ctx, cfg, handler)
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	reaper.Stop()
	scheduler.Stop()
	log.Info().Msg("server stopped")
	return nil
}

// serveNgrok exposes the handler through an ngrok tunnel for the lifetime of
// ctx. Failures are logged, never fatal; the local listener keeps serving.
func serveNgrok(ctx context.Context, cfg config.Config, handler http.Handler) {
	log := logging.WithComponent("ngrok")
	authToken := os.Getenv("NGROK_AUTHTOKEN")
	if authToken == "" {
		log.Warn().Msg("ngrok enabled but NGROK_AUTHTOKEN is not set")
		return
	}

	tunnel := ngrokConfig.HTTPEndpoint()
	if cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.NgrokDomain))
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Error().Err(err).Msg("tunnel failed to start")
		return
	}
	defer tun.Close()

	log.Info().Str("url", tun.URL()).Msg("tunnel established")
	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("tunnel server stopped")
	}
}

// runStdioMCP runs the MCP stdio server over an internal loopback HTTP API.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)
	logging.Configure(logging.Config{Level: cfg.LogLevel, Output: os.Stderr, Service: "corridors-mcp"})
	log := logging.Base()

	handler, reaper, scheduler := buildServer(cfg)
	defer scheduler.Stop()
	defer reaper.Stop()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("internal listener: %w", err)
	}
	httpServer := &http.Server{Handler: handler}
	go func() {
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("internal http server stopped")
		}
	}()
	defer httpServer.Close()

	baseURL := fmt.Sprintf("http://%s", listener.Addr())
	log.Info().Str("base_url", baseURL).Msg("mcp stdio server ready")

	mcpClient := mcp.NewClient(baseURL)
	return mcpserver.ServeStdio(mcpClient.GetMCPServer())
}
