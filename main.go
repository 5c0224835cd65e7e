// Command mafia-game starts the Mafia game server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing the REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Flags (each with an environment variable fallback) control host/port,
// the rules directory, result storage, token signing, debug logging and
// optional ngrok tunneling for easy external access during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/mafia-game/api"
	"github.com/wricardo/mafia-game/auth"
	"github.com/wricardo/mafia-game/game/config"
	"github.com/wricardo/mafia-game/game/service"
	"github.com/wricardo/mafia-game/game/session"
	"github.com/wricardo/mafia-game/game/timer"
	"github.com/wricardo/mafia-game/router"
	"github.com/wricardo/mafia-game/store/postgres"
	"github.com/wricardo/mafia-game/transport/mcp"
	"github.com/wricardo/mafia-game/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Mafia Game Server"
)

const (
	timerBroadcastInterval = time.Second
	cleanupInterval        = 5 * time.Second
	shutdownTimeout        = 10 * time.Second
)

// options is the resolved command line configuration
type options struct {
	Host        string
	Port        int
	ConfigDir   string
	ResultsDir  string
	KeepResults int
	DatabaseURL string
	JWTSecret   string
	PublicURL   string
	MCPName     string
	Debug       bool
	Ngrok       bool
	NgrokAuth   string
	NgrokDomain string
}

func (o options) addr() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}

// main loads .env, parses flags and runs the selected mode.
func main() {
	// Load .env file if it exists (ignore error if not found)
	envErr := godotenv.Load()

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("Server exited")
	}

	if envErr != nil && !os.IsNotExist(envErr) {
		log.Warn().Err(envErr).Msg("Error loading .env file")
	}
}

// newApp builds the command tree
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "mafia-game",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "Directory containing rules presets", Sources: cli.EnvVars("CONFIG_DIR")},
			&cli.StringFlag{Name: "results-dir", Value: "results", Usage: "Directory for finished game results (when no database is configured)", Sources: cli.EnvVars("RESULTS_DIR")},
			&cli.IntFlag{Name: "keep-results", Value: 500, Usage: "Finished game files to keep in the results directory (0 keeps all)", Sources: cli.EnvVars("KEEP_RESULTS")},
			&cli.StringFlag{Name: "database-url", Usage: "PostgreSQL connection string for results and suggestions", Sources: cli.EnvVars("DATABASE_URL")},
			&cli.StringFlag{Name: "jwt-secret", Usage: "Secret used to sign player tokens", Sources: cli.EnvVars("JWT_SECRET")},
			&cli.StringFlag{Name: "public-url", Usage: "Public base URL used in invite links", Sources: cli.EnvVars("PUBLIC_URL")},
			&cli.StringFlag{Name: "mcp-name", Value: "agent", Usage: "Display name of the MCP player", Sources: cli.EnvVars("MCP_PLAYER_NAME")},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging", Sources: cli.EnvVars("DEBUG")},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		DefaultCommand: "server",
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					opts := optionsFrom(cmd)
					setupLogging(opts.Debug, os.Stdout)
					return runHTTPServer(ctx, opts)
				},
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					opts := optionsFrom(cmd)
					// stdout carries the MCP protocol
					setupLogging(opts.Debug, os.Stderr)
					return runStdioMCP(ctx, opts)
				},
			},
		},
	}
}

func optionsFrom(cmd *cli.Command) options {
	return options{
		Host:        cmd.String("host"),
		Port:        int(cmd.Int("port")),
		ConfigDir:   cmd.String("config-dir"),
		ResultsDir:  cmd.String("results-dir"),
		KeepResults: int(cmd.Int("keep-results")),
		DatabaseURL: cmd.String("database-url"),
		JWTSecret:   cmd.String("jwt-secret"),
		PublicURL:   cmd.String("public-url"),
		MCPName:     cmd.String("mcp-name"),
		Debug:       cmd.Bool("debug"),
		Ngrok:       cmd.Bool("ngrok"),
		NgrokAuth:   cmd.String("ngrok-auth"),
		NgrokDomain: cmd.String("ngrok-domain"),
	}
}

func setupLogging(debug bool, out io.Writer) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// services is everything a running server needs
type services struct {
	game   service.GameService
	hub    *websocket.Hub
	api    *api.Server
	games  *session.Registry
	rooms  *session.Rooms
	timers *timer.Scheduler
	close  func()
}

// stats counts the live games, open rooms and armed phase timers
func (s *services) stats() map[string]int {
	return map[string]int{
		"games":  s.games.Count(),
		"rooms":  s.rooms.Count(),
		"timers": s.timers.Active(),
	}
}

// initializeServices wires the registry, rules, timers, router, storage and API.
func initializeServices(ctx context.Context, opts options) (*services, error) {
	configManager, err := config.NewManager(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	secret := opts.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn().Msg("No JWT secret configured; tokens will not survive a restart")
	}
	authn, err := auth.New(secret, "mafia-game", auth.DefaultTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}

	scheduler := timer.NewScheduler()
	registry := session.NewRegistry()
	rooms := session.NewRooms()
	deps := service.Dependencies{
		Games:   registry,
		Rooms:   rooms,
		Configs: configManager,
		Timers:  scheduler,
	}
	closeStore := func() {}

	if opts.DatabaseURL != "" {
		store, err := postgres.Open(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		if err := store.SeedSuggestions(ctx, config.DefaultSuggestions()); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to seed suggestions: %w", err)
		}
		deps.Results = store
		deps.Suggestions = store
		closeStore = store.Close
		log.Info().Msg("Using PostgreSQL for results and suggestions")
	} else {
		persistence, err := session.NewFilePersistence(opts.ResultsDir, session.WithRetention(opts.KeepResults))
		if err != nil {
			return nil, fmt.Errorf("failed to create result persistence: %w", err)
		}
		deps.Results = persistence
		deps.Suggestions = config.NewSuggestionBook(config.DefaultSuggestions())
		log.Info().Str("dir", opts.ResultsDir).Int("keep", opts.KeepResults).Msg("Using file storage for results")
	}

	// The hub needs the API server as its frame dispatcher, and the API
	// server needs the hub; close the loop after both exist.
	hub := websocket.NewHub(nil)
	deps.Events = router.New(hub)

	gameService := service.NewGameService(deps)
	apiServer := api.NewServer(gameService, hub, authn)
	hub.SetDispatcher(apiServer)
	if opts.PublicURL != "" {
		apiServer.SetPublicURL(opts.PublicURL)
	}

	svcs := &services{
		game:   gameService,
		hub:    hub,
		api:    apiServer,
		games:  registry,
		rooms:  rooms,
		timers: scheduler,
		close:  closeStore,
	}
	apiServer.SetStats(svcs.stats)
	return svcs, nil
}

// runMaintenance pushes countdowns and prunes ended games until ctx is done.
func runMaintenance(ctx context.Context, svcs *services) error {
	broadcast := time.NewTicker(timerBroadcastInterval)
	defer broadcast.Stop()
	cleanup := time.NewTicker(cleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-broadcast.C:
			svcs.game.BroadcastTimers(ctx)
		case <-cleanup.C:
			if removed := svcs.game.CleanupEnded(ctx); removed > 0 {
				log.Info().Int("removed", removed).Msg("Cleaned up ended games")
			}
			stats := svcs.stats()
			log.Debug().
				Int("games", stats["games"]).
				Int("rooms", stats["rooms"]).
				Int("timers", stats["timers"]).
				Msg("Maintenance pass")
		}
	}
}

// newRouter combines the API server with an /mcp proxy endpoint.
func newRouter(apiServer http.Handler, mcpClient *mcp.Client) http.Handler {
	mainRouter := http.NewServeMux()

	// Mount API server at root
	mainRouter.Handle("/", apiServer)

	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})

	return mainRouter
}

// runHTTPServer serves the REST API, WebSocket hub and /mcp endpoint until a
// shutdown signal arrives. If ngrok is enabled it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, opts options) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", Version).Msg("Starting " + AppName)

	svcs, err := initializeServices(ctx, opts)
	if err != nil {
		return err
	}
	defer svcs.close()
	defer svcs.timers.Stop()

	addr := opts.addr()
	mcpClient := mcp.NewClient("http://"+addr, opts.MCPName)
	handler := newRouter(svcs.api, mcpClient)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		svcs.hub.Run(ctx)
		return nil
	})

	g.Go(func() error {
		return runMaintenance(ctx, svcs)
	})

	g.Go(func() error {
		log.Info().
			Str("api", "http://"+addr+"/api").
			Str("websocket", "ws://"+addr+"/ws?token=<token>").
			Str("mcp", "http://"+addr+"/mcp").
			Msg("HTTP server listening")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
		return nil
	})

	if opts.Ngrok {
		g.Go(func() error {
			return runNgrok(ctx, opts, svcs.api, handler)
		})
	}

	err = g.Wait()
	log.Info().Msg("Server stopped")
	return err
}

// runNgrok serves handler through an ngrok tunnel. A missing token or a
// failed tunnel is logged and does not stop the local server.
func runNgrok(ctx context.Context, opts options, apiServer *api.Server, handler http.Handler) error {
	if opts.NgrokAuth == "" {
		log.Warn().Msg("Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return nil
	}

	log.Info().Msg("Starting ngrok tunnel...")

	// Configure ngrok endpoint
	var tunnel ngrokConfig.Tunnel
	if opts.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(opts.NgrokDomain))
		log.Info().Str("domain", opts.NgrokDomain).Msg("Using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(opts.NgrokAuth))
	if err != nil {
		log.Error().Err(err).Msg("Failed to start ngrok tunnel")
		return nil
	}

	ngrokURL := tun.URL()
	if opts.PublicURL == "" {
		apiServer.SetPublicURL(ngrokURL)
	}
	log.Info().
		Str("url", ngrokURL).
		Str("api", ngrokURL+"/api").
		Str("invite", ngrokURL+"/api/rooms/<room_id>/invite.png").
		Msg("Ngrok tunnel established")

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close ngrok tunnel")
		}
	}()

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.Error().Err(err).Msg("Ngrok server error")
	}
	log.Info().Msg("Ngrok tunnel closed")
	return nil
}

// runStdioMCP runs an MCP stdio server.
// It tries to reuse an external API at the configured address; if unavailable,
// it starts an internal HTTP API bound to a random loopback port and targets that.
func runStdioMCP(ctx context.Context, opts options) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	externalURL := "http://" + opts.addr()
	log.Info().Str("url", externalURL).Msg("Checking for external API server")

	baseURL := externalURL
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/api/health")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		log.Info().Msg("External API server found, using it for MCP")
	} else {
		log.Info().Msg("No external API server found, starting internal HTTP server")

		internalURL, shutdown, err := startInternalServer(ctx, opts)
		if err != nil {
			return err
		}
		defer shutdown()
		baseURL = internalURL
	}

	mcpClient := mcp.NewClient(baseURL, opts.MCPName)
	log.Info().Str("api", baseURL).Msg("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// startInternalServer serves a full game server on a random loopback port
func startInternalServer(ctx context.Context, opts options) (string, func(), error) {
	svcs, err := initializeServices(ctx, opts)
	if err != nil {
		return "", nil, err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		svcs.close()
		return "", nil, fmt.Errorf("failed to get available port: %w", err)
	}
	internalAddr := listener.Addr().String()

	ctx, cancel := context.WithCancel(ctx)
	go svcs.hub.Run(ctx)
	go runMaintenance(ctx, svcs)

	httpServer := &http.Server{Handler: svcs.api}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Internal HTTP server error")
		}
	}()

	log.Info().Str("addr", internalAddr).Msg("Internal HTTP server started for MCP stdio")

	shutdown := func() {
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		httpServer.Shutdown(shutdownCtx)
		svcs.timers.Stop()
		svcs.close()
	}
	return "http://" + internalAddr, shutdown, nil
}
