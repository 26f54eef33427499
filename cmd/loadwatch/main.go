// CLAUDE:SUMMARY Entry point for the loadwatch daemon — HTTP API, MCP stdio mode, config hot reload, single-URL quick mode.
// Command loadwatch watches a freight load board and emits profitable
// loads as they appear.
//
// Usage:
//
//	loadwatch -config loadwatch.yaml             # full daemon from YAML config
//	loadwatch -url https://example.com/loads     # quick watch, stdout sink
//
// With -config the daemon serves an HTTP API on PORT (default 8085),
// guarded by Basic Auth when AUTH_PASSWORD is set, and re-reads the
// config file whenever it changes on disk. MCP_TRANSPORT=stdio swaps
// the HTTP API for MCP tools over stdin/stdout.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/loadwatch/board"
	"github.com/hazyhaar/loadwatch/dbopen"
	"github.com/hazyhaar/loadwatch/kit"
	"github.com/hazyhaar/loadwatch/observability"
	"github.com/hazyhaar/loadwatch/pagesource"
	"github.com/hazyhaar/loadwatch/shield"
	"github.com/hazyhaar/loadwatch/watch"
)

func main() {
	// Load .env if present; environment variables may also be set directly.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to loadwatch.yaml config file")
	singleURL := flag.String("url", "", "watch a single board URL with defaults (stdout sink)")
	logLevel := flag.String("log-level", env("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	// Logs go to stderr: stdout carries the event stream, and in MCP
	// stdio mode the protocol itself.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *singleURL); err != nil {
		logger.Error("loadwatch: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, singleURL string) error {
	if singleURL != "" {
		return runSingle(ctx, logger, singleURL)
	}
	if configPath != "" {
		return runConfig(ctx, logger, configPath)
	}

	fmt.Fprintln(os.Stderr, "usage: loadwatch -config <file> | -url <url>")
	os.Exit(1)
	return nil
}

// runSingle watches one URL with default thresholds and a stdout sink.
// No journal, no API: load events print as JSON lines until interrupted.
func runSingle(ctx context.Context, logger *slog.Logger, url string) error {
	cfg := &board.Config{
		Board:   board.BoardConfig{URL: url, Provider: "auto"},
		HTTP:    pagesource.HTTPConfig{URL: url},
		Browser: pagesource.BrowserConfig{URL: url},
	}

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("page provider: %w", err)
	}

	svc, err := board.New(provider, cfg, logger, board.WithSinks(board.NewStdoutSink(nil)))
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	<-ctx.Done()
	if err := svc.Stop(); err != nil && !errors.Is(err, board.ErrNotRunning) {
		return err
	}
	return nil
}

// runConfig runs the full daemon: journal, configured sinks, watch
// session, config hot reload, and either the HTTP API or MCP on stdio.
func runConfig(ctx context.Context, logger *slog.Logger, path string) error {
	cfg, err := board.LoadConfigFile(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("page provider: %w", err)
	}

	db, err := dbopen.Open(cfg.Store.Path, dbopen.WithMkdirAll())
	if err != nil {
		return fmt.Errorf("journal db: %w", err)
	}
	defer db.Close()
	if err := board.ApplySchema(db); err != nil {
		return fmt.Errorf("journal schema: %w", err)
	}
	if err := observability.Init(db); err != nil {
		return fmt.Errorf("heartbeat schema: %w", err)
	}
	if removed, err := observability.CleanupHeartbeats(ctx, db, cfg.Store.Retention); err != nil {
		logger.Warn("loadwatch: heartbeat cleanup failed", "error", err)
	} else if removed > 0 {
		logger.Info("loadwatch: pruned old heartbeats", "removed", removed)
	}

	heartbeat := observability.NewHeartbeatWriter(db, 15*time.Second)
	heartbeat.Start(ctx)
	defer heartbeat.Stop()

	mcpStdio := env("MCP_TRANSPORT", "") == "stdio"

	sinks, err := buildSinks(ctx, cfg, logger, mcpStdio)
	if err != nil {
		return err
	}

	svc, err := board.New(provider, cfg, logger, board.WithStore(db), board.WithSinks(sinks...))
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	// Hot reload: re-read the config file when its mtime moves. A file
	// that fails to parse or validate is rejected and retried on the
	// next change; the running config stays in place.
	reload := watch.New(watch.FileModTime(path), watch.Options{
		Interval: 2 * time.Second,
		Debounce: 500 * time.Millisecond,
		Logger:   logger,
	})
	go reload.OnChange(ctx, func() error {
		next, err := board.LoadConfigFile(path)
		if err != nil {
			return fmt.Errorf("reload config: %w", err)
		}
		if err := svc.UpdateConfig(next); err != nil {
			return err
		}
		logger.Info("loadwatch: config reloaded", "path", path)
		return nil
	})

	if mcpStdio {
		return serveMCPStdio(ctx, svc, logger)
	}
	return serveHTTP(ctx, svc, db, logger)
}

// buildProvider constructs the page transport named by board.provider.
func buildProvider(cfg *board.Config, logger *slog.Logger) (pagesource.Provider, error) {
	switch cfg.Board.Provider {
	case "browser":
		return pagesource.NewBrowser(cfg.Browser, logger), nil
	case "http":
		return pagesource.NewHTTP(cfg.HTTP, logger)
	default: // auto
		httpProv, err := pagesource.NewHTTP(cfg.HTTP, logger)
		if err != nil {
			return nil, err
		}
		browserCfg := cfg.Browser
		return pagesource.NewAuto(httpProv, func() (pagesource.Provider, error) {
			return pagesource.NewBrowser(browserCfg, logger), nil
		}, logger), nil
	}
}

func buildSinks(ctx context.Context, cfg *board.Config, logger *slog.Logger, mcpStdio bool) ([]board.Sink, error) {
	var sinks []board.Sink
	if cfg.Sinks.Stdout {
		if mcpStdio {
			logger.Warn("loadwatch: stdout sink disabled, MCP owns stdout")
		} else {
			sinks = append(sinks, board.NewStdoutSink(nil))
		}
	}
	if cfg.Sinks.WebhookURL != "" {
		sinks = append(sinks, board.NewWebhookSink(cfg.Sinks.WebhookURL, logger))
	}
	if cfg.Sinks.PostgresDSN != "" {
		pg, err := board.NewPostgresSink(ctx, cfg.Sinks.PostgresDSN, cfg.Sinks.PostgresMaxConns)
		if err != nil {
			return nil, fmt.Errorf("postgres sink: %w", err)
		}
		sinks = append(sinks, pg)
	}
	if len(sinks) == 0 && !mcpStdio {
		sinks = append(sinks, board.NewStdoutSink(nil))
	}
	return sinks, nil
}

// serveMCPStdio exposes the board tools over stdin/stdout and blocks
// until the client disconnects or ctx is cancelled.
func serveMCPStdio(ctx context.Context, svc *board.Service, logger *slog.Logger) error {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "loadwatch",
		Version: "1.0.0",
	}, nil)
	svc.RegisterMCP(srv)

	logger.Info("loadwatch: MCP serving on stdio")
	transport := &mcp.IOTransport{Reader: os.Stdin, Writer: os.Stdout}
	if err := srv.Run(ctx, transport); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}

func serveHTTP(ctx context.Context, svc *board.Service, db *sql.DB, logger *slog.Logger) error {
	port := env("PORT", "8085")
	authUser := env("AUTH_USER", "admin")
	authPassword := os.Getenv("AUTH_PASSWORD")

	var passwordHash []byte
	if authPassword == "" {
		logger.Warn("loadwatch: AUTH_PASSWORD not set, API authentication disabled")
	} else {
		h, err := bcrypt.GenerateFromPassword([]byte(authPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		passwordHash = h
	}

	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack() {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(basicAuth(authUser, passwordHash))

		r.Get("/api/status", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, 200, svc.Status())
		})

		r.Get("/api/loads/recent", func(w http.ResponseWriter, r *http.Request) {
			limit := queryInt(r, "limit", 50)
			loads, err := svc.RecentEmitted(r.Context(), limit)
			if err != nil {
				writeError(w, 500, err)
				return
			}
			if loads == nil {
				loads = []*board.EmittedLoad{}
			}
			writeJSON(w, 200, loads)
		})

		r.Get("/api/cycles", func(w http.ResponseWriter, r *http.Request) {
			limit := queryInt(r, "limit", 50)
			cycles, err := svc.CycleHistory(r.Context(), limit)
			if err != nil {
				writeError(w, 500, err)
				return
			}
			if cycles == nil {
				cycles = []*board.CycleRecord{}
			}
			writeJSON(w, 200, cycles)
		})

		r.Get("/api/stats", func(w http.ResponseWriter, r *http.Request) {
			totals, err := svc.JournalTotals(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, totals)
		})

		// Daemon liveness as seen from the journal DB. Three missed
		// 15-second beats marks the process stale.
		r.Get("/api/heartbeat", func(w http.ResponseWriter, r *http.Request) {
			hb, err := observability.LatestHeartbeat(r.Context(), db, 45*time.Second)
			if err != nil {
				writeError(w, 500, err)
				return
			}
			if hb == nil {
				writeJSON(w, 200, map[string]string{"status": "no heartbeat recorded"})
				return
			}
			writeJSON(w, 200, hb)
		})

		r.Post("/api/session/start", func(w http.ResponseWriter, r *http.Request) {
			if err := svc.Start(r.Context()); err != nil {
				switch {
				case errors.Is(err, board.ErrAlreadyRunning):
					writeError(w, 409, err)
				case errors.Is(err, board.ErrNotAuthenticated):
					writeError(w, 403, err)
				default:
					writeError(w, 500, err)
				}
				return
			}
			writeJSON(w, 200, svc.Status())
		})

		r.Post("/api/session/stop", func(w http.ResponseWriter, _ *http.Request) {
			if err := svc.Stop(); err != nil {
				writeError(w, 409, err)
				return
			}
			writeJSON(w, 200, map[string]string{"status": "stopped"})
		})

		r.Post("/api/scan", func(w http.ResponseWriter, _ *http.Request) {
			if err := svc.RunCycleNow(); err != nil {
				writeError(w, 409, err)
				return
			}
			writeJSON(w, 200, map[string]string{"status": "scan scheduled"})
		})

		r.Put("/api/filters", func(w http.ResponseWriter, r *http.Request) {
			var f board.FilterConfig
			if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
				writeError(w, 400, err)
				return
			}
			if err := svc.UpdateFilters(f); err != nil {
				writeError(w, 400, err)
				return
			}
			writeJSON(w, 200, map[string]string{"status": "filters updated"})
		})

		r.Put("/api/visibility", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Visible bool `json:"visible"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			if err := svc.SetPageVisible(req.Visible); err != nil {
				writeError(w, 409, err)
				return
			}
			writeJSON(w, 200, map[string]string{"status": "ok"})
		})

		// Re-arm after a logged-out stop: PUT {"authenticated": true}
		// once the board session is restored, then start again.
		r.Put("/api/auth", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Authenticated bool `json:"authenticated"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			svc.SetAuthenticated(req.Authenticated)
			writeJSON(w, 200, svc.Status())
		})
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("loadwatch: server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("loadwatch: server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("loadwatch: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("loadwatch: shutdown", "error", err)
	}
	logger.Info("loadwatch: server stopped")
	return nil
}

// --- Auth middleware ---

// basicAuth guards the API with one operator credential checked against
// a bcrypt hash built at boot. A nil hash disables the check.
func basicAuth(user string, passwordHash []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if passwordHash == nil {
				next.ServeHTTP(w, r)
				return
			}
			u, p, ok := r.BasicAuth()
			if !ok || u != user || bcrypt.CompareHashAndPassword(passwordHash, []byte(p)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="loadwatch"`)
				writeJSON(w, 401, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r.WithContext(kit.WithUserID(r.Context(), u)))
		})
	}
}

// --- Helpers ---

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
