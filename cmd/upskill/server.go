package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/upskill/internal/api"
	"github.com/kalambet/upskill/internal/config"
	"github.com/kalambet/upskill/internal/ollama"
	"github.com/kalambet/upskill/internal/profile"
	"github.com/kalambet/upskill/internal/recovery"
	"github.com/kalambet/upskill/internal/session"
	"github.com/kalambet/upskill/internal/storage"
	"github.com/kalambet/upskill/internal/telemetry"
	"github.com/kalambet/upskill/internal/worker"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the upskill server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		noMCP, _ := cmd.Flags().GetBool("no-mcp")
		return runServer(!noMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running upskill server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show upskill system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	startCmd.Flags().Bool("no-mcp", false, "do not serve MCP over stdio")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "upskill.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func parseLogLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// newGenerator builds the configured recovery backend. Missing credentials
// leave the planner unconfigured so plans fall back to a fixed message.
func newGenerator(ctx context.Context, cfg config.Config) (recovery.Generator, error) {
	gen, err := recovery.NewGenerator(ctx, recovery.BackendConfig{
		Backend:          cfg.Recovery.Backend,
		Model:            cfg.Recovery.Model,
		GeminiAPIKey:     cfg.Recovery.GeminiAPIKey,
		OpenRouterAPIKey: cfg.Recovery.OpenRouterAPIKey,
		OllamaURL:        cfg.Ollama.BaseURL,
	})
	if errors.Is(err, recovery.ErrMissingAPIKey) {
		slog.Warn("no API key for recovery backend, plans will use the fallback message",
			"backend", cfg.Recovery.Backend, "hint", "set UPSKILL_"+strings.ToUpper(cfg.Recovery.Backend)+"_API_KEY or store it in "+config.SecretHint())
		return nil, nil
	}
	return gen, err
}

func runServer(serveMCP bool) error {
	fmt.Fprintf(os.Stderr, "upskill version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)})))

	apiToken, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// Refuse to start twice.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("upskill is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("upskill is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Recovery.Backend == recovery.BackendOllama {
		model := cfg.Recovery.Model
		if model == "" {
			model = recovery.DefaultModel(recovery.BackendOllama)
		}
		// Plans fall back to the error message until Ollama comes up.
		if err := ollama.EnsureReady(ctx, ollama.New(cfg.Ollama.BaseURL), model, os.Stderr); err != nil {
			printWarning("%v", err)
		}
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating recovery backend: %w", err)
	}
	planner := recovery.NewPlanner(gen, cfg.Recovery.Timeout)

	metrics := telemetry.New()
	profiles := profile.NewManager(store)
	sessions := session.NewRegistry(cfg.Session.TTL)

	handler := api.NewAppHandler(api.AppDeps{
		Store:    store,
		Profiles: profiles,
		Sessions: sessions,
		Metrics:  metrics,
		Token:    apiToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "upskill listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return worker.NewWorker(store, planner, metrics, cfg.Recovery.PollInterval).Run(gctx)
	})

	g.Go(func() error {
		return sessions.Run(gctx, time.Minute)
	})

	if serveMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Profiles: profiles,
			Planner:  planner,
			Metrics:  metrics,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("upskill is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop upskill (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to upskill (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	model := cfg.Recovery.Model
	if model == "" {
		model = recovery.DefaultModel(cfg.Recovery.Backend)
	}
	printStatus("Recovery backend", "%s (%s)", cfg.Recovery.Backend, model)
	printStatus("Credentials", "%s", credentialsLabel(cfg))

	if cfg.Recovery.Backend == recovery.BackendOllama {
		if ollama.New(cfg.Ollama.BaseURL).IsRunning(ctx) {
			printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
		} else {
			printStatus("Ollama", "not running")
		}
	}

	if running {
		if token, err := config.GetAPIToken(config.NewKeychain()); err == nil {
			var profiles []struct {
				ID string `json:"id"`
			}
			if resp, err := apiGet(client, serverURL+"/profiles?limit=100", token); err == nil {
				if decodeJSON(resp, &profiles) == nil {
					printStatus("Profiles", "%s", countLabel(len(profiles), 100))
				}
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func credentialsLabel(cfg config.Config) string {
	switch cfg.Recovery.Backend {
	case recovery.BackendOllama:
		return "not needed"
	case recovery.BackendOpenRouter:
		if cfg.Recovery.OpenRouterAPIKey != "" {
			return "configured"
		}
	default:
		if cfg.Recovery.GeminiAPIKey != "" {
			return "configured"
		}
	}
	return "missing (plans use the fallback message)"
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}

func apiGet(client *http.Client, url, token string) (*http.Response, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return client.Do(req)
}
