package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/freshnote/internal/config"
	"github.com/lazypower/freshnote/internal/engine"
	"github.com/lazypower/freshnote/internal/llm"
	"github.com/lazypower/freshnote/internal/revision"
	"github.com/lazypower/freshnote/internal/server"
	"github.com/lazypower/freshnote/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return config.Default(), fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, ".freshnote", "config.yaml")
	}
	return config.Load(path)
}

// buildValidator wires the configured LLM provider behind the revision
// judge. With no provider available the deterministic fallback serves
// alone — the engine never requires a network to function.
func buildValidator(cfg config.LLMConfig) revision.Validator {
	client, err := llm.NewClient(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: LLM not configured (%v), using deterministic validator\n", err)
		return revision.Fallback{}
	}
	fmt.Fprintf(os.Stderr, "  llm: %s (%s)\n", cfg.Provider, cfg.Model)
	return revision.NewJudge(client)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	eng := engine.New(db, buildValidator(cfg.LLM))
	eng.SetDefaultTTL(cfg.Notes.DefaultDecayMinutes)
	eng.SetValidatorTimeout(time.Duration(cfg.LLM.TimeoutSeconds) * time.Second)
	eng.SetSweepInterval(time.Duration(cfg.Notes.SweepIntervalMinutes) * time.Minute)
	eng.StartSweepTimer()
	defer eng.Stop()

	srv := server.New(db, eng, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "freshnote serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", dbPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
