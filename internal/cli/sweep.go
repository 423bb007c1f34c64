package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/freshnote/internal/engine"
	"github.com/lazypower/freshnote/internal/store"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one archive sweep over all notes and exit",
	RunE:  runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
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
	eng.SetValidatorTimeout(time.Duration(cfg.LLM.TimeoutSeconds) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := eng.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	fmt.Printf("swept %d notes: %d archived, %d errors (%s)\n",
		result.Scanned, result.Archived, result.Errors, result.Duration.Round(time.Millisecond))

	counts, err := db.CountAllByStatus()
	if err != nil {
		return fmt.Errorf("count notes: %w", err)
	}
	fmt.Printf("totals: %d active, %d archived, %d revived\n",
		counts[store.StatusActive], counts[store.StatusArchived], counts[store.StatusRevived])

	return nil
}
