package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sweeper metrics.
var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "freshnote_sweep_runs_total",
		Help: "Number of archive sweep runs",
	})

	sweepArchivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "freshnote_sweep_archived_total",
		Help: "Number of notes archived by sweeps",
	})

	sweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "freshnote_sweep_errors_total",
		Help: "Number of per-note failures during sweeps",
	})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "freshnote_sweep_duration_seconds",
		Help:    "Duration of archive sweep runs",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// SweepResult summarizes one archive sweep.
type SweepResult struct {
	Scanned  int
	Archived int
	Errors   int
	Duration time.Duration
}

// StartSweepTimer runs a sweep at startup and then on the configured
// interval until Stop is called.
func (e *Engine) StartSweepTimer() {
	e.runSweep()

	go func() {
		ticker := time.NewTicker(e.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.runSweep()
			case <-e.stopCh:
				return
			}
		}
	}()
}

func (e *Engine) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := e.SweepExpired(ctx)
	if err != nil {
		slog.Error("archive sweep failed", "error", err)
		return
	}
	if result.Archived > 0 || result.Errors > 0 {
		slog.Info("archive sweep",
			"scanned", result.Scanned,
			"archived", result.Archived,
			"errors", result.Errors,
			"duration", result.Duration)
	}
}

// SweepExpired scans every live note across all owners and archives the
// expired ones, generating study material best-effort first. Notes are
// processed independently: one failure is counted and logged, never
// aborting the batch. The sweep checkpoints between notes and aborts on
// context cancellation, never mid-note. Archiving is idempotent, so a
// sweep interrupted mid-batch simply leaves work for the next run.
func (e *Engine) SweepExpired(ctx context.Context) (SweepResult, error) {
	start := time.Now()
	sweepRunsTotal.Inc()

	notes, err := e.db.ListLiveAll()
	if err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Scanned: len(notes)}
	now := e.now()
	for i := range notes {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}
		if !expired(&notes[i], now) {
			continue
		}

		archived, err := e.archiveExpired(ctx, notes[i].ID, notes[i].OwnerID)
		if err != nil {
			slog.Warn("sweep: archive failed", "note", notes[i].ID, "error", err)
			sweepErrorsTotal.Inc()
			result.Errors++
			continue
		}
		if archived {
			sweepArchivedTotal.Inc()
			result.Archived++
		}
	}

	result.Duration = time.Since(start)
	sweepDurationSeconds.Observe(result.Duration.Seconds())
	return result, nil
}
