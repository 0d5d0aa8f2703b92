package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/postgres"
)

// SnapshotStore persists aggregated stats in the analytics_snapshots table
// so the dashboard survives restarts.
type SnapshotStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewSnapshotStore(db *postgres.Client) *SnapshotStore {
	return &SnapshotStore{
		db:     db,
		logger: slog.Default().With("component", "analytics-store"),
	}
}

func (s *SnapshotStore) Save(ctx context.Context, stats AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO analytics_snapshots (data, captured_at) VALUES ($1, $2)`,
		data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	s.logger.Debug("analytics snapshot saved",
		"total_searches", stats.TotalSearches,
		"total_views", stats.TotalViews,
	)
	return nil
}

// Latest loads the newest snapshot. It returns nil, nil when none exist.
func (s *SnapshotStore) Latest(ctx context.Context) (*AggregatedStats, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM analytics_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	var stats AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// Prune keeps the newest keep snapshots.
func (s *SnapshotStore) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.DB.ExecContext(ctx,
		`DELETE FROM analytics_snapshots WHERE id NOT IN (
			SELECT id FROM analytics_snapshots ORDER BY captured_at DESC LIMIT $1
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning analytics snapshots: %w", err)
	}
	return res.RowsAffected()
}

// StartPeriodicSave snapshots agg every interval and once more on shutdown.
// Restored counters are included, so each snapshot is cumulative.
func (s *SnapshotStore) StartPeriodicSave(ctx context.Context, agg *Aggregator, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.Save(ctx, agg.Stats()); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
					continue
				}
				if _, err := s.Prune(ctx, 100); err != nil {
					s.logger.Warn("snapshot prune failed", "error", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := s.Save(shutdownCtx, agg.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				cancel()
				return
			}
		}
	}()
	s.logger.Info("periodic analytics snapshot started", "interval", interval)
}
