// Package reportstore holds the persistent backends of the insights report
// store: Postgres through GORM and Redis.
package reportstore

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jimdaga/friend-frenzy/internal/config"
	"github.com/jimdaga/friend-frenzy/internal/insights"
	"gorm.io/gorm"
)

// New builds the store selected by cfg.ReportStore. db may be nil unless
// the postgres backend is selected. The returned close func releases any
// connection the store owns.
func New(cfg *config.Config, db *gorm.DB) (insights.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.ReportStore {
	case config.StorePostgres:
		if db == nil {
			return nil, nil, fmt.Errorf("postgres report store requires a database connection")
		}
		return NewGormStore(db), noop, nil
	case config.StoreRedis:
		store, err := NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.StoreMemory:
		slog.Warn("Using in-memory report store; insights are lost on restart")
		return insights.NewMemoryStore(), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown report store %q", cfg.ReportStore)
	}
}

func encodeReport(r *insights.Report) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return data, nil
}

func decodeReport(data []byte) (*insights.Report, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var r insights.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &r, nil
}
