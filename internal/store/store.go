// Package store provides persistence for districts, monthly performance
// records, and the TTL endpoint cache, backed by SQLite or PostgreSQL.
package store

import (
	"context"
	"time"

	"github.com/gramseva/mgnrega-tracker/internal/model"
)

// Store defines the persistence interface for the tracker.
type Store interface {
	// Writes (owned by the ingestion pipeline)
	UpsertDistricts(ctx context.Context, districts []model.District) error
	UpsertPerformance(ctx context.Context, records []model.PerformanceRecord) error

	// Reads
	ListDistricts(ctx context.Context) ([]model.District, error)
	GetDistrict(ctx context.Context, code string) (*model.District, error)
	MonthlyPerformance(ctx context.Context, code string, year int) ([]model.PerformanceRecord, error)
	SummarizeDistrict(ctx context.Context, code string, year int) (*model.Summary, error)
	CompareDistricts(ctx context.Context, codes []string, year int) ([]model.ComparisonRow, error)
	StateSummary(ctx context.Context, year int) ([]model.StateSummaryRow, error)

	// Endpoint cache. GetCache returns (nil, nil) when no unexpired entry
	// exists for the key. PutCache writes a new entry; prior entries for the
	// same key are superseded, not mutated.
	GetCache(ctx context.Context, key string) ([]byte, error)
	PutCache(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	DeleteExpiredCache(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
