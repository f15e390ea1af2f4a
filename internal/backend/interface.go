package backend

import (
	"context"
	"time"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/cache"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/sources"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult is the wired set of engine sources plus what the caller
// must manage: a cleanup hook and caches needing periodic expiry.
type BackendResult struct {
	Sources sources.Set
	Cleanup CleanupFunc
	Caches  []cache.Cleaner
}

// Close runs Cleanup if present.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// SeedFile is the JSON seed loaded by the memory backend and imported
	// into SQLite on start when set.
	SeedFile string

	// BaseCurrency is assumed for petty-cash rows with no currency.
	BaseCurrency string

	// Google Sheets petty cash; enabled when SpreadsheetID is set.
	GoogleSpreadsheetID      string
	GooglePettyCashSheet     string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleCacheTTL           time.Duration
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
