package backend

import (
	"context"
	"fmt"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/log"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/sources"
	gsheet "github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/sources/google"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/sources/memory"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend builds the configured store and, when a spreadsheet is
// configured, adds the petty-cash sheet to the incidental source.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		res, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if config.GoogleSpreadsheetID != "" {
		if err := f.attachPettyCash(ctx, config, res); err != nil {
			res.Close()
			return nil, err
		}
	}
	return res, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	if config.SeedFile != "" {
		seed, err := memory.NewFromFile(config.SeedFile)
		if err != nil {
			repo.Close()
			return nil, fmt.Errorf("load seed file: %w", err)
		}
		if err := repo.Import(ctx, seed); err != nil {
			repo.Close()
			return nil, fmt.Errorf("import seed file: %w", err)
		}
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"seed_file", config.SeedFile)

	return &BackendResult{
		Sources: repo.Sources(),
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store := memory.New()
	if config.SeedFile != "" {
		var err error
		if store, err = memory.NewFromFile(config.SeedFile); err != nil {
			return nil, fmt.Errorf("load seed file: %w", err)
		}
	}

	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)

	return &BackendResult{Sources: store.Sources()}, nil
}

func (f *DefaultFactory) attachPettyCash(ctx context.Context, config Config, res *BackendResult) error {
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GooglePettyCashSheet,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
		CacheTTL:        config.GoogleCacheTTL,
		BaseCurrency:    config.BaseCurrency,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	if res.Sources.Incidental != nil {
		res.Sources.Incidental = sources.Merge(res.Sources.Incidental, client)
	} else {
		res.Sources.Incidental = client
	}
	res.Caches = append(res.Caches, client.Cache())

	f.logger.Info("Petty cash sheet attached",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet", config.GooglePettyCashSheet)
	return nil
}
