package storage

import (
	"context"
	"fmt"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/sources/memory"
)

// Import copies every project, transaction and account of src into the
// repository. Existing rows with the same ids are replaced.
func (r *SQLiteRepository) Import(ctx context.Context, src *memory.Store) error {
	projects, err := src.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("list seed projects: %w", err)
	}
	for _, p := range projects {
		if err := r.SaveProject(ctx, p); err != nil {
			return err
		}
	}

	txs := src.Transactions()
	for _, tx := range txs {
		if err := r.SaveTransaction(ctx, tx); err != nil {
			return err
		}
	}

	accounts, err := src.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("list seed accounts: %w", err)
	}
	for code, label := range accounts {
		if err := r.SetAccount(ctx, code, label); err != nil {
			return err
		}
	}

	r.logger.InfoContext(ctx, "Seed data imported into SQLite",
		"projects", len(projects),
		"transactions", len(txs),
		"accounts", len(accounts))
	return nil
}
