package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/core"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/log"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/sources"

	_ "modernc.org/sqlite"
)

// SQLiteRepository keeps projects, transactions, attachments and the chart
// of accounts in one SQLite file and serves them through the source ports.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  log.Default(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveProject inserts or replaces p.
func (r *SQLiteRepository) SaveProject(ctx context.Context, p core.Project) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("project %q: %w", p.ID, err)
	}
	if err := r.queries.UpsertProject(ctx, Project{
		ID:         p.ID,
		CompanyID:  p.CompanyID,
		Name:       p.Name,
		Code:       p.Code,
		FeePercent: p.FeePercent.String(),
	}); err != nil {
		return fmt.Errorf("save project %s: %w", p.ID, err)
	}
	return nil
}

// SaveTransaction inserts or replaces tx together with its attachments.
func (r *SQLiteRepository) SaveTransaction(ctx context.Context, tx core.Transaction) error {
	if tx.Source == "" {
		tx.Source = core.SourceLedger
	}
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("transaction %q: %w", tx.ID, err)
	}

	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer dbtx.Rollback()

	q := r.queries.WithTx(dbtx)
	if err := q.UpsertTransaction(ctx, toRow(tx)); err != nil {
		return fmt.Errorf("save transaction %s: %w", tx.ID, err)
	}
	if err := q.DeleteAttachments(ctx, tx.ID); err != nil {
		return fmt.Errorf("clear attachments of %s: %w", tx.ID, err)
	}
	for _, a := range tx.Attachments {
		if err := q.CreateAttachment(ctx, Attachment{
			ID:            a.ID,
			TransactionID: tx.ID,
			Name:          a.Name,
			Url:           a.URL,
			MimeType:      a.MimeType,
		}); err != nil {
			return fmt.Errorf("save attachment %s: %w", a.ID, err)
		}
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.logger.DebugContext(ctx, "Transaction saved to SQLite",
		log.FieldTransactionID, tx.ID,
		log.FieldKind, tx.Kind,
		log.FieldSource, tx.Source,
		"attachments", len(tx.Attachments))
	return nil
}

// SetAccount inserts or relabels a chart-of-accounts entry.
func (r *SQLiteRepository) SetAccount(ctx context.Context, code, label string) error {
	if err := r.queries.UpsertAccount(ctx, Account{Code: code, Label: label}); err != nil {
		return fmt.Errorf("save account %s: %w", code, err)
	}
	return nil
}

// GetProject implements sources.ProjectStore.
func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (core.Project, error) {
	row, err := r.queries.GetProject(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Project{}, core.ErrProjectNotFound
	}
	if err != nil {
		return core.Project{}, fmt.Errorf("get project %s: %w", id, err)
	}
	return fromProjectRow(row)
}

// ListProjects implements sources.ProjectStore.
func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]core.Project, error) {
	rows, err := r.queries.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	out := make([]core.Project, 0, len(rows))
	for _, row := range rows {
		p, err := fromProjectRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Accounts implements sources.ChartOfAccounts.
func (r *SQLiteRepository) Accounts(ctx context.Context) (map[string]string, error) {
	rows, err := r.queries.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, a := range rows {
		out[a.Code] = a.Label
	}
	return out, nil
}

func (r *SQLiteRepository) Income() sources.TransactionSource {
	return r.view(core.Income, core.SourceLedger)
}

func (r *SQLiteRepository) Expenses() sources.TransactionSource {
	return r.view(core.Expense, core.SourceLedger)
}

func (r *SQLiteRepository) Incidental() sources.TransactionSource {
	return r.view(core.Expense, core.SourceIncidental)
}

// Sources wires the repository into every engine port.
func (r *SQLiteRepository) Sources() sources.Set {
	return sources.Set{
		Projects:   r,
		Income:     r.Income(),
		Expenses:   r.Expenses(),
		Incidental: r.Incidental(),
		Accounts:   r,
	}
}

func (r *SQLiteRepository) view(kind core.Kind, src core.Source) sources.TransactionSource {
	return sources.TransactionSourceFunc(func(ctx context.Context, start, end time.Time) ([]core.Transaction, error) {
		return r.byDateRange(ctx, kind, src, start, end)
	})
}

func (r *SQLiteRepository) byDateRange(ctx context.Context, kind core.Kind, src core.Source, start, end time.Time) ([]core.Transaction, error) {
	arg := ListTransactionsByRangeParams{
		Kind:   string(kind),
		Source: string(src),
		Start:  start.Format(time.DateOnly),
		End:    end.Format(time.DateOnly),
	}
	rows, err := r.queries.ListTransactionsByRange(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("list %s %s transactions: %w", src, kind, err)
	}
	attachments, err := r.queries.ListAttachmentsByRange(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	byTx := make(map[string][]core.Attachment)
	for _, a := range attachments {
		byTx[a.TransactionID] = append(byTx[a.TransactionID], core.Attachment{
			ID:       a.ID,
			Name:     a.Name,
			URL:      a.Url,
			MimeType: a.MimeType,
		})
	}

	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		tx.Attachments = byTx[tx.ID]
		out = append(out, tx)
	}

	r.logger.DebugContext(ctx, "Transactions loaded from SQLite",
		log.FieldKind, kind,
		log.FieldSource, src,
		"start", arg.Start,
		"end", arg.End,
		"count", len(out))
	return out, nil
}

func toRow(tx core.Transaction) Transaction {
	row := Transaction{
		ID:              tx.ID,
		Kind:            string(tx.Kind),
		Source:          string(tx.Source),
		Date:            tx.Date.Format(time.DateOnly),
		Description:     tx.Description,
		Vendor:          tx.Vendor,
		Amount:          tx.Amount.String(),
		Currency:        tx.Currency,
		CategoryCode:    tx.CategoryCode,
		ProjectID:       tx.ProjectID,
		DocumentType:    tx.DocumentType,
		DocumentNumber:  tx.DocumentNumber,
		LinkedPrimaryID: tx.LinkedPrimaryID,
	}
	if tx.LockedRate.Valid {
		row.LockedRate = sql.NullString{String: tx.LockedRate.Decimal.String(), Valid: true}
	}
	if tx.CompletedAt != nil {
		row.CompletedAt = sql.NullString{String: tx.CompletedAt.Format(time.DateOnly), Valid: true}
	}
	return row
}

func fromRow(row Transaction) (core.Transaction, error) {
	bad := func(field string, err error) (core.Transaction, error) {
		return core.Transaction{}, fmt.Errorf("transaction %s: invalid %s: %w", row.ID, field, err)
	}

	date, err := time.Parse(time.DateOnly, row.Date)
	if err != nil {
		return bad("date", err)
	}
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return bad("amount", err)
	}
	tx := core.Transaction{
		ID:              row.ID,
		Kind:            core.Kind(row.Kind),
		Source:          core.Source(row.Source),
		Date:            date,
		Description:     row.Description,
		Vendor:          row.Vendor,
		Amount:          amount,
		Currency:        row.Currency,
		CategoryCode:    row.CategoryCode,
		ProjectID:       row.ProjectID,
		DocumentType:    row.DocumentType,
		DocumentNumber:  row.DocumentNumber,
		LinkedPrimaryID: row.LinkedPrimaryID,
	}
	if row.LockedRate.Valid {
		rate, err := decimal.NewFromString(row.LockedRate.String)
		if err != nil {
			return bad("locked_rate", err)
		}
		tx.LockedRate = decimal.NewNullDecimal(rate)
	}
	if row.CompletedAt.Valid {
		done, err := time.Parse(time.DateOnly, row.CompletedAt.String)
		if err != nil {
			return bad("completed_at", err)
		}
		tx.CompletedAt = &done
	}
	return tx, nil
}

func fromProjectRow(row Project) (core.Project, error) {
	fee, err := decimal.NewFromString(row.FeePercent)
	if err != nil {
		return core.Project{}, fmt.Errorf("project %s: invalid fee_percent: %w", row.ID, err)
	}
	return core.Project{
		ID:         row.ID,
		CompanyID:  row.CompanyID,
		Name:       row.Name,
		Code:       row.Code,
		FeePercent: fee,
	}, nil
}
