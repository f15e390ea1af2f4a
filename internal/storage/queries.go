package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Rows as stored. Decimals and dates are kept as text.
type (
	Project struct {
		ID         string
		CompanyID  string
		Name       string
		Code       string
		FeePercent string
	}

	Transaction struct {
		ID              string
		Kind            string
		Source          string
		Date            string
		Description     string
		Vendor          string
		Amount          string
		Currency        string
		LockedRate      sql.NullString
		CategoryCode    string
		ProjectID       string
		DocumentType    string
		DocumentNumber  string
		CompletedAt     sql.NullString
		LinkedPrimaryID string
	}

	Attachment struct {
		ID            string
		TransactionID string
		Name          string
		Url           string
		MimeType      string
	}

	Account struct {
		Code  string
		Label string
	}
)

const upsertProject = `
INSERT INTO projects (id, company_id, name, code, fee_percent)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    company_id = excluded.company_id,
    name = excluded.name,
    code = excluded.code,
    fee_percent = excluded.fee_percent`

func (q *Queries) UpsertProject(ctx context.Context, arg Project) error {
	_, err := q.db.ExecContext(ctx, upsertProject, arg.ID, arg.CompanyID, arg.Name, arg.Code, arg.FeePercent)
	return err
}

const getProject = `
SELECT id, company_id, name, code, fee_percent FROM projects WHERE id = ?`

func (q *Queries) GetProject(ctx context.Context, id string) (Project, error) {
	var p Project
	err := q.db.QueryRowContext(ctx, getProject, id).Scan(&p.ID, &p.CompanyID, &p.Name, &p.Code, &p.FeePercent)
	return p, err
}

const listProjects = `
SELECT id, company_id, name, code, fee_percent FROM projects ORDER BY id`

func (q *Queries) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := q.db.QueryContext(ctx, listProjects)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Name, &p.Code, &p.FeePercent); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const upsertTransaction = `
INSERT INTO transactions (
    id, kind, source, date, description, vendor, amount, currency, locked_rate,
    category_code, project_id, document_type, document_number, completed_at, linked_primary_id
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    kind = excluded.kind,
    source = excluded.source,
    date = excluded.date,
    description = excluded.description,
    vendor = excluded.vendor,
    amount = excluded.amount,
    currency = excluded.currency,
    locked_rate = excluded.locked_rate,
    category_code = excluded.category_code,
    project_id = excluded.project_id,
    document_type = excluded.document_type,
    document_number = excluded.document_number,
    completed_at = excluded.completed_at,
    linked_primary_id = excluded.linked_primary_id`

func (q *Queries) UpsertTransaction(ctx context.Context, arg Transaction) error {
	_, err := q.db.ExecContext(ctx, upsertTransaction,
		arg.ID, arg.Kind, arg.Source, arg.Date, arg.Description, arg.Vendor, arg.Amount, arg.Currency,
		arg.LockedRate, arg.CategoryCode, arg.ProjectID, arg.DocumentType, arg.DocumentNumber,
		arg.CompletedAt, arg.LinkedPrimaryID)
	return err
}

type ListTransactionsByRangeParams struct {
	Kind   string
	Source string
	Start  string
	End    string
}

const listTransactionsByRange = `
SELECT id, kind, source, date, description, vendor, amount, currency, locked_rate,
       category_code, project_id, document_type, document_number, completed_at, linked_primary_id
FROM transactions
WHERE kind = ? AND source = ? AND date BETWEEN ? AND ?
ORDER BY date, id`

func (q *Queries) ListTransactionsByRange(ctx context.Context, arg ListTransactionsByRangeParams) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsByRange, arg.Kind, arg.Source, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.ID, &t.Kind, &t.Source, &t.Date, &t.Description, &t.Vendor, &t.Amount, &t.Currency,
			&t.LockedRate, &t.CategoryCode, &t.ProjectID, &t.DocumentType, &t.DocumentNumber,
			&t.CompletedAt, &t.LinkedPrimaryID,
		); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const deleteAttachments = `DELETE FROM attachments WHERE transaction_id = ?`

func (q *Queries) DeleteAttachments(ctx context.Context, transactionID string) error {
	_, err := q.db.ExecContext(ctx, deleteAttachments, transactionID)
	return err
}

const createAttachment = `
INSERT INTO attachments (id, transaction_id, name, url, mime_type) VALUES (?, ?, ?, ?, ?)`

func (q *Queries) CreateAttachment(ctx context.Context, arg Attachment) error {
	_, err := q.db.ExecContext(ctx, createAttachment, arg.ID, arg.TransactionID, arg.Name, arg.Url, arg.MimeType)
	return err
}

const listAttachmentsByRange = `
SELECT a.id, a.transaction_id, a.name, a.url, a.mime_type
FROM attachments a
JOIN transactions t ON t.id = a.transaction_id
WHERE t.kind = ? AND t.source = ? AND t.date BETWEEN ? AND ?
ORDER BY a.transaction_id, a.id`

func (q *Queries) ListAttachmentsByRange(ctx context.Context, arg ListTransactionsByRangeParams) ([]Attachment, error) {
	rows, err := q.db.QueryContext(ctx, listAttachmentsByRange, arg.Kind, arg.Source, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Attachment
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.ID, &a.TransactionID, &a.Name, &a.Url, &a.MimeType); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const upsertAccount = `
INSERT INTO chart_of_accounts (code, label) VALUES (?, ?)
ON CONFLICT (code) DO UPDATE SET label = excluded.label`

func (q *Queries) UpsertAccount(ctx context.Context, arg Account) error {
	_, err := q.db.ExecContext(ctx, upsertAccount, arg.Code, arg.Label)
	return err
}

const listAccounts = `SELECT code, label FROM chart_of_accounts ORDER BY code`

func (q *Queries) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.Code, &a.Label); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
