package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/core"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/sources"
)

// Store keeps projects, transactions and the chart of accounts in memory.
type Store struct {
	mu       sync.RWMutex
	projects map[string]core.Project
	txs      []core.Transaction
	accounts map[string]string
}

// Ensure interface conformance
var (
	_ sources.ProjectStore    = (*Store)(nil)
	_ sources.ChartOfAccounts = (*Store)(nil)
)

func New() *Store {
	return &Store{
		projects: make(map[string]core.Project),
		accounts: make(map[string]string),
	}
}

// AddProject inserts or replaces a project.
func (s *Store) AddProject(p core.Project) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("project %q: %w", p.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
	return nil
}

// AddTransaction appends a transaction. Records without a source are
// treated as ledger records.
func (s *Store) AddTransaction(tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("transaction %q: %w", tx.ID, err)
	}
	if tx.Source == "" {
		tx.Source = core.SourceLedger
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, tx)
	return nil
}

// SetAccount maps a category code to its label.
func (s *Store) SetAccount(code, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[code] = label
}

func (s *Store) GetProject(_ context.Context, id string) (core.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return core.Project{}, core.ErrProjectNotFound
	}
	return p, nil
}

func (s *Store) ListProjects(_ context.Context) ([]core.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Accounts(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.accounts))
	for k, v := range s.accounts {
		out[k] = v
	}
	return out, nil
}

// Income returns the ledger income source.
func (s *Store) Income() sources.TransactionSource {
	return s.view(core.Income, core.SourceLedger)
}

// Expenses returns the ledger expense source.
func (s *Store) Expenses() sources.TransactionSource {
	return s.view(core.Expense, core.SourceLedger)
}

// Incidental returns the petty-cash expense source.
func (s *Store) Incidental() sources.TransactionSource {
	return s.view(core.Expense, core.SourceIncidental)
}

// Transactions returns a copy of every stored transaction in insertion order.
func (s *Store) Transactions() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Transaction(nil), s.txs...)
}

// Sources bundles every port served by the store.
func (s *Store) Sources() sources.Set {
	return sources.Set{
		Projects:   s,
		Income:     s.Income(),
		Expenses:   s.Expenses(),
		Incidental: s.Incidental(),
		Accounts:   s,
	}
}

func (s *Store) view(kind core.Kind, src core.Source) sources.TransactionSource {
	return sources.TransactionSourceFunc(func(_ context.Context, start, end time.Time) ([]core.Transaction, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		var out []core.Transaction
		for _, tx := range s.txs {
			if tx.Kind != kind || tx.Source != src {
				continue
			}
			if !sources.InRange(tx.Date, start, end) {
				continue
			}
			out = append(out, tx)
		}
		return out, nil
	})
}

// seed is the JSON layout accepted by NewFromFile.
type seed struct {
	Projects []struct {
		ID         string          `json:"id"`
		CompanyID  string          `json:"company_id"`
		Name       string          `json:"name"`
		Code       string          `json:"code"`
		FeePercent decimal.Decimal `json:"fee_percent"`
	} `json:"projects"`
	Transactions []struct {
		ID              string              `json:"id"`
		Kind            core.Kind           `json:"kind"`
		Source          core.Source         `json:"source"`
		Date            string              `json:"date"`
		Description     string              `json:"description"`
		Vendor          string              `json:"vendor"`
		Amount          decimal.Decimal     `json:"amount"`
		Currency        string              `json:"currency"`
		LockedRate      decimal.NullDecimal `json:"locked_rate"`
		CategoryCode    string              `json:"category_code"`
		ProjectID       string              `json:"project_id"`
		DocumentType    string              `json:"document_type"`
		DocumentNumber  string              `json:"document_number"`
		CompletedAt     string              `json:"completed_at"`
		LinkedPrimaryID string              `json:"linked_primary_id"`
		Attachments     []core.Attachment   `json:"attachments"`
	} `json:"transactions"`
	Accounts map[string]string `json:"accounts"`
}

// NewFromFile loads a store from a JSON seed file. A missing file yields an
// empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var sd seed
	if err := json.Unmarshal(raw, &sd); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	for _, p := range sd.Projects {
		err := s.AddProject(core.Project{
			ID:         p.ID,
			CompanyID:  p.CompanyID,
			Name:       p.Name,
			Code:       p.Code,
			FeePercent: p.FeePercent,
		})
		if err != nil {
			return nil, err
		}
	}
	for _, t := range sd.Transactions {
		date, err := time.Parse(time.DateOnly, t.Date)
		if err != nil {
			return nil, fmt.Errorf("transaction %q: date: %w", t.ID, err)
		}
		tx := core.Transaction{
			ID:              t.ID,
			Kind:            t.Kind,
			Source:          t.Source,
			Date:            date,
			Description:     t.Description,
			Vendor:          t.Vendor,
			Amount:          t.Amount,
			Currency:        t.Currency,
			LockedRate:      t.LockedRate,
			CategoryCode:    t.CategoryCode,
			ProjectID:       t.ProjectID,
			DocumentType:    t.DocumentType,
			DocumentNumber:  t.DocumentNumber,
			LinkedPrimaryID: t.LinkedPrimaryID,
			Attachments:     t.Attachments,
		}
		if t.CompletedAt != "" {
			done, err := time.Parse(time.DateOnly, t.CompletedAt)
			if err != nil {
				return nil, fmt.Errorf("transaction %q: completed_at: %w", t.ID, err)
			}
			tx.CompletedAt = &done
		}
		if err := s.AddTransaction(tx); err != nil {
			return nil, err
		}
	}
	for code, label := range sd.Accounts {
		s.SetAccount(code, label)
	}
	return s, nil
}
