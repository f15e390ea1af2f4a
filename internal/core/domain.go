package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

const (
	// SourceLedger marks records from the primary income/expense ledger.
	SourceLedger Source = "ledger"
	// SourceIncidental marks petty-cash records kept outside the ledger.
	SourceIncidental Source = "incidental"
	// SourceManagementFee marks synthetic fee income of the management project.
	SourceManagementFee Source = "management_fee"
)

type (
	Kind   string
	Source string

	Project struct {
		ID         string
		CompanyID  string
		Name       string
		Code       string          // management marker is matched against this
		FeePercent decimal.Decimal // 0 when the project pays no management fee
	}

	Attachment struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		URL      string `json:"url"`
		MimeType string `json:"mime_type,omitempty"`
	}

	// Transaction is an immutable snapshot of one income or expense record.
	Transaction struct {
		ID             string
		Kind           Kind
		Source         Source
		Date           time.Time
		Description    string
		Vendor         string // counterparty label, used to pair incidental expenses
		Amount         decimal.Decimal
		Currency       string
		LockedRate     decimal.NullDecimal // rate captured when the document was created
		CategoryCode   string
		ProjectID      string
		DocumentType   string
		DocumentNumber string
		Attachments    []Attachment
		CompletedAt    *time.Time // income only: service completion date
		// LinkedPrimaryID ties an incidental expense to the ledger record it duplicates.
		LinkedPrimaryID string
	}
)

var (
	ErrEmptyID          = errors.New("empty id")
	ErrInvalidKind      = errors.New("invalid kind")
	ErrInvalidFee       = errors.New("fee percent must be between 0 and 100")
	ErrEmptyCurrency    = errors.New("empty currency")
	ErrInvalidRate      = errors.New("locked rate must be positive")
	ErrMissingDate      = errors.New("date cannot be zero")
	ErrCompletionOnCost = errors.New("completion date is only valid on income")
)

var hundred = decimal.NewFromInt(100)

// ParseKind accepts "income" or "expense" in any case.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Income, Expense:
		return k, nil
	default:
		return "", ErrInvalidKind
	}
}

func (k Kind) String() string { return string(k) }

// IsManagement reports whether the project carries the management marker.
func (p Project) IsManagement(code string) bool {
	return code != "" && strings.EqualFold(p.Code, code)
}

// PaysFee reports whether the project contributes to the management fee.
func (p Project) PaysFee() bool {
	return p.FeePercent.IsPositive()
}

// FeeOn returns amount × FeePercent / 100.
func (p Project) FeeOn(amount decimal.Decimal) decimal.Decimal {
	return FeeOn(amount, p.FeePercent)
}

// FeeOn returns amount × percent / 100. Both sides of the fee relationship
// (deduction and allocation) go through this function.
func FeeOn(amount, percent decimal.Decimal) decimal.Decimal {
	if percent.IsZero() {
		return decimal.Zero
	}
	return amount.Mul(percent).Div(hundred)
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrEmptyID
	}
	if p.FeePercent.IsNegative() || p.FeePercent.GreaterThan(hundred) {
		return ErrInvalidFee
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if t.Kind != Income && t.Kind != Expense {
		return ErrInvalidKind
	}
	if t.Date.IsZero() {
		return ErrMissingDate
	}
	if strings.TrimSpace(t.Currency) == "" {
		return ErrEmptyCurrency
	}
	if t.LockedRate.Valid && !t.LockedRate.Decimal.IsPositive() {
		return ErrInvalidRate
	}
	if t.Kind == Expense && t.CompletedAt != nil {
		return ErrCompletionOnCost
	}
	return nil
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewDate creates a UTC midnight date from year, month, day.
func NewDate(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
