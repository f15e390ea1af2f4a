// Package currency converts transaction amounts into the base currency
// reports are expressed in.
package currency

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/core"
)

// RateSource tells where the rate applied to a conversion came from.
type RateSource string

const (
	// RateLocked is the rate captured on the source document.
	RateLocked RateSource = "locked"
	// RateBase means the amount already was in base currency.
	RateBase RateSource = "base"
	// RateFallback is a static table rate used for legacy records.
	RateFallback RateSource = "fallback"
	// RateDefault is the rate of 1 applied to foreign codes missing from the table.
	RateDefault RateSource = "default"
)

var one = decimal.NewFromInt(1)

// Conversion is the result of normalizing one transaction.
type Conversion struct {
	Amount decimal.Decimal
	Rate   decimal.Decimal
	Source RateSource
}

// Ambiguous reports whether the figure rests on a guessed rate rather than
// one locked at transaction time.
func (c Conversion) Ambiguous() bool {
	return c.Source == RateFallback || c.Source == RateDefault
}

// Normalizer converts native amounts into Base. It is immutable once built
// and safe for concurrent use.
type Normalizer struct {
	base     string
	fallback map[string]decimal.Decimal
}

// NewNormalizer builds a normalizer for base with a fallback rate table
// keyed by currency code (units of base per unit of foreign currency).
func NewNormalizer(base string, fallback map[string]decimal.Decimal) *Normalizer {
	table := make(map[string]decimal.Decimal, len(fallback))
	for code, rate := range fallback {
		table[normalizeCode(code)] = rate
	}
	return &Normalizer{base: normalizeCode(base), fallback: table}
}

// Base returns the base currency code.
func (n *Normalizer) Base() string { return n.base }

// ToBase converts tx.Amount into the base currency. A locked rate always
// wins. Without one, base-currency records use 1, foreign records use the
// fallback table and unknown foreign codes fall back to 1.
func (n *Normalizer) ToBase(tx core.Transaction) Conversion {
	if tx.LockedRate.Valid {
		rate := tx.LockedRate.Decimal
		return Conversion{Amount: tx.Amount.Mul(rate), Rate: rate, Source: RateLocked}
	}
	code := normalizeCode(tx.Currency)
	if code == "" || code == n.base {
		return Conversion{Amount: tx.Amount, Rate: one, Source: RateBase}
	}
	if rate, ok := n.fallback[code]; ok {
		return Conversion{Amount: tx.Amount.Mul(rate), Rate: rate, Source: RateFallback}
	}
	return Conversion{Amount: tx.Amount, Rate: one, Source: RateDefault}
}

// IsKnown reports whether code is an ISO 4217 code known to go-money.
func IsKnown(code string) bool {
	return money.GetCurrency(normalizeCode(code)) != nil
}

// Format renders amount with the symbol and grouping of code, rounded to
// the currency's minor unit.
func Format(amount decimal.Decimal, code string) string {
	cur := *money.New(0, normalizeCode(code)).Currency()
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
