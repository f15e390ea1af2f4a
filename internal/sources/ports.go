package sources

import (
	"context"
	"time"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/core"
)

// Ports for the collaborators the reporting engine reads from.
type (
	ProjectStore interface {
		// GetProject returns core.ErrProjectNotFound for unknown ids.
		GetProject(ctx context.Context, id string) (core.Project, error)
		ListProjects(ctx context.Context) ([]core.Project, error)
	}

	// TransactionSource returns every transaction dated within [start, end],
	// both days inclusive, regardless of project.
	TransactionSource interface {
		ByDateRange(ctx context.Context, start, end time.Time) ([]core.Transaction, error)
	}

	// ChartOfAccounts maps category codes to human labels.
	ChartOfAccounts interface {
		Accounts(ctx context.Context) (map[string]string, error)
	}
)

// Set bundles the collaborators one engine instance reads from.
// Incidental may be nil when no petty-cash source is configured.
type Set struct {
	Projects   ProjectStore
	Income     TransactionSource
	Expenses   TransactionSource
	Incidental TransactionSource
	Accounts   ChartOfAccounts
}

// TransactionSourceFunc adapts a function to TransactionSource.
type TransactionSourceFunc func(ctx context.Context, start, end time.Time) ([]core.Transaction, error)

func (f TransactionSourceFunc) ByDateRange(ctx context.Context, start, end time.Time) ([]core.Transaction, error) {
	return f(ctx, start, end)
}

// InRange reports whether the calendar day of t lies within [start, end].
func InRange(t, start, end time.Time) bool {
	d := core.Day(t)
	return !d.Before(core.Day(start)) && !d.After(core.Day(end))
}

// Merge concatenates the rows of several sources. The first failure fails
// the whole read.
func Merge(srcs ...TransactionSource) TransactionSource {
	return TransactionSourceFunc(func(ctx context.Context, start, end time.Time) ([]core.Transaction, error) {
		var out []core.Transaction
		for _, s := range srcs {
			txs, err := s.ByDateRange(ctx, start, end)
			if err != nil {
				return nil, err
			}
			out = append(out, txs...)
		}
		return out, nil
	})
}
