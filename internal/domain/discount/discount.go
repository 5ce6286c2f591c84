package discount

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidCode  = errors.New("discount: invalid gift card code")
	ErrInvalidTable = errors.New("discount: invalid code table")
)

// Table maps an exact, case-sensitive code to a whole percentage in [0, 100].
type Table map[string]int

// DefaultTable is the storefront's built-in code table.
func DefaultTable() Table {
	return Table{
		"DHRUV":            10,
		"DEV":              5,
		"CARTIFYECOMMERCE": 15,
		"NEWUSER":          10,
	}
}

// ParseTable builds a Table from "CODE=percent" entries.
func ParseTable(entries []string) (Table, error) {
	t := make(Table, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		code, pct, ok := strings.Cut(e, "=")
		if !ok {
			return nil, fmt.Errorf("%w: entry %q is not CODE=percent", ErrInvalidTable, e)
		}
		code = strings.TrimSpace(code)
		n, err := strconv.Atoi(strings.TrimSpace(pct))
		if err != nil {
			return nil, fmt.Errorf("%w: entry %q: %w", ErrInvalidTable, e, err)
		}
		if code == "" || n < 0 || n > 100 {
			return nil, fmt.Errorf("%w: entry %q out of range", ErrInvalidTable, e)
		}
		if _, dup := t[code]; dup {
			return nil, fmt.Errorf("%w: duplicate code %q", ErrInvalidTable, code)
		}
		t[code] = n
	}
	return t, nil
}

// Active is the discount currently applied to a session. At most one exists at a time.
type Active struct {
	Code    string `json:"code"`
	Percent int    `json:"percent"`
}

// Lookup resolves code by exact match.
func (t Table) Lookup(code string) (Active, error) {
	pct, ok := t[code]
	if !ok || code == "" {
		return Active{}, ErrInvalidCode
	}
	return Active{Code: code, Percent: pct}, nil
}

// PercentOf returns the active percentage, or 0 when no discount is applied.
func PercentOf(a *Active) int {
	if a == nil {
		return 0
	}
	return a.Percent
}

// Store persists the active discount per session. A nil value means no discount.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Active, error)
	Save(ctx context.Context, sessionID string, a *Active) error
}
