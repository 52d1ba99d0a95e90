package accounts

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"contabil/internal/core/apperror"
	"contabil/internal/core/id"
)

// Function is the balance behavior of an account.
type Function string

const (
	FunctionActive     Function = "A" // debit balance
	FunctionPassive    Function = "P" // credit balance
	FunctionBifunction Function = "B" // either side
	FunctionOffBalance Function = "X" // off-balance memorandum
)

// Valid reports whether f is a known function.
func (f Function) Valid() bool {
	switch f {
	case FunctionActive, FunctionPassive, FunctionBifunction, FunctionOffBalance:
		return true
	}
	return false
}

// DefaultFunction derives the function from the account class when the
// chart does not state it.
func DefaultFunction(class int) Function {
	switch class {
	case 1, 7:
		return FunctionPassive
	case 2, 3, 5, 6:
		return FunctionActive
	case 8:
		return FunctionOffBalance
	default:
		return FunctionBifunction
	}
}

// Account is one synthetic account of the chart.
type Account struct {
	Code     string   `json:"code" mapstructure:"code"`
	Name     string   `json:"name" mapstructure:"name"`
	Function Function `json:"function" mapstructure:"function"`
}

// Chart resolves account codes used on ledger lines.
type Chart interface {
	// Resolve returns the synthetic account backing code, or INVALID_ACCOUNT
	// when the code is malformed or not configured for the company.
	Resolve(ctx context.Context, companyID id.ID, code string) (Account, error)
}

// StaticChart is a configuration-backed chart shared by every company.
// Analytic codes resolve through their synthetic account.
type StaticChart struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewStaticChart builds a chart from account definitions.
func NewStaticChart(defs []Account) (*StaticChart, error) {
	c := &StaticChart{accounts: make(map[string]Account, len(defs))}
	for _, def := range defs {
		if err := c.add(def); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *StaticChart) add(def Account) error {
	code, err := ParseCode(def.Code)
	if err != nil {
		return fmt.Errorf("chart definition: %w", err)
	}
	if code.IsAnalytic() {
		return fmt.Errorf("chart definition %q: only synthetic accounts can be configured", def.Code)
	}
	if def.Function == "" {
		def.Function = DefaultFunction(code.Class)
	}
	if !def.Function.Valid() {
		return fmt.Errorf("chart definition %q: unknown function %q", def.Code, def.Function)
	}
	def.Code = code.Synthetic
	c.accounts[def.Code] = def
	return nil
}

// Merge adds or replaces definitions, e.g. from a chart file.
func (c *StaticChart) Merge(defs []Account) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, def := range defs {
		if err := c.add(def); err != nil {
			return err
		}
	}
	return nil
}

// Resolve implements Chart.
func (c *StaticChart) Resolve(_ context.Context, _ id.ID, raw string) (Account, error) {
	code, err := ParseCode(raw)
	if err != nil {
		return Account{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if acc, ok := c.accounts[code.Synthetic]; ok {
		return acc, nil
	}
	return Account{}, apperror.NewInvalidAccount(raw, "account is not in the chart of accounts")
}

// Accounts returns the configured accounts ordered by code.
func (c *StaticChart) Accounts() []Account {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Account, 0, len(c.accounts))
	for _, acc := range c.accounts {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

var _ Chart = (*StaticChart)(nil)
