package rail

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/openlots/harberger/types"
)

// compile-time interface checks
var (
	_ Rail          = (*Memory)(nil)
	_ Transactional = (*Memory)(nil)
)

// Memory is an in-process bank. Accounts spring into existence with a zero
// balance; value enters through Deposit.
type Memory struct {
	mu       sync.Mutex
	balances map[types.Account]decimal.Decimal
}

// NewMemory creates an empty in-memory rail.
func NewMemory() *Memory {
	return &Memory{balances: make(map[types.Account]decimal.Decimal)}
}

// Deposit credits an account from outside the rail.
func (m *Memory) Deposit(account types.Account, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.balances[account] = m.balances[account].Add(amount)
}

// BalanceOf returns the current balance of an account.
func (m *Memory) BalanceOf(account types.Account) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.balances[account]
}

// TotalSupply returns the sum of all balances. Settlements move value
// between accounts and never change it.
func (m *Memory) TotalSupply() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := decimal.Zero
	for _, b := range m.balances {
		total = total.Add(b)
	}
	return total
}

// Send implements Rail.
func (m *Memory) Send(_ context.Context, from, to types.Account, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.apply(transfer{from, to, amount})
}

// Begin implements Transactional.
func (m *Memory) Begin(context.Context) (Tx, error) {
	return &memoryTx{rail: m}, nil
}

type transfer struct {
	from, to types.Account
	amount   decimal.Decimal
}

// apply executes one transfer. Caller holds m.mu.
func (m *Memory) apply(t transfer) error {
	if t.amount.IsNegative() {
		return ErrInvalidAmount
	}
	if m.balances[t.from].LessThan(t.amount) {
		return fmt.Errorf("%w: account %s has %s, needs %s",
			ErrInsufficientFunds, t.from, m.balances[t.from], t.amount)
	}
	m.balances[t.from] = m.balances[t.from].Sub(t.amount)
	m.balances[t.to] = m.balances[t.to].Add(t.amount)
	return nil
}

// revert undoes a previously applied transfer. Caller holds m.mu.
func (m *Memory) revert(t transfer) {
	m.balances[t.to] = m.balances[t.to].Sub(t.amount)
	m.balances[t.from] = m.balances[t.from].Add(t.amount)
}

type memoryTx struct {
	rail   *Memory
	staged []transfer
	done   bool
}

func (t *memoryTx) Send(from, to types.Account, amount decimal.Decimal) error {
	if t.done {
		return ErrTxDone
	}
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	t.staged = append(t.staged, transfer{from, to, amount})
	return nil
}

// Commit applies the staged transfers in order. Intermediate balances are
// checked transfer by transfer, so an account may spend value it received
// earlier in the same settlement. Any failure unwinds the transfers already
// applied and the whole batch is rejected.
func (t *memoryTx) Commit(context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true

	t.rail.mu.Lock()
	defer t.rail.mu.Unlock()

	for i, tr := range t.staged {
		if err := t.rail.apply(tr); err != nil {
			for j := i - 1; j >= 0; j-- {
				t.rail.revert(t.staged[j])
			}
			return err
		}
	}
	return nil
}

func (t *memoryTx) Abort(context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.staged = nil
	return nil
}
