// Package ledger implements the shared monetary register that every simulated
// agent trades through.
//
// A Ledger tracks two kinds of money: cash in circulation, which belongs to no
// account, and account balances. Deposits move cash into an account,
// withdrawals move it back out, transfers move it between accounts and
// closing an account flushes its balance into cash. None of these create or
// destroy money, so
//
//	Cash() + sum(balances) == initial cash
//
// holds whenever no operation is in progress.
//
// Every operation runs inside a single critical section that guards cash, the
// account table and ID allocation together. Operations come in two flavours:
// checked (Deposit, Withdraw, Transfer) return ErrInsufficientCash or
// ErrInsufficientFunds when the business rule fails, while the Try variants
// report the same condition as a false result. Structural misuse (negative
// amounts, unknown accounts) is an error on both.
package ledger

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// AccountID identifies an open account. IDs start at 1 and are never reused.
type AccountID uint64

// Money is an amount in the smallest currency unit.
type Money int64

// Snapshot is a consistent copy of the ledger state.
type Snapshot struct {
	Cash       Money               `json:"cash"`
	Accounts   map[AccountID]Money `json:"accounts"`
	Operations uint64              `json:"operations"`
}

// Total returns cash plus every account balance.
func (s Snapshot) Total() Money {
	total := s.Cash
	for _, b := range s.Accounts {
		total += b
	}
	return total
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithObserver registers observers that are notified of every counted
// operation and every account opening.
func WithObserver(obs ...Observer) Option {
	return func(l *Ledger) {
		l.observers = append(l.observers, obs...)
	}
}

// Ledger is a thread-safe register of cash and account balances.
type Ledger struct {
	mu        sync.Mutex
	cash      Money
	accounts  map[AccountID]Money
	nextID    AccountID
	observers []Observer

	// operations is written only while mu is held, on the success path.
	// It is atomic so that OperationCount does not contend with writers.
	operations atomic.Uint64
}

// New creates a Ledger holding cash in circulation and no accounts.
func New(cash Money, opts ...Option) (*Ledger, error) {
	if cash < 0 {
		return nil, fmt.Errorf("%w: initial cash %d is negative", ErrInvalidArgument, cash)
	}
	l := &Ledger{
		cash:     cash,
		accounts: make(map[AccountID]Money),
		nextID:   1,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// OperationCount returns the number of completed operations. Calling it is
// not itself an operation.
func (l *Ledger) OperationCount() uint64 {
	return l.operations.Load()
}

// Cash returns the money in circulation. It is not counted as an operation.
func (l *Ledger) Cash() Money {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

// Snapshot returns a consistent copy of the ledger state. It is not counted
// as an operation.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	accounts := make(map[AccountID]Money, len(l.accounts))
	for id, b := range l.accounts {
		accounts[id] = b
	}
	return Snapshot{
		Cash:       l.cash,
		Accounts:   accounts,
		Operations: l.operations.Load(),
	}
}

// OpenAccount opens an account with a zero balance and returns its ID.
func (l *Ledger) OpenAccount() AccountID {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.accounts[id] = 0
	l.notify(Event{Kind: EventOpen, Account: id, Cash: l.cash})
	return id
}

// CloseAccount removes the account and moves its balance into cash. It
// returns the balance the account held.
func (l *Ledger) CloseAccount(id AccountID) (Money, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.accounts[id]
	if !ok {
		return 0, unknownAccount(id)
	}
	delete(l.accounts, id)
	l.cash += balance
	l.commit(Event{Kind: EventClose, Account: id, Amount: balance})
	return balance, nil
}

// Balance returns the account balance. A successful read counts as an
// operation.
func (l *Ledger) Balance(id AccountID) (Money, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.accounts[id]
	if !ok {
		return 0, unknownAccount(id)
	}
	l.commit(Event{Kind: EventBalance, Account: id, Amount: balance})
	return balance, nil
}

// Deposit moves amount from cash into the account.
func (l *Ledger) Deposit(id AccountID, amount Money) error {
	return l.deposit(id, amount)
}

// TryDeposit is Deposit, except that insufficient cash yields false with the
// ledger unchanged.
func (l *Ledger) TryDeposit(id AccountID, amount Money) (bool, error) {
	return try(l.deposit(id, amount))
}

// Withdraw moves amount from the account into cash.
func (l *Ledger) Withdraw(id AccountID, amount Money) error {
	return l.withdraw(id, amount)
}

// TryWithdraw is Withdraw, except that insufficient funds yield false with
// the ledger unchanged.
func (l *Ledger) TryWithdraw(id AccountID, amount Money) (bool, error) {
	return try(l.withdraw(id, amount))
}

// Transfer moves amount from src to dst.
func (l *Ledger) Transfer(src, dst AccountID, amount Money) error {
	return l.transfer(src, dst, amount)
}

// TryTransfer is Transfer, except that insufficient funds yield false with
// the ledger unchanged.
func (l *Ledger) TryTransfer(src, dst AccountID, amount Money) (bool, error) {
	return try(l.transfer(src, dst, amount))
}

func (l *Ledger) deposit(id AccountID, amount Money) error {
	if amount < 0 {
		return negativeAmount(amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[id]; !ok {
		return unknownAccount(id)
	}
	if l.cash < amount {
		return fmt.Errorf("%w: deposit %d with %d in circulation", ErrInsufficientCash, amount, l.cash)
	}
	l.accounts[id] += amount
	l.cash -= amount
	l.commit(Event{Kind: EventDeposit, Account: id, Amount: amount})
	return nil
}

func (l *Ledger) withdraw(id AccountID, amount Money) error {
	if amount < 0 {
		return negativeAmount(amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.accounts[id]
	if !ok {
		return unknownAccount(id)
	}
	if balance < amount {
		return fmt.Errorf("%w: withdraw %d from account %d holding %d", ErrInsufficientFunds, amount, id, balance)
	}
	l.accounts[id] = balance - amount
	l.cash += amount
	l.commit(Event{Kind: EventWithdraw, Account: id, Amount: amount})
	return nil
}

func (l *Ledger) transfer(src, dst AccountID, amount Money) error {
	if amount < 0 {
		return negativeAmount(amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.accounts[src]
	if !ok {
		return unknownAccount(src)
	}
	if _, ok := l.accounts[dst]; !ok {
		return unknownAccount(dst)
	}
	if balance < amount {
		return fmt.Errorf("%w: transfer %d from account %d holding %d", ErrInsufficientFunds, amount, src, balance)
	}
	l.accounts[src] -= amount
	l.accounts[dst] += amount
	l.commit(Event{Kind: EventTransfer, Account: src, Counterparty: dst, Amount: amount})
	return nil
}

// commit counts a successful operation and notifies observers.
// l.mu must be held.
func (l *Ledger) commit(e Event) {
	l.operations.Add(1)
	e.Cash = l.cash
	l.notify(e)
}

// notify must be called with l.mu held.
func (l *Ledger) notify(e Event) {
	for _, o := range l.observers {
		o.Observe(e)
	}
}

// try converts a business-rule failure into a false result.
func try(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case IsBusinessRule(err):
		return false, nil
	default:
		return false, err
	}
}

func negativeAmount(amount Money) error {
	return fmt.Errorf("%w: %d", ErrNegativeAmount, amount)
}

func unknownAccount(id AccountID) error {
	return fmt.Errorf("%w: %d", ErrUnknownAccount, id)
}
