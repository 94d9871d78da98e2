package ledger

// EventKind names the ledger operation an Event describes.
type EventKind string

const (
	EventOpen     EventKind = "open"
	EventClose    EventKind = "close"
	EventDeposit  EventKind = "deposit"
	EventWithdraw EventKind = "withdraw"
	EventTransfer EventKind = "transfer"
	EventBalance  EventKind = "balance"
)

// Mutates reports whether events of this kind change ledger state.
func (k EventKind) Mutates() bool {
	return k != EventBalance
}

// Event describes one completed ledger operation.
type Event struct {
	Kind EventKind

	// Account is the account the operation acted on; for transfers it is the source.
	Account AccountID

	// Counterparty is the transfer destination; zero for every other kind.
	Counterparty AccountID

	// Amount moved by the operation. For close it is the flushed balance;
	// for balance reads it is the balance returned.
	Amount Money

	// Cash is the cash in circulation after the operation.
	Cash Money
}

// Observer receives an Event for every successful counted operation and for
// every account opening. Observe is called while the ledger lock is held, in
// linearization order, so implementations must return quickly and must never
// call back into the Ledger.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(e Event) { f(e) }
