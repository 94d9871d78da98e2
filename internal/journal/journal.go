// Package journal keeps a hash-chained audit trail of ledger mutations.
//
// A Journal is registered as a ledger.Observer. Because observers run inside
// the ledger's critical section, entries are appended in the same total order
// in which the ledger committed the operations. Each entry records the
// SHA-256 of its predecessor, so Verify detects any rewritten entry, and
// Replay rebuilds cash and balances from the entries alone so the result can
// be compared against a ledger snapshot.
//
// The chain starts with a genesis entry carrying the ledger's initial cash.
// Its PrevHash is ZeroHash. Balance reads do not change state and are not
// journaled.
package journal

import (
	"context"

	"github.com/jmerrifield20/moneysim/internal/ledger"
)

// Reader is the read-only view of a journal.
type Reader interface {
	// Get returns the entry at the given zero-based index.
	Get(ctx context.Context, index int) (*Entry, error)

	// Len returns the number of entries, including genesis.
	Len(ctx context.Context) (int, error)

	// Verify walks the chain and checks hash consistency.
	// Returns nil if the chain is intact.
	Verify(ctx context.Context) error

	// Root returns the hash of the most recent entry.
	Root(ctx context.Context) (string, error)

	// Range returns up to limit entries starting at index from.
	Range(ctx context.Context, from, limit int) ([]Entry, error)

	// Replay rebuilds cash and balances from the entries alone.
	Replay(ctx context.Context) (ledger.Snapshot, error)
}
