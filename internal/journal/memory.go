package journal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmerrifield20/moneysim/internal/ledger"
)

// Journal is an in-memory, thread-safe hash chain of ledger mutations.
// It implements both ledger.Observer and Reader.
//
// entries is append-only and an appended *Entry is never modified, so a
// slice header taken under mu stays valid after mu is released. Long walks
// (Verify, Replay, Range) run on such a view so that Observe, which is
// called inside the ledger's critical section, never waits for them.
type Journal struct {
	mu      sync.RWMutex
	entries []*Entry
}

// New creates a Journal whose genesis entry records the ledger's initial cash.
func New(initialCash ledger.Money) *Journal {
	genesis := &Entry{
		Index:     0,
		Timestamp: time.Now().UTC(),
		Kind:      KindGenesis,
		Amount:    initialCash,
		PrevHash:  ZeroHash,
	}
	genesis.Hash = hashEntry(genesis)
	return &Journal{entries: []*Entry{genesis}}
}

// Observe implements ledger.Observer. Balance reads and account openings do
// not move money and are skipped.
func (j *Journal) Observe(e ledger.Event) {
	if !e.Kind.Mutates() || e.Kind == ledger.EventOpen {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	prev := j.entries[len(j.entries)-1]
	entry := &Entry{
		Index:        len(j.entries),
		Timestamp:    time.Now().UTC(),
		Kind:         e.Kind,
		Account:      e.Account,
		Counterparty: e.Counterparty,
		Amount:       e.Amount,
		PrevHash:     prev.Hash,
	}
	entry.Hash = hashEntry(entry)
	j.entries = append(j.entries, entry)
}

// Get implements Reader.
func (j *Journal) Get(_ context.Context, index int) (*Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if index < 0 || index >= len(j.entries) {
		return nil, fmt.Errorf("index %d out of range", index)
	}
	cp := *j.entries[index]
	return &cp, nil
}

// Range returns copies of up to limit entries starting at index from. It
// returns an empty slice when from is past the tip.
func (j *Journal) Range(_ context.Context, from, limit int) ([]Entry, error) {
	if from < 0 || limit < 0 {
		return nil, fmt.Errorf("invalid range from=%d limit=%d", from, limit)
	}
	entries := j.view()
	if from >= len(entries) {
		return []Entry{}, nil
	}
	end := min(from+limit, len(entries))
	out := make([]Entry, 0, end-from)
	for _, e := range entries[from:end] {
		out = append(out, *e)
	}
	return out, nil
}

// Len implements Reader.
func (j *Journal) Len(_ context.Context) (int, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries), nil
}

// Root implements Reader.
func (j *Journal) Root(_ context.Context) (string, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.entries[len(j.entries)-1].Hash, nil
}

// view returns the entries appended so far.
func (j *Journal) view() []*Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.entries
}

// Verify implements Reader.
func (j *Journal) Verify(ctx context.Context) error {
	entries := j.view()
	for i, curr := range entries {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if curr.Index != i {
			return fmt.Errorf("entry at position %d has index %d", i, curr.Index)
		}
		if i == 0 {
			if curr.Kind != KindGenesis || curr.PrevHash != ZeroHash {
				return fmt.Errorf("genesis entry is malformed")
			}
		} else if curr.PrevHash != entries[i-1].Hash {
			return fmt.Errorf("hash chain broken at index %d", i)
		}
		if curr.Hash != hashEntry(curr) {
			return fmt.Errorf("entry %d has invalid hash", i)
		}
	}
	return nil
}

// Replay rebuilds cash and account balances from the journal alone. Accounts
// that were credited or debited appear in the result; accounts that were only
// opened do not. It fails if an entry would drive cash or a balance negative.
func (j *Journal) Replay(ctx context.Context) (ledger.Snapshot, error) {
	entries := j.view()
	state := ledger.Snapshot{Accounts: make(map[ledger.AccountID]ledger.Money)}
	for i, e := range entries {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return ledger.Snapshot{}, err
			}
		}
		switch e.Kind {
		case KindGenesis:
			state.Cash = e.Amount
		case ledger.EventDeposit:
			state.Cash -= e.Amount
			state.Accounts[e.Account] += e.Amount
		case ledger.EventWithdraw:
			state.Accounts[e.Account] -= e.Amount
			state.Cash += e.Amount
		case ledger.EventTransfer:
			state.Accounts[e.Account] -= e.Amount
			state.Accounts[e.Counterparty] += e.Amount
		case ledger.EventClose:
			if state.Accounts[e.Account] != e.Amount {
				return ledger.Snapshot{}, fmt.Errorf("entry %d closes account %d with %d, replay holds %d",
					i, e.Account, e.Amount, state.Accounts[e.Account])
			}
			delete(state.Accounts, e.Account)
			state.Cash += e.Amount
		default:
			return ledger.Snapshot{}, fmt.Errorf("entry %d has unknown kind %q", i, e.Kind)
		}
		if state.Cash < 0 {
			return ledger.Snapshot{}, fmt.Errorf("entry %d drives cash negative", i)
		}
		if state.Accounts[e.Account] < 0 {
			return ledger.Snapshot{}, fmt.Errorf("entry %d drives account %d negative", i, e.Account)
		}
	}
	return state, nil
}

// Audit replays the journal and compares the result with snap. Accounts with
// a zero balance in snap may be absent from the replay. snap must be taken
// while no ledger operation can run, otherwise the two may legitimately differ.
func (j *Journal) Audit(ctx context.Context, snap ledger.Snapshot) error {
	if err := j.Verify(ctx); err != nil {
		return fmt.Errorf("verify journal: %w", err)
	}
	replayed, err := j.Replay(ctx)
	if err != nil {
		return fmt.Errorf("replay journal: %w", err)
	}
	if replayed.Cash != snap.Cash {
		return fmt.Errorf("cash mismatch: journal %d, ledger %d", replayed.Cash, snap.Cash)
	}
	for id, bal := range snap.Accounts {
		if replayed.Accounts[id] != bal {
			return fmt.Errorf("account %d mismatch: journal %d, ledger %d", id, replayed.Accounts[id], bal)
		}
	}
	for id, bal := range replayed.Accounts {
		if _, ok := snap.Accounts[id]; !ok && bal != 0 {
			return fmt.Errorf("journal holds %d for account %d unknown to the ledger", bal, id)
		}
	}
	return nil
}
