package journal

import "github.com/jmerrifield20/moneysim/internal/ledger"

// Tamper replaces an entry with a copy carrying a different amount, without
// rehashing it. The original entry is left untouched for readers holding a view.
func (j *Journal) Tamper(index int, amount ledger.Money) {
	j.mu.Lock()
	defer j.mu.Unlock()
	cp := *j.entries[index]
	cp.Amount = amount
	j.entries[index] = &cp
}
