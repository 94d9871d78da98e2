package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jmerrifield20/moneysim/internal/ledger"
)

// ZeroHash is the PrevHash of the genesis entry.
const ZeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// KindGenesis marks entry 0.
const KindGenesis ledger.EventKind = "genesis"

// Entry is a single committed ledger mutation.
type Entry struct {
	Index        int              `json:"index"`
	Timestamp    time.Time        `json:"timestamp"`
	Kind         ledger.EventKind `json:"kind"`
	Account      ledger.AccountID `json:"account,omitempty"`
	Counterparty ledger.AccountID `json:"counterparty,omitempty"`
	Amount       ledger.Money     `json:"amount"`
	PrevHash     string           `json:"prev_hash"`
	Hash         string           `json:"hash"`
}

// hashEntry computes a deterministic SHA-256 hash over an entry's fields.
func hashEntry(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%d|%d|%d|%s",
		e.Index, e.Timestamp.Format(time.RFC3339Nano),
		e.Kind, e.Account, e.Counterparty, e.Amount, e.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}
