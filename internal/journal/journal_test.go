package journal_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmerrifield20/moneysim/internal/journal"
	"github.com/jmerrifield20/moneysim/internal/ledger"
)

var ctx = context.Background()

func newJournaledLedger(t *testing.T, cash ledger.Money) (*ledger.Ledger, *journal.Journal) {
	t.Helper()
	j := journal.New(cash)
	l, err := ledger.New(cash, ledger.WithObserver(j))
	if err != nil {
		t.Fatal(err)
	}
	return l, j
}

func TestNew_genesisEntry(t *testing.T) {
	j := journal.New(1000)

	n, err := j.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 genesis entry, got %d", n)
	}

	entry, err := j.Get(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Kind != journal.KindGenesis {
		t.Errorf("expected kind genesis, got %q", entry.Kind)
	}
	if entry.Amount != 1000 {
		t.Errorf("genesis amount: got %d, want 1000", entry.Amount)
	}
	if entry.PrevHash != journal.ZeroHash {
		t.Errorf("genesis prev hash: got %q, want ZeroHash", entry.PrevHash)
	}
}

func TestObserve_chainsMutationsOnly(t *testing.T) {
	l, j := newJournaledLedger(t, 1000)
	a := l.OpenAccount()
	b := l.OpenAccount()

	_ = l.Deposit(a, 500)
	_, _ = l.Balance(a)
	_ = l.Transfer(a, b, 200)
	_ = l.Withdraw(b, 5000) // declined, not journaled

	n, _ := j.Len(ctx)
	if n != 3 { // genesis + deposit + transfer
		t.Fatalf("expected 3 entries, got %d", n)
	}

	e1, _ := j.Get(ctx, 1)
	e2, _ := j.Get(ctx, 2)
	if e1.Kind != ledger.EventDeposit || e2.Kind != ledger.EventTransfer {
		t.Errorf("kinds = %q, %q; want deposit, transfer", e1.Kind, e2.Kind)
	}
	if e2.PrevHash != e1.Hash {
		t.Errorf("chain broken: e2.PrevHash=%q, want e1.Hash=%q", e2.PrevHash, e1.Hash)
	}
	if e2.Account != a || e2.Counterparty != b || e2.Amount != 200 {
		t.Errorf("transfer entry = %+v", e2)
	}
}

func TestRoot_returnsLastHash(t *testing.T) {
	l, j := newJournaledLedger(t, 1000)
	a := l.OpenAccount()
	_ = l.Deposit(a, 1)

	e, _ := j.Get(ctx, 1)
	root, err := j.Root(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if root != e.Hash {
		t.Errorf("Root(): got %q, want %q", root, e.Hash)
	}
}

func TestGet_outOfRange(t *testing.T) {
	j := journal.New(0)
	if _, err := j.Get(ctx, 1); err == nil {
		t.Error("expected error for index past the tip")
	}
	if _, err := j.Get(ctx, -1); err == nil {
		t.Error("expected error for negative index")
	}
}

func TestVerify_valid(t *testing.T) {
	l, j := newJournaledLedger(t, 1000)
	a := l.OpenAccount()
	_ = l.Deposit(a, 600)
	_ = l.Withdraw(a, 100)

	if err := j.Verify(ctx); err != nil {
		t.Errorf("Verify() failed on valid chain: %v", err)
	}
}

func TestVerify_detectsTampering(t *testing.T) {
	l, j := newJournaledLedger(t, 1000)
	a := l.OpenAccount()
	_ = l.Deposit(a, 600)
	_ = l.Withdraw(a, 100)

	j.Tamper(1, 60)

	err := j.Verify(ctx)
	if err == nil {
		t.Fatal("Verify() passed on a tampered chain")
	}
	if !strings.Contains(err.Error(), "entry 1") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAudit_matchesLedger(t *testing.T) {
	l, j := newJournaledLedger(t, 1000)
	a := l.OpenAccount()
	b := l.OpenAccount()
	c := l.OpenAccount()
	_ = l.Deposit(a, 700)
	_ = l.Transfer(a, b, 300)
	_ = l.Withdraw(b, 50)
	_, _ = l.CloseAccount(a)

	if err := j.Audit(ctx, l.Snapshot()); err != nil {
		t.Errorf("Audit(): %v", err)
	}

	replayed, err := j.Replay(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if replayed.Cash != l.Cash() {
		t.Errorf("replayed cash %d, ledger %d", replayed.Cash, l.Cash())
	}
	if _, ok := replayed.Accounts[c]; ok {
		t.Errorf("untouched account %d should not appear in replay", c)
	}
}

func TestAudit_detectsDivergence(t *testing.T) {
	l, j := newJournaledLedger(t, 1000)
	a := l.OpenAccount()
	_ = l.Deposit(a, 700)

	snap := l.Snapshot()
	snap.Accounts[a] = 650
	if err := j.Audit(ctx, snap); err == nil {
		t.Error("Audit() passed against a diverging snapshot")
	}
}

func TestAudit_concurrentLedger(t *testing.T) {
	l, j := newJournaledLedger(t, 50_000)
	ids := []ledger.AccountID{l.OpenAccount(), l.OpenAccount(), l.OpenAccount()}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				src := ids[(w+i)%len(ids)]
				dst := ids[(w+i+1)%len(ids)]
				_, _ = l.TryDeposit(src, ledger.Money(i%70))
				_, _ = l.TryTransfer(src, dst, ledger.Money(i%90))
				_, _ = l.TryWithdraw(dst, ledger.Money(i%40))
			}
		}(w)
	}
	wg.Wait()

	if err := j.Audit(ctx, l.Snapshot()); err != nil {
		t.Errorf("Audit() after concurrent burst: %v", err)
	}
}

// parkedCtx blocks the first Err call until released, holding a chain walk
// in place after it has started.
type parkedCtx struct {
	context.Context
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newParkedCtx() *parkedCtx {
	return &parkedCtx{
		Context: context.Background(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (c *parkedCtx) Err() error {
	c.once.Do(func() {
		close(c.entered)
		<-c.release
	})
	return nil
}

func TestWalks_doNotBlockLedgerOperations(t *testing.T) {
	walks := map[string]func(*journal.Journal, context.Context) error{
		"verify": func(j *journal.Journal, ctx context.Context) error { return j.Verify(ctx) },
		"replay": func(j *journal.Journal, ctx context.Context) error {
			_, err := j.Replay(ctx)
			return err
		},
	}
	for name, walk := range walks {
		t.Run(name, func(t *testing.T) {
			l, j := newJournaledLedger(t, 1000)
			a := l.OpenAccount()
			_ = l.Deposit(a, 10)

			pc := newParkedCtx()
			walkErr := make(chan error, 1)
			go func() { walkErr <- walk(j, pc) }()
			<-pc.entered

			deposited := make(chan error, 1)
			go func() { deposited <- l.Deposit(a, 1) }()
			select {
			case err := <-deposited:
				if err != nil {
					t.Fatalf("Deposit: %v", err)
				}
			case <-time.After(2 * time.Second):
				close(pc.release)
				t.Fatal("Deposit blocked while the journal was being walked")
			}

			close(pc.release)
			if err := <-walkErr; err != nil {
				t.Errorf("%s: %v", name, err)
			}
			if n, _ := j.Len(ctx); n != 3 {
				t.Errorf("entries = %d, want 3", n)
			}
			if err := j.Audit(ctx, l.Snapshot()); err != nil {
				t.Errorf("Audit(): %v", err)
			}
		})
	}
}

func TestRange(t *testing.T) {
	l, j := newJournaledLedger(t, 1000)
	a := l.OpenAccount()
	for i := 1; i <= 5; i++ {
		_ = l.Deposit(a, ledger.Money(i))
	}

	page, err := j.Range(ctx, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 3 || page[0].Index != 2 || page[2].Index != 4 {
		t.Errorf("Range(2, 3) = %+v", page)
	}

	if page, _ = j.Range(ctx, 4, 100); len(page) != 2 {
		t.Errorf("Range(4, 100) returned %d entries, want 2", len(page))
	}
	if page, _ = j.Range(ctx, 99, 10); len(page) != 0 {
		t.Errorf("Range past the tip returned %d entries", len(page))
	}
	if _, err := j.Range(ctx, -1, 10); err == nil {
		t.Error("expected error for a negative start")
	}
}
