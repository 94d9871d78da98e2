package statusapi

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/moneysim/internal/ledger"
	"go.uber.org/zap"
)

// LedgerView is the read-only ledger surface the handlers need.
// *ledger.Ledger satisfies this interface.
type LedgerView interface {
	Snapshot() ledger.Snapshot
}

// LedgerHandler exposes read-only HTTP endpoints for the ledger. Every view
// is served from a snapshot, so polling it never changes the operation count.
type LedgerHandler struct {
	ledger LedgerView
	logger *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(l LedgerView, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: l, logger: logger}
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/ledger")
	{
		l.GET("", h.Overview)
		l.GET("/accounts", h.ListAccounts)
		l.GET("/accounts/:id", h.GetAccount)
	}
}

type accountView struct {
	ID      ledger.AccountID `json:"id"`
	Balance ledger.Money     `json:"balance"`
}

func sortAccounts(accounts []accountView) {
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
}

// Overview handles GET /ledger: returns cash, operation count and totals.
func (h *LedgerHandler) Overview(c *gin.Context) {
	s := h.ledger.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"cash":       s.Cash,
		"operations": s.Operations,
		"accounts":   len(s.Accounts),
		"total":      s.Total(),
	})
}

// ListAccounts handles GET /ledger/accounts: returns every open account
// ordered by ID.
func (h *LedgerHandler) ListAccounts(c *gin.Context) {
	s := h.ledger.Snapshot()
	out := make([]accountView, 0, len(s.Accounts))
	for id, bal := range s.Accounts {
		out = append(out, accountView{ID: id, Balance: bal})
	}
	sortAccounts(out)
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}

// GetAccount handles GET /ledger/accounts/:id: returns a single account.
func (h *LedgerHandler) GetAccount(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return
	}

	bal, ok := h.ledger.Snapshot().Accounts[ledger.AccountID(id)]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	c.JSON(http.StatusOK, accountView{ID: ledger.AccountID(id), Balance: bal})
}
