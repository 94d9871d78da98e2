package statusapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/moneysim/internal/journal"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// JournalHandler serves the audit journal: chain summary, integrity check,
// paged entries and the balances rebuilt from the chain.
type JournalHandler struct {
	journal journal.Reader
	logger  *zap.Logger
}

// NewJournalHandler creates a JournalHandler reading from j.
func NewJournalHandler(j journal.Reader, logger *zap.Logger) *JournalHandler {
	return &JournalHandler{journal: j, logger: logger}
}

// Register mounts the journal routes on the given router group.
func (h *JournalHandler) Register(rg *gin.RouterGroup) {
	j := rg.Group("/journal")
	{
		j.GET("", h.Summary)
		j.GET("/verify", h.Verify)
		j.GET("/replay", h.Replay)
		j.GET("/entries", h.ListEntries)
		j.GET("/entries/:idx", h.GetEntry)
	}
}

// Summary reports the chain length, the tip hash and the initial cash
// recorded in the genesis entry.
func (h *JournalHandler) Summary(c *gin.Context) {
	ctx := c.Request.Context()

	genesis, err := h.journal.Get(ctx, 0)
	if err != nil {
		h.logger.Error("read genesis entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "journal unavailable"})
		return
	}
	n, _ := h.journal.Len(ctx)
	root, _ := h.journal.Root(ctx)

	c.JSON(http.StatusOK, gin.H{
		"entries":      n,
		"root":         root,
		"initial_cash": genesis.Amount,
		"started_at":   genesis.Timestamp,
	})
}

// Verify rehashes the whole chain. A broken chain is reported as 409 with
// the position of the first bad entry.
func (h *JournalHandler) Verify(c *gin.Context) {
	ctx := c.Request.Context()
	n, _ := h.journal.Len(ctx)

	if err := h.journal.Verify(ctx); err != nil {
		h.logger.Warn("journal chain broken", zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"valid": false, "reason": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "entries": n})
}

// Replay returns cash and balances rebuilt from the chain alone, for
// comparison with /ledger while the run is quiet.
func (h *JournalHandler) Replay(c *gin.Context) {
	snap, err := h.journal.Replay(c.Request.Context())
	if err != nil {
		h.logger.Warn("journal replay failed", zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"reason": err.Error()})
		return
	}

	accounts := make([]accountView, 0, len(snap.Accounts))
	for id, bal := range snap.Accounts {
		accounts = append(accounts, accountView{ID: id, Balance: bal})
	}
	sortAccounts(accounts)
	c.JSON(http.StatusOK, gin.H{
		"cash":     snap.Cash,
		"total":    snap.Total(),
		"accounts": accounts,
	})
}

// ListEntries returns a page of entries selected by ?from= and ?limit=.
// "next" is set when more entries may follow.
func (h *JournalHandler) ListEntries(c *gin.Context) {
	from, err := strconv.Atoi(c.DefaultQuery("from", "0"))
	if err != nil || from < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be a non-negative integer"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	limit = min(limit, maxPageSize)

	page, err := h.journal.Range(c.Request.Context(), from, limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp := gin.H{"entries": page}
	if len(page) == limit {
		resp["next"] = from + limit
	}
	c.JSON(http.StatusOK, resp)
}

// GetEntry returns the entry at :idx.
func (h *JournalHandler) GetEntry(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idx must be a non-negative integer"})
		return
	}

	entry, err := h.journal.Get(c.Request.Context(), idx)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no entry at that index"})
		return
	}
	c.JSON(http.StatusOK, entry)
}
