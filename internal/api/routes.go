package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/gin-gonic/gin"

	"github.com/rawblock/gbt-engine/internal/mempool"
	"github.com/rawblock/gbt-engine/internal/store"
	"github.com/rawblock/gbt-engine/pkg/models"
)

// APIHandler wires the mempool Handle, the websocket Hub, and (if
// configured) run persistence into the HTTP surface.
type APIHandler struct {
	handle *mempool.Handle
	hub    *Hub
	store  *store.PostgresStore // nil when running without a database
}

func NewAPIHandler(handle *mempool.Handle, hub *Hub, db *store.PostgresStore) *APIHandler {
	return &APIHandler{handle: handle, hub: hub, store: db}
}

// SetupRouter builds the Gin engine: CORS, rate limiting, and auth on
// mutating endpoints, with health and the websocket stream left public.
func SetupRouter(h *APIHandler, limiter *RateLimiter) *gin.Engine {
	r := gin.Default()

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	r.GET("/api/v1/health", h.Health)
	r.GET("/api/v1/stream", h.hub.Subscribe)

	protected := r.Group("/api/v1/mempool")
	protected.Use(AuthMiddleware())
	if limiter != nil {
		protected.Use(limiter.Middleware())
	}
	protected.POST("/make", h.Make)
	protected.POST("/update", h.Update)

	r.GET("/api/v1/runs", h.RecentRuns)

	return r
}

func (h *APIHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type makeRequest struct {
	Mempool        []*models.InputTx      `json:"mempool"`
	Accelerations  []models.Acceleration  `json:"accelerations"`
	MaxUID         uint32                 `json:"maxUid"`
	MaxBlockWeight uint32                 `json:"maxBlockWeight"`
	MaxBlocks      uint32                 `json:"maxBlocks"`
}

// Make rebuilds the mempool snapshot from scratch and runs selection.
func (h *APIHandler) Make(c *gin.Context) {
	var req makeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.handle.Make(req.Mempool, req.Accelerations, req.MaxUID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.finish(c, "make", result)
}

type updateRequest struct {
	NewTransactions []*models.InputTx     `json:"newTransactions"`
	RemoveUIDs      []uint32              `json:"removeUids"`
	Accelerations   []models.Acceleration `json:"accelerations"`
	MaxUID          uint32                `json:"maxUid"`
}

// Update applies an incremental diff to the held mempool and reruns
// selection over the resulting snapshot.
func (h *APIHandler) Update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.handle.Update(req.NewTransactions, req.RemoveUIDs, req.Accelerations, req.MaxUID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.finish(c, "update", result)
}

// finish responds with the result, broadcasts a summary to dashboards,
// and persists a run row when a store is configured. Persistence and
// broadcast failures are logged by their own layers and never turn a
// successful run into an error response.
func (h *APIHandler) finish(c *gin.Context, operation string, result models.GbtResult) {
	summary := TemplateSummary{
		BlockCount:   len(result.Blocks),
		ClusterCount: len(result.Clusters),
		DirtyCount:   len(result.Rates),
		OverflowSize: len(result.Overflow),
	}
	h.hub.BroadcastTemplateSummary(summary)

	log.Printf("gbt: %s produced %d block(s) totalling %s in fees (%d dirty, %d overflow)",
		operation, summary.BlockCount, btcutil.Amount(result.TotalFee), summary.DirtyCount, summary.OverflowSize)

	if h.store != nil {
		var totalWeight uint32
		for _, w := range result.BlockWeights {
			totalWeight += w
		}
		_ = h.store.SaveRun(context.Background(), store.RunSummary{
			RunID:        time.Now().UTC().Format(time.RFC3339Nano),
			Operation:    operation,
			BlockCount:   summary.BlockCount,
			ClusterCount: summary.ClusterCount,
			TotalWeight:  totalWeight,
			DirtyCount:   summary.DirtyCount,
			OverflowSize: summary.OverflowSize,
			ComputedAt:   time.Now().UTC(),
		})
	}

	c.JSON(http.StatusOK, result)
}

func (h *APIHandler) RecentRuns(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []store.RunSummary{}})
		return
	}
	runs, err := h.store.RecentRuns(c.Request.Context(), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
