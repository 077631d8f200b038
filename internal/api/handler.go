package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/service"
	"inventory-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	inventory *service.InventoryService
}

// NewHandler creates a new HTTP handler
func NewHandler(inventory *service.InventoryService) *Handler {
	return &Handler{
		inventory: inventory,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/inventory", h.getInventory)
		v1.POST("/inventory/reserve", h.reserve)
		v1.POST("/inventory/release", h.release)
		v1.POST("/inventory/update", h.update)
		v1.POST("/inventory/bulk-update", h.bulkUpdate)
		v1.POST("/sales/commit", h.commitSale)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// getInventory handles the read-only inventory projection
func (h *Handler) getInventory(c *gin.Context) {
	filter := models.InventoryFilter{
		ProductID:    c.Query("productId"),
		Category:     c.Query("category"),
		LowStockOnly: c.Query("lowStockOnly") == "true",
	}

	result, err := h.inventory.GetInventory(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"inventory": result.Inventory,
		"summary":   result.Summary,
		"timestamp": time.Now().UTC(),
	})
}

// reserve handles reservation creation
func (h *Handler) reserve(c *gin.Context) {
	var req service.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.inventory.Reserve(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Inventory reserved",
		"reservation": result,
		"stock":       result.Stock,
	})
}

type releaseRequest struct {
	SessionID      string `json:"sessionId"`
	ReleaseExpired bool   `json:"releaseExpired"`
}

// release handles explicit and expired-hold release
func (h *Handler) release(c *gin.Context) {
	var req releaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.SessionID == "" && !req.ReleaseExpired {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Must provide sessionId or set releaseExpired=true",
		})
		return
	}

	var result *service.ReleaseResult
	var err error
	if req.SessionID != "" {
		result, err = h.inventory.Release(c.Request.Context(), req.SessionID)
	} else {
		result, err = h.inventory.ReleaseExpired(c.Request.Context())
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"released":  result.Released,
		"remaining": result.Remaining,
	})
}

type updateRequest struct {
	Updates []models.VariantUpdate `json:"updates"`
}

// update handles per-variant admin updates
func (h *Handler) update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.inventory.UpdateVariants(c.Request.Context(), req.Updates)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": gin.H{
			"successful": len(result.Successful),
			"failed":     len(result.Failed),
			"details":    result,
		},
		"timestamp": time.Now().UTC(),
	})
}

type bulkUpdateRequest struct {
	Action  string            `json:"action"`
	Filter  models.BulkFilter `json:"filter"`
	Changes json.RawMessage   `json:"changes"`
}

// bulkUpdate handles filtered batch mutations
func (h *Handler) bulkUpdate(c *gin.Context) {
	var req bulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	change, err := parseBulkChange(req.Action, req.Changes)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.inventory.BulkUpdate(c.Request.Context(), change, req.Filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Bulk " + result.Action + " completed",
		"results": gin.H{
			"productsAffected": result.ProductsAffected,
			"itemsUpdated":     result.ItemsUpdated,
			"action":           result.Action,
		},
		"updateLog": truncateDeltas(result.Deltas, 50),
		"timestamp": time.Now().UTC(),
	})
}

// commitSale handles sale reconciliation from the payment collaborator
func (h *Handler) commitSale(c *gin.Context) {
	var req service.SaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.inventory.CommitSale(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"sale":    result,
	})
}

// parseBulkChange decodes the changes payload into the tagged type matching
// the requested action.
func parseBulkChange(action string, raw json.RawMessage) (service.BulkChange, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	switch action {
	case models.BulkActionSet:
		var change models.SetChange
		if err := json.Unmarshal(raw, &change); err != nil {
			return service.BulkChange{}, service.ErrInvalidAction
		}
		return service.BulkChange{Set: &change}, nil
	case models.BulkActionAdjust:
		var change models.AdjustChange
		if err := json.Unmarshal(raw, &change); err != nil {
			return service.BulkChange{}, service.ErrInvalidAction
		}
		return service.BulkChange{Adjust: &change}, nil
	case models.BulkActionReset:
		var change models.ResetChange
		if err := json.Unmarshal(raw, &change); err != nil {
			return service.BulkChange{}, service.ErrInvalidAction
		}
		return service.BulkChange{Reset: &change}, nil
	default:
		return service.BulkChange{}, service.ErrInvalidAction
	}
}

func truncateDeltas(deltas []service.ItemDelta, max int) []service.ItemDelta {
	if len(deltas) > max {
		return deltas[:max]
	}
	return deltas
}

// respondError maps service errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMissingFields),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidAction),
		errors.Is(err, service.ErrNoUpdates):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrSizeNotFound),
		errors.Is(err, service.ErrVariantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Inventory temporarily unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
