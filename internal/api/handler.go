package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"stock-ledger-service/internal/models"
	"stock-ledger-service/internal/service"
	"stock-ledger-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	availability *service.AvailabilityChecker
	reservations *service.ReservationManager
	stock        *service.StockService
	audit        *service.AuditTrail
}

// NewHandler creates a new HTTP handler
func NewHandler(
	availability *service.AvailabilityChecker,
	reservations *service.ReservationManager,
	stock *service.StockService,
	audit *service.AuditTrail,
) *Handler {
	return &Handler{
		availability: availability,
		reservations: reservations,
		stock:        stock,
		audit:        audit,
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
		v1.POST("/availability/check", h.checkAvailability)
		v1.POST("/reservations", h.reserveStock)
		v1.POST("/reservations/commit", h.commitReservations)
		v1.POST("/reservations/release", h.releaseReservations)
		v1.GET("/reservations", h.getRequesterReservations)
		v1.GET("/stock/low", h.getLowStockItems)
		v1.GET("/stock/:product_id/:size/moves", h.getMoves)
		v1.GET("/stock/:product_id/:size/reconcile", h.reconcile)
		v1.POST("/stock/restock", h.restock)
		v1.POST("/stock/adjust", h.adjustStock)
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

type checkAvailabilityRequest struct {
	Items []models.ItemRequest `json:"items" binding:"required,min=1"`
}

// checkAvailability answers a batch availability query
func (h *Handler) checkAvailability(c *gin.Context) {
	var req checkAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	results, err := h.availability.CheckAvailability(c.Request.Context(), req.Items)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to check availability",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

type reserveStockRequest struct {
	Items             []models.ItemRequest `json:"items" binding:"required,min=1"`
	SessionID         string               `json:"session_id,omitempty"`
	UserID            int64                `json:"user_id,omitempty"`
	ExpirationMinutes int                  `json:"expiration_minutes,omitempty"`
	IdempotencyKey    string               `json:"idempotency_key,omitempty"`
}

// reserveStock holds a batch of items for a requester
func (h *Handler) reserveStock(c *gin.Context) {
	var req reserveStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	requester := models.Requester{SessionID: req.SessionID, UserID: req.UserID}
	if requester.IsZero() || (req.SessionID != "" && req.UserID != 0) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Provide exactly one of session_id or user_id",
		})
		return
	}

	result, err := h.reservations.ReserveStock(c.Request.Context(), req.Items, service.ReserveOptions{
		Requester:         requester,
		ExpirationMinutes: req.ExpirationMinutes,
		IdempotencyKey:    req.IdempotencyKey,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reserve stock",
			"details": err.Error(),
		})
		return
	}

	if !result.Success {
		insufficient := &models.InsufficientStockError{Shortfalls: result.Failures}
		c.JSON(http.StatusConflict, gin.H{
			"error":    insufficient.Error(),
			"failures": result.Failures,
		})
		return
	}

	c.JSON(http.StatusCreated, result)
}

type commitRequest struct {
	ReservationIDs []string `json:"reservation_ids" binding:"required,min=1"`
	OrderID        int64    `json:"order_id" binding:"required"`
}

// commitReservations converts holds to a permanent sale
func (h *Handler) commitReservations(c *gin.Context) {
	var req commitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	err := h.reservations.CommitReservedStock(c.Request.Context(), req.ReservationIDs, req.OrderID)
	if err != nil {
		var expired *models.ReservationExpiredError
		if errors.As(err, &expired) {
			c.JSON(http.StatusGone, gin.H{
				"error":           "Reservations no longer active, re-reserve before completing the order",
				"reservation_ids": expired.ReservationIDs,
			})
			return
		}

		var violation *models.InvariantViolationError
		if errors.As(err, &violation) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Inventory inconsistency, operator reconciliation required",
				"details": violation.Error(),
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to commit reservations",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "committed", "order_id": req.OrderID})
}

type releaseRequest struct {
	ReservationIDs []string `json:"reservation_ids" binding:"required,min=1"`
}

// releaseReservations releases holds; unknown ids are no-ops
func (h *Handler) releaseReservations(c *gin.Context) {
	var req releaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	released, err := h.reservations.ReleaseReservations(c.Request.Context(), req.ReservationIDs, "caller")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to release reservations",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"released_count": released})
}

// getRequesterReservations lists active holds for a session or user
func (h *Handler) getRequesterReservations(c *gin.Context) {
	requester := models.Requester{SessionID: c.Query("session_id")}
	if idStr := c.Query("user_id"); idStr != "" {
		userID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
			return
		}
		requester.UserID = userID
	}
	if requester.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id or user_id is required"})
		return
	}

	reservations, err := h.audit.GetUserReservations(c.Request.Context(), requester)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list reservations",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reservations": reservations})
}

// getLowStockItems lists rows at or below an availability threshold
func (h *Handler) getLowStockItems(c *gin.Context) {
	threshold := 5
	if t := c.Query("threshold"); t != "" {
		parsed, err := strconv.Atoi(t)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid threshold"})
			return
		}
		threshold = parsed
	}

	items, err := h.audit.GetLowStockItems(c.Request.Context(), threshold)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list low stock items",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// getMoves lists ledger entries for one (product, size)
func (h *Handler) getMoves(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("product_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	limit := 100
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	moves, err := h.audit.GetMoves(c.Request.Context(), productID, c.Param("size"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list moves",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"moves": moves})
}

// reconcile compares the ledger against the stock row
func (h *Handler) reconcile(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("product_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	report, err := h.audit.Reconcile(c.Request.Context(), productID, c.Param("size"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reconcile",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, report)
}

type restockRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Size      string `json:"size" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	Reference string `json:"reference,omitempty"`
}

// restock adds quantity via the sync/restock path
func (h *Handler) restock(c *gin.Context) {
	var req restockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	rec, err := h.stock.Restock(c.Request.Context(), req.ProductID, req.Size, req.Quantity, req.Reference)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to restock",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, rec)
}

type adjustRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Size      string `json:"size" binding:"required"`
	Delta     int    `json:"delta" binding:"required"`
	Reason    string `json:"reason" binding:"required"`
	Requester string `json:"requester,omitempty"`
}

// adjustStock applies an operator correction
func (h *Handler) adjustStock(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	rec, err := h.stock.AdjustStock(c.Request.Context(), req.ProductID, req.Size, req.Delta, req.Reason, req.Requester)
	if err != nil {
		var violation *models.InvariantViolationError
		if errors.As(err, &violation) {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "Adjustment rejected",
				"details": violation.Error(),
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to adjust stock",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, rec)
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
