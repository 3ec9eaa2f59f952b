package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"distribution-engine/internal/models"
	"distribution-engine/internal/service"
	"distribution-engine/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Pickups interface {
	CreatePickup(ctx context.Context, req service.CreatePickupRequest) (*service.PickupResult, error)
}

type Orders interface {
	GetOrder(ctx context.Context, orderID int64) (*models.Order, error)
	Confirm(ctx context.Context, orderID int64) (*service.ConfirmResult, error)
	Cancel(ctx context.Context, orderID int64) (*models.Order, error)
	ConfirmToDealer(ctx context.Context, orderID int64) (*models.Order, error)
}

type Bulk interface {
	BulkApply(ctx context.Context, req service.BulkRequest) (*service.BulkResult, error)
}

type Inventory interface {
	RegisterUnits(ctx context.Context, productID int64, serials []string) ([]models.InventoryUnit, error)
	Availability(ctx context.Context, productID int64) (*models.UnitAvailability, error)
}

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	pickups   Pickups
	orders    Orders
	bulk      Bulk
	inventory Inventory
	deps      map[string]Pinger
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(pickups Pickups, orders Orders, bulk Bulk, inventory Inventory, deps map[string]Pinger) *Handler {
	return &Handler{
		pickups:   pickups,
		orders:    orders,
		bulk:      bulk,
		inventory: inventory,
		deps:      deps,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/pickups", h.createPickup)

		v1.POST("/orders/bulk", h.bulkApply)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/confirm", h.confirmOrder)
		v1.POST("/orders/:id/cancel", h.cancelOrder)
		v1.POST("/orders/:id/confirm-dealer", h.confirmToDealer)

		v1.POST("/products/:id/units", h.registerUnits)
		v1.GET("/products/:id/availability", h.availability)
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, envelope{Success: true, Data: data})
}

// fail writes the error envelope; internal errors never leak their text
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(models.KindOf(err))
	body := &errorBody{Code: models.CodeOf(err), Message: err.Error()}
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		body.Message = "internal error"
	}
	c.AbortWithStatusJSON(status, envelope{Success: false, Error: body})
}

func badRequest(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, envelope{
		Success: false,
		Error:   &errorBody{Code: code, Message: message},
	})
}

func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindConflict, models.KindIntegrity:
		return http.StatusConflict
	case models.KindExhausted:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, models.CodeOf(models.ErrInvalidID), "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every backing dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(gin.H, len(h.deps))
	ready := true
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, label := http.StatusOK, "ready"
	if !ready {
		status, label = http.StatusServiceUnavailable, "not_ready"
	}
	c.JSON(status, gin.H{
		"status": label,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) createPickup(c *gin.Context) {
	var req service.CreatePickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}

	res, err := h.pickups.CreatePickup(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, res)
}

func (h *Handler) getOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}

func (h *Handler) confirmOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.orders.Confirm(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, res)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	order, err := h.orders.Cancel(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}

func (h *Handler) confirmToDealer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	order, err := h.orders.ConfirmToDealer(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}

func (h *Handler) bulkApply(c *gin.Context) {
	var req service.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	res, err := h.bulk.BulkApply(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, res)
}

type registerUnitsRequest struct {
	Serials []string `json:"serials" binding:"required"`
}

func (h *Handler) registerUnits(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req registerUnitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}

	units, err := h.inventory.RegisterUnits(c.Request.Context(), id, req.Serials)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"units": units, "count": len(units)})
}

func (h *Handler) availability(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	avail, err := h.inventory.Availability(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, avail)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
