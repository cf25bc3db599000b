package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	_ "github.com/aniladanir/sms-campaign-service/docs"
	"github.com/aniladanir/sms-campaign-service/internal/domain"
	"github.com/aniladanir/sms-campaign-service/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/time/rate"
)

const (
	DefaultDispatchTimeout = 2 * time.Minute
	DefaultRequestRate     = 5
	DefaultRequestBurst    = 10
)

type Options struct {
	Addr string
	// DispatchTimeout bounds how long a send request may keep dispatching
	DispatchTimeout time.Duration
	// WebhookToken is the shared secret expected on delivery reports, empty disables the check
	WebhookToken string
	RequestRate  rate.Limit
	RequestBurst int
}

type Handler struct {
	messaging       service.MessagingService
	logger          *slog.Logger
	dispatchTimeout time.Duration
	server          *http.Server
}

type sendRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
	Message     string `json:"message" binding:"required"`
}

type sendBulkRequest struct {
	PhoneNumbers []string `json:"phone_numbers" binding:"required"`
	Message      string   `json:"message" binding:"required"`
}

type deliveryReportRequest struct {
	MessageID string `json:"message_id" binding:"required"`
	Status    string `json:"status" binding:"required"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// @title SMS Campaign API
// @version 1.0
// @description API for sending single and bulk SMS campaigns and tracking their delivery
// @host localhost:6060
// @BasePath /
func NewHttpHandler(opts Options, svc service.MessagingService, logger *slog.Logger) *Handler {
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = DefaultDispatchTimeout
	}
	if opts.RequestRate <= 0 {
		opts.RequestRate = DefaultRequestRate
	}
	if opts.RequestBurst <= 0 {
		opts.RequestBurst = DefaultRequestBurst
	}

	h := &Handler{
		messaging:       svc,
		logger:          logger,
		dispatchTimeout: opts.DispatchTimeout,
	}

	// create router
	router := gin.Default()
	router.Use(ginMetricsMiddleware())

	// register routes
	router.GET("/healthz", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.POST("/api/delivery-reports", requireWebhookToken(opts.WebhookToken), h.deliveryReport)

	limiter := NewRateLimiter(opts.RequestRate, opts.RequestBurst)
	messages := router.Group("/api/messages", requireUser(), limiter.Middleware())
	messages.POST("/send", h.sendSingle)
	messages.POST("/send-bulk", h.sendBulk)
	messages.GET("/history", h.history)
	messages.GET("/statistics", h.statistics)
	messages.GET("/:id/status", h.status)

	// create http server
	h.server = &http.Server{
		Addr:    opts.Addr,
		Handler: router.Handler(),
	}

	return h
}

func (h *Handler) Run() error {
	return h.server.ListenAndServe()
}

func (h *Handler) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.server.Handler.ServeHTTP(w, r)
}

// writeError maps service errors onto status codes without leaking internals
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case domain.IsInputError(err):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: domain.ErrNotFound.Error()})
	default:
		h.logger.Error("request failed", "path", c.FullPath(), "error", err.Error())
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// Health godoc
// @Summary Liveness probe
// @Tags Ops
// @Success 200
// @Router /healthz [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SendSingle godoc
// @Summary Send an SMS to one recipient
// @Description Normalizes the phone number and hands the message to the SMS gateway
// @Tags Messages
// @Accept json
// @Produce json
// @Param X-User-ID header int true "Authenticated user id"
// @Param request body sendRequest true "Recipient and message"
// @Success 200 {object} service.SingleResult
// @Failure 400 {object} errorResponse
// @Failure 500 {object} service.SingleResult
// @Router /api/messages/send [post]
func (h *Handler) sendSingle(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "phone number and message required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.dispatchTimeout)
	defer cancel()

	res, err := h.messaging.SendSingle(ctx, userID(c), req.PhoneNumber, req.Message)
	var ge *domain.GatewayError
	if errors.As(err, &ge) {
		c.JSON(http.StatusInternalServerError, res)
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// SendBulk godoc
// @Summary Send an SMS to up to 100 recipients
// @Description Invalid numbers are dropped and listed under rejected, the rest are sent
// @Tags Messages
// @Accept json
// @Produce json
// @Param X-User-ID header int true "Authenticated user id"
// @Param request body sendBulkRequest true "Recipients and message"
// @Success 200 {object} service.BulkResult
// @Failure 400 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /api/messages/send-bulk [post]
func (h *Handler) sendBulk(c *gin.Context) {
	var req sendBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "phone numbers array and message required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.dispatchTimeout)
	defer cancel()

	res, err := h.messaging.SendBulk(ctx, userID(c), req.PhoneNumbers, req.Message)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// History godoc
// @Summary List sent campaigns
// @Tags Messages
// @Produce json
// @Param X-User-ID header int true "Authenticated user id"
// @Param limit query int false "Page size, default 20, max 100"
// @Param offset query int false "Page offset"
// @Success 200 {object} service.HistoryPage
// @Failure 400 {object} errorResponse
// @Router /api/messages/history [get]
func (h *Handler) history(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid limit"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid offset"})
		return
	}

	page, err := h.messaging.History(c.Request.Context(), userID(c), limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// Statistics godoc
// @Summary Totals across all campaigns of the user
// @Tags Messages
// @Produce json
// @Param X-User-ID header int true "Authenticated user id"
// @Success 200 {object} domain.Statistics
// @Router /api/messages/statistics [get]
func (h *Handler) statistics(c *gin.Context) {
	stats, err := h.messaging.Statistics(c.Request.Context(), userID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Status godoc
// @Summary Delivery status of one campaign
// @Tags Messages
// @Produce json
// @Param X-User-ID header int true "Authenticated user id"
// @Param id path string true "Campaign id"
// @Success 200 {object} domain.CampaignDetail
// @Failure 404 {object} errorResponse
// @Router /api/messages/{id}/status [get]
func (h *Handler) status(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.writeError(c, domain.ErrNotFound)
		return
	}

	detail, err := h.messaging.Status(c.Request.Context(), userID(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// DeliveryReport godoc
// @Summary Provider delivery receipt callback
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param X-Webhook-Token header string false "Shared webhook token"
// @Param request body deliveryReportRequest true "Gateway reference and reported status"
// @Success 200
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /api/delivery-reports [post]
func (h *Handler) deliveryReport(c *gin.Context) {
	var req deliveryReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "message_id and status required"})
		return
	}

	status, err := domain.ParseDeliveryStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	updated, err := h.messaging.RecordDeliveryReport(c.Request.Context(), req.MessageID, status)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}
