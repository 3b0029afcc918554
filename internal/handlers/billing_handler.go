package handlers

import (
	"io"
	"net/http"

	"dreamlog_backend/internal/dto"
	"dreamlog_backend/internal/logger"
	"dreamlog_backend/internal/middleware"
	"dreamlog_backend/internal/services/billing"
	"dreamlog_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

// Stripe webhook bodies are small; anything above this is not a real event.
const maxWebhookBody = 1 << 20

type BillingHandler struct {
	*BaseHandler
	billingService billing.Service
	stripeService  billing.StripeService
	appleService   billing.AppleService
}

func NewBillingHandler(
	base *BaseHandler,
	billingService billing.Service,
	stripeService billing.StripeService,
	appleService billing.AppleService,
) *BillingHandler {
	return &BillingHandler{
		BaseHandler:    base,
		billingService: billingService,
		stripeService:  stripeService,
		appleService:   appleService,
	}
}

func (h *BillingHandler) RegisterRoutes(r *gin.RouterGroup) {
	b := r.Group("/billing")

	// External callback, signature-authenticated.
	b.POST("/webhook", h.StripeWebhook)

	b.Use(middleware.AuthMiddleware())
	{
		b.GET("/status", h.Status)
		b.POST("/upgrade", h.Upgrade)
		b.POST("/usage/increment", h.IncrementUsage)
		b.POST("/apple/verify", h.AppleVerify)
		b.POST("/checkout", h.Checkout)
		b.POST("/cancel", h.Cancel)
	}
}

// Status godoc
// @Summary Get plan, trial and current-period usage
// @Tags billing
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.BillingStatusResponse
// @Router /billing/status [get]
func (h *BillingHandler) Status(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	status, err := h.billingService.Status(h.GetDB(c), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Upgrade godoc
// @Summary Change plan manually, optionally starting a trial
// @Tags billing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UpgradeRequest true "Target plan"
// @Success 200 {object} dto.BillingStatusResponse
// @Failure 400 {object} map[string]interface{}
// @Router /billing/upgrade [post]
func (h *BillingHandler) Upgrade(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.UpgradeRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	status, err := h.billingService.Upgrade(h.GetDB(c), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// IncrementUsage godoc
// @Summary Record one usage of a metric
// @Tags billing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.IncrementUsageRequest true "Metric name"
// @Success 200 {object} dto.IncrementUsageResponse
// @Failure 400 {object} map[string]interface{}
// @Router /billing/usage/increment [post]
func (h *BillingHandler) IncrementUsage(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.IncrementUsageRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	result, err := h.billingService.IncrementUsage(h.GetDB(c), userID, req.Metric)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AppleVerify godoc
// @Summary Verify an App Store receipt and grant premium
// @Tags billing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.AppleVerifyRequest true "Base64 receipt"
// @Success 200 {object} dto.AppleVerifyResponse
// @Failure 400 {object} map[string]interface{}
// @Router /billing/apple/verify [post]
func (h *BillingHandler) AppleVerify(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.AppleVerifyRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	result, err := h.appleService.VerifyReceipt(c.Request.Context(), h.GetDB(c), userID, req.ReceiptData)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Checkout godoc
// @Summary Create a Stripe checkout session for premium
// @Tags billing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CheckoutRequest true "Price selection"
// @Success 200 {object} dto.CheckoutResponse
// @Failure 503 {object} map[string]interface{}
// @Router /billing/checkout [post]
func (h *BillingHandler) Checkout(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.CheckoutRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	resp, err := h.stripeService.CreateCheckoutSession(h.GetDB(c), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cancel godoc
// @Summary Cancel the Stripe subscription
// @Tags billing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CancelRequest true "Cancellation mode"
// @Success 200 {object} dto.CancelResponse
// @Failure 404 {object} map[string]interface{}
// @Router /billing/cancel [post]
func (h *BillingHandler) Cancel(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.CancelRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	resp, err := h.stripeService.Cancel(h.GetDB(c), userID, req.Immediately)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// StripeWebhook godoc
// @Summary Receive Stripe events
// @Tags billing
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe signature"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /billing/webhook [post]
func (h *BillingHandler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		apperrors.HandleError(c, apperrors.NewBadRequestError("Failed to read webhook body"))
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if err := h.stripeService.HandleWebhook(h.GetDB(c), payload, signature); err != nil {
		logger.CtxWithError(c.Request.Context(), "stripe webhook rejected", err)
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
