package handlers

import (
	"net/http"
	"strconv"

	"dreamlog_backend/internal/dto"
	"dreamlog_backend/internal/middleware"
	"dreamlog_backend/internal/models"
	"dreamlog_backend/internal/repositories"
	"dreamlog_backend/internal/services"
	"dreamlog_backend/internal/services/billing"

	"github.com/gin-gonic/gin"
)

type DreamHandler struct {
	*BaseHandler
	dreamService   services.DreamService
	billingService billing.Service
}

func NewDreamHandler(base *BaseHandler, dreamService services.DreamService, billingService billing.Service) *DreamHandler {
	return &DreamHandler{
		BaseHandler:    base,
		dreamService:   dreamService,
		billingService: billingService,
	}
}

func (h *DreamHandler) RegisterRoutes(r *gin.RouterGroup) {
	dreams := r.Group("/dreams")
	dreams.Use(middleware.AuthMiddleware())
	{
		dreams.POST("", middleware.QuotaMiddleware(h.billingService, models.MetricDreamCreate), h.Create)
		dreams.GET("", h.List)
		dreams.GET("/:dreamId", h.Get)
		dreams.PATCH("/:dreamId", h.Update)
		dreams.DELETE("/:dreamId", h.Delete)
		dreams.POST("/:dreamId/analyze", middleware.QuotaMiddleware(h.billingService, models.MetricAIAnalyze), h.Analyze)
	}
}

// Create godoc
// @Summary Record a new dream
// @Tags dreams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateDreamRequest true "Dream entry"
// @Success 201 {object} dto.DreamResponse
// @Failure 403 {object} dto.LimitReachedResponse "Monthly dream limit reached"
// @Router /dreams [post]
func (h *DreamHandler) Create(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.CreateDreamRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	dream, err := h.dreamService.Create(h.GetDB(c), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dream)
}

// List godoc
// @Summary List the user's dreams
// @Tags dreams
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param mood query string false "Filter by mood"
// @Param lucid query bool false "Filter by lucidity"
// @Param tag query string false "Filter by tag"
// @Param date_from query string false "Earliest dream date"
// @Param date_to query string false "Latest dream date"
// @Success 200 {object} dto.DreamListResponse
// @Router /dreams [get]
func (h *DreamHandler) List(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	page, pageSize := ParsePagination(c)
	filter := repositories.DreamFilter{
		Mood:     c.Query("mood"),
		Tag:      c.Query("tag"),
		Page:     page,
		PageSize: pageSize,
	}

	if lucidStr := c.Query("lucid"); lucidStr != "" {
		lucid, err := strconv.ParseBool(lucidStr)
		if err == nil {
			filter.Lucid = &lucid
		}
	}

	dateFrom, err := ParseQueryDate(c, "date_from")
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	dateTo, err := ParseQueryDate(c, "date_to")
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	filter.DateFrom = dateFrom
	filter.DateTo = dateTo

	list, err := h.dreamService.List(h.GetDB(c), userID, filter)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Get godoc
// @Summary Get one dream
// @Tags dreams
// @Produce json
// @Security BearerAuth
// @Param dreamId path string true "Dream ID"
// @Success 200 {object} dto.DreamResponse
// @Failure 404 {object} map[string]interface{}
// @Router /dreams/{dreamId} [get]
func (h *DreamHandler) Get(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	dream, err := h.dreamService.Get(h.GetDB(c), userID, c.Param("dreamId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dream)
}

// Update godoc
// @Summary Update a dream
// @Tags dreams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param dreamId path string true "Dream ID"
// @Param request body dto.UpdateDreamRequest true "Fields to update"
// @Success 200 {object} dto.DreamResponse
// @Router /dreams/{dreamId} [patch]
func (h *DreamHandler) Update(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateDreamRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	dream, err := h.dreamService.Update(h.GetDB(c), userID, c.Param("dreamId"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dream)
}

// Delete godoc
// @Summary Delete a dream
// @Tags dreams
// @Security BearerAuth
// @Param dreamId path string true "Dream ID"
// @Success 204
// @Router /dreams/{dreamId} [delete]
func (h *DreamHandler) Delete(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	if err := h.dreamService.Delete(h.GetDB(c), userID, c.Param("dreamId")); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Analyze godoc
// @Summary Run AI analysis on a dream
// @Tags dreams
// @Produce json
// @Security BearerAuth
// @Param dreamId path string true "Dream ID"
// @Success 200 {object} dto.AnalyzeDreamResponse
// @Failure 403 {object} dto.LimitReachedResponse "Monthly analysis limit reached"
// @Router /dreams/{dreamId}/analyze [post]
func (h *DreamHandler) Analyze(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	result, err := h.dreamService.Analyze(c.Request.Context(), h.GetDB(c), userID, c.Param("dreamId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
