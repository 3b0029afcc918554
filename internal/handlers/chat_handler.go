package handlers

import (
	"net/http"

	"dreamlog_backend/internal/dto"
	"dreamlog_backend/internal/middleware"
	"dreamlog_backend/internal/models"
	"dreamlog_backend/internal/services"
	"dreamlog_backend/internal/services/billing"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	*BaseHandler
	chatService    services.ChatService
	billingService billing.Service
}

func NewChatHandler(base *BaseHandler, chatService services.ChatService, billingService billing.Service) *ChatHandler {
	return &ChatHandler{
		BaseHandler:    base,
		chatService:    chatService,
		billingService: billingService,
	}
}

func (h *ChatHandler) RegisterRoutes(r *gin.RouterGroup) {
	chat := r.Group("/chat")
	chat.Use(middleware.AuthMiddleware())
	{
		chat.POST("/messages", middleware.QuotaMiddleware(h.billingService, models.MetricChatMessage), h.Send)
		chat.GET("/messages", h.History)
	}
}

// Send godoc
// @Summary Send a message to the dream companion
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.SendChatMessageRequest true "Message"
// @Success 200 {object} dto.ChatMessageResponse
// @Failure 403 {object} dto.LimitReachedResponse "Daily chat limit reached"
// @Router /chat/messages [post]
func (h *ChatHandler) Send(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.SendChatMessageRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	reply, err := h.chatService.Send(c.Request.Context(), h.GetDB(c), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// History godoc
// @Summary Get chat history
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max messages"
// @Success 200 {object} dto.ChatHistoryResponse
// @Router /chat/messages [get]
func (h *ChatHandler) History(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	limit := ParseQueryInt(c, "limit", 50)
	history, err := h.chatService.History(h.GetDB(c), userID, limit)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}
