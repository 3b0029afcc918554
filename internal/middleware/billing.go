package middleware

import (
	"net/http"

	"dreamlog_backend/internal/dto"
	"dreamlog_backend/internal/logger"
	"dreamlog_backend/internal/models"
	"dreamlog_backend/internal/services/billing"
	"dreamlog_backend/pkg/apperrors"
	"dreamlog_backend/pkg/contextkeys"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const usageTicketKey = "usageTicket"

// QuotaMiddleware reserves one usage slot for the metric before the handler
// runs. On denial it answers 403 without invoking the handler. The reserved
// slot is committed when the handler succeeds and released when it fails, so
// an AI timeout does not burn quota.
func QuotaMiddleware(svc billing.Service, metric models.Metric) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := GetUserID(c)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}

		db, ok := c.MustGet(string(contextkeys.DBContextKey)).(*gorm.DB)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Database not available"})
			return
		}

		decision, ticket, err := svc.Reserve(db, userID, metric)
		if err != nil {
			var appErr *apperrors.AppError
			if apperrors.As(err, &appErr) {
				c.AbortWithStatusJSON(appErr.HTTPCode, gin.H{"error": appErr})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to check usage limits"})
			return
		}

		if !decision.Allowed {
			logger.CtxWarn(c.Request.Context(), "usage limit reached",
				"user_id", userID,
				"metric", metric,
				"limit", decision.Limit,
				"period", decision.Period,
			)
			c.AbortWithStatusJSON(http.StatusForbidden, dto.LimitReachedResponse{
				Error:   apperrors.ErrUsageLimitReached.Message,
				Metric:  string(decision.Metric),
				Limit:   decision.Limit,
				Used:    decision.Used,
				Period:  decision.Period,
				Upgrade: "/api/v1/billing/checkout",
			})
			return
		}

		c.Set(usageTicketKey, ticket)
		c.Next()

		// 2xx/3xx means the gated action happened.
		if c.Writer.Status() < 400 {
			ticket.Commit()
		}
		ticket.Release()
	}
}

// TicketFromContext returns the reservation for the current request, when the
// route is quota-gated.
func TicketFromContext(c *gin.Context) (billing.Ticket, bool) {
	val, exists := c.Get(usageTicketKey)
	if !exists {
		return nil, false
	}
	ticket, ok := val.(billing.Ticket)
	return ticket, ok
}
