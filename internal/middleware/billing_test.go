package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dreamlog_backend/internal/dto"
	"dreamlog_backend/internal/models"
	"dreamlog_backend/internal/services/billing"
	"dreamlog_backend/pkg/apperrors"
	"dreamlog_backend/pkg/contextkeys"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeTicket struct {
	committed bool
	released  bool
}

func (t *fakeTicket) Commit() { t.committed = true }

func (t *fakeTicket) Release() {
	if t.committed {
		return
	}
	t.released = true
}

func (t *fakeTicket) Committed() bool { return t.committed }

type fakeBillingService struct {
	decision billing.Decision
	ticket   billing.Ticket
	err      error

	reserveCalls int
	lastMetric   models.Metric
}

func (f *fakeBillingService) Status(db *gorm.DB, userID string) (*dto.BillingStatusResponse, error) {
	return nil, nil
}

func (f *fakeBillingService) Upgrade(db *gorm.DB, userID string, req *dto.UpgradeRequest) (*dto.BillingStatusResponse, error) {
	return nil, nil
}

func (f *fakeBillingService) IncrementUsage(db *gorm.DB, userID string, metric string) (*dto.IncrementUsageResponse, error) {
	return nil, nil
}

func (f *fakeBillingService) Reserve(db *gorm.DB, userID string, metric models.Metric) (billing.Decision, billing.Ticket, error) {
	f.reserveCalls++
	f.lastMetric = metric
	return f.decision, f.ticket, f.err
}

func quotaRouter(svc billing.Service, authenticated bool, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if authenticated {
			c.Set("userID", "u1")
		}
		c.Set(string(contextkeys.DBContextKey), &gorm.DB{})
		c.Next()
	})
	r.POST("/dreams", QuotaMiddleware(svc, models.MetricDreamCreate), handler)
	return r
}

func TestQuotaMiddlewareCommitsOnSuccess(t *testing.T) {
	ticket := &fakeTicket{}
	svc := &fakeBillingService{
		decision: billing.Decision{Allowed: true, Metric: models.MetricDreamCreate, Limit: 10, Used: 1, Remaining: 9},
		ticket:   ticket,
	}
	r := quotaRouter(svc, true, func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"id": "d1"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/dreams", nil))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, svc.reserveCalls)
	assert.Equal(t, models.MetricDreamCreate, svc.lastMetric)
	assert.True(t, ticket.committed)
	assert.False(t, ticket.released)
}

func TestQuotaMiddlewareReleasesOnHandlerFailure(t *testing.T) {
	ticket := &fakeTicket{}
	svc := &fakeBillingService{
		decision: billing.Decision{Allowed: true, Metric: models.MetricDreamCreate, Limit: 10, Used: 1},
		ticket:   ticket,
	}
	r := quotaRouter(svc, true, func(c *gin.Context) {
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream failed"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/dreams", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.False(t, ticket.committed)
	assert.True(t, ticket.released)
}

func TestQuotaMiddlewareDeniesAtLimit(t *testing.T) {
	svc := &fakeBillingService{
		decision: billing.Decision{
			Allowed: false,
			Metric:  models.MetricDreamCreate,
			Limit:   10,
			Used:    10,
			Period:  "2026-09",
		},
	}
	handlerRan := false
	r := quotaRouter(svc, true, func(c *gin.Context) {
		handlerRan = true
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/dreams", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, handlerRan)

	var body dto.LimitReachedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Usage limit reached", body.Error)
	assert.Contains(t, body.Error, "limit reached")
	assert.Equal(t, "dream_create", body.Metric)
	assert.Equal(t, 10, body.Limit)
	assert.Equal(t, 10, body.Used)
	assert.Equal(t, "2026-09", body.Period)
	assert.Equal(t, "/api/v1/billing/checkout", body.Upgrade)
}

func TestQuotaMiddlewareUnauthenticated(t *testing.T) {
	svc := &fakeBillingService{}
	r := quotaRouter(svc, false, func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/dreams", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, svc.reserveCalls)
}

func TestQuotaMiddlewareServiceError(t *testing.T) {
	svc := &fakeBillingService{err: apperrors.ErrUserNotFound}
	r := quotaRouter(svc, true, func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/dreams", nil))

	assert.Equal(t, apperrors.ErrUserNotFound.HTTPCode, w.Code)
}

func TestTicketFromContext(t *testing.T) {
	ticket := &fakeTicket{}
	svc := &fakeBillingService{
		decision: billing.Decision{Allowed: true, Metric: models.MetricDreamCreate},
		ticket:   ticket,
	}

	var got billing.Ticket
	var found bool
	r := quotaRouter(svc, true, func(c *gin.Context) {
		got, found = TicketFromContext(c)
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/dreams", nil))

	assert.Equal(t, http.StatusCreated, w.Code)
	require.True(t, found)
	assert.Same(t, ticket, got)
}
