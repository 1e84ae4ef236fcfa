package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"merchant-wallet/internal/core/domain"
	"merchant-wallet/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuditLog_StatusUpdate(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	adminID := uuid.New()
	merchantID := uuid.New()

	var got *domain.AuditLog
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(
		func(_ context.Context, entry *domain.AuditLog) { got = entry },
	)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.PATCH("/api/v1/admin/merchants/:id/status", func(c *gin.Context) {
		c.Set(CtxUserID, adminID)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/admin/merchants/"+merchantID.String()+"/status", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, domain.AuditActionUpdateStatus, got.Action)
	assert.Equal(t, "merchant", got.ResourceType)
	assert.Equal(t, merchantID.String(), got.ResourceID)
	require.NotNil(t, got.ActorID)
	assert.Equal(t, adminID, *got.ActorID)
	assert.Contains(t, got.Details, `"status":200`)
}

func TestAuditLog_VerifyUsesHandlerResourceID(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)
	txID := uuid.New()

	var got *domain.AuditLog
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(
		func(_ context.Context, entry *domain.AuditLog) { got = entry },
	)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.GET("/api/v1/merchant/wallet/topup/verify", func(c *gin.Context) {
		c.Set(CtxResourceID, txID)
		c.JSON(http.StatusOK, gin.H{"status": "completed"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/merchant/wallet/topup/verify?transactionId="+txID.String(), nil))

	require.NotNil(t, got)
	assert.Equal(t, domain.AuditActionTopupVerify, got.Action)
	assert.Equal(t, txID.String(), got.ResourceID)
	assert.Nil(t, got.ActorID)
}

func TestAuditLog_SkipsUnmappedRoutes(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)
	// No expectations: reads are not audited.

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.GET("/api/v1/merchant/wallet", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"balance": "100.00"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/merchant/wallet", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuditLog_SkipsFailedRequests(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/merchant/wallet/topup/initiate", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/merchant/wallet/topup/initiate", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMapRouteToAction(t *testing.T) {
	tests := []struct {
		route    string
		method   string
		action   domain.AuditAction
		resource string
	}{
		{"/api/v1/auth/login", "POST", domain.AuditActionLogin, "session"},
		{"/api/v1/agent/merchants", "POST", domain.AuditActionOnboardMerchant, "merchant"},
		{"/api/v1/agent/merchants", "GET", "", ""},
		{"/api/v1/admin/merchants/:id/status", "PATCH", domain.AuditActionUpdateStatus, "merchant"},
		{"/api/v1/merchant/wallet/topup/initiate", "POST", domain.AuditActionTopupInitiate, "wallet_transaction"},
		{"/api/v1/merchant/wallet/topup/verify", "GET", domain.AuditActionTopupVerify, "wallet_transaction"},
		{"/api/v1/payments/phonepe/callback", "POST", domain.AuditActionGatewayCallback, "wallet_transaction"},
		{"/unknown", "POST", "", ""},
	}

	for _, tc := range tests {
		action, resource := mapRouteToAction(tc.route, tc.method)
		assert.Equal(t, tc.action, action, "route=%s method=%s", tc.route, tc.method)
		assert.Equal(t, tc.resource, resource, "route=%s method=%s", tc.route, tc.method)
	}
}
