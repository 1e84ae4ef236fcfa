package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"merchant-wallet/internal/core/domain"
	"merchant-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that records successful calls to
// the money-moving and account-changing routes.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		var actorID *uuid.UUID
		if id, ok := UserID(c); ok {
			actorID = &id
		}

		resourceID := c.Param("id")
		if v, ok := c.Get(CtxResourceID); ok {
			resourceID = fmt.Sprint(v)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      actorID,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

// mapRouteToAction works on the registered route template so path params
// do not defeat the match.
func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	switch {
	case route == "/api/v1/auth/login" && method == http.MethodPost:
		return domain.AuditActionLogin, "session"
	case route == "/api/v1/agent/merchants" && method == http.MethodPost:
		return domain.AuditActionOnboardMerchant, "merchant"
	case route == "/api/v1/admin/merchants/:id/status" && method == http.MethodPatch:
		return domain.AuditActionUpdateStatus, "merchant"
	case route == "/api/v1/merchant/wallet/topup/initiate" && method == http.MethodPost:
		return domain.AuditActionTopupInitiate, "wallet_transaction"
	case route == "/api/v1/merchant/wallet/topup/verify" && method == http.MethodGet:
		return domain.AuditActionTopupVerify, "wallet_transaction"
	case route == "/api/v1/payments/phonepe/callback" && method == http.MethodPost:
		return domain.AuditActionGatewayCallback, "wallet_transaction"
	}
	return "", ""
}
