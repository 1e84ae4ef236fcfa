package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionLogin           AuditAction = "LOGIN"
	AuditActionOnboardMerchant AuditAction = "ONBOARD_MERCHANT"
	AuditActionUpdateStatus    AuditAction = "UPDATE_MERCHANT_STATUS"
	AuditActionTopupInitiate   AuditAction = "TOPUP_INITIATE"
	AuditActionTopupVerify     AuditAction = "TOPUP_VERIFY"
	AuditActionGatewayCallback AuditAction = "GATEWAY_CALLBACK"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
