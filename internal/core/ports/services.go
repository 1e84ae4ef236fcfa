package ports

import (
	"context"
	"time"

	"merchant-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(subject TokenClaims) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims. MerchantID is set for merchant
// sessions only.
type TokenClaims struct {
	UserID     uuid.UUID
	Role       domain.Role
	MerchantID *uuid.UUID
}

// ReconcileCache is the Redis-layer store for finalized reconcile results.
type ReconcileCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached result JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// --- Service Ports (Business Logic) ---

// MaturityService releases matured locked deposits on read.
type MaturityService interface {
	CheckAndUnlock(ctx context.Context, merchant *domain.Merchant) *domain.Merchant
}

// TopUpService drives a wallet top-up from initiation to a terminal state.
type TopUpService interface {
	Initiate(ctx context.Context, merchantID uuid.UUID, amount decimal.Decimal) (*TopUpInitiation, error)
	Reconcile(ctx context.Context, transactionID uuid.UUID) (*domain.ReconcileResult, error)
	// ReconcileForMerchant is the client poll path; the transaction must
	// belong to merchantID.
	ReconcileForMerchant(ctx context.Context, merchantID, transactionID uuid.UUID) (*domain.ReconcileResult, error)
}

// TopUpInitiation is returned to the merchant after a successful initiation.
type TopUpInitiation struct {
	TransactionID uuid.UUID
	RedirectURL   string
}

// FeedService produces the merged merchant transaction feed.
type FeedService interface {
	ListTransactions(ctx context.Context, merchantID uuid.UUID, filter domain.FeedFilter) ([]domain.FeedRecord, int64, error)
}

// MerchantService defines agent and admin merchant management.
type MerchantService interface {
	Onboard(ctx context.Context, req OnboardRequest) (*OnboardResult, error)
	GetForAgent(ctx context.Context, agentID, merchantID uuid.UUID) (*domain.Merchant, error)
	Get(ctx context.Context, merchantID uuid.UUID) (*domain.Merchant, error)
	List(ctx context.Context, params MerchantListParams) ([]domain.Merchant, int64, error)
	UpdateStatus(ctx context.Context, merchantID uuid.UUID, status domain.MerchantStatus) (*domain.Merchant, error)
	GetWallet(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error)
	AgentStats(ctx context.Context, agentID uuid.UUID) (*AgentStats, error)
}

// OnboardRequest holds validated input for agent-led merchant onboarding.
type OnboardRequest struct {
	AgentID           uuid.UUID
	OwnerName         string
	Email             string
	Phone             string
	BusinessName      string
	BusinessType      string
	Address           string
	Mode              domain.MerchantMode
	BankAccountName   string
	BankAccountNumber string
	BankIFSC          string
	DepositAmount     decimal.Decimal
}

// OnboardResult holds the onboarding result. Password is plaintext and shown
// only once.
type OnboardResult struct {
	Merchant *domain.Merchant
	UserID   uuid.UUID
	Email    string
	Password string
}

// AgentStats is the agent dashboard summary.
type AgentStats struct {
	TotalMerchants    int64
	PendingMerchants  int64
	TotalDeposits     decimal.Decimal
	MonthlyCollection decimal.Decimal
}

// AuthService defines authentication business logic.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
}

// LoginResult is an issued session.
type LoginResult struct {
	Token      string
	Expiry     time.Time
	Role       domain.Role
	UserID     uuid.UUID
	MerchantID *uuid.UUID
}

// AuditService records audit entries without blocking the request.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
