package ports

import (
	"context"
	"encoding/json"
	"time"

	"merchant-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UserRepository defines persistence operations for login identities.
type UserRepository interface {
	Create(ctx context.Context, tx pgx.Tx, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// MerchantRepository defines persistence operations for merchants and their
// embedded wallet. Balance changes are always expressed as SQL increments.
type MerchantRepository interface {
	Create(ctx context.Context, tx pgx.Tx, merchant *domain.Merchant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Merchant, error)
	List(ctx context.Context, params MerchantListParams) ([]domain.Merchant, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MerchantStatus) (*domain.Merchant, error)
	// UnlockMatured releases the locked deposit in a single conditional
	// update. It returns nil when the merchant had nothing matured at now.
	UnlockMatured(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Merchant, error)
	CreditBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) error
	Count(ctx context.Context, agentID uuid.UUID, status *domain.MerchantStatus) (int64, error)
}

// MerchantListParams holds filter + pagination for listing merchants.
type MerchantListParams struct {
	AgentID  *uuid.UUID
	Status   *domain.MerchantStatus
	Search   string
	Page     int
	PageSize int
}

// WalletTransactionRepository defines persistence for gateway-settled wallet
// movements. Status transitions are conditional on the row still being
// pending and report whether this caller won the transition.
type WalletTransactionRepository interface {
	Create(ctx context.Context, tx *domain.WalletTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WalletTransaction, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, externalID string, payload json.RawMessage) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, description string, payload json.RawMessage) (bool, error)
	// ClaimCredit flips credit_applied on a completed top-up. Only one caller
	// ever gets true for a given transaction.
	ClaimCredit(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
	List(ctx context.Context, q FeedQuery) ([]domain.WalletTransaction, int64, error)
}

// LedgerRepository defines persistence for generic ledger transactions.
type LedgerRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerTransaction) error
	List(ctx context.Context, q FeedQuery) ([]domain.LedgerTransaction, int64, error)
	SumByAgent(ctx context.Context, agentID uuid.UUID, entryType domain.LedgerType, since *time.Time) (decimal.Decimal, error)
}

// FeedQuery is one family's slice of the merchant transaction feed.
type FeedQuery struct {
	MerchantID uuid.UUID
	Search     string
	Status     *string
	LedgerType *domain.LedgerType
	Offset     int
	Limit      int
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
