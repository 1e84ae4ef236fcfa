package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"merchant-wallet/internal/core/domain"
	"merchant-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const merchantColumns = `id, user_id, agent_id, business_name, business_type, address, mode, status,
		bank_account_name, bank_account_number, bank_ifsc, balance, locked_amount, maturity_date,
		created_at, updated_at`

// MerchantRepo implements ports.MerchantRepository.
type MerchantRepo struct {
	pool Pool
}

// NewMerchantRepo creates a new MerchantRepo.
func NewMerchantRepo(pool Pool) *MerchantRepo {
	return &MerchantRepo{pool: pool}
}

// Create inserts a new merchant within a database transaction.
func (r *MerchantRepo) Create(ctx context.Context, tx pgx.Tx, m *domain.Merchant) error {
	query := `INSERT INTO merchants (` + merchantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := tx.Exec(ctx, query,
		m.ID, m.UserID, m.AgentID, m.BusinessName, m.BusinessType, m.Address, m.Mode, m.Status,
		m.Bank.AccountName, m.Bank.AccountNumberEnc, m.Bank.IFSC,
		m.Wallet.Balance, m.Wallet.LockedAmount, m.Wallet.MaturityDate,
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert merchant: %w", err)
	}
	return nil
}

// GetByID fetches a merchant by its UUID.
func (r *MerchantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	query := `SELECT ` + merchantColumns + ` FROM merchants WHERE id = $1`

	m, err := scanMerchant(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get merchant by id: %w", err)
	}
	return m, nil
}

// GetByUserID fetches the merchant owned by a user.
func (r *MerchantRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Merchant, error) {
	query := `SELECT ` + merchantColumns + ` FROM merchants WHERE user_id = $1`

	m, err := scanMerchant(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("get merchant by user id: %w", err)
	}
	return m, nil
}

// List fetches merchants with filtering and pagination.
func (r *MerchantRepo) List(ctx context.Context, params ports.MerchantListParams) ([]domain.Merchant, int64, error) {
	var f filter
	if params.AgentID != nil {
		f.add("agent_id = ?", *params.AgentID)
	}
	if params.Status != nil {
		f.add("status = ?", *params.Status)
	}
	if params.Search != "" {
		f.add("business_name ILIKE ?", likePattern(params.Search))
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM merchants " + f.where()
	if err := r.pool.QueryRow(ctx, countQuery, f.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count merchants: %w", err)
	}

	pageClause, args := f.page(params.PageSize, (params.Page-1)*params.PageSize)
	dataQuery := `SELECT ` + merchantColumns + ` FROM merchants ` + f.where() +
		` ORDER BY created_at DESC ` + pageClause

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list merchants: %w", err)
	}
	defer rows.Close()

	var merchants []domain.Merchant
	for rows.Next() {
		m := domain.Merchant{}
		if err := rows.Scan(merchantDest(&m)...); err != nil {
			return nil, 0, fmt.Errorf("scan merchant row: %w", err)
		}
		merchants = append(merchants, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate merchant rows: %w", err)
	}
	return merchants, total, nil
}

// UpdateStatus sets the approval status and returns the updated merchant,
// or nil if it does not exist.
func (r *MerchantRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MerchantStatus) (*domain.Merchant, error) {
	query := `UPDATE merchants SET status = $1, updated_at = NOW() WHERE id = $2
		RETURNING ` + merchantColumns

	m, err := scanMerchant(r.pool.QueryRow(ctx, query, status, id))
	if err != nil {
		return nil, fmt.Errorf("update merchant status: %w", err)
	}
	return m, nil
}

// UnlockMatured moves a matured locked deposit into the spendable balance.
// The maturity check and the write are one statement, so a concurrent
// second call matches no row and returns nil.
func (r *MerchantRepo) UnlockMatured(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Merchant, error) {
	query := `UPDATE merchants
		SET balance = balance + locked_amount, locked_amount = 0, maturity_date = NULL, updated_at = NOW()
		WHERE id = $1 AND locked_amount > 0 AND maturity_date IS NOT NULL AND maturity_date <= $2
		RETURNING ` + merchantColumns

	m, err := scanMerchant(r.pool.QueryRow(ctx, query, id, now))
	if err != nil {
		return nil, fmt.Errorf("unlock matured deposit: %w", err)
	}
	return m, nil
}

// CreditBalance adds amount to the merchant balance within a transaction.
func (r *MerchantRepo) CreditBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) error {
	query := `UPDATE merchants SET balance = balance + $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("credit merchant balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("merchant not found: %s", id)
	}
	return nil
}

// Count returns how many merchants an agent onboarded, optionally by status.
func (r *MerchantRepo) Count(ctx context.Context, agentID uuid.UUID, status *domain.MerchantStatus) (int64, error) {
	var f filter
	f.add("agent_id = ?", agentID)
	if status != nil {
		f.add("status = ?", *status)
	}

	var n int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM merchants "+f.where(), f.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count merchants: %w", err)
	}
	return n, nil
}

func merchantDest(m *domain.Merchant) []any {
	return []any{
		&m.ID, &m.UserID, &m.AgentID, &m.BusinessName, &m.BusinessType, &m.Address, &m.Mode, &m.Status,
		&m.Bank.AccountName, &m.Bank.AccountNumberEnc, &m.Bank.IFSC,
		&m.Wallet.Balance, &m.Wallet.LockedAmount, &m.Wallet.MaturityDate,
		&m.CreatedAt, &m.UpdatedAt,
	}
}

// scanMerchant scans a single row, mapping pgx.ErrNoRows to (nil, nil).
func scanMerchant(row pgx.Row) (*domain.Merchant, error) {
	m := &domain.Merchant{}
	if err := row.Scan(merchantDest(m)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}
