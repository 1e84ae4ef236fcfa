package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"merchant-wallet/internal/core/domain"
	"merchant-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletTxColumns = `id, merchant_id, amount, currency, payment_method, type, status,
		external_transaction_id, description, gateway_payload, credit_applied, created_at, updated_at`

// WalletTxRepo implements ports.WalletTransactionRepository.
type WalletTxRepo struct {
	pool Pool
}

// NewWalletTxRepo creates a new WalletTxRepo.
func NewWalletTxRepo(pool Pool) *WalletTxRepo {
	return &WalletTxRepo{pool: pool}
}

// Create inserts a new wallet transaction.
func (r *WalletTxRepo) Create(ctx context.Context, t *domain.WalletTransaction) error {
	query := `INSERT INTO wallet_transactions (` + walletTxColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.MerchantID, t.Amount, t.Currency, t.PaymentMethod, t.Type, t.Status,
		t.ExternalTransactionID, t.Description, t.GatewayPayload, t.CreditApplied,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	return nil
}

// GetByID fetches a wallet transaction by UUID.
func (r *WalletTxRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WalletTransaction, error) {
	query := `SELECT ` + walletTxColumns + ` FROM wallet_transactions WHERE id = $1`

	t := &domain.WalletTransaction{}
	if err := r.pool.QueryRow(ctx, query, id).Scan(walletTxDest(t)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet transaction by id: %w", err)
	}
	return t, nil
}

// MarkCompleted moves a pending transaction to completed. It returns false
// when the row was no longer pending.
func (r *WalletTxRepo) MarkCompleted(ctx context.Context, id uuid.UUID, externalID string, payload json.RawMessage) (bool, error) {
	query := `UPDATE wallet_transactions
		SET status = 'completed', external_transaction_id = $2, gateway_payload = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	tag, err := r.pool.Exec(ctx, query, id, externalID, payload)
	if err != nil {
		return false, fmt.Errorf("mark wallet transaction completed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed moves a pending transaction to failed with a diagnostic
// description. It returns false when the row was no longer pending.
func (r *WalletTxRepo) MarkFailed(ctx context.Context, id uuid.UUID, description string, payload json.RawMessage) (bool, error) {
	query := `UPDATE wallet_transactions
		SET status = 'failed', description = $2, gateway_payload = COALESCE($3, gateway_payload), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	tag, err := r.pool.Exec(ctx, query, id, description, payload)
	if err != nil {
		return false, fmt.Errorf("mark wallet transaction failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimCredit marks the balance credit of a completed top-up as applied.
// This MUST be called within the transaction that performs the credit.
func (r *WalletTxRepo) ClaimCredit(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	query := `UPDATE wallet_transactions SET credit_applied = TRUE, updated_at = NOW()
		WHERE id = $1 AND status = 'completed' AND type = 'topup' AND credit_applied = FALSE`

	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("claim wallet credit: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// List fetches a merchant's top-ups for the transaction feed.
func (r *WalletTxRepo) List(ctx context.Context, q ports.FeedQuery) ([]domain.WalletTransaction, int64, error) {
	var f filter
	f.add("merchant_id = ?", q.MerchantID)
	f.add("type = ?", domain.WalletTxTypeTopup)
	if q.Status != nil {
		f.add("status = ?", *q.Status)
	}
	if q.Search != "" {
		f.add("(description ILIKE ? OR COALESCE(external_transaction_id, id::text) ILIKE ?)", likePattern(q.Search))
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM wallet_transactions " + f.where()
	if err := r.pool.QueryRow(ctx, countQuery, f.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count wallet transactions: %w", err)
	}

	pageClause, args := f.page(q.Limit, q.Offset)
	dataQuery := `SELECT ` + walletTxColumns + ` FROM wallet_transactions ` + f.where() +
		` ORDER BY created_at DESC ` + pageClause

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list wallet transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.WalletTransaction
	for rows.Next() {
		t := domain.WalletTransaction{}
		if err := rows.Scan(walletTxDest(&t)...); err != nil {
			return nil, 0, fmt.Errorf("scan wallet transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate wallet transaction rows: %w", err)
	}
	return txns, total, nil
}

func walletTxDest(t *domain.WalletTransaction) []any {
	return []any{
		&t.ID, &t.MerchantID, &t.Amount, &t.Currency, &t.PaymentMethod, &t.Type, &t.Status,
		&t.ExternalTransactionID, &t.Description, &t.GatewayPayload, &t.CreditApplied,
		&t.CreatedAt, &t.UpdatedAt,
	}
}
