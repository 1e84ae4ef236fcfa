package postgres

import (
	"context"
	"fmt"
	"time"

	"merchant-wallet/internal/core/domain"
	"merchant-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const ledgerColumns = `id, merchant_id, agent_id, type, amount, status, description, reference, created_at`

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Create inserts a ledger transaction within a database transaction.
func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerTransaction) error {
	query := `INSERT INTO ledger_transactions (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.MerchantID, e.AgentID, e.Type, e.Amount, e.Status,
		e.Description, e.Reference, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger transaction: %w", err)
	}
	return nil
}

// List fetches a merchant's ledger transactions for the transaction feed.
func (r *LedgerRepo) List(ctx context.Context, q ports.FeedQuery) ([]domain.LedgerTransaction, int64, error) {
	var f filter
	f.add("merchant_id = ?", q.MerchantID)
	if q.LedgerType != nil {
		f.add("type = ?", *q.LedgerType)
	}
	if q.Status != nil {
		f.add("status = ?", *q.Status)
	}
	if q.Search != "" {
		f.add("(description ILIKE ? OR reference ILIKE ?)", likePattern(q.Search))
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM ledger_transactions " + f.where()
	if err := r.pool.QueryRow(ctx, countQuery, f.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger transactions: %w", err)
	}

	pageClause, args := f.page(q.Limit, q.Offset)
	dataQuery := `SELECT ` + ledgerColumns + ` FROM ledger_transactions ` + f.where() +
		` ORDER BY created_at DESC ` + pageClause

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger transactions: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerTransaction
	for rows.Next() {
		e := domain.LedgerTransaction{}
		err := rows.Scan(
			&e.ID, &e.MerchantID, &e.AgentID, &e.Type, &e.Amount, &e.Status,
			&e.Description, &e.Reference, &e.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan ledger transaction row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate ledger transaction rows: %w", err)
	}
	return entries, total, nil
}

// SumByAgent totals an agent's completed ledger amounts of one type,
// optionally only since a point in time.
func (r *LedgerRepo) SumByAgent(ctx context.Context, agentID uuid.UUID, entryType domain.LedgerType, since *time.Time) (decimal.Decimal, error) {
	var f filter
	f.add("agent_id = ?", agentID)
	f.add("type = ?", entryType)
	f.add("status = ?", domain.LedgerStatusCompleted)
	if since != nil {
		f.add("created_at >= ?", *since)
	}

	var sum decimal.Decimal
	query := "SELECT COALESCE(SUM(amount), 0) FROM ledger_transactions " + f.where()
	if err := r.pool.QueryRow(ctx, query, f.args...).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum ledger transactions: %w", err)
	}
	return sum, nil
}
