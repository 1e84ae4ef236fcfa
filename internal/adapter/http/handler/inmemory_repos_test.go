package handler_test

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"merchant-wallet/internal/core/domain"
	"merchant-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// store backs every in-memory repo. Writes land immediately; the
// transactor only serializes transactions.
type store struct {
	mu        sync.RWMutex
	users     map[uuid.UUID]*domain.User
	merchants map[uuid.UUID]*domain.Merchant
	walletTxs map[uuid.UUID]*domain.WalletTransaction
	ledger    []domain.LedgerTransaction
	audit     []domain.AuditLog

	txLock sync.Mutex
}

func newStore() *store {
	return &store{
		users:     make(map[uuid.UUID]*domain.User),
		merchants: make(map[uuid.UUID]*domain.Merchant),
		walletTxs: make(map[uuid.UUID]*domain.WalletTransaction),
	}
}

func (s *store) auditActions() []domain.AuditAction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditAction, 0, len(s.audit))
	for _, a := range s.audit {
		out = append(out, a.Action)
	}
	return out
}

// --- Users ---

type inMemoryUserRepo struct{ s *store }

func (r inMemoryUserRepo) Create(_ context.Context, _ pgx.Tx, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u := *user
	r.s.users[u.ID] = &u
	return nil
}

func (r inMemoryUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r inMemoryUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// --- Merchants ---

type inMemoryMerchantRepo struct{ s *store }

func (r inMemoryMerchantRepo) Create(_ context.Context, _ pgx.Tx, merchant *domain.Merchant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m := *merchant
	r.s.merchants[m.ID] = &m
	return nil
}

func (r inMemoryMerchantRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Merchant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.merchants[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r inMemoryMerchantRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*domain.Merchant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, m := range r.s.merchants {
		if m.UserID == userID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r inMemoryMerchantRepo) List(_ context.Context, params ports.MerchantListParams) ([]domain.Merchant, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Merchant
	for _, m := range r.s.merchants {
		if params.AgentID != nil && m.AgentID != *params.AgentID {
			continue
		}
		if params.Status != nil && m.Status != *params.Status {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r inMemoryMerchantRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.MerchantStatus) (*domain.Merchant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.merchants[id]
	if !ok {
		return nil, nil
	}
	m.Status = status
	cp := *m
	return &cp, nil
}

func (r inMemoryMerchantRepo) UnlockMatured(_ context.Context, id uuid.UUID, now time.Time) (*domain.Merchant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.merchants[id]
	if !ok || !m.Wallet.IsMatured(now) {
		return nil, nil
	}
	m.Wallet.Balance = m.Wallet.Balance.Add(m.Wallet.LockedAmount)
	m.Wallet.LockedAmount = decimal.Zero
	m.Wallet.MaturityDate = nil
	cp := *m
	return &cp, nil
}

func (r inMemoryMerchantRepo) CreditBalance(_ context.Context, _ pgx.Tx, id uuid.UUID, amount decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m, ok := r.s.merchants[id]; ok {
		m.Wallet.Balance = m.Wallet.Balance.Add(amount)
	}
	return nil
}

func (r inMemoryMerchantRepo) Count(_ context.Context, agentID uuid.UUID, status *domain.MerchantStatus) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, m := range r.s.merchants {
		if m.AgentID == agentID && (status == nil || m.Status == *status) {
			n++
		}
	}
	return n, nil
}

// --- Wallet transactions ---

type inMemoryWalletTxRepo struct{ s *store }

func (r inMemoryWalletTxRepo) Create(_ context.Context, tx *domain.WalletTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *tx
	r.s.walletTxs[cp.ID] = &cp
	return nil
}

func (r inMemoryWalletTxRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.WalletTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tx, ok := r.s.walletTxs[id]
	if !ok {
		return nil, nil
	}
	cp := *tx
	return &cp, nil
}

func (r inMemoryWalletTxRepo) MarkCompleted(_ context.Context, id uuid.UUID, externalID string, payload json.RawMessage) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tx, ok := r.s.walletTxs[id]
	if !ok || tx.Status != domain.WalletTxStatusPending {
		return false, nil
	}
	tx.Status = domain.WalletTxStatusCompleted
	if externalID != "" {
		tx.ExternalTransactionID = &externalID
	}
	tx.GatewayPayload = payload
	return true, nil
}

func (r inMemoryWalletTxRepo) MarkFailed(_ context.Context, id uuid.UUID, description string, payload json.RawMessage) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tx, ok := r.s.walletTxs[id]
	if !ok || tx.Status != domain.WalletTxStatusPending {
		return false, nil
	}
	tx.Status = domain.WalletTxStatusFailed
	tx.Description = description
	tx.GatewayPayload = payload
	return true, nil
}

func (r inMemoryWalletTxRepo) ClaimCredit(_ context.Context, _ pgx.Tx, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tx, ok := r.s.walletTxs[id]
	if !ok || !tx.NeedsCredit() {
		return false, nil
	}
	tx.CreditApplied = true
	return true, nil
}

func (r inMemoryWalletTxRepo) List(_ context.Context, q ports.FeedQuery) ([]domain.WalletTransaction, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.WalletTransaction
	for _, tx := range r.s.walletTxs {
		if tx.MerchantID != q.MerchantID {
			continue
		}
		if q.Status != nil && string(tx.Status) != *q.Status {
			continue
		}
		out = append(out, *tx)
	}
	return page(out, q), int64(len(out)), nil
}

// --- Ledger ---

type inMemoryLedgerRepo struct{ s *store }

func (r inMemoryLedgerRepo) Create(_ context.Context, _ pgx.Tx, entry *domain.LedgerTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.ledger = append(r.s.ledger, *entry)
	return nil
}

func (r inMemoryLedgerRepo) List(_ context.Context, q ports.FeedQuery) ([]domain.LedgerTransaction, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.LedgerTransaction
	for _, e := range r.s.ledger {
		if e.MerchantID == nil || *e.MerchantID != q.MerchantID {
			continue
		}
		if q.LedgerType != nil && e.Type != *q.LedgerType {
			continue
		}
		if q.Status != nil && string(e.Status) != *q.Status {
			continue
		}
		out = append(out, e)
	}
	return page(out, q), int64(len(out)), nil
}

func (r inMemoryLedgerRepo) SumByAgent(_ context.Context, agentID uuid.UUID, entryType domain.LedgerType, since *time.Time) (decimal.Decimal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sum := decimal.Zero
	for _, e := range r.s.ledger {
		if e.AgentID == nil || *e.AgentID != agentID || e.Type != entryType {
			continue
		}
		if since != nil && e.CreatedAt.Before(*since) {
			continue
		}
		sum = sum.Add(e.Amount)
	}
	return sum, nil
}

func page[T any](rows []T, q ports.FeedQuery) []T {
	if q.Offset >= len(rows) {
		return nil
	}
	end := q.Offset + q.Limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[q.Offset:end]
}

// --- Audit ---

type inMemoryAuditRepo struct{ s *store }

func (r inMemoryAuditRepo) Create(_ context.Context, log *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *log)
	return nil
}

// --- Transactor ---

type inMemoryTransactor struct{ s *store }

func (t inMemoryTransactor) Begin(_ context.Context) (pgx.Tx, error) {
	t.s.txLock.Lock()
	return &serialTx{s: t.s}, nil
}

// serialTx holds the store's transaction lock until Commit or the first
// Rollback. Only Commit and Rollback are called by the services.
type serialTx struct {
	pgx.Tx
	s    *store
	once sync.Once
}

func (tx *serialTx) Commit(context.Context) error {
	tx.once.Do(tx.s.txLock.Unlock)
	return nil
}

func (tx *serialTx) Rollback(context.Context) error {
	tx.once.Do(tx.s.txLock.Unlock)
	return nil
}
