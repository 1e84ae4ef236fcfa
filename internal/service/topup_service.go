package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"merchant-wallet/internal/core/domain"
	"merchant-wallet/internal/core/ports"
	"merchant-wallet/pkg/apperror"
	"merchant-wallet/pkg/metrics"
	"merchant-wallet/pkg/money"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	msgPaymentSuccessful = "Payment successful"
	msgAlreadyCompleted  = "Payment already completed"
	msgPaymentPending    = "Payment status pending"
	msgPaymentFailed     = "Payment failed"

	verifyPath = "/merchant/wallet/topup/verify"
)

// TopUpConfig holds the tunables of the top-up flow.
type TopUpConfig struct {
	RedirectBaseURL string
	InitTimeout     time.Duration
	StatusTimeout   time.Duration
	CacheTTL        time.Duration
}

// TopUpServiceImpl implements ports.TopUpService.
type TopUpServiceImpl struct {
	walletTxRepo ports.WalletTransactionRepository
	merchantRepo ports.MerchantRepository
	gateway      ports.PaymentGateway
	cache        ports.ReconcileCache
	transactor   ports.DBTransactor
	cfg          TopUpConfig
	metrics      *metrics.WalletMetrics
	log          zerolog.Logger
	now          func() time.Time
}

// NewTopUpService creates a new TopUpServiceImpl.
func NewTopUpService(
	walletTxRepo ports.WalletTransactionRepository,
	merchantRepo ports.MerchantRepository,
	gateway ports.PaymentGateway,
	cache ports.ReconcileCache,
	transactor ports.DBTransactor,
	cfg TopUpConfig,
	m *metrics.WalletMetrics,
	log zerolog.Logger,
) *TopUpServiceImpl {
	return &TopUpServiceImpl{
		walletTxRepo: walletTxRepo,
		merchantRepo: merchantRepo,
		gateway:      gateway,
		cache:        cache,
		transactor:   transactor,
		cfg:          cfg,
		metrics:      m,
		log:          log,
		now:          time.Now,
	}
}

// Initiate records a pending top-up and asks the gateway for a payer
// redirect. The wallet transaction id is the gateway correlation id.
func (s *TopUpServiceImpl) Initiate(ctx context.Context, merchantID uuid.UUID, amount decimal.Decimal) (*ports.TopUpInitiation, error) {
	if err := money.ValidatePositive(amount); err != nil {
		s.metrics.IncInitiation("invalid")
		return nil, apperror.Validation(err.Error())
	}

	merchant, err := s.merchantRepo.GetByID(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get merchant: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("Merchant")
	}

	now := s.now().UTC()
	tx := &domain.WalletTransaction{
		ID:            uuid.New(),
		MerchantID:    merchant.ID,
		Amount:        amount,
		Currency:      money.Currency,
		PaymentMethod: domain.PaymentMethodPhonePe,
		Type:          domain.WalletTxTypeTopup,
		Status:        domain.WalletTxStatusPending,
		Description:   fmt.Sprintf("Wallet top-up by merchant %s", merchant.BusinessName),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.walletTxRepo.Create(ctx, tx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet transaction: %w", err))
	}

	gwCtx, cancel := withTimeout(ctx, s.cfg.InitTimeout)
	defer cancel()

	redirect, err := s.gateway.InitiatePayment(gwCtx, ports.PaymentSession{
		CorrelationID: tx.CorrelationID(),
		AmountMinor:   money.ToMinorUnits(amount),
		RedirectURL:   s.redirectURL(tx.ID),
	})
	if err != nil {
		s.metrics.IncInitiation("gateway_error")
		desc := fmt.Sprintf("PhonePe initiation failed: %s", err.Error())
		if _, markErr := s.walletTxRepo.MarkFailed(context.WithoutCancel(ctx), tx.ID, desc, nil); markErr != nil {
			s.log.Error().Err(markErr).
				Str("transaction_id", tx.ID.String()).
				Msg("failed to mark top-up as failed after gateway error")
		}
		s.log.Warn().Err(err).
			Str("transaction_id", tx.ID.String()).
			Str("merchant_id", merchant.ID.String()).
			Msg("top-up initiation rejected by gateway")
		if errors.Is(err, ports.ErrGatewayRejected) {
			return nil, apperror.ErrGatewayRejected(err)
		}
		return nil, apperror.ErrGatewayUnavailable(err)
	}

	s.metrics.IncInitiation("success")
	s.log.Info().
		Str("transaction_id", tx.ID.String()).
		Str("merchant_id", merchant.ID.String()).
		Str("amount", amount.StringFixed(2)).
		Str("gateway_order_id", redirect.GatewayOrderID).
		Msg("top-up initiated")

	return &ports.TopUpInitiation{
		TransactionID: tx.ID,
		RedirectURL:   redirect.RedirectURL,
	}, nil
}

// ReconcileForMerchant is Reconcile scoped to the merchant that owns the
// transaction. A foreign transaction is reported as not found.
func (s *TopUpServiceImpl) ReconcileForMerchant(ctx context.Context, merchantID, transactionID uuid.UUID) (*domain.ReconcileResult, error) {
	tx, err := s.walletTxRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet transaction: %w", err))
	}
	if tx == nil || tx.MerchantID != merchantID {
		return nil, apperror.ErrNotFound("Transaction")
	}
	return s.reconcile(ctx, tx)
}

// Reconcile drives a top-up to the state the gateway reports. Terminal
// transactions are never transitioned again; a completed top-up whose credit
// was not applied gets it applied here.
func (s *TopUpServiceImpl) Reconcile(ctx context.Context, transactionID uuid.UUID) (*domain.ReconcileResult, error) {
	cacheKey := domain.BuildReconcileCacheKey(transactionID)
	cached, err := s.cache.Get(ctx, cacheKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", cacheKey).Msg("reconcile cache lookup failed, falling through to DB")
	}
	if cached != nil {
		var res domain.ReconcileResult
		if err := json.Unmarshal(cached, &res); err == nil && res.Status.IsTerminal() {
			s.metrics.IncReconcile("cached")
			return &res, nil
		}
	}

	tx, err := s.walletTxRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet transaction: %w", err))
	}
	if tx == nil {
		return nil, apperror.ErrNotFound("Transaction")
	}
	return s.reconcile(ctx, tx)
}

func (s *TopUpServiceImpl) reconcile(ctx context.Context, tx *domain.WalletTransaction) (*domain.ReconcileResult, error) {
	switch tx.Status {
	case domain.WalletTxStatusCompleted:
		if tx.NeedsCredit() {
			if err := s.applyCredit(ctx, tx); err != nil {
				return nil, err
			}
		}
		s.metrics.IncReconcile("already_completed")
		return s.finish(ctx, tx, msgAlreadyCompleted), nil
	case domain.WalletTxStatusFailed, domain.WalletTxStatusRefunded:
		s.metrics.IncReconcile("already_" + string(tx.Status))
		msg := tx.Description
		if msg == "" {
			msg = msgPaymentFailed
		}
		return s.finish(ctx, tx, msg), nil
	}

	gwCtx, cancel := withTimeout(ctx, s.cfg.StatusTimeout)
	defer cancel()

	status, err := s.gateway.GetStatus(gwCtx, tx.CorrelationID())
	if err != nil {
		s.metrics.IncReconcile("gateway_error")
		s.log.Warn().Err(err).
			Str("transaction_id", tx.ID.String()).
			Msg("gateway status check failed, leaving top-up pending")
		return nil, apperror.ErrGatewayUnavailable(err)
	}

	switch status.State {
	case domain.GatewayStateCompleted:
		return s.complete(ctx, tx, status)
	case domain.GatewayStateFailed:
		return s.fail(ctx, tx, status)
	default:
		s.metrics.IncReconcile("pending")
		return pendingResult(tx, msgPaymentPending), nil
	}
}

func (s *TopUpServiceImpl) complete(ctx context.Context, tx *domain.WalletTransaction, status *ports.GatewayStatus) (*domain.ReconcileResult, error) {
	if expected := money.ToMinorUnits(tx.Amount); status.AmountMinor != 0 && status.AmountMinor != expected {
		s.metrics.IncReconcile("amount_mismatch")
		s.log.Error().
			Str("transaction_id", tx.ID.String()).
			Int64("expected_paise", expected).
			Int64("gateway_paise", status.AmountMinor).
			Msg("gateway amount does not match top-up, holding for manual review")
		return pendingResult(tx, fmt.Sprintf(
			"Gateway reported %s for a %s top-up, held for manual review",
			money.FromMinorUnits(status.AmountMinor).StringFixed(2), tx.Amount.StringFixed(2),
		)), nil
	}

	won, err := s.walletTxRepo.MarkCompleted(ctx, tx.ID, status.ExternalTransactionID, status.RawPayload)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark top-up completed: %w", err))
	}

	current := tx
	if won {
		current.Status = domain.WalletTxStatusCompleted
		if status.ExternalTransactionID != "" {
			ext := status.ExternalTransactionID
			current.ExternalTransactionID = &ext
		}
		current.GatewayPayload = status.RawPayload
	} else {
		// A concurrent reconcile finalized it first.
		current, err = s.reload(ctx, tx.ID)
		if err != nil {
			return nil, err
		}
		if !current.IsTerminal() {
			return pendingResult(current, msgPaymentPending), nil
		}
		if current.Status != domain.WalletTxStatusCompleted {
			return s.reconcile(ctx, current)
		}
	}

	if current.NeedsCredit() {
		if err := s.applyCredit(ctx, current); err != nil {
			return nil, err
		}
	}

	s.metrics.IncReconcile("completed")
	return s.finish(ctx, current, msgPaymentSuccessful), nil
}

func (s *TopUpServiceImpl) fail(ctx context.Context, tx *domain.WalletTransaction, status *ports.GatewayStatus) (*domain.ReconcileResult, error) {
	reason := status.Message
	if reason == "" {
		reason = msgPaymentFailed
	}
	desc := fmt.Sprintf("PhonePe payment failed: %s", reason)

	won, err := s.walletTxRepo.MarkFailed(ctx, tx.ID, desc, status.RawPayload)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark top-up failed: %w", err))
	}
	if !won {
		current, err := s.reload(ctx, tx.ID)
		if err != nil {
			return nil, err
		}
		if !current.IsTerminal() {
			return pendingResult(current, msgPaymentPending), nil
		}
		return s.reconcile(ctx, current)
	}

	tx.Status = domain.WalletTxStatusFailed
	tx.Description = desc
	tx.GatewayPayload = status.RawPayload

	s.metrics.IncReconcile("failed")
	s.log.Info().
		Str("transaction_id", tx.ID.String()).
		Str("reason", reason).
		Msg("top-up failed at gateway")
	return s.finish(ctx, tx, desc), nil
}

// applyCredit adds the top-up amount to the merchant balance. The claim on
// credit_applied and the balance increment commit together, so the credit
// lands exactly once however many reconcilers race.
func (s *TopUpServiceImpl) applyCredit(ctx context.Context, tx *domain.WalletTransaction) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	claimed, err := s.walletTxRepo.ClaimCredit(ctx, dbTx, tx.ID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("claim credit: %w", err))
	}
	if !claimed {
		tx.CreditApplied = true
		return nil
	}

	if err := s.merchantRepo.CreditBalance(ctx, dbTx, tx.MerchantID, tx.Amount); err != nil {
		return apperror.InternalError(fmt.Errorf("credit balance: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	tx.CreditApplied = true
	s.metrics.IncCredit()
	s.log.Info().
		Str("transaction_id", tx.ID.String()).
		Str("merchant_id", tx.MerchantID.String()).
		Str("amount", tx.Amount.StringFixed(2)).
		Msg("wallet credited")
	return nil
}

func (s *TopUpServiceImpl) reload(ctx context.Context, id uuid.UUID) (*domain.WalletTransaction, error) {
	tx, err := s.walletTxRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("reload wallet transaction: %w", err))
	}
	if tx == nil {
		return nil, apperror.ErrNotFound("Transaction")
	}
	return tx, nil
}

// finish builds a terminal result and caches it (best-effort).
func (s *TopUpServiceImpl) finish(ctx context.Context, tx *domain.WalletTransaction, message string) *domain.ReconcileResult {
	res := &domain.ReconcileResult{
		TransactionID: tx.ID,
		Status:        tx.Status,
		Message:       message,
		Transaction:   tx,
	}
	if s.cfg.CacheTTL <= 0 || tx.NeedsCredit() {
		return res
	}

	raw, err := json.Marshal(res)
	if err != nil {
		return res
	}
	key := domain.BuildReconcileCacheKey(tx.ID)
	if err := s.cache.Set(ctx, key, raw, s.cfg.CacheTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache reconcile result in redis")
	}
	return res
}

func pendingResult(tx *domain.WalletTransaction, message string) *domain.ReconcileResult {
	return &domain.ReconcileResult{
		TransactionID: tx.ID,
		Status:        domain.WalletTxStatusPending,
		Message:       message,
		Transaction:   tx,
	}
}

func (s *TopUpServiceImpl) redirectURL(id uuid.UUID) string {
	base := strings.TrimRight(s.cfg.RedirectBaseURL, "/")
	q := url.Values{}
	q.Set("transactionId", id.String())
	return base + verifyPath + "?" + q.Encode()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
