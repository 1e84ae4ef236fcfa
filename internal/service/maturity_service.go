package service

import (
	"context"
	"time"

	"merchant-wallet/internal/core/domain"
	"merchant-wallet/internal/core/ports"
	"merchant-wallet/pkg/metrics"

	"github.com/rs/zerolog"
)

// MaturityServiceImpl implements ports.MaturityService. It is called on every
// read that reports a merchant's balance, so matured deposits are released
// without a background job.
type MaturityServiceImpl struct {
	merchantRepo ports.MerchantRepository
	metrics      *metrics.WalletMetrics
	log          zerolog.Logger
	now          func() time.Time
}

// NewMaturityService creates a new MaturityServiceImpl.
func NewMaturityService(
	merchantRepo ports.MerchantRepository,
	m *metrics.WalletMetrics,
	log zerolog.Logger,
) *MaturityServiceImpl {
	return &MaturityServiceImpl{
		merchantRepo: merchantRepo,
		metrics:      m,
		log:          log,
		now:          time.Now,
	}
}

// CheckAndUnlock moves a matured locked deposit into the spendable balance.
// Failures are logged and the merchant is returned as read.
func (s *MaturityServiceImpl) CheckAndUnlock(ctx context.Context, merchant *domain.Merchant) *domain.Merchant {
	if merchant == nil {
		return nil
	}

	now := s.now().UTC()
	if !merchant.Wallet.IsMatured(now) {
		s.metrics.IncUnlock("noop")
		return merchant
	}

	updated, err := s.merchantRepo.UnlockMatured(ctx, merchant.ID, now)
	if err != nil {
		s.metrics.IncUnlock("error")
		s.log.Warn().Err(err).
			Str("merchant_id", merchant.ID.String()).
			Msg("maturity unlock failed, serving pre-unlock wallet")
		return merchant
	}

	if updated == nil {
		// Another reader released the deposit first.
		s.metrics.IncUnlock("noop")
		fresh, err := s.merchantRepo.GetByID(ctx, merchant.ID)
		if err != nil || fresh == nil {
			return merchant
		}
		return fresh
	}

	s.metrics.IncUnlock("unlocked")
	s.log.Info().
		Str("merchant_id", merchant.ID.String()).
		Str("released", merchant.Wallet.LockedAmount.StringFixed(2)).
		Str("balance", updated.Wallet.Balance.StringFixed(2)).
		Msg("locked deposit matured")
	return updated
}
