package service

import (
	"context"
	"fmt"
	"sort"

	"merchant-wallet/internal/core/domain"
	"merchant-wallet/internal/core/ports"
	"merchant-wallet/pkg/apperror"
	"merchant-wallet/pkg/pagination"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// feedService implements ports.FeedService.
//
// With type "all" the ledger and wallet families are paged independently
// with the same offset and limit, then merged by time. A page can therefore
// hold up to twice pageSize rows and is not a globally exact top-N across
// both families.
type feedService struct {
	ledgerRepo   ports.LedgerRepository
	walletTxRepo ports.WalletTransactionRepository
}

// NewFeedService creates a new merchant transaction feed service.
func NewFeedService(
	ledgerRepo ports.LedgerRepository,
	walletTxRepo ports.WalletTransactionRepository,
) ports.FeedService {
	return &feedService{
		ledgerRepo:   ledgerRepo,
		walletTxRepo: walletTxRepo,
	}
}

// ListTransactions returns one page of the merged merchant feed, newest
// first, and the combined row count of the selected families.
func (s *feedService) ListTransactions(ctx context.Context, merchantID uuid.UUID, filter domain.FeedFilter) ([]domain.FeedRecord, int64, error) {
	if filter.Page < 1 {
		return nil, 0, apperror.Validation("page must be at least 1")
	}
	if filter.PageSize < 1 {
		return nil, 0, apperror.Validation("pageSize must be greater than 0")
	}
	filter = filter.Normalize()
	if err := filter.Validate(); err != nil {
		return nil, 0, apperror.Validation(err.Error())
	}

	p := pagination.Normalize(filter.Page, filter.PageSize)
	base := ports.FeedQuery{
		MerchantID: merchantID,
		Search:     filter.Search,
		Status:     filter.StatusFilter(),
		Offset:     p.Offset(),
		Limit:      p.Limit(),
	}

	var (
		ledger      []domain.LedgerTransaction
		wallet      []domain.WalletTransaction
		ledgerTotal int64
		walletTotal int64
	)

	g, gctx := errgroup.WithContext(ctx)
	if filter.IncludesLedger() {
		q := base
		q.LedgerType = filter.LedgerType()
		g.Go(func() error {
			var err error
			ledger, ledgerTotal, err = s.ledgerRepo.List(gctx, q)
			if err != nil {
				return fmt.Errorf("list ledger transactions: %w", err)
			}
			return nil
		})
	}
	if filter.IncludesWallet() {
		g.Go(func() error {
			var err error
			wallet, walletTotal, err = s.walletTxRepo.List(gctx, base)
			if err != nil {
				return fmt.Errorf("list wallet transactions: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, apperror.InternalError(err)
	}

	records := make([]domain.FeedRecord, 0, len(ledger)+len(wallet))
	for i := range ledger {
		records = append(records, domain.FeedFromLedger(&ledger[i]))
	}
	for i := range wallet {
		records = append(records, domain.FeedFromWalletTx(&wallet[i]))
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return records, ledgerTotal + walletTotal, nil
}
