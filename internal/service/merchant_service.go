package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"merchant-wallet/internal/core/domain"
	"merchant-wallet/internal/core/ports"
	"merchant-wallet/pkg/apperror"
	"merchant-wallet/pkg/money"
	"merchant-wallet/pkg/pagination"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	generatedPasswordLength = 12
	passwordAlphabet        = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789@#$%"
)

type merchantService struct {
	userRepo     ports.UserRepository
	merchantRepo ports.MerchantRepository
	ledgerRepo   ports.LedgerRepository
	transactor   ports.DBTransactor
	hashSvc      ports.HashService
	encSvc       ports.EncryptionService
	maturity     ports.MaturityService
	lockMonths   int
	log          zerolog.Logger
	now          func() time.Time
}

// NewMerchantService creates a new merchant management service.
func NewMerchantService(
	userRepo ports.UserRepository,
	merchantRepo ports.MerchantRepository,
	ledgerRepo ports.LedgerRepository,
	transactor ports.DBTransactor,
	hashSvc ports.HashService,
	encSvc ports.EncryptionService,
	maturity ports.MaturityService,
	lockMonths int,
	log zerolog.Logger,
) ports.MerchantService {
	return &merchantService{
		userRepo:     userRepo,
		merchantRepo: merchantRepo,
		ledgerRepo:   ledgerRepo,
		transactor:   transactor,
		hashSvc:      hashSvc,
		encSvc:       encSvc,
		maturity:     maturity,
		lockMonths:   lockMonths,
		log:          log,
		now:          time.Now,
	}
}

// Onboard creates the merchant's login, the merchant record with its locked
// deposit, and for offline merchants the deposit ledger entry, all in one
// database transaction. The generated password is returned once.
func (s *merchantService) Onboard(ctx context.Context, req ports.OnboardRequest) (*ports.OnboardResult, error) {
	if req.DepositAmount.IsNegative() {
		return nil, apperror.Validation("deposit amount cannot be negative")
	}
	if !req.DepositAmount.IsZero() {
		if err := money.ValidatePositive(req.DepositAmount); err != nil {
			return nil, apperror.Validation(err.Error())
		}
	}
	if req.Mode != domain.MerchantModeOnline && req.Mode != domain.MerchantModeOffline {
		return nil, apperror.Validation("mode must be online or offline")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check email: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrUsernameExists()
	}

	password, err := generatePassword(generatedPasswordLength)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate password: %w", err))
	}
	passwordHash, err := s.hashSvc.Hash(password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	var accountEnc string
	if req.BankAccountNumber != "" {
		accountEnc, err = s.encSvc.Encrypt(req.BankAccountNumber)
		if err != nil {
			return nil, apperror.ErrEncryptionFailure(fmt.Errorf("encrypt account number: %w", err))
		}
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Name:         req.OwnerName,
		Email:        email,
		Phone:        req.Phone,
		PasswordHash: passwordHash,
		Role:         domain.RoleMerchant,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	wallet := domain.Wallet{Balance: decimal.Zero, LockedAmount: req.DepositAmount}
	if req.DepositAmount.IsPositive() {
		maturity := domain.MaturityFrom(now, s.lockMonths)
		wallet.MaturityDate = &maturity
	}

	merchant := &domain.Merchant{
		ID:           uuid.New(),
		UserID:       user.ID,
		AgentID:      req.AgentID,
		BusinessName: req.BusinessName,
		BusinessType: req.BusinessType,
		Address:      req.Address,
		Mode:         req.Mode,
		Status:       domain.MerchantStatusPending,
		Bank: domain.BankDetails{
			AccountName:      req.BankAccountName,
			AccountNumberEnc: accountEnc,
			IFSC:             strings.ToUpper(req.BankIFSC),
		},
		Wallet:    wallet,
		CreatedAt: now,
		UpdatedAt: now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.userRepo.Create(ctx, dbTx, user); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create user: %w", err))
	}
	if err := s.merchantRepo.Create(ctx, dbTx, merchant); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create merchant: %w", err))
	}

	if merchant.Mode == domain.MerchantModeOffline && req.DepositAmount.IsPositive() {
		agentID := req.AgentID
		entry := &domain.LedgerTransaction{
			ID:          uuid.New(),
			MerchantID:  &merchant.ID,
			AgentID:     &agentID,
			Type:        domain.LedgerTypeDeposit,
			Amount:      req.DepositAmount,
			Status:      domain.LedgerStatusCompleted,
			Description: fmt.Sprintf("Initial offline registration deposit for %d months", s.lockMonths),
			Reference:   "DEP-" + strings.ToUpper(merchant.ID.String()[:8]),
			CreatedAt:   now,
		}
		if err := s.ledgerRepo.Create(ctx, dbTx, entry); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create deposit entry: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("merchant_id", merchant.ID.String()).
		Str("agent_id", req.AgentID.String()).
		Str("locked_amount", req.DepositAmount.StringFixed(2)).
		Msg("merchant onboarded")

	return &ports.OnboardResult{
		Merchant: merchant,
		UserID:   user.ID,
		Email:    email,
		Password: password,
	}, nil
}

// GetForAgent fetches a merchant owned by agentID. A merchant belonging to
// another agent is reported as not found.
func (s *merchantService) GetForAgent(ctx context.Context, agentID, merchantID uuid.UUID) (*domain.Merchant, error) {
	merchant, err := s.load(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if merchant.AgentID != agentID {
		return nil, apperror.ErrNotFound("Merchant")
	}
	return s.withMaskedAccount(s.maturity.CheckAndUnlock(ctx, merchant)), nil
}

func (s *merchantService) Get(ctx context.Context, merchantID uuid.UUID) (*domain.Merchant, error) {
	merchant, err := s.load(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	return s.withMaskedAccount(s.maturity.CheckAndUnlock(ctx, merchant)), nil
}

// withMaskedAccount decrypts the stored account number and exposes only its
// last four digits. A record that fails to decrypt is still returned.
func (s *merchantService) withMaskedAccount(m *domain.Merchant) *domain.Merchant {
	if m.Bank.AccountNumberEnc == "" {
		return m
	}
	plain, err := s.encSvc.Decrypt(m.Bank.AccountNumberEnc)
	if err != nil {
		s.log.Error().Err(err).Str("merchant_id", m.ID.String()).Msg("bank account number failed to decrypt")
		return m
	}
	m.Bank.AccountNumberMasked = domain.MaskAccountNumber(plain)
	return m
}

func (s *merchantService) List(ctx context.Context, params ports.MerchantListParams) ([]domain.Merchant, int64, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, 0, apperror.Validation("invalid status filter")
	}
	p := pagination.Normalize(params.Page, params.PageSize)
	params.Page, params.PageSize = p.Page, p.PageSize

	merchants, total, err := s.merchantRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list merchants: %w", err))
	}
	for i := range merchants {
		if out := s.maturity.CheckAndUnlock(ctx, &merchants[i]); out != nil {
			merchants[i] = *out
		}
	}
	return merchants, total, nil
}

func (s *merchantService) UpdateStatus(ctx context.Context, merchantID uuid.UUID, status domain.MerchantStatus) (*domain.Merchant, error) {
	if !status.IsValid() || status == domain.MerchantStatusPending {
		return nil, apperror.Validation("status must be approved or rejected")
	}
	merchant, err := s.merchantRepo.UpdateStatus(ctx, merchantID, status)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update merchant status: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("Merchant")
	}

	s.log.Info().
		Str("merchant_id", merchantID.String()).
		Str("status", string(status)).
		Msg("merchant status updated")
	return s.withMaskedAccount(s.maturity.CheckAndUnlock(ctx, merchant)), nil
}

// GetWallet returns the merchant's wallet after releasing any matured deposit.
func (s *merchantService) GetWallet(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error) {
	merchant, err := s.Get(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	w := merchant.Wallet
	return &w, nil
}

// AgentStats runs the four dashboard aggregates concurrently.
func (s *merchantService) AgentStats(ctx context.Context, agentID uuid.UUID) (*ports.AgentStats, error) {
	now := s.now().UTC()
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	pending := domain.MerchantStatusPending

	stats := &ports.AgentStats{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.merchantRepo.Count(gctx, agentID, nil)
		stats.TotalMerchants = n
		return err
	})
	g.Go(func() error {
		n, err := s.merchantRepo.Count(gctx, agentID, &pending)
		stats.PendingMerchants = n
		return err
	})
	g.Go(func() error {
		sum, err := s.ledgerRepo.SumByAgent(gctx, agentID, domain.LedgerTypeDeposit, nil)
		stats.TotalDeposits = sum
		return err
	})
	g.Go(func() error {
		sum, err := s.ledgerRepo.SumByAgent(gctx, agentID, domain.LedgerTypeDeposit, &startOfMonth)
		stats.MonthlyCollection = sum
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("agent stats: %w", err))
	}
	return stats, nil
}

func (s *merchantService) load(ctx context.Context, merchantID uuid.UUID) (*domain.Merchant, error) {
	merchant, err := s.merchantRepo.GetByID(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get merchant: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("Merchant")
	}
	return merchant, nil
}

func generatePassword(length int) (string, error) {
	limit := big.NewInt(int64(len(passwordAlphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = passwordAlphabet[n.Int64()]
	}
	return string(b), nil
}
