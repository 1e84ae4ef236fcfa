package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"merchant-wallet/internal/core/domain"
	"merchant-wallet/internal/core/ports"
	"merchant-wallet/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type merchantTestDeps struct {
	svc          *merchantService
	userRepo     *mocks.MockUserRepository
	merchantRepo *mocks.MockMerchantRepository
	ledgerRepo   *mocks.MockLedgerRepository
	transactor   *mocks.MockDBTransactor
	hashSvc      *mocks.MockHashService
	encSvc       *mocks.MockEncryptionService
	maturity     *mocks.MockMaturityService
}

var merchantNow = time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

func setupMerchantService(t *testing.T) *merchantTestDeps {
	ctrl := gomock.NewController(t)
	d := &merchantTestDeps{
		userRepo:     mocks.NewMockUserRepository(ctrl),
		merchantRepo: mocks.NewMockMerchantRepository(ctrl),
		ledgerRepo:   mocks.NewMockLedgerRepository(ctrl),
		transactor:   mocks.NewMockDBTransactor(ctrl),
		hashSvc:      mocks.NewMockHashService(ctrl),
		encSvc:       mocks.NewMockEncryptionService(ctrl),
		maturity:     mocks.NewMockMaturityService(ctrl),
	}
	d.svc = NewMerchantService(
		d.userRepo, d.merchantRepo, d.ledgerRepo, d.transactor,
		d.hashSvc, d.encSvc, d.maturity, 3, newTestLogger(),
	).(*merchantService)
	d.svc.now = func() time.Time { return merchantNow }
	return d
}

func validOnboardRequest() ports.OnboardRequest {
	return ports.OnboardRequest{
		AgentID:           uuid.New(),
		OwnerName:         "Priya Sharma",
		Email:             "  Priya@Example.COM ",
		Phone:             "9876543210",
		BusinessName:      "Sharma Stores",
		BusinessType:      "retail",
		Address:           "12 MG Road, Pune",
		Mode:              domain.MerchantModeOffline,
		BankAccountName:   "Priya Sharma",
		BankAccountNumber: "50100123456789",
		BankIFSC:          "hdfc0001234",
		DepositAmount:     decimal.RequireFromString("5000.00"),
	}
}

// ==================== Onboard ====================

func TestMerchantService_Onboard_OfflineWithDeposit(t *testing.T) {
	d := setupMerchantService(t)
	req := validOnboardRequest()
	dbTx := &mockTx{}

	var createdUser *domain.User
	var createdMerchant *domain.Merchant
	var entry *domain.LedgerTransaction

	d.userRepo.EXPECT().GetByEmail(gomock.Any(), "priya@example.com").Return(nil, nil)
	d.hashSvc.EXPECT().Hash(gomock.Any()).Return("argon2id-hash", nil)
	d.encSvc.EXPECT().Encrypt("50100123456789").Return("ciphertext", nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(dbTx, nil)
	d.userRepo.EXPECT().Create(gomock.Any(), dbTx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ any, u *domain.User) error { createdUser = u; return nil },
	)
	d.merchantRepo.EXPECT().Create(gomock.Any(), dbTx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ any, m *domain.Merchant) error { createdMerchant = m; return nil },
	)
	d.ledgerRepo.EXPECT().Create(gomock.Any(), dbTx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ any, e *domain.LedgerTransaction) error { entry = e; return nil },
	)

	res, err := d.svc.Onboard(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, dbTx.committed)

	assert.Equal(t, "priya@example.com", res.Email)
	assert.Len(t, res.Password, generatedPasswordLength)
	assert.Equal(t, createdUser.ID, res.UserID)

	assert.Equal(t, domain.RoleMerchant, createdUser.Role)
	assert.Equal(t, "argon2id-hash", createdUser.PasswordHash)

	assert.Equal(t, createdUser.ID, createdMerchant.UserID)
	assert.Equal(t, req.AgentID, createdMerchant.AgentID)
	assert.Equal(t, domain.MerchantStatusPending, createdMerchant.Status)
	assert.Equal(t, "HDFC0001234", createdMerchant.Bank.IFSC)
	assert.Equal(t, "ciphertext", createdMerchant.Bank.AccountNumberEnc)
	assert.True(t, createdMerchant.Wallet.Balance.IsZero())
	assert.True(t, createdMerchant.Wallet.LockedAmount.Equal(decimal.NewFromInt(5000)))
	require.NotNil(t, createdMerchant.Wallet.MaturityDate)
	assert.Equal(t, time.Date(2026, 6, 15, 9, 30, 0, 0, time.UTC), *createdMerchant.Wallet.MaturityDate)

	assert.Equal(t, domain.LedgerTypeDeposit, entry.Type)
	assert.Equal(t, domain.LedgerStatusCompleted, entry.Status)
	assert.Equal(t, "Initial offline registration deposit for 3 months", entry.Description)
	assert.Len(t, entry.Reference, len("DEP-")+8)
	assert.Equal(t, &createdMerchant.ID, entry.MerchantID)
}

func TestMerchantService_Onboard_OnlineWithoutDeposit(t *testing.T) {
	d := setupMerchantService(t)
	req := validOnboardRequest()
	req.Mode = domain.MerchantModeOnline
	req.DepositAmount = decimal.Zero
	req.BankAccountNumber = ""
	dbTx := &mockTx{}

	var createdMerchant *domain.Merchant
	d.userRepo.EXPECT().GetByEmail(gomock.Any(), gomock.Any()).Return(nil, nil)
	d.hashSvc.EXPECT().Hash(gomock.Any()).Return("hash", nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(dbTx, nil)
	d.userRepo.EXPECT().Create(gomock.Any(), dbTx, gomock.Any()).Return(nil)
	d.merchantRepo.EXPECT().Create(gomock.Any(), dbTx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ any, m *domain.Merchant) error { createdMerchant = m; return nil },
	)
	// No ledger entry and no encryption call.

	_, err := d.svc.Onboard(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, createdMerchant.Wallet.LockedAmount.IsZero())
	assert.Nil(t, createdMerchant.Wallet.MaturityDate)
	assert.True(t, createdMerchant.Wallet.IsConsistent())
}

func TestMerchantService_Onboard_OnlineDepositHasNoLedgerEntry(t *testing.T) {
	d := setupMerchantService(t)
	req := validOnboardRequest()
	req.Mode = domain.MerchantModeOnline
	dbTx := &mockTx{}

	d.userRepo.EXPECT().GetByEmail(gomock.Any(), gomock.Any()).Return(nil, nil)
	d.hashSvc.EXPECT().Hash(gomock.Any()).Return("hash", nil)
	d.encSvc.EXPECT().Encrypt(gomock.Any()).Return("enc", nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(dbTx, nil)
	d.userRepo.EXPECT().Create(gomock.Any(), dbTx, gomock.Any()).Return(nil)
	d.merchantRepo.EXPECT().Create(gomock.Any(), dbTx, gomock.Any()).Return(nil)

	res, err := d.svc.Onboard(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res.Merchant.Wallet.MaturityDate)
}

func TestMerchantService_Onboard_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ports.OnboardRequest)
	}{
		{"negative deposit", func(r *ports.OnboardRequest) { r.DepositAmount = decimal.NewFromInt(-1) }},
		{"sub-paise deposit", func(r *ports.OnboardRequest) { r.DepositAmount = decimal.RequireFromString("10.001") }},
		{"unknown mode", func(r *ports.OnboardRequest) { r.Mode = "hybrid" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupMerchantService(t)
			req := validOnboardRequest()
			tt.mutate(&req)
			_, err := d.svc.Onboard(context.Background(), req)
			assertAppError(t, err, "PAY_002")
		})
	}
}

func TestMerchantService_Onboard_EmailTaken(t *testing.T) {
	d := setupMerchantService(t)
	d.userRepo.EXPECT().GetByEmail(gomock.Any(), "priya@example.com").Return(&domain.User{ID: uuid.New()}, nil)

	_, err := d.svc.Onboard(context.Background(), validOnboardRequest())
	assertAppError(t, err, "AUTH_002")
}

func TestMerchantService_Onboard_EncryptionFailure(t *testing.T) {
	d := setupMerchantService(t)
	d.userRepo.EXPECT().GetByEmail(gomock.Any(), gomock.Any()).Return(nil, nil)
	d.hashSvc.EXPECT().Hash(gomock.Any()).Return("hash", nil)
	d.encSvc.EXPECT().Encrypt(gomock.Any()).Return("", errors.New("bad key"))

	_, err := d.svc.Onboard(context.Background(), validOnboardRequest())
	assertAppError(t, err, "SYS_003")
}

func TestMerchantService_Onboard_LedgerFailureRollsBack(t *testing.T) {
	d := setupMerchantService(t)
	dbTx := &mockTx{}

	d.userRepo.EXPECT().GetByEmail(gomock.Any(), gomock.Any()).Return(nil, nil)
	d.hashSvc.EXPECT().Hash(gomock.Any()).Return("hash", nil)
	d.encSvc.EXPECT().Encrypt(gomock.Any()).Return("enc", nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(dbTx, nil)
	d.userRepo.EXPECT().Create(gomock.Any(), dbTx, gomock.Any()).Return(nil)
	d.merchantRepo.EXPECT().Create(gomock.Any(), dbTx, gomock.Any()).Return(nil)
	d.ledgerRepo.EXPECT().Create(gomock.Any(), dbTx, gomock.Any()).Return(errors.New("constraint violation"))

	_, err := d.svc.Onboard(context.Background(), validOnboardRequest())
	assertAppError(t, err, "SYS_001")
	assert.False(t, dbTx.committed)
	assert.True(t, dbTx.rolledBack)
}

// ==================== Reads ====================

func TestMerchantService_GetForAgent_UnlocksOnRead(t *testing.T) {
	d := setupMerchantService(t)
	agentID := uuid.New()
	stored := &domain.Merchant{ID: uuid.New(), AgentID: agentID}
	unlocked := &domain.Merchant{ID: stored.ID, AgentID: agentID, Wallet: domain.Wallet{Balance: decimal.NewFromInt(5000)}}

	d.merchantRepo.EXPECT().GetByID(gomock.Any(), stored.ID).Return(stored, nil)
	d.maturity.EXPECT().CheckAndUnlock(gomock.Any(), stored).Return(unlocked)

	got, err := d.svc.GetForAgent(context.Background(), agentID, stored.ID)
	require.NoError(t, err)
	assert.Same(t, unlocked, got)
}

func TestMerchantService_Get_MasksAccountNumber(t *testing.T) {
	d := setupMerchantService(t)
	stored := &domain.Merchant{ID: uuid.New(), Bank: domain.BankDetails{AccountNumberEnc: "ciphertext", IFSC: "HDFC0001234"}}

	d.merchantRepo.EXPECT().GetByID(gomock.Any(), stored.ID).Return(stored, nil)
	d.maturity.EXPECT().CheckAndUnlock(gomock.Any(), stored).Return(stored)
	d.encSvc.EXPECT().Decrypt("ciphertext").Return("50100123456789", nil)

	got, err := d.svc.Get(context.Background(), stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "XXXXXXXXXX6789", got.Bank.AccountNumberMasked)
}

func TestMerchantService_Get_UndecryptableAccountStillReturned(t *testing.T) {
	d := setupMerchantService(t)
	stored := &domain.Merchant{ID: uuid.New(), Bank: domain.BankDetails{AccountNumberEnc: "rotated-key"}}

	d.merchantRepo.EXPECT().GetByID(gomock.Any(), stored.ID).Return(stored, nil)
	d.maturity.EXPECT().CheckAndUnlock(gomock.Any(), stored).Return(stored)
	d.encSvc.EXPECT().Decrypt("rotated-key").Return("", errors.New("cipher: message authentication failed"))

	got, err := d.svc.Get(context.Background(), stored.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Bank.AccountNumberMasked)
}

func TestMerchantService_GetForAgent_OtherAgent(t *testing.T) {
	d := setupMerchantService(t)
	stored := &domain.Merchant{ID: uuid.New(), AgentID: uuid.New()}
	d.merchantRepo.EXPECT().GetByID(gomock.Any(), stored.ID).Return(stored, nil)

	_, err := d.svc.GetForAgent(context.Background(), uuid.New(), stored.ID)
	assertAppError(t, err, "PAY_004")
}

func TestMerchantService_Get_NotFound(t *testing.T) {
	d := setupMerchantService(t)
	d.merchantRepo.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(nil, nil)

	_, err := d.svc.Get(context.Background(), uuid.New())
	assertAppError(t, err, "PAY_004")
}

func TestMerchantService_GetWallet(t *testing.T) {
	d := setupMerchantService(t)
	stored := &domain.Merchant{ID: uuid.New(), Wallet: domain.Wallet{Balance: decimal.NewFromInt(250)}}

	d.merchantRepo.EXPECT().GetByID(gomock.Any(), stored.ID).Return(stored, nil)
	d.maturity.EXPECT().CheckAndUnlock(gomock.Any(), stored).Return(stored)

	w, err := d.svc.GetWallet(context.Background(), stored.ID)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(250)))
}

func TestMerchantService_List_UnlocksEachRow(t *testing.T) {
	d := setupMerchantService(t)
	agentID := uuid.New()
	a := domain.Merchant{ID: uuid.New(), AgentID: agentID}
	b := domain.Merchant{ID: uuid.New(), AgentID: agentID}

	d.merchantRepo.EXPECT().List(gomock.Any(), ports.MerchantListParams{AgentID: &agentID, Page: 1, PageSize: 20}).
		Return([]domain.Merchant{a, b}, int64(2), nil)
	d.maturity.EXPECT().CheckAndUnlock(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, m *domain.Merchant) *domain.Merchant {
			out := *m
			out.BusinessName = "checked"
			return &out
		},
	).Times(2)

	merchants, total, err := d.svc.List(context.Background(), ports.MerchantListParams{AgentID: &agentID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, m := range merchants {
		assert.Equal(t, "checked", m.BusinessName)
	}
}

func TestMerchantService_List_InvalidStatus(t *testing.T) {
	d := setupMerchantService(t)
	bogus := domain.MerchantStatus("archived")

	_, _, err := d.svc.List(context.Background(), ports.MerchantListParams{Status: &bogus})
	assertAppError(t, err, "PAY_002")
}

// ==================== Admin ====================

func TestMerchantService_UpdateStatus(t *testing.T) {
	d := setupMerchantService(t)
	id := uuid.New()
	stored := &domain.Merchant{ID: id, Status: domain.MerchantStatusApproved}
	d.merchantRepo.EXPECT().UpdateStatus(gomock.Any(), id, domain.MerchantStatusApproved).Return(stored, nil)
	d.maturity.EXPECT().CheckAndUnlock(gomock.Any(), stored).Return(stored)

	m, err := d.svc.UpdateStatus(context.Background(), id, domain.MerchantStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.MerchantStatusApproved, m.Status)
}

func TestMerchantService_UpdateStatus_UnlocksMaturedDeposit(t *testing.T) {
	d := setupMerchantService(t)
	id := uuid.New()
	matured := merchantNow.Add(-24 * time.Hour)
	stored := &domain.Merchant{
		ID:     id,
		Status: domain.MerchantStatusApproved,
		Wallet: domain.Wallet{LockedAmount: decimal.NewFromInt(5000), MaturityDate: &matured},
		Bank:   domain.BankDetails{AccountNumberEnc: "ciphertext"},
	}
	unlocked := &domain.Merchant{
		ID:     id,
		Status: domain.MerchantStatusApproved,
		Wallet: domain.Wallet{Balance: decimal.NewFromInt(5000)},
		Bank:   domain.BankDetails{AccountNumberEnc: "ciphertext"},
	}

	d.merchantRepo.EXPECT().UpdateStatus(gomock.Any(), id, domain.MerchantStatusApproved).Return(stored, nil)
	d.maturity.EXPECT().CheckAndUnlock(gomock.Any(), stored).Return(unlocked)
	d.encSvc.EXPECT().Decrypt("ciphertext").Return("50100123456789", nil)

	m, err := d.svc.UpdateStatus(context.Background(), id, domain.MerchantStatusApproved)
	require.NoError(t, err)
	assert.True(t, m.Wallet.Balance.Equal(decimal.NewFromInt(5000)))
	assert.True(t, m.Wallet.LockedAmount.IsZero())
	assert.Equal(t, "XXXXXXXXXX6789", m.Bank.AccountNumberMasked)
}

func TestMerchantService_UpdateStatus_Invalid(t *testing.T) {
	for _, status := range []domain.MerchantStatus{domain.MerchantStatusPending, "suspended"} {
		t.Run(string(status), func(t *testing.T) {
			d := setupMerchantService(t)
			_, err := d.svc.UpdateStatus(context.Background(), uuid.New(), status)
			assertAppError(t, err, "PAY_002")
		})
	}
}

func TestMerchantService_UpdateStatus_NotFound(t *testing.T) {
	d := setupMerchantService(t)
	d.merchantRepo.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

	_, err := d.svc.UpdateStatus(context.Background(), uuid.New(), domain.MerchantStatusRejected)
	assertAppError(t, err, "PAY_004")
}

// ==================== Agent stats ====================

func TestMerchantService_AgentStats(t *testing.T) {
	d := setupMerchantService(t)
	agentID := uuid.New()
	pending := domain.MerchantStatusPending
	monthStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	d.merchantRepo.EXPECT().Count(gomock.Any(), agentID, gomock.Nil()).Return(int64(12), nil)
	d.merchantRepo.EXPECT().Count(gomock.Any(), agentID, &pending).Return(int64(3), nil)
	d.ledgerRepo.EXPECT().SumByAgent(gomock.Any(), agentID, domain.LedgerTypeDeposit, gomock.Nil()).
		Return(decimal.NewFromInt(60000), nil)
	d.ledgerRepo.EXPECT().SumByAgent(gomock.Any(), agentID, domain.LedgerTypeDeposit, &monthStart).
		Return(decimal.NewFromInt(15000), nil)

	stats, err := d.svc.AgentStats(context.Background(), agentID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), stats.TotalMerchants)
	assert.Equal(t, int64(3), stats.PendingMerchants)
	assert.True(t, stats.TotalDeposits.Equal(decimal.NewFromInt(60000)))
	assert.True(t, stats.MonthlyCollection.Equal(decimal.NewFromInt(15000)))
}

func TestMerchantService_AgentStats_Error(t *testing.T) {
	d := setupMerchantService(t)
	d.merchantRepo.EXPECT().Count(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(0), errors.New("timeout")).AnyTimes()
	d.ledgerRepo.EXPECT().SumByAgent(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(decimal.Zero, nil).AnyTimes()

	_, err := d.svc.AgentStats(context.Background(), uuid.New())
	assertAppError(t, err, "SYS_001")
}
