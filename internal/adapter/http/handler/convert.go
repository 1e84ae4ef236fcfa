package handler

import (
	"time"

	"merchant-wallet/internal/adapter/http/dto"
	"merchant-wallet/internal/core/domain"
	"merchant-wallet/pkg/money"
)

func toWalletResponse(w domain.Wallet) dto.WalletResponse {
	resp := dto.WalletResponse{
		Balance:      w.Balance.StringFixed(2),
		LockedAmount: w.LockedAmount.StringFixed(2),
		Currency:     money.Currency,
	}
	if w.MaturityDate != nil {
		s := w.MaturityDate.UTC().Format(time.RFC3339)
		resp.MaturityDate = &s
	}
	return resp
}

func toMerchantResponse(m *domain.Merchant) dto.MerchantResponse {
	return dto.MerchantResponse{
		ID:           m.ID.String(),
		UserID:       m.UserID.String(),
		AgentID:      m.AgentID.String(),
		BusinessName: m.BusinessName,
		BusinessType: m.BusinessType,
		Address:      m.Address,
		Mode:         string(m.Mode),
		Status:       string(m.Status),
		BankDetails: dto.BankDetailsDTO{
			AccountName:   m.Bank.AccountName,
			AccountNumber: m.Bank.AccountNumberMasked,
			IFSC:          m.Bank.IFSC,
			OnFile:        m.Bank.AccountNumberEnc != "",
		},
		Wallet:    toWalletResponse(m.Wallet),
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toFeedRecordResponse(r domain.FeedRecord) dto.FeedRecordResponse {
	return dto.FeedRecordResponse{
		ID:          r.ID.String(),
		Type:        r.Type,
		Amount:      r.Amount.StringFixed(2),
		Status:      r.Status,
		Description: r.Description,
		ReferenceID: r.ReferenceID,
		CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toReconcileResponse(res *domain.ReconcileResult) dto.ReconcileResponse {
	resp := dto.ReconcileResponse{
		TransactionID: res.TransactionID.String(),
		Status:        string(res.Status),
		Message:       res.Message,
	}
	if res.Transaction != nil {
		amt := res.Transaction.Amount.StringFixed(2)
		resp.Amount = &amt
	}
	return resp
}
