package dto

import "encoding/json"

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for a successful login.
type LoginResponse struct {
	Token      string  `json:"token"`
	ExpiresAt  int64   `json:"expires_at"` // Unix timestamp
	Role       string  `json:"role"`
	UserID     string  `json:"user_id"`
	MerchantID *string `json:"merchant_id,omitempty"`
}

// OnboardMerchantRequest is the request body for agent-led onboarding.
// Amounts are decimal rupees and may be sent as JSON numbers or strings.
type OnboardMerchantRequest struct {
	OwnerName         string      `json:"owner_name" binding:"required,min=2,max=100"`
	Email             string      `json:"email" binding:"required,email"`
	Phone             string      `json:"phone" binding:"required,in_phone"`
	BusinessName      string      `json:"business_name" binding:"required,min=2,max=150"`
	BusinessType      string      `json:"business_type" binding:"omitempty,max=50"`
	Address           string      `json:"address" binding:"omitempty,max=500"`
	Mode              string      `json:"mode" binding:"required,oneof=online offline"`
	BankAccountName   string      `json:"bank_account_name" binding:"omitempty,max=100"`
	BankAccountNumber string      `json:"bank_account_number" binding:"omitempty,numeric,min=9,max=18"`
	BankIFSC          string      `json:"bank_ifsc" binding:"omitempty,ifsc"`
	DepositAmount     json.Number `json:"deposit_amount"`
}

// Credentials are the generated merchant login, shown once.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OnboardMerchantResponse is returned after onboarding.
type OnboardMerchantResponse struct {
	Merchant    MerchantResponse `json:"merchant"`
	Credentials Credentials      `json:"credentials"`
}

// UpdateMerchantStatusRequest is the admin approval body.
type UpdateMerchantStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=approved rejected"`
}

// WalletResponse is the merchant wallet view.
type WalletResponse struct {
	Balance      string  `json:"balance"`
	LockedAmount string  `json:"locked_amount"`
	MaturityDate *string `json:"maturity_date"`
	Currency     string  `json:"currency"`
}

// MerchantResponse is the merchant view returned to agents and admins.
type MerchantResponse struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	AgentID      string         `json:"agent_id"`
	BusinessName string         `json:"business_name"`
	BusinessType string         `json:"business_type"`
	Address      string         `json:"address"`
	Mode         string         `json:"mode"`
	Status       string         `json:"status"`
	BankDetails  BankDetailsDTO `json:"bank_details"`
	Wallet       WalletResponse `json:"wallet"`
	CreatedAt    string         `json:"created_at"`
}

// BankDetailsDTO never carries the full account number.
type BankDetailsDTO struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number_masked,omitempty"`
	IFSC          string `json:"ifsc"`
	OnFile        bool   `json:"account_on_file"`
}

// TopUpInitiateRequest is the request body for starting a top-up.
type TopUpInitiateRequest struct {
	Amount json.Number `json:"amount" binding:"required"`
}

// TopUpInitiateResponse carries the gateway redirect.
type TopUpInitiateResponse struct {
	TransactionID string `json:"transaction_id"`
	RedirectURL   string `json:"redirect_url"`
}

// ReconcileResponse is the outcome of a verify call.
type ReconcileResponse struct {
	TransactionID string  `json:"transaction_id"`
	Status        string  `json:"status"`
	Message       string  `json:"message"`
	Amount        *string `json:"amount,omitempty"`
}

// FeedRecordResponse is one row of the merchant transaction feed.
type FeedRecordResponse struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Status      string `json:"status"`
	Description string `json:"description"`
	ReferenceID string `json:"reference_id"`
	CreatedAt   string `json:"created_at"`
}

// AgentStatsResponse is the agent dashboard summary.
type AgentStatsResponse struct {
	TotalMerchants    int64  `json:"total_merchants"`
	PendingMerchants  int64  `json:"pending_merchants"`
	TotalDeposits     string `json:"total_deposits"`
	MonthlyCollection string `json:"monthly_collection"`
}
