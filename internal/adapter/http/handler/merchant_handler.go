package handler

import (
	"strconv"

	"merchant-wallet/internal/adapter/http/dto"
	"merchant-wallet/internal/adapter/http/middleware"
	"merchant-wallet/internal/core/domain"
	"merchant-wallet/internal/core/ports"
	"merchant-wallet/pkg/apperror"
	"merchant-wallet/pkg/money"
	"merchant-wallet/pkg/pagination"
	"merchant-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MerchantHandler handles agent and admin merchant management endpoints.
type MerchantHandler struct {
	merchantSvc ports.MerchantService
}

// NewMerchantHandler creates a new MerchantHandler.
func NewMerchantHandler(merchantSvc ports.MerchantService) *MerchantHandler {
	return &MerchantHandler{merchantSvc: merchantSvc}
}

// Onboard handles POST /api/v1/agent/merchants.
func (h *MerchantHandler) Onboard(c *gin.Context) {
	agentID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.OnboardMerchantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	deposit := decimal.Zero
	if req.DepositAmount != "" {
		d, err := money.Parse(req.DepositAmount.String())
		if err != nil {
			response.Error(c, apperror.ErrInvalidAmount())
			return
		}
		deposit = d
	}

	result, err := h.merchantSvc.Onboard(c.Request.Context(), ports.OnboardRequest{
		AgentID:           agentID,
		OwnerName:         req.OwnerName,
		Email:             req.Email,
		Phone:             req.Phone,
		BusinessName:      req.BusinessName,
		BusinessType:      req.BusinessType,
		Address:           req.Address,
		Mode:              domain.MerchantMode(req.Mode),
		BankAccountName:   req.BankAccountName,
		BankAccountNumber: req.BankAccountNumber,
		BankIFSC:          req.BankIFSC,
		DepositAmount:     deposit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, result.Merchant.ID)
	response.Created(c, dto.OnboardMerchantResponse{
		Merchant: toMerchantResponse(result.Merchant),
		Credentials: dto.Credentials{
			Email:    result.Email,
			Password: result.Password,
		},
	})
}

// ListForAgent handles GET /api/v1/agent/merchants.
func (h *MerchantHandler) ListForAgent(c *gin.Context) {
	agentID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	page, pageSize, err := pageParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	params := ports.MerchantListParams{
		AgentID:  &agentID,
		Search:   c.Query("search"),
		Page:     page,
		PageSize: pageSize,
	}
	if s := c.Query("status"); s != "" && s != domain.FeedFilterAll {
		status := domain.MerchantStatus(s)
		params.Status = &status
	}

	merchants, total, err := h.merchantSvc.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.MerchantResponse, 0, len(merchants))
	for i := range merchants {
		items = append(items, toMerchantResponse(&merchants[i]))
	}
	p := pagination.Normalize(page, pageSize)
	response.Paginated(c, items, p.Page, p.PageSize, total)
}

// GetForAgent handles GET /api/v1/agent/merchants/:id.
func (h *MerchantHandler) GetForAgent(c *gin.Context) {
	agentID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	merchantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrNotFound("Merchant"))
		return
	}

	merchant, err := h.merchantSvc.GetForAgent(c.Request.Context(), agentID, merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toMerchantResponse(merchant))
}

// Get handles GET /api/v1/admin/merchants/:id.
func (h *MerchantHandler) Get(c *gin.Context) {
	merchantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrNotFound("Merchant"))
		return
	}

	merchant, err := h.merchantSvc.Get(c.Request.Context(), merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toMerchantResponse(merchant))
}

// UpdateStatus handles PATCH /api/v1/admin/merchants/:id/status.
func (h *MerchantHandler) UpdateStatus(c *gin.Context) {
	merchantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrNotFound("Merchant"))
		return
	}

	var req dto.UpdateMerchantStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	merchant, err := h.merchantSvc.UpdateStatus(c.Request.Context(), merchantID, domain.MerchantStatus(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toMerchantResponse(merchant))
}

// pageParams reads page and pageSize. Missing values default to 1 and 20;
// malformed values are a validation error.
func pageParams(c *gin.Context) (int, int, error) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		return 0, 0, apperror.Validation("page must be an integer")
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if err != nil {
		return 0, 0, apperror.Validation("pageSize must be an integer")
	}
	return page, pageSize, nil
}
