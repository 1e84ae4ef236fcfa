package handler

import (
	"merchant-wallet/internal/adapter/http/dto"
	"merchant-wallet/internal/adapter/http/middleware"
	"merchant-wallet/internal/core/domain"
	"merchant-wallet/internal/core/ports"
	"merchant-wallet/pkg/apperror"
	"merchant-wallet/pkg/pagination"
	"merchant-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// DashboardHandler handles the agent stats and merchant transaction feed.
type DashboardHandler struct {
	merchantSvc ports.MerchantService
	feedSvc     ports.FeedService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(merchantSvc ports.MerchantService, feedSvc ports.FeedService) *DashboardHandler {
	return &DashboardHandler{merchantSvc: merchantSvc, feedSvc: feedSvc}
}

// AgentStats handles GET /api/v1/agent/dashboard/stats.
func (h *DashboardHandler) AgentStats(c *gin.Context) {
	agentID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	stats, err := h.merchantSvc.AgentStats(c.Request.Context(), agentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.AgentStatsResponse{
		TotalMerchants:    stats.TotalMerchants,
		PendingMerchants:  stats.PendingMerchants,
		TotalDeposits:     stats.TotalDeposits.StringFixed(2),
		MonthlyCollection: stats.MonthlyCollection.StringFixed(2),
	})
}

// ListTransactions handles GET /api/v1/merchant/transactions.
func (h *DashboardHandler) ListTransactions(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrForbidden())
		return
	}

	page, pageSize, err := pageParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	records, total, err := h.feedSvc.ListTransactions(c.Request.Context(), merchantID, domain.FeedFilter{
		Page:     page,
		PageSize: pageSize,
		Search:   c.Query("search"),
		Type:     c.Query("type"),
		Status:   c.Query("status"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.FeedRecordResponse, 0, len(records))
	for _, r := range records {
		items = append(items, toFeedRecordResponse(r))
	}
	p := pagination.Normalize(page, pageSize)
	response.Paginated(c, items, p.Page, p.PageSize, total)
}
