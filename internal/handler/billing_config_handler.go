package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/middleware"
	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/internal/service"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/response"
)

// BillingConfigHandler exposes policy authoring and the generation and sweep
// write operations keyed by policy.
type BillingConfigHandler struct {
	configs     *service.BillingConfigService
	obligations *service.ObligationService
	sweeper     *service.SweeperService
	reports     *service.ReportService
}

// NewBillingConfigHandler creates a new handler.
func NewBillingConfigHandler(configs *service.BillingConfigService, obligations *service.ObligationService, sweeper *service.SweeperService, reports *service.ReportService) *BillingConfigHandler {
	return &BillingConfigHandler{configs: configs, obligations: obligations, sweeper: sweeper, reports: reports}
}

// List godoc
// @Summary List billing configs
// @Description List billing policies with optional filters
// @Tags Billing
// @Produce json
// @Param school_id query string false "School ID"
// @Param cycle_id query string false "Cycle ID"
// @Param status query string false "Policy status"
// @Param scope query string false "Policy scope"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /billing-configs [get]
func (h *BillingConfigHandler) List(c *gin.Context) {
	filter := models.BillingConfigFilter{
		SchoolID: c.Query("school_id"),
		CycleID:  c.Query("cycle_id"),
	}
	if v := c.Query("status"); v != "" {
		status := models.BillingStatus(v)
		filter.Status = &status
	}
	if v := c.Query("scope"); v != "" {
		scope := models.BillingScope(v)
		filter.Scope = &scope
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	configs, pagination, err := h.configs.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, configs, pagination)
}

// Get godoc
// @Summary Get billing config
// @Description Fetch one billing policy by ID
// @Tags Billing
// @Produce json
// @Param id path string true "Billing config ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /billing-configs/{id} [get]
func (h *BillingConfigHandler) Get(c *gin.Context) {
	cfg, err := h.configs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// Create godoc
// @Summary Create billing config
// @Description Author a new billing policy
// @Tags Billing
// @Accept json
// @Produce json
// @Param payload body dto.CreateBillingConfigRequest true "Billing config payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /billing-configs [post]
func (h *BillingConfigHandler) Create(c *gin.Context) {
	var req dto.CreateBillingConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid billing config payload"))
		return
	}

	cfg, err := h.configs.Create(c.Request.Context(), req, currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cfg)
}

// Update godoc
// @Summary Update billing config
// @Description Edit an existing billing policy
// @Tags Billing
// @Accept json
// @Produce json
// @Param id path string true "Billing config ID"
// @Param payload body dto.UpdateBillingConfigRequest true "Billing config payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /billing-configs/{id} [put]
func (h *BillingConfigHandler) Update(c *gin.Context) {
	var req dto.UpdateBillingConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid billing config payload"))
		return
	}

	cfg, err := h.configs.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// Deactivate godoc
// @Summary Deactivate billing config
// @Description Retire a billing policy so future generation runs are no-ops
// @Tags Billing
// @Produce json
// @Param id path string true "Billing config ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /billing-configs/{id} [delete]
func (h *BillingConfigHandler) Deactivate(c *gin.Context) {
	if err := h.configs.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Generate godoc
// @Summary Generate obligations
// @Description Materialize billing records for every student the policy targets
// @Tags Billing
// @Produce json
// @Param id path string true "Billing config ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /billing-configs/{id}/generate [post]
func (h *BillingConfigHandler) Generate(c *gin.Context) {
	result, err := h.obligations.Generate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Sweep godoc
// @Summary Sweep overdue records
// @Description Transition stale pending records to overdue for an expired policy
// @Tags Billing
// @Produce json
// @Param id path string true "Billing config ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /billing-configs/{id}/sweep [post]
func (h *BillingConfigHandler) Sweep(c *gin.Context) {
	result, err := h.sweeper.Sweep(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Stats godoc
// @Summary Policy collection stats
// @Description Collection progress for one billing policy
// @Tags Reports
// @Produce json
// @Param id path string true "Billing config ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /billing-configs/{id}/stats [get]
func (h *BillingConfigHandler) Stats(c *gin.Context) {
	stats, err := h.reports.PolicyStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

func currentUserID(c *gin.Context) string {
	if claims, ok := c.Get(middleware.ContextUserKey); ok {
		if jwtClaims, ok := claims.(*models.JWTClaims); ok {
			return jwtClaims.UserID
		}
	}
	return ""
}
