package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/service"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/response"
)

// PaymentHandler exposes the settlement write path and payment reads.
type PaymentHandler struct {
	settlements *service.SettlementService
}

// NewPaymentHandler creates a new handler.
func NewPaymentHandler(settlements *service.SettlementService) *PaymentHandler {
	return &PaymentHandler{settlements: settlements}
}

// Settle godoc
// @Summary Settle payment
// @Description Apply a confirmed payment event against a billing record. Replays of the same payment_intent_ref return the recorded outcome.
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body dto.SettleRequest true "Settlement payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /payments/settle [post]
func (h *PaymentHandler) Settle(c *gin.Context) {
	var req dto.SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid settlement payload"))
		return
	}

	result, err := h.settlements.Settle(c.Request.Context(), req, currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Get godoc
// @Summary Get payment
// @Description Fetch one payment by ID
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	payment, err := h.settlements.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// AttachInvoice godoc
// @Summary Attach invoice
// @Description Record the external invoice reference issued for a payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body dto.AttachInvoiceRequest true "Invoice payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id}/invoice [post]
func (h *PaymentHandler) AttachInvoice(c *gin.Context) {
	var req dto.AttachInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid invoice payload"))
		return
	}

	payment, err := h.settlements.AttachInvoice(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}
