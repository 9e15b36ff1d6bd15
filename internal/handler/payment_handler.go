package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-admissions-api/internal/service"
	appErrors "github.com/noah-isme/uni-admissions-api/pkg/errors"
	"github.com/noah-isme/uni-admissions-api/pkg/response"
)

// PaymentHandler exposes tuition payment endpoints.
type PaymentHandler struct {
	payments     *service.PaymentService
	offers       *service.OfferService
	applications *service.ApplicationService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService, offers *service.OfferService, applications *service.ApplicationService) *PaymentHandler {
	return &PaymentHandler{payments: payments, offers: offers, applications: applications}
}

// Submit godoc
// @Summary Record a tuition payment against an offer
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Offer ID"
// @Param payload body service.SubmitPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /offers/{id}/payments [post]
func (h *PaymentHandler) Submit(c *gin.Context) {
	var req service.SubmitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	offerID := c.Param("id")
	if err := h.authorize(c, offerID); err != nil {
		response.Error(c, err)
		return
	}

	payment, err := h.payments.Submit(c.Request.Context(), offerID, actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// List godoc
// @Summary List payments recorded against an offer
// @Tags Payments
// @Produce json
// @Param id path string true "Offer ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /offers/{id}/payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	offerID := c.Param("id")
	if err := h.authorize(c, offerID); err != nil {
		response.Error(c, err)
		return
	}
	payments, err := h.payments.ListForOffer(c.Request.Context(), offerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// Verify godoc
// @Summary Verify a pending payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /payments/{id}/verify [put]
func (h *PaymentHandler) Verify(c *gin.Context) {
	payment, err := h.payments.Verify(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

func (h *PaymentHandler) authorize(c *gin.Context, offerID string) error {
	if !isApplicant(c) {
		return nil
	}
	offer, err := h.offers.Get(c.Request.Context(), offerID)
	if err != nil {
		return err
	}
	detail, err := h.applications.Get(c.Request.Context(), offer.ApplicationID)
	if err != nil {
		return err
	}
	if detail.ApplicantUserID != actorID(c) {
		return appErrors.ErrForbidden
	}
	return nil
}
