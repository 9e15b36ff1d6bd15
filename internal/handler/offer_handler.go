package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-admissions-api/internal/models"
	"github.com/noah-isme/uni-admissions-api/internal/service"
	appErrors "github.com/noah-isme/uni-admissions-api/pkg/errors"
	"github.com/noah-isme/uni-admissions-api/pkg/response"
)

// OfferHandler exposes offer endpoints.
type OfferHandler struct {
	offers       *service.OfferService
	applications *service.ApplicationService
}

// NewOfferHandler constructs OfferHandler.
func NewOfferHandler(offers *service.OfferService, applications *service.ApplicationService) *OfferHandler {
	return &OfferHandler{offers: offers, applications: applications}
}

// Get godoc
// @Summary Get an offer
// @Tags Offers
// @Produce json
// @Param id path string true "Offer ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /offers/{id} [get]
func (h *OfferHandler) Get(c *gin.Context) {
	offer, err := h.offers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.authorize(c, offer); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offer, nil)
}

// Respond godoc
// @Summary Record the applicant's one-time offer decision
// @Tags Offers
// @Accept json
// @Produce json
// @Param id path string true "Offer ID"
// @Param payload body service.RespondToOfferRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /offers/{id}/respond [put]
func (h *OfferHandler) Respond(c *gin.Context) {
	var req service.RespondToOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	offer, err := h.offers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.authorize(c, offer); err != nil {
		response.Error(c, err)
		return
	}

	updated, err := h.offers.Respond(c.Request.Context(), c.Param("id"), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// authorize rejects applicants acting on offers that belong to someone else.
func (h *OfferHandler) authorize(c *gin.Context, offer *models.Offer) error {
	if !isApplicant(c) {
		return nil
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
