package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-admissions-api/internal/service"
	appErrors "github.com/noah-isme/uni-admissions-api/pkg/errors"
	"github.com/noah-isme/uni-admissions-api/pkg/response"
)

// LetterHandler exposes official document endpoints.
type LetterHandler struct {
	letters      *service.LetterService
	applications *service.ApplicationService
}

// NewLetterHandler constructs LetterHandler.
func NewLetterHandler(letters *service.LetterService, applications *service.ApplicationService) *LetterHandler {
	return &LetterHandler{letters: letters, applications: applications}
}

// IssueOffer godoc
// @Summary Generate the offer letter for an application
// @Tags Letters
// @Produce json
// @Param id path string true "Application ID"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /applications/{id}/letters/offer [post]
func (h *LetterHandler) IssueOffer(c *gin.Context) {
	applicationID := c.Param("id")
	if err := h.authorize(c, applicationID); err != nil {
		response.Error(c, err)
		return
	}

	issued, err := h.letters.IssueOfferLetter(c.Request.Context(), applicationID, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, issued)
}

// IssueAdmission godoc
// @Summary Generate the admission letter for a paid application
// @Tags Letters
// @Produce json
// @Param id path string true "Application ID"
// @Success 201 {object} response.Envelope
// @Failure 402 {object} response.Envelope
// @Security BearerAuth
// @Router /applications/{id}/letters/admission [post]
func (h *LetterHandler) IssueAdmission(c *gin.Context) {
	applicationID := c.Param("id")
	if err := h.authorize(c, applicationID); err != nil {
		response.Error(c, err)
		return
	}

	issued, err := h.letters.IssueAdmissionLetter(c.Request.Context(), applicationID, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, issued)
}

// Download godoc
// @Summary Download a letter via its signed token
// @Tags Letters
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /letters/download [get]
func (h *LetterHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token query parameter required"))
		return
	}

	file, name, err := h.letters.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Content-Type", "application/pdf")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}

func (h *LetterHandler) authorize(c *gin.Context, applicationID string) error {
	if !isApplicant(c) {
		return nil
	}
	detail, err := h.applications.Get(c.Request.Context(), applicationID)
	if err != nil {
		return err
	}
	if detail.ApplicantUserID != actorID(c) {
		return appErrors.ErrForbidden
	}
	return nil
}
