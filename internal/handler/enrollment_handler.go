package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-admissions-api/internal/service"
	appErrors "github.com/noah-isme/uni-admissions-api/pkg/errors"
	"github.com/noah-isme/uni-admissions-api/pkg/response"
)

// EnrollmentHandler exposes the enrollment endpoints.
type EnrollmentHandler struct {
	enrollments  *service.EnrollmentService
	applications *service.ApplicationService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService, applications *service.ApplicationService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, applications: applications}
}

// Enroll godoc
// @Summary Enroll an application, creating the student record
// @Tags Enrollment
// @Produce json
// @Param id path string true "Application ID"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /applications/{id}/enroll [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	applicationID := c.Param("id")
	if err := h.authorize(c, applicationID); err != nil {
		response.Error(c, err)
		return
	}

	student, err := h.enrollments.Enroll(c.Request.Context(), applicationID, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// GetStudent godoc
// @Summary Get the student enrolled for an application
// @Tags Enrollment
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /applications/{id}/student [get]
func (h *EnrollmentHandler) GetStudent(c *gin.Context) {
	applicationID := c.Param("id")
	if err := h.authorize(c, applicationID); err != nil {
		response.Error(c, err)
		return
	}

	student, err := h.enrollments.Get(c.Request.Context(), applicationID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

func (h *EnrollmentHandler) authorize(c *gin.Context, applicationID string) error {
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
