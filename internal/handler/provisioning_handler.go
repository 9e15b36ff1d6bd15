package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-admissions-api/internal/service"
	"github.com/noah-isme/uni-admissions-api/pkg/response"
)

// ProvisioningHandler exposes downstream provisioning endpoints.
type ProvisioningHandler struct {
	provisioning *service.ProvisioningService
}

// NewProvisioningHandler constructs ProvisioningHandler.
func NewProvisioningHandler(provisioning *service.ProvisioningService) *ProvisioningHandler {
	return &ProvisioningHandler{provisioning: provisioning}
}

// Status godoc
// @Summary Get the provisioning state of a student
// @Tags Provisioning
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/provisioning [get]
func (h *ProvisioningHandler) Status(c *gin.Context) {
	status, err := h.provisioning.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// RetryAsset godoc
// @Summary Re-provision one asset for a student
// @Tags Provisioning
// @Produce json
// @Param id path string true "Student ID"
// @Param assetId path string true "Asset ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/provisioning/{assetId}/retry [post]
func (h *ProvisioningHandler) RetryAsset(c *gin.Context) {
	access, err := h.provisioning.RetryAsset(c.Request.Context(), c.Param("id"), c.Param("assetId"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, access, nil)
}
