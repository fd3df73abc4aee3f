package handler

import (
	"mime/multipart"
	"net/http"
	"strings"

	registryapp "github.com/faasbill/backend/internal/application/registry"
	"github.com/faasbill/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ServiceHandler handles function service registration
type ServiceHandler struct {
	BaseHandler
	registry *registryapp.Service
}

// NewServiceHandler creates a new service handler
func NewServiceHandler(registry *registryapp.Service) *ServiceHandler {
	return &ServiceHandler{registry: registry}
}

// CreateServiceRequest is the JSON body or multipart form of POST /services
type CreateServiceRequest struct {
	TenantID      string `json:"tenant_id" form:"tenant_id" binding:"required,uuid"`
	Name          string `json:"name" form:"name" binding:"required,max=255" example:"resize-image"`
	Description   string `json:"description" form:"description" binding:"max=2000"`
	Runtime       string `json:"runtime" form:"runtime" binding:"max=50" example:"go1.22"`
	MemoryLimitMB int    `json:"memory_limit_mb" form:"memory_limit_mb" binding:"gte=0,lte=10240" example:"256"`
}

// ListServicesQuery holds the filters of GET /services
type ListServicesQuery struct {
	TenantID string `form:"tenant_id" binding:"omitempty,uuid"`
	dto.PageQuery
}

// Create godoc
// @ID           createService
// @Summary      Register a service
// @Description  Accepts JSON, or multipart/form-data with the package in the "file" part
// @Tags         services
// @Accept       json,mpfd
// @Produce      json
// @Param        request body CreateServiceRequest true "Service"
// @Success      201 {object} registryapp.ServiceDTO
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      503 {object} dto.ErrorResponse
// @Router       /services [post]
func (h *ServiceHandler) Create(c *gin.Context) {
	var req CreateServiceRequest
	if err := c.ShouldBind(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	tenantID := uuid.MustParse(req.TenantID)
	withTenant(c, tenantID)

	input := registryapp.CreateServiceInput{
		TenantID:      tenantID,
		Name:          req.Name,
		Description:   req.Description,
		Runtime:       req.Runtime,
		MemoryLimitMB: req.MemoryLimitMB,
	}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		switch {
		case err == nil:
			file, err := fh.Open()
			if err != nil {
				h.BadRequest(c, "Unable to read uploaded file")
				return
			}
			defer file.Close()
			input.Artifact = artifactUpload(fh, file)
		case err != http.ErrMissingFile:
			h.BadRequest(c, "Invalid multipart upload")
			return
		}
	}

	svc, err := h.registry.CreateService(c.Request.Context(), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, svc)
}

func artifactUpload(fh *multipart.FileHeader, file multipart.File) *registryapp.ArtifactUpload {
	return &registryapp.ArtifactUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        file,
	}
}

// List godoc
// @ID           listServices
// @Summary      List services
// @Tags         services
// @Produce      json
// @Param        tenant_id query string false "Tenant ID" format(uuid)
// @Param        page query int false "Page" minimum(1)
// @Param        page_size query int false "Page size" minimum(1) maximum(100)
// @Success      200 {array} registryapp.ServiceDTO
// @Failure      400 {object} dto.ErrorResponse
// @Router       /services [get]
func (h *ServiceHandler) List(c *gin.Context) {
	var q ListServicesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindingError(c, err)
		return
	}

	input := registryapp.ListServicesInput{Page: q.Page, PageSize: q.PageSize}
	if q.TenantID != "" {
		id := uuid.MustParse(q.TenantID)
		input.TenantID = &id
	}

	services, err := h.registry.ListServices(c.Request.Context(), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, services)
}

// Get godoc
// @ID           getService
// @Summary      Get a service
// @Tags         services
// @Produce      json
// @Param        id path string true "Service ID" format(uuid)
// @Success      200 {object} registryapp.ServiceDTO
// @Failure      404 {object} dto.ErrorResponse
// @Router       /services/{id} [get]
func (h *ServiceHandler) Get(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	svc, err := h.registry.GetService(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	withTenant(c, svc.TenantID)
	h.OK(c, svc)
}

// DownloadArtifact godoc
// @ID           downloadServiceArtifact
// @Summary      Download a service's package
// @Description  Redirects to a time-limited download URL
// @Tags         services
// @Param        id path string true "Service ID" format(uuid)
// @Success      307
// @Failure      404 {object} dto.ErrorResponse
// @Router       /services/{id}/artifact [get]
func (h *ServiceHandler) DownloadArtifact(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	url, err := h.registry.ArtifactURL(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, url)
}
