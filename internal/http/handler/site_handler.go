package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/straye-as/solar-crm-api/internal/domain"
	"github.com/straye-as/solar-crm-api/internal/mapper"
	"github.com/straye-as/solar-crm-api/internal/repository"
	"github.com/straye-as/solar-crm-api/internal/service"
	"go.uber.org/zap"
)

// multipartOverhead leaves room for form boundaries and headers on top of the file limit
const multipartOverhead = 1 << 20

type SiteHandler struct {
	siteService        *service.SiteService
	cascadeService     *service.CascadeService
	opportunityService *service.OpportunityService
	maxUploadSize      int64
	logger             *zap.Logger
}

func NewSiteHandler(
	siteService *service.SiteService,
	cascadeService *service.CascadeService,
	opportunityService *service.OpportunityService,
	maxUploadSize int64,
	logger *zap.Logger,
) *SiteHandler {
	return &SiteHandler{
		siteService:        siteService,
		cascadeService:     cascadeService,
		opportunityService: opportunityService,
		maxUploadSize:      maxUploadSize,
		logger:             logger,
	}
}

// List godoc
// @Summary List sites
// @Tags Sites
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param clientId query string false "Filter by client" format(uuid)
// @Param search query string false "Search by name, address or city"
// @Param includeArchived query bool false "Include archived sites"
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.SiteDTO}
// @Failure 400 {object} domain.APIError
// @Router /sites [get]
func (h *SiteHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	clientID, err := parseOptionalUUIDQuery(r, "clientId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, capitalize(err.Error()))
		return
	}
	filters := repository.SiteFilters{
		ClientID:        clientID,
		Search:          r.URL.Query().Get("search"),
		IncludeArchived: r.URL.Query().Get("includeArchived") == "true",
	}

	sites, total, err := h.siteService.List(r.Context(), page, pageSize, filters)
	if err != nil {
		respondServiceError(w, h.logger, err, "list sites")
		return
	}

	dtos := make([]domain.SiteDTO, len(sites))
	for i := range sites {
		dtos[i] = mapper.ToSiteDTO(&sites[i])
	}
	respondJSON(w, http.StatusOK, paginated(dtos, total, page, pageSize))
}

// Create godoc
// @Summary Create site
// @Tags Sites
// @Accept json
// @Produce json
// @Param request body domain.CreateSiteRequest true "Site data"
// @Success 201 {object} domain.SiteDTO
// @Failure 400 {object} domain.APIError
// @Router /sites [post]
func (h *SiteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSiteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	site, err := h.siteService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create site")
		return
	}

	w.Header().Set("Location", "/api/v1/sites/"+site.ID.String())
	respondJSON(w, http.StatusCreated, mapper.ToSiteDTO(site))
}

// GetByID godoc
// @Summary Get site by ID
// @Tags Sites
// @Produce json
// @Param id path string true "Site ID" format(uuid)
// @Success 200 {object} domain.SiteDTO
// @Failure 404 {object} domain.APIError
// @Router /sites/{id} [get]
func (h *SiteHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "site")
	if !ok {
		return
	}

	site, err := h.siteService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get site")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToSiteDTO(site))
}

// Update godoc
// @Summary Update site
// @Tags Sites
// @Accept json
// @Produce json
// @Param id path string true "Site ID" format(uuid)
// @Param request body domain.UpdateSiteRequest true "Fields to change"
// @Success 200 {object} domain.SiteDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Router /sites/{id} [put]
func (h *SiteHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "site")
	if !ok {
		return
	}
	var req domain.UpdateSiteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	site, err := h.siteService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update site")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToSiteDTO(site))
}

// Delete godoc
// @Summary Delete site
// @Description Removes the site with its simulation runs, designs, meter files, visits, agreements and contracts. Linked opportunities are kept and detached.
// @Tags Sites
// @Param id path string true "Site ID" format(uuid)
// @Success 204
// @Failure 404 {object} domain.APIError
// @Router /sites/{id} [delete]
func (h *SiteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "site")
	if !ok {
		return
	}

	deleted, err := h.cascadeService.DeleteSite(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "delete site")
		return
	}
	if !deleted {
		respondWithError(w, http.StatusNotFound, "Site not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Opportunities godoc
// @Summary List a site's opportunities
// @Tags Sites
// @Produce json
// @Param id path string true "Site ID" format(uuid)
// @Success 200 {array} domain.OpportunityDTO
// @Failure 404 {object} domain.APIError
// @Router /sites/{id}/opportunities [get]
func (h *SiteHandler) Opportunities(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "site")
	if !ok {
		return
	}
	if _, err := h.siteService.GetByID(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "get site")
		return
	}

	opps, err := h.opportunityService.GetBySite(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "list site opportunities")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToOpportunityDTOs(opps))
}

// UploadMeterFile godoc
// @Summary Upload a meter file
// @Description Stores a raw utility meter export (csv, txt, xml, xlsx, json). CSV files are parsed into interval readings.
// @Tags Sites
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Site ID" format(uuid)
// @Param file formData file true "Meter export"
// @Success 201 {object} domain.MeterFileUploadResponse
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 413 {object} domain.APIError
// @Router /sites/{id}/meter-files [post]
func (h *SiteHandler) UploadMeterFile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "site")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large: maximum size is %d bytes", h.maxUploadSize))
			return
		}
		respondWithError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid file upload: file field is required")
		return
	}
	defer file.Close()

	meterFile, readings, err := h.siteService.UploadMeterFile(r.Context(), id, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		respondServiceError(w, h.logger, err, "upload meter file")
		return
	}

	respondJSON(w, http.StatusCreated, domain.MeterFileUploadResponse{
		File:     mapper.ToMeterFileDTO(meterFile),
		Readings: readings,
	})
}

// ListMeterFiles godoc
// @Summary List a site's meter files
// @Tags Sites
// @Produce json
// @Param id path string true "Site ID" format(uuid)
// @Success 200 {array} domain.MeterFileDTO
// @Failure 404 {object} domain.APIError
// @Router /sites/{id}/meter-files [get]
func (h *SiteHandler) ListMeterFiles(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "site")
	if !ok {
		return
	}

	files, err := h.siteService.ListMeterFiles(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "list meter files")
		return
	}

	dtos := make([]domain.MeterFileDTO, len(files))
	for i := range files {
		dtos[i] = mapper.ToMeterFileDTO(&files[i])
	}
	respondJSON(w, http.StatusOK, dtos)
}
