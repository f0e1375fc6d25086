package handler

import (
	"net/http"

	"github.com/straye-as/solar-crm-api/internal/domain"
	"github.com/straye-as/solar-crm-api/internal/mapper"
	"github.com/straye-as/solar-crm-api/internal/service"
	"go.uber.org/zap"
)

type PortfolioHandler struct {
	portfolioService *service.PortfolioService
	kpiService       *service.PortfolioKPIService
	cascadeService   *service.CascadeService
	logger           *zap.Logger
}

func NewPortfolioHandler(
	portfolioService *service.PortfolioService,
	kpiService *service.PortfolioKPIService,
	cascadeService *service.CascadeService,
	logger *zap.Logger,
) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService: portfolioService,
		kpiService:       kpiService,
		cascadeService:   cascadeService,
		logger:           logger,
	}
}

// List godoc
// @Summary List portfolios
// @Tags Portfolios
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param clientId query string false "Filter by client" format(uuid)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.PortfolioDTO}
// @Failure 400 {object} domain.APIError
// @Router /portfolios [get]
func (h *PortfolioHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	clientID, err := parseOptionalUUIDQuery(r, "clientId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, capitalize(err.Error()))
		return
	}

	portfolios, total, err := h.portfolioService.List(r.Context(), page, pageSize, clientID)
	if err != nil {
		respondServiceError(w, h.logger, err, "list portfolios")
		return
	}

	dtos := make([]domain.PortfolioDTO, len(portfolios))
	for i := range portfolios {
		dtos[i] = mapper.ToPortfolioDTO(&portfolios[i])
	}
	respondJSON(w, http.StatusOK, paginated(dtos, total, page, pageSize))
}

// Create godoc
// @Summary Create portfolio
// @Tags Portfolios
// @Accept json
// @Produce json
// @Param request body domain.CreatePortfolioRequest true "Portfolio data"
// @Success 201 {object} domain.PortfolioDTO
// @Failure 400 {object} domain.APIError
// @Router /portfolios [post]
func (h *PortfolioHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePortfolioRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	portfolio, err := h.portfolioService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create portfolio")
		return
	}

	w.Header().Set("Location", "/api/v1/portfolios/"+portfolio.ID.String())
	respondJSON(w, http.StatusCreated, mapper.ToPortfolioDTO(portfolio))
}

// GetByID godoc
// @Summary Get portfolio with its sites and live KPIs
// @Tags Portfolios
// @Produce json
// @Param id path string true "Portfolio ID" format(uuid)
// @Success 200 {object} domain.PortfolioDTO
// @Failure 404 {object} domain.APIError
// @Router /portfolios/{id} [get]
func (h *PortfolioHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "portfolio")
	if !ok {
		return
	}

	details, err := h.portfolioService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get portfolio")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToPortfolioDetailsDTO(details))
}

// Update godoc
// @Summary Update portfolio
// @Tags Portfolios
// @Accept json
// @Produce json
// @Param id path string true "Portfolio ID" format(uuid)
// @Param request body domain.UpdatePortfolioRequest true "Fields to change"
// @Success 200 {object} domain.PortfolioDTO
// @Failure 404 {object} domain.APIError
// @Router /portfolios/{id} [put]
func (h *PortfolioHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "portfolio")
	if !ok {
		return
	}
	var req domain.UpdatePortfolioRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	portfolio, err := h.portfolioService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update portfolio")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToPortfolioDTO(portfolio))
}

// Delete godoc
// @Summary Delete portfolio
// @Description Removes the portfolio and its memberships. Linked opportunities keep the last KPI values and are detached. Sites are not touched.
// @Tags Portfolios
// @Param id path string true "Portfolio ID" format(uuid)
// @Success 204
// @Failure 404 {object} domain.APIError
// @Router /portfolios/{id} [delete]
func (h *PortfolioHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "portfolio")
	if !ok {
		return
	}

	deleted, err := h.cascadeService.DeletePortfolio(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "delete portfolio")
		return
	}
	if !deleted {
		respondWithError(w, http.StatusNotFound, "Portfolio not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// KPIs godoc
// @Summary Live portfolio KPIs
// @Description Sum of each member site's latest simulation run, with per-site overrides applied
// @Tags Portfolios
// @Produce json
// @Param id path string true "Portfolio ID" format(uuid)
// @Success 200 {object} domain.PortfolioKPIs
// @Failure 404 {object} domain.APIError
// @Router /portfolios/{id}/kpis [get]
func (h *PortfolioHandler) KPIs(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "portfolio")
	if !ok {
		return
	}

	kpis, err := h.kpiService.ComputePortfolioKPIs(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "compute portfolio KPIs")
		return
	}

	respondJSON(w, http.StatusOK, kpis)
}

// AddSite godoc
// @Summary Add a site to a portfolio
// @Tags Portfolios
// @Accept json
// @Produce json
// @Param id path string true "Portfolio ID" format(uuid)
// @Param request body domain.AddPortfolioSiteRequest true "Membership"
// @Success 201 {object} domain.PortfolioSiteDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Router /portfolios/{id}/sites [post]
func (h *PortfolioHandler) AddSite(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "portfolio")
	if !ok {
		return
	}
	var req domain.AddPortfolioSiteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	membership, err := h.portfolioService.AddSite(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "add portfolio site")
		return
	}

	respondJSON(w, http.StatusCreated, mapper.ToPortfolioSiteDTO(membership))
}

// UpdateSite godoc
// @Summary Change a membership's order or overrides
// @Tags Portfolios
// @Accept json
// @Produce json
// @Param id path string true "Portfolio ID" format(uuid)
// @Param siteId path string true "Site ID" format(uuid)
// @Param request body domain.UpdatePortfolioSiteRequest true "Fields to change"
// @Success 200 {object} domain.PortfolioSiteDTO
// @Failure 404 {object} domain.APIError
// @Router /portfolios/{id}/sites/{siteId} [put]
func (h *PortfolioHandler) UpdateSite(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "portfolio")
	if !ok {
		return
	}
	siteID, ok := parseUUIDParam(w, r, "siteId", "site")
	if !ok {
		return
	}
	var req domain.UpdatePortfolioSiteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	membership, err := h.portfolioService.UpdateSite(r.Context(), id, siteID, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update portfolio site")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToPortfolioSiteDTO(membership))
}

// RemoveSite godoc
// @Summary Remove a site from a portfolio
// @Tags Portfolios
// @Param id path string true "Portfolio ID" format(uuid)
// @Param siteId path string true "Site ID" format(uuid)
// @Success 204
// @Failure 404 {object} domain.APIError
// @Router /portfolios/{id}/sites/{siteId} [delete]
func (h *PortfolioHandler) RemoveSite(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "portfolio")
	if !ok {
		return
	}
	siteID, ok := parseUUIDParam(w, r, "siteId", "site")
	if !ok {
		return
	}

	if err := h.portfolioService.RemoveSite(r.Context(), id, siteID); err != nil {
		respondServiceError(w, h.logger, err, "remove portfolio site")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
