package handler

import (
	"net/http"

	"github.com/straye-as/solar-crm-api/internal/domain"
	"github.com/straye-as/solar-crm-api/internal/mapper"
	"github.com/straye-as/solar-crm-api/internal/repository"
	"github.com/straye-as/solar-crm-api/internal/service"
	"go.uber.org/zap"
)

// OpportunityHandler serves opportunities. Every read goes through the
// service, so portfolio-linked opportunities carry the live portfolio totals.
type OpportunityHandler struct {
	opportunityService *service.OpportunityService
	pipelineService    *service.PipelineService
	logger             *zap.Logger
}

func NewOpportunityHandler(opportunityService *service.OpportunityService, pipelineService *service.PipelineService, logger *zap.Logger) *OpportunityHandler {
	return &OpportunityHandler{
		opportunityService: opportunityService,
		pipelineService:    pipelineService,
		logger:             logger,
	}
}

// List godoc
// @Summary List opportunities
// @Tags Opportunities
// @Produce json
// @Param stage query string false "Filter by stage" Enums(prospect, qualified, proposal, design_signed, negotiation, won_to_be_delivered, won_in_construction, won_delivered, lost)
// @Param ownerId query string false "Filter by owner"
// @Param clientId query string false "Filter by client" format(uuid)
// @Param siteId query string false "Filter by site" format(uuid)
// @Param portfolioId query string false "Filter by portfolio" format(uuid)
// @Param search query string false "Search by name"
// @Success 200 {array} domain.OpportunityDTO
// @Failure 400 {object} domain.APIError
// @Router /opportunities [get]
func (h *OpportunityHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := &repository.OpportunityFilters{Search: q.Get("search")}

	if raw := q.Get("stage"); raw != "" {
		stage := domain.OpportunityStage(raw)
		if !stage.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid stage: "+raw)
			return
		}
		filters.Stage = &stage
	}
	if owner := q.Get("ownerId"); owner != "" {
		filters.OwnerID = &owner
	}

	var err error
	if filters.ClientID, err = parseOptionalUUIDQuery(r, "clientId"); err != nil {
		respondWithError(w, http.StatusBadRequest, capitalize(err.Error()))
		return
	}
	if filters.SiteID, err = parseOptionalUUIDQuery(r, "siteId"); err != nil {
		respondWithError(w, http.StatusBadRequest, capitalize(err.Error()))
		return
	}
	if filters.PortfolioID, err = parseOptionalUUIDQuery(r, "portfolioId"); err != nil {
		respondWithError(w, http.StatusBadRequest, capitalize(err.Error()))
		return
	}

	opps, err := h.opportunityService.List(r.Context(), filters)
	if err != nil {
		respondServiceError(w, h.logger, err, "list opportunities")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToOpportunityDTOs(opps))
}

// PipelineStats godoc
// @Summary Sales pipeline statistics
// @Description Totals, weighted value, per-stage breakdown, top and at-risk opportunities and recent wins
// @Tags Opportunities
// @Produce json
// @Success 200 {object} domain.PipelineStatsResult
// @Failure 500 {object} domain.APIError
// @Router /opportunities/pipeline-stats [get]
func (h *OpportunityHandler) PipelineStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.pipelineService.GetPipelineStats(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "compute pipeline stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// Create godoc
// @Summary Create opportunity
// @Tags Opportunities
// @Accept json
// @Produce json
// @Param request body domain.CreateOpportunityRequest true "Opportunity data"
// @Success 201 {object} domain.OpportunityDTO
// @Failure 400 {object} domain.APIError
// @Router /opportunities [post]
func (h *OpportunityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOpportunityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	opp, err := h.opportunityService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create opportunity")
		return
	}

	w.Header().Set("Location", "/api/v1/opportunities/"+opp.ID.String())
	respondJSON(w, http.StatusCreated, mapper.ToOpportunityDTO(opp))
}

// GetByID godoc
// @Summary Get opportunity by ID
// @Tags Opportunities
// @Produce json
// @Param id path string true "Opportunity ID" format(uuid)
// @Success 200 {object} domain.OpportunityDTO
// @Failure 404 {object} domain.APIError
// @Router /opportunities/{id} [get]
func (h *OpportunityHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "opportunity")
	if !ok {
		return
	}

	opp, err := h.opportunityService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get opportunity")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToOpportunityDTO(opp))
}

// Update godoc
// @Summary Update opportunity
// @Description Partial update. Value and PV size written for a portfolio-linked opportunity are stored as fallback only; reads keep showing the portfolio totals.
// @Tags Opportunities
// @Accept json
// @Produce json
// @Param id path string true "Opportunity ID" format(uuid)
// @Param request body domain.UpdateOpportunityRequest true "Fields to change"
// @Success 200 {object} domain.OpportunityDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Router /opportunities/{id} [put]
func (h *OpportunityHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "opportunity")
	if !ok {
		return
	}
	var req domain.UpdateOpportunityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	opp, err := h.opportunityService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update opportunity")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToOpportunityDTO(opp))
}

// Delete godoc
// @Summary Delete opportunity
// @Tags Opportunities
// @Param id path string true "Opportunity ID" format(uuid)
// @Success 204
// @Failure 404 {object} domain.APIError
// @Router /opportunities/{id} [delete]
func (h *OpportunityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "opportunity")
	if !ok {
		return
	}

	if err := h.opportunityService.Delete(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "delete opportunity")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
