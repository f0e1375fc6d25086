package handler

import (
	"net/http"
	"strconv"

	"github.com/straye-as/solar-crm-api/internal/domain"
	"github.com/straye-as/solar-crm-api/internal/mapper"
	"github.com/straye-as/solar-crm-api/internal/service"
	"go.uber.org/zap"
)

type ClientHandler struct {
	clientService      *service.ClientService
	cascadeService     *service.CascadeService
	opportunityService *service.OpportunityService
	logger             *zap.Logger
}

func NewClientHandler(
	clientService *service.ClientService,
	cascadeService *service.CascadeService,
	opportunityService *service.OpportunityService,
	logger *zap.Logger,
) *ClientHandler {
	return &ClientHandler{
		clientService:      clientService,
		cascadeService:     cascadeService,
		opportunityService: opportunityService,
		logger:             logger,
	}
}

// List godoc
// @Summary List clients
// @Tags Clients
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param search query string false "Search by name or organization number"
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ClientDTO}
// @Failure 500 {object} domain.APIError
// @Router /clients [get]
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	clients, total, err := h.clientService.List(r.Context(), page, pageSize, r.URL.Query().Get("search"))
	if err != nil {
		respondServiceError(w, h.logger, err, "list clients")
		return
	}

	dtos := make([]domain.ClientDTO, len(clients))
	for i := range clients {
		dtos[i] = mapper.ToClientDTO(&clients[i])
	}
	respondJSON(w, http.StatusOK, paginated(dtos, total, page, pageSize))
}

// Create godoc
// @Summary Create client
// @Tags Clients
// @Accept json
// @Produce json
// @Param request body domain.CreateClientRequest true "Client data"
// @Success 201 {object} domain.ClientDTO
// @Failure 400 {object} domain.APIError
// @Router /clients [post]
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateClientRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	client, err := h.clientService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create client")
		return
	}

	w.Header().Set("Location", "/api/v1/clients/"+client.ID.String())
	respondJSON(w, http.StatusCreated, mapper.ToClientDTO(client))
}

// GetByID godoc
// @Summary Get client by ID
// @Tags Clients
// @Produce json
// @Param id path string true "Client ID" format(uuid)
// @Success 200 {object} domain.ClientDTO
// @Failure 404 {object} domain.APIError
// @Router /clients/{id} [get]
func (h *ClientHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "client")
	if !ok {
		return
	}

	client, err := h.clientService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get client")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToClientDTO(client))
}

// Update godoc
// @Summary Update client
// @Description Partial update; omitted fields keep their value
// @Tags Clients
// @Accept json
// @Produce json
// @Param id path string true "Client ID" format(uuid)
// @Param request body domain.UpdateClientRequest true "Fields to change"
// @Success 200 {object} domain.ClientDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Router /clients/{id} [put]
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "client")
	if !ok {
		return
	}
	var req domain.UpdateClientRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	client, err := h.clientService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update client")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToClientDTO(client))
}

// Delete godoc
// @Summary Delete client
// @Description Without cascade the client is only removed when it has no sites, portfolios or opportunities; otherwise 409 with the counts a cascade would remove. With cascade=true the whole client graph is removed in one transaction.
// @Tags Clients
// @Produce json
// @Param id path string true "Client ID" format(uuid)
// @Param cascade query bool false "Remove all dependents"
// @Success 204
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.DeleteClientConflictResponse
// @Router /clients/{id} [delete]
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "client")
	if !ok {
		return
	}

	cascadeDelete := false
	if raw := r.URL.Query().Get("cascade"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid cascade: must be true or false")
			return
		}
		cascadeDelete = parsed
	}

	if !cascadeDelete {
		if err := h.cascadeService.DeleteClient(r.Context(), id); err != nil {
			respondServiceError(w, h.logger, err, "delete client")
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	deleted, err := h.cascadeService.CascadeDeleteClient(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "delete client")
		return
	}
	if !deleted {
		respondWithError(w, http.StatusNotFound, "Client not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CascadeCounts godoc
// @Summary Preview a cascading client delete
// @Tags Clients
// @Produce json
// @Param id path string true "Client ID" format(uuid)
// @Success 200 {object} domain.CascadeCounts
// @Failure 404 {object} domain.APIError
// @Router /clients/{id}/cascade-counts [get]
func (h *ClientHandler) CascadeCounts(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "client")
	if !ok {
		return
	}

	counts, err := h.cascadeService.GetClientCascadeCounts(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "count client dependents")
		return
	}

	respondJSON(w, http.StatusOK, counts)
}

// Opportunities godoc
// @Summary List a client's opportunities
// @Tags Clients
// @Produce json
// @Param id path string true "Client ID" format(uuid)
// @Success 200 {array} domain.OpportunityDTO
// @Failure 404 {object} domain.APIError
// @Router /clients/{id}/opportunities [get]
func (h *ClientHandler) Opportunities(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", "client")
	if !ok {
		return
	}
	if _, err := h.clientService.GetByID(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "get client")
		return
	}

	opps, err := h.opportunityService.GetByClient(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "list client opportunities")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToOpportunityDTOs(opps))
}
