package handler

import (
	"net/http"
	"strconv"

	"github.com/straye-as/solar-crm-api/internal/domain"
	"github.com/straye-as/solar-crm-api/internal/mapper"
	"github.com/straye-as/solar-crm-api/internal/service"
	"go.uber.org/zap"
)

// ActivityHandler serves the timeline of one target type. The router mounts
// one instance for clients and one for opportunities.
type ActivityHandler struct {
	activityService *service.ActivityService
	targetType      domain.ActivityTargetType
	logger          *zap.Logger
}

func NewActivityHandler(activityService *service.ActivityService, targetType domain.ActivityTargetType, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		activityService: activityService,
		targetType:      targetType,
		logger:          logger,
	}
}

// List godoc
// @Summary List timeline activities
// @Description Newest first. Mounted under /clients/{id}/activities and /opportunities/{id}/activities.
// @Tags Activities
// @Produce json
// @Param id path string true "Client or opportunity ID" format(uuid)
// @Param limit query int false "Maximum entries (max 200)" default(50)
// @Success 200 {array} domain.ActivityDTO
// @Failure 404 {object} domain.APIError
// @Router /clients/{id}/activities [get]
// @Router /opportunities/{id}/activities [get]
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", string(h.targetType))
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondWithError(w, http.StatusBadRequest, "Invalid limit: must be a positive integer")
			return
		}
		limit = parsed
	}

	activities, err := h.activityService.List(r.Context(), h.targetType, id, limit)
	if err != nil {
		respondServiceError(w, h.logger, err, "list activities")
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToActivityDTOs(activities))
}

// Create godoc
// @Summary Add a note to the timeline
// @Tags Activities
// @Accept json
// @Produce json
// @Param id path string true "Client or opportunity ID" format(uuid)
// @Param request body domain.CreateActivityRequest true "Note"
// @Success 201 {object} domain.ActivityDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Router /clients/{id}/activities [post]
// @Router /opportunities/{id}/activities [post]
func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id", string(h.targetType))
	if !ok {
		return
	}
	var req domain.CreateActivityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	activity, err := h.activityService.AddNote(r.Context(), h.targetType, id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create activity")
		return
	}

	respondJSON(w, http.StatusCreated, mapper.ToActivityDTO(activity))
}
