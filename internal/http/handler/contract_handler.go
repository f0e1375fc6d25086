package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/straye-as/solar-crm-api/internal/service"
	"go.uber.org/zap"
)

// ContractHandler deletes construction agreements and O&M contracts together with their children
type ContractHandler struct {
	cascadeService *service.CascadeService
	logger         *zap.Logger
}

func NewContractHandler(cascadeService *service.CascadeService, logger *zap.Logger) *ContractHandler {
	return &ContractHandler{cascadeService: cascadeService, logger: logger}
}

// DeleteConstructionAgreement godoc
// @Summary Delete construction agreement
// @Description Removes the agreement and its milestones
// @Tags Contracts
// @Param id path string true "Agreement ID" format(uuid)
// @Success 204
// @Failure 404 {object} domain.APIError
// @Router /construction-agreements/{id} [delete]
func (h *ContractHandler) DeleteConstructionAgreement(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, "construction agreement", h.cascadeService.DeleteConstructionAgreement)
}

// DeleteOmContract godoc
// @Summary Delete O&M contract
// @Description Removes the contract and its maintenance visits
// @Tags Contracts
// @Param id path string true "Contract ID" format(uuid)
// @Success 204
// @Failure 404 {object} domain.APIError
// @Router /om-contracts/{id} [delete]
func (h *ContractHandler) DeleteOmContract(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, "O&M contract", h.cascadeService.DeleteOmContract)
}

func (h *ContractHandler) delete(w http.ResponseWriter, r *http.Request, label string, del func(context.Context, uuid.UUID) (bool, error)) {
	id, ok := parseUUIDParam(w, r, "id", label)
	if !ok {
		return
	}

	deleted, err := del(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "delete "+label)
		return
	}
	if !deleted {
		respondWithError(w, http.StatusNotFound, capitalize(label)+" not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
