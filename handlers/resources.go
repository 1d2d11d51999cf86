package handlers

import (
	"net/http"
	"strings"

	"dukalink-payment-api/models"
	"dukalink-payment-api/services/resources"
	"dukalink-payment-api/utils"
)

// ResourcesHandler serves the cached Kwelipay reference directories used by
// checkout forms.
type ResourcesHandler struct {
	resources *resources.Service
}

func NewResourcesHandler(svc *resources.Service) *ResourcesHandler {
	return &ResourcesHandler{resources: svc}
}

func countryParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("country")))
}

func (h *ResourcesHandler) HandleListBanks(w http.ResponseWriter, r *http.Request) {
	country := countryParam(r)
	if country == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Missing country parameter")
		return
	}

	banks, err := h.resources.Banks(r.Context(), country)
	if err != nil {
		utils.SendServiceError(w, err)
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Bank list",
		Data:    banks,
	})
}

func (h *ResourcesHandler) HandleListMobileNetworks(w http.ResponseWriter, r *http.Request) {
	country := countryParam(r)
	if country == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Missing country parameter")
		return
	}

	networks, err := h.resources.MobileNetworks(r.Context(), country)
	if err != nil {
		utils.SendServiceError(w, err)
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Mobile network list",
		Data:    networks,
	})
}
