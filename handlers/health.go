package handlers

import (
	"context"
	"net/http"
	"time"

	"dukalink-payment-api/database"
	"dukalink-payment-api/models"
	"dukalink-payment-api/utils"
)

func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// HealthHandler reports readiness of the storage backends.
type HealthHandler struct {
	db *database.Connection
}

func NewHealthHandler(db *database.Connection) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(); err != nil {
		utils.SendErrorResponse(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "ok",
	})
}
