// internal/service/inventory/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"net/http"

	"checkout/internal/pkg/bootstrap"
	"checkout/internal/pkg/logger"
	"checkout/internal/service/inventory/application"
	"checkout/internal/service/inventory/domain"

	"github.com/pkg/errors"
)

// InventoryHandler 封装了 inventory 服务的 HTTP 处理器
type InventoryHandler struct {
	service *application.Service
}

func NewInventoryHandler(service *application.Service) *InventoryHandler {
	return &InventoryHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *InventoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /inventory", h.handleList)
	mux.HandleFunc("POST /inventory/validate", h.handleValidate)
	mux.HandleFunc("POST /inventory/reserve", h.handleReserve)
	mux.HandleFunc("POST /inventory/release", h.handleRelease)
}

type productView struct {
	domain.Product
	Available int `json:"available"`
}

type itemsRequest struct {
	OrderID string        `json:"orderId"`
	Items   []domain.Item `json:"items"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (h *InventoryHandler) handleList(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.List(r.Context())
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("failed to list inventory")
		bootstrap.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to list inventory"})
		return
	}

	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, productView{Product: p, Available: p.Available()})
	}
	bootstrap.WriteJSON(w, http.StatusOK, map[string]any{
		"products": views,
		"total":    len(views),
	})
}

func (h *InventoryHandler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req itemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		bootstrap.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}

	result, err := h.service.Validate(r.Context(), req.Items)
	if err != nil {
		h.writeError(w, r, "Inventory validation failed", err)
		return
	}
	bootstrap.WriteJSON(w, http.StatusOK, result)
}

func (h *InventoryHandler) handleReserve(w http.ResponseWriter, r *http.Request) {
	var req itemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		bootstrap.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}

	result, err := h.service.Reserve(r.Context(), req.OrderID, req.Items)
	if err != nil {
		h.writeError(w, r, "Inventory reservation failed", err)
		return
	}
	bootstrap.WriteJSON(w, http.StatusOK, result)
}

func (h *InventoryHandler) handleRelease(w http.ResponseWriter, r *http.Request) {
	var req itemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		bootstrap.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "orderId is required"})
		return
	}

	released, err := h.service.Release(r.Context(), req.OrderID)
	if err != nil {
		h.writeError(w, r, "Inventory release failed", err)
		return
	}
	bootstrap.WriteJSON(w, http.StatusOK, map[string]any{
		"orderId":  req.OrderID,
		"released": true,
		"noop":     !released,
	})
}

func (h *InventoryHandler) writeError(w http.ResponseWriter, r *http.Request, summary string, err error) {
	var statusCode int
	switch {
	case errors.Is(err, domain.ErrReservationConflict):
		statusCode = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidItems),
		errors.Is(err, domain.ErrUnknownProduct):
		statusCode = http.StatusBadRequest
	default:
		statusCode = http.StatusInternalServerError
		logger.Ctx(r.Context()).Error().Err(err).Msg(summary)
	}
	bootstrap.WriteJSON(w, statusCode, errorResponse{Error: summary, Details: err.Error()})
}
