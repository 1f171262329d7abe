// internal/service/order/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"checkout/internal/pkg/bootstrap"
	"checkout/internal/pkg/httpclient"
	"checkout/internal/pkg/logger"
	"checkout/internal/service/order/application"
	"checkout/internal/service/order/domain"
)

const productsTimeout = 5 * time.Second

// OrderHandler 封装了 order 服务的 HTTP 处理器
type OrderHandler struct {
	service *application.OrderApplicationService
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(service *application.OrderApplicationService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", h.handlePlaceOrder)
	mux.HandleFunc("GET /orders", h.handleListByStatus)
	mux.HandleFunc("GET /orders/{orderId}", h.handleGetOrder)
	mux.HandleFunc("GET /users/{userId}/orders", h.handleUserOrders)
	mux.HandleFunc("POST /users/session", h.handleCreateSession)
	mux.HandleFunc("GET /products", h.handleProducts)
}

type placeOrderResponse struct {
	OrderID        string        `json:"orderId"`
	Status         domain.Status `json:"status"`
	PaymentID      string        `json:"paymentId,omitempty"`
	TotalAmount    float64       `json:"totalAmount"`
	Message        string        `json:"message"`
	ProcessingTime int64         `json:"processingTime"`
}

type errorResponse struct {
	Error          string        `json:"error"`
	Details        string        `json:"details"`
	ErrorType      string        `json:"errorType,omitempty"`
	OrderID        string        `json:"orderId,omitempty"`
	Status         domain.Status `json:"status,omitempty"`
	ProcessingTime int64         `json:"processingTime"`
}

func (h *OrderHandler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req application.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		bootstrap.WriteJSON(w, http.StatusBadRequest, errorResponse{
			Error:          "Failed to place order",
			Details:        "Invalid request body",
			ErrorType:      domain.KindName(domain.NewOrderError(domain.ErrValidation, "", "", nil)),
			ProcessingTime: time.Since(start).Milliseconds(),
		})
		return
	}
	if req.UserID == "" {
		req.UserID = httpclient.CorrelationFrom(ctx).UserID
	}

	result, err := h.service.PlaceOrder(ctx, req)
	if err != nil {
		resp := errorResponse{
			Error:          "Failed to place order",
			Details:        detailsOf(err),
			ErrorType:      domain.KindName(err),
			ProcessingTime: time.Since(start).Milliseconds(),
		}
		if result != nil {
			resp.OrderID = result.OrderID
			resp.Status = result.Status
		}
		bootstrap.WriteJSON(w, statusFor(err), resp)
		return
	}

	bootstrap.WriteJSON(w, http.StatusCreated, placeOrderResponse{
		OrderID:        result.OrderID,
		Status:         result.Status,
		PaymentID:      result.PaymentID,
		TotalAmount:    result.TotalAmount,
		Message:        "Order placed successfully",
		ProcessingTime: time.Since(start).Milliseconds(),
	})
}

// statusFor 根据错误分类返回不同的 HTTP 状态码
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.ErrValidation, domain.ErrInsufficientInventory, domain.ErrPaymentDeclined:
		return http.StatusBadRequest
	case domain.ErrReservationConflict:
		return http.StatusConflict
	case domain.ErrInventoryUnavailable, domain.ErrPaymentUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// detailsOf 只暴露分类后的描述，不泄露下游的原始错误。
func detailsOf(err error) string {
	var oe *domain.OrderError
	if errors.As(err, &oe) && oe.Details != "" {
		return oe.Details
	}
	return domain.KindOf(err).Error()
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrder(r.Context(), r.PathValue("orderId"))
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	bootstrap.WriteJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) handleUserOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListUserOrders(r.Context(), r.PathValue("userId"))
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	writeOrders(w, orders)
}

// handleListByStatus 供运维查询，例如 ?status=compensating-failed。
func (h *OrderHandler) handleListByStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := domain.ParseStatus(r.URL.Query().Get("status"))
	if !ok {
		bootstrap.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "A valid status query parameter is required"})
		return
	}
	orders, err := h.service.ListByStatus(r.Context(), status)
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	writeOrders(w, orders)
}

func writeOrders(w http.ResponseWriter, orders []*domain.Order) {
	if orders == nil {
		orders = []*domain.Order{}
	}
	bootstrap.WriteJSON(w, http.StatusOK, map[string]any{
		"orders": orders,
		"total":  len(orders),
	})
}

func (h *OrderHandler) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrOrderNotFound) {
		bootstrap.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "Order not found"})
		return
	}
	logger.Ctx(r.Context()).Error().Err(err).Msg("order lookup failed")
	bootstrap.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load orders"})
}

func (h *OrderHandler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	corr := httpclient.CorrelationFrom(r.Context())
	session, err := h.service.CreateSession(r.Context(), application.SessionRequest{
		UserID: corr.UserID,
		Plan:   corr.Plan,
		Region: corr.Region,
	})
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("failed to create session")
		bootstrap.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create session"})
		return
	}
	bootstrap.WriteJSON(w, http.StatusOK, map[string]string{
		"sessionId": session.ID,
		"message":   "Session created",
	})
}

func (h *OrderHandler) handleProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), productsTimeout)
	defer cancel()

	products, err := h.service.ListProducts(ctx)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to fetch products")
		bootstrap.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Inventory service unavailable"})
		return
	}
	bootstrap.WriteJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"total":    len(products),
	})
}
