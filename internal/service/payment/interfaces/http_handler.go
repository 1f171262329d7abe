// internal/service/payment/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"net/http"
	"time"

	"checkout/internal/pkg/bootstrap"
	"checkout/internal/pkg/httpclient"
	"checkout/internal/pkg/logger"
	"checkout/internal/service/payment/application"
	"checkout/internal/service/payment/domain"

	"github.com/pkg/errors"
)

// PaymentHandler 封装了 payment 服务的 HTTP 处理器
type PaymentHandler struct {
	authorizer *application.Authorizer
}

func NewPaymentHandler(authorizer *application.Authorizer) *PaymentHandler {
	return &PaymentHandler{authorizer: authorizer}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *PaymentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /payments/process", h.handleProcess)
	mux.HandleFunc("POST /payments/{paymentId}/refund", h.handleRefund)
	mux.HandleFunc("POST /payments/orders/{orderId}/refund", h.handleRefundByOrder)
	mux.HandleFunc("GET /payments/{paymentId}", h.handleGet)
}

// ProcessResponse 是 /payments/process 的响应体。
type ProcessResponse struct {
	PaymentID      string        `json:"paymentId"`
	Status         domain.Status `json:"status"`
	Error          string        `json:"error,omitempty"`
	Details        string        `json:"details,omitempty"`
	ProcessingTime int64         `json:"processingTime"`
}

func (h *PaymentHandler) handleProcess(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req domain.AuthorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		bootstrap.WriteJSON(w, http.StatusBadRequest, ProcessResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}
	if req.UserID == "" {
		req.UserID = httpclient.CorrelationFrom(ctx).UserID
	}

	p, err := h.authorizer.Authorize(ctx, req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			bootstrap.WriteJSON(w, http.StatusBadRequest, ProcessResponse{Error: "Invalid payment request", Details: err.Error(), ProcessingTime: elapsed})
			return
		}
		logger.Ctx(ctx).Error().Err(err).Str("order_id", req.OrderID).Msg("payment service error")
		bootstrap.WriteJSON(w, http.StatusServiceUnavailable, ProcessResponse{Error: "Payment service unavailable", ProcessingTime: elapsed})
		return
	}

	resp := ProcessResponse{PaymentID: p.ID, Status: p.Status, ProcessingTime: elapsed}
	if p.Status == domain.StatusDeclined {
		resp.Error = "Payment declined"
		resp.Details = p.DeclineReason
		bootstrap.WriteJSON(w, http.StatusPaymentRequired, resp)
		return
	}
	bootstrap.WriteJSON(w, http.StatusOK, resp)
}

type refundRequest struct {
	OrderID string `json:"orderId"`
}

func (h *PaymentHandler) handleRefund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refundRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			bootstrap.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}
	}

	orderID := req.OrderID
	if orderID == "" {
		p, err := h.authorizer.Get(ctx, r.PathValue("paymentId"))
		if err != nil {
			h.writeLookupError(w, r, err)
			return
		}
		orderID = p.OrderID
	}

	h.refund(w, r, orderID)
}

// handleRefundByOrder 供编排器补偿使用，它只知道 orderId。
func (h *PaymentHandler) handleRefundByOrder(w http.ResponseWriter, r *http.Request) {
	h.refund(w, r, r.PathValue("orderId"))
}

func (h *PaymentHandler) refund(w http.ResponseWriter, r *http.Request, orderID string) {
	p, err := h.authorizer.Refund(r.Context(), orderID)
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	bootstrap.WriteJSON(w, http.StatusOK, map[string]any{
		"paymentId": p.ID,
		"orderId":   p.OrderID,
		"status":    p.Status,
	})
}

func (h *PaymentHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.authorizer.Get(r.Context(), r.PathValue("paymentId"))
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	bootstrap.WriteJSON(w, http.StatusOK, p)
}

func (h *PaymentHandler) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrPaymentNotFound) {
		bootstrap.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "Payment not found"})
		return
	}
	logger.Ctx(r.Context()).Error().Err(err).Msg("payment lookup failed")
	bootstrap.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Payment service unavailable"})
}
