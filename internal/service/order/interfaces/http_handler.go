// internal/service/order/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"atlas/internal/pkg/apperr"
	"atlas/internal/pkg/logger"
	"atlas/internal/service/order/application"
	"atlas/internal/service/order/application/saga"
	"atlas/internal/service/order/domain"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "order-service"

// OrderHandler 暴露订单服务的 HTTP 边界。
type OrderHandler struct {
	service *application.Service
}

func NewOrderHandler(service *application.Service) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("POST /orders", h.createOrderHandler)
	mux.HandleFunc("POST /orders/cod", h.createCODOrderHandler)
	mux.HandleFunc("POST /orders/{orderId}/capture", h.captureHandler)
	mux.HandleFunc("POST /orders/{orderId}/cancel", h.cancelHandler)
	mux.HandleFunc("GET /orders/{orderId}", h.getOrderHandler)
}

type createOrderRequest struct {
	UserID            string            `json:"userId"`
	ShippingSelection map[string]string `json:"shippingSelection,omitempty"` // productId -> standard|express
	Address           string            `json:"address,omitempty"`
}

func (r createOrderRequest) toInput(token string) saga.CreateOrderInput {
	selection := make(map[string]domain.ShippingMode, len(r.ShippingSelection))
	for productID, mode := range r.ShippingSelection {
		selection[productID] = domain.ShippingMode(mode)
	}
	return saga.CreateOrderInput{
		UserID:            r.UserID,
		AccessToken:       token,
		ShippingSelection: selection,
		Address:           r.Address,
	}
}

func (h *OrderHandler) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "order-service.CreateOrder")
	defer span.End()

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body: %v", err))
		return
	}
	if req.UserID == "" {
		writeError(w, apperr.Validation("userId is required"))
		return
	}
	span.SetAttributes(attribute.String("user.id", req.UserID))

	result, err := h.service.CreateOrder(ctx, req.toInput(bearerToken(r)))
	if err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *OrderHandler) createCODOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "order-service.CreateCODOrder")
	defer span.End()

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body: %v", err))
		return
	}
	if req.UserID == "" {
		writeError(w, apperr.Validation("userId is required"))
		return
	}
	span.SetAttributes(attribute.String("user.id", req.UserID))

	result, err := h.service.CreateCODOrder(ctx, req.toInput(bearerToken(r)))
	if err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *OrderHandler) captureHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "order-service.CapturePayment")
	defer span.End()
	orderID := r.PathValue("orderId")
	span.SetAttributes(attribute.String("order.id", orderID))

	outcome, err := h.service.CapturePayment(ctx, saga.CaptureInput{
		OrderID:     orderID,
		AccessToken: bearerToken(r),
	})
	if err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *OrderHandler) cancelHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "order-service.CancelOrder")
	defer span.End()
	orderID := r.PathValue("orderId")
	span.SetAttributes(attribute.String("order.id", orderID))

	outcome, err := h.service.CancelOrder(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type orderResponse struct {
	OrderID          string             `json:"orderId"`
	UserID           string             `json:"userId"`
	Items            []domain.OrderItem `json:"items"`
	TotalAmount      int64              `json:"totalAmount"`
	PaymentMethod    string             `json:"paymentMethod"`
	Status           string             `json:"status"`
	PaymentReference string             `json:"paymentReference,omitempty"`
}

func (h *OrderHandler) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "order-service.GetOrder")
	defer span.End()
	orderID := r.PathValue("orderId")

	order, err := h.service.GetOrder(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}
	if order == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{
		OrderID:          order.ID,
		UserID:           order.UserID,
		Items:            order.Items,
		TotalAmount:      order.TotalAmount,
		PaymentMethod:    string(order.PaymentMethod),
		Status:           string(order.Status),
		PaymentReference: order.PaymentReference,
	})
}

// bearerToken 取出透传给协作方的用户访问令牌。
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return token
	}
	return ""
}

// startSpan 重建上游链路上下文并开启本服务的 Span。
func startSpan(r *http.Request, name string) (context.Context, trace.Span) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	return otel.Tracer(serviceName).Start(ctx, name)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Logger().Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.HTTPStatus(err), map[string]string{"error": err.Error()})
}
