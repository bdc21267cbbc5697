// internal/service/stock/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"atlas/internal/pkg/apperr"
	"atlas/internal/pkg/logger"
	"atlas/internal/service/stock/application"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "stock-service"

// StockHandler 暴露库存服务的 HTTP 边界。
// 预占/释放/扣减的业务语义全部在 StockService 与 actor 中，这里只做编解码。
type StockHandler struct {
	service *application.StockService
}

// NewStockHandler 创建一个新的 HTTP 处理器实例
func NewStockHandler(service *application.StockService) *StockHandler {
	return &StockHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *StockHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("POST /stock/{productId}/reserve", h.reserveHandler)
	mux.HandleFunc("POST /stock/{productId}/release", h.releaseHandler)
	mux.HandleFunc("POST /stock/{productId}/reduce", h.reduceHandler)
	mux.HandleFunc("POST /stock/{productId}/restore", h.restoreHandler)
	mux.HandleFunc("PUT /stock/{productId}", h.setOnHandHandler)
	mux.HandleFunc("GET /stock/{productId}", h.statusHandler)
}

type reserveRequest struct {
	Quantity   int    `json:"quantity"`
	OrderID    string `json:"orderId"`
	TTLMinutes int    `json:"ttlMinutes"`
}

func (h *StockHandler) reserveHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "stock-service.Reserve")
	defer span.End()
	productID := r.PathValue("productId")
	span.SetAttributes(attribute.String("product.id", productID))

	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body: %v", err))
		return
	}
	ttl := time.Duration(req.TTLMinutes) * time.Minute

	if err := h.service.Reserve(ctx, productID, req.OrderID, req.Quantity, ttl); err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type releaseRequest struct {
	OrderID string `json:"orderId"`
}

func (h *StockHandler) releaseHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "stock-service.Release")
	defer span.End()
	productID := r.PathValue("productId")

	var req releaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body: %v", err))
		return
	}

	// Release 幂等：没有预占也返回 200
	if err := h.service.Release(ctx, productID, req.OrderID); err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type reduceRequest struct {
	Quantity int    `json:"quantity"`
	OrderID  string `json:"orderId"`
}

func (h *StockHandler) reduceHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "stock-service.Reduce")
	defer span.End()
	productID := r.PathValue("productId")

	var req reduceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body: %v", err))
		return
	}

	if err := h.service.Reduce(ctx, productID, req.OrderID, req.Quantity); err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type restoreRequest struct {
	Quantity int `json:"quantity"`
}

func (h *StockHandler) restoreHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "stock-service.Restore")
	defer span.End()
	productID := r.PathValue("productId")

	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body: %v", err))
		return
	}

	if err := h.service.Restore(ctx, productID, req.Quantity); err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type setOnHandRequest struct {
	OnHand int `json:"onHand"`
}

func (h *StockHandler) setOnHandHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "stock-service.SetOnHand")
	defer span.End()
	productID := r.PathValue("productId")

	var req setOnHandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body: %v", err))
		return
	}

	if err := h.service.SetOnHand(ctx, productID, req.OnHand); err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *StockHandler) statusHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "stock-service.Status")
	defer span.End()
	productID := r.PathValue("productId")

	snap, err := h.service.Status(ctx, productID)
	if err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
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
