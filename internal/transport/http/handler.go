// Package http exposes order placement and cancellation over a chi router.
package http

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Youmanvi/ticketreserve/internal/domain"
	"github.com/Youmanvi/ticketreserve/internal/infrastructure/observability"
	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
)

// OrderService is the ordering surface the handler drives.
type OrderService interface {
	PlaceOrder(ctx context.Context, memberID int64, ticketIDs []int64) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID int64) error
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
}

type Handler struct {
	service OrderService
	logger  *observability.Logger
	timeout time.Duration
}

func NewHandler(service OrderService, logger *observability.Logger, timeout time.Duration) *Handler {
	return &Handler{service: service, logger: logger, timeout: timeout}
}

// Routes mounts the order API. /metrics is served from gatherer when it is
// not nil.
func (h *Handler) Routes(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.traceRequests)
	if h.timeout > 0 {
		r.Use(middleware.Timeout(h.timeout))
	}

	r.Post("/orders", h.placeOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Delete("/orders/{id}", h.cancelOrder)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

type placeOrderReq struct {
	MemberID  int64   `json:"memberId"`
	TicketIDs []int64 `json:"ticketIds"`
}

type moneyResp struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type lineResp struct {
	LineID        int64     `json:"lineId"`
	TicketID      int64     `json:"ticketId"`
	PurchasePrice moneyResp `json:"purchasePrice"`
	CreatedAt     time.Time `json:"createdAt"`
}

type orderResp struct {
	OrderID     int64      `json:"orderId"`
	MemberID    int64      `json:"memberId"`
	Status      string     `json:"status"`
	TotalAmount moneyResp  `json:"totalAmount"`
	OrderedAt   time.Time  `json:"orderedAt"`
	Lines       []lineResp `json:"lines,omitempty"`
}

type errorResp struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, errors.NewValidationError("invalid body: %v", err))
		return
	}

	order, err := h.service.PlaceOrder(r.Context(), req.MemberID, req.TicketIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := toOrderResp(order)
	resp.Lines = nil
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResp(order))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.service.CancelOrder(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func orderID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewValidationError("invalid order id %q", raw)
	}
	return id, nil
}

// StatusFor maps an error to the HTTP status it is reported with.
func StatusFor(err error) int {
	switch errors.CodeOf(err) {
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeValidation:
		return http.StatusBadRequest
	case errors.CodeInvalidState, errors.CodeOutOfStock:
		return http.StatusConflict
	case errors.CodeLockTimeout:
		return http.StatusServiceUnavailable
	case errors.CodeExternalServiceFailure:
		return http.StatusBadGateway
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	code := errors.CodeOf(err)

	event := h.logger.Logger.Warn()
	if status >= http.StatusInternalServerError {
		event = h.logger.Logger.Error()
	}
	event.Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Str("error_code", code).
		Msg("request failed")

	resp := errorResp{Code: code, Message: err.Error()}
	if status == http.StatusInternalServerError || status == http.StatusGatewayTimeout {
		resp = errorResp{Code: "INTERNAL", Message: http.StatusText(status)}
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, resp)
}

// traceRequests seeds the request context with a trace id so service logs
// and audit records of one request correlate.
func (h *Handler) traceRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-Id")
		if traceID == "" {
			if id, err := observability.GenerateCryptographicTraceID(); err == nil {
				traceID = id
			}
		}
		if traceID != "" {
			w.Header().Set("X-Trace-Id", traceID)
			r = r.WithContext(observability.ContextWithTraceID(r.Context(), traceID))
		}
		next.ServeHTTP(w, r)
	})
}

func toOrderResp(o *domain.Order) orderResp {
	return orderResp{
		OrderID:     o.ID,
		MemberID:    o.MemberID,
		Status:      string(o.Status),
		TotalAmount: toMoneyResp(o.TotalAmount),
		OrderedAt:   o.OrderedAt,
		Lines: lo.Map(o.Lines, func(l *domain.OrderLine, _ int) lineResp {
			return lineResp{
				LineID:        l.ID,
				TicketID:      l.TicketID,
				PurchasePrice: toMoneyResp(l.PurchasePrice),
				CreatedAt:     l.CreatedAt,
			}
		}),
	}
}

func toMoneyResp(m domain.Money) moneyResp {
	return moneyResp{Amount: m.Amount.String(), Currency: m.Currency.String()}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
