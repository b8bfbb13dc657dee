package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-order-payments/internal/orders"
	"github.com/ariefcatur/go-order-payments/internal/payments"
	"github.com/ariefcatur/go-order-payments/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrdersHandler struct {
	Store     orders.Store
	Initiator *payments.Initiator
	Cache     *redisx.StatusCache
	Log       *zap.Logger
}

type CreateOrderReq struct {
	AmountMinor int64  `json:"amount_minor" validate:"gt=0"`
	Currency    string `json:"currency" validate:"required,len=3,alpha"`
}

type CheckoutReq struct {
	AmountMinor int64  `json:"amount_minor" validate:"gt=0"`
	Currency    string `json:"currency" validate:"required,len=3,alpha"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Post("/orders/{id}/checkout", h.checkout)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Store.Create(ctx, orders.Order{
		ID:          uuid.NewString(),
		AmountMinor: req.AmountMinor,
		Currency:    strings.ToLower(req.Currency),
		Status:      orders.StatusPending,
	})
	if err != nil {
		h.fail(w, "create order", err)
		return
	}
	if err := h.Cache.Put(ctx, o.ID, redisx.CachedStatus{Status: string(o.Status), Version: o.Version}); err != nil {
		h.Log.Warn("status cache write failed", zap.String("order_id", o.ID), zap.Error(err))
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Store.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getStatus answers from the Redis cache and falls back to the store.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if cs, ok, err := h.Cache.Get(ctx, orderID); err == nil && ok {
		writeJSON(w, http.StatusOK, cs)
		return
	}

	o, err := h.Store.Get(ctx, orderID)
	if err != nil {
		h.fail(w, "get order status", err)
		return
	}
	cs := redisx.CachedStatus{Status: string(o.Status), Version: o.Version}
	if err := h.Cache.Put(ctx, orderID, cs); err != nil {
		h.Log.Warn("status cache write failed", zap.String("order_id", orderID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutReq
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.Initiator.CreateSession(r.Context(), chi.URLParam(r, "id"), req.AmountMinor, req.Currency)
	if err != nil {
		h.fail(w, "create payment session", err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *OrdersHandler) fail(w http.ResponseWriter, op string, err error) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.Log.Error(op, zap.Error(err))
	}
	writeError(w, code, msg)
}
