package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/agri-marketplace/internal/auth"
	kafkax "github.com/ariefcatur/agri-marketplace/internal/kafka"
	"github.com/ariefcatur/agri-marketplace/internal/orders"
	"github.com/ariefcatur/agri-marketplace/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const idemSettleTimeout = 2 * time.Second

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type StatusCache interface {
	Get(ctx context.Context, orderID int64) (*redisx.OrderStatus, error)
	Set(ctx context.Context, st redisx.OrderStatus) error
	Delete(ctx context.Context, orderID int64) error
}

type Idempotency interface {
	Claim(ctx context.Context, buyerID int64, key string) (orderID int64, claimed bool, err error)
	Complete(ctx context.Context, buyerID int64, key string, orderID int64) error
	Release(ctx context.Context, buyerID int64, key string) error
}

type OrdersHandler struct {
	Service       *orders.Service
	Placed        Publisher // order.placed
	StatusChanged Publisher // order.status.changed
	Cache         StatusCache
	Idem          Idempotency
	Log           *zap.Logger
	ServiceName   string
	Timeout       time.Duration
}

func (h *OrdersHandler) Register(r chi.Router, authn *auth.Authenticator) {
	r.Group(func(r chi.Router) {
		r.Use(authn.Middleware)
		r.Post("/orders", h.placeOrder)
		r.Get("/orders", h.listMine)
		r.Get("/orders/{id}", h.getOrder)
		r.Get("/orders/{id}/status", h.getStatus)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireVendor)
			r.Get("/vendor/orders", h.listVendor)
			r.Patch("/vendor/orders/{id}", h.updateStatus)
		})
	})
}

func (h *OrdersHandler) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	if h.Timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.Timeout)
}

func caller(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid_request", "invalid json")
		return
	}
	buyer := caller(r).UserID

	ctx, cancel := h.ctx(r)
	defer cancel()

	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.Idem != nil {
		prev, claimed, err := h.Idem.Claim(ctx, buyer, key)
		switch {
		case err != nil:
			// Redis is a fast path only; place without the guard.
			h.Log.Warn("idempotency claim failed", zap.Int64("buyer_id", buyer), zap.Error(err))
			key = ""
		case !claimed && prev > 0:
			o, err := h.Service.GetForBuyer(ctx, buyer, prev)
			if err != nil {
				writeError(w, h.Log, err)
				return
			}
			w.Header().Set("Idempotent-Replay", "true")
			writeJSON(w, http.StatusOK, o)
			return
		case !claimed:
			writeProblem(w, http.StatusConflict, "request_in_progress", "an order with this Idempotency-Key is still being placed")
			return
		}
	}

	o, err := h.Service.PlaceOrder(ctx, buyer, req)
	if key != "" && h.Idem != nil {
		h.settleIdempotency(ctx, buyer, key, o, err)
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	h.publish(r, h.Placed, orders.EventOrderPlaced, o.ID, orders.PlacedPayload(o))
	writeJSON(w, http.StatusCreated, o)
}

// settleIdempotency records the placed order under key, or frees key after a
// failure. It runs detached from the request so an expired or cancelled
// request still settles the claim.
func (h *OrdersHandler) settleIdempotency(ctx context.Context, buyer int64, key string, o *orders.Order, placeErr error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), idemSettleTimeout)
	defer cancel()

	if placeErr != nil {
		if err := h.Idem.Release(ctx, buyer, key); err != nil {
			h.Log.Warn("idempotency release failed", zap.Int64("buyer_id", buyer), zap.Error(err))
		}
		return
	}
	if err := h.Idem.Complete(ctx, buyer, key, o.ID); err != nil {
		h.Log.Warn("idempotency complete failed", zap.Int64("order_id", o.ID), zap.Error(err))
	}
}

func (h *OrdersHandler) listMine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	list, err := h.Service.ListForBuyer(ctx, caller(r).UserID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, h.Log, orders.ErrNotFound)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	o, err := h.Service.GetForBuyer(ctx, caller(r).UserID, id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getStatus serves from the Redis read model and falls back to Postgres.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, h.Log, orders.ErrNotFound)
		return
	}
	buyer := caller(r).UserID

	ctx, cancel := h.ctx(r)
	defer cancel()

	st, err := h.Cache.Get(ctx, id)
	if err != nil {
		h.Log.Debug("status cache miss on error", zap.Int64("order_id", id), zap.Error(err))
	}
	if err == nil && st != nil {
		if st.BuyerID != buyer {
			writeError(w, h.Log, orders.ErrNotFound)
			return
		}
		writeJSON(w, http.StatusOK, st)
		return
	}

	o, err := h.Service.GetForBuyer(ctx, buyer, id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	fresh := redisx.OrderStatus{OrderID: o.ID, BuyerID: o.BuyerID, Status: string(o.Status), UpdatedAt: o.UpdatedAt}
	_ = h.Cache.Set(ctx, fresh)
	writeJSON(w, http.StatusOK, fresh)
}

func (h *OrdersHandler) listVendor(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	list, err := h.Service.ListForVendor(ctx, caller(r).UserID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, h.Log, orders.ErrNotFound)
		return
	}
	var req orders.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid_request", "invalid json")
		return
	}
	vendor := caller(r).UserID

	ctx, cancel := h.ctx(r)
	defer cancel()

	o, err := h.Service.UpdateStatus(ctx, id, vendor, req.Status)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if err := h.Cache.Delete(ctx, o.ID); err != nil {
		h.Log.Warn("status cache invalidate failed", zap.Int64("order_id", o.ID), zap.Error(err))
	}
	h.publish(r, h.StatusChanged, orders.EventOrderStatusChanged, o.ID, orders.OrderStatusChangedPayload{
		OrderID:   o.ID,
		BuyerID:   o.BuyerID,
		VendorID:  vendor,
		Status:    o.Status,
		UpdatedAt: o.UpdatedAt,
	})
	writeJSON(w, http.StatusOK, o)
}

// publish runs after commit; a lost event only delays the status cache.
func (h *OrdersHandler) publish(r *http.Request, p Publisher, eventType string, orderID int64, payload any) {
	trace := r.Header.Get("X-Request-Id")
	if trace == "" {
		trace = middleware.GetReqID(r.Context())
	}
	env, err := orders.NewEnvelope(eventType, h.ServiceName, trace, orderID, payload)
	if err != nil {
		h.Log.Error("build event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(env), kafkax.Headers(eventType, env.EventVersion)...)
}
