package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ariefcatur/go-commerce-core.git/internal/commerce"
	kafkax "github.com/ariefcatur/go-commerce-core.git/internal/kafka"
	"github.com/ariefcatur/go-commerce-core.git/internal/metrics"
	"github.com/ariefcatur/go-commerce-core.git/internal/orders"
	"github.com/ariefcatur/go-commerce-core.git/internal/redisx"
	"github.com/go-chi/chi/v5"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

type OrdersHandler struct {
	Engine            *orders.Engine
	ProducerCreated   *kafkax.Producer
	ProducerCancelled *kafkax.Producer
	Redis             *redis.Client
	Metrics           *metrics.Metrics
	Validate          *validatorv10.Validate
	Service           string
}

type createOrderReq struct {
	FromCart bool             `json:"from_cart"`
	Items    []orderItemInput `json:"items" validate:"omitempty,dive"`
}

type orderItemInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Qty       int    `json:"qty" validate:"required,gt=0"`
}

type setStatusReq struct {
	Status string `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
}

func (h *OrdersHandler) RegisterAdmin(r chi.Router) {
	r.Patch("/admin/orders/{id}/status", h.adminSetStatus)
}

type orderResp struct {
	ID           string          `json:"id"`
	Status       commerce.Status `json:"status"`
	TotalCents   int             `json:"total_cents"`
	CreatedAt    time.Time       `json:"created_at"`
	ProcessingAt *time.Time      `json:"processing_at,omitempty"`
	ShippedAt    *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt  *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt  *time.Time      `json:"cancelled_at,omitempty"`
	Items        []orderItemResp `json:"items,omitempty"`
}

type orderItemResp struct {
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	PriceCents int    `json:"price_cents"`
}

func toOrderResp(o commerce.Order, items []commerce.OrderItem) orderResp {
	resp := orderResp{
		ID:           o.ID,
		Status:       o.Status,
		TotalCents:   o.TotalCents,
		CreatedAt:    o.CreatedAt,
		ProcessingAt: o.ProcessingAt,
		ShippedAt:    o.ShippedAt,
		DeliveredAt:  o.DeliveredAt,
		CancelledAt:  o.CancelledAt,
	}
	for _, it := range items {
		resp.Items = append(resp.Items, orderItemResp{ProductID: it.ProductID, Qty: it.Qty, PriceCents: it.PriceCents})
	}
	return resp
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := decodeAndValidate(w, r, &req, h.Validate); err != nil {
		return
	}
	if !req.FromCart && len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "validation_failed", "detail": "order must contain at least one item"})
		return
	}
	id, _ := identity(r)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var (
		order      commerce.Order
		orderItems []commerce.OrderItem
		err        error
	)
	if req.FromCart {
		order, orderItems, err = h.Engine.CreateFromCart(ctx, id.UserID)
	} else {
		items := make([]commerce.ItemQty, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, commerce.ItemQty{ProductID: it.ProductID, Qty: it.Qty})
		}
		order, orderItems, err = h.Engine.CreateFromItems(ctx, id.UserID, items)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	h.Metrics.OrdersCreated.Inc()
	h.cacheStatus(ctx, order.ID, order.Status)
	h.publishCreated(r, order, orderItems)

	writeJSON(w, http.StatusCreated, toOrderResp(order, orderItems))
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := identity(r)
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Engine.ListForUser(ctx, id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]orderResp, 0, len(list))
	for _, o := range list {
		out = append(out, toOrderResp(o, nil))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := identity(r)
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	order, items, err := h.Engine.Get(ctx, chi.URLParam(r, "id"), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(order, items))
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := identity(r)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orderID := chi.URLParam(r, "id")
	order, err := h.Engine.Cancel(ctx, orderID, id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	h.Metrics.OrdersCancelled.Inc()
	h.cacheStatus(ctx, order.ID, order.Status)
	h.publishCancelled(r, order, id.UserID)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Order cancelled successfully", "order_id": order.ID})
}

func (h *OrdersHandler) adminSetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusReq
	if err := decodeAndValidate(w, r, &req, h.Validate); err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, err := h.Engine.AdminSetStatus(ctx, chi.URLParam(r, "id"), commerce.Status(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}

	h.cacheStatus(ctx, order.ID, order.Status)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Order status updated to %s", order.Status),
	})
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, orderID string, status commerce.Status) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, _ := json.Marshal(map[string]string{"status": string(status)})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}

func (h *OrdersHandler) publishCreated(r *http.Request, order commerce.Order, items []commerce.OrderItem) {
	prices := make([]commerce.ItemPrice, 0, len(items))
	for _, it := range items {
		prices = append(prices, commerce.ItemPrice{ProductID: it.ProductID, Qty: it.Qty, PriceCents: it.PriceCents})
	}
	ev := commerce.Envelope{
		EventID:       uuid.NewString(),
		EventType:     commerce.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: order.ID,
		Payload: kafkax.MustMarshal(commerce.OrderCreatedPayload{
			OrderID:    order.ID,
			UserID:     order.UserID,
			Status:     order.Status,
			Items:      prices,
			TotalCents: order.TotalCents,
		}),
	}
	h.ProducerCreated.Publish(commerce.PartitionKey(order.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(commerce.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (h *OrdersHandler) publishCancelled(r *http.Request, order commerce.Order, userID string) {
	ev := commerce.Envelope{
		EventID:       uuid.NewString(),
		EventType:     commerce.EventOrderCancelled,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: order.ID,
		Payload: kafkax.MustMarshal(commerce.OrderCancelledPayload{
			OrderID: order.ID,
			UserID:  userID,
		}),
	}
	h.ProducerCancelled.Publish(commerce.PartitionKey(order.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(commerce.EventOrderCancelled)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
