package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-commerce-core.git/internal/cart"
	"github.com/go-chi/chi/v5"
	validatorv10 "github.com/go-playground/validator/v10"
)

type CartHandler struct {
	Svc      *cart.Service
	Validate *validatorv10.Validate
}

type addCartItemReq struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type setCartQtyReq struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Get("/cart", h.getCart)
	r.Get("/cart/validate", h.validateCart)
	r.Post("/cart/items", h.addItem)
	r.Patch("/cart/items/{id}", h.updateItem)
	r.Delete("/cart/items/{id}", h.removeItem)
}

type cartLineResp struct {
	ID            string `json:"id"`
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name"`
	PriceCents    int    `json:"price_cents"`
	Qty           int    `json:"qty"`
	SubtotalCents int    `json:"subtotal_cents"`
}

type cartResp struct {
	ID            string         `json:"id"`
	Items         []cartLineResp `json:"items"`
	TotalQty      int            `json:"total_qty"`
	SubtotalCents int            `json:"subtotal_cents"`
}

func toCartResp(v cart.View) cartResp {
	out := cartResp{ID: v.Cart.ID, Items: []cartLineResp{}, TotalQty: v.TotalQty, SubtotalCents: v.Subtotal}
	for _, l := range v.Items {
		out.Items = append(out.Items, cartLineResp{
			ID:            l.Item.ID,
			ProductID:     l.Item.ProductID,
			ProductName:   l.ProductName,
			PriceCents:    l.PriceCents,
			Qty:           l.Item.Qty,
			SubtotalCents: l.SubtotalCents,
		})
	}
	return out
}

func (h *CartHandler) reqCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 5*time.Second)
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	id, _ := identity(r)
	ctx, cancel := h.reqCtx(r)
	defer cancel()

	view, err := h.Svc.GetOrCreate(ctx, id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResp(view))
}

func (h *CartHandler) validateCart(w http.ResponseWriter, r *http.Request) {
	id, _ := identity(r)
	ctx, cancel := h.reqCtx(r)
	defer cancel()

	rep, err := h.Svc.Validate(ctx, id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemReq
	if err := decodeAndValidate(w, r, &req, h.Validate); err != nil {
		return
	}
	id, _ := identity(r)
	ctx, cancel := h.reqCtx(r)
	defer cancel()

	view, err := h.Svc.Add(ctx, id.UserID, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCartResp(view))
}

func (h *CartHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req setCartQtyReq
	if err := decodeAndValidate(w, r, &req, h.Validate); err != nil {
		return
	}
	id, _ := identity(r)
	ctx, cancel := h.reqCtx(r)
	defer cancel()

	view, err := h.Svc.SetQuantity(ctx, id.UserID, chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResp(view))
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, _ := identity(r)
	ctx, cancel := h.reqCtx(r)
	defer cancel()

	view, err := h.Svc.Remove(ctx, id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResp(view))
}
