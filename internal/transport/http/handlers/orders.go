package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baechuer/orderflow/internal/domain"
	"github.com/baechuer/orderflow/internal/orders"
	"github.com/baechuer/orderflow/internal/transport/http/response"
	"github.com/baechuer/orderflow/internal/transport/http/validate"
)

type OrdersHandler struct {
	svc *orders.Service
}

func NewOrdersHandler(svc *orders.Service) *OrdersHandler {
	return &OrdersHandler{svc: svc}
}

// Validate checks a request body without creating anything.
func (h *OrdersHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if err := validate.DecodeJSON(r, &req); err != nil {
		response.Err(w, r, domain.ErrValidation("malformed JSON body"))
		return
	}

	normalized, err := h.svc.Validate(req)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{"normalized": normalized})
}

// Create is the idempotent order write path.
func (h *OrdersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if err := validate.DecodeJSON(r, &req); err != nil {
		response.Err(w, r, domain.ErrValidation("malformed JSON body"))
		return
	}

	status, resp, err := h.svc.Create(r.Context(), r.Header, req)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, status, resp)
}

// Get looks up a single order by id.
func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	resp, err := h.svc.Get(r.Context(), id)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, resp)
}
