package domain

import (
	"fmt"
	"time"
)

// Order is the write path's domain row. It is immutable once created —
// this spec has no update/cancel operations for orders.
type Order struct {
	ID         string
	ExternalID string
	ItemCount  int
	TotalQty   int
	CreatedAt  time.Time
}

// Item is one line of a create-order request.
type Item struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

// CreateOrderRequest is the wire shape accepted by both the validate and
// create endpoints.
type CreateOrderRequest struct {
	ExternalID string `json:"external_id"`
	Items      []Item `json:"items"`
}

// Normalized is the derived, validated view of a request: item_count is
// the number of line items, total_qty the sum of their quantities.
type Normalized struct {
	ExternalID string `json:"external_id"`
	ItemCount  int    `json:"item_count"`
	TotalQty   int    `json:"total_qty"`
}

// Validate enforces the order invariants: external_id non-empty, at least
// one item, and every item's sku non-empty with qty >= 1. It never opens a
// transaction — validation failures are rejected before any store access.
func Validate(req CreateOrderRequest) (Normalized, error) {
	details := map[string]string{}

	if req.ExternalID == "" {
		details["external_id"] = "must not be empty"
	}
	if len(req.Items) == 0 {
		details["items"] = "must contain at least one item"
	}
	for i, it := range req.Items {
		if it.SKU == "" {
			details[fmt.Sprintf("items[%d].sku", i)] = "must not be empty"
		}
		if it.Qty < 1 {
			details[fmt.Sprintf("items[%d].qty", i)] = "must be >= 1"
		}
	}

	if len(details) > 0 {
		return Normalized{}, ErrValidationDetails("order request failed validation", details)
	}

	totalQty := 0
	for _, it := range req.Items {
		totalQty += it.Qty
	}

	return Normalized{
		ExternalID: req.ExternalID,
		ItemCount:  len(req.Items),
		TotalQty:   totalQty,
	}, nil
}
