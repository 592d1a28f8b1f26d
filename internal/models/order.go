package models

import "time"

// Order is the ephemeral per-user purchase session. It lives only inside the
// purchase workflow; at most one order exists per user at a time.
type Order struct {
	OrderID         string      `json:"order_id"`
	UserID          string      `json:"user_id"`
	ItemID          string      `json:"item_id"`
	Country         string      `json:"country"`
	Number          string      `json:"number"`
	Price           int64       `json:"price"`
	Status          OrderStatus `json:"status"`
	ProviderOrderID string      `json:"provider_order_id"`
	Code            string      `json:"code"`
	Attempts        int         `json:"attempts"`
	CreatedAt       time.Time   `json:"created_at"`
	Deadline        time.Time   `json:"deadline"`
}

type OrderStatus string

const (
	OrderStatusSelecting    OrderStatus = "selecting"
	OrderStatusConfirming   OrderStatus = "confirming"
	OrderStatusAllocating   OrderStatus = "allocating"
	OrderStatusAwaitingCode OrderStatus = "awaiting_code"
	OrderStatusDelivered    OrderStatus = "delivered"
	OrderStatusFailed       OrderStatus = "failed"
)

// Busy reports whether the order holds resources (a debit or an allocated
// number) and therefore blocks a new purchase for the same user.
func (o *Order) Busy() bool {
	return o.Status == OrderStatusAllocating || o.Status == OrderStatusAwaitingCode
}
