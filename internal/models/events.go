package models

import "time"

// Domain events published to the events exchange for downstream consumers
// (analytics, audit). Publishing is fire-and-forget; workflows never fail on
// a publish error.

const (
	EventOrderDelivered  = "order.delivered"
	EventOrderFailed     = "order.failed"
	EventDepositRequest  = "deposit.requested"
	EventDepositResolved = "deposit.resolved"
	EventReferralCredit  = "referral.credited"
)

type OrderEvent struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	ItemID    string    `json:"item_id"`
	Country   string    `json:"country"`
	Price     int64     `json:"price"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type DepositEvent struct {
	ClaimID   string    `json:"claim_id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	Approved  bool      `json:"approved"`
	Timestamp time.Time `json:"timestamp"`
}

type ReferralEvent struct {
	UserID     string    `json:"user_id"`
	ReferrerID string    `json:"referrer_id"`
	Timestamp  time.Time `json:"timestamp"`
}
