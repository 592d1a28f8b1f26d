package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account holds a user's point and deposit balances. Balances are only
// mutated through conditional updates, so they can never go negative and a
// user can never have more than one deposit claim in flight.
type Account struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	UserID         string             `bson:"user_id" json:"user_id"`
	Points         int64              `bson:"points" json:"points"`
	DepositTotal   int64              `bson:"deposit_total" json:"deposit_total"`
	PendingDeposit int64              `bson:"pending_deposit" json:"pending_deposit"`
	ActiveNumber   string             `bson:"active_number" json:"active_number"`
	ReferredBy     string             `bson:"referred_by" json:"referred_by"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}
