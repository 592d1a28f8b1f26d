package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NumberItem is one purchasable entry in the catalog. Number may be empty
// for entries that are provisioned live from the provider at purchase time.
// An allocated item is deleted from the catalog in the same operation that
// hands it to the buyer, so two buyers can never hold the same item.
type NumberItem struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	ItemID          string             `bson:"item_id" json:"item_id"`
	Country         string             `bson:"country" json:"country"`
	CountryCode     string             `bson:"country_code" json:"country_code"`
	Operator        string             `bson:"operator" json:"operator"`
	Service         string             `bson:"service" json:"service"`
	Number          string             `bson:"number" json:"number"`
	ProviderOrderID string             `bson:"provider_order_id" json:"provider_order_id"`
	Price           int64              `bson:"price" json:"price"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
	Encrypted       bool               `bson:"encrypted" json:"-"`
}

// Provisioned reports whether the item carries a static number or needs a
// live one from the provider.
func (n *NumberItem) Provisioned() bool {
	return n.Number != ""
}
