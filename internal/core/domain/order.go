package domain

import "time"

type OrderStatus string

const (
	// OrderStatusRequireProcess marks orders waiting for fulfillment.
	OrderStatusRequireProcess OrderStatus = "REQUIRE_PROCESS"
	// OrderStatusDeliver is the action recorded after a successful delivery submission.
	OrderStatusDeliver   OrderStatus = "DELIVER"
	OrderStatusDelivered OrderStatus = "DELIVERED"
)

// DeliveryField is one entry of an order's structured delivery schema.
// Fields are prompted in schema order; ValidationPattern, when present, is a
// regular expression the operator's answer must match.
type DeliveryField struct {
	Name              string
	ValidationPattern string
}

// Order is created by the order source; this engine only reads it and submits
// status transitions back through the gateway.
type Order struct {
	ID             string
	Status         OrderStatus
	ProductID      string
	ProductName    string
	GameName       string
	Quantity       int
	Price          int64
	CreatedAt      time.Time
	DeliveryFields []DeliveryField
}

// FullProductName joins the game and product names the way the storefront
// lists them.
func (o Order) FullProductName() string {
	switch {
	case o.GameName == "":
		return o.ProductName
	case o.ProductName == "":
		return o.GameName
	}
	return o.GameName + " " + o.ProductName
}
