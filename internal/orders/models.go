package orders

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID              int64           `json:"id"`
	BuyerID         int64           `json:"buyer_id"`
	ShippingAddress string          `json:"shipping_address"`
	Status          Status          `json:"status"`
	Total           decimal.Decimal `json:"total"`
	Items           []OrderItem     `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderItem is a historical record: name, vendor and price are captured at
// placement and never follow later catalog edits. ProductID becomes nil once
// the product is deleted.
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   *int64          `json:"product_id"`
	VendorID    int64           `json:"vendor_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

func (it OrderItem) LineTotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// MaxQuantity is the largest quantity one order line may carry; it matches
// the INTEGER quantity column.
const MaxQuantity = math.MaxInt32

type ItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type PlaceOrderRequest struct {
	ShippingAddress string        `json:"shipping_address"`
	Items           []ItemRequest `json:"items"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// Clone returns a deep copy so stored orders never alias caller memory.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = make([]OrderItem, len(o.Items))
	for i, it := range o.Items {
		if it.ProductID != nil {
			pid := *it.ProductID
			it.ProductID = &pid
		}
		c.Items[i] = it
	}
	return &c
}
