package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemPrice struct {
	ProductID *int64 `json:"product_id"`
	VendorID  int64  `json:"vendor_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type OrderPlacedPayload struct {
	OrderID   int64       `json:"order_id"`
	BuyerID   int64       `json:"buyer_id"`
	Status    Status      `json:"status"`
	Items     []ItemPrice `json:"items"`
	Total     string      `json:"total"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type OrderStatusChangedPayload struct {
	OrderID   int64     `json:"order_id"`
	BuyerID   int64     `json:"buyer_id"`
	VendorID  int64     `json:"vendor_id"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewEnvelope(eventType, producer, traceID string, orderID int64, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: PartitionKeyString(orderID),
		Payload:       b,
	}, nil
}

func PlacedPayload(o *Order) OrderPlacedPayload {
	items := make([]ItemPrice, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemPrice{
			ProductID: it.ProductID,
			VendorID:  it.VendorID,
			Quantity:  it.Quantity,
			Price:     it.Price.StringFixed(2),
		})
	}
	return OrderPlacedPayload{
		OrderID:   o.ID,
		BuyerID:   o.BuyerID,
		Status:    o.Status,
		Items:     items,
		Total:     o.Total.StringFixed(2),
		UpdatedAt: o.UpdatedAt,
	}
}
