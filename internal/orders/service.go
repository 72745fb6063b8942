package orders

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Service struct {
	Store Store
	Log   *zap.Logger
}

func NewService(store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Store: store, Log: log}
}

// PlaceOrder reserves stock and persists the priced order in one unit of work.
// Either the order with all its items exists afterwards and stock is reduced,
// or neither happened.
func (s *Service) PlaceOrder(ctx context.Context, buyerID int64, req PlaceOrderRequest) (*Order, error) {
	addr := strings.TrimSpace(req.ShippingAddress)
	if addr == "" {
		return nil, invalid("shipping_address is required")
	}
	if len(req.Items) == 0 {
		return nil, invalid("items must not be empty")
	}
	for _, it := range req.Items {
		if it.Quantity < 1 || it.Quantity > MaxQuantity {
			return nil, invalid("quantity for product %d must be between 1 and %d", it.ProductID, MaxQuantity)
		}
	}

	var placed *Order
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		res, err := Reserve(ctx, tx, req.Items)
		if err != nil {
			return err
		}
		o := assemble(buyerID, addr, res)
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		placed = o
		return nil
	})
	if err != nil {
		s.Log.Info("place order failed",
			zap.Int64("buyer_id", buyerID),
			zap.Int("items", len(req.Items)),
			zap.String("kind", KindOf(err)),
			zap.Error(err))
		return nil, err
	}

	s.Log.Info("order placed",
		zap.Int64("order_id", placed.ID),
		zap.Int64("buyer_id", buyerID),
		zap.Int("items", len(placed.Items)),
		zap.String("total", placed.Total.StringFixed(2)))
	return placed, nil
}

func assemble(buyerID int64, addr string, res []Reservation) *Order {
	o := &Order{
		BuyerID:         buyerID,
		ShippingAddress: addr,
		Status:          StatusPending,
		Total:           decimal.Zero,
		Items:           make([]OrderItem, 0, len(res)),
	}
	for _, r := range res {
		pid := r.ProductID
		it := OrderItem{
			ProductID:   &pid,
			VendorID:    r.VendorID,
			ProductName: r.ProductName,
			Quantity:    r.Quantity,
			Price:       r.UnitPrice,
		}
		o.Items = append(o.Items, it)
		o.Total = o.Total.Add(it.LineTotal())
	}
	return o
}

func (s *Service) ListForBuyer(ctx context.Context, buyerID int64) ([]Order, error) {
	return s.Store.ListByBuyer(ctx, buyerID)
}

func (s *Service) ListForVendor(ctx context.Context, vendorID int64) ([]Order, error) {
	return s.Store.ListByVendor(ctx, vendorID)
}

func (s *Service) GetForBuyer(ctx context.Context, buyerID, orderID int64) (*Order, error) {
	return s.Store.GetForBuyer(ctx, buyerID, orderID)
}

// UpdateStatus moves an order the vendor sells into to a new status. Vendors
// without an item in the order get ErrNotFound whether or not it exists.
// Stock and total are left untouched.
func (s *Service) UpdateStatus(ctx context.Context, orderID, vendorID int64, status string) (*Order, error) {
	next, known := ParseStatus(status)

	var from Status
	o, err := s.Store.SetStatus(ctx, orderID, vendorID, func(cur Status) (Status, error) {
		from = cur
		if !known || !CanTransition(cur, next) {
			return "", &TransitionError{From: cur, To: status}
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("order status updated",
		zap.Int64("order_id", orderID),
		zap.Int64("vendor_id", vendorID),
		zap.String("from", string(from)),
		zap.String("to", string(next)))
	return o, nil
}
