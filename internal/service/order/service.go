package order

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"toolmart/internal/domain"
	"toolmart/internal/repository"
	"toolmart/internal/ws"
)

// FeedTopic is the hub topic order lifecycle events are published on.
const FeedTopic = "orders"

// Service handles purchase orders and their fulfillment transitions.
type Service struct {
	orders    repository.OrderRepository
	payments  repository.PaymentRepository
	shipments repository.ShipmentRepository
	hub       *ws.Hub
	logger    *slog.Logger
}

// New constructs a Service.
func New(orders repository.OrderRepository, payments repository.PaymentRepository, shipments repository.ShipmentRepository, hub *ws.Hub, logger *slog.Logger) Service {
	return Service{orders: orders, payments: payments, shipments: shipments, hub: hub, logger: logger}
}

// Event describes an order lifecycle change streamed to feed subscribers.
type Event struct {
	Type    string `json:"type"`
	OrderID string `json:"order_id"`
	Buyer   string `json:"buyer,omitempty"`
	At      string `json:"at"`
}

// Create stores a new order under a generated identifier.
func (s Service) Create(ctx context.Context, fields map[string]any) (string, error) {
	id := uuid.NewString()
	if err := s.orders.InsertOrder(ctx, id, fields); err != nil {
		return "", err
	}
	buyer, _ := fields["buyer"].(string)
	s.logger.Info("order created", "order_id", id, "buyer", buyer)
	s.publish(Event{Type: "order_created", OrderID: id, Buyer: buyer})
	return id, nil
}

// Get fetches one order.
func (s Service) Get(ctx context.Context, id string) (*domain.Document, error) {
	return s.orders.GetOrderByID(ctx, id)
}

// List returns every order.
func (s Service) List(ctx context.Context) ([]domain.Document, error) {
	return s.orders.ListOrders(ctx)
}

// ListByBuyer returns orders whose buyer field matches. Ownership of the
// buyer identity is checked at the transport layer.
func (s Service) ListByBuyer(ctx context.Context, buyer string) ([]domain.Document, error) {
	return s.orders.ListOrdersByBuyer(ctx, buyer)
}

// Delete removes an order; unknown identifiers yield a zero deleted count.
func (s Service) Delete(ctx context.Context, id string) (int64, error) {
	return s.orders.DeleteOrder(ctx, id)
}

// ConfirmPayment records the payment document and marks the order paid with
// its transaction reference. The two writes are separate and deliberately
// not transactional: if the order update fails after the payment insert, the
// payment record remains and no compensation runs.
func (s Service) ConfirmPayment(ctx context.Context, orderID string, payment map[string]any) (domain.WriteResult, error) {
	paymentID := uuid.NewString()
	if err := s.payments.InsertPayment(ctx, paymentID, payment); err != nil {
		return domain.WriteResult{}, err
	}
	transactionID, _ := payment["transactionId"].(string)
	result, err := s.orders.MarkOrderPaid(ctx, orderID, transactionID)
	if err != nil {
		s.logger.Error("order update failed after payment insert", "order_id", orderID, "payment_id", paymentID, "error", err)
		return domain.WriteResult{}, err
	}
	s.logger.Info("order paid", "order_id", orderID, "transaction_id", transactionID)
	s.publish(Event{Type: "order_paid", OrderID: orderID})
	return result, nil
}

// RecordShipment records the shipment document and flags the order shipped,
// with the same two-write, no-compensation contract as ConfirmPayment.
func (s Service) RecordShipment(ctx context.Context, orderID string, shipment map[string]any) (domain.WriteResult, error) {
	shipmentID := uuid.NewString()
	if err := s.shipments.InsertShipment(ctx, shipmentID, shipment); err != nil {
		return domain.WriteResult{}, err
	}
	result, err := s.orders.MarkOrderShipped(ctx, orderID)
	if err != nil {
		s.logger.Error("order update failed after shipment insert", "order_id", orderID, "shipment_id", shipmentID, "error", err)
		return domain.WriteResult{}, err
	}
	s.logger.Info("order shipped", "order_id", orderID)
	s.publish(Event{Type: "order_shipped", OrderID: orderID})
	return result, nil
}

// Hub returns the event hub (useful for HTTP handlers).
func (s Service) Hub() *ws.Hub {
	return s.hub
}

func (s Service) publish(event Event) {
	if s.hub == nil {
		return
	}
	event.At = time.Now().UTC().Format(time.RFC3339Nano)
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to marshal order event", "error", err)
		return
	}
	s.hub.Broadcast(FeedTopic, payload)
}
