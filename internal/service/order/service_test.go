package order

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"log/slog"

	"toolmart/internal/domain"
	"toolmart/internal/repository"
	"toolmart/internal/ws"
)

type stubOrderRepo struct {
	orders         map[string]map[string]any
	markPaidErr    error
	markShippedErr error
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{orders: make(map[string]map[string]any)}
}

func (s *stubOrderRepo) InsertOrder(ctx context.Context, id string, fields map[string]any) error {
	s.orders[id] = fields
	return nil
}

func (s *stubOrderRepo) GetOrderByID(ctx context.Context, id string) (*domain.Document, error) {
	fields, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &domain.Document{ID: id, Fields: fields}, nil
}

func (s *stubOrderRepo) ListOrders(ctx context.Context) ([]domain.Document, error) {
	out := make([]domain.Document, 0, len(s.orders))
	for id, fields := range s.orders {
		out = append(out, domain.Document{ID: id, Fields: fields})
	}
	return out, nil
}

func (s *stubOrderRepo) ListOrdersByBuyer(ctx context.Context, buyer string) ([]domain.Document, error) {
	var out []domain.Document
	for id, fields := range s.orders {
		if b, _ := fields["buyer"].(string); b == buyer {
			out = append(out, domain.Document{ID: id, Fields: fields})
		}
	}
	return out, nil
}

func (s *stubOrderRepo) DeleteOrder(ctx context.Context, id string) (int64, error) {
	if _, ok := s.orders[id]; !ok {
		return 0, nil
	}
	delete(s.orders, id)
	return 1, nil
}

func (s *stubOrderRepo) MarkOrderPaid(ctx context.Context, id, transactionID string) (domain.WriteResult, error) {
	if s.markPaidErr != nil {
		return domain.WriteResult{}, s.markPaidErr
	}
	fields, ok := s.orders[id]
	if !ok {
		return domain.WriteResult{}, nil
	}
	fields["paid"] = true
	fields["transactionId"] = transactionID
	return domain.WriteResult{Matched: 1, Modified: 1}, nil
}

func (s *stubOrderRepo) MarkOrderShipped(ctx context.Context, id string) (domain.WriteResult, error) {
	if s.markShippedErr != nil {
		return domain.WriteResult{}, s.markShippedErr
	}
	fields, ok := s.orders[id]
	if !ok {
		return domain.WriteResult{}, nil
	}
	fields["shipment"] = true
	return domain.WriteResult{Matched: 1, Modified: 1}, nil
}

type stubInsertRepo struct {
	docs map[string]map[string]any
	err  error
}

func newStubInsertRepo() *stubInsertRepo {
	return &stubInsertRepo{docs: make(map[string]map[string]any)}
}

func (s *stubInsertRepo) InsertPayment(ctx context.Context, id string, fields map[string]any) error {
	if s.err != nil {
		return s.err
	}
	s.docs[id] = fields
	return nil
}

func (s *stubInsertRepo) InsertShipment(ctx context.Context, id string, fields map[string]any) error {
	if s.err != nil {
		return s.err
	}
	s.docs[id] = fields
	return nil
}

type feedSubscriber struct {
	events chan []byte
}

func newFeedSubscriber() *feedSubscriber {
	return &feedSubscriber{events: make(chan []byte, 16)}
}

func (f *feedSubscriber) Send(payload []byte) error {
	f.events <- payload
	return nil
}

func (f *feedSubscriber) Close() {}

func (f *feedSubscriber) next(t *testing.T) Event {
	t.Helper()
	select {
	case payload := <-f.events:
		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for feed event")
		return Event{}
	}
}

func newTestService(orders *stubOrderRepo, payments, shipments *stubInsertRepo, hub *ws.Hub) Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(orders, payments, shipments, hub, logger)
}

func TestCreatePublishesFeedEvent(t *testing.T) {
	orders := newStubOrderRepo()
	hub := ws.NewHub()
	sub := newFeedSubscriber()
	hub.Register(FeedTopic, sub)
	svc := newTestService(orders, newStubInsertRepo(), newStubInsertRepo(), hub)

	id, err := svc.Create(context.Background(), map[string]any{"buyer": "alice@example.com", "toolName": "hammer"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated order id")
	}
	if _, ok := orders.orders[id]; !ok {
		t.Fatal("order not stored")
	}

	event := sub.next(t)
	if event.Type != "order_created" {
		t.Fatalf("event type = %q", event.Type)
	}
	if event.OrderID != id || event.Buyer != "alice@example.com" {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.At == "" {
		t.Fatal("event timestamp missing")
	}
}

func TestConfirmPayment(t *testing.T) {
	orders := newStubOrderRepo()
	orders.orders["o1"] = map[string]any{"buyer": "alice@example.com"}
	payments := newStubInsertRepo()
	svc := newTestService(orders, payments, newStubInsertRepo(), nil)

	result, err := svc.ConfirmPayment(context.Background(), "o1", map[string]any{"transactionId": "txn_9"})
	if err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	if result.Modified != 1 {
		t.Fatalf("expected modified ack, got %+v", result)
	}
	if len(payments.docs) != 1 {
		t.Fatalf("expected 1 payment record, got %d", len(payments.docs))
	}
	if orders.orders["o1"]["transactionId"] != "txn_9" {
		t.Fatalf("transaction reference not copied: %v", orders.orders["o1"])
	}
	if paid, _ := orders.orders["o1"]["paid"].(bool); !paid {
		t.Fatal("order not flagged paid")
	}
}

func TestConfirmPaymentKeepsPaymentOnOrderFailure(t *testing.T) {
	orders := newStubOrderRepo()
	orders.orders["o1"] = map[string]any{"buyer": "alice@example.com"}
	orders.markPaidErr = errors.New("write timeout")
	payments := newStubInsertRepo()
	svc := newTestService(orders, payments, newStubInsertRepo(), nil)

	_, err := svc.ConfirmPayment(context.Background(), "o1", map[string]any{"transactionId": "txn_9"})
	if !errors.Is(err, orders.markPaidErr) {
		t.Fatalf("expected order write error, got %v", err)
	}
	// the payment insert is not compensated
	if len(payments.docs) != 1 {
		t.Fatalf("payment record should remain, got %d", len(payments.docs))
	}
}

func TestConfirmPaymentStopsOnPaymentFailure(t *testing.T) {
	orders := newStubOrderRepo()
	orders.orders["o1"] = map[string]any{"buyer": "alice@example.com"}
	payments := newStubInsertRepo()
	payments.err = errors.New("insert refused")
	svc := newTestService(orders, payments, newStubInsertRepo(), nil)

	_, err := svc.ConfirmPayment(context.Background(), "o1", map[string]any{"transactionId": "txn_9"})
	if !errors.Is(err, payments.err) {
		t.Fatalf("expected payment insert error, got %v", err)
	}
	if _, paid := orders.orders["o1"]["paid"]; paid {
		t.Fatal("order must stay untouched when the payment insert fails")
	}
}

func TestRecordShipment(t *testing.T) {
	orders := newStubOrderRepo()
	orders.orders["o1"] = map[string]any{"buyer": "alice@example.com"}
	shipments := newStubInsertRepo()
	svc := newTestService(orders, newStubInsertRepo(), shipments, nil)

	result, err := svc.RecordShipment(context.Background(), "o1", map[string]any{"carrier": "dhl"})
	if err != nil {
		t.Fatalf("record shipment: %v", err)
	}
	if result.Modified != 1 {
		t.Fatalf("expected modified ack, got %+v", result)
	}
	if len(shipments.docs) != 1 {
		t.Fatalf("expected 1 shipment record, got %d", len(shipments.docs))
	}
	if shipped, _ := orders.orders["o1"]["shipment"].(bool); !shipped {
		t.Fatal("order not flagged shipped")
	}
}

func TestDeleteUnknownOrder(t *testing.T) {
	svc := newTestService(newStubOrderRepo(), newStubInsertRepo(), newStubInsertRepo(), nil)

	count, err := svc.Delete(context.Background(), "missing")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if count != 0 {
		t.Fatalf("deleted count = %d, want 0", count)
	}
}
