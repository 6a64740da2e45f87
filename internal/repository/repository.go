package repository

import (
	"context"

	"toolmart/internal/domain"
)

// UserRepository persists accounts keyed by email.
type UserRepository interface {
	// UpsertUser merges fields into the record for email, inserting when
	// absent. Supplied fields win over stored ones (idempotent set).
	UpsertUser(ctx context.Context, email string, fields map[string]any) (domain.WriteResult, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	// SetUserRole updates the role of an existing record only; a missing
	// record yields a zero-effect acknowledgment, not an insert.
	SetUserRole(ctx context.Context, email, role string) (domain.WriteResult, error)
}

// ToolRepository persists catalog entries.
type ToolRepository interface {
	InsertTool(ctx context.Context, id string, fields map[string]any) error
	GetToolByID(ctx context.Context, id string) (*domain.Document, error)
	ListTools(ctx context.Context) ([]domain.Document, error)
	MergeTool(ctx context.Context, id string, fields map[string]any) (domain.WriteResult, error)
	DeleteTool(ctx context.Context, id string) (int64, error)
}

// ReviewRepository persists customer reviews.
type ReviewRepository interface {
	InsertReview(ctx context.Context, id string, fields map[string]any) error
	ListReviews(ctx context.Context) ([]domain.Document, error)
}

// OrderRepository persists purchase orders.
type OrderRepository interface {
	InsertOrder(ctx context.Context, id string, fields map[string]any) error
	GetOrderByID(ctx context.Context, id string) (*domain.Document, error)
	ListOrders(ctx context.Context) ([]domain.Document, error)
	ListOrdersByBuyer(ctx context.Context, buyer string) ([]domain.Document, error)
	DeleteOrder(ctx context.Context, id string) (int64, error)
	MarkOrderPaid(ctx context.Context, id, transactionID string) (domain.WriteResult, error)
	MarkOrderShipped(ctx context.Context, id string) (domain.WriteResult, error)
}

// PaymentRepository records completed payments.
type PaymentRepository interface {
	InsertPayment(ctx context.Context, id string, fields map[string]any) error
}

// ShipmentRepository records shipment confirmations.
type ShipmentRepository interface {
	InsertShipment(ctx context.Context, id string, fields map[string]any) error
}
