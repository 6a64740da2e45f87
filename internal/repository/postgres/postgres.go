package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"toolmart/internal/domain"
	"toolmart/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL. Every
// collection is stored as a JSONB document column so payloads pass through
// unvalidated, the way the storefront treats them.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository     = (*Repository)(nil)
	_ repository.ToolRepository     = (*Repository)(nil)
	_ repository.ReviewRepository   = (*Repository)(nil)
	_ repository.OrderRepository    = (*Repository)(nil)
	_ repository.PaymentRepository  = (*Repository)(nil)
	_ repository.ShipmentRepository = (*Repository)(nil)
)

func encodeDoc(fields map[string]any) ([]byte, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	doc, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return doc, nil
}

func decodeDoc(raw []byte) (map[string]any, error) {
	fields := make(map[string]any)
	if len(raw) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return fields, nil
}

// UpsertUser merges the supplied fields into the account record for email,
// creating it when absent. Later fields overwrite earlier ones, so repeating
// the call with the latest payload leaves a single record reflecting it.
func (r *Repository) UpsertUser(ctx context.Context, email string, fields map[string]any) (domain.WriteResult, error) {
	doc, err := encodeDoc(fields)
	if err != nil {
		return domain.WriteResult{}, err
	}
	const query = `INSERT INTO users (email, doc)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET doc = users.doc || EXCLUDED.doc, updated_at = NOW()
		RETURNING (xmax = 0) AS inserted`
	var inserted bool
	if err := r.pool.QueryRow(ctx, query, email, doc).Scan(&inserted); err != nil {
		return domain.WriteResult{}, err
	}
	if inserted {
		return domain.WriteResult{UpsertedID: email}, nil
	}
	return domain.WriteResult{Matched: 1, Modified: 1}, nil
}

// GetUserByEmail fetches an account by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT email, COALESCE(doc->>'role', ''), doc FROM users WHERE email = $1`
	row := r.pool.QueryRow(ctx, query, email)
	var (
		u   domain.User
		raw []byte
	)
	if err := row.Scan(&u.Email, &u.Role, &raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	fields, err := decodeDoc(raw)
	if err != nil {
		return nil, err
	}
	u.Doc = fields
	return &u, nil
}

// ListUsers returns every account.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	const query = `SELECT email, COALESCE(doc->>'role', ''), doc FROM users ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var (
			u   domain.User
			raw []byte
		)
		if err := rows.Scan(&u.Email, &u.Role, &raw); err != nil {
			return nil, err
		}
		fields, err := decodeDoc(raw)
		if err != nil {
			return nil, err
		}
		u.Doc = fields
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetUserRole updates the role on an existing account. A missing account is
// a zero-effect acknowledgment.
func (r *Repository) SetUserRole(ctx context.Context, email, role string) (domain.WriteResult, error) {
	const query = `UPDATE users SET doc = doc || jsonb_build_object('role', $2::text), updated_at = NOW() WHERE email = $1`
	tag, err := r.pool.Exec(ctx, query, email, role)
	if err != nil {
		return domain.WriteResult{}, err
	}
	affected := tag.RowsAffected()
	return domain.WriteResult{Matched: affected, Modified: affected}, nil
}

func (r *Repository) insertDoc(ctx context.Context, table, id string, fields map[string]any) error {
	doc, err := encodeDoc(fields)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2)`, table)
	_, err = r.pool.Exec(ctx, query, id, doc)
	return err
}

func (r *Repository) getDoc(ctx context.Context, table, id string) (*domain.Document, error) {
	query := fmt.Sprintf(`SELECT id, doc FROM %s WHERE id = $1`, table)
	row := r.pool.QueryRow(ctx, query, id)
	var (
		d   domain.Document
		raw []byte
	)
	if err := row.Scan(&d.ID, &raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	fields, err := decodeDoc(raw)
	if err != nil {
		return nil, err
	}
	d.Fields = fields
	return &d, nil
}

func (r *Repository) listDocs(ctx context.Context, query string, args ...any) ([]domain.Document, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			d   domain.Document
			raw []byte
		)
		if err := rows.Scan(&d.ID, &raw); err != nil {
			return nil, err
		}
		fields, err := decodeDoc(raw)
		if err != nil {
			return nil, err
		}
		d.Fields = fields
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *Repository) deleteDoc(ctx context.Context, table, id string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table)
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InsertTool stores a catalog entry under a generated identifier.
func (r *Repository) InsertTool(ctx context.Context, id string, fields map[string]any) error {
	return r.insertDoc(ctx, "tools", id, fields)
}

// GetToolByID fetches a catalog entry.
func (r *Repository) GetToolByID(ctx context.Context, id string) (*domain.Document, error) {
	return r.getDoc(ctx, "tools", id)
}

// ListTools returns all catalog entries.
func (r *Repository) ListTools(ctx context.Context) ([]domain.Document, error) {
	return r.listDocs(ctx, `SELECT id, doc FROM tools ORDER BY created_at`)
}

// MergeTool merges fields into an existing entry or inserts a new one.
func (r *Repository) MergeTool(ctx context.Context, id string, fields map[string]any) (domain.WriteResult, error) {
	doc, err := encodeDoc(fields)
	if err != nil {
		return domain.WriteResult{}, err
	}
	const query = `INSERT INTO tools (id, doc)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET doc = tools.doc || EXCLUDED.doc
		RETURNING (xmax = 0) AS inserted`
	var inserted bool
	if err := r.pool.QueryRow(ctx, query, id, doc).Scan(&inserted); err != nil {
		return domain.WriteResult{}, err
	}
	if inserted {
		return domain.WriteResult{UpsertedID: id}, nil
	}
	return domain.WriteResult{Matched: 1, Modified: 1}, nil
}

// DeleteTool removes a catalog entry; absence is not an error.
func (r *Repository) DeleteTool(ctx context.Context, id string) (int64, error) {
	return r.deleteDoc(ctx, "tools", id)
}

// InsertReview stores a review.
func (r *Repository) InsertReview(ctx context.Context, id string, fields map[string]any) error {
	return r.insertDoc(ctx, "reviews", id, fields)
}

// ListReviews returns all reviews.
func (r *Repository) ListReviews(ctx context.Context) ([]domain.Document, error) {
	return r.listDocs(ctx, `SELECT id, doc FROM reviews ORDER BY created_at`)
}

// InsertOrder stores a purchase order.
func (r *Repository) InsertOrder(ctx context.Context, id string, fields map[string]any) error {
	return r.insertDoc(ctx, "orders", id, fields)
}

// GetOrderByID fetches a purchase order.
func (r *Repository) GetOrderByID(ctx context.Context, id string) (*domain.Document, error) {
	return r.getDoc(ctx, "orders", id)
}

// ListOrders returns every purchase order.
func (r *Repository) ListOrders(ctx context.Context) ([]domain.Document, error) {
	return r.listDocs(ctx, `SELECT id, doc FROM orders ORDER BY created_at`)
}

// ListOrdersByBuyer returns orders whose buyer field matches.
func (r *Repository) ListOrdersByBuyer(ctx context.Context, buyer string) ([]domain.Document, error) {
	return r.listDocs(ctx, `SELECT id, doc FROM orders WHERE doc->>'buyer' = $1 ORDER BY created_at`, buyer)
}

// DeleteOrder removes an order; absence is not an error.
func (r *Repository) DeleteOrder(ctx context.Context, id string) (int64, error) {
	return r.deleteDoc(ctx, "orders", id)
}

// MarkOrderPaid flags an order paid and records the transaction reference.
func (r *Repository) MarkOrderPaid(ctx context.Context, id, transactionID string) (domain.WriteResult, error) {
	const query = `UPDATE orders SET doc = doc || jsonb_build_object('paid', true, 'transactionId', $2::text) WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, transactionID)
	if err != nil {
		return domain.WriteResult{}, err
	}
	affected := tag.RowsAffected()
	return domain.WriteResult{Matched: affected, Modified: affected}, nil
}

// MarkOrderShipped flags an order shipped.
func (r *Repository) MarkOrderShipped(ctx context.Context, id string) (domain.WriteResult, error) {
	const query = `UPDATE orders SET doc = doc || '{"shipment": true}'::jsonb WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return domain.WriteResult{}, err
	}
	affected := tag.RowsAffected()
	return domain.WriteResult{Matched: affected, Modified: affected}, nil
}

// InsertPayment records a completed payment.
func (r *Repository) InsertPayment(ctx context.Context, id string, fields map[string]any) error {
	return r.insertDoc(ctx, "payments", id, fields)
}

// InsertShipment records a shipment confirmation.
func (r *Repository) InsertShipment(ctx context.Context, id string, fields map[string]any) error {
	return r.insertDoc(ctx, "shipped", id, fields)
}
