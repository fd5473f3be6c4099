package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/petjoy-vn/petjoy-core/internal/model"
	"github.com/petjoy-vn/petjoy-core/internal/order"
	"github.com/petjoy-vn/petjoy-core/libs/db"
)

type OrderRepository struct {
	pool *db.Pool
}

func NewOrderRepository(pool *db.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) GetProduct(ctx context.Context, id string) (model.Product, error) {
	var p model.Product
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(image, ''), price, sale_price, on_sale, stock, sold_count, rating_count, rating_avg
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Image, &p.Price, &p.SalePrice, &p.OnSale, &p.Stock, &p.SoldCount, &p.RatingCount, &p.RatingAvg)
	if err != nil {
		return model.Product{}, notFound(err)
	}
	return p, nil
}

// CreateOrder reserves stock with a conditional decrement per line and
// inserts the order in the same transaction. A line that finds too little
// stock rolls back every decrement already applied in this request.
func (r *OrderRepository) CreateOrder(ctx context.Context, o model.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, item := range o.Items {
		tag, err := tx.Exec(ctx, `
			UPDATE products
			SET stock = stock - $2
			WHERE id = $1 AND stock >= $2
		`, item.ProductID, item.Quantity)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return model.ErrInsufficientStock
		}
	}

	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	history, err := json.Marshal(o.StatusHistory)
	if err != nil {
		return err
	}
	var expiration *time.Time
	if !o.CheckoutExpiration.IsZero() {
		expiration = &o.CheckoutExpiration
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO orders
			(id, order_number, customer_id, items, subtotal, shipping_fee, discount, total_amount,
			 shipping_address, status, status_history, payment_method, payment_status,
			 checkout_expiration, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, o.ID, o.OrderNumber, o.CustomerID, items, o.Subtotal, o.ShippingFee, o.Discount, o.TotalAmount,
		o.ShippingAddress, o.Status, history, o.PaymentMethod, o.PaymentStatus, expiration, o.CreatedAt)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *OrderRepository) GetOrder(ctx context.Context, id string) (model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id))
	if err != nil {
		return model.Order{}, notFound(err)
	}
	return o, nil
}

func (r *OrderRepository) SaveTransition(ctx context.Context, o model.Order, restoreStock, incrementSold bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	history, err := json.Marshal(o.StatusHistory)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $2,
			status_history = $3,
			cancelled_by = NULLIF($4, ''),
			cancel_reason = NULLIF($5, '')
		WHERE id = $1
	`, o.ID, o.Status, history, o.CancelledBy, o.CancelReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	for _, item := range o.Items {
		if restoreStock {
			if _, err := tx.Exec(ctx, `
				UPDATE products SET stock = stock + $2 WHERE id = $1
			`, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		if incrementSold {
			if _, err := tx.Exec(ctx, `
				UPDATE products SET sold_count = sold_count + $2 WHERE id = $1
			`, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
	}
	return tx.Commit(ctx)
}

func (r *OrderRepository) ListOrders(ctx context.Context, f order.ListFilter) ([]model.Order, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.CustomerID != "" {
		add("customer_id = $%d", f.CustomerID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Search != "" {
		add("order_number ILIKE $%d", "%"+f.Search+"%")
	}
	cond := ""
	if len(where) > 0 {
		cond = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT `+orderColumns+`
		FROM orders %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}
