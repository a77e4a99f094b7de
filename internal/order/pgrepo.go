package order

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository is a Repository backed by an `orders` table via
// jackc/pgx/v5 — the same pool as course.PGRepository and
// chat.PGVectorStore.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository builds a PGRepository over pool.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const orderColumns = "order_id, user_id, course_id, amount, payment_method, status, created_time"

func (r *PGRepository) Create(ctx context.Context, o Order) error {
	_, err := r.pool.Exec(ctx,
		"INSERT INTO orders ("+orderColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)",
		o.OrderID, o.UserID, o.CourseID, o.Amount, o.PaymentMethod, o.Status, o.CreatedTime,
	)
	return err
}

func (r *PGRepository) Get(ctx context.Context, orderID string) (Order, bool, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE order_id = $1", orderID)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, false, nil
		}
		return Order{}, false, err
	}
	return o, true, nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, orderID string, status Status) error {
	_, err := r.pool.Exec(ctx, "UPDATE orders SET status = $1 WHERE order_id = $2", status, orderID)
	return err
}

func (r *PGRepository) FindByUserAndCourse(ctx context.Context, userID, courseID string) (Order, bool, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 AND course_id = $2 ORDER BY created_time DESC LIMIT 1",
		userID, courseID,
	)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, false, nil
		}
		return Order{}, false, err
	}
	return o, true, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.OrderID, &o.UserID, &o.CourseID, &o.Amount, &o.PaymentMethod, &o.Status, &o.CreatedTime)
	return o, err
}
