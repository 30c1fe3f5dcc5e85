package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrOrderNotFound is returned when no ledger row matches.
var ErrOrderNotFound = errors.New("bookings: order not found")

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Ledger persists orders in the booking_orders table.
type Ledger struct {
	db  rowQuerier
	now func() time.Time
}

// NewLedger creates a ledger backed by a pgx pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return newLedgerWithExec(pool)
}

func newLedgerWithExec(exec rowQuerier) *Ledger {
	if exec == nil {
		panic("bookings: exec required")
	}
	return &Ledger{db: exec, now: time.Now}
}

const insertOrderSQL = `
	INSERT INTO booking_orders (
		id, order_id, customer_id, customer_phone, customer_name, customer_email,
		location_id, location_name, appointment_date, start_time, staff_name,
		services, total_amount, payment_type, status, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (order_id) DO NOTHING
`

// Record stores a newly created order.
func (l *Ledger) Record(ctx context.Context, o Order) error {
	o.fillDefaults(l.now())
	_, err := l.db.Exec(ctx, insertOrderSQL,
		toPGUUID(o.ID), o.OrderID, o.CustomerID, o.CustomerPhone, o.CustomerName, o.CustomerEmail,
		o.LocationID, o.LocationName, o.AppointmentDate, o.StartTime, o.StaffName,
		o.Services, o.TotalAmount, o.PaymentType, o.Status, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("bookings: record order %d: %w", o.OrderID, err)
	}
	return nil
}

const recentOrdersSQL = `
	SELECT id, order_id, customer_id, customer_phone, customer_name, customer_email,
		location_id, location_name, appointment_date, start_time, staff_name,
		services, total_amount, payment_type, status, created_at, paid_at
	FROM booking_orders
	WHERE customer_id = $1
	ORDER BY created_at DESC
	LIMIT $2
`

// RecentByCustomer returns the customer's orders, newest first.
func (l *Ledger) RecentByCustomer(ctx context.Context, customerID string, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := l.db.Query(ctx, recentOrdersSQL, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("bookings: query recent orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var (
			o      Order
			id     pgtype.UUID
			paidAt pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &o.OrderID, &o.CustomerID, &o.CustomerPhone, &o.CustomerName, &o.CustomerEmail,
			&o.LocationID, &o.LocationName, &o.AppointmentDate, &o.StartTime, &o.StaffName,
			&o.Services, &o.TotalAmount, &o.PaymentType, &o.Status, &o.CreatedAt, &paidAt); err != nil {
			return nil, fmt.Errorf("bookings: scan order: %w", err)
		}
		if id.Valid {
			o.ID = uuid.UUID(id.Bytes)
		}
		if paidAt.Valid {
			o.PaidAt = paidAt.Time
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: iterate orders: %w", err)
	}
	return out, nil
}

// MarkPaid flags an order as paid.
func (l *Ledger) MarkPaid(ctx context.Context, orderID int) error {
	tag, err := l.db.Exec(ctx,
		`UPDATE booking_orders SET status = $2, paid_at = $3 WHERE order_id = $1`,
		orderID, StatusPaid, l.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("bookings: mark paid %d: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func toPGUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: [16]byte(id), Valid: true}
}
