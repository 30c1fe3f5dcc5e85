package bookings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderColumns = []string{
	"id", "order_id", "customer_id", "customer_phone", "customer_name", "customer_email",
	"location_id", "location_name", "appointment_date", "start_time", "staff_name",
	"services", "total_amount", "payment_type", "status", "created_at", "paid_at",
}

func TestLedger_Record(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger := newLedgerWithExec(mock)
	fixed := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return fixed }

	order := Order{
		OrderID:         9001,
		CustomerID:      "96550001234",
		CustomerName:    "Sara Ali",
		CustomerEmail:   "sara@example.com",
		LocationID:      1,
		LocationName:    "Al-Plaza Mall",
		AppointmentDate: "03-04-2026",
		StartTime:       "15:00",
		Services:        []string{"French Manicure"},
		TotalAmount:     12.5,
		PaymentType:     "Cash on Arrival",
	}
	mock.ExpectExec("INSERT INTO booking_orders").
		WithArgs(pgxmock.AnyArg(), 9001, "96550001234", "", "Sara Ali", "sara@example.com",
			1, "Al-Plaza Mall", "03-04-2026", "15:00", "",
			[]string{"French Manicure"}, 12.5, "Cash on Arrival", StatusPendingPayment, fixed).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, ledger.Record(context.Background(), order))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_RecentByCustomer(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	created := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(orderColumns).AddRow(
		pgtype.UUID{Bytes: id, Valid: true}, 9002, "c1", "50001234", "Sara", "sara@example.com",
		1, "Al-Plaza Mall", "03-04-2026", "15:00", "Huda",
		[]string{"Pedicure"}, 8.0, "KNET", StatusPendingPayment, created, pgtype.Timestamptz{},
	)
	mock.ExpectQuery("FROM booking_orders").WithArgs("c1", 5).WillReturnRows(rows)

	orders, err := newLedgerWithExec(mock).RecentByCustomer(context.Background(), "c1", 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, id, orders[0].ID)
	assert.Equal(t, 9002, orders[0].OrderID)
	assert.Equal(t, []string{"Pedicure"}, orders[0].Services)
	assert.True(t, orders[0].PaidAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_MarkPaid(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger := newLedgerWithExec(mock)
	mock.ExpectExec("UPDATE booking_orders").WithArgs(9001, StatusPaid, pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, ledger.MarkPaid(context.Background(), 9001))

	mock.ExpectExec("UPDATE booking_orders").WithArgs(404, StatusPaid, pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, ledger.MarkPaid(context.Background(), 404), ErrOrderNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryLedger_NewestFirst(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, ledger.Record(ctx, Order{OrderID: 1, CustomerID: "c1", CreatedAt: base}))
	require.NoError(t, ledger.Record(ctx, Order{OrderID: 2, CustomerID: "c1", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, ledger.Record(ctx, Order{OrderID: 3, CustomerID: "c2", CreatedAt: base}))

	orders, err := ledger.RecentByCustomer(ctx, "c1", 5)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, 2, orders[0].OrderID)
	assert.Equal(t, StatusPendingPayment, orders[0].Status)

	require.NoError(t, ledger.MarkPaid(ctx, 1))
	orders, _ = ledger.RecentByCustomer(ctx, "c1", 5)
	assert.Equal(t, StatusPaid, orders[1].Status)
	assert.ErrorIs(t, ledger.MarkPaid(ctx, 99), ErrOrderNotFound)
}
