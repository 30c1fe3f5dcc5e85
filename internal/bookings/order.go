// Package bookings keeps the ledger of orders the assistant placed on the POS
// and answers "which orders does this customer have" for payment checks.
package bookings

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Order statuses.
const (
	StatusPendingPayment = "pending_payment"
	StatusPaid           = "paid"
)

// Order is one POS order created through the assistant.
type Order struct {
	ID              uuid.UUID `json:"id"`
	OrderID         int       `json:"order_id"`
	CustomerID      string    `json:"customer_id"`
	CustomerPhone   string    `json:"customer_phone,omitempty"`
	CustomerName    string    `json:"customer_name,omitempty"`
	CustomerEmail   string    `json:"customer_email,omitempty"`
	LocationID      int       `json:"location_id"`
	LocationName    string    `json:"location_name"`
	AppointmentDate string    `json:"appointment_date"`
	StartTime       string    `json:"start_time"`
	StaffName       string    `json:"staff_name,omitempty"`
	Services        []string  `json:"services"`
	TotalAmount     float64   `json:"total_amount"`
	PaymentType     string    `json:"payment_type,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	PaidAt          time.Time `json:"paid_at,omitempty"`
}

// Ref is the order id as shown to customers.
func (o Order) Ref() string {
	return strconv.Itoa(o.OrderID)
}

func (o *Order) fillDefaults(now time.Time) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = StatusPendingPayment
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now.UTC()
	}
}
