// Package events carries booking lifecycle events and inbound dedupe.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Subjects published on the salon stream.
const (
	SubjectBookingCreated   = "salon.booking.created"
	SubjectBookingFailed    = "salon.booking.failed"
	SubjectPaymentConfirmed = "salon.payment.confirmed"

	StreamName    = "SALON_BOOKINGS"
	subjectPrefix = "salon"
)

// BookingEvent describes something that happened to a customer's booking.
type BookingEvent struct {
	EventID         string    `json:"event_id"`
	Subject         string    `json:"subject"`
	CustomerID      string    `json:"customer_id"`
	OrderID         string    `json:"order_id,omitempty"`
	LocationID      int       `json:"location_id,omitempty"`
	LocationName    string    `json:"location_name,omitempty"`
	AppointmentDate string    `json:"appointment_date,omitempty"`
	StartTime       string    `json:"start_time,omitempty"`
	Services        []string  `json:"services,omitempty"`
	TotalAmount     float64   `json:"total_amount,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// NewBookingEvent stamps an event id and time.
func NewBookingEvent(subject, customerID string, now time.Time) BookingEvent {
	return BookingEvent{
		EventID:    uuid.NewString(),
		Subject:    subject,
		CustomerID: customerID,
		OccurredAt: now.UTC(),
	}
}
