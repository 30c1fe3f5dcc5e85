package conversation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/branch"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/events"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/nailit"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

// PaymentStatus is the result of a payment check.
type PaymentStatus string

const (
	PaymentPaid     PaymentStatus = "paid"
	PaymentPending  PaymentStatus = "pending"
	PaymentNotFound PaymentStatus = "not_found"
	PaymentError    PaymentStatus = "error"
)

// PaymentOutcome is the rendered result of a payment check.
type PaymentOutcome struct {
	Status  PaymentStatus
	OrderID string
	Message string
}

// OrderHistory lists a customer's candidate order ids, newest first.
type OrderHistory interface {
	RecentOrders(ctx context.Context, customerID string) ([]int, error)
}

type paymentLookup interface {
	GetOrderPaymentDetail(ctx context.Context, orderID int) (*nailit.PaymentDetail, error)
}

type paidMarker interface {
	MarkPaid(ctx context.Context, orderID int) error
}

// PaymentHandler confirms payments the customer says they made.
type PaymentHandler struct {
	pos     paymentLookup
	history OrderHistory
	marker  paidMarker
	events  events.Publisher
	now     func() time.Time
	logger  *logging.Logger
}

// NewPaymentHandler wires the payment handler. marker and publisher may be nil.
func NewPaymentHandler(pos paymentLookup, history OrderHistory, marker paidMarker, publisher events.Publisher, logger *logging.Logger) *PaymentHandler {
	if pos == nil {
		panic("conversation: payment lookup cannot be nil")
	}
	if history == nil {
		panic("conversation: order history cannot be nil")
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PaymentHandler{pos: pos, history: history, marker: marker, events: publisher, now: time.Now, logger: logger}
}

// Check looks through the customer's recent orders for a captured payment.
// Only a paid order changes the phase.
func (h *PaymentHandler) Check(ctx context.Context, st *State, customerID string) PaymentOutcome {
	out := h.check(ctx, st, customerID)
	paymentChecks.WithLabelValues(string(out.Status)).Inc()
	return out
}

func (h *PaymentHandler) check(ctx context.Context, st *State, customerID string) PaymentOutcome {
	lang := st.Language
	ids, err := h.history.RecentOrders(ctx, customerID)
	if err != nil {
		h.logger.Error("order discovery failed", "customer_id", customerID, "error", err)
		return PaymentOutcome{Status: PaymentError, Message: localize(lang, msgPaymentCheckFailed)}
	}

	var (
		pending *nailit.PaymentDetail
		lastErr error
	)
	for _, id := range ids {
		detail, err := h.pos.GetOrderPaymentDetail(ctx, id)
		if err != nil {
			if !errors.Is(err, nailit.ErrNotFound) {
				h.logger.Warn("payment detail lookup failed", "customer_id", customerID, "order_id", id, "error", err)
				lastErr = err
			}
			continue
		}
		if detail.IsPaid() {
			return h.paid(ctx, st, customerID, detail)
		}
		if pending == nil {
			pending = detail
		}
	}

	switch {
	case pending != nil:
		return PaymentOutcome{
			Status:  PaymentPending,
			OrderID: strconv.Itoa(pending.OrderID),
			Message: localize(lang, msgPaymentPending, strconv.Itoa(pending.OrderID)),
		}
	case lastErr != nil:
		return PaymentOutcome{Status: PaymentError, Message: localize(lang, msgPaymentCheckFailed)}
	default:
		return PaymentOutcome{Status: PaymentNotFound, Message: localize(lang, msgPaymentNotFound)}
	}
}

func (h *PaymentHandler) paid(ctx context.Context, st *State, customerID string, d *nailit.PaymentDetail) PaymentOutcome {
	orderID := strconv.Itoa(d.OrderID)

	var names, staff []string
	date, clock := st.Data.AppointmentDate, ""
	for _, s := range d.Services {
		names = append(names, s.Name)
		if s.StaffName != "" && !containsString(staff, s.StaffName) {
			staff = append(staff, s.StaffName)
		}
		if s.AppointmentDate != "" {
			date = s.AppointmentDate
		}
		if clock == "" {
			clock = s.TimeFrame
		}
	}
	if len(names) == 0 {
		names = st.Data.ServiceNames()
	}
	location := d.LocationName
	if location == "" {
		location = st.Data.LocationName
	}
	if clock == "" && st.Data.PreferredTime != "" {
		clock = branch.DisplayClock(st.Data.PreferredTime)
	}

	msg := localize(st.Language, msgPaymentPaid,
		orderID,
		orDash(strings.Join(names, ", ")),
		orDash(location),
		orDash(date),
		orDash(clock),
		orDash(strings.Join(staff, ", ")),
	)
	st.Phase = PhaseCompleted

	if h.marker != nil {
		if err := h.marker.MarkPaid(ctx, d.OrderID); err != nil {
			h.logger.Warn("could not mark order paid", "customer_id", customerID, "order_id", d.OrderID, "error", err)
		}
	}
	evt := events.NewBookingEvent(events.SubjectPaymentConfirmed, customerID, h.now())
	evt.OrderID = orderID
	evt.LocationName = location
	evt.AppointmentDate = date
	evt.Services = names
	evt.TotalAmount = d.PaidAmount
	if err := h.events.Publish(ctx, evt); err != nil {
		h.logger.Warn("payment event not published", "customer_id", customerID, "error", err)
	}
	return PaymentOutcome{Status: PaymentPaid, OrderID: orderID, Message: msg}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
