package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/bookings"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/events"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/nailit"
)

func TestPaymentHandler_NoOrders(t *testing.T) {
	h := NewPaymentHandler(&stubPOS{}, stubHistory{}, nil, nil, nil)
	st := bookableState("c1")
	st.Phase = PhaseOrderSummary

	out := h.Check(context.Background(), st, "c1")

	assert.Equal(t, PaymentNotFound, out.Status)
	assert.Equal(t, localize(LangEnglish, msgPaymentNotFound), out.Message)
	assert.Equal(t, PhaseOrderSummary, st.Phase, "phase untouched")
}

func TestPaymentHandler_PaidOrder(t *testing.T) {
	pos := &stubPOS{details: map[int]*nailit.PaymentDetail{
		501: {OrderID: 501, PaymentStatus: "PENDING"},
		502: {
			OrderID:       502,
			LocationName:  "Al-Plaza Mall",
			PaymentStatus: "CAPTURED",
			PaidAmount:    15,
			Services: []nailit.PaymentService{
				{Name: "French Manicure", StaffName: "Huda", AppointmentDate: "11-03-2025", TimeFrame: "3:00 PM - 4:00 PM"},
			},
		},
	}}
	ledger := bookings.NewMemoryLedger()
	require.NoError(t, ledger.Record(context.Background(), bookings.Order{OrderID: 502, CustomerID: "c1"}))
	publisher := events.NewMemoryPublisher()
	h := NewPaymentHandler(pos, stubHistory{ids: []int{501, 502}}, ledger, publisher, nil)
	st := bookableState("c1")

	out := h.Check(context.Background(), st, "c1")

	assert.Equal(t, PaymentPaid, out.Status)
	assert.Equal(t, "502", out.OrderID)
	assert.Contains(t, out.Message, "Order #502")
	assert.Contains(t, out.Message, "Specialist: Huda")
	assert.Contains(t, out.Message, "Time: 3:00 PM - 4:00 PM")
	assert.Equal(t, PhaseCompleted, st.Phase)

	orders, err := ledger.RecentByCustomer(context.Background(), "c1", 1)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusPaid, orders[0].Status)
	assert.Equal(t, []string{events.SubjectPaymentConfirmed}, publisher.Subjects())
}

func TestPaymentHandler_PendingOrder(t *testing.T) {
	pos := &stubPOS{details: map[int]*nailit.PaymentDetail{
		501: {OrderID: 501, PaymentStatus: "NOT CAPTURED"},
	}}
	h := NewPaymentHandler(pos, stubHistory{ids: []int{501}}, nil, nil, nil)
	st := bookableState("c1")

	out := h.Check(context.Background(), st, "c1")

	assert.Equal(t, PaymentPending, out.Status)
	assert.Equal(t, "501", out.OrderID)
	assert.Contains(t, out.Message, "#501")
	assert.Equal(t, PhaseConfirmation, st.Phase)
}

func TestPaymentHandler_Errors(t *testing.T) {
	t.Run("history failure", func(t *testing.T) {
		h := NewPaymentHandler(&stubPOS{}, stubHistory{err: errPOSDown}, nil, nil, nil)
		out := h.Check(context.Background(), NewState("c1", testNow), "c1")
		assert.Equal(t, PaymentError, out.Status)
	})

	t.Run("lookup failure with nothing else found", func(t *testing.T) {
		pos := &stubPOS{detailErr: map[int]error{501: errPOSDown}}
		h := NewPaymentHandler(pos, stubHistory{ids: []int{501, 502}}, nil, nil, nil)
		out := h.Check(context.Background(), NewState("c1", testNow), "c1")
		assert.Equal(t, PaymentError, out.Status)
		assert.Equal(t, localize(LangEnglish, msgPaymentCheckFailed), out.Message)
	})

	t.Run("pending beats lookup failure", func(t *testing.T) {
		pos := &stubPOS{
			detailErr: map[int]error{501: errPOSDown},
			details:   map[int]*nailit.PaymentDetail{502: {OrderID: 502}},
		}
		h := NewPaymentHandler(pos, stubHistory{ids: []int{501, 502}}, nil, nil, nil)
		out := h.Check(context.Background(), NewState("c1", testNow), "c1")
		assert.Equal(t, PaymentPending, out.Status)
	})
}

func TestPaymentHandler_ArabicReply(t *testing.T) {
	h := NewPaymentHandler(&stubPOS{}, stubHistory{}, nil, nil, nil)
	st := NewState("c1", testNow)
	st.Language = LangArabic

	out := h.Check(context.Background(), st, "c1")
	assert.Equal(t, localize(LangArabic, msgPaymentNotFound), out.Message)
}
