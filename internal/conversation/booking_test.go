package conversation

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/bookings"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/events"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/nailit"
)

type bookingFixture struct {
	pos       *stubPOS
	ledger    *bookings.MemoryLedger
	publisher *events.MemoryPublisher
	mailer    *recordingMailer
	orch      *Orchestrator
}

func newBookingFixture(pos *stubPOS) *bookingFixture {
	f := &bookingFixture{
		pos:       pos,
		ledger:    bookings.NewMemoryLedger(),
		publisher: events.NewMemoryPublisher(),
		mailer:    &recordingMailer{},
	}
	f.orch = NewOrchestrator(pos, testResolver(), testDirectory(), nil,
		WithOrderRecorder(f.ledger),
		WithEventPublisher(f.publisher),
		WithConfirmationMailer(f.mailer),
		WithOrchestratorClock(fixedClock),
	)
	return f
}

var customerSara = Customer{ID: "96550001234", Phone: "96550001234", Name: "Sara"}

func TestOrchestrator_BookSuccess(t *testing.T) {
	pos := &stubPOS{
		orderID: 4242,
		staff: []nailit.StaffAvailability{
			{StaffID: 11, Name: "Huda", TimeFrames: []nailit.TimeFrame{{FromSlotID: 13, ToSlotID: 16}}},
		},
	}
	f := newBookingFixture(pos)
	st := bookableState(customerSara.ID)

	res := f.orch.Book(context.Background(), st, customerSara)

	require.True(t, res.Success, res.FailureReason)
	assert.Equal(t, BookingSucceeded, res.Kind)
	assert.Equal(t, "4242", res.OrderID)
	assert.Contains(t, res.Message, "#4242")
	assert.Contains(t, res.Message, "3:00 PM")
	assert.Equal(t, PhaseCompleted, st.Phase)
	assert.False(t, st.Data.ReadyForBooking)

	require.Len(t, pos.orders, 1)
	order := pos.orders[0]
	assert.Equal(t, 7001, order.AppUserID)
	assert.Equal(t, 1, order.LocationID)
	assert.Equal(t, 2, order.PaymentTypeID, "default payment type")
	assert.Equal(t, 2, order.OrderType)
	assert.InDelta(t, 15.0, order.GrossAmount, 0.001)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 101, order.Items[0].ProductID)
	assert.Equal(t, 11, order.Items[0].StaffID)
	assert.Equal(t, []int{13, 14}, order.Items[0].TimeFrameIDs)
	assert.Equal(t, "11-03-2025", order.Items[0].AppointmentDate)

	recorded, err := f.ledger.RecentByCustomer(context.Background(), customerSara.ID, 5)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, 4242, recorded[0].OrderID)
	assert.Equal(t, "Huda", recorded[0].StaffName)

	assert.Equal(t, []string{events.SubjectBookingCreated}, f.publisher.Subjects())
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "sara@example.org", f.mailer.sent[0].CustomerEmail)
	assert.Equal(t, "4242", f.mailer.sent[0].OrderID)
}

func TestOrchestrator_ConsecutiveFramesForMultipleServices(t *testing.T) {
	pos := &stubPOS{}
	f := newBookingFixture(pos)
	st := bookableState(customerSara.ID)
	st.Data.SelectedServices = append(st.Data.SelectedServices,
		SelectedService{ItemID: 201, Name: "Blow Dry", Price: 10, Quantity: 1, DurationMinutes: 30, Category: "hair"})

	res := f.orch.Book(context.Background(), st, customerSara)
	require.True(t, res.Success)

	items := pos.orders[0].Items
	require.Len(t, items, 2)
	assert.Equal(t, []int{13, 14}, items[0].TimeFrameIDs)
	assert.Equal(t, []int{15}, items[1].TimeFrameIDs)
	assert.InDelta(t, 25.0, pos.orders[0].GrossAmount, 0.001)
	assert.InDelta(t, 25.0, st.Data.TotalAmount, 0.001)
}

func TestOrchestrator_RegistrationRetriesWithNormalizedPhone(t *testing.T) {
	pos := &stubPOS{registerErrs: []error{fmt.Errorf("register: %w", nailit.ErrInvalidPhone)}}
	f := newBookingFixture(pos)
	st := bookableState(customerSara.ID)

	res := f.orch.Book(context.Background(), st, customerSara)

	require.True(t, res.Success)
	require.Len(t, pos.registered, 2)
	assert.Equal(t, "96550001234", pos.registered[0].Mobile)
	assert.Equal(t, "50001234", pos.registered[1].Mobile)
	assert.Equal(t, "50001234", st.Data.CustomerPhone)
}

func TestOrchestrator_RegistrationFailure(t *testing.T) {
	pos := &stubPOS{registerErrs: []error{errPOSDown}}
	f := newBookingFixture(pos)
	st := bookableState(customerSara.ID)
	st.Data.ReadyForBooking = true

	res := f.orch.Book(context.Background(), st, customerSara)

	assert.False(t, res.Success)
	assert.Equal(t, BookingRegistrationFailed, res.Kind)
	assert.Equal(t, localize(LangEnglish, msgRegistrationFailed), res.Message)
	assert.Equal(t, PhaseCustomerInfo, st.Phase)
	assert.False(t, st.Data.ReadyForBooking)
	assert.Empty(t, pos.orders)
	assert.Empty(t, f.publisher.Events())
}

func TestOrchestrator_FailedSubmissionOffersAlternatives(t *testing.T) {
	pos := &stubPOS{
		orderErr: errPOSDown,
		staff: []nailit.StaffAvailability{
			{StaffID: 11, Name: "Huda", TimeFrames: []nailit.TimeFrame{
				{FromSlotID: 17, ToSlotID: 18, FromTime: "5:00 PM"},
				{FromSlotID: 21, ToSlotID: 22},
			}},
		},
	}
	f := newBookingFixture(pos)
	st := bookableState(customerSara.ID)

	res := f.orch.Book(context.Background(), st, customerSara)

	assert.False(t, res.Success)
	assert.Equal(t, BookingSubmissionFailed, res.Kind)
	require.Len(t, res.Alternatives, 2)
	assert.Equal(t, "17:00", res.Alternatives[0].Start)
	assert.Equal(t, "19:00", res.Alternatives[1].Start)
	assert.Contains(t, res.Message, "1. 5:00 PM with Huda")
	assert.Contains(t, res.Message, "2. 7:00 PM with Huda")
	assert.Equal(t, "Huda", st.Data.AvailableTimeSlots[0].StaffName)
	assert.Contains(t, numberedSlots(LangArabic, st.Data.AvailableTimeSlots), "1. 5:00 PM مع Huda")
	assert.NotContains(t, numberedSlots(LangArabic, st.Data.AvailableTimeSlots), " with ")

	assert.Equal(t, PhaseTimeSelection, st.Phase)
	assert.Equal(t, res.Alternatives, st.Data.AvailableTimeSlots)
	assert.Empty(t, st.Data.PreferredTime)
	assert.Zero(t, st.Data.StaffID)
	assert.False(t, st.Data.ReadyForBooking)
	assert.Equal(t, []string{events.SubjectBookingFailed}, f.publisher.Subjects())
	assert.Empty(t, f.mailer.sent)
}

func TestOrchestrator_FailedSubmissionWithoutAvailability(t *testing.T) {
	pos := &stubPOS{orderErr: errPOSDown}
	f := newBookingFixture(pos)
	st := bookableState(customerSara.ID)

	res := f.orch.Book(context.Background(), st, customerSara)

	assert.Equal(t, BookingSubmissionFailed, res.Kind)
	assert.Empty(t, res.Alternatives)
	assert.Equal(t, localize(LangEnglish, msgBookingFailed), res.Message)
	assert.Equal(t, PhaseServiceSelection, st.Phase)
}

func TestOrchestrator_SyntheticSelections(t *testing.T) {
	t.Run("resolved to a real service", func(t *testing.T) {
		pos := &stubPOS{}
		f := newBookingFixture(pos)
		st := bookableState(customerSara.ID)
		st.Data.SelectedServices = []SelectedService{{ItemID: -1, Name: "Classic Manicure", Category: "nail", IsSynthetic: true, Quantity: 1}}

		res := f.orch.Book(context.Background(), st, customerSara)

		require.True(t, res.Success)
		sel := st.Data.SelectedServices[0]
		assert.False(t, sel.IsSynthetic)
		assert.Greater(t, sel.ItemID, 0)
		assert.Equal(t, sel.ItemID, pos.orders[0].Items[0].ProductID)
	})

	t.Run("no real service rejects before registration", func(t *testing.T) {
		pos := &stubPOS{}
		f := newBookingFixture(pos)
		st := bookableState(customerSara.ID)
		st.Data.SelectedServices = []SelectedService{{ItemID: -3, Name: "Classic Facial", Category: "facial", IsSynthetic: true}}

		res := f.orch.Book(context.Background(), st, customerSara)

		assert.Equal(t, BookingUnavailable, res.Kind)
		assert.Contains(t, res.Message, "Classic Facial")
		assert.Equal(t, PhaseServiceSelection, st.Phase)
		assert.Empty(t, pos.registered)
		assert.Empty(t, pos.orders)
	})
}

func TestOrchestrator_GuardsEmptySelection(t *testing.T) {
	pos := &stubPOS{}
	f := newBookingFixture(pos)
	st := bookableState(customerSara.ID)
	st.Data.SelectedServices = nil

	res := f.orch.Book(context.Background(), st, customerSara)

	assert.Equal(t, BookingGuardRejected, res.Kind)
	assert.Empty(t, pos.registered)
}

func TestOrchestrator_PlaceholderEmailSkipsConfirmation(t *testing.T) {
	f := newBookingFixture(&stubPOS{})
	st := bookableState(customerSara.ID)
	st.Data.CustomerEmail = "customer@example.com"

	res := f.orch.Book(context.Background(), st, customerSara)

	require.True(t, res.Success)
	assert.Empty(t, f.mailer.sent)
}

func TestSlots(t *testing.T) {
	id, err := slotID("09:00")
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	id, err = slotID("3:15 PM")
	require.NoError(t, err)
	assert.Equal(t, 13, id)
	assert.Equal(t, "15:00", slotClock(id))

	_, err = slotID("08:30")
	assert.Error(t, err)

	assert.Equal(t, []int{29, 30}, slotRange(29, 90), "clipped at the last slot")
	assert.Equal(t, []int{5}, slotRange(5, 0))

	line := orderLine(SelectedService{ItemID: 9, Name: "Gel", Price: 7.5, Quantity: 2}, 3, []int{4, 5}, "12-03-2025")
	assert.InDelta(t, 15.0, line.Amount, 0.001)
	assert.Equal(t, 2, line.Quantity)

	staff := []nailit.StaffAvailability{
		{StaffID: 1, Name: "A", TimeFrames: []nailit.TimeFrame{{FromSlotID: 1, ToSlotID: 4}}},
		{StaffID: 2, Name: "B", TimeFrames: []nailit.TimeFrame{{FromSlotID: 10, ToSlotID: 12}}},
	}
	sid, name := staffFor(staff, 11)
	assert.Equal(t, 2, sid)
	assert.Equal(t, "B", name)
	sid, _ = staffFor(staff, 20)
	assert.Zero(t, sid)

	assert.Len(t, slotOptions(staff, 1), 1)
}
