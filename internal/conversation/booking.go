package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/bookings"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/branch"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/catalog"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/events"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/nailit"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/notify"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var bookingTracer = otel.Tracer("salon.internal.conversation.booking")

// BookingKind classifies a booking outcome.
type BookingKind string

const (
	BookingSucceeded          BookingKind = "success"
	BookingRegistrationFailed BookingKind = "registration_failed"
	BookingSubmissionFailed   BookingKind = "submission_failed"
	BookingGuardRejected      BookingKind = "guard_rejected"
	BookingUnavailable        BookingKind = "unavailable"
)

// BookingResult is what one submission attempt produced.
type BookingResult struct {
	Success       bool
	OrderID       string
	FailureReason string
	Kind          BookingKind
	Message       string
	Alternatives  []TimeSlotOption
}

// Customer identifies who the order is for.
type Customer struct {
	ID    string
	Phone string
	Name  string
}

type posBooking interface {
	RegisterUser(ctx context.Context, req nailit.RegisterRequest) (*nailit.RegisterResponse, error)
	SaveOrder(ctx context.Context, req nailit.OrderRequest) (*nailit.OrderResponse, error)
	GetAvailableServiceStaff(ctx context.Context, itemID, locationID int, date string) ([]nailit.StaffAvailability, error)
}

type realResolver interface {
	ResolveReal(ctx context.Context, name, category string, locationID int) (catalog.ServiceRecord, error)
}

// OrderRecorder stores orders the assistant created.
type OrderRecorder interface {
	Record(ctx context.Context, o bookings.Order) error
}

type confirmationMailer interface {
	SendBookingConfirmation(ctx context.Context, c notify.BookingConfirmation) error
}

// OrchestratorOption customises the orchestrator's collaborators.
type OrchestratorOption func(*Orchestrator)

func WithOrderRecorder(r OrderRecorder) OrchestratorOption {
	return func(o *Orchestrator) {
		if r != nil {
			o.ledger = r
		}
	}
}

func WithEventPublisher(p events.Publisher) OrchestratorOption {
	return func(o *Orchestrator) {
		if p != nil {
			o.events = p
		}
	}
}

func WithConfirmationMailer(m confirmationMailer) OrchestratorOption {
	return func(o *Orchestrator) {
		if m != nil {
			o.mailer = m
		}
	}
}

func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator turns a bookable conversation into a POS order.
type Orchestrator struct {
	pos       posBooking
	resolver  realResolver
	directory branchDirectory
	ledger    OrderRecorder
	events    events.Publisher
	mailer    confirmationMailer
	now       func() time.Time
	logger    *logging.Logger
}

// NewOrchestrator wires the booking orchestrator.
func NewOrchestrator(pos posBooking, resolver realResolver, directory branchDirectory, logger *logging.Logger, opts ...OrchestratorOption) *Orchestrator {
	if pos == nil {
		panic("conversation: pos client cannot be nil")
	}
	if resolver == nil {
		panic("conversation: service resolver cannot be nil")
	}
	if directory == nil {
		panic("conversation: branch directory cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	o := &Orchestrator{
		pos:       pos,
		resolver:  resolver,
		directory: directory,
		ledger:    bookings.NewMemoryLedger(),
		events:    events.NoopPublisher{},
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Book registers the customer and submits the order. State is mutated to
// reflect the outcome; the returned message is ready to send.
func (o *Orchestrator) Book(ctx context.Context, st *State, customer Customer) BookingResult {
	ctx, span := bookingTracer.Start(ctx, "conversation.booking.book")
	defer span.End()
	span.SetAttributes(attribute.String("salon.customer_id", customer.ID))

	result := o.book(ctx, st, customer)
	bookingAttempts.WithLabelValues(string(result.Kind)).Inc()
	span.SetAttributes(attribute.String("salon.booking_kind", string(result.Kind)))
	if !result.Success {
		o.logger.Warn("booking not completed", "customer_id", customer.ID, "kind", result.Kind, "reason", result.FailureReason)
	}
	return result
}

func (o *Orchestrator) book(ctx context.Context, st *State, customer Customer) BookingResult {
	lang := st.Language
	if len(st.Data.SelectedServices) == 0 {
		return BookingResult{Kind: BookingGuardRejected, FailureReason: "no services selected", Message: localize(lang, msgNeedService)}
	}
	o.fillDefaults(st)

	if res, ok := o.resolveSynthetic(ctx, st); !ok {
		return res
	}

	appUser, err := o.register(ctx, st, customer)
	if err != nil {
		st.Phase = PhaseCustomerInfo
		st.Data.ReadyForBooking = false
		return BookingResult{Kind: BookingRegistrationFailed, FailureReason: err.Error(), Message: localize(lang, msgRegistrationFailed)}
	}

	req, start := o.buildOrder(ctx, st, customer, appUser)
	resp, err := o.pos.SaveOrder(ctx, req)
	if err != nil {
		return o.recoverFailedSubmission(ctx, st, customer, err)
	}

	orderID := strconv.Itoa(resp.OrderID)
	o.afterSuccess(ctx, st, customer, resp.OrderID, start)
	msg := localize(lang, msgBookingSuccess,
		orderID,
		strings.Join(st.Data.ServiceNames(), ", "),
		st.Data.LocationName,
		st.Data.AppointmentDate,
		branch.DisplayClock(start),
		st.Data.TotalAmount,
		st.Data.PaymentTypeName,
	)
	st.Phase = PhaseCompleted
	st.Data.ReadyForBooking = false
	return BookingResult{Success: true, OrderID: orderID, Kind: BookingSucceeded, Message: msg}
}

func (o *Orchestrator) fillDefaults(st *State) {
	if st.Data.LocationID == 0 {
		b := o.directory.Default()
		st.Data.LocationID = b.LocationID
		st.Data.LocationName = b.Name
	}
	if st.Data.PaymentTypeID == 0 {
		p := o.directory.DefaultPayment()
		st.Data.PaymentTypeID = p.TypeID
		st.Data.PaymentTypeName = p.Name
	}
}

// resolveSynthetic swaps suggestion-only selections for real catalog items.
func (o *Orchestrator) resolveSynthetic(ctx context.Context, st *State) (BookingResult, bool) {
	for i, sel := range st.Data.SelectedServices {
		if !sel.IsSynthetic && sel.ItemID > 0 {
			continue
		}
		rec, err := o.resolver.ResolveReal(ctx, sel.Name, sel.Category, st.Data.LocationID)
		if err != nil {
			reason := err.Error()
			if errors.Is(err, catalog.ErrNoMatch) {
				reason = "no real service for " + sel.Name
			}
			st.Data.ReadyForBooking = false
			st.Phase = PhaseServiceSelection
			return BookingResult{
				Kind:          BookingUnavailable,
				FailureReason: reason,
				Message:       localize(st.Language, msgServiceUnavailable, sel.Name, st.Data.LocationName),
			}, false
		}
		st.Data.SelectedServices[i] = selectionFromRecord(rec, sel.Category)
	}
	st.Data.RecomputeTotal()
	return BookingResult{}, true
}

// register fetches the POS app user, retrying once with a normalized phone
// when the POS rejects the number format.
func (o *Orchestrator) register(ctx context.Context, st *State, customer Customer) (int, error) {
	phone := customer.Phone
	if phone == "" {
		phone = st.Data.CustomerPhone
	}
	req := nailit.RegisterRequest{
		Name:   st.Data.CustomerName,
		Email:  st.Data.CustomerEmail,
		Mobile: phone,
	}
	resp, err := o.pos.RegisterUser(ctx, req)
	if err != nil && errors.Is(err, nailit.ErrInvalidPhone) {
		normalized := nailit.NormalizePhone(phone)
		if normalized != "" && normalized != phone {
			o.logger.Info("retrying registration with normalized phone", "customer_id", customer.ID)
			req.Mobile = normalized
			resp, err = o.pos.RegisterUser(ctx, req)
		}
	}
	if err != nil {
		return 0, fmt.Errorf("conversation: register customer: %w", err)
	}
	st.Data.CustomerPhone = req.Mobile
	return resp.AppUserID, nil
}

func (o *Orchestrator) buildOrder(ctx context.Context, st *State, customer Customer, appUserID int) (nailit.OrderRequest, string) {
	start := st.Data.PreferredTime
	if start == "" {
		start = defaultStartTime
	}
	first, err := slotID(start)
	if err != nil {
		o.logger.Warn("preferred time has no slot, using default", "customer_id", customer.ID, "time", start)
		start = defaultStartTime
		first, _ = slotID(start)
	}

	staffID := st.Data.StaffID
	if staffID == 0 {
		lead := st.Data.SelectedServices[0]
		staff, err := o.pos.GetAvailableServiceStaff(ctx, lead.ItemID, st.Data.LocationID, st.Data.AppointmentDate)
		if err != nil {
			o.logger.Warn("availability lookup failed, booking with any staff", "customer_id", customer.ID, "error", err)
		} else {
			staffID, st.Data.StaffName = staffFor(staff, first)
		}
	}

	req := nailit.OrderRequest{
		AppUserID:     appUserID,
		AppUserName:   st.Data.CustomerName,
		AppUserEmail:  st.Data.CustomerEmail,
		AppUserMobile: st.Data.CustomerPhone,
		LocationID:    st.Data.LocationID,
		PaymentTypeID: st.Data.PaymentTypeID,
		OrderType:     2,
	}
	next := first
	for _, sel := range st.Data.SelectedServices {
		frames := slotRange(next, sel.DurationMinutes)
		line := orderLine(sel, staffID, frames, st.Data.AppointmentDate)
		req.Items = append(req.Items, line)
		req.GrossAmount += line.Amount
		if len(frames) > 0 {
			next = frames[len(frames)-1] + 1
		}
	}
	req.PayNowAmount = req.GrossAmount
	st.Data.StaffID = staffID
	st.Data.TotalAmount = req.GrossAmount
	return req, start
}

func (o *Orchestrator) afterSuccess(ctx context.Context, st *State, customer Customer, orderID int, start string) {
	d := st.Data
	order := bookings.Order{
		OrderID:         orderID,
		CustomerID:      customer.ID,
		CustomerPhone:   d.CustomerPhone,
		CustomerName:    d.CustomerName,
		CustomerEmail:   d.CustomerEmail,
		LocationID:      d.LocationID,
		LocationName:    d.LocationName,
		AppointmentDate: d.AppointmentDate,
		StartTime:       start,
		StaffName:       d.StaffName,
		Services:        d.ServiceNames(),
		TotalAmount:     d.TotalAmount,
		PaymentType:     d.PaymentTypeName,
		CreatedAt:       o.now().UTC(),
	}
	if err := o.ledger.Record(ctx, order); err != nil {
		o.logger.Error("failed to record order", "customer_id", customer.ID, "order_id", orderID, "error", err)
	}

	evt := events.NewBookingEvent(events.SubjectBookingCreated, customer.ID, o.now())
	evt.OrderID = order.Ref()
	evt.LocationID = d.LocationID
	evt.LocationName = d.LocationName
	evt.AppointmentDate = d.AppointmentDate
	evt.StartTime = start
	evt.Services = order.Services
	evt.TotalAmount = d.TotalAmount
	o.publish(ctx, evt)

	if o.mailer != nil && !isPlaceholderEmail(d.CustomerEmail) {
		err := o.mailer.SendBookingConfirmation(ctx, notify.BookingConfirmation{
			CustomerName:    d.CustomerName,
			CustomerEmail:   d.CustomerEmail,
			OrderID:         order.Ref(),
			Services:        order.Services,
			LocationName:    d.LocationName,
			AppointmentDate: d.AppointmentDate,
			StartTime:       branch.DisplayClock(start),
			TotalAmount:     d.TotalAmount,
			PaymentType:     d.PaymentTypeName,
			Language:        st.Language,
		})
		if err != nil {
			o.logger.Warn("confirmation email failed", "customer_id", customer.ID, "order_id", orderID, "error", err)
		}
	}
}

// recoverFailedSubmission offers alternative slots when the POS has any.
func (o *Orchestrator) recoverFailedSubmission(ctx context.Context, st *State, customer Customer, cause error) BookingResult {
	evt := events.NewBookingEvent(events.SubjectBookingFailed, customer.ID, o.now())
	evt.LocationID = st.Data.LocationID
	evt.AppointmentDate = st.Data.AppointmentDate
	evt.Services = st.Data.ServiceNames()
	evt.Reason = cause.Error()
	o.publish(ctx, evt)

	st.Data.ReadyForBooking = false
	lead := st.Data.SelectedServices[0]
	staff, err := o.pos.GetAvailableServiceStaff(ctx, lead.ItemID, st.Data.LocationID, st.Data.AppointmentDate)
	if err != nil {
		o.logger.Warn("availability lookup after failed submission", "customer_id", customer.ID, "error", err)
	}
	alternatives := slotOptions(staff, maxAlternatives)
	if len(alternatives) == 0 {
		st.Phase = PhaseServiceSelection
		st.Data.AvailableTimeSlots = nil
		return BookingResult{
			Kind:          BookingSubmissionFailed,
			FailureReason: cause.Error(),
			Message:       localize(st.Language, msgBookingFailed),
		}
	}
	st.Phase = PhaseTimeSelection
	st.Data.AvailableTimeSlots = alternatives
	st.Data.PreferredTime = ""
	st.Data.StaffID = 0
	st.Data.StaffName = ""
	return BookingResult{
		Kind:          BookingSubmissionFailed,
		FailureReason: cause.Error(),
		Message:       localize(st.Language, msgBookingAlternatives, st.Data.AppointmentDate, numberedSlots(st.Language, alternatives)),
		Alternatives:  alternatives,
	}
}

func (o *Orchestrator) publish(ctx context.Context, evt events.BookingEvent) {
	if err := o.events.Publish(ctx, evt); err != nil {
		o.logger.Warn("booking event not published", "subject", evt.Subject, "customer_id", evt.CustomerID, "error", err)
	}
}
