package conversation

import (
	"strings"
	"time"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/branch"
)

// Phase annotates where a conversation is in the booking journey.
// It is a hint for the prompt and the policy, not a gate.
type Phase string

const (
	PhaseGreeting          Phase = "greeting"
	PhaseServiceSelection  Phase = "service_selection"
	PhaseLocationSelection Phase = "location_selection"
	PhaseDateSelection     Phase = "date_selection"
	PhaseTimeSelection     Phase = "time_selection"
	PhaseStaffSelection    Phase = "staff_selection"
	PhaseCustomerInfo      Phase = "customer_info"
	PhasePaymentMethod     Phase = "payment_method"
	PhaseOrderSummary      Phase = "order_summary"
	PhaseConfirmation      Phase = "confirmation"
	PhaseCompleted         Phase = "completed"
)

// Supported reply languages.
const (
	LangEnglish = "en"
	LangArabic  = "ar"
)

// SelectedService is a service the customer asked for.
type SelectedService struct {
	ItemID          int     `json:"item_id"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	Quantity        int     `json:"quantity"`
	DurationMinutes int     `json:"duration_minutes"`
	Category        string  `json:"category,omitempty"`
	IsSynthetic     bool    `json:"is_synthetic,omitempty"`
}

// TimeSlotOption is an alternative slot offered after a failed submission.
type TimeSlotOption struct {
	StaffID    int    `json:"staff_id"`
	StaffName  string `json:"staff_name"`
	FromSlotID int    `json:"from_slot_id"`
	ToSlotID   int    `json:"to_slot_id"`
	Start      string `json:"start"` // "HH:MM"
}

// Text renders the offer for the customer, e.g. "5:00 PM with Huda".
func (o TimeSlotOption) Text(lang string) string {
	clock := branch.DisplayClock(o.Start)
	if name := strings.TrimSpace(o.StaffName); name != "" {
		return localize(lang, msgSlotWithStaff, clock, name)
	}
	return clock
}

// CollectedData is the slot-filling bag for one booking.
type CollectedData struct {
	SelectedServices   []SelectedService `json:"selected_services,omitempty"`
	LocationID         int               `json:"location_id,omitempty"`
	LocationName       string            `json:"location_name,omitempty"`
	AppointmentDate    string            `json:"appointment_date,omitempty"` // 02-01-2006
	PreferredTime      string            `json:"preferred_time,omitempty"`   // HH:MM
	StaffID            int               `json:"staff_id,omitempty"`
	StaffName          string            `json:"staff_name,omitempty"`
	CustomerName       string            `json:"customer_name,omitempty"`
	CustomerEmail      string            `json:"customer_email,omitempty"`
	CustomerPhone      string            `json:"customer_phone,omitempty"`
	PaymentTypeID      int               `json:"payment_type_id,omitempty"`
	PaymentTypeName    string            `json:"payment_type_name,omitempty"`
	TotalAmount        float64           `json:"total_amount,omitempty"`
	ReadyForBooking    bool              `json:"ready_for_booking,omitempty"`
	AvailableTimeSlots []TimeSlotOption  `json:"available_time_slots,omitempty"`
}

// State is the per-customer conversation state.
type State struct {
	CustomerID  string        `json:"customer_id"`
	Phase       Phase         `json:"phase"`
	Data        CollectedData `json:"data"`
	Language    string        `json:"language"`
	CreatedAt   time.Time     `json:"created_at"`
	LastUpdated time.Time     `json:"last_updated"`
}

// NewState returns a fresh greeting-phase state.
func NewState(customerID string, now time.Time) *State {
	return &State{
		CustomerID:  customerID,
		Phase:       PhaseGreeting,
		Language:    LangEnglish,
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// Reset clears collected data and returns to greeting.
// Language and phone survive so the next booking starts in the same register.
func (s *State) Reset(now time.Time) {
	phone := s.Data.CustomerPhone
	s.Phase = PhaseGreeting
	s.Data = CollectedData{CustomerPhone: phone}
	s.CreatedAt = now
	s.LastUpdated = now
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Data.SelectedServices = append([]SelectedService(nil), s.Data.SelectedServices...)
	c.Data.AvailableTimeSlots = append([]TimeSlotOption(nil), s.Data.AvailableTimeSlots...)
	return &c
}

// HasService reports whether the item is already selected.
func (d *CollectedData) HasService(itemID int) bool {
	for _, s := range d.SelectedServices {
		if s.ItemID == itemID {
			return true
		}
	}
	return false
}

// RealServices counts selections that map to real catalog items.
func (d *CollectedData) RealServices() int {
	n := 0
	for _, s := range d.SelectedServices {
		if !s.IsSynthetic && s.ItemID > 0 {
			n++
		}
	}
	return n
}

// RecomputeTotal sums line amounts into TotalAmount.
func (d *CollectedData) RecomputeTotal() {
	total := 0.0
	for _, s := range d.SelectedServices {
		qty := s.Quantity
		if qty <= 0 {
			qty = 1
		}
		total += s.Price * float64(qty)
	}
	d.TotalAmount = total
}

// ServiceNames lists selected service names.
func (d *CollectedData) ServiceNames() []string {
	names := make([]string, 0, len(d.SelectedServices))
	for _, s := range d.SelectedServices {
		names = append(names, s.Name)
	}
	return names
}

// MissingFields lists the required booking fields still absent, in asking order.
func (s *State) MissingFields() []string {
	var missing []string
	if len(s.Data.SelectedServices) == 0 {
		missing = append(missing, "service")
	}
	if s.Data.LocationID == 0 || isPlaceholderValue(s.Data.LocationName) {
		missing = append(missing, "location")
	}
	if strings.TrimSpace(s.Data.AppointmentDate) == "" {
		missing = append(missing, "date")
	}
	if isPlaceholderName(s.Data.CustomerName) {
		missing = append(missing, "name")
	}
	if isPlaceholderEmail(s.Data.CustomerEmail) {
		missing = append(missing, "email")
	}
	return missing
}

// IsBookable reports whether every field an order needs is present and real.
// Synthetic-only selections are not bookable.
func IsBookable(s *State) bool {
	if s == nil {
		return false
	}
	return len(s.MissingFields()) == 0 && s.Data.RealServices() > 0
}

var placeholderValues = map[string]struct{}{
	"customer": {}, "guest": {}, "unknown": {}, "n/a": {}, "na": {}, "none": {},
	"null": {}, "test": {}, "user": {}, "client": {}, "-": {},
}

func isPlaceholderValue(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return true
	}
	_, ok := placeholderValues[v]
	return ok
}

func isPlaceholderName(name string) bool {
	if isPlaceholderValue(name) {
		return true
	}
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasPrefix(lower, "customer ") || strings.HasPrefix(lower, "guest ")
}

var placeholderEmails = map[string]struct{}{
	"customer@example.com": {}, "test@test.com": {}, "test@example.com": {},
	"email@example.com": {}, "user@example.com": {}, "guest@example.com": {},
}

func isPlaceholderEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return true
	}
	if _, ok := placeholderEmails[email]; ok {
		return true
	}
	return strings.HasPrefix(email, "noreply@") || strings.HasPrefix(email, "no-reply@")
}
