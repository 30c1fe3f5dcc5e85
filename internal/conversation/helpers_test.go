package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/branch"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/catalog"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/nailit"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/notify"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

// Monday 10 March 2025, 10:00 UTC.
var testNow = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func testDirectory() *branch.Directory {
	d := branch.NewDirectory(
		branch.Branch{LocationID: 1, Name: "Al-Plaza Mall", Open: "10:00", Close: "22:00"},
		branch.PaymentOption{TypeID: 2, Name: "Cash"},
	)
	d.Load(branch.Snapshot{
		Branches: []branch.Branch{
			{LocationID: 1, Name: "Al-Plaza Mall", Open: "10:00", Close: "22:00"},
			{LocationID: 2, Name: "Zahra Complex", Open: "11:00", Close: "23:00"},
		},
		PaymentTypes: []branch.PaymentOption{{TypeID: 2, Name: "Cash"}, {TypeID: 1, Name: "KNET"}},
	})
	return d
}

func testServices() *catalog.MemorySource {
	return catalog.NewMemorySource(
		catalog.ServiceRecord{ItemID: 101, Name: "French Manicure", Price: 15, DurationMinutes: 45, Keywords: []string{"french", "manicure"}, Categories: []string{catalog.CategoryNail}},
		catalog.ServiceRecord{ItemID: 102, Name: "Classic Pedicure", Price: 12, DurationMinutes: 60, Keywords: []string{"classic", "pedicure"}, Categories: []string{catalog.CategoryNail}},
		catalog.ServiceRecord{ItemID: 201, Name: "Blow Dry", Price: 10, DurationMinutes: 30, Keywords: []string{"blow", "dry", "blowdry"}, Categories: []string{catalog.CategoryHair}},
	)
}

func testResolver() *catalog.Resolver {
	return catalog.NewResolver(testServices(), logging.Default())
}

func testExtractor(dir *branch.Directory) *Extractor {
	return NewExtractor(dir, testResolver(), WithClock(fixedClock), WithTimezone(time.UTC))
}

// bookableState has every field an order needs.
func bookableState(customerID string) *State {
	st := NewState(customerID, testNow)
	st.Phase = PhaseConfirmation
	st.Data = CollectedData{
		SelectedServices: []SelectedService{{ItemID: 101, Name: "French Manicure", Price: 15, Quantity: 1, DurationMinutes: 45, Category: catalog.CategoryNail}},
		LocationID:       1,
		LocationName:     "Al-Plaza Mall",
		AppointmentDate:  "11-03-2025",
		PreferredTime:    "15:00",
		CustomerName:     "Sara Ahmed",
		CustomerEmail:    "sara@example.org",
		CustomerPhone:    "96550001234",
		TotalAmount:      15,
	}
	return st
}

type stubLLM struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []LLMRequest
}

func (s *stubLLM) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	if len(s.replies) == 0 {
		return LLMResponse{Text: `{"reply":"How can I help?","readyToBook":false}`}, nil
	}
	text := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return LLMResponse{Text: text}, nil
}

func (s *stubLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type stubPOS struct {
	mu sync.Mutex

	registerErrs []error
	registered   []nailit.RegisterRequest
	appUserID    int

	orderErr error
	orderID  int
	orders   []nailit.OrderRequest

	staff    []nailit.StaffAvailability
	staffErr error

	details   map[int]*nailit.PaymentDetail
	detailErr map[int]error
}

func (p *stubPOS) RegisterUser(_ context.Context, req nailit.RegisterRequest) (*nailit.RegisterResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, req)
	if len(p.registerErrs) > 0 {
		err := p.registerErrs[0]
		p.registerErrs = p.registerErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	id := p.appUserID
	if id == 0 {
		id = 7001
	}
	return &nailit.RegisterResponse{AppUserID: id, CustomerID: id}, nil
}

func (p *stubPOS) SaveOrder(_ context.Context, req nailit.OrderRequest) (*nailit.OrderResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, req)
	if p.orderErr != nil {
		return nil, p.orderErr
	}
	id := p.orderID
	if id == 0 {
		id = 90001
	}
	return &nailit.OrderResponse{OrderID: id}, nil
}

func (p *stubPOS) GetAvailableServiceStaff(context.Context, int, int, string) ([]nailit.StaffAvailability, error) {
	return p.staff, p.staffErr
}

func (p *stubPOS) GetOrderPaymentDetail(_ context.Context, orderID int) (*nailit.PaymentDetail, error) {
	if err, ok := p.detailErr[orderID]; ok {
		return nil, err
	}
	if d, ok := p.details[orderID]; ok {
		return d, nil
	}
	return nil, nailit.ErrNotFound
}

type stubHistory struct {
	ids []int
	err error
}

func (h stubHistory) RecentOrders(context.Context, string) ([]int, error) {
	return h.ids, h.err
}

type recordingMailer struct {
	sent []notify.BookingConfirmation
	err  error
}

func (m *recordingMailer) SendBookingConfirmation(_ context.Context, c notify.BookingConfirmation) error {
	m.sent = append(m.sent, c)
	return m.err
}

var errPOSDown = errors.New("pos unavailable")
