package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

// BookingConfirmation is what the confirmation email needs to know.
type BookingConfirmation struct {
	CustomerName    string
	CustomerEmail   string
	OrderID         string
	Services        []string
	LocationName    string
	AppointmentDate string
	StartTime       string
	TotalAmount     float64
	PaymentType     string
	Language        string
}

// Notifier renders and sends booking confirmation emails.
type Notifier struct {
	sender EmailSender
	logger *logging.Logger
}

// NewNotifier wraps sender. A nil sender falls back to the stub.
func NewNotifier(sender EmailSender, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Default()
	}
	if sender == nil {
		sender = NewStubEmailSender(logger)
	}
	return &Notifier{sender: sender, logger: logger}
}

// SendBookingConfirmation emails the customer a summary of their order.
func (n *Notifier) SendBookingConfirmation(ctx context.Context, c BookingConfirmation) error {
	if strings.TrimSpace(c.CustomerEmail) == "" {
		return fmt.Errorf("notify: booking %s has no customer email", c.OrderID)
	}
	msg := RenderBookingConfirmation(c)
	if err := n.sender.Send(ctx, msg); err != nil {
		return err
	}
	n.logger.Info("booking confirmation emailed", "order_id", c.OrderID)
	return nil
}

// RenderBookingConfirmation builds the subject and bodies.
func RenderBookingConfirmation(c BookingConfirmation) EmailMessage {
	services := strings.Join(c.Services, ", ")
	var subject, text string
	if c.Language == "ar" {
		subject = fmt.Sprintf("تأكيد الحجز #%s", c.OrderID)
		text = fmt.Sprintf("مرحباً %s،\n\nتم تأكيد حجزك رقم #%s.\nالخدمات: %s\nالفرع: %s\nالتاريخ: %s\nالوقت: %s\nالمجموع: %.3f د.ك (%s)\n",
			c.CustomerName, c.OrderID, services, c.LocationName, c.AppointmentDate, c.StartTime, c.TotalAmount, c.PaymentType)
	} else {
		subject = fmt.Sprintf("Your booking #%s is confirmed", c.OrderID)
		text = fmt.Sprintf("Hi %s,\n\nYour booking #%s is confirmed.\nServices: %s\nLocation: %s\nDate: %s\nTime: %s\nTotal: %.3f KWD (%s)\n",
			c.CustomerName, c.OrderID, services, c.LocationName, c.AppointmentDate, c.StartTime, c.TotalAmount, c.PaymentType)
	}
	var b strings.Builder
	b.WriteString("<p>")
	for i, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if i > 0 {
			b.WriteString("<br>")
		}
		b.WriteString(html.EscapeString(line))
	}
	b.WriteString("</p>")
	return EmailMessage{To: c.CustomerEmail, ToName: c.CustomerName, Subject: subject, Body: text, HTML: b.String()}
}
