package conversation

import "strings"

// triggerInput is what booking guards inspect for one turn.
type triggerInput struct {
	message     string
	tokens      []string
	readyToBook bool
	slotChosen  bool
}

// bookingTrigger is a named condition that lets a bookable state submit an order.
type bookingTrigger struct {
	name  string
	guard func(in triggerInput) bool
}

var (
	affirmWords  = []string{"yes", "yeah", "yep"}
	confirmWords = []string{"confirm", "confirmed", "confirming", "proceed"}
	// holdWords negate or defer an otherwise affirmative message.
	holdWords    = []string{"not", "no", "don't", "dont", "never", "before", "later", "wait", "لا", "مو", "بعدين"}
)

// bookingTriggers is evaluated in order; the first passing guard names the trigger.
var bookingTriggers = []bookingTrigger{
	{name: "affirm_and_confirm", guard: func(in triggerInput) bool {
		return hasWord(in.tokens, affirmWords...) && (hasWord(in.tokens, confirmWords...) || strings.Contains(strings.ToLower(in.message), "go ahead"))
	}},
	{name: "please_book", guard: func(in triggerInput) bool {
		lower := strings.ToLower(in.message)
		return strings.Contains(lower, "please book") || strings.Contains(lower, "book it") || strings.Contains(lower, "book now")
	}},
	{name: "arabic_confirm", guard: func(in triggerInput) bool {
		return (containsArabic(in.message, "نعم", "ايوه") && containsArabic(in.message, "اكد", "تاكيد", "اكدي")) ||
			containsArabic(in.message, "احجزي لي", "احجز لي", "ثبتي الحجز", "ثبت الحجز")
	}},
	{name: "slot_selected", guard: func(in triggerInput) bool { return in.slotChosen }},
	{name: "model_ready", guard: func(in triggerInput) bool { return in.readyToBook }},
}

// matchBookingTrigger returns the first trigger whose guard passes. A message
// that negates or defers never books, except for a picked time slot.
func matchBookingTrigger(in triggerInput) (string, bool) {
	if in.tokens == nil {
		in.tokens = words(in.message)
	}
	if !in.slotChosen && hasWord(in.tokens, holdWords...) {
		return "", false
	}
	for _, t := range bookingTriggers {
		if t.guard(in) {
			return t.name, true
		}
	}
	return "", false
}

// isOnHold reports whether the message negates or defers the booking.
func isOnHold(message string) bool {
	return hasWord(words(message), holdWords...)
}

// isPaymentIntent matches "payment" plus confirm/done/paid, or the Arabic equivalent.
func isPaymentIntent(message string) bool {
	tokens := words(message)
	if hasWord(tokens, "payment") && hasWord(tokens, "confirm", "confirmed", "done", "paid", "complete", "completed", "made") {
		return true
	}
	return containsArabic(message, "دفع", "الدفع", "دفعت") && containsArabic(message, "تم", "اكد", "خلص", "دفعت")
}

// isCancelIntent matches an explicit request to drop the current booking.
func isCancelIntent(message string) bool {
	lower := strings.ToLower(message)
	if strings.Contains(lower, "start over") || strings.Contains(lower, "never mind") || strings.Contains(lower, "nevermind") {
		return true
	}
	if hasWord(words(message), "cancel", "restart") {
		return true
	}
	return containsArabic(message, "الغاء", "الغي", "كنسل")
}
