package conversation

import "fmt"

type messageKey string

const (
	msgGenericError        messageKey = "generic_error"
	msgCancelled           messageKey = "cancelled"
	msgNeedService         messageKey = "need_service"
	msgOutsideHours        messageKey = "outside_hours"
	msgBookingSuccess      messageKey = "booking_success"
	msgRegistrationFailed  messageKey = "registration_failed"
	msgBookingAlternatives messageKey = "booking_alternatives"
	msgBookingFailed       messageKey = "booking_failed"
	msgServiceUnavailable  messageKey = "service_unavailable"
	msgPaymentPaid         messageKey = "payment_paid"
	msgPaymentPending      messageKey = "payment_pending"
	msgPaymentNotFound     messageKey = "payment_not_found"
	msgPaymentCheckFailed  messageKey = "payment_check_failed"
	msgSlotChosen          messageKey = "slot_chosen"
	msgSlotWithStaff       messageKey = "slot_with_staff"
)

var templates = map[string]map[messageKey]string{
	LangEnglish: {
		msgGenericError:        "Sorry - I'm having trouble responding right now. Please reply again in a moment.",
		msgCancelled:           "No problem, I've cleared your booking details. Just tell me whenever you'd like to book something.",
		msgNeedService:         "Before I can book, please tell me which service you'd like (for example a manicure, a haircut or a facial).",
		msgOutsideHours:        "%s is open %s, so %s won't work. Could you pick a time within those hours?",
		msgBookingSuccess:      "Your booking is confirmed! Order #%s: %s at %s on %s at %s. Total %.3f KWD, payment by %s. Reply \"payment done\" after paying and I'll confirm it for you.",
		msgRegistrationFailed:  "Sorry, I couldn't set up your customer profile with those details. Could you double-check your name and email for me?",
		msgBookingAlternatives: "Sorry, that time isn't available. Here are open slots on %s:\n%s\nReply with the number of the slot you'd like.",
		msgBookingFailed:       "Sorry, I couldn't complete that booking. Would you like to try a different day or another service?",
		msgServiceUnavailable:  "Sorry, %s isn't available at %s right now. Would you like to choose another service?",
		msgPaymentPaid:         "Payment received, thank you! Here are your booking details:\nOrder #%s\nServices: %s\nLocation: %s\nDate: %s\nTime: %s\nSpecialist: %s\nWe look forward to seeing you!",
		msgPaymentPending:      "I can see order #%s, but the payment is still being verified. I'll confirm as soon as it goes through.",
		msgPaymentNotFound:     "I couldn't find a recent order for you. If you booked just now, please give it a moment and try again.",
		msgPaymentCheckFailed:  "Sorry, I couldn't check your payment right now. Please try again in a few minutes.",
		msgSlotChosen:          "Great, %s it is.",
		msgSlotWithStaff:       "%s with %s",
	},
	LangArabic: {
		msgGenericError:        "عذراً، أواجه مشكلة في الرد الآن. يرجى المحاولة مرة أخرى بعد قليل.",
		msgCancelled:           "لا مشكلة، تم مسح تفاصيل الحجز. أخبريني متى ما رغبتِ بحجز جديد.",
		msgNeedService:         "قبل إتمام الحجز، يرجى إخباري بالخدمة المطلوبة (مثل مانيكير أو قص شعر أو تنظيف بشرة).",
		msgOutsideHours:        "فرع %s يعمل من %s، لذلك الموعد %s غير متاح. هل يمكنك اختيار وقت ضمن ساعات العمل؟",
		msgBookingSuccess:      "تم تأكيد حجزك! رقم الطلب #%s: %s في %s بتاريخ %s الساعة %s. المجموع %.3f د.ك، طريقة الدفع: %s. أرسلي \"تم الدفع\" بعد الدفع وسأؤكد لكِ.",
		msgRegistrationFailed:  "عذراً، لم أتمكن من إنشاء ملفك بهذه البيانات. هل يمكنك التأكد من الاسم والبريد الإلكتروني؟",
		msgBookingAlternatives: "عذراً، هذا الوقت غير متاح. هذه المواعيد المتاحة بتاريخ %s:\n%s\nأرسلي رقم الموعد المناسب.",
		msgBookingFailed:       "عذراً، لم أتمكن من إتمام الحجز. هل ترغبين بتجربة يوم آخر أو خدمة أخرى؟",
		msgServiceUnavailable:  "عذراً، خدمة %s غير متاحة حالياً في %s. هل ترغبين باختيار خدمة أخرى؟",
		msgPaymentPaid:         "تم استلام الدفع، شكراً لكِ! تفاصيل الحجز:\nرقم الطلب #%s\nالخدمات: %s\nالفرع: %s\nالتاريخ: %s\nالوقت: %s\nالأخصائية: %s\nبانتظارك!",
		msgPaymentPending:      "وجدت الطلب #%s لكن الدفع ما زال قيد التحقق. سأؤكد لكِ فور إتمامه.",
		msgPaymentNotFound:     "لم أجد طلباً حديثاً باسمك. إذا كان الحجز للتو، يرجى المحاولة بعد قليل.",
		msgPaymentCheckFailed:  "عذراً، لم أتمكن من التحقق من الدفع الآن. يرجى المحاولة بعد دقائق.",
		msgSlotChosen:          "ممتاز، تم اختيار %s.",
		msgSlotWithStaff:       "%s مع %s",
	},
}

// localize renders a template in lang, falling back to English.
func localize(lang string, key messageKey, args ...any) string {
	set, ok := templates[lang]
	if !ok {
		set = templates[LangEnglish]
	}
	tmpl, ok := set[key]
	if !ok {
		tmpl = templates[LangEnglish][key]
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}
