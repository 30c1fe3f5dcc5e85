package conversation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_Pipeline(t *testing.T) {
	e := testExtractor(testDirectory())
	st := NewState("c1", testNow)

	filled := e.Extract(context.Background(), "I want a French Manicure at Zahra Complex tomorrow at 5pm, my name is sara ahmed sara@example.org", st)

	assert.ElementsMatch(t, []string{"location", "service", "date", "time", "name", "email", "payment"}, filled)
	assert.Equal(t, 2, st.Data.LocationID)
	assert.Equal(t, "Zahra Complex", st.Data.LocationName)
	require.Len(t, st.Data.SelectedServices, 1)
	assert.Equal(t, 101, st.Data.SelectedServices[0].ItemID)
	assert.InDelta(t, 15.0, st.Data.TotalAmount, 0.001)
	assert.Equal(t, "11-03-2025", st.Data.AppointmentDate)
	assert.Equal(t, "17:00", st.Data.PreferredTime)
	assert.Equal(t, "Sara Ahmed", st.Data.CustomerName)
	assert.Equal(t, "sara@example.org", st.Data.CustomerEmail)
	assert.Equal(t, 2, st.Data.PaymentTypeID)
}

func TestExtractor_NeverOverwritesRealValues(t *testing.T) {
	e := testExtractor(testDirectory())
	st := bookableState("c1")

	e.Extract(context.Background(), "my name is Layla, layla@example.org, at Zahra Complex on friday", st)

	assert.Equal(t, "Sara Ahmed", st.Data.CustomerName)
	assert.Equal(t, "sara@example.org", st.Data.CustomerEmail)
	assert.Equal(t, 1, st.Data.LocationID)
	assert.Equal(t, "11-03-2025", st.Data.AppointmentDate)
}

func TestExtractor_PlaceholderValuesAreReplaced(t *testing.T) {
	e := testExtractor(testDirectory())
	st := NewState("c1", testNow)
	st.Data.CustomerName = "Customer"
	st.Data.CustomerEmail = "customer@example.com"

	e.Extract(context.Background(), "Noor Hassan noor@example.org", st)

	assert.Equal(t, "Noor Hassan", st.Data.CustomerName)
	assert.Equal(t, "noor@example.org", st.Data.CustomerEmail)
}

func TestExtractor_AdditionalServiceNeedsIntent(t *testing.T) {
	e := testExtractor(testDirectory())
	st := NewState("c1", testNow)

	e.Extract(context.Background(), "a manicure please", st)
	require.Len(t, st.Data.SelectedServices, 1)

	e.Extract(context.Background(), "how long does a blow dry take?", st)
	assert.Len(t, st.Data.SelectedServices, 1)

	e.Extract(context.Background(), "I also want a blow dry", st)
	require.Len(t, st.Data.SelectedServices, 2)
	assert.Equal(t, "Blow Dry", st.Data.SelectedServices[1].Name)
	assert.InDelta(t, 25.0, st.Data.TotalAmount, 0.001)
}

func TestExtractor_SyntheticSuggestion(t *testing.T) {
	e := testExtractor(testDirectory())
	st := NewState("c1", testNow)

	e.Extract(context.Background(), "I'd like a facial", st)

	require.Len(t, st.Data.SelectedServices, 1)
	sel := st.Data.SelectedServices[0]
	assert.True(t, sel.IsSynthetic)
	assert.Less(t, sel.ItemID, 0)
	assert.Zero(t, st.Data.RealServices())
}

func TestResolveDate(t *testing.T) {
	// testNow is Monday 10-03-2025
	tests := []struct {
		msg  string
		want string
		ok   bool
	}{
		{"today please", "10-03-2025", true},
		{"tomorrow", "11-03-2025", true},
		{"بكرة", "11-03-2025", true},
		{"on thursday", "13-03-2025", true},
		{"يوم الخميس", "13-03-2025", true},
		{"monday", "10-03-2025", true},
		{"15/03", "15-03-2025", true},
		{"1/2", "01-02-2026", true},
		{"31/02", "", false},
		{"next week sometime", "11-03-2025", true},
		{"hello", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got, ok := resolveDate(tt.msg, testNow)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got.Format("02-01-2006"))
			}
		})
	}
}

func TestResolveTime(t *testing.T) {
	tests := []struct {
		msg  string
		want string
		ok   bool
	}{
		{"8:00 AM", "08:00", true},
		{"at 5pm", "17:00", true},
		{"12 pm", "12:00", true},
		{"18:30", "18:30", true},
		{"الساعة 4 مساء", "16:00", true},
		{"10 ص", "10:00", true},
		{"in the evening", "18:00", true},
		{"morning works", "11:00", true},
		{"whenever", "", false},
		{"5 amazing", "", false},
		{"2 pmc", "", false},
		{"7 p.m.", "19:00", true},
		{"is 6pm, ok?", "18:00", true},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got, ok := resolveTime(tt.msg)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractName(t *testing.T) {
	tests := []struct {
		msg  string
		want string
		ok   bool
	}{
		{"My name is Sarah Ahmed", "Sarah Ahmed", true},
		{"call me fatma.", "Fatma", true},
		{"I'm Noura Al Sabah, thanks", "Noura Al Sabah", true},
		{"I'm interested in a manicure", "", false},
		{"i am looking for a pedicure", "", false},
		{"اسمي مريم", "مريم", true},
		{"Hessa Ali hessa@example.org", "Hessa Ali", true},
		{"my email is x@example.org", "", false},
		{"What is the name of the salon in Salmiya?", "", false},
		{"I'm pregnant, is a pedicure safe?", "", false},
		{"I am Of course", "", false},
		{"Name: Dana Khalid", "Dana Khalid", true},
		{"I am Layla", "Layla", true},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got, ok := extractName(tt.msg)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, LangArabic, DetectLanguage("أريد مانيكير", LangEnglish))
	assert.Equal(t, LangEnglish, DetectLanguage("I want a manicure", LangArabic))
	assert.Equal(t, LangArabic, DetectLanguage("2", LangArabic), "digits keep the previous language")
	assert.Equal(t, LangEnglish, DetectLanguage("👍", ""))
}

func TestBookingTriggers(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"Yes, confirm my booking", "affirm_and_confirm"},
		{"yes go ahead", "affirm_and_confirm"},
		{"ok go ahead", ""},
		{"sure, confirm", ""},
		{"I'm not sure yet, I'll confirm tomorrow", ""},
		{"No that's not right, don't confirm anything", ""},
		{"ok, I need to check with my husband before I confirm", ""},
		{"yes but wait, don't confirm yet", ""},
		{"don't book it", ""},
		{"نعم، لا تأكد الحجز بعد", ""},
		{"please book it", "please_book"},
		{"نعم أكد الحجز", "arabic_confirm"},
		{"احجزي لي", "arabic_confirm"},
		{"yes", ""},
		{"can you confirm the price?", ""},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got, _ := matchBookingTrigger(triggerInput{message: tt.msg})
			assert.Equal(t, tt.want, got)
		})
	}

	got, ok := matchBookingTrigger(triggerInput{message: "2", slotChosen: true})
	assert.True(t, ok)
	assert.Equal(t, "slot_selected", got)
}

func TestIntents(t *testing.T) {
	assert.True(t, isPaymentIntent("Payment done"))
	assert.True(t, isPaymentIntent("I made the payment"))
	assert.False(t, isPaymentIntent("I paid"))
	assert.False(t, isPaymentIntent("I already paid for my nails last week, can I book a pedicure?"))
	assert.True(t, isPaymentIntent("تم الدفع"))
	assert.False(t, isPaymentIntent("how do I make a payment?"))

	assert.True(t, isCancelIntent("cancel"))
	assert.True(t, isCancelIntent("let's start over"))
	assert.True(t, isCancelIntent("الغي الحجز"))
	assert.False(t, isCancelIntent("can I reschedule?"))
}

func TestParseModelReply(t *testing.T) {
	got := parseModelReply("```json\n{\"reply\": \"Booked!\", \"readyToBook\": true}\n```")
	assert.Equal(t, modelReply{Reply: "Booked!", ReadyToBook: true}, got)

	got = parseModelReply(`Sure thing {"reply":"Which branch?","readyToBook":false}`)
	assert.Equal(t, "Which branch?", got.Reply)

	got = parseModelReply(`{"reply":"","readyToBook":true}`)
	assert.False(t, got.ReadyToBook, "empty reply falls back to raw text")

	got = parseModelReply("plain text")
	assert.Equal(t, modelReply{Reply: "plain text"}, got)
}

func TestBuildSystemPrompt(t *testing.T) {
	st := bookableState("c1")
	st.Language = LangArabic
	st.Data.SelectedServices = append(st.Data.SelectedServices, SelectedService{ItemID: -3, Name: "Classic Facial", IsSynthetic: true})

	parts := buildSystemPrompt(st, testDirectory().Branches(), testNow)
	require.Len(t, parts, 3)
	assert.Contains(t, parts[0], "(Arabic)")
	assert.Contains(t, parts[1], "Monday 10-03-2025")
	assert.Contains(t, parts[1], "Zahra Complex (11:00 AM - 11:00 PM)")
	assert.Contains(t, parts[1], "suggested_only")
	assert.Contains(t, parts[2], `"time": "3:00 PM"`)
	assert.True(t, strings.Contains(parts[2], "Classic Facial"))
}

func TestRecentHistoryWindow(t *testing.T) {
	var history []ChatMessage
	history = append(history, ChatMessage{Role: ChatRoleSystem, Content: "ignored"})
	for i := 0; i < 10; i++ {
		history = append(history, ChatMessage{Role: ChatRoleUser, Content: "m"})
	}
	history = append(history, ChatMessage{Role: ChatRoleAssistant, Content: " "})

	got := recentHistory(history)
	assert.Len(t, got, policyHistoryWindow)
	for _, m := range got {
		assert.NotEqual(t, ChatRoleSystem, m.Role)
	}
}
