package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/branch"
)

const policyHistoryWindow = 6

const basePrompt = `You are the WhatsApp booking assistant for NailIt, a salon chain in Kuwait.
Help the customer choose services, a branch, a date and a time, then collect their full name and email so the booking can be placed.

Rules:
- Ask for one missing detail at a time. Never ask for something already collected.
- Be warm and patient. Acknowledge feelings and never rush the customer.
- Never invent services, prices, branches or opening hours. Use only the facts below.
- Customers may change their mind. Accept corrections gracefully.
- Before booking, recap the services, branch, date, time, name and email and ask the customer to confirm.
- Reply in the customer's language (%s). Keep replies short enough for WhatsApp.

Respond with a single JSON object and nothing else:
{"reply": "<message to the customer>", "readyToBook": <true only when every detail is collected and the customer has just confirmed the recap>}`

type promptSnapshot struct {
	Phase         Phase    `json:"phase"`
	Services      []string `json:"services,omitempty"`
	Branch        string   `json:"branch,omitempty"`
	Date          string   `json:"date,omitempty"`
	Time          string   `json:"time,omitempty"`
	Specialist    string   `json:"specialist,omitempty"`
	Name          string   `json:"name,omitempty"`
	Email         string   `json:"email,omitempty"`
	PaymentMethod string   `json:"payment_method,omitempty"`
	TotalKWD      float64  `json:"total_kwd,omitempty"`
	Missing       []string `json:"missing,omitempty"`
	SuggestedOnly []string `json:"suggested_only,omitempty"`
	OfferedSlots  []string `json:"offered_slots,omitempty"`
}

// buildSystemPrompt renders the policy instructions plus a snapshot of what is collected.
func buildSystemPrompt(st *State, branches []branch.Branch, now time.Time) []string {
	lang := "English"
	if st.Language == LangArabic {
		lang = "Arabic"
	}

	snap := promptSnapshot{
		Phase:         st.Phase,
		Services:      st.Data.ServiceNames(),
		Branch:        st.Data.LocationName,
		Date:          st.Data.AppointmentDate,
		Specialist:    st.Data.StaffName,
		Name:          st.Data.CustomerName,
		Email:         st.Data.CustomerEmail,
		PaymentMethod: st.Data.PaymentTypeName,
		TotalKWD:      st.Data.TotalAmount,
		Missing:       st.MissingFields(),
	}
	if st.Data.PreferredTime != "" {
		snap.Time = branch.DisplayClock(st.Data.PreferredTime)
	}
	for _, s := range st.Data.SelectedServices {
		if s.IsSynthetic {
			snap.SuggestedOnly = append(snap.SuggestedOnly, s.Name)
		}
	}
	for i, slot := range st.Data.AvailableTimeSlots {
		snap.OfferedSlots = append(snap.OfferedSlots, fmt.Sprintf("%d. %s", i+1, slot.Text(LangEnglish)))
	}
	snapJSON, _ := json.MarshalIndent(snap, "", "  ")

	var facts strings.Builder
	fmt.Fprintf(&facts, "Today is %s (%s).\n", now.Format("Monday 02-01-2006"), now.Location())
	facts.WriteString("Branches:\n")
	for _, b := range branches {
		hours := b.HoursText()
		if hours == "" {
			hours = "hours unknown"
		}
		fmt.Fprintf(&facts, "- %s (%s)\n", b.Name, hours)
	}
	if len(snap.SuggestedOnly) > 0 {
		facts.WriteString("Services under suggested_only are general suggestions, not confirmed menu items. Ask the customer to pick a specific service.\n")
	}

	return []string{
		fmt.Sprintf(basePrompt, lang),
		facts.String(),
		"Collected booking details:\n" + string(snapJSON),
	}
}

// recentHistory returns the last policyHistoryWindow non-system messages.
func recentHistory(history []ChatMessage) []ChatMessage {
	filtered := make([]ChatMessage, 0, len(history))
	for _, m := range history {
		if m.Role == ChatRoleSystem || strings.TrimSpace(m.Content) == "" {
			continue
		}
		filtered = append(filtered, m)
	}
	if len(filtered) > policyHistoryWindow {
		filtered = filtered[len(filtered)-policyHistoryWindow:]
	}
	return filtered
}

type modelReply struct {
	Reply       string `json:"reply"`
	ReadyToBook bool   `json:"readyToBook"`
}

// parseModelReply decodes the JSON contract. Anything else degrades to the raw
// text with readyToBook false.
func parseModelReply(raw string) modelReply {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		var out modelReply
		if err := json.Unmarshal([]byte(text[start:end+1]), &out); err == nil && strings.TrimSpace(out.Reply) != "" {
			out.Reply = strings.TrimSpace(out.Reply)
			return out
		}
	}
	return modelReply{Reply: strings.TrimSpace(raw)}
}
