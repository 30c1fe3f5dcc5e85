package conversation

import (
	"fmt"
	"strings"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/branch"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/nailit"
)

// The POS numbers half-hour time frames from 09:00 (id 1).
const (
	firstSlotMinutes = 9 * 60
	slotMinutes      = 30
	lastSlotID       = 30 // 23:30
	defaultStartTime = "15:00"
	maxAlternatives  = 5
)

// slotID maps "HH:MM" onto a POS time frame id, rounding down to the half hour.
func slotID(clock string) (int, error) {
	minutes, err := branch.ParseClock(clock)
	if err != nil {
		return 0, err
	}
	if minutes < firstSlotMinutes {
		return 0, fmt.Errorf("conversation: %s is before the first bookable slot", clock)
	}
	id := (minutes-firstSlotMinutes)/slotMinutes + 1
	if id > lastSlotID {
		return 0, fmt.Errorf("conversation: %s is after the last bookable slot", clock)
	}
	return id, nil
}

// slotClock is the inverse of slotID.
func slotClock(id int) string {
	return branch.FormatClock(firstSlotMinutes + (id-1)*slotMinutes)
}

// slotRange returns the consecutive frame ids a service of the given length occupies.
func slotRange(start, durationMinutes int) []int {
	count := (durationMinutes + slotMinutes - 1) / slotMinutes
	if count < 1 {
		count = 1
	}
	ids := make([]int, 0, count)
	for i := 0; i < count && start+i <= lastSlotID; i++ {
		ids = append(ids, start+i)
	}
	return ids
}

// orderLine converts a selection into a POS order line.
func orderLine(sel SelectedService, staffID int, frames []int, date string) nailit.OrderItem {
	qty := sel.Quantity
	if qty <= 0 {
		qty = 1
	}
	return nailit.OrderItem{
		ProductID:       sel.ItemID,
		ProductName:     sel.Name,
		Quantity:        qty,
		Rate:            sel.Price,
		Amount:          sel.Price * float64(qty),
		StaffID:         staffID,
		TimeFrameIDs:    frames,
		AppointmentDate: date,
	}
}

// slotOptions flattens staff availability into at most limit offers, earliest first per staff.
func slotOptions(staff []nailit.StaffAvailability, limit int) []TimeSlotOption {
	var out []TimeSlotOption
	for _, s := range staff {
		for _, tf := range s.TimeFrames {
			if len(out) >= limit {
				return out
			}
			start := slotClock(tf.FromSlotID)
			if m, err := branch.ParseClock(tf.FromTime); err == nil {
				start = branch.FormatClock(m)
			}
			out = append(out, TimeSlotOption{
				StaffID:    s.StaffID,
				StaffName:  s.Name,
				FromSlotID: tf.FromSlotID,
				ToSlotID:   tf.ToSlotID,
				Start:      start,
			})
		}
	}
	return out
}

// staffFor picks the first staff member whose frames include slot, or 0 for "any".
func staffFor(staff []nailit.StaffAvailability, slot int) (int, string) {
	for _, s := range staff {
		for _, tf := range s.TimeFrames {
			if slot >= tf.FromSlotID && slot <= max(tf.ToSlotID, tf.FromSlotID) {
				return s.StaffID, s.Name
			}
		}
	}
	return 0, ""
}

func numberedSlots(lang string, slots []TimeSlotOption) string {
	lines := make([]string, len(slots))
	for i, s := range slots {
		lines[i] = fmt.Sprintf("%d. %s", i+1, s.Text(lang))
	}
	return strings.Join(lines, "\n")
}
