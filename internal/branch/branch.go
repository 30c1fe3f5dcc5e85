// Package branch holds the salon branch directory and business-hours rules.
package branch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/nailit"
)

// Branch is a salon location with its daily opening window.
type Branch struct {
	LocationID int    `json:"location_id"`
	Name       string `json:"name"`
	Address    string `json:"address,omitempty"`
	Open       string `json:"open"`  // "11:00" in 24-hour format
	Close      string `json:"close"` // "22:00" in 24-hour format
}

// PaymentOption is a payment method accepted by the POS.
type PaymentOption struct {
	TypeID int    `json:"type_id"`
	Name   string `json:"name"`
	Code   string `json:"code,omitempty"`
}

// OutsideHoursError reports a requested time outside a branch's opening window.
type OutsideHoursError struct {
	Branch    string
	Requested string
	Hours     string
}

func (e *OutsideHoursError) Error() string {
	return fmt.Sprintf("branch: %s is outside %s hours (%s)", e.Requested, e.Branch, e.Hours)
}

var clockPattern = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)?\s*$`)

// ParseClock converts "11:00 AM", "9pm" or "23:00" into minutes after midnight.
func ParseClock(value string) (int, error) {
	m := clockPattern.FindStringSubmatch(value)
	if m == nil {
		return 0, fmt.Errorf("branch: unrecognized time %q", value)
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if minute > 59 {
		return 0, fmt.Errorf("branch: unrecognized time %q", value)
	}
	switch strings.ReplaceAll(strings.ToLower(m[3]), ".", "") {
	case "am":
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("branch: unrecognized time %q", value)
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("branch: unrecognized time %q", value)
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour > 23 {
			return 0, fmt.Errorf("branch: unrecognized time %q", value)
		}
	}
	return hour*60 + minute, nil
}

// FormatClock renders minutes after midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// DisplayClock renders "HH:MM" as "3:00 PM". Unparseable input is returned unchanged.
func DisplayClock(hhmm string) string {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return hhmm
	}
	return t.Format("3:04 PM")
}

// FromLocation converts a POS location into a Branch, normalizing its opening times.
func FromLocation(loc nailit.Location) Branch {
	b := Branch{LocationID: loc.LocationID, Name: strings.TrimSpace(loc.Name), Address: loc.Address}
	if m, err := ParseClock(loc.FromTime); err == nil {
		b.Open = FormatClock(m)
	}
	if m, err := ParseClock(loc.ToTime); err == nil {
		b.Close = FormatClock(m)
	}
	return b
}

// HasHours reports whether the opening window is known.
func (b Branch) HasHours() bool {
	return b.Open != "" && b.Close != ""
}

// HoursText describes the opening window, e.g. "11:00 AM - 10:00 PM".
func (b Branch) HoursText() string {
	if !b.HasHours() {
		return ""
	}
	return DisplayClock(b.Open) + " - " + DisplayClock(b.Close)
}

// IsOpenAt reports whether the branch accepts appointments at the given time of day.
// Branches without known hours accept any time.
func (b Branch) IsOpenAt(clock string) (bool, error) {
	requested, err := ParseClock(clock)
	if err != nil {
		return false, err
	}
	if !b.HasHours() {
		return true, nil
	}
	open, err := ParseClock(b.Open)
	if err != nil {
		return true, nil
	}
	closing, err := ParseClock(b.Close)
	if err != nil {
		return true, nil
	}
	if closing <= open {
		// closes after midnight
		return requested >= open || requested < closing, nil
	}
	return requested >= open && requested < closing, nil
}

// ValidateTime returns an *OutsideHoursError when clock falls outside opening hours.
func (b Branch) ValidateTime(clock string) error {
	ok, err := b.IsOpenAt(clock)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return &OutsideHoursError{Branch: b.Name, Requested: clock, Hours: b.HoursText()}
}
