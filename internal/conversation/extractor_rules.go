package conversation

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/branch"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/catalog"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/nailit"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// words splits a message into lowercase word tokens.
func words(message string) []string {
	return strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func hasWord(tokens []string, candidates ...string) bool {
	for _, t := range tokens {
		for _, c := range candidates {
			if t == c {
				return true
			}
		}
	}
	return false
}

// containsArabic reports whether any Arabic candidate occurs in the normalized message.
func containsArabic(message string, candidates ...string) bool {
	norm := normalizeArabic(message)
	for _, c := range candidates {
		if strings.Contains(norm, normalizeArabic(c)) {
			return true
		}
	}
	return false
}

type locationRule struct {
	directory branchMatcher
}

func (r *locationRule) Name() string { return "location" }

func (r *locationRule) Apply(_ context.Context, message string, st *State) bool {
	if st.Data.LocationID != 0 {
		return false
	}
	b, ok := r.directory.Match(message)
	if !ok {
		return false
	}
	st.Data.LocationID = b.LocationID
	st.Data.LocationName = b.Name
	return true
}

var intentWords = []string{"want", "wanna", "book", "add", "also", "need", "like"}
var arabicIntentWords = []string{"ابي", "ابغى", "ابغي", "اريد", "احجز", "اضف", "ودي", "حابه", "حابة"}

type serviceRule struct {
	directory branchMatcher
	services  serviceFinder
	logger    *logging.Logger
}

func (r *serviceRule) Name() string { return "service" }

func (r *serviceRule) Apply(ctx context.Context, message string, st *State) bool {
	if len(st.Data.SelectedServices) > 0 && !hasIntent(message) {
		return false
	}
	categories := catalog.DetectCategories(message)
	if len(categories) == 0 {
		return false
	}
	locationID := st.Data.LocationID
	if locationID == 0 {
		locationID = r.directory.Default().LocationID
	}
	added := false
	for _, cat := range categories {
		rec, err := r.services.BestForCategory(ctx, cat, message, locationID)
		if err != nil {
			r.logger.Warn("service lookup failed", "error", err, "category", cat, "location_id", locationID)
			continue
		}
		if st.Data.HasService(rec.ItemID) {
			continue
		}
		st.Data.SelectedServices = append(st.Data.SelectedServices, selectionFromRecord(rec, cat))
		added = true
	}
	if added {
		st.Data.RecomputeTotal()
	}
	return added
}

func hasIntent(message string) bool {
	return hasWord(words(message), intentWords...) || containsArabic(message, arabicIntentWords...)
}

func selectionFromRecord(rec catalog.ServiceRecord, category string) SelectedService {
	return SelectedService{
		ItemID:          rec.ItemID,
		Name:            rec.Name,
		Price:           rec.Price,
		Quantity:        1,
		DurationMinutes: rec.DurationMinutes,
		Category:        category,
		IsSynthetic:     rec.IsSynthetic,
	}
}

var (
	explicitDatePattern = regexp.MustCompile(`\b(\d{1,2})[/.-](\d{1,2})(?:[/.-](\d{2,4}))?\b`)

	weekdayWords = map[string]time.Weekday{
		"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
		"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
	}
	arabicWeekdays = []struct {
		word string
		day  time.Weekday
	}{
		{"الاحد", time.Sunday}, {"الاثنين", time.Monday}, {"الثلاثاء", time.Tuesday}, {"الاربعاء", time.Wednesday},
		{"الخميس", time.Thursday}, {"الجمعه", time.Friday}, {"السبت", time.Saturday},
	}
)

type dateRule struct {
	now func() time.Time
}

func (r *dateRule) Name() string { return "date" }

func (r *dateRule) Apply(_ context.Context, message string, st *State) bool {
	if strings.TrimSpace(st.Data.AppointmentDate) != "" {
		return false
	}
	day, ok := resolveDate(message, r.now())
	if !ok {
		return false
	}
	st.Data.AppointmentDate = day.Format(nailit.DateLayout)
	return true
}

func resolveDate(message string, now time.Time) (time.Time, bool) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	tokens := words(message)

	switch {
	case hasWord(tokens, "today", "tonight") || containsArabic(message, "اليوم", "الحين"):
		return today, true
	case hasWord(tokens, "tomorrow", "tmrw", "tmr") || containsArabic(message, "غدا", "بكرة", "بكره", "باچر", "باجر"):
		return today.AddDate(0, 0, 1), true
	}
	if m := explicitDatePattern.FindStringSubmatch(message); m != nil {
		if d, ok := explicitDate(m, today); ok {
			return d, true
		}
	}
	for _, t := range tokens {
		if wd, ok := weekdayWords[t]; ok {
			return nextWeekday(today, wd), true
		}
	}
	norm := normalizeArabic(message)
	for _, w := range arabicWeekdays {
		if strings.Contains(norm, w.word) {
			return nextWeekday(today, w.day), true
		}
	}
	if hasWord(tokens, "next", "will", "later", "soon") || containsArabic(message, "سوف", "القادم", "الجاي") {
		return today.AddDate(0, 0, 1), true
	}
	return time.Time{}, false
}

func explicitDate(m []string, today time.Time) (time.Time, bool) {
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year := today.Year()
	explicitYear := m[3] != ""
	if explicitYear {
		year, _ = strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, today.Location())
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, false
	}
	if d.Before(today) {
		if explicitYear {
			return time.Time{}, false
		}
		d = d.AddDate(1, 0, 0)
	}
	return d, true
}

func nextWeekday(today time.Time, wd time.Weekday) time.Time {
	delta := (int(wd) - int(today.Weekday()) + 7) % 7
	return today.AddDate(0, 0, delta)
}

var (
	meridiemPattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?)(?:[^a-z0-9]|$)`)
	arabicMeridiem  = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(صباحا|صباحاً|صباح|الصبح|ص|مساء|مساءً|المسا|م)(?:\s|$|[.,!؟?])`)
	clock24Pattern  = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)

	periodHours = []struct {
		words  []string
		arabic []string
		clock  string
	}{
		{words: []string{"morning"}, arabic: []string{"صباحا", "الصبح", "الصباح"}, clock: "11:00"},
		{words: []string{"noon", "midday", "lunchtime"}, arabic: []string{"الظهر", "ظهرا"}, clock: "13:00"},
		{words: []string{"afternoon"}, arabic: []string{"العصر", "عصرا"}, clock: "15:00"},
		{words: []string{"evening"}, arabic: []string{"مساء", "المسا", "المساء"}, clock: "18:00"},
		{words: []string{"night", "tonight"}, arabic: []string{"الليل", "بالليل"}, clock: "20:00"},
	}
)

type timeRule struct{}

func (r *timeRule) Name() string { return "time" }

func (r *timeRule) Apply(_ context.Context, message string, st *State) bool {
	if st.Data.PreferredTime != "" {
		return false
	}
	clock, ok := resolveTime(message)
	if !ok {
		return false
	}
	st.Data.PreferredTime = clock
	return true
}

func resolveTime(message string) (string, bool) {
	if m := meridiemPattern.FindStringSubmatch(message); m != nil {
		minute := m[2]
		if minute == "" {
			minute = "00"
		}
		if mins, err := branch.ParseClock(m[1] + ":" + minute + " " + strings.ReplaceAll(m[3], ".", "")); err == nil {
			return branch.FormatClock(mins), true
		}
	}
	if m := arabicMeridiem.FindStringSubmatch(message); m != nil {
		minute := m[2]
		if minute == "" {
			minute = "00"
		}
		suffix := "pm"
		if strings.HasPrefix(m[3], "ص") || m[3] == "الصبح" {
			suffix = "am"
		}
		if mins, err := branch.ParseClock(m[1] + ":" + minute + " " + suffix); err == nil {
			return branch.FormatClock(mins), true
		}
	}
	if m := clock24Pattern.FindStringSubmatch(message); m != nil {
		if mins, err := branch.ParseClock(m[1] + ":" + m[2]); err == nil {
			return branch.FormatClock(mins), true
		}
	}
	tokens := words(message)
	for _, p := range periodHours {
		if hasWord(tokens, p.words...) || containsArabic(message, p.arabic...) {
			return p.clock, true
		}
	}
	return "", false
}

var (
	// namePatterns match self-introductions. Patterns marked proper only accept
	// a capitalized or Arabic first word ("I'm Noura", not "I'm pregnant").
	namePatterns = []struct {
		re     *regexp.Regexp
		proper bool
	}{
		{re: regexp.MustCompile(`(?i)\bmy name is\s+(.+)`)},
		{re: regexp.MustCompile(`(?i)\bmy name's\s+(.+)`)},
		{re: regexp.MustCompile(`(?i)\bcall me\s+(.+)`)},
		{re: regexp.MustCompile(`(?i)\bname\s*(?:is\s|:|-)\s*(.+)`)},
		{re: regexp.MustCompile(`\b[Ii]'?m\s+(.+)`), proper: true},
		{re: regexp.MustCompile(`\b[Ii] am\s+(.+)`), proper: true},
		{re: regexp.MustCompile(`اسمي\s+(.+)`)},
	}
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// nameStopWords end or reject a captured name.
	nameStopWords = map[string]struct{}{
		"book": {}, "booking": {}, "call": {}, "want": {}, "wanting": {}, "need": {}, "looking": {}, "interested": {},
		"here": {}, "fine": {}, "good": {}, "ok": {}, "okay": {}, "ready": {}, "available": {}, "free": {}, "sure": {},
		"not": {}, "going": {}, "trying": {}, "happy": {}, "glad": {}, "from": {}, "in": {}, "at": {}, "a": {}, "an": {},
		"the": {}, "with": {}, "asking": {}, "writing": {}, "coming": {}, "thinking": {}, "so": {}, "very": {}, "just": {},
		"also": {}, "still": {}, "done": {}, "paid": {}, "and": {}, "my": {}, "email": {}, "mail": {}, "is": {}, "me": {},
		"name": {}, "hi": {}, "hello": {}, "hey": {}, "salam": {}, "please": {}, "thanks": {}, "thank": {}, "yes": {},
		"no": {}, "to": {}, "for": {}, "on": {}, "tomorrow": {}, "today": {}, "confirm": {}, "cancel": {}, "e": {},
		"sorry": {}, "new": {}, "back": {}, "late": {}, "busy": {}, "excited": {}, "wondering": {}, "unable": {},
		"able": {}, "planning": {}, "checking": {}, "waiting": {}, "well": {}, "great": {}, "of": {}, "about": {},
		"this": {}, "that": {}, "there": {}, "what": {}, "where": {}, "when": {}, "how": {}, "pregnant": {},
		"و": {}, "ايميلي": {}, "بريدي": {}, "ابي": {}, "اريد": {},
	}
)

const maxNameWords = 3

type nameRule struct{}

func (r *nameRule) Name() string { return "name" }

func (r *nameRule) Apply(_ context.Context, message string, st *State) bool {
	if !isPlaceholderName(st.Data.CustomerName) {
		return false
	}
	name, ok := extractName(message)
	if !ok {
		return false
	}
	st.Data.CustomerName = name
	return true
}

func extractName(message string) (string, bool) {
	for _, p := range namePatterns {
		m := p.re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		if p.proper && !startsProperName(m[1]) {
			continue
		}
		if name, ok := leadingName(m[1]); ok {
			return name, true
		}
	}
	if loc := emailPattern.FindStringIndex(message); loc != nil {
		if name, ok := trailingName(message[:loc[0]]); ok {
			return name, true
		}
	}
	return "", false
}

// leadingName takes up to three name-like words from the start of text.
func leadingName(text string) (string, bool) {
	var parts []string
	for _, raw := range strings.Fields(text) {
		word, stop := trimNameWord(raw)
		if word == "" || !isNameWord(word) {
			break
		}
		if _, bad := nameStopWords[strings.ToLower(word)]; bad {
			break
		}
		parts = append(parts, word)
		if stop || len(parts) == maxNameWords {
			break
		}
	}
	return finishName(parts)
}

// trailingName takes up to three name-like words immediately before an email address.
func trailingName(text string) (string, bool) {
	fields := strings.Fields(text)
	var parts []string
	for i := len(fields) - 1; i >= 0 && len(parts) < maxNameWords; i-- {
		word, stop := trimNameWord(fields[i])
		if stop && len(parts) > 0 {
			break
		}
		if word == "" || !isNameWord(word) {
			break
		}
		if _, bad := nameStopWords[strings.ToLower(word)]; bad {
			break
		}
		parts = append([]string{word}, parts...)
	}
	return finishName(parts)
}

func finishName(parts []string) (string, bool) {
	if len(parts) == 0 {
		return "", false
	}
	// Casers are stateful, so one is built per call.
	name := cases.Title(language.Und).String(strings.ToLower(strings.Join(parts, " ")))
	if isPlaceholderName(name) {
		return "", false
	}
	return name, true
}

// trimNameWord strips punctuation and reports whether the word ended a clause.
func trimNameWord(raw string) (string, bool) {
	word := strings.TrimRightFunc(raw, func(r rune) bool {
		return unicode.IsPunct(r) && r != '\'' && r != '-'
	})
	return strings.TrimLeftFunc(word, unicode.IsPunct), word != raw
}

func startsProperName(text string) bool {
	for _, r := range strings.TrimSpace(text) {
		return unicode.IsUpper(r) || unicode.Is(unicode.Arabic, r)
	}
	return false
}

func isNameWord(word string) bool {
	for _, r := range word {
		if !unicode.IsLetter(r) && r != '\'' && r != '-' {
			return false
		}
	}
	return true
}

type emailRule struct{}

func (r *emailRule) Name() string { return "email" }

func (r *emailRule) Apply(_ context.Context, message string, st *State) bool {
	if !isPlaceholderEmail(st.Data.CustomerEmail) {
		return false
	}
	email := emailPattern.FindString(message)
	if email == "" {
		return false
	}
	st.Data.CustomerEmail = strings.ToLower(strings.TrimRight(email, "."))
	return true
}

type paymentRule struct {
	directory branchMatcher
}

func (r *paymentRule) Name() string { return "payment" }

func (r *paymentRule) Apply(_ context.Context, _ string, st *State) bool {
	if st.Data.PaymentTypeID != 0 {
		return false
	}
	p := r.directory.DefaultPayment()
	if p.TypeID == 0 {
		return false
	}
	st.Data.PaymentTypeID = p.TypeID
	st.Data.PaymentTypeName = p.Name
	return true
}
