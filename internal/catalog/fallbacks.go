package catalog

// fallbackServices are offered when the catalog has nothing real for a category.
// They carry negative ids and must be re-resolved before an order is submitted.
var fallbackServices = map[string]ServiceRecord{
	CategoryNail:   {ItemID: -1, Name: "Classic Manicure", DurationMinutes: 45, Categories: []string{CategoryNail}, IsSynthetic: true},
	CategoryHair:   {ItemID: -2, Name: "Hair Styling", DurationMinutes: 60, Categories: []string{CategoryHair}, IsSynthetic: true},
	CategoryFacial: {ItemID: -3, Name: "Classic Facial", DurationMinutes: 60, Categories: []string{CategoryFacial}, IsSynthetic: true},
	CategoryBody:   {ItemID: -4, Name: "Relaxing Massage", DurationMinutes: 60, Categories: []string{CategoryBody}, IsSynthetic: true},
}

// Fallback returns the synthetic suggestion for a category.
func Fallback(category string) (ServiceRecord, bool) {
	rec, ok := fallbackServices[category]
	return rec, ok
}
