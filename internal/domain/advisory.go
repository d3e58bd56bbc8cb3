package domain

// Urgency tiers for advisories, lowest first.
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// Advisory is one short recommendation shown next to a locality's snapshot.
type Advisory struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	Urgency string `json:"urgency"`
	Focus   string `json:"focus"`
}

// ValidUrgency reports whether u is a known urgency tier.
func ValidUrgency(u string) bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	default:
		return false
	}
}

// FallbackAdvisories is the static list substituted whenever generated
// advisories are unavailable. It always has three entries.
func FallbackAdvisories() []Advisory {
	return []Advisory{
		{
			Title:   "Stay hydrated",
			Body:    "Drink water regularly even before you feel thirsty, and limit caffeine and alcohol during the hottest hours.",
			Urgency: UrgencyHigh,
			Focus:   "health",
		},
		{
			Title:   "Avoid midday sun",
			Body:    "Schedule outdoor work and travel before 10 AM or after 4 PM, and rest in shaded or air-conditioned areas.",
			Urgency: UrgencyMedium,
			Focus:   "activity",
		},
		{
			Title:   "Check on vulnerable neighbors",
			Body:    "Look in on older adults, young children, and people with chronic illness, and know the nearest cooling center.",
			Urgency: UrgencyMedium,
			Focus:   "community",
		},
	}
}
