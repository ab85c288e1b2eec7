package models

import "strings"

// Intent is the primary classification of an incoming question.
type Intent string

const (
	IntentSales     Intent = "sales"
	IntentSupport   Intent = "support"
	IntentEmergency Intent = "emergency"
	IntentSchedule  Intent = "schedule"
)

// IsValid checks if the intent is one of the four canonical labels.
func (i Intent) IsValid() bool {
	switch i {
	case IntentSales, IntentSupport, IntentEmergency, IntentSchedule:
		return true
	default:
		return false
	}
}

// NormalizeIntent lowercases a router label and maps anything outside the
// canonical set to support.
func NormalizeIntent(label string) Intent {
	i := Intent(strings.ToLower(strings.TrimSpace(label)))
	if !i.IsValid() {
		return IntentSupport
	}
	return i
}

// Classification is the parsed router output.
type Classification struct {
	Intent     Intent   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Keywords   []string `json:"keywords,omitempty"`
	Reasoning  string   `json:"reasoning,omitempty"`
}
