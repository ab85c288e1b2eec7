package agent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/conversia-ai/conversia/pkg/config"
	"github.com/conversia-ai/conversia/pkg/models"
)

// DateLayout is the canonical wire format for dates.
const DateLayout = "02-01-2006"

var (
	dateRe  = regexp.MustCompile(`\b(\d{1,2})[-/](\d{1,2})[-/](\d{4})\b`)
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`(?:\+?\d[\d\s\-]{6,14}\d)`)
	idRe    = regexp.MustCompile(`(?i)(?:c[ée]dula|cc|dni|documento)\s*:?\s*(\d{6,12})`)
	nameRe  = regexp.MustCompile(`(?i)(?:me llamo|mi nombre es|soy)\s+([\p{L}]+(?:\s+[\p{L}]+)?)`)
)

// BookingInfo is what extract_info recovers from the conversation.
type BookingInfo struct {
	Date      string // DD-MM-YYYY, empty if not found
	Treatment string
	Patient   models.UserInfo
}

// ExtractDate finds a date in free text. Accepted forms: DD-MM-YYYY,
// DD/MM/YYYY, and the relative words hoy, mañana and pasado mañana.
// The canonical DD-MM-YYYY form is returned.
func ExtractDate(text string, now time.Time) (string, bool) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "pasado mañana") || strings.Contains(lower, "pasado manana"):
		return now.AddDate(0, 0, 2).Format(DateLayout), true
	case strings.Contains(lower, "mañana") || strings.Contains(lower, "manana"):
		return now.AddDate(0, 0, 1).Format(DateLayout), true
	case strings.Contains(lower, "hoy"):
		return now.Format(DateLayout), true
	}

	m := dateRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	canonical := fmt.Sprintf("%02d-%02d-%s", day, month, m[3])
	if _, err := time.Parse(DateLayout, canonical); err != nil {
		return "", false
	}
	return canonical, true
}

// ValidateDate checks that a canonical date parses and is today or later.
func ValidateDate(date string, now time.Time) bool {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return !d.Before(today)
}

// ExtractTreatment matches the question against the tenant's treatment set,
// longest name first so "limpieza facial profunda" wins over "limpieza".
func ExtractTreatment(text string, tenant *config.TenantConfig) (string, bool) {
	lower := strings.ToLower(text)
	best := ""
	for name := range tenant.TreatmentDurations {
		if strings.Contains(lower, strings.ToLower(name)) && len(name) > len(best) {
			best = name
		}
	}
	return best, best != ""
}

// ExtractPatient pulls patient fields from the question and history.
func ExtractPatient(question string, history []models.Message) models.UserInfo {
	var info models.UserInfo
	// Scan newest text first so current-question values win.
	texts := []string{question}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == models.RoleUser {
			texts = append(texts, history[i].Content)
		}
	}
	for _, text := range texts {
		if info.Name == "" {
			if m := nameRe.FindStringSubmatch(text); m != nil {
				info.Name = strings.TrimSpace(m[1])
			}
		}
		if info.Email == "" {
			info.Email = emailRe.FindString(text)
		}
		if info.NationalID == "" {
			if m := idRe.FindStringSubmatch(text); m != nil {
				info.NationalID = m[1]
			}
		}
		if info.Phone == "" {
			// The national id is also a digit run; skip it.
			for _, p := range phoneRe.FindAllString(text, -1) {
				if p = strings.TrimSpace(p); p != info.NationalID {
					info.Phone = p
					break
				}
			}
		}
	}
	return info
}

// priceQueryKeywords flags questions that ask for prices or general
// information rather than an actual booking.
var priceQueryKeywords = []string{
	"cuánto cuesta", "cuanto cuesta", "precio", "costo", "valor",
	"cuánto vale", "cuanto vale", "información", "informacion",
}

// IsPriceQuery reports whether the question is a pure price or information
// query that should not trigger an availability check.
func IsPriceQuery(question string) bool {
	lower := strings.ToLower(question)
	for _, kw := range priceQueryKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
