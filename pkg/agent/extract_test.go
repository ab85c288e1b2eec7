package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conversia-ai/conversia/pkg/config"
	"github.com/conversia-ai/conversia/pkg/models"
)

var testNow = time.Date(2024, 12, 10, 15, 0, 0, 0, time.UTC)

func TestExtractDate(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
		found    bool
	}{
		{"canonical format", "quiero cita el 15-12-2024", "15-12-2024", true},
		{"slash format", "el 15/12/2024 por favor", "15-12-2024", true},
		{"single digit day", "el 5/1/2025", "05-01-2025", true},
		{"relative today", "quiero una cita hoy", "10-12-2024", true},
		{"relative tomorrow", "Quiero agendar para mañana", "11-12-2024", true},
		{"relative day after tomorrow", "pasado mañana estaría bien", "12-12-2024", true},
		{"no date", "quiero información del botox", "", false},
		{"invalid date", "el 45-13-2024", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date, ok := ExtractDate(tt.text, testNow)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, date)
		})
	}
}

func TestValidateDate(t *testing.T) {
	assert.True(t, ValidateDate("10-12-2024", testNow), "today is valid")
	assert.True(t, ValidateDate("11-12-2024", testNow), "tomorrow is valid")
	assert.False(t, ValidateDate("09-12-2024", testNow), "yesterday is invalid")
	assert.False(t, ValidateDate("not-a-date", testNow))
	assert.False(t, ValidateDate("", testNow))
}

func TestExtractTreatment(t *testing.T) {
	tenant := &config.TenantConfig{
		TreatmentDurations: map[string]config.TreatmentInfo{
			"limpieza":          {DurationMinutes: 30, Sessions: 1},
			"limpieza profunda": {DurationMinutes: 60, Sessions: 1},
			"botox":             {DurationMinutes: 30, Sessions: 1},
		},
	}

	name, ok := ExtractTreatment("quiero una limpieza profunda mañana", tenant)
	require.True(t, ok)
	assert.Equal(t, "limpieza profunda", name, "longest match wins")

	name, ok = ExtractTreatment("Cita para BOTOX", tenant)
	require.True(t, ok)
	assert.Equal(t, "botox", name)

	_, ok = ExtractTreatment("quiero una manicure", tenant)
	assert.False(t, ok)
}

func TestExtractPatient(t *testing.T) {
	info := ExtractPatient("me llamo Ana García, mi correo es ana@example.com", nil)
	assert.Equal(t, "Ana García", info.Name)
	assert.Equal(t, "ana@example.com", info.Email)

	info = ExtractPatient("cédula 12345678 y teléfono 3001234567", nil)
	assert.Equal(t, "12345678", info.NationalID)
	assert.Equal(t, "3001234567", info.Phone)
}

func TestExtractPatientFromHistory(t *testing.T) {
	history := []models.Message{
		{Role: models.RoleUser, Content: "me llamo Pedro"},
		{Role: models.RoleAssistant, Content: "me llamo Bot"},
	}
	info := ExtractPatient("quiero agendar", history)
	assert.Equal(t, "Pedro", info.Name, "assistant messages are not scanned")
}

func TestIsPriceQuery(t *testing.T) {
	assert.True(t, IsPriceQuery("¿Cuánto cuesta el botox?"))
	assert.True(t, IsPriceQuery("necesito información del tratamiento"))
	assert.False(t, IsPriceQuery("quiero agendar para mañana a las 10:00"))
}
