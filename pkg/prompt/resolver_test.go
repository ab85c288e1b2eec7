package prompt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) GetCompanyPrompts(string) (map[string]StoredPrompt, error) {
	return nil, errors.New("store down")
}

func TestResolveCustomPrompt(t *testing.T) {
	store := NewMemoryStore()
	store.SetPrompt("benova", KeySales, "Eres el asesor comercial de {company_name}.", true)
	r := NewResolver(store)

	tpl := r.Resolve("benova", KeySales)
	assert.Equal(t, ProvenanceCustom, tpl.Provenance)
	assert.Equal(t, "Eres el asesor comercial de {company_name}.", tpl.Body)
	assert.Equal(t, 1, tpl.Version)
}

func TestResolveDefaultPrompt(t *testing.T) {
	store := NewMemoryStore()
	store.SetPrompt("benova", KeySupport, "Eres soporte de {company_name}.", false)
	r := NewResolver(store)

	tpl := r.Resolve("benova", KeySupport)
	assert.Equal(t, ProvenanceDefault, tpl.Provenance)
}

func TestResolveFallsBackToHardcoded(t *testing.T) {
	r := NewResolver(NewMemoryStore())
	tpl := r.Resolve("benova", KeyRouter)
	assert.Equal(t, ProvenanceHardcoded, tpl.Provenance)
	assert.NotEmpty(t, tpl.Body)
}

func TestResolveNilStoreSkipsTenantTiers(t *testing.T) {
	r := NewResolver(nil)
	tpl := r.Resolve("benova", KeySchedule)
	assert.Equal(t, ProvenanceHardcoded, tpl.Provenance)
}

func TestResolveStoreFailureFallsThrough(t *testing.T) {
	r := NewResolver(failingStore{})
	tpl := r.Resolve("benova", KeyEmergency)
	assert.Equal(t, ProvenanceHardcoded, tpl.Provenance)
}

func TestResolveUnknownKeyUsesEmergencyTemplate(t *testing.T) {
	r := NewResolver(nil)
	tpl := r.Resolve("benova", "nonexistent")
	assert.Equal(t, ProvenanceEmergency, tpl.Provenance)
	assert.NotEmpty(t, tpl.Body)
}

func TestVersionBump(t *testing.T) {
	r := NewResolver(nil)
	before := r.Version()
	r.Bump()
	assert.Equal(t, before+1, r.Version())
}

func TestMemoryStoreVersioning(t *testing.T) {
	store := NewMemoryStore()
	p1 := store.SetPrompt("benova", KeySales, "v1", true)
	p2 := store.SetPrompt("benova", KeySales, "v2", true)
	assert.Equal(t, 1, p1.Version)
	assert.Equal(t, 2, p2.Version)

	store.DeletePrompt("benova", KeySales)
	prompts, err := store.GetCompanyPrompts("benova")
	require.NoError(t, err)
	assert.NotContains(t, prompts, KeySales)
}

func TestRenderSubstitutesKnownPlaceholders(t *testing.T) {
	out := Render("Hola {question} de {company_name}: {services}", Vars{
		Question:    "precio",
		CompanyName: "Benova",
		Services:    "botox, limpieza facial",
	})
	assert.Equal(t, "Hola precio de Benova: botox, limpieza facial", out)
}

func TestRenderLeavesUnknownBracesUntouched(t *testing.T) {
	out := Render(`{"intent": "SALES"} con {unknown_var} y {question}`, Vars{Question: "hola"})
	assert.Equal(t, `{"intent": "SALES"} con {unknown_var} y hola`, out)
}
