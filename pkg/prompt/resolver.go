package prompt

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Provenance records which tier a resolved template came from.
type Provenance string

const (
	ProvenanceCustom    Provenance = "custom"
	ProvenanceDefault   Provenance = "default"
	ProvenanceHardcoded Provenance = "hardcoded"
	ProvenanceEmergency Provenance = "emergency"
)

// Template is a resolved prompt template with provenance for logging.
type Template struct {
	Body         string     `json:"body"`
	Provenance   Provenance `json:"provenance"`
	Version      int        `json:"version"`
	LastModified time.Time  `json:"last_modified"`
}

// StoredPrompt is one prompt record in the prompt store.
type StoredPrompt struct {
	CurrentPrompt string    `json:"current_prompt"`
	IsCustom      bool      `json:"is_custom"`
	Source        string    `json:"source"`
	Version       int       `json:"version"`
	LastModified  time.Time `json:"last_modified"`
}

// Store is the persistence boundary for tenant prompts.
type Store interface {
	// GetCompanyPrompts returns all prompts for a tenant, keyed by agent key.
	GetCompanyPrompts(companyID string) (map[string]StoredPrompt, error)
}

// Resolver resolves (company_id, agent_key) into a prompt template.
//
// Search order: tenant custom prompt, tenant default prompt, hardcoded
// fallback, last-resort emergency template. Failures in the first three
// tiers log a warning and fall through; resolution never fails the request.
type Resolver struct {
	store   Store
	version atomic.Uint64
}

// NewResolver creates a Resolver over the given prompt store. A nil store
// skips the first two tiers.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Version returns a counter incremented on every prompt mutation, letting
// the orchestrator check for staleness lazily at request start.
func (r *Resolver) Version() uint64 {
	return r.version.Load()
}

// Bump marks the prompt set as modified.
func (r *Resolver) Bump() {
	r.version.Add(1)
}

// Resolve returns the prompt template for an agent of a tenant.
func (r *Resolver) Resolve(companyID, agentKey string) Template {
	if r.store != nil {
		prompts, err := r.store.GetCompanyPrompts(companyID)
		if err != nil {
			slog.Warn("Prompt store lookup failed, falling back",
				"company_id", companyID, "agent_key", agentKey, "error", err)
		} else if p, ok := prompts[agentKey]; ok && p.CurrentPrompt != "" {
			provenance := ProvenanceDefault
			if p.IsCustom {
				provenance = ProvenanceCustom
			}
			return Template{
				Body:         p.CurrentPrompt,
				Provenance:   provenance,
				Version:      p.Version,
				LastModified: p.LastModified,
			}
		}
	}

	if body, ok := hardcodedTemplates[agentKey]; ok {
		return Template{Body: body, Provenance: ProvenanceHardcoded}
	}

	slog.Warn("No hardcoded template for agent key, using emergency template",
		"company_id", companyID, "agent_key", agentKey)
	return Template{Body: emergencyTemplate, Provenance: ProvenanceEmergency}
}

// MemoryStore is an in-memory Store implementation backing the admin prompt
// CRUD endpoints.
type MemoryStore struct {
	mu      sync.RWMutex
	prompts map[string]map[string]StoredPrompt // company_id -> agent_key -> prompt
}

// NewMemoryStore creates an empty in-memory prompt store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prompts: make(map[string]map[string]StoredPrompt)}
}

// GetCompanyPrompts returns a copy of the tenant's prompts.
func (s *MemoryStore) GetCompanyPrompts(companyID string) (map[string]StoredPrompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]StoredPrompt, len(s.prompts[companyID]))
	for k, v := range s.prompts[companyID] {
		out[k] = v
	}
	return out, nil
}

// SetPrompt creates or updates a tenant prompt.
func (s *MemoryStore) SetPrompt(companyID, agentKey, body string, custom bool) StoredPrompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prompts[companyID] == nil {
		s.prompts[companyID] = make(map[string]StoredPrompt)
	}
	prev := s.prompts[companyID][agentKey]
	p := StoredPrompt{
		CurrentPrompt: body,
		IsCustom:      custom,
		Source:        "admin",
		Version:       prev.Version + 1,
		LastModified:  time.Now(),
	}
	s.prompts[companyID][agentKey] = p
	return p
}

// DeletePrompt removes a tenant prompt.
func (s *MemoryStore) DeletePrompt(companyID, agentKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prompts[companyID], agentKey)
}
