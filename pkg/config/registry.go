package config

import (
	"sort"
	"strings"
	"sync/atomic"
)

// DefaultCompanyID is the tenant used when webhook resolution finds nothing.
const DefaultCompanyID = "default"

// TenantRegistry resolves company IDs into tenant configurations.
// The backing snapshot is swapped atomically on hot reload, so request
// handlers always see a consistent view.
type TenantRegistry struct {
	snapshot atomic.Pointer[tenantSnapshot]
}

type tenantSnapshot struct {
	tenants    map[string]*TenantConfig
	accountMap map[int]string // chatwoot account_id -> company_id
	version    uint64
}

// NewTenantRegistry creates a registry from an initial tenant set.
func NewTenantRegistry(tenants map[string]*TenantConfig, accountMap map[int]string) *TenantRegistry {
	r := &TenantRegistry{}
	r.Replace(tenants, accountMap)
	return r
}

// Replace swaps in a new tenant snapshot (hot reload).
func (r *TenantRegistry) Replace(tenants map[string]*TenantConfig, accountMap map[int]string) {
	var version uint64
	if prev := r.snapshot.Load(); prev != nil {
		version = prev.version + 1
	}
	if tenants == nil {
		tenants = map[string]*TenantConfig{}
	}
	if accountMap == nil {
		accountMap = map[int]string{}
	}
	r.snapshot.Store(&tenantSnapshot{tenants: tenants, accountMap: accountMap, version: version})
}

// Get returns the tenant configuration for a company ID.
func (r *TenantRegistry) Get(companyID string) (*TenantConfig, bool) {
	snap := r.snapshot.Load()
	t, ok := snap.tenants[companyID]
	return t, ok
}

// Has reports whether a company ID is registered.
func (r *TenantRegistry) Has(companyID string) bool {
	_, ok := r.Get(companyID)
	return ok
}

// IDs returns the sorted list of registered company IDs.
func (r *TenantRegistry) IDs() []string {
	snap := r.snapshot.Load()
	ids := make([]string, 0, len(snap.tenants))
	for id := range snap.tenants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered tenants.
func (r *TenantRegistry) Len() int {
	return len(r.snapshot.Load().tenants)
}

// Version returns the snapshot version, incremented on every Replace.
func (r *TenantRegistry) Version() uint64 {
	return r.snapshot.Load().version
}

// ResolutionHints carries the company-id candidates extracted from a webhook
// payload, in no particular order. Resolve applies the priority order.
type ResolutionHints struct {
	ExplicitCompanyID string // top-level company_id field
	MetaCompanyID     string // conversation.meta.company_id
	AccountName       string // conversation.account.name
	CustomAttrCompanyID string // conversation.custom_attributes.company_id
	AccountID         int    // platform account_id
}

// Resolve maps webhook hints to a company ID. First hit wins:
// explicit field, conversation meta, lowercased account name, custom
// attributes, then the configured account-id table. Falls back to "default".
// The returned ID is not guaranteed to be registered; callers must Get it.
func (r *TenantRegistry) Resolve(h ResolutionHints) string {
	if h.ExplicitCompanyID != "" {
		return h.ExplicitCompanyID
	}
	if h.MetaCompanyID != "" {
		return h.MetaCompanyID
	}
	if name := strings.ToLower(strings.TrimSpace(h.AccountName)); name != "" {
		return name
	}
	if h.CustomAttrCompanyID != "" {
		return h.CustomAttrCompanyID
	}
	if h.AccountID != 0 {
		snap := r.snapshot.Load()
		if id, ok := snap.accountMap[h.AccountID]; ok {
			return id
		}
	}
	return DefaultCompanyID
}
