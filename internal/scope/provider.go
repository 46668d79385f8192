package scope

import (
	"context"
	"fmt"
	"sync"

	"procurement-backend/internal/access"
	"procurement-backend/internal/logger"
	"procurement-backend/internal/models"
)

// Provider states.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateSingleCompany State = "single_company"
	StateMultiSelected State = "multi_company_selected"
	StateMultiGlobal   State = "multi_company_global"
)

// GlobalViewPreferenceKey is the fixed key the "prefers global view"
// boolean is persisted under.
const GlobalViewPreferenceKey = "company_scope.global_view"

// CompanyStore lists and fetches tenants.
type CompanyStore interface {
	ListAll(ctx context.Context) ([]models.Company, error)
	Get(ctx context.Context, companyID string) (models.Company, error)
}

// PreferenceStore persists per-user booleans under fixed keys.
type PreferenceStore interface {
	GetBool(ctx context.Context, userID, key string) (bool, error)
	SetBool(ctx context.Context, userID, key string, value bool) error
	Delete(ctx context.Context, userID, key string) error
}

// Invalidator is anything holding results derived from the previous scope.
type Invalidator interface {
	Invalidate()
}

// Snapshot is the provider state handed to the HTTP layer.
type Snapshot struct {
	State               State            `json:"state"`
	Companies           []models.Company `json:"companies"`
	ActiveCompanyID     string           `json:"activeCompanyId,omitempty"`
	IsGlobalView        bool             `json:"isGlobalView"`
	CanViewAllCompanies bool             `json:"canViewAllCompanies"`
}

// Provider coordinates tenant-list loading, the active selection, the
// persisted global-view preference, and cache invalidation. Every
// transition pushes the new override into the Store and invalidates all
// registered caches so no stale-permission window opens.
type Provider struct {
	store        *Store
	companies    CompanyStore
	prefs        PreferenceStore
	invalidators []Invalidator

	mu         sync.Mutex
	state      State
	list       []models.Company
	selectedID string
	globalView bool
	userID     string
	privileged bool
}

// NewProvider wires a Provider. The invalidators are signalled on every
// effective transition.
func NewProvider(store *Store, companies CompanyStore, prefs PreferenceStore, invalidators ...Invalidator) *Provider {
	return &Provider{
		store:        store,
		companies:    companies,
		prefs:        prefs,
		invalidators: invalidators,
		state:        StateUninitialized,
	}
}

// HandleSignIn initializes the provider for a freshly resolved identity.
//
// Non-privileged identities are forced into single-company state pinned to
// their own tenant, and any persisted global-view preference is cleared.
// Privileged identities get the full deduplicated tenant list, keep their
// previous selection when still valid, and restore the persisted
// global-view preference.
func (p *Provider) HandleSignIn(ctx context.Context, acc *access.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.userID = acc.UserID
	p.privileged = acc.Privileged()

	if !p.privileged {
		if err := p.prefs.Delete(ctx, acc.UserID, GlobalViewPreferenceKey); err != nil {
			logger.Warnf("scope: failed to clear global-view preference for %s: %v", acc.UserID, err)
		}

		if acc.CompanyID == "" {
			// No tenant: leave the list empty and the override unset so
			// scoped queries fail closed.
			p.list = nil
			p.applyLocked(StateSingleCompany, "", false)
			return nil
		}

		company, err := p.companies.Get(ctx, acc.CompanyID)
		if err != nil {
			return fmt.Errorf("load own company: %w", err)
		}
		p.list = []models.Company{company}
		p.applyLocked(StateSingleCompany, company.ID, false)
		return nil
	}

	all, err := p.companies.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load company list: %w", err)
	}
	p.list = dedupeCompanies(all)

	selected := ""
	if p.selectedID != "" && p.contains(p.selectedID) {
		selected = p.selectedID
	} else if len(p.list) > 0 {
		selected = p.list[0].ID
	}

	global, err := p.prefs.GetBool(ctx, acc.UserID, GlobalViewPreferenceKey)
	if err != nil {
		logger.Warnf("scope: failed to read global-view preference for %s: %v", acc.UserID, err)
		global = false
	}

	if global {
		p.applyLocked(StateMultiGlobal, selected, true)
	} else {
		p.applyLocked(StateMultiSelected, selected, false)
	}
	return nil
}

// HandleSignOut clears the override and resets to the uninitialized state.
// The persisted global-view preference survives for the next session.
func (p *Provider) HandleSignOut() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.userID = ""
	p.privileged = false
	p.list = nil
	p.applyLocked(StateUninitialized, "", false)
}

// SetActiveCompany selects a tenant. An empty companyID means "switch to
// the global view" and is meaningful only for privileged identities; calls
// from non-privileged identities are ignored.
func (p *Provider) SetActiveCompany(companyID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.privileged {
		return nil
	}

	if companyID == "" {
		p.applyLocked(StateMultiGlobal, p.selectedID, true)
		return nil
	}

	if !p.contains(companyID) {
		return fmt.Errorf("unknown company %q", companyID)
	}
	p.applyLocked(StateMultiSelected, companyID, false)
	return nil
}

// SetGlobalView toggles the cross-tenant view and persists the preference
// under GlobalViewPreferenceKey. Ignored for non-privileged identities: no
// state change, no write.
func (p *Provider) SetGlobalView(ctx context.Context, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.privileged {
		return nil
	}

	if err := p.prefs.SetBool(ctx, p.userID, GlobalViewPreferenceKey, enabled); err != nil {
		// The preference only affects the next session; the live toggle
		// still proceeds.
		logger.Warnf("scope: failed to persist global-view preference for %s: %v", p.userID, err)
	}

	selected := p.selectedID
	if selected == "" && len(p.list) > 0 {
		selected = p.list[0].ID
	}

	if enabled {
		p.applyLocked(StateMultiGlobal, selected, true)
	} else {
		p.applyLocked(StateMultiSelected, selected, false)
	}
	return nil
}

// CurrentUser returns the user the provider was last initialized for,
// or "" before the first sign-in.
func (p *Provider) CurrentUser() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userID
}

// Snapshot returns the current provider state.
func (p *Provider) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	companies := make([]models.Company, len(p.list))
	copy(companies, p.list)

	active := ""
	if !p.globalView {
		active = p.selectedID
	}

	return Snapshot{
		State:               p.state,
		Companies:           companies,
		ActiveCompanyID:     active,
		IsGlobalView:        p.globalView,
		CanViewAllCompanies: p.privileged,
	}
}

// applyLocked commits a transition: records the new state, pushes the
// matching override into the store, and, when anything effective changed,
// invalidates every registered cache. Caller holds p.mu.
func (p *Provider) applyLocked(state State, selected string, global bool) {
	changed := p.state != state || p.selectedID != selected || p.globalView != global

	p.state = state
	p.selectedID = selected
	p.globalView = global

	override := ""
	switch {
	case global:
		override = Global
	case selected != "":
		override = selected
	}
	p.store.SetOverride(override)

	if changed {
		for _, inv := range p.invalidators {
			inv.Invalidate()
		}
	}
}

func (p *Provider) contains(companyID string) bool {
	for _, c := range p.list {
		if c.ID == companyID {
			return true
		}
	}
	return false
}
