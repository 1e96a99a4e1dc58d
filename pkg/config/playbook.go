package config

import (
	"fmt"
	"sync"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// PlaybookRegistry stores playbooks in memory with thread-safe,
// tenant-scoped access.
type PlaybookRegistry struct {
	playbooks map[string]*model.Playbook // key: tenant_id + "/" + playbook_id
	mu        sync.RWMutex
}

// NewPlaybookRegistry creates a new playbook registry from an initial snapshot.
func NewPlaybookRegistry(playbooks map[string]*model.Playbook) *PlaybookRegistry {
	copied := make(map[string]*model.Playbook, len(playbooks))
	for k, v := range playbooks {
		copied[k] = v
	}
	return &PlaybookRegistry{playbooks: copied}
}

func playbookKey(tenantID, playbookID string) string {
	return tenantID + "/" + playbookID
}

// Get retrieves a playbook by tenant and id (thread-safe)
func (r *PlaybookRegistry) Get(tenantID, playbookID string) (*model.Playbook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pb, exists := r.playbooks[playbookKey(tenantID, playbookID)]
	if !exists {
		return nil, model.Wrap(model.CodeBadReference, fmt.Sprintf("playbook not found: %s", playbookID), ErrPlaybookNotFound)
	}
	return pb, nil
}

// GetByDomainAndClass finds the playbook for a (domain, class) pair
// within a tenant (thread-safe). Config Store invariant: at most one
// playbook per (tenant, domain, class).
func (r *PlaybookRegistry) GetByDomainAndClass(tenantID, domainID string, class model.Class) (*model.Playbook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, pb := range r.playbooks {
		if pb.TenantID == tenantID && pb.DomainID == domainID && pb.Class == class {
			return pb, nil
		}
	}
	return nil, model.Wrap(model.CodeBadReference, fmt.Sprintf("no playbook for domain=%s class=%s", domainID, class), ErrPlaybookNotFound)
}

// Put inserts or replaces a playbook (thread-safe).
func (r *PlaybookRegistry) Put(pb *model.Playbook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playbooks[playbookKey(pb.TenantID, pb.PlaybookID)] = pb
}

// GetAllForTenant returns every playbook owned by tenantID (thread-safe, returns a copy)
func (r *PlaybookRegistry) GetAllForTenant(tenantID string) map[string]*model.Playbook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*model.Playbook)
	for _, pb := range r.playbooks {
		if pb.TenantID == tenantID {
			result[pb.PlaybookID] = pb
		}
	}
	return result
}

// Has checks if a playbook exists in the registry (thread-safe)
func (r *PlaybookRegistry) Has(tenantID, playbookID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.playbooks[playbookKey(tenantID, playbookID)]
	return exists
}

// Len returns the number of playbooks in the registry, across all tenants (thread-safe)
func (r *PlaybookRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.playbooks)
}
