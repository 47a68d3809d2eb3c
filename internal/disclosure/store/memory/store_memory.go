package memory

import (
	"context"
	"sync"

	"equitrail/internal/disclosure"
	id "equitrail/pkg/domain"
	"equitrail/pkg/platform/sentinel"
)

// InMemoryStore keeps disclosures and companies in memory for tests.
type InMemoryStore struct {
	mu          sync.RWMutex
	disclosures map[id.DisclosureID]disclosure.Disclosure
	companies   map[id.CompanyID]disclosure.Company
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		disclosures: make(map[id.DisclosureID]disclosure.Disclosure),
		companies:   make(map[id.CompanyID]disclosure.Company),
	}
}

// SeedCompany inserts or replaces a company. Test helper.
func (s *InMemoryStore) SeedCompany(c disclosure.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[c.ID] = c
}

// SeedDisclosure inserts or replaces a disclosure. Test helper.
func (s *InMemoryStore) SeedDisclosure(d disclosure.Disclosure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disclosures[d.ID] = d
}

func (s *InMemoryStore) GetDisclosure(_ context.Context, disclosureID id.DisclosureID) (*disclosure.Disclosure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.disclosures[disclosureID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := d
	return &copied, nil
}

func (s *InMemoryStore) GetCompany(_ context.Context, companyID id.CompanyID) (*disclosure.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.companies[companyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := c
	return &copied, nil
}

func (s *InMemoryStore) ApprovedKinds(_ context.Context, companyID id.CompanyID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var kinds []string
	for _, d := range s.disclosures {
		if d.CompanyID != companyID || d.Status != disclosure.StatusApproved {
			continue
		}
		if _, ok := seen[d.Kind]; ok {
			continue
		}
		seen[d.Kind] = struct{}{}
		kinds = append(kinds, d.Kind)
	}
	return kinds, nil
}

func (s *InMemoryStore) PromoteCompany(_ context.Context, companyID id.CompanyID, from, to disclosure.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.companies[companyID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if c.Tier != from {
		return sentinel.ErrConflict
	}
	c.Tier = to
	s.companies[companyID] = c
	return nil
}
