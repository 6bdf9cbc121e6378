package store

import (
	"context"
	"strings"
	"sync"

	"healthpass/internal/authority/models"
	"healthpass/pkg/domain"
	"healthpass/pkg/platform/sentinel"
)

// Memory is an in-memory Store used in tests and single-node deployments.
type Memory struct {
	mu             sync.RWMutex
	applications   map[domain.Identity]*models.Application
	authorities    map[domain.Identity]*models.Authority
	names          map[string]domain.Identity
	revokedRecords map[domain.Identity]map[domain.Hash]bool
}

func NewMemory() *Memory {
	return &Memory{
		applications:   make(map[domain.Identity]*models.Application),
		authorities:    make(map[domain.Identity]*models.Authority),
		names:          make(map[string]domain.Identity),
		revokedRecords: make(map[domain.Identity]map[domain.Hash]bool),
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (m *Memory) CreateApplication(_ context.Context, app *models.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.applications[app.Applicant]; ok && !existing.Processed {
		return sentinel.ErrAlreadyUsed
	}
	// A processed application may be overwritten by a fresh one.
	m.applications[app.Applicant] = app.Clone()
	return nil
}

func (m *Memory) FindApplication(_ context.Context, applicant domain.Identity) (*models.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	app, ok := m.applications[applicant]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return app.Clone(), nil
}

func (m *Memory) ExecuteApplication(_ context.Context, applicant domain.Identity,
	validate func(*models.Application) error,
	mutate func(*models.Application) error,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	app, ok := m.applications[applicant]
	if !ok {
		return sentinel.ErrNotFound
	}

	snapshot := app.Clone()
	if err := validate(snapshot); err != nil {
		return err
	}
	if err := mutate(snapshot); err != nil {
		return err
	}
	m.applications[applicant] = snapshot
	return nil
}

func (m *Memory) ListPendingApplications(_ context.Context) ([]*models.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pending []*models.Application
	for _, app := range m.applications {
		if !app.Processed {
			pending = append(pending, app.Clone())
		}
	}
	return pending, nil
}

func (m *Memory) CreateAuthority(_ context.Context, authority *models.Authority) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.authorities[authority.Identity]; ok {
		return sentinel.ErrConflict
	}
	key := normalizeName(authority.Name)
	if _, ok := m.names[key]; ok {
		return sentinel.ErrAlreadyUsed
	}

	m.authorities[authority.Identity] = authority.Clone()
	m.names[key] = authority.Identity
	return nil
}

func (m *Memory) FindAuthority(_ context.Context, identity domain.Identity) (*models.Authority, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	authority, ok := m.authorities[identity]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return authority.Clone(), nil
}

func (m *Memory) FindByName(_ context.Context, name string) (*models.Authority, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	identity, ok := m.names[normalizeName(name)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return m.authorities[identity].Clone(), nil
}

func (m *Memory) Execute(_ context.Context, identity domain.Identity,
	validate func(*models.Authority) error,
	mutate func(*models.Authority) error,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	authority, ok := m.authorities[identity]
	if !ok {
		return sentinel.ErrNotFound
	}

	snapshot := authority.Clone()
	if err := validate(snapshot); err != nil {
		return err
	}
	if err := mutate(snapshot); err != nil {
		return err
	}
	m.authorities[identity] = snapshot
	return nil
}

func (m *Memory) ListAuthorities(_ context.Context) ([]*models.Authority, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Authority, 0, len(m.authorities))
	for _, authority := range m.authorities {
		out = append(out, authority.Clone())
	}
	return out, nil
}

func (m *Memory) ListByType(_ context.Context, typ models.AuthorityType) ([]*models.Authority, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Authority
	for _, authority := range m.authorities {
		if authority.Type == typ {
			out = append(out, authority.Clone())
		}
	}
	return out, nil
}

func (m *Memory) ListByCountry(_ context.Context, country string) ([]*models.Authority, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Authority
	for _, authority := range m.authorities {
		if strings.EqualFold(authority.Country, country) {
			out = append(out, authority.Clone())
		}
	}
	return out, nil
}

func (m *Memory) CountAuthorities(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.authorities), nil
}

func (m *Memory) CountByStatus(_ context.Context, status models.Status) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, authority := range m.authorities {
		if authority.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *Memory) NameTaken(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := normalizeName(name)
	if _, ok := m.names[key]; ok {
		return true, nil
	}
	for _, app := range m.applications {
		if !app.Processed && normalizeName(app.Name) == key {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) FlagRecordRevoked(_ context.Context, authority domain.Identity, recordHash domain.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.revokedRecords[authority]
	if !ok {
		set = make(map[domain.Hash]bool)
		m.revokedRecords[authority] = set
	}
	set[recordHash] = true
	return nil
}

func (m *Memory) IsRecordRevoked(_ context.Context, authority domain.Identity, recordHash domain.Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.revokedRecords[authority][recordHash], nil
}

var _ Store = (*Memory)(nil)
