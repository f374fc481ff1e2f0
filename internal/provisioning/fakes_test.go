package provisioning

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/kingrain94/tenant-platform/internal/domain"
)

var errDiskFull = errors.New("could not extend file: No space left on device")

type memStore struct {
	mu       sync.Mutex
	schemas  map[string]map[string]bool
	failures map[string]int
	active   map[string]int
	peak     map[string]int
	creates  int
}

func newMemStore() *memStore {
	return &memStore{
		schemas:  make(map[string]map[string]bool),
		failures: make(map[string]int),
		active:   make(map[string]int),
		peak:     make(map[string]int),
	}
}

func (s *memStore) seed(schema string, tables ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schemas[schema] == nil {
		s.schemas[schema] = make(map[string]bool)
	}
	for _, t := range tables {
		s.schemas[schema][t] = true
	}
}

func (s *memStore) tables(schema string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for t := range s.schemas[schema] {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (s *memStore) hasSchema(schema string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.schemas[schema]
	return ok
}

func (s *memStore) Acquire(ctx context.Context, schema string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[schema]++
	if s.active[schema] > s.peak[schema] {
		s.peak[schema] = s.active[schema]
	}
	return &memSession{store: s, schema: schema}, nil
}

func (s *memStore) ListTables(ctx context.Context, schema string) (bool, []string, error) {
	if !s.hasSchema(schema) {
		return false, nil, nil
	}
	return true, s.tables(schema), nil
}

type memSession struct {
	store  *memStore
	schema string
}

func (m *memSession) SchemaExists(ctx context.Context) (bool, error) {
	return m.store.hasSchema(m.schema), nil
}

func (m *memSession) CreateSchema(ctx context.Context) error {
	m.store.seed(m.schema)
	return nil
}

func (m *memSession) Tables(ctx context.Context) ([]string, error) {
	return m.store.tables(m.schema), nil
}

func (m *memSession) CreateTable(ctx context.Context, table TableSpec) error {
	// widen the window in which an unlocked second session would interleave
	time.Sleep(time.Millisecond)

	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures[table.Name] > 0 {
		s.failures[table.Name]--
		return errDiskFull
	}
	s.schemas[m.schema][table.Name] = true
	s.creates++
	return nil
}

func (m *memSession) DropTable(ctx context.Context, table TableSpec) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	delete(m.store.schemas[m.schema], table.Name)
	return nil
}

func (m *memSession) DropSchema(ctx context.Context) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	delete(m.store.schemas, m.schema)
	return nil
}

func (m *memSession) Release() {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.active[m.schema]--
}

type memTenants struct {
	mu      sync.Mutex
	tenants map[string]domain.Tenant
}

func newMemTenants(tenants ...domain.Tenant) *memTenants {
	m := &memTenants{tenants: make(map[string]domain.Tenant)}
	for _, t := range tenants {
		m.tenants[t.ID] = t
	}
	return m
}

func (m *memTenants) Create(ctx context.Context, tenant *domain.Tenant) (*domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[tenant.ID] = *tenant
	return tenant, nil
}

func (m *memTenants) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, domain.NewError(domain.CodeTenantNotFound, "tenant %q not found", id)
	}
	return &t, nil
}

func (m *memTenants) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tenants {
		if t.Slug == slug {
			return &t, nil
		}
	}
	return nil, domain.NewError(domain.CodeTenantNotFound, "tenant %q not found", slug)
}

func (m *memTenants) UpdateStatus(ctx context.Context, id string, from, to domain.TenantStatus) (*domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !domain.CanTransition(from, to) {
		return nil, domain.NewError(domain.CodeInvalidTransition, "cannot move tenant from %s to %s", from, to)
	}
	t, ok := m.tenants[id]
	if !ok {
		return nil, domain.NewError(domain.CodeTenantNotFound, "tenant %q not found", id)
	}
	if t.Status == from {
		t.Status = to
		m.tenants[id] = t
	} else if t.Status != to {
		return nil, domain.NewError(domain.CodeInvalidTransition, "tenant is %s, expected %s", t.Status, from)
	}
	return &t, nil
}

func (m *memTenants) List(ctx context.Context, filter domain.TenantFilter) ([]domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Tenant
	for _, t := range m.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (m *memTenants) status(id string) domain.TenantStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tenants[id].Status
}

type memRegistry struct {
	mu      sync.Mutex
	entries map[string]map[string]domain.SchemaRegistryEntry
}

func newMemRegistry() *memRegistry {
	return &memRegistry{entries: make(map[string]map[string]domain.SchemaRegistryEntry)}
}

func (r *memRegistry) Upsert(ctx context.Context, entry *domain.SchemaRegistryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[entry.TenantID] == nil {
		r.entries[entry.TenantID] = make(map[string]domain.SchemaRegistryEntry)
	}
	r.entries[entry.TenantID][entry.Service] = *entry
	return nil
}

func (r *memRegistry) ListByTenant(ctx context.Context, tenantID string) ([]domain.SchemaRegistryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SchemaRegistryEntry
	for _, e := range r.entries[tenantID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out, nil
}

func (r *memRegistry) DeleteByTenant(ctx context.Context, tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, tenantID)
	return nil
}

func (r *memRegistry) entry(tenantID, service string) domain.SchemaRegistryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[tenantID][service]
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (a *recordingAuditor) Record(ctx context.Context, event *domain.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, *event)
}

func (a *recordingAuditor) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, e := range a.events {
		out = append(out, e.Action)
	}
	return out
}
