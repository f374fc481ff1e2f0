package provisioning

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

const (
	acmeID     = "7b0c8a52-3f0e-4c1e-9a57-acme00000001"
	acmeSchema = "tenant_acme"
)

type ProvisionerTestSuite struct {
	suite.Suite
	store    *memStore
	tenants  *memTenants
	registry *memRegistry
	auditor  *recordingAuditor
	sleeps   []time.Duration
	p        *Provisioner
}

func (s *ProvisionerTestSuite) SetupTest() {
	s.store = newMemStore()
	s.tenants = newMemTenants(domain.Tenant{
		ID:         acmeID,
		Slug:       "acme",
		SchemaName: acmeSchema,
		Status:     domain.TenantStatusProvisioning,
	})
	s.registry = newMemRegistry()
	s.auditor = &recordingAuditor{}
	s.sleeps = nil

	s.p = NewProvisioner(s.store, s.tenants, s.registry, logger.NewNop(),
		WithAuditor(s.auditor),
		WithMetrics(NewMetrics(nil)),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Second, MaxBackoff: 10 * time.Second}),
	)
	s.p.sleep = func(ctx context.Context, d time.Duration) error {
		s.sleeps = append(s.sleeps, d)
		return nil
	}
}

func TestProvisioner(t *testing.T) {
	suite.Run(t, new(ProvisionerTestSuite))
}

func allTables() []string {
	return declaredTables(DefaultManifests())
}

func (s *ProvisionerTestSuite) TestProvision_FreshTenant() {
	// Act
	outcomes, err := s.p.Provision(context.Background(), acmeID, acmeSchema)

	// Assert
	s.Require().NoError(err)
	s.Len(outcomes, 4)
	created := 0
	for _, o := range outcomes {
		s.Equal(domain.RegistryStatusSuccess, o.Status, o.Service)
		created += len(o.TablesCreated)
	}
	s.Equal(len(allTables()), created)
	s.Equal(allTables(), s.store.tables(acmeSchema))
	s.Equal(domain.TenantStatusActive, s.tenants.status(acmeID))

	entry := s.registry.entry(acmeID, ServiceOrders)
	s.Equal(domain.RegistryStatusSuccess, entry.Status)
	s.Equal(1, entry.Attempts)
	s.NotNil(entry.ProvisionedAt)
	s.Equal([]string{"orders", "order_items"}, []string(entry.ExpectedTables))
	s.Contains(s.auditor.actions(), domain.AuditActionProvision)
}

func (s *ProvisionerTestSuite) TestProvision_IsIdempotent() {
	_, err := s.p.Provision(context.Background(), acmeID, acmeSchema)
	s.Require().NoError(err)
	creates := s.store.creates

	outcomes, err := s.p.Provision(context.Background(), acmeID, acmeSchema)

	s.Require().NoError(err)
	s.Equal(creates, s.store.creates)
	for _, o := range outcomes {
		s.Equal(domain.RegistryStatusSuccess, o.Status)
		s.Empty(o.TablesCreated)
	}
	s.Equal(2, s.registry.entry(acmeID, ServiceAuth).Attempts)
	s.Equal(domain.TenantStatusActive, s.tenants.status(acmeID))
}

func (s *ProvisionerTestSuite) TestProvision_CustomManifests() {
	notes := Manifest{Service: "notes", Tables: []TableSpec{{
		Name:       "notes",
		Columns:    []ColumnSpec{colID, {Name: "body", Type: "text", Constraints: "NOT NULL"}},
		PrimaryKey: []string{"id"},
	}}}
	p := NewProvisioner(s.store, s.tenants, s.registry, logger.NewNop(), WithManifests([]Manifest{notes}))

	outcomes, err := p.Provision(context.Background(), acmeID, acmeSchema)

	s.Require().NoError(err)
	s.Require().Len(outcomes, 1)
	s.Equal("notes", outcomes[0].Service)
	s.Equal([]string{"notes"}, s.store.tables(acmeSchema))
	s.Equal(domain.TenantStatusActive, s.tenants.status(acmeID))
}

func (s *ProvisionerTestSuite) TestProvision_CreatesOnlyMissingTables() {
	s.store.seed(acmeSchema, "users", "orders")

	outcomes, err := s.p.Provision(context.Background(), acmeID, acmeSchema)

	s.Require().NoError(err)
	s.Equal([]string{"roles", "permission_overrides"}, outcomes[0].TablesCreated)
	s.Equal([]string{"order_items"}, outcomes[1].TablesCreated)
	s.Equal(len(allTables())-2, s.store.creates)
}

func (s *ProvisionerTestSuite) TestProvision_FailureRollsBackOnlyThisAttempt() {
	// Arrange
	s.store.seed(acmeSchema, "users")
	s.store.failures["invoices"] = 1

	// Act
	outcomes, err := s.p.Provision(context.Background(), acmeID, acmeSchema)

	// Assert
	s.ErrorIs(err, domain.ErrSchemaProvisionFailure)
	s.ErrorIs(err, errDiskFull)
	s.Equal([]string{"users"}, s.store.tables(acmeSchema))

	byService := make(map[string]ServiceOutcome)
	for _, o := range outcomes {
		byService[o.Service] = o
		s.Empty(o.TablesCreated)
	}
	s.Equal(domain.RegistryStatusFailed, byService[ServiceInvoicing].Status)
	s.Contains(byService[ServiceInvoicing].Error, "No space left")
	s.Equal(domain.RegistryStatusPending, byService[ServiceAuth].Status)
	s.Equal(domain.RegistryStatusPending, byService[ServiceOrders].Status)
	s.Equal(domain.RegistryStatusPending, byService[ServiceCRM].Status)

	failed := s.registry.entry(acmeID, ServiceInvoicing)
	s.Equal(domain.RegistryStatusFailed, failed.Status)
	s.NotEmpty(failed.LastError)
	s.Nil(failed.ProvisionedAt)
	s.Equal(domain.TenantStatusProvisioning, s.tenants.status(acmeID))
}

func (s *ProvisionerTestSuite) TestProvision_FailureDropsSchemaCreatedByAttempt() {
	s.store.failures["companies"] = 1

	_, err := s.p.Provision(context.Background(), acmeID, acmeSchema)

	s.ErrorIs(err, domain.ErrSchemaProvisionFailure)
	s.False(s.store.hasSchema(acmeSchema))
}

func (s *ProvisionerTestSuite) TestProvision_ConcurrentCallsForSameTenant() {
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	created := make(chan int, 8)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes, err := s.p.Provision(context.Background(), acmeID, acmeSchema)
			errs <- err
			n := 0
			for _, o := range outcomes {
				n += len(o.TablesCreated)
			}
			created <- n
		}()
	}
	wg.Wait()
	close(errs)
	close(created)

	for err := range errs {
		s.NoError(err)
	}
	total := 0
	for n := range created {
		total += n
	}
	s.Equal(len(allTables()), total)
	s.Equal(len(allTables()), s.store.creates)
	s.Equal(1, s.store.peak[acmeSchema])
	s.Equal(domain.TenantStatusActive, s.tenants.status(acmeID))
}

func (s *ProvisionerTestSuite) TestProvision_RejectsForeignOrInvalidSchema() {
	_, err := s.p.Provision(context.Background(), acmeID, "tenant_globex")
	s.ErrorIs(err, domain.ErrInvalidRequest)

	_, err = s.p.Provision(context.Background(), acmeID, `tenant_acme"; DROP SCHEMA public; --`)
	s.ErrorIs(err, domain.ErrInvalidRequest)

	s.Zero(s.store.creates)
}

func (s *ProvisionerTestSuite) TestProvision_RefusesSuspendedTenant() {
	s.tenants.tenants[acmeID] = domain.Tenant{ID: acmeID, SchemaName: acmeSchema, Status: domain.TenantStatusSuspended}

	_, err := s.p.Provision(context.Background(), acmeID, acmeSchema)

	s.ErrorIs(err, domain.ErrInvalidTransition)
}

func (s *ProvisionerTestSuite) TestProvisionWithRetry_RecoversAfterTransientFailures() {
	s.store.failures["contacts"] = 2

	outcomes, err := s.p.ProvisionWithRetry(context.Background(), acmeID, acmeSchema)

	s.Require().NoError(err)
	s.Len(outcomes, 4)
	s.Equal([]time.Duration{time.Second, 2 * time.Second}, s.sleeps)
	s.Equal(domain.TenantStatusActive, s.tenants.status(acmeID))
	s.Equal(3, s.registry.entry(acmeID, ServiceCRM).Attempts)
}

func (s *ProvisionerTestSuite) TestProvisionWithRetry_ExhaustedMarksTenantFailed() {
	s.store.failures["roles"] = 100

	_, err := s.p.ProvisionWithRetry(context.Background(), acmeID, acmeSchema)

	s.ErrorIs(err, domain.ErrSchemaProvisionFailure)
	s.Len(s.sleeps, 2)
	s.Equal(domain.TenantStatusFailed, s.tenants.status(acmeID))
	s.Contains(s.auditor.actions(), domain.AuditActionProvisionFailed)
	s.Equal(3, s.registry.entry(acmeID, ServiceAuth).Attempts)
}

func (s *ProvisionerTestSuite) TestProvisionWithRetry_DoesNotRetryNonProvisioningErrors() {
	_, err := s.p.ProvisionWithRetry(context.Background(), "missing", acmeSchema)

	s.ErrorIs(err, domain.ErrTenantNotFound)
	s.Empty(s.sleeps)
}

func (s *ProvisionerTestSuite) TestProvisionWithRetry_StopsWhenContextEnds() {
	s.store.failures["roles"] = 100
	ctx, cancel := context.WithCancel(context.Background())
	s.p.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := s.p.ProvisionWithRetry(ctx, acmeID, acmeSchema)

	s.ErrorIs(err, context.Canceled)
	s.Equal(domain.TenantStatusProvisioning, s.tenants.status(acmeID))
}

func (s *ProvisionerTestSuite) TestVerify_ReportsDrift() {
	s.store.seed(acmeSchema, "users", "roles", "permission_overrides", "orders", "legacy_notes")

	report, err := s.p.Verify(context.Background(), acmeSchema)

	s.Require().NoError(err)
	s.True(report.SchemaExists)
	s.False(report.Complete)
	s.Equal([]string{"legacy_notes"}, report.Extra)
	for _, d := range report.Services {
		switch d.Service {
		case ServiceAuth:
			s.Empty(d.Missing)
		case ServiceOrders:
			s.Equal([]string{"order_items"}, d.Missing)
		case ServiceInvoicing:
			s.Equal([]string{"invoices", "invoice_lines"}, d.Missing)
		}
	}
}

func (s *ProvisionerTestSuite) TestVerify_MissingSchema() {
	report, err := s.p.Verify(context.Background(), "tenant_nobody")

	s.Require().NoError(err)
	s.False(report.SchemaExists)
	s.False(report.Complete)
}

func (s *ProvisionerTestSuite) TestVerify_CompleteAfterProvision() {
	_, err := s.p.Provision(context.Background(), acmeID, acmeSchema)
	s.Require().NoError(err)

	report, err := s.p.Verify(context.Background(), acmeSchema)

	s.Require().NoError(err)
	s.True(report.Complete)
	s.Empty(report.Extra)
}

func (s *ProvisionerTestSuite) TestDeprovision() {
	_, err := s.p.Provision(context.Background(), acmeID, acmeSchema)
	s.Require().NoError(err)

	active, _ := s.tenants.GetByID(context.Background(), acmeID)
	s.ErrorIs(s.p.Deprovision(context.Background(), active), domain.ErrInvalidTransition)
	s.True(s.store.hasSchema(acmeSchema))

	active.Status = domain.TenantStatusDeleted
	s.Require().NoError(s.p.Deprovision(context.Background(), active))

	s.False(s.store.hasSchema(acmeSchema))
	entries, _ := s.registry.ListByTenant(context.Background(), acmeID)
	s.Empty(entries)
	s.Contains(s.auditor.actions(), domain.AuditActionDeprovision)
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{BaseBackoff: time.Second, MaxBackoff: 5 * time.Second}

	for attempt, want := range map[int]time.Duration{
		1:  time.Second,
		2:  2 * time.Second,
		3:  4 * time.Second,
		4:  5 * time.Second,
		10: 5 * time.Second,
	} {
		if got := p.Backoff(attempt); got != want {
			t.Errorf("Backoff(%d) = %s, want %s", attempt, got, want)
		}
	}
}
