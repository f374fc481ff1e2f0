package provisioning

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/repository"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

const cleanupTimeout = 30 * time.Second

var schemaNamePattern = regexp.MustCompile(`^tenant_[a-z0-9_]{1,56}$`)

func ValidSchemaName(name string) bool {
	return schemaNamePattern.MatchString(name)
}

// Auditor receives provisioning events for the audit trail.
type Auditor interface {
	Record(ctx context.Context, event *domain.AuditEvent)
}

type ServiceOutcome struct {
	Service       string                `json:"service"`
	Status        domain.RegistryStatus `json:"status"`
	TablesCreated []string              `json:"tables_created"`
	Error         string                `json:"error,omitempty"`
}

type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Backoff returns the wait after the given failed attempt (1-based):
// BaseBackoff doubled per attempt, capped at MaxBackoff.
func (r RetryPolicy) Backoff(attempt int) time.Duration {
	d := r.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if r.MaxBackoff > 0 && d >= r.MaxBackoff {
			return r.MaxBackoff
		}
	}
	if r.MaxBackoff > 0 && d > r.MaxBackoff {
		return r.MaxBackoff
	}
	return d
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseBackoff: 2 * time.Second, MaxBackoff: time.Minute}
}

type Provisioner struct {
	store     Store
	manifests []Manifest
	tenants   repository.TenantRepository
	registry  repository.SchemaRegistryRepository
	auditor   Auditor
	metrics   *Metrics
	policy    RetryPolicy
	logger    *logger.Logger
	locks     *keyedMutex
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

type Option func(*Provisioner)

func WithManifests(manifests []Manifest) Option {
	return func(p *Provisioner) { p.manifests = manifests }
}

func WithAuditor(a Auditor) Option {
	return func(p *Provisioner) { p.auditor = a }
}

func WithMetrics(m *Metrics) Option {
	return func(p *Provisioner) { p.metrics = m }
}

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(p *Provisioner) { p.policy = policy }
}

func NewProvisioner(
	store Store,
	tenants repository.TenantRepository,
	registry repository.SchemaRegistryRepository,
	log *logger.Logger,
	opts ...Option,
) *Provisioner {
	p := &Provisioner{
		store:     store,
		manifests: DefaultManifests(),
		tenants:   tenants,
		registry:  registry,
		policy:    DefaultRetryPolicy(),
		logger:    log,
		locks:     newKeyedMutex(),
		sleep:     sleepContext,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// detached keeps values of ctx but survives its cancellation, so failure
// bookkeeping still lands when the caller has gone away.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

// Provision makes sure schemaName exists and holds every table of every
// manifest. It only creates what is missing, so running it again on a
// provisioned tenant changes nothing. The tenant becomes active once every
// owning service is recorded as provisioned.
func (p *Provisioner) Provision(ctx context.Context, tenantID, schemaName string) ([]ServiceOutcome, error) {
	if !ValidSchemaName(schemaName) {
		return nil, domain.NewError(domain.CodeInvalidRequest, "invalid schema name %q", schemaName)
	}

	tenant, err := p.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant.SchemaName != schemaName {
		return nil, domain.NewError(domain.CodeInvalidRequest, "schema %q does not belong to tenant %s", schemaName, tenantID)
	}
	if tenant.Status != domain.TenantStatusProvisioning && tenant.Status != domain.TenantStatusActive {
		return nil, domain.NewError(domain.CodeInvalidTransition, "tenant %s is %s and cannot be provisioned", tenantID, tenant.Status)
	}

	started := p.now()
	outcomes, err := p.provision(ctx, tenant)
	if err != nil {
		p.metrics.observe("error", started)
		return outcomes, err
	}
	p.metrics.observe("success", started)

	if err := p.activate(ctx, tenant); err != nil {
		return outcomes, err
	}

	p.audit(ctx, &domain.AuditEvent{
		TenantID:   tenant.ID,
		TenantSlug: tenant.Slug,
		Action:     domain.AuditActionProvision,
		Outcome:    domain.AuditOutcomeSuccess,
	})
	return outcomes, nil
}

type attempt struct {
	schemaCreated bool
	tables        []TableSpec
}

func (p *Provisioner) provision(ctx context.Context, tenant *domain.Tenant) ([]ServiceOutcome, error) {
	schema := tenant.SchemaName
	log := p.logger.With(zap.String("tenant_id", tenant.ID), zap.String("schema", schema))

	unlock := p.locks.Lock(schema)
	defer unlock()

	session, err := p.store.Acquire(ctx, schema)
	if err != nil {
		return nil, domain.WrapError(domain.CodeSchemaProvisionFailure, "failed to lock schema", err)
	}
	defer session.Release()

	previous, err := p.registry.ListByTenant(ctx, tenant.ID)
	if err != nil {
		return nil, domain.WrapError(domain.CodeSchemaProvisionFailure, "failed to read schema registry", err)
	}

	var (
		done          attempt
		failure       error
		failedService string
	)

	present := make(map[string]bool)
	exists, err := session.SchemaExists(ctx)
	if err != nil {
		failure = err
	} else if !exists {
		if err := session.CreateSchema(ctx); err != nil {
			failure = err
		} else {
			done.schemaCreated = true
			log.Info("created tenant schema")
		}
	} else {
		tables, err := session.Tables(ctx)
		if err != nil {
			failure = err
		}
		for _, t := range tables {
			present[t] = true
		}
	}

	outcomes := make([]ServiceOutcome, 0, len(p.manifests))
	for _, m := range p.manifests {
		out := ServiceOutcome{Service: m.Service, Status: domain.RegistryStatusSuccess, TablesCreated: []string{}}
		if failure != nil {
			out.Status = domain.RegistryStatusPending
			outcomes = append(outcomes, out)
			continue
		}
		for _, t := range m.Tables {
			if present[t.Name] {
				continue
			}
			if err := session.CreateTable(ctx, t); err != nil {
				failure = err
				failedService = m.Service
				break
			}
			present[t.Name] = true
			done.tables = append(done.tables, t)
			out.TablesCreated = append(out.TablesCreated, t.Name)
		}
		outcomes = append(outcomes, out)
	}

	if failure == nil {
		if err := p.record(ctx, tenant, outcomes, previous); err != nil {
			return outcomes, domain.WrapError(domain.CodeSchemaProvisionFailure, "failed to record provisioning", err)
		}
		log.Info("tenant schema provisioned", zap.Int("tables_created", len(done.tables)))
		return outcomes, nil
	}

	cleanupCtx, cancel := detached(ctx)
	defer cancel()

	rollbackErr := p.rollback(cleanupCtx, session, done)
	for _, t := range done.tables {
		delete(present, t.Name)
	}

	for i, m := range p.manifests {
		outcomes[i].TablesCreated = []string{}
		switch {
		case failedService == "" || m.Service == failedService:
			outcomes[i].Status = domain.RegistryStatusFailed
			outcomes[i].Error = failure.Error()
		case allPresent(m, present):
			outcomes[i].Status = domain.RegistryStatusSuccess
		default:
			outcomes[i].Status = domain.RegistryStatusPending
		}
	}

	recordErr := p.record(cleanupCtx, tenant, outcomes, previous)
	err = multierr.Combine(failure, rollbackErr, recordErr)
	log.Error("tenant schema provisioning failed", err, zap.String("service", failedService))

	return outcomes, &domain.Error{
		Code:    domain.CodeSchemaProvisionFailure,
		Message: fmt.Sprintf("provisioning %s failed", schema),
		Err:     err,
	}
}

// rollback drops what this attempt created, newest first. Objects that were
// already there before the attempt are never touched.
func (p *Provisioner) rollback(ctx context.Context, session Session, done attempt) error {
	var err error
	if done.schemaCreated {
		return session.DropSchema(ctx)
	}
	for i := len(done.tables) - 1; i >= 0; i-- {
		err = multierr.Append(err, session.DropTable(ctx, done.tables[i]))
	}
	return err
}

func allPresent(m Manifest, present map[string]bool) bool {
	for _, t := range m.Tables {
		if !present[t.Name] {
			return false
		}
	}
	return true
}

func (p *Provisioner) record(ctx context.Context, tenant *domain.Tenant, outcomes []ServiceOutcome, previous []domain.SchemaRegistryEntry) error {
	prev := make(map[string]domain.SchemaRegistryEntry, len(previous))
	for _, e := range previous {
		prev[e.Service] = e
	}

	now := p.now()
	var err error
	for i, out := range outcomes {
		old := prev[out.Service]
		entry := &domain.SchemaRegistryEntry{
			TenantID:       tenant.ID,
			Service:        out.Service,
			SchemaName:     tenant.SchemaName,
			ExpectedTables: p.manifests[i].TableNames(),
			Status:         out.Status,
			Attempts:       old.Attempts + 1,
			LastError:      out.Error,
			ProvisionedAt:  old.ProvisionedAt,
			UpdatedAt:      now,
		}
		if out.Status == domain.RegistryStatusSuccess && entry.ProvisionedAt == nil {
			entry.ProvisionedAt = &now
		}
		if out.Status != domain.RegistryStatusSuccess {
			entry.ProvisionedAt = nil
		}
		err = multierr.Append(err, p.registry.Upsert(ctx, entry))
	}
	return err
}

func (p *Provisioner) activate(ctx context.Context, tenant *domain.Tenant) error {
	if tenant.Status != domain.TenantStatusProvisioning {
		return nil
	}

	entries, err := p.registry.ListByTenant(ctx, tenant.ID)
	if err != nil {
		return domain.WrapError(domain.CodeSchemaProvisionFailure, "failed to read schema registry", err)
	}
	if !domain.AllServicesProvisioned(entries) {
		return domain.NewError(domain.CodeSchemaProvisionFailure, "not every service of tenant %s is provisioned", tenant.ID)
	}

	updated, err := p.tenants.UpdateStatus(ctx, tenant.ID, domain.TenantStatusProvisioning, domain.TenantStatusActive)
	if err != nil {
		return err
	}
	*tenant = *updated
	p.logger.Info("tenant activated", zap.String("tenant_id", tenant.ID))
	return nil
}

// ProvisionWithRetry runs Provision until it succeeds or the retry policy is
// exhausted, waiting with exponential backoff in between. Errors other than
// SchemaProvisionFailure are returned at once. On exhaustion the tenant is
// marked failed and the operator is alerted.
func (p *Provisioner) ProvisionWithRetry(ctx context.Context, tenantID, schemaName string) ([]ServiceOutcome, error) {
	maxAttempts := p.policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		outcomes []ServiceOutcome
		err      error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		outcomes, err = p.Provision(ctx, tenantID, schemaName)
		if err == nil {
			return outcomes, nil
		}
		if !errors.Is(err, domain.ErrSchemaProvisionFailure) {
			return outcomes, err
		}
		if attempt == maxAttempts {
			break
		}

		delay := p.policy.Backoff(attempt)
		p.logger.Warn("provisioning attempt failed, retrying",
			zap.String("tenant_id", tenantID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if serr := p.sleep(ctx, delay); serr != nil {
			return outcomes, multierr.Append(err, serr)
		}
	}

	p.markFailed(ctx, tenantID, schemaName, maxAttempts, err)
	return outcomes, err
}

func (p *Provisioner) markFailed(ctx context.Context, tenantID, schemaName string, attempts int, cause error) {
	ctx, cancel := detached(ctx)
	defer cancel()

	p.metrics.count("failed")
	p.logger.Error("ALERT: tenant provisioning exhausted its retries", cause,
		zap.String("tenant_id", tenantID),
		zap.String("schema", schemaName),
		zap.Int("attempts", attempts),
		zap.Bool("alert", true),
	)

	slug := ""
	if updated, err := p.tenants.UpdateStatus(ctx, tenantID, domain.TenantStatusProvisioning, domain.TenantStatusFailed); err != nil {
		p.logger.Error("failed to mark tenant failed", err, zap.String("tenant_id", tenantID))
	} else {
		slug = updated.Slug
	}

	p.audit(ctx, &domain.AuditEvent{
		TenantID:   tenantID,
		TenantSlug: slug,
		Action:     domain.AuditActionProvisionFailed,
		Outcome:    domain.AuditOutcomeFailure,
		ErrorCode:  string(domain.CodeSchemaProvisionFailure),
		Reason:     cause.Error(),
	})
}

type ServiceDiff struct {
	Service  string   `json:"service"`
	Expected []string `json:"expected"`
	Missing  []string `json:"missing"`
}

// VerifyReport compares a schema with the manifests. Drift is data, not an
// error: Verify only fails when the schema cannot be read.
type VerifyReport struct {
	SchemaName   string        `json:"schema_name"`
	SchemaExists bool          `json:"schema_exists"`
	Services     []ServiceDiff `json:"services"`
	Extra        []string      `json:"extra"`
	Complete     bool          `json:"complete"`
}

func (p *Provisioner) Verify(ctx context.Context, schemaName string) (*VerifyReport, error) {
	if !ValidSchemaName(schemaName) {
		return nil, domain.NewError(domain.CodeInvalidRequest, "invalid schema name %q", schemaName)
	}

	exists, tables, err := p.store.ListTables(ctx, schemaName)
	if err != nil {
		return nil, domain.WrapError(domain.CodeInternal, "failed to inspect schema", err)
	}

	present := make(map[string]bool, len(tables))
	for _, t := range tables {
		present[t] = true
	}

	report := &VerifyReport{SchemaName: schemaName, SchemaExists: exists, Extra: []string{}, Complete: exists}
	declared := make(map[string]bool)
	for _, m := range p.manifests {
		diff := ServiceDiff{Service: m.Service, Expected: m.TableNames(), Missing: []string{}}
		for _, t := range m.Tables {
			declared[t.Name] = true
			if !present[t.Name] {
				diff.Missing = append(diff.Missing, t.Name)
				report.Complete = false
			}
		}
		report.Services = append(report.Services, diff)
	}
	for _, t := range tables {
		if !declared[t] {
			report.Extra = append(report.Extra, t)
		}
	}
	sort.Strings(report.Extra)

	return report, nil
}

// Deprovision drops the schema of a deleted tenant and forgets its registry
// entries.
func (p *Provisioner) Deprovision(ctx context.Context, tenant *domain.Tenant) error {
	if tenant.Status != domain.TenantStatusDeleted {
		return domain.NewError(domain.CodeInvalidTransition, "tenant %s is %s, only deleted tenants are deprovisioned", tenant.ID, tenant.Status)
	}
	if !ValidSchemaName(tenant.SchemaName) {
		return domain.NewError(domain.CodeInvalidRequest, "invalid schema name %q", tenant.SchemaName)
	}

	unlock := p.locks.Lock(tenant.SchemaName)
	defer unlock()

	session, err := p.store.Acquire(ctx, tenant.SchemaName)
	if err != nil {
		return domain.WrapError(domain.CodeSchemaProvisionFailure, "failed to lock schema", err)
	}
	defer session.Release()

	if err := session.DropSchema(ctx); err != nil {
		return domain.WrapError(domain.CodeSchemaProvisionFailure, "failed to drop schema", err)
	}
	if err := p.registry.DeleteByTenant(ctx, tenant.ID); err != nil {
		return fmt.Errorf("failed to clear schema registry: %w", err)
	}

	p.metrics.count("deprovisioned")
	p.logger.Info("tenant schema dropped", zap.String("tenant_id", tenant.ID), zap.String("schema", tenant.SchemaName))
	p.audit(ctx, &domain.AuditEvent{
		TenantID:   tenant.ID,
		TenantSlug: tenant.Slug,
		Action:     domain.AuditActionDeprovision,
		Outcome:    domain.AuditOutcomeSuccess,
	})
	return nil
}

func (p *Provisioner) audit(ctx context.Context, event *domain.AuditEvent) {
	if p.auditor == nil {
		return
	}
	p.auditor.Record(ctx, event)
}
