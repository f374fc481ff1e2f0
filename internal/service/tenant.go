package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/kingrain94/tenant-platform/internal/api/dto"
	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/provisioning"
	"github.com/kingrain94/tenant-platform/internal/repository"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

const (
	defaultPlan         = "basic"
	defaultMaxUsers     = 10
	defaultMaxStorageMB = 1024
)

//go:generate mockery --name Provisioner --output ../mocks
type Provisioner interface {
	Provision(ctx context.Context, tenantID, schemaName string) ([]provisioning.ServiceOutcome, error)
	Verify(ctx context.Context, schemaName string) (*provisioning.VerifyReport, error)
}

// Auditor records audit events without failing the caller.
type Auditor interface {
	Record(ctx context.Context, event *domain.AuditEvent)
}

// TenantService runs the tenant lifecycle. Status changes go through the
// cached directory so they invalidate resolver lookups right away.
type TenantService struct {
	tenants          repository.TenantRepository
	provisioner      Provisioner
	sqsSvc           SQSService
	auditor          Auditor
	logger           *logger.Logger
	defaultRateLimit int
}

func NewTenantService(
	tenants repository.TenantRepository,
	provisioner Provisioner,
	sqsSvc SQSService,
	auditor Auditor,
	logger *logger.Logger,
	defaultRateLimit int,
) *TenantService {
	return &TenantService{
		tenants:          tenants,
		provisioner:      provisioner,
		sqsSvc:           sqsSvc,
		auditor:          auditor,
		logger:           logger,
		defaultRateLimit: defaultRateLimit,
	}
}

// Create stores a tenant in the provisioning state and queues its schema
// for the provision worker. A failure to queue is logged; the operator can
// still run Initialize.
func (s *TenantService) Create(ctx context.Context, req dto.CreateTenantRequest) (*domain.Tenant, error) {
	tenant := req.ToTenant()
	if !domain.ValidSlug(tenant.Slug) {
		return nil, domain.NewError(domain.CodeInvalidRequest, "invalid tenant slug %q", req.Slug)
	}
	if tenant.Plan == "" {
		tenant.Plan = defaultPlan
	}
	if tenant.MaxUsers == 0 {
		tenant.MaxUsers = defaultMaxUsers
	}
	if tenant.MaxStorageMB == 0 {
		tenant.MaxStorageMB = defaultMaxStorageMB
	}
	if tenant.RateLimit == 0 {
		tenant.RateLimit = s.defaultRateLimit
	}

	created, err := s.tenants.Create(ctx, tenant)
	if err != nil {
		return nil, err
	}

	if err := s.sqsSvc.SendProvisionMessage(ctx, created.ID, created.SchemaName); err != nil {
		s.logger.Warn("failed to queue tenant provisioning", zap.String("tenant_id", created.ID), zap.Error(err))
	}

	s.audit(ctx, created, domain.AuditActionTenantCreate, "")
	return created, nil
}

func (s *TenantService) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	return s.tenants.GetByID(ctx, id)
}

func (s *TenantService) List(ctx context.Context, filter domain.TenantFilter) ([]domain.Tenant, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	filter.Limit = filter.PageSize
	filter.Offset = (filter.Page - 1) * filter.PageSize

	return s.tenants.List(ctx, filter)
}

func (s *TenantService) Suspend(ctx context.Context, id string) (*domain.Tenant, error) {
	return s.transition(ctx, id, domain.TenantStatusActive, domain.TenantStatusSuspended)
}

func (s *TenantService) Activate(ctx context.Context, id string) (*domain.Tenant, error) {
	return s.transition(ctx, id, domain.TenantStatusSuspended, domain.TenantStatusActive)
}

// Delete marks the tenant deleted, which is terminal, then queues the
// schema teardown and the audit archive.
func (s *TenantService) Delete(ctx context.Context, id string) (*domain.Tenant, error) {
	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	deleted, err := s.transition(ctx, id, tenant.Status, domain.TenantStatusDeleted)
	if err != nil {
		return nil, err
	}

	if err := s.sqsSvc.SendArchiveMessage(ctx, id); err != nil {
		s.logger.Warn("failed to queue audit archive", zap.String("tenant_id", id), zap.Error(err))
	}
	if err := s.sqsSvc.SendDeprovisionMessage(ctx, id); err != nil {
		s.logger.Warn("failed to queue tenant deprovisioning", zap.String("tenant_id", id), zap.Error(err))
	}
	return deleted, nil
}

func (s *TenantService) transition(ctx context.Context, id string, from, to domain.TenantStatus) (*domain.Tenant, error) {
	if !domain.CanTransition(from, to) {
		return nil, domain.NewError(domain.CodeInvalidTransition, "tenant cannot move from %s to %s", from, to)
	}
	tenant, err := s.tenants.UpdateStatus(ctx, id, from, to)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, tenant, domain.AuditActionTenantStatus, string(from)+"->"+string(to))
	return tenant, nil
}

// Initialize provisions the tenant schema synchronously. A tenant whose
// earlier provisioning failed is moved back to provisioning first.
func (s *TenantService) Initialize(ctx context.Context, id, schemaName string) (*dto.InitializeTenantResponse, error) {
	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tenant.Status == domain.TenantStatusFailed {
		if tenant, err = s.transition(ctx, id, domain.TenantStatusFailed, domain.TenantStatusProvisioning); err != nil {
			return nil, err
		}
	}

	outcomes, perr := s.provisioner.Provision(ctx, id, schemaName)

	resp := &dto.InitializeTenantResponse{
		TenantID:   id,
		SchemaName: schemaName,
		Status:     string(tenant.Status),
		Services:   outcomes,
	}
	if current, err := s.tenants.GetByID(ctx, id); err == nil {
		resp.Status = string(current.Status)
	}
	return resp, perr
}

// VerifySchema compares the tenant schema with the manifests.
func (s *TenantService) VerifySchema(ctx context.Context, id string) (*provisioning.VerifyReport, error) {
	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.provisioner.Verify(ctx, tenant.SchemaName)
}

func (s *TenantService) audit(ctx context.Context, tenant *domain.Tenant, action, reason string) {
	if s.auditor == nil {
		return
	}
	event := &domain.AuditEvent{
		TenantID:   tenant.ID,
		TenantSlug: tenant.Slug,
		Action:     action,
		Outcome:    domain.AuditOutcomeSuccess,
		Reason:     reason,
	}
	if subject, err := subjectFrom(ctx); err == nil {
		event.PrincipalID = subject.PrincipalID
	}
	s.auditor.Record(ctx, event)
}
