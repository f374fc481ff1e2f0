package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/kingrain94/tenant-platform/internal/config"
	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/provisioning"
	"github.com/kingrain94/tenant-platform/internal/service/queue"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

type TenantLoader interface {
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
}

//go:generate mockery --name TenantProvisioner --output ../mocks
type TenantProvisioner interface {
	ProvisionWithRetry(ctx context.Context, tenantID, schemaName string) ([]provisioning.ServiceOutcome, error)
	Deprovision(ctx context.Context, tenant *domain.Tenant) error
}

// ProvisionWorker consumes the tenant lifecycle queue: it builds the schema
// of new tenants and drops the schema of deleted ones.
type ProvisionWorker struct {
	*poller
	tenants     TenantLoader
	provisioner TenantProvisioner
}

func NewProvisionWorker(
	sqsService *queue.SQSService,
	tenants TenantLoader,
	provisioner TenantProvisioner,
	logger *logger.Logger,
	cfg *config.WorkerConfig,
) *ProvisionWorker {
	return newProvisionWorker(sqsService, sqsService.LifecycleQueueURL(), tenants, provisioner, logger, cfg)
}

func newProvisionWorker(q MessageQueue, queueURL string, tenants TenantLoader, provisioner TenantProvisioner, logger *logger.Logger, cfg *config.WorkerConfig) *ProvisionWorker {
	w := &ProvisionWorker{tenants: tenants, provisioner: provisioner}
	w.poller = newPoller("provision", q, queueURL, cfg, logger, w.processMessage,
		queue.MessageTypeProvision, queue.MessageTypeDeprovision)
	return w
}

func (w *ProvisionWorker) processMessage(ctx context.Context, msg queue.Message) error {
	switch msg.Type {
	case queue.MessageTypeProvision:
		return w.provision(ctx, msg)
	default:
		return w.deprovision(ctx, msg)
	}
}

func (w *ProvisionWorker) provision(ctx context.Context, msg queue.Message) error {
	w.logger.Info("provisioning tenant schema", zap.String("tenant_id", msg.TenantID), zap.String("schema", msg.SchemaName))

	outcomes, err := w.provisioner.ProvisionWithRetry(ctx, msg.TenantID, msg.SchemaName)
	if err != nil {
		return err
	}

	tables := 0
	for _, o := range outcomes {
		tables += len(o.TablesCreated)
	}
	w.logger.Info("tenant schema provisioned",
		zap.String("tenant_id", msg.TenantID),
		zap.Int("services", len(outcomes)),
		zap.Int("tables_created", tables),
	)
	return nil
}

func (w *ProvisionWorker) deprovision(ctx context.Context, msg queue.Message) error {
	tenant, err := w.tenants.GetByID(ctx, msg.TenantID)
	if err != nil {
		return err
	}

	if err := w.provisioner.Deprovision(ctx, tenant); err != nil {
		return err
	}
	w.logger.Info("tenant deprovisioned", zap.String("tenant_id", tenant.ID), zap.String("schema", tenant.SchemaName))
	return nil
}
