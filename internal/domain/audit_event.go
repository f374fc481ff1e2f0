package domain

import (
	"encoding/json"
	"time"
)

type AuditOutcome string

const (
	AuditOutcomeSuccess AuditOutcome = "success"
	AuditOutcomeAllow   AuditOutcome = "allow"
	AuditOutcomeDeny    AuditOutcome = "deny"
	AuditOutcomeFailure AuditOutcome = "failure"
)

const (
	AuditActionLogin           = "auth.login"
	AuditActionRefresh         = "auth.refresh"
	AuditActionLogout          = "auth.logout"
	AuditActionTokenRejected   = "auth.token_rejected"
	AuditActionAuthorize       = "authz.check"
	AuditActionTenantResolve   = "tenant.resolve"
	AuditActionTenantCreate    = "tenant.create"
	AuditActionTenantStatus    = "tenant.status"
	AuditActionProvision       = "tenant.provision"
	AuditActionProvisionFailed = "tenant.provision_failed"
	AuditActionDeprovision     = "tenant.deprovision"
	AuditActionRoleChange      = "role.change"
	AuditActionOverrideChange  = "override.change"
	AuditActionUpstreamFailure = "gateway.upstream_failure"
)

// AuditEvent is one entry of the audit trail. TenantID is empty for
// platform scope.
type AuditEvent struct {
	ID          string          `gorm:"primaryKey;type:uuid" json:"id"`
	TenantID    string          `gorm:"type:text;index" json:"tenant_id,omitempty"`
	TenantSlug  string          `gorm:"type:text" json:"tenant_slug,omitempty"`
	PrincipalID string          `gorm:"type:text" json:"principal_id,omitempty"`
	Action      string          `gorm:"type:text;not null" json:"action"`
	Outcome     AuditOutcome    `gorm:"type:text;not null" json:"outcome"`
	ErrorCode   string          `gorm:"type:text" json:"error_code,omitempty"`
	Reason      string          `gorm:"type:text" json:"reason,omitempty"`
	Method      string          `gorm:"type:text" json:"method,omitempty"`
	Path        string          `gorm:"type:text" json:"path,omitempty"`
	RemoteIP    string          `gorm:"type:text" json:"remote_ip,omitempty"`
	Metadata    json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Timestamp   time.Time       `gorm:"type:timestamp with time zone;not null;default:CURRENT_TIMESTAMP;index" json:"timestamp"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}

type AuditEventFilter struct {
	TenantID    string    `json:"tenant_id"`
	PrincipalID string    `json:"principal_id"`
	Action      string    `json:"action"`
	Outcome     string    `json:"outcome"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Limit       int       `json:"limit"`
	Offset      int       `json:"offset"`
}
