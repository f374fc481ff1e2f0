package domain

type TenantSource string

const (
	TenantSourceHeader    TenantSource = "header"
	TenantSourcePath      TenantSource = "path"
	TenantSourceSubdomain TenantSource = "subdomain"
	TenantSourceNone      TenantSource = "none"
)

// TenantContext is the resolved tenant of one request. The zero TenantID
// means platform scope.
type TenantContext struct {
	TenantID   string       `json:"tenant_id,omitempty"`
	Slug       string       `json:"tenant_slug,omitempty"`
	SchemaName string       `json:"schema_name,omitempty"`
	Source     TenantSource `json:"source"`
}

func PlatformContext() TenantContext {
	return TenantContext{Source: TenantSourceNone}
}

func NewTenantContext(t *Tenant, source TenantSource) TenantContext {
	return TenantContext{
		TenantID:   t.ID,
		Slug:       t.Slug,
		SchemaName: t.SchemaName,
		Source:     source,
	}
}

func (tc TenantContext) IsPlatform() bool {
	return tc.TenantID == ""
}

// SameTenant compares two contexts ignoring which signal produced them.
func (tc TenantContext) SameTenant(other TenantContext) bool {
	return tc.TenantID == other.TenantID && tc.Slug == other.Slug && tc.SchemaName == other.SchemaName
}
