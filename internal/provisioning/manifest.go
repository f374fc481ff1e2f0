package provisioning

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"
)

// Owning services. Each one declares the tables it needs in every tenant
// schema.
const (
	ServiceAuth      = "auth"
	ServiceOrders    = "orders"
	ServiceInvoicing = "invoicing"
	ServiceCRM       = "crm"
)

type Reference struct {
	Table    string
	Column   string
	OnDelete string
}

type ColumnSpec struct {
	Name        string
	Type        string
	Constraints string
	References  *Reference
}

type TableSpec struct {
	Name       string
	Columns    []ColumnSpec
	PrimaryKey []string
	Unique     [][]string
}

// Manifest is the declared set of tables one owning service expects. Tables
// are created in order, so a table may reference any table listed before it.
type Manifest struct {
	Service string
	Tables  []TableSpec
}

func (m Manifest) TableNames() []string {
	names := make([]string, 0, len(m.Tables))
	for _, t := range m.Tables {
		names = append(names, t.Name)
	}
	return names
}

func qualified(schema, table string) string {
	return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(table)
}

func quoteList(names []string) string {
	quoted := make([]string, 0, len(names))
	for _, n := range names {
		quoted = append(quoted, pq.QuoteIdentifier(n))
	}
	return strings.Join(quoted, ", ")
}

// CreateSQL renders the DDL for the table inside schema. Every identifier is
// quoted; types and constraints come from the manifest only.
func (t TableSpec) CreateSQL(schema string) string {
	defs := make([]string, 0, len(t.Columns)+len(t.Unique)+1)
	for _, c := range t.Columns {
		def := pq.QuoteIdentifier(c.Name) + " " + c.Type
		if c.Constraints != "" {
			def += " " + c.Constraints
		}
		if c.References != nil {
			def += fmt.Sprintf(" REFERENCES %s (%s)",
				qualified(schema, c.References.Table), pq.QuoteIdentifier(c.References.Column))
			if c.References.OnDelete != "" {
				def += " ON DELETE " + c.References.OnDelete
			}
		}
		defs = append(defs, def)
	}
	if len(t.PrimaryKey) > 0 {
		defs = append(defs, "PRIMARY KEY ("+quoteList(t.PrimaryKey)+")")
	}
	for _, u := range t.Unique {
		defs = append(defs, "UNIQUE ("+quoteList(u)+")")
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", qualified(schema, t.Name), strings.Join(defs, ",\n\t"))
}

func (t TableSpec) DropSQL(schema string) string {
	return "DROP TABLE IF EXISTS " + qualified(schema, t.Name) + " CASCADE"
}

var (
	colID        = ColumnSpec{Name: "id", Type: "uuid", Constraints: "NOT NULL DEFAULT gen_random_uuid()"}
	colCreatedAt = ColumnSpec{Name: "created_at", Type: "timestamp with time zone", Constraints: "NOT NULL DEFAULT CURRENT_TIMESTAMP"}
	colUpdatedAt = ColumnSpec{Name: "updated_at", Type: "timestamp with time zone", Constraints: "NOT NULL DEFAULT CURRENT_TIMESTAMP"}
)

// DefaultManifests returns the manifests of every owning service. The auth
// tables mirror the gorm models in internal/domain.
func DefaultManifests() []Manifest {
	return []Manifest{
		{
			Service: ServiceAuth,
			Tables: []TableSpec{
				{
					Name: "users",
					Columns: []ColumnSpec{
						colID,
						{Name: "tenant_id", Type: "uuid"},
						{Name: "username", Type: "text", Constraints: "NOT NULL"},
						{Name: "password_hash", Type: "text", Constraints: "NOT NULL"},
						{Name: "roles", Type: "text[]", Constraints: "NOT NULL DEFAULT '{}'"},
						{Name: "active", Type: "boolean", Constraints: "NOT NULL DEFAULT true"},
						colCreatedAt,
						colUpdatedAt,
					},
					PrimaryKey: []string{"id"},
					Unique:     [][]string{{"username"}},
				},
				{
					Name: "roles",
					Columns: []ColumnSpec{
						{Name: "name", Type: "text", Constraints: "NOT NULL"},
						{Name: "kind", Type: "text", Constraints: "NOT NULL DEFAULT 'custom'"},
						{Name: "priority", Type: "integer", Constraints: "NOT NULL DEFAULT 0"},
						{Name: "grants", Type: "text[]", Constraints: "NOT NULL DEFAULT '{}'"},
						colCreatedAt,
					},
					PrimaryKey: []string{"name"},
				},
				{
					Name: "permission_overrides",
					Columns: []ColumnSpec{
						{Name: "principal_id", Type: "uuid", Constraints: "NOT NULL",
							References: &Reference{Table: "users", Column: "id", OnDelete: "CASCADE"}},
						{Name: "permission", Type: "text", Constraints: "NOT NULL"},
						{Name: "effect", Type: "text", Constraints: "NOT NULL CHECK (effect IN ('allow', 'deny'))"},
						colCreatedAt,
					},
					PrimaryKey: []string{"principal_id", "permission"},
				},
			},
		},
		{
			Service: ServiceOrders,
			Tables: []TableSpec{
				{
					Name: "orders",
					Columns: []ColumnSpec{
						colID,
						{Name: "number", Type: "text", Constraints: "NOT NULL"},
						{Name: "customer_ref", Type: "text"},
						{Name: "status", Type: "text", Constraints: "NOT NULL DEFAULT 'draft'"},
						{Name: "total_cents", Type: "bigint", Constraints: "NOT NULL DEFAULT 0"},
						{Name: "currency", Type: "char(3)", Constraints: "NOT NULL DEFAULT 'USD'"},
						{Name: "created_by", Type: "uuid"},
						colCreatedAt,
						colUpdatedAt,
					},
					PrimaryKey: []string{"id"},
					Unique:     [][]string{{"number"}},
				},
				{
					Name: "order_items",
					Columns: []ColumnSpec{
						colID,
						{Name: "order_id", Type: "uuid", Constraints: "NOT NULL",
							References: &Reference{Table: "orders", Column: "id", OnDelete: "CASCADE"}},
						{Name: "sku", Type: "text", Constraints: "NOT NULL"},
						{Name: "quantity", Type: "integer", Constraints: "NOT NULL CHECK (quantity > 0)"},
						{Name: "unit_price_cents", Type: "bigint", Constraints: "NOT NULL"},
					},
					PrimaryKey: []string{"id"},
				},
			},
		},
		{
			Service: ServiceInvoicing,
			Tables: []TableSpec{
				{
					Name: "invoices",
					Columns: []ColumnSpec{
						colID,
						{Name: "number", Type: "text", Constraints: "NOT NULL"},
						{Name: "order_ref", Type: "uuid"},
						{Name: "status", Type: "text", Constraints: "NOT NULL DEFAULT 'draft'"},
						{Name: "total_cents", Type: "bigint", Constraints: "NOT NULL DEFAULT 0"},
						{Name: "currency", Type: "char(3)", Constraints: "NOT NULL DEFAULT 'USD'"},
						{Name: "issued_at", Type: "timestamp with time zone"},
						{Name: "due_at", Type: "timestamp with time zone"},
						colCreatedAt,
						colUpdatedAt,
					},
					PrimaryKey: []string{"id"},
					Unique:     [][]string{{"number"}},
				},
				{
					Name: "invoice_lines",
					Columns: []ColumnSpec{
						colID,
						{Name: "invoice_id", Type: "uuid", Constraints: "NOT NULL",
							References: &Reference{Table: "invoices", Column: "id", OnDelete: "CASCADE"}},
						{Name: "description", Type: "text", Constraints: "NOT NULL"},
						{Name: "quantity", Type: "integer", Constraints: "NOT NULL DEFAULT 1"},
						{Name: "amount_cents", Type: "bigint", Constraints: "NOT NULL"},
					},
					PrimaryKey: []string{"id"},
				},
			},
		},
		{
			Service: ServiceCRM,
			Tables: []TableSpec{
				{
					Name: "companies",
					Columns: []ColumnSpec{
						colID,
						{Name: "name", Type: "text", Constraints: "NOT NULL"},
						{Name: "domain", Type: "text"},
						{Name: "owner_id", Type: "uuid"},
						colCreatedAt,
						colUpdatedAt,
					},
					PrimaryKey: []string{"id"},
				},
				{
					Name: "contacts",
					Columns: []ColumnSpec{
						colID,
						{Name: "company_id", Type: "uuid",
							References: &Reference{Table: "companies", Column: "id", OnDelete: "SET NULL"}},
						{Name: "full_name", Type: "text", Constraints: "NOT NULL"},
						{Name: "email", Type: "text"},
						{Name: "phone", Type: "text"},
						colCreatedAt,
						colUpdatedAt,
					},
					PrimaryKey: []string{"id"},
				},
			},
		},
	}
}

// declaredTables returns every table name any manifest declares, sorted.
func declaredTables(manifests []Manifest) []string {
	var names []string
	for _, m := range manifests {
		names = append(names, m.TableNames()...)
	}
	sort.Strings(names)
	return names
}
