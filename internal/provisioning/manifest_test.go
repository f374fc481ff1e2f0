package provisioning

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableSpec_CreateSQL(t *testing.T) {
	var items TableSpec
	for _, m := range DefaultManifests() {
		for _, tbl := range m.Tables {
			if tbl.Name == "order_items" {
				items = tbl
			}
		}
	}

	sql := items.CreateSQL(acmeSchema)

	assert.Contains(t, sql, `CREATE TABLE IF NOT EXISTS "tenant_acme"."order_items"`)
	assert.Contains(t, sql, `"order_id" uuid NOT NULL REFERENCES "tenant_acme"."orders" ("id") ON DELETE CASCADE`)
	assert.Contains(t, sql, `PRIMARY KEY ("id")`)
	assert.Equal(t, `DROP TABLE IF EXISTS "tenant_acme"."order_items" CASCADE`, items.DropSQL(acmeSchema))
}

func TestDefaultManifests_TablesAreUnique(t *testing.T) {
	seen := make(map[string]string)
	for _, m := range DefaultManifests() {
		assert.NotEmpty(t, m.Tables, m.Service)
		for _, tbl := range m.Tables {
			owner, dup := seen[tbl.Name]
			assert.False(t, dup, "table %s declared by %s and %s", tbl.Name, owner, m.Service)
			seen[tbl.Name] = m.Service
		}
	}
}

func TestValidSchemaName(t *testing.T) {
	assert.True(t, ValidSchemaName("tenant_acme"))
	assert.True(t, ValidSchemaName("tenant_big_co_2"))
	assert.False(t, ValidSchemaName("public"))
	assert.False(t, ValidSchemaName("tenant_"))
	assert.False(t, ValidSchemaName("Tenant_Acme"))
	assert.False(t, ValidSchemaName(`tenant_a"b`))
	assert.True(t, ValidSchemaName("tenant_"+strings.Repeat("a", 56)))
	assert.False(t, ValidSchemaName("tenant_"+strings.Repeat("a", 57)))
}
