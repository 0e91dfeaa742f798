// AngelaMos | 2026
// embed_test.go

package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(files, "sql")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file %s", name)
		}
	}

	assert.Equal(t, ups, downs)
}

func TestInitMigrationCarriesGuards(t *testing.T) {
	body, err := fs.ReadFile(files, "sql/000001_init.up.sql")
	require.NoError(t, err)

	schema := string(body)
	assert.Contains(t, schema, "CHECK (xp >= 0)")
	assert.Contains(t, schema, "PRIMARY KEY (user_id, question_id, hint_index)")
	assert.Contains(t, schema, "PRIMARY KEY (code_id, user_id)")
	assert.Contains(t, schema, "WHERE status = 'PENDING'")
	assert.Contains(t, schema, "current_redemptions <= max_redemptions")
}
