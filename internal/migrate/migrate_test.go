package migrate

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "sql")
	require.NoError(t, err, "read embedded migrations")

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
			t.Fatalf("unexpected file %s", name)
		}
	}
	require.NotEmpty(t, ups, "no migrations embedded")
	assert.Equal(t, ups, downs, "every migration needs both an up and a down file")
}

func TestLatestLitersScaleIsThreeDecimals(t *testing.T) {
	raw, err := fs.ReadFile(migrationsFS, "sql/000002_liters_scale.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "numeric(10, 3)")
}
