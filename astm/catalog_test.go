package astm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogLookup(t *testing.T) {
	c := NewCatalog(nil)
	assert.Equal(t, "Glucosa", c.Lookup("767"))
	assert.Equal(t, "Fósforo", c.Lookup("890"))
	assert.Contains(t, c.Lookup("999"), "999")
	assert.True(t, c.Known("767"))
	assert.False(t, c.Known("999"))
	assert.Equal(t, len(defaultTests), c.Len())
}

func TestCatalogOverrides(t *testing.T) {
	c := NewCatalog(map[string]string{"767": "Glucose", "999": "Lactate"})
	assert.Equal(t, "Glucose", c.Lookup("767"))
	assert.Equal(t, "Lactate", c.Lookup("999"))
	// The built in table is untouched.
	assert.Equal(t, "Glucosa", defaultTests["767"])
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	require.NoError(t, os.WriteFile(path, []byte("[tests]\n\"999\" = \"Lactato\"\n\"780\" = \"BUN\"\n"), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, "Lactato", c.Lookup("999"))
	assert.Equal(t, "BUN", c.Lookup("780"))
	assert.Equal(t, "Glucosa", c.Lookup("767"))

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
