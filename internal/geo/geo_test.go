package geo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableResolver(t *testing.T) {
	r := NewTableResolver()
	require.NoError(t, r.Add("5.18.0.0/16", "ru"))
	require.NoError(t, r.Add("8.8.8.8", "US"))

	t.Run("range match", func(t *testing.T) {
		assert.Equal(t, "RU", r.Country("5.18.44.1"))
	})

	t.Run("single address match after folding", func(t *testing.T) {
		assert.Equal(t, "US", r.Country("::ffff:8.8.8.8"))
	})

	t.Run("unresolved yields empty", func(t *testing.T) {
		assert.Equal(t, "", r.Country("192.168.1.1"))
		assert.Equal(t, "", r.Country("not-an-ip"))
	})

	t.Run("rejects bad input", func(t *testing.T) {
		assert.Error(t, r.Add("garbage", "US"))
		assert.Error(t, r.Add("1.2.3.0/24", "USA"))
	})
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geo.tbl")
	content := "# curated ranges\n5.18.0.0/16 RU\n\nbroken-line\n203.0.113.0/24 AU\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	r, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, "RU", r.Country("5.18.1.1"))
	assert.Equal(t, "AU", r.Country("203.0.113.9"))
	assert.Equal(t, "", r.Country("10.0.0.1"))
}

func TestDisabled(t *testing.T) {
	assert.Equal(t, "", Disabled{}.Country("8.8.8.8"))
}

func TestValidCountryCode(t *testing.T) {
	assert.True(t, ValidCountryCode("US"))
	assert.False(t, ValidCountryCode("us"))
	assert.False(t, ValidCountryCode("USA"))
	assert.False(t, ValidCountryCode(""))
}
