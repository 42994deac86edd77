package bundles

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeBundleDB creates a bundle database fixture with a pwv null-split
// column, as the external bundling stage produces it.
func writeBundleDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundles.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE bundles (ctime INTEGER, bundle_id INTEGER, pwv TEXT)`)
	require.NoError(t, err)
	for _, row := range []struct {
		ctime    int64
		bundleID int
		pwv      string
	}{
		{100, 0, "pwv_low"},
		{200, 0, "pwv_high"},
		{300, 0, "pwv_low"},
		{400, 1, "pwv_low"},
	} {
		_, err = db.Exec(`INSERT INTO bundles VALUES (?, ?, ?)`,
			row.ctime, row.bundleID, row.pwv)
		require.NoError(t, err)
	}
	return path
}

func TestCtimes(t *testing.T) {
	db, err := Open(writeBundleDB(t))
	require.NoError(t, err)
	defer db.Close()

	all, err := db.Ctimes(0, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{100, 200, 300}, all)

	low, err := db.Ctimes(0, "pwv_low")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{100, 300}, low)

	other, err := db.Ctimes(1, "pwv_low")
	require.NoError(t, err)
	assert.Equal(t, []int64{400}, other)

	empty, err := db.Ctimes(7, "")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCtimesInvalidProperty(t *testing.T) {
	db, err := Open(writeBundleDB(t))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Ctimes(0, "pwv; DROP TABLE bundles")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid null-split property")
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestNullPropCol(t *testing.T) {
	assert.Equal(t, "pwv", nullPropCol("pwv_low"))
	assert.Equal(t, "elevation", nullPropCol("elevation_high"))
	assert.Equal(t, "full", nullPropCol("full"))
}
