package filtering

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"atomap/internal/atomicdb"
	"atomap/internal/skymap"
)

const testNside = 8

// fixture builds a complete on-disk run environment: an atomic catalog, a
// bundle database, simulated input maps and the preprocessing metadata.
type fixture struct {
	opts Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	// Atomic catalog. obs2 has no archived metadata, obs1/ws2 has a single
	// detector; neither may produce output.
	atomicPath := filepath.Join(dir, "atomics.db")
	store, err := atomicdb.Create(atomicPath)
	require.NoError(t, err)
	for _, r := range []struct {
		obs, wafer, freq string
		ctime            int64
	}{
		{"obs1", "ws0", "f090", 100},
		{"obs1", "ws2", "f090", 100},
		{"obs2", "ws0", "f090", 200},
		{"obs3", "ws0", "f150", 100}, // other channel, never selected
	} {
		require.NoError(t, store.Insert(&atomicdb.Record{
			ObsID: r.obs, Wafer: r.wafer, FreqChannel: r.freq, Ctime: r.ctime,
			Telescope: "satp1", SplitLabel: "full",
		}))
	}
	require.NoError(t, store.Close())

	// Bundle database: bundle 0 holds both ctimes.
	bundlePath := filepath.Join(dir, "bundles.db")
	bdb, err := sql.Open("sqlite", bundlePath)
	require.NoError(t, err)
	_, err = bdb.Exec(`CREATE TABLE bundles (ctime INTEGER, bundle_id INTEGER, pwv TEXT)`)
	require.NoError(t, err)
	for _, ct := range []int64{100, 200} {
		_, err = bdb.Exec(`INSERT INTO bundles VALUES (?, 0, 'pwv_low')`, ct)
		require.NoError(t, err)
	}
	require.NoError(t, bdb.Close())

	// Uniform simulated skies for sim ids 0 and 1.
	mapDir := filepath.Join(dir, "sims")
	require.NoError(t, os.MkdirAll(mapDir, 0o755))
	for id := 0; id < 2; id++ {
		sim, err := skymap.NewHealpix(testNside)
		require.NoError(t, err)
		for p := 0; p < sim.NPixels(); p++ {
			sim.Data[0][p] = 1
			sim.Data[1][p] = 0.5
		}
		require.NoError(t, skymap.Write(
			filepath.Join(mapDir, fmt.Sprintf("pureT_sim%04d.fits", id)), sim))
	}

	// Preprocessing metadata: obs1 only.
	writeTestFile(t, filepath.Join(dir, "context.yaml"), "metadata_dir: metadata\n")
	writeTestFile(t, filepath.Join(dir, "metadata", "obs1.yaml"), `obs_id: obs1
el_deg: 50
az_deg: 180
ctime: 100
wafers:
  ws0:
    f090:
      - {name: det0, gamma_deg: 0, xi_deg: 0, eta_deg: 0}
      - {name: det1, gamma_deg: 45, xi_deg: 0.1, eta_deg: -0.1}
      - {name: det2, gamma_deg: 90, xi_deg: -0.1, eta_deg: 0.1}
  ws2:
    f090:
      - {name: lone, gamma_deg: 0, xi_deg: 0, eta_deg: 0}
`)
	writeTestFile(t, filepath.Join(dir, "preprocess.yaml"), fmt.Sprintf(
		"context_file: %s\nn_samples: 32\n", filepath.Join(dir, "context.yaml")))

	return &fixture{opts: Options{
		AtomicDB:         atomicPath,
		BundleDB:         bundlePath,
		PreprocessConfig: filepath.Join(dir, "preprocess.yaml"),
		MapDir:           mapDir,
		MapStringFormat:  "pureT_sim{sim_id:04d}.fits",
		SimIDs:           "0,1",
		OutputDir:        filepath.Join(dir, "out"),
		FreqChannel:      "f090",
		BundleID:         0,
		Nside:            testNside,
		PixType:          skymap.HP,
		Ranks:            1,
	}}
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func outputNames(t *testing.T, outDir string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(outDir, AtomicsSubdir))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestDriverRun(t *testing.T) {
	fix := newFixture(t)
	d, err := New(fix.opts, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, d.Run(context.Background()))

	// Only obs1/ws0 survives the skip policy: obs2 has no metadata and
	// obs1/ws2 degenerates to a single detector. Two sims, two files each.
	got := outputNames(t, fix.opts.OutputDir)
	assert.ElementsMatch(t, []string{
		"pureT_sim0000_obsidobs1_ws0_f090_wmap.fits",
		"pureT_sim0000_obsidobs1_ws0_f090_w.fits",
		"pureT_sim0001_obsidobs1_ws0_f090_wmap.fits",
		"pureT_sim0001_obsidobs1_ws0_f090_w.fits",
	}, got)

	// The weighted map must be readable and carry the injected signal.
	wmap, err := skymap.Read(filepath.Join(fix.opts.OutputDir, AtomicsSubdir,
		"pureT_sim0000_obsidobs1_ws0_f090_wmap.fits"), skymap.HP)
	require.NoError(t, err)
	var sum float64
	for _, v := range wmap.Data[0] {
		sum += float64(v)
	}
	assert.InDelta(t, 3*32, sum, 1e-3, "uniform T=1 sky: sum equals hit count")
}

func TestDriverRunRankSlices(t *testing.T) {
	// Two ranks must jointly produce exactly the single-rank output set.
	single := newFixture(t)
	d, err := New(single.opts, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, d.Run(context.Background()))
	want := outputNames(t, single.opts.OutputDir)

	split := newFixture(t)
	for rank := 0; rank < 2; rank++ {
		opts := split.opts
		opts.Rank = rank
		opts.Ranks = 2
		d, err := New(opts, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, d.Run(context.Background()))
	}
	assert.ElementsMatch(t, want, outputNames(t, split.opts.OutputDir))
}

func TestDriverRunNullProp(t *testing.T) {
	fix := newFixture(t)
	fix.opts.NullPropVal = "pwv_high"
	d, err := New(fix.opts, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, d.Run(context.Background()))
	assert.Empty(t, outputNames(t, fix.opts.OutputDir),
		"no bundle rows carry pwv_high")
}

func TestDriverRunAllowList(t *testing.T) {
	fix := newFixture(t)
	listPath := filepath.Join(t.TempDir(), "allow.txt")
	writeTestFile(t, listPath, "obs1 ws2 f090\n")
	fix.opts.AtomicList = listPath

	d, err := New(fix.opts, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, d.Run(context.Background()))
	assert.Empty(t, outputNames(t, fix.opts.OutputDir),
		"only the single-detector unit is allowed, and it is skipped")
}

func TestNewConfigErrors(t *testing.T) {
	fix := newFixture(t)

	bad := fix.opts
	bad.PixType = skymap.PixType("mollweide")
	_, err := New(bad, zap.NewNop())
	assert.ErrorIs(t, err, skymap.ErrUnknownPixType)

	bad = fix.opts
	bad.MapStringFormat = "no-placeholder.fits"
	_, err = New(bad, zap.NewNop())
	assert.ErrorContains(t, err, "does not contain")

	bad = fix.opts
	bad.PixType = skymap.CAR
	_, err = New(bad, zap.NewNop())
	assert.ErrorContains(t, err, "template")
}

func TestDriverRunMissingBundleDB(t *testing.T) {
	fix := newFixture(t)
	fix.opts.BundleDB = filepath.Join(t.TempDir(), "nope.db")
	d, err := New(fix.opts, zap.NewNop())
	require.NoError(t, err)
	err = d.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}
