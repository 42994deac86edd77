// Package filtering drives the per-rank filter-and-map loop: it resolves
// the bundle's atomic units, builds the (simulation id x atomic) task set,
// takes this rank's slice, and runs each local task through the simulated
// TOD loader and the map-maker, writing one weighted-map/weight pair per
// task.
package filtering

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"atomap/internal/atomicdb"
	"atomap/internal/bundles"
	"atomap/internal/dispatch"
	"atomap/internal/skymap"
	"atomap/internal/tod"
)

// AtomicsSubdir is where the per-task output pairs land under the output
// root.
const AtomicsSubdir = "atomics_sims"

// Options mirror the filter-sims CLI surface.
type Options struct {
	AtomicDB         string
	AtomicList       string // optional allow-list file
	BundleDB         string
	PreprocessConfig string
	MapDir           string
	MapStringFormat  string // must contain {sim_id}
	SimIDs           string // "N" or "N,M" inclusive
	OutputDir        string
	FreqChannel      string
	BundleID         int
	NullPropVal      string // optional, e.g. "pwv_low"
	Nside            int
	PixType          skymap.PixType
	CARTemplate      string
	FPThin           int // focal-plane thinning stride, 0 = off
	Rank             int
	Ranks            int // 0 = resolve from scheduler env
	Jobs             int // per-rank worker pool size, default 1
}

// Driver is one worker process of a filter run.
type Driver struct {
	opts  Options
	log   *zap.Logger
	cfg   *tod.Config
	tctx  *tod.Context
	geom  skymap.Geometry
	ranks dispatch.Ranks
}

// New validates the configuration and loads the preprocessing context.
// Configuration errors (bad pixelization, missing databases, malformed
// template) surface here, before any work begins.
func New(opts Options, log *zap.Logger) (*Driver, error) {
	if opts.PixType != skymap.HP && opts.PixType != skymap.CAR {
		return nil, skymap.ErrUnknownPixType
	}
	if _, err := MapFileName(opts.MapStringFormat, 0); err != nil {
		return nil, err
	}
	d := &Driver{opts: opts, log: log}

	if opts.PixType == skymap.CAR {
		if opts.CARTemplate == "" {
			return nil, fmt.Errorf("car pixelization requires a template map")
		}
		geom, err := skymap.ReadTemplate(opts.CARTemplate)
		if err != nil {
			return nil, err
		}
		d.geom = geom
	}

	cfg, err := tod.LoadConfig(opts.PreprocessConfig)
	if err != nil {
		return nil, err
	}
	tctx, err := tod.NewContext(cfg)
	if err != nil {
		return nil, err
	}
	d.cfg, d.tctx = cfg, tctx

	ranks, err := dispatch.ResolveRanks(opts.Rank, opts.Ranks, os.LookupEnv)
	if err != nil {
		return nil, err
	}
	d.ranks = ranks
	return d, nil
}

// Run executes this rank's share of the task set. Per-task recoverable
// failures are logged and skipped; anything else terminates the worker.
func (d *Driver) Run(ctx context.Context) error {
	for _, sub := range []string{"", "plots", AtomicsSubdir} {
		if err := os.MkdirAll(filepath.Join(d.opts.OutputDir, sub), 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	atomics, err := d.resolveAtomics()
	if err != nil {
		return err
	}
	d.log.Info("resolved atomic units",
		zap.Int("count", len(atomics)),
		zap.Int("bundle_id", d.opts.BundleID))

	simIDs, err := dispatch.ParseSimIDs(d.opts.SimIDs)
	if err != nil {
		return err
	}
	tasks := dispatch.BuildTasks(simIDs, atomics)
	lo, hi := dispatch.Split(len(tasks), d.ranks.Size, d.ranks.Rank)
	d.log.Info("task slice assigned",
		zap.Int("total", len(tasks)),
		zap.Int("rank", d.ranks.Rank),
		zap.Int("ranks", d.ranks.Size),
		zap.Int("local", hi-lo))

	jobs := d.opts.Jobs
	if jobs < 1 {
		jobs = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for _, task := range tasks[lo:hi] {
		task := task
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return d.process(task)
		})
	}
	return g.Wait()
}

// resolveAtomics is steps 1-2 of the run: bundle ctimes, then the
// deduplicated atomic-observation set, intersected with the allow-list.
func (d *Driver) resolveAtomics() ([]dispatch.Atomic, error) {
	bdb, err := bundles.Open(d.opts.BundleDB)
	if err != nil {
		return nil, err
	}
	defer bdb.Close()
	ctimes, err := bdb.Ctimes(d.opts.BundleID, d.opts.NullPropVal)
	if err != nil {
		return nil, err
	}

	var allow map[dispatch.Atomic]struct{}
	if d.opts.AtomicList != "" {
		if allow, err = dispatch.LoadAllowList(d.opts.AtomicList); err != nil {
			return nil, err
		}
	}

	adb, err := atomicdb.Open(d.opts.AtomicDB)
	if err != nil {
		return nil, err
	}
	defer adb.Close()
	var atomics []dispatch.Atomic
	for _, ct := range ctimes {
		ows, err := adb.ObsWafers(d.opts.FreqChannel, ct)
		if err != nil {
			return nil, err
		}
		for _, ow := range ows {
			atomics = append(atomics, dispatch.Atomic{
				ObsID: ow.ObsID,
				Wafer: ow.Wafer,
				Freq:  d.opts.FreqChannel,
			})
		}
	}
	return dispatch.Intersect(dispatch.Dedup(atomics), allow), nil
}

func (d *Driver) process(task dispatch.Task) error {
	start := time.Now()
	a := task.Atomic
	taskLog := d.log.With(
		zap.Int("sim_id", task.SimID),
		zap.String("obs_id", a.ObsID),
		zap.String("wafer", a.Wafer),
		zap.String("freq", a.Freq))

	mapName, err := MapFileName(d.opts.MapStringFormat, task.SimID)
	if err != nil {
		return err
	}
	sim, err := skymap.Read(filepath.Join(d.opts.MapDir, mapName), d.opts.PixType)
	if err != nil {
		taskLog.Warn("simulated map unreadable, skipping task", zap.Error(err))
		return nil
	}

	meta, err := d.tctx.Meta(a.ObsID, a.Wafer, a.Freq)
	if err != nil {
		if errors.Is(err, tod.ErrMissingMetadata) {
			taskLog.Warn("metadata is not there, skipping task", zap.Error(err))
			return nil
		}
		return err
	}
	if d.opts.FPThin > 1 {
		meta.Thin(d.opts.FPThin)
	}
	meta.DropUndefinedPointing()
	if len(meta.Dets) <= 1 {
		// Degenerate task: nothing to solve with one detector.
		return nil
	}

	ts, err := tod.LoadSim(meta, sim, d.cfg)
	if err != nil {
		return err
	}
	taskLog.Debug("timestream loaded", zap.Int("dets", ts.NDets()))

	wmap, weights, err := tod.MakeMap(ts, d.opts.PixType, d.opts.Nside, d.geom)
	if err != nil {
		return err
	}

	wmapName, weightsName, err := AtomicNames(
		d.opts.MapStringFormat, task.SimID, a.ObsID, a.Wafer, a.Freq)
	if err != nil {
		return err
	}
	outDir := filepath.Join(d.opts.OutputDir, AtomicsSubdir)
	if err := skymap.Write(filepath.Join(outDir, wmapName), wmap); err != nil {
		return err
	}
	if err := skymap.Write(filepath.Join(outDir, weightsName), weights); err != nil {
		return err
	}
	taskLog.Info("task filtered",
		zap.String("wmap", wmapName),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
