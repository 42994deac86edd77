// Package simgen generates the pure-T/E/B Gaussian simulation suites the
// transfer-function estimate is built from: for each simulation index one
// harmonic draw of a fixed power-law spectrum, smoothed by a Gaussian beam
// and written three times with the modes placed in a single Stokes slot.
package simgen

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"atomap/internal/skymap"
)

// tags name the three pure-mode suites, in output order.
var tags = [3]string{"pureT", "pureE", "pureB"}

// Options mirror the tf-sims CLI surface.
type Options struct {
	Pix         skymap.PixType
	Nside       int     // hp only
	CARTemplate string  // car only, fixes the output geometry
	SmoothFWHM  float64 // arcmin
	NSims       int
	OutDir      string
	Seed        uint64
}

// Run writes NSims x 3 simulated maps into OutDir.
func Run(opts Options, log *zap.Logger) error {
	if opts.NSims <= 0 {
		return fmt.Errorf("invalid simulation count %d", opts.NSims)
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	var geom skymap.Geometry
	var lmax int
	switch opts.Pix {
	case skymap.HP:
		if _, err := skymap.NewHealpix(opts.Nside); err != nil {
			return err
		}
		lmax = LmaxHealpix(opts.Nside)
		// Synthesize on a CAR grid finer than the HEALPix pixels, then
		// sample at pixel centers.
		geom = skymap.FullSky(45.0 / float64(opts.Nside))
	case skymap.CAR:
		if opts.CARTemplate == "" {
			return fmt.Errorf("car pixelization requires a template map")
		}
		g, err := skymap.ReadTemplate(opts.CARTemplate)
		if err != nil {
			return err
		}
		geom = g
		lmax = LmaxFromGeometry(g)
	default:
		return skymap.ErrUnknownPixType
	}

	cl := PowerSpectrum(lmax + LmaxPad)
	log.Info("generating simulations",
		zap.String("pix_type", string(opts.Pix)),
		zap.Int("n_sims", opts.NSims),
		zap.Int("lmax", lmax),
		zap.Float64("fwhm_arcmin", opts.SmoothFWHM))

	for id := 0; id < opts.NSims; id++ {
		start := time.Now()
		r := synthesize(geom, cl, opts.SmoothFWHM, simSeed(opts.Seed, id))
		for ti, tag := range tags {
			m, err := render(opts, geom, r, ti)
			if err != nil {
				return err
			}
			name := FileName(opts, tag, id)
			if err := skymap.Write(filepath.Join(opts.OutDir, name), m); err != nil {
				return err
			}
		}
		log.Info("simulation written",
			zap.Int("sim_id", id),
			zap.Duration("elapsed", time.Since(start)))
	}
	return nil
}

// render places one pure suite of the realization into a map of the output
// pixelization. Suite index 0 is pure temperature, 1 pure E, 2 pure B.
func render(opts Options, geom skymap.Geometry, r *realization, suite int) (*skymap.Map, error) {
	var t, q, u []float32
	switch suite {
	case 0:
		t = r.t
	case 1:
		q, u = r.qe, r.ue
	case 2:
		q, u = r.qb, r.ub
	}

	if opts.Pix == skymap.CAR {
		m := skymap.NewCAR(geom)
		copyPlane(m.Data[0], t)
		copyPlane(m.Data[1], q)
		copyPlane(m.Data[2], u)
		return m, nil
	}

	m, err := skymap.NewHealpix(opts.Nside)
	if err != nil {
		return nil, err
	}
	for p := 0; p < m.NPixels(); p++ {
		theta, phi := skymap.Pix2Ang(opts.Nside, p)
		gp := geom.PixAt(theta, phi)
		if gp < 0 {
			continue
		}
		if t != nil {
			m.Data[0][p] = t[gp]
		}
		if q != nil {
			m.Data[1][p] = q[gp]
			m.Data[2][p] = u[gp]
		}
	}
	return m, nil
}

func copyPlane(dst, src []float32) {
	if src != nil {
		copy(dst, src)
	}
}

// FileName returns the output name of one simulated map.
func FileName(opts Options, tag string, simID int) string {
	fwhm := fwhmString(opts.SmoothFWHM)
	if opts.Pix == skymap.CAR {
		return fmt.Sprintf("%s_fwhm%s_sim%04d_CAR.fits", tag, fwhm, simID)
	}
	return fmt.Sprintf("%s_nside%d_fwhm%s_sim%04d.fits", tag, opts.Nside, fwhm, simID)
}

// fwhmString renders the FWHM the way it appears in filenames: integral
// values keep one decimal ("30.0"), others print exactly ("27.25").
func fwhmString(f float64) string {
	if f == math.Trunc(f) {
		return fmt.Sprintf("%.1f", f)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// simSeed decorrelates the per-simulation streams from a single base seed.
func simSeed(base uint64, simID int) uint64 {
	return base + uint64(simID)*0x9e3779b97f4a7c15
}
