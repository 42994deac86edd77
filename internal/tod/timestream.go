package tod

import (
	"fmt"
	"math"

	"atomap/internal/skymap"
)

// Timestream holds demodulated detector streams with the simulated sky
// signal injected, plus the per-sample pointing they were drawn at.
type Timestream struct {
	Meta *Meta
	// Per detector, per sample.
	Theta, Phi, Psi     [][]float64
	DsT, DemodQ, DemodU [][]float64
}

// NDets returns the detector count of the timestream.
func (ts *Timestream) NDets() int {
	return len(ts.Theta)
}

const siderealDay = 86164.0905

// LoadSim scans the simulated map along the observation's boresight sweep
// and returns the demodulated timestream. This is the stand-in for the
// external preprocess-and-demodulate loader: the signal in each stream is
// the sky signal alone, under unit gains.
func LoadSim(meta *Meta, sim *skymap.Map, cfg *Config) (*Timestream, error) {
	n := cfg.Samples
	if n <= 0 {
		return nil, fmt.Errorf("invalid sample count %d", n)
	}
	ts := &Timestream{
		Meta:   meta,
		Theta:  make([][]float64, len(meta.Dets)),
		Phi:    make([][]float64, len(meta.Dets)),
		Psi:    make([][]float64, len(meta.Dets)),
		DsT:    make([][]float64, len(meta.Dets)),
		DemodQ: make([][]float64, len(meta.Dets)),
		DemodU: make([][]float64, len(meta.Dets)),
	}

	latRad := cfg.SiteLatDeg * math.Pi / 180
	for di, det := range meta.Dets {
		theta := make([]float64, n)
		phi := make([]float64, n)
		psi := make([]float64, n)
		dsT := make([]float64, n)
		dQ := make([]float64, n)
		dU := make([]float64, n)

		psiDet := det.Gamma * math.Pi / 180
		for s := 0; s < n; s++ {
			az, el := boresight(meta, cfg, s)
			azRad := (az + det.Xi) * math.Pi / 180
			elRad := (el + det.Eta) * math.Pi / 180

			t := float64(s) / cfg.SampleRateHz
			th, ph := horToSky(azRad, elRad, latRad, float64(meta.Ctime)+t)
			theta[s], phi[s], psi[s] = th, ph, psiDet

			tt, qq, uu := sim.At(th, ph)
			c2, s2 := math.Cos(2*psiDet), math.Sin(2*psiDet)
			dsT[s] = tt
			dQ[s] = qq*c2 + uu*s2
			dU[s] = -qq*s2 + uu*c2
		}
		ts.Theta[di], ts.Phi[di], ts.Psi[di] = theta, phi, psi
		ts.DsT[di], ts.DemodQ[di], ts.DemodU[di] = dsT, dQ, dU
	}
	return ts, nil
}

// boresight returns the scan azimuth/elevation (degrees) at sample s: a
// single triangle sweep across the configured throw at fixed elevation.
func boresight(meta *Meta, cfg *Config, s int) (az, el float64) {
	frac := 0.0
	if cfg.Samples > 1 {
		frac = float64(s) / float64(cfg.Samples-1)
	}
	tri := 2 * frac
	if tri > 1 {
		tri = 2 - tri
	}
	az = meta.AzDeg - cfg.ScanAzThrowDeg/2 + cfg.ScanAzThrowDeg*tri
	return az, meta.ElDeg
}

// horToSky rotates horizontal coordinates (azimuth, elevation) at the given
// site latitude and unix time into (colatitude, right ascension).
func horToSky(az, el, lat, unixTime float64) (theta, phi float64) {
	sinDec := math.Sin(el)*math.Sin(lat) + math.Cos(el)*math.Cos(lat)*math.Cos(az)
	dec := math.Asin(sinDec)
	ha := math.Atan2(
		-math.Sin(az)*math.Cos(el),
		math.Sin(el)*math.Cos(lat)-math.Cos(el)*math.Sin(lat)*math.Cos(az),
	)
	lstFrac := unixTime / siderealDay
	lst := 2 * math.Pi * (lstFrac - math.Floor(lstFrac))
	ra := math.Mod(lst-ha, 2*math.Pi)
	if ra < 0 {
		ra += 2 * math.Pi
	}
	return math.Pi/2 - dec, ra
}
