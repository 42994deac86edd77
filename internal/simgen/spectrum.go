package simgen

import (
	"math"

	"atomap/internal/skymap"
)

// LmaxPad is the synthesis headroom above the band limit of the target
// pixelization.
const LmaxPad = 500

// PowerSpectrum returns the fixed power-law spectrum 1/(l+10)^2 for
// l = 0..lmax.
func PowerSpectrum(lmax int) []float64 {
	cl := make([]float64, lmax+1)
	for l := range cl {
		cl[l] = 1 / (float64(l+10) * float64(l+10))
	}
	return cl
}

// LmaxHealpix is the band limit of an nside grid.
func LmaxHealpix(nside int) int {
	return 3*nside - 1
}

// LmaxFromGeometry is the band limit supported by a CAR grid's resolution.
func LmaxFromGeometry(g skymap.Geometry) int {
	return int(math.Pi / g.Res())
}

// beam returns the Gaussian beam transfer value at multipole l for a FWHM
// given in arcmin.
func beam(l int, fwhmArcmin float64) float64 {
	sigma := fwhmArcmin / 60 * math.Pi / 180 / math.Sqrt(8*math.Ln2)
	fl := float64(l)
	return math.Exp(-0.5 * fl * (fl + 1) * sigma * sigma)
}
