package simgen

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat/distuv"

	"atomap/internal/skymap"
)

// realization holds the five Stokes planes one seed produces on a CAR grid:
// the temperature map, and the Q/U pair each of a pure-E and a pure-B sky.
// All five are built from the same harmonic-space draw, so the three pure
// skies of a given simulation index share their underlying modes.
type realization struct {
	t, qe, ue, qb, ub []float32
}

// synthesize draws one Gaussian realization of the spectrum cl on grid g
// under a Gaussian beam of the given FWHM (arcmin), using flat-sky Fourier
// modes. The seed fixes the draw completely.
func synthesize(g skymap.Geometry, cl []float64, fwhmArcmin float64, seed uint64) *realization {
	nx, ny := g.NX, g.NY
	npix := nx * ny
	res := g.Res()
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(seed)}

	// Fourier amplitudes: Var|a(k)| = C_l(k) * npix / pixel area, so that
	// the inverse transform (divided by npix) has the spectrum's variance.
	a := make([]complex128, npix)
	lmax := len(cl) - 1
	phase2 := make([]complex128, npix) // e^{2 i phi_k} for the E/B rotation
	for iy := 0; iy < ny; iy++ {
		fy := iy
		if fy > ny/2 {
			fy -= ny
		}
		ly := 2 * math.Pi * float64(fy) / (float64(ny) * res)
		for ix := 0; ix < nx; ix++ {
			fx := ix
			if fx > nx/2 {
				fx -= nx
			}
			lx := 2 * math.Pi * float64(fx) / (float64(nx) * res)
			l := int(math.Round(math.Hypot(lx, ly)))
			i := iy*nx + ix
			if l == 0 || l > lmax {
				continue
			}
			amp := math.Sqrt(cl[l]*float64(npix)/(res*res)) * beam(l, fwhmArcmin)
			a[i] = complex(normal.Rand()*amp/math.Sqrt2, normal.Rand()*amp/math.Sqrt2)
			phiK := math.Atan2(ly, lx)
			phase2[i] = complex(math.Cos(2*phiK), math.Sin(2*phiK))
		}
	}

	// T is the scalar field itself. For a pure-E sky the same modes enter
	// the polarization as (Q+iU)(k) = -a(k) e^{2 i phi_k}; for pure-B as
	// (Q+iU)(k) = -i a(k) e^{2 i phi_k}.
	qeK := make([]complex128, npix)
	ueK := make([]complex128, npix)
	qbK := make([]complex128, npix)
	ubK := make([]complex128, npix)
	for i, ai := range a {
		p := ai * phase2[i]
		qeK[i] = complex(-real(p), 0)
		ueK[i] = complex(-imag(p), 0)
		qbK[i] = complex(imag(p), 0)
		ubK[i] = complex(-real(p), 0)
	}

	return &realization{
		t:  toMap(a, nx, ny),
		qe: toMap(qeK, nx, ny),
		ue: toMap(ueK, nx, ny),
		qb: toMap(qbK, nx, ny),
		ub: toMap(ubK, nx, ny),
	}
}

// toMap inverse-transforms Fourier coefficients to a real map plane. The
// coefficients carry no Hermitian symmetry, so the real part keeps half the
// drawn power; the sqrt(2) restores it.
func toMap(coeff []complex128, nx, ny int) []float32 {
	ifft2(coeff, nx, ny)
	out := make([]float32, nx*ny)
	norm := math.Sqrt2 / float64(nx*ny)
	for i, c := range coeff {
		out[i] = float32(real(c) * norm)
	}
	return out
}

// ifft2 applies an unnormalized 2-D inverse DFT in place, rows then columns.
func ifft2(a []complex128, nx, ny int) {
	fx := fourier.NewCmplxFFT(nx)
	row := make([]complex128, nx)
	for y := 0; y < ny; y++ {
		r := a[y*nx : (y+1)*nx]
		copy(row, r)
		fx.Sequence(r, row)
	}
	fy := fourier.NewCmplxFFT(ny)
	col := make([]complex128, ny)
	dst := make([]complex128, ny)
	for x := 0; x < nx; x++ {
		for y := 0; y < ny; y++ {
			col[y] = a[y*nx+x]
		}
		fy.Sequence(dst, col)
		for y := 0; y < ny; y++ {
			a[y*nx+x] = dst[y]
		}
	}
}
