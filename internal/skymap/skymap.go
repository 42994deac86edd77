// Package skymap holds the two sky pixelizations the pipeline reads and
// writes: HEALPix (NESTED ordering) and CAR (plate-carree) grids, with
// three Stokes planes (T, Q, U) and float32 FITS persistence.
package skymap

import (
	"errors"
	"fmt"
	"math"
)

// PixType selects the pixelization scheme.
type PixType string

const (
	HP  PixType = "hp"
	CAR PixType = "car"
)

// ErrUnknownPixType is the usage error for anything other than hp or car.
var ErrUnknownPixType = errors.New("unknown pixelization type, must be 'hp' or 'car'")

// ParsePixType validates a CLI pixelization argument.
func ParsePixType(s string) (PixType, error) {
	switch PixType(s) {
	case HP, CAR:
		return PixType(s), nil
	}
	return "", fmt.Errorf("%w (got %q)", ErrUnknownPixType, s)
}

// Geometry describes a CAR grid: NY rows spanning declination, NX columns
// spanning right ascension, with FITS-style reference cards in degrees.
type Geometry struct {
	NX, NY         int
	CDelt1, CDelt2 float64 // deg per pixel (RA step conventionally negative)
	CRVal1, CRVal2 float64 // deg at the reference pixel
	CRPix1, CRPix2 float64 // 1-based reference pixel
}

// FullSky returns a full-sky CAR geometry at the given resolution.
func FullSky(resDeg float64) Geometry {
	nx := int(math.Round(360 / resDeg))
	ny := int(math.Round(180/resDeg)) + 1
	return Geometry{
		NX: nx, NY: ny,
		CDelt1: -resDeg, CDelt2: resDeg,
		CRVal1: 180, CRVal2: 0,
		CRPix1: float64(nx)/2 + 0.5, CRPix2: float64(ny)/2 + 0.5,
	}
}

// Res returns the coarser of the two axis resolutions in radians.
func (g Geometry) Res() float64 {
	r := math.Min(math.Abs(g.CDelt1), math.Abs(g.CDelt2))
	return r * math.Pi / 180
}

// Ang returns the sky direction (theta colatitude, phi longitude, radians)
// of pixel column ix, row iy.
func (g Geometry) Ang(ix, iy int) (theta, phi float64) {
	ra := g.CRVal1 + (float64(ix)+1-g.CRPix1)*g.CDelt1
	dec := g.CRVal2 + (float64(iy)+1-g.CRPix2)*g.CDelt2
	theta = (90 - dec) * math.Pi / 180
	phi = ra * math.Pi / 180
	if phi < 0 {
		phi += 2 * math.Pi
	}
	return theta, phi
}

// PixAt returns the flat pixel index containing (theta, phi), or -1 when
// the direction falls outside the grid.
func (g Geometry) PixAt(theta, phi float64) int {
	dec := 90 - theta*180/math.Pi
	ra := phi * 180 / math.Pi
	ix := int(math.Round((ra-g.CRVal1)/g.CDelt1 + g.CRPix1 - 1))
	// RA wraps; try the equivalent longitude on either side before giving up.
	if ix < 0 || ix >= g.NX {
		for _, alt := range [2]float64{ra - 360, ra + 360} {
			ix = int(math.Round((alt-g.CRVal1)/g.CDelt1 + g.CRPix1 - 1))
			if ix >= 0 && ix < g.NX {
				break
			}
		}
	}
	iy := int(math.Round((dec-g.CRVal2)/g.CDelt2 + g.CRPix2 - 1))
	if ix < 0 || ix >= g.NX || iy < 0 || iy >= g.NY {
		return -1
	}
	return iy*g.NX + ix
}

// Map is a 3-plane (T, Q, U) sky map in either pixelization.
type Map struct {
	Pix   PixType
	Nside int      // hp only
	Geom  Geometry // car only
	Data  [3][]float32
}

// NewHealpix allocates a zeroed HEALPix map.
func NewHealpix(nside int) (*Map, error) {
	if err := checkNside(nside); err != nil {
		return nil, err
	}
	m := &Map{Pix: HP, Nside: nside}
	for i := range m.Data {
		m.Data[i] = make([]float32, NPix(nside))
	}
	return m, nil
}

// NewCAR allocates a zeroed CAR map on the given geometry.
func NewCAR(g Geometry) *Map {
	m := &Map{Pix: CAR, Geom: g}
	for i := range m.Data {
		m.Data[i] = make([]float32, g.NX*g.NY)
	}
	return m
}

// NPixels returns the per-plane pixel count.
func (m *Map) NPixels() int {
	return len(m.Data[0])
}

// PixAt returns the pixel index containing (theta, phi), or -1 when the
// direction is not covered.
func (m *Map) PixAt(theta, phi float64) int {
	if m.Pix == HP {
		return Ang2Pix(m.Nside, theta, phi)
	}
	return m.Geom.PixAt(theta, phi)
}

// At samples the three Stokes values in the pixel containing (theta, phi).
// Directions outside a CAR grid read as zero.
func (m *Map) At(theta, phi float64) (t, q, u float64) {
	pix := m.PixAt(theta, phi)
	if pix < 0 {
		return 0, 0, 0
	}
	return float64(m.Data[0][pix]), float64(m.Data[1][pix]), float64(m.Data[2][pix])
}
