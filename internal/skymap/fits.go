package skymap

import (
	"bytes"
	"fmt"
	"os"

	"github.com/astrogo/fitsio"
	"github.com/natefinch/atomic"
)

// Write persists a map as a float32 FITS image. HEALPix maps carry
// NSIDE/ORDERING cards (NESTED), CAR maps carry their WCS cards. The file
// is replaced atomically, never left half-written.
func Write(path string, m *Map) error {
	var buf bytes.Buffer
	f, err := fitsio.Create(&buf)
	if err != nil {
		return fmt.Errorf("creating FITS stream: %w", err)
	}

	var img fitsio.Image
	var cards []fitsio.Card
	npix := m.NPixels()
	if m.Pix == HP {
		img = fitsio.NewImage(-32, []int{npix, 3})
		cards = []fitsio.Card{
			{Name: "PIXTYPE", Value: "HEALPIX", Comment: "HEALPix pixelization"},
			{Name: "ORDERING", Value: "NESTED", Comment: "pixel ordering scheme"},
			{Name: "NSIDE", Value: m.Nside, Comment: "resolution parameter"},
		}
	} else {
		img = fitsio.NewImage(-32, []int{m.Geom.NX, m.Geom.NY, 3})
		cards = []fitsio.Card{
			{Name: "CTYPE1", Value: "RA---CAR", Comment: "plate carree"},
			{Name: "CTYPE2", Value: "DEC--CAR", Comment: "plate carree"},
			{Name: "CDELT1", Value: m.Geom.CDelt1, Comment: "deg/pixel"},
			{Name: "CDELT2", Value: m.Geom.CDelt2, Comment: "deg/pixel"},
			{Name: "CRVAL1", Value: m.Geom.CRVal1, Comment: "deg"},
			{Name: "CRVAL2", Value: m.Geom.CRVal2, Comment: "deg"},
			{Name: "CRPIX1", Value: m.Geom.CRPix1, Comment: ""},
			{Name: "CRPIX2", Value: m.Geom.CRPix2, Comment: ""},
		}
	}
	defer img.Close()
	if err := img.Header().Append(cards...); err != nil {
		return fmt.Errorf("writing FITS header: %w", err)
	}

	flat := make([]float32, 3*npix)
	for i := range m.Data {
		copy(flat[i*npix:(i+1)*npix], m.Data[i])
	}
	if err := img.Write(&flat); err != nil {
		return fmt.Errorf("writing FITS data: %w", err)
	}
	if err := f.Write(img); err != nil {
		return fmt.Errorf("writing FITS HDU: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing FITS stream: %w", err)
	}
	return atomic.WriteFile(path, bytes.NewReader(buf.Bytes()))
}

// Read loads a map, resolving the scheme from the file's own header cards.
// The want argument names the scheme the caller expects; a file of the
// other scheme is still returned, as a compatibility shim for mixed map
// directories (the caller sees the actual scheme on the returned map).
func Read(path string, want PixType) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening map file: %w", err)
	}
	defer f.Close()
	fits, err := fitsio.Open(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer fits.Close()

	img, ok := fits.HDU(0).(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("%s: primary HDU is not an image", path)
	}
	hdr := img.Header()

	var m *Map
	switch {
	case hdr.Get("NSIDE") != nil:
		nside, err := cardInt(hdr.Get("NSIDE"))
		if err != nil {
			return nil, fmt.Errorf("%s: NSIDE: %w", path, err)
		}
		if err := checkNside(nside); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		m = &Map{Pix: HP, Nside: nside}
	case hdr.Get("CDELT1") != nil:
		g, err := geometryFromHeader(hdr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		m = &Map{Pix: CAR, Geom: g}
	default:
		return nil, fmt.Errorf("%s: neither HEALPix nor CAR cards present", path)
	}

	axes := hdr.Axes()
	npix := 1
	for _, n := range axes[:len(axes)-1] {
		npix *= n
	}
	flat := make([]float32, 3*npix)
	if err := img.Read(&flat); err != nil {
		return nil, fmt.Errorf("%s: reading data: %w", path, err)
	}
	if len(flat) != 3*npix {
		return nil, fmt.Errorf("%s: want %d values, got %d", path, 3*npix, len(flat))
	}
	for i := range m.Data {
		m.Data[i] = flat[i*npix : (i+1)*npix]
	}
	return m, nil
}

// ReadTemplate loads only the CAR geometry of a template map.
func ReadTemplate(path string) (Geometry, error) {
	m, err := Read(path, CAR)
	if err != nil {
		return Geometry{}, err
	}
	if m.Pix != CAR {
		return Geometry{}, fmt.Errorf("%s: template map is not CAR", path)
	}
	return m.Geom, nil
}

func geometryFromHeader(hdr *fitsio.Header) (Geometry, error) {
	axes := hdr.Axes()
	if len(axes) != 3 || axes[2] != 3 {
		return Geometry{}, fmt.Errorf("want 3 axes with 3 Stokes planes, got %v", axes)
	}
	g := Geometry{NX: axes[0], NY: axes[1]}
	for _, c := range []struct {
		name string
		dst  *float64
	}{
		{"CDELT1", &g.CDelt1}, {"CDELT2", &g.CDelt2},
		{"CRVAL1", &g.CRVal1}, {"CRVAL2", &g.CRVal2},
		{"CRPIX1", &g.CRPix1}, {"CRPIX2", &g.CRPix2},
	} {
		card := hdr.Get(c.name)
		if card == nil {
			return Geometry{}, fmt.Errorf("missing %s card", c.name)
		}
		v, err := cardFloat(card)
		if err != nil {
			return Geometry{}, fmt.Errorf("%s: %w", c.name, err)
		}
		*c.dst = v
	}
	return g, nil
}

func cardInt(c *fitsio.Card) (int, error) {
	switch v := c.Value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	}
	return 0, fmt.Errorf("not an integer card (%T)", c.Value)
}

func cardFloat(c *fitsio.Card) (float64, error) {
	switch v := c.Value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return 0, fmt.Errorf("not a numeric card (%T)", c.Value)
}
