package tod

import (
	"fmt"
	"math"

	"atomap/internal/skymap"
)

// MakeMap bins a demodulated timestream into a weighted TQU map and its
// diagonal weights under a unit noise model. The weighted map is the
// right-hand side of the map-making equation; dividing by the weights
// recovers the sky estimate in well-hit pixels.
func MakeMap(ts *Timestream, pix skymap.PixType, nside int, geom skymap.Geometry) (wmap, weights *skymap.Map, err error) {
	switch pix {
	case skymap.HP:
		if wmap, err = skymap.NewHealpix(nside); err != nil {
			return nil, nil, err
		}
		if weights, err = skymap.NewHealpix(nside); err != nil {
			return nil, nil, err
		}
	case skymap.CAR:
		wmap = skymap.NewCAR(geom)
		weights = skymap.NewCAR(geom)
	default:
		return nil, nil, fmt.Errorf("cannot make map: %w", skymap.ErrUnknownPixType)
	}

	for di := range ts.Theta {
		theta, phi, psi := ts.Theta[di], ts.Phi[di], ts.Psi[di]
		dsT, dQ, dU := ts.DsT[di], ts.DemodQ[di], ts.DemodU[di]
		for s := range theta {
			p := wmap.PixAt(theta[s], phi[s])
			if p < 0 {
				continue
			}
			// Rotate the demodulated streams back into the sky frame.
			c2, s2 := math.Cos(2*psi[s]), math.Sin(2*psi[s])
			q := dQ[s]*c2 - dU[s]*s2
			u := dQ[s]*s2 + dU[s]*c2

			wmap.Data[0][p] += float32(dsT[s])
			wmap.Data[1][p] += float32(q)
			wmap.Data[2][p] += float32(u)
			weights.Data[0][p]++
			weights.Data[1][p]++
			weights.Data[2][p]++
		}
	}
	return wmap, weights, nil
}
