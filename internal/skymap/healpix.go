package skymap

import (
	"fmt"
	"math"
)

// Minimal HEALPix NESTED pixelization math: npix/nside relations and the
// ang2pix / pix2ang pair. Only what the binner and the simulation sampler
// need; nside must be a power of two.

var (
	jrll = [12]int{2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4}
	jpll = [12]int{1, 3, 5, 7, 0, 2, 4, 6, 1, 3, 5, 7}
)

// NPix returns the pixel count of an nside grid.
func NPix(nside int) int {
	return 12 * nside * nside
}

// ValidNside reports whether nside is a positive power of two.
func ValidNside(nside int) bool {
	return nside > 0 && nside&(nside-1) == 0
}

// Ang2Pix returns the NESTED pixel index containing the direction
// (theta, phi), theta the colatitude in [0, pi].
func Ang2Pix(nside int, theta, phi float64) int {
	z := math.Cos(theta)
	za := math.Abs(z)
	tt := math.Mod(phi, 2*math.Pi)
	if tt < 0 {
		tt += 2 * math.Pi
	}
	tt /= math.Pi / 2 // in [0,4)

	var ix, iy, face int
	if za <= 2.0/3.0 { // equatorial region
		temp1 := float64(nside) * (0.5 + tt)
		temp2 := float64(nside) * z * 0.75
		jp := int(math.Floor(temp1 - temp2)) // ascending edge line
		jm := int(math.Floor(temp1 + temp2)) // descending edge line
		ifp := jp / nside
		ifm := jm / nside
		switch {
		case ifp == ifm:
			face = ifp&3 + 4
		case ifp < ifm:
			face = ifp & 3
		default:
			face = ifm&3 + 8
		}
		ix = jm & (nside - 1)
		iy = nside - jp&(nside-1) - 1
	} else { // polar caps
		ntt := int(tt)
		if ntt >= 4 {
			ntt = 3
		}
		tp := tt - float64(ntt)
		tmp := float64(nside) * math.Sqrt(3*(1-za))
		jp := int(tp * tmp)
		jm := int((1 - tp) * tmp)
		if jp >= nside {
			jp = nside - 1
		}
		if jm >= nside {
			jm = nside - 1
		}
		if z >= 0 {
			face = ntt
			ix = nside - jm - 1
			iy = nside - jp - 1
		} else {
			face = ntt + 8
			ix = jp
			iy = jm
		}
	}
	return xyf2nest(nside, ix, iy, face)
}

// Pix2Ang returns the center direction (theta, phi) of a NESTED pixel.
func Pix2Ang(nside, pix int) (theta, phi float64) {
	ix, iy, face := nest2xyf(nside, pix)
	jr := jrll[face]*nside - ix - iy - 1

	var nr, kshift int
	var z float64
	switch {
	case jr < nside: // north polar cap
		nr = jr
		z = 1 - float64(nr*nr)/(3*float64(nside)*float64(nside))
	case jr > 3*nside: // south polar cap
		nr = 4*nside - jr
		z = -1 + float64(nr*nr)/(3*float64(nside)*float64(nside))
	default: // equatorial belt
		nr = nside
		z = float64(2*nside-jr) * 2 / (3 * float64(nside))
		kshift = (jr - nside) & 1
	}
	theta = math.Acos(z)

	jp := (jpll[face]*nr + ix - iy + 1 + kshift) / 2
	if jp > 4*nr {
		jp -= 4 * nr
	}
	if jp < 1 {
		jp += 4 * nr
	}
	phi = (float64(jp) - float64(kshift+1)*0.5) * (math.Pi / 2) / float64(nr)
	return theta, phi
}

func xyf2nest(nside, ix, iy, face int) int {
	return face*nside*nside + spreadBits(ix) + spreadBits(iy)<<1
}

func nest2xyf(nside, pix int) (ix, iy, face int) {
	np := nside * nside
	face = pix / np
	p := pix % np
	ix = compressBits(p)
	iy = compressBits(p >> 1)
	return ix, iy, face
}

// spreadBits interleaves the low 16 bits of v with zeros.
func spreadBits(v int) int {
	x := uint64(v) & 0xffff
	x = (x | x<<8) & 0x00ff00ff
	x = (x | x<<4) & 0x0f0f0f0f
	x = (x | x<<2) & 0x33333333
	x = (x | x<<1) & 0x55555555
	return int(x)
}

// compressBits inverts spreadBits, keeping the even bits of v.
func compressBits(v int) int {
	x := uint64(v) & 0x55555555
	x = (x | x>>1) & 0x33333333
	x = (x | x>>2) & 0x0f0f0f0f
	x = (x | x>>4) & 0x00ff00ff
	x = (x | x>>8) & 0x0000ffff
	return int(x)
}

func checkNside(nside int) error {
	if !ValidNside(nside) {
		return fmt.Errorf("nside must be a power of two, got %d", nside)
	}
	return nil
}
