package terrain

import (
	"encoding/binary"

	math "github.com/chewxy/math32"
	xxhash "github.com/cespare/xxhash/v2"
)

// lattice returns a value in [0, 1) for an integer lattice point.
func lattice(seed uint64, octave int, x, z int32) float32 {
	var b [20]byte
	binary.LittleEndian.PutUint64(b[0:], seed)
	binary.LittleEndian.PutUint32(b[8:], uint32(octave))
	binary.LittleEndian.PutUint32(b[12:], uint32(x))
	binary.LittleEndian.PutUint32(b[16:], uint32(z))
	return float32(xxhash.Sum64(b[:])>>40) / (1 << 24)
}

func smooth(t float32) float32 { return t * t * (3 - 2*t) }

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

// valueNoise interpolates lattice values around (x, z), in [0, 1).
func valueNoise(seed uint64, octave int, x, z float32) float32 {
	fx, fz := math.Floor(x), math.Floor(z)
	ix, iz := int32(fx), int32(fz)
	tx, tz := smooth(x-fx), smooth(z-fz)

	v00 := lattice(seed, octave, ix, iz)
	v10 := lattice(seed, octave, ix+1, iz)
	v01 := lattice(seed, octave, ix, iz+1)
	v11 := lattice(seed, octave, ix+1, iz+1)
	return lerp(lerp(v00, v10, tx), lerp(v01, v11, tx), tz)
}

const octaves = 4

// fbm sums octaves of value noise with halving weights, normalized to [0, 1).
func fbm(seed uint64, x, z float32) float32 {
	var sum, weight float32
	amp := float32(1)
	for o := 0; o < octaves; o++ {
		sum += amp * valueNoise(seed, o, x, z)
		weight += amp
		amp *= 0.5
		x *= 2
		z *= 2
	}
	return sum / weight
}
