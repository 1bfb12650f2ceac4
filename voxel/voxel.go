package voxel

import "math"

// Voxel is a palette index. Zero is empty.
type Voxel uint8

const Empty Voxel = 0

func (v Voxel) IsEmpty() bool { return v == 0 }

// Material is one palette entry. Entry 0 of a palette is never used since it
// is the empty voxel.
type Material struct {
	Color          [3]uint8
	MetalFuzziness uint8
	Emission       float32
}

// DefaultMaterial matches a freshly created palette entry.
func DefaultMaterial() Material { return Material{MetalFuzziness: 255} }

// SetColor stores an RGB color given in the 0..1 range.
func (m *Material) SetColor(r, g, b float32) {
	for i, c := range [3]float32{r, g, b} {
		c = float32(math.Round(float64(c * 255)))
		m.Color[i] = uint8(max(0, min(255, c)))
	}
}

// Encoded packs the material the way the flat buffer palette stores it:
// RGB565 in bits 0..15, half-float emission in bits 16..31 and the
// metal/fuzziness byte in bits 32..39.
func (m Material) Encoded() uint64 {
	var packed uint64
	packed |= uint64(m.Color[0]>>3) << 11
	packed |= uint64(m.Color[1]>>2) << 5
	packed |= uint64(m.Color[2] >> 3)
	packed |= uint64(float32ToHalf(m.Emission)) << 16
	packed |= uint64(m.MetalFuzziness) << 32
	return packed
}

// DecodeColor returns the 0..1 RGB color of an encoded material.
func DecodeColor(enc uint64) [3]float32 {
	return [3]float32{
		float32(enc>>11&31) / 31,
		float32(enc>>5&63) / 63,
		float32(enc&31) / 31,
	}
}

func DecodeEmission(enc uint64) float32 { return halfToFloat32(uint16(enc >> 16)) }

func DecodeMetalFuzziness(enc uint64) uint8 { return uint8(enc >> 32) }

func float32ToHalf(f float32) uint16 {
	b := math.Float32bits(f)
	sign := uint16(b>>16) & 0x8000
	exp := int32(b>>23&0xff) - 127 + 15
	mant := b & 0x7fffff

	switch {
	case b&0x7fffffff == 0:
		return sign
	case b>>23&0xff == 0xff:
		if mant != 0 {
			return sign | 0x7e00
		}
		return sign | 0x7c00
	case exp >= 31:
		return sign | 0x7c00
	case exp <= 0:
		if exp < -10 {
			return sign
		}
		mant |= 0x800000
		shift := uint32(14 - exp)
		half := uint16(mant >> shift)
		if mant>>(shift-1)&1 != 0 {
			half++
		}
		return sign | half
	}
	half := sign | uint16(exp)<<10 | uint16(mant>>13)
	if mant&0x1000 != 0 {
		half++ // may carry into the exponent, which rounds up correctly
	}
	return half
}

func halfToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h>>10) & 0x1f
	mant := uint32(h & 0x3ff)

	switch exp {
	case 0:
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		e := uint32(127 - 15 + 1)
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		mant &= 0x3ff
		return math.Float32frombits(sign | e<<23 | mant<<13)
	case 0x1f:
		return math.Float32frombits(sign | 0x7f800000 | mant<<13)
	}
	return math.Float32frombits(sign | (exp+127-15)<<23 | mant<<13)
}
