package voxel

import (
	"bytes"
	"compress/zlib"
	"io"
	"math/bits"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/klauspost/compress/zstd"
)

const (
	encRaw    = 0
	encPacked = 1 // bit packed ids in Morton order
	encSparse = 2 // occupancy bitmap + bit packed non-zero ids
)

const sparseBitmapLen = BrickVolume / 8

// appendBrick appends the smallest encoding of b to dst.
func appendBrick(dst []byte, b *Brick) []byte {
	var maxID Voxel
	count := 0
	for _, v := range b.Data {
		if v != 0 {
			count++
			maxID = max(maxID, v)
		}
	}
	bpv := bitsPerVoxel(maxID)

	rawLen := BrickVolume
	packLen := packedLen(BrickVolume, bpv)
	sparseLen := sparseBitmapLen + packedLen(count, bpv)

	switch {
	case sparseLen < packLen && sparseLen < rawLen:
		dst = append(dst, encSparse, bpv)
		bitmap := len(dst)
		dst = append(dst, make([]byte, sparseBitmapLen)...)
		bw := newBitWriter(dst)
		for rank, i := range brickMortonOrder {
			v := b.Data[i]
			if v == 0 {
				continue
			}
			bw.buf[bitmap+rank>>3] |= 1 << (rank & 7)
			bw.writeBits(uint64(v), bpv)
		}
		return bw.bytes()
	case packLen < rawLen:
		dst = append(dst, encPacked, bpv)
		bw := newBitWriter(dst)
		for _, i := range brickMortonOrder {
			bw.writeBits(uint64(b.Data[i]), bpv)
		}
		return bw.bytes()
	}
	dst = append(dst, encRaw)
	return append(dst, b.Bytes()...)
}

// readBrick decodes one brick from the front of src and returns the rest.
func readBrick(b *Brick, src []byte) ([]byte, error) {
	if len(src) < 1 {
		return nil, io.ErrUnexpectedEOF
	}
	enc := src[0]
	src = src[1:]

	if enc == encRaw {
		if len(src) < BrickVolume {
			return nil, io.ErrUnexpectedEOF
		}
		copy(b.Bytes(), src[:BrickVolume])
		return src[BrickVolume:], nil
	}

	if len(src) < 1 {
		return nil, io.ErrUnexpectedEOF
	}
	bpv := src[0]
	src = src[1:]
	if bpv > 8 {
		return nil, errors.Newf("invalid bits per voxel %d", bpv).
			WithType(ErrTypeCorruptStream)
	}

	switch enc {
	case encPacked:
		n := packedLen(BrickVolume, bpv)
		if len(src) < n {
			return nil, io.ErrUnexpectedEOF
		}
		br := newBitReader(src[:n])
		for _, i := range brickMortonOrder {
			v, err := br.readBits(bpv)
			if err != nil {
				return nil, err
			}
			b.Data[i] = Voxel(v)
		}
		return src[n:], nil

	case encSparse:
		if len(src) < sparseBitmapLen {
			return nil, io.ErrUnexpectedEOF
		}
		bitmap := src[:sparseBitmapLen]
		count := 0
		for _, c := range bitmap {
			count += bits.OnesCount8(c)
		}
		n := packedLen(count, bpv)
		src = src[sparseBitmapLen:]
		if len(src) < n {
			return nil, io.ErrUnexpectedEOF
		}
		br := newBitReader(src[:n])
		for rank, i := range brickMortonOrder {
			if bitmap[rank>>3]>>(rank&7)&1 == 0 {
				b.Data[i] = 0
				continue
			}
			v, err := br.readBits(bpv)
			if err != nil {
				return nil, err
			}
			b.Data[i] = Voxel(v)
		}
		return src[n:], nil
	}
	return nil, errors.Newf("unknown brick encoding %d", enc).
		WithType(ErrTypeCorruptStream)
}

// PackCompression selects the codec of compressed blocks.
type PackCompression uint8

const (
	PackCompNone PackCompression = 0
	PackCompZlib PackCompression = 1
	PackCompZstd PackCompression = 2
)

func (c PackCompression) String() string {
	switch c {
	case PackCompNone:
		return "none"
	case PackCompZlib:
		return "zlib"
	case PackCompZstd:
		return "zstd"
	}
	return "unknown"
}

// ParsePackCompression is the inverse of PackCompression.String.
func ParsePackCompression(s string) (PackCompression, error) {
	for _, c := range []PackCompression{PackCompNone, PackCompZlib, PackCompZstd} {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, errors.Newf("unknown compression %q", s).
		WithType(ErrTypeUnsupportedCodec)
}

func compressBlock(comp PackCompression, b []byte) ([]byte, error) {
	switch comp {
	case PackCompNone:
		return b, nil
	case PackCompZlib:
		var buf bytes.Buffer
		zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(b); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case PackCompZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(b, nil), nil
	}
	return nil, errors.Newf("unsupported compression %d", comp).
		WithType(ErrTypeUnsupportedCodec)
}

// decompressBlock inflates b, which must expand to exactly rawLen bytes.
func decompressBlock(comp PackCompression, b []byte, rawLen int) ([]byte, error) {
	var out []byte
	switch comp {
	case PackCompNone:
		out = b
	case PackCompZlib:
		zr, err := zlib.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		out, err = io.ReadAll(io.LimitReader(zr, int64(rawLen)+1))
		if err != nil {
			return nil, err
		}
	case PackCompZstd:
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		out, err = dec.DecodeAll(b, make([]byte, 0, rawLen))
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.Newf("unsupported compression %d", comp).
			WithType(ErrTypeUnsupportedCodec)
	}
	if len(out) != rawLen {
		return nil, errors.Newf("block expands to %d bytes, want %d", len(out), rawLen).
			WithType(ErrTypeCorruptStream)
	}
	return out, nil
}
