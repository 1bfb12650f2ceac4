package voxel

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/bits"

	"github.com/aukilabs/go-tooling/pkg/errors"
	xxhash "github.com/cespare/xxhash/v2"
)

const (
	ErrTypeBadMagic         = "voxel_bad_magic"
	ErrTypeCorruptStream    = "voxel_corrupt_stream"
	ErrTypeChecksum         = "voxel_checksum_mismatch"
	ErrTypeUnsupportedCodec = "voxel_unsupported_codec"
)

// SerMagic is "cvox" followed by the format version.
const SerMagic uint64 = 0x00000003_786f7663

const (
	DefaultMaxPackSize = 16 << 20
	// maxBlockSize bounds allocations driven by lengths read from a stream.
	maxBlockSize = 256 << 20
)

const paletteSize = 256 * 8

type SaveOptions struct {
	Compression PackCompression
	// MaxPackSize is the raw size after which a pack is flushed.
	MaxPackSize int
}

func DefaultSaveOptions() SaveOptions {
	return SaveOptions{Compression: PackCompZstd, MaxPackSize: DefaultMaxPackSize}
}

type packHeader struct {
	RawLen  uint32
	CompLen uint32
	Hash    uint64
}

// Serialize writes the palette and every non-empty sector to w. Sectors are
// written in Morton order and grouped into compressed packs of whole sectors.
func (m *Map) Serialize(w io.Writer, opts SaveOptions) error {
	if opts.MaxPackSize <= 0 {
		opts.MaxPackSize = DefaultMaxPackSize
	}

	indices := make([]uint32, 0, len(m.Sectors))
	for idx, s := range m.Sectors {
		if s.AllocationMask() != 0 {
			indices = append(indices, idx)
		}
	}
	sortSectorsMorton(indices)

	var hdr bytes.Buffer
	_ = binary.Write(&hdr, binary.LittleEndian, SerMagic)
	_ = binary.Write(&hdr, binary.LittleEndian, uint32(len(indices)))
	_ = binary.Write(&hdr, binary.LittleEndian, uint8(opts.Compression))

	var pal bytes.Buffer
	_ = binary.Write(&pal, binary.LittleEndian, &m.Palette)
	palComp, err := compressBlock(opts.Compression, pal.Bytes())
	if err != nil {
		return err
	}
	_ = binary.Write(&hdr, binary.LittleEndian, uint32(len(palComp)))
	hdr.Write(palComp)

	if _, err := w.Write(hdr.Bytes()); err != nil {
		return errors.New("writing map header failed").Wrap(err)
	}

	pack := make([]byte, 0, 64*1024)
	flush := func() error {
		if len(pack) == 0 {
			return nil
		}
		comp, err := compressBlock(opts.Compression, pack)
		if err != nil {
			return err
		}
		ph := packHeader{
			RawLen:  uint32(len(pack)),
			CompLen: uint32(len(comp)),
			Hash:    xxhash.Sum64(pack),
		}
		if err := binary.Write(w, binary.LittleEndian, ph); err != nil {
			return errors.New("writing pack header failed").Wrap(err)
		}
		if _, err := w.Write(comp); err != nil {
			return errors.New("writing pack failed").Wrap(err)
		}
		pack = pack[:0]
		return nil
	}

	for _, idx := range indices {
		s := m.Sectors[idx]
		mask := s.AllocationMask()
		pack = binary.LittleEndian.AppendUint32(pack, idx)
		pack = binary.LittleEndian.AppendUint64(pack, mask)

		for b := mask; b != 0; b &= b - 1 {
			i := uint32(bits.TrailingZeros64(b))
			pack = appendBrick(pack, s.Brick(i, false))
		}
		if len(pack) >= opts.MaxPackSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// Deserialize replaces the contents of the map with the stream in r. On
// failure the map is left untouched. On success every loaded brick is marked
// dirty, and so is every brick of a sector that disappeared.
func (m *Map) Deserialize(r io.Reader) error {
	var magic uint64
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return corrupt("reading magic failed", err)
	}
	if magic != SerMagic {
		return errors.Newf("incompatible map file").
			WithType(ErrTypeBadMagic).
			WithTag("magic", magic)
	}

	var numSectors uint32
	var comp uint8
	if err := binary.Read(r, binary.LittleEndian, &numSectors); err != nil {
		return corrupt("reading sector count failed", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &comp); err != nil {
		return corrupt("reading compression failed", err)
	}
	if numSectors > uint32(WorldSectors.MaxArea()) {
		return errors.Newf("too many sectors").
			WithType(ErrTypeCorruptStream).
			WithTag("sectors", numSectors)
	}

	palRaw, err := readBlock(r, PackCompression(comp), paletteSize)
	if err != nil {
		return err
	}
	var palette [256]Material
	if err := binary.Read(bytes.NewReader(palRaw), binary.LittleEndian, &palette); err != nil {
		return corrupt("decoding palette failed", err)
	}

	sectors := make(map[uint32]*Sector, numSectors)
	var pack []byte

	for loaded := uint32(0); loaded < numSectors; loaded++ {
		if len(pack) == 0 {
			if pack, err = readPack(r, PackCompression(comp)); err != nil {
				return err
			}
		}
		if len(pack) < 12 {
			return corrupt("truncated sector header", io.ErrUnexpectedEOF)
		}
		idx := binary.LittleEndian.Uint32(pack)
		mask := binary.LittleEndian.Uint64(pack[4:])
		pack = pack[12:]

		if mask == 0 {
			return errors.Newf("empty sector in stream").
				WithType(ErrTypeCorruptStream).
				WithTag("sector", idx)
		}
		if _, dup := sectors[idx]; dup {
			return errors.Newf("duplicate sector in stream").
				WithType(ErrTypeCorruptStream).
				WithTag("sector", idx)
		}

		s := &Sector{storage: make([]Brick, 0, bits.OnesCount64(mask))}
		for b := mask; b != 0; b &= b - 1 {
			i := uint32(bits.TrailingZeros64(b))
			if pack, err = readBrick(s.Brick(i, true), pack); err != nil {
				return corrupt("decoding brick failed", err)
			}
		}
		sectors[idx] = s
	}
	if len(pack) != 0 {
		return errors.Newf("trailing bytes after last sector").
			WithType(ErrTypeCorruptStream).
			WithTag("bytes", len(pack))
	}

	for idx, old := range m.Sectors {
		if _, ok := sectors[idx]; !ok {
			m.Dirty.Mark(idx, old.AllocationMask())
		}
	}
	m.Sectors = sectors
	m.Palette = palette
	m.MarkAllDirty()
	return nil
}

func readPack(r io.Reader, comp PackCompression) ([]byte, error) {
	var ph packHeader
	if err := binary.Read(r, binary.LittleEndian, &ph); err != nil {
		return nil, corrupt("reading pack header failed", err)
	}
	if ph.RawLen == 0 || ph.RawLen > maxBlockSize || ph.CompLen > maxBlockSize {
		return nil, errors.Newf("invalid pack size").
			WithType(ErrTypeCorruptStream).
			WithTag("raw_len", ph.RawLen).
			WithTag("comp_len", ph.CompLen)
	}
	payload := make([]byte, ph.CompLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, corrupt("reading pack failed", err)
	}
	raw, err := decompressBlock(comp, payload, int(ph.RawLen))
	if err != nil {
		return nil, wrapCodec("decompressing pack failed", err)
	}
	if sum := xxhash.Sum64(raw); sum != ph.Hash {
		return nil, errors.Newf("pack checksum mismatch").
			WithType(ErrTypeChecksum).
			WithTag("want", ph.Hash).
			WithTag("got", sum)
	}
	return raw, nil
}

func readBlock(r io.Reader, comp PackCompression, rawLen int) ([]byte, error) {
	var compLen uint32
	if err := binary.Read(r, binary.LittleEndian, &compLen); err != nil {
		return nil, corrupt("reading block length failed", err)
	}
	if compLen > maxBlockSize {
		return nil, errors.Newf("invalid block size").
			WithType(ErrTypeCorruptStream).
			WithTag("comp_len", compLen)
	}
	payload := make([]byte, compLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, corrupt("reading block failed", err)
	}
	raw, err := decompressBlock(comp, payload, rawLen)
	if err != nil {
		return nil, wrapCodec("decompressing block failed", err)
	}
	return raw, nil
}

func corrupt(msg string, err error) error {
	return errors.New(msg).WithType(ErrTypeCorruptStream).Wrap(err)
}

// wrapCodec keeps typed codec errors as they are and classifies anything
// else coming out of a decompressor as stream corruption.
func wrapCodec(msg string, err error) error {
	if errors.IsType(err, ErrTypeUnsupportedCodec) || errors.IsType(err, ErrTypeCorruptStream) {
		return err
	}
	return corrupt(msg, err)
}
