package voxel

import (
	"bufio"
	"bytes"
	"os"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// SaveFile serializes the map to filename, replacing any existing file.
func (m *Map) SaveFile(filename string, opts SaveOptions) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.New("creating map file failed").
			WithTag("file", filename).
			Wrap(err)
	}
	bw := bufio.NewWriterSize(f, 1<<20)
	if err := m.Serialize(bw, opts); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return errors.New("flushing map file failed").WithTag("file", filename).Wrap(err)
	}
	return f.Close()
}

// LoadFile replaces the map contents with the file at filename.
func (m *Map) LoadFile(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.New("opening map file failed").
			WithTag("file", filename).
			Wrap(err)
	}
	defer f.Close()
	return m.Deserialize(bufio.NewReaderSize(f, 1<<20))
}

// SaveBytes returns the serialized map.
func (m *Map) SaveBytes(opts SaveOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Serialize(&buf, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LoadMapFromBytes parses a serialized map from memory.
func LoadMapFromBytes(data []byte) (*Map, error) {
	m := NewMap()
	if err := m.Deserialize(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return m, nil
}
