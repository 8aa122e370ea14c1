package lookup

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

const msgpackVersion = 1

type encodedTable struct {
	Version int         `msgpack:"version"`
	UnitIDs []int       `msgpack:"unit_ids"`
	Area    [][]float64 `msgpack:"area"`
	Volume  [][]float64 `msgpack:"volume"`
}

// EncodeMsgpack writes the table as a single MessagePack document.
func (t *Table) EncodeMsgpack(w io.Writer) error {
	enc := msgpack.NewEncoder(w)
	return enc.Encode(encodedTable{
		Version: msgpackVersion,
		UnitIDs: t.UnitIDs,
		Area:    t.Areas(),
		Volume:  t.Volumes(),
	})
}

// DecodeMsgpack reads a table written by EncodeMsgpack and validates it.
func DecodeMsgpack(r io.Reader) (*Table, error) {
	var et encodedTable
	if err := msgpack.NewDecoder(r).Decode(&et); err != nil {
		return nil, fmt.Errorf("failed to decode lookup table: %w", err)
	}
	if et.Version != msgpackVersion {
		return nil, fmt.Errorf("unsupported lookup table version %d", et.Version)
	}

	t, err := FromRows(et.UnitIDs, et.Area, et.Volume)
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
