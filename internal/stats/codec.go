package stats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"appdex/internal/model"
)

// The cache artifact is a little-endian binary file:
//
//	magic   [4]byte "ADXS"
//	version uint16
//	header  (version 8: generated-at int64)
//	count   uint32
//	entries count times:
//	  id length   uvarint
//	  id bytes
//	  downloads   uvarint
//	  updated-at  varint (unix seconds)
//
// Version 7 artifacts lack the generated-at header field; they are
// still decoded so an already-downloaded older cache keeps working.
const (
	SchemaVersion   uint16 = 8
	schemaVersionV7 uint16 = 7

	maxIDLen = 4096
)

var magic = [4]byte{'A', 'D', 'X', 'S'}

// Mapping is the decoded artifact: an immutable popularity mapping plus
// the generation timestamp stamped by the external producer job.
type Mapping struct {
	GeneratedAt int64
	Entries     map[model.AppID]model.StatsEntry
}

// Decode reads one artifact. Any structural problem yields ErrMalformed
// and an unknown schema version yields ErrVersionMismatch; in both
// cases the caller treats the cache as absent.
func Decode(r io.Reader) (*Mapping, error) {
	br := bufio.NewReader(r)

	var head [4]byte
	if _, err := io.ReadFull(br, head[:]); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrMalformed, err)
	}
	if head != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrMalformed, head[:])
	}

	var version uint16
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("%w: short version field: %v", ErrMalformed, err)
	}

	m := &Mapping{Entries: map[model.AppID]model.StatsEntry{}}
	switch version {
	case SchemaVersion:
		if err := binary.Read(br, binary.LittleEndian, &m.GeneratedAt); err != nil {
			return nil, fmt.Errorf("%w: short generated-at field: %v", ErrMalformed, err)
		}
	case schemaVersionV7:
		// No generation timestamp in the v7 header.
	default:
		return nil, fmt.Errorf("%w: version %d (supported: %d, %d)",
			ErrVersionMismatch, version, SchemaVersion, schemaVersionV7)
	}

	var count uint32
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: short count field: %v", ErrMalformed, err)
	}

	for i := uint32(0); i < count; i++ {
		idLen, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrMalformed, i, err)
		}
		if idLen == 0 || idLen > maxIDLen {
			return nil, fmt.Errorf("%w: entry %d: id length %d", ErrMalformed, i, idLen)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(br, idBytes); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrMalformed, i, err)
		}
		downloads, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d downloads: %v", ErrMalformed, i, err)
		}
		updatedAt, err := binary.ReadVarint(br)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d timestamp: %v", ErrMalformed, i, err)
		}

		id := model.AppID(idBytes)
		m.Entries[id] = model.StatsEntry{
			ID:            id,
			Downloads:     downloads,
			UpdatedAt:     updatedAt,
			SchemaVersion: version,
		}
	}

	if _, err := br.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after %d entries", ErrMalformed, count)
	}
	return m, nil
}

// Encode writes an artifact in the current schema version. Entries are
// written in map order; readers never depend on entry order.
func Encode(w io.Writer, m *Mapping) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(magic[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, SchemaVersion); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, m.GeneratedAt); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(m.Entries))); err != nil {
		return err
	}

	var scratch [binary.MaxVarintLen64]byte
	for id, e := range m.Entries {
		if len(id) == 0 || len(id) > maxIDLen {
			return fmt.Errorf("cannot encode entry with id length %d", len(id))
		}
		n := binary.PutUvarint(scratch[:], uint64(len(id)))
		if _, err := bw.Write(scratch[:n]); err != nil {
			return err
		}
		if _, err := bw.WriteString(string(id)); err != nil {
			return err
		}
		n = binary.PutUvarint(scratch[:], e.Downloads)
		if _, err := bw.Write(scratch[:n]); err != nil {
			return err
		}
		n = binary.PutVarint(scratch[:], e.UpdatedAt)
		if _, err := bw.Write(scratch[:n]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// EncodeBytes is Encode into a fresh buffer.
func EncodeBytes(m *Mapping) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
