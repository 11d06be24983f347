package icons

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"appdex/internal/model"
)

var bucketIcons = []byte("icons")

// Store persists decoded icon assets across runs in a bbolt database,
// fronted by an in-memory LRU. Entries are lifecycled independently of
// the search index: an icon may be ready, a placeholder or absent
// regardless of what the current catalog generation contains.
type Store struct {
	db  *bbolt.DB
	mem *lru
}

// OpenStore opens (creating if needed) the icon database at path.
func OpenStore(path string, memCapacity int) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("icon store path is required")
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("cannot open icon store %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketIcons)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if memCapacity <= 0 {
		memCapacity = 256
	}
	return &Store{db: db, mem: newLRU(memCapacity)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the cached entry for id. A missing row reports state
// absent; callers render the default icon for absent and placeholder
// states alike.
func (s *Store) Get(id model.AppID) (*model.IconCacheEntry, bool) {
	if s == nil {
		return nil, false
	}
	if e, ok := s.mem.Get(id); ok {
		return e, true
	}

	var e *model.IconCacheEntry
	_ = s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketIcons).Get([]byte(id))
		if raw == nil {
			return nil
		}
		dec, err := decodeEntry(id, raw)
		if err != nil {
			return nil // unreadable row counts as absent
		}
		e = dec
		return nil
	})
	if e == nil {
		return nil, false
	}
	s.mem.Put(id, e)
	return e, true
}

// Put stores one entry and refreshes the memory front.
func (s *Store) Put(e *model.IconCacheEntry) error {
	if s == nil || e == nil || e.ID == "" {
		return fmt.Errorf("icon entry is incomplete")
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIcons).Put([]byte(e.ID), encodeEntry(e))
	})
	if err != nil {
		return err
	}
	s.mem.Put(e.ID, e)
	return nil
}

// Invalidate removes one entry so the next load refetches it.
func (s *Store) Invalidate(id model.AppID) error {
	if s == nil {
		return nil
	}
	s.mem.Delete(id)
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIcons).Delete([]byte(id))
	})
}

// Row format: state byte, fetched-at int64, format length uvarint,
// format bytes, asset bytes.
func encodeEntry(e *model.IconCacheEntry) []byte {
	var scratch [binary.MaxVarintLen64]byte
	out := make([]byte, 0, 1+8+len(e.Format)+len(e.Data)+2)
	out = append(out, byte(e.State))
	out = binary.LittleEndian.AppendUint64(out, uint64(e.FetchedAt))
	n := binary.PutUvarint(scratch[:], uint64(len(e.Format)))
	out = append(out, scratch[:n]...)
	out = append(out, e.Format...)
	out = append(out, e.Data...)
	return out
}

func decodeEntry(id model.AppID, raw []byte) (*model.IconCacheEntry, error) {
	if len(raw) < 9 {
		return nil, fmt.Errorf("icon row too short")
	}
	e := &model.IconCacheEntry{
		ID:        id,
		State:     model.IconState(raw[0]),
		FetchedAt: int64(binary.LittleEndian.Uint64(raw[1:9])),
	}
	rest := raw[9:]
	fl, n := binary.Uvarint(rest)
	if n <= 0 || uint64(len(rest)-n) < fl {
		return nil, fmt.Errorf("icon row format field broken")
	}
	rest = rest[n:]
	e.Format = string(rest[:fl])
	if data := rest[fl:]; len(data) > 0 {
		e.Data = append([]byte(nil), data...)
	}
	return e, nil
}
