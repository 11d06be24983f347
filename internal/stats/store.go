package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"

	"appdex/internal/model"
)

// DefaultMaxAge is how long a downloaded artifact counts as fresh.
const DefaultMaxAge = 30 * 24 * time.Hour

const metaFileName = "stats-meta.json"

// Store holds the current popularity mapping and refreshes it from a
// Source. The mapping is an immutable snapshot published by pointer
// swap: readers always observe a complete mapping, never a half-updated
// one, and a stale snapshot keeps serving until its replacement lands.
type Store struct {
	path   string
	source Source
	maxAge time.Duration

	cur atomic.Pointer[Mapping]
	sf  singleflight.Group
}

// Options configures a Store. Source may be nil for offline use, in
// which case Refresh reports an error and the on-disk cache is all
// there is.
type Options struct {
	Path   string
	Source Source
	MaxAge time.Duration
}

func NewStore(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("cache path is required")
	}
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Store{
		path:   opts.Path,
		source: opts.Source,
		maxAge: maxAge,
	}, nil
}

// Snapshot returns the currently published mapping, nil when no usable
// cache has been loaded. Safe for concurrent use; lock-free.
func (s *Store) Snapshot() *Mapping {
	if s == nil {
		return nil
	}
	return s.cur.Load()
}

// Lookup returns one application's stats from the current snapshot.
func (s *Store) Lookup(id model.AppID) (model.StatsEntry, bool) {
	m := s.Snapshot()
	if m == nil {
		return model.StatsEntry{}, false
	}
	e, ok := m.Entries[id]
	return e, ok
}

// Load reads the on-disk artifact and publishes it. A missing,
// version-mismatched or malformed artifact leaves the store empty and
// returns a cache-absent error the caller treats as non-fatal.
func (s *Store) Load() error {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrNoCache, s.path)
	}
	if err != nil {
		return fmt.Errorf("cannot open stats cache %s: %w", s.path, err)
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return err
	}
	if m.GeneratedAt == 0 {
		// v7 artifacts carry no generation timestamp; fall back to the
		// file's modification time for the freshness policy.
		if st, err := os.Stat(s.path); err == nil {
			m.GeneratedAt = st.ModTime().Unix()
		}
	}
	s.cur.Store(m)
	return nil
}

// Fresh reports whether the published snapshot is younger than the
// configured window. An empty store is never fresh.
func (s *Store) Fresh(now time.Time) bool {
	m := s.Snapshot()
	if m == nil {
		return false
	}
	age := now.Sub(time.Unix(m.GeneratedAt, 0))
	return age >= 0 && age < s.maxAge
}

// Refresh fetches the latest published artifact and atomically replaces
// the snapshot. Concurrent calls collapse into a single in-flight fetch
// and all callers observe the same result. A failed refresh keeps the
// prior snapshot; the error is for reporting only.
func (s *Store) Refresh(ctx context.Context) (*Mapping, error) {
	v, err, _ := s.sf.Do("refresh", func() (any, error) {
		return s.refreshOnce(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Mapping), nil
}

func (s *Store) refreshOnce(ctx context.Context) (*Mapping, error) {
	if s.source == nil {
		return nil, fmt.Errorf("no stats source configured")
	}

	remoteMeta := s.remoteMetadata(ctx)
	if remoteMeta != nil {
		if cur := s.Snapshot(); cur != nil && cur.GeneratedAt >= remoteMeta.GeneratedAt {
			log.Printf("stats: cached artifact is current (generated %d)", cur.GeneratedAt)
			return cur, nil
		}
	}

	raw, err := s.source.FetchArtifact(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats refresh failed: %w", err)
	}
	m, err := Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("stats refresh fetched unusable artifact: %w", err)
	}

	if err := s.writeArtifact(raw, remoteMeta); err != nil {
		// A cache-dir write failure does not invalidate the fetched
		// mapping; it only costs a re-download on the next run.
		log.Printf("stats: cannot persist refreshed artifact: %v", err)
	}

	s.cur.Store(m)
	log.Printf("stats: refreshed %d entries (generated %d)", len(m.Entries), m.GeneratedAt)
	return m, nil
}

// remoteMetadata is best-effort: when the sidecar cannot be fetched the
// artifact is downloaded unconditionally, the safe direction.
func (s *Store) remoteMetadata(ctx context.Context) *Metadata {
	m, err := s.source.FetchMetadata(ctx)
	if err != nil {
		log.Printf("stats: cannot fetch metadata, downloading artifact: %v", err)
		return nil
	}
	return m
}

// writeArtifact replaces the on-disk cache via temp file + rename, with
// a file lock so concurrent processes do not interleave writes.
func (s *Store) writeArtifact(raw []byte, meta *Metadata) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	fl := flock.New(s.path + ".lock")
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("cannot lock stats cache: %w", err)
	}
	defer fl.Unlock()

	tmp, err := os.CreateTemp(dir, ".stats-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return err
	}

	if meta != nil {
		if b, err := json.Marshal(meta); err == nil {
			_ = os.WriteFile(filepath.Join(dir, metaFileName), b, 0o644)
		}
	}
	return nil
}

// Drop discards entries whose identifier does not appear in known. The
// catalog is authoritative for existence; orphan stats rows are dropped
// silently. Returns a new snapshot without touching the published one.
func Drop(m *Mapping, known map[model.AppID]bool) *Mapping {
	if m == nil {
		return nil
	}
	out := &Mapping{GeneratedAt: m.GeneratedAt, Entries: map[model.AppID]model.StatsEntry{}}
	for id, e := range m.Entries {
		if known[id] {
			out.Entries[id] = e
		}
	}
	return out
}
