package stats

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"appdex/internal/model"
)

type fakeSource struct {
	mu       sync.Mutex
	fetches  int32
	delay    time.Duration
	artifact []byte
	meta     *Metadata
	fail     bool
}

func (f *fakeSource) FetchArtifact(ctx context.Context) ([]byte, error) {
	atomic.AddInt32(&f.fetches, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("source unavailable")
	}
	return f.artifact, nil
}

func (f *fakeSource) FetchMetadata(ctx context.Context) (*Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.meta == nil {
		return nil, errors.New("no metadata published")
	}
	return f.meta, nil
}

func writeArtifactFile(t *testing.T, dir string, m *Mapping) string {
	t.Helper()
	raw, err := EncodeBytes(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	path := filepath.Join(dir, "stats.bin")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestStore_LoadMissingIsAbsent(t *testing.T) {
	s, err := NewStore(Options{Path: filepath.Join(t.TempDir(), "stats.bin")})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	err = s.Load()
	if !errors.Is(err, ErrNoCache) {
		t.Fatalf("err = %v, want ErrNoCache", err)
	}
	if s.Snapshot() != nil {
		t.Fatal("snapshot should be nil with no cache")
	}
}

func TestStore_LoadAndLookup(t *testing.T) {
	dir := t.TempDir()
	path := writeArtifactFile(t, dir, sampleMapping())

	s, err := NewStore(Options{Path: path})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	e, ok := s.Lookup("org.example.App1")
	if !ok || e.Downloads != 12345 {
		t.Fatalf("lookup = %+v ok=%v", e, ok)
	}
}

func TestStore_Freshness(t *testing.T) {
	dir := t.TempDir()
	m := sampleMapping()
	m.GeneratedAt = time.Now().Add(-40 * 24 * time.Hour).Unix()
	path := writeArtifactFile(t, dir, m)

	s, err := NewStore(Options{Path: path, MaxAge: 30 * 24 * time.Hour})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Fresh(time.Now()) {
		t.Fatal("40-day-old cache reported fresh")
	}
	// Stale but loaded: still serves.
	if _, ok := s.Lookup("org.example.App1"); !ok {
		t.Fatal("stale cache must keep serving until replaced")
	}
}

func TestStore_ConcurrentRefreshSingleFetch(t *testing.T) {
	raw, err := EncodeBytes(sampleMapping())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	src := &fakeSource{artifact: raw, delay: 50 * time.Millisecond}

	s, err := NewStore(Options{
		Path:   filepath.Join(t.TempDir(), "stats.bin"),
		Source: src,
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	const n = 8
	results := make([]*Mapping, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := s.Refresh(context.Background())
			if err != nil {
				t.Errorf("Refresh %d: %v", i, err)
				return
			}
			results[i] = m
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&src.fetches); got != 1 {
		t.Fatalf("underlying fetches = %d, want 1", got)
	}
	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("caller %d observed a different mapping", i)
		}
	}
}

func TestStore_RefreshFailureKeepsPriorSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := writeArtifactFile(t, dir, sampleMapping())

	src := &fakeSource{fail: true}
	s, err := NewStore(Options{Path: path, Source: src})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	before := s.Snapshot()
	if _, err := s.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if s.Snapshot() != before {
		t.Fatal("failed refresh replaced the snapshot")
	}
}

func TestStore_RefreshSkipsWhenMetadataCurrent(t *testing.T) {
	dir := t.TempDir()
	m := sampleMapping()
	m.GeneratedAt = time.Now().Unix()
	path := writeArtifactFile(t, dir, m)

	src := &fakeSource{meta: &Metadata{GeneratedAt: m.GeneratedAt - 100}}
	s, err := NewStore(Options{Path: path, Source: src})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	got, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got != s.Snapshot() {
		t.Fatal("current cache should be returned as-is")
	}
	if atomic.LoadInt32(&src.fetches) != 0 {
		t.Fatal("artifact fetched despite current cache")
	}
}

func TestStore_RefreshPersistsAndSwaps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stats.bin")

	remote := &Mapping{
		GeneratedAt: time.Now().Unix(),
		Entries: map[model.AppID]model.StatsEntry{
			"org.example.New": {ID: "org.example.New", Downloads: 9, SchemaVersion: SchemaVersion},
		},
	}
	raw, err := EncodeBytes(remote)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	src := &fakeSource{artifact: raw, meta: &Metadata{GeneratedAt: remote.GeneratedAt}}

	s, err := NewStore(Options{Path: path, Source: src})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, ok := s.Lookup("org.example.New"); !ok {
		t.Fatal("refreshed snapshot not published")
	}

	// Artifact landed on disk and reloads cleanly in a new store.
	s2, err := NewStore(Options{Path: path})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s2.Load(); err != nil {
		t.Fatalf("Load after refresh: %v", err)
	}
	if _, ok := s2.Lookup("org.example.New"); !ok {
		t.Fatal("persisted artifact missing refreshed entry")
	}
}
