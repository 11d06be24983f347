package appdexd

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"appdex/internal/model"
	"appdex/internal/orch"
	"appdex/internal/stats"
)

const daemonCatalog = `<?xml version="1.0" encoding="UTF-8"?>
<components origin="flathub">
  <component type="desktop-application">
    <id>org.example.Shell</id>
    <name>Shell</name>
    <summary>A terminal shell</summary>
    <categories><category>System</category></categories>
    <custom>
      <value key="toolkit">gtk4</value>
      <value key="sockets">wayland</value>
    </custom>
  </component>
  <component type="desktop-application">
    <id>org.example.Pad</id>
    <name>Pad</name>
    <summary>A scratch pad built on electron</summary>
    <custom>
      <value key="framework">electron</value>
    </custom>
  </component>
</components>
`

func startLoadedServer(t *testing.T, store *stats.Store) (*Server, *orch.Orchestrator) {
	t.Helper()

	dir := t.TempDir()
	catalog := filepath.Join(dir, "catalog.xml")
	if err := os.WriteFile(catalog, []byte(daemonCatalog), 0o644); err != nil {
		t.Fatal(err)
	}

	o := orch.New(orch.Options{Stats: store})
	if _, err := o.Load(context.Background(), []string{catalog}, nil); err != nil {
		t.Fatalf("load: %v", err)
	}

	s := NewServer(Options{
		Listen:   "127.0.0.1:0",
		Handlers: NewHandlers(o, store),
	})
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run() }()
	t.Cleanup(func() {
		_ = s.Close()
		select {
		case <-errCh:
		case <-time.After(time.Second):
			t.Error("server did not stop within 1s after Close")
		}
	})
	waitAddr(t, s, time.Second)
	return s, o
}

func TestServerPingAndVersion(t *testing.T) {
	s, _ := startLoadedServer(t, nil)

	c, err := Dial(s.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if err := c.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	v, err := c.Version()
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v == "" {
		t.Fatal("empty version")
	}
}

func TestServerSearch(t *testing.T) {
	s, _ := startLoadedServer(t, nil)

	c, err := Dial(s.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	items, err := c.Search(SearchParams{Q: "shell"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 1 || items[0].ID != "org.example.Shell" {
		t.Fatalf("unexpected results: %+v", items)
	}
	if items[0].Risk != "low" {
		t.Fatalf("risk=%s", items[0].Risk)
	}

	items, err = c.Search(SearchParams{MaxRisk: "medium"})
	if err != nil {
		t.Fatalf("filtered search: %v", err)
	}
	for _, it := range items {
		if it.ID == "org.example.Pad" {
			t.Fatalf("high-risk app leaked through filter: %+v", items)
		}
	}

	if _, err := c.Search(SearchParams{MaxRisk: "scary"}); err == nil {
		t.Fatal("expected error for unknown risk level")
	}
}

func TestServerStatus(t *testing.T) {
	s, o := startLoadedServer(t, nil)

	c, err := Dial(s.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	st, err := c.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Apps != 2 {
		t.Fatalf("apps=%d", st.Apps)
	}
	if st.Generation != o.Index().Current().Generation() {
		t.Fatalf("generation=%d", st.Generation)
	}
	if st.InstanceID == "" {
		t.Fatal("empty instance id")
	}
	if st.StatsPresent {
		t.Fatal("stats should be absent")
	}
}

func TestServerRefreshWithoutSource(t *testing.T) {
	s, _ := startLoadedServer(t, nil)

	c, err := Dial(s.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if _, err := c.Refresh(); err == nil {
		t.Fatal("expected error with no stats source")
	}
}

type staticSource struct {
	artifact []byte
}

func (s *staticSource) FetchArtifact(ctx context.Context) ([]byte, error) { return s.artifact, nil }
func (s *staticSource) FetchMetadata(ctx context.Context) (*stats.Metadata, error) {
	return nil, context.Canceled
}

func TestServerRefreshRepublishes(t *testing.T) {
	raw, err := stats.EncodeBytes(&stats.Mapping{
		GeneratedAt: time.Now().Unix(),
		Entries: map[model.AppID]model.StatsEntry{
			"org.example.Shell": {ID: "org.example.Shell", Downloads: 4242},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	store, err := stats.NewStore(stats.Options{
		Path:   filepath.Join(t.TempDir(), "stats.bin"),
		Source: &staticSource{artifact: raw},
	})
	if err != nil {
		t.Fatal(err)
	}

	s, o := startLoadedServer(t, store)
	gen := o.Index().Current().Generation()

	c, err := Dial(s.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	res, err := c.Refresh()
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if res.Apps != 1 || res.Generation <= gen {
		t.Fatalf("refresh result: %+v (prior gen %d)", res, gen)
	}

	items, err := c.Search(SearchParams{Q: "shell"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 1 || items[0].Downloads != 4242 {
		t.Fatalf("downloads not merged: %+v", items)
	}
}

func TestServerMalformedLine(t *testing.T) {
	s, _ := startLoadedServer(t, nil)

	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	if _, err := conn.Write([]byte("{not json\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	dec := json.NewDecoder(conn)
	var resp Response
	if err := dec.Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != -32700 {
		t.Fatalf("expected parse error, got %+v", resp)
	}

	// The connection stays usable after a parse error.
	if _, err := conn.Write([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n")); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	resp = Response{}
	if err := dec.Decode(&resp); err != nil {
		t.Fatalf("decode ping: %v", err)
	}
	if resp.Error != nil || resp.Result != "pong" {
		t.Fatalf("ping after parse error: %+v", resp)
	}
}

func TestServerUnknownMethod(t *testing.T) {
	s, _ := startLoadedServer(t, nil)

	c, err := Dial(s.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	var out any
	err = c.call("nope", nil, &out)
	if err == nil {
		t.Fatal("expected method-not-found error")
	}
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != -32601 {
		t.Fatalf("err=%v", err)
	}
}

func waitAddr(t *testing.T, s *Server, timeout time.Duration) string {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if addr := s.Addr(); addr != "" {
			return addr
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server did not start listening in time")
	return ""
}
