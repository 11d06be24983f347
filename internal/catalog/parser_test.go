package catalog

import (
	"bytes"
	"compress/gzip"
	"strings"
	"testing"
)

const sampleDoc = `<?xml version="1.0"?>
<components version="0.8" origin="test-origin">
  <component type="desktop-application">
    <id>org.example.App1</id>
    <name>App One</name>
    <summary>The first app</summary>
    <categories>
      <category>AudioVideo</category>
      <category>audiovideo</category>
    </categories>
    <icon type="remote">https://example.com/app1.png</icon>
    <custom>
      <value key="runtime">org.gnome.Platform/x86_64/45</value>
      <value key="sockets">wayland</value>
    </custom>
  </component>
  <component type="desktop-application">
    <id>org.example.App2</id>
    <name>App Two</name>
    <summary>The second app</summary>
    <icon type="cached">app2.png</icon>
  </component>
</components>
`

func TestParse_WellFormed(t *testing.T) {
	res, err := Parse(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Origin != "test-origin" {
		t.Fatalf("origin = %q, want test-origin", res.Origin)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(res.Entries))
	}
	if res.Skipped != 0 || res.Ignored != 0 {
		t.Fatalf("skipped=%d ignored=%d, want 0/0", res.Skipped, res.Ignored)
	}

	e := res.Entries[0]
	if e.ID != "org.example.App1" || e.Name != "App One" {
		t.Fatalf("unexpected first entry: %+v", e)
	}
	if e.Origin != "test-origin" {
		t.Fatalf("entry origin = %q", e.Origin)
	}
	if e.IconRef != "https://example.com/app1.png" {
		t.Fatalf("icon ref = %q", e.IconRef)
	}
	if len(e.FrameworkTags) != 1 || e.FrameworkTags[0] != "org.gnome.Platform/x86_64/45" {
		t.Fatalf("framework tags = %v", e.FrameworkTags)
	}
	if len(e.DependencyHints) != 1 || e.DependencyHints[0] != "wayland" {
		t.Fatalf("dependency hints = %v", e.DependencyHints)
	}
}

func TestParse_CategoriesVerbatim(t *testing.T) {
	res, err := Parse(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := res.Entries[0].Categories
	// Both spellings survive untouched; no case folding, no dedup.
	if len(got) != 2 || got[0] != "AudioVideo" || got[1] != "audiovideo" {
		t.Fatalf("categories = %v", got)
	}
}

func TestParse_MalformedEntriesSkippedNotFatal(t *testing.T) {
	doc := `<components origin="o">
  <component type="desktop-application">
    <id>org.example.Good</id>
    <name>Good</name>
  </component>
  <component type="desktop-application">
    <name>No Identifier</name>
  </component>
  <component type="desktop-application">
    <id>org.example.NoName</id>
  </component>
</components>`
	res, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(res.Entries))
	}
	if res.Skipped != 2 {
		t.Fatalf("skipped = %d, want 2", res.Skipped)
	}
	// Entries plus skips account for every component in the document.
	if len(res.Entries)+res.Skipped+res.Ignored != 3 {
		t.Fatalf("entry accounting broken: %d + %d + %d != 3",
			len(res.Entries), res.Skipped, res.Ignored)
	}
}

func TestParse_NonApplicationComponentsIgnored(t *testing.T) {
	doc := `<components origin="o">
  <component type="runtime">
    <id>org.example.Platform</id>
    <name>Platform</name>
  </component>
  <component type="desktop-application">
    <id>org.example.App</id>
    <name>App</name>
  </component>
</components>`
	res, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].ID != "org.example.App" {
		t.Fatalf("entries = %+v", res.Entries)
	}
	if res.Ignored != 1 || res.Skipped != 0 {
		t.Fatalf("ignored=%d skipped=%d, want 1/0", res.Ignored, res.Skipped)
	}
}

func TestParse_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(sampleDoc)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	res, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse gzip: %v", err)
	}
	if len(res.Entries) != 2 || res.Origin != "test-origin" {
		t.Fatalf("gzip parse: entries=%d origin=%q", len(res.Entries), res.Origin)
	}
}

func TestParse_BrokenDocumentFails(t *testing.T) {
	if _, err := Parse(strings.NewReader("<components><component>")); err == nil {
		t.Fatal("expected error for truncated document")
	}
}
