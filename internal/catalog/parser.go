package catalog

import (
	"bufio"
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"appdex/internal/model"
)

// Result is the outcome of parsing one catalog document.
type Result struct {
	Origin  string
	Entries []*model.CatalogEntry

	// Skipped counts components that were present but malformed
	// (missing id, undecodable structure). Ignored counts well-formed
	// components of non-application types.
	Skipped int
	Ignored int
}

// gzipMagic is the two-byte header of a gzip stream.
var gzipMagic = []byte{0x1f, 0x8b}

// ParseFile opens and parses one catalog document, transparently
// decompressing gzipped files.
func ParseFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open catalog %s: %w", path, err)
	}
	defer f.Close()
	res, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("cannot parse catalog %s: %w", path, err)
	}
	return res, nil
}

// Parse reads a collection document as a stream and returns its entries.
// A malformed individual component is skipped and counted, never fatal;
// only a broken document structure aborts the parse.
func Parse(r io.Reader) (*Result, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(2); err == nil && head[0] == gzipMagic[0] && head[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("cannot open gzip stream: %w", err)
		}
		defer gz.Close()
		return parseXML(gz)
	}
	return parseXML(br)
}

type xmlCustomValue struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

type xmlIcon struct {
	Type string `xml:"type,attr"`
	Name string `xml:",chardata"`
}

type xmlComponent struct {
	Type        string           `xml:"type,attr"`
	ID          string           `xml:"id"`
	Name        string           `xml:"name"`
	Summary     string           `xml:"summary"`
	Description string           `xml:"description"`
	Icons       []xmlIcon        `xml:"icon"`
	Categories  []string         `xml:"categories>category"`
	Requires    []string         `xml:"requires>id"`
	Custom      []xmlCustomValue `xml:"custom>value"`
}

func parseXML(r io.Reader) (*Result, error) {
	dec := xml.NewDecoder(r)
	res := &Result{}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("catalog document is not well-formed: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "components":
			for _, attr := range se.Attr {
				if attr.Name.Local == "origin" {
					res.Origin = attr.Value
				}
			}
		case "component":
			var c xmlComponent
			if err := dec.DecodeElement(&c, &se); err != nil {
				res.Skipped++
				log.Printf("catalog: skipping undecodable component: %v", err)
				continue
			}
			entry, ok := componentEntry(&c, res.Origin)
			if !ok {
				res.Skipped++
				continue
			}
			if entry == nil {
				res.Ignored++
				continue
			}
			res.Entries = append(res.Entries, entry)
		}
	}
	return res, nil
}

// componentEntry converts one decoded component. It returns (nil, true)
// for well-formed components of types the catalog client does not index.
func componentEntry(c *xmlComponent, origin string) (*model.CatalogEntry, bool) {
	id := strings.TrimSpace(c.ID)
	if id == "" {
		log.Printf("catalog: skipping component without id (name=%q)", c.Name)
		return nil, false
	}
	if c.Type != "" && c.Type != "desktop-application" && c.Type != "desktop" {
		return nil, true
	}
	if strings.TrimSpace(c.Name) == "" {
		log.Printf("catalog: skipping component %s without name", id)
		return nil, false
	}

	entry := &model.CatalogEntry{
		ID:          model.AppID(id),
		Name:        strings.TrimSpace(c.Name),
		Summary:     strings.TrimSpace(c.Summary),
		Description: strings.TrimSpace(c.Description),
		Origin:      origin,
		IconRef:     pickIcon(c.Icons),
	}

	// Categories are carried verbatim: stored category taxonomies match
	// the source document, not a normalized form of it.
	entry.Categories = append(entry.Categories, c.Categories...)

	for _, req := range c.Requires {
		req = strings.TrimSpace(req)
		if req != "" {
			entry.DependencyHints = append(entry.DependencyHints, req)
		}
	}
	for _, cv := range c.Custom {
		val := strings.TrimSpace(cv.Value)
		if val == "" {
			continue
		}
		switch cv.Key {
		case "runtime", "toolkit", "framework":
			entry.FrameworkTags = append(entry.FrameworkTags, val)
		case "finish-args", "sockets":
			entry.DependencyHints = append(entry.DependencyHints, val)
		default:
			if entry.Extra == nil {
				entry.Extra = map[string]string{}
			}
			entry.Extra[cv.Key] = val
		}
	}
	return entry, true
}

// pickIcon prefers remote icon references over cached/stock names.
func pickIcon(icons []xmlIcon) string {
	var fallback string
	for _, ic := range icons {
		name := strings.TrimSpace(ic.Name)
		if name == "" {
			continue
		}
		if ic.Type == "remote" {
			return name
		}
		if fallback == "" {
			fallback = name
		}
	}
	return fallback
}
