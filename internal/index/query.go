package index

import (
	"sort"
	"strings"

	"appdex/internal/model"
)

// Filters are independent predicates combined by logical AND. The zero
// value matches every record.
type Filters struct {
	// Categories matches records carrying at least one of the given
	// categories (verbatim comparison, like the parser keeps them).
	Categories []string

	// MinDownloads excludes records whose merged download count is
	// below the threshold. Records without stats count as zero.
	MinDownloads uint64

	// MaxRisk excludes records assessed above the given level.
	MaxRisk *model.RiskLevel
}

func (f Filters) match(rec *model.IndexRecord) bool {
	if len(f.Categories) > 0 {
		found := false
	outer:
		for _, want := range f.Categories {
			for _, have := range rec.Entry.Categories {
				if have == want {
					found = true
					break outer
				}
			}
		}
		if !found {
			return false
		}
	}
	if rec.Downloads() < f.MinDownloads {
		return false
	}
	if f.MaxRisk != nil && rec.Assessment.Risk > *f.MaxRisk {
		return false
	}
	return true
}

// Query answers a text search over this generation. Matching is
// case-insensitive and whitespace-tokenized over name, category and
// summary terms. Ranking: exact name match, then prefix, then
// substring; ties broken by descending download count, then by
// identifier so results are deterministic.
//
// An empty query with filters is a browse: every record passing the
// filters, ordered by downloads then identifier.
func (idx *Index) Query(text string, f Filters) []model.AppID {
	if idx == nil {
		return nil
	}

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return idx.browse(f)
	}

	weights := map[model.AppID]int{}
	for _, tok := range tokens {
		for id, w := range idx.matchToken(tok) {
			if prev, ok := weights[id]; !ok || w < prev {
				weights[id] = w
			}
		}
	}

	type hit struct {
		id     model.AppID
		weight int
	}
	hits := make([]hit, 0, len(weights))
	for id, w := range weights {
		rec := idx.records[id]
		if !f.match(rec) {
			continue
		}
		hits = append(hits, hit{id: id, weight: w})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].weight != hits[j].weight {
			return hits[i].weight < hits[j].weight
		}
		di, dj := idx.records[hits[i].id].Downloads(), idx.records[hits[j].id].Downloads()
		if di != dj {
			return di > dj
		}
		return hits[i].id < hits[j].id
	})

	out := make([]model.AppID, len(hits))
	for i, h := range hits {
		out[i] = h.id
	}
	return out
}

// matchToken walks the precomputed posting list once and returns the
// best weight per record for one query token.
func (idx *Index) matchToken(tok string) map[model.AppID]int {
	out := map[model.AppID]int{}
	record := func(p *posting, kind int) {
		w := p.field + kind
		for _, id := range p.ids {
			if prev, ok := out[id]; !ok || w < prev {
				out[id] = w
			}
		}
	}

	// Prefix matches (including whole-term) live in a contiguous run
	// of the sorted posting list.
	start := sort.Search(len(idx.terms), func(i int) bool { return idx.terms[i].term >= tok })
	for i := start; i < len(idx.terms) && strings.HasPrefix(idx.terms[i].term, tok); i++ {
		p := &idx.terms[i]
		if p.term == tok {
			record(p, matchWhole)
		} else {
			record(p, matchPrefix)
		}
	}

	// Substring matches need the full vocabulary, but the vocabulary is
	// far smaller than the record set and was built once per generation.
	for i := range idx.terms {
		p := &idx.terms[i]
		if strings.HasPrefix(p.term, tok) {
			continue // already counted at a better rank
		}
		if strings.Contains(p.term, tok) {
			record(p, matchSubstring)
		}
	}
	return out
}

func (idx *Index) browse(f Filters) []model.AppID {
	var out []model.AppID
	for _, id := range idx.order {
		if f.match(idx.records[id]) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := idx.records[out[i]].Downloads(), idx.records[out[j]].Downloads()
		if di != dj {
			return di > dj
		}
		return out[i] < out[j]
	})
	return out
}
