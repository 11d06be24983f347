package index

import (
	"sort"
	"strings"

	"appdex/internal/model"
	"appdex/internal/stats"
)

// Field weights for ranking. Within a field, a whole-term match beats a
// prefix match beats a substring match; a name match of any kind beats
// a summary match. Lower weight ranks earlier.
const (
	fieldName     = 0
	fieldCategory = 3
	fieldSummary  = 6

	matchWhole     = 0
	matchPrefix    = 1
	matchSubstring = 2

	weightNone = int(^uint(0) >> 1)
)

// posting is one searchable term of one record.
type posting struct {
	term  string
	field int
	ids   []model.AppID
}

// Index is one immutable, fully-built catalog generation. Queries
// against an Index never observe partial state; rebuilding produces a
// new Index published via Holder.
type Index struct {
	generation uint64

	records map[model.AppID]*model.IndexRecord
	order   []model.AppID // all ids, sorted, for filter-only browsing

	// terms is the sorted posting list, precomputed once at build time
	// so repeated queries (paging, filter toggles) never re-scan the
	// records themselves.
	terms []posting
}

// Build assembles a new generation from parser output, classifier
// output and the current stats snapshot. Stats or assessments for
// identifiers with no catalog entry are dropped: the catalog is
// authoritative for existence.
func Build(entries []*model.CatalogEntry, assessments map[model.AppID]model.Assessment, snap *stats.Mapping) *Index {
	idx := &Index{
		records: make(map[model.AppID]*model.IndexRecord, len(entries)),
	}

	for _, e := range entries {
		if e == nil || e.ID == "" {
			continue
		}
		if _, dup := idx.records[e.ID]; dup {
			continue
		}
		rec := &model.IndexRecord{ID: e.ID, Entry: e}
		if a, ok := assessments[e.ID]; ok {
			rec.Assessment = a
		} else {
			rec.Assessment = model.Assessment{ID: e.ID, Risk: model.RiskMedium, Reasons: []string{"unclassified"}}
		}
		if snap != nil {
			if se, ok := snap.Entries[e.ID]; ok {
				c := se
				rec.Stats = &c
			}
		}
		idx.records[e.ID] = rec
		idx.order = append(idx.order, e.ID)
	}
	sort.Slice(idx.order, func(i, j int) bool { return idx.order[i] < idx.order[j] })

	idx.buildPostings()
	return idx
}

func (idx *Index) buildPostings() {
	byTerm := map[string]*posting{}
	add := func(term string, field int, id model.AppID) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			return
		}
		key := term + "\x00" + string(rune('0'+field))
		p, ok := byTerm[key]
		if !ok {
			p = &posting{term: term, field: field}
			byTerm[key] = p
		}
		p.ids = append(p.ids, id)
	}

	for _, id := range idx.order {
		rec := idx.records[id]
		for _, tok := range tokenize(rec.Entry.Name) {
			add(tok, fieldName, id)
		}
		for _, cat := range rec.Entry.Categories {
			for _, tok := range tokenize(cat) {
				add(tok, fieldCategory, id)
			}
		}
		for _, tok := range tokenize(rec.Entry.Summary) {
			add(tok, fieldSummary, id)
		}
	}

	idx.terms = make([]posting, 0, len(byTerm))
	for _, p := range byTerm {
		idx.terms = append(idx.terms, *p)
	}
	sort.Slice(idx.terms, func(i, j int) bool {
		if idx.terms[i].term != idx.terms[j].term {
			return idx.terms[i].term < idx.terms[j].term
		}
		return idx.terms[i].field < idx.terms[j].field
	})
}

// Generation returns the number stamped by the Holder at publish time.
func (idx *Index) Generation() uint64 {
	if idx == nil {
		return 0
	}
	return idx.generation
}

// Len returns the number of records in this generation.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.records)
}

// Record returns the merged view for one identifier.
func (idx *Index) Record(id model.AppID) (*model.IndexRecord, bool) {
	if idx == nil {
		return nil, false
	}
	r, ok := idx.records[id]
	return r, ok
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}
