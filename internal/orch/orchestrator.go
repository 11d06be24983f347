package orch

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"appdex/internal/catalog"
	"appdex/internal/compat"
	"appdex/internal/icons"
	"appdex/internal/index"
	"appdex/internal/model"
	"appdex/internal/stats"
)

// nowFunc is swapped in freshness tests.
var nowFunc = time.Now

// Stage names reported in progress events.
const (
	StageParse    = "parse"
	StageClassify = "classify"
	StageStats    = "stats"
	StageIndex    = "index"
	StageReady    = "ready"
)

// Progress is one startup progress event. Fraction is monotonically
// non-decreasing across a load and reaches 1.0 exactly when Ready.
type Progress struct {
	Stage    string
	Fraction float64
	Ready    bool
}

// Stage weights for the progress fraction. Icons are excluded: their
// pipeline is best-effort and never gates readiness.
const (
	weightParse    = 0.35
	weightClassify = 0.25
	weightStats    = 0.15
	weightIndex    = 0.25
)

// Result summarizes one completed load.
type Result struct {
	Entries      int
	Skipped      int
	Ignored      int
	StatsMerged  int
	Generation   uint64
	StatsAbsent  bool
	IconsStarted bool
}

// Options wires the orchestrator's collaborators. Stats and Icons may
// be nil: a missing stats cache or icon pipeline degrades the result,
// it never blocks startup.
type Options struct {
	Stats  *stats.Store
	Icons  *icons.Loader
	Holder *index.Holder

	// RefreshStats also triggers a background cache refresh when the
	// loaded cache is stale.
	RefreshStats bool

	// EventBuffer sizes the progress channel. Events are dropped, not
	// blocked on, when the consumer lags.
	EventBuffer int
}

// Orchestrator drives the startup sequence: parse, then classification
// and stats loading in parallel, then one wholesale index build
// published by atomic swap. Icon loading runs independently.
type Orchestrator struct {
	opts   Options
	holder *index.Holder

	events chan Progress

	mu       sync.Mutex
	lastFrac float64
	entries  []*model.CatalogEntry
	assess   map[model.AppID]model.Assessment
}

func New(opts Options) *Orchestrator {
	holder := opts.Holder
	if holder == nil {
		holder = &index.Holder{}
	}
	buf := opts.EventBuffer
	if buf <= 0 {
		buf = 64
	}
	return &Orchestrator{
		opts:   opts,
		holder: holder,
		events: make(chan Progress, buf),
	}
}

// Events returns the progress stream. The channel is never closed; a
// Ready event marks the end of one load.
func (o *Orchestrator) Events() <-chan Progress { return o.events }

// Index returns the holder the orchestrator publishes to.
func (o *Orchestrator) Index() *index.Holder { return o.holder }

// Load runs the full startup sequence over the given catalog documents.
// Cancelling ctx abandons in-flight work without corrupting any
// already-published generation.
func (o *Orchestrator) Load(ctx context.Context, sources []string, iconReqs func([]*model.CatalogEntry) []icons.Request) (*Result, error) {
	o.mu.Lock()
	o.lastFrac = 0
	o.mu.Unlock()

	res := &Result{}

	// Stage 1: parse every document, entry-granular fault tolerance.
	var entries []*model.CatalogEntry
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parsed, err := catalog.ParseFile(src)
		if err != nil {
			return nil, err
		}
		entries = append(entries, parsed.Entries...)
		res.Skipped += parsed.Skipped
		res.Ignored += parsed.Ignored
		o.emit(StageParse, weightParse*float64(i+1)/float64(len(sources)), false)
	}
	if len(sources) == 0 {
		o.emit(StageParse, weightParse, false)
	}
	res.Entries = len(entries)

	// Stage 2: classification and stats loading overlap; icon loading
	// starts now and is deliberately not awaited.
	assess := make(map[model.AppID]model.Assessment, len(entries))
	var assessMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		done := 0
		for _, e := range entries {
			if err := gctx.Err(); err != nil {
				return err
			}
			a := compat.Classify(e)
			assessMu.Lock()
			assess[e.ID] = a
			assessMu.Unlock()
			done++
			if done%256 == 0 || done == len(entries) {
				o.emit(StageClassify, weightParse+weightClassify*float64(done)/float64(max(len(entries), 1)), false)
			}
		}
		if len(entries) == 0 {
			o.emit(StageClassify, weightParse+weightClassify, false)
		}
		return nil
	})
	g.Go(func() error {
		defer o.emit(StageStats, weightParse+weightClassify+weightStats, false)
		if o.opts.Stats == nil {
			res.StatsAbsent = true
			return nil
		}
		if err := o.opts.Stats.Load(); err != nil {
			// Version mismatch, malformed payload and missing file all
			// collapse to "no stats"; enrichment is simply omitted.
			res.StatsAbsent = true
			log.Printf("orch: stats cache unavailable: %v", err)
		}
		if o.opts.RefreshStats && !o.opts.Stats.Fresh(nowFunc()) {
			go func() {
				if _, err := o.opts.Stats.Refresh(context.Background()); err != nil {
					log.Printf("orch: background stats refresh failed: %v", err)
				}
			}()
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if o.opts.Icons != nil && iconReqs != nil {
		reqs := iconReqs(entries)
		res.IconsStarted = len(reqs) > 0
		go func() {
			if _, err := o.opts.Icons.LoadAll(ctx, reqs); err != nil && ctx.Err() == nil {
				log.Printf("orch: icon batch ended early: %v", err)
			}
		}()
	}

	// Stage 3: one wholesale index build, atomically published.
	var snap *stats.Mapping
	if o.opts.Stats != nil {
		snap = o.opts.Stats.Snapshot()
	}
	idx := index.Build(entries, assess, snap)
	res.Generation = o.holder.Publish(idx)
	res.StatsMerged = countMerged(idx)
	o.emit(StageIndex, weightParse+weightClassify+weightStats+weightIndex, false)

	o.mu.Lock()
	o.entries = entries
	o.assess = assess
	o.mu.Unlock()

	o.emit(StageReady, 1.0, true)
	return res, nil
}

// Rebuild publishes a fresh generation from the retained catalog and
// the current stats snapshot. Used after a stats refresh lands.
func (o *Orchestrator) Rebuild() (uint64, error) {
	o.mu.Lock()
	entries := o.entries
	assess := o.assess
	o.mu.Unlock()
	if entries == nil {
		return 0, fmt.Errorf("no completed load to rebuild from")
	}

	var snap *stats.Mapping
	if o.opts.Stats != nil {
		snap = o.opts.Stats.Snapshot()
	}
	gen := o.holder.Publish(index.Build(entries, assess, snap))
	log.Printf("orch: republished index generation %d", gen)
	return gen, nil
}

// IconRequests builds the default icon batch from parsed entries,
// sorted by identifier for a stable request order.
func IconRequests(entries []*model.CatalogEntry) []icons.Request {
	var reqs []icons.Request
	for _, e := range entries {
		if e.IconRef != "" {
			reqs = append(reqs, icons.Request{ID: e.ID, Ref: e.IconRef})
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].ID < reqs[j].ID })
	return reqs
}

// emit publishes a progress event, clamped so the fraction never moves
// backwards even when parallel stages finish out of order.
func (o *Orchestrator) emit(stage string, fraction float64, ready bool) {
	o.mu.Lock()
	if fraction < o.lastFrac {
		fraction = o.lastFrac
	}
	o.lastFrac = fraction
	o.mu.Unlock()

	select {
	case o.events <- Progress{Stage: stage, Fraction: fraction, Ready: ready}:
	default:
		// Consumer lagging; progress is advisory.
	}
}

func countMerged(idx *index.Index) int {
	n := 0
	for _, id := range idx.Query("", index.Filters{}) {
		if rec, ok := idx.Record(id); ok && rec.Stats != nil {
			n++
		}
	}
	return n
}
