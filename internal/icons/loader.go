package icons

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"appdex/internal/model"
)

// Request names one icon to load.
type Request struct {
	ID  model.AppID
	Ref string
}

// BatchResult summarizes one LoadAll run. Per-asset failures never
// fail the batch; they surface as placeholder entries.
type BatchResult struct {
	Fetched      int
	Placeholders int
	Reused       int
}

// Loader populates the icon store with bounded concurrency. Completion
// order is independent of request order and of the search pipeline.
type Loader struct {
	store   *Store
	fetcher Fetcher
	workers int
	limiter *rate.Limiter
}

type LoaderOptions struct {
	Workers int
	// FetchRate caps fetches per second against the media host.
	// Zero means unlimited.
	FetchRate float64
	Burst     int
}

func NewLoader(store *Store, fetcher Fetcher, opts LoaderOptions) *Loader {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	var limiter *rate.Limiter
	if opts.FetchRate > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = workers
		}
		limiter = rate.NewLimiter(rate.Limit(opts.FetchRate), burst)
	}
	return &Loader{
		store:   store,
		fetcher: fetcher,
		workers: workers,
		limiter: limiter,
	}
}

// LoadAll fetches and decodes every requested icon that is not already
// cached. One unreachable or undecodable asset marks its identifier
// with a placeholder and the rest of the batch proceeds. Cancellation
// stops issuing new work; icons decoded before the cancel stay cached.
func (l *Loader) LoadAll(ctx context.Context, reqs []Request) (BatchResult, error) {
	var fetched, placeholders, reused atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)

	for _, req := range reqs {
		req := req
		if req.ID == "" || req.Ref == "" {
			continue
		}
		if cached, ok := l.store.Get(req.ID); ok && cached.State == model.IconReady {
			reused.Add(1)
			continue
		}
		if err := ctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := l.loadOne(ctx, req); err != nil {
				if ctx.Err() != nil {
					return nil // cancelled mid-fetch, not a failure
				}
				log.Printf("icons: %s: using placeholder: %v", req.ID, err)
				l.markPlaceholder(req.ID)
				placeholders.Add(1)
				return nil
			}
			fetched.Add(1)
			return nil
		})
	}

	err := g.Wait()
	res := BatchResult{
		Fetched:      int(fetched.Load()),
		Placeholders: int(placeholders.Load()),
		Reused:       int(reused.Load()),
	}
	if err != nil {
		return res, err
	}
	return res, ctx.Err()
}

func (l *Loader) loadOne(ctx context.Context, req Request) error {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	data, err := l.fetcher.Fetch(ctx, req.Ref)
	if err != nil {
		return err
	}
	format, err := sniffFormat(data)
	if err != nil {
		return err
	}
	return l.store.Put(&model.IconCacheEntry{
		ID:        req.ID,
		State:     model.IconReady,
		Format:    format,
		FetchedAt: time.Now().Unix(),
		Data:      data,
	})
}

func (l *Loader) markPlaceholder(id model.AppID) {
	err := l.store.Put(&model.IconCacheEntry{
		ID:        id,
		State:     model.IconPlaceholder,
		FetchedAt: time.Now().Unix(),
	})
	if err != nil {
		log.Printf("icons: cannot record placeholder for %s: %v", id, err)
	}
}
