package appdexd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"appdex/internal/index"
	"appdex/internal/model"
	"appdex/internal/orch"
	"appdex/internal/stats"
	"appdex/internal/version"
)

const defaultSearchLimit = 20

// Handlers serves requests against an orchestrator whose initial load
// has already completed. All methods read the currently published index
// generation; they never block on a rebuild in progress.
type Handlers struct {
	instanceID string
	orch       *orch.Orchestrator
	store      *stats.Store
}

func NewHandlers(o *orch.Orchestrator, store *stats.Store) *Handlers {
	return &Handlers{
		instanceID: uuid.NewString(),
		orch:       o,
		store:      store,
	}
}

func (h *Handlers) Search(p SearchParams) ([]SearchItem, error) {
	if h == nil || h.orch == nil {
		return nil, fmt.Errorf("handlers is nil")
	}
	idx := h.orch.Index().Current()
	if idx == nil {
		return nil, fmt.Errorf("no catalog loaded")
	}

	f := index.Filters{
		Categories:   p.Categories,
		MinDownloads: p.MinDownloads,
	}
	if p.MaxRisk != "" {
		r, ok := model.ParseRiskLevel(p.MaxRisk)
		if !ok {
			return nil, fmt.Errorf("unknown risk level %q", p.MaxRisk)
		}
		f.MaxRisk = &r
	}

	ids := idx.Query(p.Q, f)
	if p.Offset > 0 {
		if p.Offset >= len(ids) {
			ids = nil
		} else {
			ids = ids[p.Offset:]
		}
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	items := make([]SearchItem, 0, len(ids))
	for _, id := range ids {
		rec, ok := idx.Record(id)
		if !ok {
			continue
		}
		items = append(items, SearchItem{
			ID:        string(rec.ID),
			Name:      rec.Entry.Name,
			Summary:   rec.Entry.Summary,
			Origin:    rec.Entry.Origin,
			Risk:      rec.Assessment.Risk.String(),
			Support:   rec.Assessment.Support.String(),
			Reasons:   rec.Assessment.Reasons,
			Downloads: rec.Downloads(),
		})
	}
	return items, nil
}

func (h *Handlers) Status() (*StatusResult, error) {
	if h == nil || h.orch == nil {
		return nil, fmt.Errorf("handlers is nil")
	}
	res := &StatusResult{
		InstanceID: h.instanceID,
		Version:    version.String(),
	}
	if idx := h.orch.Index().Current(); idx != nil {
		res.Generation = idx.Generation()
		res.Apps = idx.Len()
	}
	if h.store != nil {
		if snap := h.store.Snapshot(); snap != nil {
			res.StatsPresent = true
			res.StatsGeneratedAt = snap.GeneratedAt
			res.StatsFresh = h.store.Fresh(time.Now())
		}
	}
	return res, nil
}

// Refresh forces a stats fetch and republishes the index from the new
// snapshot.
func (h *Handlers) Refresh(ctx context.Context) (*RefreshResult, error) {
	if h == nil || h.orch == nil {
		return nil, fmt.Errorf("handlers is nil")
	}
	if h.store == nil {
		return nil, fmt.Errorf("no stats source configured")
	}
	m, err := h.store.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	gen, err := h.orch.Rebuild()
	if err != nil {
		return nil, err
	}
	return &RefreshResult{
		Apps:        len(m.Entries),
		GeneratedAt: m.GeneratedAt,
		Generation:  gen,
	}, nil
}
