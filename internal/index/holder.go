package index

import "sync/atomic"

// Holder publishes index generations by atomic pointer swap. Readers
// always observe either the fully-old or the fully-new generation,
// never a mix, without taking any lock.
type Holder struct {
	cur atomic.Pointer[Index]
	gen atomic.Uint64
}

// Current returns the published generation, nil before the first
// Publish.
func (h *Holder) Current() *Index {
	if h == nil {
		return nil
	}
	return h.cur.Load()
}

// Publish stamps idx with the next generation number and swaps it in.
// The previous generation keeps serving queries already holding it.
func (h *Holder) Publish(idx *Index) uint64 {
	if h == nil || idx == nil {
		return 0
	}
	idx.generation = h.gen.Add(1)
	h.cur.Store(idx)
	return idx.generation
}
