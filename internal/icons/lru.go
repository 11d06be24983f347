package icons

import (
	"container/list"
	"sync"

	"appdex/internal/model"
)

type lruItem struct {
	key model.AppID
	val *model.IconCacheEntry
}

// lru is a small in-memory front for the persistent icon store, so
// repeated searches over the same result pages never touch disk.
type lru struct {
	mu  sync.Mutex
	cap int
	ll  *list.List
	m   map[model.AppID]*list.Element
}

func newLRU(capacity int) *lru {
	if capacity <= 0 {
		capacity = 1
	}
	return &lru{
		cap: capacity,
		ll:  list.New(),
		m:   map[model.AppID]*list.Element{},
	}
}

func (c *lru) Get(key model.AppID) (*model.IconCacheEntry, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.m[key]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*lruItem).val, true
	}
	return nil, false
}

func (c *lru) Put(key model.AppID, val *model.IconCacheEntry) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.m[key]; ok {
		el.Value.(*lruItem).val = val
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&lruItem{key: key, val: val})
	c.m[key] = el

	for c.ll.Len() > c.cap {
		last := c.ll.Back()
		if last == nil {
			break
		}
		item := last.Value.(*lruItem)
		delete(c.m, item.key)
		c.ll.Remove(last)
	}
}

func (c *lru) Delete(key model.AppID) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.m[key]; ok {
		delete(c.m, key)
		c.ll.Remove(el)
	}
}
