// Package cache holds synthesized narrations for the lifetime of the process.
package cache

import (
	"container/list"
	"sync"

	"github.com/sirupsen/logrus"

	"kidlingo/internal/domain/narration"
)

// Stats is a snapshot of store counters.
type Stats struct {
	Entries    int   `json:"entries"`
	MaxEntries int   `json:"maxEntries"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
}

type entry struct {
	key   Key
	asset *narration.Asset
}

// Store maps cache keys to synthesized assets. With maxEntries of zero the
// store grows without bound; otherwise the least recently used entry is
// evicted once the limit is reached. Safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	maxEntries int
	items      map[Key]*list.Element
	byID       map[string]*list.Element
	order      *list.List
	hits       int64
	misses     int64
	evictions  int64
	log        logrus.FieldLogger
}

// NewStore creates an empty store.
func NewStore(maxEntries int, log logrus.FieldLogger) *Store {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &Store{
		maxEntries: maxEntries,
		items:      make(map[Key]*list.Element),
		byID:       make(map[string]*list.Element),
		order:      list.New(),
		log:        log,
	}
}

// Put stores asset under key and returns it. A second write for the same key
// replaces the first.
func (s *Store) Put(key Key, asset *narration.Asset) *narration.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[key]; ok {
		old := elem.Value.(*entry)
		delete(s.byID, old.asset.ID)
		old.asset = asset
		s.byID[asset.ID] = elem
		s.order.MoveToFront(elem)
		return asset
	}

	if s.maxEntries > 0 {
		for s.order.Len() >= s.maxEntries {
			s.evictOldestLocked()
		}
	}

	elem := s.order.PushFront(&entry{key: key, asset: asset})
	s.items[key] = elem
	s.byID[asset.ID] = elem

	s.log.WithFields(logrus.Fields{
		"key":     key.String(),
		"bytes":   len(asset.Payload),
		"entries": s.order.Len(),
	}).Debug("cache store")
	return asset
}

// Get returns the asset cached under key.
func (s *Store) Get(key Key) (*narration.Asset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		s.misses++
		return nil, false
	}
	s.order.MoveToFront(elem)
	s.hits++
	return elem.Value.(*entry).asset, true
}

// Peek is Get without touching counters or recency.
func (s *Store) Peek(key Key) (*narration.Asset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		return nil, false
	}
	return elem.Value.(*entry).asset, true
}

// GetByID returns a cached asset by its ID. It does not touch hit counters.
func (s *Store) GetByID(id string) (*narration.Asset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return elem.Value.(*entry).asset, true
}

// Len returns the number of cached assets.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Stats returns current counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Entries:    s.order.Len(),
		MaxEntries: s.maxEntries,
		Hits:       s.hits,
		Misses:     s.misses,
		Evictions:  s.evictions,
	}
}

// evictOldestLocked drops the least recently used entry. Must be called with
// s.mu held.
func (s *Store) evictOldestLocked() {
	elem := s.order.Back()
	if elem == nil {
		return
	}
	e := elem.Value.(*entry)
	s.order.Remove(elem)
	delete(s.items, e.key)
	delete(s.byID, e.asset.ID)
	s.evictions++
	s.log.WithField("key", e.key.String()).Debug("cache evict")
}
