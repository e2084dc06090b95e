package core

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
)

// memoryShards is the number of item lock stripes. Items whose IDs differ
// modulo memoryShards never contend on the same lock.
const memoryShards = 64

// MemoryStore is an in-process Store. Per-item mutual exclusion uses lock
// striping keyed by item ID; the item map and the log each have their own
// short-held lock that is never held across a read-modify-write.
type MemoryStore struct {
	shards [memoryShards]sync.Mutex

	mu         sync.RWMutex
	items      map[int64]Item
	nextItemID int64

	logMu          sync.RWMutex
	movements      []MovementRecord // ID order
	byItem         map[int64][]int  // indices into movements
	recent         []int            // indices into movements, oldest first by (CreatedAt, ID)
	nextMovementID int64
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:  make(map[int64]Item),
		byItem: make(map[int64][]int),
	}
}

func (s *MemoryStore) itemLock(itemID int64) *sync.Mutex {
	idx := itemID % memoryShards
	if idx < 0 {
		idx = -idx
	}
	return &s.shards[idx]
}

func (s *MemoryStore) CreateItem(ctx context.Context, item Item, opening *MovementRecord) (*Item, *MovementRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.logMu.Lock()
	defer s.logMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextItemID++
	item.ID = s.nextItemID
	s.items[item.ID] = item
	if opening == nil {
		return &item, nil, nil
	}
	record := *opening
	record.ItemID = item.ID
	record = s.appendLocked(record)
	return &item, &record, nil
}

// appendLocked assigns the next movement ID and indexes the record.
// Caller holds logMu for writing.
func (s *MemoryStore) appendLocked(record MovementRecord) MovementRecord {
	s.nextMovementID++
	record.ID = s.nextMovementID
	s.movements = append(s.movements, record)
	idx := len(s.movements) - 1
	s.byItem[record.ItemID] = append(s.byItem[record.ItemID], idx)

	// Records almost always arrive in timestamp order, so this lands at the end.
	pos, _ := slices.BinarySearchFunc(s.recent, record, func(i int, r MovementRecord) int {
		return newestFirst(r, s.movements[i])
	})
	s.recent = slices.Insert(s.recent, pos, idx)
	return record
}

func (s *MemoryStore) GetItem(ctx context.Context, itemID int64) (*Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	item, ok := s.items[itemID]
	s.mu.RUnlock()
	if !ok {
		return nil, itemNotFound(itemID)
	}
	return &item, nil
}

func (s *MemoryStore) SetItemActive(ctx context.Context, itemID int64, active bool) (*Item, error) {
	lock := s.itemLock(itemID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok {
		return nil, itemNotFound(itemID)
	}
	item.IsActive = active
	s.items[itemID] = item
	return &item, nil
}

func (s *MemoryStore) ApplyToItem(ctx context.Context, itemID int64, apply ApplyFunc) (*MovementRecord, *Item, error) {
	lock := s.itemLock(itemID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	item, ok := s.items[itemID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, itemNotFound(itemID)
	}

	rec, err := apply(&item)
	if err != nil {
		return nil, nil, err
	}
	// Last point where cancellation can still leave everything untouched.
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	record := *rec
	record.ItemID = itemID

	s.logMu.Lock()
	record = s.appendLocked(record)
	s.mu.Lock()
	s.items[itemID] = item
	s.mu.Unlock()
	s.logMu.Unlock()

	return &record, &item, nil
}

func (s *MemoryStore) ListItems(ctx context.Context, filter ItemFilter) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		if filter.matches(item) {
			out = append(out, item)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Item) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryStore) RecentMovements(ctx context.Context, limit int) ([]MovementRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []MovementRecord{}, nil
	}
	s.logMu.RLock()
	defer s.logMu.RUnlock()
	n := min(limit, len(s.recent))
	out := make([]MovementRecord, 0, n)
	for i := len(s.recent) - 1; i >= len(s.recent)-n; i-- {
		out = append(out, s.movements[s.recent[i]])
	}
	return out, nil
}

func (s *MemoryStore) ItemMovements(ctx context.Context, itemID int64, limit int) ([]MovementRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := s.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	s.logMu.RLock()
	out := s.collect(itemID)
	s.logMu.RUnlock()

	slices.SortFunc(out, newestFirst)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ItemLedger(ctx context.Context, itemID int64) (*Item, []MovementRecord, error) {
	lock := s.itemLock(itemID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	item, ok := s.items[itemID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, itemNotFound(itemID)
	}
	s.logMu.RLock()
	history := s.collect(itemID)
	s.logMu.RUnlock()
	return &item, history, nil
}

// collect copies an item's records in ID order. Caller holds logMu.
func (s *MemoryStore) collect(itemID int64) []MovementRecord {
	idx := s.byItem[itemID]
	out := make([]MovementRecord, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.movements[i])
	}
	return out
}

// newestFirst orders by CreatedAt descending, then ID descending.
func newestFirst(a, b MovementRecord) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
