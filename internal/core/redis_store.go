package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// DefaultRedisPrefix namespaces every key written by RedisStore.
const DefaultRedisPrefix = "inv:"

// RedisStore keeps items as hashes and the movement log as JSON bodies
// indexed by sorted sets. Movements use optimistic concurrency: the item key
// is WATCHed, and a concurrent write to the same item aborts the MULTI with
// redis.TxFailedErr, reported as ErrConcurrencyConflict for the engine to retry.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) itemKey(id int64) string          { return s.prefix + "item:" + strconv.FormatInt(id, 10) }
func (s *RedisStore) itemMovementsKey(id int64) string { return s.itemKey(id) + ":movements" }
func (s *RedisStore) itemIndexKey() string             { return s.prefix + "items" }
func (s *RedisStore) itemSeqKey() string               { return s.prefix + "seq:item" }
func (s *RedisStore) movementSeqKey() string           { return s.prefix + "seq:movement" }
func (s *RedisStore) movementBodiesKey() string        { return s.prefix + "movements" }
func (s *RedisStore) recentIndexKey() string           { return s.prefix + "movements:recent" }

// movementMember zero-pads IDs so equal-score members sort numerically.
func movementMember(id int64) string {
	return fmt.Sprintf("%020d", id)
}

func encodeItem(it Item) map[string]any {
	active := "0"
	if it.IsActive {
		active = "1"
	}
	return map[string]any{
		"name":              it.Name,
		"unit_price":        it.UnitPrice.String(),
		"quantity":          it.Quantity,
		"reorder_threshold": it.ReorderThreshold,
		"is_active":         active,
		"created_at":        it.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":        it.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func decodeItem(id int64, h map[string]string) (*Item, error) {
	it := Item{ID: id, Name: h["name"], IsActive: h["is_active"] == "1"}
	var err error
	if it.UnitPrice, err = decimal.NewFromString(h["unit_price"]); err != nil {
		return nil, fmt.Errorf("item %d: bad unit_price: %w", id, err)
	}
	if it.Quantity, err = strconv.ParseInt(h["quantity"], 10, 64); err != nil {
		return nil, fmt.Errorf("item %d: bad quantity: %w", id, err)
	}
	if it.ReorderThreshold, err = strconv.ParseInt(h["reorder_threshold"], 10, 64); err != nil {
		return nil, fmt.Errorf("item %d: bad reorder_threshold: %w", id, err)
	}
	if it.CreatedAt, err = time.Parse(time.RFC3339Nano, h["created_at"]); err != nil {
		return nil, fmt.Errorf("item %d: bad created_at: %w", id, err)
	}
	if it.UpdatedAt, err = time.Parse(time.RFC3339Nano, h["updated_at"]); err != nil {
		return nil, fmt.Errorf("item %d: bad updated_at: %w", id, err)
	}
	return &it, nil
}

func (s *RedisStore) CreateItem(ctx context.Context, item Item, opening *MovementRecord) (*Item, *MovementRecord, error) {
	id, err := s.client.Incr(ctx, s.itemSeqKey()).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to allocate item id: %w", err)
	}
	item.ID = id

	var record *MovementRecord
	var body []byte
	if opening != nil {
		rec := *opening
		rec.ItemID = id
		if rec.ID, err = s.client.Incr(ctx, s.movementSeqKey()).Result(); err != nil {
			return nil, nil, fmt.Errorf("failed to allocate movement id: %w", err)
		}
		if body, err = json.Marshal(rec); err != nil {
			return nil, nil, err
		}
		record = &rec
	}

	// One MULTI: the item becomes visible only together with its opening movement.
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.itemKey(id), encodeItem(item))
		pipe.ZAdd(ctx, s.itemIndexKey(), redis.Z{Score: float64(id), Member: strconv.FormatInt(id, 10)})
		if record != nil {
			s.queueMovement(ctx, pipe, *record, body)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to store item: %w", err)
	}
	return &item, record, nil
}

// queueMovement writes a record's body and both of its indexes. Both indexes
// are scored by timestamp; equal scores fall back to the zero-padded ID member.
func (s *RedisStore) queueMovement(ctx context.Context, pipe redis.Pipeliner, rec MovementRecord, body []byte) {
	member := movementMember(rec.ID)
	score := float64(rec.CreatedAt.UnixMicro())
	pipe.HSet(ctx, s.movementBodiesKey(), member, body)
	pipe.ZAdd(ctx, s.recentIndexKey(), redis.Z{Score: score, Member: member})
	pipe.ZAdd(ctx, s.itemMovementsKey(rec.ItemID), redis.Z{Score: score, Member: member})
}

func (s *RedisStore) GetItem(ctx context.Context, itemID int64) (*Item, error) {
	h, err := s.client.HGetAll(ctx, s.itemKey(itemID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch item %d: %w", itemID, err)
	}
	if len(h) == 0 {
		return nil, itemNotFound(itemID)
	}
	return decodeItem(itemID, h)
}

func (s *RedisStore) SetItemActive(ctx context.Context, itemID int64, active bool) (*Item, error) {
	key := s.itemKey(itemID)
	var updated *Item
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		h, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(h) == 0 {
			return itemNotFound(itemID)
		}
		item, err := decodeItem(itemID, h)
		if err != nil {
			return err
		}
		item.IsActive = active
		item.UpdatedAt = time.Now().UTC()
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encodeItem(*item))
			return nil
		})
		updated = item
		return err
	}, key)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return nil, conflict(err, "item %d changed while updating its status", itemID)
		}
		var le *LedgerError
		if errors.As(err, &le) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update item %d: %w", itemID, err)
	}
	return updated, nil
}

func (s *RedisStore) ApplyToItem(ctx context.Context, itemID int64, apply ApplyFunc) (*MovementRecord, *Item, error) {
	key := s.itemKey(itemID)
	var (
		record MovementRecord
		item   *Item
	)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		h, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(h) == 0 {
			return itemNotFound(itemID)
		}
		if item, err = decodeItem(itemID, h); err != nil {
			return err
		}
		rec, err := apply(item)
		if err != nil {
			return err
		}
		record = *rec
		record.ItemID = itemID

		// IDs burned by an aborted attempt leave gaps; ordering stays monotonic.
		if record.ID, err = tx.Incr(ctx, s.movementSeqKey()).Result(); err != nil {
			return err
		}
		body, err := json.Marshal(record)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"quantity", item.Quantity,
				"updated_at", item.UpdatedAt.Format(time.RFC3339Nano))
			s.queueMovement(ctx, pipe, record, body)
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return nil, nil, conflict(err, "item %d changed during movement", itemID)
		}
		var le *LedgerError
		if errors.As(err, &le) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("failed to apply movement to item %d: %w", itemID, err)
	}
	return &record, item, nil
}

func (s *RedisStore) ListItems(ctx context.Context, filter ItemFilter) ([]Item, error) {
	ids, err := s.client.ZRange(ctx, s.itemIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list item ids: %w", err)
	}
	items := []Item{}
	if len(ids) == 0 {
		return items, nil
	}

	// MULTI makes every HGETALL observe the same point in time.
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.prefix+"item:"+id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch items: %w", err)
	}
	for i, cmd := range cmds {
		h := cmd.Val()
		if len(h) == 0 {
			continue
		}
		id, err := strconv.ParseInt(ids[i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad item id %q in index: %w", ids[i], err)
		}
		it, err := decodeItem(id, h)
		if err != nil {
			return nil, err
		}
		if filter.matches(*it) {
			items = append(items, *it)
		}
	}
	return items, nil
}

func (s *RedisStore) RecentMovements(ctx context.Context, limit int) ([]MovementRecord, error) {
	if limit <= 0 {
		return []MovementRecord{}, nil
	}
	members, err := s.client.ZRevRange(ctx, s.recentIndexKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query recent movements: %w", err)
	}
	return s.loadMovements(ctx, members)
}

func (s *RedisStore) ItemMovements(ctx context.Context, itemID int64, limit int) ([]MovementRecord, error) {
	if _, err := s.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	members, err := s.client.ZRevRange(ctx, s.itemMovementsKey(itemID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query movements for item %d: %w", itemID, err)
	}
	return s.loadMovements(ctx, members)
}

func (s *RedisStore) ItemLedger(ctx context.Context, itemID int64) (*Item, []MovementRecord, error) {
	var (
		itemCmd    *redis.MapStringStringCmd
		membersCmd *redis.StringSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		itemCmd = pipe.HGetAll(ctx, s.itemKey(itemID))
		membersCmd = pipe.ZRange(ctx, s.itemMovementsKey(itemID), 0, -1)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read ledger for item %d: %w", itemID, err)
	}
	if len(itemCmd.Val()) == 0 {
		return nil, nil, itemNotFound(itemID)
	}
	item, err := decodeItem(itemID, itemCmd.Val())
	if err != nil {
		return nil, nil, err
	}
	// Bodies are immutable once written, so reading them outside the MULTI is safe.
	history, err := s.loadMovements(ctx, membersCmd.Val())
	if err != nil {
		return nil, nil, err
	}
	return item, history, nil
}

func (s *RedisStore) loadMovements(ctx context.Context, members []string) ([]MovementRecord, error) {
	out := make([]MovementRecord, 0, len(members))
	if len(members) == 0 {
		return out, nil
	}
	bodies, err := s.client.HMGet(ctx, s.movementBodiesKey(), members...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load movement bodies: %w", err)
	}
	for i, raw := range bodies {
		body, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("movement %s is indexed but has no body", members[i])
		}
		var m MovementRecord
		if err := json.Unmarshal([]byte(body), &m); err != nil {
			return nil, fmt.Errorf("failed to decode movement %s: %w", members[i], err)
		}
		out = append(out, m)
	}
	return out, nil
}
