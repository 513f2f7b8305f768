package storage

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-redis/redis"
)

// member separator in the geohash index; sorts below every geohash character
const redisSep = "\x00"

// RedisStore implements Store on redis. Each document is a JSON string; a
// lexicographic sorted set indexes geohashes and a scored set indexes startAt.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.WithContext(ctx).Ping().Err(); err != nil {
		_ = client.Close()
		return nil, storeError("connect", "redis", err)
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) docKey(collection, id string) string {
	return s.prefix + ":" + collection + ":doc:" + id
}

func (s *RedisStore) geohashKey(collection string) string {
	return s.prefix + ":" + collection + ":idx:geohash"
}

func (s *RedisStore) startAtKey(collection string) string {
	return s.prefix + ":" + collection + ":idx:startAt"
}

// Insert stores doc under a new id.
func (s *RedisStore) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	id := NewID()
	if err := s.Put(ctx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

// Put creates or replaces the document with id and refreshes its index entries.
func (s *RedisStore) Put(ctx context.Context, collection, id string, doc Document) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	client := s.client.WithContext(ctx)

	var oldGeohash *string
	prev, err := client.Get(s.docKey(collection, id)).Bytes()
	switch {
	case err == redis.Nil:
	case err != nil:
		return storeError("put", collection, err)
	default:
		var old Document
		if json.Unmarshal(prev, &old) == nil {
			oldGeohash, _ = indexKeys(old)
		}
	}

	geohash, startAt := indexKeys(doc)
	_, err = client.TxPipelined(func(pipe redis.Pipeliner) error {
		pipe.Set(s.docKey(collection, id), data, 0)
		if oldGeohash != nil {
			pipe.ZRem(s.geohashKey(collection), *oldGeohash+redisSep+id)
		}
		if geohash != nil {
			pipe.ZAdd(s.geohashKey(collection), redis.Z{Score: 0, Member: *geohash + redisSep + id})
		}
		if startAt != nil {
			pipe.ZAdd(s.startAtKey(collection), redis.Z{Score: float64(startAt.UnixMilli()), Member: id})
		} else {
			pipe.ZRem(s.startAtKey(collection), id)
		}
		return nil
	})
	return storeError("put", collection, err)
}

// Query returns documents whose filter field lies in range.
func (s *RedisStore) Query(ctx context.Context, collection string, filter RangeFilter) ([]Snapshot, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if err := filter.validate(); err != nil {
		return nil, err
	}
	client := s.client.WithContext(ctx)

	var ids []string
	switch filter.Field {
	case FieldGeohash:
		lo, hi, _ := filter.stringBounds()
		by := redis.ZRangeBy{Min: "-", Max: "+"}
		if lo != nil {
			by.Min = "[" + *lo
		}
		if hi != nil {
			by.Max = "(" + *hi + "\x01"
		}
		members, err := client.ZRangeByLex(s.geohashKey(collection), by).Result()
		if err != nil {
			return nil, storeError("query", collection, err)
		}
		for _, m := range members {
			if i := strings.Index(m, redisSep); i >= 0 {
				ids = append(ids, m[i+len(redisSep):])
			}
		}
	case FieldStartAt:
		lo, hi, _ := filter.timeBounds()
		by := redis.ZRangeBy{Min: "-inf", Max: "+inf"}
		if lo != nil {
			by.Min = strconv.FormatInt(lo.UnixMilli(), 10)
		}
		if hi != nil {
			by.Max = strconv.FormatInt(hi.UnixMilli(), 10)
		}
		members, err := client.ZRangeByScore(s.startAtKey(collection), by).Result()
		if err != nil {
			return nil, storeError("query", collection, err)
		}
		ids = members
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(collection, id)
	}
	values, err := client.MGet(keys...).Result()
	if err != nil {
		return nil, storeError("query", collection, err)
	}
	out := make([]Snapshot, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// removed between index read and fetch
			continue
		}
		snap, err := decodeRow(ids[i], []byte(raw))
		if err != nil {
			return nil, storeError("query", collection, err)
		}
		out = append(out, snap)
	}
	return out, nil
}

// GetByID returns the document with id, or found=false.
func (s *RedisStore) GetByID(ctx context.Context, collection, id string) (*Snapshot, bool, error) {
	if err := validateKey(collection, id); err != nil {
		return nil, false, err
	}
	raw, err := s.client.WithContext(ctx).Get(s.docKey(collection, id)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storeError("get", collection, err)
	}
	snap, err := decodeRow(id, raw)
	if err != nil {
		return nil, false, storeError("get", collection, err)
	}
	return &snap, true, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
