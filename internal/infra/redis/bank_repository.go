package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"ecn-prep-service/internal/app"
	"ecn-prep-service/internal/bank"
)

const bankKey = "ecn:bank"

// BankRepository caches the serialized bank in Redis so every instance shares
// one copy, and falls back to a loader on cache miss. The decoded index is
// memoized locally until the cached blob changes.
type BankRepository struct {
	client *redis.Client
	loader bank.Loader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand

	mu      sync.RWMutex
	blob    string
	current *bank.Index
}

func NewBankRepository(client *redis.Client, loader bank.Loader, ttl time.Duration) *BankRepository {
	return &BankRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *BankRepository) GetBank(ctx context.Context) (app.QuestionBank, error) {
	idx, err := r.Index(ctx)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// Index returns the decoded bank, loading and caching it on a miss.
func (r *BankRepository) Index(ctx context.Context) (*bank.Index, error) {
	blob, err := r.client.Get(ctx, bankKey).Result()
	if err == nil && blob != "" {
		return r.decode(blob)
	}

	result, err, _ := r.sf.Do(bankKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		blob, err := r.client.Get(ctx, bankKey).Result()
		if err == nil && blob != "" {
			return r.decode(blob)
		}

		data, err := r.loader.LoadBank(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode bank: %w", err)
		}
		_ = r.client.Set(ctx, bankKey, raw, r.ttlWithJitter()).Err()
		return r.decode(string(raw))
	})
	if err != nil {
		return nil, err
	}
	return result.(*bank.Index), nil
}

// Invalidate drops the shared copy so the next read reloads from the loader.
func (r *BankRepository) Invalidate(ctx context.Context) error {
	return r.client.Del(ctx, bankKey).Err()
}

func (r *BankRepository) decode(blob string) (*bank.Index, error) {
	r.mu.RLock()
	if r.current != nil && r.blob == blob {
		idx := r.current
		r.mu.RUnlock()
		return idx, nil
	}
	r.mu.RUnlock()

	var data bank.Data
	if err := json.Unmarshal([]byte(blob), &data); err != nil {
		return nil, fmt.Errorf("decode cached bank: %w", err)
	}
	idx := bank.NewIndex(data)

	r.mu.Lock()
	r.blob = blob
	r.current = idx
	r.mu.Unlock()
	return idx, nil
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
