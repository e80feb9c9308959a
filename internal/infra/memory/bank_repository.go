package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"ecn-prep-service/internal/app"
	"ecn-prep-service/internal/bank"
)

// BankRepository caches the indexed bank with TTL to avoid reloading the
// backing store (data directory, Postgres) on every request.
type BankRepository struct {
	loader bank.Loader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	index     *bank.Index
	expiresAt time.Time
}

func NewBankRepository(loader bank.Loader, ttl time.Duration) *BankRepository {
	return NewBankRepositoryWithClock(loader, ttl, time.Now)
}

// NewBankRepositoryWithClock allows deterministic expiry in tests.
func NewBankRepositoryWithClock(loader bank.Loader, ttl time.Duration, clock func() time.Time) *BankRepository {
	return &BankRepository{
		loader: loader,
		ttl:    ttl,
		clock:  clock,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GetBank returns the cached index, reloading it once expired. A zero TTL
// caches forever.
func (r *BankRepository) GetBank(ctx context.Context) (app.QuestionBank, error) {
	idx, err := r.Index(ctx)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// Index is GetBank with the concrete type.
func (r *BankRepository) Index(ctx context.Context) (*bank.Index, error) {
	if idx, ok := r.cached(r.clock()); ok {
		return idx, nil
	}

	result, err, _ := r.sf.Do("bank", func() (interface{}, error) {
		now := r.clock()
		if idx, ok := r.cached(now); ok {
			return idx, nil
		}

		data, err := r.loader.LoadBank(ctx)
		if err != nil {
			return nil, err
		}
		idx := bank.NewIndex(data)

		r.mu.Lock()
		r.index = idx
		r.expiresAt = now.Add(r.ttlWithJitter())
		r.mu.Unlock()
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*bank.Index), nil
}

// Invalidate forces the next read to reload.
func (r *BankRepository) Invalidate() {
	r.mu.Lock()
	r.index = nil
	r.mu.Unlock()
}

func (r *BankRepository) cached(now time.Time) (*bank.Index, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.index == nil {
		return nil, false
	}
	if r.ttl > 0 && !r.expiresAt.After(now) {
		return nil, false
	}
	return r.index, true
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
