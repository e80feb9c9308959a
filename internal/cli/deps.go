package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"ecn-prep-service/internal/app"
	"ecn-prep-service/internal/bank"
	"ecn-prep-service/internal/config"
	"ecn-prep-service/internal/infra/memory"
	"ecn-prep-service/internal/infra/postgres"
	redisinfra "ecn-prep-service/internal/infra/redis"
	"ecn-prep-service/internal/infra/sqlite"
)

// deps are the adapters selected by configuration: Postgres wins over
// SQLite, which wins over memory; Redis, when set, caches the bank and the
// quiz leaderboards and tracks live sessions.
type deps struct {
	store    app.ProgressStore
	banks    app.BankRepository
	sessions app.SessionRepository
	loader   bank.Loader
	pool     *pgxpool.Pool
	redis    *redis.Client

	closers []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func buildDeps(ctx context.Context, cfg config.Config) (*deps, error) {
	d := &deps{}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		d.pool = pool
		d.closers = append(d.closers, pool.Close)
	}

	if cfg.Redis.Addr != "" {
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.closers = append(d.closers, func() { _ = d.redis.Close() })
	}

	switch {
	case d.pool != nil:
		d.store = postgres.NewProgressStore(d.pool)
		log.Printf("progress store: postgres")
	case cfg.SQLite.Path != "":
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		d.store = store
		d.closers = append(d.closers, func() { _ = store.Close() })
		log.Printf("progress store: sqlite %s", cfg.SQLite.Path)
	default:
		d.store = memory.NewProgressStore()
		log.Printf("progress store: memory (scores are lost on restart)")
	}
	if d.redis != nil {
		d.store = redisinfra.NewLeaderboardStore(d.store, d.redis)
	}

	d.loader = bank.NewDirLoader(cfg.Bank.Dir)
	if d.pool != nil {
		// imported bank rows win; the data directory covers a fresh database
		d.loader = bank.ChainLoader{postgres.NewBankLoader(d.pool), d.loader}
	}
	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)
	if d.redis != nil {
		d.banks = redisinfra.NewBankRepository(d.redis, d.loader, bankTTL)
	} else {
		d.banks = memory.NewBankRepository(d.loader, bankTTL)
	}

	if d.redis != nil {
		d.sessions = redisinfra.NewSessionStore(d.redis, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	} else {
		d.sessions = memory.NewSessionStore()
	}
	return d, nil
}
