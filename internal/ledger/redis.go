package ledger

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrLocked is returned by Lock when another batch holds the lock.
var ErrLocked = eris.New("ledger: batch already running")

// RedisConfig configures the redis-backed ledger.
type RedisConfig struct {
	Addr     string        `yaml:"addr" mapstructure:"addr"`
	Password string        `yaml:"password" mapstructure:"password"`
	DB       int           `yaml:"db" mapstructure:"db"`
	Key      string        `yaml:"key" mapstructure:"key"`
	LockTTL  time.Duration `yaml:"lock_ttl" mapstructure:"lock_ttl"`
}

// Redis keeps the set in a redis SET and guards batches with a SETNX lock.
type Redis struct {
	rdb     *redis.Client
	key     string
	lockKey string
	lockTTL time.Duration
}

// NewRedis connects to redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "ledger: connect to redis %s", cfg.Addr)
	}
	return newRedis(rdb, cfg), nil
}

func newRedis(rdb *redis.Client, cfg RedisConfig) *Redis {
	key := cfg.Key
	if key == "" {
		key = "contact-sync:processed"
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Redis{rdb: rdb, key: key, lockKey: "lock:" + key, lockTTL: ttl}
}

// Close releases the redis connection pool.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) Load(ctx context.Context) (Set, error) {
	ids, err := r.rdb.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, eris.Wrap(err, "ledger: redis smembers")
	}
	return NewSet(ids...), nil
}

// Save adds every id in one SADD.
func (r *Redis) Save(ctx context.Context, s Set) error {
	if s.Len() == 0 {
		return nil
	}
	ids := s.Sorted()
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	if err := r.rdb.SAdd(ctx, r.key, members...).Err(); err != nil {
		return eris.Wrap(err, "ledger: redis sadd")
	}
	return nil
}

// Lock takes the batch lock. The lock expires after the configured TTL if
// the holder dies without releasing it.
func (r *Redis) Lock(ctx context.Context) (func(), error) {
	token := uuid.New().String()
	ok, err := r.rdb.SetNX(ctx, r.lockKey, token, r.lockTTL).Result()
	if err != nil {
		return nil, eris.Wrap(err, "ledger: acquire lock")
	}
	if !ok {
		return nil, ErrLocked
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		held, err := r.rdb.Get(ctx, r.lockKey).Result()
		if err != nil || held != token {
			return
		}
		if err := r.rdb.Del(ctx, r.lockKey).Err(); err != nil {
			zap.L().Warn("ledger: release lock failed", zap.Error(err))
		}
	}
	return release, nil
}

var (
	_ Ledger = (*File)(nil)
	_ Ledger = (*Store)(nil)
	_ Ledger = (*Redis)(nil)
	_ Locker = (*Redis)(nil)
)
