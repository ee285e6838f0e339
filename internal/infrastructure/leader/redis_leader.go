package leader

import (
	"context"
	"time"

	"auction-ledger/pkg/logger"

	"github.com/go-redis/redis/v8"
)

const (
	releaseScript = `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("DEL", KEYS[1])
        else
            return 0
        end
    `
	refreshScript = `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("PEXPIRE", KEYS[1], ARGV[2])
        else
            return 0
        end
    `
)

// RedisInstanceLock makes sure a single process owns the ledger of an auction. The ledger
// lives in memory, so a second process for the same owner would journal a diverging set
// of transfers.
type RedisInstanceLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	log    logger.Logger
}

func NewRedisInstanceLock(client *redis.Client, owner string, ttl time.Duration, log logger.Logger) *RedisInstanceLock {
	return &RedisInstanceLock{
		client: client,
		key:    lockKey(owner),
		ttl:    ttl,
		log:    log,
	}
}

func lockKey(owner string) string {
	return "auction_ledger_lock:" + owner
}

// Acquire takes the lock for instanceID and keeps it alive until ctx is done. The returned
// channel is closed if the lock is lost while ctx is still live.
func (r *RedisInstanceLock) Acquire(ctx context.Context, instanceID string) (bool, <-chan struct{}, error) {
	ok, err := r.client.SetNX(ctx, r.key, instanceID, r.ttl).Result()
	if err != nil || !ok {
		return false, nil, err
	}

	lost := make(chan struct{})
	go r.maintain(ctx, instanceID, lost)

	r.log.Info("Acquired ledger lock", "key", r.key, "instance_id", instanceID)
	return true, lost, nil
}

func (r *RedisInstanceLock) Holder(ctx context.Context) (string, error) {
	holder, err := r.client.Get(ctx, r.key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return holder, err
}

func (r *RedisInstanceLock) Release(ctx context.Context, instanceID string) error {
	_, err := r.client.Eval(ctx, releaseScript, []string{r.key}, instanceID).Result()
	return err
}

func (r *RedisInstanceLock) maintain(ctx context.Context, instanceID string, lost chan struct{}) {
	ticker := time.NewTicker(r.ttl / 3) // Refresh at 1/3 of TTL
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		refreshCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		result, err := r.client.Eval(refreshCtx, refreshScript, []string{r.key},
			instanceID, r.ttl.Milliseconds()).Int64()
		cancel()

		if ctx.Err() != nil {
			return
		}
		if err != nil || result == 0 {
			r.log.Error("Lost ledger lock", "key", r.key, "instance_id", instanceID, "error", err)
			close(lost)
			return
		}
	}
}
