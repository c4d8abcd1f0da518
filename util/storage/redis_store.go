package storage

import (
	"context"
	"fmt"
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/models"
	"github.com/redis/go-redis/v9"
	"time"
)

// RedisStore keeps deposit status in a redis hash and the completion
// log in a sorted set scored by completion time, so several
// supervisors can share it. Expiry uses redis' own key TTLs.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	timeout   time.Duration
}

// NewRedisStore returns a store using client. Keys are prefixed with
// keyPrefix, or "deposit" if keyPrefix is empty.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "deposit"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		timeout:   10 * time.Second,
	}
}

// NewRedisClient connects to the redis server at address and pings it.
func NewRedisClient(address, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("Cannot reach redis at %s: %v", address, err)
	}
	return client, nil
}

// StatusKey returns the key of the hash holding the deposit's status.
func (store *RedisStore) StatusKey(depositId string) string {
	return fmt.Sprintf("%s:status:%s", store.keyPrefix, depositId)
}

// CompletedKey returns the key of the deposit's completion log.
func (store *RedisStore) CompletedKey(depositId string) string {
	return fmt.Sprintf("%s:completed:%s", store.keyPrefix, depositId)
}

func (store *RedisStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), store.timeout)
}

func (store *RedisStore) GetStatus(depositId string) (*models.DepositStatus, error) {
	ctx, cancel := store.ctx()
	defer cancel()
	fields, err := store.client.HGetAll(ctx, store.StatusKey(depositId)).Result()
	if err != nil {
		return nil, fmt.Errorf("Reading status of %s: %v", depositId, err)
	}
	return models.NewDepositStatus(depositId, fields), nil
}

func (store *RedisStore) UpdateStatus(depositId, field, value string) error {
	ctx, cancel := store.ctx()
	defer cancel()
	return store.client.HSet(ctx, store.StatusKey(depositId), field, value).Err()
}

func (store *RedisStore) ClearStatusFields(depositId string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	ctx, cancel := store.ctx()
	defer cancel()
	return store.client.HDel(ctx, store.StatusKey(depositId), fields...).Err()
}

// ExpireStatus sets a TTL on both the status hash and the completion
// log, in one transaction.
func (store *RedisStore) ExpireStatus(depositId string, ttl time.Duration) error {
	ctx, cancel := store.ctx()
	defer cancel()
	_, err := store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Expire(ctx, store.StatusKey(depositId), ttl)
		pipe.Expire(ctx, store.CompletedKey(depositId), ttl)
		return nil
	})
	return err
}

// CompletedJobTypes returns the completion log in the order jobs
// were recorded.
func (store *RedisStore) CompletedJobTypes(depositId string) ([]string, error) {
	ctx, cancel := store.ctx()
	defer cancel()
	tokens, err := store.client.ZRange(ctx, store.CompletedKey(depositId), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("Reading completion log of %s: %v", depositId, err)
	}
	return tokens, nil
}

// JobSucceeded adds jobType to the completion log. ZADD NX keeps the
// original score, so recording a job twice doesn't reorder the log.
func (store *RedisStore) JobSucceeded(depositId string, jobType constants.JobType) error {
	if !jobType.IsRecordable() {
		return fmt.Errorf("Job type %s cannot be recorded", jobType)
	}
	ctx, cancel := store.ctx()
	defer cancel()
	return store.client.ZAddNX(ctx, store.CompletedKey(depositId), redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: jobType.String(),
	}).Err()
}

func (store *RedisStore) Close() error {
	return store.client.Close()
}
