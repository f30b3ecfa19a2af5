package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/factory"
)

const historyKeyPrefix = "checkout:transactions:"

type transactionStore interface {
	Create(ctx context.Context, tx *entity.PaymentTransaction) error
	FindBySessionID(ctx context.Context, sessionID string) (*entity.PaymentTransaction, error)
	ListByUser(ctx context.Context, userID string, limit int32) ([]*entity.PaymentTransaction, error)
	CompareAndSwapStatus(ctx context.Context, sessionID string, expected, next entity.StatusPair, updatedAt time.Time) (bool, error)
}

// redisCmdable is the subset of *redis.Client used by the cache.
type redisCmdable interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	ExpireNX(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// TransactionHistoryCache sits in front of the ledger. History pages are
// cached per user in one hash, one field per page size. Every write that goes
// through it drops the owner's hash after the ledger accepted it. Single-row
// reads are never cached.
type TransactionHistoryCache struct {
	store  transactionStore
	redis  redisCmdable
	ttl    time.Duration
	logger logrus.FieldLogger
}

func NewTransactionHistoryCache(store transactionStore, client redisCmdable, ttl time.Duration) *TransactionHistoryCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &TransactionHistoryCache{
		store:  store,
		redis:  client,
		ttl:    ttl,
		logger: factory.NewModuleLogger("history-cache"),
	}
}

func (c *TransactionHistoryCache) Create(ctx context.Context, tx *entity.PaymentTransaction) error {
	if err := c.store.Create(ctx, tx); err != nil {
		return err
	}
	if tx.UserID != nil {
		c.invalidate(ctx, *tx.UserID)
	}
	return nil
}

func (c *TransactionHistoryCache) FindBySessionID(ctx context.Context, sessionID string) (*entity.PaymentTransaction, error) {
	return c.store.FindBySessionID(ctx, sessionID)
}

func (c *TransactionHistoryCache) CompareAndSwapStatus(ctx context.Context, sessionID string, expected, next entity.StatusPair, updatedAt time.Time) (bool, error) {
	applied, err := c.store.CompareAndSwapStatus(ctx, sessionID, expected, next, updatedAt)
	if err != nil || !applied {
		return applied, err
	}

	tx, err := c.store.FindBySessionID(ctx, sessionID)
	if err != nil {
		c.logger.WithError(err).WithField("session_id", sessionID).Warn("Resolve owner for history invalidation failed")
		return true, nil
	}
	if tx != nil && tx.UserID != nil {
		c.invalidate(ctx, *tx.UserID)
	}
	return true, nil
}

func (c *TransactionHistoryCache) ListByUser(ctx context.Context, userID string, limit int32) ([]*entity.PaymentTransaction, error) {
	key := historyKeyPrefix + userID
	field := strconv.Itoa(int(limit))

	raw, err := c.redis.HGet(ctx, key, field).Bytes()
	switch {
	case err == nil:
		var items []*entity.PaymentTransaction
		if jsonErr := json.Unmarshal(raw, &items); jsonErr == nil {
			return items, nil
		}
		c.logger.WithField("key", key).Warn("Discarding undecodable cached history")
	case errors.Is(err, redis.Nil):
	default:
		c.logger.WithError(err).WithField("key", key).Warn("History cache read failed")
	}

	items, err := c.store.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return items, nil
	}
	if err := c.redis.HSet(ctx, key, field, payload).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("History cache write failed")
		return items, nil
	}
	if err := c.redis.ExpireNX(ctx, key, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("History cache expiry failed")
		c.invalidate(ctx, userID)
	}

	return items, nil
}

func (c *TransactionHistoryCache) invalidate(ctx context.Context, userID string) {
	if err := c.redis.Del(ctx, historyKeyPrefix+userID).Err(); err != nil {
		c.logger.WithError(err).WithField("user_id", userID).Warn("History cache invalidation failed")
	}
}
