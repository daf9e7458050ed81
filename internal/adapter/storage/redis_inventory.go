package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quangtd04/autodeliver/internal/core/domain"
	"github.com/quangtd04/autodeliver/internal/port"
)

const productKeyPrefix = "product:"

// reserveScript claims capacity on one account hash, guarded by the version
// field. Returns 1 on success, 0 when the version moved or the remaining
// capacity no longer covers the quantity.
var reserveScript = redis.NewScript(`
local key = KEYS[1]
local version = tonumber(ARGV[1])
local quantity = tonumber(ARGV[2])
local nowms = ARGV[3]

local stored = tonumber(redis.call('HGET', key, 'version'))
if stored == nil or stored ~= version then
	return 0
end

local current = tonumber(redis.call('HGET', key, 'currentUser') or 0)
local max = tonumber(redis.call('HGET', key, 'maxUser') or 0)
if max - current < quantity then
	return 0
end

redis.call('HINCRBY', key, 'currentUser', quantity)
redis.call('HSET', key, 'lastUsed', nowms)
redis.call('HINCRBY', key, 'version', 1)
return 1
`)

// RedisInventory stores each product's accounts as hashes under
// product:{id}:account:{index}, with the collection size at
// product:{id}:accounts. Index order is the provisioning order.
type RedisInventory struct {
	client *redis.Client
}

func NewRedisInventory(client *redis.Client) *RedisInventory {
	return &RedisInventory{client: client}
}

func (r *RedisInventory) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	count, err := r.client.Get(ctx, countKey(productID)).Int()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read product %s: %v", port.ErrTransient, productID, err)
	}

	product := &domain.Product{ID: productID, Accounts: make([]domain.Account, 0, count)}
	for idx := 0; idx < count; idx++ {
		fields, err := r.client.HGetAll(ctx, accountKey(productID, idx)).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: read account %d of %s: %v", port.ErrTransient, idx, productID, err)
		}
		if len(fields) == 0 {
			continue
		}
		product.Accounts = append(product.Accounts, accountFromHash(idx, fields))
	}
	return product, nil
}

func (r *RedisInventory) ReserveAccount(ctx context.Context, productID string, index, version, quantity int, now time.Time) error {
	key := accountKey(productID, index)
	result, err := reserveScript.Run(ctx, r.client, []string{key},
		version, quantity, now.UnixMilli()).Int()
	if err != nil {
		return fmt.Errorf("%w: reserve %s: %v", port.ErrTransient, key, err)
	}
	if result != 1 {
		return port.ErrVersionConflict
	}
	return nil
}

// SeedProduct writes a product's full account collection, replacing whatever
// was stored. Used by provisioning and tests.
func (r *RedisInventory) SeedProduct(ctx context.Context, product domain.Product) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, countKey(product.ID), len(product.Accounts), 0)
	for idx, acc := range product.Accounts {
		pipe.Del(ctx, accountKey(product.ID, idx))
		pipe.HSet(ctx, accountKey(product.ID, idx), map[string]any{
			"email":       acc.Email,
			"password":    acc.Password,
			"currentUser": acc.CurrentUsers,
			"maxUser":     acc.MaxUsers,
			"expired_at":  acc.ExpiresAt.UnixMilli(),
			"lastUsed":    acc.LastUsed.UnixMilli(),
			"version":     acc.Version,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("seed product %s: %w", product.ID, err)
	}
	return nil
}

func countKey(productID string) string {
	return productKeyPrefix + productID + ":accounts"
}

func accountKey(productID string, index int) string {
	return productKeyPrefix + productID + ":account:" + strconv.Itoa(index)
}

func accountFromHash(index int, fields map[string]string) domain.Account {
	return domain.Account{
		Index:        index,
		Email:        fields["email"],
		Password:     fields["password"],
		CurrentUsers: atoi(fields["currentUser"]),
		MaxUsers:     atoi(fields["maxUser"]),
		ExpiresAt:    time.UnixMilli(atoi64(fields["expired_at"])),
		LastUsed:     time.UnixMilli(atoi64(fields["lastUsed"])),
		Version:      atoi(fields["version"]),
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atoi64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
