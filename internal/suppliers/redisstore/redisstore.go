// Package redisstore keeps supplier records and pending registrations in Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/supplierhub/supplierhub/internal/suppliers"
)

const (
	DefaultRecordsKey    = "supplierhub:suppliers"
	DefaultPendingPrefix = "supplierhub:pending:"
	DefaultLeaseTTL      = 15 * time.Second
)

// Persistence stores the whole collection as one JSON document under a key.
// The writing Store holds a lease on key+":writer" while it is open.
type Persistence struct {
	client   *redis.Client
	key      string
	leaseTTL time.Duration
}

var (
	_ suppliers.Persistence = (*Persistence)(nil)
	_ suppliers.Claimer     = (*Persistence)(nil)
)

func NewPersistence(client *redis.Client, key string) *Persistence {
	if key == "" {
		key = DefaultRecordsKey
	}
	return &Persistence{client: client, key: key, leaseTTL: DefaultLeaseTTL}
}

var (
	extendLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
	dropLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

func (p *Persistence) leaseKey() string { return p.key + ":writer" }

// Claim takes the writer lease and keeps it alive until release is called.
// A writer that dies without releasing frees the lease after one TTL.
func (p *Persistence) Claim(ctx context.Context, owner string) (func(context.Context) error, error) {
	ok, err := p.client.SetNX(ctx, p.leaseKey(), owner, p.leaseTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: claim writer lease: %w", err)
	}
	if !ok {
		return nil, suppliers.ErrStoreInUse
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(p.leaseTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = extendLease.Run(context.Background(), p.client, []string{p.leaseKey()}, owner, p.leaseTTL.Milliseconds()).Err()
			}
		}
	}()

	return func(ctx context.Context) error {
		close(stop)
		<-done
		if err := dropLease.Run(ctx, p.client, []string{p.leaseKey()}, owner).Err(); err != nil {
			return fmt.Errorf("redisstore: release writer lease: %w", err)
		}
		return nil
	}, nil
}

func (p *Persistence) Load(ctx context.Context) ([]suppliers.Supplier, error) {
	raw, err := p.client.Get(ctx, p.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: load: %w", err)
	}
	var out []suppliers.Supplier
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("redisstore: decode records: %w", err)
	}
	return out, nil
}

func (p *Persistence) Save(ctx context.Context, records []suppliers.Supplier) error {
	if records == nil {
		records = []suppliers.Supplier{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("redisstore: encode records: %w", err)
	}
	if err := p.client.Set(ctx, p.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: save: %w", err)
	}
	return nil
}

// Pending implements suppliers.PendingStore with expiring keys.
type Pending struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ suppliers.PendingStore = (*Pending)(nil)

// NewPending returns a store whose tokens expire after ttl; zero keeps them.
func NewPending(client *redis.Client, ttl time.Duration) *Pending {
	return &Pending{client: client, prefix: DefaultPendingPrefix, ttl: ttl}
}

func (p *Pending) Put(ctx context.Context, token, supplierID string) error {
	if err := p.client.Set(ctx, p.prefix+token, supplierID, p.ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: put pending: %w", err)
	}
	return nil
}

func (p *Pending) Get(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", suppliers.ErrPendingNotFound
	}
	id, err := p.client.Get(ctx, p.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", suppliers.ErrPendingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redisstore: get pending: %w", err)
	}
	return id, nil
}

func (p *Pending) Delete(ctx context.Context, token string) error {
	if err := p.client.Del(ctx, p.prefix+token).Err(); err != nil {
		return fmt.Errorf("redisstore: delete pending: %w", err)
	}
	return nil
}
