// Package redisstore provides a Redis-backed Store for deployments that
// share routing state across processes. Usage counters are Redis hashes
// mutated through a Lua script, so the window-reset check and the
// increments execute atomically on the server.
package redisstore

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/blueberrycongee/llmroute/pkg/store"
	"github.com/blueberrycongee/llmroute/pkg/window"
)

const defaultKeyPrefix = "llmroute"

// incrementScript resets the hash when the stored window start differs
// from the caller's, then applies both increments and refreshes the TTL.
var incrementScript = redis.NewScript(`
local ws = redis.call('HGET', KEYS[1], 'ws')
if ws ~= ARGV[3] then
  redis.call('DEL', KEYS[1])
  redis.call('HSET', KEYS[1], 'ws', ARGV[3])
end
local req = redis.call('HINCRBY', KEYS[1], 'req', ARGV[1])
local tok = redis.call('HINCRBY', KEYS[1], 'tok', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return {req, tok}
`)

// latencyScript folds one EMA step server-side so concurrent updates
// never lose samples.
var latencyScript = redis.NewScript(`
local avg = redis.call('HGET', KEYS[1], 'avg')
local n = tonumber(redis.call('HGET', KEYS[1], 'n')) or 0
local sample = tonumber(ARGV[1])
local decay = tonumber(ARGV[2])
local cap = tonumber(ARGV[3])
if not avg or n == 0 then
  avg = sample
  n = 1
else
  avg = tonumber(avg) * decay + sample * (1 - decay)
  n = n + 1
  if n > cap then n = cap end
end
redis.call('HSET', KEYS[1], 'avg', avg, 'n', n, 'ts', ARGV[4])
return {tostring(avg), n}
`)

// Store is the Redis-backed state store.
type Store struct {
	client    redis.UniversalClient
	keyPrefix string
	clock     window.Clock
}

// Option configures the Store.
type Option func(*Store)

// WithKeyPrefix sets the Redis key prefix (default: "llmroute").
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.keyPrefix = prefix
	}
}

// WithClock injects a clock for tests.
func WithClock(clock window.Clock) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// New creates a Redis store on top of an existing client.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		clock:     window.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(k string) string {
	return s.keyPrefix + ":" + k
}

// GetUsage returns the usage record for key, or nil if absent.
func (s *Store) GetUsage(ctx context.Context, key string) (*store.UsageRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return usageFromFields(fields), nil
}

// SetUsage overwrites the usage record for key.
func (s *Store) SetUsage(ctx context.Context, key string, rec store.UsageRecord, ttl time.Duration) error {
	k := s.key(key)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, k)
	pipe.HSet(ctx, k,
		"req", rec.Requests,
		"tok", rec.Tokens,
		"ws", rec.WindowStart.Unix(),
	)
	if ttl > 0 {
		pipe.PExpire(ctx, k, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// IncrementUsage runs the atomic increment script.
func (s *Store) IncrementUsage(ctx context.Context, key string, deltaRequests, deltaTokens int64, windowStart time.Time, ttl time.Duration) (*store.UsageRecord, error) {
	res, err := incrementScript.Run(ctx, s.client, []string{s.key(key)},
		deltaRequests,
		deltaTokens,
		strconv.FormatInt(windowStart.Unix(), 10),
		ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, err
	}
	return &store.UsageRecord{
		Requests:    res[0],
		Tokens:      res[1],
		WindowStart: windowStart,
	}, nil
}

// GetCooldown returns the active cooldown; Redis TTL handles expiry, and
// a stale value past its expiry is treated as absent.
func (s *Store) GetCooldown(ctx context.Context, provider, model string) (*store.CooldownRecord, error) {
	v, err := s.client.Get(ctx, s.key(window.CooldownKey(provider, model))).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	millis, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, nil
	}
	expiresAt := time.UnixMilli(millis).UTC()
	if !s.clock.Now().Before(expiresAt) {
		return nil, nil
	}
	return &store.CooldownRecord{Provider: provider, Model: model, ExpiresAt: expiresAt}, nil
}

// SetCooldown overwrites the cooldown with a TTL of ExpiresAt minus now.
func (s *Store) SetCooldown(ctx context.Context, rec store.CooldownRecord) error {
	ttl := rec.ExpiresAt.Sub(s.clock.Now())
	key := s.key(window.CooldownKey(rec.Provider, rec.Model))
	if ttl <= 0 {
		return s.client.Del(ctx, key).Err()
	}
	return s.client.Set(ctx, key, strconv.FormatInt(rec.ExpiresAt.UnixMilli(), 10), ttl).Err()
}

// RemoveCooldown deletes the cooldown for the pair.
func (s *Store) RemoveCooldown(ctx context.Context, provider, model string) error {
	return s.client.Del(ctx, s.key(window.CooldownKey(provider, model))).Err()
}

// GetLatency returns the latency record for the pair, or nil if none.
func (s *Store) GetLatency(ctx context.Context, provider, model string) (*store.LatencyRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.key(window.LatencyKey(provider, model))).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	avg, _ := strconv.ParseFloat(fields["avg"], 64)
	n, _ := strconv.Atoi(fields["n"])
	ts, _ := strconv.ParseInt(fields["ts"], 10, 64)
	return &store.LatencyRecord{
		AvgMS:     avg,
		Samples:   n,
		UpdatedAt: time.UnixMilli(ts).UTC(),
	}, nil
}

// UpdateLatency runs the EMA script and returns the folded record.
func (s *Store) UpdateLatency(ctx context.Context, provider, model string, sampleMS float64) (*store.LatencyRecord, error) {
	now := s.clock.Now()
	res, err := latencyScript.Run(ctx, s.client, []string{s.key(window.LatencyKey(provider, model))},
		sampleMS,
		store.EMADecay,
		store.MaxEMASamples,
		now.UnixMilli(),
	).Slice()
	if err != nil {
		return nil, err
	}
	avgStr, _ := res[0].(string)
	avg, _ := strconv.ParseFloat(avgStr, 64)
	n, _ := res[1].(int64)
	return &store.LatencyRecord{AvgMS: avg, Samples: int(n), UpdatedAt: now}, nil
}

// Clear removes all keys under the store's prefix.
func (s *Store) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.keyPrefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func usageFromFields(fields map[string]string) *store.UsageRecord {
	req, _ := strconv.ParseInt(fields["req"], 10, 64)
	tok, _ := strconv.ParseInt(fields["tok"], 10, 64)
	ws, _ := strconv.ParseInt(fields["ws"], 10, 64)
	return &store.UsageRecord{
		Requests:    req,
		Tokens:      tok,
		WindowStart: time.Unix(ws, 0).UTC(),
	}
}
