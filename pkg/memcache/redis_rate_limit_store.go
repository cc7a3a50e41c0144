package mem

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisRateLimitPrefix = "ratelimit:"

// takeScript runs the whole fixed-window decision inside Redis so
// concurrent callers on any node observe one counter. INCR keeps the TTL
// set by the first hit, which is what anchors the window.
var takeScript = redis.NewScript(`
local window = tonumber(ARGV[1])
local max = tonumber(ARGV[2])
local count = redis.call('GET', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])

if not count or ttl < 0 then
  redis.call('SET', KEYS[1], 1, 'PX', window)
  return {1, 1, window}
end

count = tonumber(count)
if count < max then
  redis.call('INCR', KEYS[1])
  return {1, count + 1, ttl}
end

return {0, count, ttl}
`)

// RedisRateLimitStore shares counters across processes.
type RedisRateLimitStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

var _ RateLimitStore = (*RedisRateLimitStore)(nil)
var _ RateLimitStore = (*MemoryRateLimitStore)(nil)

func NewRedisRateLimitStore(client redis.UniversalClient) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client, now: time.Now}
}

func (s *RedisRateLimitStore) Take(ctx context.Context, key string, window time.Duration, max int) (RateLimitEntry, bool, error) {
	windowMs := window.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}

	res, err := takeScript.Run(ctx, s.client, []string{redisRateLimitPrefix + key}, windowMs, max).Int64Slice()
	if err != nil {
		return RateLimitEntry{}, false, fmt.Errorf("redis rate limit take: %w", err)
	}
	if len(res) != 3 {
		return RateLimitEntry{}, false, fmt.Errorf("redis rate limit take: unexpected reply %v", res)
	}

	entry := RateLimitEntry{
		Count:         res[1],
		WindowResetAt: s.now().Add(time.Duration(res[2]) * time.Millisecond),
	}
	return entry, res[0] == 1, nil
}

// Compact is a no-op: every key carries its own PX expiry.
func (s *RedisRateLimitStore) Compact(_ context.Context) (int, error) {
	return 0, nil
}
