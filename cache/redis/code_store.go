package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coinkeep/finauth/domain"
	"github.com/coinkeep/finauth/errors"
)

// codeRetentionGrace mirrors the in-memory store: expired codes linger this
// long so their first exchange attempt can be reported as expired.
const codeRetentionGrace = 5 * time.Minute

// consumeScript fetches a code and marks it used in one server-side step.
// Returns nil when the key is missing, otherwise {previous used flag, data}.
var consumeScript = redis.NewScript(`
local used = redis.call('HGET', KEYS[1], 'used')
if not used then
  return false
end
redis.call('HSET', KEYS[1], 'used', '1')
local data = redis.call('HGET', KEYS[1], 'data')
return {used, data}
`)

// CodeStore implements domain.AuthCodeRepository on Redis. This is the
// production backing: codes are shared across replicas and expire via key
// TTLs, the way the finance API has always stored them.
type CodeStore struct {
	client *redis.Client
	prefix string // Optional prefix for keys
}

// NewCodeStore creates a new [CodeStore] instance.
func NewCodeStore(client *redis.Client, prefix string) *CodeStore {
	return &CodeStore{
		client: client,
		prefix: prefix,
	}
}

// redisKey returns the Redis key for a given authorization code.
func (r *CodeStore) redisKey(code string) string {
	return fmt.Sprintf("%s:authcode:%s", r.prefix, code)
}

// SaveAuthCode implements domain.AuthCodeRepository.
func (r *CodeStore) SaveAuthCode(ctx context.Context, code *domain.AuthCode) error {
	data, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("failed to marshal auth code: %w", err)
	}

	key := r.redisKey(code.Code)
	retention := time.Until(code.ExpiresAt) + codeRetentionGrace

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, "data", string(data), "used", "0")
	pipe.Expire(ctx, key, retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: failed to store auth code: %v", errors.ErrStorageUnavailable, err)
	}

	return nil
}

// ConsumeAuthCode implements domain.AuthCodeRepository. The Lua script makes
// the fetch and the used-mark atomic on the Redis side, so concurrent
// exchanges racing on the same code get exactly one Used=false record.
func (r *CodeStore) ConsumeAuthCode(ctx context.Context, code string) (*domain.AuthCode, error) {
	res, err := consumeScript.Run(ctx, r.client, []string{r.redisKey(code)}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.ErrCodeNotFound
		}
		return nil, fmt.Errorf("%w: failed to consume auth code: %v", errors.ErrStorageUnavailable, err)
	}

	reply, ok := res.([]interface{})
	if !ok || len(reply) != 2 {
		return nil, fmt.Errorf("%w: unexpected consume reply", errors.ErrStorageUnavailable)
	}

	usedFlag, _ := reply[0].(string)
	data, _ := reply[1].(string)

	var record domain.AuthCode
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal auth code: %v", errors.ErrStorageUnavailable, err)
	}
	record.Used = usedFlag == "1"

	return &record, nil
}

// DeleteExpiredAuthCodes implements domain.AuthCodeRepository. Redis evicts
// keys via their TTL; nothing to sweep manually.
func (r *CodeStore) DeleteExpiredAuthCodes(_ context.Context) error {
	return nil
}

var _ domain.AuthCodeRepository = (*CodeStore)(nil)
