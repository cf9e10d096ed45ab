package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/coinkeep/finauth/domain"
	"github.com/coinkeep/finauth/errors"
)

// codeRetentionGrace keeps an expired code around a little longer so the
// first exchange attempt after expiry reports "expired" instead of "not
// found". Entries are evicted for good once the grace period passes.
const codeRetentionGrace = 5 * time.Minute

// MemoryCodeStore implements domain.AuthCodeRepository with ttlcache. It is
// the development and test backing; production deployments use the Redis
// store so codes survive restarts and are shared across replicas.
type MemoryCodeStore struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, *domain.AuthCode]
}

// NewMemoryCodeStore creates a new in-memory code store with automatic cleanup.
func NewMemoryCodeStore() *MemoryCodeStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, *domain.AuthCode](),
	)

	// Start the cleanup process
	go cache.Start()

	return &MemoryCodeStore{
		cache: cache,
	}
}

// SaveAuthCode implements domain.AuthCodeRepository.
func (s *MemoryCodeStore) SaveAuthCode(_ context.Context, code *domain.AuthCode) error {
	ttl := time.Until(code.ExpiresAt) + codeRetentionGrace

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(code.Code, code, ttl)

	return nil
}

// ConsumeAuthCode implements domain.AuthCodeRepository. The lock makes the
// lookup and the used-mark one critical section: of N concurrent calls on
// the same code, exactly one observes Used=false.
func (s *MemoryCodeStore) ConsumeAuthCode(_ context.Context, code string) (*domain.AuthCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(code)
	if item == nil {
		return nil, errors.ErrCodeNotFound
	}

	record := item.Value()
	snapshot := *record
	record.Used = true

	return &snapshot, nil
}

// DeleteExpiredAuthCodes implements domain.AuthCodeRepository.
func (s *MemoryCodeStore) DeleteExpiredAuthCodes(_ context.Context) error {
	// ttlcache evicts on its own; this just forces a sweep.
	s.cache.DeleteExpired()

	return nil
}

// Close stops the cleanup goroutine.
func (s *MemoryCodeStore) Close() error {
	s.cache.Stop()

	return nil
}

var _ domain.AuthCodeRepository = (*MemoryCodeStore)(nil)
