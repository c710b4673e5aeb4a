package cache

import (
	"context"
	"sync"
	"time"

	"github.com/channelsync/backend/internal/domain/platform"
)

// entry represents a stored key with expiration
type entry struct {
	expiresAt time.Time
}

// InMemoryEchoSuppressor implements echo suppression using an in-memory map.
// Suitable for single-instance deployments and testing; suppression state
// is lost on restart, which at worst re-ingests one echo per listing.
type InMemoryEchoSuppressor struct {
	mu        sync.RWMutex
	entries   map[string]entry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryEchoSuppressor creates a new in-memory echo suppressor.
// It starts a background goroutine to clean up expired entries.
func NewInMemoryEchoSuppressor() *InMemoryEchoSuppressor {
	suppressor := &InMemoryEchoSuppressor{
		entries:  make(map[string]entry),
		stopChan: make(chan struct{}),
	}

	suppressor.wg.Add(1)
	go suppressor.cleanupLoop()

	return suppressor
}

// Suppress marks a listing as recently written by us
func (s *InMemoryEchoSuppressor) Suppress(ctx context.Context, code platform.Code, externalID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[echoKey(code, externalID)] = entry{expiresAt: time.Now().Add(ttl)}
	return nil
}

// IsSuppressed reports whether a listing carries an unexpired suppression marker
func (s *InMemoryEchoSuppressor) IsSuppressed(ctx context.Context, code platform.Code, externalID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[echoKey(code, externalID)]
	if !exists {
		return false, nil
	}
	if time.Now().After(e.expiresAt) {
		return false, nil
	}
	return true, nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryEchoSuppressor) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired entries
func (s *InMemoryEchoSuppressor) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes expired entries
func (s *InMemoryEchoSuppressor) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Size returns the number of entries (for testing/monitoring)
func (s *InMemoryEchoSuppressor) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ensure InMemoryEchoSuppressor implements EchoSuppressor
var _ platform.EchoSuppressor = (*InMemoryEchoSuppressor)(nil)
