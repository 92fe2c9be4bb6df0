package federation

import (
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

const defaultStateTTL = 10 * time.Minute

// StateStore issues and consumes single-use CSRF states for the OAuth
// redirect dance. States expire after a short TTL.
type StateStore struct {
	cache *ttlcache.Cache[string, string]
}

func NewStateStore() *StateStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, string](defaultStateTTL),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go cache.Start()
	return &StateStore{cache: cache}
}

// Issue creates a new state bound to the given platform ("web" or "mobile").
func (s *StateStore) Issue(platform string) string {
	state := uuid.NewString()
	s.cache.Set(state, platform, ttlcache.DefaultTTL)
	return state
}

// Consume validates a state and removes it so it cannot be replayed. It
// returns the platform the state was issued for.
func (s *StateStore) Consume(state string) (string, bool) {
	item := s.cache.Get(state)
	if item == nil {
		return "", false
	}
	s.cache.Delete(state)
	return item.Value(), true
}

// Stop shuts down the cache's cleanup goroutine.
func (s *StateStore) Stop() {
	s.cache.Stop()
}
