package oauth

import (
	"time"

	"github.com/aussiebroadwan/budg/pkg/cryptox"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultStateTTL  = 10 * time.Minute
	defaultStateSize = 10_000
)

// StateStore remembers the anti-forgery state of in-flight logins. A state
// is bound to one provider and can be consumed once.
type StateStore struct {
	cache *expirable.LRU[string, string]
}

func NewStateStore(size int, ttl time.Duration) *StateStore {
	if size <= 0 {
		size = defaultStateSize
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateStore{cache: expirable.NewLRU[string, string](size, nil, ttl)}
}

func (s *StateStore) Issue(provider string) (string, error) {
	state, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}
	s.cache.Add(state, provider)
	return state, nil
}

// Consume reports whether state was issued for provider and has not expired
// or been used.
func (s *StateStore) Consume(state, provider string) bool {
	if state == "" {
		return false
	}
	owner, ok := s.cache.Peek(state)
	if !ok || !s.cache.Remove(state) {
		return false
	}
	return owner == provider
}

func (s *StateStore) Len() int { return s.cache.Len() }
