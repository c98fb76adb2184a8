package slack

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/target/karmabot/internal/adapter/metrics"
	"github.com/target/karmabot/internal/domain"
)

const tokenEnvPrefix = "BOT_"

// EnvTokenSource resolves bot tokens from BOT_<workspace> environment
// variables. Lookups are cached for a TTL and deduplicated, so a burst
// of events for one workspace resolves the token once.
type EnvTokenSource struct {
	ttl   time.Duration
	clock clockwork.Clock
	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedToken
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

var _ domain.TokenSource = (*EnvTokenSource)(nil)

func NewEnvTokenSource(ttl time.Duration, clock clockwork.Clock) *EnvTokenSource {
	return &EnvTokenSource{
		ttl:   ttl,
		clock: clock,
		cache: make(map[string]cachedToken),
	}
}

func (s *EnvTokenSource) BotToken(ctx context.Context, workspaceID string) (string, error) {
	if token, ok := s.cached(workspaceID); ok {
		metrics.TokenLookupsTotal.WithLabelValues("hit").Inc()
		return token, nil
	}

	metrics.TokenLookupsTotal.WithLabelValues("miss").Inc()

	result, err, _ := s.group.Do(workspaceID, func() (any, error) {
		return s.lookup(workspaceID)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (s *EnvTokenSource) cached(workspaceID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.cache[workspaceID]
	if !ok || s.clock.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.token, true
}

func (s *EnvTokenSource) lookup(workspaceID string) (string, error) {
	token := strings.TrimSpace(os.Getenv(tokenEnvPrefix + workspaceID))
	if token == "" {
		return "", fmt.Errorf("workspace %s: %w", workspaceID, domain.ErrTokenNotFound)
	}

	s.mu.Lock()
	s.cache[workspaceID] = cachedToken{token: token, expiresAt: s.clock.Now().Add(s.ttl)}
	s.mu.Unlock()

	return token, nil
}
