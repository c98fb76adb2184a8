package karma

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/target/karmabot/internal/domain"
)

// InMemoryStore is a TransactionStore backed by a slice. Used in tests
// and single-instance deployments without a database. Aggregates filter
// expired records at query time; nothing is ever purged.
type InMemoryStore struct {
	clock clockwork.Clock

	mu      sync.RWMutex
	records []domain.KarmaTransaction
}

var _ domain.TransactionStore = (*InMemoryStore)(nil)

func NewInMemoryStore(clock clockwork.Clock) *InMemoryStore {
	return &InMemoryStore{clock: clock}
}

func (s *InMemoryStore) Insert(_ context.Context, tx domain.KarmaTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, tx)
	return nil
}

// live returns the non-expired records for a workspace. Callers hold at
// least a read lock.
func (s *InMemoryStore) live(workspaceID string) []domain.KarmaTransaction {
	now := s.clock.Now()
	var out []domain.KarmaTransaction
	for _, r := range s.records {
		if r.WorkspaceID == workspaceID && now.Before(r.ExpiresAt) {
			out = append(out, r)
		}
	}
	return out
}

func (s *InMemoryStore) Total(_ context.Context, workspaceID string, kind domain.Kind, subjectID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, r := range s.live(workspaceID) {
		if r.Kind == kind && r.SubjectID == subjectID {
			total += r.Quantity
		}
	}
	return total, nil
}

func (s *InMemoryStore) TypeTotal(_ context.Context, workspaceID string, kind domain.Kind) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, r := range s.live(workspaceID) {
		if r.Kind == kind {
			total += r.Quantity
		}
	}
	return total, nil
}

func (s *InMemoryStore) GrandTotal(_ context.Context, workspaceID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, r := range s.live(workspaceID) {
		total += r.Quantity
	}
	return total, nil
}

func (s *InMemoryStore) TopN(_ context.Context, workspaceID string, filter domain.TopNFilter) ([]domain.SubjectTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		kind domain.Kind
		id   string
	}
	totals := make(map[key]int)
	for _, r := range s.live(workspaceID) {
		if filter.Kind != nil && r.Kind != *filter.Kind {
			continue
		}
		if filter.GifterID != "" && r.GifterID != filter.GifterID {
			continue
		}
		totals[key{r.Kind, r.SubjectID}] += r.Quantity
	}

	rows := make([]domain.SubjectTotal, 0, len(totals))
	for k, total := range totals {
		rows = append(rows, domain.SubjectTotal{Kind: k.kind, SubjectID: k.id, Total: total})
	}

	// Tie order matches the postgres adapter: total, then kind, then
	// subject ID. Callers must not rely on it.
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			if filter.Direction == domain.Ascending {
				return rows[i].Total < rows[j].Total
			}
			return rows[i].Total > rows[j].Total
		}
		if rows[i].Kind != rows[j].Kind {
			return rows[i].Kind < rows[j].Kind
		}
		return rows[i].SubjectID < rows[j].SubjectID
	})

	if filter.Limit > 0 && len(rows) > filter.Limit {
		rows = rows[:filter.Limit]
	}
	return rows, nil
}

func (s *InMemoryStore) GifterCount(_ context.Context, workspaceID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gifters := make(map[string]struct{})
	for _, r := range s.live(workspaceID) {
		gifters[r.GifterID] = struct{}{}
	}
	return len(gifters), nil
}

func (s *InMemoryStore) SubjectCount(_ context.Context, workspaceID string, kind *domain.Kind) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		kind domain.Kind
		id   string
	}
	subjects := make(map[key]struct{})
	for _, r := range s.live(workspaceID) {
		if kind != nil && r.Kind != *kind {
			continue
		}
		subjects[key{r.Kind, r.SubjectID}] = struct{}{}
	}
	return len(subjects), nil
}

func (s *InMemoryStore) OperationCount(_ context.Context, workspaceID string, kind domain.Kind, subjectID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, r := range s.live(workspaceID) {
		if r.Kind == kind && r.SubjectID == subjectID {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) TypeOperationCount(_ context.Context, workspaceID string, kind *domain.Kind) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, r := range s.live(workspaceID) {
		if kind != nil && r.Kind != *kind {
			continue
		}
		count++
	}
	return count, nil
}

func (s *InMemoryStore) TopGifters(_ context.Context, workspaceID string, kind domain.Kind, subjectID string, limit int) ([]domain.GifterTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[string]int)
	for _, r := range s.live(workspaceID) {
		if r.Kind == kind && r.SubjectID == subjectID {
			totals[r.GifterID] += r.Quantity
		}
	}

	rows := make([]domain.GifterTotal, 0, len(totals))
	for gifter, total := range totals {
		rows = append(rows, domain.GifterTotal{GifterID: gifter, Total: total})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return rows[i].GifterID < rows[j].GifterID
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *InMemoryStore) CountRecentByGifter(_ context.Context, workspaceID, gifterID string, window time.Duration) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.clock.Now().Add(-window)
	count := 0
	for _, r := range s.live(workspaceID) {
		if r.GifterID == gifterID && r.CreatedAt.After(cutoff) {
			count++
		}
	}
	return count, nil
}
