package karma

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/target/karmabot/internal/domain"
)

// rateWindow is the trailing period the rate limiter counts gifts over.
const rateWindow = time.Hour

// Engine runs the full karma pipeline for one message: sanitize, match,
// derive, and append accepted transactions to the ledger. It holds no
// per-message state and is safe for concurrent use; the store is the
// only shared resource.
type Engine struct {
	store     domain.TransactionStore
	clock     clockwork.Clock
	rateLimit int
	ttl       time.Duration
}

// NewEngine creates an engine. rateLimit is gifts per gifter per hour;
// ttl is how long a transaction counts toward aggregates.
func NewEngine(store domain.TransactionStore, clock clockwork.Clock, rateLimit int, ttl time.Duration) *Engine {
	return &Engine{
		store:     store,
		clock:     clock,
		rateLimit: rateLimit,
		ttl:       ttl,
	}
}

// Accepted is one derived transaction and the result of recording it.
// StoreErr reports an insert failure for this record only; earlier
// records in the same message are unaffected.
type Accepted struct {
	Transaction domain.KarmaTransaction
	Total       int
	TotalErr    error
	StoreErr    error
}

// Result is the outcome of processing one message.
type Result struct {
	Accepted  []Accepted
	Constants []ConstantMention
	Abort     AbortReason
	// RateLimit echoes the configured ceiling for user-facing messages.
	RateLimit int
}

// Process runs one message through the pipeline. Returns an error only
// for malformed input or a failed rate-window query; store failures on
// individual records are reported inside the result. Processing one
// message is not atomic: records inserted before an abort or a failure
// stay recorded.
func (e *Engine) Process(ctx context.Context, msg domain.Message) (*Result, error) {
	if msg.GifterID == "" {
		return nil, domain.ErrMissingGifter
	}
	if msg.WorkspaceID == "" {
		return nil, domain.ErrMissingWorkspace
	}

	preCount, err := e.store.CountRecentByGifter(ctx, msg.WorkspaceID, msg.GifterID, rateWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to query rate window: %w", err)
	}

	candidates := Match(Sanitize(msg.Text))

	derivation := Derive(candidates, DeriveParams{
		GifterID:    msg.GifterID,
		WorkspaceID: msg.WorkspaceID,
		Now:         e.clock.Now().UTC(),
		TTL:         e.ttl,
		RateLimit:   e.rateLimit,
		PreCount:    preCount,
	})

	result := &Result{
		Constants: derivation.Constants,
		Abort:     derivation.Abort,
		RateLimit: e.rateLimit,
	}

	for _, tx := range derivation.Transactions {
		accepted := Accepted{Transaction: tx}

		if err := e.store.Insert(ctx, tx); err != nil {
			slog.Error("Failed to record karma transaction",
				"workspace", tx.WorkspaceID, "kind", tx.Kind, "subject", tx.SubjectID, "error", err)
			accepted.StoreErr = err
			result.Accepted = append(result.Accepted, accepted)
			continue
		}

		slog.Info("Karma recorded",
			"workspace", tx.WorkspaceID, "kind", tx.Kind, "subject", tx.SubjectID,
			"quantity", tx.Quantity, "gifter", tx.GifterID)

		total, err := e.store.Total(ctx, tx.WorkspaceID, tx.Kind, tx.SubjectID)
		if err != nil {
			accepted.TotalErr = err
		} else {
			accepted.Total = total
		}
		result.Accepted = append(result.Accepted, accepted)
	}

	return result, nil
}
