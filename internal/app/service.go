// Package app is the application layer: it orchestrates the karma
// engine, the ledger, and the reply sink into the bot's use cases.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jonboulle/clockwork"

	"github.com/target/karmabot/internal/adapter/metrics"
	"github.com/target/karmabot/internal/domain"
	"github.com/target/karmabot/internal/karma"
)

// MessageProcessor runs one message through the karma pipeline.
// Satisfied by *karma.Engine.
type MessageProcessor interface {
	Process(ctx context.Context, msg domain.Message) (*karma.Result, error)
}

// Service is the only component that references multiple domain
// components. It owns reply construction; delivery failures are logged
// and never fail the use case.
type Service struct {
	engine  MessageProcessor
	store   domain.TransactionStore
	replies domain.ReplySink
	members domain.ChannelMemberLister
	clock   clockwork.Clock
	ttlDays int
}

// NewService creates the application layer service. ttlDays is only
// used in user-facing stats headers.
func NewService(engine MessageProcessor, store domain.TransactionStore, replies domain.ReplySink, members domain.ChannelMemberLister, clock clockwork.Clock, ttlDays int) *Service {
	return &Service{
		engine:  engine,
		store:   store,
		replies: replies,
		members: members,
		clock:   clock,
		ttlDays: ttlDays,
	}
}

// HandleMessageEvent runs one channel message through the engine and
// posts the resulting replies. Returns an error only when the message
// could not be processed at all; reply delivery is best effort.
func (s *Service) HandleMessageEvent(ctx context.Context, msg domain.Message) error {
	start := s.clock.Now()
	defer func() {
		metrics.ProcessDurationSeconds.Observe(s.clock.Since(start).Seconds())
	}()

	result, err := s.engine.Process(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to process message: %w", err)
	}

	for _, acc := range result.Accepted {
		if acc.StoreErr != nil {
			continue
		}
		metrics.TransactionsTotal.WithLabelValues(string(acc.Transaction.Kind)).Inc()

		if acc.TotalErr != nil {
			slog.Error("Failed to read total for reply",
				"workspace", msg.WorkspaceID, "subject", acc.Transaction.SubjectID, "error", acc.TotalErr)
			continue
		}
		s.post(ctx, msg, successReply(acc.Transaction, acc.Total))
	}

	for _, c := range result.Constants {
		s.post(ctx, msg, domain.Reply{
			Text: fmt.Sprintf("%s has %s karma. (%s)", c.Subject.Display, c.Value, c.Subject.Kind),
		})
	}

	if result.Abort != karma.AbortNone {
		metrics.AbortsTotal.WithLabelValues(result.Abort.String()).Inc()
		s.post(ctx, msg, abortReply(result.Abort, result.RateLimit))
	}

	return nil
}

func successReply(tx domain.KarmaTransaction, total int) domain.Reply {
	text := fmt.Sprintf("%s has %d karma. (%s)", tx.SubjectDisplay, total, tx.Kind)
	if total == 42 {
		text += " :dolphin:"
	}
	return domain.Reply{
		Text:   text,
		Footer: fmt.Sprintf("<@%s> gave %d karma to the %s %s", tx.GifterID, tx.Quantity, tx.Kind, tx.SubjectDisplay),
	}
}

func abortReply(reason karma.AbortReason, rateLimit int) domain.Reply {
	switch reason {
	case karma.AbortSelfPraise:
		return domain.Reply{Text: "Don't be so vain"}
	case karma.AbortSelfDeprecation:
		return domain.Reply{Text: "Don't be so hard on yourself"}
	case karma.AbortRateLimited:
		return domain.Reply{Text: fmt.Sprintf(
			"Slow down there, partner! You only get to use karma %d times per hour. Wait a little while and try again.",
			rateLimit)}
	}
	return domain.Reply{}
}

func (s *Service) post(ctx context.Context, msg domain.Message, reply domain.Reply) {
	if err := s.replies.Post(ctx, msg.WorkspaceID, msg.ChannelID, msg.ThreadTS, reply); err != nil {
		slog.Error("Failed to post reply",
			"workspace", msg.WorkspaceID, "channel", msg.ChannelID, "error", err)
	}
}

// subjectKarma reads the display value for a subject's karma: the fixed
// literal for reserved constants, the aggregated total otherwise. The
// bool reports whether the total is exactly 42.
func (s *Service) subjectKarma(ctx context.Context, workspaceID string, subject domain.Subject) (string, bool, error) {
	if value, ok := karma.ConstantKarma(subject); ok {
		return value, false, nil
	}
	total, err := s.store.Total(ctx, workspaceID, subject.Kind, subject.ID)
	if err != nil {
		return "", false, fmt.Errorf("failed to read karma total: %w", err)
	}
	return strconv.Itoa(total), total == 42, nil
}

// statsWindow renders the TTL for stats headers.
func (s *Service) statsWindow() string {
	return fmt.Sprintf("last %d days", s.ttlDays)
}
