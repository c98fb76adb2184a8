package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// --- Model types ---

// Kind classifies a karma subject. The set is closed: every component
// that switches on Kind must handle all four values.
type Kind string

const (
	KindUser    Kind = "user"
	KindChannel Kind = "channel"
	KindGroup   Kind = "group"
	KindThing   Kind = "thing"
)

// Kinds lists all valid kinds in a stable order.
var Kinds = []Kind{KindUser, KindGroup, KindChannel, KindThing}

// ParseKind converts a stored string back into a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindUser, KindChannel, KindGroup, KindThing:
		return Kind(s), true
	}
	return "", false
}

// Subject is the target of a karma transaction. Identity for dedup and
// self-karma purposes is (Kind, ID); Display is only for humans.
type Subject struct {
	Kind    Kind
	ID      string
	Display string
}

// KarmaTransaction is one accepted karma gift. Immutable once created;
// records past ExpiresAt are excluded from aggregation but may linger
// in storage until purged.
type KarmaTransaction struct {
	ID             uuid.UUID
	WorkspaceID    string
	Kind           Kind
	SubjectID      string
	SubjectDisplay string
	Quantity       int
	GifterID       string
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// SubjectTotal is one row of a ranking query.
type SubjectTotal struct {
	Kind      Kind
	SubjectID string
	Total     int
}

// GifterTotal is one row of a per-subject gifter breakdown.
type GifterTotal struct {
	GifterID string
	Total    int
}

// Direction orders ranking queries.
type Direction int

const (
	Descending Direction = -1
	Ascending  Direction = 1
)

// TopNFilter restricts a ranking query. Nil Kind means all kinds;
// empty GifterID means all gifters.
type TopNFilter struct {
	Kind      *Kind
	GifterID  string
	Direction Direction
	Limit     int
}

// Message is one inbound chat message to run through the karma engine.
// ChannelID and ThreadTS are opaque reply-routing context.
type Message struct {
	Text        string
	GifterID    string
	WorkspaceID string
	ChannelID   string
	ThreadTS    string
}

// --- Interfaces ---

// TransactionStore is the append-only karma ledger plus its aggregate
// queries. All aggregates cover non-expired records only (now before
// ExpiresAt). Implementations must support concurrent inserts and
// reads; read-your-writes across workers is not required.
type TransactionStore interface {
	Insert(ctx context.Context, tx KarmaTransaction) error

	Total(ctx context.Context, workspaceID string, kind Kind, subjectID string) (int, error)
	TypeTotal(ctx context.Context, workspaceID string, kind Kind) (int, error)
	GrandTotal(ctx context.Context, workspaceID string) (int, error)
	TopN(ctx context.Context, workspaceID string, filter TopNFilter) ([]SubjectTotal, error)

	GifterCount(ctx context.Context, workspaceID string) (int, error)
	SubjectCount(ctx context.Context, workspaceID string, kind *Kind) (int, error)
	OperationCount(ctx context.Context, workspaceID string, kind Kind, subjectID string) (int, error)
	TypeOperationCount(ctx context.Context, workspaceID string, kind *Kind) (int, error)
	TopGifters(ctx context.Context, workspaceID string, kind Kind, subjectID string, limit int) ([]GifterTotal, error)

	// CountRecentByGifter is the rate window: accepted transactions by
	// the gifter within the trailing window, as of call time.
	CountRecentByGifter(ctx context.Context, workspaceID, gifterID string, window time.Duration) (int, error)
}

// Reply is a human-readable payload for the reply sink.
type Reply struct {
	Text      string
	Footer    string
	Ephemeral bool
}

// ReplySink delivers replies back to the chat platform. Delivery is
// fire-and-forget from the engine's perspective.
type ReplySink interface {
	Post(ctx context.Context, workspaceID, channelID, threadTS string, reply Reply) error
	Respond(ctx context.Context, workspaceID, responseURL string, reply Reply) error
}

// TokenSource resolves the bot token for a workspace.
type TokenSource interface {
	BotToken(ctx context.Context, workspaceID string) (string, error)
}

// ChannelMemberLister lists the user IDs present in a channel.
type ChannelMemberLister interface {
	ChannelMembers(ctx context.Context, workspaceID, channelID string) ([]string, error)
}
