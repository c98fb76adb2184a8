package karma

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/karmabot/internal/domain"
)

func deriveParams() DeriveParams {
	return DeriveParams{
		GifterID:    "UGIFTER",
		WorkspaceID: "T123",
		Now:         time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		TTL:         90 * 24 * time.Hour,
		RateLimit:   60,
	}
}

func TestDerive_SingleThing(t *testing.T) {
	p := deriveParams()
	d := Derive(Match("coffee+++"), p)

	require.Len(t, d.Transactions, 1)
	tx := d.Transactions[0]
	assert.Equal(t, domain.KindThing, tx.Kind)
	assert.Equal(t, "coffee", tx.SubjectID)
	assert.Equal(t, "coffee", tx.SubjectDisplay)
	assert.Equal(t, 2, tx.Quantity)
	assert.Equal(t, "UGIFTER", tx.GifterID)
	assert.Equal(t, "T123", tx.WorkspaceID)
	assert.Equal(t, p.Now, tx.CreatedAt)
	assert.Equal(t, p.Now.Add(p.TTL), tx.ExpiresAt)
	assert.Equal(t, AbortNone, d.Abort)
}

func TestDerive_Displays(t *testing.T) {
	d := Derive(Match(`<@U1>++ <#C1|general>++ <!subteam^G1|ops>++ "two words"++`), deriveParams())

	require.Len(t, d.Transactions, 4)
	assert.Equal(t, "<@U1>", d.Transactions[0].SubjectDisplay)
	assert.Equal(t, "<#C1>", d.Transactions[1].SubjectDisplay)
	assert.Equal(t, "<!subteam^G1>", d.Transactions[2].SubjectDisplay)
	assert.Equal(t, `"two words"`, d.Transactions[3].SubjectDisplay)
}

func TestDerive_DuplicateSubjectDropped(t *testing.T) {
	d := Derive(Match("coffee++ coffee-- coffee++++"), deriveParams())

	// First occurrence wins, later mentions are dropped silently.
	require.Len(t, d.Transactions, 1)
	assert.Equal(t, 1, d.Transactions[0].Quantity)
	assert.Equal(t, AbortNone, d.Abort)
}

func TestDerive_SameTextDifferentKindBothKept(t *testing.T) {
	// Dedup identity is (kind, id): a user ID and an identical bare
	// thing string are distinct subjects.
	d := Derive(Match("<@U1>++ U1++"), deriveParams())

	require.Len(t, d.Transactions, 2)
	assert.Equal(t, domain.KindUser, d.Transactions[0].Kind)
	assert.Equal(t, domain.KindThing, d.Transactions[1].Kind)
}

func TestDerive_SelfPraiseAborts(t *testing.T) {
	d := Derive(Match("before++ <@UGIFTER>++ after++"), deriveParams())

	assert.Equal(t, AbortSelfPraise, d.Abort)
	// Earlier transactions survive; nothing after the abort is derived.
	require.Len(t, d.Transactions, 1)
	assert.Equal(t, "before", d.Transactions[0].SubjectID)
}

func TestDerive_SelfDeprecationAborts(t *testing.T) {
	d := Derive(Match("<@UGIFTER>--"), deriveParams())

	assert.Equal(t, AbortSelfDeprecation, d.Abort)
	assert.Empty(t, d.Transactions)
}

func TestDerive_OtherUserNotSelf(t *testing.T) {
	d := Derive(Match("<@UOTHER>++"), deriveParams())

	assert.Equal(t, AbortNone, d.Abort)
	require.Len(t, d.Transactions, 1)
}

func TestDerive_SelfAsThingAllowed(t *testing.T) {
	// Self-karma applies to user references only; the gifter's ID as a
	// bare thing is just a thing.
	d := Derive(Match("UGIFTER++"), deriveParams())

	assert.Equal(t, AbortNone, d.Abort)
	require.Len(t, d.Transactions, 1)
	assert.Equal(t, domain.KindThing, d.Transactions[0].Kind)
}

func TestDerive_PiNeverPersisted(t *testing.T) {
	d := Derive(Match("π++"), deriveParams())

	assert.Empty(t, d.Transactions)
	require.Len(t, d.Constants, 1)
	assert.Equal(t, "π", d.Constants[0].Subject.ID)
	assert.Equal(t, piValue, d.Constants[0].Value)
}

func TestDerive_EulerNeverPersisted(t *testing.T) {
	d := Derive(Match("ℇ--"), deriveParams())

	assert.Empty(t, d.Transactions)
	require.Len(t, d.Constants, 1)
	assert.Equal(t, eulerValue, d.Constants[0].Value)
}

func TestDerive_ConstantsDoNotConsumeRateBudget(t *testing.T) {
	p := deriveParams()
	p.RateLimit = 1

	d := Derive(Match("π++ coffee++"), p)

	require.Len(t, d.Constants, 1)
	require.Len(t, d.Transactions, 1)
	assert.Equal(t, AbortNone, d.Abort)
}

func TestDerive_RateLimitExhaustedBeforeMessage(t *testing.T) {
	p := deriveParams()
	p.RateLimit = 2
	p.PreCount = 2

	d := Derive(Match("a++ b++ c++"), p)

	assert.Empty(t, d.Transactions)
	assert.Equal(t, AbortRateLimited, d.Abort)
}

func TestDerive_RateLimitPartialAcceptance(t *testing.T) {
	p := deriveParams()
	p.RateLimit = 2
	p.PreCount = 1

	d := Derive(Match("a++ b++ c++"), p)

	require.Len(t, d.Transactions, 1)
	assert.Equal(t, "a", d.Transactions[0].SubjectID)
	assert.Equal(t, AbortRateLimited, d.Abort)
}

func TestDerive_NoCandidates(t *testing.T) {
	d := Derive(nil, deriveParams())

	assert.Empty(t, d.Transactions)
	assert.Empty(t, d.Constants)
	assert.Equal(t, AbortNone, d.Abort)
}
