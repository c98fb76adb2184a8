package karma

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/karmabot/internal/domain"
)

func TestMatch_BareThing(t *testing.T) {
	cands := Match("coffee++")
	require.Len(t, cands, 1)
	assert.Equal(t, domain.KindThing, cands[0].Kind)
	assert.Equal(t, "coffee", cands[0].RawSubject)
	assert.False(t, cands[0].Quoted)
	assert.Equal(t, 2, cands[0].RunLength)
	assert.Equal(t, 1, cands[0].RunSign)
}

func TestMatch_SpaceBeforeRun(t *testing.T) {
	cands := Match("coffee ++")
	require.Len(t, cands, 1)
	assert.Equal(t, "coffee", cands[0].RawSubject)
}

func TestMatch_Decrement(t *testing.T) {
	cands := Match("mondays---")
	require.Len(t, cands, 1)
	assert.Equal(t, -1, cands[0].RunSign)
	assert.Equal(t, 3, cands[0].RunLength)
	assert.Equal(t, -2, cands[0].Quantity())
}

func TestMatch_RunLengthQuantities(t *testing.T) {
	// quantity = sign * (runLength - 1) for runs of 2 through 6
	for runLength := 2; runLength <= 6; runLength++ {
		text := "thing"
		for i := 0; i < runLength; i++ {
			text += "+"
		}
		cands := Match(text)
		require.Len(t, cands, 1, "run length %d", runLength)
		assert.Equal(t, runLength-1, cands[0].Quantity(), "run length %d", runLength)
	}
}

func TestMatch_RunTooShort(t *testing.T) {
	assert.Empty(t, Match("thing+"))
}

func TestMatch_RunTooLong(t *testing.T) {
	assert.Empty(t, Match("thing+++++++"))
	assert.Empty(t, Match("thing-------"))
}

func TestMatch_NoRun(t *testing.T) {
	assert.Empty(t, Match("just some words"))
}

func TestMatch_UserMention(t *testing.T) {
	cands := Match("<@UABC1234>++")
	require.Len(t, cands, 1)
	assert.Equal(t, domain.KindUser, cands[0].Kind)
	assert.Equal(t, "UABC1234", cands[0].RawSubject)
}

func TestMatch_UserMentionWithLabel(t *testing.T) {
	cands := Match("<@UABC1234|anna>++")
	require.Len(t, cands, 1)
	assert.Equal(t, domain.KindUser, cands[0].Kind)
	assert.Equal(t, "UABC1234", cands[0].RawSubject)
}

func TestMatch_ChannelMention(t *testing.T) {
	cands := Match("<#CDE2345|beth>+++")
	require.Len(t, cands, 1)
	assert.Equal(t, domain.KindChannel, cands[0].Kind)
	assert.Equal(t, "CDE2345", cands[0].RawSubject)
}

func TestMatch_GroupMention(t *testing.T) {
	cands := Match("<!subteam^CDE3456|charming-admins>++")
	require.Len(t, cands, 1)
	assert.Equal(t, domain.KindGroup, cands[0].Kind)
	assert.Equal(t, "CDE3456", cands[0].RawSubject)
}

func TestMatch_StraightDoubleQuotes(t *testing.T) {
	cands := Match(`"foo bar"++`)
	require.Len(t, cands, 1)
	assert.Equal(t, domain.KindThing, cands[0].Kind)
	assert.Equal(t, "foo bar", cands[0].RawSubject)
	assert.True(t, cands[0].Quoted)
}

func TestMatch_StraightSingleQuotes(t *testing.T) {
	cands := Match("'foo bar'++")
	require.Len(t, cands, 1)
	assert.Equal(t, "foo bar", cands[0].RawSubject)
	assert.True(t, cands[0].Quoted)
}

func TestMatch_CurlyQuotePairs(t *testing.T) {
	for _, text := range []string{
		"‘spaced thing’++",
		"‚spaced thing‛++",
		"“spaced thing”++",
		"„spaced thing‟++",
	} {
		cands := Match(text)
		require.Len(t, cands, 1, "text %q", text)
		assert.Equal(t, "spaced thing", cands[0].RawSubject, "text %q", text)
		assert.True(t, cands[0].Quoted, "text %q", text)
	}
}

func TestMatch_UserMentionInsideQuotes(t *testing.T) {
	// The quoted form has no trailing run, so the structured user
	// reference inside wins despite the surrounding quotes.
	cands := Match(`"<@U123>++"`)
	require.Len(t, cands, 1)
	assert.Equal(t, domain.KindUser, cands[0].Kind)
	assert.Equal(t, "U123", cands[0].RawSubject)
}

func TestMatch_QuotedFormBeatsBareThing(t *testing.T) {
	cands := Match(`"foo"++`)
	require.Len(t, cands, 1)
	assert.Equal(t, "foo", cands[0].RawSubject)
	assert.True(t, cands[0].Quoted)
}

func TestMatch_MultipleCandidatesInOrder(t *testing.T) {
	cands := Match("coffee++ tea-- <@U1>+++")
	require.Len(t, cands, 3)
	assert.Equal(t, "coffee", cands[0].RawSubject)
	assert.Equal(t, "tea", cands[1].RawSubject)
	assert.Equal(t, -1, cands[1].RunSign)
	assert.Equal(t, "U1", cands[2].RawSubject)
	assert.Less(t, cands[0].StartOffset, cands[1].StartOffset)
	assert.Less(t, cands[1].StartOffset, cands[2].StartOffset)
}

func TestMatch_ConsumedTextNotRescanned(t *testing.T) {
	// The run of the first candidate cannot seed another candidate.
	cands := Match("a++ b++")
	require.Len(t, cands, 2)
	assert.Equal(t, "a", cands[0].RawSubject)
	assert.Equal(t, "b", cands[1].RawSubject)
}

func TestMatch_CandidateInsideUnterminatedQuote(t *testing.T) {
	// The unterminated quote form fails, but the scan advances rune by
	// rune and still finds the mention nested inside it.
	cands := Match("'broken <@U1>++")
	require.Len(t, cands, 1)
	assert.Equal(t, domain.KindUser, cands[0].Kind)
	assert.Equal(t, "U1", cands[0].RawSubject)
}

func TestMatch_MixedRunRejected(t *testing.T) {
	// "+-" is a run of one '+': too short.
	assert.Empty(t, Match("thing+-"))
}

func TestMatch_TrailingMinusAfterValidRun(t *testing.T) {
	// Maximal identical run wins: "++--" is a valid "++" run, and the
	// leftover "--" has no subject.
	cands := Match("thing++--")
	require.Len(t, cands, 1)
	assert.Equal(t, 1, cands[0].Quantity())
}

func TestMatch_UnicodeSubject(t *testing.T) {
	cands := Match("π++")
	require.Len(t, cands, 1)
	assert.Equal(t, "π", cands[0].RawSubject)
	assert.Equal(t, domain.KindThing, cands[0].Kind)
}
