package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/karmabot/internal/domain"
)

func command(text string) Command {
	return Command{
		WorkspaceID: "T1",
		UserID:      "UCALLER",
		ChannelID:   "C1",
		Text:        text,
		ResponseURL: "https://hooks.example.com/commands/T1/123",
	}
}

func TestHandleCommand_EmptyShowsOwnKarma(t *testing.T) {
	svc, sink, store, clock := newTestService(t)
	seedTransaction(t, store, clock.Now(), domain.KindUser, "UCALLER", 7)

	err := svc.HandleCommand(context.Background(), command(""))
	require.NoError(t, err)

	require.Len(t, sink.responds, 1)
	resp := sink.responds[0]
	assert.Equal(t, "https://hooks.example.com/commands/T1/123", resp.responseURL)
	assert.Equal(t, "Your Karma is 7", resp.reply.Text)
	assert.True(t, resp.reply.Ephemeral)
}

func TestHandleCommand_OwnKarmaDolphin(t *testing.T) {
	svc, sink, store, clock := newTestService(t)
	seedTransaction(t, store, clock.Now(), domain.KindUser, "UCALLER", 42)

	err := svc.HandleCommand(context.Background(), command(""))
	require.NoError(t, err)

	require.Len(t, sink.responds, 1)
	assert.Equal(t, "Your Karma is 42 :dolphin:", sink.responds[0].reply.Text)
}

func TestHandleCommand_ShowThing(t *testing.T) {
	svc, sink, store, clock := newTestService(t)
	seedTransaction(t, store, clock.Now(), domain.KindThing, "coffee mug", 3)

	err := svc.HandleCommand(context.Background(), command("show coffee mug"))
	require.NoError(t, err)

	require.Len(t, sink.responds, 1)
	assert.Equal(t, "coffee mug has 3 karma. (thing)", sink.responds[0].reply.Text)
}

func TestHandleCommand_ShowUserMention(t *testing.T) {
	svc, sink, store, clock := newTestService(t)
	seedTransaction(t, store, clock.Now(), domain.KindUser, "U42", 5)

	err := svc.HandleCommand(context.Background(), command("show <@U42>"))
	require.NoError(t, err)

	require.Len(t, sink.responds, 1)
	assert.Equal(t, "<@U42> has 5 karma. (user)", sink.responds[0].reply.Text)
}

func TestHandleCommand_ShowConstant(t *testing.T) {
	svc, sink, _, _ := newTestService(t)

	err := svc.HandleCommand(context.Background(), command("show π"))
	require.NoError(t, err)

	require.Len(t, sink.responds, 1)
	assert.Equal(t,
		"π has 3.14159265358979323846264338327950288419716939937510582 karma. (thing)",
		sink.responds[0].reply.Text)
}

func TestHandleCommand_Top(t *testing.T) {
	svc, sink, store, clock := newTestService(t)
	now := clock.Now()
	seedTransaction(t, store, now, domain.KindThing, "coffee", 5)
	seedTransaction(t, store, now, domain.KindUser, "U42", 9)
	seedTransaction(t, store, now, domain.KindThing, "tea", 1)

	err := svc.HandleCommand(context.Background(), command("top"))
	require.NoError(t, err)

	require.Len(t, sink.responds, 1)
	text := sink.responds[0].reply.Text
	assert.Contains(t, text, "*Top Karma Standings:*")
	lines := strings.Split(text, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "9  <@U42> (user)", lines[1])
	assert.Equal(t, "5  coffee (thing)", lines[2])
	assert.Equal(t, "1  tea (thing)", lines[3])
}

func TestHandleCommand_TopUsersFiltersKind(t *testing.T) {
	svc, sink, store, clock := newTestService(t)
	now := clock.Now()
	seedTransaction(t, store, now, domain.KindThing, "coffee", 5)
	seedTransaction(t, store, now, domain.KindUser, "U42", 2)

	err := svc.HandleCommand(context.Background(), command("top users"))
	require.NoError(t, err)

	require.Len(t, sink.responds, 1)
	text := sink.responds[0].reply.Text
	assert.Contains(t, text, "*Top User Karma Standings:*")
	assert.Contains(t, text, "<@U42>")
	assert.NotContains(t, text, "coffee")
}

func TestHandleCommand_BottomAscending(t *testing.T) {
	svc, sink, store, clock := newTestService(t)
	now := clock.Now()
	seedTransaction(t, store, now, domain.KindThing, "coffee", 5)
	seedTransaction(t, store, now, domain.KindThing, "mondays", -8)

	err := svc.HandleCommand(context.Background(), command("bottom"))
	require.NoError(t, err)

	require.Len(t, sink.responds, 1)
	lines := strings.Split(sink.responds[0].reply.Text, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "-8  mondays (thing)", lines[1])
}

func TestHandleCommand_Stats(t *testing.T) {
	svc, sink, store, clock := newTestService(t)
	now := clock.Now()
	seedTransaction(t, store, now, domain.KindThing, "coffee", 2)
	seedTransaction(t, store, now, domain.KindThing, "coffee", 4)
	seedTransaction(t, store, now, domain.KindUser, "U42", 1)

	err := svc.HandleCommand(context.Background(), command("stats"))
	require.NoError(t, err)

	require.Len(t, sink.responds, 1)
	text := sink.responds[0].reply.Text
	assert.Contains(t, text, "*Interesting Karma Stats (last 90 days):*")
	assert.Contains(t, text, "All Karma: 3 operations for a sum of 7 (avg 2.33 per operation)")
	assert.Contains(t, text, "Thing Karma: 2 operations for a sum of 6 (avg 3.00 per operation)")
	assert.Contains(t, text, "User Karma: 1 operations for a sum of 1 (avg 1.00 per operation)")
	assert.Contains(t, text, "Total Gifters: 1")
	assert.Contains(t, text, "Total Subjects: 2")
}

func TestHandleCommand_SubjectStats(t *testing.T) {
	svc, sink, store, clock := newTestService(t)
	now := clock.Now()
	seedTransaction(t, store, now, domain.KindThing, "coffee", 2)
	seedTransaction(t, store, now, domain.KindThing, "coffee", 4)

	err := svc.HandleCommand(context.Background(), command("stats coffee"))
	require.NoError(t, err)

	require.Len(t, sink.responds, 1)
	text := sink.responds[0].reply.Text
	assert.Contains(t, text, "*Interesting Karma Stats for coffee (last 90 days):*")
	assert.Contains(t, text, "Karma Value: 6")
	assert.Contains(t, text, "Karma Operations: 2")
	assert.Contains(t, text, "Avg Karma Per Op: 3.00")
	assert.Contains(t, text, "Total Gifters: 1")
	assert.Contains(t, text, "6 <@USEED>")
}

func TestHandleCommand_UserStatsIncludesTopGifts(t *testing.T) {
	svc, sink, store, clock := newTestService(t)
	now := clock.Now()
	seedTransaction(t, store, now, domain.KindUser, "U42", 3)
	err := store.Insert(context.Background(), domain.KarmaTransaction{
		ID: uuid.New(), WorkspaceID: "T1", Kind: domain.KindThing,
		SubjectID: "coffee", SubjectDisplay: "coffee", Quantity: 2,
		GifterID: "U42", CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	err = svc.HandleCommand(context.Background(), command("stats <@U42>"))
	require.NoError(t, err)

	require.Len(t, sink.responds, 1)
	text := sink.responds[0].reply.Text
	assert.Contains(t, text, "Top Karma by that user:")
	assert.Contains(t, text, "2  coffee (thing)")
}

func TestHandleCommand_TopChannelMembers(t *testing.T) {
	svc, sink, store, clock := newTestService(t)
	svc.members = &staticMembers{members: []string{"U1", "U2"}}
	now := clock.Now()
	seedTransaction(t, store, now, domain.KindUser, "U1", 2)
	seedTransaction(t, store, now, domain.KindUser, "U2", 9)
	seedTransaction(t, store, now, domain.KindUser, "UELSEWHERE", 50)

	err := svc.HandleCommand(context.Background(), command("top channel members"))
	require.NoError(t, err)

	require.Len(t, sink.responds, 1)
	text := sink.responds[0].reply.Text
	lines := strings.Split(text, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "*Top User Karma for this Channel:*", lines[0])
	assert.Equal(t, "9 <@U2>", lines[1])
	assert.Equal(t, "2 <@U1>", lines[2])
}

func TestHandleCommand_HelpAndUnknown(t *testing.T) {
	svc, sink, _, _ := newTestService(t)

	require.NoError(t, svc.HandleCommand(context.Background(), command("help")))
	require.NoError(t, svc.HandleCommand(context.Background(), command("bogus")))

	require.Len(t, sink.responds, 2)
	for _, resp := range sink.responds {
		assert.Contains(t, resp.reply.Text, "Karma Assistance")
		assert.True(t, resp.reply.Ephemeral)
	}
}

func TestHandleCommand_NoResponseURLPostsToChannel(t *testing.T) {
	svc, sink, _, _ := newTestService(t)

	cmd := command("help")
	cmd.ResponseURL = ""
	require.NoError(t, svc.HandleCommand(context.Background(), cmd))

	assert.Empty(t, sink.responds)
	require.Len(t, sink.posts, 1)
	assert.Equal(t, "C1", sink.posts[0].channelID)
	assert.False(t, sink.posts[0].reply.Ephemeral)
}

func TestHandleMention_StripsLeadingMention(t *testing.T) {
	svc, sink, store, clock := newTestService(t)
	seedTransaction(t, store, clock.Now(), domain.KindThing, "coffee", 3)

	cmd := command("<@UBOT> show coffee")
	cmd.ResponseURL = ""
	require.NoError(t, svc.HandleMention(context.Background(), cmd))

	require.Len(t, sink.posts, 1)
	assert.Equal(t, "coffee has 3 karma. (thing)", sink.posts[0].reply.Text)
}

func TestHandleMention_BareMentionShowsHelp(t *testing.T) {
	svc, sink, _, _ := newTestService(t)

	cmd := command("<@UBOT>")
	cmd.ResponseURL = ""
	require.NoError(t, svc.HandleMention(context.Background(), cmd))

	require.Len(t, sink.posts, 1)
	assert.Contains(t, sink.posts[0].reply.Text, "Karma Assistance")
}
