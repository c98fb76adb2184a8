package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/target/karmabot/internal/adapter/metrics"
	"github.com/target/karmabot/internal/domain"
	"github.com/target/karmabot/internal/karma"
)

const topListLimit = 10

// Command is one slash-command or app-mention invocation. ResponseURL
// is set for slash commands; mention replies go to the channel instead.
type Command struct {
	WorkspaceID string
	UserID      string
	ChannelID   string
	ThreadTS    string
	Text        string
	ResponseURL string
}

// HandleCommand dispatches a slash-command invocation. Unknown
// commands get the help text.
func (s *Service) HandleCommand(ctx context.Context, cmd Command) error {
	return s.dispatch(ctx, cmd, "command", true)
}

// HandleMention dispatches an @-mention of the bot. The leading mention
// token is stripped before dispatch; an empty remainder shows help
// rather than the caller's own karma.
func (s *Service) HandleMention(ctx context.Context, cmd Command) error {
	_, rest, _ := strings.Cut(strings.TrimSpace(cmd.Text), " ")
	cmd.Text = strings.TrimSpace(rest)
	if cmd.Text == "" {
		metrics.CommandsTotal.WithLabelValues("help", "mention").Inc()
		return s.respond(ctx, cmd, helpReply())
	}
	return s.dispatch(ctx, cmd, "mention", false)
}

func (s *Service) dispatch(ctx context.Context, cmd Command, source string, allowOwnKarma bool) error {
	text := strings.TrimSpace(cmd.Text)

	if text == "" && allowOwnKarma {
		metrics.CommandsTotal.WithLabelValues("none", source).Inc()
		return s.cmdOwnKarma(ctx, cmd)
	}

	if strings.Join(strings.Fields(text), " ") == "top channel members" {
		metrics.CommandsTotal.WithLabelValues("top_channel_members", source).Inc()
		return s.cmdTopChannelMembers(ctx, cmd)
	}

	verb, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "show":
		metrics.CommandsTotal.WithLabelValues("show", source).Inc()
		return s.cmdShow(ctx, cmd, rest)
	case "top":
		metrics.CommandsTotal.WithLabelValues("top", source).Inc()
		return s.cmdTop(ctx, cmd, rest, domain.Descending)
	case "bottom":
		metrics.CommandsTotal.WithLabelValues("bottom", source).Inc()
		return s.cmdTop(ctx, cmd, rest, domain.Ascending)
	case "stats":
		metrics.CommandsTotal.WithLabelValues("stats", source).Inc()
		if rest != "" {
			return s.cmdSubjectStats(ctx, cmd, rest)
		}
		return s.cmdStats(ctx, cmd)
	case "help":
		metrics.CommandsTotal.WithLabelValues("help", source).Inc()
	default:
		metrics.CommandsTotal.WithLabelValues("unknown", source).Inc()
	}
	return s.respond(ctx, cmd, helpReply())
}

func (s *Service) cmdOwnKarma(ctx context.Context, cmd Command) error {
	self := domain.Subject{Kind: domain.KindUser, ID: cmd.UserID}
	value, dolphin, err := s.subjectKarma(ctx, cmd.WorkspaceID, self)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("Your Karma is %s", value)
	if dolphin {
		text += " :dolphin:"
	}
	return s.respond(ctx, cmd, domain.Reply{Text: text, Ephemeral: true})
}

func (s *Service) cmdShow(ctx context.Context, cmd Command, ref string) error {
	subject := karma.ParseSubjectRef(ref)
	value, dolphin, err := s.subjectKarma(ctx, cmd.WorkspaceID, subject)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("%s has %s karma. (%s)", subject.Display, value, subject.Kind)
	if dolphin {
		text += " :dolphin:"
	}
	return s.respond(ctx, cmd, domain.Reply{Text: text})
}

func (s *Service) cmdTop(ctx context.Context, cmd Command, arg string, direction domain.Direction) error {
	header := "Top"
	if direction == domain.Ascending {
		header = "Bottom"
	}

	filter := domain.TopNFilter{Direction: direction, Limit: topListLimit}
	if arg != "" {
		kind := listKind(arg)
		filter.Kind = &kind
		header = fmt.Sprintf("%s %s", header, titleKind(kind))
	}
	header += " Karma Standings"

	rows, err := s.store.TopN(ctx, cmd.WorkspaceID, filter)
	if err != nil {
		return fmt.Errorf("failed to query standings: %w", err)
	}

	return s.respond(ctx, cmd, domain.Reply{
		Text:      fmt.Sprintf("*%s:*\n%s", header, renderStandings(rows)),
		Ephemeral: true,
	})
}

// listKind maps a top/bottom argument to a kind. Anything unrecognized
// means things, matching the original command's behavior.
func listKind(arg string) domain.Kind {
	switch arg {
	case "users":
		return domain.KindUser
	case "channels":
		return domain.KindChannel
	case "groups":
		return domain.KindGroup
	}
	return domain.KindThing
}

// titleKind capitalizes a kind for headers. Kinds are ASCII.
func titleKind(kind domain.Kind) string {
	s := string(kind)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func renderStandings(rows []domain.SubjectTotal) string {
	var b strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&b, "%d  %s (%s)\n", row.Total, subjectDisplay(row.Kind, row.SubjectID), row.Kind)
	}
	return strings.TrimRight(b.String(), "\n")
}

func subjectDisplay(kind domain.Kind, subjectID string) string {
	switch kind {
	case domain.KindUser:
		return "<@" + subjectID + ">"
	case domain.KindChannel:
		return "<#" + subjectID + ">"
	case domain.KindGroup:
		return "<!subteam^" + subjectID + ">"
	}
	return subjectID
}

func (s *Service) cmdStats(ctx context.Context, cmd Command) error {
	var b strings.Builder
	fmt.Fprintf(&b, "*Interesting Karma Stats (%s):*\n", s.statsWindow())

	allOps, err := s.store.TypeOperationCount(ctx, cmd.WorkspaceID, nil)
	if err != nil {
		return fmt.Errorf("failed to query stats: %w", err)
	}
	allKarma, err := s.store.GrandTotal(ctx, cmd.WorkspaceID)
	if err != nil {
		return fmt.Errorf("failed to query stats: %w", err)
	}
	fmt.Fprintf(&b, "All Karma: %s\n", karmaLine(allOps, allKarma))

	for _, kind := range domain.Kinds {
		ops, err := s.store.TypeOperationCount(ctx, cmd.WorkspaceID, &kind)
		if err != nil {
			return fmt.Errorf("failed to query stats: %w", err)
		}
		total, err := s.store.TypeTotal(ctx, cmd.WorkspaceID, kind)
		if err != nil {
			return fmt.Errorf("failed to query stats: %w", err)
		}
		fmt.Fprintf(&b, "%s Karma: %s\n", titleKind(kind), karmaLine(ops, total))
	}

	gifters, err := s.store.GifterCount(ctx, cmd.WorkspaceID)
	if err != nil {
		return fmt.Errorf("failed to query stats: %w", err)
	}
	subjects, err := s.store.SubjectCount(ctx, cmd.WorkspaceID, nil)
	if err != nil {
		return fmt.Errorf("failed to query stats: %w", err)
	}
	fmt.Fprintf(&b, "Total Gifters: %d\nTotal Subjects: %d", gifters, subjects)

	return s.respond(ctx, cmd, domain.Reply{Text: b.String(), Ephemeral: true})
}

func karmaLine(ops, total int) string {
	avg := 0.0
	if ops != 0 {
		avg = float64(total) / float64(ops)
	}
	return fmt.Sprintf("%d operations for a sum of %d (avg %.2f per operation)", ops, total, avg)
}

func (s *Service) cmdSubjectStats(ctx context.Context, cmd Command, ref string) error {
	subject := karma.ParseSubjectRef(ref)

	ops, err := s.store.OperationCount(ctx, cmd.WorkspaceID, subject.Kind, subject.ID)
	if err != nil {
		return fmt.Errorf("failed to query subject stats: %w", err)
	}
	total, err := s.store.Total(ctx, cmd.WorkspaceID, subject.Kind, subject.ID)
	if err != nil {
		return fmt.Errorf("failed to query subject stats: %w", err)
	}
	gifters, err := s.store.TopGifters(ctx, cmd.WorkspaceID, subject.Kind, subject.ID, 0)
	if err != nil {
		return fmt.Errorf("failed to query subject stats: %w", err)
	}

	avg := 0.0
	if ops != 0 {
		avg = float64(total) / float64(ops)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Interesting Karma Stats for %s (%s):*\n", subject.Display, s.statsWindow())
	fmt.Fprintf(&b, "Type: %s\n", subject.Kind)
	fmt.Fprintf(&b, "Karma Value: %d\n", total)
	fmt.Fprintf(&b, "Karma Operations: %d\n", ops)
	fmt.Fprintf(&b, "Avg Karma Per Op: %.2f\n", avg)
	fmt.Fprintf(&b, "Total Gifters: %d\n", len(gifters))

	top := gifters
	if len(top) > 5 {
		top = top[:5]
	}
	b.WriteString("Top Gifters:\n")
	for _, g := range top {
		fmt.Fprintf(&b, "%d <@%s>\n", g.Total, g.GifterID)
	}

	if subject.Kind == domain.KindUser {
		gifts, err := s.store.TopN(ctx, cmd.WorkspaceID, domain.TopNFilter{
			GifterID:  subject.ID,
			Direction: domain.Descending,
			Limit:     5,
		})
		if err != nil {
			return fmt.Errorf("failed to query subject stats: %w", err)
		}
		b.WriteString("Top Karma by that user:\n")
		b.WriteString(renderStandings(gifts))
	}

	return s.respond(ctx, cmd, domain.Reply{
		Text:      strings.TrimRight(b.String(), "\n"),
		Ephemeral: true,
	})
}

func (s *Service) cmdTopChannelMembers(ctx context.Context, cmd Command) error {
	if s.members == nil {
		return s.respond(ctx, cmd, helpReply())
	}

	members, err := s.members.ChannelMembers(ctx, cmd.WorkspaceID, cmd.ChannelID)
	if err != nil {
		return fmt.Errorf("failed to list channel members: %w", err)
	}

	totals := make([]domain.SubjectTotal, 0, len(members))
	for _, uid := range members {
		total, err := s.store.Total(ctx, cmd.WorkspaceID, domain.KindUser, uid)
		if err != nil {
			slog.Error("Failed to read member karma",
				"workspace", cmd.WorkspaceID, "user", uid, "error", err)
			continue
		}
		totals = append(totals, domain.SubjectTotal{Kind: domain.KindUser, SubjectID: uid, Total: total})
	}

	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Total != totals[j].Total {
			return totals[i].Total > totals[j].Total
		}
		return totals[i].SubjectID < totals[j].SubjectID
	})
	if len(totals) > topListLimit {
		totals = totals[:topListLimit]
	}

	var b strings.Builder
	b.WriteString("*Top User Karma for this Channel:*\n")
	for _, row := range totals {
		fmt.Fprintf(&b, "%d <@%s>\n", row.Total, row.SubjectID)
	}

	return s.respond(ctx, cmd, domain.Reply{
		Text:      strings.TrimRight(b.String(), "\n"),
		Ephemeral: true,
	})
}

func helpReply() domain.Reply {
	return domain.Reply{
		Ephemeral: true,
		Text: "*Karma Assistance*\n" +
			"`karma` keeps track of Karma gifts to various things:\n" +
			" * `@user` - Users\n" +
			" * `@group` - Groups\n" +
			" * `#channel` - Channels\n" +
			" * `thing` - \"Things\"\n" +
			" * `\"things with spaces\"` - \"Things\"\n" +
			"\n" +
			"`thing ++` - Add 1 Karma to _thing_\n" +
			"`thing +++` - Add 2 Karma to _thing_ (count(+) - 1, max 5)\n" +
			"`thing --` - Remove 1 Karma from _thing_\n" +
			"`thing ---` - Remove 2 Karma from _thing_ (count(-) - 1, max 5)\n" +
			"`\"quoted thing\" ++` - Add 1 Karma to _quoted string_\n" +
			"Note: The space after the `thing` before the pluses or minuses is optional\n" +
			"\n" +
			"Available `/karma` commands:\n" +
			"`/karma` - Show your current Karma\n" +
			"`/karma help` - Show this help message\n" +
			"`/karma show thing` - Show the current Karma of _thing_\n" +
			"`/karma top` - Show the top 10 subjects\n" +
			"`/karma bottom` - Show the bottom 10 subjects\n" +
			"`/karma top users` - Show the top 10 users\n" +
			"`/karma top groups` - Show the top 10 groups\n" +
			"`/karma top channels` - Show the top 10 channels\n" +
			"`/karma top things` - Show the top 10 things\n" +
			"`/karma top channel members` - Show the top 10 users in this channel\n" +
			"`/karma stats` - Show some interesting statistics about Karma\n" +
			"`/karma stats thing` - Show some interesting statistics about _thing_",
	}
}

// respond routes a command reply: slash commands answer through the
// response URL, mentions post back to the channel.
func (s *Service) respond(ctx context.Context, cmd Command, reply domain.Reply) error {
	if cmd.ResponseURL != "" {
		if err := s.replies.Respond(ctx, cmd.WorkspaceID, cmd.ResponseURL, reply); err != nil {
			return fmt.Errorf("failed to respond to command: %w", err)
		}
		return nil
	}

	reply.Ephemeral = false
	if err := s.replies.Post(ctx, cmd.WorkspaceID, cmd.ChannelID, cmd.ThreadTS, reply); err != nil {
		return fmt.Errorf("failed to post command reply: %w", err)
	}
	return nil
}
