package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/target/karmabot/internal/adapter/metrics"
	"github.com/target/karmabot/internal/app"
	"github.com/target/karmabot/internal/domain"
	"github.com/target/karmabot/internal/platform/correlation"
	apperrors "github.com/target/karmabot/internal/platform/errors"
)

const (
	eventProcessTimeout = 5 * time.Second
	karmaSlashCommand   = "/karma"

	headerTimestamp = "X-Slack-Request-Timestamp"
	headerSignature = "X-Slack-Signature"
)

// karmaPrecheck is the cheap pre-filter: only messages containing a
// run of at least two pluses or minuses followed by whitespace or end
// of text are worth handing to the engine.
var karmaPrecheck = regexp.MustCompile(`(\+\++|--+)(\s+|$)`)

type eventEnvelope struct {
	Token     string `json:"token"`
	TeamID    string `json:"team_id"`
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Event     struct {
		Type     string `json:"type"`
		Subtype  string `json:"subtype"`
		User     string `json:"user"`
		BotID    string `json:"bot_id"`
		Text     string `json:"text"`
		Channel  string `json:"channel"`
		TS       string `json:"ts"`
		ThreadTS string `json:"thread_ts"`
	} `json:"event"`
}

func (s *Server) handleSlackEvents(c echo.Context) error {
	body, err := s.verifiedBody(c)
	if err != nil {
		return err
	}

	var envelope eventEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return apperrors.ValidationError("malformed event payload")
	}

	if err := s.checkVerificationToken(envelope.Token); err != nil {
		return err
	}

	if envelope.Type == "url_verification" {
		return c.JSON(http.StatusOK, map[string]string{"challenge": envelope.Challenge})
	}

	evt := envelope.Event
	metrics.EventsTotal.WithLabelValues(evt.Type).Inc()

	// Messages from bots, including our own replies, never earn karma.
	if evt.BotID != "" || evt.User == "" {
		return c.JSON(http.StatusOK, map[string]string{})
	}

	switch evt.Type {
	case "message":
		// Subtyped messages (edits, joins, bot posts) carry no new karma.
		if evt.Subtype != "" {
			break
		}
		if !karmaPrecheck.MatchString(evt.Text) {
			break
		}
		msg := domain.Message{
			Text:        evt.Text,
			GifterID:    evt.User,
			WorkspaceID: envelope.TeamID,
			ChannelID:   evt.Channel,
			ThreadTS:    evt.ThreadTS,
		}
		s.dispatchEvent("message", func(ctx context.Context) error {
			return s.app.HandleMessageEvent(ctx, msg)
		})
	case "app_mention":
		// Mentions that carry karma runs are handled by the parallel
		// message event; only plain mentions are commands.
		if karmaPrecheck.MatchString(evt.Text) {
			break
		}
		cmd := app.Command{
			WorkspaceID: envelope.TeamID,
			UserID:      evt.User,
			ChannelID:   evt.Channel,
			ThreadTS:    evt.ThreadTS,
			Text:        evt.Text,
		}
		s.dispatchEvent("app_mention", func(ctx context.Context) error {
			return s.app.HandleMention(ctx, cmd)
		})
	default:
		slog.Warn("Ignoring unknown event type", "type", evt.Type)
	}

	return c.JSON(http.StatusOK, map[string]string{})
}

func (s *Server) handleSlackCommands(c echo.Context) error {
	body, err := s.verifiedBody(c)
	if err != nil {
		return err
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return apperrors.ValidationError("malformed command payload")
	}

	if err := s.checkVerificationToken(form.Get("token")); err != nil {
		return err
	}

	if command := form.Get("command"); command != karmaSlashCommand {
		slog.Info("Ignoring unknown command", "command", command)
		return c.NoContent(http.StatusOK)
	}

	cmd := app.Command{
		WorkspaceID: form.Get("team_id"),
		UserID:      form.Get("user_id"),
		ChannelID:   form.Get("channel_id"),
		Text:        form.Get("text"),
		ResponseURL: form.Get("response_url"),
	}
	s.dispatchEvent("command", func(ctx context.Context) error {
		return s.app.HandleCommand(ctx, cmd)
	})

	return c.NoContent(http.StatusOK)
}

// verifiedBody reads the request body and checks its signature before
// anything else touches the payload.
func (s *Server) verifiedBody(c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, apperrors.ValidationError("failed to read request body")
	}

	timestamp := c.Request().Header.Get(headerTimestamp)
	signature := c.Request().Header.Get(headerSignature)
	if err := s.verifier.Verify(timestamp, signature, body); err != nil {
		return nil, apperrors.UnauthorizedError("invalid request signature").
			WithContext("remote_ip", c.RealIP()).
			WithContext("cause", err.Error())
	}

	return body, nil
}

// checkVerificationToken enforces the legacy request token when one is
// configured. Signature verification is the primary check.
func (s *Server) checkVerificationToken(token string) error {
	if s.config.VerificationToken == "" {
		return nil
	}
	if token != s.config.VerificationToken {
		return apperrors.UnauthorizedError("verification token mismatch")
	}
	return nil
}

// dispatchEvent runs fn on the bounded worker pool. The webhook is
// acknowledged immediately; saturation drops the event rather than
// holding up the response.
func (s *Server) dispatchEvent(name string, fn func(ctx context.Context) error) {
	if !s.workers.TryAcquire(1) {
		metrics.EventsTotal.WithLabelValues("dropped").Inc()
		slog.Warn("Event worker pool saturated, dropping event", "event", name)
		return
	}

	go func() {
		defer s.workers.Release(1)

		ctx, cancel := context.WithTimeout(context.Background(), eventProcessTimeout)
		defer cancel()
		ctx = correlation.WithID(ctx, correlation.NewID())

		if err := fn(ctx); err != nil {
			slog.Error(fmt.Sprintf("Failed to handle %s event", name), "error", err)
		}
	}()
}
