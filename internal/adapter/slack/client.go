package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"github.com/target/karmabot/internal/adapter/metrics"
	"github.com/target/karmabot/internal/domain"
	"github.com/target/karmabot/internal/platform/retry"
)

const (
	defaultBaseURL   = "https://slack.com/api"
	requestTimeout   = 10 * time.Second
	membersPageLimit = 200
	attachmentColor  = "#af8b2d"
)

// APIError carries the HTTP status and, when Slack returned an envelope,
// the Slack error code of a failed Web API call.
type APIError struct {
	StatusCode int
	Code       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("slack API error %q (HTTP %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("slack API error (HTTP %d)", e.StatusCode)
}

// Client talks to the Slack Web API on behalf of a workspace. All calls
// go through a shared circuit breaker and a classified retry loop, so a
// Slack outage degrades to dropped replies instead of piled-up goroutines.
type Client struct {
	httpClient *http.Client
	tokens     domain.TokenSource
	baseURL    string
	policy     retry.Policy
	cb         circuitbreaker.CircuitBreaker[any]
}

var (
	_ domain.ReplySink           = (*Client)(nil)
	_ domain.ChannelMemberLister = (*Client)(nil)
)

func NewClient(tokens domain.TokenSource) *Client {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "slack",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
		}).
		Build()

	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		tokens:     tokens,
		baseURL:    defaultBaseURL,
		policy:     retry.DefaultPolicy(),
		cb:         cb,
	}
}

type attachment struct {
	Fallback string `json:"fallback"`
	Color    string `json:"color"`
	Text     string `json:"text"`
}

type postMessageRequest struct {
	Channel     string       `json:"channel"`
	Text        string       `json:"text"`
	ThreadTS    string       `json:"thread_ts,omitempty"`
	Attachments []attachment `json:"attachments,omitempty"`
}

type responseURLRequest struct {
	ResponseType string       `json:"response_type"`
	Text         string       `json:"text"`
	Attachments  []attachment `json:"attachments,omitempty"`
}

// Post delivers a reply into a channel via chat.postMessage, threading it
// when threadTS is set. The footer rides along as a colored attachment.
func (c *Client) Post(ctx context.Context, workspaceID, channelID, threadTS string, reply domain.Reply) error {
	token, err := c.tokens.BotToken(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("failed to resolve bot token: %w", err)
	}

	payload := postMessageRequest{
		Channel:     channelID,
		Text:        reply.Text,
		ThreadTS:    threadTS,
		Attachments: footerAttachments(reply.Footer),
	}

	_, err = c.call(ctx, "chat.postMessage", c.baseURL+"/chat.postMessage", token, payload, true)
	return err
}

// Respond delivers a reply through a Slack response_url. Slack answers
// these with a bare "ok" body rather than a JSON envelope.
func (c *Client) Respond(ctx context.Context, workspaceID, responseURL string, reply domain.Reply) error {
	token, err := c.tokens.BotToken(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("failed to resolve bot token: %w", err)
	}

	responseType := "in_channel"
	if reply.Ephemeral {
		responseType = "ephemeral"
	}

	payload := responseURLRequest{
		ResponseType: responseType,
		Text:         reply.Text,
		Attachments:  footerAttachments(reply.Footer),
	}

	_, err = c.call(ctx, "response_url", responseURL, token, payload, false)
	return err
}

// ChannelMembers pages through conversations.members and returns every
// user ID in the channel.
func (c *Client) ChannelMembers(ctx context.Context, workspaceID, channelID string) ([]string, error) {
	token, err := c.tokens.BotToken(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve bot token: %w", err)
	}

	var members []string
	cursor := ""
	for {
		params := url.Values{}
		params.Set("channel", channelID)
		params.Set("limit", fmt.Sprintf("%d", membersPageLimit))
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		raw, err := c.call(ctx, "conversations.members", c.baseURL+"/conversations.members?"+params.Encode(), token, nil, true)
		if err != nil {
			return nil, err
		}

		var page struct {
			Members          []string `json:"members"`
			ResponseMetadata struct {
				NextCursor string `json:"next_cursor"`
			} `json:"response_metadata"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("failed to decode conversations.members response: %w", err)
		}

		members = append(members, page.Members...)
		cursor = page.ResponseMetadata.NextCursor
		if cursor == "" {
			return members, nil
		}
	}
}

func (c *Client) call(ctx context.Context, method, callURL, token string, payload any, envelope bool) ([]byte, error) {
	p := c.policy
	p.OnRetry = func(attempt int, err error, backoff time.Duration) {
		metrics.SlackAPIRetriesTotal.Inc()
		slog.Warn("Slack API call failed, retrying", "method", method, "attempt", attempt, "backoff_seconds", backoff.Seconds(), "error", err)
	}

	raw, err := retry.Do(ctx, p, classifySlackError, func() ([]byte, error) {
		return c.attempt(ctx, callURL, token, payload, envelope)
	})
	if err != nil {
		metrics.SlackAPIRequestsTotal.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("slack %s failed: %w", method, err)
	}

	metrics.SlackAPIRequestsTotal.WithLabelValues(method, "success").Inc()
	return raw, nil
}

func (c *Client) attempt(ctx context.Context, callURL, token string, payload any, envelope bool) ([]byte, error) {
	httpMethod := http.MethodGet
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		httpMethod = http.MethodPost
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, httpMethod, callURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)

	if !c.cb.TryAcquirePermit() {
		return nil, circuitbreaker.ErrOpen
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.cb.RecordError(err)
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.cb.RecordError(err)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		c.cb.RecordError(apiErr)
		return nil, apiErr
	}

	if envelope {
		var env struct {
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			c.cb.RecordError(err)
			return nil, fmt.Errorf("failed to decode response envelope: %w", err)
		}
		if !env.OK {
			apiErr := &APIError{StatusCode: resp.StatusCode, Code: env.Error}
			c.cb.RecordError(apiErr)
			return nil, apiErr
		}
	}

	c.cb.RecordSuccess()
	return raw, nil
}

func classifySlackError(err error) retry.Action {
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return retry.Stop
	}

	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	if !ok {
		return retry.Retry
	}

	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return retry.After
	case apiErr.StatusCode >= 500:
		return retry.Retry
	default:
		return retry.Stop
	}
}

func footerAttachments(footer string) []attachment {
	if footer == "" {
		return nil
	}
	return []attachment{{Fallback: footer, Color: attachmentColor, Text: footer}}
}
