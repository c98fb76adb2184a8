package domain

import "errors"

var (
	// ErrMissingGifter marks a message event without a user, e.g. a bot
	// or system message. Rejected before any matching happens.
	ErrMissingGifter = errors.New("message has no gifter")

	// ErrMissingWorkspace marks an event without a workspace/team ID.
	ErrMissingWorkspace = errors.New("message has no workspace")

	// ErrTokenNotFound is returned by a TokenSource when no bot token is
	// configured for a workspace.
	ErrTokenNotFound = errors.New("no bot token for workspace")
)
