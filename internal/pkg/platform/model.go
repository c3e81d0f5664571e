// Package platform holds the collaborator interfaces the duel flow talks to.
// The core never depends on a concrete transport; the webhook adapter in this
// package is one implementation, the tests carry in-memory ones.
package platform

import "context"

// MessageHandle identifies a previously sent public message so it can be
// retracted later.
type MessageHandle string

type Status int

const (
	Applied Status = iota
	PermissionDenied
	Unavailable
	Failed
)

// Notifier delivers duel messages to the channel both participants share.
// Options enumerate the action tags a message offers as buttons; the matching
// presses come back through the arena's inbound action endpoint.
type Notifier interface {
	SendPublic(ctx context.Context, text string, options []string) (MessageHandle, error)
	SendEphemeral(ctx context.Context, playerID, text string) error
	Retract(ctx context.Context, handle MessageHandle) Status
}

// Moderator applies the losing penalty. PermissionDenied is an expected,
// recoverable answer.
type Moderator interface {
	Restrict(ctx context.Context, playerID string, minutes int, reason string) (Status, error)
}

// Voice plays the duel cue if any of the given players is reachable on a
// shared real-time channel. Strictly best-effort.
type Voice interface {
	PlayCueIfReachable(ctx context.Context, playerIDs []string) Status
}
