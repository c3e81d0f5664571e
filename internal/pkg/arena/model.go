package arena

import (
	"time"

	"github.com/vreid/riposte/internal/pkg/game"
)

// Action is the tag of a button press coming back through the inbound event
// stream. The active stage of a duel lifecycle decides which tags it honors;
// everything else earns the actor an ephemeral notice.
type Action string

const (
	ActionAccept Action = "accept"
	ActionRefuse Action = "refuse"

	ActionRock     Action = "rock"
	ActionPaper    Action = "paper"
	ActionScissors Action = "scissors"

	// ActionCancel is the explicit way out of a match whose round would
	// otherwise wait forever. Either participant may press it.
	ActionCancel Action = "cancel"

	ActionRevenge Action = "revenge"
	ActionAbandon Action = "abandon"

	ActionAcceptRevenge  Action = "accept_revenge"
	ActionDeclineRevenge Action = "decline_revenge"
)

func (a Action) Known() bool {
	switch a {
	case ActionAccept, ActionRefuse,
		ActionRock, ActionPaper, ActionScissors,
		ActionCancel,
		ActionRevenge, ActionAbandon,
		ActionAcceptRevenge, ActionDeclineRevenge:
		return true
	}

	return false
}

// Move returns the move an action stands for, if any.
func (a Action) Move() (game.Move, bool) {
	switch a {
	case ActionRock:
		return game.MoveRock, true
	case ActionPaper:
		return game.MovePaper, true
	case ActionScissors:
		return game.MoveScissors, true
	}

	return "", false
}

// Event is one (actor, action) pair from the inbound stream, routed to the
// lifecycle that owns the duel.
type Event struct {
	Actor  game.Player
	Action Action
}

// Session is one agreed duel: a pair, a stake, and whether this is already
// the revenge rematch. Superseded, never mutated, when revenge escalates.
type Session struct {
	ID string

	Challenger game.Player
	Challenged game.Player

	StakeMinutes int
	Rematch      bool
}

// Result describes a concluded duel, pushed to the result sink once the
// penalty step has run.
type Result struct {
	DuelID string

	Winner game.Player
	Loser  game.Player

	WinnerScore int
	LoserScore  int

	StakeMinutes   int
	Rematch        bool
	PenaltyApplied bool

	ConcludedAt time.Time
}

type ChallengeRequest struct {
	Challenger game.Player `json:"challenger"`
	Challenged game.Player `json:"challenged"`

	StakeMinutes int `json:"stake_minutes"`
}

type ChallengeResponse struct {
	DuelID string `json:"duel_id"`
}

type ActionRequest struct {
	DuelID string      `json:"duel_id"`
	Actor  game.Player `json:"actor"`
	Action Action      `json:"action"`
}
