// Package arena runs duel lifecycles: the challenge handshake, the best-of-3
// match, the optional revenge escalation and the losing penalty. Each duel is
// one goroutine suspended on its action channel; the registry is the only
// state shared between them.
package arena

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/samber/do/v2"
	"github.com/vreid/riposte/internal/pkg/common"
	"github.com/vreid/riposte/internal/pkg/game"
	"github.com/vreid/riposte/internal/pkg/platform"
	"github.com/vreid/riposte/internal/pkg/registry"
)

var (
	ErrSelfChallenge = errors.New("you cannot challenge yourself")
	ErrBotOpponent   = errors.New("bots do not duel")
	ErrDuelNotFound  = errors.New("no such duel")
)

const actionBuffer = 16

type ArenaService struct {
	Registry *registry.Service

	Notifier  platform.Notifier
	Moderator platform.Moderator
	Voice     platform.Voice

	ResultSink chan<- Result

	ChallengeTimeout time.Duration
	RevengeTimeout   time.Duration

	Log zerolog.Logger

	mu    sync.Mutex
	duels map[string]chan Event
}

func NewArenaService(i do.Injector) (*ArenaService, error) {
	reg := do.MustInvoke[*registry.Service](i)

	notifier := do.MustInvoke[platform.Notifier](i)
	moderator := do.MustInvoke[platform.Moderator](i)
	voice := do.MustInvoke[platform.Voice](i)

	resultSink := do.MustInvokeNamed[chan<- Result](i, "result-sink")

	challengeTimeoutSeconds := do.MustInvokeNamed[int](i, "challenge-timeout-seconds")
	revengeTimeoutSeconds := do.MustInvokeNamed[int](i, "revenge-timeout-seconds")

	log := do.MustInvoke[zerolog.Logger](i)

	result := &ArenaService{
		Registry: reg,

		Notifier:  notifier,
		Moderator: moderator,
		Voice:     voice,

		ResultSink: resultSink,

		ChallengeTimeout: time.Duration(challengeTimeoutSeconds) * time.Second,
		RevengeTimeout:   time.Duration(revengeTimeoutSeconds) * time.Second,

		Log: log.With().Str("service", "arena").Logger(),

		duels: map[string]chan Event{},
	}

	echoService, err := do.Invoke[*common.EchoService](i)
	if err != nil {
		return nil, fmt.Errorf("failed to create echo service: %w", err)
	}

	echoService.Register(func(e *echo.Echo) {
		apiGroup := e.Group("/api")

		arenaGroup := apiGroup.Group("/arena")

		arenaGroup.POST("/challenge", result.PostChallenge)
		arenaGroup.POST("/action", result.PostAction)
		arenaGroup.GET("/duels", result.GetDuels)
	})

	return result, nil
}

// StartDuel validates a challenge, reserves both players and spawns the
// lifecycle goroutine. Validation failures leave the registry untouched.
func (s *ArenaService) StartDuel(req ChallengeRequest) (Session, error) {
	if req.Challenger.ID == req.Challenged.ID {
		return Session{}, ErrSelfChallenge
	}

	if req.Challenged.Bot {
		return Session{}, ErrBotOpponent
	}

	err := game.ValidateStake(req.StakeMinutes)
	if err != nil {
		return Session{}, err
	}

	err = s.Registry.TryReserve(req.Challenger.ID, req.Challenged.ID)
	if err != nil {
		return Session{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		s.Registry.Release(req.Challenger.ID, req.Challenged.ID)

		return Session{}, fmt.Errorf("failed to generate duel ID: %w", err)
	}

	sess := Session{
		ID: id.String(),

		Challenger: req.Challenger,
		Challenged: req.Challenged,

		StakeMinutes: req.StakeMinutes,
	}

	events := make(chan Event, actionBuffer)

	s.mu.Lock()
	if s.duels == nil {
		s.duels = map[string]chan Event{}
	}
	s.duels[sess.ID] = events
	s.mu.Unlock()

	go s.RunDuel(sess, events)

	return sess, nil
}

// Dispatch routes one inbound event to the lifecycle owning the duel. It
// never blocks the caller; when a lifecycle's buffer is full the press is
// dropped with an ephemeral notice.
func (s *ArenaService) Dispatch(duelID string, ev Event) error {
	s.mu.Lock()
	events, ok := s.duels[duelID]
	s.mu.Unlock()

	if !ok {
		return ErrDuelNotFound
	}

	select {
	case events <- ev:
	default:
		s.Log.Warn().Str("duel_id", duelID).Str("actor", ev.Actor.ID).Msg("action buffer full, dropping press")

		_ = s.Notifier.SendEphemeral(context.Background(), ev.Actor.ID, "Easy there, one press at a time.")
	}

	return nil
}

// LiveDuels returns the ids of lifecycles currently running.
func (s *ArenaService) LiveDuels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.duels))
	for id := range s.duels {
		ids = append(ids, id)
	}

	return ids
}

func (s *ArenaService) forget(duelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.duels, duelID)
}

func (s *ArenaService) PostChallenge(c echo.Context) error {
	var req ChallengeRequest

	err := c.Bind(&req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	sess, err := s.StartDuel(req)

	switch {
	case err == nil:
	case errors.Is(err, ErrSelfChallenge),
		errors.Is(err, ErrBotOpponent),
		errors.Is(err, game.ErrStakeOutOfRange):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, registry.ErrAlreadyEngaged):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to start duel")
	}

	//nolint:wrapcheck
	return c.JSON(http.StatusAccepted, ChallengeResponse{DuelID: sess.ID})
}

func (s *ArenaService) PostAction(c echo.Context) error {
	var req ActionRequest

	err := c.Bind(&req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if !req.Action.Known() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown action")
	}

	err = s.Dispatch(req.DuelID, Event{Actor: req.Actor, Action: req.Action})
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "no such duel")
	}

	return c.NoContent(http.StatusAccepted)
}

func (s *ArenaService) GetDuels(c echo.Context) error {
	//nolint:wrapcheck
	return c.JSON(http.StatusOK, s.LiveDuels())
}
