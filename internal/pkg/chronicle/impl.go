// Package chronicle keeps a short in-memory record of concluded duels. It is
// deliberately ephemeral: nothing survives a restart.
package chronicle

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/samber/do/v2"
	"github.com/vreid/riposte/internal/pkg/arena"
	"github.com/vreid/riposte/internal/pkg/common"
)

// RecentLimit bounds the record; older duels fall off the end.
const RecentLimit = 32

type ChronicleService struct {
	ResultSource <-chan arena.Result

	Log zerolog.Logger

	mu     sync.Mutex
	recent []arena.Result
}

func NewChronicleService(i do.Injector) (*ChronicleService, error) {
	resultSource := do.MustInvokeNamed[<-chan arena.Result](i, "result-source")

	log := do.MustInvoke[zerolog.Logger](i)

	result := &ChronicleService{
		ResultSource: resultSource,

		Log: log.With().Str("service", "chronicle").Logger(),
	}

	echoService, err := do.Invoke[*common.EchoService](i)
	if err != nil {
		return nil, fmt.Errorf("failed to create echo service: %w", err)
	}

	echoService.Register(func(e *echo.Echo) {
		apiGroup := e.Group("/api")

		arenaGroup := apiGroup.Group("/arena")

		arenaGroup.GET("/recent", result.GetRecent)
	})

	return result, nil
}

func (s *ChronicleService) Start() {
	go s.processResults()
}

func (s *ChronicleService) processResults() {
	for result := range s.ResultSource {
		s.HandleResult(result)
	}
}

func (s *ChronicleService) HandleResult(r arena.Result) {
	s.Log.Info().
		Str("duel_id", r.DuelID).
		Str("winner", r.Winner.ID).
		Str("loser", r.Loser.ID).
		Int("winner_score", r.WinnerScore).
		Int("loser_score", r.LoserScore).
		Int("stake_minutes", r.StakeMinutes).
		Bool("rematch", r.Rematch).
		Bool("penalty_applied", r.PenaltyApplied).
		Msg("duel concluded")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent = append(s.recent, r)
	if len(s.recent) > RecentLimit {
		s.recent = s.recent[len(s.recent)-RecentLimit:]
	}
}

// Recent returns the remembered results, newest last.
func (s *ChronicleService) Recent() []arena.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]arena.Result(nil), s.recent...)
}

func (s *ChronicleService) GetRecent(c echo.Context) error {
	//nolint:wrapcheck
	return c.JSONPretty(http.StatusOK, s.Recent(), "  ")
}
