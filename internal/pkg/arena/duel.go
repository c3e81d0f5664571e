package arena

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vreid/riposte/internal/pkg/game"
	"github.com/vreid/riposte/internal/pkg/platform"
)

const voiceCueGrace = 5 * time.Second

type matchResult struct {
	Winner game.Player
	Loser  game.Player

	WinnerScore int
	LoserScore  int
}

// RunDuel drives one duel lifecycle to its end: challenge handshake, match,
// optional revenge rematch, penalty. Both players stay reserved in the
// registry for the whole run, including across the revenge handshake, and are
// released exactly once on the way out.
func (s *ArenaService) RunDuel(sess Session, events <-chan Event) {
	defer s.forget(sess.ID)
	defer s.Registry.Release(sess.Challenger.ID, sess.Challenged.ID)

	ctx := context.Background()
	log := s.Log.With().Str("duel_id", sess.ID).Logger()

	if !s.negotiateChallenge(ctx, log, sess, events) {
		return
	}

	s.playCue(sess)

	res, ok := s.playMatch(ctx, log, sess, events)
	if !ok {
		log.Info().Msg("match cancelled")

		return
	}

	stake := sess.StakeMinutes
	rematch := false

	if revengeSess, accepted := s.negotiateRevenge(ctx, log, sess, res, events); accepted {
		rematchRes, ok := s.playMatch(ctx, log, revengeSess, events)
		if !ok {
			log.Info().Msg("rematch cancelled")

			return
		}

		res = rematchRes
		stake = revengeSess.StakeMinutes
		rematch = true
	}

	applied := s.applyPenalty(ctx, log, res, stake)

	s.report(Result{
		DuelID: sess.ID,

		Winner: res.Winner,
		Loser:  res.Loser,

		WinnerScore: res.WinnerScore,
		LoserScore:  res.LoserScore,

		StakeMinutes:   stake,
		Rematch:        rematch,
		PenaltyApplied: applied,

		ConcludedAt: time.Now(),
	})
}

// negotiateChallenge waits for the challenged player to accept or refuse.
// Silence for the whole budget counts as a refusal.
func (s *ArenaService) negotiateChallenge(ctx context.Context, log zerolog.Logger, sess Session, events <-chan Event) bool {
	text := fmt.Sprintf(
		"⚔️ %s challenges %s to a duel! Loser takes a %d minute timeout. Best of 3.",
		sess.Challenger.Name, sess.Challenged.Name, sess.StakeMinutes,
	)

	_, err := s.Notifier.SendPublic(ctx, text, []string{string(ActionAccept), string(ActionRefuse)})
	if err != nil {
		log.Error().Err(err).Msg("failed to publish challenge")

		return false
	}

	deadline := time.NewTimer(s.ChallengeTimeout)
	defer deadline.Stop()

	for {
		select {
		case ev := <-events:
			switch ev.Action {
			case ActionAccept, ActionRefuse:
			default:
				s.ephemeral(ctx, ev.Actor.ID, "The duel has not started yet.")

				continue
			}

			if ev.Actor.ID != sess.Challenged.ID {
				s.ephemeral(ctx, ev.Actor.ID, "This challenge is not yours to answer.")

				continue
			}

			if ev.Action == ActionRefuse {
				s.public(ctx, log, fmt.Sprintf("%s refused the duel. 🐔", sess.Challenged.Name))

				return false
			}

			s.public(ctx, log, fmt.Sprintf("**DU-DU-DU-DUEL!** %s accepted!", sess.Challenged.Name))

			return true

		case <-deadline.C:
			s.public(ctx, log, fmt.Sprintf("%s did not answer in time. Challenge expired.", sess.Challenged.Name))

			return false
		}
	}
}

// playMatch runs rounds until one player reaches two wins. Ties replay the
// same round number with a fresh round. The only other way out is an explicit
// cancel from a participant; rounds themselves never time out.
func (s *ArenaService) playMatch(ctx context.Context, log zerolog.Logger, sess Session, events <-chan Event) (matchResult, bool) {
	p1 := sess.Challenger
	p2 := sess.Challenged

	scores := map[string]int{p1.ID: 0, p2.ID: 0}

	var roundHandles []platform.MessageHandle

	round := 1
	for scores[p1.ID] < game.WinsNeeded && scores[p2.ID] < game.WinsNeeded {
		handle, outcome, cancelled := s.playRound(ctx, log, sess, round, events)
		if cancelled {
			s.public(ctx, log, "The duel was called off. Nobody wins, nobody loses.")

			return matchResult{}, false
		}

		if handle != "" {
			roundHandles = append(roundHandles, handle)
		}

		switch outcome {
		case game.Tie:
			s.public(ctx, log, fmt.Sprintf("Round %d is a tie! Again.", round))
		case game.FirstWins:
			scores[p1.ID]++
			s.public(ctx, log, fmt.Sprintf("Round %d goes to %s! (%d - %d)", round, p1.Name, scores[p1.ID], scores[p2.ID]))

			round++
		case game.SecondWins:
			scores[p2.ID]++
			s.public(ctx, log, fmt.Sprintf("Round %d goes to %s! (%d - %d)", round, p2.Name, scores[p1.ID], scores[p2.ID]))

			round++
		}
	}

	res := matchResult{Winner: p1, Loser: p2, WinnerScore: scores[p1.ID], LoserScore: scores[p2.ID]}
	if scores[p2.ID] > scores[p1.ID] {
		res = matchResult{Winner: p2, Loser: p1, WinnerScore: scores[p2.ID], LoserScore: scores[p1.ID]}
	}

	s.public(ctx, log, fmt.Sprintf("🏆 %s wins the match %d - %d!", res.Winner.Name, res.WinnerScore, res.LoserScore))

	s.retractRounds(ctx, log, roundHandles)

	return res, true
}

// playRound collects exactly one move from each participant. The wait is
// unbounded; ActionCancel from a participant aborts the whole match.
func (s *ArenaService) playRound(
	ctx context.Context,
	log zerolog.Logger,
	sess Session,
	round int,
	events <-chan Event,
) (platform.MessageHandle, game.Outcome, bool) {
	text := fmt.Sprintf("🎮 Round %d — %s vs %s. Pick your move.", round, sess.Challenger.Name, sess.Challenged.Name)

	handle, err := s.Notifier.SendPublic(ctx, text, []string{
		string(ActionRock), string(ActionPaper), string(ActionScissors), string(ActionCancel),
	})
	if err != nil {
		log.Error().Err(err).Int("round", round).Msg("failed to publish round")
	}

	moves := map[string]game.Move{}

	for ev := range events {
		participant := ev.Actor.ID == sess.Challenger.ID || ev.Actor.ID == sess.Challenged.ID

		if ev.Action == ActionCancel {
			if !participant {
				s.ephemeral(ctx, ev.Actor.ID, "You are not part of this duel.")

				continue
			}

			log.Info().Str("actor", ev.Actor.ID).Msg("participant cancelled the match")

			return handle, game.Tie, true
		}

		move, ok := ev.Action.Move()
		if !ok {
			s.ephemeral(ctx, ev.Actor.ID, "Pick rock, paper or scissors.")

			continue
		}

		if !participant {
			s.ephemeral(ctx, ev.Actor.ID, "Off the pavement, this duel is taken.")

			continue
		}

		if _, already := moves[ev.Actor.ID]; already {
			s.ephemeral(ctx, ev.Actor.ID, "You already picked this round!")

			continue
		}

		moves[ev.Actor.ID] = move
		s.ephemeral(ctx, ev.Actor.ID, fmt.Sprintf("You played %s!", move))

		if len(moves) == 2 {
			return handle, game.Resolve(moves[sess.Challenger.ID], moves[sess.Challenged.ID]), false
		}
	}

	// Event stream closed; treat like a cancel.
	return handle, game.Tie, true
}

// negotiateRevenge offers the loser a doubled-stake rematch, then the winner
// the right to accept it. Escalation happens at most once per challenge; a
// rematch never offers another. Both players stay reserved throughout.
func (s *ArenaService) negotiateRevenge(
	ctx context.Context,
	log zerolog.Logger,
	sess Session,
	res matchResult,
	events <-chan Event,
) (Session, bool) {
	if sess.Rematch {
		return Session{}, false
	}

	doubled := game.DoubleStake(sess.StakeMinutes)

	text := fmt.Sprintf(
		"💀 %s, double or nothing? Win the rematch and walk free; lose and it is %d minutes.",
		res.Loser.Name, doubled,
	)

	_, err := s.Notifier.SendPublic(ctx, text, []string{string(ActionRevenge), string(ActionAbandon)})
	if err != nil {
		log.Error().Err(err).Msg("failed to publish revenge offer")

		return Session{}, false
	}

	if !s.awaitDecision(ctx, log, events, res.Loser, ActionRevenge, ActionAbandon,
		fmt.Sprintf("%s accepts their fate.", res.Loser.Name),
		fmt.Sprintf("%s let the revenge window pass.", res.Loser.Name)) {
		return Session{}, false
	}

	text = fmt.Sprintf(
		"%s demands revenge at %d minutes! %s, do you accept?",
		res.Loser.Name, doubled, res.Winner.Name,
	)

	_, err = s.Notifier.SendPublic(ctx, text, []string{string(ActionAcceptRevenge), string(ActionDeclineRevenge)})
	if err != nil {
		log.Error().Err(err).Msg("failed to publish revenge counter-offer")

		return Session{}, false
	}

	if !s.awaitDecision(ctx, log, events, res.Winner, ActionAcceptRevenge, ActionDeclineRevenge,
		fmt.Sprintf("%s declines. The score stands.", res.Winner.Name),
		fmt.Sprintf("%s let the revenge window pass. The score stands.", res.Winner.Name)) {
		return Session{}, false
	}

	s.public(ctx, log, fmt.Sprintf("🔥 REVENGE! Same duel, %d minutes on the line.", doubled))

	rematch := sess
	rematch.StakeMinutes = doubled
	rematch.Rematch = true

	return rematch, true
}

// awaitDecision waits for decider to press yes or no within the revenge
// budget. Expiry counts as no. Anyone else pressing gets an ephemeral notice.
func (s *ArenaService) awaitDecision(
	ctx context.Context,
	log zerolog.Logger,
	events <-chan Event,
	decider game.Player,
	yes, no Action,
	declinedText, expiredText string,
) bool {
	deadline := time.NewTimer(s.RevengeTimeout)
	defer deadline.Stop()

	for {
		select {
		case ev := <-events:
			if ev.Action != yes && ev.Action != no {
				s.ephemeral(ctx, ev.Actor.ID, "That is not on the table right now.")

				continue
			}

			if ev.Actor.ID != decider.ID {
				s.ephemeral(ctx, ev.Actor.ID, "This decision is not yours to make.")

				continue
			}

			if ev.Action == no {
				s.public(ctx, log, declinedText)

				return false
			}

			return true

		case <-deadline.C:
			s.public(ctx, log, expiredText)

			return false
		}
	}
}

// applyPenalty restricts the loser and announces the outcome. Denied
// permission degrades the announcement but never fails the duel. Returns
// whether the penalty actually landed.
func (s *ArenaService) applyPenalty(ctx context.Context, log zerolog.Logger, res matchResult, stake int) bool {
	reason := fmt.Sprintf("Lost a duel against %s", res.Winner.Name)

	status, err := s.Moderator.Restrict(ctx, res.Loser.ID, stake, reason)
	if err != nil {
		log.Warn().Err(err).Msg("moderation call failed")
	}

	if status != platform.Applied {
		s.public(ctx, log, fmt.Sprintf(
			"🏆 %s wins the duel! ⚠️ But %s escapes the timeout, I am missing the permissions. Oopsie.",
			res.Winner.Name, res.Loser.Name,
		))

		return false
	}

	s.public(ctx, log, fmt.Sprintf(
		"🏆 %s wins the duel! 💀 %s is timed out for %d minute(s). Ciao! 👋",
		res.Winner.Name, res.Loser.Name, stake,
	))

	return true
}

// playCue fires the duel jingle on a detached goroutine after acceptance.
// Purely cosmetic: bounded, never awaited, failures swallowed.
func (s *ArenaService) playCue(sess Session) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), voiceCueGrace)
		defer cancel()

		status := s.Voice.PlayCueIfReachable(ctx, []string{sess.Challenger.ID, sess.Challenged.ID})
		if status != platform.Applied {
			s.Log.Debug().Str("duel_id", sess.ID).Int("status", int(status)).Msg("duel cue not played")
		}
	}()
}

func (s *ArenaService) report(r Result) {
	if s.ResultSink == nil {
		return
	}

	select {
	case s.ResultSink <- r:
	default:
		s.Log.Warn().Str("duel_id", r.DuelID).Msg("result sink full, dropping result")
	}
}

func (s *ArenaService) retractRounds(ctx context.Context, log zerolog.Logger, handles []platform.MessageHandle) {
	for _, h := range handles {
		if status := s.Notifier.Retract(ctx, h); status != platform.Applied {
			log.Debug().Str("handle", string(h)).Msg("failed to retract round message")
		}
	}
}

func (s *ArenaService) public(ctx context.Context, log zerolog.Logger, text string) {
	_, err := s.Notifier.SendPublic(ctx, text, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to publish message")
	}
}

func (s *ArenaService) ephemeral(ctx context.Context, playerID, text string) {
	err := s.Notifier.SendEphemeral(ctx, playerID, text)
	if err != nil {
		s.Log.Debug().Err(err).Str("player", playerID).Msg("failed to send ephemeral message")
	}
}
