package arena_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vreid/riposte/internal/pkg/arena"
	"github.com/vreid/riposte/internal/pkg/game"
	"github.com/vreid/riposte/internal/pkg/platform"
	"github.com/vreid/riposte/internal/pkg/registry"
)

type fakeNotifier struct {
	mu         sync.Mutex
	public     []string
	ephemerals map[string][]string
	retracted  []platform.MessageHandle
	handles    int
}

func (f *fakeNotifier) SendPublic(_ context.Context, text string, _ []string) (platform.MessageHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.public = append(f.public, text)
	f.handles++

	return platform.MessageHandle(strings.Repeat("h", f.handles)), nil
}

func (f *fakeNotifier) SendEphemeral(_ context.Context, playerID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ephemerals == nil {
		f.ephemerals = map[string][]string{}
	}

	f.ephemerals[playerID] = append(f.ephemerals[playerID], text)

	return nil
}

func (f *fakeNotifier) Retract(_ context.Context, handle platform.MessageHandle) platform.Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.retracted = append(f.retracted, handle)

	return platform.Applied
}

func (f *fakeNotifier) publicLog() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return strings.Join(f.public, "\n")
}

func (f *fakeNotifier) ephemeralLog(playerID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return strings.Join(f.ephemerals[playerID], "\n")
}

type restrictCall struct {
	PlayerID string
	Minutes  int
	Reason   string
}

type fakeModerator struct {
	mu     sync.Mutex
	status platform.Status
	calls  []restrictCall
}

func (f *fakeModerator) Restrict(_ context.Context, playerID string, minutes int, reason string) (platform.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, restrictCall{PlayerID: playerID, Minutes: minutes, Reason: reason})

	return f.status, nil
}

func (f *fakeModerator) restrictions() []restrictCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]restrictCall(nil), f.calls...)
}

type fakeVoice struct {
	mu    sync.Mutex
	calls [][]string
}

func (f *fakeVoice) PlayCueIfReachable(_ context.Context, playerIDs []string) platform.Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, playerIDs)

	return platform.Applied
}

func (f *fakeVoice) cueCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

var (
	alice = game.Player{ID: "alice", Name: "Alice"}
	bob   = game.Player{ID: "bob", Name: "Bob"}
	carol = game.Player{ID: "carol", Name: "Carol"}
)

type testArena struct {
	service   *arena.ArenaService
	notifier  *fakeNotifier
	moderator *fakeModerator
	voice     *fakeVoice
	registry  *registry.Service
	results   chan arena.Result
}

func newTestArena(t *testing.T) *testArena {
	t.Helper()

	reg, err := registry.NewService(do.New())
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	moderator := &fakeModerator{status: platform.Applied}
	voice := &fakeVoice{}
	results := make(chan arena.Result, 8)

	service := &arena.ArenaService{
		Registry: reg,

		Notifier:  notifier,
		Moderator: moderator,
		Voice:     voice,

		ResultSink: results,

		ChallengeTimeout: 50 * time.Millisecond,
		RevengeTimeout:   50 * time.Millisecond,

		Log: zerolog.Nop(),
	}

	return &testArena{
		service:   service,
		notifier:  notifier,
		moderator: moderator,
		voice:     voice,
		registry:  reg,
		results:   results,
	}
}

// runScripted reserves the pair, feeds the scripted events into a buffered
// channel and runs the lifecycle to completion on the calling goroutine.
func (ta *testArena) runScripted(t *testing.T, sess arena.Session, script []arena.Event) {
	t.Helper()

	require.NoError(t, ta.registry.TryReserve(sess.Challenger.ID, sess.Challenged.ID))

	events := make(chan arena.Event, 64)
	for _, ev := range script {
		events <- ev
	}

	ta.service.RunDuel(sess, events)
}

func session(stake int) arena.Session {
	return arena.Session{
		ID: "duel-1",

		Challenger: alice,
		Challenged: bob,

		StakeMinutes: stake,
	}
}

func ev(actor game.Player, action arena.Action) arena.Event {
	return arena.Event{Actor: actor, Action: action}
}

func TestChallengeRefused(t *testing.T) {
	t.Parallel()

	ta := newTestArena(t)

	ta.runScripted(t, session(5), []arena.Event{
		ev(bob, arena.ActionRefuse),
	})

	assert.Contains(t, ta.notifier.publicLog(), "refused")
	assert.Empty(t, ta.moderator.restrictions())
	assert.False(t, ta.registry.Engaged(alice.ID))
	assert.False(t, ta.registry.Engaged(bob.ID))
	assert.Empty(t, ta.results)
}

func TestChallengeExpires(t *testing.T) {
	t.Parallel()

	ta := newTestArena(t)

	ta.runScripted(t, session(5), nil)

	assert.Contains(t, ta.notifier.publicLog(), "expired")
	assert.Empty(t, ta.moderator.restrictions())
	assert.False(t, ta.registry.Engaged(alice.ID))
	assert.False(t, ta.registry.Engaged(bob.ID))
}

func TestOnlyChallengedPlayerMayAnswer(t *testing.T) {
	t.Parallel()

	ta := newTestArena(t)

	// Alice tries to accept her own challenge, Carol tries to refuse it;
	// both are turned away and the challenge then expires.
	ta.runScripted(t, session(5), []arena.Event{
		ev(alice, arena.ActionAccept),
		ev(carol, arena.ActionRefuse),
	})

	assert.Contains(t, ta.notifier.ephemeralLog(alice.ID), "not yours to answer")
	assert.Contains(t, ta.notifier.ephemeralLog(carol.ID), "not yours to answer")
	assert.Contains(t, ta.notifier.publicLog(), "expired")
	assert.Empty(t, ta.moderator.restrictions())
}

func TestFullMatchScenario(t *testing.T) {
	t.Parallel()

	ta := newTestArena(t)

	// Stake 5. Round 1: rock beats scissors, 1-0. Round 2: paper/paper tie,
	// replayed. Round 2 replay: scissors loses to rock, 1-1. Round 3:
	// paper loses to scissors, 1-2. Bob wins, Alice declines revenge and is
	// timed out for 5 minutes. Along the way: a duplicate press, a stranger's
	// press and a non-move press are all rejected without touching the round.
	ta.runScripted(t, session(5), []arena.Event{
		ev(bob, arena.ActionAccept),

		ev(alice, arena.ActionRock),
		ev(alice, arena.ActionPaper), // duplicate, rejected
		ev(carol, arena.ActionRock),  // stranger, rejected
		ev(bob, arena.ActionScissors),

		ev(alice, arena.ActionPaper),
		ev(bob, arena.ActionPaper), // tie, round 2 replays

		ev(alice, arena.ActionAccept), // not a move, rejected
		ev(alice, arena.ActionScissors),
		ev(bob, arena.ActionRock),

		ev(alice, arena.ActionPaper),
		ev(bob, arena.ActionScissors),

		ev(alice, arena.ActionAbandon),
	})

	public := ta.notifier.publicLog()

	assert.Contains(t, public, "Round 1 goes to Alice! (1 - 0)")
	assert.Contains(t, public, "Round 2 is a tie!")
	assert.Contains(t, public, "Round 2 goes to Bob! (1 - 1)")
	assert.Contains(t, public, "Round 3 goes to Bob! (1 - 2)")
	assert.Contains(t, public, "Bob wins the match 2 - 1!")
	assert.Contains(t, public, "timed out for 5 minute(s)")

	assert.Contains(t, ta.notifier.ephemeralLog(alice.ID), "already picked")
	assert.Contains(t, ta.notifier.ephemeralLog(carol.ID), "Off the pavement")

	restrictions := ta.moderator.restrictions()
	require.Len(t, restrictions, 1)
	assert.Equal(t, alice.ID, restrictions[0].PlayerID)
	assert.Equal(t, 5, restrictions[0].Minutes)
	assert.Contains(t, restrictions[0].Reason, "Bob")

	// Round prompts are retracted once the match concludes.
	assert.NotEmpty(t, ta.notifier.retracted)

	require.Len(t, ta.results, 1)
	result := <-ta.results
	assert.Equal(t, bob.ID, result.Winner.ID)
	assert.Equal(t, alice.ID, result.Loser.ID)
	assert.Equal(t, 2, result.WinnerScore)
	assert.Equal(t, 1, result.LoserScore)
	assert.Equal(t, 5, result.StakeMinutes)
	assert.False(t, result.Rematch)
	assert.True(t, result.PenaltyApplied)

	assert.False(t, ta.registry.Engaged(alice.ID))
	assert.False(t, ta.registry.Engaged(bob.ID))

	// The duel cue fires after acceptance on its own goroutine.
	assert.Eventually(t, func() bool { return ta.voice.cueCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestRevengeDoublesAndClampsStake(t *testing.T) {
	t.Parallel()

	ta := newTestArena(t)

	// Stake 7000; Alice wins 2-0. Bob demands revenge, Alice accepts:
	// rematch stake clamps to min(14000, 10080) = 10080. Alice loses the
	// rematch 0-2 and is timed out for 10080 minutes. The rematch offers no
	// further revenge cycle.
	ta.runScripted(t, session(7000), []arena.Event{
		ev(bob, arena.ActionAccept),

		ev(alice, arena.ActionRock),
		ev(bob, arena.ActionScissors),
		ev(alice, arena.ActionRock),
		ev(bob, arena.ActionScissors),

		ev(bob, arena.ActionRevenge),
		ev(alice, arena.ActionAcceptRevenge),

		ev(alice, arena.ActionPaper),
		ev(bob, arena.ActionScissors),
		ev(alice, arena.ActionPaper),
		ev(bob, arena.ActionScissors),
	})

	public := ta.notifier.publicLog()

	assert.Contains(t, public, "10080 minutes on the line")
	assert.Equal(t, 1, strings.Count(public, "double or nothing"))

	restrictions := ta.moderator.restrictions()
	require.Len(t, restrictions, 1)
	assert.Equal(t, alice.ID, restrictions[0].PlayerID)
	assert.Equal(t, 10080, restrictions[0].Minutes)

	require.Len(t, ta.results, 1)
	result := <-ta.results
	assert.True(t, result.Rematch)
	assert.Equal(t, 10080, result.StakeMinutes)
	assert.Equal(t, bob.ID, result.Winner.ID)

	assert.False(t, ta.registry.Engaged(alice.ID))
	assert.False(t, ta.registry.Engaged(bob.ID))
}

func TestRevengeDeclinedByWinnerKeepsOriginalStake(t *testing.T) {
	t.Parallel()

	ta := newTestArena(t)

	ta.runScripted(t, session(10), []arena.Event{
		ev(bob, arena.ActionAccept),

		ev(alice, arena.ActionRock),
		ev(bob, arena.ActionScissors),
		ev(alice, arena.ActionRock),
		ev(bob, arena.ActionScissors),

		ev(bob, arena.ActionRevenge),
		ev(alice, arena.ActionDeclineRevenge),
	})

	restrictions := ta.moderator.restrictions()
	require.Len(t, restrictions, 1)
	assert.Equal(t, bob.ID, restrictions[0].PlayerID)
	assert.Equal(t, 10, restrictions[0].Minutes)
}

func TestRevengeOfferExpiresAsDecline(t *testing.T) {
	t.Parallel()

	ta := newTestArena(t)

	// Max stake, loser never answers the revenge offer: penalty lands at
	// exactly 10080, no doubling attempted.
	ta.runScripted(t, session(10080), []arena.Event{
		ev(bob, arena.ActionAccept),

		ev(alice, arena.ActionRock),
		ev(bob, arena.ActionScissors),
		ev(alice, arena.ActionRock),
		ev(bob, arena.ActionScissors),
	})

	assert.Contains(t, ta.notifier.publicLog(), "revenge window pass")

	restrictions := ta.moderator.restrictions()
	require.Len(t, restrictions, 1)
	assert.Equal(t, bob.ID, restrictions[0].PlayerID)
	assert.Equal(t, 10080, restrictions[0].Minutes)
}

func TestOnlyLoserMayDemandRevenge(t *testing.T) {
	t.Parallel()

	ta := newTestArena(t)

	ta.runScripted(t, session(10), []arena.Event{
		ev(bob, arena.ActionAccept),

		ev(alice, arena.ActionRock),
		ev(bob, arena.ActionScissors),
		ev(alice, arena.ActionRock),
		ev(bob, arena.ActionScissors),

		ev(alice, arena.ActionRevenge), // winner pressing the loser's button
		ev(bob, arena.ActionAbandon),
	})

	assert.Contains(t, ta.notifier.ephemeralLog(alice.ID), "not yours to make")

	restrictions := ta.moderator.restrictions()
	require.Len(t, restrictions, 1)
	assert.Equal(t, bob.ID, restrictions[0].PlayerID)
	assert.Equal(t, 10, restrictions[0].Minutes)
}

func TestCancelAbortsMatchWithoutPenalty(t *testing.T) {
	t.Parallel()

	ta := newTestArena(t)

	ta.runScripted(t, session(5), []arena.Event{
		ev(bob, arena.ActionAccept),

		ev(alice, arena.ActionRock),
		ev(bob, arena.ActionCancel),
	})

	assert.Contains(t, ta.notifier.publicLog(), "called off")
	assert.Empty(t, ta.moderator.restrictions())
	assert.Empty(t, ta.results)
	assert.False(t, ta.registry.Engaged(alice.ID))
	assert.False(t, ta.registry.Engaged(bob.ID))
}

func TestPermissionDeniedDegradesAnnouncement(t *testing.T) {
	t.Parallel()

	ta := newTestArena(t)
	ta.moderator.status = platform.PermissionDenied

	ta.runScripted(t, session(5), []arena.Event{
		ev(bob, arena.ActionAccept),

		ev(alice, arena.ActionRock),
		ev(bob, arena.ActionScissors),
		ev(alice, arena.ActionRock),
		ev(bob, arena.ActionScissors),

		ev(bob, arena.ActionAbandon),
	})

	public := ta.notifier.publicLog()

	assert.Contains(t, public, "Alice wins the duel!")
	assert.Contains(t, public, "missing the permissions")

	require.Len(t, ta.results, 1)
	result := <-ta.results
	assert.False(t, result.PenaltyApplied)

	assert.False(t, ta.registry.Engaged(alice.ID))
	assert.False(t, ta.registry.Engaged(bob.ID))
}
