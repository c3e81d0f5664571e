package game

import "errors"

const (
	// MaxStakeMinutes is one week, the hard ceiling a duel can put on the line.
	MaxStakeMinutes = 10080
	MinStakeMinutes = 1

	// WinsNeeded ends a best-of-3 match the moment either side reaches it.
	WinsNeeded = 2
)

var ErrStakeOutOfRange = errors.New("stake must be between 1 and 10080 minutes")

func ValidateStake(minutes int) error {
	if minutes < MinStakeMinutes || minutes > MaxStakeMinutes {
		return ErrStakeOutOfRange
	}

	return nil
}

// DoubleStake returns the stake for a revenge rematch, clamped to the domain
// ceiling so escalation can never put more than a week on the line.
func DoubleStake(minutes int) int {
	doubled := minutes * 2
	if doubled > MaxStakeMinutes {
		return MaxStakeMinutes
	}

	return doubled
}

// Resolve maps two simultaneous moves to a round outcome. Rock beats
// scissors, scissors beat paper, paper beats rock; equal moves tie.
func Resolve(a, b Move) Outcome {
	if a == b {
		return Tie
	}

	beats := map[Move]Move{
		MoveRock:     MoveScissors,
		MoveScissors: MovePaper,
		MovePaper:    MoveRock,
	}

	if beats[a] == b {
		return FirstWins
	}

	return SecondWins
}
