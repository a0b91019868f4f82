// Package selection picks winners from an eligible participant list under
// a draw's selection policy.
package selection

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/raffleworks/topicdraw/internal/draw"
	"github.com/raffleworks/topicdraw/internal/participant"
)

// ErrNoEligibleWinners means the policy resolved to zero winners. Only
// reachable with fixed positions when every requested position is invalid;
// the executor converts it into a cancellation, never a hard failure.
var ErrNoEligibleWinners = errors.New("no eligible winners")

// Result is the outcome of a selection.
type Result struct {
	Winners []draw.Winner
	// SkippedPositions lists requested fixed positions with no matching
	// participant (deleted reply, excluded author). Skips are warnings,
	// not errors, as long as at least one position resolved.
	SkippedPositions []int
}

// Selector implements both selection policies.
//
// Randomness comes from math/rand/v2's runtime-seeded global generator.
// It is deliberately not derived from any public attribute of the draw
// (topic ID, draw instant) so the outcome cannot be precomputed.
type Selector struct {
	intN func(n int) int
}

// NewSelector returns a Selector backed by the shared PRNG.
func NewSelector() *Selector {
	return &Selector{intN: rand.IntN}
}

// newSelectorWithIntN swaps the randomness source; tests only.
func newSelectorWithIntN(intN func(int) int) *Selector {
	return &Selector{intN: intN}
}

// Select applies policy to the ordered participant list.
//
// Random policy: when the pool is no larger than the requested count,
// everyone wins in derivation order and no randomness is consumed.
// Otherwise count participants are drawn uniformly without replacement
// via a partial Fisher-Yates shuffle.
//
// Fixed positions: each requested position is matched against the
// participants' thread positions; unmatched positions are reported in
// SkippedPositions. Zero matches is ErrNoEligibleWinners.
func (s *Selector) Select(participants []participant.Participant, policy draw.SelectionPolicy) (Result, error) {
	switch policy.Kind {
	case draw.PolicyRandom:
		return s.selectRandom(participants, policy.Count), nil
	case draw.PolicyFixedPositions:
		return selectFixed(participants, policy.Positions)
	default:
		return Result{}, fmt.Errorf("unknown selection policy %q", policy.Kind)
	}
}

func (s *Selector) selectRandom(participants []participant.Participant, count int) Result {
	if len(participants) <= count {
		return Result{Winners: toWinners(participants)}
	}

	// Partial Fisher-Yates: only the first count slots need settling.
	// Work on a copy; callers may reuse the derivation result.
	pool := make([]participant.Participant, len(participants))
	copy(pool, participants)
	for i := 0; i < count; i++ {
		j := i + s.intN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return Result{Winners: toWinners(pool[:count])}
}

func selectFixed(participants []participant.Participant, positions []int) (Result, error) {
	byPosition := make(map[int]participant.Participant, len(participants))
	for _, p := range participants {
		byPosition[p.Position] = p
	}

	var res Result
	for _, pos := range positions {
		p, ok := byPosition[pos]
		if !ok {
			res.SkippedPositions = append(res.SkippedPositions, pos)
			continue
		}
		res.Winners = append(res.Winners, toWinner(p))
	}
	if len(res.Winners) == 0 {
		return res, fmt.Errorf("positions %v: %w", positions, ErrNoEligibleWinners)
	}
	return res, nil
}

func toWinners(participants []participant.Participant) []draw.Winner {
	winners := make([]draw.Winner, len(participants))
	for i, p := range participants {
		winners[i] = toWinner(p)
	}
	return winners
}

func toWinner(p participant.Participant) draw.Winner {
	return draw.Winner{
		UserID:   p.UserID,
		Username: p.Username,
		Position: p.Position,
		ReplyID:  p.ReplyID,
	}
}
