// Package eval provides move selection strategies for self-play.
package eval

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"kifu/pkg/shogi"
)

// ErrModelUnavailable means no scoring backend could be loaded.
var ErrModelUnavailable = errors.New("eval: model unavailable")

// MaxTopK bounds the training-mode sample pool.
const MaxTopK = 10

// WinProb is the predicted probability of each side winning.
type WinProb struct {
	Black float32
	White float32
}

// For returns the probability that c wins.
func (p WinProb) For(c shogi.Color) float32 {
	if c == shogi.White {
		return p.White
	}
	return p.Black
}

// Scorer predicts win probabilities for candidate positions. toMove is the
// side to move in every candidate, that is the opponent of the mover.
type Scorer interface {
	Score(candidates []shogi.Boards, toMove shogi.Color) ([]WinProb, error)
}

type Mode int

const (
	ModeTrain Mode = iota
	ModePlay
)

func (m Mode) String() string {
	if m == ModePlay {
		return "play"
	}
	return "train"
}

// ParseMode accepts "train" or "play"; empty means train.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "train":
		return ModeTrain, nil
	case "play":
		return ModePlay, nil
	default:
		return ModeTrain, fmt.Errorf("eval: unknown mode %q", s)
	}
}

// Random picks uniformly among the candidates.
type Random struct {
	rng *rand.Rand
}

func NewRandom(rng *rand.Rand) *Random {
	return &Random{rng: rng}
}

func (r *Random) SelectMove(candidates []shogi.Boards, _ shogi.Color) (int, error) {
	if len(candidates) == 0 {
		return 0, errors.New("eval: no candidates")
	}
	return r.rng.Intn(len(candidates)), nil
}

// Greedy picks the candidate with the highest win probability for the mover.
// Ties go to the earliest candidate.
type Greedy struct {
	Scorer Scorer
}

func (g *Greedy) SelectMove(candidates []shogi.Boards, turn shogi.Color) (int, error) {
	probs, err := score(g.Scorer, candidates, turn)
	if err != nil {
		return 0, err
	}
	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i].For(turn) > probs[best].For(turn) {
			best = i
		}
	}
	return best, nil
}

// TopK samples uniformly among the K candidates best for the mover.
type TopK struct {
	Scorer Scorer
	K      int
	rng    *rand.Rand
}

func NewTopK(s Scorer, k int, rng *rand.Rand) *TopK {
	if k <= 0 || k > MaxTopK {
		k = MaxTopK
	}
	return &TopK{Scorer: s, K: k, rng: rng}
}

func (t *TopK) SelectMove(candidates []shogi.Boards, turn shogi.Color) (int, error) {
	probs, err := score(t.Scorer, candidates, turn)
	if err != nil {
		return 0, err
	}
	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return probs[order[a]].For(turn) > probs[order[b]].For(turn)
	})
	k := min(t.K, len(order))
	return order[t.rng.Intn(k)], nil
}

func score(s Scorer, candidates []shogi.Boards, turn shogi.Color) ([]WinProb, error) {
	if len(candidates) == 0 {
		return nil, errors.New("eval: no candidates")
	}
	probs, err := s.Score(candidates, turn.Opponent())
	if err != nil {
		return nil, err
	}
	if len(probs) != len(candidates) {
		return nil, fmt.Errorf("eval: scorer returned %d results for %d candidates", len(probs), len(candidates))
	}
	return probs, nil
}
