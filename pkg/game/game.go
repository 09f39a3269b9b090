// Package game drives one shogi game from the opening to checkmate.
package game

import (
	"errors"
	"fmt"

	"kifu/pkg/shogi"
)

// Evaluator chooses one of the candidate positions for the side to move.
type Evaluator interface {
	SelectMove(candidates []shogi.Boards, turn shogi.Color) (int, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(candidates []shogi.Boards, turn shogi.Color) (int, error)

func (f EvaluatorFunc) SelectMove(candidates []shogi.Boards, turn shogi.Color) (int, error) {
	return f(candidates, turn)
}

var (
	// ErrEvaluatorFailure wraps errors returned by the Evaluator and
	// out-of-range selections. Only the current game is affected.
	ErrEvaluatorFailure = errors.New("game: evaluator failure")
	// ErrGameOver is returned by Next once the game is decided.
	ErrGameOver = errors.New("game: already decided")
	// ErrInvariantViolation wraps a corrupt position reported by the core.
	ErrInvariantViolation = shogi.ErrInvariantViolation
)

type Phase int

const (
	Playing Phase = iota
	Checkmate
)

func (p Phase) String() string {
	if p == Checkmate {
		return "checkmate"
	}
	return "playing"
}

// State is Playing, or Checkmate with the winning color.
type State struct {
	Phase  Phase
	Winner shogi.Color
}

func (s State) String() string {
	if s.Phase == Checkmate {
		return fmt.Sprintf("checkmate(%v)", s.Winner)
	}
	return "playing"
}

// Selection tells how the last move was chosen.
type Selection int

const (
	SelectedNone Selection = iota
	SelectedMateInOne
	SelectedEvaluator
)

type Game struct {
	boards  shogi.Boards
	turn    shogi.Color
	history []shogi.Boards
	reached map[shogi.Boards]struct{}
	moves   []shogi.Move
	state   State
	eval    Evaluator
	last    Selection
}

// New starts a game from the standard opening with Black to move.
func New(ev Evaluator) *Game {
	return FromPosition(shogi.NewInitialBoards(), shogi.Black, ev)
}

// FromPosition starts a game at b. prior positions count as already reached
// for repetition avoidance; b itself is always part of the history.
func FromPosition(b shogi.Boards, turn shogi.Color, ev Evaluator, prior ...shogi.Boards) *Game {
	history := make([]shogi.Boards, 0, len(prior)+1)
	history = append(history, prior...)
	history = append(history, b)
	reached := make(map[shogi.Boards]struct{}, len(history))
	for _, h := range history {
		reached[h] = struct{}{}
	}
	return &Game{boards: b, turn: turn, history: history, reached: reached, eval: ev}
}

func (g *Game) Boards() shogi.Boards { return g.boards }
func (g *Game) Turn() shogi.Color    { return g.turn }
func (g *Game) State() State         { return g.state }
func (g *Game) Plies() int           { return len(g.moves) }
func (g *Game) LastSelection() Selection {
	return g.last
}

// History returns every reached position, oldest first.
func (g *Game) History() []shogi.Boards {
	return append([]shogi.Boards(nil), g.history...)
}

// Moves returns the moves played so far.
func (g *Game) Moves() []shogi.Move {
	return append([]shogi.Move(nil), g.moves...)
}

// Next plays one turn. On error the game is left as it was before the call.
func (g *Game) Next() (st State, err error) {
	if g.state.Phase == Checkmate {
		return g.state, ErrGameOver
	}
	defer func() {
		if r := recover(); r != nil {
			v, ok := r.(*shogi.InvariantViolation)
			if !ok {
				panic(r)
			}
			st, err = g.state, fmt.Errorf("game: ply %d: %w", len(g.moves)+1, v)
		}
	}()

	moves, successors := shogi.LegalSuccessors(g.boards, g.turn)
	if len(moves) == 0 {
		return g.finish(), nil
	}

	opponent := g.turn.Opponent()
	for i, after := range successors {
		if shogi.IsCheckmate(after, opponent) {
			g.advance(moves[i], after, SelectedMateInOne)
			return g.state, nil
		}
	}

	var candidates []shogi.Boards
	var candidateMoves []shogi.Move
	for i, after := range successors {
		if g.seen(after) {
			continue
		}
		candidates = append(candidates, after)
		candidateMoves = append(candidateMoves, moves[i])
	}
	if len(candidates) == 0 {
		return g.finish(), nil
	}

	idx, err := g.eval.SelectMove(candidates, g.turn)
	if err != nil {
		return g.state, fmt.Errorf("%w: %w", ErrEvaluatorFailure, err)
	}
	if idx < 0 || idx >= len(candidates) {
		return g.state, fmt.Errorf("%w: index %d out of %d candidates", ErrEvaluatorFailure, idx, len(candidates))
	}
	g.advance(candidateMoves[idx], candidates[idx], SelectedEvaluator)
	return g.state, nil
}

// Run plays until checkmate or the first error.
func (g *Game) Run() (State, error) {
	for {
		st, err := g.Next()
		if err != nil || st.Phase == Checkmate {
			return st, err
		}
	}
}

func (g *Game) seen(b shogi.Boards) bool {
	_, ok := g.reached[b]
	return ok
}

func (g *Game) advance(m shogi.Move, after shogi.Boards, how Selection) {
	g.boards = after
	g.history = append(g.history, after)
	g.reached[after] = struct{}{}
	g.moves = append(g.moves, m)
	g.turn = g.turn.Opponent()
	g.last = how
}

func (g *Game) finish() State {
	g.state = State{Phase: Checkmate, Winner: g.turn.Opponent()}
	g.last = SelectedNone
	return g.state
}
