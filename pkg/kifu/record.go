// Package kifu stores finished self-play games and converts them to and
// from KIF text.
package kifu

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kifu/pkg/game"
	"kifu/pkg/shogi"
)

// ErrPersistence wraps every failure to store a finished game.
var ErrPersistence = errors.New("kifu: persistence failure")

// Record is one finished game. StartSFEN is empty for games played from the
// standard opening.
type Record struct {
	GameID     string            `json:"game_id"`
	Winner     shogi.Color       `json:"winner"`
	Generation *int32            `json:"generation,omitempty"`
	StartSFEN  string            `json:"start_sfen,omitempty"`
	Moves      []string          `json:"moves"`
	Positions  []shogi.Packed256 `json:"positions"`
	Plies      int               `json:"plies"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Sink accepts finished games. Implementations tolerate concurrent Append calls.
type Sink interface {
	Append(Record) error
	Close() error
}

// NewRecord captures a decided game. Every position reached since the game
// started is packed, so it must have started from a full 40-piece position.
func NewRecord(g *game.Game, generation *int32, startedAt, finishedAt time.Time) (Record, error) {
	st := g.State()
	if st.Phase != game.Checkmate {
		return Record{}, errors.New("kifu: game is not decided")
	}
	moves := g.Moves()
	history := g.History()
	history = history[len(history)-len(moves)-1:]
	turn := g.Turn()
	if len(moves)%2 == 1 {
		turn = turn.Opponent()
	}
	var start string
	if history[0] != shogi.NewInitialBoards() || turn != shogi.Black {
		start = shogi.SFEN(&history[0], turn, 1)
	}
	positions := make([]shogi.Packed256, len(history))
	for i := range history {
		packed, err := shogi.Pack256(&history[i], turn)
		if err != nil {
			return Record{}, fmt.Errorf("kifu: pack ply %d: %w", i, err)
		}
		positions[i] = packed
		turn = turn.Opponent()
	}
	usi := make([]string, len(moves))
	for i, m := range moves {
		usi[i] = m.USI()
	}
	return Record{
		GameID:     uuid.NewString(),
		Winner:     st.Winner,
		Generation: generation,
		StartSFEN:  start,
		Moves:      usi,
		Positions:  positions,
		Plies:      len(moves),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}, nil
}

// Start returns the position the game was played from.
func (r Record) Start() (shogi.Boards, shogi.Color, error) {
	if r.StartSFEN == "" {
		return shogi.NewInitialBoards(), shogi.Black, nil
	}
	b, turn, _, err := shogi.ParseSFEN(r.StartSFEN)
	if err != nil {
		return shogi.Boards{}, shogi.Black, fmt.Errorf("kifu: game %s: %w", r.GameID, err)
	}
	return b, turn, nil
}

// Replay re-applies the USI moves from the start position and checks each
// one is legal.
func (r Record) Replay() ([]shogi.Boards, error) {
	b, turn, err := r.Start()
	if err != nil {
		return nil, err
	}
	out := []shogi.Boards{b}
	for i, usi := range r.Moves {
		m, err := shogi.FindLegal(b, turn, usi)
		if err != nil {
			return out, fmt.Errorf("kifu: game %s ply %d: %w", r.GameID, i+1, err)
		}
		b = shogi.ApplyMove(b, m)
		out = append(out, b)
		turn = turn.Opponent()
	}
	return out, nil
}

// Ending says how the game in a record finished for the side to move after
// the last move.
type Ending int8

const (
	// EndResign means the loser still had a move to a new position.
	EndResign Ending = iota
	// EndCheckmate means the loser had no legal move at all.
	EndCheckmate
	// EndRepetition means every legal move of the loser returned to a
	// position already reached in the game.
	EndRepetition
)

func (e Ending) String() string {
	switch e {
	case EndCheckmate:
		return "checkmate"
	case EndRepetition:
		return "repetition"
	default:
		return "resign"
	}
}

// Ending replays the record and classifies its final position.
func (r Record) Ending() (Ending, error) {
	positions, err := r.Replay()
	if err != nil {
		return EndResign, err
	}
	_, turn, err := r.Start()
	if err != nil {
		return EndResign, err
	}
	if len(r.Moves)%2 == 1 {
		turn = turn.Opponent()
	}
	reached := make(map[shogi.Boards]struct{}, len(positions))
	for _, b := range positions {
		reached[b] = struct{}{}
	}
	_, successors := shogi.LegalSuccessors(positions[len(positions)-1], turn)
	if len(successors) == 0 {
		return EndCheckmate, nil
	}
	for _, after := range successors {
		if _, ok := reached[after]; !ok {
			return EndResign, nil
		}
	}
	return EndRepetition, nil
}
