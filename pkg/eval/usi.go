package eval

import (
	"context"
	"fmt"
	"math"

	"kifu/pkg/shogi"
	"kifu/pkg/usi"
)

// cpScale is the centipawn scale of the logistic win-rate curve.
const cpScale = 600.0

// WinRate converts a Black-relative engine score to Black's win probability.
func WinRate(s usi.Score) float32 {
	if s.Kind == "mate" {
		switch {
		case s.Value > 0:
			return 1
		case s.Value < 0:
			return 0
		default:
			return 0.5
		}
	}
	return float32(1 / (1 + math.Exp(-float64(s.Value)/cpScale)))
}

// USIScorer asks an external USI engine to evaluate each candidate.
type USIScorer struct {
	ctx        context.Context
	session    *usi.Session
	moveTimeMs int
}

// NewUSIScorer starts the engine at path and completes the handshake.
func NewUSIScorer(ctx context.Context, path string, moveTimeMs int, options ...usi.Option) (*USIScorer, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no engine configured", ErrModelUnavailable)
	}
	session, err := usi.StartSession(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: start engine: %w", ErrModelUnavailable, err)
	}
	if len(options) == 0 {
		options = usi.DefaultOptions
	}
	if err := session.Handshake(ctx, options...); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("%w: handshake: %w", ErrModelUnavailable, err)
	}
	return NewUSIScorerSession(ctx, session, moveTimeMs), nil
}

// NewUSIScorerSession wraps a session that has already completed its handshake.
func NewUSIScorerSession(ctx context.Context, session *usi.Session, moveTimeMs int) *USIScorer {
	return &USIScorer{ctx: ctx, session: session, moveTimeMs: moveTimeMs}
}

func (s *USIScorer) Score(candidates []shogi.Boards, toMove shogi.Color) ([]WinProb, error) {
	probs := make([]WinProb, len(candidates))
	for i := range candidates {
		sfen := shogi.SFEN(&candidates[i], toMove, 1)
		score, _, err := s.session.Evaluate(s.ctx, sfen, s.moveTimeMs)
		if err != nil {
			return nil, fmt.Errorf("eval: engine evaluate %s: %w", sfen, err)
		}
		black := WinRate(score)
		probs[i] = WinProb{Black: black, White: 1 - black}
	}
	return probs, nil
}

func (s *USIScorer) Close() error {
	return s.session.Close()
}
