// Package selfplay runs many independent games concurrently and stores the
// finished ones.
package selfplay

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"kifu/pkg/game"
	"kifu/pkg/kifu"
	"kifu/pkg/shogi"
)

// ErrAborted marks a game stopped between turns by a ply or time limit.
var ErrAborted = errors.New("selfplay: game aborted")

// EvaluatorSource hands out one evaluator per game.
type EvaluatorSource interface {
	Evaluator(rng *rand.Rand) game.Evaluator
}

type Options struct {
	Games       int
	Workers     int
	Seed        int64
	Generation  *int32
	MaxPlies    int
	ThinkBudget time.Duration
	// StartSFEN replaces the standard opening when set.
	StartSFEN string
	Log       zerolog.Logger
}

// Summary aggregates the outcome of a run.
type Summary struct {
	Played    int
	Recorded  int
	Aborted   int
	Failed    int
	Lost      int
	BlackWins int
	WhiteWins int
	Plies     int
	Thinking  time.Duration
}

// MicrosPerMove is the mean wall time spent per played move.
func (s Summary) MicrosPerMove() float64 {
	if s.Plies == 0 {
		return 0
	}
	return float64(s.Thinking.Microseconds()) / float64(s.Plies)
}

type Runner struct {
	opts  Options
	src   EvaluatorSource
	sink  kifu.Sink
	start shogi.Boards
	turn  shogi.Color

	mu      sync.Mutex
	summary Summary
}

func NewRunner(opts Options, src EvaluatorSource, sink kifu.Sink) (*Runner, error) {
	if opts.Games <= 0 {
		opts.Games = 1
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	r := &Runner{opts: opts, src: src, sink: sink, start: shogi.NewInitialBoards(), turn: shogi.Black}
	if opts.StartSFEN != "" {
		b, turn, _, err := shogi.ParseSFEN(opts.StartSFEN)
		if err != nil {
			return nil, fmt.Errorf("selfplay: start position: %w", err)
		}
		r.start, r.turn = b, turn
	}
	return r, nil
}

// Run plays every game. Evaluator and persistence failures only cost the
// affected game; an invariant violation stops the run and is returned.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i := 0; i < r.opts.Games; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return r.playOne(ctx, i)
		})
	}
	err := g.Wait()

	r.mu.Lock()
	summary := r.summary
	r.mu.Unlock()
	r.opts.Log.Info().
		Int("played", summary.Played).
		Int("recorded", summary.Recorded).
		Int("aborted", summary.Aborted).
		Int("failed", summary.Failed).
		Int("black_wins", summary.BlackWins).
		Int("white_wins", summary.WhiteWins).
		Float64("us_per_move", summary.MicrosPerMove()).
		Msg("self-play finished")
	return summary, err
}

func (r *Runner) playOne(ctx context.Context, i int) error {
	log := r.opts.Log.With().Int("game", i).Logger()
	rng := rand.New(rand.NewSource(r.opts.Seed + int64(i)))
	g := game.FromPosition(r.start, r.turn, r.src.Evaluator(rng))

	started := time.Now()
	thinking, err := r.play(ctx, g)
	finished := time.Now()
	r.account(g, thinking)

	switch {
	case errors.Is(err, shogi.ErrInvariantViolation):
		log.Error().Err(err).Int("plies", g.Plies()).Msg("corrupt position")
		return err
	case errors.Is(err, ErrAborted):
		r.count(func(s *Summary) { s.Aborted++ })
		log.Warn().Err(err).Int("plies", g.Plies()).Msg("game aborted")
		return nil
	case err != nil:
		r.count(func(s *Summary) { s.Failed++ })
		log.Error().Err(err).Int("plies", g.Plies()).Msg("game failed")
		return nil
	}

	st := g.State()
	r.count(func(s *Summary) {
		if st.Winner == shogi.Black {
			s.BlackWins++
		} else {
			s.WhiteWins++
		}
	})
	rec, err := kifu.NewRecord(g, r.opts.Generation, started, finished)
	if err == nil {
		err = r.sink.Append(rec)
	}
	if err != nil {
		r.count(func(s *Summary) { s.Lost++ })
		log.Error().Err(err).Msg("game record lost")
		return nil
	}
	r.count(func(s *Summary) { s.Recorded++ })

	elapsed := finished.Sub(started)
	perMove := 0.0
	if g.Plies() > 0 {
		perMove = float64(elapsed.Microseconds()) / float64(g.Plies())
	}
	log.Info().
		Str("game_id", rec.GameID).
		Int("plies", rec.Plies).
		Stringer("winner", st.Winner).
		Dur("elapsed", elapsed).
		Float64("us_per_move", perMove).
		Msg("game finished")
	return nil
}

// play runs g to the end. Limits are checked between turns only.
func (r *Runner) play(ctx context.Context, g *game.Game) (time.Duration, error) {
	var think [2]time.Duration
	for {
		if err := ctx.Err(); err != nil {
			return think[0] + think[1], fmt.Errorf("%w: %w", ErrAborted, err)
		}
		if r.opts.MaxPlies > 0 && g.Plies() >= r.opts.MaxPlies {
			return think[0] + think[1], fmt.Errorf("%w: reached %d plies", ErrAborted, r.opts.MaxPlies)
		}
		mover := g.Turn()
		t0 := time.Now()
		st, err := g.Next()
		think[mover] += time.Since(t0)
		if err != nil {
			return think[0] + think[1], err
		}
		if st.Phase == game.Checkmate {
			return think[0] + think[1], nil
		}
		if r.opts.ThinkBudget > 0 && think[mover] > r.opts.ThinkBudget {
			return think[0] + think[1], fmt.Errorf("%w: %v exceeded its think budget", ErrAborted, mover)
		}
	}
}

func (r *Runner) account(g *game.Game, thinking time.Duration) {
	r.count(func(s *Summary) {
		s.Played++
		s.Plies += g.Plies()
		s.Thinking += thinking
	})
}

func (r *Runner) count(fn func(*Summary)) {
	r.mu.Lock()
	fn(&r.summary)
	r.mu.Unlock()
}
