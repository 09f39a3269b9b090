package eval

import (
	"context"
	"errors"
	"io"
	"math/rand"

	"github.com/rs/zerolog"

	"kifu/pkg/game"
)

// Options selects the scoring backend and the selection strategy.
type Options struct {
	Mode       Mode
	K          int
	ModelPath  string
	LibPath    string
	EnginePath string
	MoveTimeMs int
}

// Factory builds one Evaluator per game around a shared Scorer.
type Factory struct {
	mode    Mode
	k       int
	scorer  Scorer
	backend string
}

// New loads the ONNX model, or the USI engine when no model is configured.
// When neither is available it logs a warning and falls back to uniform
// random selection.
func New(ctx context.Context, opts Options, log zerolog.Logger) (*Factory, error) {
	scorer, backend, err := loadScorer(ctx, opts)
	if err != nil {
		if !errors.Is(err, ErrModelUnavailable) {
			return nil, err
		}
		log.Warn().Err(err).Msg("evaluator unavailable, falling back to uniform random")
		scorer, backend = nil, "random"
	}
	log.Info().Str("backend", backend).Str("mode", opts.Mode.String()).Msg("evaluator ready")
	return &Factory{mode: opts.Mode, k: opts.K, scorer: scorer, backend: backend}, nil
}

// NewFactory wraps an existing scorer. A nil scorer selects uniformly.
func NewFactory(mode Mode, k int, scorer Scorer) *Factory {
	backend := "custom"
	if scorer == nil {
		backend = "random"
	}
	return &Factory{mode: mode, k: k, scorer: scorer, backend: backend}
}

func loadScorer(ctx context.Context, opts Options) (Scorer, string, error) {
	var modelErr error
	if opts.ModelPath != "" {
		s, err := NewONNXScorer(opts.ModelPath, opts.LibPath)
		if err == nil {
			return s, "onnx", nil
		}
		if opts.EnginePath == "" {
			return nil, "", err
		}
		modelErr = err
	}
	if opts.EnginePath != "" {
		s, err := NewUSIScorer(ctx, opts.EnginePath, opts.MoveTimeMs)
		if err != nil {
			return nil, "", errors.Join(modelErr, err)
		}
		return s, "usi", nil
	}
	return nil, "", ErrModelUnavailable
}

// Backend names the loaded scorer: "onnx", "usi", "custom" or "random".
func (f *Factory) Backend() string { return f.backend }

// Evaluator returns a strategy bound to rng. Play mode is greedy, train mode
// samples among the top K.
func (f *Factory) Evaluator(rng *rand.Rand) game.Evaluator {
	if f.scorer == nil {
		return NewRandom(rng)
	}
	if f.mode == ModePlay {
		return &Greedy{Scorer: f.scorer}
	}
	return NewTopK(f.scorer, f.k, rng)
}

// Close releases the scorer.
func (f *Factory) Close() error {
	if c, ok := f.scorer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
