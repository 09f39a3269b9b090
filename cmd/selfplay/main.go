package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"kifu/pkg/eval"
	"kifu/pkg/kifu"
	"kifu/pkg/selfplay"
)

func main() {
	configPath := flag.String("config", "", "path to config.json (searched upward from cwd when empty)")
	games := flag.Int("games", 0, "number of games to play")
	workers := flag.Int("workers", 0, "number of concurrent games")
	seed := flag.Int64("seed", 0, "base RNG seed; game i uses seed+i")
	generation := flag.Int("generation", -1, "model generation stored with each game (-1 keeps the config value)")
	sinkKind := flag.String("sink", "", "parquet, badger or none")
	output := flag.String("output", "", "parquet file or badger directory")
	mode := flag.String("mode", "", "train (top-K sampling) or play (greedy)")
	maxPlies := flag.Int("max-plies", 0, "abort games longer than this (0 = unlimited)")
	start := flag.String("start", "", "SFEN start position instead of the standard opening")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()
	if !*verbose {
		log = log.Level(zerolog.InfoLevel)
	}

	cfg, err := loadConfig(*configPath, log)
	if err != nil {
		fatal(err)
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["games"] {
		cfg.Games = *games
	}
	if set["workers"] {
		cfg.Workers = *workers
	}
	if set["seed"] {
		cfg.Seed = *seed
	}
	if *generation >= 0 {
		g := int32(*generation)
		cfg.Generation = &g
	}
	if *sinkKind != "" {
		cfg.Sink = *sinkKind
	}
	if *output != "" {
		abs, err := filepath.Abs(*output)
		if err != nil {
			fatal(err)
		}
		cfg.Output = abs
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if set["max-plies"] {
		cfg.MaxPlies = *maxPlies
	}
	if *start != "" {
		cfg.StartSFEN = *start
	}
	cfg = cfg.WithDefaults()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	evalOpts, err := cfg.EvalOptions()
	if err != nil {
		fatal(err)
	}
	factory, err := eval.New(ctx, evalOpts, log)
	if err != nil {
		fatal(err)
	}
	defer factory.Close()

	if dir := filepath.Dir(cfg.Output); cfg.Sink != "none" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fatal(err)
		}
	}
	sink, err := kifu.OpenSink(cfg.Sink, cfg.Output)
	if err != nil {
		fatal(err)
	}

	runner, err := selfplay.NewRunner(selfplay.Options{
		Games:       cfg.Games,
		Workers:     cfg.Workers,
		Seed:        cfg.Seed,
		Generation:  cfg.Generation,
		MaxPlies:    cfg.MaxPlies,
		ThinkBudget: cfg.ThinkBudget(),
		StartSFEN:   cfg.StartSFEN,
		Log:         log,
	}, factory, sink)
	if err != nil {
		fatal(err)
	}
	log.Info().
		Int("games", cfg.Games).
		Int("workers", cfg.Workers).
		Str("sink", cfg.Sink).
		Str("output", cfg.Output).
		Msg("starting self-play")

	summary, runErr := runner.Run(ctx)
	if err := sink.Close(); err != nil {
		log.Error().Err(err).Msg("closing sink")
	}
	if runErr != nil {
		fatal(runErr)
	}
	fmt.Printf("games: %d recorded: %d aborted: %d failed: %d lost: %d\n",
		summary.Played, summary.Recorded, summary.Aborted, summary.Failed, summary.Lost)
	fmt.Printf("black wins: %d white wins: %d\n", summary.BlackWins, summary.WhiteWins)
	fmt.Printf("avg time per move: %.0fus\n", summary.MicrosPerMove())
}

// loadConfig reads an explicit path, or searches upward from cwd. A missing
// config.json is not an error when none was requested.
func loadConfig(arg string, log zerolog.Logger) (selfplay.Config, error) {
	path, root := arg, ""
	if arg != "" {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return selfplay.Config{}, err
		}
		path, root = abs, filepath.Dir(abs)
	} else {
		found, dir, err := selfplay.FindConfigPath()
		if err != nil {
			log.Debug().Err(err).Msg("running without config.json")
			return selfplay.Config{}, nil
		}
		path, root = found, dir
	}
	cfg, err := selfplay.LoadConfig(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return selfplay.Config{}, fmt.Errorf("config %s not found", path)
		}
		return selfplay.Config{}, err
	}
	log.Debug().Str("config", path).Msg("loaded config")
	return cfg.Resolve(root), nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
