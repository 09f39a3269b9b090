package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"golang.org/x/sync/errgroup"

	"kifu/pkg/eval"
	"kifu/pkg/kifu"
	"kifu/pkg/selfplay"
	"kifu/pkg/shogi"
	"kifu/pkg/usi"
)

// PlyEval is one engine evaluation of a stored position.
type PlyEval struct {
	GameID       string  `parquet:"name=game_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Ply          int32   `parquet:"name=ply, type=INT32"`
	Move         string  `parquet:"name=move, type=BYTE_ARRAY, convertedtype=UTF8"`
	ScoreType    string  `parquet:"name=score_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	ScoreValue   int32   `parquet:"name=score_value, type=INT32"`
	BlackWinRate float32 `parquet:"name=black_win_rate, type=FLOAT"`
}

type positionEvaluator interface {
	Evaluate(ctx context.Context, sfen string, moveTimeMs int) (usi.Score, string, error)
}

func main() {
	configPath := flag.String("config", "", "path to config.json (searched upward from cwd when empty)")
	parquetPath := flag.String("parquet", "", "input parquet file of self-play games")
	badgerDir := flag.String("badger", "", "input badger directory of self-play games")
	outputPath := flag.String("output", "analysis.parquet", "output parquet file")
	processNum := flag.Int("process-num", 4, "number of engine processes")
	maxGames := flag.Int("max-games", 0, "analyze at most this many games (0 = all)")
	flag.Parse()

	if (*parquetPath == "") == (*badgerDir == "") {
		fatal(fmt.Errorf("specify exactly one of -parquet or -badger"))
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	if cfg.Engine == "" {
		fatal(fmt.Errorf("engine path is required in config.json"))
	}
	if _, err := os.Stat(cfg.Engine); err != nil {
		fatal(fmt.Errorf("engine binary not found at %s: %w", cfg.Engine, err))
	}

	var records []kifu.Record
	if *parquetPath != "" {
		records, err = kifu.ReadAll("parquet", *parquetPath)
	} else {
		records, err = kifu.ReadAll("badger", *badgerDir)
	}
	if err != nil {
		fatal(err)
	}
	if *maxGames > 0 && len(records) > *maxGames {
		records = records[:*maxGames]
	}
	workers := *processNum
	if workers <= 0 {
		workers = 1
	}
	if workers > len(records) {
		workers = len(records)
	}
	if workers == 0 {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions := make([]*usi.Session, 0, workers)
	for i := 0; i < workers; i++ {
		session, err := usi.StartSession(ctx, cfg.Engine)
		if err != nil {
			fatal(err)
		}
		defer session.Close()
		if err := session.Handshake(ctx, usi.DefaultOptions...); err != nil {
			fatal(err)
		}
		sessions = append(sessions, session)
	}

	evaluators := make([]positionEvaluator, len(sessions))
	for i, session := range sessions {
		evaluators[i] = session
	}
	write := func(results <-chan []PlyEval) error {
		return writeEvals(*outputPath, results, int64(workers))
	}
	progress := func(n int64) {
		if n%10 == 0 {
			fmt.Fprintf(os.Stderr, "\rprogress: %d/%d", n, len(records))
		}
	}
	processed, err := analyzeAll(ctx, evaluators, records, cfg.Millis, write, progress)
	if err != nil && !errors.Is(err, context.Canceled) {
		fatal(err)
	}
	fmt.Fprintf(os.Stderr, "\ranalyzed %d/%d games into %s\n", processed, len(records), *outputPath)
}

// analyzeAll runs one worker per evaluator over records and streams each
// game's evaluations to write. A write failure cancels the workers and the
// feeder, so nothing blocks on a reader that is gone. Cancelling ctx abandons
// the games in flight; write still sees every result finished before that.
func analyzeAll(ctx context.Context, evaluators []positionEvaluator, records []kifu.Record, moveTimeMs int,
	write func(<-chan []PlyEval) error, progress func(done int64)) (int64, error) {
	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan kifu.Record)
	results := make(chan []PlyEval, len(evaluators))

	g.Go(func() error { return write(results) })

	var processed atomic.Int64
	var workers sync.WaitGroup
	for _, ev := range evaluators {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for rec := range jobs {
				evals, err := analyzeGame(ctx, ev, rec, moveTimeMs)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					fmt.Fprintf(os.Stderr, "failed to analyze %s: %v\n", rec.GameID, err)
					continue
				}
				select {
				case results <- evals:
				case <-ctx.Done():
					return ctx.Err()
				}
				if n := processed.Add(1); progress != nil {
					progress(n)
				}
			}
			return nil
		})
	}
	go func() {
		workers.Wait()
		close(results)
	}()

	g.Go(func() error {
		defer close(jobs)
		for _, rec := range records {
			select {
			case jobs <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	err := g.Wait()
	return processed.Load(), err
}

// analyzeGame evaluates every position of rec, the start position included.
// Move is the move that led to the position.
func analyzeGame(ctx context.Context, ev positionEvaluator, rec kifu.Record, moveTimeMs int) ([]PlyEval, error) {
	positions, err := rec.Replay()
	if err != nil {
		return nil, err
	}
	_, turn, err := rec.Start()
	if err != nil {
		return nil, err
	}
	evals := make([]PlyEval, 0, len(positions))
	for i := range positions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score, _, err := ev.Evaluate(ctx, shogi.SFEN(&positions[i], turn, i+1), moveTimeMs)
		if err != nil {
			return nil, fmt.Errorf("ply %d: %w", i, err)
		}
		move := "-"
		if i > 0 {
			move = rec.Moves[i-1]
		}
		evals = append(evals, PlyEval{
			GameID:       rec.GameID,
			Ply:          int32(i),
			Move:         move,
			ScoreType:    score.Kind,
			ScoreValue:   int32(score.Value),
			BlackWinRate: eval.WinRate(score),
		})
		turn = turn.Opponent()
	}
	return evals, nil
}

func writeEvals(path string, results <-chan []PlyEval, parallel int64) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	fileWriter, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	defer fileWriter.Close()

	parquetWriter, err := writer.NewParquetWriter(fileWriter, new(PlyEval), parallel)
	if err != nil {
		return err
	}
	parquetWriter.CompressionType = parquet.CompressionCodec_SNAPPY

	for evals := range results {
		for _, e := range evals {
			if err := parquetWriter.Write(e); err != nil {
				return err
			}
		}
	}
	if err := parquetWriter.WriteStop(); err != nil {
		return err
	}
	return fileWriter.Close()
}

func loadConfig(arg string) (selfplay.Config, error) {
	path, root, err := selfplay.FindConfigPath()
	if arg != "" {
		path, err = filepath.Abs(arg)
		root = filepath.Dir(path)
	}
	if err != nil {
		return selfplay.Config{}, err
	}
	cfg, err := selfplay.LoadConfig(path)
	if err != nil {
		return selfplay.Config{}, err
	}
	return cfg.WithDefaults().Resolve(root), nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
