package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"kifu/pkg/kifu"
	"kifu/pkg/shogi"
)

type gameStats struct {
	games       int
	blackWins   int
	plies       int
	minPlies    int
	maxPlies    int
	generations map[int32]int
	ungenerated int
	bins        map[int]int
	binSize     int
}

func newGameStats(binSize int) *gameStats {
	return &gameStats{
		generations: make(map[int32]int),
		bins:        make(map[int]int),
		binSize:     binSize,
	}
}

func (s *gameStats) Add(r kifu.Record) {
	if s.games == 0 || r.Plies < s.minPlies {
		s.minPlies = r.Plies
	}
	if r.Plies > s.maxPlies {
		s.maxPlies = r.Plies
	}
	s.games++
	s.plies += r.Plies
	if r.Winner == shogi.Black {
		s.blackWins++
	}
	if r.Generation != nil {
		s.generations[*r.Generation]++
	} else {
		s.ungenerated++
	}
	s.bins[(r.Plies/s.binSize)*s.binSize]++
}

func (s *gameStats) BlackWinRate() float64 {
	if s.games == 0 {
		return 0
	}
	return float64(s.blackWins) / float64(s.games)
}

func (s *gameStats) AvgPlies() float64 {
	if s.games == 0 {
		return 0
	}
	return float64(s.plies) / float64(s.games)
}

func main() {
	parquetPath := flag.String("parquet", "", "input parquet file")
	badgerDir := flag.String("badger", "", "input badger directory")
	generation := flag.Int("generation", -1, "only count games of this generation (-1 = all)")
	binSize := flag.Int("bin-size", 50, "game length bin size in plies")
	kifDir := flag.String("export-kif", "", "write every counted game as a KIF file into this directory")
	sjis := flag.Bool("sjis", false, "encode exported KIF files as Shift-JIS")
	verify := flag.Bool("verify", false, "replay every counted game and report illegal moves")
	flag.Parse()

	if *binSize <= 0 {
		fatal(fmt.Errorf("bin-size must be > 0"))
	}
	if (*parquetPath == "") == (*badgerDir == "") {
		fatal(fmt.Errorf("specify exactly one of -parquet or -badger"))
	}

	var records []kifu.Record
	var err error
	if *parquetPath != "" {
		records, err = kifu.ReadAll("parquet", *parquetPath)
	} else {
		records, err = kifu.ReadAll("badger", *badgerDir)
	}
	if err != nil {
		fatal(err)
	}
	if *kifDir != "" {
		if err := os.MkdirAll(*kifDir, 0o755); err != nil {
			fatal(err)
		}
	}

	stats := newGameStats(*binSize)
	invalid, exported := 0, 0
	for _, r := range records {
		if *generation >= 0 && (r.Generation == nil || *r.Generation != int32(*generation)) {
			continue
		}
		stats.Add(r)
		if *verify {
			if _, err := r.Replay(); err != nil {
				fmt.Fprintf(os.Stderr, "invalid game: %v\n", err)
				invalid++
			}
		}
		if *kifDir != "" {
			if err := exportKIF(*kifDir, r, *sjis); err != nil {
				fmt.Fprintf(os.Stderr, "failed to export %s: %v\n", r.GameID, err)
				continue
			}
			exported++
		}
	}

	fmt.Printf("games: %d (of %d stored)\n", stats.games, len(records))
	fmt.Printf("black win rate: %.4f\n", stats.BlackWinRate())
	fmt.Printf("plies: avg=%.1f min=%d max=%d\n", stats.AvgPlies(), stats.minPlies, stats.maxPlies)
	if *verify {
		fmt.Printf("invalid games: %d\n", invalid)
	}
	if *kifDir != "" {
		fmt.Printf("exported KIF files: %d\n", exported)
	}
	gens := make([]int, 0, len(stats.generations))
	for g := range stats.generations {
		gens = append(gens, int(g))
	}
	sort.Ints(gens)
	for _, g := range gens {
		fmt.Printf("generation %d: %d\n", g, stats.generations[int32(g)])
	}
	if stats.ungenerated > 0 {
		fmt.Printf("generation unset: %d\n", stats.ungenerated)
	}
	fmt.Printf("length distribution (bin size=%d):\n", stats.binSize)
	keys := make([]int, 0, len(stats.bins))
	for key := range stats.bins {
		keys = append(keys, key)
	}
	sort.Ints(keys)
	for _, start := range keys {
		fmt.Printf("%d-%d,%d\n", start, start+stats.binSize-1, stats.bins[start])
	}
}

func exportKIF(dir string, r kifu.Record, sjis bool) error {
	f, err := os.Create(filepath.Join(dir, r.GameID+".kif"))
	if err != nil {
		return err
	}
	if err := kifu.WriteKIF(f, r, kifu.KIFOptions{ShiftJIS: sjis}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
