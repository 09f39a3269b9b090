package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"kifu/pkg/kifu"
)

func main() {
	parquetPath := flag.String("parquet", "", "input parquet file")
	badgerDir := flag.String("badger", "", "input badger directory")
	outputPath := flag.String("output", "book.db", "output book file")
	threshold := flag.Int("threshold", 3, "minimum occurrence count to include in book")
	maxPly := flag.Int("max-ply", 60, "maximum ply to process per game")
	generation := flag.Int("generation", -1, "only use games of this generation (-1 = all)")
	flag.Parse()

	if (*parquetPath == "") == (*badgerDir == "") {
		fatal(fmt.Errorf("specify exactly one of -parquet or -badger"))
	}
	start := time.Now()

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
	if *generation >= 0 {
		kept := records[:0]
		for _, r := range records {
			if r.Generation != nil && *r.Generation == int32(*generation) {
				kept = append(kept, r)
			}
		}
		records = kept
	}
	fmt.Fprintf(os.Stderr, "games: %d, max-ply: %d, threshold: %d\n", len(records), *maxPly, *threshold)

	book, err := kifu.BuildBook(records, *maxPly, *threshold)
	if err != nil {
		fatal(err)
	}
	if book.Len() == 0 {
		fmt.Fprintln(os.Stderr, "no positions meet the threshold; nothing to write")
		return
	}

	f, err := os.Create(*outputPath)
	if err != nil {
		fatal(err)
	}
	if err := book.Write(f); err != nil {
		f.Close()
		fatal(err)
	}
	if err := f.Close(); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d positions) in %v\n",
		*outputPath, book.Len(), time.Since(start).Round(time.Millisecond))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
