package kifu

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"kifu/pkg/shogi"
)

// BookEntry is one position and the moves played from it.
type BookEntry struct {
	SFEN  string
	Moves map[string]uint32
}

// Book maps packed positions to the moves stored games played from them.
type Book struct {
	entries map[shogi.Packed256]*BookEntry
}

// BuildBook collects positions of the first maxPly plies that occur at least
// threshold times across records.
func BuildBook(records []Record, maxPly, threshold int) (*Book, error) {
	counts := make(map[shogi.Packed256]uint32)
	for _, r := range records {
		for i := 0; i < len(r.Positions) && i < len(r.Moves) && i < maxPly; i++ {
			counts[r.Positions[i]]++
		}
	}

	book := &Book{entries: make(map[shogi.Packed256]*BookEntry)}
	for _, r := range records {
		for i := 0; i < len(r.Positions) && i < len(r.Moves) && i < maxPly; i++ {
			packed := r.Positions[i]
			if counts[packed] < uint32(threshold) {
				continue
			}
			e := book.entries[packed]
			if e == nil {
				b, turn, err := shogi.Unpack256(packed)
				if err != nil {
					return nil, fmt.Errorf("game %s ply %d: %w", r.GameID, i, err)
				}
				e = &BookEntry{SFEN: shogi.SFEN(&b, turn, i+1), Moves: make(map[string]uint32)}
				book.entries[packed] = e
			}
			e.Moves[r.Moves[i]]++
		}
	}
	return book, nil
}

func (b *Book) Len() int { return len(b.entries) }

// Lookup returns the entry for a position, if any.
func (b *Book) Lookup(boards *shogi.Boards, turn shogi.Color) (*BookEntry, bool) {
	packed, err := shogi.Pack256(boards, turn)
	if err != nil {
		return nil, false
	}
	e, ok := b.entries[packed]
	return e, ok
}

// Write emits the book in YaneuraOu DB2016 format, positions sorted by SFEN
// and moves by count.
func (b *Book) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "#YANEURAOU-DB2016 1.00")

	entries := make([]*BookEntry, 0, len(b.entries))
	for _, e := range b.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SFEN < entries[j].SFEN
	})

	type moveCount struct {
		move  string
		count uint32
	}
	for _, e := range entries {
		fmt.Fprintf(bw, "sfen %s\n", e.SFEN)
		ms := make([]moveCount, 0, len(e.Moves))
		for m, c := range e.Moves {
			ms = append(ms, moveCount{m, c})
		}
		sort.Slice(ms, func(i, j int) bool {
			if ms[i].count != ms[j].count {
				return ms[i].count > ms[j].count
			}
			return ms[i].move < ms[j].move
		})
		// <move> <response> <eval> <depth> <count>
		for _, m := range ms {
			fmt.Fprintf(bw, "%s none 0 0 %d\n", m.move, m.count)
		}
	}
	return bw.Flush()
}
