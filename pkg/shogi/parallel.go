package shogi

import (
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// inlineLimit is the candidate count below which filtering stays on the
// calling goroutine.
const inlineLimit = 24

// filterMoves runs keep over every move and returns the survivors with their
// resulting positions, in input order. An *InvariantViolation raised by a
// worker is re-raised on the caller's goroutine.
func filterMoves(moves []Move, keep func(Move) (Boards, bool)) ([]Move, []Boards) {
	after := make([]Boards, len(moves))
	ok := make([]bool, len(moves))

	workers := runtime.GOMAXPROCS(0)
	if len(moves) < inlineLimit || workers < 2 {
		for i, m := range moves {
			after[i], ok[i] = keep(m)
		}
		return collect(moves, after, ok)
	}

	chunk := (len(moves) + workers - 1) / workers
	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < len(moves); start += chunk {
		end := min(start+chunk, len(moves))
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					v, isViolation := r.(*InvariantViolation)
					if !isViolation {
						panic(r)
					}
					err = v
				}
			}()
			for i := start; i < end; i++ {
				after[i], ok[i] = keep(moves[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var v *InvariantViolation
		if errors.As(err, &v) {
			panic(v)
		}
		panic(err)
	}
	return collect(moves, after, ok)
}

func collect(moves []Move, after []Boards, ok []bool) ([]Move, []Boards) {
	var keptMoves []Move
	var keptBoards []Boards
	for i := range moves {
		if ok[i] {
			keptMoves = append(keptMoves, moves[i])
			keptBoards = append(keptBoards, after[i])
		}
	}
	return keptMoves, keptBoards
}
