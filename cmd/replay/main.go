package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"kifu/pkg/kifu"
	"kifu/pkg/shogi"
)

func main() {
	kifPath := flag.String("kif", "", "KIF file to replay")
	movesArg := flag.String("moves", "", "space separated USI moves to replay instead of a KIF file")
	startArg := flag.String("start", "", "SFEN start position for -moves (standard opening when empty)")
	flag.Parse()

	if (*kifPath == "") == (*movesArg == "") {
		fatal(fmt.Errorf("specify exactly one of -kif or -moves"))
	}

	var moves []string
	b, turn := shogi.NewInitialBoards(), shogi.Black
	if *kifPath != "" {
		data, err := os.ReadFile(*kifPath)
		if err != nil {
			fatal(err)
		}
		moves, err = kifu.ParseKIF(data)
		if err != nil {
			fatal(fmt.Errorf("%s: %w", *kifPath, err))
		}
	} else {
		moves = strings.Fields(*movesArg)
		if *startArg != "" {
			var err error
			b, turn, _, err = shogi.ParseSFEN(*startArg)
			if err != nil {
				fatal(err)
			}
		}
	}

	fmt.Printf("%3d %-6s %s\n", 0, "-", shogi.SFEN(&b, turn, 1))
	for i, text := range moves {
		legal := shogi.GenerateLegalMoves(b, turn)
		m, err := shogi.FindLegal(b, turn, text)
		if err != nil {
			fatal(fmt.Errorf("ply %d (%s to move, %d legal moves): %w", i+1, turn, len(legal), err))
		}
		b = shogi.ApplyMove(b, m)
		turn = turn.Opponent()
		mark := ""
		if shogi.IsInCheck(&b[shogi.TierBoard], turn) {
			mark = " check"
		}
		fmt.Printf("%3d %-6s %s  (legal %d%s)\n", i+1, text, shogi.SFEN(&b, turn, i+2), len(legal), mark)
	}

	if shogi.IsCheckmate(b, turn) {
		fmt.Printf("checkmate: %s wins after %d plies\n", turn.Opponent(), len(moves))
		return
	}
	fmt.Printf("%s to move with %d legal moves\n", turn, len(shogi.GenerateLegalMoves(b, turn)))
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
