package shogi_test

import (
	"errors"
	"reflect"
	"runtime"
	"testing"

	"kifu/pkg/shogi"
)

func mustSFEN(t *testing.T, sfen string) (shogi.Boards, shogi.Color) {
	t.Helper()
	b, turn, _, err := shogi.ParseSFEN(sfen)
	if err != nil {
		t.Fatalf("parse %q: %v", sfen, err)
	}
	return b, turn
}

func containsUSI(moves []shogi.Move, usi string) bool {
	for _, m := range moves {
		if m.USI() == usi {
			return true
		}
	}
	return false
}

// TestGenerateLegalMoves_Opening verifies Black has exactly 30 legal moves
// and no drops in the starting position.
func TestGenerateLegalMoves_Opening(t *testing.T) {
	moves := shogi.GenerateLegalMoves(shogi.NewInitialBoards(), shogi.Black)
	if len(moves) != 30 {
		t.Fatalf("expected 30 legal moves, got %d", len(moves))
	}
	for _, m := range moves {
		if m.IsDrop() {
			t.Fatalf("unexpected drop %s in opening", m.USI())
		}
		if m.Promote {
			t.Fatalf("unexpected promotion %s in opening", m.USI())
		}
	}
	if !containsUSI(moves, "7g7f") || !containsUSI(moves, "2h1h") {
		t.Fatalf("missing expected opening moves: %v", moves)
	}
}

// TestGenerateLegalMoves_StableOrder verifies two generations agree move by move.
func TestGenerateLegalMoves_StableOrder(t *testing.T) {
	b, turn := mustSFEN(t, "lnsgk1snl/1r4gb1/p1ppppp1p/7p1/1p7/9/PPPPPPP1P/1BG4R1/LNS1KGSNL b p 9")
	first := shogi.GenerateLegalMoves(b, turn)
	second := shogi.GenerateLegalMoves(b, turn)
	if len(first) != len(second) {
		t.Fatalf("length mismatch: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("move %d differs: %s vs %s", i, first[i].USI(), second[i].USI())
		}
	}
}

// TestIsInCheck_RookOnFile verifies rook check and that stepping aside clears it.
func TestIsInCheck_RookOnFile(t *testing.T) {
	b, _ := mustSFEN(t, "4r3k/9/9/9/9/9/9/9/4K4 b - 1")
	if !shogi.IsInCheck(&b[shogi.TierBoard], shogi.Black) {
		t.Fatal("black king should be in check from rook on the same file")
	}
	if shogi.IsInCheck(&b[shogi.TierBoard], shogi.White) {
		t.Fatal("white king should not be in check")
	}
	m, err := shogi.FindLegal(b, shogi.Black, "5i4i")
	if err != nil {
		t.Fatalf("king step: %v", err)
	}
	after := shogi.ApplyMove(b, m)
	if shogi.IsInCheck(&after[shogi.TierBoard], shogi.Black) {
		t.Fatal("king moved off the file but is still in check")
	}
	if _, err := shogi.FindLegal(b, shogi.Black, "5i5h"); err == nil {
		t.Fatal("moving along the checking file should be illegal")
	}
}

// TestIsInCheck_Blocked verifies a blocking piece stops a sliding check.
func TestIsInCheck_Blocked(t *testing.T) {
	b, _ := mustSFEN(t, "4r3k/9/9/9/4P4/9/9/9/4K4 b - 1")
	if shogi.IsInCheck(&b[shogi.TierBoard], shogi.Black) {
		t.Fatal("pawn on the file should block the rook")
	}
}

// TestIsInCheck_KnightJump verifies knights attack over intervening pieces.
func TestIsInCheck_KnightJump(t *testing.T) {
	b, _ := mustSFEN(t, "8k/9/9/9/9/9/3n5/3PPP3/4K4 b - 1")
	if !shogi.IsInCheck(&b[shogi.TierBoard], shogi.Black) {
		t.Fatal("knight two ranks ahead should give check")
	}
}

// TestIsInCheck_MissingKing verifies a missing king panics with an invariant violation.
func TestIsInCheck_MissingKing(t *testing.T) {
	var b shogi.Boards
	defer func() {
		r := recover()
		v, ok := r.(*shogi.InvariantViolation)
		if !ok {
			t.Fatalf("expected *InvariantViolation panic, got %v", r)
		}
		if !errors.Is(v, shogi.ErrInvariantViolation) {
			t.Fatalf("violation does not wrap ErrInvariantViolation: %v", v)
		}
	}()
	shogi.IsInCheck(&b[shogi.TierBoard], shogi.Black)
}

// TestGenerateLegalMoves_PinnedPiece verifies moves exposing the own king are removed.
func TestGenerateLegalMoves_PinnedPiece(t *testing.T) {
	b, turn := mustSFEN(t, "4r3k/9/9/9/9/9/9/4G4/4K4 b - 1")
	pseudo := shogi.GenerateMoves(&b, turn)
	if !containsUSI(pseudo, "5h4h") {
		t.Fatal("pseudo-legal set should contain the sideways gold move")
	}
	legal := shogi.GenerateLegalMoves(b, turn)
	if containsUSI(legal, "5h4h") {
		t.Fatal("pinned gold must not leave the file")
	}
	if !containsUSI(legal, "5h5g") {
		t.Fatal("pinned gold may advance along the pin")
	}
}

// TestGenerateLegalMoves_DropPawnMate verifies a mating pawn drop is excluded
// while the unfiltered drop range still contains it.
func TestGenerateLegalMoves_DropPawnMate(t *testing.T) {
	b, turn := mustSFEN(t, "7lk/7p1/8G/9/9/9/9/9/K8 b P 1")
	pseudo := shogi.GenerateMoves(&b, turn)
	var drop shogi.Move
	found := false
	for _, m := range pseudo {
		if m.USI() == "P*1b" {
			drop, found = m, true
		}
	}
	if !found {
		t.Fatal("drop range should contain P*1b")
	}
	after := shogi.ApplyMove(b, drop)
	if !shogi.IsCheckmate(after, shogi.White) {
		t.Fatal("P*1b should mate the white king")
	}
	legal := shogi.GenerateLegalMoves(b, turn)
	if containsUSI(legal, "P*1b") {
		t.Fatal("drop-pawn-mate must not be legal")
	}
	if !containsUSI(legal, "P*5e") {
		t.Fatal("ordinary pawn drops should remain legal")
	}
}

// TestGenerateLegalMoves_Nifu verifies no legal drop puts two unpromoted pawns on a file.
func TestGenerateLegalMoves_Nifu(t *testing.T) {
	b, turn := mustSFEN(t, "lnsgk1snl/1r4gb1/p1ppppp1p/7R1/1p7/9/PPPPPPP1P/1BG6/LNS1KGSNL w Pp 10")
	for _, m := range shogi.GenerateLegalMoves(b, turn) {
		if !m.IsDrop() {
			continue
		}
		after := shogi.ApplyMove(b, m)
		for x := 0; x < shogi.BoardSize; x++ {
			pawns := 0
			for y := 0; y < shogi.BoardSize; y++ {
				if after[shogi.TierBoard].At(x, y) == shogi.NewPiece(shogi.Pawn, turn) {
					pawns++
				}
			}
			if pawns > 1 {
				t.Fatalf("drop %s leaves %d pawns on file %d", m.USI(), pawns, x+1)
			}
		}
	}
	legal := shogi.GenerateLegalMoves(b, turn)
	if !containsUSI(legal, "P*2c") {
		t.Fatal("white may drop a pawn on the emptied second file")
	}
	if containsUSI(legal, "P*5e") {
		t.Fatal("white already has a pawn on the fifth file")
	}
}

// TestCreateMoveRange_Promotion verifies promotion variants appear only near the far ranks.
func TestCreateMoveRange_Promotion(t *testing.T) {
	b, _ := mustSFEN(t, "8k/9/9/4P4/9/9/9/9/K8 b - 1")
	from := shogi.NewPosition(4, 5, shogi.TierBoard)
	moves := shogi.CreateMoveRange(b.At(from), from, &b[shogi.TierBoard])
	if len(moves) != 2 || moves[0].Promote || !moves[1].Promote {
		t.Fatalf("expected plain and promoting pawn push, got %v", moves)
	}
	from = shogi.NewPosition(8, 0, shogi.TierBoard)
	for _, m := range shogi.CreateMoveRange(b.At(from), from, &b[shogi.TierBoard]) {
		if m.Promote {
			t.Fatalf("king move %v must not promote", m)
		}
	}
}

// TestCreateMoveRange_SlidingStops verifies sliders stop at own pieces and include captures.
func TestCreateMoveRange_SlidingStops(t *testing.T) {
	b, _ := mustSFEN(t, "8k/9/9/9/9/9/9/9/K2R2p2 b - 1")
	from := shogi.NewPosition(5, 0, shogi.TierBoard)
	moves := shogi.CreateMoveRange(b.At(from), from, &b[shogi.TierBoard])
	var horizontal []string
	for _, m := range moves {
		if m.To.Y == 0 {
			horizontal = append(horizontal, m.USI())
		}
	}
	want := []string{"6i5i", "6i4i", "6i3i", "6i7i", "6i8i"}
	if len(horizontal) != len(want) {
		t.Fatalf("horizontal rook moves: got %v want %v", horizontal, want)
	}
	for i := range want {
		if horizontal[i] != want[i] {
			t.Fatalf("horizontal rook moves: got %v want %v", horizontal, want)
		}
	}
}

// TestIsCheckmate_RookMate verifies a back-rank rook mate and a non-mate.
func TestIsCheckmate_RookMate(t *testing.T) {
	b, _ := mustSFEN(t, "R7k/9/8K/9/9/9/9/9/9 w - 1")
	if !shogi.IsCheckmate(b, shogi.White) {
		t.Fatal("white should be mated")
	}
	b, _ = mustSFEN(t, "8k/9/8K/R8/9/9/9/9/9 w - 1")
	if shogi.IsCheckmate(b, shogi.White) {
		t.Fatal("white is not in check yet and has moves")
	}
}

// TestGenerateLegalMoves_ParallelViolation verifies a violation raised while
// filtering on worker goroutines reaches the caller as the same panic.
func TestGenerateLegalMoves_ParallelViolation(t *testing.T) {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(4))
	b, turn := mustSFEN(t, "lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSG1GSNL b - 1")
	if n := len(shogi.GenerateMoves(&b, turn)); n < 24 {
		t.Fatalf("position should have enough candidates to filter in parallel, got %d", n)
	}
	defer func() {
		v, ok := recover().(*shogi.InvariantViolation)
		if !ok || !errors.Is(v, shogi.ErrInvariantViolation) {
			t.Fatalf("expected *InvariantViolation on the caller, got %v", v)
		}
	}()
	shogi.GenerateLegalMoves(b, turn)
	t.Fatal("expected a panic for the missing king")
}

// TestGenerateLegalMoves_ParallelMatchesInline verifies worker filtering keeps
// the same moves in the same order as the single goroutine path.
func TestGenerateLegalMoves_ParallelMatchesInline(t *testing.T) {
	b, turn := shogi.NewInitialBoards(), shogi.Black
	prev := runtime.GOMAXPROCS(1)
	inline := shogi.GenerateLegalMoves(b, turn)
	runtime.GOMAXPROCS(4)
	parallel := shogi.GenerateLegalMoves(b, turn)
	runtime.GOMAXPROCS(prev)
	if len(inline) < 24 || !reflect.DeepEqual(inline, parallel) {
		t.Fatalf("parallel filtering diverged: %d inline, %d parallel", len(inline), len(parallel))
	}
}
