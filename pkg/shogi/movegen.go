package shogi

// GenerateMoves enumerates every candidate move of c before legality
// filtering: board moves in row-major order, then one drop range per pool
// group. The order is stable and later "first match" rules depend on it.
func GenerateMoves(b *Boards, c Color) []Move {
	var moves []Move
	board := &b[TierBoard]
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			piece := board[y][x]
			if piece.IsEmpty() || piece.Color != c {
				continue
			}
			moves = append(moves, CreateMoveRange(piece, Position{X: x, Y: y, Tier: TierBoard}, board)...)
		}
	}
	for _, r := range poolRegions {
		slot, ok := poolRepresentative(b, r.Type, c)
		if !ok {
			continue
		}
		moves = append(moves, CreatePutRange(b.At(slot), slot, board)...)
	}
	return moves
}

// IsInCheck reports whether any opposing piece can reach c's king.
// It panics with *InvariantViolation when c has no king on the board.
func IsInCheck(board *Board, c Color) bool {
	king, ok := findKing(board, c)
	if !ok {
		violate("%v king is missing", c)
	}
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			piece := board[y][x]
			if piece.IsEmpty() || piece.Color == c {
				continue
			}
			if CanCaptureKing(piece, Position{X: x, Y: y, Tier: TierBoard}, board, king) {
				return true
			}
		}
	}
	return false
}

func findKing(board *Board, c Color) (Position, bool) {
	want := Piece{Type: King, Color: c}
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			if board[y][x] == want {
				return Position{X: x, Y: y, Tier: TierBoard}, true
			}
		}
	}
	return Position{}, false
}

// IsCheckmate reports whether c has no move that leaves its own king out of
// check. Drop-pawn-mate is not considered here.
func IsCheckmate(b Boards, c Color) bool {
	for _, m := range GenerateMoves(&b, c) {
		after := ApplyMove(b, m)
		if !IsInCheck(&after[TierBoard], c) {
			return false
		}
	}
	return true
}

// GenerateLegalMoves returns the legal moves of c in generation order.
func GenerateLegalMoves(b Boards, c Color) []Move {
	moves, _ := LegalSuccessors(b, c)
	return moves
}

// LegalSuccessors returns the legal moves of c together with the position each
// one produces. Candidates are checked concurrently against the same snapshot.
func LegalSuccessors(b Boards, c Color) ([]Move, []Boards) {
	return filterMoves(GenerateMoves(&b, c), func(m Move) (Boards, bool) {
		return legalResult(b, m, c)
	})
}

// legalResult applies m and rejects it if the mover stays in check, or if it
// is a pawn drop that mates the opponent.
func legalResult(b Boards, m Move, c Color) (Boards, bool) {
	after := ApplyMove(b, m)
	if IsInCheck(&after[TierBoard], c) {
		return after, false
	}
	if m.IsDrop() && b.At(m.From).Type == Pawn && IsCheckmate(after, c.Opponent()) {
		return after, false
	}
	return after, true
}
