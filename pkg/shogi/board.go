package shogi

var backRank = [BoardSize]PieceType{Lance, Knight, Silver, Gold, King, Gold, Silver, Knight, Lance}

// NewInitialBoards returns the standard opening with Black on rows 0..2 and
// an empty pool.
func NewInitialBoards() Boards {
	var b Boards
	board := &b[TierBoard]
	for x := 0; x < BoardSize; x++ {
		board[0][x] = Piece{Type: backRank[x], Color: Black}
		board[2][x] = Piece{Type: Pawn, Color: Black}
		board[8][x] = Piece{Type: backRank[x], Color: White}
		board[6][x] = Piece{Type: Pawn, Color: White}
	}
	board[1][1] = Piece{Type: Rook, Color: Black}
	board[1][7] = Piece{Type: Bishop, Color: Black}
	board[7][7] = Piece{Type: Rook, Color: White}
	board[7][1] = Piece{Type: Bishop, Color: White}
	return b
}

// ApplyMove returns the position after m. The argument is passed by value
// and is never modified.
func ApplyMove(b Boards, m Move) Boards {
	if !m.From.IsValid() || !m.To.IsValid() || m.To.Tier != TierBoard {
		violate("malformed move %v", m)
	}
	piece := b.At(m.From)
	if piece.IsEmpty() {
		violate("no piece at %v", m.From)
	}
	if m.IsDrop() {
		if !b.At(m.To).IsEmpty() {
			violate("drop onto occupied square %v", m.To)
		}
		b.set(m.From, Piece{})
		b.set(m.To, piece)
		return b
	}
	if target := b.At(m.To); !target.IsEmpty() {
		if target.Color == piece.Color {
			violate("capture of own piece at %v", m.To)
		}
		if target.Type == King {
			violate("capture of %v king", target.Color)
		}
		addToPool(&b, Piece{Type: target.Type.Base(), Color: piece.Color})
	}
	if m.Promote {
		piece.Type = piece.Type.Promoted()
	}
	b.set(m.From, Piece{})
	b.set(m.To, piece)
	return b
}

// KingPosition locates c's king on the board.
func (b *Boards) KingPosition(c Color) (Position, bool) {
	return findKing(&b[TierBoard], c)
}
