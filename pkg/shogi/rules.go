package shogi

// Vector is one movement direction. Slide vectors repeat until blocked.
type Vector struct {
	DX    int
	DY    int
	Slide bool
}

var (
	kingVectors = []Vector{
		{-1, -1, false}, {-1, 0, false}, {-1, 1, false}, {0, -1, false},
		{0, 1, false}, {1, -1, false}, {1, 0, false}, {1, 1, false},
	}
	rookVectors = []Vector{
		{-1, 0, true}, {0, -1, true}, {0, 1, true}, {1, 0, true},
	}
	bishopVectors = []Vector{
		{-1, -1, true}, {-1, 1, true}, {1, -1, true}, {1, 1, true},
	}
	dragonVectors = []Vector{
		{-1, 0, true}, {-1, -1, false}, {-1, 1, false}, {0, -1, true},
		{0, 1, true}, {1, -1, false}, {1, 1, false}, {1, 0, true},
	}
	horseVectors = []Vector{
		{-1, -1, true}, {-1, 1, true}, {-1, 0, false}, {0, -1, false},
		{0, 1, false}, {1, 0, false}, {1, -1, true}, {1, 1, true},
	}
)

// moveTable[color][type]. Black advances toward +y, White toward -y.
var moveTable = [2][NumPieceTypes + 1][]Vector{
	Black: {
		King:           kingVectors,
		Rook:           rookVectors,
		Bishop:         bishopVectors,
		Gold:           {{-1, 0, false}, {-1, 1, false}, {0, -1, false}, {0, 1, false}, {1, 0, false}, {1, 1, false}},
		Silver:         {{-1, -1, false}, {-1, 1, false}, {0, 1, false}, {1, -1, false}, {1, 1, false}},
		Knight:         {{-1, 2, false}, {1, 2, false}},
		Lance:          {{0, 1, true}},
		Pawn:           {{0, 1, false}},
		Dragon:         dragonVectors,
		Horse:          horseVectors,
		PromotedSilver: {{-1, 0, false}, {-1, 1, false}, {0, -1, false}, {0, 1, false}, {1, 0, false}, {1, 1, false}},
		PromotedKnight: {{-1, 0, false}, {-1, 1, false}, {0, -1, false}, {0, 1, false}, {1, 0, false}, {1, 1, false}},
		PromotedLance:  {{-1, 0, false}, {-1, 1, false}, {0, -1, false}, {0, 1, false}, {1, 0, false}, {1, 1, false}},
		PromotedPawn:   {{-1, 0, false}, {-1, 1, false}, {0, -1, false}, {0, 1, false}, {1, 0, false}, {1, 1, false}},
	},
	White: {
		King:           kingVectors,
		Rook:           rookVectors,
		Bishop:         bishopVectors,
		Gold:           {{-1, -1, false}, {-1, 0, false}, {0, -1, false}, {0, 1, false}, {1, -1, false}, {1, 0, false}},
		Silver:         {{-1, -1, false}, {-1, 1, false}, {0, -1, false}, {1, -1, false}, {1, 1, false}},
		Knight:         {{-1, -2, false}, {1, -2, false}},
		Lance:          {{0, -1, true}},
		Pawn:           {{0, -1, false}},
		Dragon:         dragonVectors,
		Horse:          horseVectors,
		PromotedSilver: {{-1, -1, false}, {-1, 0, false}, {0, -1, false}, {0, 1, false}, {1, -1, false}, {1, 0, false}},
		PromotedKnight: {{-1, -1, false}, {-1, 0, false}, {0, -1, false}, {0, 1, false}, {1, -1, false}, {1, 0, false}},
		PromotedLance:  {{-1, -1, false}, {-1, 0, false}, {0, -1, false}, {0, 1, false}, {1, -1, false}, {1, 0, false}},
		PromotedPawn:   {{-1, -1, false}, {-1, 0, false}, {0, -1, false}, {0, 1, false}, {1, -1, false}, {1, 0, false}},
	},
}

// MoveVectors returns the direction table for a piece type and color.
// The returned slice is shared and must not be modified.
func MoveVectors(t PieceType, c Color) []Vector {
	if t <= NoPiece || t > PromotedPawn || (c != Black && c != White) {
		return nil
	}
	return moveTable[c][t]
}

func onBoard(x, y int) bool {
	return x >= 0 && x < BoardSize && y >= 0 && y < BoardSize
}

// eachDestination calls fn for every square piece can reach from (x, y).
// Iteration stops early when fn returns false.
func eachDestination(piece Piece, x, y int, board *Board, fn func(tx, ty int) bool) {
	for _, v := range MoveVectors(piece.Type, piece.Color) {
		tx, ty := x+v.DX, y+v.DY
		for onBoard(tx, ty) {
			target := board[ty][tx]
			if !target.IsEmpty() && target.Color == piece.Color {
				break
			}
			if !fn(tx, ty) {
				return
			}
			if !target.IsEmpty() || !v.Slide {
				break
			}
			tx += v.DX
			ty += v.DY
		}
	}
}

// CreateMoveRange lists every board move of piece standing at from,
// including the promoting variant where promotion is allowed.
func CreateMoveRange(piece Piece, from Position, board *Board) []Move {
	var moves []Move
	promotable := piece.Type.Promotable()
	fromZone := inPromotionZone(piece.Color, from.Y)
	eachDestination(piece, from.X, from.Y, board, func(tx, ty int) bool {
		to := Position{X: tx, Y: ty, Tier: TierBoard}
		moves = append(moves, Move{From: from, To: to})
		if promotable && (fromZone || inPromotionZone(piece.Color, ty)) {
			moves = append(moves, Move{From: from, To: to, Promote: true})
		}
		return true
	})
	return moves
}

// CreatePutRange lists every drop of the pool piece at slot onto an empty
// square. Pawn drops onto a file that already holds an unpromoted pawn of the
// same color are left out.
func CreatePutRange(piece Piece, slot Position, board *Board) []Move {
	var blockedFiles [BoardSize]bool
	if piece.Type == Pawn {
		for y := 0; y < BoardSize; y++ {
			for x := 0; x < BoardSize; x++ {
				if board[y][x] == piece {
					blockedFiles[x] = true
				}
			}
		}
	}
	var moves []Move
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			if !board[y][x].IsEmpty() || blockedFiles[x] {
				continue
			}
			moves = append(moves, Move{From: slot, To: Position{X: x, Y: y, Tier: TierBoard}})
		}
	}
	return moves
}

// CanCaptureKing reports whether kingPos lies in the move range of piece at from.
func CanCaptureKing(piece Piece, from Position, board *Board, kingPos Position) bool {
	hit := false
	eachDestination(piece, from.X, from.Y, board, func(tx, ty int) bool {
		if tx == kingPos.X && ty == kingPos.Y {
			hit = true
			return false
		}
		return true
	})
	return hit
}
