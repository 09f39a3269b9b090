package shogi

import "fmt"

const (
	BoardSize = 9

	TierBoard = 0
	TierPool  = 1
)

type Color int8

const (
	Black Color = iota
	White
)

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == Black {
		return White
	}
	return Black
}

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// ParseColor accepts "black"/"b" and "white"/"w".
func ParseColor(s string) (Color, error) {
	switch s {
	case "black", "b":
		return Black, nil
	case "white", "w":
		return White, nil
	default:
		return Black, fmt.Errorf("shogi: unknown color %q", s)
	}
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

type PieceType int8

const (
	NoPiece PieceType = iota
	King
	Rook
	Bishop
	Gold
	Silver
	Knight
	Lance
	Pawn
	Dragon
	Horse
	PromotedSilver
	PromotedKnight
	PromotedLance
	PromotedPawn
)

// NumPieceTypes is the number of real piece types (NoPiece excluded).
const NumPieceTypes = 14

var pieceNames = [...]string{
	NoPiece:        "・",
	King:           "玉",
	Rook:           "飛",
	Bishop:         "角",
	Gold:           "金",
	Silver:         "銀",
	Knight:         "桂",
	Lance:          "香",
	Pawn:           "歩",
	Dragon:         "龍",
	Horse:          "馬",
	PromotedSilver: "全",
	PromotedKnight: "圭",
	PromotedLance:  "杏",
	PromotedPawn:   "と",
}

func (t PieceType) String() string {
	if t < 0 || int(t) >= len(pieceNames) {
		return fmt.Sprintf("PieceType(%d)", int8(t))
	}
	return pieceNames[t]
}

// Promotable reports whether t has a promoted form and is not promoted yet.
func (t PieceType) Promotable() bool {
	switch t {
	case Rook, Bishop, Silver, Knight, Lance, Pawn:
		return true
	default:
		return false
	}
}

// Promoted returns the promoted form of t, or t itself.
func (t PieceType) Promoted() PieceType {
	switch t {
	case Rook:
		return Dragon
	case Bishop:
		return Horse
	case Silver:
		return PromotedSilver
	case Knight:
		return PromotedKnight
	case Lance:
		return PromotedLance
	case Pawn:
		return PromotedPawn
	default:
		return t
	}
}

// Base returns the unpromoted form of t.
func (t PieceType) Base() PieceType {
	switch t {
	case Dragon:
		return Rook
	case Horse:
		return Bishop
	case PromotedSilver:
		return Silver
	case PromotedKnight:
		return Knight
	case PromotedLance:
		return Lance
	case PromotedPawn:
		return Pawn
	default:
		return t
	}
}

// Piece is a comparable value; the zero value is an empty square.
type Piece struct {
	Type  PieceType
	Color Color
}

func NewPiece(t PieceType, c Color) Piece {
	return Piece{Type: t, Color: c}
}

func (p Piece) IsEmpty() bool {
	return p.Type == NoPiece
}

func (p Piece) String() string {
	if p.IsEmpty() {
		return " ・"
	}
	if p.Color == White {
		return "v" + p.Type.String()
	}
	return " " + p.Type.String()
}

// Position addresses a square on the board (tier 0) or a pool slot (tier 1).
type Position struct {
	X    int
	Y    int
	Tier int
}

func NewPosition(x, y, tier int) Position {
	return Position{X: x, Y: y, Tier: tier}
}

func (p Position) IsValid() bool {
	return p.X >= 0 && p.X < BoardSize && p.Y >= 0 && p.Y < BoardSize &&
		(p.Tier == TierBoard || p.Tier == TierPool)
}

// Board is indexed as board[y][x].
type Board [BoardSize][BoardSize]Piece

func (b *Board) At(x, y int) Piece {
	return b[y][x]
}

// Boards is the full game position: the playing board and the pool grid.
// It is a plain array, so assignment copies it and == compares positions.
type Boards [2]Board

func (b *Boards) At(p Position) Piece {
	return b[p.Tier][p.Y][p.X]
}

func (b *Boards) set(p Position, piece Piece) {
	b[p.Tier][p.Y][p.X] = piece
}

type Move struct {
	From    Position
	To      Position
	Promote bool
}

// IsDrop reports whether the move places a piece from the pool.
func (m Move) IsDrop() bool {
	return m.From.Tier == TierPool
}

func (m Move) String() string {
	if m.IsDrop() {
		return fmt.Sprintf("drop(%d,%d)->(%d,%d)", m.From.X, m.From.Y, m.To.X, m.To.Y)
	}
	s := fmt.Sprintf("(%d,%d)->(%d,%d)", m.From.X, m.From.Y, m.To.X, m.To.Y)
	if m.Promote {
		s += "+"
	}
	return s
}

// inPromotionZone reports whether row y is among the far three ranks for c.
func inPromotionZone(c Color, y int) bool {
	if c == Black {
		return y >= BoardSize-3
	}
	return y <= 2
}
