package shogi

import (
	"fmt"
	"strings"
)

// SquareUSI formats a board square as file digit plus rank letter.
func SquareUSI(p Position) string {
	return fmt.Sprintf("%d%c", p.X+1, byte('a'+BoardSize-1-p.Y))
}

func parseUSISquare(text string) (Position, error) {
	if len(text) != 2 {
		return Position{}, fmt.Errorf("invalid square: %s", text)
	}
	file := int(text[0] - '0')
	if file < 1 || file > BoardSize {
		return Position{}, fmt.Errorf("invalid file: %s", text)
	}
	rank := int(text[1]-'a') + 1
	if rank < 1 || rank > BoardSize {
		return Position{}, fmt.Errorf("invalid rank: %s", text)
	}
	return Position{X: file - 1, Y: BoardSize - rank, Tier: TierBoard}, nil
}

// poolType returns the base type stored in pool slot p.
func poolType(p Position) PieceType {
	k := p.Y*BoardSize + p.X
	for _, r := range poolRegions {
		if k >= r.Start && k < r.Start+r.Size {
			return r.Type
		}
	}
	return NoPiece
}

// USI renders m in USI notation, e.g. "7g7f", "2d2b+" or "P*5e".
func (m Move) USI() string {
	if m.IsDrop() {
		return fmt.Sprintf("%c*%s", sfenLetters[poolType(m.From)], SquareUSI(m.To))
	}
	s := SquareUSI(m.From) + SquareUSI(m.To)
	if m.Promote {
		s += "+"
	}
	return s
}

// ParseUSIMove resolves text against b for the side turn. Drops pick the
// representative pool slot. Legality is not checked.
func ParseUSIMove(b *Boards, turn Color, text string) (Move, error) {
	if head, tail, ok := strings.Cut(text, "*"); ok {
		if len(head) != 1 {
			return Move{}, fmt.Errorf("invalid drop move: %s", text)
		}
		t, found := sfenType(strings.ToUpper(head)[0])
		if !found || t == King {
			return Move{}, fmt.Errorf("invalid drop piece: %s", text)
		}
		to, err := parseUSISquare(tail)
		if err != nil {
			return Move{}, err
		}
		slot, found := poolRepresentative(b, t, turn)
		if !found {
			return Move{}, fmt.Errorf("no %c in %v hand", sfenLetters[t], turn)
		}
		return Move{From: slot, To: to}, nil
	}
	if len(text) < 4 || len(text) > 5 {
		return Move{}, fmt.Errorf("invalid move: %s", text)
	}
	from, err := parseUSISquare(text[0:2])
	if err != nil {
		return Move{}, err
	}
	to, err := parseUSISquare(text[2:4])
	if err != nil {
		return Move{}, err
	}
	promote := false
	if len(text) == 5 {
		if text[4] != '+' {
			return Move{}, fmt.Errorf("invalid promotion marker: %s", text)
		}
		promote = true
	}
	piece := b.At(from)
	if piece.IsEmpty() {
		return Move{}, fmt.Errorf("no piece at %s", text[0:2])
	}
	if piece.Color != turn {
		return Move{}, fmt.Errorf("%s moves a %v piece on %v's turn", text, piece.Color, turn)
	}
	return Move{From: from, To: to, Promote: promote}, nil
}

// FindLegal parses text and returns it only if it is a legal move of turn.
func FindLegal(b Boards, turn Color, text string) (Move, error) {
	m, err := ParseUSIMove(&b, turn, text)
	if err != nil {
		return Move{}, err
	}
	for _, legal := range GenerateLegalMoves(b, turn) {
		if legal == m {
			return m, nil
		}
	}
	return Move{}, fmt.Errorf("illegal move %s", text)
}
