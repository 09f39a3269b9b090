package shogi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// StandardSFEN is the even-game starting position.
const StandardSFEN = "lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSGKGSNL b - 1"

var sfenLetters = map[PieceType]byte{
	King:   'K',
	Rook:   'R',
	Bishop: 'B',
	Gold:   'G',
	Silver: 'S',
	Knight: 'N',
	Lance:  'L',
	Pawn:   'P',
}

func sfenType(r byte) (PieceType, bool) {
	for t, letter := range sfenLetters {
		if letter == r {
			return t, true
		}
	}
	return NoPiece, false
}

func pieceSFEN(p Piece) string {
	text := string(sfenLetters[p.Type.Base()])
	if p.Type != p.Type.Base() {
		text = "+" + text
	}
	if p.Color == White {
		text = strings.ToLower(text)
	}
	return text
}

// SFEN renders b with the side to move and move number.
func SFEN(b *Boards, turn Color, moveNumber int) string {
	rows := make([]string, 0, BoardSize)
	for rank := 1; rank <= BoardSize; rank++ {
		rows = append(rows, rankSFEN(&b[TierBoard], BoardSize-rank))
	}
	side := "b"
	if turn == White {
		side = "w"
	}
	hand := handSFEN(b)
	if hand == "" {
		hand = "-"
	}
	return fmt.Sprintf("%s %s %s %d", strings.Join(rows, "/"), side, hand, moveNumber)
}

func rankSFEN(board *Board, y int) string {
	var sb strings.Builder
	empty := 0
	for x := BoardSize - 1; x >= 0; x-- {
		piece := board[y][x]
		if piece.IsEmpty() {
			empty++
			continue
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
			empty = 0
		}
		sb.WriteString(pieceSFEN(piece))
	}
	if empty > 0 {
		sb.WriteString(strconv.Itoa(empty))
	}
	return sb.String()
}

func handSFEN(b *Boards) string {
	var sb strings.Builder
	for _, c := range [...]Color{Black, White} {
		for _, t := range HandOrder {
			n := b.HandCount(t, c)
			if n == 0 {
				continue
			}
			if n > 1 {
				sb.WriteString(strconv.Itoa(n))
			}
			sb.WriteString(pieceSFEN(Piece{Type: t, Color: c}))
		}
	}
	return sb.String()
}

// ParseSFEN reads a position. The move number defaults to 1 when absent.
func ParseSFEN(sfen string) (Boards, Color, int, error) {
	var b Boards
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(sfen), "sfen "))
	if len(fields) < 3 {
		return b, Black, 0, fmt.Errorf("invalid sfen: %s", sfen)
	}
	var turn Color
	switch fields[1] {
	case "b":
		turn = Black
	case "w":
		turn = White
	default:
		return b, Black, 0, fmt.Errorf("invalid side to move %q", fields[1])
	}
	if err := parseBoardSFEN(fields[0], &b); err != nil {
		return b, turn, 0, err
	}
	if err := parseHandSFEN(fields[2], &b); err != nil {
		return b, turn, 0, err
	}
	moveNumber := 1
	if len(fields) > 3 {
		n, err := strconv.Atoi(fields[3])
		if err != nil {
			return b, turn, 0, fmt.Errorf("invalid move number %q: %w", fields[3], err)
		}
		moveNumber = n
	}
	return b, turn, moveNumber, nil
}

func parseBoardSFEN(text string, b *Boards) error {
	ranks := strings.Split(text, "/")
	if len(ranks) != BoardSize {
		return fmt.Errorf("invalid board ranks: %d", len(ranks))
	}
	for i, rankText := range ranks {
		y := BoardSize - 1 - i
		x := BoardSize - 1
		for j := 0; j < len(rankText); j++ {
			r := rankText[j]
			if r >= '1' && r <= '9' {
				x -= int(r - '0')
				continue
			}
			promoted := false
			if r == '+' {
				promoted = true
				j++
				if j >= len(rankText) {
					return errors.New("dangling promotion marker")
				}
				r = rankText[j]
			}
			color := Black
			if r >= 'a' && r <= 'z' {
				color = White
				r -= 'a' - 'A'
			}
			t, ok := sfenType(r)
			if !ok {
				return fmt.Errorf("unknown sfen piece %c", r)
			}
			if promoted {
				if !t.Promotable() {
					return fmt.Errorf("piece %c cannot be promoted", r)
				}
				t = t.Promoted()
			}
			if x < 0 {
				return fmt.Errorf("rank %d has too many files", i+1)
			}
			b[TierBoard][y][x] = Piece{Type: t, Color: color}
			x--
		}
		if x != -1 {
			return fmt.Errorf("rank %d does not have 9 files", i+1)
		}
	}
	return nil
}

func parseHandSFEN(text string, b *Boards) error {
	if text == "-" {
		return nil
	}
	count := 0
	for i := 0; i < len(text); i++ {
		r := text[i]
		if r >= '0' && r <= '9' {
			count = count*10 + int(r-'0')
			continue
		}
		if count == 0 {
			count = 1
		}
		color := Black
		if r >= 'a' && r <= 'z' {
			color = White
			r -= 'a' - 'A'
		}
		t, ok := sfenType(r)
		if !ok || t == King {
			return fmt.Errorf("unknown hand piece %c", r)
		}
		for ; count > 0; count-- {
			if _, ok := freeSlot(b, t, color); !ok {
				return fmt.Errorf("too many %c in hand", r)
			}
			addToPool(b, Piece{Type: t, Color: color})
		}
	}
	if count != 0 {
		return errors.New("trailing hand count")
	}
	return nil
}
