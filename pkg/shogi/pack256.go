package shogi

import "fmt"

// Packed256 is a full 40-piece position in exactly 256 bits.
type Packed256 struct {
	Words [4]uint64
}

type huffCode struct {
	Type PieceType
	Bits uint64
	Len  int
}

// Board codes; NoPiece marks an empty square.
var boardCodes = []huffCode{
	{NoPiece, 0b0, 1},
	{Pawn, 0b01, 2},
	{Lance, 0b0011, 4},
	{Knight, 0b1011, 4},
	{Silver, 0b0111, 4},
	{Gold, 0b01111, 5},
	{Bishop, 0b011111, 6},
	{Rook, 0b111111, 6},
}

// Hand codes drop the leading empty-square bit of the board codes.
var handCodes = []huffCode{
	{Pawn, 0b0, 1},
	{Lance, 0b001, 3},
	{Knight, 0b101, 3},
	{Silver, 0b011, 3},
	{Gold, 0b0111, 4},
	{Bishop, 0b01111, 5},
	{Rook, 0b11111, 5},
}

var packHandOrder = [...]PieceType{Pawn, Lance, Knight, Silver, Gold, Bishop, Rook}

type bitStream struct {
	words [4]uint64
	pos   int
}

func (s *bitStream) put(value uint64, n int) error {
	for i := 0; i < n; i++ {
		if s.pos >= 256 {
			return fmt.Errorf("pack256: bitstream overflow")
		}
		if (value>>i)&1 != 0 {
			s.words[s.pos/64] |= 1 << uint(s.pos%64)
		}
		s.pos++
	}
	return nil
}

func (s *bitStream) get(n int) (uint64, error) {
	var value uint64
	for i := 0; i < n; i++ {
		if s.pos >= 256 {
			return 0, fmt.Errorf("pack256: bitstream underflow")
		}
		bit := (s.words[s.pos/64] >> uint(s.pos%64)) & 1
		value |= bit << i
		s.pos++
	}
	return value, nil
}

func (s *bitStream) putCode(codes []huffCode, t PieceType) error {
	for _, c := range codes {
		if c.Type == t {
			return s.put(c.Bits, c.Len)
		}
	}
	return fmt.Errorf("pack256: no code for %v", t)
}

func (s *bitStream) getCode(codes []huffCode) (PieceType, error) {
	var value uint64
	for n := 1; n <= 6; n++ {
		bit, err := s.get(1)
		if err != nil {
			return NoPiece, err
		}
		value |= bit << (n - 1)
		for _, c := range codes {
			if c.Len == n && c.Bits == value {
				return c.Type, nil
			}
		}
	}
	return NoPiece, fmt.Errorf("pack256: invalid code at bit %d", s.pos)
}

func colorBit(c Color) uint64 {
	if c == White {
		return 1
	}
	return 0
}

// Pack256 encodes b with turn. Every one of the 40 pieces must be present,
// on the board or in the pool.
func Pack256(b *Boards, turn Color) (Packed256, error) {
	s := &bitStream{}
	if err := s.put(colorBit(turn), 1); err != nil {
		return Packed256{}, err
	}
	blackKing, ok := b.KingPosition(Black)
	if !ok {
		return Packed256{}, fmt.Errorf("pack256: black king missing")
	}
	whiteKing, ok := b.KingPosition(White)
	if !ok {
		return Packed256{}, fmt.Errorf("pack256: white king missing")
	}
	if err := s.put(uint64(blackKing.Y*BoardSize+blackKing.X), 7); err != nil {
		return Packed256{}, err
	}
	if err := s.put(uint64(whiteKing.Y*BoardSize+whiteKing.X), 7); err != nil {
		return Packed256{}, err
	}

	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			piece := b[TierBoard][y][x]
			if piece.Type == King {
				continue
			}
			if err := s.putCode(boardCodes, piece.Type.Base()); err != nil {
				return Packed256{}, err
			}
			if piece.IsEmpty() {
				continue
			}
			if err := s.put(colorBit(piece.Color), 1); err != nil {
				return Packed256{}, err
			}
			if piece.Type.Base() != Gold {
				promoted := uint64(0)
				if piece.Type != piece.Type.Base() {
					promoted = 1
				}
				if err := s.put(promoted, 1); err != nil {
					return Packed256{}, err
				}
			}
		}
	}

	for _, c := range [...]Color{Black, White} {
		for _, t := range packHandOrder {
			for i := b.HandCount(t, c); i > 0; i-- {
				if err := s.putCode(handCodes, t); err != nil {
					return Packed256{}, err
				}
				if err := s.put(colorBit(c), 1); err != nil {
					return Packed256{}, err
				}
				if t != Gold {
					if err := s.put(0, 1); err != nil {
						return Packed256{}, err
					}
				}
			}
		}
	}

	if s.pos != 256 {
		return Packed256{}, fmt.Errorf("pack256: packed length is %d bits, expected 256", s.pos)
	}
	return Packed256{Words: s.words}, nil
}

// Unpack256 decodes p. Pool pieces are placed in fill order, so the pool
// layout may differ from the packed source while holding the same counts.
func Unpack256(p Packed256) (Boards, Color, error) {
	s := &bitStream{words: p.Words}
	var b Boards
	turnBit, err := s.get(1)
	if err != nil {
		return b, Black, err
	}
	turn := Black
	if turnBit == 1 {
		turn = White
	}

	kings := [2]int{}
	for i := range kings {
		sq, err := s.get(7)
		if err != nil {
			return b, turn, err
		}
		if sq >= BoardSize*BoardSize {
			return b, turn, fmt.Errorf("pack256: king square %d out of range", sq)
		}
		kings[i] = int(sq)
	}
	if kings[0] == kings[1] {
		return b, turn, fmt.Errorf("pack256: kings share square %d", kings[0])
	}
	b[TierBoard][kings[0]/BoardSize][kings[0]%BoardSize] = Piece{Type: King, Color: Black}
	b[TierBoard][kings[1]/BoardSize][kings[1]%BoardSize] = Piece{Type: King, Color: White}

	for sq := 0; sq < BoardSize*BoardSize; sq++ {
		if sq == kings[0] || sq == kings[1] {
			continue
		}
		t, err := s.getCode(boardCodes)
		if err != nil {
			return b, turn, err
		}
		if t == NoPiece {
			continue
		}
		c, err := s.get(1)
		if err != nil {
			return b, turn, err
		}
		if t != Gold {
			promoted, err := s.get(1)
			if err != nil {
				return b, turn, err
			}
			if promoted == 1 {
				t = t.Promoted()
			}
		}
		b[TierBoard][sq/BoardSize][sq%BoardSize] = Piece{Type: t, Color: Color(c)}
	}

	for s.pos < 256 {
		t, err := s.getCode(handCodes)
		if err != nil {
			return b, turn, err
		}
		c, err := s.get(1)
		if err != nil {
			return b, turn, err
		}
		if t != Gold {
			promoted, err := s.get(1)
			if err != nil {
				return b, turn, err
			}
			if promoted != 0 {
				return b, turn, fmt.Errorf("pack256: promoted %v in hand", t)
			}
		}
		if _, ok := freeSlot(&b, t, Color(c)); !ok {
			return b, turn, fmt.Errorf("pack256: too many %v in hand", t)
		}
		addToPool(&b, Piece{Type: t, Color: Color(c)})
	}
	return b, turn, nil
}
