package shogi

// poolRegion is a contiguous run of pool slots, in row-major index order,
// reserved for one base piece type.
type poolRegion struct {
	Type  PieceType
	Start int
	Size  int
}

// poolRegions lists the type groups in drop enumeration order.
var poolRegions = [...]poolRegion{
	{Type: Pawn, Start: 0, Size: 18},
	{Type: Lance, Start: 18, Size: 4},
	{Type: Knight, Start: 22, Size: 4},
	{Type: Silver, Start: 26, Size: 4},
	{Type: Gold, Start: 30, Size: 4},
	{Type: Bishop, Start: 34, Size: 2},
	{Type: Rook, Start: 36, Size: 2},
}

// HandOrder is the SFEN hand order.
var HandOrder = [...]PieceType{Rook, Bishop, Gold, Silver, Knight, Lance, Pawn}

func slotPosition(k int) Position {
	return Position{X: k % BoardSize, Y: k / BoardSize, Tier: TierPool}
}

func regionFor(t PieceType) (poolRegion, bool) {
	for _, r := range poolRegions {
		if r.Type == t {
			return r, true
		}
	}
	return poolRegion{}, false
}

// slotOrder yields region indices in c's fill order: ascending for Black,
// descending for White.
func slotOrder(r poolRegion, c Color, fn func(k int) bool) {
	if c == Black {
		for k := r.Start; k < r.Start+r.Size; k++ {
			if !fn(k) {
				return
			}
		}
		return
	}
	for k := r.Start + r.Size - 1; k >= r.Start; k-- {
		if !fn(k) {
			return
		}
	}
}

// freeSlot returns the first empty slot of t's region in c's fill order.
func freeSlot(b *Boards, t PieceType, c Color) (Position, bool) {
	r, ok := regionFor(t)
	if !ok {
		return Position{}, false
	}
	var found Position
	hit := false
	slotOrder(r, c, func(k int) bool {
		pos := slotPosition(k)
		if b.At(pos).IsEmpty() {
			found, hit = pos, true
			return false
		}
		return true
	})
	return found, hit
}

// addToPool stores a captured piece, already converted to its new owner and
// base type, in the first free slot of its region.
func addToPool(b *Boards, piece Piece) {
	pos, ok := freeSlot(b, piece.Type, piece.Color)
	if !ok {
		violate("no free pool slot for %v", piece.Type)
	}
	b.set(pos, piece)
}

// poolRepresentative returns the slot of c's first piece of type t in c's
// fill order.
func poolRepresentative(b *Boards, t PieceType, c Color) (Position, bool) {
	r, ok := regionFor(t)
	if !ok {
		return Position{}, false
	}
	want := Piece{Type: t, Color: c}
	var found Position
	hit := false
	slotOrder(r, c, func(k int) bool {
		pos := slotPosition(k)
		if b.At(pos) == want {
			found, hit = pos, true
			return false
		}
		return true
	})
	return found, hit
}

// HandCount returns how many pieces of base type t color c holds in the pool.
func (b *Boards) HandCount(t PieceType, c Color) int {
	r, ok := regionFor(t)
	if !ok {
		return 0
	}
	want := Piece{Type: t, Color: c}
	n := 0
	for k := r.Start; k < r.Start+r.Size; k++ {
		if b.At(slotPosition(k)) == want {
			n++
		}
	}
	return n
}
