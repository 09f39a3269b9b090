package shogi

// FeatureChannels is the channel count of the feature tensor: one indicator
// per (tier, color, piece type).
const FeatureChannels = 2 * 2 * NumPieceTypes

// FeatureLen is the length of one encoded position.
const FeatureLen = BoardSize * BoardSize * FeatureChannels

// EncodeFeatures writes b into a channels-last 9x9x56 tensor. Square (x, y)
// starts at (x*9+y)*56 and channel tier*28 + color*14 + (type-1) is set to 1
// when that piece occupies the square.
func EncodeFeatures(b *Boards) []float32 {
	out := make([]float32, FeatureLen)
	EncodeFeaturesInto(b, out)
	return out
}

// EncodeFeaturesInto is EncodeFeatures writing into dst, which must hold
// FeatureLen values. dst is cleared first.
func EncodeFeaturesInto(b *Boards, dst []float32) {
	clear(dst[:FeatureLen])
	for tier := 0; tier < 2; tier++ {
		for y := 0; y < BoardSize; y++ {
			for x := 0; x < BoardSize; x++ {
				piece := b[tier][y][x]
				if piece.IsEmpty() {
					continue
				}
				ch := tier*2*NumPieceTypes + int(piece.Color)*NumPieceTypes + int(piece.Type) - 1
				dst[(x*BoardSize+y)*FeatureChannels+ch] = 1
			}
		}
	}
}
