package steg

import (
	"fmt"

	"github.com/kalashnikxvxiii-collab/StegVault/pkg/carrier"
)

// coeffPos identifies one AC coefficient: plane index, block index within
// the plane, and coefficient index within the block.
type coeffPos struct {
	plane int
	block int
	coeff int
}

// eligiblePositions lists every AC coefficient usable for parity coding, in
// canonical plane, block, coefficient order. DC coefficients are never
// touched, and coefficients with magnitude 0 or 1 are skipped because a
// parity step could round them to zero and silently drop them from the
// extractor's view. The parity adjustment itself never reduces a magnitude
// below 2, so the eligible set is identical before and after embedding.
func eligiblePositions(b *carrier.Blocks) []coeffPos {
	var out []coeffPos
	for pi := range b.Planes {
		blocks := b.Planes[pi].Blocks
		for bi := range blocks {
			for ci := 1; ci < carrier.BlockSize; ci++ {
				if v := blocks[bi][ci]; v > 1 || v < -1 {
					out = append(out, coeffPos{plane: pi, block: bi, coeff: ci})
				}
			}
		}
	}
	return out
}

// CapacityDCT returns how many whole payload bytes the coefficient planes
// can hold, one bit per eligible AC coefficient.
func CapacityDCT(b *carrier.Blocks) int {
	return len(eligiblePositions(b)) / 8
}

// EmbedDCT hides data in the parity of eligible AC coefficients, positions
// drawn from the seeded sequence over the full eligible set. A coefficient
// whose parity already matches the payload bit is left untouched.
func EmbedDCT(b *carrier.Blocks, data []byte, seed int64) error {
	eligible := eligiblePositions(b)
	capBytes := len(eligible) / 8
	if len(data) > capBytes {
		return &CapacityError{RequiredBits: len(data) * 8, AvailableBits: capBytes * 8}
	}
	seq := NewSequence(seed, len(eligible))
	for _, byt := range data {
		for shift := 7; shift >= 0; shift-- {
			writeParity(b, eligible[seq.Next()], int32(byt>>uint(shift))&1)
		}
	}
	return nil
}

// ExtractDCT reads byteCount bytes back from the coefficient parities
// EmbedDCT would target for the same seed and the same coefficient planes.
func ExtractDCT(b *carrier.Blocks, byteCount int, seed int64) ([]byte, error) {
	if byteCount < 0 {
		return nil, fmt.Errorf("steg: negative byte count %d", byteCount)
	}
	eligible := eligiblePositions(b)
	capBytes := len(eligible) / 8
	if byteCount > capBytes {
		return nil, &CapacityError{RequiredBits: byteCount * 8, AvailableBits: capBytes * 8}
	}
	seq := NewSequence(seed, len(eligible))
	out := make([]byte, byteCount)
	for i := range out {
		var v uint8
		for k := 0; k < 8; k++ {
			v = v<<1 | readParity(b, eligible[seq.Next()])
		}
		out[i] = v
	}
	return out, nil
}

func writeParity(b *carrier.Blocks, pos coeffPos, bit int32) {
	blk := &b.Planes[pos.plane].Blocks[pos.block]
	if blk[pos.coeff]&1 != bit {
		blk[pos.coeff] = adjustParity(blk[pos.coeff])
	}
}

func readParity(b *carrier.Blocks, pos coeffPos) uint8 {
	return uint8(b.Planes[pos.plane].Blocks[pos.block][pos.coeff] & 1)
}

// adjustParity moves v one step to flip its parity. At magnitude 2 the
// step goes away from zero, since stepping to 1 would leave the eligible
// set; every other magnitude steps toward zero to keep distortion low.
func adjustParity(v int32) int32 {
	switch {
	case v == 2:
		return 3
	case v == -2:
		return -3
	case v > 0:
		return v - 1
	default:
		return v + 1
	}
}
