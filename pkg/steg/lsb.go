package steg

import (
	"fmt"

	"github.com/kalashnikxvxiii-collab/StegVault/pkg/carrier"
)

// CapacityLSB returns how many whole payload bytes the raster can hold at
// one bit per channel sample.
func CapacityLSB(r *carrier.Raster) int {
	return r.Units() / 8
}

// EmbedLSB hides data in the least significant bits of r's samples, bit
// positions drawn from the seeded sequence over the full sample count.
// Bits are consumed most significant first. Only least significant bits
// change; every other bit of the raster is left exactly as it was.
func EmbedLSB(r *carrier.Raster, data []byte, seed int64) error {
	capBytes := CapacityLSB(r)
	if len(data) > capBytes {
		return &CapacityError{RequiredBits: len(data) * 8, AvailableBits: capBytes * 8}
	}
	seq := NewSequence(seed, r.Units())
	for _, b := range data {
		for shift := 7; shift >= 0; shift-- {
			writeLSB(r, seq.Next(), (b>>uint(shift))&1)
		}
	}
	return nil
}

// ExtractLSB reads byteCount bytes back from the positions EmbedLSB would
// use for the same seed and raster geometry. Requesting a different length
// than was embedded yields garbage bytes, not an error; the caller is
// responsible for knowing the payload size.
func ExtractLSB(r *carrier.Raster, byteCount int, seed int64) ([]byte, error) {
	if byteCount < 0 {
		return nil, fmt.Errorf("steg: negative byte count %d", byteCount)
	}
	capBytes := CapacityLSB(r)
	if byteCount > capBytes {
		return nil, &CapacityError{RequiredBits: byteCount * 8, AvailableBits: capBytes * 8}
	}
	seq := NewSequence(seed, r.Units())
	out := make([]byte, byteCount)
	for i := range out {
		var b uint8
		for k := 0; k < 8; k++ {
			b = b<<1 | readLSB(r, seq.Next())
		}
		out[i] = b
	}
	return out, nil
}

// writeLSB decodes a unit index into pixel and channel coordinates and
// replaces that sample's least significant bit.
func writeLSB(r *carrier.Raster, unit int, bit uint8) {
	pixel := unit / r.Channels
	c := unit % r.Channels
	x := pixel % r.Width
	y := pixel / r.Width
	r.SetSample(x, y, c, r.SampleAt(x, y, c)&^1|bit)
}

func readLSB(r *carrier.Raster, unit int) uint8 {
	pixel := unit / r.Channels
	c := unit % r.Channels
	x := pixel % r.Width
	y := pixel / r.Width
	return r.SampleAt(x, y, c) & 1
}
