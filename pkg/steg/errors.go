// Package steg implements the steganographic embedding engines and the
// format dispatcher that routes between them: pseudo-random position
// sequencing, least-significant-bit embedding for lossless raster images,
// and parity coding of quantized DCT coefficients for block-transform
// images. The package never logs and never touches the filesystem; callers
// supply carriers and payload bytes in memory and get mutated carriers or
// extracted bytes back.
package steg

import "fmt"

// CapacityError reports a payload too large for its carrier. Both counts
// are in bits, with the available side floored to whole bytes because the
// engines embed byte streams. The error is returned before any carrier
// sample is mutated.
type CapacityError struct {
	RequiredBits  int
	AvailableBits int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("carrier too small: payload needs %d bits, carrier holds %d", e.RequiredBits, e.AvailableBits)
}

// UnsupportedFormatError reports a carrier whose leading signature bytes
// match no known image format.
type UnsupportedFormatError struct {
	Signature []byte
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported carrier format (signature % X)", e.Signature)
}
