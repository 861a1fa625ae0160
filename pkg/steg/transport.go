package steg

import (
	"fmt"

	"github.com/kalashnikxvxiii-collab/StegVault/internal/payload"
	"github.com/kalashnikxvxiii-collab/StegVault/pkg/carrier"
)

// The transport layout answers the bootstrap problem: the position sequence
// is seeded from the payload salt, but the salt travels inside the payload.
// The fixed header therefore occupies the carrier's leading units in
// natural order, one bit each, and only the body is scattered, at
// salt-seeded positions offset past the header region. The two regions are
// disjoint, so body placement can never overwrite header bits.
const headerUnits = payload.HeaderSize * 8

// EmbedPayload writes a serialized payload container into the carrier
// using the header-then-scattered-body layout. The salt is read from the
// payload itself. The carrier is untouched if the payload does not fit.
func EmbedPayload(c *Carrier, data []byte) error {
	if err := c.validate(); err != nil {
		return err
	}
	hdr, err := payload.ParseHeader(data)
	if err != nil {
		return err
	}
	if want := payload.TotalSize(hdr.CiphertextLen); len(data) != want {
		return fmt.Errorf("steg: payload is %d bytes but declares %d", len(data), want)
	}
	capBytes := Capacity(c)
	if len(data) > capBytes {
		return &CapacityError{RequiredBits: len(data) * 8, AvailableBits: capBytes * 8}
	}
	seed := SeedFromSalt(hdr.Salt)
	switch c.Format {
	case FormatPNG, FormatBMP:
		embedRasterPayload(c.Raster, data, seed)
	case FormatJPEG:
		embedBlockPayload(c.JPEG.Coeff, data, seed)
	}
	return nil
}

// ExtractHeader reads back the fixed container header from the carrier's
// leading units. It does not validate the header contents.
func ExtractHeader(c *Carrier) ([]byte, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	units := c.units()
	if units < headerUnits {
		return nil, &CapacityError{RequiredBits: headerUnits, AvailableBits: units / 8 * 8}
	}
	out := make([]byte, payload.HeaderSize)
	switch c.Format {
	case FormatPNG, FormatBMP:
		for i := range out {
			var b uint8
			for k := 0; k < 8; k++ {
				b = b<<1 | readLSB(c.Raster, i*8+k)
			}
			out[i] = b
		}
	case FormatJPEG:
		eligible := eligiblePositions(c.JPEG.Coeff)
		for i := range out {
			var b uint8
			for k := 0; k < 8; k++ {
				b = b<<1 | readParity(c.JPEG.Coeff, eligible[i*8+k])
			}
			out[i] = b
		}
	}
	return out, nil
}

// ExtractPayload recovers the complete serialized payload: it reads the
// fixed header, re-derives the body positions from the salt the header
// carries, and returns header plus body ready for parsing. A carrier that
// never went through EmbedPayload fails the magic check with overwhelming
// probability.
func ExtractPayload(c *Carrier) ([]byte, error) {
	hdrBytes, err := ExtractHeader(c)
	if err != nil {
		return nil, err
	}
	hdr, err := payload.ParseHeader(hdrBytes)
	if err != nil {
		return nil, err
	}
	bodyLen := hdr.CiphertextLen + payload.TagSize
	bodyCap := (c.units() - headerUnits) / 8
	if bodyLen > bodyCap {
		return nil, fmt.Errorf("steg: %w: header declares %d body bytes, carrier holds %d", payload.ErrTruncated, bodyLen, bodyCap)
	}
	seed := SeedFromSalt(hdr.Salt)
	body := make([]byte, bodyLen)
	switch c.Format {
	case FormatPNG, FormatBMP:
		seq := NewSequence(seed, c.Raster.Units()-headerUnits)
		for i := range body {
			var b uint8
			for k := 0; k < 8; k++ {
				b = b<<1 | readLSB(c.Raster, headerUnits+seq.Next())
			}
			body[i] = b
		}
	case FormatJPEG:
		eligible := eligiblePositions(c.JPEG.Coeff)
		seq := NewSequence(seed, len(eligible)-headerUnits)
		for i := range body {
			var b uint8
			for k := 0; k < 8; k++ {
				b = b<<1 | readParity(c.JPEG.Coeff, eligible[headerUnits+seq.Next()])
			}
			body[i] = b
		}
	}
	return append(hdrBytes, body...), nil
}

func embedRasterPayload(r *carrier.Raster, data []byte, seed int64) {
	unit := 0
	for _, b := range data[:payload.HeaderSize] {
		for shift := 7; shift >= 0; shift-- {
			writeLSB(r, unit, (b>>uint(shift))&1)
			unit++
		}
	}
	seq := NewSequence(seed, r.Units()-headerUnits)
	for _, b := range data[payload.HeaderSize:] {
		for shift := 7; shift >= 0; shift-- {
			writeLSB(r, headerUnits+seq.Next(), (b>>uint(shift))&1)
		}
	}
}

func embedBlockPayload(b *carrier.Blocks, data []byte, seed int64) {
	eligible := eligiblePositions(b)
	pos := 0
	for _, byt := range data[:payload.HeaderSize] {
		for shift := 7; shift >= 0; shift-- {
			writeParity(b, eligible[pos], int32(byt>>uint(shift))&1)
			pos++
		}
	}
	seq := NewSequence(seed, len(eligible)-headerUnits)
	for _, byt := range data[payload.HeaderSize:] {
		for shift := 7; shift >= 0; shift-- {
			writeParity(b, eligible[headerUnits+seq.Next()], int32(byt>>uint(shift))&1)
		}
	}
}
