// Package payload implements the versioned binary container that carries an
// encrypted secret through a steganographic channel. The layout is fixed and
// order is part of the contract; all multi-byte integers are big-endian:
//
//	offset 0   magic            4 bytes, ASCII "SPW1"
//	offset 4   salt             16 bytes
//	offset 20  nonce            24 bytes
//	offset 44  ciphertext_len   uint32, length of ciphertext only
//	offset 48  ciphertext       ciphertext_len bytes
//	offset 48+N tag             16 bytes
//
// The codec validates structure only. Ciphertext stays opaque bytes until
// the crypto layer opens it.
package payload

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Magic identifies format version 1.
const Magic = "SPW1"

const (
	// MagicSize is the length of the format tag in bytes.
	MagicSize = 4
	// SaltSize is the KDF salt field length in bytes.
	SaltSize = 16
	// NonceSize is the AEAD nonce field length in bytes.
	NonceSize = 24
	// LengthSize is the ciphertext length field width in bytes.
	LengthSize = 4
	// TagSize is the AEAD tag field length in bytes.
	TagSize = 16
	// HeaderSize is the fixed prefix before the ciphertext.
	HeaderSize = MagicSize + SaltSize + NonceSize + LengthSize
	// MinSize is the smallest well-formed payload, carrying a one-byte secret.
	MinSize = HeaderSize + 1 + TagSize
)

// Structural parse failures, ordered by how early they are detected. Parse
// wraps them with byte counts; match with errors.Is.
var (
	ErrTooShort  = errors.New("payload too short for fixed header")
	ErrBadMagic  = errors.New("unknown payload magic")
	ErrTruncated = errors.New("payload truncated")
)

// Payload is a fully parsed container. Fields alias the input buffer passed
// to Parse; callers that mutate the buffer afterwards must copy first.
type Payload struct {
	Salt       []byte
	Nonce      []byte
	Ciphertext []byte
	Tag        []byte
}

// Header is the fixed 48-byte prefix, parsed on its own when the ciphertext
// body has not been recovered yet.
type Header struct {
	Salt          []byte
	Nonce         []byte
	CiphertextLen int
}

// TotalSize returns the serialized size of a payload with the given
// ciphertext length.
func TotalSize(ciphertextLen int) int {
	return HeaderSize + ciphertextLen + TagSize
}

// Serialize concatenates the fields into the wire layout. Field lengths are
// checked strictly; the codec never pads or trims.
func Serialize(salt, nonce, ciphertext, tag []byte) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("payload: salt must be %d bytes, got %d", SaltSize, len(salt))
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("payload: nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}
	if len(tag) != TagSize {
		return nil, fmt.Errorf("payload: tag must be %d bytes, got %d", TagSize, len(tag))
	}
	if uint64(len(ciphertext)) > math.MaxUint32 {
		return nil, fmt.Errorf("payload: ciphertext length %d exceeds format limit", len(ciphertext))
	}

	out := make([]byte, 0, TotalSize(len(ciphertext)))
	out = append(out, Magic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(ciphertext)))
	out = append(out, ciphertext...)
	out = append(out, tag...)
	return out, nil
}

// ParseHeader validates and decodes the fixed prefix of data. Trailing bytes
// are not examined, so it works on a buffer that holds only the header.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("payload: %w: need %d bytes, got %d", ErrTooShort, HeaderSize, len(data))
	}
	if !bytes.Equal(data[:MagicSize], []byte(Magic)) {
		return Header{}, fmt.Errorf("payload: %w: %q", ErrBadMagic, data[:MagicSize])
	}
	ctLen := binary.BigEndian.Uint32(data[MagicSize+SaltSize+NonceSize : HeaderSize])
	return Header{
		Salt:          data[MagicSize : MagicSize+SaltSize],
		Nonce:         data[MagicSize+SaltSize : MagicSize+SaltSize+NonceSize],
		CiphertextLen: int(ctLen),
	}, nil
}

// Parse validates data as a complete container and splits it into fields.
// Checks run in a fixed order: header length, then magic, then whether the
// declared ciphertext and tag actually fit. Bytes beyond the declared total
// are tolerated and ignored, since a carrier usually holds more capacity
// than the payload fills.
func Parse(data []byte) (Payload, error) {
	hdr, err := ParseHeader(data)
	if err != nil {
		return Payload{}, err
	}
	total := uint64(HeaderSize) + uint64(hdr.CiphertextLen) + uint64(TagSize)
	if uint64(len(data)) < total {
		return Payload{}, fmt.Errorf("payload: %w: declared %d bytes, got %d", ErrTruncated, total, len(data))
	}
	ctEnd := HeaderSize + hdr.CiphertextLen
	return Payload{
		Salt:       hdr.Salt,
		Nonce:      hdr.Nonce,
		Ciphertext: data[HeaderSize:ctEnd],
		Tag:        data[ctEnd : ctEnd+TagSize],
	}, nil
}
