package jpegdct

import "fmt"

// huffSpec is a Huffman table in DHT form: the number of codes of each
// length 1..16, then the symbol values in code order.
type huffSpec struct {
	counts [16]byte
	values []byte
}

// The standard tables from ITU T.81 Annex K.3. They assign
// a code to every legal baseline symbol, so a file re-encoded with them
// never hits a missing-symbol condition no matter how the coefficients
// were changed.
var (
	stdDCLuminance = huffSpec{
		counts: [16]byte{0, 1, 5, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0},
		values: []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	}
	stdDCChrominance = huffSpec{
		counts: [16]byte{0, 3, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0},
		values: []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	}
	stdACLuminance = huffSpec{
		counts: [16]byte{0, 2, 1, 3, 3, 2, 4, 3, 5, 5, 4, 4, 0, 0, 1, 125},
		values: []byte{
			0x01, 0x02, 0x03, 0x00, 0x04, 0x11, 0x05, 0x12,
			0x21, 0x31, 0x41, 0x06, 0x13, 0x51, 0x61, 0x07,
			0x22, 0x71, 0x14, 0x32, 0x81, 0x91, 0xa1, 0x08,
			0x23, 0x42, 0xb1, 0xc1, 0x15, 0x52, 0xd1, 0xf0,
			0x24, 0x33, 0x62, 0x72, 0x82, 0x09, 0x0a, 0x16,
			0x17, 0x18, 0x19, 0x1a, 0x25, 0x26, 0x27, 0x28,
			0x29, 0x2a, 0x34, 0x35, 0x36, 0x37, 0x38, 0x39,
			0x3a, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48, 0x49,
			0x4a, 0x53, 0x54, 0x55, 0x56, 0x57, 0x58, 0x59,
			0x5a, 0x63, 0x64, 0x65, 0x66, 0x67, 0x68, 0x69,
			0x6a, 0x73, 0x74, 0x75, 0x76, 0x77, 0x78, 0x79,
			0x7a, 0x83, 0x84, 0x85, 0x86, 0x87, 0x88, 0x89,
			0x8a, 0x92, 0x93, 0x94, 0x95, 0x96, 0x97, 0x98,
			0x99, 0x9a, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6, 0xa7,
			0xa8, 0xa9, 0xaa, 0xb2, 0xb3, 0xb4, 0xb5, 0xb6,
			0xb7, 0xb8, 0xb9, 0xba, 0xc2, 0xc3, 0xc4, 0xc5,
			0xc6, 0xc7, 0xc8, 0xc9, 0xca, 0xd2, 0xd3, 0xd4,
			0xd5, 0xd6, 0xd7, 0xd8, 0xd9, 0xda, 0xe1, 0xe2,
			0xe3, 0xe4, 0xe5, 0xe6, 0xe7, 0xe8, 0xe9, 0xea,
			0xf1, 0xf2, 0xf3, 0xf4, 0xf5, 0xf6, 0xf7, 0xf8,
			0xf9, 0xfa,
		},
	}
	stdACChrominance = huffSpec{
		counts: [16]byte{0, 2, 1, 2, 4, 4, 3, 4, 7, 5, 4, 4, 0, 1, 2, 119},
		values: []byte{
			0x00, 0x01, 0x02, 0x03, 0x11, 0x04, 0x05, 0x21,
			0x31, 0x06, 0x12, 0x41, 0x51, 0x07, 0x61, 0x71,
			0x13, 0x22, 0x32, 0x81, 0x08, 0x14, 0x42, 0x91,
			0xa1, 0xb1, 0xc1, 0x09, 0x23, 0x33, 0x52, 0xf0,
			0x15, 0x62, 0x72, 0xd1, 0x0a, 0x16, 0x24, 0x34,
			0xe1, 0x25, 0xf1, 0x17, 0x18, 0x19, 0x1a, 0x26,
			0x27, 0x28, 0x29, 0x2a, 0x35, 0x36, 0x37, 0x38,
			0x39, 0x3a, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48,
			0x49, 0x4a, 0x53, 0x54, 0x55, 0x56, 0x57, 0x58,
			0x59, 0x5a, 0x63, 0x64, 0x65, 0x66, 0x67, 0x68,
			0x69, 0x6a, 0x73, 0x74, 0x75, 0x76, 0x77, 0x78,
			0x79, 0x7a, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87,
			0x88, 0x89, 0x8a, 0x92, 0x93, 0x94, 0x95, 0x96,
			0x97, 0x98, 0x99, 0x9a, 0xa2, 0xa3, 0xa4, 0xa5,
			0xa6, 0xa7, 0xa8, 0xa9, 0xaa, 0xb2, 0xb3, 0xb4,
			0xb5, 0xb6, 0xb7, 0xb8, 0xb9, 0xba, 0xc2, 0xc3,
			0xc4, 0xc5, 0xc6, 0xc7, 0xc8, 0xc9, 0xca, 0xd2,
			0xd3, 0xd4, 0xd5, 0xd6, 0xd7, 0xd8, 0xd9, 0xda,
			0xe2, 0xe3, 0xe4, 0xe5, 0xe6, 0xe7, 0xe8, 0xe9,
			0xea, 0xf2, 0xf3, 0xf4, 0xf5, 0xf6, 0xf7, 0xf8,
			0xf9, 0xfa,
		},
	}
)

// huffDecoder runs the canonical code lookup from ITU T.81's DECODE
// procedure, one bit at a time.
type huffDecoder struct {
	minCode [17]int32
	maxCode [17]int32
	valPtr  [17]int
	values  []byte
}

func newHuffDecoder(counts [16]byte, values []byte) (*huffDecoder, error) {
	total := 0
	for _, n := range counts {
		total += int(n)
	}
	if total == 0 || total > 256 || total != len(values) {
		return nil, fmt.Errorf("jpegdct: huffman table declares %d codes for %d values", total, len(values))
	}

	h := &huffDecoder{values: values}
	code := int32(0)
	k := 0
	for l := 1; l <= 16; l++ {
		n := int(counts[l-1])
		if n == 0 {
			h.maxCode[l] = -1
		} else {
			h.valPtr[l] = k
			h.minCode[l] = code
			code += int32(n)
			h.maxCode[l] = code - 1
			k += n
		}
		if code > 1<<uint(l) {
			return nil, fmt.Errorf("jpegdct: huffman table overflows at code length %d", l)
		}
		code <<= 1
	}
	return h, nil
}

func (h *huffDecoder) decode(br *bitReader) (byte, error) {
	code := int32(0)
	for l := 1; l <= 16; l++ {
		b, err := br.bit()
		if err != nil {
			return 0, err
		}
		code = code<<1 | b
		if h.maxCode[l] >= 0 && code <= h.maxCode[l] {
			return h.values[h.valPtr[l]+int(code-h.minCode[l])], nil
		}
	}
	return 0, fmt.Errorf("jpegdct: invalid huffman code")
}

// huffEncoder maps each symbol to its canonical code.
type huffEncoder struct {
	codes   [256]uint16
	lengths [256]uint8
}

func newHuffEncoder(spec huffSpec) *huffEncoder {
	e := &huffEncoder{}
	code := uint16(0)
	k := 0
	for l := 1; l <= 16; l++ {
		for i := 0; i < int(spec.counts[l-1]); i++ {
			sym := spec.values[k]
			e.codes[sym] = code
			e.lengths[sym] = uint8(l)
			code++
			k++
		}
		code <<= 1
	}
	return e
}

func (e *huffEncoder) emit(bw *bitWriter, sym byte) error {
	l := e.lengths[sym]
	if l == 0 {
		return fmt.Errorf("jpegdct: no huffman code for symbol %#02x", sym)
	}
	bw.write(uint32(e.codes[sym]), int(l))
	return nil
}
