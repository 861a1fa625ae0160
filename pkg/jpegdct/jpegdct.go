// Package jpegdct reads and writes baseline JPEG images at the quantized
// DCT coefficient level. Decoding stops after entropy decoding, before any
// dequantization or inverse transform, so the coefficient planes can be
// modified and written back without generational quality loss. Encoding
// re-emits the original quantization tables and marker segments but always
// uses the standard Huffman tables, which cover every legal baseline
// symbol regardless of how the coefficients were adjusted.
//
// Progressive, arithmetic-coded, hierarchical, and multi-scan files are
// rejected; the supported shape is a single interleaved scan (or a single
// non-interleaved scan for one-component images), the overwhelmingly common
// baseline layout.
package jpegdct

import (
	"errors"

	"github.com/kalashnikxvxiii-collab/StegVault/pkg/carrier"
)

// ErrUnsupported marks structurally valid JPEG input that uses a coding
// process this package does not implement.
var ErrUnsupported = errors.New("jpegdct: unsupported coding process")

// Marker codes, without the 0xFF prefix.
const (
	mSOF0  = 0xC0 // baseline sequential
	mSOF1  = 0xC1 // extended sequential, Huffman
	mSOF2  = 0xC2 // progressive
	mDHT   = 0xC4
	mRST0  = 0xD0
	mRST7  = 0xD7
	mSOI   = 0xD8
	mEOI   = 0xD9
	mSOS   = 0xDA
	mDQT   = 0xDB
	mDRI   = 0xDD
	mAPP0  = 0xE0
	mAPP15 = 0xEF
	mCOM   = 0xFE
)

type component struct {
	id byte
	h  int
	v  int
	tq byte // quantization table selector
	td byte // DC entropy table selector, set by the scan header
	ta byte // AC entropy table selector, set by the scan header
}

type quantTable struct {
	precision byte // 0 for 8-bit values, 1 for 16-bit
	values    [64]uint16
}

// Image is a decoded baseline JPEG: the coefficient planes plus everything
// needed to serialize them back into a standalone file. Planes follow
// component order (luma first for color images). Coefficients within a
// block are stored in zigzag order, matching carrier.Block.
type Image struct {
	Coeff *carrier.Blocks

	width           int
	height          int
	sof             byte
	comps           []component
	quant           [4]*quantTable
	restartInterval int
	preserved       [][]byte // raw APPn and COM segments, in file order
}

// Width returns the image width in pixels.
func (img *Image) Width() int { return img.width }

// Height returns the image height in pixels.
func (img *Image) Height() int { return img.height }

// Components returns the number of channel planes.
func (img *Image) Components() int { return len(img.comps) }

// NewImage assembles a synthetic image from coefficient planes, one
// component per plane with 1x1 sampling and flat unit quantization tables.
// Every plane must cover the full pixel dimensions, one block per 8x8 tile.
func NewImage(width, height int, coeff *carrier.Blocks) (*Image, error) {
	if width < 1 || height < 1 {
		return nil, errors.New("jpegdct: dimensions must be positive")
	}
	if coeff == nil || len(coeff.Planes) < 1 || len(coeff.Planes) > 4 {
		return nil, errors.New("jpegdct: need between 1 and 4 coefficient planes")
	}
	wb := ceilDiv(width, 8)
	hb := ceilDiv(height, 8)
	for i := range coeff.Planes {
		p := &coeff.Planes[i]
		if p.WidthBlocks != wb || p.HeightBlocks != hb || len(p.Blocks) != wb*hb {
			return nil, errors.New("jpegdct: plane block grid does not cover the image")
		}
	}

	unit := &quantTable{}
	for i := range unit.values {
		unit.values[i] = 1
	}
	img := &Image{
		Coeff:  coeff,
		width:  width,
		height: height,
		sof:    mSOF0,
	}
	img.quant[0] = unit
	for i := range coeff.Planes {
		tq := byte(0)
		if i > 0 {
			tq = 1
			img.quant[1] = unit
		}
		img.comps = append(img.comps, component{id: byte(i + 1), h: 1, v: 1, tq: tq})
	}
	return img, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
