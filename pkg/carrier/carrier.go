// Package carrier defines the in-memory image representations the
// steganographic engines operate on: a flat 8-bit sample grid for lossless
// raster images and quantized 8x8 DCT coefficient blocks for block-transform
// images. Both types are plain owned buffers with no hidden aliasing; an
// engine borrows a carrier for the duration of a call and mutates it in
// place.
package carrier

// Raster is a lossless raster image as a contiguous row-major sample array.
// Samples holds Width*Height*Channels bytes ordered y, then x, then channel.
type Raster struct {
	Width    int
	Height   int
	Channels int
	Samples  []uint8
}

// NewRaster allocates a zeroed raster of the given geometry with three
// channels per pixel.
func NewRaster(width, height int) *Raster {
	return &Raster{
		Width:    width,
		Height:   height,
		Channels: 3,
		Samples:  make([]uint8, width*height*3),
	}
}

// Units returns the number of addressable embedding units: one per sample.
func (r *Raster) Units() int {
	return r.Width * r.Height * r.Channels
}

// SampleAt returns the sample value at pixel (x, y), channel c.
func (r *Raster) SampleAt(x, y, c int) uint8 {
	return r.Samples[(y*r.Width+x)*r.Channels+c]
}

// SetSample writes the sample value at pixel (x, y), channel c.
func (r *Raster) SetSample(x, y, c int, v uint8) {
	r.Samples[(y*r.Width+x)*r.Channels+c] = v
}

// Clone returns a deep copy of the raster.
func (r *Raster) Clone() *Raster {
	dup := *r
	dup.Samples = make([]uint8, len(r.Samples))
	copy(dup.Samples, r.Samples)
	return &dup
}

// BlockSize is the number of coefficients in one DCT block.
const BlockSize = 64

// Block is one quantized 8x8 DCT coefficient block in zigzag order:
// index 0 is the DC coefficient, indices 1..63 are the AC coefficients.
type Block [BlockSize]int32

// Plane is the coefficient grid of one channel plane (luma or chroma),
// blocks stored in row-major block order.
type Plane struct {
	WidthBlocks  int
	HeightBlocks int
	Blocks       []Block
}

// Blocks is a block-transform-coded image decomposed into per-plane
// quantized coefficient blocks.
type Blocks struct {
	Planes []Plane
}

// BlockCount returns the total number of 8x8 blocks across all planes.
func (b *Blocks) BlockCount() int {
	n := 0
	for i := range b.Planes {
		n += len(b.Planes[i].Blocks)
	}
	return n
}

// Clone returns a deep copy of the coefficient planes.
func (b *Blocks) Clone() *Blocks {
	dup := &Blocks{Planes: make([]Plane, len(b.Planes))}
	for i := range b.Planes {
		p := b.Planes[i]
		blocks := make([]Block, len(p.Blocks))
		copy(blocks, p.Blocks)
		dup.Planes[i] = Plane{
			WidthBlocks:  p.WidthBlocks,
			HeightBlocks: p.HeightBlocks,
			Blocks:       blocks,
		}
	}
	return dup
}
