package steg

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/bmp"

	"github.com/kalashnikxvxiii-collab/StegVault/pkg/carrier"
	"github.com/kalashnikxvxiii-collab/StegVault/pkg/jpegdct"
)

// Format identifies a supported carrier file format.
type Format int

const (
	FormatUnknown Format = iota
	FormatPNG
	FormatBMP
	FormatJPEG
)

func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatBMP:
		return "bmp"
	case FormatJPEG:
		return "jpeg"
	default:
		return "unknown"
	}
}

var (
	pngSignature  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
	bmpSignature  = []byte{'B', 'M'}
	jpegSignature = []byte{0xFF, 0xD8, 0xFF}

	errNoImage = errors.New("steg: carrier holds no decoded image")
)

// Detect classifies carrier bytes by their leading file signature.
func Detect(data []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(data, pngSignature):
		return FormatPNG, nil
	case bytes.HasPrefix(data, jpegSignature):
		return FormatJPEG, nil
	case bytes.HasPrefix(data, bmpSignature):
		return FormatBMP, nil
	}
	sig := data
	if len(sig) > 8 {
		sig = sig[:8]
	}
	return FormatUnknown, &UnsupportedFormatError{Signature: append([]byte(nil), sig...)}
}

// Carrier is a decoded image tagged with its format: raster formats hold
// samples for the LSB engine, block-transform formats hold quantized
// coefficients for the DCT engine. Exactly one of Raster and JPEG is set.
type Carrier struct {
	Format Format
	Raster *carrier.Raster
	JPEG   *jpegdct.Image
}

func (c *Carrier) validate() error {
	switch c.Format {
	case FormatPNG, FormatBMP:
		if c.Raster == nil {
			return errNoImage
		}
	case FormatJPEG:
		if c.JPEG == nil || c.JPEG.Coeff == nil {
			return errNoImage
		}
	default:
		return errNoImage
	}
	return nil
}

// units reports the carrier's addressable embedding units: one per sample
// for rasters, one per eligible AC coefficient for coefficient planes.
func (c *Carrier) units() int {
	switch c.Format {
	case FormatPNG, FormatBMP:
		return c.Raster.Units()
	case FormatJPEG:
		return len(eligiblePositions(c.JPEG.Coeff))
	}
	return 0
}

// Decode detects the format of an image file and loads it into the
// in-memory representation its engine operates on.
func Decode(data []byte) (*Carrier, error) {
	format, err := Detect(data)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatPNG:
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("steg: decode png: %w", err)
		}
		r, err := rasterize(img)
		if err != nil {
			return nil, err
		}
		return &Carrier{Format: FormatPNG, Raster: r}, nil
	case FormatBMP:
		img, err := bmp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("steg: decode bmp: %w", err)
		}
		r, err := rasterize(img)
		if err != nil {
			return nil, err
		}
		return &Carrier{Format: FormatBMP, Raster: r}, nil
	default:
		img, err := jpegdct.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("steg: decode jpeg: %w", err)
		}
		return &Carrier{Format: FormatJPEG, JPEG: img}, nil
	}
}

// Encode serializes the carrier back into its source file format.
func (c *Carrier) Encode() ([]byte, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	switch c.Format {
	case FormatPNG:
		var buf bytes.Buffer
		if err := png.Encode(&buf, rasterToNRGBA(c.Raster)); err != nil {
			return nil, fmt.Errorf("steg: encode png: %w", err)
		}
		return buf.Bytes(), nil
	case FormatBMP:
		var buf bytes.Buffer
		if err := bmp.Encode(&buf, rasterToRGBA(c.Raster)); err != nil {
			return nil, fmt.Errorf("steg: encode bmp: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return c.JPEG.Encode()
	}
}

// Capacity returns how many payload bytes the carrier can hold.
func Capacity(c *Carrier) int {
	switch c.Format {
	case FormatPNG, FormatBMP:
		return CapacityLSB(c.Raster)
	case FormatJPEG:
		return CapacityDCT(c.JPEG.Coeff)
	}
	return 0
}

// Embed routes to the engine matching the carrier format, with the same
// signature and semantics as the engine call.
func Embed(c *Carrier, data []byte, seed int64) error {
	if err := c.validate(); err != nil {
		return err
	}
	switch c.Format {
	case FormatPNG, FormatBMP:
		return EmbedLSB(c.Raster, data, seed)
	case FormatJPEG:
		return EmbedDCT(c.JPEG.Coeff, data, seed)
	}
	return nil
}

// Extract routes to the engine matching the carrier format.
func Extract(c *Carrier, byteCount int, seed int64) ([]byte, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	switch c.Format {
	case FormatPNG, FormatBMP:
		return ExtractLSB(c.Raster, byteCount, seed)
	case FormatJPEG:
		return ExtractDCT(c.JPEG.Coeff, byteCount, seed)
	}
	return nil, nil
}

// rasterize converts a decoded image into a three-channel sample grid.
// Translucent pixels are flattened onto a white background; color modes
// other than RGB and RGBA are rejected, matching the carrier contract.
func rasterize(img image.Image) (*carrier.Raster, error) {
	bounds := img.Bounds()
	out := carrier.NewRaster(bounds.Dx(), bounds.Dy())
	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				i := src.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
				a := src.Pix[i+3]
				out.SetSample(x, y, 0, flattenStraight(src.Pix[i], a))
				out.SetSample(x, y, 1, flattenStraight(src.Pix[i+1], a))
				out.SetSample(x, y, 2, flattenStraight(src.Pix[i+2], a))
			}
		}
	case *image.RGBA:
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				i := src.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
				a := src.Pix[i+3]
				out.SetSample(x, y, 0, flattenPremul(src.Pix[i], a))
				out.SetSample(x, y, 1, flattenPremul(src.Pix[i+1], a))
				out.SetSample(x, y, 2, flattenPremul(src.Pix[i+2], a))
			}
		}
	default:
		return nil, fmt.Errorf("steg: unsupported color mode %T, use an RGB or RGBA image", img)
	}
	return out, nil
}

// flattenStraight composites a straight-alpha sample onto white.
func flattenStraight(c, a uint8) uint8 {
	if a == 0xFF {
		return c
	}
	return uint8((uint32(c)*uint32(a) + 255*(255-uint32(a)) + 127) / 255)
}

// flattenPremul composites a premultiplied sample onto white.
func flattenPremul(c, a uint8) uint8 {
	if a == 0xFF {
		return c
	}
	v := uint32(c) + (255 - uint32(a))
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

func rasterToNRGBA(r *carrier.Raster) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i] = r.SampleAt(x, y, 0)
			img.Pix[i+1] = r.SampleAt(x, y, 1)
			img.Pix[i+2] = r.SampleAt(x, y, 2)
			img.Pix[i+3] = 0xFF
		}
	}
	return img
}

func rasterToRGBA(r *carrier.Raster) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i] = r.SampleAt(x, y, 0)
			img.Pix[i+1] = r.SampleAt(x, y, 1)
			img.Pix[i+2] = r.SampleAt(x, y, 2)
			img.Pix[i+3] = 0xFF
		}
	}
	return img
}
