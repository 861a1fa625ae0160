package steg

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/kalashnikxvxiii-collab/StegVault/pkg/jpegdct"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opaqueRGBA(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i] = uint8(x*7 + y*3)
			img.Pix[i+1] = uint8(x*11 + y*5)
			img.Pix[i+2] = uint8(x*13 + y*17)
			img.Pix[i+3] = 0xFF
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func bmpBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, blocksPerRow int, seed int64) []byte {
	t.Helper()
	b := testBlocks(3, blocksPerRow, seed)
	img, err := jpegdct.NewImage(blocksPerRow*8, 8, b)
	require.NoError(t, err)
	data, err := img.Encode()
	require.NoError(t, err)
	return data
}

func TestDetect(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
		want Format
	}{
		{
			name: "png signature",
			data: []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n', 0, 0},
			want: FormatPNG,
		},
		{
			name: "bmp signature",
			data: []byte{'B', 'M', 0x36, 0x00, 0x00, 0x00},
			want: FormatBMP,
		},
		{
			name: "jpeg signature",
			data: []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10},
			want: FormatJPEG,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Detect(tc.data)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("unknown signature", func(t *testing.T) {
		got, err := Detect([]byte("GIF89a lots of trailing bytes"))
		assert.Equal(t, FormatUnknown, got)
		var ufErr *UnsupportedFormatError
		require.True(t, errors.As(err, &ufErr))
		assert.Len(t, ufErr.Signature, 8)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := Detect(nil)
		var ufErr *UnsupportedFormatError
		assert.True(t, errors.As(err, &ufErr))
	})
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "png", FormatPNG.String())
	assert.Equal(t, "bmp", FormatBMP.String())
	assert.Equal(t, "jpeg", FormatJPEG.String())
	assert.Equal(t, "unknown", FormatUnknown.String())
}

func TestDecodeEncode_PNGLossless(t *testing.T) {
	data := pngBytes(t, opaqueRGBA(17, 9))

	c, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, c.Format)
	require.NotNil(t, c.Raster)
	assert.Equal(t, 17, c.Raster.Width)
	assert.Equal(t, 9, c.Raster.Height)
	assert.Equal(t, 3, c.Raster.Channels)
	assert.Nil(t, c.JPEG)

	encoded, err := c.Encode()
	require.NoError(t, err)
	again, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, c.Raster.Samples, again.Raster.Samples, "png roundtrip must preserve every sample")
}

func TestDecodeEncode_BMPLossless(t *testing.T) {
	data := bmpBytes(t, opaqueRGBA(12, 7))

	c, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, FormatBMP, c.Format)
	require.NotNil(t, c.Raster)
	assert.Equal(t, 12, c.Raster.Width)
	assert.Equal(t, 7, c.Raster.Height)

	encoded, err := c.Encode()
	require.NoError(t, err)
	again, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, c.Raster.Samples, again.Raster.Samples, "bmp roundtrip must preserve every sample")
}

func TestDecodeEncode_JPEGCoefficients(t *testing.T) {
	data := jpegBytes(t, 6, 42)

	c, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, FormatJPEG, c.Format)
	require.NotNil(t, c.JPEG)
	assert.Nil(t, c.Raster)

	encoded, err := c.Encode()
	require.NoError(t, err)
	again, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, c.JPEG.Coeff, again.JPEG.Coeff, "jpeg roundtrip must preserve every coefficient")
}

func TestDecode_FlattensTranslucentOntoWhite(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 100, G: 200, B: 50, A: 0})
	img.SetNRGBA(1, 0, color.NRGBA{R: 100, G: 200, B: 50, A: 128})
	img.SetNRGBA(2, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	c, err := Decode(pngBytes(t, img))
	require.NoError(t, err)

	assert.Equal(t, uint8(255), c.Raster.SampleAt(0, 0, 0), "fully transparent pixel becomes white")
	assert.Equal(t, uint8(255), c.Raster.SampleAt(0, 0, 1))
	assert.Equal(t, uint8(255), c.Raster.SampleAt(0, 0, 2))

	assert.Equal(t, uint8(177), c.Raster.SampleAt(1, 0, 0))
	assert.Equal(t, uint8(227), c.Raster.SampleAt(1, 0, 1))
	assert.Equal(t, uint8(152), c.Raster.SampleAt(1, 0, 2))

	assert.Equal(t, uint8(10), c.Raster.SampleAt(2, 0, 0), "opaque pixel passes through")
	assert.Equal(t, uint8(20), c.Raster.SampleAt(2, 0, 1))
	assert.Equal(t, uint8(30), c.Raster.SampleAt(2, 0, 2))
}

func TestDecode_RejectsGrayscale(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	_, err := Decode(pngBytes(t, img))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported color mode")
}

func TestDecode_BadData(t *testing.T) {
	t.Run("unknown format", func(t *testing.T) {
		_, err := Decode([]byte("definitely not an image"))
		var ufErr *UnsupportedFormatError
		assert.True(t, errors.As(err, &ufErr))
	})

	t.Run("png signature with garbage body", func(t *testing.T) {
		data := append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}, []byte("garbage")...)
		_, err := Decode(data)
		assert.Error(t, err)
	})

	t.Run("jpeg signature with garbage body", func(t *testing.T) {
		data := []byte{0xFF, 0xD8, 0xFF, 0x00, 0x01, 0x02}
		_, err := Decode(data)
		assert.Error(t, err)
	})
}

func TestCapacityRouting(t *testing.T) {
	c, err := Decode(pngBytes(t, opaqueRGBA(10, 10)))
	require.NoError(t, err)
	assert.Equal(t, 37, Capacity(c))

	j, err := Decode(jpegBytes(t, 8, 3))
	require.NoError(t, err)
	assert.Equal(t, CapacityDCT(j.JPEG.Coeff), Capacity(j))
}

func TestEmbedExtractRouting(t *testing.T) {
	secret := []byte("routing probe")
	const seed = int64(404)

	t.Run("raster carrier", func(t *testing.T) {
		c, err := Decode(pngBytes(t, opaqueRGBA(20, 20)))
		require.NoError(t, err)
		require.NoError(t, Embed(c, secret, seed))
		got, err := Extract(c, len(secret), seed)
		require.NoError(t, err)
		assert.Equal(t, secret, got)
	})

	t.Run("coefficient carrier", func(t *testing.T) {
		c, err := Decode(jpegBytes(t, 10, 77))
		require.NoError(t, err)
		require.NoError(t, Embed(c, secret, seed))
		got, err := Extract(c, len(secret), seed)
		require.NoError(t, err)
		assert.Equal(t, secret, got)
	})

	t.Run("survives reencode", func(t *testing.T) {
		c, err := Decode(jpegBytes(t, 10, 78))
		require.NoError(t, err)
		require.NoError(t, Embed(c, secret, seed))
		encoded, err := c.Encode()
		require.NoError(t, err)
		again, err := Decode(encoded)
		require.NoError(t, err)
		got, err := Extract(again, len(secret), seed)
		require.NoError(t, err)
		assert.Equal(t, secret, got)
	})
}

func TestCarrierValidate(t *testing.T) {
	testCases := []struct {
		name    string
		carrier *Carrier
	}{
		{name: "png without raster", carrier: &Carrier{Format: FormatPNG}},
		{name: "bmp without raster", carrier: &Carrier{Format: FormatBMP}},
		{name: "jpeg without image", carrier: &Carrier{Format: FormatJPEG}},
		{name: "jpeg without coefficients", carrier: &Carrier{Format: FormatJPEG, JPEG: &jpegdct.Image{}}},
		{name: "unknown format", carrier: &Carrier{Format: FormatUnknown}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, Embed(tc.carrier, []byte{1}, 0), errNoImage)
			_, err := Extract(tc.carrier, 1, 0)
			assert.ErrorIs(t, err, errNoImage)
			_, err = tc.carrier.Encode()
			assert.ErrorIs(t, err, errNoImage)
		})
	}
}
