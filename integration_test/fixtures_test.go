package integration_test

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"github.com/kalashnikxvxiii-collab/StegVault/internal/crypto"
	"github.com/kalashnikxvxiii-collab/StegVault/internal/service"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

// testService builds a vault service with cheap key derivation parameters.
// The cost parameters only change how long derivation takes, never the
// container layout, so every scenario below holds for the production
// parameters too.
func testService() service.VaultService {
	params := crypto.KDFParams{Time: 1, MemoryKiB: 64, Threads: 1, KeyLen: crypto.KeySize}
	return service.NewVaultService(params, nil)
}

// gradientImage fills a deterministic smooth ramp, the worst case for DCT
// carriers and a fine case for LSB carriers.
func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
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

// noiseImage fills seeded noise, which survives JPEG quantization with
// plenty of usable coefficients.
func noiseImage(w, h int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(rng.Intn(256))
		img.Pix[i+1] = uint8(rng.Intn(256))
		img.Pix[i+2] = uint8(rng.Intn(256))
		img.Pix[i+3] = 0xFF
	}
	return img
}

func pngCarrier(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, gradientImage(w, h)))
	return buf.Bytes()
}

func bmpCarrier(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, gradientImage(w, h)))
	return buf.Bytes()
}

func jpegCarrier(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, noiseImage(w, h, 42), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}
