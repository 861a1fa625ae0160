package integration_test

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/kalashnikxvxiii-collab/StegVault/internal/crypto"
	"github.com/kalashnikxvxiii-collab/StegVault/internal/payload"
	"github.com/kalashnikxvxiii-collab/StegVault/pkg/steg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestoreWithWrongPassphrase(t *testing.T) {
	svc := testService()
	sealed, err := svc.Backup([]byte("hunter2"), "CorrectHorseBatteryStaple92!", pngCarrier(t, 100, 100))
	require.NoError(t, err)

	_, err = svc.Restore(sealed, "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, crypto.ErrAuthentication)
}

func TestTamperedSaltFailsAuthentication(t *testing.T) {
	svc := testService()
	sealed, err := svc.Backup([]byte("hunter2"), "CorrectHorseBatteryStaple92!", pngCarrier(t, 100, 100))
	require.NoError(t, err)

	// The embedded salt occupies units 32 through 159; one flipped bit
	// changes the derived key and the body positions at once.
	c, err := steg.Decode(sealed)
	require.NoError(t, err)
	c.Raster.Samples[40] ^= 1
	tampered, err := c.Encode()
	require.NoError(t, err)

	_, err = svc.Restore(tampered, "CorrectHorseBatteryStaple92!")
	require.Error(t, err)
	assert.ErrorIs(t, err, crypto.ErrAuthentication)
}

func TestTamperedBodyFailsAuthentication(t *testing.T) {
	svc := testService()
	sealed, err := svc.Backup([]byte("hunter2"), "CorrectHorseBatteryStaple92!", pngCarrier(t, 100, 100))
	require.NoError(t, err)

	// Flipping every unit past the header region guarantees the scattered
	// ciphertext and tag bits are hit while the header stays intact.
	c, err := steg.Decode(sealed)
	require.NoError(t, err)
	for i := payload.HeaderSize * 8; i < len(c.Raster.Samples); i++ {
		c.Raster.Samples[i] ^= 1
	}
	tampered, err := c.Encode()
	require.NoError(t, err)

	_, err = svc.Restore(tampered, "CorrectHorseBatteryStaple92!")
	require.Error(t, err)
	assert.ErrorIs(t, err, crypto.ErrAuthentication)
}

func TestCroppedCarrierReportsTruncation(t *testing.T) {
	svc := testService()
	sealed, err := svc.Backup(make([]byte, 3000), "plenty of room up top", pngCarrier(t, 200, 200))
	require.NoError(t, err)

	// Keep the top rows so the header region survives, but drop most of
	// the area the scattered body lives in.
	c, err := steg.Decode(sealed)
	require.NoError(t, err)
	cropped := image.NewNRGBA(image.Rect(0, 0, 200, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 200; x++ {
			i := cropped.PixOffset(x, y)
			cropped.Pix[i] = c.Raster.SampleAt(x, y, 0)
			cropped.Pix[i+1] = c.Raster.SampleAt(x, y, 1)
			cropped.Pix[i+2] = c.Raster.SampleAt(x, y, 2)
			cropped.Pix[i+3] = 0xFF
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, cropped))

	_, err = svc.Restore(buf.Bytes(), "plenty of room up top")
	require.Error(t, err)
	assert.ErrorIs(t, err, payload.ErrTruncated)
}

func TestCapacityFailureBeforeAnyWork(t *testing.T) {
	svc := testService()
	carrierData := pngCarrier(t, 10, 10)
	original := append([]byte(nil), carrierData...)

	_, err := svc.Backup(make([]byte, 10000), "will not fit", carrierData)
	require.Error(t, err)

	var capErr *steg.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, payload.TotalSize(10000)*8, capErr.RequiredBits)
	assert.Equal(t, 296, capErr.AvailableBits)
	assert.Equal(t, original, carrierData)
}
