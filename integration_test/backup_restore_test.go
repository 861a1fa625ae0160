package integration_test

import (
	"testing"

	"github.com/kalashnikxvxiii-collab/StegVault/internal/payload"
	"github.com/kalashnikxvxiii-collab/StegVault/pkg/steg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupRestorePNG(t *testing.T) {
	svc := testService()
	carrierData := pngCarrier(t, 100, 100)
	secret := []byte("hunter2")
	passphrase := "CorrectHorseBatteryStaple92!"

	sealed, err := svc.Backup(secret, passphrase, carrierData)
	require.NoError(t, err)

	c, err := steg.Decode(sealed)
	require.NoError(t, err)
	assert.Equal(t, steg.FormatPNG, c.Format)
	assert.Equal(t, 100, c.Raster.Width)
	assert.Equal(t, 100, c.Raster.Height)

	recovered, err := svc.Restore(sealed, passphrase)
	require.NoError(t, err)
	assert.Equal(t, secret, recovered)
}

func TestBackupRestoreBMP(t *testing.T) {
	svc := testService()
	carrierData := bmpCarrier(t, 80, 60)
	secret := []byte("bmp carriers keep their secrets too")

	sealed, err := svc.Backup(secret, "a sailing ship at anchor", carrierData)
	require.NoError(t, err)

	c, err := steg.Decode(sealed)
	require.NoError(t, err)
	assert.Equal(t, steg.FormatBMP, c.Format)

	recovered, err := svc.Restore(sealed, "a sailing ship at anchor")
	require.NoError(t, err)
	assert.Equal(t, secret, recovered)
}

func TestBackupRestoreJPEG(t *testing.T) {
	svc := testService()
	carrierData := jpegCarrier(t, 256, 256)
	secret := make([]byte, 200)
	for i := range secret {
		secret[i] = byte(i * 31)
	}

	sealed, err := svc.Backup(secret, "parity carries the payload", carrierData)
	require.NoError(t, err)

	c, err := steg.Decode(sealed)
	require.NoError(t, err)
	assert.Equal(t, steg.FormatJPEG, c.Format)

	recovered, err := svc.Restore(sealed, "parity carries the payload")
	require.NoError(t, err)
	assert.Equal(t, secret, recovered)
}

func TestBackupLeavesCarrierDataUntouched(t *testing.T) {
	svc := testService()
	carrierData := pngCarrier(t, 100, 100)
	original := append([]byte(nil), carrierData...)

	_, err := svc.Backup([]byte("copy on write"), "the original stays put", carrierData)
	require.NoError(t, err)
	assert.Equal(t, original, carrierData)
}

func TestRestoreFromCleanCarrier(t *testing.T) {
	svc := testService()

	_, err := svc.Restore(pngCarrier(t, 100, 100), "any passphrase")
	require.Error(t, err)
	assert.ErrorIs(t, err, payload.ErrBadMagic)
}

func TestInspectDistinguishesSealedCarriers(t *testing.T) {
	svc := testService()
	carrierData := pngCarrier(t, 100, 100)

	info, err := svc.Inspect(carrierData)
	require.NoError(t, err)
	assert.False(t, info.Present)

	sealed, err := svc.Backup([]byte("hunter2"), "CorrectHorseBatteryStaple92!", carrierData)
	require.NoError(t, err)

	info, err = svc.Inspect(sealed)
	require.NoError(t, err)
	assert.True(t, info.Present)
	assert.True(t, info.Complete)
	assert.Equal(t, 7, info.CiphertextLen)
	assert.Equal(t, payload.TotalSize(7), info.TotalBytes)
}

func TestCapacityMatchesAcrossFormats(t *testing.T) {
	svc := testService()

	info, err := svc.Capacity(pngCarrier(t, 100, 100))
	require.NoError(t, err)
	assert.Equal(t, 3750, info.TotalBytes)
	assert.Equal(t, 3750-payload.HeaderSize-payload.TagSize, info.SecretBytes)

	// A secret of exactly SecretBytes fills the carrier to the last bit.
	secret := make([]byte, info.SecretBytes)
	sealed, err := svc.Backup(secret, "filled to the brim", pngCarrier(t, 100, 100))
	require.NoError(t, err)

	recovered, err := svc.Restore(sealed, "filled to the brim")
	require.NoError(t, err)
	assert.Equal(t, secret, recovered)

	_, err = svc.Backup(make([]byte, info.SecretBytes+1), "one byte over", pngCarrier(t, 100, 100))
	require.Error(t, err)
}
