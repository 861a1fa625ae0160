package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(0xA0 ^ i)
	}
	return key
}

func testNonce() []byte {
	nonce := make([]byte, NonceSize)
	for i := range nonce {
		nonce[i] = byte(i + 7)
	}
	return nonce
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	testCases := []struct {
		name      string
		plaintext []byte
	}{
		{
			name:      "single byte",
			plaintext: []byte{0x42},
		},
		{
			name:      "short secret",
			plaintext: []byte("hunter2"),
		},
		{
			name:      "binary data",
			plaintext: []byte{0x00, 0xFF, 0x7F, 0x80, 0x01, 0xFE},
		},
		{
			name:      "multi kilobyte",
			plaintext: make([]byte, 4096),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ciphertext, tag, err := Encrypt(testKey(), testNonce(), tc.plaintext)
			require.NoError(t, err)

			assert.Len(t, ciphertext, len(tc.plaintext), "ciphertext must be exactly as long as plaintext")
			assert.Len(t, tag, TagSize)
			if len(tc.plaintext) > 0 {
				assert.NotEqual(t, tc.plaintext, ciphertext)
			}

			plaintext, err := Decrypt(testKey(), testNonce(), ciphertext, tag)
			require.NoError(t, err)
			assert.Equal(t, tc.plaintext, plaintext)
		})
	}
}

func TestDecrypt_TamperedInput(t *testing.T) {
	secret := []byte("attack at dawn")
	ciphertext, tag, err := Encrypt(testKey(), testNonce(), secret)
	require.NoError(t, err)

	testCases := []struct {
		name   string
		mutate func(key, nonce, ct, tag []byte)
	}{
		{
			name:   "flipped ciphertext bit",
			mutate: func(key, nonce, ct, tag []byte) { ct[0] ^= 0x01 },
		},
		{
			name:   "flipped ciphertext high bit",
			mutate: func(key, nonce, ct, tag []byte) { ct[len(ct)-1] ^= 0x80 },
		},
		{
			name:   "flipped tag bit",
			mutate: func(key, nonce, ct, tag []byte) { tag[8] ^= 0x10 },
		},
		{
			name:   "flipped nonce bit",
			mutate: func(key, nonce, ct, tag []byte) { nonce[3] ^= 0x04 },
		},
		{
			name:   "wrong key",
			mutate: func(key, nonce, ct, tag []byte) { key[0] ^= 0xFF },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			key := testKey()
			nonce := testNonce()
			ct := append([]byte(nil), ciphertext...)
			tg := append([]byte(nil), tag...)
			tc.mutate(key, nonce, ct, tg)

			plaintext, err := Decrypt(key, nonce, ct, tg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAuthentication)
			assert.Nil(t, plaintext)
		})
	}
}

func TestEncrypt_RejectsBadSizes(t *testing.T) {
	t.Run("short key", func(t *testing.T) {
		_, _, err := Encrypt(make([]byte, 16), testNonce(), []byte("x"))
		assert.Error(t, err)
	})

	t.Run("short nonce", func(t *testing.T) {
		_, _, err := Encrypt(testKey(), make([]byte, 12), []byte("x"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nonce")
	})
}

func TestDecrypt_RejectsBadSizes(t *testing.T) {
	ciphertext, tag, err := Encrypt(testKey(), testNonce(), []byte("x"))
	require.NoError(t, err)

	t.Run("short nonce", func(t *testing.T) {
		_, err := Decrypt(testKey(), make([]byte, 12), ciphertext, tag)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrAuthentication)
	})

	t.Run("short tag", func(t *testing.T) {
		_, err := Decrypt(testKey(), testNonce(), ciphertext, tag[:8])
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrAuthentication)
	})
}

func TestEncrypt_NonceSensitivity(t *testing.T) {
	secret := []byte("same plaintext")

	ct1, _, err := Encrypt(testKey(), testNonce(), secret)
	require.NoError(t, err)

	nonce2 := testNonce()
	nonce2[0] ^= 0x01
	ct2, _, err := Encrypt(testKey(), nonce2, secret)
	require.NoError(t, err)

	assert.NotEqual(t, ct1, ct2, "different nonces must produce different ciphertexts")
}
