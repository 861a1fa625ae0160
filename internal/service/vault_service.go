// Package service composes the crypto, payload, and steg layers into the
// backup and restore operations the application layer calls. The package
// never logs and never retries; every failure is returned as a typed error
// for the caller to present.
package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/kalashnikxvxiii-collab/StegVault/internal/crypto"
	"github.com/kalashnikxvxiii-collab/StegVault/internal/payload"
	"github.com/kalashnikxvxiii-collab/StegVault/pkg/steg"
)

// CapacityInfo describes how much secret data a carrier image can hold.
type CapacityInfo struct {
	Format      steg.Format
	Width       int
	Height      int
	TotalBytes  int
	SecretBytes int
}

// PayloadInfo describes what Inspect found in a carrier without attempting
// decryption. Present reports whether the leading units parse as a payload
// header; Complete reports whether the declared body also fits inside the
// carrier's capacity.
type PayloadInfo struct {
	Present       bool
	Complete      bool
	CiphertextLen int
	TotalBytes    int
}

// VaultService is the core surface exposed to the application layer:
// sealing a secret into a carrier image and recovering it again.
type VaultService interface {
	Backup(secret []byte, passphrase string, carrierData []byte) ([]byte, error)
	Restore(carrierData []byte, passphrase string) ([]byte, error)
	Capacity(carrierData []byte) (*CapacityInfo, error)
	Inspect(carrierData []byte) (*PayloadInfo, error)
}

type vaultService struct {
	params  crypto.KDFParams
	entropy io.Reader
}

// NewVaultService builds a service around the given KDF cost parameters and
// entropy source. A nil entropy source falls back to crypto/rand.
func NewVaultService(params crypto.KDFParams, entropy io.Reader) VaultService {
	if entropy == nil {
		entropy = rand.Reader
	}
	return &vaultService{params: params, entropy: entropy}
}

// NewDefaultVaultService builds a service with the format version 1 cost
// parameters and the operating system entropy source.
func NewDefaultVaultService() VaultService {
	return NewVaultService(crypto.ParamsV1(), rand.Reader)
}

// Backup seals secret under passphrase and hides the resulting payload
// inside the carrier image, returning the re-encoded image bytes. The
// carrier data itself is never modified.
func (s *vaultService) Backup(secret []byte, passphrase string, carrierData []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("secret must not be empty")
	}
	if passphrase == "" {
		return nil, errors.New("passphrase must not be empty")
	}

	c, err := steg.Decode(carrierData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode carrier: %w", err)
	}

	// Ciphertext length equals secret length, so the final payload size is
	// known before any expensive key derivation runs.
	required := payload.TotalSize(len(secret))
	if capBytes := steg.Capacity(c); required > capBytes {
		return nil, &steg.CapacityError{RequiredBits: required * 8, AvailableBits: capBytes * 8}
	}

	salt, err := crypto.NewSalt(s.entropy)
	if err != nil {
		return nil, err
	}
	nonce, err := crypto.NewNonce(s.entropy)
	if err != nil {
		return nil, err
	}

	key, err := crypto.DeriveKey([]byte(passphrase), salt, s.params)
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(key)

	ciphertext, tag, err := crypto.Encrypt(key, nonce, secret)
	if err != nil {
		return nil, err
	}

	data, err := payload.Serialize(salt, nonce, ciphertext, tag)
	if err != nil {
		return nil, err
	}
	if err := steg.EmbedPayload(c, data); err != nil {
		return nil, err
	}
	return c.Encode()
}

// Restore extracts the payload hidden in the carrier image and decrypts it
// with the given passphrase.
func (s *vaultService) Restore(carrierData []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase must not be empty")
	}

	c, err := steg.Decode(carrierData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode carrier: %w", err)
	}
	data, err := steg.ExtractPayload(c)
	if err != nil {
		return nil, err
	}
	p, err := payload.Parse(data)
	if err != nil {
		return nil, err
	}

	key, err := crypto.DeriveKey([]byte(passphrase), p.Salt, s.params)
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(key)

	return crypto.Decrypt(key, p.Nonce, p.Ciphertext, p.Tag)
}

// Capacity reports the carrier's embedding capacity and the largest secret
// it can hold once the fixed payload overhead is subtracted.
func (s *vaultService) Capacity(carrierData []byte) (*CapacityInfo, error) {
	c, err := steg.Decode(carrierData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode carrier: %w", err)
	}
	info := &CapacityInfo{
		Format:     c.Format,
		TotalBytes: steg.Capacity(c),
	}
	switch c.Format {
	case steg.FormatJPEG:
		info.Width = c.JPEG.Width()
		info.Height = c.JPEG.Height()
	default:
		info.Width = c.Raster.Width
		info.Height = c.Raster.Height
	}
	if secretBytes := info.TotalBytes - payload.HeaderSize - payload.TagSize; secretBytes > 0 {
		info.SecretBytes = secretBytes
	}
	return info, nil
}

// Inspect reports whether the carrier appears to hold a payload, without
// decrypting anything. A carrier too small for even the fixed header, or
// one whose leading units do not parse as a header, reports absence rather
// than an error.
func (s *vaultService) Inspect(carrierData []byte) (*PayloadInfo, error) {
	c, err := steg.Decode(carrierData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode carrier: %w", err)
	}

	info := &PayloadInfo{}
	hdrBytes, err := steg.ExtractHeader(c)
	if err != nil {
		var capErr *steg.CapacityError
		if errors.As(err, &capErr) {
			return info, nil
		}
		return nil, err
	}
	hdr, err := payload.ParseHeader(hdrBytes)
	if err != nil {
		return info, nil
	}

	info.Present = true
	info.CiphertextLen = hdr.CiphertextLen
	info.TotalBytes = payload.TotalSize(hdr.CiphertextLen)
	info.Complete = info.TotalBytes <= steg.Capacity(c)
	return info, nil
}
