package aead

import (
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"

	miscreant "github.com/miscreant/miscreant-go"
)

const miscreantNonceSize = 16

var algorithmType = "AES-CMAC-SIV"

var (
	// ErrInvalidValue is an error for an invalid value
	ErrInvalidValue = errors.New("invalid value")
)

// Cipher seals and opens values bound to a piece of associated data, typically
// the name of the cookie or key the value is stored under. A value sealed for
// one name will not open under another.
type Cipher interface {
	Seal(plaintext, associated []byte) ([]byte, error)
	Open(joined, associated []byte) ([]byte, error)
	Marshal(associated string, v interface{}) (string, error)
	Unmarshal(associated, value string, v interface{}) error
}

// MiscreantCipher is an AES-CMAC-SIV Cipher. The nonce travels appended to the ciphertext.
type MiscreantCipher struct {
	aead cipher.AEAD
}

// NewMiscreantCipher returns a Cipher keyed with secret, which must be 32 or 64 bytes.
func NewMiscreantCipher(secret []byte) (*MiscreantCipher, error) {
	aead, err := miscreant.NewAEAD(algorithmType, secret, miscreantNonceSize)
	if err != nil {
		return nil, err
	}
	return &MiscreantCipher{
		aead: aead,
	}, nil
}

// GenerateKey wraps miscreant's GenerateKey function
func GenerateKey() []byte {
	return miscreant.GenerateKey(32)
}

// Seal encrypts plaintext and authenticates it together with associated.
func (c *MiscreantCipher) Seal(plaintext, associated []byte) (joined []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrInvalidValue
		}
	}()
	nonce := miscreant.GenerateNonce(c.aead)
	ciphertext := c.aead.Seal(nil, nonce, plaintext, associated)

	joined = append(ciphertext[:], nonce[:]...)
	return joined, nil
}

// Open reverses Seal. It fails if associated differs from the value used to seal.
func (c *MiscreantCipher) Open(joined, associated []byte) ([]byte, error) {
	if len(joined) <= miscreantNonceSize {
		return nil, ErrInvalidValue
	}
	pivot := len(joined) - miscreantNonceSize
	ciphertext := joined[:pivot]
	nonce := joined[pivot:]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, associated)
	if err != nil {
		return nil, err
	}

	return plaintext, nil
}

// Marshal encodes v as JSON, seals it and returns the unpadded base64url form.
func (c *MiscreantCipher) Marshal(associated string, v interface{}) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	ciphertext, err := c.Seal(plaintext, []byte(associated))
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

// Unmarshal reverses Marshal into the pointer v.
func (c *MiscreantCipher) Unmarshal(associated, value string, v interface{}) error {
	ciphertext, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return err
	}

	plaintext, err := c.Open(ciphertext, []byte(associated))
	if err != nil {
		return err
	}

	return json.Unmarshal(plaintext, v)
}
