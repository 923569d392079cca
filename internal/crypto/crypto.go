package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the length of a derived key (AES-256).
const KeySize = 32

// envelopeSep joins the IV and ciphertext segments of an envelope.
const envelopeSep = ":"

// ErrMalformedCiphertext is returned for any envelope that cannot be decrypted.
var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// Key is the process-wide field encryption key.
type Key [KeySize]byte

// String keeps key material out of logs and fmt output.
func (Key) String() string {
	return "crypto.Key(redacted)"
}

// GoString implements fmt.GoStringer for %#v.
func (k Key) GoString() string {
	return k.String()
}

// DeriveKey hashes an operator-supplied passphrase into a Key with SHA-256.
// There is no salt or stretching: the passphrase is a deployment secret, not a user password.
func DeriveKey(passphrase string) Key {
	return Key(sha256.Sum256([]byte(passphrase)))
}

// DeriveSubkey derives a purpose-bound key from k using HKDF-SHA256.
func DeriveSubkey(k Key, context string) ([]byte, error) {
	sub := make([]byte, KeySize)
	r := hkdf.New(sha256.New, k[:], nil, []byte(context))
	if _, err := io.ReadFull(r, sub); err != nil {
		return nil, fmt.Errorf("deriving subkey: %w", err)
	}
	return sub, nil
}

// Cipher encrypts single text fields with AES-256-CBC.
// It holds no mutable state and is safe for concurrent use.
type Cipher struct {
	block cipher.Block
	rand  io.Reader
}

// NewCipher returns a Cipher bound to key.
func NewCipher(key Key) *Cipher {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		// aes.NewCipher only fails on a bad key length, which Key rules out.
		panic(fmt.Sprintf("creating AES cipher: %v", err))
	}
	return &Cipher{block: block, rand: rand.Reader}
}

// Encrypt returns an envelope "ivHex:cipherHex" using a fresh random IV.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return "", fmt.Errorf("generating IV: %w", err)
	}
	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out, padded)
	return hex.EncodeToString(iv) + envelopeSep + hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. CBC carries no authentication tag, so a tampered
// envelope either fails the padding check or decrypts to garbage.
func (c *Cipher) Decrypt(envelope string) (string, error) {
	ivHex, ctHex, ok := strings.Cut(envelope, envelopeSep)
	if !ok || strings.Contains(ctHex, envelopeSep) {
		return "", fmt.Errorf("%w: missing delimiter", ErrMalformedCiphertext)
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return "", fmt.Errorf("%w: iv: %v", ErrMalformedCiphertext, err)
	}
	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("%w: iv is %d bytes", ErrMalformedCiphertext, len(iv))
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext: %v", ErrMalformedCiphertext, err)
	}
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext is %d bytes", ErrMalformedCiphertext, len(ct))
	}
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(out, ct)
	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	return string(plain), nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, errors.New("invalid padding")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
