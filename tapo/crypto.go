// Copyright (c) 2025 Chris Kempo
// Licensed under the MIT License

package tapo

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
)

const rsaKeyBits = 1024

// sessionCipher encrypts and decrypts secure-passthrough payloads with the
// AES-128-CBC key material negotiated during the handshake.
type sessionCipher struct {
	block cipher.Block
	iv    []byte
}

func newSessionCipher(key, iv []byte) (*sessionCipher, error) {
	if len(key) != aes.BlockSize || len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("session key material must be %d+%d bytes, got %d+%d",
			aes.BlockSize, aes.BlockSize, len(key), len(iv))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &sessionCipher{block: block, iv: iv}, nil
}

func (c *sessionCipher) encrypt(plain []byte) []byte {
	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, padded)
	return out
}

func (c *sessionCipher) decrypt(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(data))
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, data)
	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(data []byte, size int) []byte {
	n := size - len(data)%size
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, size int) ([]byte, error) {
	if len(data) == 0 || len(data)%size != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > size {
		return nil, fmt.Errorf("invalid padding byte %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}

// generateKeyPair creates the ephemeral RSA keypair offered during the
// handshake. The public half goes to the device as PEM text; the private
// half decrypts the session key the device answers with.
func generateKeyPair() (*rsa.PrivateKey, string, error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, "", err
	}

	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, "", err
	}

	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return priv, string(pubPEM), nil
}

// decryptHandshakeKey recovers the AES key and IV from the device's
// handshake reply: 32 RSA-encrypted bytes, key first, IV second.
func decryptHandshakeKey(encoded string, priv *rsa.PrivateKey) (key, iv []byte, err error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, nil, fmt.Errorf("handshake key is not valid base64: %w", err)
	}

	material, err := rsa.DecryptPKCS1v15(nil, priv, ciphertext)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt handshake key: %w", err)
	}
	if len(material) != 2*aes.BlockSize {
		return nil, nil, fmt.Errorf("handshake key material is %d bytes, want %d", len(material), 2*aes.BlockSize)
	}

	return material[:aes.BlockSize], material[aes.BlockSize:], nil
}

// hashUsername derives the login username: hex-encoded SHA1 of the account
// email, as the device firmware expects.
func hashUsername(email string) string {
	sum := sha1.Sum([]byte(email))
	return hex.EncodeToString(sum[:])
}
