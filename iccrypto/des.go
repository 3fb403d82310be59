// Package iccrypto implements the BAC profile's cryptographic primitives:
// single- and triple-DES CBC, the ISO/IEC 9797-1 MAC algorithm 3, the ICAO
// key-derivation function, and secure random generation.
package iccrypto

import (
	"crypto/cipher"
	"crypto/des"
	"errors"
	"fmt"
)

// TripleDESCBCEncrypt encrypts data under a 16-byte two-key 3DES schedule
// (K1 || K2, EDE: encrypt-K1, decrypt-K2, encrypt-K1) with the given 8-byte
// IV. data must already be a multiple of the 8-byte block size; pad first
// with Pad7816_4 if needed.
func TripleDESCBCEncrypt(key, iv, data []byte) ([]byte, error) {
	block, err := newTripleDESCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data)%des.BlockSize != 0 {
		return nil, fmt.Errorf("iccrypto: 3DES CBC encrypt: data not block aligned (%d bytes)", len(data))
	}
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

// TripleDESCBCDecrypt is the inverse of TripleDESCBCEncrypt.
func TripleDESCBCDecrypt(key, iv, data []byte) ([]byte, error) {
	block, err := newTripleDESCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data)%des.BlockSize != 0 {
		return nil, fmt.Errorf("iccrypto: 3DES CBC decrypt: data not block aligned (%d bytes)", len(data))
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

func newTripleDESCipher(key []byte) (cipher.Block, error) {
	if len(key) != 16 {
		return nil, fmt.Errorf("iccrypto: 3DES key must be 16 bytes (K1||K2), got %d", len(key))
	}
	// crypto/des.NewTripleDESCipher wants a 24-byte K1||K2||K1 schedule.
	full := make([]byte, 24)
	copy(full[0:8], key[0:8])
	copy(full[8:16], key[8:16])
	copy(full[16:24], key[0:8])
	return des.NewTripleDESCipher(full)
}

// desEncryptBlock encrypts a single 8-byte block under a single-DES key.
func desEncryptBlock(key, block []byte) ([]byte, error) {
	c, err := des.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, des.BlockSize)
	c.Encrypt(out, block)
	return out, nil
}

func desDecryptBlock(key, block []byte) ([]byte, error) {
	c, err := des.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, des.BlockSize)
	c.Decrypt(out, block)
	return out, nil
}

// Pad7816_4 applies ISO/IEC 7816-4 padding: append 0x80 then 0x00 bytes up
// to the next 8-byte boundary.
func Pad7816_4(data []byte) []byte {
	padLen := des.BlockSize - (len(data) % des.BlockSize)
	out := make([]byte, len(data)+padLen)
	copy(out, data)
	out[len(data)] = 0x80
	return out
}

// Unpad7816_4 strips ISO/IEC 7816-4 padding. Stripping is unambiguous
// given the last non-zero byte must be 0x80.
func Unpad7816_4(data []byte) ([]byte, error) {
	idx := len(data) - 1
	for idx >= 0 && data[idx] == 0x00 {
		idx--
	}
	if idx < 0 || data[idx] != 0x80 {
		return nil, errors.New("iccrypto: invalid ISO 7816-4 padding")
	}
	return data[:idx], nil
}
