package iccrypto

import (
	"crypto/sha1"
	"encoding/binary"
)

// KDF derives a 16-byte 3DES key from a seed and a 4-byte big-endian
// counter per ICAO Doc 9303: SHA-1(seed || counter), truncated to the
// first 16 bytes, with parity-adjusted DES key halves.
//
// counter 1 yields the encryption key (DeriveEncKey), counter 2 yields
// the MAC key (DeriveMACKey).
func KDF(seed []byte, counter uint32) []byte {
	var c [4]byte
	binary.BigEndian.PutUint32(c[:], counter)

	h := sha1.New()
	h.Write(seed)
	h.Write(c[:])
	digest := h.Sum(nil)

	key := make([]byte, 16)
	copy(key, digest[:16])
	setDESParity(key[0:8])
	setDESParity(key[8:16])
	return key
}

// DeriveEncKey derives KSenc/Kenc (DeriveKey.desEDE in spec terms).
func DeriveEncKey(seed []byte) []byte {
	return KDF(seed, 1)
}

// DeriveMACKey derives KSmac/Kmac (DeriveKey.iso9797MacAlg3 in spec terms).
func DeriveMACKey(seed []byte) []byte {
	return KDF(seed, 2)
}

// setDESParity adjusts each byte of a DES key half so the low bit gives
// odd parity over the byte, per the DES key-schedule convention.
func setDESParity(k []byte) {
	for i, b := range k {
		var ones int
		for bit := 1; bit < 8; bit++ {
			if b&(1<<uint(bit)) != 0 {
				ones++
			}
		}
		if ones%2 == 0 {
			k[i] = b | 0x01
		} else {
			k[i] = b &^ 0x01
		}
	}
}
