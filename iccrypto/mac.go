package iccrypto

import (
	"crypto/des"
	"fmt"
)

// ISO9797MACAlg3 computes the "retail MAC": single-DES CBC-MAC over key K1,
// with a final decrypt-K2/encrypt-K1 transform. If pad is true, data is
// padded with Pad7816_4 first; otherwise data must already be block
// aligned.
//
// K1 is key[0:8], K2 is key[8:16].
func ISO9797MACAlg3(key, data []byte, pad bool) ([]byte, error) {
	if len(key) != 16 {
		return nil, fmt.Errorf("iccrypto: MAC key must be 16 bytes (K1||K2), got %d", len(key))
	}
	k1 := key[0:8]
	k2 := key[8:16]

	in := data
	if pad {
		in = Pad7816_4(data)
	}
	if len(in)%des.BlockSize != 0 {
		return nil, fmt.Errorf("iccrypto: MAC input not block aligned (%d bytes)", len(in))
	}

	x := make([]byte, des.BlockSize)
	for off := 0; off < len(in); off += des.BlockSize {
		block := in[off : off+des.BlockSize]
		xored := make([]byte, des.BlockSize)
		for i := range xored {
			xored[i] = x[i] ^ block[i]
		}
		enc, err := desEncryptBlock(k1, xored)
		if err != nil {
			return nil, err
		}
		x = enc
	}

	dec, err := desDecryptBlock(k2, x)
	if err != nil {
		return nil, err
	}
	out, err := desEncryptBlock(k1, dec)
	if err != nil {
		return nil, err
	}
	return out, nil
}
