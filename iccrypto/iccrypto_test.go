package iccrypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex fixture %q: %v", s, err)
	}
	return b
}

// TestKDF_ICAOWorkedExample pins KDF against the ICAO Doc 9303 Part 11
// Appendix D worked example seed.
func TestKDF_ICAOWorkedExample(t *testing.T) {
	seed := mustHex(t, "239AB9CB282DAF66231DC5A4DF6BFBAE")
	wantEnc := mustHex(t, "AB94FDECF2674FDFB9B391F85D7F76F2")
	wantMac := mustHex(t, "7962D9ECE03D1ACD4C76089DCE131543")

	if got := DeriveEncKey(seed); !bytes.Equal(got, wantEnc) {
		t.Errorf("DeriveEncKey = % X, want % X", got, wantEnc)
	}
	if got := DeriveMACKey(seed); !bytes.Equal(got, wantMac) {
		t.Errorf("DeriveMACKey = % X, want % X", got, wantMac)
	}
}

func TestPad7816_4_RoundTrip(t *testing.T) {
	tests := [][]byte{
		{},
		{0x01},
		bytes.Repeat([]byte{0xAA}, 7),
		bytes.Repeat([]byte{0xAA}, 8),
		bytes.Repeat([]byte{0xAA}, 15),
	}
	for _, data := range tests {
		padded := Pad7816_4(data)
		if len(padded)%8 != 0 {
			t.Errorf("Pad7816_4(%d bytes) not block aligned: %d", len(data), len(padded))
		}
		got, err := Unpad7816_4(padded)
		if err != nil {
			t.Fatalf("Unpad7816_4: %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("round trip = % X, want % X", got, data)
		}
	}
}

func TestUnpad7816_4_RejectsMissingMarker(t *testing.T) {
	if _, err := Unpad7816_4([]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}); err == nil {
		t.Errorf("expected error for all-zero input")
	}
}

func TestTripleDESCBC_RoundTrip(t *testing.T) {
	key := mustHex(t, "AB94FDECF2674FDFB9B391F85D7F76F2")
	iv := make([]byte, 8)
	plain := Pad7816_4([]byte("hello, ICAO"))

	ct, err := TripleDESCBCEncrypt(key, iv, plain)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	pt, err := TripleDESCBCDecrypt(key, iv, ct)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(pt, plain) {
		t.Errorf("round trip = % X, want % X", pt, plain)
	}
}

// TestISO9797MACAlg3_WithoutPaddingRequiresBlockAlignment documents law 4
// from spec.md §8: MAC3(k,m) = MAC3(k, m||0x80||0x00*) when padding is
// requested; without padding the input must already be block aligned.
func TestISO9797MACAlg3_WithoutPaddingRequiresBlockAlignment(t *testing.T) {
	key := mustHex(t, "7962D9ECE03D1ACD4C76089DCE131543")
	aligned := bytes.Repeat([]byte{0x11}, 16)

	macPadded, err := ISO9797MACAlg3(key, aligned, true)
	if err != nil {
		t.Fatalf("padded MAC: %v", err)
	}
	macExplicit, err := ISO9797MACAlg3(key, Pad7816_4(aligned), false)
	if err != nil {
		t.Fatalf("explicit-pad MAC: %v", err)
	}
	if !bytes.Equal(macPadded, macExplicit) {
		t.Errorf("MAC3(k,m) != MAC3(k, pad(m)): % X vs % X", macPadded, macExplicit)
	}

	if _, err := ISO9797MACAlg3(key, aligned[:5], false); err == nil {
		t.Errorf("expected error for unaligned input without padding")
	}
}

func TestRandomBytes_Length(t *testing.T) {
	b, err := RandomBytes(16)
	if err != nil {
		t.Fatalf("RandomBytes: %v", err)
	}
	if len(b) != 16 {
		t.Errorf("len = %d, want 16", len(b))
	}
}
