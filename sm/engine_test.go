package sm

import (
	"bytes"
	"testing"

	"github.com/barnettlynn/emrtd/apdu"
	"github.com/barnettlynn/emrtd/bertlv"
	"github.com/barnettlynn/emrtd/iccrypto"
)

func testKeys() Keys {
	var k Keys
	copy(k.KSenc[:], mustHex("979EC13B1CBFE9DCD01AB0FED307EAE5"))
	copy(k.KSmac[:], mustHex("F1CB1F1FB5ADF208806B89DC579DC1F8"))
	return k
}

func mustHex(s string) []byte {
	b := make([]byte, len(s)/2)
	for i := range b {
		hi := hexNibble(s[i*2])
		lo := hexNibble(s[i*2+1])
		b[i] = hi<<4 | lo
	}
	return b
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	}
	return 0
}

// cardEcho plays the card side of one protected round trip: it decrypts
// the protected command's DO'87' (tracking the SSC with a mirror Engine
// built from the same keys/SSC; the command's DO'8E' MAC is not checked),
// then replies by echoing the plaintext command data back as response
// data with SW=9000, wrapped as the DO'87'/DO'99'/DO'8E' response that
// Engine.Unprotect expects -- this is the "transceive_echo" used in
// spec.md §8 law 2.
func cardEcho(t *testing.T, keys Keys, ssc [8]byte, protected *apdu.Command) []byte {
	t.Helper()
	mirror := NewEngine(keys, ssc)
	mirror.ssc = incrementSSC(mirror.ssc)

	raw := protected.Data
	var do87 *bertlv.TLV
	var do97 *bertlv.TLV
	for len(raw) > 0 {
		tlv, err := bertlv.Decode(raw)
		if err != nil {
			t.Fatalf("card: decode DO: %v", err)
		}
		switch tlv.Tag {
		case tagEncryptedData:
			t2 := tlv
			do87 = &t2
		case tagLe:
			t2 := tlv
			do97 = &t2
		case tagMAC:
			// The command MAC is not verified here; nothing to do.
		}
		raw = raw[tlv.HeaderLen+len(tlv.Value):]
	}

	var plaintext []byte
	if do87 != nil {
		ct := do87.Value[1:]
		padded, err := iccrypto.TripleDESCBCDecrypt(keys.KSenc[:], make([]byte, 8), ct)
		if err != nil {
			t.Fatalf("card: decrypt: %v", err)
		}
		plaintext, err = iccrypto.Unpad7816_4(padded)
		if err != nil {
			t.Fatalf("card: unpad: %v", err)
		}
	}
	_ = do97

	// Build response: echo plaintext back, SW=9000.
	respSSC := mirror.ssc
	respSSC = incrementSSC(respSSC)
	var respDO87 []byte
	if len(plaintext) > 0 {
		padded := iccrypto.Pad7816_4(plaintext)
		ct, err := iccrypto.TripleDESCBCEncrypt(keys.KSenc[:], make([]byte, 8), padded)
		if err != nil {
			t.Fatalf("card: encrypt resp: %v", err)
		}
		respDO87 = bertlv.Encode(tagEncryptedData, append([]byte{0x01}, ct...))
	}
	respDO99 := bertlv.Encode(tagProcessingState, []byte{0x90, 0x00})

	toMAC := append(append([]byte{}, respDO87...), respDO99...)
	macInput := append(append([]byte{}, respSSC[:]...), iccrypto.Pad7816_4(toMAC)...)
	mac, err := iccrypto.ISO9797MACAlg3(keys.KSmac[:], macInput, false)
	if err != nil {
		t.Fatalf("card: mac: %v", err)
	}
	respDO8E := bertlv.Encode(tagMAC, mac)

	out := make([]byte, 0)
	out = append(out, respDO87...)
	out = append(out, respDO99...)
	out = append(out, respDO8E...)
	out = append(out, 0x90, 0x00) // outer SW for the transport-level echo
	return out
}

func TestProtectUnprotect_RoundTrip(t *testing.T) {
	keys := testKeys()
	var ssc [8]byte
	engine := NewEngine(keys, ssc)

	cmd := apdu.NewCommand(0x00, 0xB0, 0x00, 0x00, []byte{0xDE, 0xAD, 0xBE, 0xEF}, 8)
	protected, err := engine.Protect(cmd)
	if err != nil {
		t.Fatalf("Protect: %v", err)
	}

	rawResp := cardEcho(t, keys, ssc, protected)
	resp, err := apdu.Decode(rawResp)
	if err != nil {
		t.Fatalf("decode transport echo: %v", err)
	}

	unwrapped, err := engine.Unprotect(resp)
	if err != nil {
		t.Fatalf("Unprotect: %v", err)
	}
	if !bytes.Equal(unwrapped.Data, cmd.Data) {
		t.Errorf("Unprotect data = % X, want % X", unwrapped.Data, cmd.Data)
	}
	if unwrapped.SW() != 0x9000 {
		t.Errorf("Unprotect SW = %04X, want 9000", unwrapped.SW())
	}
}

func TestProtect_IncrementsSSCByOne(t *testing.T) {
	keys := testKeys()
	engine := NewEngine(keys, [8]byte{})
	before := engine.SSC()
	if _, err := engine.Protect(apdu.NewCommand(0, 0xB0, 0, 0, nil, 0)); err != nil {
		t.Fatalf("Protect: %v", err)
	}
	after := engine.SSC()
	if !sscEqualsPlusOne(before, after) {
		t.Errorf("SSC went from % X to % X, want +1", before, after)
	}
}

// TestProtect_OuterLeAlwaysPresentEvenWithZeroNe covers the case every
// SELECT command hits: a command with no original Le must still be
// protected with an outer Le of 0x00 (short-form "give me whatever you
// have"), since that is what makes the card return the protected
// DO'99'/DO'8E' response objects at all. Without it a compliant card
// returns only a bare status word and Unprotect has nothing to parse.
func TestProtect_OuterLeAlwaysPresentEvenWithZeroNe(t *testing.T) {
	keys := testKeys()
	engine := NewEngine(keys, [8]byte{})

	cmd := apdu.NewCommand(0x00, 0xA4, 0x04, 0x0C, []byte{0xA0, 0x00, 0x00, 0x02, 0x47, 0x10, 0x01}, 0)
	protected, err := engine.Protect(cmd)
	if err != nil {
		t.Fatalf("Protect: %v", err)
	}
	if protected.Ne != apdu.MaxShortLe {
		t.Fatalf("protected.Ne = %d, want %d (outer Le unconditional)", protected.Ne, apdu.MaxShortLe)
	}

	encoded, err := protected.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if encoded[len(encoded)-1] != 0x00 {
		t.Errorf("encoded outer Le byte = %02X, want 00", encoded[len(encoded)-1])
	}
}

func TestUnprotect_IncrementsSSCByOneIndependentOfProtect(t *testing.T) {
	keys := testKeys()
	var ssc [8]byte
	engine := NewEngine(keys, ssc)

	cmd := apdu.NewCommand(0x00, 0xB0, 0x00, 0x00, nil, 8)
	protected, err := engine.Protect(cmd)
	if err != nil {
		t.Fatalf("Protect: %v", err)
	}
	afterProtect := engine.SSC()

	rawResp := cardEcho(t, keys, ssc, protected)
	resp, _ := apdu.Decode(rawResp)
	if _, err := engine.Unprotect(resp); err != nil {
		t.Fatalf("Unprotect: %v", err)
	}
	afterUnprotect := engine.SSC()

	if !sscEqualsPlusOne(afterProtect, afterUnprotect) {
		t.Errorf("SSC after unprotect = % X, want %X + 1", afterUnprotect, afterProtect)
	}
}

func TestUnprotect_TamperedCiphertextFailsMAC(t *testing.T) {
	keys := testKeys()
	var ssc [8]byte
	engine := NewEngine(keys, ssc)

	cmd := apdu.NewCommand(0x00, 0xB0, 0x00, 0x00, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}, 8)
	protected, err := engine.Protect(cmd)
	if err != nil {
		t.Fatalf("Protect: %v", err)
	}
	rawResp := cardEcho(t, keys, ssc, protected)

	// Flip one bit inside the DO'87' ciphertext region (skip the 3-byte
	// tag+length+padding-indicator header of the first TLV).
	tampered := append([]byte{}, rawResp...)
	tampered[5] ^= 0x01

	resp, err := apdu.Decode(tampered)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := engine.Unprotect(resp); err == nil {
		t.Errorf("expected MAC mismatch after tampering, got nil error")
	}
}

func sscEqualsPlusOne(before, after [8]byte) bool {
	want := incrementSSC(before)
	return want == after
}
