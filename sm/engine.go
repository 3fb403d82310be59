// Package sm implements the ICAO Doc 9303 part 11 §9.8 Secure Messaging
// wrapper: it protects an outgoing command APDU and unwraps/verifies a
// protected response, maintaining the send-sequence counter (SSC).
package sm

import (
	"bytes"
	"fmt"

	"github.com/barnettlynn/emrtd/apdu"
	"github.com/barnettlynn/emrtd/bertlv"
	"github.com/barnettlynn/emrtd/iccrypto"
)

// BER-TLV tags for the ICAO part 11 §9.8 secure messaging data objects.
const (
	tagEncryptedData   = 0x87
	tagLe              = 0x97
	tagProcessingState = 0x99
	tagMAC             = 0x8E

	// encryptedDataPaddingIndicator is the DO'87' prefix byte signalling
	// "data is padded".
	encryptedDataPaddingIndicator = 0x01

	// protectedCLA marks secure messaging, command header authenticated,
	// no command chaining.
	protectedCLA = 0x0C
)

// Keys holds the session keys established by BAC (or a future PACE
// engine): KSenc (16-byte two-key 3DES) and KSmac (16-byte MAC key).
type Keys struct {
	KSenc [16]byte
	KSmac [16]byte
}

// Protector is the interface icc consults on every send; it lets a future
// PACE-derived engine stand in for Engine without icc depending on this
// package's concrete type (§9 "Pluggability").
type Protector interface {
	Protect(cmd *apdu.Command) (*apdu.Command, error)
	Unprotect(resp *apdu.Response) (*apdu.Response, error)
}

// Engine is the Secure Messaging session: session keys plus the mutable
// 8-byte SSC. A cryptographic failure does not roll the SSC back -- the
// session is discarded by the caller and may be re-established (e.g. via
// BAC re-initiation).
type Engine struct {
	keys Keys
	ssc  [8]byte
}

// NewEngine installs a Secure Messaging session with the given keys and
// initial SSC.
func NewEngine(keys Keys, ssc [8]byte) *Engine {
	return &Engine{keys: keys, ssc: ssc}
}

// SSC returns the current send-sequence counter value, mostly for tests
// and diagnostics.
func (e *Engine) SSC() [8]byte { return e.ssc }

func incrementSSC(ssc [8]byte) [8]byte {
	for i := 7; i >= 0; i-- {
		ssc[i]++
		if ssc[i] != 0 {
			break
		}
	}
	return ssc
}

// Protect increments the SSC and wraps cmd into a protected command per
// §4.3: encrypted data in DO'87', Le in DO'97', a MAC over SSC || padded
// header||DOs in DO'8E'.
func (e *Engine) Protect(cmd *apdu.Command) (*apdu.Command, error) {
	e.ssc = incrementSSC(e.ssc)

	header := []byte{protectedCLA, cmd.INS, cmd.P1, cmd.P2}

	var do87, do97 []byte
	if len(cmd.Data) > 0 {
		padded := iccrypto.Pad7816_4(cmd.Data)
		ct, err := iccrypto.TripleDESCBCEncrypt(e.keys.KSenc[:], make([]byte, 8), padded)
		if err != nil {
			return nil, fmt.Errorf("sm: protect: encrypt data: %w", err)
		}
		value := append([]byte{encryptedDataPaddingIndicator}, ct...)
		do87 = bertlv.Encode(tagEncryptedData, value)
	}
	if cmd.Ne > 0 {
		do97 = bertlv.Encode(tagLe, encodeLe(cmd.Ne))
	}

	macInput := make([]byte, 0, 8+len(header)+len(do87)+len(do97)+8)
	macInput = append(macInput, e.ssc[:]...)
	toPad := make([]byte, 0, len(header)+len(do87)+len(do97))
	toPad = append(toPad, header...)
	toPad = append(toPad, do87...)
	toPad = append(toPad, do97...)
	macInput = append(macInput, iccrypto.Pad7816_4(toPad)...)

	mac, err := iccrypto.ISO9797MACAlg3(e.keys.KSmac[:], macInput, false)
	if err != nil {
		return nil, fmt.Errorf("sm: protect: compute MAC: %w", err)
	}
	do8e := bertlv.Encode(tagMAC, mac)

	data := make([]byte, 0, len(do87)+len(do97)+len(do8e))
	data = append(data, do87...)
	data = append(data, do97...)
	data = append(data, do8e...)

	// The outer Le is unconditionally present: it is what makes the card
	// return the protected DO'99'/DO'8E' response objects at all, even for
	// a command whose original Ne was 0 (e.g. SELECT). The DO'97' above
	// already told the card the plaintext Le the caller actually wants.
	return apdu.NewCommand(protectedCLA, cmd.INS, cmd.P1, cmd.P2, data, apdu.MaxShortLe), nil
}

// encodeLe renders an expected-length value as the raw bytes a DO'97'
// carries: one byte for the short form (0x00 means 256), two bytes
// big-endian for the extended form (0x0000 means 65536).
func encodeLe(ne int) []byte {
	if ne <= apdu.MaxShortLe {
		if ne == apdu.MaxShortLe {
			return []byte{0x00}
		}
		return []byte{byte(ne)}
	}
	if ne == apdu.MaxExtLe {
		return []byte{0x00, 0x00}
	}
	return []byte{byte(ne >> 8), byte(ne)}
}

// Unprotect increments the SSC and verifies+unwraps a protected response
// per §4.3. A MAC mismatch is fatal to the session.
func (e *Engine) Unprotect(resp *apdu.Response) (*apdu.Response, error) {
	e.ssc = incrementSSC(e.ssc)

	raw := resp.Data
	var do87TLV, do99TLV, do8eTLV *bertlv.TLV

	for len(raw) > 0 {
		tlv, err := bertlv.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("sm: unprotect: malformed data object: %w", err)
		}
		switch tlv.Tag {
		case tagEncryptedData:
			t := tlv
			do87TLV = &t
		case tagProcessingState:
			t := tlv
			do99TLV = &t
		case tagMAC:
			t := tlv
			do8eTLV = &t
		default:
			return nil, fmt.Errorf("sm: unprotect: unexpected tag 0x%02X", tlv.Tag)
		}
		raw = raw[tlv.HeaderLen+len(tlv.Value):]
	}

	if do99TLV == nil {
		return nil, fmt.Errorf("sm: unprotect: missing DO'99' (protected status word)")
	}
	if do8eTLV == nil {
		return nil, fmt.Errorf("sm: unprotect: missing DO'8E' (MAC)")
	}
	if len(do99TLV.Value) != 2 {
		return nil, fmt.Errorf("sm: unprotect: DO'99' must carry a 2-byte status word, got %d", len(do99TLV.Value))
	}

	toMAC := make([]byte, 0, 16)
	if do87TLV != nil {
		toMAC = append(toMAC, bertlv.Encode(tagEncryptedData, do87TLV.Value)...)
	}
	toMAC = append(toMAC, bertlv.Encode(tagProcessingState, do99TLV.Value)...)

	macInput := make([]byte, 0, 8+len(toMAC)+8)
	macInput = append(macInput, e.ssc[:]...)
	macInput = append(macInput, iccrypto.Pad7816_4(toMAC)...)

	mac, err := iccrypto.ISO9797MACAlg3(e.keys.KSmac[:], macInput, false)
	if err != nil {
		return nil, fmt.Errorf("sm: unprotect: compute MAC: %w", err)
	}
	if !bytes.Equal(mac, do8eTLV.Value) {
		return nil, fmt.Errorf("sm: unprotect: MAC mismatch, session must be discarded")
	}

	var plaintext []byte
	if do87TLV != nil {
		if len(do87TLV.Value) == 0 || do87TLV.Value[0] != encryptedDataPaddingIndicator {
			return nil, fmt.Errorf("sm: unprotect: DO'87' missing padding indicator")
		}
		ct := do87TLV.Value[1:]
		padded, err := iccrypto.TripleDESCBCDecrypt(e.keys.KSenc[:], make([]byte, 8), ct)
		if err != nil {
			return nil, fmt.Errorf("sm: unprotect: decrypt data: %w", err)
		}
		plaintext, err = iccrypto.Unpad7816_4(padded)
		if err != nil {
			return nil, fmt.Errorf("sm: unprotect: remove padding: %w", err)
		}
	}

	return &apdu.Response{
		Data: plaintext,
		SW1:  do99TLV.Value[0],
		SW2:  do99TLV.Value[1],
	}, nil
}
