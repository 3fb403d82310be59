package icc

import (
	"context"
	"fmt"

	"github.com/barnettlynn/emrtd/apdu"
	"github.com/barnettlynn/emrtd/bertlv"
)

const (
	insGetChallenge         = 0x84
	insExternalAuthenticate = 0x82
	insInternalAuthenticate = 0x88
	insReadBinary           = 0xB0
	insReadBinaryExtended   = 0xB1

	tagOffset = 0x54
	tagData53 = 0x53

	// sfiIndicator marks P1 as carrying a short file identifier rather
	// than the high byte of a 15-bit offset.
	sfiIndicator byte = 0x80

	// maxShortOffset is the largest offset encodable in the P1P2 form
	// (bit 8 of P1 must stay clear).
	maxShortOffset = 0x7FFF
)

// GetChallenge requests an 8-byte random challenge from the card (step 1
// of BAC, §4.5).
func (icc *ICC) GetChallenge(ctx context.Context) ([]byte, error) {
	resp, err := icc.Send(ctx, apdu.NewCommand(0x00, insGetChallenge, 0x00, 0x00, nil, 8))
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ExternalAuthenticate sends the BAC mutual-authentication data and
// returns the card's response (E.ICC || M.ICC).
func (icc *ICC) ExternalAuthenticate(ctx context.Context, data []byte, ne int) (*apdu.Response, error) {
	return icc.Send(ctx, apdu.NewCommand(0x00, insExternalAuthenticate, 0x00, 0x00, data, ne))
}

// InternalAuthenticate is a thin Active Authentication pass-through
// primitive: it sends challenge and returns the raw signed response
// without cryptographic verification, which is the caller's
// responsibility (out of this core's scope per §1).
func (icc *ICC) InternalAuthenticate(ctx context.Context, challenge []byte, ne int) ([]byte, error) {
	resp, err := icc.Send(ctx, apdu.NewCommand(0x00, insInternalAuthenticate, 0x00, 0x00, challenge, ne))
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ReadBinary reads ne bytes starting at a 15-bit offset (0..32767); bit 8
// of P1 stays clear.
func (icc *ICC) ReadBinary(ctx context.Context, offset int, ne int) (*apdu.Response, error) {
	if offset < 0 || offset > maxShortOffset {
		return nil, fmt.Errorf("icc: ReadBinary: offset %d out of range 0..%d", offset, maxShortOffset)
	}
	p1 := byte(offset >> 8)
	p2 := byte(offset)
	return icc.Send(ctx, apdu.NewCommand(0x00, insReadBinary, p1, p2, nil, ne))
}

// ReadBinaryBySFI reads ne bytes from the EF identified by sfi (0..31),
// starting at a 1-byte offset (0..255). P1 = 0x80|sfi, P2 = offset.
func (icc *ICC) ReadBinaryBySFI(ctx context.Context, sfi byte, offset byte, ne int) (*apdu.Response, error) {
	if sfi > 0x1F {
		return nil, fmt.Errorf("icc: ReadBinaryBySFI: sfi %d out of range 0..31", sfi)
	}
	p1 := sfiIndicator | sfi
	return icc.Send(ctx, apdu.NewCommand(0x00, insReadBinary, p1, offset, nil, ne))
}

// ReadBinaryExtended reads ne bytes starting at a 32-bit offset using
// INS 0xB1, wrapping the offset in DO'54' and unwrapping the returned
// data from DO'53' (§4.6 scenario S6). The returned Response's Data field
// is already the unwrapped DO'53' value, not the raw DO'53' TLV, so
// callers can treat it identically to ReadBinary's result. On a
// non-success status word the DO'53' value (if the card included one) is
// still surfaced in the same way ReadBinary surfaces partial data.
func (icc *ICC) ReadBinaryExtended(ctx context.Context, offset uint32, ne int) (*apdu.Response, error) {
	offsetBytes := []byte{byte(offset >> 24), byte(offset >> 16), byte(offset >> 8), byte(offset)}
	// Trim leading zero bytes: BER-TLV offsets are minimal-length.
	start := 0
	for start < len(offsetBytes)-1 && offsetBytes[start] == 0 {
		start++
	}
	do54 := bertlv.Encode(tagOffset, offsetBytes[start:])

	resp, sendErr := icc.Send(ctx, apdu.NewCommand(0x00, insReadBinaryExtended, 0x00, 0x00, do54, ne))
	if resp == nil {
		return nil, sendErr
	}

	var value []byte
	if len(resp.Data) > 0 {
		if tlv, tlvErr := bertlv.Decode(resp.Data); tlvErr == nil && tlv.Tag == tagData53 {
			value = tlv.Value
		}
	}
	out := &apdu.Response{Data: value, SW1: resp.SW1, SW2: resp.SW2}
	if sendErr != nil {
		return out, sendErr
	}
	if value == nil {
		return out, fmt.Errorf("icc: ReadBinaryExtended: missing DO'53' in response")
	}
	return out, nil
}
