// Package bertlv is a small slice-based BER-TLV tag/length/value cursor,
// shared by the Secure Messaging data objects (sm) and EF header parsing
// (mrtd). It only supports the single-byte tag, definite-length forms
// used throughout ICAO Doc 9303 and ISO/IEC 7816-4.
package bertlv

import "fmt"

// TLV is one decoded tag/length/value triple.
type TLV struct {
	Tag   byte
	Value []byte
	// HeaderLen is the number of bytes the tag + length fields occupied.
	HeaderLen int
}

// Encode wraps value in a TLV under tag, using the shortest valid BER
// length encoding.
func Encode(tag byte, value []byte) []byte {
	length := len(value)
	var lenBytes []byte
	switch {
	case length < 0x80:
		lenBytes = []byte{byte(length)}
	case length <= 0xFF:
		lenBytes = []byte{0x81, byte(length)}
	case length <= 0xFFFF:
		lenBytes = []byte{0x82, byte(length >> 8), byte(length)}
	default:
		lenBytes = []byte{0x83, byte(length >> 16), byte(length >> 8), byte(length)}
	}
	out := make([]byte, 0, 1+len(lenBytes)+length)
	out = append(out, tag)
	out = append(out, lenBytes...)
	out = append(out, value...)
	return out
}

// Decode reads one TLV from the front of data. It does not require the
// value to be fully present in data when used as a read-ahead header
// decoder (see DecodeHeader); Decode itself requires the full value to be
// present and returns an error otherwise.
func Decode(data []byte) (TLV, error) {
	hdr, declaredLen, err := DecodeHeader(data)
	if err != nil {
		return TLV{}, err
	}
	end := hdr.HeaderLen + declaredLen
	if len(data) < end {
		return TLV{}, fmt.Errorf("bertlv: need %d bytes, have %d", end, len(data))
	}
	hdr.Value = data[hdr.HeaderLen:end]
	return hdr, nil
}

// DecodeHeader decodes just the tag and length fields from the start of
// data, returning the header (with Value left nil) and the declared
// value length. data need only contain the tag+length prefix; this is
// what the MRTD read-ahead uses to learn an EF's declared length before
// the whole value has been read.
func DecodeHeader(data []byte) (TLV, int, error) {
	if len(data) < 2 {
		return TLV{}, 0, fmt.Errorf("bertlv: need at least 2 bytes for tag+length, have %d", len(data))
	}
	tag := data[0]
	first := data[1]

	if first < 0x80 {
		return TLV{Tag: tag, HeaderLen: 2}, int(first), nil
	}

	nbytes := int(first & 0x7F)
	if nbytes == 0 || nbytes > 4 {
		return TLV{}, 0, fmt.Errorf("bertlv: unsupported length form 0x%02X", first)
	}
	if len(data) < 2+nbytes {
		return TLV{}, 0, fmt.Errorf("bertlv: need %d bytes for length field, have %d", 2+nbytes, len(data))
	}
	length := 0
	for i := 0; i < nbytes; i++ {
		length = length<<8 | int(data[2+i])
	}
	return TLV{Tag: tag, HeaderLen: 2 + nbytes}, length, nil
}
