// Package sw is the closed catalogue of ISO/IEC 7816-4 status words the
// higher protocol layers branch on.
package sw

import "fmt"

// Named status words the read loop and ICC layer react to. Anything else
// falls through to Other, carrying the raw 16-bit value.
const (
	Success                    uint16 = 0x9000
	WrongLength                uint16 = 0x6700
	SecurityStatusNotSatisfied uint16 = 0x6982
	// SecurityStatusNotSatisfiedCardSpecific is the non-standard value some
	// cards return where the spec requires SecurityStatusNotSatisfied.
	SecurityStatusNotSatisfiedCardSpecific uint16 = 0x63CF
	UnexpectedEOF                          uint16 = 0x6282
	PossiblyCorrupted                      uint16 = 0x6281
)

// Prefix-matched classes: the low byte carries additional information.
const (
	// SuccessWithRemainingBytesPrefix matches 0x61xx.
	SuccessWithRemainingBytesPrefix uint16 = 0x6100
	// WrongLengthWithExactPrefix matches 0x6Cxx; the low byte is the
	// correct Le to retry with.
	WrongLengthWithExactPrefix uint16 = 0x6C00
)

// Class enumerates the coarse behavior a status word implies.
type Class int

const (
	ClassSuccess Class = iota
	ClassSuccessWithRemainingBytes
	ClassWrongLengthExact
	ClassWrongLength
	ClassUnexpectedEOF
	ClassPossiblyCorrupted
	ClassSecurityNotSatisfied
	ClassWarning
	ClassOther
)

// Classify maps a raw status word to its Class.
func Classify(v uint16) Class {
	switch {
	case v == Success:
		return ClassSuccess
	case v&0xFF00 == SuccessWithRemainingBytesPrefix:
		return ClassSuccessWithRemainingBytes
	case v&0xFF00 == WrongLengthWithExactPrefix:
		return ClassWrongLengthExact
	case v == WrongLength:
		return ClassWrongLength
	case v == UnexpectedEOF:
		return ClassUnexpectedEOF
	case v == PossiblyCorrupted:
		return ClassPossiblyCorrupted
	case v == SecurityStatusNotSatisfied, v == SecurityStatusNotSatisfiedCardSpecific:
		return ClassSecurityNotSatisfied
	case v&0xFF00 == 0x6200, v&0xFF00 == 0x6300:
		return ClassWarning
	default:
		return ClassOther
	}
}

// IsSuccess reports whether v is 0x9000.
func IsSuccess(v uint16) bool {
	return v == Success
}

// ExactLe extracts the corrected Le from a 0x6Cxx status word.
func ExactLe(v uint16) (byte, bool) {
	if v&0xFF00 != WrongLengthWithExactPrefix {
		return 0, false
	}
	return byte(v), true
}

// RemainingBytes extracts the remaining byte count from a 0x61xx status
// word (0x00 means 256 remaining, per ISO 7816-4 convention).
func RemainingBytes(v uint16) (int, bool) {
	if v&0xFF00 != SuccessWithRemainingBytesPrefix {
		return 0, false
	}
	n := int(v & 0xFF)
	if n == 0 {
		n = 256
	}
	return n, true
}

// Describe renders a short human-readable label for logging.
func Describe(v uint16) string {
	switch Classify(v) {
	case ClassSuccess:
		return "success"
	case ClassSuccessWithRemainingBytes:
		n, _ := RemainingBytes(v)
		return fmt.Sprintf("success, %d bytes remaining", n)
	case ClassWrongLengthExact:
		le, _ := ExactLe(v)
		return fmt.Sprintf("wrong length, exact Le=%d", le)
	case ClassWrongLength:
		return "wrong length"
	case ClassUnexpectedEOF:
		return "unexpected EOF"
	case ClassPossiblyCorrupted:
		return "possibly corrupted"
	case ClassSecurityNotSatisfied:
		return "security status not satisfied"
	case ClassWarning:
		return "warning"
	default:
		return fmt.Sprintf("SW=%04X", v)
	}
}

// Remap applies the documented 0x63CF -> 0x6982 remap some cards require.
func Remap(v uint16) uint16 {
	if v == SecurityStatusNotSatisfiedCardSpecific {
		return SecurityStatusNotSatisfied
	}
	return v
}
