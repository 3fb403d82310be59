package bac

import "crypto/sha1"

// CheckDigit computes the ICAO Doc 9303 check digit over an MRZ field
// using the 7-3-1 repeating weight scheme: digits count as themselves,
// letters A-Z count as 10-35, '<' counts as 0.
func CheckDigit(field string) byte {
	weights := [3]int{7, 3, 1}
	sum := 0
	for i := 0; i < len(field); i++ {
		sum += charValue(field[i]) * weights[i%3]
	}
	return '0' + byte(sum%10)
}

func charValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	default: // '<' and anything else counts as zero
		return 0
	}
}

// KeySeed computes the DBA (Document Basic Access) key seed: the leftmost
// 16 bytes of SHA-1(documentNumber||cd||dateOfBirth||cd||dateOfExpiry||cd),
// each date in YYMMDD form, each field followed by its own ICAO check
// digit.
func KeySeed(documentNumber, dateOfBirth, dateOfExpiry string) []byte {
	mrzInfo := documentNumber + string(CheckDigit(documentNumber)) +
		dateOfBirth + string(CheckDigit(dateOfBirth)) +
		dateOfExpiry + string(CheckDigit(dateOfExpiry))
	digest := sha1.Sum([]byte(mrzInfo))
	seed := make([]byte, 16)
	copy(seed, digest[:16])
	return seed
}
