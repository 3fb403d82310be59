// Package bac implements the Basic Access Control mutual-authentication
// handshake (ICAO Doc 9303) that establishes the Secure Messaging session
// keys and SSC for an ICC; the caller installs the resulting engine.
package bac

import (
	"bytes"
	"context"
	"fmt"

	"github.com/barnettlynn/emrtd/iccrypto"
	"github.com/barnettlynn/emrtd/icc"
	"github.com/barnettlynn/emrtd/sm"
)

// Error marks a BAC protocol failure: an External Authenticate MAC or
// RND.IFD mismatch. These are fatal to the attempt; callers retry the
// whole handshake, they do not resume it.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("bac: %s", e.Reason)
}

// Keys are the static 3DES keys derived from the DBA key seed (Kenc,
// Kmac), distinct from the session keys (KSenc, KSmac) BAC derives.
type Keys struct {
	Kenc [16]byte
	Kmac [16]byte
}

// DeriveKeys computes the static BAC keys from MRZ fields via the DBA key
// seed.
func DeriveKeys(documentNumber, dateOfBirth, dateOfExpiry string) Keys {
	seed := KeySeed(documentNumber, dateOfBirth, dateOfExpiry)
	var k Keys
	copy(k.Kenc[:], iccrypto.DeriveEncKey(seed))
	copy(k.Kmac[:], iccrypto.DeriveMACKey(seed))
	return k
}

// Result carries the session keys and initial SSC BAC established, ready
// to hand to sm.NewEngine.
type Result struct {
	Keys sm.Keys
	SSC  [8]byte
}

// Perform runs the 10-step handshake of spec.md §4.5 against i and
// returns the established Secure Messaging session. It does not install
// the engine into i; callers do that via i.InstallSM(sm.NewEngine(...)).
func Perform(ctx context.Context, i *icc.ICC, keys Keys) (*Result, error) {
	return perform(ctx, i, keys, iccrypto.RandomBytes)
}

// perform is Perform with the RND.IFD/K.IFD source factored out, so tests
// can pin the worked example's fixed nonces without touching crypto/rand.
func perform(ctx context.Context, i *icc.ICC, keys Keys, randomBytes func(int) ([]byte, error)) (*Result, error) {
	rndIC, err := i.GetChallenge(ctx)
	if err != nil {
		return nil, fmt.Errorf("bac: get challenge: %w", err)
	}
	if len(rndIC) != 8 {
		return nil, &Error{Reason: fmt.Sprintf("RND.IC must be 8 bytes, got %d", len(rndIC))}
	}

	rndIFD, err := randomBytes(8)
	if err != nil {
		return nil, fmt.Errorf("bac: generate RND.IFD: %w", err)
	}
	kIFD, err := randomBytes(16)
	if err != nil {
		return nil, fmt.Errorf("bac: generate K.IFD: %w", err)
	}

	s := make([]byte, 0, 32)
	s = append(s, rndIFD...)
	s = append(s, rndIC...)
	s = append(s, kIFD...)

	eIFD, err := iccrypto.TripleDESCBCEncrypt(keys.Kenc[:], make([]byte, 8), s)
	if err != nil {
		return nil, fmt.Errorf("bac: encrypt E.IFD: %w", err)
	}
	mIFD, err := iccrypto.ISO9797MACAlg3(keys.Kmac[:], eIFD, true)
	if err != nil {
		return nil, fmt.Errorf("bac: MAC E.IFD: %w", err)
	}

	cmdData := make([]byte, 0, 40)
	cmdData = append(cmdData, eIFD...)
	cmdData = append(cmdData, mIFD...)

	resp, err := i.ExternalAuthenticate(ctx, cmdData, 40)
	if err != nil {
		return nil, fmt.Errorf("bac: external authenticate: %w", err)
	}
	if len(resp.Data) != 40 {
		return nil, &Error{Reason: fmt.Sprintf("EXTERNAL AUTHENTICATE response must be 40 bytes, got %d", len(resp.Data))}
	}
	eICC := resp.Data[0:32]
	mICC := resp.Data[32:40]

	wantMICC, err := iccrypto.ISO9797MACAlg3(keys.Kmac[:], eICC, true)
	if err != nil {
		return nil, fmt.Errorf("bac: MAC E.ICC: %w", err)
	}
	if !bytes.Equal(wantMICC, mICC) {
		return nil, &Error{Reason: "M.ICC MAC mismatch"}
	}

	r, err := iccrypto.TripleDESCBCDecrypt(keys.Kenc[:], make([]byte, 8), eICC)
	if err != nil {
		return nil, fmt.Errorf("bac: decrypt E.ICC: %w", err)
	}
	rndIFDEcho := r[8:16]
	kICC := r[16:32]
	if !bytes.Equal(rndIFDEcho, rndIFD) {
		return nil, &Error{Reason: "RND.IFD echo mismatch"}
	}

	keySeed := make([]byte, 16)
	for idx := range keySeed {
		keySeed[idx] = kIFD[idx] ^ kICC[idx]
	}

	var result Result
	copy(result.Keys.KSenc[:], iccrypto.DeriveEncKey(keySeed))
	copy(result.Keys.KSmac[:], iccrypto.DeriveMACKey(keySeed))
	copy(result.SSC[0:4], rndIC[4:8])
	copy(result.SSC[4:8], rndIFD[4:8])

	return &result, nil
}
