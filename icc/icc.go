// Package icc is a thin state carrier around a transport that knows how
// to issue the ISO/IEC 7816-4 command primitives an eMRTD read needs. It
// consults an installed Secure Messaging engine on every send.
package icc

import (
	"context"
	"fmt"

	"github.com/barnettlynn/emrtd/apdu"
	"github.com/barnettlynn/emrtd/sm"
	"github.com/barnettlynn/emrtd/sw"
	"github.com/barnettlynn/emrtd/transport"
)

// Error is raised when a response APDU carries a non-success status word.
// It carries the status word and any data received before the error, per
// §7.
type Error struct {
	Message string
	SW      uint16
	Data    []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("icc: %s (SW=%04X: %s)", e.Message, e.SW, sw.Describe(e.SW))
}

// ICC wraps a Transport and an optional installed Secure Messaging
// engine.
type ICC struct {
	transport transport.Transport
	sm        sm.Protector
}

// New wraps t with no Secure Messaging installed.
func New(t transport.Transport) *ICC {
	return &ICC{transport: t}
}

// InstallSM installs p as the active Secure Messaging engine; every
// subsequent Send protects/unprotects through it. mrtd.Session.StartSession
// installs one after a successful BAC handshake (or a future PACE engine).
func (icc *ICC) InstallSM(p sm.Protector) {
	icc.sm = p
}

// ClearSM removes any installed Secure Messaging engine, e.g. after a
// fatal SM failure.
func (icc *ICC) ClearSM() {
	icc.sm = nil
}

// HasSM reports whether a Secure Messaging engine is currently installed.
func (icc *ICC) HasSM() bool {
	return icc.sm != nil
}

// Send builds, optionally protects, transmits, optionally unprotects, and
// decodes one command/response round trip. A non-success status word is
// raised as *Error; the decoded response (with any data received) is
// still returned alongside it so callers can inspect partial data.
func (icc *ICC) Send(ctx context.Context, cmd *apdu.Command) (*apdu.Response, error) {
	toSend := cmd
	if icc.sm != nil {
		protected, err := icc.sm.Protect(cmd)
		if err != nil {
			return nil, fmt.Errorf("icc: protect: %w", err)
		}
		toSend = protected
	}

	wire, err := toSend.Encode()
	if err != nil {
		return nil, fmt.Errorf("icc: encode: %w", err)
	}

	raw, err := icc.transport.Transceive(ctx, wire)
	if err != nil {
		return nil, err
	}

	resp, err := apdu.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("icc: decode: %w", err)
	}

	if icc.sm != nil {
		resp, err = icc.sm.Unprotect(resp)
		if err != nil {
			return nil, fmt.Errorf("icc: unprotect: %w", err)
		}
	}

	if !sw.IsSuccess(resp.SW()) {
		return resp, &Error{Message: fmt.Sprintf("%s failed", instructionName(cmd.INS)), SW: resp.SW(), Data: resp.Data}
	}
	return resp, nil
}

func instructionName(ins byte) string {
	switch ins {
	case insSelectFile:
		return "SELECT FILE"
	case insGetChallenge:
		return "GET CHALLENGE"
	case insExternalAuthenticate:
		return "EXTERNAL AUTHENTICATE"
	case insInternalAuthenticate:
		return "INTERNAL AUTHENTICATE"
	case insReadBinary:
		return "READ BINARY"
	case insReadBinaryExtended:
		return "READ BINARY (extended)"
	default:
		return fmt.Sprintf("INS=%02X", ins)
	}
}
