// Package passport is the typed read façade over mrtd: one operation per
// Elementary File, each enforcing that the correct Dedicated File is
// selected before the first read.
package passport

import (
	"context"
	"fmt"

	"github.com/barnettlynn/emrtd/icc"
	"github.com/barnettlynn/emrtd/mrtd"
	"github.com/barnettlynn/emrtd/sw"
)

// Short File Identifiers for the EFs this façade reads. SFI is the low
// byte of each EF's 2-byte File Identifier (EF.COM = 0x011E, EF.SOD =
// 0x011D, EF.DGn = 0x0100+n, EF.CardAccess = 0x011C), which is why
// ReadFileBySFI only ever needs the SFI half. EF.CardSecurity shares
// EF.SOD's SFI by ICAO convention -- they live under different DFs (MF
// vs the eMRTD application) so the collision is not ambiguous card-side.
const (
	sfiCOM          byte = 0x1E
	sfiSOD          byte = 0x1D
	sfiCardAccess   byte = 0x1C
	sfiCardSecurity byte = 0x1D
)

// Error wraps a lower-layer failure with a passport-facing message; the
// status word, when known, has the documented 0x63CF -> 0x6982 remap
// applied.
type Error struct {
	Message string
	SW      uint16
	HaveSW  bool
}

func (e *Error) Error() string {
	if e.HaveSW {
		return fmt.Sprintf("passport: %s (SW=%04X: %s)", e.Message, e.SW, sw.Describe(e.SW))
	}
	return fmt.Sprintf("passport: %s", e.Message)
}

// Passport reads Data Groups and supporting EFs from a started MRTD
// session.
type Passport struct {
	session  *mrtd.Session
	readLoop *mrtd.ReadLoop
}

// New builds a Passport over session, whose BAC handshake must already
// have completed (session.HasSM() true) before any DG/COM/SOD read.
func New(session *mrtd.Session) *Passport {
	return &Passport{
		session:  session,
		readLoop: mrtd.NewReadLoop(session.ICC(), session),
	}
}

// wrapError folds a lower-layer error into a single *Error. When the
// failure carries a status word (an *icc.Error, or an *mrtd.ProtocolError
// with HaveSW set), the documented 0x63CF -> 0x6982 remap is applied; any
// other error (transport, or a protocol error without a status word) is
// carried only as a message.
func wrapError(message string, err error) error {
	if iccErr, ok := err.(*icc.Error); ok {
		return &Error{Message: message, SW: sw.Remap(iccErr.SW), HaveSW: true}
	}
	if protoErr, ok := err.(*mrtd.ProtocolError); ok && protoErr.HaveSW {
		return &Error{Message: fmt.Sprintf("%s: %s", message, protoErr.Reason), SW: sw.Remap(protoErr.SW), HaveSW: true}
	}
	return &Error{Message: fmt.Sprintf("%s: %v", message, err)}
}

// ensureDF1 selects the eMRTD application if it is not already the
// current DF, satisfying the "DF=DF1 before a DG/COM/SOD read" invariant
// by idempotent selection.
func (p *Passport) ensureDF1(ctx context.Context) error {
	if p.session.DF() == mrtd.DFEMrtd {
		return nil
	}
	if err := p.session.SelectEMrtdApplication(ctx); err != nil {
		return wrapError("select eMRTD application", err)
	}
	return nil
}

func (p *Passport) readUnderDF1(ctx context.Context, sfi byte, label string) ([]byte, error) {
	if err := p.ensureDF1(ctx); err != nil {
		return nil, err
	}
	data, err := p.readLoop.ReadFileBySFI(ctx, sfi)
	if err != nil {
		return nil, wrapError(fmt.Sprintf("read %s", label), err)
	}
	return data, nil
}

// ReadCOM reads EF.COM.
func (p *Passport) ReadCOM(ctx context.Context) ([]byte, error) {
	return p.readUnderDF1(ctx, sfiCOM, "EF.COM")
}

// ReadSOD reads EF.SOD.
func (p *Passport) ReadSOD(ctx context.Context) ([]byte, error) {
	return p.readUnderDF1(ctx, sfiSOD, "EF.SOD")
}

// ReadDG reads EF.DGn for n in 1..16.
func (p *Passport) ReadDG(ctx context.Context, n int) ([]byte, error) {
	if n < 1 || n > 16 {
		return nil, &Error{Message: fmt.Sprintf("data group number %d out of range 1..16", n)}
	}
	sfi := byte(n)
	return p.readUnderDF1(ctx, sfi, fmt.Sprintf("EF.DG%d", n))
}

// ReadCardAccess reads EF.CardAccess. Per §4.7 this EF is read by SFI
// under Master File semantics; it does not require selecting the eMRTD
// application first.
func (p *Passport) ReadCardAccess(ctx context.Context) ([]byte, error) {
	data, err := p.readLoop.ReadFileBySFI(ctx, sfiCardAccess)
	if err != nil {
		return nil, wrapError("read EF.CardAccess", err)
	}
	return data, nil
}

// ReadCardSecurity reads EF.CardSecurity, likewise without requiring DF1.
func (p *Passport) ReadCardSecurity(ctx context.Context) ([]byte, error) {
	data, err := p.readLoop.ReadFileBySFI(ctx, sfiCardSecurity)
	if err != nil {
		return nil, wrapError("read EF.CardSecurity", err)
	}
	return data, nil
}
