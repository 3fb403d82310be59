// Package mrtd sequences the higher-level eMRTD operations on top of icc
// and bac: starting a Secure Messaging session, selecting the eMRTD
// application or Master File, and reading whole files through the
// chunking/back-off/resync read loop.
package mrtd

import (
	"context"

	"github.com/barnettlynn/emrtd/bac"
	"github.com/barnettlynn/emrtd/icc"
	"github.com/barnettlynn/emrtd/sm"
	"github.com/barnettlynn/emrtd/transport"
)

// eMRTDAID is the application identifier selected to reach the eMRTD
// application's Dedicated File (§8 scenario S2).
var eMRTDAID = []byte{0xA0, 0x00, 0x00, 0x02, 0x47, 0x10, 0x01}

// DF enumerates which Dedicated File is currently selected.
type DF int

const (
	DFNone DF = iota
	DFMaster
	DFEMrtd
)

// Session is the protocol state machine of spec.md §3:
// DISCONNECTED -> CONNECTED -> APP_SELECTED(DF1|MF|NONE) x SM(off|on).
type Session struct {
	transport transport.Transport
	icc       *icc.ICC
	connected bool
	df        DF
	bacKeys   bac.Keys
	haveKeys  bool
}

// NewSession wraps t; the session starts DISCONNECTED.
func NewSession(t transport.Transport) *Session {
	return &Session{transport: t, icc: icc.New(t)}
}

// Connect moves DISCONNECTED -> CONNECTED, with SM off and no DF
// selected.
func (s *Session) Connect(ctx context.Context, alertMessage string) error {
	if err := s.transport.Connect(ctx, alertMessage); err != nil {
		return err
	}
	s.connected = true
	s.df = DFNone
	s.icc.ClearSM()
	return nil
}

// Disconnect moves any state -> DISCONNECTED, resetting SM and DF.
func (s *Session) Disconnect(alertMessage, errorMessage string) error {
	err := s.transport.Disconnect(alertMessage, errorMessage)
	s.connected = false
	s.df = DFNone
	s.icc.ClearSM()
	return err
}

// IsConnected reports the CONNECTED/DISCONNECTED half of the state
// machine.
func (s *Session) IsConnected() bool { return s.connected }

// DF reports which Dedicated File is currently selected.
func (s *Session) DF() DF { return s.df }

// HasSM reports whether a Secure Messaging engine is installed.
func (s *Session) HasSM() bool { return s.icc.HasSM() }

// ICC exposes the underlying command layer for callers (such as the
// Passport façade) that issue primitives directly.
func (s *Session) ICC() *icc.ICC { return s.icc }

// StartSession performs the BAC handshake with keys and installs the
// resulting Secure Messaging engine. The keys are retained so the read
// loop's re-init seam (ReinitSession) can recompute a fresh session
// without the caller supplying them again.
func (s *Session) StartSession(ctx context.Context, keys bac.Keys) error {
	result, err := bac.Perform(ctx, s.icc, keys)
	if err != nil {
		return err
	}
	s.icc.InstallSM(sm.NewEngine(result.Keys, result.SSC))
	s.bacKeys = keys
	s.haveKeys = true
	return nil
}

// ReinitSession re-establishes Secure Messaging from the DBA keys a prior
// StartSession call used. It implements ReSessioner for the read loop's
// recoverable-error path (§4.6, §9 "re-init callback").
func (s *Session) ReinitSession(ctx context.Context) error {
	if !s.haveKeys {
		return &ProtocolError{Reason: "cannot re-init Secure Messaging: no prior BAC keys on this session"}
	}
	return s.StartSession(ctx, s.bacKeys)
}

// SelectEMrtdApplication selects the eMRTD application DF by name.
func (s *Session) SelectEMrtdApplication(ctx context.Context) error {
	if _, err := s.icc.SelectDFByName(ctx, eMRTDAID); err != nil {
		return err
	}
	s.df = DFEMrtd
	return nil
}

// SelectMasterFile selects the Master File.
func (s *Session) SelectMasterFile(ctx context.Context) error {
	if _, err := s.icc.SelectMF(ctx); err != nil {
		return err
	}
	s.df = DFMaster
	return nil
}
