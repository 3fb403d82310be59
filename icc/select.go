package icc

import (
	"context"

	"github.com/barnettlynn/emrtd/apdu"
)

const insSelectFile = 0xA4

// P1 values for SELECT FILE, per ISO/IEC 7816-4 table 41.
const (
	selectByFID         byte = 0x02 // select EF under current DF
	selectByChildDF     byte = 0x01
	selectByParentDF    byte = 0x03
	selectByDFName      byte = 0x04
	selectFromMF        byte = 0x08
	selectFromCurrentDF byte = 0x09
)

// P2: return no FCI template, first/only occurrence.
const selectP2NoData byte = 0x0C

// SelectMF selects the Master File.
func (icc *ICC) SelectMF(ctx context.Context) (*apdu.Response, error) {
	return icc.Send(ctx, apdu.NewCommand(0x00, insSelectFile, 0x00, selectP2NoData, nil, 0))
}

// SelectDFByName selects a DF (typically the eMRTD application) by its
// AID, e.g. the 7-byte AID A0000002471001 (§8 scenario S2).
func (icc *ICC) SelectDFByName(ctx context.Context, aid []byte) (*apdu.Response, error) {
	return icc.Send(ctx, apdu.NewCommand(0x00, insSelectFile, selectByDFName, selectP2NoData, aid, 0))
}

// SelectEF selects an elementary file by its 2-byte file identifier,
// under the currently selected DF.
//
// Per the resolved Open Question in SPEC_FULL.md: no fallback retry with
// P1=0,P2=0 is attempted on failure; a failing first attempt is returned
// to the caller as-is.
func (icc *ICC) SelectEF(ctx context.Context, fid uint16) (*apdu.Response, error) {
	data := []byte{byte(fid >> 8), byte(fid)}
	return icc.Send(ctx, apdu.NewCommand(0x00, insSelectFile, selectByFID, selectP2NoData, data, 0))
}

// SelectChildDF selects a child DF by its 2-byte identifier.
func (icc *ICC) SelectChildDF(ctx context.Context, fid uint16) (*apdu.Response, error) {
	data := []byte{byte(fid >> 8), byte(fid)}
	return icc.Send(ctx, apdu.NewCommand(0x00, insSelectFile, selectByChildDF, selectP2NoData, data, 0))
}

// SelectParentDF selects the parent of the currently selected DF.
func (icc *ICC) SelectParentDF(ctx context.Context) (*apdu.Response, error) {
	return icc.Send(ctx, apdu.NewCommand(0x00, insSelectFile, selectByParentDF, selectP2NoData, nil, 0))
}

// SelectByPath selects a file by a concatenated path of 2-byte file
// identifiers, either from the MF or from the current DF.
func (icc *ICC) SelectByPath(ctx context.Context, path []byte, fromMF bool) (*apdu.Response, error) {
	p1 := selectFromCurrentDF
	if fromMF {
		p1 = selectFromMF
	}
	return icc.Send(ctx, apdu.NewCommand(0x00, insSelectFile, p1, selectP2NoData, path, 0))
}
