package mrtd

import "fmt"

// ProtocolError marks a fatal MRTD-layer failure that is not itself a
// non-success status word: malformed TLV, a failed read-ahead, an
// unrecoverable status word with no data attached, or one with data when
// no re-init capability is installed (or no prior BAC keys exist for a
// re-init). SW/HaveSW carry the
// triggering status word when one is known, so the passport façade can
// still apply its 0x63CF remap.
type ProtocolError struct {
	Reason string
	SW     uint16
	HaveSW bool
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("mrtd: %s", e.Reason)
}
