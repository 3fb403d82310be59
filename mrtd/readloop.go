package mrtd

import (
	"context"
	"fmt"

	"github.com/barnettlynn/emrtd/apdu"
	"github.com/barnettlynn/emrtd/bertlv"
	"github.com/barnettlynn/emrtd/icc"
	"github.com/barnettlynn/emrtd/sw"
)

// defaultMaxRead is the chunk size a fresh ReadLoop (or one recovering
// from a fatal error) starts from.
const defaultMaxRead = 256

// maxShortOffset is the read loop's crossover point to READ BINARY
// (extended): at this offset it switches to the DO'54'/DO'53' extended
// form rather than issuing one more short-offset read (§8 scenario S6).
const maxShortOffset = 0x7FFF

// maxReadBackoff is the step-down ladder a 0x6282 walks through, one step
// per occurrence. Real cards are inconsistent about how much they'll
// deliver in one READ BINARY; this reflects that rather than any spec
// requirement.
var maxReadBackoff = []int{224, 160, 128, 96, 64, 32, 16, 8, 1}

// ReSessioner re-establishes the Secure Messaging session from the same
// DBA keys that started it. It is the read loop's only dynamic-dispatch
// point (§9 "re-init callback").
type ReSessioner interface {
	ReinitSession(ctx context.Context) error
}

// ReadLoop reads whole EFs by chunking READ BINARY calls, negotiating the
// card's maximum read size by reacting to status words and recovering
// from a documented subset of errors via the installed ReSessioner.
//
// maxRead is instance-local. Within a single ReadFileBySFI call the
// back-off only lowers it, while a 0x6Cxx response sets it to the exact Le
// the card names (which may be higher); it resets to defaultMaxRead only
// when that call raises a fatal error, not between successful calls.
type ReadLoop struct {
	icc     *icc.ICC
	reinit  ReSessioner
	maxRead int
}

// NewReadLoop builds a ReadLoop reading through i, with reinit consulted
// on recoverable-with-data errors. reinit may be nil if no re-init
// capability is available; in that case such errors become fatal.
func NewReadLoop(i *icc.ICC, reinit ReSessioner) *ReadLoop {
	return &ReadLoop{icc: i, reinit: reinit, maxRead: defaultMaxRead}
}

// MaxRead returns the currently negotiated chunk size.
func (r *ReadLoop) MaxRead() int { return r.maxRead }

func (r *ReadLoop) backoff() {
	for _, step := range maxReadBackoff {
		if step < r.maxRead {
			r.maxRead = step
			return
		}
	}
	r.maxRead = 1
}

func (r *ReadLoop) reset() { r.maxRead = defaultMaxRead }

// unwrapRead extracts data and status word uniformly whether or not the
// call raised an *icc.Error: icc.Send always returns a populated response
// alongside that error, so partial data survives a non-success status
// word (the Open Question in spec.md §9 is resolved as retain). Only a
// nil response -- a transport, encode or decode failure below the ICC
// layer -- is treated as fatal here.
func unwrapRead(resp *apdu.Response, err error) ([]byte, uint16, error) {
	if resp != nil {
		return resp.Data, resp.SW(), nil
	}
	return nil, 0, err
}

// ReadFileBySFI reads the whole EF identified by sfi: a read-ahead of 8
// bytes to learn the BER-TLV header and declared length, then
// offset-based continuation reads until the declared length is
// satisfied (§4.6).
func (r *ReadLoop) ReadFileBySFI(ctx context.Context, sfi byte) ([]byte, error) {
	resp, sendErr := r.icc.ReadBinaryBySFI(ctx, sfi, 0, 8)
	data, swVal, err := unwrapRead(resp, sendErr)
	if err != nil {
		r.reset()
		return nil, err
	}
	if !sw.IsSuccess(swVal) && sw.Classify(swVal) != sw.ClassSuccessWithRemainingBytes {
		r.reset()
		return nil, &ProtocolError{Reason: fmt.Sprintf("read-ahead on SFI %d failed: %s", sfi, sw.Describe(swVal)), SW: swVal, HaveSW: true}
	}

	hdr, declaredLen, tlvErr := bertlv.DecodeHeader(data)
	if tlvErr != nil {
		r.reset()
		return nil, &ProtocolError{Reason: fmt.Sprintf("malformed EF header: %v", tlvErr)}
	}

	buf := make([]byte, 0, hdr.HeaderLen+declaredLen)
	buf = append(buf, data...)

	// Per §4.6 step 1, "remaining" is defined against the 8 bytes asked
	// for in the read-ahead, not however many bytes this particular
	// response actually carried.
	have := 8 - hdr.HeaderLen
	remaining := declaredLen - have
	offset := len(data)

	for remaining > 0 {
		nRead := remaining
		if nRead > r.maxRead {
			nRead = r.maxRead
		}

		var chunkData []byte
		var chunkSW uint16
		if offset >= maxShortOffset {
			resp, sendErr := r.icc.ReadBinaryExtended(ctx, uint32(offset), nRead)
			chunkData, chunkSW, err = unwrapRead(resp, sendErr)
		} else {
			if offset+nRead > maxShortOffset {
				nRead = maxShortOffset - offset
			}
			resp, sendErr := r.icc.ReadBinary(ctx, offset, nRead)
			chunkData, chunkSW, err = unwrapRead(resp, sendErr)
		}
		if err != nil {
			r.reset()
			return nil, err
		}

		consume := func() {
			buf = append(buf, chunkData...)
			offset += len(chunkData)
			remaining -= len(chunkData)
		}

		switch {
		case sw.IsSuccess(chunkSW):
			consume()

		case sw.Classify(chunkSW) == sw.ClassSuccessWithRemainingBytes:
			consume()

		case sw.Classify(chunkSW) == sw.ClassUnexpectedEOF:
			consume()
			r.backoff()

		case sw.Classify(chunkSW) == sw.ClassPossiblyCorrupted:
			consume()

		case chunkSW == sw.WrongLength:
			// No data consumed; retry at the smaller chunk size.
			r.backoff()

		case sw.Classify(chunkSW) == sw.ClassWrongLengthExact:
			exact, _ := sw.ExactLe(chunkSW)
			r.maxRead = int(exact)
			if r.maxRead == 0 {
				r.maxRead = 256
			}
			// No data consumed; retry with the corrected Le.

		default:
			if len(chunkData) == 0 {
				r.reset()
				return nil, &ProtocolError{Reason: fmt.Sprintf("unrecoverable status word %s with no data", sw.Describe(chunkSW)), SW: chunkSW, HaveSW: true}
			}
			if r.reinit == nil {
				r.reset()
				return nil, &ProtocolError{Reason: fmt.Sprintf("unrecoverable status word %s with data but no re-init capability installed", sw.Describe(chunkSW)), SW: chunkSW, HaveSW: true}
			}
			if err := r.reinit.ReinitSession(ctx); err != nil {
				r.reset()
				return nil, fmt.Errorf("mrtd: SM re-init after recoverable error: %w", err)
			}
			consume()
		}
	}

	if len(buf) > hdr.HeaderLen+declaredLen {
		buf = buf[:hdr.HeaderLen+declaredLen]
	}
	return buf, nil
}
