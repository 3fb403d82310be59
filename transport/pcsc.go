package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/ebfe/scard"
)

// PCSC is a Transport backed by a PC/SC reader via github.com/ebfe/scard.
// Grounded on the teacher's pkg/ntag424/pcsc.go Connection type.
type PCSC struct {
	ctx          *scard.Context
	card         *scard.Card
	reader       string
	readerIdx    int
	alertMessage string
}

// NewPCSC selects a reader by index, without connecting yet.
func NewPCSC(readerIndex int) (*PCSC, error) {
	return &PCSC{readerIdx: readerIndex}, nil
}

// ListPCSCReaders enumerates the PC/SC reader names currently visible to
// the system, for an interactive reader picker.
func ListPCSCReaders() ([]string, error) {
	sctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("transport: EstablishContext failed: %w", err)
	}
	defer sctx.Release()

	readers, err := sctx.ListReaders()
	if err != nil {
		return nil, fmt.Errorf("transport: list readers failed: %w", err)
	}
	return readers, nil
}

// Connect establishes the PC/SC context and connects to the selected
// reader's card.
func (p *PCSC) Connect(ctx context.Context, alertMessage string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.SetAlertMessage(alertMessage)

	sctx, err := scard.EstablishContext()
	if err != nil {
		return fmt.Errorf("transport: EstablishContext failed: %w", err)
	}

	readers, err := sctx.ListReaders()
	if err != nil || len(readers) == 0 {
		sctx.Release()
		return fmt.Errorf("transport: no readers found: %v", err)
	}
	if p.readerIdx < 0 || p.readerIdx >= len(readers) {
		sctx.Release()
		return fmt.Errorf("transport: reader index out of range (0..%d)", len(readers)-1)
	}

	reader := readers[p.readerIdx]
	card, err := sctx.Connect(reader, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		sctx.Release()
		return fmt.Errorf("transport: connect failed: %w", err)
	}

	p.ctx = sctx
	p.card = card
	p.reader = reader
	return nil
}

// Disconnect releases the card and the PC/SC context. alertMessage and
// errorMessage are cosmetic and unused here.
func (p *PCSC) Disconnect(alertMessage, errorMessage string) error {
	if p.card != nil {
		_ = p.card.Disconnect(scard.LeaveCard)
		p.card = nil
	}
	if p.ctx != nil {
		_ = p.ctx.Release()
		p.ctx = nil
	}
	return nil
}

// IsConnected reports whether a card connection is currently held.
func (p *PCSC) IsConnected() bool {
	return p != nil && p.card != nil
}

// Transceive sends one APDU and returns the raw response. Tag-loss and
// timeouts surface as errors whose message contains the substrings "tag
// was lost" / "timeout", per §5.
func (p *PCSC) Transceive(ctx context.Context, apdu []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		if err == context.DeadlineExceeded {
			return nil, fmt.Errorf("transport: timeout waiting for card: %w", err)
		}
		return nil, err
	}
	if !p.IsConnected() {
		return nil, fmt.Errorf("transport: not connected")
	}
	resp, err := p.card.Transmit(apdu)
	if err != nil {
		if isTagLost(err) {
			return nil, fmt.Errorf("transport: tag was lost: %w", err)
		}
		if isTimeout(err) {
			return nil, fmt.Errorf("transport: timeout waiting for card: %w", err)
		}
		return nil, fmt.Errorf("transport: transceive failed: %w", err)
	}
	return resp, nil
}

// SetAlertMessage stores a cosmetic alert string; PC/SC has no UI of its
// own to render it, so this is a no-op beyond bookkeeping.
func (p *PCSC) SetAlertMessage(text string) {
	p.alertMessage = text
}

func isTagLost(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "removed") || strings.Contains(msg, "no smart card") || strings.Contains(msg, "reset")
}

func isTimeout(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
