// Package transport defines the byte-level channel seam to the card, and
// its PC/SC-backed implementation.
package transport

import "context"

// Transport is the abstract byte-level channel to the card (§6, consumed
// seam). Everything above this package only depends on this interface; the
// NFC transport itself is out of this core's scope.
type Transport interface {
	// Connect establishes contact with the card. alertMessage is a cosmetic
	// hook ignored on platforms with no UI.
	Connect(ctx context.Context, alertMessage string) error
	// Disconnect tears down the connection. Both messages are cosmetic
	// hooks.
	Disconnect(alertMessage, errorMessage string) error
	// IsConnected reports whether Connect succeeded and Disconnect has not
	// since been called.
	IsConnected() bool
	// Transceive performs one round-trip: send an encoded APDU, return the
	// raw response bytes (data || SW1 || SW2). This is the sole suspension
	// point in the whole core.
	Transceive(ctx context.Context, apdu []byte) ([]byte, error)
	// SetAlertMessage is a cosmetic hook on platforms that render one.
	SetAlertMessage(text string)
}
