package transport

import "context"

// ResponderFunc answers one raw APDU with a raw response (data || SW1 ||
// SW2). It is the test double used throughout the icc/bac/mrtd/passport
// test suites in place of a physical card.
type ResponderFunc func(apdu []byte) ([]byte, error)

// Simulator is an in-memory Transport that delegates each Transceive call
// to a ResponderFunc, recording every APDU it was asked to send.
type Simulator struct {
	Respond   ResponderFunc
	connected bool
	Sent      [][]byte
	alert     string
}

// NewSimulator builds a Simulator around the given responder.
func NewSimulator(respond ResponderFunc) *Simulator {
	return &Simulator{Respond: respond}
}

func (s *Simulator) Connect(ctx context.Context, alertMessage string) error {
	s.alert = alertMessage
	s.connected = true
	return nil
}

func (s *Simulator) Disconnect(alertMessage, errorMessage string) error {
	s.connected = false
	return nil
}

func (s *Simulator) IsConnected() bool { return s.connected }

func (s *Simulator) Transceive(ctx context.Context, apdu []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cp := make([]byte, len(apdu))
	copy(cp, apdu)
	s.Sent = append(s.Sent, cp)
	return s.Respond(apdu)
}

func (s *Simulator) SetAlertMessage(text string) { s.alert = text }
