package passport

import (
	"bytes"
	"context"
	"testing"

	"github.com/barnettlynn/emrtd/mrtd"
	"github.com/barnettlynn/emrtd/transport"
)

func newTestPassport(t *testing.T, respond transport.ResponderFunc) (*Passport, *mrtd.Session) {
	t.Helper()
	sim := transport.NewSimulator(respond)
	session := mrtd.NewSession(sim)
	if err := session.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return New(session), session
}

// TestReadDG1_SelectsApplicationThenReads verifies ReadDG selects the
// eMRTD application exactly once before reading, satisfying the DF=DF1
// invariant of §3/§4.7.
func TestReadDG1_SelectsApplicationThenReads(t *testing.T) {
	var selectSeen, readSeen bool
	readAhead := []byte{0x61, 0x04, 0xAA, 0xBB, 0xCC, 0xDD}

	p, _ := newTestPassport(t, func(apduBytes []byte) ([]byte, error) {
		if apduBytes[1] == 0xA4 { // SELECT FILE
			selectSeen = true
			return []byte{0x90, 0x00}, nil
		}
		readSeen = true
		return append(append([]byte{}, readAhead...), 0x90, 0x00), nil
	})

	data, err := p.ReadDG(context.Background(), 1)
	if err != nil {
		t.Fatalf("ReadDG: %v", err)
	}
	if !selectSeen {
		t.Error("expected eMRTD application to be selected")
	}
	if !readSeen {
		t.Error("expected a READ BINARY to be issued")
	}
	// declared length 4, header 2 bytes -> total 6, nothing more to read.
	if !bytes.Equal(data, readAhead) {
		t.Errorf("data = % X, want % X", data, readAhead)
	}
}

// TestReadDG_SecondReadDoesNotReselect checks idempotent selection: DF1
// is only (re)selected when it is not already current.
func TestReadDG_SecondReadDoesNotReselect(t *testing.T) {
	var selectCount int
	readAhead := []byte{0x61, 0x00}

	p, _ := newTestPassport(t, func(apduBytes []byte) ([]byte, error) {
		if apduBytes[1] == 0xA4 {
			selectCount++
			return []byte{0x90, 0x00}, nil
		}
		return append(append([]byte{}, readAhead...), 0x90, 0x00), nil
	})

	if _, err := p.ReadDG(context.Background(), 1); err != nil {
		t.Fatalf("first ReadDG: %v", err)
	}
	if _, err := p.ReadDG(context.Background(), 2); err != nil {
		t.Fatalf("second ReadDG: %v", err)
	}
	if selectCount != 1 {
		t.Errorf("selectCount = %d, want 1", selectCount)
	}
}

// TestReadCardAccess_DoesNotSelectApplication checks EF.CardAccess is
// read without selecting the eMRTD DF first.
func TestReadCardAccess_DoesNotSelectApplication(t *testing.T) {
	var selectSeen bool
	readAhead := []byte{0x61, 0x00}

	p, _ := newTestPassport(t, func(apduBytes []byte) ([]byte, error) {
		if apduBytes[1] == 0xA4 {
			selectSeen = true
			return []byte{0x90, 0x00}, nil
		}
		return append(append([]byte{}, readAhead...), 0x90, 0x00), nil
	})

	if _, err := p.ReadCardAccess(context.Background()); err != nil {
		t.Fatalf("ReadCardAccess: %v", err)
	}
	if selectSeen {
		t.Error("did not expect a SELECT FILE before reading EF.CardAccess")
	}
}

// TestReadDG_RejectsOutOfRangeNumber checks the 1..16 validation without
// touching the transport.
func TestReadDG_RejectsOutOfRangeNumber(t *testing.T) {
	p, _ := newTestPassport(t, func(apduBytes []byte) ([]byte, error) {
		t.Fatal("no APDU should be sent for an invalid DG number")
		return nil, nil
	})

	_, err := p.ReadDG(context.Background(), 17)
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*Error); !ok {
		t.Errorf("expected *Error, got %T", err)
	}
}

// TestReadDG_RemapsCardSpecificSecurityStatusWord checks the 0x63CF ->
// 0x6982 remap of §4.7/§7 is applied when the select itself fails.
func TestReadDG_RemapsCardSpecificSecurityStatusWord(t *testing.T) {
	p, _ := newTestPassport(t, func(apduBytes []byte) ([]byte, error) {
		if apduBytes[1] == 0xA4 {
			return []byte{0x63, 0xCF}, nil
		}
		t.Fatal("should not reach READ BINARY")
		return nil, nil
	})

	_, err := p.ReadDG(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error")
	}
	passportErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if !passportErr.HaveSW || passportErr.SW != 0x6982 {
		t.Errorf("SW = %04X (have=%v), want 6982", passportErr.SW, passportErr.HaveSW)
	}
}
