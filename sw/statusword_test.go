package sw

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		v    uint16
		want Class
	}{
		{"success", 0x9000, ClassSuccess},
		{"more bytes", 0x6110, ClassSuccessWithRemainingBytes},
		{"more bytes wildcard", 0x6100, ClassSuccessWithRemainingBytes},
		{"wrong length exact", 0x6C20, ClassWrongLengthExact},
		{"wrong length", 0x6700, ClassWrongLength},
		{"unexpected eof", 0x6282, ClassUnexpectedEOF},
		{"possibly corrupted", 0x6281, ClassPossiblyCorrupted},
		{"security not satisfied", 0x6982, ClassSecurityNotSatisfied},
		{"security not satisfied card specific", 0x63CF, ClassSecurityNotSatisfied},
		{"other", 0x6A82, ClassOther},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.v); got != tc.want {
				t.Errorf("Classify(%04X) = %v, want %v", tc.v, got, tc.want)
			}
		})
	}
}

func TestExactLe(t *testing.T) {
	le, ok := ExactLe(0x6C20)
	if !ok || le != 0x20 {
		t.Errorf("ExactLe(0x6C20) = (%d, %v), want (32, true)", le, ok)
	}
	if _, ok := ExactLe(0x9000); ok {
		t.Errorf("ExactLe(0x9000) should not match")
	}
}

func TestRemainingBytes(t *testing.T) {
	n, ok := RemainingBytes(0x6110)
	if !ok || n != 0x10 {
		t.Errorf("RemainingBytes(0x6110) = (%d, %v), want (16, true)", n, ok)
	}
	n, ok = RemainingBytes(0x6100)
	if !ok || n != 256 {
		t.Errorf("RemainingBytes(0x6100) = (%d, %v), want (256, true)", n, ok)
	}
}

func TestRemap(t *testing.T) {
	if got := Remap(0x63CF); got != SecurityStatusNotSatisfied {
		t.Errorf("Remap(0x63CF) = %04X, want %04X", got, SecurityStatusNotSatisfied)
	}
	if got := Remap(0x6A82); got != 0x6A82 {
		t.Errorf("Remap should pass through unrelated SWs unchanged, got %04X", got)
	}
}
