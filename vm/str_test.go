package vm

import (
	"errors"
	"math"
	"testing"
)

func TestParseNum(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"0", 0, true},
		{"42", 42, true},
		{"-3.5", -3.5, true},
		{"+7", 7, true},
		{".5", 0.5, true},
		{"5.", 5, true},
		{"1e3", 1000, true},
		{"2E-2", 0.02, true},
		{"0x1F", 31, true},
		{"-0xff", -255, true},
		{"1e400", math.Inf(1), true},
		{"", 0, false},
		{"-", 0, false},
		{".", 0, false},
		{"1e", 0, false},
		{"0x", 0, false},
		{"0xg", 0, false},
		{" 1", 0, false},
		{"1 ", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNum([]byte(tt.in))
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("parseNum(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestStringFreeze(t *testing.T) {
	s := &String{data: []byte("abc")}
	if err := s.SetByte(0, 'x'); err != nil {
		t.Fatalf("SetByte on fresh string: %v", err)
	}
	if s.String() != "xbc" {
		t.Errorf("contents = %q", s.String())
	}
	s.Freeze()
	if !s.Frozen() {
		t.Fatal("Freeze did not freeze")
	}
	if err := s.SetByte(0, 'y'); !errors.Is(err, ErrImmutableString) {
		t.Errorf("SetByte on frozen string: err = %v", err)
	}
	if s.String() != "xbc" {
		t.Errorf("frozen string changed to %q", s.String())
	}
}

func TestStringSetByteBounds(t *testing.T) {
	s := &String{data: []byte("ab")}
	if err := s.SetByte(-1, 'z'); err != nil || s.String() != "az" {
		t.Errorf("SetByte(-1): %v, %q", err, s.String())
	}
	if err := s.SetByte(2, 'z'); err == nil {
		t.Error("SetByte past the end should fail")
	}
}

func TestStringNumCacheInvalidated(t *testing.T) {
	s := &String{data: []byte("12")}
	if n, ok := s.ToNum(); !ok || n != 12 {
		t.Fatalf("ToNum = %v, %v", n, ok)
	}
	s.SetByte(1, 'x')
	if _, ok := s.ToNum(); ok {
		t.Error("stale numeric value after SetByte")
	}
}

func TestNumericStringHashesAsNumber(t *testing.T) {
	s := &String{data: []byte("2.50")}
	if s.hashCode() != hashNum(2.5) {
		t.Error("numeric string should hash as its number")
	}
	w := &String{data: []byte("word")}
	if w.hashCode() != hashBytes([]byte("word")) {
		t.Error("word should use the byte hash")
	}
	if hashNum(0) != hashNum(math.Copysign(0, -1)) {
		t.Error("0 and -0 must hash alike")
	}
}
