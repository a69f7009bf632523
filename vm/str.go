package vm

import (
	"errors"
	"math"
	"strconv"
)

// ---------------------------------------------------------------------------
// String: immutable-once-hashed byte buffer
// ---------------------------------------------------------------------------

// ErrImmutableString is returned when a hashed string is modified.
var ErrImmutableString = errors.New("cannot modify an immutable string")

const (
	numUnknown int8 = iota
	numYes
	numNo
)

// String is a byte string. Freshly built strings are mutable; hashing a
// string (using it as a hash key or interning it) freezes it.
type String struct {
	data     []byte
	hash     uint32
	hashed   bool
	numState int8
	num      float64
}

func releaseString(s *String) {
	s.data = nil
}

// Bytes returns the string contents. Callers must not modify the slice.
func (s *String) Bytes() []byte { return s.data }

// String returns the contents as a Go string.
func (s *String) String() string { return string(s.data) }

// Len returns the length in bytes.
func (s *String) Len() int { return len(s.data) }

// Frozen reports whether the string has been hashed.
func (s *String) Frozen() bool { return s.hashed }

// Freeze makes the string immutable. Hashing does this implicitly.
func (s *String) Freeze() { s.hashCode() }

// SetByte overwrites byte i. Fails on frozen strings.
func (s *String) SetByte(i int, b byte) error {
	if s.hashed {
		return ErrImmutableString
	}
	if i < 0 {
		i += len(s.data)
	}
	if i < 0 || i >= len(s.data) {
		return errIndexOutOfBounds
	}
	s.data[i] = b
	s.numState = numUnknown
	return nil
}

// ToNum parses the string as a number. The result is cached.
func (s *String) ToNum() (float64, bool) {
	switch s.numState {
	case numYes:
		return s.num, true
	case numNo:
		return 0, false
	}
	n, ok := parseNum(s.data)
	if ok {
		s.numState, s.num = numYes, n
	} else {
		s.numState = numNo
	}
	return n, ok
}

// hashCode computes (once) and returns the string's hash, freezing it.
// Numeric strings hash as their number so that "1" and 1 land in the same
// bucket, matching value equality.
func (s *String) hashCode() uint32 {
	if s.hashed {
		return s.hash
	}
	if n, ok := s.ToNum(); ok {
		s.hash = hashNum(n)
	} else {
		s.hash = hashBytes(s.data)
	}
	s.hashed = true
	return s.hash
}

// hashBytes is the djb2 string hash.
func hashBytes(b []byte) uint32 {
	h := uint32(5381)
	for _, c := range b {
		h = h*33 + uint32(c)
	}
	return h
}

func hashNum(f float64) uint32 {
	if f == 0 {
		f = 0 // fold -0 into 0
	}
	bits := math.Float64bits(f)
	return mix32(uint32(bits) ^ uint32(bits>>32))
}

func mix32(h uint32) uint32 {
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}

// ---------------------------------------------------------------------------
// Number <-> text
// ---------------------------------------------------------------------------

// parseNum accepts an optional sign followed by a decimal number with
// optional fraction and exponent, or a 0x hex literal. The whole input must
// be consumed.
func parseNum(b []byte) (float64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	i := 0
	neg := false
	if b[0] == '-' || b[0] == '+' {
		neg = b[0] == '-'
		i++
	}
	if len(b)-i > 2 && b[i] == '0' && (b[i+1] == 'x' || b[i+1] == 'X') {
		var n float64
		for _, c := range b[i+2:] {
			d, ok := hexDigit(c)
			if !ok {
				return 0, false
			}
			n = n*16 + float64(d)
		}
		if neg {
			n = -n
		}
		return n, true
	}
	start := i
	digits := 0
	for i < len(b) && isDigit(b[i]) {
		i++
		digits++
	}
	if i < len(b) && b[i] == '.' {
		i++
		for i < len(b) && isDigit(b[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0, false
	}
	if i < len(b) && (b[i] == 'e' || b[i] == 'E') {
		i++
		if i < len(b) && (b[i] == '-' || b[i] == '+') {
			i++
		}
		exp := 0
		for i < len(b) && isDigit(b[i]) {
			i++
			exp++
		}
		if exp == 0 {
			return 0, false
		}
	}
	if i != len(b) {
		return 0, false
	}
	n, err := strconv.ParseFloat(string(b[start:]), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func hexDigit(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}

// FormatNum renders a number the way string conversion does: integers
// without a fractional part, everything else in shortest round-trip form.
func FormatNum(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
