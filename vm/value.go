package vm

import (
	"math"
)

// Value represents a script value using NaN-boxing.
//
// All values are 64-bit words. Anything that is not one of our tagged quiet
// NaNs is an IEEE 754 double. Non-float values live in the NaN space:
//
//   - Number:  native IEEE 754 double
//   - Ref:     quiet NaN + tagRef + object kind (8 bits) + pool slot (40 bits)
//   - Special: quiet NaN + tagSpecial + id (nil, end-of-iteration)
//
// References are arena handles into the runtime's per-kind pools, never
// machine pointers, so a float bit pattern can at worst name a slot; and
// FromFloat64 canonicalises NaNs so that it cannot even do that.
type Value uint64

// NaN-boxing constants
const (
	// Quiet NaN prefix: exponent all 1s, quiet bit set, sign bit 0
	nanBits uint64 = 0x7FF8000000000000

	// Tag mask: 3 bits within the NaN mantissa space
	tagMask uint64 = 0x0007000000000000

	// Payload mask: 48 bits for handle/id
	payloadMask uint64 = 0x0000FFFFFFFFFFFF

	tagRef     uint64 = 0x0001000000000000
	tagSpecial uint64 = 0x0003000000000000

	kindShift        = 40
	slotMask  uint64 = 0x000000FFFFFFFFFF

	// canonicalNaN is the only NaN a number Value may hold. Its tag bits are
	// zero, so it is classified as a float.
	canonicalNaN uint64 = 0x7FF8000000000001
)

// Special value payloads
const (
	specialNil uint64 = 0
	specialEnd uint64 = 1
)

// Pre-defined special values
const (
	Nil Value = Value(nanBits | tagSpecial | specialNil)

	// endMarker is pushed by the EACH/INDEX enumerators when the vector is
	// exhausted. It never escapes to script code.
	endMarker Value = Value(nanBits | tagSpecial | specialEnd)
)

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// IsNum returns true if v represents a float64 value.
// This includes infinities, negative NaNs and the canonical quiet NaN.
func (v Value) IsNum() bool {
	top := uint64(v) >> 48
	// Tagged values occupy 0x7FF9..0x7FFF in the top 16 bits. Everything
	// else (including anything with the sign bit set) is a double.
	return top < 0x7FF9 || top > 0x7FFF
}

// IsRef returns true if v is a handle to a heap object.
func (v Value) IsRef() bool {
	return (uint64(v) & (nanBits | tagMask)) == (nanBits|tagRef) && uint64(v)>>63 == 0
}

// IsNil returns true if v is the nil value.
func (v Value) IsNil() bool {
	return v == Nil
}

func (v Value) isEnd() bool {
	return v == endMarker
}

// ---------------------------------------------------------------------------
// Number operations
// ---------------------------------------------------------------------------

// Num returns v as a float64.
// Panics if v is not a number.
func (v Value) Num() float64 {
	if !v.IsNum() {
		panic("Value.Num: not a number")
	}
	return math.Float64frombits(uint64(v))
}

// FromFloat64 creates a Value from a float64.
func FromFloat64(f float64) Value {
	if f != f {
		return Value(canonicalNaN)
	}
	return Value(math.Float64bits(f))
}

// FromInt creates a number Value from an int.
func FromInt(n int) Value {
	return FromFloat64(float64(n))
}

// FromBool returns 1 for true and 0 for false, the language having no
// separate boolean type.
func FromBool(b bool) Value {
	if b {
		return FromFloat64(1)
	}
	return FromFloat64(0)
}

// ---------------------------------------------------------------------------
// Reference operations
// ---------------------------------------------------------------------------

func makeRef(kind ObjKind, slot uint32) Value {
	return Value(nanBits | tagRef | uint64(kind)<<kindShift | uint64(slot))
}

// Kind returns the heap object kind of a reference, or KindNone for numbers
// and specials.
func (v Value) Kind() ObjKind {
	if !v.IsRef() {
		return KindNone
	}
	return ObjKind((uint64(v) & payloadMask) >> kindShift)
}

func (v Value) slot() uint32 {
	return uint32(uint64(v) & slotMask)
}

// IsString returns true if v refers to a String.
func (v Value) IsString() bool { return v.Kind() == KindString }

// IsVector returns true if v refers to a Vector.
func (v Value) IsVector() bool { return v.Kind() == KindVector }

// IsHash returns true if v refers to a Hash.
func (v Value) IsHash() bool { return v.Kind() == KindHash }

// IsCode returns true if v refers to a Code object.
func (v Value) IsCode() bool { return v.Kind() == KindCode }

// IsFunc returns true if v refers to a script Function or a NativeFunction.
func (v Value) IsFunc() bool {
	k := v.Kind()
	return k == KindFunc || k == KindNative
}

// IsGhost returns true if v refers to a Ghost.
func (v Value) IsGhost() bool { return v.Kind() == KindGhost }

// IsScalar returns true for numbers and strings.
func (v Value) IsScalar() bool {
	return v.IsNum() || v.IsString()
}

// Identical reports bitwise identity: same number bits or same object.
func Identical(a, b Value) bool {
	return a == b
}
