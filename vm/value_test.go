package vm

import (
	"math"
	"testing"
)

func TestNumberRoundTrip(t *testing.T) {
	tests := []float64{
		0.0,
		1.0,
		-1.0,
		3.14159265358979,
		math.MaxFloat64,
		math.SmallestNonzeroFloat64,
		-math.MaxFloat64,
		math.Inf(1),
		math.Inf(-1),
	}

	for _, f := range tests {
		v := FromFloat64(f)
		if !v.IsNum() {
			t.Errorf("FromFloat64(%v).IsNum() = false", f)
			continue
		}
		if v.IsRef() || v.IsNil() {
			t.Errorf("FromFloat64(%v) classified as non-number", f)
		}
		if got := v.Num(); got != f {
			t.Errorf("FromFloat64(%v).Num() = %v", f, got)
		}
	}
}

func TestNegativeZeroKeepsSign(t *testing.T) {
	v := FromFloat64(math.Copysign(0, -1))
	if !math.Signbit(v.Num()) {
		t.Error("-0 lost its sign")
	}
}

func TestNaNIsCanonicalised(t *testing.T) {
	// NaN payloads that collide with our tags must never read as references.
	nans := []uint64{
		0x7FF8000000000001,
		0x7FF9000000000000 | uint64(KindVector)<<kindShift | 7,
		0x7FFB000000000000,
		0xFFF9000000000123,
	}
	for _, bits := range nans {
		v := FromFloat64(math.Float64frombits(bits))
		if !v.IsNum() {
			t.Errorf("NaN %016x not a number after FromFloat64", bits)
		}
		if v.IsRef() {
			t.Errorf("NaN %016x became a reference", bits)
		}
		if !math.IsNaN(v.Num()) {
			t.Errorf("NaN %016x lost NaN-ness", bits)
		}
	}
}

func TestRefEncoding(t *testing.T) {
	kinds := []ObjKind{KindString, KindVector, KindHash, KindCode, KindFunc, KindNative, KindGhost}
	for _, k := range kinds {
		for _, s := range []uint32{0, 1, 255, 1 << 20, math.MaxUint32} {
			v := makeRef(k, s)
			if !v.IsRef() {
				t.Errorf("makeRef(%s, %d) not a ref", k, s)
			}
			if v.IsNum() {
				t.Errorf("makeRef(%s, %d) classified as number", k, s)
			}
			if v.Kind() != k {
				t.Errorf("makeRef(%s, %d).Kind() = %s", k, s, v.Kind())
			}
			if v.slot() != s {
				t.Errorf("makeRef(%s, %d).slot() = %d", k, s, v.slot())
			}
		}
	}
}

func TestSpecials(t *testing.T) {
	if !Nil.IsNil() {
		t.Error("Nil.IsNil() = false")
	}
	if Nil.IsNum() || Nil.IsRef() {
		t.Error("Nil classified as number or reference")
	}
	if endMarker.IsNil() || !endMarker.isEnd() {
		t.Error("end marker misclassified")
	}
	if Nil.Kind() != KindNone {
		t.Errorf("Nil.Kind() = %s", Nil.Kind())
	}
}

func TestFromBool(t *testing.T) {
	if FromBool(true).Num() != 1 || FromBool(false).Num() != 0 {
		t.Error("FromBool should give 1 and 0")
	}
}

func TestTypePredicates(t *testing.T) {
	tests := []struct {
		v      Value
		typeOf string
		scalar bool
		fn     bool
	}{
		{Nil, "nil", false, false},
		{FromInt(3), "scalar", true, false},
		{makeRef(KindString, 1), "scalar", true, false},
		{makeRef(KindVector, 1), "vector", false, false},
		{makeRef(KindHash, 1), "hash", false, false},
		{makeRef(KindCode, 1), "code", false, false},
		{makeRef(KindFunc, 1), "func", false, true},
		{makeRef(KindNative, 1), "func", false, true},
		{makeRef(KindGhost, 1), "ghost", false, false},
	}
	for _, tt := range tests {
		if got := TypeOf(tt.v); got != tt.typeOf {
			t.Errorf("TypeOf(%016x) = %s, want %s", uint64(tt.v), got, tt.typeOf)
		}
		if tt.v.IsScalar() != tt.scalar {
			t.Errorf("IsScalar(%016x) = %v", uint64(tt.v), !tt.scalar)
		}
		if tt.v.IsFunc() != tt.fn {
			t.Errorf("IsFunc(%016x) = %v", uint64(tt.v), !tt.fn)
		}
	}
}

func TestFormatNum(t *testing.T) {
	tests := []struct {
		f    float64
		want string
	}{
		{0, "0"},
		{42, "42"},
		{-7, "-7"},
		{1.5, "1.5"},
		{0.1, "0.1"},
		{1e20, "1e+20"},
		{math.Inf(1), "inf"},
		{math.NaN(), "nan"},
	}
	for _, tt := range tests {
		if got := FormatNum(tt.f); got != tt.want {
			t.Errorf("FormatNum(%v) = %q, want %q", tt.f, got, tt.want)
		}
	}
}
