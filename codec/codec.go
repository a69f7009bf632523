// Package codec converts script values to and from CBOR.
//
// Numbers, strings, vectors, hashes and nil cross the boundary. Integral
// numbers are written as CBOR integers, strings holding valid UTF-8 as
// text strings and anything else as byte strings. Functions, code and
// ghosts cannot be encoded.
package codec

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/nasal/vm"
)

// MaxDepth bounds container nesting in both directions.
const MaxDepth = 256

var (
	// ErrCycle is returned when a container contains itself.
	ErrCycle = errors.New("codec: cyclic value")

	// ErrTooDeep is returned when nesting exceeds MaxDepth.
	ErrTooDeep = errors.New("codec: value nested too deeply")
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: failed to create CBOR enc mode: %v", err))
	}
	encMode = em

	dm, err := cbor.DecOptions{MaxNestedLevels: MaxDepth + 1}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: failed to create CBOR dec mode: %v", err))
	}
	decMode = dm
}

// Encode serializes v in canonical CBOR.
func Encode(ctx *vm.Context, v vm.Value) ([]byte, error) {
	defer ctx.Acquire()()
	e := &encoder{rt: ctx.Runtime(), active: make(map[vm.Value]bool)}
	obj, err := e.toGo(v, 0)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(obj)
}

type encoder struct {
	rt     *vm.Runtime
	active map[vm.Value]bool
}

func (e *encoder) toGo(v vm.Value, depth int) (any, error) {
	if depth > MaxDepth {
		return nil, ErrTooDeep
	}
	switch {
	case v.IsNil():
		return nil, nil
	case v.IsNum():
		f := v.Num()
		if f == math.Trunc(f) && math.Abs(f) < 1<<63 && !(f == 0 && math.Signbit(f)) {
			return int64(f), nil
		}
		return f, nil
	case v.IsString():
		b := e.rt.Str(v).Bytes()
		if utf8.Valid(b) {
			return string(b), nil
		}
		return append([]byte(nil), b...), nil
	}

	if e.active[v] {
		return nil, ErrCycle
	}
	e.active[v] = true
	defer delete(e.active, v)

	switch {
	case v.IsVector():
		vals := e.rt.Vec(v).Values()
		out := make([]any, len(vals))
		for i, el := range vals {
			x, err := e.toGo(el, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil

	case v.IsHash():
		out := make(map[any]any, e.rt.Hash(v).Len())
		var err error
		e.rt.Hash(v).Each(func(key, val vm.Value) bool {
			var k, x any
			if k, err = e.toGo(key, depth+1); err != nil {
				return false
			}
			if _, ok := k.([]byte); ok {
				// []byte is not a comparable map key.
				k = string(k.([]byte))
			}
			if x, err = e.toGo(val, depth+1); err != nil {
				return false
			}
			out[k] = x
			return true
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("codec: cannot encode %s", vm.TypeOf(v))
}

// Decode parses CBOR data into a new script value. Booleans become 1 and
// 0, timestamps seconds since the epoch; other tags besides bignums are
// rejected.
func Decode(ctx *vm.Context, data []byte) (vm.Value, error) {
	var obj any
	if err := decMode.Unmarshal(data, &obj); err != nil {
		return vm.Nil, fmt.Errorf("codec: decode: %w", err)
	}
	defer ctx.Acquire()()
	return fromGo(ctx, obj)
}

func fromGo(ctx *vm.Context, obj any) (vm.Value, error) {
	switch x := obj.(type) {
	case nil:
		return vm.Nil, nil
	case bool:
		return vm.FromBool(x), nil
	case uint64:
		return vm.FromFloat64(float64(x)), nil
	case int64:
		return vm.FromFloat64(float64(x)), nil
	case float64:
		return vm.FromFloat64(x), nil
	case float32:
		return vm.FromFloat64(float64(x)), nil
	case big.Int:
		f, _ := new(big.Float).SetInt(&x).Float64()
		return vm.FromFloat64(f), nil
	case string:
		return ctx.NewString(x), nil
	case []byte:
		return ctx.NewBytes(x), nil
	case []any:
		vals := make([]vm.Value, len(x))
		for i, el := range x {
			v, err := fromGo(ctx, el)
			if err != nil {
				return vm.Nil, err
			}
			vals[i] = v
		}
		return ctx.NewVector(vals...), nil
	case map[any]any:
		hv := ctx.NewHash()
		h := ctx.Runtime().Hash(hv)
		for k, el := range x {
			kv, err := fromGo(ctx, k)
			if err != nil {
				return vm.Nil, err
			}
			v, err := fromGo(ctx, el)
			if err != nil {
				return vm.Nil, err
			}
			h.Set(kv, v)
		}
		return hv, nil
	case time.Time:
		return vm.FromFloat64(float64(x.UnixNano()) / 1e9), nil
	case cbor.Tag:
		return vm.Nil, fmt.Errorf("codec: unsupported CBOR tag %d", x.Number)
	}
	return vm.Nil, fmt.Errorf("codec: unsupported CBOR item %T", obj)
}
