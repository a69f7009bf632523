package lib

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chazu/nasal/compiler"
	"github.com/chazu/nasal/vm"
)

type harness struct {
	rt  *vm.Runtime
	ctx *vm.Context
	ns  vm.Value
	out bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	rt := vm.NewRuntime(vm.DefaultConfig())
	h := &harness{rt: rt, ctx: rt.NewContext()}
	h.ns = h.ctx.NewHash()
	rt.Save(h.ns)
	RegisterTo(h.ctx, h.ns, &h.out)
	return h
}

func (h *harness) run(src string) (vm.Value, error) {
	code, err := compiler.Compile(h.ctx, []byte(src), "test.nas")
	if err != nil {
		return vm.Nil, err
	}
	return h.ctx.Call(h.ctx.Bind(code, h.ns), nil, vm.Nil, vm.Nil)
}

func (h *harness) eval(t *testing.T, src string) string {
	t.Helper()
	v, err := h.run(src)
	if err != nil {
		t.Fatalf("run(%q): %s", src, vm.FormatTrace(err))
	}
	return h.rt.Format(v)
}

func TestNatives(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"size", `[size([1, 2]), size({a: 1}), size("abc")]`, "[2, 1, 3]"},
		{"keys", `keys({a: 1})`, `["a"]`},
		{"append and pop", `var v = [1]; append(v, 2, 3); [pop(v), size(v)]`, "[3, 2]"},
		{"pop empty", `pop([])`, "nil"},
		{"setsize grows", `setsize([1], 3)`, "[1, nil, nil]"},
		{"setsize shrinks", `setsize([1, 2, 3], 1)`, "[1]"},
		{"subvec", `[subvec([1, 2, 3, 4], 1, 2), subvec([1, 2, 3], -1)]`, "[[2, 3], [3]]"},
		{"delete and contains", `var h = {a: 1, b: 2}; delete(h, "a"); [contains(h, "a"), contains(h, "b"), size(h)]`, "[0, 1, 1]"},
		{"typeof", `[typeof(nil), typeof(1), typeof("s"), typeof([]), typeof({}), typeof(func {})]`,
			`["nil", "scalar", "scalar", "vector", "hash", "func"]`},
		{"streq", `[streq("1", 1), streq("1.0", 1), streq([], [])]`, "[1, 0, 0]"},
		{"substr", `[substr("hello", 1, 3), substr("hello", -3), substr("hi", 0, 10)]`, `["ell", "llo", "hi"]`},
		{"num", `[num("12"), num("x"), num(3)]`, "[12, nil, 3]"},
		{"id", `typeof(id([]))`, `"scalar"`},
		{"compile", `compile("1 + 2")()`, "3"},
		{"bind and closure", `var f = func { x }; var ns = {x: 5}; var g = bind(f, ns); [g(), closure(g) == ns, closure(g, 5)]`,
			"[5, 1, nil]"},
		{"call", `call(func(a, b) { a + b }, [1, 2])`, "3"},
		{"call with me", `call(func { me.v }, nil, {v: 7})`, "7"},
		{"call with locals", `call(func { y * 2 }, nil, nil, {y: 4})`, "8"},
		{"sleep", `sleep(0)`, "nil"},
		{"cbor", `cbor_decode(cbor_encode({a: [1, "two", nil]}))`, `{a: [1, "two", nil]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if got := h.eval(t, tt.src); got != tt.want {
				t.Errorf("%s = %s, want %s", tt.src, got, tt.want)
			}
		})
	}
}

func TestPrint(t *testing.T) {
	h := newHarness(t)
	if got := h.eval(t, `size(print("a", 1, [2, "b"]))`); got != "10" {
		t.Errorf("print returned a string of size %s, want 10", got)
	}
	if got, want := h.out.String(), "a1[2, \"b\"]\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestNativeErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`size(1)`, "size: object has no size (scalar)"},
		{`append(1, 2)`, "append: argument 1 is not a vector"},
		{`setsize([], -1)`, "setsize: negative size -1"},
		{`setsize([], 1e12)`, "setsize: size 1000000000000 exceeds the limit of 16777216"},
		{`subvec([1], 5)`, "subvec: start 5 out of range (size: 1)"},
		{`keys([])`, "keys: argument 1 is not a hash"},
		{`substr(1, 0)`, "substr: argument 1 is not a string"},
		{`id(1)`, "id: argument is not a reference type"},
		{`bind(print, {})`, "bind: argument 1 is not a script function"},
		{`sleep(-1)`, "sleep: argument must be a non-negative number"},
		{`cbor_encode(func {})`, "codec: cannot encode func"},
		{`die("stop")`, "stop"},
		{`call(func { die("inner") })`, "inner"},
		{`compile("1 +")`, "<compile>:"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.run(tt.src)
			if err == nil {
				t.Fatalf("%s: expected an error", tt.src)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("%s: error %q does not contain %q", tt.src, err.Error(), tt.want)
			}
		})
	}
}

func TestCallRecordsErrors(t *testing.T) {
	h := newHarness(t)
	src := `var err = [];
var r = call(func { die("bad") }, nil, nil, nil, err);
[r, err[0], err[1], typeof(err[2])]`
	if got, want := h.eval(t, src), `[nil, "bad", "test.nas", "scalar"]`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestCallRecordsNonScalarDie(t *testing.T) {
	h := newHarness(t)
	src := `var err = [];
call(func { die({code: 3}) }, nil, nil, nil, err);
err[0].code`
	if got := h.eval(t, src); got != "3" {
		t.Errorf("got %s, want 3", got)
	}
}

func TestCallFreesSubContexts(t *testing.T) {
	h := newHarness(t)
	h.eval(t, `var err = []; for (var i = 0; i < 10; i += 1) { call(func { i }); call(func { die(i) }, nil, nil, nil, err) }`)
	if n := h.rt.Stats().Contexts; n > 3 {
		t.Errorf("%d contexts live after repeated calls", n)
	}
}
