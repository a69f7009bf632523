package compiler

import (
	"errors"
	"testing"
)

func fuzzSeeds() []string {
	return []string{
		``,
		`1 + 2 * 3`,
		`var x = "a" ~ 'b\n'; x[0]`,
		"`A` + 0x1F - 1.5e3",
		`var f = func(a, b = 2, c...) { a + b }; f(1)`,
		`f(a: 1, b: [1, 2])`,
		`var h = {k: 1, "s": 2, 3: nil}; h.k += 1`,
		`if (x) { 1 } elsif (y) { 2 } else { 3 }`,
		`if (x) 1; else 2;`,
		`for (var i = 0; i < 3; i += 1) { continue }`,
		`foreach (var e; v) print(e);`,
		`forindex (i; v) { break }`,
		`while (1) { return }`,
		`for (outer; ;) { break outer }`,
		`var (a, b) = [1, 2]; (a, b) = (b, a)`,
		`v[1:2, -1, 3:]`,
		`!x and y or z ? 1 : -2`,
		`# comment only`,
		`((([`,
		`}`,
		`"unterminated`,
		`func`,
	}
}

func FuzzTokenize(f *testing.F) {
	for _, s := range fuzzSeeds() {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, src string) {
		toks, err := Tokenize([]byte(src), "fuzz.nas")
		if err != nil {
			var ce *Error
			if !errors.As(err, &ce) {
				t.Fatalf("unexpected error type %T: %v", err, err)
			}
			return
		}
		for i := 1; i < len(toks); i++ {
			if toks[i].Line < toks[i-1].Line {
				t.Fatalf("line numbers go backwards at token %d", i)
			}
		}
	})
}

func FuzzParse(f *testing.F) {
	for _, s := range fuzzSeeds() {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, src string) {
		blk, err := Parse([]byte(src), "fuzz.nas")
		if err != nil {
			var ce *Error
			if !errors.As(err, &ce) {
				t.Fatalf("unexpected error type %T: %v", err, err)
			}
			return
		}
		if blk == nil {
			t.Fatal("nil block without an error")
		}
	})
}
