package compiler

import (
	"fmt"
	"strings"
	"testing"
)

// sexpr renders an AST compactly for comparison in tests.
func sexpr(e Expr) string {
	switch e := e.(type) {
	case nil:
		return "_"
	case *Block:
		parts := make([]string, len(e.Stmts))
		for i, s := range e.Stmts {
			parts[i] = sexpr(s)
		}
		return "{" + strings.Join(parts, "; ") + "}"
	case *NumberLit:
		return fmt.Sprint(e.Value)
	case *StringLit:
		return fmt.Sprintf("%q", e.Value)
	case *NilLit:
		return "nil"
	case *Ident:
		return e.Name
	case *VectorLit:
		return "[" + list(e.Elems) + "]"
	case *ListExpr:
		return "(list " + list(e.Elems) + ")"
	case *HashLit:
		parts := make([]string, len(e.Keys))
		for i := range e.Keys {
			parts[i] = sexpr(e.Keys[i]) + ":" + sexpr(e.Values[i])
		}
		return "{hash " + strings.Join(parts, " ") + "}"
	case *FuncLit:
		var params []string
		for _, p := range e.Params {
			if p.Default != nil {
				params = append(params, p.Name+"="+sexpr(p.Default))
			} else {
				params = append(params, p.Name)
			}
		}
		if e.Rest != "" {
			params = append(params, e.Rest+"...")
		}
		head := "func"
		if e.HasParams {
			head += "(" + strings.Join(params, " ") + ")"
		}
		return "(" + head + " " + sexpr(e.Body) + ")"
	case *Unary:
		if e.Op == TokenNot {
			return "(! " + sexpr(e.X) + ")"
		}
		return "(neg " + sexpr(e.X) + ")"
	case *Binary:
		return "(" + e.Op.String() + " " + sexpr(e.L) + " " + sexpr(e.R) + ")"
	case *Logical:
		return "(" + e.Op.String() + " " + sexpr(e.L) + " " + sexpr(e.R) + ")"
	case *Ternary:
		return "(? " + sexpr(e.Cond) + " " + sexpr(e.Then) + " " + sexpr(e.Else) + ")"
	case *Assign:
		return "(" + e.Op.String() + " " + sexpr(e.Target) + " " + sexpr(e.Value) + ")"
	case *VarDecl:
		return "(var " + strings.Join(e.Names, " ") + " " + sexpr(e.Value) + ")"
	case *Member:
		return "(. " + sexpr(e.X) + " " + e.Name + ")"
	case *Index:
		return "(index " + sexpr(e.X) + " " + list(e.Keys) + ")"
	case *Range:
		return "(range " + sexpr(e.From) + " " + sexpr(e.To) + ")"
	case *Call:
		s := "(call " + sexpr(e.Fn)
		for _, a := range e.Args {
			s += " " + sexpr(a)
		}
		for _, a := range e.Named {
			s += " " + a.Name + ":" + sexpr(a.Value)
		}
		return s + ")"
	case *If:
		s := "(if"
		for i := range e.Conds {
			s += " " + sexpr(e.Conds[i]) + " " + sexpr(e.Bodies[i])
		}
		if e.Else != nil {
			s += " else " + sexpr(e.Else)
		}
		return s + ")"
	case *While:
		return "(while " + e.Label + " " + sexpr(e.Cond) + " " + sexpr(e.Body) + ")"
	case *For:
		return "(for " + e.Label + " " + sexpr(e.Init) + " " + sexpr(e.Cond) + " " + sexpr(e.Post) + " " + sexpr(e.Body) + ")"
	case *ForEach:
		kw := "foreach"
		if e.Index {
			kw = "forindex"
		}
		v := e.Var
		if e.IsVar {
			v = "var " + v
		}
		return "(" + kw + " " + e.Label + " " + v + " " + sexpr(e.Vector) + " " + sexpr(e.Body) + ")"
	case *Return:
		return "(return " + sexpr(e.X) + ")"
	case *Break:
		return "(break " + e.Label + ")"
	case *Continue:
		return "(continue " + e.Label + ")"
	}
	return fmt.Sprintf("<%T>", e)
}

func list(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = sexpr(e)
	}
	return strings.Join(parts, " ")
}

func TestParse(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"1 + 2 * 3", "{(+ 1 (* 2 3))}"},
		{"(1 + 2) * 3", "{(* (+ 1 2) 3)}"},
		{"a - b - c", "{(- (- a b) c)}"},
		{"a ~ b == c", "{(== (~ a b) c)}"},
		{"a = b = 1", "{(= a (= b 1))}"},
		{"x += 1", "{(+= x 1)}"},
		{"a or b and c", "{(or a (and b c))}"},
		{"!a == b", "{(== (! a) b)}"},
		{"-a.b", "{(neg (. a b))}"},
		{"-2", "{-2}"},
		{"x ? 1 : y ? 2 : 3", "{(? x 1 (? y 2 3))}"},
		{"f(1, 2)", "{(call f 1 2)}"},
		{"f()", "{(call f)}"},
		{"o.m(x).n", "{(. (call (. o m) x) n)}"},
		{"f(a: 1, b: 2)", "{(call f a:1 b:2)}"},
		{"f(1)(2)", "{(call (call f 1) 2)}"},
		{"v[1:2, 3]", "{(index v (range 1 2) 3)}"},
		{"v[:2]", "{(index v (range _ 2))}"},
		{"v[1:]", "{(index v (range 1 _))}"},
		{"v[c ? 1 : 2]", "{(index v (? c 1 2))}"},
		{"[1, 2,]", "{[1 2]}"},
		{"[]", "{[]}"},
		{`x = {a: 1, "b c": 2, 3: nil}`, `{(= x {hash "a":1 "b c":2 3:nil})}`},
		{"func {arg}", "{(func {arg})}"},
		{"func(a, b = 2, c...) {a}", `{(func(a b=2 c...) {a})}`},
		{"func() {}", "{(func() {})}"},
		{"var x", "{(var x _)}"},
		{"var (a, b) = (1, 2)", "{(var a b (list 1 2))}"},
		{"(a, b) = [b, a]", "{(= (list a b) [b a])}"},
		{"if (x) 1; elsif (y) 2; else 3", "{(if x {1} y {2} else {3})}"},
		{"if (x) { 1 } else if (y) { 2 }", "{(if x {1} y {2})}"},
		{"if (x) { 1 } y", "{(if x {1}); y}"},
		{"while (i < 3) i += 1", "{(while  (< i 3) {(+= i 1)})}"},
		{"while (outer; 1) break outer", "{(while outer 1 {(break outer)})}"},
		{"for (;;) continue", "{(for  _ _ _ {(continue )})}"},
		{"for (var i = 0; i < 3; i += 1) f(i)", "{(for  (var i 0) (< i 3) (+= i 1) {(call f i)})}"},
		{"foreach (var e; v) print(e)", "{(foreach  var e v {(call print e)})}"},
		{"forindex (l; i; v) { }", "{(forindex l i v {})}"},
		{"return", "{(return _)}"},
		{"return a + 1", "{(return (+ a 1))}"},
		{"a; ; b;", "{a; b}"},
		{"a.b.c = 1", "{(= (. (. a b) c) 1)}"},
		{"f = func(x) { x * 2 }; f(3)", "{(= f (func(x) {(* x 2)})); (call f 3)}"},
	}
	for _, tt := range tests {
		blk, err := Parse([]byte(tt.src), "parse.nas")
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.src, err)
			continue
		}
		if got := sexpr(blk); got != tt.want {
			t.Errorf("Parse(%q)\n got %s\nwant %s", tt.src, got, tt.want)
		}
	}
}

func TestParseLines(t *testing.T) {
	blk, err := Parse([]byte("a;\n\nb = func {\n  c\n}"), "parse.nas")
	if err != nil {
		t.Fatal(err)
	}
	if l := blk.Stmts[0].Line(); l != 1 {
		t.Errorf("first statement line = %d", l)
	}
	as := blk.Stmts[1].(*Assign)
	if as.Line() != 3 {
		t.Errorf("assignment line = %d", as.Line())
	}
	body := as.Value.(*FuncLit).Body
	if l := body.Stmts[0].Line(); l != 4 {
		t.Errorf("body statement line = %d", l)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src string
		msg string
	}{
		{"1 +", "expected expression"},
		{"1 2", "syntax error near NUMBER(2)"},
		{"(", "unterminated '('"},
		{"f(1, [2)", "unexpected ')'"},
		{")", "unexpected ')'"},
		{"else 1", "else without matching if"},
		{"if x {}", "if not followed by ("},
		{"while (1)", "while without a body"},
		{"func(a..., b) {}", "rest parameter must be last"},
		{"func(a = 1, b) {}", "required parameter b after optional ones"},
		{"func(a =) {}", "missing default value for a"},
		{"func(1) {}", "bad function parameter"},
		{"func (a)", "func without a body"},
		{"{a 1}", "hash literal entries must be key: value"},
		{"f(a: 1, 2)", "cannot mix named and positional arguments"},
		{"while (a; b; c) x", "bad while header"},
		{"for (1; 2) x", "bad for header"},
		{"while (1 2; x) y", "bad loop label"},
		{"var", "expected variable name after var"},
		{"var (a, 1) = v", "bad variable list"},
		{"var (a, b)", "var list without a value"},
		{"()", "empty parentheses"},
		{"[1, , 2]", "empty expression in list"},
		{"v[]", "empty index"},
		{"foreach (1; v) x", "bad foreach loop variable"},
		{"foreach (x; ) y", "missing foreach vector"},
		{"a.1", "expected member name after '.'"},
		{"a ? b", "expected ':' in conditional expression"},
	}
	for _, tt := range tests {
		_, err := Parse([]byte(tt.src), "parse.nas")
		ce, ok := err.(*Error)
		if !ok {
			t.Errorf("Parse(%q): err = %v, want *Error", tt.src, err)
			continue
		}
		if ce.Message != tt.msg {
			t.Errorf("Parse(%q) = %q, want %q", tt.src, ce.Message, tt.msg)
		}
	}
}
