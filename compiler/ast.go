package compiler

// ---------------------------------------------------------------------------
// AST node types
// ---------------------------------------------------------------------------

// Expr is any expression. Every construct, statements included, is an
// expression yielding one value.
type Expr interface {
	Line() int
}

type pos struct{ line int }

func (p pos) Line() int { return p.line }

// Block is a ';'-separated sequence; its value is the last expression's.
type Block struct {
	pos
	Stmts []Expr
}

// Literals
type (
	NumberLit struct {
		pos
		Value float64
	}
	StringLit struct {
		pos
		Value string
	}
	NilLit struct{ pos }

	// VectorLit is [a, b, ...].
	VectorLit struct {
		pos
		Elems []Expr
	}

	// HashLit is {key: value, ...}. Keys are StringLit or NumberLit.
	HashLit struct {
		pos
		Keys   []Expr
		Values []Expr
	}

	// FuncLit is a function literal. HasParams is false for "func {...}",
	// whose arguments all land in "arg".
	FuncLit struct {
		pos
		Name      string
		HasParams bool
		Params    []Param
		Rest      string
		Body      *Block
	}

	// ListExpr is a parenthesised comma list, valid only in multiple
	// assignment.
	ListExpr struct {
		pos
		Elems []Expr
	}
)

// Param is one declared parameter; Default is nil for required ones.
type Param struct {
	Name    string
	Default Expr
}

// References and operators
type (
	Ident struct {
		pos
		Name string
	}

	Unary struct {
		pos
		Op TokenType // TokenNeg or TokenNot
		X  Expr
	}

	Binary struct {
		pos
		Op   TokenType
		L, R Expr
	}

	// Logical is a short-circuit and/or yielding the deciding operand.
	Logical struct {
		pos
		Op   TokenType
		L, R Expr
	}

	Ternary struct {
		pos
		Cond, Then, Else Expr
	}

	// Assign is target = value, or a compound form when Op is not
	// TokenAssign.
	Assign struct {
		pos
		Op     TokenType
		Target Expr
		Value  Expr
	}

	// VarDecl is "var x = v" or "var (a, b) = v". Value may be nil.
	VarDecl struct {
		pos
		Names []string
		Multi bool
		Value Expr
	}

	Member struct {
		pos
		X    Expr
		Name string
	}

	// Index is x[k]; Keys with more than one entry, or any Range, make it
	// a slice producing a new vector.
	Index struct {
		pos
		X    Expr
		Keys []Expr
	}

	// Range is a slice bound pair; nil ends mean the vector's ends.
	Range struct {
		pos
		From, To Expr
	}

	// Call is f(args) or, with Named set, f(name: value, ...). A Member
	// callee makes it a method call.
	Call struct {
		pos
		Fn    Expr
		Args  []Expr
		Named []NamedArg
	}
)

// NamedArg is one name: value pair of a hash-call.
type NamedArg struct {
	Name  string
	Value Expr
}

// Control flow
type (
	If struct {
		pos
		Conds  []Expr
		Bodies []*Block
		Else   *Block
	}

	While struct {
		pos
		Label string
		Cond  Expr
		Body  *Block
	}

	For struct {
		pos
		Label            string
		Init, Cond, Post Expr
		Body             *Block
	}

	// ForEach covers foreach (element) and forindex (index) loops.
	ForEach struct {
		pos
		Label  string
		Index  bool
		Var    string
		IsVar  bool
		Vector Expr
		Body   *Block
	}

	Return struct {
		pos
		X Expr
	}

	Break struct {
		pos
		Label string
	}

	Continue struct {
		pos
		Label string
	}
)
