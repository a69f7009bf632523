package compiler

// ---------------------------------------------------------------------------
// Parser: precedence climbing over the token tree
// ---------------------------------------------------------------------------

// Operator precedence, lowest first.
const (
	precNone = iota
	precAssign
	precTernary
	precOr
	precAnd
	precEquality
	precCompare
	precAdd
	precMul
	precUnary
	precPostfix
)

var binaryPrec = map[TokenType]int{
	TokenAssign:   precAssign,
	TokenPlusEq:   precAssign,
	TokenMinusEq:  precAssign,
	TokenMulEq:    precAssign,
	TokenDivEq:    precAssign,
	TokenCatEq:    precAssign,
	TokenQuestion: precTernary,
	TokenOr:       precOr,
	TokenAnd:      precAnd,
	TokenEq:       precEquality,
	TokenNeq:      precEquality,
	TokenLt:       precCompare,
	TokenLte:      precCompare,
	TokenGt:       precCompare,
	TokenGte:      precCompare,
	TokenPlus:     precAdd,
	TokenMinus:    precAdd,
	TokenCat:      precAdd,
	TokenMul:      precMul,
	TokenDiv:      precMul,
	TokenDot:      precPostfix,
}

// Parser turns one run of sibling nodes into an expression.
type Parser struct {
	file  string
	nodes []*node
	pos   int
}

// Parse tokenizes, builds and parses src into the program block.
func Parse(src []byte, file string) (*Block, error) {
	toks, err := Tokenize(src, file)
	if err != nil {
		return nil, err
	}
	root, err := buildTree(toks, file)
	if err != nil {
		return nil, err
	}
	return parseProgram(root, file)
}

func parseProgram(root *node, file string) (blk *Block, err error) {
	defer recoverError(&err)
	return parseBlock(root, file), nil
}

func (p *Parser) errorf(line int, format string, args ...any) {
	throw(p.file, line, format, args...)
}

// parseBlock parses a brace group's ';'-separated statements.
func parseBlock(g *node, file string) *Block {
	blk := &Block{pos: pos{g.line()}}
	for _, run := range split(g.kids, TokenSemi) {
		if len(run) == 0 {
			continue
		}
		blk.Stmts = append(blk.Stmts, parseRun(run, file))
	}
	return blk
}

// parseRun parses a complete expression from run.
func parseRun(run []*node, file string) Expr {
	p := &Parser{file: file, nodes: run}
	e := p.expr(precAssign)
	if p.pos < len(p.nodes) {
		n := p.nodes[p.pos]
		p.errorf(n.line(), "syntax error near %s", describe(n))
	}
	return e
}

// split cuts nodes at top-level separators of type sep.
func split(nodes []*node, sep TokenType) [][]*node {
	var out [][]*node
	start := 0
	for i, n := range nodes {
		if n.is(sep) {
			out = append(out, nodes[start:i])
			start = i + 1
		}
	}
	return append(out, nodes[start:])
}

func describe(n *node) string {
	switch n.kind {
	case nodeParen:
		return "'('"
	case nodeBracket:
		return "'['"
	case nodeBrace:
		return "'{'"
	case nodeFunc, nodeIf, nodeLoop:
		return n.tok.Type.String()
	}
	return n.tok.String()
}

func (p *Parser) peek() *node {
	if p.pos < len(p.nodes) {
		return p.nodes[p.pos]
	}
	return nil
}

func (p *Parser) next() *node {
	n := p.peek()
	p.pos++
	return n
}

func (p *Parser) lastLine() int {
	if len(p.nodes) == 0 {
		return 0
	}
	return p.nodes[len(p.nodes)-1].line()
}

// expr parses an expression whose binary operators bind at least as
// tightly as minPrec.
func (p *Parser) expr(minPrec int) Expr {
	left := p.prefix()
	for {
		n := p.peek()
		if n == nil {
			return left
		}
		switch n.kind {
		case nodeParen:
			p.pos++
			left = p.call(left, n)
			continue
		case nodeBracket:
			p.pos++
			left = p.index(left, n)
			continue
		case nodeLeaf:
		default:
			return left
		}

		t := n.tok.Type
		prec, ok := binaryPrec[t]
		if !ok || prec < minPrec {
			return left
		}
		p.pos++
		line := n.line()

		switch {
		case t == TokenDot:
			name := p.next()
			if name == nil || !name.is(TokenSymbol) {
				p.errorf(line, "expected member name after '.'")
			}
			left = &Member{pos: pos{line}, X: left, Name: name.tok.Text}
		case prec == precAssign:
			// Right associative.
			left = &Assign{pos: pos{line}, Op: t, Target: left, Value: p.expr(precAssign)}
		case t == TokenQuestion:
			then := p.expr(precTernary)
			if c := p.next(); c == nil || !c.is(TokenColon) {
				p.errorf(line, "expected ':' in conditional expression")
			}
			left = &Ternary{pos: pos{line}, Cond: left, Then: then, Else: p.expr(precTernary)}
		case t == TokenAnd || t == TokenOr:
			left = &Logical{pos: pos{line}, Op: t, L: left, R: p.expr(prec + 1)}
		default:
			left = &Binary{pos: pos{line}, Op: t, L: left, R: p.expr(prec + 1)}
		}
	}
}

func (p *Parser) prefix() Expr {
	n := p.next()
	if n == nil {
		p.errorf(p.lastLine(), "expected expression")
	}
	line := n.line()
	switch n.kind {
	case nodeParen:
		return p.paren(n)
	case nodeBracket:
		return &VectorLit{pos: pos{line}, Elems: p.list(n.kids)}
	case nodeBrace:
		return p.hash(n)
	case nodeFunc:
		return p.funcLit(n)
	case nodeIf:
		return p.ifExpr(n)
	case nodeLoop:
		return p.loop(n)
	}

	switch n.tok.Type {
	case TokenNumber:
		return &NumberLit{pos: pos{line}, Value: n.tok.Num}
	case TokenString:
		return &StringLit{pos: pos{line}, Value: n.tok.Text}
	case TokenNil:
		return &NilLit{pos{line}}
	case TokenSymbol:
		return &Ident{pos: pos{line}, Name: n.tok.Text}
	case TokenNeg, TokenMinus:
		x := p.expr(precUnary)
		if num, ok := x.(*NumberLit); ok {
			return &NumberLit{pos: pos{line}, Value: -num.Value}
		}
		return &Unary{pos: pos{line}, Op: TokenNeg, X: x}
	case TokenNot:
		return &Unary{pos: pos{line}, Op: TokenNot, X: p.expr(precUnary)}
	case TokenReturn:
		if p.peek() == nil {
			return &Return{pos: pos{line}}
		}
		return &Return{pos: pos{line}, X: p.expr(precAssign)}
	case TokenBreak:
		return &Break{pos: pos{line}, Label: p.label()}
	case TokenContinue:
		return &Continue{pos: pos{line}, Label: p.label()}
	case TokenVar:
		return p.varDecl(n)
	}
	p.errorf(line, "unexpected %s", describe(n))
	return nil
}

func (p *Parser) label() string {
	if n := p.peek(); n != nil && n.is(TokenSymbol) {
		p.pos++
		return n.tok.Text
	}
	return ""
}

// list parses comma-separated expressions. A trailing comma is allowed.
func (p *Parser) list(kids []*node) []Expr {
	parts := split(kids, TokenComma)
	if len(parts) > 0 && len(parts[len(parts)-1]) == 0 {
		parts = parts[:len(parts)-1]
	}
	out := make([]Expr, 0, len(parts))
	for _, part := range parts {
		if len(part) == 0 {
			p.errorf(p.lastLine(), "empty expression in list")
		}
		out = append(out, parseRun(part, p.file))
	}
	return out
}

func (p *Parser) paren(n *node) Expr {
	elems := p.list(n.kids)
	switch len(elems) {
	case 0:
		p.errorf(n.line(), "empty parentheses")
	case 1:
		if len(split(n.kids, TokenComma)) == 1 {
			return elems[0]
		}
	}
	return &ListExpr{pos: pos{n.line()}, Elems: elems}
}

func (p *Parser) hash(n *node) Expr {
	h := &HashLit{pos: pos{n.line()}}
	parts := split(n.kids, TokenComma)
	if len(parts) > 0 && len(parts[len(parts)-1]) == 0 {
		parts = parts[:len(parts)-1]
	}
	for _, part := range parts {
		if len(part) < 3 || !part[1].is(TokenColon) {
			p.errorf(n.line(), "hash literal entries must be key: value")
		}
		k := part[0]
		var key Expr
		switch {
		case k.is(TokenSymbol), k.is(TokenString):
			key = &StringLit{pos: pos{k.line()}, Value: k.tok.Text}
		case k.is(TokenNumber):
			key = &NumberLit{pos: pos{k.line()}, Value: k.tok.Num}
		default:
			p.errorf(k.line(), "bad hash key %s", describe(k))
		}
		h.Keys = append(h.Keys, key)
		h.Values = append(h.Values, parseRun(part[2:], p.file))
	}
	return h
}

// isNamedArg reports whether part has the form name: value.
func isNamedArg(part []*node) bool {
	return len(part) >= 2 && (part[0].is(TokenSymbol) || part[0].is(TokenString)) && part[1].is(TokenColon)
}

func (p *Parser) call(fn Expr, args *node) Expr {
	c := &Call{pos: pos{args.line()}, Fn: fn}
	parts := split(args.kids, TokenComma)
	if len(parts) == 1 && len(parts[0]) == 0 {
		return c
	}
	if len(parts) > 0 && isNamedArg(parts[0]) {
		for _, part := range parts {
			if !isNamedArg(part) || len(part) < 3 {
				p.errorf(args.line(), "cannot mix named and positional arguments")
			}
			c.Named = append(c.Named, NamedArg{Name: part[0].tok.Text, Value: parseRun(part[2:], p.file)})
		}
		return c
	}
	c.Args = p.list(args.kids)
	return c
}

func (p *Parser) index(x Expr, n *node) Expr {
	idx := &Index{pos: pos{n.line()}, X: x}
	for _, part := range split(n.kids, TokenComma) {
		if len(part) == 0 {
			p.errorf(n.line(), "empty index")
		}
		colon := -1
		for i, k := range part {
			if k.is(TokenQuestion) {
				break
			}
			if k.is(TokenColon) {
				colon = i
				break
			}
		}
		if colon < 0 {
			idx.Keys = append(idx.Keys, parseRun(part, p.file))
			continue
		}
		r := &Range{pos: pos{n.line()}}
		if colon > 0 {
			r.From = parseRun(part[:colon], p.file)
		}
		if colon < len(part)-1 {
			r.To = parseRun(part[colon+1:], p.file)
		}
		idx.Keys = append(idx.Keys, r)
	}
	return idx
}

// varDecl parses "var name" or "var (a, b)", with an optional "= value".
func (p *Parser) varDecl(kw *node) Expr {
	d := &VarDecl{pos: pos{kw.line()}}
	n := p.next()
	switch {
	case n != nil && n.is(TokenSymbol):
		d.Names = []string{n.tok.Text}
	case n != nil && n.kind == nodeParen:
		d.Multi = true
		for _, part := range split(n.kids, TokenComma) {
			if len(part) != 1 || !part[0].is(TokenSymbol) {
				p.errorf(kw.line(), "bad variable list")
			}
			d.Names = append(d.Names, part[0].tok.Text)
		}
	default:
		p.errorf(kw.line(), "expected variable name after var")
	}
	if eq := p.peek(); eq != nil && eq.is(TokenAssign) {
		p.pos++
		d.Value = p.expr(precAssign)
	} else if d.Multi {
		p.errorf(kw.line(), "var list without a value")
	}
	return d
}

func (p *Parser) funcLit(n *node) Expr {
	fn := &FuncLit{pos: pos{n.line()}}
	if n.head != nil {
		fn.HasParams = true
		parts := split(n.head.kids, TokenComma)
		if len(parts) == 1 && len(parts[0]) == 0 {
			parts = nil
		}
		for i, part := range parts {
			if len(part) == 0 || !part[0].is(TokenSymbol) {
				p.errorf(n.line(), "bad function parameter")
			}
			name := part[0].tok.Text
			switch {
			case len(part) == 1:
				if fn.Rest != "" {
					p.errorf(n.line(), "rest parameter must be last")
				}
				if len(fn.Params) > 0 && fn.Params[len(fn.Params)-1].Default != nil {
					p.errorf(n.line(), "required parameter %s after optional ones", name)
				}
				fn.Params = append(fn.Params, Param{Name: name})
			case len(part) == 2 && part[1].is(TokenEllipsis):
				if i != len(parts)-1 {
					p.errorf(n.line(), "rest parameter must be last")
				}
				fn.Rest = name
			case part[1].is(TokenAssign):
				if len(part) < 3 {
					p.errorf(n.line(), "missing default value for %s", name)
				}
				fn.Params = append(fn.Params, Param{Name: name, Default: parseRun(part[2:], p.file)})
			default:
				p.errorf(n.line(), "bad function parameter %s", name)
			}
		}
	}
	fn.Body = parseBlock(n.body, p.file)
	return fn
}

func (p *Parser) ifExpr(n *node) Expr {
	e := &If{pos: pos{n.line()}}
	for i, cond := range n.conds {
		e.Conds = append(e.Conds, p.cond(cond))
		e.Bodies = append(e.Bodies, parseBlock(n.bodies[i], p.file))
	}
	if n.els != nil {
		e.Else = parseBlock(n.els, p.file)
	}
	return e
}

func (p *Parser) cond(g *node) Expr {
	if len(g.kids) == 0 {
		p.errorf(g.line(), "empty condition")
	}
	return parseRun(g.kids, p.file)
}

// loopLabel splits off a leading label clause when the head has one more
// clause than the loop needs.
func (p *Parser) loopLabel(clauses [][]*node, want int, n *node) (string, [][]*node) {
	switch len(clauses) {
	case want:
		return "", clauses
	case want + 1:
		if len(clauses[0]) != 1 || !clauses[0][0].is(TokenSymbol) {
			p.errorf(n.line(), "bad loop label")
		}
		return clauses[0][0].tok.Text, clauses[1:]
	}
	p.errorf(n.line(), "bad %s header", n.tok.Type)
	return "", nil
}

func (p *Parser) optional(run []*node) Expr {
	if len(run) == 0 {
		return nil
	}
	return parseRun(run, p.file)
}

func (p *Parser) loop(n *node) Expr {
	clauses := split(n.head.kids, TokenSemi)
	line := n.line()
	body := parseBlock(n.body, p.file)

	switch n.tok.Type {
	case TokenWhile:
		label, cl := p.loopLabel(clauses, 1, n)
		return &While{pos: pos{line}, Label: label, Cond: p.cond(&node{tok: n.tok, kids: cl[0]}), Body: body}

	case TokenFor:
		label, cl := p.loopLabel(clauses, 3, n)
		return &For{
			pos:   pos{line},
			Label: label,
			Init:  p.optional(cl[0]),
			Cond:  p.optional(cl[1]),
			Post:  p.optional(cl[2]),
			Body:  body,
		}

	default: // foreach, forindex
		label, cl := p.loopLabel(clauses, 2, n)
		fe := &ForEach{pos: pos{line}, Label: label, Index: n.tok.Type == TokenForindex, Body: body}
		v := cl[0]
		if len(v) == 2 && v[0].is(TokenVar) {
			fe.IsVar = true
			v = v[1:]
		}
		if len(v) != 1 || !v[0].is(TokenSymbol) {
			p.errorf(line, "bad %s loop variable", n.tok.Type)
		}
		fe.Var = v[0].tok.Text
		if len(cl[1]) == 0 {
			p.errorf(line, "missing %s vector", n.tok.Type)
		}
		fe.Vector = parseRun(cl[1], p.file)
		return fe
	}
}
