package compiler

// ---------------------------------------------------------------------------
// Tree builder: brace matching and block-structure fixups
// ---------------------------------------------------------------------------

type nodeKind int

const (
	nodeLeaf    nodeKind = iota
	nodeParen            // ( ... )
	nodeBracket          // [ ... ]
	nodeBrace            // { ... }
	nodeFunc             // func [(args)] { body }
	nodeIf               // if (c) {..} elsif (c) {..} else {..}
	nodeLoop             // for/foreach/forindex/while (head) { body }
)

// node is an element of the token tree. Groups keep their contents in
// kids; control-flow constructs keep their parts in the named fields.
type node struct {
	kind nodeKind
	tok  Token // the leaf, the opening brace or the introducing keyword
	kids []*node

	head *node // argument list, condition or loop head (a paren group)
	body *node // brace group

	// if chains: conds[i] guards bodies[i]; els may be nil
	conds  []*node
	bodies []*node
	els    *node
}

func (n *node) line() int { return n.tok.Line }

func (n *node) is(t TokenType) bool {
	return n.kind == nodeLeaf && n.tok.Type == t
}

type treeBuilder struct {
	file string
	toks []Token
	pos  int
}

// buildTree groups toks by brace matching and attaches control-flow heads
// and bodies. The result is a synthetic brace group holding the program.
func buildTree(toks []Token, file string) (root *node, err error) {
	defer recoverError(&err)
	b := &treeBuilder{file: file, toks: toks}
	root = &node{kind: nodeBrace, tok: Token{Type: TokenLBrace, Line: 1}}
	root.kids = b.group(TokenError, 1)
	root.kids = b.fixBlocks(root.kids)
	return root, nil
}

var closers = map[TokenType]TokenType{
	TokenLParen:   TokenRParen,
	TokenLBracket: TokenRBracket,
	TokenLBrace:   TokenRBrace,
}

var groupKinds = map[TokenType]nodeKind{
	TokenLParen:   nodeParen,
	TokenLBracket: nodeBracket,
	TokenLBrace:   nodeBrace,
}

// group collects nodes until the closing token. TokenError stands for end
// of input.
func (b *treeBuilder) group(closing TokenType, openLine int) []*node {
	var kids []*node
	for b.pos < len(b.toks) {
		t := b.toks[b.pos]
		b.pos++
		switch t.Type {
		case TokenLParen, TokenLBracket, TokenLBrace:
			g := &node{kind: groupKinds[t.Type], tok: t}
			g.kids = b.fixBlocks(b.group(closers[t.Type], t.Line))
			kids = append(kids, g)
		case TokenRParen, TokenRBracket, TokenRBrace:
			if t.Type != closing {
				throw(b.file, t.Line, "unexpected '%s'", t.Type)
			}
			return kids
		default:
			kids = append(kids, &node{kind: nodeLeaf, tok: t})
		}
	}
	if closing != TokenError {
		throw(b.file, openLine, "unterminated '%s'", openerOf(closing))
	}
	return kids
}

func openerOf(closing TokenType) TokenType {
	for open, c := range closers {
		if c == closing {
			return open
		}
	}
	return TokenError
}

// fixBlocks turns func/if/loop keyword runs into construct nodes and
// inserts a statement separator after each control-flow construct.
func (b *treeBuilder) fixBlocks(kids []*node) []*node {
	var out []*node
	for i := 0; i < len(kids); {
		n := kids[i]
		if n.kind != nodeLeaf {
			out = append(out, n)
			i++
			continue
		}
		switch n.tok.Type {
		case TokenFunc:
			fn := &node{kind: nodeFunc, tok: n.tok}
			i++
			if i < len(kids) && kids[i].kind == nodeParen {
				fn.head = kids[i]
				i++
			}
			if i >= len(kids) || kids[i].kind != nodeBrace {
				throw(b.file, n.line(), "func without a body")
			}
			fn.body = kids[i]
			i++
			out = append(out, fn)

		case TokenIf:
			ifn := &node{kind: nodeIf, tok: n.tok}
			var cond, body *node
			cond, body, i = b.condBody(kids, i+1, n)
			ifn.conds = append(ifn.conds, cond)
			ifn.bodies = append(ifn.bodies, body)
			for i < len(kids) {
				k := kids[i]
				if k.is(TokenElsif) {
					cond, body, i = b.condBody(kids, i+1, k)
				} else if k.is(TokenElse) && i+1 < len(kids) && kids[i+1].is(TokenIf) {
					cond, body, i = b.condBody(kids, i+2, kids[i+1])
				} else if k.is(TokenElse) {
					ifn.els, i = b.body(kids, i+1, k)
					break
				} else {
					break
				}
				ifn.conds = append(ifn.conds, cond)
				ifn.bodies = append(ifn.bodies, body)
			}
			out = append(out, ifn, b.separator(n))

		case TokenFor, TokenForeach, TokenForindex, TokenWhile:
			loop := &node{kind: nodeLoop, tok: n.tok}
			loop.head, loop.body, i = b.condBody(kids, i+1, n)
			out = append(out, loop, b.separator(n))

		case TokenElsif, TokenElse:
			throw(b.file, n.line(), "%s without matching if", n.tok.Type)

		default:
			out = append(out, n)
			i++
		}
	}
	return out
}

// condBody expects a paren group followed by a body.
func (b *treeBuilder) condBody(kids []*node, i int, kw *node) (*node, *node, int) {
	if i >= len(kids) || kids[i].kind != nodeParen {
		throw(b.file, kw.line(), "%s not followed by (", kw.tok.Type)
	}
	head := kids[i]
	body, next := b.body(kids, i+1, kw)
	return head, body, next
}

// body returns a brace group, or wraps the statement up to the next ';'
// in a synthetic one.
func (b *treeBuilder) body(kids []*node, i int, kw *node) (*node, int) {
	if i < len(kids) && kids[i].kind == nodeBrace {
		return kids[i], i + 1
	}
	if i >= len(kids) {
		throw(b.file, kw.line(), "%s without a body", kw.tok.Type)
	}
	blk := &node{kind: nodeBrace, tok: Token{Type: TokenLBrace, Line: kids[i].line()}}
	j := i
	for j < len(kids) && !kids[j].is(TokenSemi) {
		j++
	}
	blk.kids = b.fixBlocks(kids[i:j])
	if j < len(kids) {
		j++ // the ';' belongs to the body
	}
	return blk, j
}

func (b *treeBuilder) separator(at *node) *node {
	return &node{kind: nodeLeaf, tok: Token{Type: TokenSemi, Text: ";", Line: at.line()}}
}
