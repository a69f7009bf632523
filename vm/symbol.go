package vm

// ---------------------------------------------------------------------------
// SymbolTable: Interned symbol strings
// ---------------------------------------------------------------------------

// SymbolTable maps symbol text to one canonical, frozen String value, so
// that identifier lookups in namespaces hit the identity fast path. It is
// guarded by the runtime lock and is a GC root.
type SymbolTable struct {
	byName map[string]Value
}

// NewSymbolTable creates a new empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		byName: make(map[string]Value, 256),
	}
}

// Lookup returns the canonical value for a symbol, if interned.
func (st *SymbolTable) Lookup(name string) (Value, bool) {
	v, ok := st.byName[name]
	return v, ok
}

// Len returns the number of interned symbols.
func (st *SymbolTable) Len() int {
	return len(st.byName)
}

func (st *SymbolTable) each(fn func(Value)) {
	for _, v := range st.byName {
		fn(v)
	}
}

// intern returns the canonical symbol value, allocating and freezing a new
// string on first use. Caller holds the runtime lock.
func (rt *Runtime) intern(name string) Value {
	if v, ok := rt.symbols.byName[name]; ok {
		return v
	}
	v := rt.allocString([]byte(name))
	rt.Str(v).Freeze()
	rt.symbols.byName[name] = v
	return v
}

// Intern returns the canonical value for name.
func (c *Context) Intern(name string) Value {
	defer c.acquire()()
	return c.rt.intern(name)
}
