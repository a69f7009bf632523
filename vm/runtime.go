package vm

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var (
	vmLog = commonlog.GetLogger("nasal.vm")
	gcLog = commonlog.GetLogger("nasal.gc")
)

// Runtime owns everything contexts share: the object pools, the symbol
// table, the saved-root list and the interpreter lock. Create one with
// NewRuntime and drive it through Contexts.
type Runtime struct {
	// ID distinguishes runtimes in logs when a host embeds several.
	ID uuid.UUID

	cfg Config

	// mu is the global interpreter lock. It guards every field below and
	// all heap objects.
	mu sync.Mutex

	strs    *pool[String]
	vecs    *pool[Vector]
	hashes  *pool[Hash]
	codes   *pool[Code]
	funcs   *pool[Function]
	natives *pool[Native]
	ghosts  *pool[Ghost]

	symbols *SymbolTable

	// savedMu guards saved on its own so that natives, which already run
	// under mu, can pin values.
	savedMu sync.Mutex
	saved   []Value

	symMe      Value
	symArg     Value
	symParents Value

	contexts map[*Context]struct{} // in use: GC roots
	idle     []*Context            // free list, never traced

	allocs      int // allocations since the last collection
	collections uint64
	lastSweep   time.Duration
	lastFreed   int
	worklist    []Value
}

// NewRuntime creates a runtime with the given configuration.
func NewRuntime(cfg Config) *Runtime {
	cfg = cfg.withDefaults()
	rt := &Runtime{
		ID:       uuid.New(),
		cfg:      cfg,
		symbols:  NewSymbolTable(),
		contexts: make(map[*Context]struct{}),
	}
	bs := cfg.PoolBlockSize
	rt.strs = newPool(KindString, bs, releaseString)
	rt.vecs = newPool(KindVector, bs, releaseVector)
	rt.hashes = newPool(KindHash, bs, releaseHash)
	rt.codes = newPool(KindCode, bs, releaseCode)
	rt.funcs = newPool[Function](KindFunc, bs, nil)
	rt.natives = newPool[Native](KindNative, bs, nil)
	rt.ghosts = newPool(KindGhost, bs, destroyGhost)
	for i := 0; i < cfg.InitialBlocks; i++ {
		rt.eachPool(func(p poolOps) { p.grow() })
	}
	rt.symMe = rt.intern("me")
	rt.symArg = rt.intern("arg")
	rt.symParents = rt.intern("parents")
	vmLog.Debugf("runtime %s created (block size %d)", rt.ID, bs)
	return rt
}

// Config returns the effective configuration.
func (rt *Runtime) Config() Config { return rt.cfg }

// poolOps is the kind-independent part of a pool the collector needs.
type poolOps interface {
	grow()
	sweep() int
	stats() PoolStats
	header(i uint32) *header
	capacity() int
}

func (rt *Runtime) eachPool(fn func(poolOps)) {
	fn(rt.strs)
	fn(rt.vecs)
	fn(rt.hashes)
	fn(rt.codes)
	fn(rt.funcs)
	fn(rt.natives)
	fn(rt.ghosts)
}

func (rt *Runtime) poolFor(k ObjKind) poolOps {
	switch k {
	case KindString:
		return rt.strs
	case KindVector:
		return rt.vecs
	case KindHash:
		return rt.hashes
	case KindCode:
		return rt.codes
	case KindFunc:
		return rt.funcs
	case KindNative:
		return rt.natives
	case KindGhost:
		return rt.ghosts
	}
	panic(fmt.Sprintf("vm: no pool for kind %d", k))
}

// ---------------------------------------------------------------------------
// Contexts
// ---------------------------------------------------------------------------

// NewContext returns an execution context, reusing an idle one when
// possible. Natives must use Context.SubContext instead; this method takes
// the runtime lock.
func (rt *Runtime) NewContext() *Context {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.newContext(nil)
}

func (rt *Runtime) newContext(parent *Context) *Context {
	var c *Context
	if n := len(rt.idle); n > 0 {
		c = rt.idle[n-1]
		rt.idle = rt.idle[:n-1]
		vmLog.Debug("context reused", "idle", n-1)
	} else {
		c = newContext(rt)
		vmLog.Debug("context created", "runtime", rt.ID.String())
	}
	c.parent = parent
	rt.contexts[c] = struct{}{}
	return c
}

func (rt *Runtime) releaseContext(c *Context) {
	c.reset()
	c.temps = c.temps[:0]
	c.parent = nil
	c.heldBy = nil
	delete(rt.contexts, c)
	rt.idle = append(rt.idle, c)
}

// ---------------------------------------------------------------------------
// Roots and binding
// ---------------------------------------------------------------------------

// Save pins v for the lifetime of the runtime. It is safe to call from a
// native function.
func (rt *Runtime) Save(v Value) {
	rt.savedMu.Lock()
	rt.saved = append(rt.saved, v)
	rt.savedMu.Unlock()
}

// Save pins v for the lifetime of the runtime.
func (c *Context) Save(v Value) {
	c.rt.Save(v)
}

// Bind closes a Code object over a namespace hash, producing a top-level
// Function with no enclosing closure.
func (c *Context) Bind(code, ns Value) Value {
	defer c.acquire()()
	if !code.IsCode() {
		panic("vm: Bind of non-code value")
	}
	return c.newFunc(code, ns, Nil)
}

// ---------------------------------------------------------------------------
// Object access
// ---------------------------------------------------------------------------

// Str returns the String behind v, or nil if v is not a string.
func (rt *Runtime) Str(v Value) *String {
	if v.Kind() != KindString {
		return nil
	}
	return rt.strs.get(v.slot())
}

// Vec returns the Vector behind v, or nil.
func (rt *Runtime) Vec(v Value) *Vector {
	if v.Kind() != KindVector {
		return nil
	}
	return rt.vecs.get(v.slot())
}

// Hash returns the Hash behind v, or nil.
func (rt *Runtime) Hash(v Value) *Hash {
	if v.Kind() != KindHash {
		return nil
	}
	return rt.hashes.get(v.slot())
}

// Code returns the Code behind v, or nil.
func (rt *Runtime) Code(v Value) *Code {
	if v.Kind() != KindCode {
		return nil
	}
	return rt.codes.get(v.slot())
}

// Func returns the Function behind v, or nil.
func (rt *Runtime) Func(v Value) *Function {
	if v.Kind() != KindFunc {
		return nil
	}
	return rt.funcs.get(v.slot())
}

// Native returns the Native behind v, or nil.
func (rt *Runtime) Native(v Value) *Native {
	if v.Kind() != KindNative {
		return nil
	}
	return rt.natives.get(v.slot())
}

// Ghost returns the Ghost behind v, or nil.
func (rt *Runtime) Ghost(v Value) *Ghost {
	if v.Kind() != KindGhost {
		return nil
	}
	return rt.ghosts.get(v.slot())
}

// GoString returns the contents of a string value, or "" for non-strings.
func (rt *Runtime) GoString(v Value) string {
	if s := rt.Str(v); s != nil {
		return string(s.data)
	}
	return ""
}

// ---------------------------------------------------------------------------
// Allocation
// ---------------------------------------------------------------------------

// allocSlot pops a slot from p, collecting once if the pool is empty. The
// post-collection growth policy adds a block when allowed, so a second
// failure means the pool is at its configured limit.
func allocSlot[T any](rt *Runtime, p *pool[T]) (uint32, *T, bool) {
	if i, obj, ok := p.alloc(); ok {
		rt.allocs++
		return i, obj, true
	}
	rt.collect()
	if i, obj, ok := p.alloc(); ok {
		rt.allocs++
		return i, obj, true
	}
	gcLog.Errorf("%s pool exhausted at %d blocks", p.kind, len(p.blocks))
	return 0, nil, false
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats is a snapshot of heap occupancy and collector activity.
type Stats struct {
	Runtime     uuid.UUID
	Pools       []PoolStats
	Collections uint64
	LastSweep   time.Duration
	LastFreed   int
	Contexts    int
	Idle        int
	Symbols     int
	Saved       int
}

// Pool returns the stats for one kind.
func (s Stats) Pool(k ObjKind) PoolStats {
	for _, p := range s.Pools {
		if p.Kind == k {
			return p
		}
	}
	return PoolStats{Kind: k}
}

// Stats returns a snapshot of heap occupancy. It takes the runtime lock;
// natives use Context.Stats.
func (rt *Runtime) Stats() Stats {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.stats()
}

// Stats is Runtime.Stats under this context chain's hold on the lock.
func (c *Context) Stats() Stats {
	defer c.acquire()()
	return c.rt.stats()
}

func (rt *Runtime) stats() Stats {
	rt.savedMu.Lock()
	saved := len(rt.saved)
	rt.savedMu.Unlock()
	s := Stats{
		Runtime:     rt.ID,
		Collections: rt.collections,
		LastSweep:   rt.lastSweep,
		LastFreed:   rt.lastFreed,
		Contexts:    len(rt.contexts),
		Idle:        len(rt.idle),
		Symbols:     rt.symbols.Len(),
		Saved:       saved,
	}
	rt.eachPool(func(p poolOps) { s.Pools = append(s.Pools, p.stats()) })
	return s
}
