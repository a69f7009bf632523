package vm

import (
	"time"
)

// ---------------------------------------------------------------------------
// Mark and sweep collector
// ---------------------------------------------------------------------------

// GC forces a full collection. It takes the runtime lock, so it must not be
// called from inside a native function; natives use Context.GC.
func (rt *Runtime) GC() Stats {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.collect()
	return rt.stats()
}

// GC forces a full collection under this context chain's hold on the
// lock. Values a native holds only in Go variables must be kept first.
func (c *Context) GC() Stats {
	defer c.acquire()()
	c.rt.collect()
	return c.rt.stats()
}

// collect runs one full cycle. Caller holds the runtime lock.
func (rt *Runtime) collect() {
	start := time.Now()

	rt.worklist = rt.worklist[:0]
	rt.markRoots()
	rt.drain()

	freed := 0
	grown := 0
	rt.eachPool(func(p poolOps) {
		freed += p.sweep()
		st := p.stats()
		if float64(st.Live) > rt.cfg.GrowThreshold*float64(st.Capacity) &&
			(rt.cfg.MaxPoolBlocks == 0 || st.Blocks < rt.cfg.MaxPoolBlocks) {
			p.grow()
			grown++
		}
	})

	rt.allocs = 0
	rt.collections++
	rt.lastFreed = freed
	rt.lastSweep = time.Since(start)
	gcLog.Debug("collection finished",
		"cycle", rt.collections, "freed", freed, "grown", grown,
		"duration", rt.lastSweep.String())
}

func (rt *Runtime) markRoots() {
	for c := range rt.contexts {
		c.markRoots(rt)
	}
	rt.symbols.each(rt.mark)
	rt.savedMu.Lock()
	for _, v := range rt.saved {
		rt.mark(v)
	}
	rt.savedMu.Unlock()
}

// mark sets v's mark bit and queues it. Objects already marked are skipped,
// which is what makes cycles terminate.
func (rt *Runtime) mark(v Value) {
	if !v.IsRef() {
		return
	}
	h := rt.poolFor(v.Kind()).header(v.slot())
	if h.kind == KindNone || h.mark != 0 {
		return
	}
	h.mark = 1
	rt.worklist = append(rt.worklist, v)
}

// drain traces the worklist until empty.
func (rt *Runtime) drain() {
	for len(rt.worklist) > 0 {
		n := len(rt.worklist) - 1
		v := rt.worklist[n]
		rt.worklist = rt.worklist[:n]

		switch v.Kind() {
		case KindVector:
			vec := rt.vecs.get(v.slot())
			for _, e := range vec.buf[vec.start:vec.end] {
				rt.mark(e)
			}
		case KindHash:
			h := rt.hashes.get(v.slot())
			for i := range h.nodes {
				rt.mark(h.nodes[i].key)
				rt.mark(h.nodes[i].val)
			}
		case KindCode:
			code := rt.codes.get(v.slot())
			for _, k := range code.Constants {
				rt.mark(k)
			}
			for _, s := range code.ArgSyms {
				rt.mark(s)
			}
			for _, s := range code.OptSyms {
				rt.mark(s)
			}
			rt.mark(code.RestSym)
			rt.mark(code.File)
		case KindFunc:
			f := rt.funcs.get(v.slot())
			rt.mark(f.Code)
			rt.mark(f.Namespace)
			rt.mark(f.Next)
		}
		// Strings, natives and ghosts hold no references.
	}
}

// safePoint is called at loop back-edges. It runs a voluntary collection
// once GCInterval allocations have happened since the last one.
func (rt *Runtime) safePoint() {
	if rt.cfg.GCInterval > 0 && rt.allocs >= rt.cfg.GCInterval {
		rt.collect()
	}
}

func destroyGhost(g *Ghost) {
	if g.Type != nil && g.Type.Destroy != nil {
		g.Type.Destroy(g.Ptr)
	}
	g.Type = nil
	g.Ptr = nil
}
