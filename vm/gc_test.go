package vm

import (
	"testing"
)

func TestCollectCycles(t *testing.T) {
	rt, _, _ := newTestRuntime(t, Config{})
	base := rt.GC().Pool(KindHash).Live

	tmp := rt.NewContext()
	for i := 0; i < 50; i++ {
		a, b := tmp.NewHash(), tmp.NewHash()
		rt.Hash(a).Set(tmp.Intern("peer"), b)
		rt.Hash(b).Set(tmp.Intern("peer"), a)
	}
	if live := rt.Stats().Pool(KindHash).Live; live != base+100 {
		t.Fatalf("live hashes = %d, want %d", live, base+100)
	}
	tmp.Free()

	st := rt.GC()
	if live := st.Pool(KindHash).Live; live != base {
		t.Errorf("live hashes after GC = %d, want %d", live, base)
	}
	if st.LastFreed < 100 {
		t.Errorf("LastFreed = %d, want at least 100", st.LastFreed)
	}
}

func TestSavedValuesSurvive(t *testing.T) {
	rt, c, _ := newTestRuntime(t, Config{})
	v := c.NewVector(c.NewString("kept"))
	rt.Save(v)

	tmp := rt.NewContext()
	tmp.NewString("dropped")
	tmp.Free()
	c.Free()

	st := rt.GC()
	if got := rt.Format(v); got != `["kept"]` {
		t.Errorf("saved vector = %s", got)
	}
	if st.Saved != 2 {
		t.Errorf("Saved = %d, want 2", st.Saved)
	}
}

func TestGhostDestroyedOnce(t *testing.T) {
	rt, c, _ := newTestRuntime(t, Config{})
	var destroyed []any
	typ := &GhostType{Name: "file", Destroy: func(p any) { destroyed = append(destroyed, p) }}

	keep := c.NewGhost(typ, "kept")
	rt.Save(keep)

	tmp := rt.NewContext()
	tmp.NewGhost(typ, "dropped")
	tmp.Free()

	rt.GC()
	rt.GC()
	if len(destroyed) != 1 || destroyed[0] != "dropped" {
		t.Errorf("destroyed = %v, want [dropped]", destroyed)
	}
	if g := rt.Ghost(keep); g.Ptr != "kept" || g.Type != typ {
		t.Errorf("saved ghost = %+v", g)
	}
}

func TestCollectDuringExecution(t *testing.T) {
	rt, c, ns := newTestRuntime(t, Config{PoolBlockSize: 8, GCInterval: 4})

	// i = 0; s = ""; while (i < 100) { s = s ~ "x"; i = i + 1 }; s
	a := newAsm(t, c)
	i, s := a.sym("i"), a.sym("s")
	a.op(OpPushZero).arg(OpSetSym, i).op(OpPOP)
	a.str("").arg(OpSetSym, s).op(OpPOP)
	top, end := a.b.NewLabel(), a.b.NewLabel()
	a.b.Mark(top)
	a.arg(OpLocal, i).num(100).op(OpLT)
	a.b.EmitJump(OpJifNotPop, end)
	a.arg(OpLocal, s).str("x").op(OpCat).arg(OpSetSym, s).op(OpPOP)
	a.arg(OpLocal, i).op(OpPushOne, OpPlus).arg(OpSetSym, i).op(OpPOP)
	a.b.EmitJump(OpJmpLoop, top)
	a.b.Mark(end)
	a.arg(OpLocal, s).op(OpReturn)

	v := mustCall(t, c, a.fn("grow.nas", ns))
	got := rt.GoString(v)
	if len(got) != 100 {
		t.Errorf("len = %d, want 100", len(got))
	}
	st := rt.Stats()
	if st.Collections == 0 {
		t.Error("no collection ran")
	}
	if live := st.Pool(KindString).Live; live > 40 {
		t.Errorf("%d strings live; intermediate results were not reclaimed", live)
	}
}

func TestOutOfMemoryInScript(t *testing.T) {
	_, c, ns := newTestRuntime(t, Config{PoolBlockSize: 16, MaxPoolBlocks: 1})
	a := newAsm(t, c)
	top := a.b.NewLabel()
	a.b.Mark(top)
	a.arg(OpNewVec, 0)
	a.b.EmitJump(OpJmpLoop, top)
	re := callErr(t, c, a.fn("oom.nas", ns))
	if re.Message != "out of memory" {
		t.Errorf("message = %q", re.Message)
	}
	if len(re.Trace) != 1 || re.Trace[0].File != "oom.nas" {
		t.Errorf("trace = %v", re.Trace)
	}

	// The context is usable again once the stack is unwound.
	b := newAsm(t, c)
	b.arg(OpNewVec, 0).op(OpReturn)
	mustCall(t, c, b.fn("after.nas", ns))
}

func TestOutOfMemoryOutsideCallPanics(t *testing.T) {
	_, c, _ := newTestRuntime(t, Config{PoolBlockSize: 16, MaxPoolBlocks: 1})
	defer func() {
		r := recover()
		re, ok := r.(*RuntimeError)
		if !ok || re.Message != "out of memory" {
			t.Errorf("recovered %v, want out of memory", r)
		}
	}()
	for i := 0; i < 17; i++ {
		c.NewVector()
	}
}

func TestPoolGrowsAfterSweep(t *testing.T) {
	rt, c, _ := newTestRuntime(t, Config{PoolBlockSize: 8})
	for i := 0; i < 40; i++ {
		c.NewVector()
	}
	ps := rt.Stats().Pool(KindVector)
	if ps.Blocks < 5 || ps.Live != 40 {
		t.Errorf("vector pool = %+v, want at least 5 blocks and 40 live", ps)
	}
}

func TestStatsIdentifyRuntime(t *testing.T) {
	a := NewRuntime(Config{})
	b := NewRuntime(Config{})
	if a.ID == b.ID {
		t.Fatal("two runtimes share an ID")
	}
	if st := a.Stats(); st.Runtime != a.ID {
		t.Errorf("Stats().Runtime = %s, want %s", st.Runtime, a.ID)
	}
	if st := b.GC(); st.Runtime != b.ID {
		t.Errorf("GC().Runtime = %s, want %s", st.Runtime, b.ID)
	}
}
