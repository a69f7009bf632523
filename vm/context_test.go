package vm

import (
	"errors"
	"testing"
	"time"
)

func TestContinueAfterNativeError(t *testing.T) {
	_, c, ns := newTestRuntime(t, Config{})
	RegisterNative(c, ns, "fail", func(c *Context, _ Value, _ []Value) (Value, error) {
		return Nil, errHost
	})

	// fail() == nil
	a := newAsm(t, c)
	a.arg(OpLocal, a.sym("fail")).arg(OpFCall, 0).op(OpPushNil, OpEQ, OpReturn)
	callErr(t, c, a.fn("resume.nas", ns))

	if !c.Suspended() || c.Err() == nil {
		t.Fatal("context should be suspended with an error")
	}
	v, err := c.Continue()
	if err != nil {
		t.Fatalf("Continue: %v", err)
	}
	wantNum(t, v, 1)

	if _, err := c.Continue(); !errors.Is(err, ErrNotContinuable) {
		t.Errorf("second Continue: err = %v, want ErrNotContinuable", err)
	}
}

func TestContinueRequiresSuspension(t *testing.T) {
	_, c, _ := newTestRuntime(t, Config{})
	if _, err := c.Continue(); !errors.Is(err, ErrNotContinuable) {
		t.Errorf("err = %v", err)
	}
}

// callbackNative runs fn in a sub-context and rethrows its failure.
func callbackNative(fn *Value) NativeFunc {
	return func(c *Context, _ Value, _ []Value) (Value, error) {
		sub := c.SubContext()
		res, err := sub.Call(*fn, nil, Nil, Nil)
		if err != nil {
			c.Rethrow(sub)
		}
		c.Keep(res)
		sub.Free()
		return res, nil
	}
}

func TestRethrowAndContinueChild(t *testing.T) {
	rt, c, ns := newTestRuntime(t, Config{})
	RegisterNative(c, ns, "boom", func(c *Context, _ Value, _ []Value) (Value, error) {
		return Nil, errHost
	})

	// inner: boom(); 42
	in := newAsm(t, c)
	in.code.Lines = []LineEntry{{PC: 0, Line: 3}}
	in.arg(OpLocal, in.sym("boom")).arg(OpFCall, 0).op(OpPOP).num(42).op(OpReturn)
	inner := in.fn("inner.nas", ns)
	RegisterNative(c, ns, "callback", callbackNative(&inner))

	// outer: callback()
	out := newAsm(t, c)
	out.code.Lines = []LineEntry{{PC: 0, Line: 9}}
	out.arg(OpLocal, out.sym("callback")).arg(OpFCall, 0).op(OpReturn)
	outer := out.fn("outer.nas", ns)

	re := callErr(t, c, outer)
	if !errors.Is(re, errHost) {
		t.Error("rethrown error lost its cause")
	}
	want := []TraceFrame{{"inner.nas", 3}, {"outer.nas", 9}}
	if len(re.Trace) != len(want) {
		t.Fatalf("trace = %v, want %v", re.Trace, want)
	}
	for i := range want {
		if re.Trace[i] != want[i] {
			t.Errorf("trace[%d] = %v, want %v", i, re.Trace[i], want[i])
		}
	}

	inUse := rt.Stats().Contexts
	v, err := c.Continue()
	if err != nil {
		t.Fatalf("Continue: %v", FormatTrace(err))
	}
	wantNum(t, v, 42)
	if got := rt.Stats().Contexts; got != inUse-1 {
		t.Errorf("contexts in use = %d, want %d after the child is released", got, inUse-1)
	}
}

func TestContinueAfterFatalChildPushesNil(t *testing.T) {
	_, c, ns := newTestRuntime(t, Config{})

	// inner: undefined symbol, not continuable
	in := newAsm(t, c)
	in.arg(OpLocal, in.sym("missing")).op(OpReturn)
	inner := in.fn("inner.nas", ns)
	RegisterNative(c, ns, "callback", callbackNative(&inner))

	out := newAsm(t, c)
	out.arg(OpLocal, out.sym("callback")).arg(OpFCall, 0).op(OpPushNil, OpEQ, OpReturn)
	re := callErr(t, c, out.fn("outer.nas", ns))
	if re.Message != "undefined symbol: missing" {
		t.Errorf("message = %q", re.Message)
	}
	v, err := c.Continue()
	if err != nil {
		t.Fatalf("Continue: %v", err)
	}
	wantNum(t, v, 1)
}

func TestSubContextSuccess(t *testing.T) {
	rt, c, ns := newTestRuntime(t, Config{})
	in := newAsm(t, c)
	in.str("from child").op(OpReturn)
	inner := in.fn("inner.nas", ns)
	RegisterNative(c, ns, "callback", callbackNative(&inner))

	out := newAsm(t, c)
	out.arg(OpLocal, out.sym("callback")).arg(OpFCall, 0).str("!").op(OpCat, OpReturn)
	v := mustCall(t, c, out.fn("outer.nas", ns))
	if got := rt.GoString(v); got != "from child!" {
		t.Errorf("got %q", got)
	}
	if st := rt.Stats(); st.Contexts != 1 || st.Idle != 1 {
		t.Errorf("contexts = %d idle = %d, want 1 and 1", st.Contexts, st.Idle)
	}
}

func TestFreedContextIsReused(t *testing.T) {
	rt, c, _ := newTestRuntime(t, Config{})
	c.Free()
	if st := rt.Stats(); st.Contexts != 0 || st.Idle != 1 {
		t.Fatalf("contexts = %d idle = %d", st.Contexts, st.Idle)
	}
	if c2 := rt.NewContext(); c2 != c {
		t.Error("idle context was not reused")
	}
}

func TestBlockingReleasesLock(t *testing.T) {
	rt, c, ns := newTestRuntime(t, Config{})
	var other *Context
	timedOut := false
	RegisterNative(c, ns, "wait", func(c *Context, _ Value, _ []Value) (Value, error) {
		c.Blocking(func() {
			done := make(chan *Context)
			go func() { done <- rt.NewContext() }()
			select {
			case other = <-done:
			case <-time.After(5 * time.Second):
				timedOut = true
			}
		})
		return FromInt(1), nil
	})

	a := newAsm(t, c)
	a.arg(OpLocal, a.sym("wait")).arg(OpFCall, 0).op(OpReturn)
	wantNum(t, mustCall(t, c, a.fn("block.nas", ns)), 1)
	if timedOut || other == nil {
		t.Fatal("another goroutine could not take the lock during Blocking")
	}
	other.Free()
}

func TestConcurrentContexts(t *testing.T) {
	rt, c, ns := newTestRuntime(t, Config{})

	// n = 0; while (n < 200) n = n + 1; n
	a := newAsm(t, c)
	n := a.sym("n")
	a.op(OpPushZero).arg(OpSetSym, n).op(OpPOP)
	top, end := a.b.NewLabel(), a.b.NewLabel()
	a.b.Mark(top)
	a.arg(OpLocal, n).num(200).op(OpLT)
	a.b.EmitJump(OpJifNotPop, end)
	a.arg(OpLocal, n).op(OpPushOne, OpPlus).arg(OpSetSym, n).op(OpPOP)
	a.b.EmitJump(OpJmpLoop, top)
	a.b.Mark(end)
	a.arg(OpLocal, n).op(OpReturn)
	fn := a.fn("count.nas", ns)

	const workers = 8
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			wc := rt.NewContext()
			defer wc.Free()
			v, err := wc.Call(fn, nil, Nil, Nil)
			if err == nil && v.Num() != 200 {
				err = Errorf("got %v", v.Num())
			}
			errs <- err
		}()
	}
	for i := 0; i < workers; i++ {
		if err := <-errs; err != nil {
			t.Error(err)
		}
	}
}

func TestSaveFromNative(t *testing.T) {
	rt, c, ns := newTestRuntime(t, Config{})
	var inside Stats
	RegisterNative(c, ns, "pin", func(c *Context, _ Value, args []Value) (Value, error) {
		c.Runtime().Save(args[0])
		c.GC()
		inside = c.Stats()
		return Nil, nil
	})

	// pin([])
	a := newAsm(t, c)
	a.arg(OpLocal, a.sym("pin")).arg(OpNewVec, 0).arg(OpFCall, 1).op(OpReturn)
	fn := a.fn("pin.nas", ns)

	done := make(chan error, 1)
	go func() {
		_, err := c.Call(fn, nil, Nil, Nil)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("call failed: %v", FormatTrace(err))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pinning from a native blocked on the runtime lock")
	}

	if inside.Runtime != rt.ID || inside.Collections != 1 {
		t.Errorf("stats inside the native = %+v", inside)
	}
	if inside.Pool(KindVector).Live != 1 {
		t.Errorf("argument vector did not survive a collection inside the native")
	}
	c.Free()
	st := rt.GC()
	if st.Saved != 3 {
		t.Errorf("Saved = %d, want 3", st.Saved)
	}
	if live := st.Pool(KindVector).Live; live != 1 {
		t.Errorf("live vectors = %d, want the pinned one", live)
	}
}
