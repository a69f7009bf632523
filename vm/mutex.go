package vm

// ---------------------------------------------------------------------------
// Global interpreter lock
// ---------------------------------------------------------------------------

// acquire takes the runtime lock for this context chain and returns the
// matching release. Sub-contexts run under the lock their root already
// holds, so nested acquires are no-ops.
func (c *Context) acquire() func() {
	root := c.root()
	if root.locked {
		return func() {}
	}
	c.rt.mu.Lock()
	root.locked = true
	return func() {
		root.locked = false
		c.rt.mu.Unlock()
	}
}

// Acquire holds the runtime lock across a sequence of host operations on
// values, such as building a namespace or compiling. Call the returned
// function to release it.
func (c *Context) Acquire() (release func()) {
	return c.acquire()
}

// Blocking runs fn with the runtime lock released, letting other
// goroutines execute scripts meanwhile. fn must not touch script values.
func (c *Context) Blocking(fn func()) {
	root := c.root()
	if !root.locked {
		fn()
		return
	}
	root.locked = false
	c.rt.mu.Unlock()
	defer func() {
		c.rt.mu.Lock()
		root.locked = true
	}()
	fn()
}
