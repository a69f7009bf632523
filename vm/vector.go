package vm

// ---------------------------------------------------------------------------
// Vector: growable array with O(1) amortised push/pop at both ends
// ---------------------------------------------------------------------------

const minVecCap = 4

// Vector stores its elements in buf[start:end]. The window slides inside
// the backing slice so that removing from the front does not shift.
type Vector struct {
	buf        []Value
	start, end int
}

func releaseVector(v *Vector) {
	v.buf = nil
	v.start, v.end = 0, 0
}

// Len returns the number of elements.
func (v *Vector) Len() int { return v.end - v.start }

// Cap returns the size of the backing array.
func (v *Vector) Cap() int { return len(v.buf) }

func (v *Vector) index(i int) (int, bool) {
	n := v.Len()
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, false
	}
	return v.start + i, true
}

// Get returns element i. Negative indices count from the end.
func (v *Vector) Get(i int) (Value, bool) {
	j, ok := v.index(i)
	if !ok {
		return Nil, false
	}
	return v.buf[j], true
}

// Set overwrites element i. Negative indices count from the end.
func (v *Vector) Set(i int, val Value) bool {
	j, ok := v.index(i)
	if !ok {
		return false
	}
	v.buf[j] = val
	return true
}

// Values returns a copy of the elements.
func (v *Vector) Values() []Value {
	out := make([]Value, v.Len())
	copy(out, v.buf[v.start:v.end])
	return out
}

// assign replaces the contents with a copy of vals.
func (v *Vector) assign(vals []Value) {
	n := len(vals)
	if n == 0 {
		v.buf, v.start, v.end = nil, 0, 0
		return
	}
	v.buf = make([]Value, max(minVecCap, n))
	copy(v.buf, vals)
	v.start, v.end = 0, n
}

// realloc moves the window into a fresh backing array of size c with head
// free slots in front.
func (v *Vector) realloc(c, head int) {
	n := v.Len()
	nb := make([]Value, c)
	copy(nb[head:], v.buf[v.start:v.end])
	v.buf = nb
	v.start = head
	v.end = head + n
}

// Append pushes val at the end.
func (v *Vector) Append(val Value) {
	if v.end == len(v.buf) {
		n := v.Len()
		if v.start > len(v.buf)/4 {
			// Plenty of room at the front: slide instead of growing.
			copy(v.buf, v.buf[v.start:v.end])
			clearValues(v.buf[n:v.end])
			v.start, v.end = 0, n
		} else {
			v.realloc(growCap(len(v.buf)), 0)
		}
	}
	v.buf[v.end] = val
	v.end++
}

// Unshift pushes val at the front.
func (v *Vector) Unshift(val Value) {
	if v.start == 0 {
		c := growCap(len(v.buf))
		v.realloc(c, c-v.Len()-(c-v.Len())/2)
	}
	v.start--
	v.buf[v.start] = val
}

// Pop removes and returns the last element.
func (v *Vector) Pop() (Value, bool) {
	if v.Len() == 0 {
		return Nil, false
	}
	v.end--
	val := v.buf[v.end]
	v.buf[v.end] = Nil
	v.maybeShrink()
	return val, true
}

// Shift removes and returns the first element.
func (v *Vector) Shift() (Value, bool) {
	if v.Len() == 0 {
		return Nil, false
	}
	val := v.buf[v.start]
	v.buf[v.start] = Nil
	v.start++
	v.maybeShrink()
	return val, true
}

// Resize sets the length to n, padding with nil or truncating. n is not
// bounded here; script-facing callers check Config.MaxVectorLen.
func (v *Vector) Resize(n int) {
	if n < 0 {
		n = 0
	}
	cur := v.Len()
	switch {
	case n < cur:
		clearValues(v.buf[v.start+n : v.end])
		v.end = v.start + n
		v.maybeShrink()
	case n > cur:
		if v.start+n > len(v.buf) {
			v.realloc(n+n/2, 0)
		}
		for i := v.end; i < v.start+n; i++ {
			v.buf[i] = Nil
		}
		v.end = v.start + n
	}
}

// maybeShrink releases storage when the vector empties and halves it when
// the window falls below a quarter of it.
func (v *Vector) maybeShrink() {
	n := v.Len()
	if n == 0 {
		v.buf = nil
		v.start, v.end = 0, 0
		return
	}
	if len(v.buf) > minVecCap && n < len(v.buf)/4 {
		v.realloc(max(minVecCap, n+n/2), 0)
	}
}

func growCap(c int) int {
	if c < minVecCap {
		return minVecCap
	}
	return c + c/2
}

func clearValues(s []Value) {
	for i := range s {
		s[i] = Nil
	}
}
