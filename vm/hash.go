package vm

// ---------------------------------------------------------------------------
// Hash: chained hash table keyed by Value
// ---------------------------------------------------------------------------

const minHashBuckets = 4

type hashNode struct {
	key, val Value
	hash     uint32
	next     int32 // index of next node in the bucket chain, -1 terminates
}

// Hash is a chained hash table with a power-of-two bucket array. Nodes live
// densely in a slice; deleting moves the last node into the hole.
type Hash struct {
	rt      *Runtime
	buckets []int32
	nodes   []hashNode
}

func releaseHash(h *Hash) {
	h.buckets = nil
	h.nodes = nil
	h.rt = nil
}

// Len returns the number of entries.
func (h *Hash) Len() int { return len(h.nodes) }

func (h *Hash) bucket(hc uint32) int {
	return int(hc & uint32(len(h.buckets)-1))
}

// find returns the node index for key, or -1. Keys are first compared by
// identity, which is all interned symbol lookups need; value equality is
// the fallback.
func (h *Hash) find(key Value, hc uint32) int {
	if len(h.buckets) == 0 {
		return -1
	}
	for i := h.buckets[h.bucket(hc)]; i >= 0; i = h.nodes[i].next {
		n := &h.nodes[i]
		if n.key == key {
			return int(i)
		}
	}
	for i := h.buckets[h.bucket(hc)]; i >= 0; i = h.nodes[i].next {
		n := &h.nodes[i]
		if n.hash == hc && h.rt.Equal(n.key, key) {
			return int(i)
		}
	}
	return -1
}

// Get looks up key.
func (h *Hash) Get(key Value) (Value, bool) {
	i := h.find(key, h.rt.hashOf(key))
	if i < 0 {
		return Nil, false
	}
	return h.nodes[i].val, true
}

// Has reports whether key is present.
func (h *Hash) Has(key Value) bool {
	_, ok := h.Get(key)
	return ok
}

// Set inserts or replaces key.
func (h *Hash) Set(key, val Value) {
	hc := h.rt.hashOf(key)
	if i := h.find(key, hc); i >= 0 {
		h.nodes[i].val = val
		return
	}
	if len(h.nodes) >= len(h.buckets) {
		h.rehash(max(minHashBuckets, len(h.buckets)*2))
	}
	b := h.bucket(hc)
	h.nodes = append(h.nodes, hashNode{key: key, val: val, hash: hc, next: h.buckets[b]})
	h.buckets[b] = int32(len(h.nodes) - 1)
}

// TrySet replaces the value of an existing key and reports whether it did.
// Closure writes use it so that assignment reaches the enclosing scope that
// already owns the name.
func (h *Hash) TrySet(key, val Value) bool {
	i := h.find(key, h.rt.hashOf(key))
	if i < 0 {
		return false
	}
	h.nodes[i].val = val
	return true
}

// Delete removes key and reports whether it was present.
func (h *Hash) Delete(key Value) bool {
	hc := h.rt.hashOf(key)
	i := h.find(key, hc)
	if i < 0 {
		return false
	}
	h.unlink(int32(i))
	last := int32(len(h.nodes) - 1)
	if int32(i) != last {
		// Move the last node into the hole and repoint its predecessor.
		h.nodes[i] = h.nodes[last]
		b := h.bucket(h.nodes[i].hash)
		if h.buckets[b] == last {
			h.buckets[b] = int32(i)
		} else {
			for j := h.buckets[b]; j >= 0; j = h.nodes[j].next {
				if h.nodes[j].next == last {
					h.nodes[j].next = int32(i)
					break
				}
			}
		}
	}
	h.nodes[last] = hashNode{}
	h.nodes = h.nodes[:last]
	if len(h.buckets) > minHashBuckets && len(h.nodes) < len(h.buckets)/4 {
		h.rehash(len(h.buckets) / 2)
	}
	return true
}

func (h *Hash) unlink(i int32) {
	b := h.bucket(h.nodes[i].hash)
	if h.buckets[b] == i {
		h.buckets[b] = h.nodes[i].next
		return
	}
	for j := h.buckets[b]; j >= 0; j = h.nodes[j].next {
		if h.nodes[j].next == i {
			h.nodes[j].next = h.nodes[i].next
			return
		}
	}
}

// rehash rebuilds every chain for a table of n buckets (a power of two).
func (h *Hash) rehash(n int) {
	h.buckets = make([]int32, n)
	for i := range h.buckets {
		h.buckets[i] = -1
	}
	for i := range h.nodes {
		b := h.bucket(h.nodes[i].hash)
		h.nodes[i].next = h.buckets[b]
		h.buckets[b] = int32(i)
	}
}

// Keys returns the keys in insertion-independent table order.
func (h *Hash) Keys() []Value {
	out := make([]Value, len(h.nodes))
	for i := range h.nodes {
		out[i] = h.nodes[i].key
	}
	return out
}

// Each calls fn for every entry until fn returns false.
func (h *Hash) Each(fn func(key, val Value) bool) {
	for i := range h.nodes {
		if !fn(h.nodes[i].key, h.nodes[i].val) {
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Hashing and equality
// ---------------------------------------------------------------------------

// hashOf hashes a key consistently with Equal.
func (rt *Runtime) hashOf(v Value) uint32 {
	switch {
	case v.IsNum():
		return hashNum(v.Num())
	case v.IsString():
		return rt.Str(v).hashCode()
	default:
		return mix32(uint32(v) ^ uint32(uint64(v)>>32))
	}
}

// Equal is value equality: numbers compare numerically, strings byte-wise
// unless both parse as numbers, a number and a numeric string compare
// numerically, and everything else by identity.
func (rt *Runtime) Equal(a, b Value) bool {
	if a == b {
		return !a.IsNum() || a.Num() == a.Num()
	}
	an, bn := a.IsNum(), b.IsNum()
	if an && bn {
		return a.Num() == b.Num()
	}
	as, bs := a.IsString(), b.IsString()
	switch {
	case as && bs:
		sa, sb := rt.Str(a), rt.Str(b)
		if x, ok := sa.ToNum(); ok {
			if y, ok := sb.ToNum(); ok {
				return x == y
			}
		}
		return string(sa.data) == string(sb.data)
	case an && bs:
		y, ok := rt.Str(b).ToNum()
		return ok && a.Num() == y
	case as && bn:
		x, ok := rt.Str(a).ToNum()
		return ok && x == b.Num()
	}
	return false
}
