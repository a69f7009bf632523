package vm

// ---------------------------------------------------------------------------
// pool: fixed-size slot arena for one object kind
// ---------------------------------------------------------------------------

type slot[T any] struct {
	hdr header
	obj T
}

// pool hands out slots from fixed-size blocks. Blocks are never moved or
// released, so pointers into a live slot stay valid for the object's life.
type pool[T any] struct {
	kind      ObjKind
	blockSize int
	blocks    [][]slot[T]
	free      []uint32 // stack of free slot indices
	live      int

	// release drops auxiliary storage held by an object being reclaimed.
	release func(*T)
}

func newPool[T any](kind ObjKind, blockSize int, release func(*T)) *pool[T] {
	if blockSize <= 0 {
		blockSize = 256
	}
	return &pool[T]{kind: kind, blockSize: blockSize, release: release}
}

// grow adds one block and pushes its slots onto the free list. Slots are
// pushed in reverse so allocation walks the block upward.
func (p *pool[T]) grow() {
	base := uint32(len(p.blocks) * p.blockSize)
	p.blocks = append(p.blocks, make([]slot[T], p.blockSize))
	for i := p.blockSize - 1; i >= 0; i-- {
		p.free = append(p.free, base+uint32(i))
	}
}

func (p *pool[T]) capacity() int {
	return len(p.blocks) * p.blockSize
}

func (p *pool[T]) at(i uint32) *slot[T] {
	return &p.blocks[int(i)/p.blockSize][int(i)%p.blockSize]
}

// alloc pops a free slot. The boolean is false when the free list is empty.
func (p *pool[T]) alloc() (uint32, *T, bool) {
	n := len(p.free)
	if n == 0 {
		return 0, nil, false
	}
	i := p.free[n-1]
	p.free = p.free[:n-1]
	s := p.at(i)
	s.hdr = header{kind: p.kind}
	p.live++
	return i, &s.obj, true
}

func (p *pool[T]) get(i uint32) *T {
	s := p.at(i)
	if s.hdr.kind != p.kind {
		panic("vm: dangling " + p.kind.String() + " reference")
	}
	return &s.obj
}

func (p *pool[T]) header(i uint32) *header {
	return &p.at(i).hdr
}

// sweep frees every in-use slot whose mark is clear and clears the mark on
// survivors. Returns the number of slots freed.
func (p *pool[T]) sweep() int {
	freed := 0
	for b := range p.blocks {
		blk := p.blocks[b]
		for j := range blk {
			s := &blk[j]
			if s.hdr.kind == KindNone {
				continue
			}
			if s.hdr.mark != 0 {
				s.hdr.mark = 0
				continue
			}
			if p.release != nil {
				p.release(&s.obj)
			}
			var zero T
			s.obj = zero
			s.hdr = header{}
			p.free = append(p.free, uint32(b*p.blockSize+j))
			freed++
		}
	}
	p.live -= freed
	return freed
}

// PoolStats describes the occupancy of one pool.
type PoolStats struct {
	Kind     ObjKind
	Blocks   int
	Capacity int
	Live     int
}

func (p *pool[T]) stats() PoolStats {
	return PoolStats{
		Kind:     p.kind,
		Blocks:   len(p.blocks),
		Capacity: p.capacity(),
		Live:     p.live,
	}
}
