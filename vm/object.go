package vm

// ---------------------------------------------------------------------------
// Heap object kinds
// ---------------------------------------------------------------------------

// ObjKind identifies the pool a reference belongs to.
type ObjKind uint8

const (
	KindNone ObjKind = iota
	KindString
	KindVector
	KindHash
	KindCode
	KindFunc
	KindNative
	KindGhost

	numKinds
)

var kindNames = [...]string{
	KindNone:   "none",
	KindString: "string",
	KindVector: "vector",
	KindHash:   "hash",
	KindCode:   "code",
	KindFunc:   "func",
	KindNative: "native",
	KindGhost:  "ghost",
}

func (k ObjKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// header is the per-slot GC header. The mark bit and the kind tag are
// packed together; kind is KindNone while the slot sits on the free list.
type header struct {
	mark uint8
	kind ObjKind
}

// ---------------------------------------------------------------------------
// Object payloads
// ---------------------------------------------------------------------------

// Function is a Code object bound to the namespace it was created in.
// Next links to the enclosing Function; the chain is the lexical closure.
type Function struct {
	Code      Value
	Namespace Value
	Next      Value
}

// NativeFunc is a host function callable from scripts. self is the method
// receiver (nil for plain calls). Returning an error raises a runtime error
// in the calling context.
type NativeFunc func(c *Context, self Value, args []Value) (Value, error)

// Native wraps a NativeFunc as a heap object.
type Native struct {
	Name string
	Fn   NativeFunc
}

// GhostType describes a family of host resources. Destroy is called exactly
// once, by the collector, when a ghost of this type becomes unreachable.
type GhostType struct {
	Name    string
	Destroy func(ptr any)
}

// Ghost is an opaque host resource. The collector never looks inside Ptr.
type Ghost struct {
	Type *GhostType
	Ptr  any
}
