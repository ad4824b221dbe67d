package linear

// Null is the Memory bound to a Call before any real memory is available
// (e.g. a callable with no memory-touching parameters). Every operation
// traps, so any codec that mistakenly tries to touch memory fails loudly
// rather than silently corrupting an unrelated buffer.
var Null Memory = nullMemory{}

type nullMemory struct{}

func (nullMemory) raw() []byte { return nil }
func (nullMemory) Size() uint32 { return 0 }

func (nullMemory) Alloc(uint32, uint32) (Range, error) {
	return Range{}, trap("Alloc", "no memory is bound to this call")
}

func (nullMemory) Realloc(Range, uint32) (Range, error) {
	return Range{}, trap("Realloc", "no memory is bound to this call")
}

func (nullMemory) Preallocated(ptr, size uint32) Range {
	return Range{Mem: nullMemory{}, Ptr: ptr, Size: size}
}

func (nullMemory) Readonly(ptr, size uint32) ReadonlyRange {
	return ReadonlyRange{Mem: nullMemory{}, Ptr: ptr, Size: size}
}

func (nullMemory) Free(Range) error {
	return trap("Free", "no memory is bound to this call")
}
