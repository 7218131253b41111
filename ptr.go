package art

import "unsafe"

// unsafePointerOf returns p's own address as an unsafe.Pointer, for filling
// in a node's self field at construction time. Every concrete node type
// embeds header as its first field, so self lets header methods cast back
// to the concrete type without relying on any particular struct layout
// beyond "header comes first" (guaranteed by Go for the first field).
func unsafePointerOf[T any](p *T) unsafe.Pointer { return unsafe.Pointer(p) }
