package jit

import "unsafe"

// funcPC returns the entry address of a Go function value. It relies on
// the documented layout of a func value (a pointer to a structure whose
// first word is the code pointer) rather than assembly-level linkname
// tricks, matching how this package's compiled call sites and callback
// dispatch need each other's addresses at runtime.
func funcPC(f func()) uintptr {
	return **(**uintptr)(unsafe.Pointer(&f))
}
