package memexec

import "unsafe"

// addrOf returns the absolute address backing a byte slice obtained from
// mmap. Pages allocated through this package are never moved by the Go
// garbage collector (they are outside its heap), so holding this address
// across calls is safe.
func addrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
