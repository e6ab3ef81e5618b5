//go:build linux || darwin

package memexec

import (
	"golang.org/x/sys/unix"
)

// mmapRW maps an anonymous, page-aligned, read-write region — the
// teacher's MmapAnonFlags (MAP_PRIVATE|MAP_ANONYMOUS) issued through
// golang.org/x/sys/unix instead of a hand-dialed syscall number, since this
// package sits above a hosted Go runtime rather than bootstrapping one.
func mmapRW(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
}

// mprotectRX flips a previously RW-mapped page to read-execute (W^X: never
// both writable and executable at once).
func mprotectRX(mem []byte) error {
	return unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC)
}

func munmap(mem []byte) error {
	return unix.Munmap(mem)
}

// flushICache is a no-op on amd64/386 (x86 maintains instruction/data cache
// coherency in hardware); arm64 hosts would need an explicit
// __builtin___clear_cache-equivalent here, which this module does not
// target (spec.md §1 scope is x86/x86-64 only).
func flushICache(mem []byte) {}
