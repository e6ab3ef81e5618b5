//go:build windows

package memexec

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// mmapRW reserves and commits a read-write region via VirtualAlloc — the
// Windows counterpart of the unix build's anonymous mmap.
func mmapRW(size int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

// mprotectRX flips the page to read-execute via VirtualProtect.
func mprotectRX(mem []byte) error {
	var old uint32
	return windows.VirtualProtect(addrOf(mem), uintptr(len(mem)), windows.PAGE_EXECUTE_READ, &old)
}

func munmap(mem []byte) error {
	return windows.VirtualFree(addrOf(mem), 0, windows.MEM_RELEASE)
}

// flushICache invalidates the instruction cache for the published range —
// required on Windows for correctness even on x86, since the OS does not
// guarantee self-modifying-code coherency across the write-then-execute
// transition the way the hardware coherency protocol alone would.
func flushICache(mem []byte) {
	handle := windows.CurrentProcess()
	_ = windows.FlushInstructionCache(handle, unsafe.Pointer(&mem[0]), uintptr(len(mem)))
}
