// Package memexec is the executable-memory broker spec.md §4.7 describes:
// it owns every W^X page a compiled expression lives on, publishes a
// page's bytes as a callable function pointer, and reclaims the page when
// the caller is done with it.
//
// Grounded on std/runtime/runtime_linux_amd64.go's SysMmap (raw syscall 9,
// MmapAnonFlags = MAP_PRIVATE|MAP_ANONYMOUS) for the "map pages, copy code,
// flip permissions" shape — re-expressed through golang.org/x/sys/unix
// rather than hand-declared syscall numbers, since this package is not
// bootstrapping a runtime from scratch the way the teacher is (SPEC_FULL.md
// DOMAIN STACK).
package memexec

import (
	"sync"

	"github.com/pkg/errors"
)

// Page is a single executable-memory allocation. It is returned
// read-write until Publish copies the code in and flips it read-execute;
// after that, only Entry and Free are meaningful.
type Page struct {
	base []byte // the mapping; RW until published, RX afterwards
	size int
	broker *Broker
}

// Entry returns the absolute address of byte 0 of the page — the value a
// compiled function pointer is cast from (spec.md §4.7 "publishes as
// function pointer").
func (p *Page) Entry() uintptr {
	return addrOf(p.base)
}

// Size returns the page's total capacity in bytes.
func (p *Page) Size() int { return p.size }

// Broker is the process-wide singleton the spec's §5 concurrency model
// describes ("a process-wide singleton with an internal mutex guarding its
// free-list ... touched only by compile and drop; eval never takes the
// lock"). A *Broker is also an ordinary value a caller can construct and
// pass explicitly (SPEC_FULL.md's "never make it the only path" design
// note) — Default() is the ergonomic shared instance.
type Broker struct {
	mu      sync.Mutex
	pages   map[uintptr]*Page
}

var defaultBroker = &Broker{pages: make(map[uintptr]*Page)}

// Default returns the process-wide shared broker.
func Default() *Broker { return defaultBroker }

// New returns an independent broker with its own free-list and mutex, for
// callers that want page accounting isolated from Default().
func New() *Broker {
	return &Broker{pages: make(map[uintptr]*Page)}
}

// Allocate requests a page-aligned, read-write (not yet executable) region
// of at least size bytes (spec.md §4.7 "allocate(size) -> (base_ptr,
// capacity)").
func (b *Broker) Allocate(size int) (*Page, error) {
	if size <= 0 {
		return nil, errors.New("memexec: size must be positive")
	}
	mem, err := mmapRW(size)
	if err != nil {
		return nil, errors.Wrap(err, "memexec: mmap")
	}
	p := &Page{base: mem, size: len(mem), broker: b}

	b.mu.Lock()
	b.pages[addrOf(mem)] = p
	b.mu.Unlock()
	return p, nil
}

// Publish copies code into the page, flips it to read-execute, and
// (where the platform requires it) invalidates the instruction cache for
// the range (spec.md §4.7 "publish(base_ptr, used_bytes)"). usedBytes must
// not exceed the page's capacity.
func (b *Broker) Publish(p *Page, code []byte) error {
	if len(code) > p.size {
		return errors.New("memexec: code exceeds allocated page size")
	}
	copy(p.base, code)
	if err := mprotectRX(p.base); err != nil {
		return errors.Wrap(err, "memexec: mprotect RX")
	}
	flushICache(p.base)
	return nil
}

// Free reverses Allocate, unmapping the page. It is the caller's
// responsibility to guarantee no in-flight call into the page is still
// executing (spec.md §4.7 "compiled functions are weak references;
// dropping the parser ... releases the page").
func (b *Broker) Free(p *Page) error {
	b.mu.Lock()
	delete(b.pages, addrOf(p.base))
	b.mu.Unlock()
	return munmap(p.base)
}
