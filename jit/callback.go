package jit

import (
	"sync"
	"unsafe"

	"github.com/exprjit/exprjit/token"
)

// callbackTable maps the small integer id a compiled function embeds as an
// immediate into the registered *token.Func it names. User callbacks are
// plain Go closures, not C-ABI function pointers, so JIT-emitted code never
// calls one directly (spec.md §4.6 step 3, "load the function address as
// an immediate and call it", is satisfied by always calling the single
// fixed dispatchTrampoline entry point below, which re-dispatches to the
// real closure by id — the same shape the spec's §1 scope note uses for
// the out-of-scope C-callable shim layer, applied here to the one
// in-scope boundary that genuinely needs a foreign-call bridge).
var (
	callbackMu    sync.Mutex
	callbackTable []*token.Func
)

// registerCallback records fn and returns the id its compiled call sites
// embed. Each FUNC/operator call site of every Compile registers its own
// entry, and entries are never removed, so the process-wide table grows
// with every compilation that contains a callback call.
func registerCallback(fn *token.Func) int32 {
	callbackMu.Lock()
	defer callbackMu.Unlock()
	id := int32(len(callbackTable))
	callbackTable = append(callbackTable, fn)
	return id
}

// dispatchCallback is invoked by dispatchTrampoline (dispatch_amd64.s) with
// the id embedded in the compiled call site and a pointer to its
// float64-marshaled arguments (already converted up from the register
// stack's float32 values per spec.md §4.6's function-call marshaling).
// Because the trampoline enters by a plain CALL from within the same
// goroutine's stack — not from a foreign thread — the Go scheduler's g and
// stack bookkeeping are already valid here, so calling back into ordinary
// Go code is safe without any additional runtime bridging.
func dispatchCallback(id int32, argsPtr *float64) float64 {
	callbackMu.Lock()
	fn := callbackTable[id]
	callbackMu.Unlock()
	args := unsafe.Slice(argsPtr, fn.Arity)
	return fn.Call(args)
}

// dispatchTrampoline is implemented in dispatch_amd64.s. JIT-emitted code
// calls it with the callback id in R10 and a pointer to the marshaled
// float64 argument array in R11 (a private convention, not a platform
// ABI — R10 is chosen because the SysV x86-64 ABI already reserves it as
// the static-chain-pointer register for nested/closure calls, so no
// JIT-emitted code ever needs it for anything else). The result comes
// back in XMM0.
func dispatchTrampoline()

// dispatchTrampolineAddr returns the trampoline's absolute entry address,
// the "function address" the compiler loads as an immediate before a FUNC
// call site (spec.md §4.6 step 3).
func dispatchTrampolineAddr() uintptr {
	return funcPC(dispatchTrampoline)
}
