package jit

// invokeCompiled calls the compiled expression at entry (a page published
// by memexec.Broker.Publish) with no arguments and returns its float32
// result. Implemented in invoke_amd64.s: entry already follows the SysV
// calling convention the JIT back end emits for (the final result sits at
// logical depth 0, which is xmm0, the float-return register, when END's
// epilogue reaches `ret`), so invoking it is a single indirect CALL.
func invokeCompiled(entry uintptr) float32
