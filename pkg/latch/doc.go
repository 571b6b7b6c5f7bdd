/*
Package latch provides the quiescence gate used for graceful shutdown.

A Latch tracks in-flight operations. While open it admits any number of
acquisitions; CloseAndWait flips it permanently closed and blocks until the
pending count drains to zero. Checkout paths acquire the latch before doing
any work and release exactly once on completion, so shutdown can wait for
every admitted operation without pausing the rest of the system.

# Usage

	gate := latch.New()

	// operation path
	if !gate.Acquire() {
		return types.ErrManagerClosed
	}
	defer gate.Release()
	// ... do work ...

	// shutdown path
	gate.CloseAndWait() // returns once all admitted work released

Once closed the latch never reopens; Acquire fails fast instead of
blocking.
*/
package latch
