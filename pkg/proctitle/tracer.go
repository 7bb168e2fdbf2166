package proctitle

import "context"

// Tracer is the set of process control primitives needed to patch the
// memory of another process. Each call reports its own failure; none of
// them retries.
type Tracer interface {
	// Attach requests control of pid. The target may not be stopped yet
	// when Attach returns.
	Attach(pid int) error
	// WaitStop blocks until pid, already attached, is stopped, or until ctx
	// is done.
	WaitStop(ctx context.Context, pid int) error
	// PeekWord reads the word at addr into word. addr is word aligned and
	// len(word) is the word size.
	PeekWord(pid int, addr uintptr, word []byte) error
	// PokeWord writes word at addr.
	PokeWord(pid int, addr uintptr, word []byte) error
	// Resume releases control of pid and lets it run again.
	Resume(pid int) error
}
