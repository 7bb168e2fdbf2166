//go:build !linux

package proctitle

import (
	"context"
	"errors"
)

var errUnsupportedOS = errors.New("changing the title of another process is only supported on linux")

// PtraceTracer is only implemented on linux, on other systems every method
// fails.
type PtraceTracer struct {
	ProcRoot string
}

// NewTracer returns a PtraceTracer.
func NewTracer(procRoot string) *PtraceTracer {
	return &PtraceTracer{ProcRoot: procRoot}
}

func (t *PtraceTracer) Close() error { return nil }

func (t *PtraceTracer) Attach(pid int) error { return errUnsupportedOS }

func (t *PtraceTracer) WaitStop(ctx context.Context, pid int) error { return errUnsupportedOS }

func (t *PtraceTracer) PeekWord(pid int, addr uintptr, word []byte) error { return errUnsupportedOS }

func (t *PtraceTracer) PokeWord(pid int, addr uintptr, word []byte) error { return errUnsupportedOS }

func (t *PtraceTracer) Resume(pid int) error { return errUnsupportedOS }
