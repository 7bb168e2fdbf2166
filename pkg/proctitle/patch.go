package proctitle

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/go-delve/setproctitle/pkg/logflags"
)

// Attach takes control of pid and waits until it is stopped. If the wait is
// abandoned because ctx is done the target is resumed before returning.
func Attach(ctx context.Context, t Tracer, pid int) error {
	log := logflags.PtraceLogger().WithField("pid", pid)
	if err := t.Attach(pid); err != nil {
		log.Debugf("attach: %v", err)
		return newError(AttachFailed, pid, err)
	}
	log.Debug("attached, waiting for stop")
	if err := t.WaitStop(ctx, pid); err != nil {
		e := newError(AttachFailed, pid, err)
		if ctx.Err() != nil {
			if rerr := t.Resume(pid); rerr != nil {
				e.ResumeErr = rerr
			}
		}
		log.Debugf("wait for stop: %v", e)
		return e
	}
	log.Debug("stopped")
	return nil
}

// PatchOptions controls optional steps of Patch.
type PatchOptions struct {
	// Verify reads the window back after writing it and checks that the
	// region holds title.
	Verify bool
	// Dump logs a hex dump of the region before and after the patch.
	Dump bool
}

// Patch installs title, which must be exactly as long as the region of w,
// in the memory of the stopped process pid and resumes it.
//
// A ReadFailed error leaves the target stopped and unmodified; a
// PartialWriteError leaves it stopped with the first Error.Word words of
// the window written. In both cases resuming the target is up to the
// caller. A VerifyFailed error is returned after the target was resumed.
func Patch(t Tracer, pid int, w *Window, title []byte, opts PatchOptions) error {
	log := logflags.PatcherLogger().WithField("pid", pid)
	if len(title) != w.Region().Size() {
		return fmt.Errorf("title has %d bytes, region %v has %d", len(title), w.Region(), w.Region().Size())
	}

	log.Debugf("reading window %v", w)
	if err := readWindow(t, pid, w); err != nil {
		return err
	}
	if opts.Dump {
		log.Infof("region before:\n%s", hex.Dump(w.Bytes()))
	}

	if err := w.Splice(title); err != nil {
		return err
	}

	log.Debugf("writing %d words", w.Words())
	if err := writeWindow(t, pid, w); err != nil {
		return err
	}

	var verr error
	if opts.Verify {
		verr = verifyWindow(t, pid, w, title)
		if verr != nil {
			log.Errorf("verify: %v", verr)
		}
	}
	if opts.Dump {
		log.Infof("region after:\n%s", hex.Dump(w.Bytes()))
	}

	if err := t.Resume(pid); err != nil {
		log.Errorf("resume: %v", err)
		return &Error{Kind: ResumeFailed, Pid: pid, Err: err, detail: "new title installed"}
	}
	log.Debug("resumed")
	return verr
}

func readWindow(t Tracer, pid int, w *Window) error {
	n := w.Words()
	for i := 0; i < n; i++ {
		addr := w.Addr(i)
		if err := t.PeekWord(pid, addr, w.Word(i)); err != nil {
			return &Error{Kind: ReadFailed, Pid: pid, Word: i, Words: n, Addr: addr, Err: err}
		}
	}
	return nil
}

func writeWindow(t Tracer, pid int, w *Window) error {
	n := w.Words()
	for i := 0; i < n; i++ {
		addr := w.Addr(i)
		if err := t.PokeWord(pid, addr, w.Word(i)); err != nil {
			return &Error{Kind: PartialWriteError, Pid: pid, Word: i, Words: n, Addr: addr, Err: err}
		}
		w.written = i + 1
	}
	return nil
}

func verifyWindow(t Tracer, pid int, w *Window, title []byte) error {
	check, err := NewWindow(w.Region(), w.WordSize())
	if err != nil {
		return newError(VerifyFailed, pid, err)
	}
	if err := readWindow(t, pid, check); err != nil {
		return newError(VerifyFailed, pid, err)
	}
	if !bytes.Equal(check.Bytes(), title) {
		return newErrorf(VerifyFailed, pid, "read back %q", check.Bytes())
	}
	return nil
}
