package proctitle

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"syscall"
	"time"

	sys "golang.org/x/sys/unix"

	"github.com/go-delve/setproctitle/pkg/logflags"
)

const (
	waitPollInterval = 10 * time.Millisecond
	// The target will sometimes enter stopped state shortly after a detach,
	// it is checked again after this delay.
	detachSettleDelay = 50 * time.Millisecond
	// How long Resume waits for the attach stop of a target that was not
	// stopped yet when it tried to detach.
	detachStopTimeout = time.Second
)

// PtraceTracer implements Tracer with ptrace(2).
//
// ptrace(2) expects every request after PTRACE_ATTACH to come from the
// thread that attached, so all requests, waits included, are executed by a
// single goroutine locked to its OS thread.
type PtraceTracer struct {
	// ProcRoot is used to check the state of the target, DefaultProcRoot if
	// empty.
	ProcRoot string

	ptraceChan     chan func()
	ptraceDoneChan chan interface{}

	// stop signals, other than SIGSTOP, observed while waiting for the
	// attach stop. They are delivered to the target when it is resumed.
	pendingSig map[int]sys.Signal
}

// NewTracer returns a PtraceTracer. Close must be called to release the
// goroutine serving ptrace requests.
func NewTracer(procRoot string) *PtraceTracer {
	t := &PtraceTracer{
		ProcRoot:       procRoot,
		ptraceChan:     make(chan func()),
		ptraceDoneChan: make(chan interface{}),
		pendingSig:     make(map[int]sys.Signal),
	}
	go t.handlePtraceFuncs()
	return t
}

func (t *PtraceTracer) handlePtraceFuncs() {
	runtime.LockOSThread()

	for fn := range t.ptraceChan {
		fn()
		t.ptraceDoneChan <- nil
	}
}

func (t *PtraceTracer) execPtraceFunc(fn func()) {
	t.ptraceChan <- fn
	<-t.ptraceDoneChan
}

// Close stops the goroutine serving ptrace requests. Processes still
// attached are detached by the kernel when this process exits.
func (t *PtraceTracer) Close() error {
	close(t.ptraceChan)
	return nil
}

// Attach executes PTRACE_ATTACH.
func (t *PtraceTracer) Attach(pid int) (err error) {
	t.execPtraceFunc(func() { err = sys.PtraceAttach(pid) })
	logflags.PtraceLogger().WithField("pid", pid).Debugf("PTRACE_ATTACH: %v", err)
	return err
}

// WaitStop polls wait4 until pid reports a stop.
//
// Calling wait4 without WNOHANG on a thread group leader that is a zombie
// hangs forever, so the state of the target is checked between polls.
func (t *PtraceTracer) WaitStop(ctx context.Context, pid int) error {
	log := logflags.PtraceLogger().WithField("pid", pid)
	for {
		var (
			ws   sys.WaitStatus
			wpid int
			err  error
		)
		t.execPtraceFunc(func() { wpid, err = sys.Wait4(pid, &ws, sys.WNOHANG|sys.WALL, nil) })
		if err != nil {
			return fmt.Errorf("wait4: %v", err)
		}
		if wpid == pid {
			switch {
			case ws.Stopped():
				sig := ws.StopSignal()
				log.Debugf("stopped with %v", sig)
				if sig != sys.SIGSTOP {
					t.pendingSig[pid] = sig
				}
				return nil
			case ws.Exited():
				return fmt.Errorf("process exited with status %d", ws.ExitStatus())
			case ws.Signaled():
				return fmt.Errorf("process killed by %v", ws.Signal())
			}
		}
		if st, err := ReadStat(t.ProcRoot, pid); err == nil && st.State == StatusZombie {
			return errors.New("process is a zombie")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitPollInterval):
		}
	}
}

// PeekWord executes PTRACE_PEEKDATA.
func (t *PtraceTracer) PeekWord(pid int, addr uintptr, word []byte) (err error) {
	var n int
	t.execPtraceFunc(func() { n, err = sys.PtracePeekData(pid, addr, word) })
	if err == nil && n != len(word) {
		err = fmt.Errorf("short read: %d of %d bytes", n, len(word))
	}
	if logflags.Ptrace() {
		logflags.PtraceLogger().WithField("pid", pid).Debugf("PTRACE_PEEKDATA %#x = %x: %v", addr, word, err)
	}
	return err
}

// PokeWord executes PTRACE_POKEDATA.
func (t *PtraceTracer) PokeWord(pid int, addr uintptr, word []byte) (err error) {
	var n int
	t.execPtraceFunc(func() { n, err = sys.PtracePokeData(pid, addr, word) })
	if err == nil && n != len(word) {
		err = fmt.Errorf("short write: %d of %d bytes", n, len(word))
	}
	if logflags.Ptrace() {
		logflags.PtraceLogger().WithField("pid", pid).Debugf("PTRACE_POKEDATA %#x = %x: %v", addr, word, err)
	}
	return err
}

// Resume detaches from pid, delivering any signal that stopped it instead
// of the attach SIGSTOP.
func (t *PtraceTracer) Resume(pid int) (err error) {
	log := logflags.PtraceLogger().WithField("pid", pid)
	sig := t.pendingSig[pid]
	delete(t.pendingSig, pid)
	t.execPtraceFunc(func() { err = ptraceDetach(pid, int(sig)) })
	log.Debugf("PTRACE_DETACH sig=%d: %v", sig, err)
	if errors.Is(err, sys.ESRCH) {
		// Not in a ptrace stop: the attach SIGSTOP is still queued and would
		// stop the target once the kernel detaches it.
		return t.resumeBeforeStop(pid)
	}
	if err != nil {
		return err
	}
	// For some reason the process will sometimes enter stopped state after
	// a detach, this doesn't happen immediately either.
	time.Sleep(detachSettleDelay)
	if st, err := ReadStat(t.ProcRoot, pid); err == nil && st.State == StatusStopped {
		log.Debug("stopped after detach, sending SIGCONT")
		_ = sys.Kill(pid, sys.SIGCONT)
	}
	return nil
}

// resumeBeforeStop resumes a target that was attached but whose attach stop
// has not been reaped. The stop is waited for and the target detached, if it
// does not come the queued SIGSTOP is discarded by sending SIGCONT.
func (t *PtraceTracer) resumeBeforeStop(pid int) error {
	log := logflags.PtraceLogger().WithField("pid", pid)
	ctx, cancel := context.WithTimeout(context.Background(), detachStopTimeout)
	werr := t.WaitStop(ctx, pid)
	cancel()
	if werr == nil {
		sig := t.pendingSig[pid]
		delete(t.pendingSig, pid)
		var err error
		t.execPtraceFunc(func() { err = ptraceDetach(pid, int(sig)) })
		log.Debugf("PTRACE_DETACH sig=%d after late stop: %v", sig, err)
		return err
	}
	log.Debugf("no stop after %v (%v), sending SIGCONT", detachStopTimeout, werr)
	if err := sys.Kill(pid, sys.SIGCONT); err != nil {
		return fmt.Errorf("detach: target not stopped (%v), SIGCONT: %v", werr, err)
	}
	return nil
}

// ptraceDetach calls ptrace(PTRACE_DETACH).
func ptraceDetach(pid, sig int) error {
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_DETACH, uintptr(pid), 1, uintptr(sig), 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}
