package proctitle

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-delve/setproctitle/pkg/logflags"
)

// Options configures SetTitle and ReadTitle.
type Options struct {
	// ProcRoot is where procfs is mounted, DefaultProcRoot if empty.
	ProcRoot string
	// Verify and Dump are passed to Patch.
	Verify bool
	Dump   bool
}

// Plan is everything decided about a title change before the target is
// touched.
type Plan struct {
	Pid    int
	Region Region
	// Title is the normalized title, exactly Region.Size() bytes.
	Title  []byte
	Window *Window
}

func (p *Plan) String() string {
	return fmt.Sprintf("pid %d region %v (%d bytes) window %v title %q", p.Pid, p.Region, p.Region.Size(), p.Window, p.Title)
}

// NewPlan locates the argument region of pid and normalizes title for it.
// It does not attach to the target.
func NewPlan(procRoot string, pid int, title []byte) (*Plan, error) {
	region, err := LocateRegion(procRoot, pid)
	if err != nil {
		return nil, err
	}
	normalized, err := NormalizeTitle(region.Size(), title)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			e.Pid = pid
		}
		return nil, err
	}
	w, err := NewWindow(region, WordSize)
	if err != nil {
		return nil, newError(FormatError, pid, err)
	}
	return &Plan{Pid: pid, Region: region, Title: normalized, Window: w}, nil
}

// SetTitle replaces the command line title of pid with title.
//
// Nothing is attached to the target until the title has been checked
// against the size of its argument region. If patching fails after the
// target was stopped a resume is attempted anyway; when that also fails
// the returned *Error has ResumeErr set.
func SetTitle(ctx context.Context, t Tracer, pid int, title []byte, opts Options) (*Plan, error) {
	log := logflags.PatcherLogger().WithField("pid", pid)
	plan, err := NewPlan(opts.ProcRoot, pid, title)
	if err != nil {
		return nil, err
	}
	log.Debugf("plan: %v", plan)

	if err := Attach(ctx, t, pid); err != nil {
		return plan, err
	}

	err = Patch(t, pid, plan.Window, plan.Title, PatchOptions{Verify: opts.Verify, Dump: opts.Dump})
	if err != nil && !IsKind(err, ResumeFailed) && !IsKind(err, VerifyFailed) {
		err = resumeAfterFailure(t, pid, err)
	}
	return plan, err
}

// ReadTitle returns the current content of the argument region of pid,
// read from its memory with the same window used by SetTitle.
func ReadTitle(ctx context.Context, t Tracer, pid int, opts Options) ([]byte, error) {
	region, err := LocateRegion(opts.ProcRoot, pid)
	if err != nil {
		return nil, err
	}
	w, err := NewWindow(region, WordSize)
	if err != nil {
		return nil, newError(FormatError, pid, err)
	}
	if err := Attach(ctx, t, pid); err != nil {
		return nil, err
	}
	if err := readWindow(t, pid, w); err != nil {
		return nil, resumeAfterFailure(t, pid, err)
	}
	if err := t.Resume(pid); err != nil {
		return nil, newError(ResumeFailed, pid, err)
	}
	return append([]byte(nil), w.Bytes()...), nil
}

// resumeAfterFailure resumes pid after err stopped the operation half way.
// If resuming fails too the returned error says so.
func resumeAfterFailure(t Tracer, pid int, err error) error {
	rerr := t.Resume(pid)
	if rerr == nil {
		return err
	}
	logflags.PatcherLogger().WithField("pid", pid).Errorf("resume after %v: %v", err, rerr)
	var e *Error
	if errors.As(err, &e) {
		e.ResumeErr = rerr
		return err
	}
	return &Error{Kind: ResumeFailed, Pid: pid, Err: rerr, detail: err.Error()}
}
