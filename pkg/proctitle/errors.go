package proctitle

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the ways setting a title can fail.
type ErrorKind uint8

const (
	// InvalidPid means the status record of the process could not be opened.
	InvalidPid ErrorKind = iota + 1
	// StatusReadError means the status record could not be read.
	StatusReadError
	// FormatError means the status record does not have the expected layout.
	FormatError
	// TitleTooLarge means the new title does not fit in the argument region.
	TitleTooLarge
	// AttachFailed means the target could not be stopped under ptrace.
	AttachFailed
	// ReadFailed means a word of the patch window could not be read. The
	// target has not been modified.
	ReadFailed
	// PartialWriteError means a word could not be written after some words
	// already were. The argument region of the target is a mixture of old
	// and new content.
	PartialWriteError
	// ResumeFailed means the target could not be resumed and is still
	// stopped. When returned by Patch the new title was installed.
	ResumeFailed
	// VerifyFailed means the region read back after writing differs from
	// the title that was written.
	VerifyFailed
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidPid:
		return "InvalidPid"
	case StatusReadError:
		return "StatusReadError"
	case FormatError:
		return "FormatError"
	case TitleTooLarge:
		return "TitleTooLarge"
	case AttachFailed:
		return "AttachFailed"
	case ReadFailed:
		return "ReadFailed"
	case PartialWriteError:
		return "PartialWriteError"
	case ResumeFailed:
		return "ResumeFailed"
	case VerifyFailed:
		return "VerifyFailed"
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// Error is the error returned by every operation of this package.
type Error struct {
	Kind ErrorKind
	Pid  int

	// Word is the index of the word of the patch window that failed and
	// Words the total number of words in the window. Addr is the address of
	// the failing word. Only set for ReadFailed and PartialWriteError.
	Word  int
	Words int
	Addr  uintptr

	// Err is the underlying cause, if any.
	Err error

	// ResumeErr is set when a best effort resume of the target, attempted
	// after the failure, also failed. The target is left stopped.
	ResumeErr error

	detail string
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case InvalidPid:
		msg = fmt.Sprintf("invalid pid %d", e.Pid)
	case StatusReadError:
		msg = fmt.Sprintf("error reading status of process %d", e.Pid)
	case FormatError:
		msg = fmt.Sprintf("unrecognized status format for process %d, /proc/PID/stat format changed?", e.Pid)
	case TitleTooLarge:
		msg = "can't set a title that is larger than the current one"
	case AttachFailed:
		msg = fmt.Sprintf("unable to attach to process %d, maybe it is being debugged or ptrace is blocked", e.Pid)
	case ReadFailed:
		msg = fmt.Sprintf("could not read word %d of %d at %#x in process %d", e.Word, e.Words, e.Addr, e.Pid)
	case PartialWriteError:
		msg = fmt.Sprintf("could not write word %d of %d at %#x in process %d after %d words were written, target potentially left in inconsistent state", e.Word, e.Words, e.Addr, e.Pid, e.Word)
	case ResumeFailed:
		msg = fmt.Sprintf("process %d could not be resumed, target left stopped", e.Pid)
	case VerifyFailed:
		msg = fmt.Sprintf("title read back from process %d does not match the title written", e.Pid)
	default:
		msg = e.Kind.String()
	}
	if e.detail != "" {
		msg += ": " + e.detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.ResumeErr != nil {
		msg += fmt.Sprintf(" (resuming process %d also failed, target left stopped: %v)", e.Pid, e.ResumeErr)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Severe reports whether the failure left a side effect on the target that
// could not be undone: its memory was partially written or it was left
// stopped.
func (e *Error) Severe() bool {
	return e.Kind == PartialWriteError || e.Kind == ResumeFailed || e.ResumeErr != nil
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsSevere reports whether err is an *Error for which Severe returns true.
func IsSevere(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Severe()
}

func newError(kind ErrorKind, pid int, err error) *Error {
	return &Error{Kind: kind, Pid: pid, Err: err}
}

func newErrorf(kind ErrorKind, pid int, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Pid: pid, detail: fmt.Sprintf(format, args...)}
}
