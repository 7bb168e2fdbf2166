package proctitle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
)

// fakeTracer simulates a single target process whose memory is a sparse
// byte map.
type fakeTracer struct {
	mem map[uintptr]byte

	attached bool
	stopped  bool

	attachErr error
	waitErr   error
	waitBlock bool
	resumeErr error

	// failPeekAt and failPokeAt are indexes of PeekWord/PokeWord calls that
	// fail, -1 for none.
	failPeekAt int
	failPokeAt int

	peeks, pokes, attaches, resumes int
}

func newFakeTracer() *fakeTracer {
	return &fakeTracer{mem: make(map[uintptr]byte), failPeekAt: -1, failPokeAt: -1}
}

// load stores the original argument vector at the start of r and fills the
// memory around it with 'E', standing for the environment block.
func (ft *fakeTracer) load(r Region, args []byte) {
	for a := r.Start - 64; a < r.End+64; a++ {
		ft.mem[a] = 'E'
	}
	for i := 0; i < r.Size(); i++ {
		var b byte
		if i < len(args) {
			b = args[i]
		}
		ft.mem[r.Start+uintptr(i)] = b
	}
}

func (ft *fakeTracer) read(r Region) []byte {
	out := make([]byte, r.Size())
	for i := range out {
		out[i] = ft.mem[r.Start+uintptr(i)]
	}
	return out
}

func (ft *fakeTracer) Attach(pid int) error {
	ft.attaches++
	if ft.attachErr != nil {
		return ft.attachErr
	}
	if ft.attached {
		return syscall.EPERM
	}
	ft.attached = true
	return nil
}

func (ft *fakeTracer) WaitStop(ctx context.Context, pid int) error {
	if !ft.attached {
		return syscall.ESRCH
	}
	if ft.waitErr != nil {
		return ft.waitErr
	}
	if ft.waitBlock {
		<-ctx.Done()
		return ctx.Err()
	}
	ft.stopped = true
	return nil
}

func (ft *fakeTracer) PeekWord(pid int, addr uintptr, word []byte) error {
	if !ft.stopped {
		return errors.New("memory access while target is running")
	}
	if addr%uintptr(len(word)) != 0 {
		return syscall.EIO
	}
	n := ft.peeks
	ft.peeks++
	if n == ft.failPeekAt {
		return syscall.EIO
	}
	for i := range word {
		word[i] = ft.mem[addr+uintptr(i)]
	}
	return nil
}

func (ft *fakeTracer) PokeWord(pid int, addr uintptr, word []byte) error {
	if !ft.stopped {
		return errors.New("memory access while target is running")
	}
	if addr%uintptr(len(word)) != 0 {
		return syscall.EIO
	}
	n := ft.pokes
	ft.pokes++
	if n == ft.failPokeAt {
		return syscall.EFAULT
	}
	for i, b := range word {
		ft.mem[addr+uintptr(i)] = b
	}
	return nil
}

func (ft *fakeTracer) Resume(pid int) error {
	if ft.resumeErr != nil {
		return ft.resumeErr
	}
	if !ft.attached {
		return syscall.ESRCH
	}
	ft.resumes++
	ft.attached = false
	ft.stopped = false
	return nil
}

// statLine returns a /proc/<pid>/stat record with 52 fields.
func statLine(pid int, comm string, state byte, start, end uint64) string {
	fields := []string{strconv.Itoa(pid), "(" + comm + ")", string(state)}
	for i := 4; i <= 52; i++ {
		switch i {
		case 48:
			fields = append(fields, strconv.FormatUint(start, 10))
		case 49:
			fields = append(fields, strconv.FormatUint(end, 10))
		default:
			fields = append(fields, "0")
		}
	}
	return strings.Join(fields, " ") + "\n"
}

// writeStat writes content as the status record of pid under a procfs root
// and returns that root.
func writeStat(t *testing.T, root string, pid int, content string) string {
	t.Helper()
	if root == "" {
		root = t.TempDir()
	}
	dir := filepath.Join(root, strconv.Itoa(pid))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stat"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func assertKind(t *testing.T, err error, kind ErrorKind) *Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", kind)
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error of kind %v, got %T: %v", kind, err, err)
	}
	if e.Kind != kind {
		t.Fatalf("expected error kind %v, got %v: %v", kind, e.Kind, err)
	}
	return e
}
