package proctitle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-delve/setproctitle/pkg/logflags"
)

// DefaultProcRoot is where procfs is normally mounted.
const DefaultProcRoot = "/proc"

// Position of arg_start in /proc/<pid>/stat, counting from the field that
// follows the command name (the state field, field 3). arg_end follows it.
// See proc(5): arg_start is field 48, arg_end is field 49.
const (
	statStateField    = 0
	statArgStartField = 48 - 3
	statArgEndField   = 49 - 3
)

// Region is the argument vector region [Start, End) of a process, in the
// address space of that process.
type Region struct {
	Start uintptr
	End   uintptr
}

// Size returns the number of bytes in the region, zero if End is not past
// Start.
func (r Region) Size() int {
	if r.End <= r.Start {
		return 0
	}
	return int(r.End - r.Start)
}

func (r Region) String() string {
	return fmt.Sprintf("[%#x, %#x)", r.Start, r.End)
}

// Stat is the subset of /proc/<pid>/stat used by this package.
type Stat struct {
	Pid   int
	Comm  string
	State byte
	Args  Region
}

// Process states, as reported by the third field of /proc/<pid>/stat.
const (
	StatusSleeping  = 'S'
	StatusStopped   = 'T'
	StatusTraceStop = 't'
	StatusZombie    = 'Z'
)

func statPath(procRoot string, pid int) string {
	if procRoot == "" {
		procRoot = DefaultProcRoot
	}
	return filepath.Join(procRoot, strconv.Itoa(pid), "stat")
}

// ReadStat reads and parses the status record of pid under procRoot (an
// empty procRoot means DefaultProcRoot).
func ReadStat(procRoot string, pid int) (*Stat, error) {
	path := statPath(procRoot, pid)
	f, err := os.Open(path)
	if err != nil {
		return nil, newError(InvalidPid, pid, err)
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, newError(StatusReadError, pid, err)
	}

	st, err := ParseStat(line)
	if err != nil {
		if e, ok := err.(*Error); ok {
			e.Pid = pid
		}
		return nil, err
	}
	return st, nil
}

// ParseStat parses one line in the format of /proc/<pid>/stat.
//
// The second field is the command name in parentheses. It is not escaped
// and may contain both spaces and parentheses, so fields are counted from
// the last ')' of the line.
func ParseStat(line string) (*Stat, error) {
	line = strings.TrimRight(line, "\n")

	open := strings.IndexByte(line, '(')
	closing := strings.LastIndexByte(line, ')')
	if open < 0 || closing < open {
		return nil, newErrorf(FormatError, 0, "command name not found")
	}

	st := &Stat{Comm: line[open+1 : closing]}
	pid, err := strconv.Atoi(strings.TrimSpace(line[:open]))
	if err != nil {
		return nil, newErrorf(FormatError, 0, "bad pid field %q", line[:open])
	}
	st.Pid = pid

	rest := line[closing+1:]
	if !strings.HasPrefix(rest, " ") {
		return nil, newErrorf(FormatError, pid, "no fields after command name")
	}
	fields := strings.Split(rest[1:], " ")
	if len(fields) <= statArgEndField {
		return nil, newErrorf(FormatError, pid, "found %d fields, want at least %d", len(fields)+2, statArgEndField+3)
	}
	if len(fields[statStateField]) != 1 {
		return nil, newErrorf(FormatError, pid, "bad state field %q", fields[statStateField])
	}
	st.State = fields[statStateField][0]

	var parsed [2]uintptr
	for i, field := range fields[statArgStartField : statArgEndField+1] {
		v, err := strconv.ParseUint(field, 10, 64)
		if err != nil || v > uint64(^uintptr(0)) {
			return nil, newErrorf(FormatError, pid, "expected two unsigned integers for arg_start and arg_end, parsed %d", i)
		}
		parsed[i] = uintptr(v)
	}
	st.Args = Region{Start: parsed[0], End: parsed[1]}
	return st, nil
}

// LocateRegion returns the argument vector region of pid.
func LocateRegion(procRoot string, pid int) (Region, error) {
	log := logflags.LocatorLogger().WithField("pid", pid)
	st, err := ReadStat(procRoot, pid)
	if err != nil {
		log.Debugf("reading %s: %v", statPath(procRoot, pid), err)
		return Region{}, err
	}
	log.Debugf("comm %q state %c args %v (%d bytes)", st.Comm, st.State, st.Args, st.Args.Size())
	return st.Args, nil
}
