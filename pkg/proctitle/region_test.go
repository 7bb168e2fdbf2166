package proctitle

import (
	"strings"
	"testing"
)

func TestParseStat(t *testing.T) {
	testCases := []struct {
		comm  string
		state byte
		start uint64
		end   uint64
	}{
		{"bash", 'S', 0x7ffd5c1e2f3a, 0x7ffd5c1e2f3f},
		{"tmux: server", 'R', 140737488350000, 140737488350042},
		{"a) (b c", 't', 1000, 1010},
		{"", 'Z', 0, 0},
	}

	for _, tc := range testCases {
		line := statLine(4242, tc.comm, tc.state, tc.start, tc.end)
		st, err := ParseStat(line)
		if err != nil {
			t.Errorf("%q: %v", line, err)
			continue
		}
		if st.Pid != 4242 || st.Comm != tc.comm || st.State != tc.state {
			t.Errorf("%q: got pid %d comm %q state %c", line, st.Pid, st.Comm, st.State)
		}
		if uint64(st.Args.Start) != tc.start || uint64(st.Args.End) != tc.end {
			t.Errorf("%q: got args %v, want [%#x, %#x)", line, st.Args, tc.start, tc.end)
		}
	}
}

func TestParseStatFormatErrors(t *testing.T) {
	valid := strings.Fields(strings.TrimSuffix(statLine(7, "cat", 'S', 1000, 1010), "\n"))

	withField := func(n int, v string) string {
		f := append([]string(nil), valid...)
		f[n-1] = v
		return strings.Join(f, " ")
	}

	testCases := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"no command name", "7 cat S 1 2 3"},
		{"truncated after 46 fields", strings.Join(valid[:46], " ")},
		{"truncated after 48 fields", strings.Join(valid[:48], " ")},
		{"arg_start not a number", withField(48, "0x3e8")},
		{"arg_end not a number", withField(49, "-1")},
		{"bad state", withField(3, "SS")},
		{"bad pid", "x (cat) " + strings.Join(valid[2:], " ")},
	}

	for _, tc := range testCases {
		_, err := ParseStat(tc.line)
		if !IsKind(err, FormatError) {
			t.Errorf("%s: expected FormatError, got %v", tc.name, err)
		}
	}
}

func TestLocateRegion(t *testing.T) {
	root := writeStat(t, "", 100, statLine(100, "sleep", 'S', 0x7fff0000, 0x7fff0009))
	writeStat(t, root, 101, "")
	writeStat(t, root, 102, "102 (sleep) S 1 2 3\n")

	r, err := LocateRegion(root, 100)
	if err != nil {
		t.Fatal(err)
	}
	if r.Start != 0x7fff0000 || r.End != 0x7fff0009 || r.Size() != 9 {
		t.Fatalf("unexpected region %v", r)
	}

	e := assertKind(t, mustFail(LocateRegion(root, 99)), InvalidPid)
	if e.Pid != 99 {
		t.Errorf("expected pid 99 in error, got %d", e.Pid)
	}
	assertKind(t, mustFail(LocateRegion(root, 101)), StatusReadError)
	e = assertKind(t, mustFail(LocateRegion(root, 102)), FormatError)
	if e.Pid != 102 {
		t.Errorf("expected pid 102 in error, got %d", e.Pid)
	}
}

func TestLocateRegionWithoutTrailingNewline(t *testing.T) {
	root := writeStat(t, "", 5, strings.TrimSuffix(statLine(5, "init", 'S', 10, 20), "\n"))
	r, err := LocateRegion(root, 5)
	if err != nil {
		t.Fatal(err)
	}
	if r.Size() != 10 {
		t.Fatalf("unexpected region %v", r)
	}
}

func TestRegionSize(t *testing.T) {
	if n := (Region{Start: 10, End: 5}).Size(); n != 0 {
		t.Errorf("inverted region has size %d", n)
	}
	if n := (Region{Start: 10, End: 10}).Size(); n != 0 {
		t.Errorf("empty region has size %d", n)
	}
}

func mustFail(_ Region, err error) error {
	return err
}
