package proctitle

import "testing"

func TestNewWindow(t *testing.T) {
	testCases := []struct {
		region   Region
		wordSize int
		start    uintptr
		end      uintptr
		words    int
		offset   int
	}{
		{Region{1000, 1010}, 8, 1000, 1016, 2, 0},
		{Region{1003, 1010}, 8, 1000, 1016, 2, 3},
		{Region{1007, 1008}, 8, 1000, 1016, 2, 7},
		{Region{1000, 1034}, 8, 1000, 1040, 5, 0},
		{Region{1001, 1003}, 4, 1000, 1004, 1, 1},
		{Region{1001, 1004}, 4, 1000, 1008, 2, 1},
		{Region{1000, 1000}, 8, 1000, 1008, 1, 0},
	}

	for _, tc := range testCases {
		w, err := NewWindow(tc.region, tc.wordSize)
		if err != nil {
			t.Errorf("%v/%d: %v", tc.region, tc.wordSize, err)
			continue
		}
		if w.Start != tc.start || w.End != tc.end || w.Words() != tc.words || w.Offset != tc.offset {
			t.Errorf("%v/%d: got %v, want [%#x, %#x) %d words, region offset %d", tc.region, tc.wordSize, w, tc.start, tc.end, tc.words, tc.offset)
		}
	}
}

func TestWindowContainsRegion(t *testing.T) {
	for _, wordSize := range []int{4, 8} {
		for start := uintptr(4096); start < 4096+3*uintptr(wordSize); start++ {
			for size := uintptr(0); size < 4*uintptr(wordSize); size++ {
				r := Region{start, start + size}
				w, err := NewWindow(r, wordSize)
				if err != nil {
					t.Fatalf("%v/%d: %v", r, wordSize, err)
				}
				if w.Start%uintptr(wordSize) != 0 || w.End%uintptr(wordSize) != 0 {
					t.Fatalf("%v/%d: window %v not aligned", r, wordSize, w)
				}
				if w.Start > r.Start || w.End < r.End {
					t.Fatalf("%v/%d: window %v does not contain region", r, wordSize, w)
				}
				if w.Offset < 0 || w.Offset >= wordSize {
					t.Fatalf("%v/%d: offset %d outside of first word", r, wordSize, w.Offset)
				}
				if len(w.Bytes()) != r.Size() {
					t.Fatalf("%v/%d: region view has %d bytes", r, wordSize, len(w.Bytes()))
				}
			}
		}
	}
}

func TestNewWindowErrors(t *testing.T) {
	if _, err := NewWindow(Region{1000, 1010}, 6); err == nil {
		t.Error("expected error for word size 6")
	}
	if _, err := NewWindow(Region{1000, 1010}, 0); err == nil {
		t.Error("expected error for word size 0")
	}
	if _, err := NewWindow(Region{1010, 1000}, 8); err == nil {
		t.Error("expected error for inverted region")
	}
}

func TestWindowSplice(t *testing.T) {
	w, err := NewWindow(Region{1003, 1013}, 8)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < w.Words(); i++ {
		word := w.Word(i)
		for j := range word {
			word[j] = 'E'
		}
	}
	if err := w.Splice([]byte("short")); err == nil {
		t.Fatal("expected error splicing fewer bytes than the region")
	}
	if err := w.Splice([]byte("ok\x00       ")); err != nil {
		t.Fatal(err)
	}
	want := "EEEok\x00       EEE"
	var got []byte
	for i := 0; i < w.Words(); i++ {
		got = append(got, w.Word(i)...)
	}
	if string(got) != want {
		t.Fatalf("window is %q, want %q", got, want)
	}
	if w.Addr(1) != 1008 {
		t.Fatalf("word 1 at %#x", w.Addr(1))
	}
}
