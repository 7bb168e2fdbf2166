package proctitle

import (
	"fmt"
	"unsafe"
)

// WordSize is the size in bytes of the words moved by PTRACE_PEEKDATA and
// PTRACE_POKEDATA.
const WordSize = int(unsafe.Sizeof(uintptr(0)))

// Window is the word aligned range of memory that contains an argument
// region. Remote memory can only be read and written one whole word at a
// time, so the region is patched by reading every word of the window,
// modifying the local copy and writing every word back.
type Window struct {
	// Start is the region start rounded down to a word boundary, End is the
	// region end rounded down to a word boundary plus one word.
	Start, End uintptr
	// Offset is the position of the region start inside the first word.
	Offset int

	region   Region
	wordSize int
	buf      []byte
	written  int
}

// NewWindow returns the patch window for r using words of wordSize bytes.
func NewWindow(r Region, wordSize int) (*Window, error) {
	if wordSize <= 0 || wordSize&(wordSize-1) != 0 {
		return nil, fmt.Errorf("word size %d is not a power of two", wordSize)
	}
	if r.End < r.Start {
		return nil, fmt.Errorf("region %v ends before it starts", r)
	}
	mask := ^uintptr(wordSize - 1)
	w := &Window{
		Start:    r.Start & mask,
		End:      (r.End & mask) + uintptr(wordSize),
		region:   r,
		wordSize: wordSize,
	}
	if w.End < w.Start {
		return nil, fmt.Errorf("region %v wraps around the address space", r)
	}
	off := r.Start - w.Start
	if off >= uintptr(wordSize) {
		return nil, fmt.Errorf("splice offset %d outside of first word", off)
	}
	w.Offset = int(off)
	w.buf = make([]byte, w.End-w.Start)
	return w, nil
}

// Region returns the argument region the window was built for.
func (w *Window) Region() Region {
	return w.region
}

// WordSize returns the size of the words of the window.
func (w *Window) WordSize() int {
	return w.wordSize
}

// Words returns the number of words in the window.
func (w *Window) Words() int {
	return len(w.buf) / w.wordSize
}

// Addr returns the address, in the target, of word i.
func (w *Window) Addr(i int) uintptr {
	return w.Start + uintptr(i*w.wordSize)
}

// Word returns the local copy of word i. Writes to the returned slice
// modify the window.
func (w *Window) Word(i int) []byte {
	return w.buf[i*w.wordSize : (i+1)*w.wordSize]
}

// Bytes returns the local copy of the argument region.
func (w *Window) Bytes() []byte {
	return w.buf[w.Offset : w.Offset+w.region.Size()]
}

// Splice copies data over the argument region in the local copy. data must
// be exactly as long as the region.
func (w *Window) Splice(data []byte) error {
	if len(data) != w.region.Size() {
		return fmt.Errorf("splicing %d bytes into a region of %d bytes", len(data), w.region.Size())
	}
	copy(w.buf[w.Offset:], data)
	return nil
}

// Written returns how many words, starting from the first, have been
// written back to the target.
func (w *Window) Written() int {
	return w.written
}

// Mutated reports whether word i has been written back to the target.
func (w *Window) Mutated(i int) bool {
	return i < w.written
}

func (w *Window) String() string {
	return fmt.Sprintf("[%#x, %#x) %d words, region offset %d", w.Start, w.End, w.Words(), w.Offset)
}
