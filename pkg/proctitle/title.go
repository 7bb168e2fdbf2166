package proctitle

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/cosiner/argv"
)

// NormalizeTitle returns the bytes that replace an argument region of size
// bytes: title, a zero terminator, then spaces up to size.
// A title that leaves no room for the terminator fails with TitleTooLarge.
func NormalizeTitle(size int, title []byte) ([]byte, error) {
	if len(title)+1 > size {
		return nil, newErrorf(TitleTooLarge, 0, "title has %d bytes, the argument region has room for %d", len(title), max(size-1, 0))
	}
	buf := make([]byte, size)
	n := copy(buf, title)
	buf[n] = 0
	for i := n + 1; i < size; i++ {
		buf[i] = ' '
	}
	return buf, nil
}

// JoinArgs splits title into words using shell quoting rules and joins them
// with zero bytes, so that the target exposes them as separate arguments in
// /proc/<pid>/cmdline.
func JoinArgs(title string) ([]byte, error) {
	v, err := argv.Argv(title,
		func(s string) (string, error) {
			return "", fmt.Errorf("backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 {
		return nil, fmt.Errorf("illegal title '%s'", title)
	}
	if len(v[0]) == 0 {
		return nil, errors.New("empty title")
	}
	for _, w := range v[0] {
		if strings.IndexByte(w, 0) >= 0 {
			return nil, fmt.Errorf("argument %q contains a zero byte", w)
		}
	}
	return []byte(strings.Join(v[0], "\x00")), nil
}

// Printable renders an argument region the way ps does: zero bytes become
// spaces and trailing padding is dropped.
func Printable(region []byte) string {
	return string(bytes.TrimRight(bytes.ReplaceAll(region, []byte{0}, []byte{' '}), " "))
}
