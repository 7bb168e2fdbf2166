package cmds

import (
	"fmt"
	"io"
	"os"

	"github.com/go-delve/setproctitle/pkg/proctitle"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

const (
	ansiRed   = "\033[31m"
	ansiReset = "\033[0m"
)

// colorWriter returns a writer that understands ANSI escapes if w is a
// terminal. On Windows consoles the escapes are translated by colorable.
func colorWriter(w io.Writer) (io.Writer, bool) {
	f, ok := w.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		return w, false
	}
	if os.Getenv("NO_COLOR") != "" {
		return w, false
	}
	return colorable.NewColorable(f), true
}

// reportError prints err on stderr. Severe errors, those where the target
// may have been left stopped or half written, are printed in red.
func reportError(stderr io.Writer, err error) {
	msg := fmt.Sprintf("Error: %v\n", err)
	if !proctitle.IsSevere(err) {
		fmt.Fprint(stderr, msg)
		return
	}
	msg += "The target process may need to be inspected (cat /proc/<pid>/status) or killed.\n"
	if cw, ok := colorWriter(stderr); ok {
		fmt.Fprint(cw, ansiRed+msg+ansiReset)
		return
	}
	fmt.Fprint(stderr, msg)
}
