// Package procname gives the process a descriptive title, the Go analogue
// of the original's OS-specific setproctitle call (spec.md §4.6/§6). No
// library in the retrieved example pack performs this, so it is
// implemented directly: best-effort, truncated to the length of argv[0]
// since the C argv block cannot grow in place without corrupting adjacent
// process memory.
package procname

import (
	"os"
	"unsafe"
)

// SetTitle overwrites the process's argv[0] bytes with title. It is a
// best-effort, process-wide side effect with no return value, just like
// the reference implementation's util.setproctitle.
func SetTitle(title string) {
	if len(os.Args) == 0 || len(os.Args[0]) == 0 {
		return
	}

	arg0 := os.Args[0]
	buf := unsafe.Slice(unsafe.StringData(arg0), len(arg0))

	n := copy(buf, title)
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
}
