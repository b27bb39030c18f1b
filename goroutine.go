package redux

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID returns the id of the calling goroutine, parsed from the
// "goroutine <id> [" header of its stack trace.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	field := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(field, ' '); i >= 0 {
		field = field[:i]
	}
	id, _ := strconv.ParseUint(string(field), 10, 64)
	return id
}
