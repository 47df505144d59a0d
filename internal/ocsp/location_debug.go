//go:build ocsp_debug

package ocsp

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// callerLocation returns the file:line of the function that raised the
// error: frame 0 is this function, 1 is newError, 2 is an error helper or
// the decoder itself.
func callerLocation() string {
	for skip := 2; skip < 5; skip++ {
		pc, file, line, ok := runtime.Caller(skip)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn != nil && isErrorHelper(fn.Name()) {
			continue
		}
		return fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	return ""
}

func isErrorHelper(name string) bool {
	switch filepath.Ext(name) {
	case ".decodingError", ".lengthError", ".mismatchError", ".newError":
		return true
	}
	return false
}
