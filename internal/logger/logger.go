package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// EnvDebug enables debug output when set to "1" at startup
const EnvDebug = "COALFACE_DEBUG"

var (
	mu  sync.Mutex
	out io.Writer = os.Stderr

	enabled atomic.Bool
)

func init() {
	enabled.Store(os.Getenv(EnvDebug) == "1")
}

// Enabled reports whether debug logging is switched on
func Enabled() bool {
	return enabled.Load()
}

// SetEnabled switches debug logging on or off
func SetEnabled(on bool) {
	enabled.Store(on)
}

// SetOutput redirects debug output. Used by tests and by the CLI when it
// wants debug lines interleaved with its own output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Debugf prints a tagged message if debug mode is enabled
func Debugf(tag, format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	_, _ = fmt.Fprintf(out, "[DEBUG:"+tag+"] "+format+"\n", args...)
}
