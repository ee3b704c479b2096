package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebugf(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	defer SetEnabled(Enabled())

	SetEnabled(false)
	Debugf("mount", "denied %s", "/etc")
	assert.Empty(t, buf.String())

	SetEnabled(true)
	Debugf("mount", "denied %s", "/etc")
	assert.Equal(t, "[DEBUG:mount] denied /etc\n", buf.String())

	// the environment is only read at startup
	t.Setenv(EnvDebug, "")
	assert.True(t, Enabled())
}
