package input

import (
	"testing"

	"github.com/faize-ai/coalface/internal/session"
	"github.com/stretchr/testify/assert"
)

type staticLayout string

func (s staticLayout) KeyboardLayout() string { return string(s) }

func TestLayoutCode(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"com.apple.keylayout.US", "us"},
		{"com.apple.keylayout.German", "gr"},
		{"com.apple.keylayout.British", "uk"},
		{"French", "fr"},
		{" de ", "gr"},
		{"com.apple.keylayout.Klingon", DefaultLayout},
		{"", DefaultLayout},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, LayoutCode(tt.host))
		})
	}
}

func TestLayoutOverrides(t *testing.T) {
	l := NewLayouts(map[string]string{
		"com.apple.keylayout.Dvorak": "DV",
		"german":                     "de",
	})

	assert.Equal(t, "dv", l.Code("com.apple.keylayout.Dvorak"))
	assert.Equal(t, "de", l.Code("German"))
	assert.Equal(t, "fr", l.Code("french"))
}

func TestModifiers(t *testing.T) {
	m := ParseModifiers("shift+ctrl+capslock+bogus")
	assert.True(t, m.Has(Shift))
	assert.True(t, m.Has(Ctrl))
	assert.True(t, m.Has(CapsLock))
	assert.False(t, m.Has(Alt))
	assert.Equal(t, "shift+ctrl+capslock", m.String())
	assert.Equal(t, "none", None.String())
	assert.Equal(t, Modifier(0x0041), ParseModifiers("lshift+lctrl"))
}

func TestBridgeDefaults(t *testing.T) {
	b := NewBridge(session.New(), nil, nil, nil)
	assert.Equal(t, DefaultLayout, b.CurrentKeyboardLayout())
	assert.Equal(t, None, b.CurrentModifiers())
}

func TestBridgeRecomputesEachCall(t *testing.T) {
	held := None
	sess := session.New()
	b := NewBridge(sess, NewLayouts(nil), staticLayout("com.apple.keylayout.Spanish"), ModifierFunc(func() Modifier {
		return held
	}))

	assert.Equal(t, "sp", b.CurrentKeyboardLayout())
	assert.Equal(t, None, b.CurrentModifiers())

	held = LAlt | RShift
	assert.Equal(t, LAlt|RShift, b.CurrentModifiers())

	b.SetMouseActive(true)
	b.MouseMovedTo(10, 20)
	assert.True(t, sess.MouseActive())
	x, y := sess.MousePosition()
	assert.Equal(t, 10.0, x)
	assert.Equal(t, 20.0, y)
}
