package input

import (
	"github.com/faize-ai/coalface/internal/session"
)

// LayoutSource reports the host's active keyboard layout identifier
type LayoutSource interface {
	KeyboardLayout() string
}

// Bridge answers the core's input queries. Nothing is cached: every call
// asks the host sources again.
type Bridge struct {
	sess      *session.Session
	layouts   *Layouts
	layout    LayoutSource
	modifiers ModifierSource
}

// NewBridge creates a bridge. Either source may be nil.
func NewBridge(sess *session.Session, layouts *Layouts, layout LayoutSource, modifiers ModifierSource) *Bridge {
	return &Bridge{
		sess:      sess,
		layouts:   layouts,
		layout:    layout,
		modifiers: modifiers,
	}
}

// CurrentKeyboardLayout returns the DOS layout code for the host layout
func (b *Bridge) CurrentKeyboardLayout() string {
	if b.layout == nil {
		return DefaultLayout
	}
	return b.layouts.Code(b.layout.KeyboardLayout())
}

// CurrentModifiers returns the modifier keys held right now
func (b *Bridge) CurrentModifiers() Modifier {
	if b.modifiers == nil {
		return None
	}
	return b.modifiers.Modifiers()
}

// SetMouseActive records whether the DOS program is using the mouse
func (b *Bridge) SetMouseActive(active bool) {
	b.sess.SetMouseActive(active)
}

// MouseMovedTo records the pointer position, already in display space
func (b *Bridge) MouseMovedTo(x, y float64) {
	b.sess.SetMousePosition(x, y)
}
