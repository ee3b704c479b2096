package input

import "strings"

// Modifier is a bitmask of held modifier keys. Bit values follow SDL 1.2's
// SDLMod so the core can use them unchanged.
type Modifier uint16

// List of modifier bits
const (
	LShift   Modifier = 0x0001
	RShift   Modifier = 0x0002
	LCtrl    Modifier = 0x0040
	RCtrl    Modifier = 0x0080
	LAlt     Modifier = 0x0100
	RAlt     Modifier = 0x0200
	LMeta    Modifier = 0x0400
	RMeta    Modifier = 0x0800
	NumLock  Modifier = 0x1000
	CapsLock Modifier = 0x2000
	Mode     Modifier = 0x4000

	Shift = LShift | RShift
	Ctrl  = LCtrl | RCtrl
	Alt   = LAlt | RAlt
	Meta  = LMeta | RMeta
)

// None is the empty modifier set
const None Modifier = 0

// Has reports whether any bit of m2 is set in m
func (m Modifier) Has(m2 Modifier) bool {
	return m&m2 != 0
}

func (m Modifier) String() string {
	if m == None {
		return "none"
	}
	var parts []string
	for _, n := range []struct {
		bit  Modifier
		name string
	}{
		{Shift, "shift"}, {Ctrl, "ctrl"}, {Alt, "alt"}, {Meta, "meta"},
		{NumLock, "numlock"}, {CapsLock, "capslock"}, {Mode, "mode"},
	} {
		if m.Has(n.bit) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "+")
}

// ModifierSource reports the modifier keys held right now
type ModifierSource interface {
	Modifiers() Modifier
}

// ModifierFunc adapts a function to ModifierSource
type ModifierFunc func() Modifier

// Modifiers implements ModifierSource
func (f ModifierFunc) Modifiers() Modifier {
	return f()
}

// ParseModifiers reads a "+" separated list such as "shift+ctrl". Unknown
// names are ignored.
func ParseModifiers(s string) Modifier {
	var m Modifier
	for _, name := range strings.Split(strings.ToLower(s), "+") {
		switch strings.TrimSpace(name) {
		case "shift", "lshift":
			m |= LShift
		case "rshift":
			m |= RShift
		case "ctrl", "lctrl":
			m |= LCtrl
		case "rctrl":
			m |= RCtrl
		case "alt", "lalt", "option":
			m |= LAlt
		case "ralt":
			m |= RAlt
		case "meta", "lmeta", "cmd":
			m |= LMeta
		case "rmeta":
			m |= RMeta
		case "numlock":
			m |= NumLock
		case "capslock":
			m |= CapsLock
		}
	}
	return m
}
