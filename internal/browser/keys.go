package browser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/chromedp/chromedp/kb"
)

var namedKeys = map[string]string{
	"enter":      kb.Enter,
	"return":     kb.Enter,
	"tab":        kb.Tab,
	"escape":     kb.Escape,
	"esc":        kb.Escape,
	"backspace":  kb.Backspace,
	"delete":     kb.Delete,
	"space":      " ",
	"spacebar":   " ",
	"arrowup":    kb.ArrowUp,
	"up":         kb.ArrowUp,
	"arrowdown":  kb.ArrowDown,
	"down":       kb.ArrowDown,
	"arrowleft":  kb.ArrowLeft,
	"left":       kb.ArrowLeft,
	"arrowright": kb.ArrowRight,
	"right":      kb.ArrowRight,
	"home":       kb.Home,
	"end":        kb.End,
	"pageup":     kb.PageUp,
	"pagedown":   kb.PageDown,
}

// KeyFor maps a key name such as "Enter" or "Arrow Down" to the key sequence
// chromedp dispatches. A single character maps to itself.
func KeyFor(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	normalized := strings.ToLower(strings.Join(strings.Fields(trimmed), ""))
	normalized = strings.TrimSuffix(normalized, "key")
	if k, ok := namedKeys[normalized]; ok {
		return k, nil
	}
	if utf8.RuneCountInString(trimmed) == 1 {
		return trimmed, nil
	}
	return "", fmt.Errorf("unsupported key %q", name)
}
