// Package logging gates which of this system's diagnostic scopes
// are active, the same bitmask idiom wazero's own internal/logging uses to
// select WASI log scopes, adapted here to select zap.Logger scopes instead
// of raw trace-writer output.
package logging

import (
	"strings"

	"go.uber.org/zap"
)

// Scopes is a bitmask of the diagnostic areas a Config may enable.
type Scopes uint8

const (
	ScopeNone     Scopes = 0
	ScopeCodec    Scopes = 1 << iota
	ScopeResource Scopes = 1 << iota
	ScopeBridge   Scopes = 1 << iota
	ScopeCall     Scopes = 1 << iota
	ScopeAll      = ScopeCodec | ScopeResource | ScopeBridge | ScopeCall
)

func scopeName(s Scopes) string {
	switch s {
	case ScopeCodec:
		return "codec"
	case ScopeResource:
		return "resource"
	case ScopeBridge:
		return "bridge"
	case ScopeCall:
		return "call"
	default:
		return ""
	}
}

// IsEnabled reports whether every scope bit in want is set in f.
func (f Scopes) IsEnabled(want Scopes) bool { return f&want == want }

// String lists every enabled scope name, '|'-joined.
func (f Scopes) String() string {
	if f == ScopeAll {
		return "all"
	}
	var names []string
	for _, s := range []Scopes{ScopeCodec, ScopeResource, ScopeBridge, ScopeCall} {
		if f.IsEnabled(s) {
			names = append(names, scopeName(s))
		}
	}
	return strings.Join(names, "|")
}

// Gate returns base if enabled is a superset of scope, otherwise
// zap.NewNop(): the call site always gets a non-nil logger, but one whose
// writes are discarded when its scope isn't selected. A package's own
// Logger(base) helper (internal/bridge.Logger, internal/call.Logger, and so
// on) then applies its own Named("scope") on top of whatever Gate returns,
// so naming stays each package's own concern.
func Gate(base *zap.Logger, enabled, scope Scopes) *zap.Logger {
	if base == nil || !enabled.IsEnabled(scope) {
		return zap.NewNop()
	}
	return base
}
