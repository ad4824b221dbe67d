package bridge

import "go.uber.org/zap"

// Logger returns a component-scoped logger for the bridge package's own
// diagnostics (handshake rejections, no-handler dispatches), following the
// same Named("scope") convention as internal/call.Logger and
// internal/restable's own logger field.
func Logger(base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return base.Named("bridge")
}
