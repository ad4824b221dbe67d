// Package canon is this module's root package: it assembles the codec
// (cm), resource table (internal/restable), wazero adapter
// (internal/wazeroadapter), and shared-memory bridge (internal/bridge,
// workerclient) behind one immutable Config, the same clone-on-write
// pattern wazero's own RuntimeConfig uses in config.go.
package canon

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/componentize-go/canon/cm"
	"github.com/componentize-go/canon/internal/bridge"
	"github.com/componentize-go/canon/internal/call"
	"github.com/componentize-go/canon/internal/logging"
)

// Config is runtime-wide configuration: the string encoding and option
// representation every cm.Context built from it shares, a futex timeout
// value reported by FutexTimeout, and the logger and scope mask every
// component's diagnostics are routed through.
//
// Config is immutable. Every With* method clones before mutating, so a
// Config can be shared and further derived from without aliasing surprises,
// exactly as wazero's RuntimeConfig.clone does in config.go.
type Config struct {
	encoding     cm.Encoding
	keepOption   bool
	futexTimeout time.Duration
	logger       *zap.Logger
	logScopes    logging.Scopes
}

// NewConfig returns the default Config: utf-8 encoding, options unwrapped,
// no futex timeout (a worker-to-host call blocks forever), and a no-op
// logger.
func NewConfig() *Config {
	return &Config{
		encoding:  cm.EncodingUTF8,
		logScopes: logging.ScopeAll,
	}
}

func (c *Config) clone() *Config {
	ret := *c
	return &ret
}

// WithEncoding selects the string encoding used across every cm.Context
// this Config produces. EncodingLatin1UTF16 is accepted here (Config
// construction never validates it) but every codec operation that reaches
// it traps, treating the encoding as unspecified rather than silently
// misinterpreting bytes; rejecting it eagerly here would also reject a
// Config an embedder builds
// once and only uses for interfaces that never touch strings.
func (c *Config) WithEncoding(enc cm.Encoding) *Config {
	ret := c.clone()
	ret.encoding = enc
	return ret
}

// WithKeepOption controls whether an option<T> lift keeps its Some/None
// wrapper (true) or unwraps to T's own value, with nil for none (false).
func (c *Config) WithKeepOption(keep bool) *Config {
	ret := c.clone()
	ret.keepOption = keep
	return ret
}

// WithFutexTimeout sets the worker-call timeout that FutexTimeout reports.
// Zero (the default) means wait forever. No component reads it from the
// Config itself: a workerclient.Client takes its timeout from
// workerclient.Options.FutexTimeout.
func (c *Config) WithFutexTimeout(d time.Duration) *Config {
	ret := c.clone()
	ret.futexTimeout = d
	return ret
}

// WithLogger sets the base logger every component's scoped diagnostics
// (codec, resource, bridge, call) derive from via Named.
func (c *Config) WithLogger(logger *zap.Logger) *Config {
	ret := c.clone()
	ret.logger = logger
	return ret
}

// WithLogScopes restricts which of codec/resource/bridge/call diagnostics
// are actually emitted; a disabled scope's Logger calls are routed to a
// no-op regardless of the base logger's own level. Defaults to ScopeAll.
func (c *Config) WithLogScopes(scopes logging.Scopes) *Config {
	ret := c.clone()
	ret.logScopes = scopes
	return ret
}

// Validate checks the invariants Config construction alone cannot enforce
// as a With* method: the Canonical ABI's linear-memory layout is
// little-endian only, and a Config built under a big-endian GOARCH would
// silently produce wrong byte layouts rather than failing fast. Callers
// should call this once before using a Config to build a Runtime.
func (c *Config) Validate() error {
	if binary.NativeEndian.Uint16([]byte{1, 0}) != binary.LittleEndian.Uint16([]byte{1, 0}) {
		return fmt.Errorf("canon: this runtime's native byte order is big-endian; the Canonical ABI's linear-memory layout is little-endian only")
	}
	if c.encoding > cm.EncodingLatin1UTF16 {
		return fmt.Errorf("canon: unknown string encoding %v", c.encoding)
	}
	return nil
}

// FutexTimeout returns the configured worker-call timeout.
func (c *Config) FutexTimeout() time.Duration { return c.futexTimeout }

// CodecContext builds the cm.Context every codec Load/Store/Copy call
// should be threaded through. cm.Context itself does not scope its logger
// (it is a plain field, not paired with a Logger(base) helper the way
// bridge/call are), so Config names it here.
func (c *Config) CodecContext() *cm.Context {
	logger := logging.Gate(c.logger, c.logScopes, logging.ScopeCodec)
	return &cm.Context{
		Encoding:   c.encoding,
		KeepOption: c.keepOption,
		Logger:     logger.Named("codec"),
	}
}

// ResourceLogger returns the logger a restable.Table constructed under this
// Config should report finalizer and destructor failures through.
// restable.New takes its logger unnamed, so Config names it here too.
func (c *Config) ResourceLogger() *zap.Logger {
	return logging.Gate(c.logger, c.logScopes, logging.ScopeResource).Named("resource")
}

// BridgeLogger returns the logger a bridge.Registry constructed under this
// Config should report dispatch diagnostics through.
func (c *Config) BridgeLogger() *zap.Logger {
	return bridge.Logger(logging.Gate(c.logger, c.logScopes, logging.ScopeBridge))
}

// CallLogger returns the logger internal/call's dispatch helpers should
// report result<_,E> routing failures through.
func (c *Config) CallLogger() *zap.Logger {
	return call.Logger(logging.Gate(c.logger, c.logScopes, logging.ScopeCall))
}
