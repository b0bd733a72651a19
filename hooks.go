package normcache

import "github.com/unkn0wn-root/normcache/hooks"

// Hooks are lightweight callbacks for high-signal events. Implementations
// MUST be cheap and non-blocking; wrap slow sinks with hooks/async.
type Hooks = hooks.Hooks

// NopHooks is the default no-op.
type NopHooks = hooks.Nop
