// Package errs defines the sentinel error categories shared across the
// engine, matching spec.md §7's taxonomy. Call sites wrap a sentinel with
// fmt.Errorf("%w: ...", errs.X) the same way the teacher wraps its own
// plain errors — no custom error-code framework beyond that.
package errs

import "errors"

var (
	Config        = errors.New("config")
	Storage       = errors.New("storage")
	Rpc           = errors.New("rpc")
	WebSocket     = errors.New("websocket")
	Subscribe     = errors.New("subscribe")
	InvalidParam  = errors.New("invalid param")
	UnknownSymbol = errors.New("unknown symbol")
	InvalidRange  = errors.New("invalid range")
	Internal      = errors.New("internal")
)
