// Package observability holds opt-in debugging toggles that are cheap to
// carry but dangerous to mount unconditionally (pprof exposes the process's
// memory and goroutine internals).
package observability

import (
	"net/http"
	"net/http/pprof"
)

// Config captures opt-in observability toggles that wire into the server.
type Config struct {
	EnablePprofTrace bool
}

// Mount registers the standard net/http/pprof handlers through register when
// enabled. register is usually *http.ServeMux.HandleFunc or a thin adapter
// onto the request router in use, so this package stays independent of any
// particular router library. Calling this unconditionally in production
// would leak profiling data to anyone who can reach the route, so callers
// gate it on Config.
func (c Config) Mount(register func(pattern string, handler http.HandlerFunc)) {
	if !c.EnablePprofTrace {
		return
	}
	register("/debug/pprof/", pprof.Index)
	register("/debug/pprof/cmdline", pprof.Cmdline)
	register("/debug/pprof/profile", pprof.Profile)
	register("/debug/pprof/symbol", pprof.Symbol)
	register("/debug/pprof/trace", pprof.Trace)
}
