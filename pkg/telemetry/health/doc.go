// Package health serves liveness, readiness and version probes.
//
// /health answers 200 whenever the process is running. /ready probes the
// registered dependencies; the artifact store and retention index are
// critical, the detection model is not.
//
//	checker := health.New(5 * time.Second)
//	checker.Register("index", true, idx.Ping)
//	checker.Register("store", true, store.Ping)
//	checker.Mount(mux, version, commit, buildTime)
package health
