// Package shutdown coordinates graceful process termination.
//
// A Handler waits for SIGINT or SIGTERM (or a programmatic Trigger), then
// runs registered hooks in reverse registration order under a shared
// deadline. SIGHUP runs reload hooks without stopping the process.
//
// Usage:
//
//	h := shutdown.NewHandler(10*time.Second, log)
//	h.OnShutdown("http", srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
