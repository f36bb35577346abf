// Package scanning holds the scan engine's data model and its scheduler.
//
// # Data model
//
// A ScanRequest names one target and an inclusive port range together with a
// per-probe timeout and a concurrency limit. Validate reports range faults as
// INVALID_RANGE and malformed targets as TARGET_INVALID, so callers can reject
// a request before any job exists. Each probe yields an immutable PortResult
// whose State is one of open, closed, filtered or error.
//
// # Scheduler
//
// Scheduler.Run walks the port range in order, acquiring one of
// req.Concurrency slots before each dispatch. Cancellation is cooperative: the
// context is checked before every dispatch, probes already in flight run to
// their timeout-bounded end, and the Sink decides whether their results are
// still wanted. An optional token bucket (WithProbeRate) paces dispatch for
// targets that should not see bursts.
//
//	sched := scanning.NewScheduler(probe.New())
//	outcome, err := sched.Run(ctx, "10.0.0.5", req, scanning.SinkFunc(func(r scanning.PortResult) bool {
//		if r.State == scanning.StateOpen {
//			fmt.Println(r.Port)
//		}
//		return true
//	}))
package scanning
