// Package resilience holds the failure handling shared by relayfeed's outbound calls.
//
// The feed fetch and each transcoder submission attempt run inside a circuit breaker
// (package circuitbreaker), and the breaker call runs inside retry.WithBackoff, so a
// refused call consumes an attempt without touching the network:
//
//	err := retry.WithBackoff(ctx, cfg.Retry, func() error {
//		out, err := circuitbreaker.Do(breaker, func() (entity.Outcome, error) {
//			return submitOnce(ctx)
//		})
//		...
//	})
//
// The ledger database is guarded by circuitbreaker.DBCircuitBreaker alone. Store
// errors are never retried; the entry is simply reconsidered on the next pass.
package resilience
