// Package async runs fire-and-forget background work safely.
//
// Tasks get a timeout, panic recovery and structured error logging:
//
//	runner := async.NewRunner(logger)
//	runner.Go(context.WithoutCancel(ctx), 5*time.Second, "touch api key", func(ctx context.Context) error {
//		return repo.TouchLastUsed(ctx, keyID, time.Now())
//	})
//
// Callers never see task errors. On shutdown, Runner.Wait drains tasks that
// are still in flight.
package async
