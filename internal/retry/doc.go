// Package retry wraps a single file copy in a retry loop with exponential
// backoff and a locked-file short circuit.
//
// A copy is attempted once and then retried up to Retries more times. The
// wait before retry k (k starting at 0) is Delay * 2^k with no cap and no
// jitter. When SkipLocked is set and a failure satisfies the Locked
// predicate, the file is reported as SkippedLocked at once, without further
// attempts or waits.
//
// Basic usage:
//
//	engine := retry.NewEngine(copier.NewFSCopier(), 3, 500*time.Millisecond, false)
//	outcome := engine.Run(ctx, task, dst)
package retry
