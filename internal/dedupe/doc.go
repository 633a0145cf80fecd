// Package dedupe provides a time-bounded idempotency cache. Callers claim a
// key before doing work, then either complete it with a result that later
// claims replay, or release it so the work can be retried.
package dedupe
