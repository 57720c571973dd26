// Package deposit defines the deposit record and its lifecycle state
// machine.
//
// A deposit moves forward through a fixed pipeline
// (depositedByJournal → harvested → … → deposited → agreement → cleaned)
// one edge at a time, with a failed side state reachable from any
// pipeline stage. All mutation of lifecycle-relevant fields goes through
// the transition helpers (Advance, Fail, ResetFailed, AppendError,
// AppendLog) so the monotonic-transition invariant cannot be violated by
// free-form field writes.
package deposit
