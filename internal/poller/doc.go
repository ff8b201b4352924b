// Package poller implements the Polling Scheduler component.
//
// The scheduler runs named recurring jobs at independent intervals. Every
// cycle gets a fresh cancellation context, and starting a cycle cancels any
// still-running previous cycle of the same job before the new fetch begins,
// so at most one fetch per job is ever active. Cancellation is an expected
// event: a cancelled cycle's result is discarded silently and never logged
// as a failure.
package poller
