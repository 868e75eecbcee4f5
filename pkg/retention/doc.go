// Package retention reclaims expired artifacts.
//
// # Sweeper
//
// A sweep cycle captures the current time, asks the index for every record
// expired at that instant, deletes each backing file, then removes all of
// those rows in one batch. A file that cannot be deleted is logged and its
// row is still removed, so no row stays listed forever. Only one cycle runs
// at a time; a concurrent call returns ErrSweepInProgress.
//
// # Scheduler
//
// The Scheduler runs the sweeper every sweep_interval with robfig/cron. Jobs
// are wrapped in cron.Recover and cron.SkipIfStillRunning, so a failed or
// panicking cycle never stops the next tick and a slow cycle is never
// overlapped.
//
// # Reconciler
//
// The index and the store can drift apart: a crash between the file write
// and the index insert leaves an orphan file, and a file removed by hand
// leaves a dangling row. The Reconciler repairs both. Anything younger than
// the grace period is left alone, so in-flight requests are never raced.
// The optional Watcher drops rows as soon as their file disappears from the
// save directory.
package retention
