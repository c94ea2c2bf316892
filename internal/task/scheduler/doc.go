// Package scheduler turns cron specs into engine enqueues.
//
// It only decides when something should run. Execution, timeouts and
// overlap handling belong to the task engine.
package scheduler
