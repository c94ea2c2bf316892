// Package notifier delivers job outcome messages to an operator chat.
//
// Runner outcomes arrive on the event bus (job.completed, job.failed). Each
// one is rendered into a short message and queued; a small worker pool sends
// queued messages through a Sender with a shared rate limit and exponential
// backoff between attempts.
//
// # Dedup
//
// Identical messages to the same chat are suppressed for DedupWindow, which
// keeps a task that is requeued and fails the same way from flooding the chat.
//
// # History
//
// The service keeps a small in-memory history of delivered messages for the
// engine status surface.
package notifier
