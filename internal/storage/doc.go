// Package storage persists media-fetch tasks, the execution window and the
// operator event feed.
//
// Every mutation that touches pending-task priorities runs inside a single
// transaction that first takes the pending-set lock (BEGIN IMMEDIATE on
// SQLite, a transaction-scoped advisory lock on PostgreSQL). Within that
// transaction pending priorities are kept dense (1..N) and only pending tasks
// carry a priority.
package storage
