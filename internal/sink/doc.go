// Package sink persists fetched files. A sink removes the local copies only
// when every file was persisted; otherwise all local files are kept and the
// per-file reasons are returned.
package sink
