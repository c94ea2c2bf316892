// Package logx configures mediafetch's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - Console output readable (short timestamp + short caller)
//   - The execution log file JSON-structured, one event per line
//   - An optional chat sink (min-level + rate limiting) for operators
package logx
