// Package logx configures telebio's structured logging.
//
// It is a thin wrapper around zerolog that keeps:
//   - Console output readable (short timestamp, key=value fields)
//   - File output JSON-structured
//   - An optional Telegram mirror (min-level + rate limited) so the owner
//     sees warnings without tailing a log file
package logx
