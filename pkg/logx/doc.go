// Package logx configures mindset's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps console output
// readable (short timestamp + short caller) and file output JSON-structured.
// A Service owns the sinks and can swap them at runtime on config reload.
package logx
