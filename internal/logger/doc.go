// Package logger wraps zap for the launcher:
//   - a global sugared logger writing human-readable lines to stderr,
//   - an optional rotating log file attached once the control directory is known,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and the usual leveled and key-value helpers.
//
// Every service takes a context and logs through the logger stored in it, so
// names and fields set by callers follow the call chain.
package logger
