// Package logger wraps zap for the posture alarm binaries:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level parsing so the log level can come from settings or a flag,
//   - key-value helpers (InfoKV, WarnKV, ErrorKV, ...).
//
// Sessions, feeds and collaborators all take a context and log through the
// logger stored in it, so every line carries the session scope.
package logger
