// Package monitor runs one posture monitoring session.
//
// Run loads the settings and resolves the recipient from the preference
// store. It then wires the notification dispatcher, the alarm player and the
// status line into an escalation session and serves MonitorService plus the
// standard health service until the context is cancelled. Ticks come from
// gRPC pushes and, when configured, from JSON lines on stdin.
package monitor
