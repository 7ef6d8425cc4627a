// Package render draws the escalation state as a one-line terminal status:
// top class, per-class confidences, phase, relapse counter and a block that
// blinks with the visual alarm.
package render
