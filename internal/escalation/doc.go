// Package escalation decides when a monitored subject has relapsed into a
// sustained non-alert state and drives the alarm.
//
// The Machine moves between Calm, Pending and Alarming. A non-alert top class
// arms a debounce timer (Pending); if it elapses the alarm sound starts, the
// relapse counter drops by one and a blink loop toggles the visual alarm
// (Alarming). Observing the alert class again returns to Calm. When the
// counter reaches zero a single remote notification is sent and the counter
// starts over.
//
// A Session owns one Machine and runs it on a single goroutine: feed ticks and
// timer firings are serialized through channels, so the machine state needs
// no locks. Timer firings carry a generation number and are dropped when the
// timer they belong to was cancelled or replaced.
package escalation
