// Package gateway implements alarm-gateway, the small HTTP service that turns
// GET /send-text requests into SMS messages.
//
// Requests are acknowledged immediately and delivered in the background, so a
// slow vendor never stalls the monitor. Without vendor credentials messages are
// only logged.
package gateway
