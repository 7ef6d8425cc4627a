// Package notify delivers remote notifications.
//
// HTTPGateway sends one message through the SMS gateway's /send-text
// endpoint. Dispatcher puts any Sender behind a bounded queue drained by a
// single worker, so callers never block and delivery failures only ever show
// up in the log.
package notify
