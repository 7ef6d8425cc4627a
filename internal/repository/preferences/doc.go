// Package preferences implements the preference store: a small key-value
// store with optional path scoping, used for the notification destination
// and the subject's display name.
//
// FileStore keeps every scope in one JSON document written with protojson;
// SQLiteStore keeps one row per (path, key).
package preferences
