// Package common holds helpers shared by several services.
//
// It provides a lightweight MonitorService client wrapper with timeouts and a
// helper that detects the current system actor (hostname/username).
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
