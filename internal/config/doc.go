// Package config defines the YAML settings used by posture-alarm and
// alarm-gateway and provides helpers to load, validate and save them.
//
// Validate fills in defaults (3s debounce, 200ms blink, threshold 3, four
// reference labels) so a minimal file only needs server_addr.
package config
